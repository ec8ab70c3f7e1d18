package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/y0f/webprobe/internal/config"
	"github.com/y0f/webprobe/internal/history"
	"github.com/y0f/webprobe/internal/probe"
	"github.com/y0f/webprobe/internal/probeset"
)

var version = "dev"

// Exit codes follow the plugin convention the aggregation side expects:
// 0 OK, 1 WARNING, 2 CRITICAL, 3 when a probe could not run at all.
const (
	exitOK       = 0
	exitWarning  = 1
	exitCritical = 2
	exitUnknown  = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "webprobe.yaml", "path to probe file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("webprobe %s\n", version)
		return exitOK
	}

	cfg, warnings, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return exitUnknown
	}

	logger := setupLogger(cfg.Logging)
	for _, w := range warnings {
		logger.Warn("config: unknown key", "detail", w)
	}
	logger.Info("starting webprobe", "version", version, "probes", len(cfg.Probes))

	set, err := probeset.New(cfg.SetDefaults(), cfg.ProbeConfigs())
	if err != nil {
		logger.Error("invalid probe configuration", "error", err)
		return exitUnknown
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store *history.Store
	if cfg.History.Path != "" {
		store, err = history.Open(cfg.History.Path)
		if err != nil {
			logger.Error("failed to open history", "error", err)
			return exitUnknown
		}
		defer store.Close()
	}

	outcomes := set.Run(ctx)

	hadFailure := false
	for _, o := range outcomes {
		if o.Err != nil {
			hadFailure = true
			fmt.Fprintf(os.Stderr, "%s: UNKNOWN %v\n", o.Name, o.Err)
			continue
		}
		fmt.Printf("%s: %s %s\n", o.Name, o.Result.Status, o.Result.Info)
		if store != nil {
			if err := store.Record(ctx, o.Name, o.Result); err != nil {
				logger.Error("record history", "probe", o.Name, "error", err)
			}
		}
	}

	if store != nil {
		retention := time.Duration(cfg.History.RetentionDays) * 24 * time.Hour
		if n, err := store.Prune(ctx, retention); err != nil {
			logger.Error("prune history", "error", err)
		} else if n > 0 {
			logger.Debug("pruned history", "rows", n)
		}
	}

	overall := probeset.Overall(outcomes)
	fmt.Printf("overall: %s\n", overall)

	if hadFailure {
		return exitUnknown
	}
	switch overall {
	case probe.StatusWarning:
		return exitWarning
	case probe.StatusCritical:
		return exitCritical
	}
	return exitOK
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
