// Package config loads the probe file: shared defaults plus an ordered
// list of probes, with optional history and logging sections.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/y0f/webprobe/internal/probe"
	"github.com/y0f/webprobe/internal/probeset"
	"github.com/y0f/webprobe/internal/transport"
)

type Config struct {
	Defaults DefaultsConfig `yaml:"defaults"`
	History  HistoryConfig  `yaml:"history"`
	Logging  LoggingConfig  `yaml:"logging"`
	Probes   []ProbeConfig  `yaml:"probes"`
}

type DefaultsConfig struct {
	Timeout         time.Duration `yaml:"timeout"`
	UserAgent       string        `yaml:"user_agent"`
	FollowRedirects *bool         `yaml:"follow_redirects"`
	SkipTLSVerify   *bool         `yaml:"skip_tls_verify"`
	ProxyURL        string        `yaml:"proxy_url"`
	AllowPrivate    *bool         `yaml:"allow_private_targets"`
	Status          string        `yaml:"status"`
	ContentMatch    string        `yaml:"content_match"`
	RatePerSec      float64       `yaml:"rate_per_sec"`
	RateBurst       int           `yaml:"rate_burst"`
}

// ProbeConfig mirrors the transport knobs from DefaultsConfig so every
// shared default can be overridden per probe. The pointer booleans stay
// nil when unset, which lets an explicit false win over a true default.
type ProbeConfig struct {
	Name            string            `yaml:"name"`
	Target          string            `yaml:"target"`
	Method          string            `yaml:"method"`
	Body            string            `yaml:"body"`
	Headers         map[string]string `yaml:"headers"`
	Status          string            `yaml:"status"`
	ContentMatch    string            `yaml:"content_match"`
	Timeout         time.Duration     `yaml:"timeout"`
	UserAgent       string            `yaml:"user_agent"`
	FollowRedirects *bool             `yaml:"follow_redirects"`
	SkipTLSVerify   *bool             `yaml:"skip_tls_verify"`
	ProxyURL        string            `yaml:"proxy_url"`
	AllowPrivate    *bool             `yaml:"allow_private_targets"`
	Tags            []string          `yaml:"tags"`
}

type HistoryConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

func Defaults() *Config {
	return &Config{
		Defaults: DefaultsConfig{
			Timeout: transport.DefaultTimeout,
		},
		History: HistoryConfig{
			RetentionDays: 90,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the probe file. Unknown keys do not fail the load; they come
// back as warnings so the caller can log them and continue.
func Load(path string) (*Config, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := []byte(os.ExpandEnv(string(data)))

	cfg := Defaults()
	warnings, err := decode(expanded, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, warnings, nil
}

// decode tries a strict pass first so unknown keys surface, then falls
// back to a lax pass keeping those messages as warnings.
func decode(data []byte, cfg *Config) ([]string, error) {
	strict := yaml.NewDecoder(bytes.NewReader(data))
	strict.KnownFields(true)
	err := strict.Decode(cfg)
	if err == nil || errors.Is(err, io.EOF) {
		return nil, nil
	}

	var te *yaml.TypeError
	if !errors.As(err, &te) || !onlyUnknownFields(te) {
		return nil, err
	}

	*cfg = *Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return te.Errors, nil
}

func onlyUnknownFields(te *yaml.TypeError) bool {
	for _, msg := range te.Errors {
		if !strings.Contains(msg, "not found in type") {
			return false
		}
	}
	return len(te.Errors) > 0
}

func (c *Config) Validate() error {
	if len(c.Probes) == 0 {
		return fmt.Errorf("at least one probe is required")
	}
	if c.Defaults.Timeout <= 0 {
		return fmt.Errorf("defaults.timeout must be positive")
	}
	if c.Defaults.RatePerSec < 0 {
		return fmt.Errorf("defaults.rate_per_sec must not be negative")
	}
	if c.History.Path != "" && c.History.RetentionDays <= 0 {
		return fmt.Errorf("history.retention_days must be positive")
	}

	seen := make(map[string]bool, len(c.Probes))
	for i := range c.Probes {
		p := &c.Probes[i]
		if p.Target == "" {
			return fmt.Errorf("probes[%d].target is required", i)
		}
		if _, err := probe.ParseMethod(p.Method); err != nil {
			return fmt.Errorf("probes[%d]: %w", i, err)
		}
		if p.Name == "" {
			p.Name = p.Target
		}
		if seen[p.Name] {
			return fmt.Errorf("probes[%d]: duplicate name %q", i, p.Name)
		}
		seen[p.Name] = true
	}

	return validateLogLevel(c.Logging.Level)
}

func validateLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
}

// SetDefaults maps the defaults section onto probeset defaults.
func (c *Config) SetDefaults() probeset.Defaults {
	return probeset.Defaults{
		Status:       c.Defaults.Status,
		ContentMatch: c.Defaults.ContentMatch,
		Options: transport.Options{
			Timeout:         c.Defaults.Timeout,
			UserAgent:       c.Defaults.UserAgent,
			FollowRedirects: c.Defaults.FollowRedirects,
			SkipTLSVerify:   c.Defaults.SkipTLSVerify,
			ProxyURL:        c.Defaults.ProxyURL,
			AllowPrivate:    c.Defaults.AllowPrivate,
		},
		PacePerSec: c.Defaults.RatePerSec,
		PaceBurst:  c.Defaults.RateBurst,
	}
}

// ProbeConfigs maps the probes section onto engine configs. Validation
// has already normalized names and methods.
func (c *Config) ProbeConfigs() []probe.Config {
	cfgs := make([]probe.Config, 0, len(c.Probes))
	for i := range c.Probes {
		p := &c.Probes[i]
		method, _ := probe.ParseMethod(p.Method)

		cfg := probe.Config{
			Target:       p.Target,
			Method:       method,
			Body:         p.Body,
			Status:       p.Status,
			ContentMatch: p.ContentMatch,
			Name:         p.Name,
			Tags:         p.Tags,
			Options: transport.Options{
				Timeout:         p.Timeout,
				UserAgent:       p.UserAgent,
				FollowRedirects: p.FollowRedirects,
				SkipTLSVerify:   p.SkipTLSVerify,
				ProxyURL:        p.ProxyURL,
				AllowPrivate:    p.AllowPrivate,
			},
		}
		for k, v := range p.Headers {
			if cfg.Header == nil {
				cfg.Header = make(map[string][]string, len(p.Headers))
			}
			cfg.Header.Set(k, v)
		}
		cfgs = append(cfgs, cfg)
	}
	return cfgs
}
