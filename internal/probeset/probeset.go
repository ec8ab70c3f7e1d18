// Package probeset fans a single run out across many configured probes.
// It merges shared defaults into per-probe overrides at construction time
// and then only calls each diagnostic once, in order; scheduling and
// aggregation of the collected results belong to the caller.
package probeset

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/y0f/webprobe/internal/probe"
	"github.com/y0f/webprobe/internal/transport"
)

// Defaults apply to every probe that does not override them.
type Defaults struct {
	Status       string
	ContentMatch string
	Options      transport.Options

	// PacePerSec throttles outbound requests across the set; zero means
	// no pacing.
	PacePerSec float64
	PaceBurst  int
}

// Outcome pairs one probe's judgement with its identity. Err is set only
// for transport-level failures where no response existed to evaluate.
type Outcome struct {
	Name   string
	Result probe.Result
	Err    error
}

// Set is an ordered collection of configured diagnostics.
type Set struct {
	diags   []*probe.Diagnostic
	limiter *rate.Limiter
}

// New merges defaults into each config and constructs all diagnostics up
// front, so a bad entry fails the whole set before anything runs.
func New(defaults Defaults, cfgs []probe.Config) (*Set, error) {
	s := &Set{}
	if defaults.PacePerSec > 0 {
		burst := defaults.PaceBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(defaults.PacePerSec), burst)
	}

	for _, cfg := range cfgs {
		d, err := probe.New(merge(defaults, cfg))
		if err != nil {
			return nil, err
		}
		s.diags = append(s.diags, d)
	}
	return s, nil
}

// Len reports the number of probes in the set.
func (s *Set) Len() int { return len(s.diags) }

// Run calls every diagnostic once, in order, and collects the outcomes.
// A failed probe never stops the rest of the set.
func (s *Set) Run(ctx context.Context) []Outcome {
	out := make([]Outcome, 0, len(s.diags))
	for _, d := range s.diags {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				out = append(out, Outcome{Name: d.Name(), Err: err})
				continue
			}
		}
		res, err := d.Run(ctx)
		out = append(out, Outcome{Name: d.Name(), Result: res, Err: err})
	}
	return out
}

// Overall reduces outcomes to a single status. Transport failures count
// as CRITICAL for the rollup even though they carry no probe result.
func Overall(outs []Outcome) probe.Status {
	status := probe.StatusOK
	for _, o := range outs {
		if o.Err != nil {
			return probe.StatusCritical
		}
		if o.Result.Status > status {
			status = o.Result.Status
		}
	}
	return status
}

func merge(defaults Defaults, cfg probe.Config) probe.Config {
	if cfg.Status == "" {
		cfg.Status = defaults.Status
	}
	if cfg.ContentMatch == "" && cfg.Content == nil {
		cfg.ContentMatch = defaults.ContentMatch
	}

	opts := &cfg.Options
	def := defaults.Options
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.FollowRedirects == nil {
		opts.FollowRedirects = def.FollowRedirects
	}
	if opts.SkipTLSVerify == nil {
		opts.SkipTLSVerify = def.SkipTLSVerify
	}
	if opts.ProxyURL == "" {
		opts.ProxyURL = def.ProxyURL
	}
	if opts.AllowPrivate == nil {
		opts.AllowPrivate = def.AllowPrivate
	}
	return cfg
}
