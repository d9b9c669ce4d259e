package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"botgate/internal/domain"
	"botgate/pkg/discord"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	validateGateway(cfg, ve)
	validateResolver(cfg, ve)
	validateStore(cfg, ve)
	validateForward(cfg, ve)
	validateControl(cfg, ve)
	validateBots(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true, "": true}
	validLogFormats = map[string]bool{"json": true, "text": true, "": true}
	validExporters  = map[string]bool{"noop": true, "stdout": true, "": true}
	validDrivers    = map[string]bool{"nhooyr": true, "gorilla": true, "": true}
	validBackends   = map[string]bool{"sqlite": true, "memory": true, "none": true}
)

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is invalid (want: debug, info, warn, error)", cfg.Logger.Level)
	}
	if !validLogFormats[strings.ToLower(cfg.Logger.Format)] {
		ve.Add("logger.format %q is invalid (want: json, text)", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if !cfg.Tracer.Enabled {
		return
	}
	if !validExporters[cfg.Tracer.Exporter] {
		ve.Add("tracer.exporter %q is invalid (want: noop, stdout)", cfg.Tracer.Exporter)
	}
	if cfg.Tracer.SampleRatio < 0 || cfg.Tracer.SampleRatio > 1 {
		ve.Add("tracer.sample_ratio must be between 0 and 1 (got %g)", cfg.Tracer.SampleRatio)
	}
}

func validateGateway(cfg *Config, ve *ValidationError) {
	g := cfg.Gateway
	if u, err := url.Parse(g.DefaultURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		ve.Add("gateway.default_url %q must be a ws:// or wss:// URL", g.DefaultURL)
	}
	if g.APIBase != "" {
		if u, err := url.Parse(g.APIBase); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			ve.Add("gateway.api_base %q must be an http:// or https:// URL", g.APIBase)
		}
	}
	if !validDrivers[g.Driver] {
		ve.Add("gateway.driver %q is invalid (want: nhooyr, gorilla)", g.Driver)
	}
	if g.ReadLimit < 0 {
		ve.Add("gateway.read_limit must be >= 0")
	}
	if g.Send.Limit <= 0 {
		ve.Add("gateway.send.limit must be > 0")
	}
	if g.Send.Window <= 0 {
		ve.Add("gateway.send.window must be > 0")
	}
	if g.Send.Burst < 0 {
		ve.Add("gateway.send.burst must be >= 0")
	}
	if g.Retry.Initial <= 0 {
		ve.Add("gateway.retry.initial must be > 0")
	}
	if g.Retry.Max < g.Retry.Initial {
		ve.Add("gateway.retry.max (%s) must be >= gateway.retry.initial (%s)", g.Retry.Max, g.Retry.Initial)
	}
}

func validateResolver(cfg *Config, ve *ValidationError) {
	if cfg.Resolver.Static {
		return
	}
	if cfg.Resolver.Timeout <= 0 {
		ve.Add("resolver.timeout must be > 0")
	}
	if cfg.Resolver.Breaker.MaxFailures == 0 {
		ve.Add("resolver.breaker.max_failures must be > 0")
	}
	if cfg.Resolver.Breaker.OpenFor <= 0 {
		ve.Add("resolver.breaker.open_for must be > 0")
	}
}

func validateStore(cfg *Config, ve *ValidationError) {
	s := cfg.Store
	if !validBackends[s.Backend] {
		ve.Add("store.backend %q is invalid (want: sqlite, memory, none)", s.Backend)
		return
	}
	if s.Backend == "none" {
		return
	}
	if s.Backend == "sqlite" && s.Path == "" {
		ve.Add("store.path is required for the sqlite backend")
	}
	if s.SnapshotSchedule != "" && !validSchedule(s.SnapshotSchedule) {
		ve.Add("store.snapshot_schedule %q is not a cron expression or duration", s.SnapshotSchedule)
	}
	if s.PruneSchedule != "" {
		if !validSchedule(s.PruneSchedule) {
			ve.Add("store.prune_schedule %q is not a cron expression or duration", s.PruneSchedule)
		}
		if s.PruneAfter <= 0 {
			ve.Add("store.prune_after must be > 0 when store.prune_schedule is set")
		}
	}
}

// validSchedule accepts the same forms as the maintenance scheduler.
func validSchedule(schedule string) bool {
	if d, err := time.ParseDuration(schedule); err == nil {
		return d > 0
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	_, err := parser.Parse(schedule)
	return err == nil
}

func validateForward(cfg *Config, ve *ValidationError) {
	n := cfg.Forward.NATS
	if n.URL == "" {
		return
	}
	for _, server := range strings.Split(n.URL, ",") {
		u, err := url.Parse(strings.TrimSpace(server))
		if err != nil || u.Host == "" {
			ve.Add("forward.nats.url %q is not a valid server URL", server)
		}
	}
	if strings.ContainsAny(n.SubjectPrefix, " *>") {
		ve.Add("forward.nats.subject_prefix %q must not contain spaces or wildcards", n.SubjectPrefix)
	}
}

func validateControl(cfg *Config, ve *ValidationError) {
	c := cfg.Control
	if !c.Enabled {
		return
	}
	if c.Addr == "" {
		ve.Add("control.addr is required when control is enabled")
	} else if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		ve.Add("control.addr %q is not a valid host:port", c.Addr)
	}
	if len(c.Tokens) == 0 {
		ve.Add("control.tokens must have at least one entry when control is enabled")
	}
	if c.RateLimit.RequestsPerMin < 0 {
		ve.Add("control.rate_limit.requests_per_min must be >= 0")
	}
	if c.RateLimit.Burst < 0 {
		ve.Add("control.rate_limit.burst must be >= 0")
	}
	for _, p := range c.RateLimit.TrustedProxies {
		if net.ParseIP(strings.TrimSpace(p)) == nil {
			ve.Add("control.rate_limit.trusted_proxies: %q is not an IP address", p)
		}
	}
	names := make(map[string]bool)
	for i, t := range c.Tokens {
		if t.Token == "" {
			ve.Add("control.tokens[%d].token is required", i)
		}
		if t.Name == "" {
			ve.Add("control.tokens[%d].name is required", i)
		} else if names[t.Name] {
			ve.Add("control.tokens[%d]: duplicate name %q", i, t.Name)
		}
		names[t.Name] = true
		for _, r := range t.Roles {
			if !domain.IsValidAuthRole(r) {
				ve.Add("control.tokens[%d].roles: unknown role %q", i, r)
			}
		}
	}
}

func validateBots(cfg *Config, ve *ValidationError) {
	seen := make(map[string]bool)
	for i, b := range cfg.Bots {
		if b.Name == "" {
			ve.Add("bots[%d].name is required", i)
		} else if seen[b.Name] {
			ve.Add("bots[%d]: duplicate bot name %q", i, b.Name)
		}
		seen[b.Name] = true

		if b.Token == "" {
			ve.Add("bots[%d].token is required (or set %s)", i, BotTokenEnv(b.Name))
		} else if strings.HasPrefix(b.Token, "enc:") {
			ve.Add("bots[%d].token is encrypted but %s is not set", i, MasterKeyEnv)
		}
		if _, err := discord.ParseIntents(b.Intents); err != nil {
			ve.Add("bots[%d].intents: %v", i, err)
		}
	}
}
