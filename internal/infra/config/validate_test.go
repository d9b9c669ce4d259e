package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidateDefaultsPass(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("Defaults should pass validation: %v", err)
	}
}

func validConfig() *Config {
	cfg := Defaults()
	cfg.Control.Enabled = true
	cfg.Control.Tokens = []TokenConfig{{Name: "ops", Token: "t", Roles: []string{"admin"}}}
	cfg.Bots = []BotConfig{{Name: "music", Token: "tok", Intents: []string{"guilds"}, Owner: "music"}}
	return cfg
}

func TestValidateFullConfigPasses(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Logger.Level = "loud"
	cfg.Gateway.Driver = "curl"
	cfg.Store.Backend = "postgres"

	err := Validate(cfg)
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("err = %T, want *ValidationError", err)
	}
	if len(ve.Errors) != 3 {
		t.Errorf("errors = %v, want 3", ve.Errors)
	}
	assertContains(t, err.Error(), "logger.level")
	assertContains(t, err.Error(), "gateway.driver")
	assertContains(t, err.Error(), "store.backend")
}

func TestValidateLogger(t *testing.T) {
	cfg := validConfig()
	cfg.Logger.Format = "xml"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), `logger.format "xml" is invalid`)
}

func TestValidateTracer(t *testing.T) {
	cfg := validConfig()
	cfg.Tracer = TracerConfig{Enabled: true, Exporter: "jaeger", SampleRatio: 2}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "tracer.exporter")
	assertContains(t, err.Error(), "tracer.sample_ratio")

	// Disabled tracing is not checked.
	cfg.Tracer.Enabled = false
	if err := Validate(cfg); err != nil {
		t.Errorf("disabled tracer: %v", err)
	}
}

func TestValidateGatewayURLs(t *testing.T) {
	tests := []struct {
		defaultURL, apiBase string
		want                string
	}{
		{"https://gateway.discord.gg", "", "gateway.default_url"},
		{"wss://", "", "gateway.default_url"},
		{"ws://127.0.0.1:9000", "ftp://x", "gateway.api_base"},
		{"ws://127.0.0.1:9000", "discord.com/api", "gateway.api_base"},
	}
	for _, tt := range tests {
		cfg := validConfig()
		cfg.Gateway.DefaultURL = tt.defaultURL
		cfg.Gateway.APIBase = tt.apiBase
		err := Validate(cfg)
		if err == nil {
			t.Errorf("%s / %s: expected error", tt.defaultURL, tt.apiBase)
			continue
		}
		assertContains(t, err.Error(), tt.want)
	}

	cfg := validConfig()
	cfg.Gateway.DefaultURL = "ws://127.0.0.1:9000"
	cfg.Gateway.APIBase = "http://127.0.0.1:9001/api/v9"
	if err := Validate(cfg); err != nil {
		t.Errorf("local endpoints: %v", err)
	}
}

func TestValidateGatewayLimits(t *testing.T) {
	cfg := validConfig()
	cfg.Gateway.Send = SendConfig{Limit: 0, Window: 0, Burst: -1}
	cfg.Gateway.Retry = RetryConfig{Initial: time.Minute, Max: time.Second}
	cfg.Gateway.ReadLimit = -1

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		"gateway.send.limit must be > 0",
		"gateway.send.window must be > 0",
		"gateway.send.burst must be >= 0",
		"gateway.retry.max",
		"gateway.read_limit",
	} {
		assertContains(t, err.Error(), want)
	}
}

func TestValidateResolver(t *testing.T) {
	cfg := validConfig()
	cfg.Resolver.Timeout = 0
	cfg.Resolver.Breaker.MaxFailures = 0
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "resolver.timeout")
	assertContains(t, err.Error(), "resolver.breaker.max_failures")

	cfg.Resolver.Static = true
	if err := Validate(cfg); err != nil {
		t.Errorf("static resolver skips checks: %v", err)
	}
}

func TestValidateStore(t *testing.T) {
	cfg := validConfig()
	cfg.Store.Path = ""
	cfg.Store.SnapshotSchedule = "every so often"
	cfg.Store.PruneSchedule = "*/5 * * * *"
	cfg.Store.PruneAfter = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "store.path is required")
	assertContains(t, err.Error(), "store.snapshot_schedule")
	assertContains(t, err.Error(), "store.prune_after")
	if strings.Contains(err.Error(), "store.prune_schedule") {
		t.Errorf("cron prune schedule should be accepted: %v", err)
	}
}

func TestValidateStoreNoneSkipsChecks(t *testing.T) {
	cfg := validConfig()
	cfg.Store = StoreConfig{Backend: "none", SnapshotSchedule: "bogus"}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidSchedule(t *testing.T) {
	for schedule, want := range map[string]bool{
		"30s":          true,
		"@hourly":      true,
		"@every 1m":    true,
		"0 3 * * *":    true,
		"-5s":          false,
		"0s":           false,
		"* * *":        false,
		"tomorrow-ish": false,
	} {
		if got := validSchedule(schedule); got != want {
			t.Errorf("validSchedule(%q) = %v, want %v", schedule, got, want)
		}
	}
}

func TestValidateForward(t *testing.T) {
	cfg := validConfig()
	cfg.Forward.NATS.URL = "nats://a:4222, nats://b:4222"
	if err := Validate(cfg); err != nil {
		t.Errorf("cluster url: %v", err)
	}

	cfg.Forward.NATS.URL = "::nope"
	cfg.Forward.NATS.SubjectPrefix = "events.>"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "forward.nats.url")
	assertContains(t, err.Error(), "forward.nats.subject_prefix")
}

func TestValidateControl(t *testing.T) {
	cfg := validConfig()
	cfg.Control.Addr = "no-port"
	cfg.Control.Tokens = []TokenConfig{
		{Name: "ops", Token: "a", Roles: []string{"root"}},
		{Name: "ops", Token: ""},
		{Token: "c"},
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		`control.addr "no-port" is not a valid host:port`,
		`control.tokens[0].roles: unknown role "root"`,
		`control.tokens[1]: duplicate name "ops"`,
		"control.tokens[1].token is required",
		"control.tokens[2].name is required",
	} {
		assertContains(t, err.Error(), want)
	}
}

func TestValidateControlRateLimit(t *testing.T) {
	cfg := validConfig()
	cfg.Control.RateLimit = RateLimitConfig{
		RequestsPerMin: -1,
		Burst:          -2,
		TrustedProxies: []string{"10.0.0.1", "proxy.local"},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "control.rate_limit.requests_per_min must be >= 0")
	assertContains(t, err.Error(), "control.rate_limit.burst must be >= 0")
	assertContains(t, err.Error(), `"proxy.local" is not an IP address`)
	if strings.Contains(err.Error(), `"10.0.0.1"`) {
		t.Error("valid proxy IP reported as invalid")
	}
}

func TestValidateControlRequiresTokens(t *testing.T) {
	cfg := validConfig()
	cfg.Control.Tokens = nil
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	assertContains(t, err.Error(), "control.tokens must have at least one entry")

	cfg.Control.Enabled = false
	if err := Validate(cfg); err != nil {
		t.Errorf("disabled control: %v", err)
	}
}

func TestValidateBots(t *testing.T) {
	cfg := validConfig()
	cfg.Bots = append(cfg.Bots,
		BotConfig{Name: "music", Token: "dup"},
		BotConfig{Name: "", Token: "x"},
		BotConfig{Name: "quiet"},
		BotConfig{Name: "locked", Token: "enc:aa:bb"},
		BotConfig{Name: "psychic", Token: "x", Intents: []string{"telepathy"}},
	)

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		`bots[1]: duplicate bot name "music"`,
		"bots[2].name is required",
		"bots[3].token is required (or set BOTGATE_BOT_QUIET_TOKEN)",
		"bots[4].token is encrypted but BOTGATE_MASTER_KEY is not set",
		`bots[5].intents: unknown intent "telepathy"`,
	} {
		assertContains(t, err.Error(), want)
	}
}

func TestValidationErrorFormat(t *testing.T) {
	ve := &ValidationError{}
	if ve.HasErrors() {
		t.Error("empty ValidationError has errors")
	}
	ve.Add("a %d", 1)
	ve.Add("b")
	if got := ve.Error(); got != "config validation failed:\n  - a 1\n  - b" {
		t.Errorf("Error() = %q", got)
	}
}

func assertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("expected %q to contain %q", s, substr)
	}
}
