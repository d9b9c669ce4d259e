package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"botgate/internal/adapter/store"
	"botgate/internal/infra/config"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

// runDoctor executes all health checks and reports results.
func runDoctor() error {
	cfgPath := configPath()

	// Some checks still run on a config that failed to load.
	cfg, cfgErr := config.Load(cfgPath)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "Bots", Fn: checkBots},
		{Name: "Gateway endpoint", Fn: checkGatewayEndpoint},
		{Name: "Snapshot store", Fn: checkStore},
		{Name: "Control API", Fn: checkControlAddr},
		{Name: "NATS", Fn: checkNATS},
	}

	fmt.Println("botgate doctor")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name

		fmt.Printf("  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Printf("      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		return fmt.Errorf("%d check(s) failed", fail)
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

// checkConfigFile returns a check that verifies the config file exists and parses correctly.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config file not found at %s", cfgPath),
				Fix:     "Create botgate.yaml or pass --config PATH",
			}
		}
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     "Run 'botgate validate' for the full list of problems",
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

// checkBots verifies at least one bot is declared and its intents parse.
func checkBots(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "no config loaded"}
	}
	if len(cfg.Bots) == 0 {
		return CheckResult{
			Status:  StatusWarn,
			Message: "no bots configured; sessions can only be opened over the control API",
			Fix:     "Add a bots: entry with name, token and intents",
		}
	}
	bots, auto, err := buildBots(cfg.Bots)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: err.Error()}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%d bot(s), %d connect at startup", len(bots), len(auto)),
	}
}

// checkGatewayEndpoint resolves the gateway URL with the first bot's token.
func checkGatewayEndpoint(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "no config loaded"}
	}
	if cfg.Resolver.Static {
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("static resolver, dialing %s", cfg.Gateway.DefaultURL),
		}
	}
	if len(cfg.Bots) == 0 {
		return CheckResult{Status: StatusWarn, Message: "no bot token to resolve with, check skipped"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	resolver := initResolver(cfg, quiet)
	gw, err := resolver.ResolveGateway(ctx, cfg.Bots[0].Token)
	if err != nil {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("GET /gateway/bot failed (%v), sessions will dial %s", err, cfg.Gateway.DefaultURL),
			Fix:     "Check the bot token and network access to the Discord API",
		}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("gateway URL %s", gw)}
}

// checkStore opens the configured snapshot store and lists its contents.
func checkStore(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "no config loaded"}
	}
	switch cfg.Store.Backend {
	case "none":
		return CheckResult{
			Status:  StatusWarn,
			Message: "persistence disabled, sessions identify again after a restart",
		}
	case "memory":
		return CheckResult{
			Status:  StatusWarn,
			Message: "memory store, resume snapshots are lost on restart",
			Fix:     "Set store.backend: sqlite",
		}
	}

	if _, err := os.Stat(cfg.Store.Path); os.IsNotExist(err) {
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("%s does not exist yet, created on first serve", cfg.Store.Path),
		}
	}
	s, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot open %s: %v", cfg.Store.Path, err),
			Fix:     "Check store.path permissions",
		}
	}
	defer s.Close()

	snaps, err := s.List(context.Background())
	if err != nil {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("list snapshots: %v", err)}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s holds %d resume snapshot(s)", cfg.Store.Path, len(snaps)),
	}
}

// checkControlAddr verifies the control API address can be bound.
func checkControlAddr(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "no config loaded"}
	}
	if !cfg.Control.Enabled {
		return CheckResult{Status: StatusPass, Message: "control API disabled"}
	}
	ln, err := net.Listen("tcp", cfg.Control.Addr)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot bind %s: %v", cfg.Control.Addr, err),
			Fix:     "Stop the process using the port or change control.addr",
		}
	}
	ln.Close()
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%s is free", cfg.Control.Addr)}
}

// checkNATS dials the first configured NATS server.
func checkNATS(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "no config loaded"}
	}
	if cfg.Forward.NATS.URL == "" {
		return CheckResult{Status: StatusPass, Message: "NATS forwarding disabled"}
	}
	first := strings.TrimSpace(strings.Split(cfg.Forward.NATS.URL, ",")[0])
	u, err := url.Parse(first)
	if err != nil || u.Host == "" {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("invalid server URL %q", first)}
	}
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "4222")
	}

	conn, err := net.DialTimeout("tcp", host, 5*time.Second)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot reach %s: %v", host, err),
			Fix:     "Start the NATS server or correct forward.nats.url",
		}
	}
	conn.Close()
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%s reachable", host)}
}
