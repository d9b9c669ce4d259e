package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"botgate/internal/adapter/control"
	"botgate/internal/adapter/forward"
	"botgate/internal/adapter/rest"
	"botgate/internal/adapter/store"
	"botgate/internal/adapter/transport"
	"botgate/internal/domain"
	"botgate/internal/infra/config"
	"botgate/internal/infra/middleware"
	"botgate/internal/usecase/gateway"
	"botgate/internal/usecase/scheduling"
	"botgate/pkg/discord"
)

// Runtime holds the long-lived components started by serve.
type Runtime struct {
	Manager   *gateway.Manager
	Hub       *transport.Hub
	Control   *control.Server // nil when the control API is disabled
	Scheduler *scheduling.Scheduler
	Directory *gateway.Directory // nil unless forward.log_events is set
	Bots      map[string]control.Bot
	// AutoConnect lists the configured bots connected at startup, in
	// config order.
	AutoConnect []string
}

// buildBots turns the configured bots into control-API bot entries keyed
// by name.
func buildBots(bots []config.BotConfig) (map[string]control.Bot, []string, error) {
	out := make(map[string]control.Bot, len(bots))
	var auto []string
	for _, b := range bots {
		intents, err := discord.ParseIntents(b.Intents)
		if err != nil {
			return nil, nil, fmt.Errorf("bot %s: %w", b.Name, err)
		}
		owner := b.Owner
		if owner == "" {
			owner = b.Name
		}
		out[b.Name] = control.Bot{
			ID:    domain.SessionID{Token: b.Token, Intents: intents},
			Owner: owner,
		}
		if !b.Manual {
			auto = append(auto, b.Name)
		}
	}
	return out, auto, nil
}

func initResolver(cfg *config.Config, log *slog.Logger) domain.EndpointResolver {
	if cfg.Resolver.Static {
		return rest.StaticResolver(cfg.Gateway.DefaultURL)
	}
	return rest.NewResolver(rest.Config{
		APIBase:     cfg.Gateway.APIBase,
		Timeout:     cfg.Resolver.Timeout,
		MaxFailures: cfg.Resolver.Breaker.MaxFailures,
		OpenFor:     cfg.Resolver.Breaker.OpenFor,
		Window:      cfg.Resolver.Breaker.Window,
	}, rest.NewHTTPClient(cfg.Resolver.Timeout), log)
}

// initStore opens the snapshot store. A nil store means persistence is
// off.
func initStore(cfg config.StoreConfig) (domain.SessionStore, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case "none":
		return nil, noop, nil
	case "memory":
		return store.NewMemoryStore(), noop, nil
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
			return nil, nil, fmt.Errorf("create store dir: %w", err)
		}
		s, err := store.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
}

// logConsumer is the in-process consumer registered per owner when
// forward.log_events is set.
func logConsumer(log *slog.Logger, owner string) domain.Forwarder {
	log = log.With("owner", owner)
	return domain.ForwarderFunc(func(_ context.Context, d domain.Delivery) error {
		attrs := []any{"event", d.Event, "session", d.Session.Fingerprint()}
		if d.Sequence != nil {
			attrs = append(attrs, "seq", *d.Sequence)
		}
		log.Info("gateway event", attrs...)
		return nil
	})
}

func controlTokens(tokens []config.TokenConfig) []control.TokenEntry {
	out := make([]control.TokenEntry, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, control.TokenEntry{Token: t.Token, Name: t.Name, Roles: t.Roles})
	}
	return out
}

// initRuntime wires the transport, resolver, store, forwarders, session
// manager, control API and maintenance scheduler. The returned cleanup
// snapshots every session, stops them and releases resources in reverse
// order.
func initRuntime(cfg *config.Config, bus domain.EventBus, log *slog.Logger) (*Runtime, func(context.Context) error, error) {
	rt := &Runtime{}
	var closers []func(context.Context) error
	cleanup := func(ctx context.Context) error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (*Runtime, func(context.Context) error, error) {
		_ = cleanup(context.Background())
		return nil, nil, err
	}

	bots, auto, err := buildBots(cfg.Bots)
	if err != nil {
		return fail(err)
	}
	rt.Bots = bots
	rt.AutoConnect = auto

	// Transport
	hub, err := transport.New(transport.Config{
		Driver:      cfg.Gateway.Driver,
		ReadLimit:   cfg.Gateway.ReadLimit,
		DialTimeout: cfg.Gateway.DialTimeout,
	}, log)
	if err != nil {
		return fail(fmt.Errorf("transport: %w", err))
	}
	rt.Hub = hub
	closers = append(closers, func(context.Context) error {
		hub.Shutdown()
		return nil
	})

	// Snapshot store
	snapshots, storeClose, err := initStore(cfg.Store)
	if err != nil {
		return fail(fmt.Errorf("store: %w", err))
	}
	closers = append(closers, func(context.Context) error { return storeClose() })

	// Forwarders
	var targets forward.Fanout
	if cfg.Forward.LogEvents {
		rt.Directory = gateway.NewDirectory(log)
		registered := make(map[string]bool)
		for _, name := range sortedBotNames(bots) {
			owner := bots[name].Owner
			if registered[owner] {
				continue
			}
			registered[owner] = true
			rt.Directory.Register(owner, logConsumer(log, owner))
		}
		targets = append(targets, rt.Directory)
	}
	if cfg.Control.Enabled {
		auth := control.NewStaticTokenAuth(controlTokens(cfg.Control.Tokens))
		rt.Control = control.NewServer(bus, auth, cfg.Control.Addr, cfg.Control.Origins, log)
		rt.Control.SetRateLimit(middleware.RateLimitConfig{
			RequestsPerMin: cfg.Control.RateLimit.RequestsPerMin,
			Burst:          cfg.Control.RateLimit.Burst,
			TrustedProxies: cfg.Control.RateLimit.TrustedProxies,
		})
		targets = append(targets, rt.Control)
	}
	if cfg.Forward.NATS.URL != "" {
		nf, err := forward.NewNATSForwarder(forward.NATSConfig{
			URL:           cfg.Forward.NATS.URL,
			Token:         cfg.Forward.NATS.Token,
			SubjectPrefix: cfg.Forward.NATS.SubjectPrefix,
		}, log)
		if err != nil {
			return fail(fmt.Errorf("nats: %w", err))
		}
		targets = append(targets, nf)
		closers = append(closers, func(context.Context) error { return nf.Close() })
	}
	var forwarder domain.Forwarder
	switch len(targets) {
	case 0:
	case 1:
		forwarder = targets[0]
	default:
		forwarder = targets
	}

	// Session manager
	opts := []gateway.Option{gateway.WithBus(bus)}
	if snapshots != nil {
		opts = append(opts, gateway.WithStore(snapshots))
	}
	rt.Manager = gateway.NewManager(gateway.Config{
		DefaultURL:      cfg.Gateway.DefaultURL,
		ZombieDetection: cfg.Gateway.Heartbeat.ZombieDetection,
		LargeThreshold:  cfg.Gateway.LargeThreshold,
		SendLimit:       cfg.Gateway.Send.Limit,
		SendWindow:      cfg.Gateway.Send.Window,
		SendBurst:       cfg.Gateway.Send.Burst,
		RetryInitial:    cfg.Gateway.Retry.Initial,
		RetryMax:        cfg.Gateway.Retry.Max,
	}, hub, initResolver(cfg, log), forwarder, log, opts...)

	// Control API
	if rt.Control != nil {
		control.RegisterHandlers(rt.Control, control.HandlerDeps{Sessions: rt.Manager, Bots: bots})
		control.RegisterRESTHandlers(rt.Control, rt.Manager, bus)
		srv := rt.Control
		closers = append(closers, func(ctx context.Context) error { return srv.Stop(ctx) })
	}

	// Maintenance scheduler
	rt.Scheduler = scheduling.NewScheduler(log)
	if snapshots != nil {
		if err := initMaintenance(rt.Scheduler, rt.Manager, cfg.Store, log); err != nil {
			return fail(fmt.Errorf("scheduler: %w", err))
		}
	}

	// Sessions stop before the transport and store close. A last snapshot
	// keeps the newest sequence numbers for the next start.
	mgr := rt.Manager
	closers = append(closers, func(ctx context.Context) error {
		_ = rt.Scheduler.Stop()
		var errs []error
		if snapshots != nil {
			if err := mgr.SnapshotAll(ctx); err != nil {
				errs = append(errs, fmt.Errorf("final snapshot: %w", err))
			}
		}
		if err := mgr.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown sessions: %w", err))
		}
		return errors.Join(errs...)
	})

	return rt, cleanup, nil
}

// initMaintenance registers the snapshot and prune actions and schedules
// them as configured.
func initMaintenance(s *scheduling.Scheduler, mgr *gateway.Manager, cfg config.StoreConfig, log *slog.Logger) error {
	s.RegisterAction(scheduling.ActionSnapshotSessions, mgr.SnapshotAll)
	s.RegisterAction(scheduling.ActionPruneSnapshots, func(ctx context.Context) error {
		n, err := mgr.PruneSnapshots(ctx, cfg.PruneAfter)
		if n > 0 {
			log.Info("pruned stale resume snapshots", "count", n, "older_than", cfg.PruneAfter)
		}
		return err
	})

	if cfg.SnapshotSchedule != "" {
		if err := s.AddTask(scheduling.Task{
			Name:     "snapshot-sessions",
			Schedule: cfg.SnapshotSchedule,
			Action:   scheduling.ActionSnapshotSessions,
		}); err != nil {
			return err
		}
	}
	if cfg.PruneSchedule != "" {
		if err := s.AddTask(scheduling.Task{
			Name:     "prune-snapshots",
			Schedule: cfg.PruneSchedule,
			Action:   scheduling.ActionPruneSnapshots,
		}); err != nil {
			return err
		}
	}
	return nil
}

// connectBots connects the named bots and reports how many succeeded.
// A failing bot is logged and does not stop the others.
func connectBots(ctx context.Context, sessions control.SessionService, bots map[string]control.Bot, names []string, log *slog.Logger) int {
	ok := 0
	for _, name := range names {
		b, found := bots[name]
		if !found {
			continue
		}
		if err := sessions.Connect(ctx, b.ID, b.Owner); err != nil {
			log.Error("bot connect failed", "bot", name, "session", b.ID.Fingerprint(), "error", err)
			continue
		}
		log.Info("bot connecting", "bot", name, "owner", b.Owner, "session", b.ID.Fingerprint())
		ok++
	}
	return ok
}
