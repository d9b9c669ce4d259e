// Package gateway runs the Discord gateway session state machine for many
// bots at once. Each session is driven by its own goroutine fed through a
// mailbox; the Manager routes transport events to those mailboxes and
// exposes the consumer API.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"botgate/internal/domain"
	"botgate/internal/infra/tracer"
	"botgate/pkg/discord"
)

// Config tunes the session state machine. Zero values fall back to the
// defaults noted on each field, except ZombieDetection which stays off.
type Config struct {
	DefaultURL      string        // used when resolution fails (default: discord.DefaultGatewayURL)
	ZombieDetection bool          // reconnect when a heartbeat goes unacknowledged
	LargeThreshold  int           // Identify large_threshold (default: 50)
	SendLimit       int           // consumer sends per SendWindow (default: 120)
	SendWindow      time.Duration // (default: 60s)
	SendBurst       int           // (default: SendLimit)
	RetryInitial    time.Duration // first reopen retry delay (default: 1s)
	RetryMax        time.Duration // reopen retry delay cap (default: 2m)
}

func (c *Config) applyDefaults() {
	if c.DefaultURL == "" {
		c.DefaultURL = discord.DefaultGatewayURL
	}
	if c.LargeThreshold <= 0 {
		c.LargeThreshold = discord.DefaultLargeThreshold
	}
	if c.SendLimit <= 0 {
		c.SendLimit = 120
	}
	if c.SendWindow <= 0 {
		c.SendWindow = 60 * time.Second
	}
	if c.SendBurst <= 0 {
		c.SendBurst = c.SendLimit
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = time.Second
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 2 * time.Minute
	}
}

// Option configures optional Manager collaborators.
type Option func(*Manager)

// WithStore enables resume snapshot persistence.
func WithStore(store domain.SessionStore) Option {
	return func(m *Manager) { m.store = store }
}

// WithBus publishes lifecycle events.
func WithBus(bus domain.EventBus) Option {
	return func(m *Manager) { m.bus = bus }
}

// WithClock replaces the wall clock used for heartbeats and retries.
func WithClock(clock Clock) Option {
	return func(m *Manager) { m.clock = clock }
}

// Manager owns every session and the routing from transport channels to
// sessions. All methods are safe for concurrent use.
type Manager struct {
	cfg       Config
	transport domain.Transport
	resolver  domain.EndpointResolver
	forwarder domain.Forwarder
	store     domain.SessionStore
	bus       domain.EventBus
	clock     Clock
	registry  *Registry
	logger    *slog.Logger

	// mu serializes registration so that a restart and a fresh connect for
	// the same id cannot interleave.
	mu sync.Mutex
}

// NewManager creates a Manager. resolver and forwarder may be nil: sessions
// then connect to the default URL and domain events are discarded.
func NewManager(cfg Config, transport domain.Transport, resolver domain.EndpointResolver, forwarder domain.Forwarder, logger *slog.Logger, opts ...Option) *Manager {
	cfg.applyDefaults()
	m := &Manager{
		cfg:       cfg,
		transport: transport,
		resolver:  resolver,
		forwarder: forwarder,
		clock:     RealClock(),
		registry:  NewRegistry(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry exposes the session/channel routing table.
func (m *Manager) Registry() *Registry { return m.registry }

// Run routes transport events to their sessions until ctx is cancelled or
// the transport's event stream ends.
func (m *Manager) Run(ctx context.Context) error {
	events := m.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			m.route(ev)
		}
	}
}

func (m *Manager) route(ev domain.TransportEvent) {
	s := m.registry.sessionFor(ev.Channel)
	if s == nil {
		m.logger.Debug("transport event for unknown channel", "channel", ev.Channel, "kind", int(ev.Kind))
		return
	}
	var msg any
	switch ev.Kind {
	case domain.FramePushed:
		msg = frameMsg{epoch: ev.Epoch, payload: ev.Payload}
	case domain.ChannelClosed:
		msg = closedMsg{epoch: ev.Epoch}
	default:
		return
	}
	if !s.mb.put(msg) {
		m.logger.Debug("session stopped, dropping transport event", "session", s.id.Fingerprint())
	}
}

// Connect registers id and opens its gateway connection. It returns once
// the transport is open; the handshake continues in the background. A
// session that stopped after a fatal error is restarted. When ctx ends
// before the open completes, Connect fails and the session is unregistered,
// so the caller may retry.
func (m *Manager) Connect(ctx context.Context, id domain.SessionID, owner string) error {
	ctx, span := tracer.StartSpan(ctx, "gateway.connect",
		trace.WithAttributes(tracer.StringAttr("session", id.Fingerprint()), tracer.StringAttr("owner", owner)))
	defer span.End()

	s, err := m.acquire(id)
	if err != nil {
		tracer.RecordError(span, err)
		return err
	}

	var seed *domain.ResumeSnapshot
	if m.store != nil {
		snap, err := m.store.Load(ctx, id.Key())
		switch {
		case err == nil:
			seed = snap
		case !errors.Is(err, domain.ErrNotFound):
			m.logger.Warn("load resume snapshot failed", "session", id.Fingerprint(), "error", err)
		}
	}

	reply := make(chan error, 1)
	if !s.mb.put(connectMsg{ctx: ctx, owner: owner, seed: seed, reply: reply}) {
		err := domain.NewSubSystemError("registry", "Manager.Connect", domain.ErrSessionNotFound, id.Fingerprint())
		tracer.RecordError(span, err)
		return err
	}

	// The reply is awaited even after ctx ends: the session sees the same
	// ctx, fails its open or tears itself down, and answers promptly. An
	// error therefore always means the session is not live.
	err = <-reply
	if err != nil {
		tracer.RecordError(span, err)
		return domain.WrapOp("gateway.connect", err)
	}
	tracer.SetOK(span)
	m.logger.Info("session connecting", "session", id.Fingerprint(), "owner", owner, "channel", s.channel)
	return nil
}

func (m *Manager) acquire(id domain.SessionID) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s := m.registry.session(id); s != nil {
		if !s.state.CompareAndSwap(int32(domain.StateDisconnected), int32(domain.StateConnecting)) {
			return nil, domain.NewSubSystemError("registry", "Manager.Connect", domain.ErrSessionDuplicate, id.Fingerprint())
		}
		return s, nil
	}

	ch, err := m.registry.Register(id)
	if err != nil {
		return nil, err
	}
	s := newSession(m, id, ch)
	m.registry.attach(id, s)
	go s.run()
	return s, nil
}

// Disconnect closes the session's connection, stops its goroutine and
// forgets its resume snapshot.
func (m *Manager) Disconnect(ctx context.Context, id domain.SessionID) error {
	ctx, span := tracer.StartSpan(ctx, "gateway.disconnect",
		trace.WithAttributes(tracer.StringAttr("session", id.Fingerprint())))
	defer span.End()

	s := m.registry.session(id)
	if s == nil {
		err := domain.NewSubSystemError("registry", "Manager.Disconnect", domain.ErrSessionNotFound, id.Fingerprint())
		tracer.RecordError(span, err)
		return err
	}
	s.cancel()

	reply := make(chan error, 1)
	if !s.mb.put(disconnectMsg{ctx: ctx, reply: reply}) {
		err := domain.NewSubSystemError("registry", "Manager.Disconnect", domain.ErrSessionNotFound, id.Fingerprint())
		tracer.RecordError(span, err)
		return err
	}
	select {
	case err := <-reply:
		if err != nil {
			tracer.RecordError(span, err)
			return err
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	tracer.SetOK(span)
	m.logger.Info("session disconnected", "session", id.Fingerprint())
	return nil
}

// Send pushes a consumer-initiated event. Only presence, voice state and
// member requests are accepted, and only while the session is ready.
func (m *Manager) Send(ctx context.Context, id domain.SessionID, ev discord.OutboundEvent) error {
	ctx, span := tracer.StartSpan(ctx, "gateway.send",
		trace.WithAttributes(tracer.StringAttr("session", id.Fingerprint())))
	defer span.End()
	if ev != nil {
		span.SetAttributes(tracer.IntAttr("op", int(ev.Opcode())))
	}

	err := m.send(ctx, id, ev)
	if err != nil {
		tracer.RecordError(span, err)
		return err
	}
	tracer.SetOK(span)
	return nil
}

func (m *Manager) send(ctx context.Context, id domain.SessionID, ev discord.OutboundEvent) error {
	if ev == nil || !discord.ConsumerSendable(ev.Opcode()) {
		detail := "nil event"
		if ev != nil {
			detail = fmt.Sprintf("opcode %s is not consumer-sendable", ev.Opcode())
		}
		return domain.NewSubSystemError("outbound", "Manager.Send", domain.ErrInvalidInput, detail)
	}
	s := m.registry.session(id)
	if s == nil {
		return domain.NewSubSystemError("registry", "Manager.Send", domain.ErrSessionNotFound, id.Fingerprint())
	}
	if st := s.State(); st != domain.StateSteady {
		return domain.NewDomainError("Manager.Send", domain.ErrSessionNotReady, st.String())
	}
	if !s.limiter.Allow() {
		return domain.NewDomainError("Manager.Send", domain.ErrRateLimit, id.Fingerprint())
	}
	raw, err := discord.Encode(ev)
	if err != nil {
		return domain.NewSubSystemError("outbound", "Manager.Send", domain.ErrInvalidInput, err.Error())
	}
	if err := m.transport.Push(ctx, s.channel, raw); err != nil {
		return domain.WrapOp("Manager.Send", err)
	}
	return nil
}

// Status returns the latest view of one session.
func (m *Manager) Status(id domain.SessionID) (domain.SessionStatus, error) {
	s := m.registry.session(id)
	if s == nil {
		return domain.SessionStatus{}, domain.NewSubSystemError("registry", "Manager.Status", domain.ErrSessionNotFound, id.Fingerprint())
	}
	return s.Status(), nil
}

// Sessions returns the status of every registered session ordered by
// fingerprint.
func (m *Manager) Sessions() []domain.SessionStatus {
	all := m.registry.sessions()
	out := make([]domain.SessionStatus, 0, len(all))
	for _, s := range all {
		out = append(out, s.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fingerprint < out[j].Fingerprint })
	return out
}

// SnapshotAll persists the current resume point of every resumable
// session. It is a no-op without a store.
func (m *Manager) SnapshotAll(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	var errs []error
	saved := 0
	for _, s := range m.registry.sessions() {
		snap := s.resume.Load()
		if snap == nil {
			continue
		}
		if err := m.store.Save(ctx, *snap); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.id.Fingerprint(), err))
			continue
		}
		saved++
	}
	m.logger.Debug("resume snapshots saved", "count", saved)
	return errors.Join(errs...)
}

// PruneSnapshots deletes stored snapshots that belong to no registered
// session and were last updated more than maxAge ago. It returns how many
// were removed.
func (m *Manager) PruneSnapshots(ctx context.Context, maxAge time.Duration) (int, error) {
	if m.store == nil {
		return 0, nil
	}
	stored, err := m.store.List(ctx)
	if err != nil {
		return 0, domain.WrapOp("Manager.PruneSnapshots", err)
	}
	live := make(map[string]bool)
	for _, s := range m.registry.sessions() {
		live[s.id.Key()] = true
	}
	cutoff := m.clock.Now().Add(-maxAge)

	var errs []error
	pruned := 0
	for _, snap := range stored {
		if live[snap.Key] || snap.UpdatedAt.After(cutoff) {
			continue
		}
		if err := m.store.Delete(ctx, snap.Key); err != nil && !errors.Is(err, domain.ErrNotFound) {
			errs = append(errs, err)
			continue
		}
		pruned++
	}
	if pruned > 0 {
		m.logger.Info("stale resume snapshots pruned", "count", pruned)
	}
	return pruned, errors.Join(errs...)
}

// Shutdown stops every session without forgetting its resume snapshot, so
// that a restarted process can resume.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error
	for _, s := range m.registry.sessions() {
		s.cancel()
		reply := make(chan error, 1)
		if !s.mb.put(stopMsg{ctx: ctx, reply: reply}) {
			continue
		}
		select {
		case err := <-reply:
			if err != nil {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) resolve(ctx context.Context, id domain.SessionID) string {
	if m.resolver == nil {
		return m.cfg.DefaultURL
	}
	url, err := m.resolver.ResolveGateway(ctx, id.Token)
	if err != nil || url == "" {
		m.logger.Warn("gateway endpoint resolution failed, using default",
			"session", id.Fingerprint(), "default_url", m.cfg.DefaultURL, "error", err)
		return m.cfg.DefaultURL
	}
	return url
}

func (m *Manager) emit(ctx context.Context, eventType domain.EventType, id domain.SessionID, payload any) {
	if m.bus == nil {
		return
	}
	var data json.RawMessage
	if payload != nil {
		data, _ = json.Marshal(payload)
	}
	m.bus.Publish(ctx, domain.Event{
		Type:      eventType,
		Timestamp: m.clock.Now(),
		SessionID: id.Fingerprint(),
		Payload:   data,
	})
}
