package control

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"

	"botgate/internal/domain"
	"botgate/pkg/discord"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSessions is an in-memory SessionService.
type fakeSessions struct {
	mu       sync.Mutex
	sessions map[domain.SessionID]domain.SessionStatus
	sent     []discord.OutboundEvent
	sendErr  error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[domain.SessionID]domain.SessionStatus)}
}

func (f *fakeSessions) Connect(_ context.Context, id domain.SessionID, owner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[id]; ok {
		return domain.NewSubSystemError("registry", "fake.Connect", domain.ErrSessionDuplicate, id.Fingerprint())
	}
	f.sessions[id] = domain.SessionStatus{
		Fingerprint: id.Fingerprint(),
		Owner:       owner,
		Channel:     domain.ChannelID("ch-" + id.Fingerprint()),
		State:       domain.StateAwaitingHello,
	}
	return nil
}

func (f *fakeSessions) Disconnect(_ context.Context, id domain.SessionID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[id]; !ok {
		return domain.NewSubSystemError("registry", "fake.Disconnect", domain.ErrSessionNotFound, id.Fingerprint())
	}
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessions) Send(_ context.Context, id domain.SessionID, ev discord.OutboundEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	if _, ok := f.sessions[id]; !ok {
		return domain.NewSubSystemError("registry", "fake.Send", domain.ErrSessionNotFound, id.Fingerprint())
	}
	f.sent = append(f.sent, ev)
	return nil
}

func (f *fakeSessions) Status(id domain.SessionID) (domain.SessionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.sessions[id]
	if !ok {
		return st, domain.NewSubSystemError("registry", "fake.Status", domain.ErrSessionNotFound, id.Fingerprint())
	}
	return st, nil
}

func (f *fakeSessions) Sessions() []domain.SessionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.SessionStatus, 0, len(f.sessions))
	for _, st := range f.sessions {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fingerprint < out[j].Fingerprint })
	return out
}

func (f *fakeSessions) sentEvents() []discord.OutboundEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]discord.OutboundEvent(nil), f.sent...)
}

// syncBus delivers events inline.
type syncBus struct {
	mu       sync.Mutex
	handlers map[int]domain.EventHandler
	next     int
}

func (b *syncBus) Publish(ctx context.Context, event domain.Event) {
	b.mu.Lock()
	hs := make([]domain.EventHandler, 0, len(b.handlers))
	for _, h := range b.handlers {
		hs = append(hs, h)
	}
	b.mu.Unlock()
	for _, h := range hs {
		h(ctx, event)
	}
}

func (b *syncBus) Subscribe(t domain.EventType, h domain.EventHandler) func() {
	return b.SubscribeAll(func(ctx context.Context, e domain.Event) {
		if e.Type == t {
			h(ctx, e)
		}
	})
}

func (b *syncBus) SubscribeAll(h domain.EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = make(map[int]domain.EventHandler)
	}
	id := b.next
	b.next++
	b.handlers[id] = h
	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

func (b *syncBus) Close() {}

func newTestAuth() *StaticTokenAuth {
	return NewStaticTokenAuth([]TokenEntry{
		{Token: "admin-token", Name: "root", Roles: []string{"admin"}},
		{Token: "alpha-token", Name: "alpha"},
		{Token: "beta-token", Name: "beta", Roles: []string{"operator"}},
		{Token: "viewer-token", Name: "watcher", Roles: []string{"viewer"}},
	})
}
