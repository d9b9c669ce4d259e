package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"botgate/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type openCall struct {
	url string
	ch  domain.ChannelID
}

// fakeTransport records every call and lets tests inject inbound events.
type fakeTransport struct {
	mu       sync.Mutex
	opens    []openCall
	pushes   [][]byte
	closes   []domain.ChannelID
	failOpen int // number of upcoming opens that fail
	epoch    domain.Epoch
	current  map[domain.ChannelID]domain.Epoch
	events   chan domain.TransportEvent
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		current: make(map[domain.ChannelID]domain.Epoch),
		events:  make(chan domain.TransportEvent, 64),
	}
}

func (f *fakeTransport) Open(_ context.Context, url string, ch domain.ChannelID) (domain.Epoch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens = append(f.opens, openCall{url: url, ch: ch})
	if f.failOpen > 0 {
		f.failOpen--
		return 0, errors.New("dial refused")
	}
	f.epoch++
	f.current[ch] = f.epoch
	return f.epoch, nil
}

func (f *fakeTransport) Close(ch domain.ChannelID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes = append(f.closes, ch)
	return nil
}

func (f *fakeTransport) Push(_ context.Context, _ domain.ChannelID, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, append([]byte(nil), payload...))
	return nil
}

func (f *fakeTransport) Events() <-chan domain.TransportEvent { return f.events }

func (f *fakeTransport) setFailOpen(n int) {
	f.mu.Lock()
	f.failOpen = n
	f.mu.Unlock()
}

func (f *fakeTransport) openCalls() []openCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]openCall(nil), f.opens...)
}

func (f *fakeTransport) closeCalls() []domain.ChannelID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ChannelID(nil), f.closes...)
}

// pushed decodes every pushed frame.
func (f *fakeTransport) pushed() []pushedFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]pushedFrame, 0, len(f.pushes))
	for _, raw := range f.pushes {
		var pf pushedFrame
		_ = json.Unmarshal(raw, &pf)
		out = append(out, pf)
	}
	return out
}

// epochOf returns the epoch of ch's latest open.
func (f *fakeTransport) epochOf(ch domain.ChannelID) domain.Epoch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current[ch]
}

// frame injects a frame on ch's latest connection.
func (f *fakeTransport) frame(ch domain.ChannelID, payload string) {
	f.frameAt(ch, f.epochOf(ch), payload)
}

func (f *fakeTransport) frameAt(ch domain.ChannelID, epoch domain.Epoch, payload string) {
	f.events <- domain.TransportEvent{Kind: domain.FramePushed, Channel: ch, Epoch: epoch, Payload: []byte(payload)}
}

// closed reports a peer close of ch's latest connection.
func (f *fakeTransport) closed(ch domain.ChannelID) {
	f.closedAt(ch, f.epochOf(ch))
}

func (f *fakeTransport) closedAt(ch domain.ChannelID, epoch domain.Epoch) {
	f.events <- domain.TransportEvent{Kind: domain.ChannelClosed, Channel: ch, Epoch: epoch}
}

type pushedFrame struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

// fakeClock fires timers only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *fakeClock
	at    time.Time
	f     func()
	done  bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.done
	t.done = true
	return was
}

// Advance moves time forward and runs every timer that became due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.done && !t.at.After(c.now) {
			t.done = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// pending counts armed timers.
func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

type fakeResolver struct {
	url string
	err error
}

func (r fakeResolver) ResolveGateway(context.Context, string) (string, error) {
	return r.url, r.err
}

// recordingForwarder captures deliveries.
type recordingForwarder struct {
	mu         sync.Mutex
	deliveries []domain.Delivery
}

func (f *recordingForwarder) Forward(_ context.Context, d domain.Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deliveries = append(f.deliveries, d)
	return nil
}

func (f *recordingForwarder) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.deliveries))
	for _, d := range f.deliveries {
		out = append(out, d.Event)
	}
	return out
}

func (f *recordingForwarder) all() []domain.Delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Delivery(nil), f.deliveries...)
}

// recordingBus captures published lifecycle events.
type recordingBus struct {
	mu     sync.Mutex
	events []domain.Event
}

func (b *recordingBus) Publish(_ context.Context, evt domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, evt)
}

func (b *recordingBus) Subscribe(domain.EventType, domain.EventHandler) func() { return func() {} }
func (b *recordingBus) SubscribeAll(domain.EventHandler) func()                { return func() {} }
func (b *recordingBus) Close()                                                 {}

func (b *recordingBus) has(t domain.EventType) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.events {
		if e.Type == t {
			return true
		}
	}
	return false
}

// memStore is a minimal SessionStore.
type memStore struct {
	mu    sync.Mutex
	snaps map[string]domain.ResumeSnapshot
}

func newMemStore() *memStore {
	return &memStore{snaps: make(map[string]domain.ResumeSnapshot)}
}

func (s *memStore) Save(_ context.Context, snap domain.ResumeSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.Key] = snap
	return nil
}

func (s *memStore) Load(_ context.Context, key string) (*domain.ResumeSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &snap, nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, key)
	return nil
}

func (s *memStore) List(context.Context) ([]domain.ResumeSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ResumeSnapshot, 0, len(s.snaps))
	for _, snap := range s.snaps {
		out = append(out, snap)
	}
	return out, nil
}

func (s *memStore) get(key string) (domain.ResumeSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snaps[key]
	return snap, ok
}

type harness struct {
	m         *Manager
	transport *fakeTransport
	clock     *fakeClock
	forwarder *recordingForwarder
	bus       *recordingBus
}

func newHarness(t *testing.T, cfg Config, resolver domain.EndpointResolver, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		transport: newFakeTransport(),
		clock:     newFakeClock(),
		forwarder: &recordingForwarder{},
		bus:       &recordingBus{},
	}
	opts = append([]Option{WithClock(h.clock), WithBus(h.bus)}, opts...)
	h.m = NewManager(cfg, h.transport, resolver, h.forwarder, newTestLogger(), opts...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.m.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}
