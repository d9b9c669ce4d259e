// Package transport implements domain.Transport over WebSocket client
// connections. Two drivers share one channel hub: nhooyr (default) and
// gorilla.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"botgate/internal/domain"
)

// Driver names accepted by New.
const (
	DriverNhooyr  = "nhooyr"
	DriverGorilla = "gorilla"
)

// Default transport settings.
const (
	DefaultReadLimit   = 8 << 20 // GUILD_CREATE for large guilds runs to megabytes
	DefaultDialTimeout = 15 * time.Second
	DefaultEventBuffer = 1024
)

// Config tunes the transport.
type Config struct {
	Driver      string        // nhooyr (default) or gorilla
	ReadLimit   int64         // max inbound message size (default: 8 MiB)
	DialTimeout time.Duration // (default: 15s)
	EventBuffer int           // Events() channel capacity (default: 1024)
}

// socket is one live WebSocket client connection.
type socket interface {
	read(ctx context.Context) ([]byte, error)
	write(ctx context.Context, payload []byte) error
	close(reason string) error
}

type dialFunc func(ctx context.Context, url string, readLimit int64) (socket, error)

type conn struct {
	sock   socket
	epoch  domain.Epoch
	ctx    context.Context
	cancel context.CancelFunc
	// quiet is set when this side closed or replaced the connection; such
	// closures are not reported as ChannelClosed. A peer close seen before
	// the replacement is still reported, under this connection's epoch.
	quiet atomic.Bool
}

// Hub multiplexes many channels over one event stream.
type Hub struct {
	driver string
	dial   dialFunc
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	conns map[domain.ChannelID]*conn
	epoch domain.Epoch // last allocated

	events chan domain.TransportEvent
	done   chan struct{}
	once   sync.Once
}

// New creates a Hub for cfg.Driver.
func New(cfg Config, logger *slog.Logger) (*Hub, error) {
	if cfg.Driver == "" {
		cfg.Driver = DriverNhooyr
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = DefaultReadLimit
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultEventBuffer
	}

	var dial dialFunc
	switch cfg.Driver {
	case DriverNhooyr:
		dial = dialNhooyr
	case DriverGorilla:
		dial = dialGorilla
	default:
		return nil, fmt.Errorf("transport: unknown driver %q", cfg.Driver)
	}

	return &Hub{
		driver: cfg.Driver,
		dial:   dial,
		cfg:    cfg,
		logger: logger.With("driver", cfg.Driver),
		conns:  make(map[domain.ChannelID]*conn),
		events: make(chan domain.TransportEvent, cfg.EventBuffer),
		done:   make(chan struct{}),
	}, nil
}

// Driver returns the active driver name.
func (h *Hub) Driver() string { return h.driver }

// Open dials url and binds the connection to ch, replacing (silently)
// whatever ch was bound to before. It returns the epoch stamped on every
// event of the new connection.
func (h *Hub) Open(ctx context.Context, url string, ch domain.ChannelID) (domain.Epoch, error) {
	select {
	case <-h.done:
		return 0, fmt.Errorf("%w: transport shut down", domain.ErrTransportClosed)
	default:
	}

	dialCtx, cancel := context.WithTimeout(ctx, h.cfg.DialTimeout)
	defer cancel()
	sock, err := h.dial(dialCtx, url, h.cfg.ReadLimit)
	if err != nil {
		return 0, fmt.Errorf("dial %s: %w", url, err)
	}

	connCtx, connCancel := context.WithCancel(context.Background())
	c := &conn{sock: sock, ctx: connCtx, cancel: connCancel}

	h.mu.Lock()
	h.epoch++
	c.epoch = h.epoch
	old := h.conns[ch]
	h.conns[ch] = c
	h.mu.Unlock()

	if old != nil {
		go h.shut(old, "replaced")
	}
	go h.readLoop(ch, c)
	h.logger.Debug("channel opened", "channel", ch, "epoch", c.epoch, "replaced", old != nil)
	return c.epoch, nil
}

// Close closes ch. Closing an unknown channel is a no-op.
func (h *Hub) Close(ch domain.ChannelID) error {
	h.mu.Lock()
	c := h.conns[ch]
	delete(h.conns, ch)
	h.mu.Unlock()

	if c != nil {
		h.shut(c, "closed")
	}
	return nil
}

// Push writes one text frame to ch.
func (h *Hub) Push(ctx context.Context, ch domain.ChannelID, payload []byte) error {
	h.mu.Lock()
	c := h.conns[ch]
	h.mu.Unlock()

	if c == nil {
		return domain.NewDomainError("Hub.Push", domain.ErrTransportClosed, string(ch))
	}
	if err := c.sock.write(ctx, payload); err != nil {
		return fmt.Errorf("push %s: %w: %w", ch, domain.ErrTransportClosed, err)
	}
	return nil
}

// Events returns the inbound event stream shared by every channel.
func (h *Hub) Events() <-chan domain.TransportEvent { return h.events }

// Len returns the number of open channels.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Shutdown closes every channel and stops emitting events.
func (h *Hub) Shutdown() {
	h.once.Do(func() {
		close(h.done)
		h.mu.Lock()
		conns := h.conns
		h.conns = make(map[domain.ChannelID]*conn)
		h.mu.Unlock()
		for _, c := range conns {
			h.shut(c, "shutdown")
		}
	})
}

func (h *Hub) shut(c *conn, reason string) {
	c.quiet.Store(true)
	if err := c.sock.close(reason); err != nil {
		h.logger.Debug("websocket close", "reason", reason, "error", err)
	}
	c.cancel()
}

func (h *Hub) readLoop(ch domain.ChannelID, c *conn) {
	var err error
	for {
		var data []byte
		data, err = c.sock.read(c.ctx)
		if err != nil {
			break
		}
		if !h.emit(domain.TransportEvent{Kind: domain.FramePushed, Channel: ch, Epoch: c.epoch, Payload: data}) {
			return
		}
	}

	h.mu.Lock()
	if h.conns[ch] == c {
		delete(h.conns, ch)
	}
	h.mu.Unlock()
	c.cancel()

	if c.quiet.Load() {
		return
	}
	c.sock.close("read failed")
	h.logger.Info("channel closed by peer", "channel", ch, "epoch", c.epoch, "error", err)
	h.emit(domain.TransportEvent{Kind: domain.ChannelClosed, Channel: ch, Epoch: c.epoch})
}

func (h *Hub) emit(ev domain.TransportEvent) bool {
	select {
	case h.events <- ev:
		return true
	case <-h.done:
		return false
	}
}

var _ domain.Transport = (*Hub)(nil)
