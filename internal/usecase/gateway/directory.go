package gateway

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"botgate/internal/domain"
)

// Directory is the in-process owner lookup. Consumers register a handler
// under their owner name; deliveries for an owner that is not registered
// are dropped with a warning.
type Directory struct {
	mu       sync.RWMutex
	handlers map[string]binding
	nextID   uint64
	logger   *slog.Logger
}

type binding struct {
	id uint64
	f  domain.Forwarder
}

// NewDirectory creates an empty Directory.
func NewDirectory(logger *slog.Logger) *Directory {
	return &Directory{
		handlers: make(map[string]binding),
		logger:   logger,
	}
}

// Register binds owner to f, replacing any previous binding. The returned
// function removes the binding if it is still f.
func (d *Directory) Register(owner string, f domain.Forwarder) func() {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.handlers[owner] = binding{id: id, f: f}
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if cur, ok := d.handlers[owner]; ok && cur.id == id {
			delete(d.handlers, owner)
		}
	}
}

// Owners reports the registered owner names in order.
func (d *Directory) Owners() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for owner := range d.handlers {
		out = append(out, owner)
	}
	sort.Strings(out)
	return out
}

func (d *Directory) Forward(ctx context.Context, del domain.Delivery) error {
	d.mu.RLock()
	b, ok := d.handlers[del.Owner]
	d.mu.RUnlock()

	if !ok {
		d.logger.Warn("no consumer registered for owner, dropping event",
			"owner", del.Owner, "event", del.Event, "session", del.Session.Fingerprint())
		return domain.NewSubSystemError("forward", "Directory.Forward", domain.ErrNotFound, del.Owner)
	}
	return b.f.Forward(ctx, del)
}
