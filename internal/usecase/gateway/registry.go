package gateway

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"botgate/internal/domain"
)

type registryEntry struct {
	channel domain.ChannelID
	session *session
}

// Registry maps sessions to transport channels in both directions. A
// channel id is allocated once per registration and survives reconnects.
type Registry struct {
	mu      sync.RWMutex
	byID    map[domain.SessionID]*registryEntry
	routes  map[domain.ChannelID]domain.SessionID
	entropy *ulid.MonotonicEntropy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:    make(map[domain.SessionID]*registryEntry),
		routes:  make(map[domain.ChannelID]domain.SessionID),
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// Register allocates a channel for id and records both directions.
func (r *Registry) Register(id domain.SessionID) (domain.ChannelID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; ok {
		return "", domain.NewSubSystemError("registry", "Registry.Register", domain.ErrSessionDuplicate, id.Fingerprint())
	}
	ch := domain.ChannelID(ulid.MustNew(ulid.Timestamp(time.Now()), r.entropy).String())
	r.byID[id] = &registryEntry{channel: ch}
	r.routes[ch] = id
	return ch, nil
}

// Unregister removes id and its route. It reports whether id was known.
func (r *Registry) Unregister(id domain.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok {
		return false
	}
	delete(r.byID, id)
	delete(r.routes, e.channel)
	return true
}

// Route returns the session that owns ch.
func (r *Registry) Route(ch domain.ChannelID) (domain.SessionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.routes[ch]
	return id, ok
}

// Lookup returns the channel allocated to id.
func (r *Registry) Lookup(id domain.SessionID) (domain.ChannelID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return "", false
	}
	return e.channel, true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// Snapshot returns the registered sessions ordered by fingerprint.
func (r *Registry) Snapshot() []domain.SessionID {
	r.mu.RLock()
	ids := make([]domain.SessionID, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i].Fingerprint() < ids[j].Fingerprint() })
	return ids
}

func (r *Registry) attach(id domain.SessionID, s *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byID[id]; ok {
		e.session = s
	}
}

// detach unregisters id only while it is still bound to s, so a stopping
// session cannot remove its successor.
func (r *Registry) detach(id domain.SessionID, s *session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok || e.session != s {
		return false
	}
	delete(r.byID, id)
	delete(r.routes, e.channel)
	return true
}

func (r *Registry) session(id domain.SessionID) *session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.byID[id]; ok {
		return e.session
	}
	return nil
}

func (r *Registry) sessionFor(ch domain.ChannelID) *session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.routes[ch]
	if !ok {
		return nil
	}
	return r.byID[id].session
}

func (r *Registry) sessions() []*session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*session, 0, len(r.byID))
	for _, e := range r.byID {
		if e.session != nil {
			out = append(out, e.session)
		}
	}
	return out
}
