package store

import (
	"context"
	"sort"
	"sync"

	"botgate/internal/domain"
)

// MemoryStore keeps snapshots in process memory. Snapshots do not survive
// a restart; use it when resumption across restarts is not needed.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]domain.ResumeSnapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string]domain.ResumeSnapshot)}
}

func (m *MemoryStore) Save(_ context.Context, snap domain.ResumeSnapshot) error {
	if snap.Key == "" {
		return domain.NewSubSystemError("store", "MemoryStore.Save", domain.ErrInvalidInput, "empty key")
	}
	if snap.Sequence != nil {
		seq := *snap.Sequence
		snap.Sequence = &seq
	}
	m.mu.Lock()
	m.snaps[snap.Key] = snap
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Load(_ context.Context, key string) (*domain.ResumeSnapshot, error) {
	m.mu.RLock()
	snap, ok := m.snaps[key]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.NewSubSystemError("store", "MemoryStore.Load", domain.ErrNotFound, key)
	}
	return &snap, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.snaps[key]; !ok {
		return domain.NewSubSystemError("store", "MemoryStore.Delete", domain.ErrNotFound, key)
	}
	delete(m.snaps, key)
	return nil
}

func (m *MemoryStore) List(context.Context) ([]domain.ResumeSnapshot, error) {
	m.mu.RLock()
	out := make([]domain.ResumeSnapshot, 0, len(m.snaps))
	for _, snap := range m.snaps {
		out = append(out, snap)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
