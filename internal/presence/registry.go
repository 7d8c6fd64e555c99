// Package presence tracks which accounts hold an open realtime connection and
// delivers events to them.
package presence

import (
	"context"
	"sync"
)

// Registry records live connections per account. An account is online while
// it has at least one connection.
type Registry interface {
	Add(ctx context.Context, userID int, connID string) error
	Remove(ctx context.Context, userID int, connID string) error
	// Refresh extends the lifetime of a connection entry. Called on heartbeat.
	Refresh(ctx context.Context, userID int) error
	IsOnline(ctx context.Context, userID int) (bool, error)
	Online(ctx context.Context, userIDs []int) (map[int]bool, error)
}

// MemoryRegistry is the single-process registry.
type MemoryRegistry struct {
	mu    sync.RWMutex
	conns map[int]map[string]struct{}
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{conns: make(map[int]map[string]struct{})}
}

func (r *MemoryRegistry) Add(_ context.Context, userID int, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		set = make(map[string]struct{})
		r.conns[userID] = set
	}
	set[connID] = struct{}{}
	return nil
}

func (r *MemoryRegistry) Remove(_ context.Context, userID int, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		return nil
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.conns, userID)
	}
	return nil
}

func (r *MemoryRegistry) Refresh(context.Context, int) error { return nil }

func (r *MemoryRegistry) IsOnline(_ context.Context, userID int) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0, nil
}

func (r *MemoryRegistry) Online(_ context.Context, userIDs []int) (map[int]bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[int]bool, len(userIDs))
	for _, id := range userIDs {
		out[id] = len(r.conns[id]) > 0
	}
	return out, nil
}
