// Package audit provides the append-only audit trail stores.
package audit

import (
	"context"
	"sort"
	"sync"

	"accessd/internal/rbac/models"
)

// InMemory is a thread-safe in-memory audit store. Entries are kept in append
// order; nothing ever mutates or removes them.
type InMemory struct {
	mu      sync.RWMutex
	entries []models.AuditEntry
}

// NewInMemory constructs an empty in-memory audit store.
func NewInMemory() *InMemory {
	return &InMemory{}
}

// Append records an entry.
func (s *InMemory) Append(_ context.Context, entry models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// Query returns matching entries ordered by timestamp ascending, ties broken
// by append order.
func (s *InMemory) Query(_ context.Context, q models.AuditQuery) ([]models.AuditEntry, error) {
	s.mu.RLock()
	out := make([]models.AuditEntry, 0)
	for _, e := range s.entries {
		if q.Matches(e) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Count returns the total number of entries. Test helper.
func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}
