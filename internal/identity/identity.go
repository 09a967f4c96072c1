// Package identity resolves user ids to display names. Identity
// issuance lives outside this service; the engine only consumes a
// lookup and must tolerate partial or missing results.
package identity

import (
	"context"
	"sync"
)

// Resolver returns display names for a set of user ids. Ids without a
// known name are simply absent from the result map; that is not an
// error.
type Resolver interface {
	DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error)
}

// Static is a map-backed Resolver, used in tests and as the default
// when no identity backend is configured.
type Static struct {
	mu    sync.RWMutex
	names map[string]string
}

// NewStatic creates a resolver seeded with the given names.
func NewStatic(names map[string]string) *Static {
	s := &Static{names: make(map[string]string, len(names))}
	for id, name := range names {
		s.names[id] = name
	}
	return s
}

// DisplayNames implements Resolver.
func (s *Static) DisplayNames(_ context.Context, userIDs []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(userIDs))
	for _, id := range userIDs {
		if name, ok := s.names[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

// Set registers or replaces a display name.
func (s *Static) Set(userID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[userID] = name
}
