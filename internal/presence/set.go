package presence

import (
	"sort"
	"sync"
)

// Set is the collection of user IDs currently considered online. It is owned
// by its channel or hub; consumers only ever see snapshots.
type Set struct {
	mu    sync.RWMutex
	users map[string]struct{}
}

func NewSet() *Set {
	return &Set{users: make(map[string]struct{})}
}

// Apply records the most recent status event for a user and reports whether
// membership actually changed.
func (s *Set) Apply(userID string, online bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, present := s.users[userID]
	if online == present {
		return false
	}
	if online {
		s.users[userID] = struct{}{}
	} else {
		delete(s.users, userID)
	}
	return true
}

func (s *Set) Contains(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[userID]
	return ok
}

func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// Snapshot returns a sorted copy of the current membership.
func (s *Set) Snapshot() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.users))
	for u := range s.users {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Clear empties the set, as happens on disconnect and logout.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[string]struct{})
}
