package routestore

import (
	"context"
	"sync"

	"github.com/example/waymate/internal/models"
)

// Store lists the administrator-authored custom routes. The rider side only
// ever reads; authoring happens through admin tooling outside this service.
type Store interface {
	ListCustomRoutes(ctx context.Context) ([]models.CustomRoute, error)
}

type MemoryStore struct {
	mu     sync.RWMutex
	routes []models.CustomRoute
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Add(r models.CustomRoute) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes = append(m.routes, r)
}

func (m *MemoryStore) ListCustomRoutes(ctx context.Context) ([]models.CustomRoute, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.CustomRoute, len(m.routes))
	copy(out, m.routes)
	return out, nil
}
