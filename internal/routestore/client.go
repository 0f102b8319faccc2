package routestore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/example/waymate/internal/models"
)

// SessionClient fetches the custom-route collection over HTTP exactly once
// per routing session; every travel-mode change reuses the cached list.
type SessionClient struct {
	Endpoint string
	Client   *http.Client

	once   sync.Once
	routes []models.CustomRoute
	err    error
}

func NewSessionClient(endpoint string) *SessionClient {
	return &SessionClient{Endpoint: endpoint, Client: &http.Client{Timeout: 5 * time.Second}}
}

func (c *SessionClient) ListCustomRoutes(ctx context.Context) ([]models.CustomRoute, error) {
	c.once.Do(func() {
		c.routes, c.err = c.fetch(ctx)
	})
	return c.routes, c.err
}

func (c *SessionClient) fetch(ctx context.Context) ([]models.CustomRoute, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("custom route collection: status %d", resp.StatusCode)
	}
	var out struct {
		Routes []models.CustomRoute `json:"routes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Routes, nil
}
