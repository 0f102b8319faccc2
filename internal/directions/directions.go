package directions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/waymate/internal/models"
)

// Request is the shape handed to the directions provider. The provider is a
// black box; we only shape requests and post-process responses.
type Request struct {
	Origin                   models.LatLng     `json:"origin"`
	Destination              models.LatLng     `json:"destination"`
	TravelMode               models.TravelMode `json:"travelMode"`
	ProvideRouteAlternatives bool              `json:"provideRouteAlternatives"`
}

// Provider fetches turn-by-turn directions.
type Provider interface {
	Directions(ctx context.Context, req Request) (*models.DirectionsResult, error)
}

// HTTPProvider talks to a directions service over HTTP.
type HTTPProvider struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPProvider(endpoint string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProvider{Endpoint: endpoint, Client: &http.Client{Timeout: timeout}}
}

func (p *HTTPProvider) Directions(ctx context.Context, req Request) (*models.DirectionsResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out struct {
		Status string                 `json:"status"`
		Routes []models.ProviderRoute `json:"routes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.Status != "OK" {
		return nil, fmt.Errorf("directions provider: %s", out.Status)
	}
	return &models.DirectionsResult{Routes: out.Routes}, nil
}
