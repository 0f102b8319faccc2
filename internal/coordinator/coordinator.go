package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/example/waymate/internal/composer"
	"github.com/example/waymate/internal/directions"
	"github.com/example/waymate/internal/geomatch"
	"github.com/example/waymate/internal/models"
	"github.com/example/waymate/internal/observability"
	"github.com/example/waymate/internal/routeid"
)

// ErrStaleResponse marks a provider response that lost the race against a
// newer request. The caller's displayed result is already ahead of it.
var ErrStaleResponse = errors.New("stale directions response discarded")

var ErrNoActiveSession = errors.New("no active routing session")

// Coordinator keeps travel mode, the provider's directions result, and the
// composed custom-route overlay consistent. Every provider request carries a
// sequence number; only the latest issued request may commit its response, so
// rapid mode toggles cannot interleave stale results.
type Coordinator struct {
	provider directions.Provider
	composer *composer.Composer
	matcher  geomatch.Matcher
	tracker  *routeid.Tracker
	logger   *slog.Logger

	mu      sync.Mutex
	active  bool
	info    models.RouteInfo
	custom  []models.CustomRoute
	current *models.DirectionsResult
	lastErr error
	seq     uint64
}

func New(provider directions.Provider, comp *composer.Composer, matcher geomatch.Matcher, cmp routeid.Comparator, logger *slog.Logger) *Coordinator {
	if comp == nil {
		comp = composer.New(nil)
	}
	return &Coordinator{
		provider: provider,
		composer: comp,
		matcher:  matcher,
		tracker:  routeid.NewTracker(cmp),
		logger:   logger,
	}
}

// StartSession begins a routing session: one provider request for the given
// endpoints and mode, composition of the relevant custom routes, and a fresh
// selected-route baseline. The custom-route collection is fetched once by the
// caller and reused across every later mode change.
func (c *Coordinator) StartSession(ctx context.Context, origin, destination models.LatLng, mode models.TravelMode, custom []models.CustomRoute) (*models.DirectionsResult, error) {
	c.mu.Lock()
	c.active = true
	c.info = models.RouteInfo{Origin: origin, Destination: destination, TravelMode: mode}
	c.custom = custom
	c.current = nil
	c.lastErr = nil
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	return c.fetchAndCompose(ctx, seq, mode)
}

// ChangeTravelMode switches the active mode. Requesting the current mode is a
// no-op returning the result already displayed. The ridesharing pseudo-mode
// only updates the travel-mode field; the provider never sees it and the
// existing geometry stays untouched.
func (c *Coordinator) ChangeTravelMode(ctx context.Context, mode models.TravelMode) (*models.DirectionsResult, error) {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	if mode == c.info.TravelMode {
		cur := c.current
		c.mu.Unlock()
		return cur, nil
	}
	if mode == models.ModeRidesharing {
		c.info.TravelMode = mode
		cur := c.current
		c.mu.Unlock()
		return cur, nil
	}
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	return c.fetchAndCompose(ctx, seq, mode)
}

// Result returns the last composed result, which survives provider failures.
func (c *Coordinator) Result() *models.DirectionsResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Coordinator) Info() models.RouteInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

// Err returns the failure state from the most recent provider interaction,
// nil after a success.
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// SelectedIndex returns the selected route index within the original list.
func (c *Coordinator) SelectedIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracker.Selected()
}

// PrimaryChanged re-resolves the selection after the live route list was
// reordered externally, e.g. the rider clicked an alternative route.
func (c *Coordinator) PrimaryChanged(primary models.ProviderRoute) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracker.Resync(primary)
}

// fetchAndCompose issues the provider request for seq and commits the
// composed result only if seq is still the latest issued.
func (c *Coordinator) fetchAndCompose(ctx context.Context, seq uint64, mode models.TravelMode) (*models.DirectionsResult, error) {
	c.mu.Lock()
	req := directions.Request{
		Origin:                   c.info.Origin,
		Destination:              c.info.Destination,
		TravelMode:               mode,
		ProvideRouteAlternatives: true,
	}
	c.mu.Unlock()

	observability.DirectionsRequests.Inc()
	result, err := c.provider.Directions(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.seq {
		observability.StaleResponses.Inc()
		c.logger.Warn("discarding out-of-order directions response", "seq", seq, "latest", c.seq)
		return c.current, ErrStaleResponse
	}
	if err != nil {
		observability.DirectionsFailures.Inc()
		c.lastErr = err
		// Last-known-good stays visible; no blank state.
		return c.current, err
	}

	relevant := c.matcher.Filter(c.custom, c.info.Origin, c.info.Destination, mode)
	composed := c.composer.Compose(result, relevant, mode)
	observability.CompositionsTotal.Inc()

	var prevPrimary *models.ProviderRoute
	if c.current != nil && len(c.current.Routes) > 0 {
		prevPrimary = &c.current.Routes[0]
	}

	c.tracker.Reset(composed.Routes)
	if prevPrimary != nil {
		c.tracker.Resync(*prevPrimary)
	}

	c.current = composed
	c.info.TravelMode = mode
	c.lastErr = nil
	return composed, nil
}
