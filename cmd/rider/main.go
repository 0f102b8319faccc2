package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/example/waymate/internal/composer"
	"github.com/example/waymate/internal/config"
	"github.com/example/waymate/internal/coordinator"
	"github.com/example/waymate/internal/directions"
	"github.com/example/waymate/internal/geomatch"
	"github.com/example/waymate/internal/logging"
	"github.com/example/waymate/internal/models"
	"github.com/example/waymate/internal/presence"
	"github.com/example/waymate/internal/routeid"
	"github.com/example/waymate/internal/routestore"
	"github.com/example/waymate/internal/session"
)

// rider is a headless client for exercising the presence and routing stack
// against a running server: it joins the presence channel, fetches the
// custom-route collection once, starts a routing session, and optionally
// toggles travel mode.
func main() {
	var (
		server = flag.String("server", "http://localhost:8080", "waymate server base URL")
		token  = flag.String("token", "", "session token")
		user   = flag.String("user", "rider", "user id for the local session")
		origin = flag.String("origin", "44.4268,26.1025", "origin lat,lng")
		dest   = flag.String("dest", "44.4300,26.1100", "destination lat,lng")
		mode   = flag.String("mode", "DRIVING", "initial travel mode")
		toggle = flag.String("toggle", "", "travel mode to switch to after the first result")
	)
	flag.Parse()

	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if *token == "" {
		logger.Error("a -token is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wsURL := strings.Replace(*server, "http", "ws", 1) + "/ws"
	channel := presence.NewChannel(wsURL, logger,
		presence.WithHeartbeatInterval(cfg.HeartbeatInterval))
	channel.Subscribe(func(userID string, online bool) {
		logger.Info("presence change", "user_id", userID, "online", online)
	})

	store := session.NewStore()
	cancel := channel.BindSessions(ctx, store)
	defer cancel()
	store.Set(session.Session{UserID: *user, Token: *token})
	defer store.Clear()

	collection := routestore.NewSessionClient(*server + "/api/v1/routes/custom")
	custom, err := collection.ListCustomRoutes(ctx)
	if err != nil {
		logger.Error("custom route fetch failed", "error", err)
		os.Exit(1)
	}
	logger.Info("custom routes loaded", "count", len(custom))

	provider := directions.NewHTTPProvider(*server+"/api/v1/directions", cfg.ProviderTimeout)
	coord := coordinator.New(
		provider,
		composer.New(geomatch.Haversine{}),
		geomatch.Matcher{PointToleranceKm: cfg.PointToleranceKm},
		routeid.Comparator{CoordEpsilonDeg: cfg.CoordEpsilonDeg, MetricTolerance: cfg.MetricTolerance},
		logger,
	)

	o, err := parseLatLng(*origin)
	if err != nil {
		logger.Error("bad -origin", "error", err)
		os.Exit(1)
	}
	d, err := parseLatLng(*dest)
	if err != nil {
		logger.Error("bad -dest", "error", err)
		os.Exit(1)
	}

	result, err := coord.StartSession(ctx, o, d, models.TravelMode(*mode), custom)
	if err != nil {
		logger.Error("routing session failed", "error", err)
		os.Exit(1)
	}
	printRoutes(result)

	if *toggle != "" {
		result, err = coord.ChangeTravelMode(ctx, models.TravelMode(*toggle))
		if err != nil {
			logger.Error("mode change failed", "error", err)
		} else {
			logger.Info("travel mode changed", "mode", *toggle, "selected", coord.SelectedIndex())
			printRoutes(result)
		}
	}

	logger.Info("watching presence; ctrl-c to exit")
	<-ctx.Done()
}

func parseLatLng(s string) (models.LatLng, error) {
	var p models.LatLng
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%f,%f", &p.Lat, &p.Lng); err != nil {
		return models.LatLng{}, fmt.Errorf("expected lat,lng: %w", err)
	}
	return p, nil
}

func printRoutes(r *models.DirectionsResult) {
	for i, rt := range r.Routes {
		kind := "native"
		if rt.IsCustomRoute {
			kind = "custom"
		}
		var dist, dur float64
		if len(rt.Legs) > 0 {
			dist = rt.Legs[0].Distance.Value
			dur = rt.Legs[0].Duration.Value
		}
		fmt.Printf("%d. [%s] %s  %.0f m  %s\n", i, kind, rt.Summary, dist, time.Duration(dur)*time.Second)
	}
}
