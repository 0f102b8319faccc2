package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/example/waymate/internal/config"
	"github.com/example/waymate/internal/directions"
	"github.com/example/waymate/internal/httpapi"
	"github.com/example/waymate/internal/ingest"
	"github.com/example/waymate/internal/logging"
	"github.com/example/waymate/internal/presence"
	"github.com/example/waymate/internal/routestore"
)

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	var store routestore.Store
	if cfg.PGDSN != "" {
		ps, err := routestore.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer ps.Close()
		store = ps
	} else {
		store = routestore.NewMemoryStore()
		logger.Warn("PG_DSN not set; serving an empty in-memory custom route collection")
	}

	var lastSeen presence.LastSeenStore
	if cfg.RedisAddr != "" {
		rls := presence.NewRedisLastSeen(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisLastSeenKey)
		defer rls.Close()
		lastSeen = rls
	}

	var events presence.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		events = kp
	}

	var provider directions.Provider
	if cfg.ProviderEndpoint != "" {
		provider = directions.NewHTTPProvider(cfg.ProviderEndpoint, cfg.ProviderTimeout)
	}

	hub := presence.NewHub(logger, lastSeen, events)
	srv := httpapi.New(logger, hub, store, provider, verifierFromEnv())

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("waymate listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// verifierFromEnv builds the token map from SESSION_TOKENS, a comma-separated
// list of token:user pairs. Real deployments plug a proper session backend in
// behind the TokenVerifier interface.
func verifierFromEnv() httpapi.TokenVerifier {
	v := httpapi.StaticVerifier{}
	for _, pair := range strings.Split(os.Getenv("SESSION_TOKENS"), ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			v[parts[0]] = parts[1]
		}
	}
	return v
}
