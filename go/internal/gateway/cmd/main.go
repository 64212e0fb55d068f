package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/poker-everest/go/internal/config"
	"github.com/mcdev12/poker-everest/go/internal/gateway"
	"github.com/mcdev12/poker-everest/go/internal/metrics"
	"github.com/mcdev12/poker-everest/go/internal/orchestrator"
	"github.com/mcdev12/poker-everest/go/internal/poker"
	"github.com/mcdev12/poker-everest/go/internal/session"
	"github.com/mcdev12/poker-everest/go/internal/store"
	"github.com/mcdev12/poker-everest/go/internal/telemetry"
	"github.com/rs/zerolog/log"
)

func main() {
	os.Exit(run())
}

func run() (code int) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return 1
	}

	telemetry.SetupLogger(cfg.LogLevel, !cfg.IsProduction(), cfg.Env)

	flush, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Env,
		SampleRate:  cfg.SentrySampleRate,
	})
	if err != nil {
		log.Warn().Err(err).Msg("error reporting disabled")
	}
	defer flush()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("fatal panic")
			telemetry.CapturePanic(r, map[string]string{"scope": "main"})
			code = 1
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := store.Open(ctx, store.Options{
		RedisURL:   cfg.RedisURL,
		Production: cfg.IsProduction(),
	})
	if closer, ok := backend.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	promMetrics := metrics.NewPrometheusMetrics()
	sessions := session.NewRegistry()

	bus, err := newBus(cfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect room bus")
		return 1
	}
	defer bus.Close()

	connections := gateway.NewConnectionManager(gateway.DefaultConnectionConfig(), sessions, bus, promMetrics)
	rooms := poker.NewService(cfg.Policy, backend, sessions, connections, nil, promMetrics)
	connections.SetEventHandler(rooms)

	scheduler := orchestrator.NewScheduler(orchestrator.DefaultConfig(), backend, rooms, promMetrics, nil)
	health := metrics.NewHealthChecker(backend, bus, promMetrics, nil)

	server := &http.Server{
		Addr: cfg.Addr(),
		Handler: gateway.NewRouter(gateway.Routes{
			WebSocket: gateway.NewWebSocketHandler(connections),
			State:     gateway.NewStateHandler(rooms),
			Live:      health.ServeLive,
			Ready:     health,
			Metrics:   promMetrics.Handler(),
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info().
		Str("addr", server.Addr).
		Str("env", cfg.Env).
		Str("store", string(backend.Health(ctx).Mode)).
		Bool("nats", cfg.NATSURL != "").
		Int("max_players", rooms.Config().MaxPlayers).
		Msg("starting poker server")

	go func() {
		if err := connections.Start(ctx); err != nil {
			log.Error().Err(err).Msg("connection manager failed")
			cancel()
		}
	}()

	go func() {
		if err := scheduler.Run(ctx); err != nil {
			log.Error().Err(err).Msg("timer scheduler failed")
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server failed")
		telemetry.CaptureError(err, map[string]string{"scope": "listener"})
		return 1
	case <-ctx.Done():
		return 1
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	connections.Shutdown()

	// Cancel service context to stop the scheduler and connection manager
	cancel()

	log.Info().Msg("poker server shutdown complete")
	return 0
}

func newBus(cfg *config.Config) (gateway.Bus, error) {
	if cfg.NATSURL == "" {
		log.Info().Msg("NATS_URL not set, room messages stay in this process")
		return gateway.NewLocalBus(), nil
	}

	natsCfg := gateway.DefaultNATSConfig()
	natsCfg.URL = cfg.NATSURL
	return gateway.NewNATSBus(natsCfg)
}
