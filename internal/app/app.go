package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-channel/internal/auth"
	"github.com/vovakirdan/wirechat-channel/internal/config"
	"github.com/vovakirdan/wirechat-channel/internal/core"
	"github.com/vovakirdan/wirechat-channel/internal/metrics"
	"github.com/vovakirdan/wirechat-channel/internal/store"
	"github.com/vovakirdan/wirechat-channel/internal/store/pebblekv"
	"github.com/vovakirdan/wirechat-channel/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirechat-channel/internal/transport/http"
)

// tokenTTL is the lifetime of tokens minted by the CLI.
const tokenTTL = 24 * time.Hour

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	snapshots       *pebblekv.KV
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	kv, err := pebblekv.Open(cfg.SnapshotPath)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init snapshot store: %w", err)
	}
	logger.Info().Str("snapshot_path", cfg.SnapshotPath).Msg("snapshot store initialized")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	hub := core.NewHub(ChannelOptions(cfg), core.HubDeps{
		Messages: st,
		Users:    st,
		Snapshots: func(key string) store.SnapshotStore {
			return kv.Bucket(key)
		},
		Metrics: m,
		Logger:  logger,
	})

	if cfg.AuthRequired && cfg.JWTSecret == "" {
		logger.Warn().Msg("auth is required but jwt_secret is empty; every connection will be rejected")
	}

	server := transporthttp.NewServer(cfg, transporthttp.Deps{
		Hub:      hub,
		Verifier: auth.NewVerifier(JWTConfig(cfg)),
		Metrics:  m,
		Gatherer: reg,
		Logger:   logger,
	})

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		snapshots:       kv,
		log:             logger,
	}, nil
}

// ChannelOptions maps configuration onto channel actor options.
func ChannelOptions(cfg *config.Config) core.Options {
	return core.Options{
		MaxContentLength:    cfg.MaxContentLength,
		WindowSoftCap:       cfg.WindowSoftCap,
		WindowTrimTo:        cfg.WindowTrimTo,
		HydrateLimit:        cfg.HydrateLimit,
		HistoryDefaultLimit: cfg.HistoryDefaultLimit,
		HistoryMaxLimit:     cfg.HistoryMaxLimit,
		TypingTimeout:       cfg.TypingTimeout,
		HeartbeatInterval:   cfg.HeartbeatInterval,
		InboxSize:           cfg.InboxSize,
	}
}

// JWTConfig builds the token settings from configuration.
func JWTConfig(cfg *config.Config) *auth.JWTConfig {
	return &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      tokenTTL,
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		// Websockets are hijacked and not tracked by Shutdown; stopping the
		// hub closes their sessions.
		a.hub.Stop()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup stops the channels and closes the stores.
func (a *App) cleanup() {
	a.hub.Stop()
	if a.snapshots != nil {
		if err := a.snapshots.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close snapshot store")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
