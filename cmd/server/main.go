package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/tillpoint/api/internal/config"
	"github.com/tillpoint/api/internal/database"
	"github.com/tillpoint/api/internal/events"
	"github.com/tillpoint/api/internal/handler"
	"github.com/tillpoint/api/internal/logging"
	"github.com/tillpoint/api/internal/router"
	"github.com/tillpoint/api/internal/service"
	"github.com/tillpoint/api/internal/ws"
)

func main() {
	logging.Init()
	cfg := config.Load()

	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("run migrations")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect to database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("ping database")
	}

	hub := ws.NewHub()
	go hub.Run()

	publishers := events.Fanout{events.NewHubPublisher(hub)}
	if cfg.NatsURL != "" {
		np, err := events.NewNATSPublisher(cfg.NatsURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect to NATS")
		}
		publishers = append(publishers, np)
		log.Info().Str("url", cfg.NatsURL).Msg("NATS publishing enabled")
	}
	defer publishers.Close() //nolint:errcheck

	loc, err := time.LoadLocation(cfg.SequenceTZ)
	if err != nil {
		log.Fatal().Err(err).Str("tz", cfg.SequenceTZ).Msg("load sequence timezone")
	}
	alloc := service.NewSequenceAllocator(loc)

	queries := database.New(pool)
	ledger := service.NewLedgerService(
		pool,
		func(db database.DBTX) service.LedgerStore { return database.New(db) },
		alloc,
		publishers,
	)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: router.New(router.Config{
			JWTSecret:    cfg.JWTSecret,
			OrderHandler: handler.NewOrderHandler(ledger, queries),
			AuthHandler:  handler.NewAuthHandler(queries, cfg.JWTSecret),
			Hub:          hub,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
