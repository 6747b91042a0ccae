package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"creatorhub/internal/cache"
	"creatorhub/internal/engine"
	"creatorhub/internal/http/handlers"
	httpapi "creatorhub/internal/http/httpapi"
	"creatorhub/internal/infra"
	"creatorhub/internal/sqlinline"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Postgres is optional: it backs the shared cache and the token store.
	opts := engine.Options{Sweep: true}
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		runner := infra.NewSQLRunner(pool, logger)
		if _, err := runner.Exec(ctx, sqlinline.QEnsureSchema); err != nil {
			logger.Fatal().Err(err).Msg("failed to ensure schema")
		}
		opts.SQL = runner
	} else {
		logger.Info().Msg("DATABASE_URL not set, cache is process-local")
	}

	eng, err := engine.New(ctx, cfg, &logger, opts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure generation engine")
	}
	if eng.Store != nil && cfg.CacheSweepInterval > 0 {
		go purgeLoop(ctx, eng.Store, cfg.CacheExpiry+cfg.CacheStaleFor, cfg.CacheSweepInterval, logger)
	}

	app := handlers.NewApp(cfg, &logger, eng.Service, eng.Catalog)
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Int("pending_jobs", eng.Service.PendingJobs()).Msg("server stopped")
}

// purgeLoop deletes durable cache rows past their retention until ctx ends.
func purgeLoop(ctx context.Context, store *cache.PGStore, retention, every time.Duration, logger infra.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		purgeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		n, err := store.Purge(purgeCtx, time.Now().Add(-retention))
		cancel()
		if err != nil {
			logger.Warn().Err(err).Msg("cache purge failed")
			continue
		}
		if n > 0 {
			logger.Info().Int64("rows", n).Msg("cache purged")
		}
	}
}
