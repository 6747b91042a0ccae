// Package engine assembles the generation service from configuration. It is
// shared by the API server and the command line tools.
package engine

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"creatorhub/internal/cache"
	"creatorhub/internal/generation"
	"creatorhub/internal/infra"
	"creatorhub/internal/infra/credentials"
	"creatorhub/internal/providers/image"
	"creatorhub/internal/providers/replicate"
)

// Engine bundles the wired components.
type Engine struct {
	Service *generation.Service
	Catalog *image.Catalog
	Cache   *cache.ResultCache
	Client  *replicate.Client
	// Store is nil without a database.
	Store *cache.PGStore
}

// Options carries the optional database handle.
type Options struct {
	// SQL enables the durable cache and the credential store fallback.
	SQL infra.SQLExecutor
	// Sweep disables the in-memory sweep when false, for short-lived processes.
	Sweep bool
}

// New wires the engine. A missing provider token is logged, not returned:
// every submission then fails fast with ProviderUnavailable.
func New(ctx context.Context, cfg *infra.Config, logger *infra.Logger, opts Options) (*Engine, error) {
	catalog, err := image.LoadCatalog(cfg.ProvidersFile, cfg.DefaultProvider)
	if err != nil {
		return nil, err
	}

	token := strings.TrimSpace(cfg.ReplicateAPIToken)
	if token == "" && opts.SQL != nil {
		stored, err := credentials.NewStore(opts.SQL).ReplicateToken(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("engine: failed to load replicate token from store")
		} else {
			token = stored
		}
	}

	var limiter *rate.Limiter
	if cfg.ProviderRPS > 0 {
		burst := int(cfg.ProviderRPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.ProviderRPS), burst)
	}

	client, err := replicate.NewClient(replicate.Options{
		APIToken:      token,
		BaseURL:       cfg.ReplicateBaseURL,
		HTTPClient:    &http.Client{},
		Logger:        logger,
		Limiter:       limiter,
		SubmitTimeout: cfg.SubmitTimeout,
		RunTimeout:    cfg.RunTimeout,
		StatusTimeout: cfg.StatusTimeout,
	})
	if err != nil {
		return nil, err
	}
	if !client.HasCredentials() {
		logger.Warn().Msg("engine: REPLICATE_API_TOKEN missing, submissions will fail until configured")
	}

	cacheOpts := cache.Options{
		Expiry:   cfg.CacheExpiry,
		StaleFor: cfg.CacheStaleFor,
		Logger:   logger,
	}
	if opts.Sweep {
		cacheOpts.SweepInterval = cfg.CacheSweepInterval
	}
	var store *cache.PGStore
	if opts.SQL != nil {
		store = cache.NewPGStore(opts.SQL)
		cacheOpts.Store = store
	}
	results := cache.New(cacheOpts)

	svc, err := generation.NewService(generation.Options{
		Catalog:         catalog,
		Adapter:         image.NewAdapter(client, logger),
		Cache:           results,
		StrictProviders: cfg.StrictProviderKeys,
		PendingFor:      cfg.PollMaxElapsed,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("default_provider", string(catalog.Default())).
		Int("providers", len(catalog.Keys())).
		Dur("cache_expiry", results.Expiry()).
		Bool("durable_cache", store != nil).
		Msg("engine: ready")

	return &Engine{Service: svc, Catalog: catalog, Cache: results, Client: client, Store: store}, nil
}

// PollPolicy returns the configured caller-side polling bounds.
func PollPolicy(cfg *infra.Config) generation.PollPolicy {
	return generation.PollPolicy{
		Interval:    cfg.PollInterval,
		MaxAttempts: cfg.PollMaxAttempts,
		MaxElapsed:  cfg.PollMaxElapsed,
	}
}
