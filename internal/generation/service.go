// Package generation owns the job lifecycle: cache-first submission with
// ordered fallback, non-blocking status checks and caller-side polling.
package generation

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"creatorhub/internal/cache"
	"creatorhub/internal/domain"
	"creatorhub/internal/infra"
	"creatorhub/internal/providers/image"
)

// DefaultFlightTimeout bounds a shared submission once it no longer follows
// the context of the caller that started it.
const DefaultFlightTimeout = 2 * time.Minute

// Submitter is the provider adapter contract.
type Submitter interface {
	Submit(ctx context.Context, target image.Target, cfg image.ProviderConfig, req domain.GenerationRequest) (domain.Submission, error)
	Status(ctx context.Context, id string) (domain.Snapshot, error)
}

// Options wires a Service.
type Options struct {
	Catalog *image.Catalog
	Adapter Submitter
	Cache   *cache.ResultCache
	// StrictProviders rejects unknown provider keys instead of using the default.
	StrictProviders bool
	// FlightTimeout bounds a shared submission across all of its targets.
	FlightTimeout time.Duration
	// PendingFor is how long an accepted job is handed to identical
	// requests instead of being submitted again.
	PendingFor time.Duration
	Logger     *infra.Logger
}

// Service is safe for concurrent use.
type Service struct {
	catalog  *image.Catalog
	adapter  Submitter
	cache    *cache.ResultCache
	strict   bool
	timeout  time.Duration
	logger   *infra.Logger
	inflight singleflight.Group
	// jobs maps a pending prediction id to the cache key it was submitted
	// under, so a later status check can cache the output.
	jobs *gocache.Cache
	// pending maps a cache key to the handle of its unfinished job.
	pending *gocache.Cache
}

// Result is the outcome of Generate: an output (fresh or cached) or a
// handle to poll.
type Result struct {
	Output   domain.Output
	Handle   *domain.JobHandle
	Cached   bool
	Provider domain.ProviderKey
}

// Done reports whether Output is final.
func (r Result) Done() bool {
	return r.Handle == nil
}

// NewService validates opts and builds a Service.
func NewService(opts Options) (*Service, error) {
	if opts.Catalog == nil {
		return nil, fmt.Errorf("generation: catalog is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("generation: adapter is required")
	}
	results := opts.Cache
	if results == nil {
		results = cache.New(cache.Options{})
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	timeout := opts.FlightTimeout
	if timeout <= 0 {
		timeout = DefaultFlightTimeout
	}
	pendingFor := opts.PendingFor
	if pendingFor <= 0 {
		pendingFor = DefaultPollMaxElapsed
	}
	ttl := results.Expiry()
	return &Service{
		catalog: opts.Catalog,
		adapter: opts.Adapter,
		cache:   results,
		strict:  opts.StrictProviders,
		timeout: timeout,
		logger:  logger,
		jobs:    gocache.New(ttl, ttl),
		pending: gocache.New(pendingFor, pendingFor),
	}, nil
}

// Catalog exposes the provider catalogue.
func (s *Service) Catalog() *image.Catalog {
	return s.catalog
}

// Generate serves a new generation request. A valid cached output is
// returned without any provider call. Concurrent misses for the same key
// share one submission, and identical requests arriving while that job is
// still running get its handle.
//
// The shared submission outlives the caller that started it; a caller whose
// context ends stops waiting and gets ctx.Err() without affecting the others.
func (s *Service) Generate(ctx context.Context, req domain.GenerationRequest) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	cfg, err := s.catalog.Resolve(string(req.Provider), s.strict)
	if err != nil {
		return Result{}, err
	}
	req.Provider = cfg.Key
	key := req.CacheKey()

	if res, ok := s.known(ctx, key, cfg.Key); ok {
		return res, nil
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := s.inflight.DoChan(string(key), func() (any, error) {
		ctx, cancel := context.WithTimeout(flightCtx, s.timeout)
		defer cancel()
		// Another caller may have finished while we waited.
		if res, ok := s.known(ctx, key, cfg.Key); ok {
			return res, nil
		}
		sub, err := s.Submit(ctx, cfg, req)
		if err != nil {
			return nil, err
		}
		if sub.Done() {
			s.cache.Put(ctx, key, sub.Output)
			return Result{Output: sub.Output, Provider: cfg.Key}, nil
		}
		s.track(key, *sub.Handle)
		return Result{Handle: sub.Handle, Provider: cfg.Key}, nil
	})

	var out singleflight.Result
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case out = <-ch:
	}
	if out.Err != nil {
		return Result{}, out.Err
	}
	res, ok := out.Val.(Result)
	if !ok {
		return Result{}, fmt.Errorf("unexpected return type from singleflight: %T", out.Val)
	}
	if out.Shared {
		s.logger.Debug().Str("provider", string(cfg.Key)).Msg("generation: joined in-flight submission")
	}
	res.Output = res.Output.Clone()
	if res.Handle != nil {
		h := *res.Handle
		res.Handle = &h
	}
	return res, nil
}

// known returns a valid cached output or the handle of a job already
// running for key.
func (s *Service) known(ctx context.Context, key domain.CacheKey, provider domain.ProviderKey) (Result, bool) {
	if entry, ok := s.cache.Lookup(ctx, key); ok {
		s.logger.Debug().Str("provider", string(provider)).Msg("generation: cache hit")
		return Result{Output: entry.Output, Cached: true, Provider: provider}, true
	}
	if v, ok := s.pending.Get(string(key)); ok {
		if h, ok := v.(domain.JobHandle); ok {
			s.logger.Debug().Str("provider", string(provider)).Str("job_id", h.ID).Msg("generation: reusing pending job")
			return Result{Handle: &h, Provider: provider}, true
		}
	}
	return Result{}, false
}

func (s *Service) track(key domain.CacheKey, h domain.JobHandle) {
	s.jobs.Set(h.ID, key, gocache.DefaultExpiration)
	s.pending.Set(string(key), h, gocache.DefaultExpiration)
}

// forget drops the bookkeeping for a job that reached a terminal state.
func (s *Service) forget(id string) (domain.CacheKey, bool) {
	v, ok := s.jobs.Get(id)
	if !ok {
		return "", false
	}
	s.jobs.Delete(id)
	key, ok := v.(domain.CacheKey)
	if !ok {
		return "", false
	}
	if p, ok := s.pending.Get(string(key)); ok {
		if h, ok := p.(domain.JobHandle); ok && h.ID == id {
			s.pending.Delete(string(key))
		}
	}
	return key, true
}

// Submit tries cfg's targets in order. The first target that accepts the job
// wins, whether it finished synchronously or not.
func (s *Service) Submit(ctx context.Context, cfg image.ProviderConfig, req domain.GenerationRequest) (domain.Submission, error) {
	start := time.Now()
	sub, err := TryInOrder(ctx, cfg.Targets(), func(ctx context.Context, target image.Target) (domain.Submission, error) {
		sub, err := s.adapter.Submit(ctx, target, cfg, req)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("provider", string(cfg.Key)).
				Str("target", target.String()).
				Msg("generation: submission attempt failed")
		}
		return sub, err
	})
	if err != nil {
		return domain.Submission{}, err
	}
	ev := s.logger.Info().
		Str("provider", string(cfg.Key)).
		Str("target", sub.Provider).
		Dur("took", time.Since(start))
	if sub.Handle != nil {
		ev = ev.Str("job_id", sub.Handle.ID)
	}
	ev.Bool("done", sub.Done()).Msg("generation: submitted")
	return sub, nil
}

// CheckStatus performs exactly one status query. A succeeded job's output
// is cached under the key it was submitted with, if still known.
func (s *Service) CheckStatus(ctx context.Context, id string) (domain.Snapshot, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Snapshot{}, domain.InvalidInput("predictionId is required")
	}
	snap, err := s.adapter.Status(ctx, id)
	if err != nil {
		return domain.Snapshot{}, err
	}
	switch snap.Status {
	case domain.JobStatusSucceeded:
		if key, ok := s.forget(id); ok && len(snap.Output) > 0 {
			s.cache.Put(ctx, key, snap.Output)
		}
	case domain.JobStatusFailed, domain.JobStatusCanceled:
		s.forget(id)
		s.logger.Info().Str("job_id", id).Str("status", string(snap.Status)).Str("error", snap.Error).Msg("generation: job ended without output")
	}
	return snap, nil
}

// PendingJobs reports how many submitted jobs still await a terminal status.
func (s *Service) PendingJobs() int {
	return s.jobs.ItemCount()
}
