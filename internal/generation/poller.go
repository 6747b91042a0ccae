package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"creatorhub/internal/domain"
	"creatorhub/internal/infra"
)

// ErrPollTimeout means the job did not reach a terminal status within the
// poll budget. The job itself keeps running at the provider.
var ErrPollTimeout = errors.New("generation: job still running after poll budget")

var errNotTerminal = errors.New("job not terminal")

const (
	DefaultPollInterval    = 2 * time.Second
	DefaultPollMaxAttempts = 150
	DefaultPollMaxElapsed  = 5 * time.Minute
)

// StatusChecker performs a single status query.
type StatusChecker interface {
	CheckStatus(ctx context.Context, id string) (domain.Snapshot, error)
}

// PollPolicy bounds a Poller. Zero values take the defaults.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
	MaxElapsed  time.Duration
}

func (p PollPolicy) withDefaults() PollPolicy {
	if p.Interval <= 0 {
		p.Interval = DefaultPollInterval
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPollMaxAttempts
	}
	if p.MaxElapsed <= 0 {
		p.MaxElapsed = DefaultPollMaxElapsed
	}
	return p
}

// Poller awaits a terminal status on behalf of a caller. Cancel the context
// passed to Await to stop polling.
type Poller struct {
	checker StatusChecker
	policy  PollPolicy
	logger  *infra.Logger
	// OnUpdate, if set, is called whenever the observed status changes.
	OnUpdate func(domain.Snapshot)
}

// NewPoller builds a Poller over checker.
func NewPoller(checker StatusChecker, policy PollPolicy, logger *infra.Logger) *Poller {
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &Poller{checker: checker, policy: policy.withDefaults(), logger: logger}
}

// Await polls id until it is terminal and returns that snapshot. Failed and
// canceled jobs are returned as snapshots, not errors. Transient provider
// failures are retried within the budget; anything else stops polling.
func (p *Poller) Await(ctx context.Context, id string) (domain.Snapshot, error) {
	pollCtx, cancel := context.WithTimeout(ctx, p.policy.MaxElapsed)
	defer cancel()

	var (
		last     domain.Snapshot
		attempts int
	)
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.policy.Interval), uint64(p.policy.MaxAttempts-1)),
		pollCtx,
	)
	op := func() error {
		attempts++
		snap, err := p.checker.CheckStatus(pollCtx, id)
		if err != nil {
			if transient(pollCtx, err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if snap.Status != last.Status && p.OnUpdate != nil {
			p.OnUpdate(snap)
		}
		last = snap
		if !snap.Status.IsTerminal() {
			return errNotTerminal
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		p.logger.Debug().Err(err).Str("job_id", id).Int("attempt", attempts).Dur("next", wait).Msg("generation: poll")
	}

	err := backoff.RetryNotify(op, b, notify)
	switch {
	case err == nil:
		return last, nil
	case ctx.Err() != nil:
		return last, ctx.Err()
	case errors.Is(err, errNotTerminal), pollCtx.Err() != nil:
		return last, fmt.Errorf("%w: %s after %d checks (last status %q)", ErrPollTimeout, id, attempts, last.Status)
	default:
		return last, err
	}
}

// transient reports whether a status error is worth another try.
func transient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrProviderUnavailable) {
		return false
	}
	return errors.Is(err, domain.ErrProviderFailure) || errors.Is(err, context.DeadlineExceeded)
}
