package generation

import (
	"context"
	"errors"
	"fmt"

	"creatorhub/internal/domain"
)

// ErrNoTargets is returned when there is nothing to try.
var ErrNoTargets = fmt.Errorf("no submission targets: %w", domain.ErrProviderUnavailable)

// TryInOrder calls attempt for each candidate in order and returns the first
// success. Only submission errors advance to the next candidate; anything
// else stops immediately. When every candidate fails the last error wins.
func TryInOrder[C, R any](ctx context.Context, candidates []C, attempt func(context.Context, C) (R, error)) (R, error) {
	var zero R
	if len(candidates) == 0 {
		return zero, ErrNoTargets
	}
	var lastErr error
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		res, err := attempt(ctx, c)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !shouldAdvance(ctx, err) {
			return zero, err
		}
	}
	return zero, lastErr
}

func shouldAdvance(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, domain.ErrProviderUnavailable) || errors.Is(err, domain.ErrProviderGeneration) {
		return false
	}
	return errors.Is(err, domain.ErrProviderSubmission)
}
