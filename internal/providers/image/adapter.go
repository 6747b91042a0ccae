// Package image collapses the prediction backends (synchronous model runs,
// named deployments and pinned versions) behind one submit/status contract.
package image

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"creatorhub/internal/domain"
	"creatorhub/internal/infra"
	"creatorhub/internal/providers/replicate"
)

// Backend is the subset of the prediction API used by the adapter.
type Backend interface {
	Run(ctx context.Context, model string, input map[string]any) (*replicate.Prediction, error)
	CreateDeploymentPrediction(ctx context.Context, deployment string, input map[string]any) (*replicate.Prediction, error)
	CreatePrediction(ctx context.Context, version string, input map[string]any) (*replicate.Prediction, error)
	GetPrediction(ctx context.Context, id string) (*replicate.Prediction, error)
}

// Adapter submits targets and reshapes predictions into domain values.
type Adapter struct {
	backend Backend
	logger  *infra.Logger
	now     func() time.Time
}

// NewAdapter wires a backend with an optional logger.
func NewAdapter(backend Backend, logger *infra.Logger) *Adapter {
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &Adapter{backend: backend, logger: logger, now: time.Now}
}

// Submit sends req to target. A synchronous completion yields an output,
// anything still running yields a handle.
func (a *Adapter) Submit(ctx context.Context, target Target, cfg ProviderConfig, req domain.GenerationRequest) (domain.Submission, error) {
	if a == nil || a.backend == nil {
		return domain.Submission{}, fmt.Errorf("image adapter not configured: %w", domain.ErrProviderUnavailable)
	}
	input := cfg.Input(target, req)

	var (
		pred *replicate.Prediction
		err  error
	)
	switch target.Kind {
	case TargetRun:
		pred, err = a.backend.Run(ctx, target.Ref, input)
	case TargetDeployment:
		pred, err = a.backend.CreateDeploymentPrediction(ctx, target.Ref, input)
	case TargetVersion:
		pred, err = a.backend.CreatePrediction(ctx, target.Ref, input)
	default:
		return domain.Submission{}, domain.InvalidInput(fmt.Sprintf("unsupported target kind %q", target.Kind))
	}
	if err != nil {
		return domain.Submission{}, err
	}

	a.logger.Info().
		Str("provider", string(cfg.Key)).
		Str("target", target.String()).
		Str("prediction_id", pred.ID).
		Str("status", string(pred.Status)).
		Msg("image: prediction submitted")

	switch pred.Status {
	case domain.JobStatusSucceeded:
		if len(pred.Output) == 0 {
			return domain.Submission{}, domain.GenerationFailed(pred.ID, "provider returned no output")
		}
		return domain.Submission{Output: pred.Output.Clone(), Provider: target.String()}, nil
	case domain.JobStatusFailed, domain.JobStatusCanceled:
		return domain.Submission{}, domain.GenerationFailed(pred.ID, pred.ErrorMessage())
	default:
		return domain.Submission{Handle: a.handle(pred), Provider: target.String()}, nil
	}
}

// Status performs one status query and reshapes it. Output is only set on
// success and Error only on failure or cancellation.
func (a *Adapter) Status(ctx context.Context, id string) (domain.Snapshot, error) {
	if a == nil || a.backend == nil {
		return domain.Snapshot{}, fmt.Errorf("image adapter not configured: %w", domain.ErrProviderUnavailable)
	}
	pred, err := a.backend.GetPrediction(ctx, id)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap := domain.Snapshot{ID: pred.ID, Status: pred.Status}
	if snap.ID == "" {
		snap.ID = id
	}
	if snap.Status == "" {
		snap.Status = domain.JobStatusStarting
	}
	switch snap.Status {
	case domain.JobStatusSucceeded:
		snap.Output = pred.Output.Clone()
	case domain.JobStatusFailed, domain.JobStatusCanceled:
		snap.Error = pred.ErrorMessage()
		if snap.Error == "" {
			snap.Error = domain.DefaultFailureMessage
		}
	}
	return snap, nil
}

func (a *Adapter) handle(pred *replicate.Prediction) *domain.JobHandle {
	status := pred.Status
	if status == "" {
		status = domain.JobStatusStarting
	}
	created := pred.CreatedAt
	if created.IsZero() {
		created = a.now()
	}
	return &domain.JobHandle{ID: pred.ID, Status: status, CreatedAt: created}
}
