package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"creatorhub/internal/domain"
	"creatorhub/internal/generation"
	"creatorhub/internal/infra"
	"creatorhub/internal/middleware"
	"creatorhub/internal/providers/image"
)

// Generator is the engine behind the prediction endpoints.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (generation.Result, error)
	CheckStatus(ctx context.Context, id string) (domain.Snapshot, error)
}

type App struct {
	Config  *infra.Config
	Logger  *infra.Logger
	Service Generator
	Catalog *image.Catalog
}

func NewApp(cfg *infra.Config, logger *infra.Logger, svc Generator, catalog *image.Catalog) *App {
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &App{Config: cfg, Logger: logger, Service: svc, Catalog: catalog}
}

type errorResponse struct {
	Error   string         `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, msg string) {
	a.json(w, status, errorResponse{Error: msg, Details: map[string]any{"code": code}})
}

// fail maps an engine error to a status code and a structured body.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := classify(err)
	details := map[string]any{"code": code}
	var perr *domain.ProviderError
	if errors.As(err, &perr) {
		if perr.StatusCode > 0 {
			details["provider_status"] = perr.StatusCode
		}
		if perr.Op != "" {
			details["op"] = perr.Op
		}
		for k, v := range perr.Details {
			details[k] = v
		}
	}
	ev := a.Logger.Warn()
	if status >= http.StatusInternalServerError {
		ev = a.Logger.Error()
	}
	ev.Err(err).
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Int("status", status).
		Msg("request failed")
	a.json(w, status, errorResponse{Error: msg, Details: details})
}

// statusClientClosedRequest reports a caller that went away before the
// engine answered. Nothing reads the body; the code keeps it out of 5xx.
const statusClientClosedRequest = 499

func classify(err error) (int, string, string) {
	var perr *domain.ProviderError
	switch {
	case errors.Is(err, domain.ErrUnknownProvider):
		return http.StatusBadRequest, "unknown_provider", err.Error()
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input", err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found", "prediction not found"
	case errors.Is(err, domain.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, "provider_unavailable", "image provider is not available"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout", "image provider timed out"
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, "canceled", "request canceled"
	case errors.Is(err, domain.ErrProviderGeneration):
		msg := domain.DefaultFailureMessage
		if errors.As(err, &perr) && perr.Message != "" {
			msg = perr.Message
		}
		return http.StatusBadGateway, "generation_failed", msg
	case errors.Is(err, domain.ErrProviderSubmission):
		return http.StatusBadGateway, "submission_failed", "image provider rejected the request"
	case errors.Is(err, domain.ErrProviderFailure):
		return http.StatusBadGateway, "provider_error", "image provider error"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}
