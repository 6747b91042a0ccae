package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"creatorhub/internal/domain"
	"creatorhub/internal/middleware"
)

const maxBodyBytes = 1 << 20

// predictionRequest carries both request variants. A present predictionId
// makes it a status check whatever else is set.
type predictionRequest struct {
	PredictionID   *string `json:"predictionId"`
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negativePrompt"`
	ModelType      string  `json:"modelType"`
}

type predictionRef struct {
	ID     string           `json:"id"`
	Status domain.JobStatus `json:"status"`
}

type processingResponse struct {
	JobID      string        `json:"jobId"`
	Prediction predictionRef `json:"prediction"`
	Status     string        `json:"status"`
}

type outputResponse struct {
	Output domain.Output `json:"output"`
}

// Predictions dispatches a POST body to a status check or a new generation.
func (a *App) Predictions(w http.ResponseWriter, r *http.Request) {
	var req predictionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			a.error(w, http.StatusBadRequest, "invalid_input", "request body is required")
			return
		}
		a.error(w, http.StatusBadRequest, "invalid_input", "invalid payload")
		return
	}
	if req.PredictionID != nil {
		a.status(w, r, *req.PredictionID)
		return
	}

	res, err := a.Service.Generate(r.Context(), domain.GenerationRequest{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Provider:       domain.ProviderKey(req.ModelType),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !res.Done() {
		a.Logger.Info().
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("provider", string(res.Provider)).
			Str("job_id", res.Handle.ID).
			Msg("prediction started")
		a.json(w, http.StatusAccepted, processingResponse{
			JobID:      res.Handle.ID,
			Prediction: predictionRef{ID: res.Handle.ID, Status: res.Handle.Status},
			Status:     string(domain.JobStatusProcessing),
		})
		return
	}
	a.json(w, http.StatusOK, outputResponse{Output: res.Output})
}

// PredictionStatus is the path-parameter form of a status check.
func (a *App) PredictionStatus(w http.ResponseWriter, r *http.Request) {
	a.status(w, r, chi.URLParam(r, "id"))
}

func (a *App) status(w http.ResponseWriter, r *http.Request, id string) {
	snap, err := a.Service.CheckStatus(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, snap)
}
