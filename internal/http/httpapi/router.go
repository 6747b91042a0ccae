package httpapi

import (
	"net/http"
	"time"

	"creatorhub/internal/http/handlers"
	"creatorhub/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	var origins []string
	rateLimit := 0
	if app.Config != nil {
		origins = app.Config.AllowedOrigins
		rateLimit = app.Config.RateLimitPerMin
	}

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(*app.Logger),
		middleware.CORS(origins),
	)

	// Health
	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/providers", app.Providers)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(rateLimit, time.Minute))
		r.Post("/v1/predictions", app.Predictions)
		r.Post("/api/generate-image", app.Predictions)
	})
	r.Get("/v1/predictions/{id}", app.PredictionStatus)

	return r
}
