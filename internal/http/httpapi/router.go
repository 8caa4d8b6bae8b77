package httpapi

import (
	stdhttp "net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"spinshot/internal/http/handlers"
	"spinshot/internal/middleware"
)

// NewRouter assembles the API routes and middleware chain.
func NewRouter(app *handlers.App, logger zerolog.Logger, allowedOrigins []string) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimiddleware.RealIP, chimiddleware.Recoverer)
	r.Use(middleware.CORS(allowedOrigins))
	r.Use(middleware.Locale("en"))
	r.Use(middleware.Logger(logger))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Post("/generate", app.Generate)
		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", app.JobList)
			r.Get("/{id}", app.JobGet)
			r.Get("/{id}/video", app.JobVideo)
		})
	})

	return r
}
