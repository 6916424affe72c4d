package httpapi

import (
	"net/http"
	"time"

	"thumbforge/internal/http/handlers"
	appmw "thumbforge/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter assembles the API surface. Health and the docs endpoints
// stay open; everything else under /v1 requires a bearer token and is
// rate limited per user.
func NewRouter(app *handlers.App) http.Handler {
	r := chi.NewRouter()

	r.Use(
		appmw.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		appmw.Logger(app.Logger),
		appmw.CORS(app.Config.CORSOrigins),
	)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/openapi.json", app.OpenAPIJSON)
		r.Get("/docs", app.OpenAPIDocs)

		r.Group(func(r chi.Router) {
			r.Use(appmw.Identity(app.Config.JWTSecret))
			r.Use(appmw.RateLimit(app.Config.RateLimitPerMin, time.Minute))

			r.Post("/generations", app.GenerationsCreate)
			r.Get("/generations", app.GenerationsList)
			r.Get("/generations/{generationID}", app.GenerationGet)

			r.Post("/prompts/preview", app.PromptsPreview)
			r.Post("/prompts/refine", app.PromptsRefine)

			r.Get("/credits", app.CreditsGet)
			r.Get("/references", app.ReferencesList)
		})
	})

	return r
}
