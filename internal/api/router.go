// Package api exposes the project catalog over HTTP. Routes map directly
// onto cache and adapter operations; write routes require a viewer token.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/youthforge/forge/internal/adapter"
	"github.com/youthforge/forge/internal/cache"
	"github.com/youthforge/forge/internal/logging"
)

// Options configure the router.
type Options struct {
	Backend       adapter.ProjectsAdapter
	Store         *cache.Cache
	SecretKey     []byte
	TokenValidity time.Duration
	Logger        logging.Logger
}

// NewRouter builds the HTTP handler tree.
func NewRouter(opts Options) http.Handler {
	h := &handlers{
		backend:  opts.Backend,
		store:    opts.Store,
		secret:   opts.SecretKey,
		validity: opts.TokenValidity,
		respond:  responder{logger: opts.Logger},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(opts.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/viewer-token", h.issueToken)
		r.Get("/projects", h.listProjects)
		r.Get("/projects/{idOrSlug}", h.getProject)
		r.Get("/projects/{projectID}/comments", h.listComments)

		r.Group(func(r chi.Router) {
			r.Use(requireViewer(opts.SecretKey, h.respond))

			r.Post("/projects", h.createProject)
			r.Patch("/projects/{projectID}", h.updateProject)
			r.Delete("/projects/{projectID}", h.deleteProject)
			r.Post("/projects/{projectID}/comments", h.createComment)
			r.Post("/projects/{projectID}/like", h.toggleLike)
			r.Post("/projects/{projectID}/media", h.uploadMedia)
		})
	})

	return r
}
