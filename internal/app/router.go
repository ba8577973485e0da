package app

import (
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/inkpress/inkpress/internal/audit"
	"github.com/inkpress/inkpress/internal/auth"
	"github.com/inkpress/inkpress/internal/categories"
	"github.com/inkpress/inkpress/internal/comments"
	"github.com/inkpress/inkpress/internal/observability"
	"github.com/inkpress/inkpress/internal/platform/httpx"
	"github.com/inkpress/inkpress/internal/posts"
	"github.com/inkpress/inkpress/internal/tags"
	"github.com/inkpress/inkpress/internal/users"
	"github.com/inkpress/inkpress/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Authentication    *auth.Middleware
	AuthHandler       *auth.Handler
	UsersHandler      *users.Handler
	PostsHandler      *posts.Handler
	CommentsHandler   *comments.Handler
	CategoriesHandler *categories.Handler
	TagsHandler       *tags.Handler
	AuditHandler      *audit.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with inkpress defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		Metrics:        params.Metrics,
		Authentication: params.Authentication,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.PostsHandler != nil {
		r.Route("/posts", func(r chi.Router) {
			params.PostsHandler.MountRoutes(r)
			if params.CommentsHandler != nil {
				r.Route("/{id}/comments", params.CommentsHandler.MountRoutes)
			}
		})
	}
	if params.CategoriesHandler != nil {
		r.Route("/categories", params.CategoriesHandler.MountRoutes)
	}
	if params.TagsHandler != nil {
		r.Route("/tags", params.TagsHandler.MountRoutes)
	}

	if params.AuditHandler != nil {
		r.Route("/audit", params.AuditHandler.MountRoutes)
	}

	if params.Config != nil && params.Config.MediaRoot != "" {
		prefix := "/" + strings.Trim(params.Config.MediaURL, "/")
		fileServer := http.StripPrefix(prefix+"/", http.FileServer(noDirFS{http.Dir(params.Config.MediaRoot)}))
		r.Handle(prefix+"/*", mediaCacheHandler(fileServer))
	}

	return r
}

// mediaCacheHandler wraps a file server with Cache-Control headers.
// Uploaded names are random, so a served file never changes.
func mediaCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=86400")
		next.ServeHTTP(w, r)
	})
}

// noDirFS hides directory listings.
type noDirFS struct {
	fs http.FileSystem
}

func (n noDirFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}
