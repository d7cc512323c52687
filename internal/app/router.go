package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/lyceum-platform/lyceum/internal/auth"
	"github.com/lyceum-platform/lyceum/internal/authz"
	"github.com/lyceum-platform/lyceum/internal/classes"
	"github.com/lyceum-platform/lyceum/internal/observability"
	"github.com/lyceum-platform/lyceum/internal/orgs"
	"github.com/lyceum-platform/lyceum/internal/roles"
	"github.com/lyceum-platform/lyceum/internal/schools"
	"github.com/lyceum-platform/lyceum/internal/taxonomy"
	"github.com/lyceum-platform/lyceum/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	Auth auth.Middleware

	OrgsHandler     *orgs.Handler
	SchoolsHandler  *schools.Handler
	ClassesHandler  *classes.Handler
	UsersHandler    *users.Handler
	RolesHandler    *roles.Handler
	TaxonomyHandler *taxonomy.Handler

	Metrics *observability.Metrics
}

// taxonomyMounts pairs each taxonomy kind with its URL segment.
var taxonomyMounts = []struct {
	path string
	kind authz.EntityKind
}{
	{"/programs", authz.KindProgram},
	{"/subjects", authz.KindSubject},
	{"/grades", authz.KindGrade},
	{"/age-ranges", authz.KindAgeRange},
	{"/categories", authz.KindCategory},
	{"/subcategories", authz.KindSubcategory},
}

// NewRouter constructs the chi.Router with the API surface under /v1.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(params.Auth.Authenticate)

		r.Route("/organizations", func(r chi.Router) {
			params.OrgsHandler.MountRoutes(r)
			// Roles are org-owned, so their collection lives under the org.
			r.Route("/{id}/roles", params.RolesHandler.MountRoutes)
		})
		r.Route("/schools", params.SchoolsHandler.MountRoutes)
		r.Route("/classes", params.ClassesHandler.MountRoutes)
		r.Route("/users", params.UsersHandler.MountRoutes)
		for _, mount := range taxonomyMounts {
			kind := mount.kind
			r.Route(mount.path, func(r chi.Router) {
				params.TaxonomyHandler.MountRoutes(r, kind)
			})
		}
	})

	return r
}
