package taxonomy

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lyceum-platform/lyceum/internal/authz"
	"github.com/lyceum-platform/lyceum/internal/platform/httpx"
	"github.com/lyceum-platform/lyceum/internal/shared"
)

// Handler exposes the taxonomy endpoints. One handler serves all six entity
// kinds; the kind is fixed per mount point.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the routes for one entity kind.
func (h *Handler) MountRoutes(r chi.Router, kind authz.EntityKind) {
	r.Get("/", h.list(kind))
	r.Post("/", h.create(kind))
	r.Get("/{id}", h.get(kind))
	r.Patch("/{id}", h.rename(kind))
	r.Delete("/{id}", h.delete(kind))
	r.Get("/{id}/shares", h.sharedWith(kind))
	r.Put("/{id}/shares/{orgID}", h.share(kind))
	r.Delete("/{id}/shares/{orgID}", h.unshare(kind))
}

type createRequest struct {
	OrganizationID uuid.UUID `json:"organization_id" validate:"required"`
	Name           string    `json:"name" validate:"required,min=1,max=200"`
}

type renameRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

type listResponse struct {
	Items      []Entity          `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(kind authz.EntityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := shared.PrincipalFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, authz.ErrUnauthenticated)
			return
		}
		page := httpx.PageFromRequest(r)
		items, total, err := h.service.List(r.Context(), principal, kind, page)
		if err != nil {
			h.logger.Error("list taxonomy", slog.String("kind", string(kind)), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		if items == nil {
			items = []Entity{}
		}
		httpx.JSON(w, http.StatusOK, listResponse{
			Items:      items,
			Pagination: shared.NewPagination(page.Page, page.PerPage, total),
		})
	}
}

func (h *Handler) get(kind authz.EntityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := shared.PrincipalFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, authz.ErrUnauthenticated)
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
			return
		}
		entity, err := h.service.Get(r.Context(), principal, kind, id)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, entity)
	}
}

func (h *Handler) create(kind authz.EntityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := shared.PrincipalFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, authz.ErrUnauthenticated)
			return
		}
		var req createRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
		entity, err := h.service.Create(r.Context(), principal, kind, req.OrganizationID, req.Name)
		if err != nil {
			h.logger.Error("create taxonomy", slog.String("kind", string(kind)), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, entity)
	}
}

func (h *Handler) rename(kind authz.EntityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := shared.PrincipalFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, authz.ErrUnauthenticated)
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
			return
		}
		var req renameRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
		if err := h.service.Rename(r.Context(), principal, kind, id, req.Name); err != nil {
			httpx.RespondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) delete(kind authz.EntityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := shared.PrincipalFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, authz.ErrUnauthenticated)
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
			return
		}
		if err := h.service.SoftDelete(r.Context(), principal, kind, id); err != nil {
			httpx.RespondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) sharedWith(kind authz.EntityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := shared.PrincipalFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, authz.ErrUnauthenticated)
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
			return
		}
		orgs, err := h.service.SharedWith(r.Context(), principal, kind, id)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		if orgs == nil {
			orgs = []uuid.UUID{}
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"organization_ids": orgs})
	}
}

func (h *Handler) share(kind authz.EntityKind) http.HandlerFunc {
	return h.shareAction(kind, h.service.Share)
}

func (h *Handler) unshare(kind authz.EntityKind) http.HandlerFunc {
	return h.shareAction(kind, h.service.Unshare)
}

func (h *Handler) shareAction(kind authz.EntityKind, fn func(ctx context.Context, principal authz.Principal, kind authz.EntityKind, id, orgID uuid.UUID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := shared.PrincipalFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, authz.ErrUnauthenticated)
			return
		}
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
			return
		}
		orgID, err := uuid.Parse(chi.URLParam(r, "orgID"))
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid organization id")
			return
		}
		if err := fn(r.Context(), principal, kind, id, orgID); err != nil {
			httpx.RespondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
