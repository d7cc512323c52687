package classes

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

// Handler exposes class endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the class routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Rename)
	r.Delete("/{id}", h.Delete)
	r.Put("/{id}/schools/{schoolID}", h.LinkSchool)
	r.Delete("/{id}/schools/{schoolID}", h.UnlinkSchool)
	r.Get("/{id}/roster", h.GetRoster)
	r.Put("/{id}/teachers/{userID}", h.AddTeacher)
	r.Delete("/{id}/teachers/{userID}", h.RemoveTeacher)
	r.Put("/{id}/students/{userID}", h.AddStudent)
	r.Delete("/{id}/students/{userID}", h.RemoveStudent)
}

type createRequest struct {
	OrganizationID uuid.UUID `json:"organization_id" validate:"required"`
	Name           string    `json:"name" validate:"required,min=1,max=200"`
}

type renameRequest struct {
	Name string `json:"name" validate:"required,min=1,max=200"`
}

type listResponse struct {
	Classes    []Class           `json:"classes"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, authz.ErrUnauthenticated)
		return
	}
	page := httpx.PageFromRequest(r)
	items, total, err := h.service.List(r.Context(), principal, page)
	if err != nil {
		h.logger.Error("list classes", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Class{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{
		Classes:    items,
		Pagination: shared.NewPagination(page.Page, page.PerPage, total),
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, authz.ErrUnauthenticated)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid class id")
		return
	}
	class, err := h.service.Get(r.Context(), principal, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, class)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
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
	class, err := h.service.Create(r.Context(), principal, req.OrganizationID, req.Name)
	if err != nil {
		h.logger.Error("create class", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, class)
}

func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, authz.ErrUnauthenticated)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid class id")
		return
	}
	var req renameRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Rename(r.Context(), principal, id, req.Name); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, authz.ErrUnauthenticated)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid class id")
		return
	}
	if err := h.service.SoftDelete(r.Context(), principal, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetRoster(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, authz.ErrUnauthenticated)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid class id")
		return
	}
	roster, err := h.service.GetRoster(r.Context(), principal, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, roster)
}

func (h *Handler) LinkSchool(w http.ResponseWriter, r *http.Request) {
	h.pairAction(w, r, "schoolID", h.service.LinkSchool)
}

func (h *Handler) UnlinkSchool(w http.ResponseWriter, r *http.Request) {
	h.pairAction(w, r, "schoolID", h.service.UnlinkSchool)
}

func (h *Handler) AddTeacher(w http.ResponseWriter, r *http.Request) {
	h.pairAction(w, r, "userID", h.service.AddTeacher)
}

func (h *Handler) RemoveTeacher(w http.ResponseWriter, r *http.Request) {
	h.pairAction(w, r, "userID", h.service.RemoveTeacher)
}

func (h *Handler) AddStudent(w http.ResponseWriter, r *http.Request) {
	h.pairAction(w, r, "userID", h.service.AddStudent)
}

func (h *Handler) RemoveStudent(w http.ResponseWriter, r *http.Request) {
	h.pairAction(w, r, "userID", h.service.RemoveStudent)
}

// pairAction handles the roster and school-link endpoints, which all take a
// class id plus one more id in the path and return 204.
func (h *Handler) pairAction(w http.ResponseWriter, r *http.Request, param string, fn func(ctx context.Context, principal authz.Principal, classID, otherID uuid.UUID) error) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, authz.ErrUnauthenticated)
		return
	}
	classID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid class id")
		return
	}
	otherID, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid "+param)
		return
	}
	if err := fn(r.Context(), principal, classID, otherID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
