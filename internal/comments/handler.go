package comments

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkpress/inkpress/internal/auth"
	"github.com/inkpress/inkpress/internal/platform/httpx"
	"github.com/inkpress/inkpress/internal/shared"
)

// Handler serves comment endpoints nested under a post.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *httpx.Validator
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers routes relative to /posts/{id}/comments.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.With(auth.RequireAuth).Post("/", h.create)
	r.With(auth.RequireAuth).Delete("/{commentID}", h.delete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	postID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	page, err := h.service.List(r.Context(), auth.ActorFromContext(r.Context()), postID, shared.PageFromQuery(r.URL.Query()))
	if err != nil {
		h.fail(w, "list comments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	postID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req CreateRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	comment, err := h.service.Create(r.Context(), auth.ActorFromContext(r.Context()), postID, req)
	if err != nil {
		h.fail(w, "create comment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, comment)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	postID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.IDParam(r, "commentID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), auth.ActorFromContext(r.Context()), postID, id); err != nil {
		h.fail(w, "delete comment", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
