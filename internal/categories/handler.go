package categories

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkpress/inkpress/internal/auth"
	"github.com/inkpress/inkpress/internal/platform/httpx"
	"github.com/inkpress/inkpress/internal/policy"
	"github.com/inkpress/inkpress/internal/rbac"
	"github.com/inkpress/inkpress/internal/shared"
	"github.com/inkpress/inkpress/internal/storage"
)

// Handler serves category endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	rbac        rbac.Middleware
	validator   *httpx.Validator
	baseURL     string
	uploadLimit int64
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, baseURL string, uploadLimit int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac, validator: httpx.NewValidator(), baseURL: baseURL, uploadLimit: uploadLimit}
}

// MountRoutes registers category routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Show)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require("category.manage", policy.CanManageCategories))
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/image", h.UploadImage)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.List(r.Context(), shared.ListQueryFromURL(r.URL.Query()))
	if err != nil {
		h.fail(w, "list categories", err)
		return
	}
	for i := range page.Items {
		page.Items[i] = h.present(page.Items[i])
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	category, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get category", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.present(category))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !h.decode(w, r, &req) {
		return
	}
	category, err := h.service.Create(r.Context(), auth.ActorFromContext(r.Context()), req)
	if err != nil {
		h.fail(w, "create category", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, h.present(category))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	category, err := h.service.Update(r.Context(), auth.ActorFromContext(r.Context()), id, req)
	if err != nil {
		h.fail(w, "update category", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.present(category))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), auth.ActorFromContext(r.Context()), id); err != nil {
		h.fail(w, "delete category", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	file, header, err := httpx.FormFile(w, r, "file", h.uploadLimit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer file.Close()

	category, err := h.service.SetImage(r.Context(), auth.ActorFromContext(r.Context()), id, header.Filename, file)
	if err != nil {
		h.fail(w, "upload category image", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.present(category))
}

func (h *Handler) present(c Category) Category {
	c.ImageURL = storage.PublicURL(h.baseURL, c.ImageURL)
	return c
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(w, r, target); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
