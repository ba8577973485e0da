package posts

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/inkpress/inkpress/internal/auth"
	"github.com/inkpress/inkpress/internal/platform/httpx"
	"github.com/inkpress/inkpress/internal/policy"
	"github.com/inkpress/inkpress/internal/shared"
	"github.com/inkpress/inkpress/internal/storage"
)

// Handler serves post endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	validator   *httpx.Validator
	baseURL     string
	uploadLimit int64
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, baseURL string, uploadLimit int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator(), baseURL: baseURL, uploadLimit: uploadLimit}
}

// MountRoutes registers post routes. Reads are open to anonymous actors;
// the policy decides what they see.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.show)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Patch("/{id}/status", h.setStatus)
		r.Delete("/{id}", h.delete)
		r.Post("/{id}/image", h.uploadImage)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{Page: shared.PageFromQuery(q)}
	if raw := q.Get("status"); raw != "" {
		status, ok := policy.ParsePostStatus(raw)
		if !ok {
			httpx.RespondError(w, shared.NewValidationError("status", "is not a known post status"))
			return
		}
		filter.Status = status
	}
	for name, dst := range map[string]*int64{"category_id": &filter.CategoryID, "tag_id": &filter.TagID, "author_id": &filter.AuthorID} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httpx.RespondError(w, shared.NewValidationError(name, "must be a positive integer"))
			return
		}
		*dst = id
	}

	page, err := h.service.List(r.Context(), auth.ActorFromContext(r.Context()), filter)
	if err != nil {
		h.fail(w, "list posts", err)
		return
	}
	out := make([]PostResponse, 0, len(page.Items))
	for _, p := range page.Items {
		out = append(out, h.toResponse(p))
	}
	httpx.JSON(w, http.StatusOK, shared.Page[PostResponse]{Items: out, Pagination: page.Pagination})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	p, err := h.service.Get(r.Context(), auth.ActorFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, "get post", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(*p))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.service.Create(r.Context(), auth.ActorFromContext(r.Context()), req)
	if err != nil {
		h.fail(w, "create post", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, h.toResponse(*p))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var req UpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.service.Update(r.Context(), auth.ActorFromContext(r.Context()), id, req)
	if err != nil {
		h.fail(w, "update post", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(*p))
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var req StatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.service.SetStatus(r.Context(), auth.ActorFromContext(r.Context()), id, req.Status)
	if err != nil {
		h.fail(w, "set post status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(*p))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), auth.ActorFromContext(r.Context()), id); err != nil {
		h.fail(w, "archive post", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) uploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	file, header, err := httpx.FormFile(w, r, "file", h.uploadLimit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer file.Close()

	p, err := h.service.SetImage(r.Context(), auth.ActorFromContext(r.Context()), id, header.Filename, file)
	if err != nil {
		h.fail(w, "upload post image", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(*p))
}

func (h *Handler) id(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return 0, false
	}
	return id, true
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

func (h *Handler) toResponse(p Post) PostResponse {
	tags := p.Tags
	if tags == nil {
		tags = []TagRef{}
	}
	return PostResponse{
		ID:          p.ID,
		AuthorID:    p.AuthorID,
		CategoryID:  p.CategoryID,
		Status:      string(p.Status),
		Title:       p.Title,
		Description: p.Description,
		Content:     p.Content,
		ImageURL:    storage.PublicURL(h.baseURL, p.ImageURL),
		Tags:        tags,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
