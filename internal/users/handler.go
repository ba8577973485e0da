package users

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkpress/inkpress/internal/auth"
	"github.com/inkpress/inkpress/internal/platform/httpx"
	"github.com/inkpress/inkpress/internal/policy"
	"github.com/inkpress/inkpress/internal/shared"
	"github.com/inkpress/inkpress/internal/storage"
)

// Handler manages user endpoints.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	validator   *httpx.Validator
	baseURL     string
	uploadLimit int64
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, baseURL string, uploadLimit int64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator(), baseURL: baseURL, uploadLimit: uploadLimit}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register", h.register)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Get("/me", h.me)
		r.Put("/me", h.updateMe)
		r.Post("/me/image", h.uploadMyImage)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Post("/{id}/verify", h.verify)
	})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, err := h.service.Register(r.Context(), req)
	if err != nil {
		h.fail(w, "register user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, h.toResponse(*u))
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	actor := auth.ActorFromContext(r.Context())
	h.respondUser(w, r, actor, actor.ID)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respondUser(w, r, auth.ActorFromContext(r.Context()), id)
}

func (h *Handler) respondUser(w http.ResponseWriter, r *http.Request, actor policy.Actor, id int64) {
	u, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.fail(w, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(*u))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{Page: shared.PageFromQuery(q)}
	if raw := q.Get("role"); raw != "" {
		role, ok := policy.ParseRole(raw)
		if !ok {
			httpx.RespondError(w, shared.NewValidationError("role", "must be one of [user author admin]"))
			return
		}
		filter.Role = role
	}
	if raw := q.Get("status"); raw != "" {
		status, ok := policy.ParseAccountStatus(raw)
		if !ok {
			httpx.RespondError(w, shared.NewValidationError("status", "is not a known account status"))
			return
		}
		filter.Status = status
	}
	page, err := h.service.List(r.Context(), auth.ActorFromContext(r.Context()), filter)
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	out := make([]UserResponse, 0, len(page.Items))
	for _, u := range page.Items {
		out = append(out, h.toResponse(u))
	}
	httpx.JSON(w, http.StatusOK, shared.Page[UserResponse]{Items: out, Pagination: page.Pagination})
}

func (h *Handler) updateMe(w http.ResponseWriter, r *http.Request) {
	h.applyUpdate(w, r, auth.ActorFromContext(r.Context()).ID)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.applyUpdate(w, r, id)
}

func (h *Handler) applyUpdate(w http.ResponseWriter, r *http.Request, id int64) {
	var req UpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, err := h.service.Update(r.Context(), auth.ActorFromContext(r.Context()), id, req)
	if err != nil {
		h.fail(w, "update user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(*u))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), auth.ActorFromContext(r.Context()), id); err != nil {
		h.fail(w, "delete user", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	u, err := h.service.Verify(r.Context(), auth.ActorFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, "verify user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.toResponse(*u))
}

func (h *Handler) uploadMyImage(w http.ResponseWriter, r *http.Request) {
	file, header, err := httpx.FormFile(w, r, "file", h.uploadLimit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	defer file.Close()

	actor := auth.ActorFromContext(r.Context())
	u, err := h.service.SetImage(r.Context(), actor, actor.ID, header.Filename, file)
	if err != nil {
		h.fail(w, "upload profile image", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{
		"message":   "Profile image updated",
		"image_url": storage.PublicURL(h.baseURL, u.ImageURL),
	})
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

func (h *Handler) toResponse(u User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Phone:     u.Phone,
		ImageURL:  storage.PublicURL(h.baseURL, u.ImageURL),
		Role:      string(u.Role),
		Status:    string(u.Status),
		Verified:  u.Verified,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
