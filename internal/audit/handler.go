package audit

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/inkpress/inkpress/internal/auth"
	"github.com/inkpress/inkpress/internal/platform/httpx"
	"github.com/inkpress/inkpress/internal/policy"
	"github.com/inkpress/inkpress/internal/rbac"
	"github.com/inkpress/inkpress/internal/shared"
)

const (
	exportRateLimit  = 10
	exportRateWindow = time.Minute
	defaultDateRange = 7 * 24 * time.Hour
	maxDateRange     = 90 * 24 * time.Hour
	dateLayout       = "2006-01-02"
)

// Handler serves the audit timeline.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
	now     func() time.Time
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac, now: time.Now}
}

// MountRoutes registers routes relative to /audit.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(exportRateLimit, exportRateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "export rate limit exceeded")
		}),
	)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require("audit.view", policy.CanViewAudit))
		r.Get("/", h.timeline)
		r.With(limiter).Get("/export.csv", h.export)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if actor := auth.ActorFromContext(r.Context()); !actor.IsAnonymous() {
		return "user:" + strconv.FormatInt(actor.ID, 10), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r.URL.Query(), h.now().UTC())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Timeline(r.Context(), auth.ActorFromContext(r.Context()), filters)
	if err != nil {
		h.fail(w, "load audit timeline", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r.URL.Query(), h.now().UTC())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.Export(r.Context(), auth.ActorFromContext(r.Context()), filters)
	if err != nil {
		h.fail(w, "export audit timeline", err)
		return
	}
	body, err := WriteCSV(rows)
	if err != nil {
		h.fail(w, "encode audit csv", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-timeline.csv"`)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("write audit csv", slog.Any("error", err))
	}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !httpx.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func parseFilters(q url.Values, now time.Time) (TimelineFilters, error) {
	to := now.Truncate(24 * time.Hour)
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			return TimelineFilters{}, shared.NewValidationError("to", "must be a YYYY-MM-DD date")
		}
		to = parsed
	}
	from := to.Add(-defaultDateRange)
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			return TimelineFilters{}, shared.NewValidationError("from", "must be a YYYY-MM-DD date")
		}
		from = parsed
	}
	if from.After(to) {
		return TimelineFilters{}, shared.NewValidationError("from", "must not be after to")
	}
	if to.Sub(from) > maxDateRange {
		return TimelineFilters{}, shared.NewValidationError("from", "range exceeds 90 days")
	}

	filters := TimelineFilters{
		From:   from,
		To:     to,
		Entity: strings.TrimSpace(q.Get("entity")),
		Action: strings.TrimSpace(q.Get("action")),
	}
	ints := []struct {
		name string
		dst  *int64
	}{
		{"actor_id", &filters.ActorID},
		{"entity_id", &filters.EntityID},
	}
	for _, f := range ints {
		raw := strings.TrimSpace(q.Get(f.name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v <= 0 {
			return TimelineFilters{}, shared.NewValidationError(f.name, "must be a positive integer")
		}
		*f.dst = v
	}
	for _, f := range []struct {
		name string
		dst  *int
	}{{"page", &filters.Page}, {"page_size", &filters.PageSize}} {
		raw := strings.TrimSpace(q.Get(f.name))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return TimelineFilters{}, shared.NewValidationError(f.name, "must be a positive integer")
		}
		*f.dst = v
	}
	return filters.normalized(), nil
}
