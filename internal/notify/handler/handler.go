package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"medvault/internal/platform/metrics"
	"medvault/internal/platform/middleware"
	"medvault/internal/transport/http/shared"
	"medvault/pkg/domain"
	dErrors "medvault/pkg/domain-errors"
)

// Service defines the inbox operations the handler exposes.
type Service interface {
	List(ctx context.Context, caller domain.Identity, unreadOnly bool) ([]domain.Notification, error)
	MarkRead(ctx context.Context, caller domain.Identity, id domain.NotificationID) error
}

// Handler is the thin HTTP layer over a recipient's notification inbox.
type Handler struct {
	logger    *slog.Logger
	service   Service
	metrics   *metrics.Metrics
	validator middleware.TokenValidator
}

func New(service Service, logger *slog.Logger, m *metrics.Metrics, validator middleware.TokenValidator) *Handler {
	return &Handler{logger: logger, service: service, metrics: m, validator: validator}
}

// Register mounts the notification routes with the shared middleware chain.
func (h *Handler) Register(r chi.Router) {
	nr := chi.NewRouter()
	nr.Use(middleware.Recovery(h.logger))
	nr.Use(middleware.RequestID)
	nr.Use(middleware.Logger(h.logger))
	nr.Use(middleware.Timeout(30 * time.Second))
	nr.Use(middleware.ContentTypeJSON)
	nr.Use(middleware.Latency(h.metrics))
	nr.Use(middleware.RequireAuth(h.validator, h.logger))

	nr.Get("/", h.handleList)
	nr.Post("/{notificationID}/read", h.handleMarkRead)

	r.Mount("/notifications", nr)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := middleware.GetIdentity(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"
	list, err := h.service.List(ctx, caller, unreadOnly)
	if err != nil {
		h.logAndWrite(w, ctx, "list notifications", err)
		return
	}
	out := make([]notificationResponse, 0, len(list))
	for _, n := range list {
		out = append(out, toNotificationResponse(n))
	}
	shared.WriteJSON(w, http.StatusOK, listNotificationsResponse{Notifications: out})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := middleware.GetIdentity(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}
	id, err := domain.ParseNotificationID(chi.URLParam(r, "notificationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.service.MarkRead(ctx, caller, id); err != nil {
		h.logAndWrite(w, ctx, "mark notification read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) logAndWrite(w http.ResponseWriter, ctx context.Context, op string, err error) {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal || code == dErrors.CodeUnavailable {
		h.logger.ErrorContext(ctx, "failed to "+op,
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
	} else {
		h.logger.WarnContext(ctx, op+" rejected",
			"request_id", middleware.GetRequestID(ctx),
			"code", string(code),
		)
	}
	shared.WriteError(w, err)
}

type notificationResponse struct {
	ID             string            `json:"id"`
	Type           string            `json:"type"`
	Priority       string            `json:"priority"`
	ActionRequired bool              `json:"action_required"`
	Read           bool              `json:"read"`
	Data           map[string]string `json:"data,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

type listNotificationsResponse struct {
	Notifications []notificationResponse `json:"notifications"`
}

func toNotificationResponse(n domain.Notification) notificationResponse {
	return notificationResponse{
		ID:             n.ID.String(),
		Type:           string(n.Type),
		Priority:       n.Priority.String(),
		ActionRequired: n.ActionRequired,
		Read:           n.Read,
		Data:           n.Data,
		CreatedAt:      n.CreatedAt,
	}
}
