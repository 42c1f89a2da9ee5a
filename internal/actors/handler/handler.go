package handler

import (
	"context"
	"encoding/json"
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

// Service defines the actor operations the handler exposes.
type Service interface {
	Register(ctx context.Context, caller domain.Identity, name string) (domain.Actor, error)
	VerifyActor(ctx context.Context, caller domain.Identity, actorID domain.ActorID) (domain.Actor, error)
	RejectActor(ctx context.Context, caller domain.Identity, actorID domain.ActorID) (domain.Actor, error)
	List(ctx context.Context, caller domain.Identity) ([]domain.Actor, error)
}

// Handler is the thin HTTP layer over actor registration and administrator
// review.
type Handler struct {
	logger    *slog.Logger
	service   Service
	metrics   *metrics.Metrics
	validator middleware.TokenValidator
}

func New(service Service, logger *slog.Logger, m *metrics.Metrics, validator middleware.TokenValidator) *Handler {
	return &Handler{logger: logger, service: service, metrics: m, validator: validator}
}

// Register mounts the actor routes with the shared middleware chain.
func (h *Handler) Register(r chi.Router) {
	ar := chi.NewRouter()
	ar.Use(middleware.Recovery(h.logger))
	ar.Use(middleware.RequestID)
	ar.Use(middleware.Logger(h.logger))
	ar.Use(middleware.Timeout(30 * time.Second))
	ar.Use(middleware.ContentTypeJSON)
	ar.Use(middleware.Latency(h.metrics))
	ar.Use(middleware.RequireAuth(h.validator, h.logger))

	ar.Post("/", h.handleRegister)
	ar.Get("/", h.handleList)
	ar.Post("/{actorID}/verify", h.handleVerify)
	ar.Post("/{actorID}/reject", h.handleReject)

	r.Mount("/actors", ar)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := middleware.GetIdentity(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	actor, err := h.service.Register(ctx, caller, req.Name)
	if err != nil {
		h.logAndWrite(w, ctx, "register actor", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toActorResponse(actor))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := middleware.GetIdentity(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}
	list, err := h.service.List(ctx, caller)
	if err != nil {
		h.logAndWrite(w, ctx, "list actors", err)
		return
	}
	out := make([]actorResponse, 0, len(list))
	for _, actor := range list {
		out = append(out, toActorResponse(actor))
	}
	shared.WriteJSON(w, http.StatusOK, listActorsResponse{Actors: out})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, true)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, false)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request, verify bool) {
	ctx := r.Context()
	caller, ok := middleware.GetIdentity(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}
	actorID, err := domain.ParseActorID(chi.URLParam(r, "actorID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var actor domain.Actor
	if verify {
		actor, err = h.service.VerifyActor(ctx, caller, actorID)
	} else {
		actor, err = h.service.RejectActor(ctx, caller, actorID)
	}
	if err != nil {
		h.logAndWrite(w, ctx, "review actor", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toActorResponse(actor))
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

type registerRequest struct {
	Name string `json:"name"`
}

type actorResponse struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Role               string    `json:"role"`
	VerificationStatus string    `json:"verification_status"`
	Disabled           bool      `json:"disabled"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type listActorsResponse struct {
	Actors []actorResponse `json:"actors"`
}

func toActorResponse(actor domain.Actor) actorResponse {
	return actorResponse{
		ID:                 actor.ID.String(),
		Name:               actor.Name,
		Role:               actor.Role.String(),
		VerificationStatus: actor.VerificationStatus.String(),
		Disabled:           actor.Disabled,
		CreatedAt:          actor.CreatedAt,
		UpdatedAt:          actor.UpdatedAt,
	}
}
