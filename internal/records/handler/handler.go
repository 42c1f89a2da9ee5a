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
	"medvault/internal/records"
	"medvault/internal/transport/http/shared"
	"medvault/pkg/domain"
	dErrors "medvault/pkg/domain-errors"
)

// Service defines the lifecycle operations the handler exposes.
type Service interface {
	Submit(ctx context.Context, caller domain.Identity, input records.SubmitInput) (domain.Record, error)
	Verify(ctx context.Context, caller domain.Identity, recordID domain.RecordID) (domain.Record, error)
	EditAndVerify(ctx context.Context, caller domain.Identity, recordID domain.RecordID, patch domain.FieldPatch) (domain.Record, error)
	RequestCorrection(ctx context.Context, caller domain.Identity, recordID domain.RecordID, reason string, requestedChanges domain.FieldPatch) (domain.CorrectionRequest, error)
	ResolveCorrection(ctx context.Context, caller domain.Identity, recordID domain.RecordID, requestID domain.CorrectionRequestID, decision records.ResolveDecision) (domain.Record, error)
	Get(ctx context.Context, caller domain.Identity, recordID domain.RecordID) (domain.Record, error)
	List(ctx context.Context, caller domain.Identity) ([]domain.Record, error)
	ListCorrections(ctx context.Context, caller domain.Identity, recordID domain.RecordID) ([]domain.CorrectionRequest, error)
}

// Handler is the thin HTTP layer over the record lifecycle. It decodes,
// delegates, and encodes; every rule lives in the service.
type Handler struct {
	logger    *slog.Logger
	service   Service
	metrics   *metrics.Metrics
	validator middleware.TokenValidator
}

func New(service Service, logger *slog.Logger, m *metrics.Metrics, validator middleware.TokenValidator) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		metrics:   m,
		validator: validator,
	}
}

// Register mounts the record routes with the shared middleware chain.
func (h *Handler) Register(r chi.Router) {
	rr := chi.NewRouter()
	rr.Use(middleware.Recovery(h.logger))
	rr.Use(middleware.RequestID)
	rr.Use(middleware.Logger(h.logger))
	rr.Use(middleware.Timeout(30 * time.Second))
	rr.Use(middleware.ContentTypeJSON)
	rr.Use(middleware.Latency(h.metrics))
	rr.Use(middleware.RequireAuth(h.validator, h.logger))

	rr.Post("/", h.handleSubmit)
	rr.Get("/", h.handleList)
	rr.Get("/{recordID}", h.handleGet)
	rr.Post("/{recordID}/verify", h.handleVerify)
	rr.Post("/{recordID}/edit-verify", h.handleEditAndVerify)
	rr.Post("/{recordID}/corrections", h.handleRequestCorrection)
	rr.Get("/{recordID}/corrections", h.handleListCorrections)
	rr.Post("/{recordID}/corrections/{requestID}/resolve", h.handleResolveCorrection)

	r.Mount("/records", rr)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := middleware.GetIdentity(ctx)
	if !ok {
		h.authContextError(w, ctx)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	subjectID, err := domain.ParseActorID(req.SubjectID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	clinicianID, err := domain.ParseActorID(req.ClinicianID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	record, err := h.service.Submit(ctx, caller, records.SubmitInput{
		SubjectID:   subjectID,
		ClinicianID: clinicianID,
		Fields:      req.Fields,
	})
	if err != nil {
		h.writeServiceError(w, ctx, "submit record", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toRecordResponse(record))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := middleware.GetIdentity(ctx)
	if !ok {
		h.authContextError(w, ctx)
		return
	}
	recordID, err := domain.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	record, err := h.service.Get(ctx, caller, recordID)
	if err != nil {
		h.writeServiceError(w, ctx, "get record", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toRecordResponse(record))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := middleware.GetIdentity(ctx)
	if !ok {
		h.authContextError(w, ctx)
		return
	}
	recs, err := h.service.List(ctx, caller)
	if err != nil {
		h.writeServiceError(w, ctx, "list records", err)
		return
	}
	out := make([]recordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRecordResponse(rec))
	}
	shared.WriteJSON(w, http.StatusOK, listRecordsResponse{Records: out})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := middleware.GetIdentity(ctx)
	if !ok {
		h.authContextError(w, ctx)
		return
	}
	recordID, err := domain.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	record, err := h.service.Verify(ctx, caller, recordID)
	if err != nil {
		h.writeServiceError(w, ctx, "verify record", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toRecordResponse(record))
}

func (h *Handler) handleEditAndVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := middleware.GetIdentity(ctx)
	if !ok {
		h.authContextError(w, ctx)
		return
	}
	recordID, err := domain.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req editAndVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	record, err := h.service.EditAndVerify(ctx, caller, recordID, req.Patch)
	if err != nil {
		h.writeServiceError(w, ctx, "edit and verify record", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toRecordResponse(record))
}

func (h *Handler) handleRequestCorrection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := middleware.GetIdentity(ctx)
	if !ok {
		h.authContextError(w, ctx)
		return
	}
	recordID, err := domain.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req requestCorrectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	request, err := h.service.RequestCorrection(ctx, caller, recordID, req.Reason, req.RequestedChanges)
	if err != nil {
		h.writeServiceError(w, ctx, "request correction", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toCorrectionResponse(request))
}

func (h *Handler) handleListCorrections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := middleware.GetIdentity(ctx)
	if !ok {
		h.authContextError(w, ctx)
		return
	}
	recordID, err := domain.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	reqs, err := h.service.ListCorrections(ctx, caller, recordID)
	if err != nil {
		h.writeServiceError(w, ctx, "list corrections", err)
		return
	}
	out := make([]correctionResponse, 0, len(reqs))
	for _, request := range reqs {
		out = append(out, toCorrectionResponse(request))
	}
	shared.WriteJSON(w, http.StatusOK, listCorrectionsResponse{Corrections: out})
}

func (h *Handler) handleResolveCorrection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := middleware.GetIdentity(ctx)
	if !ok {
		h.authContextError(w, ctx)
		return
	}
	recordID, err := domain.ParseRecordID(chi.URLParam(r, "recordID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	requestID, err := domain.ParseCorrectionRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req resolveCorrectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	record, err := h.service.ResolveCorrection(ctx, caller, recordID, requestID, records.ResolveDecision{
		Approve:  req.Approve,
		Patch:    req.Patch,
		Response: req.Response,
	})
	if err != nil {
		h.writeServiceError(w, ctx, "resolve correction", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toRecordResponse(record))
}

func (h *Handler) authContextError(w http.ResponseWriter, ctx context.Context) {
	// This should never happen if RequireAuth middleware is configured
	// correctly.
	h.logger.ErrorContext(ctx, "identity missing from context despite auth middleware",
		"request_id", middleware.GetRequestID(ctx),
	)
	shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
}

func (h *Handler) writeServiceError(w http.ResponseWriter, ctx context.Context, op string, err error) {
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
