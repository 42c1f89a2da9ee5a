package records

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"medvault/internal/events"
	"medvault/internal/platform/metrics"
	"medvault/internal/policy"
	"medvault/pkg/domain"
	dErrors "medvault/pkg/domain-errors"
	"medvault/pkg/platform/sentinel"
)

// ActorDirectory is the slice of the actors store the lifecycle needs:
// resolving assignment references at submit time.
type ActorDirectory interface {
	GetActor(ctx context.Context, id domain.ActorID) (domain.Actor, error)
}

// Publisher decouples the service from the bus implementation for tests.
type Publisher interface {
	Publish(event events.Event)
}

// Service is the record lifecycle: the only component that transitions a
// record's status. Every transition is one compare-and-set against the status
// read at operation start; losers of a race get a conflict and must re-read.
// The nested correction workflow shares the record's transaction.
type Service struct {
	store       Store
	corrections CorrectionStore
	actors      ActorDirectory
	tx          Tx
	bus         Publisher
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer

	casRetries int
	casBackoff time.Duration
}

type Option func(*Service)

func WithCASRetry(retries int, backoff time.Duration) Option {
	return func(s *Service) {
		s.casRetries = retries
		s.casBackoff = backoff
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

func NewService(store Store, corrections CorrectionStore, actors ActorDirectory, tx Tx, bus Publisher, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:       store,
		corrections: corrections,
		actors:      actors,
		tx:          tx,
		bus:         bus,
		logger:      logger,
		tracer:      otel.Tracer("medvault/records"),
		casRetries:  3,
		casBackoff:  50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitInput is a new record as entered by data-entry staff. Fields are
// opaque domain content.
type SubmitInput struct {
	SubjectID   domain.ActorID
	ClinicianID domain.ActorID
	Fields      map[string]string
}

// Submit creates a record in pending status, assigned to a clinician for
// verification.
func (s *Service) Submit(ctx context.Context, caller domain.Identity, input SubmitInput) (domain.Record, error) {
	ctx, span := s.tracer.Start(ctx, "records.Submit")
	defer span.End()

	if err := policy.Authorize(caller, policy.ActionCreate, policy.Ownership{}); err != nil {
		s.observe("submit", "forbidden")
		return domain.Record{}, err
	}
	if input.SubjectID.IsNil() || input.ClinicianID.IsNil() {
		return domain.Record{}, dErrors.New(dErrors.CodeInvalidInput, "subject and clinician are required")
	}

	clinician, err := s.actors.GetActor(ctx, input.ClinicianID)
	if err != nil {
		return domain.Record{}, s.translate(err, "clinician")
	}
	if clinician.Role != domain.RoleClinician {
		return domain.Record{}, dErrors.New(dErrors.CodeInvalidInput, "assigned actor is not a clinician")
	}
	subject, err := s.actors.GetActor(ctx, input.SubjectID)
	if err != nil {
		return domain.Record{}, s.translate(err, "subject")
	}
	if subject.Role != domain.RoleSubject {
		return domain.Record{}, dErrors.New(dErrors.CodeInvalidInput, "referenced actor is not a record subject")
	}

	now := time.Now().UTC()
	record := domain.Record{
		ID:          domain.NewRecordID(),
		SubjectID:   input.SubjectID,
		ClinicianID: input.ClinicianID,
		EnteredBy:   caller.ActorID,
		Status:      domain.RecordStatusPending,
		Fields:      input.Fields,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.store.Create(ctx, record)
	}); err != nil {
		s.observe("submit", "error")
		return domain.Record{}, s.translate(err, "record")
	}

	event := events.New(events.KindRecordCreated, caller.ActorID)
	rec := record.Clone()
	event.Record = &rec
	s.bus.Publish(event)

	s.observe("submit", "ok")
	span.SetAttributes(attribute.String("record_id", record.ID.String()))
	return record, nil
}

// Verify moves a pending record to verified. Only the assigned clinician, or
// an administrator, may verify.
func (s *Service) Verify(ctx context.Context, caller domain.Identity, recordID domain.RecordID) (domain.Record, error) {
	ctx, span := s.tracer.Start(ctx, "records.Verify")
	defer span.End()
	return s.verifyTransition(ctx, caller, recordID, nil, policy.ActionVerify, "verify")
}

// EditAndVerify replaces the record's domain fields with the patch and
// verifies in the same compare-and-set write, so readers never observe the
// edit without the verification.
func (s *Service) EditAndVerify(ctx context.Context, caller domain.Identity, recordID domain.RecordID, patch domain.FieldPatch) (domain.Record, error) {
	ctx, span := s.tracer.Start(ctx, "records.EditAndVerify")
	defer span.End()

	if len(patch) == 0 {
		return domain.Record{}, dErrors.New(dErrors.CodeInvalidInput, "field patch must not be empty")
	}
	if err := patch.Validate(); err != nil {
		return domain.Record{}, err
	}
	return s.verifyTransition(ctx, caller, recordID, patch, policy.ActionEditAndVerify, "edit_and_verify")
}

func (s *Service) verifyTransition(ctx context.Context, caller domain.Identity, recordID domain.RecordID, patch domain.FieldPatch, action policy.Action, op string) (domain.Record, error) {
	record, err := s.store.Get(ctx, recordID)
	if err != nil {
		return domain.Record{}, s.translate(err, "record")
	}
	if err := policy.Authorize(caller, action, ownershipOf(record)); err != nil {
		s.observe(op, "forbidden")
		return domain.Record{}, err
	}
	if record.Status != domain.RecordStatusPending {
		s.observe(op, "conflict")
		return domain.Record{}, dErrors.New(dErrors.CodeConflict, "record is no longer pending, re-fetch and retry")
	}

	updated := record.Clone()
	updated.ApplyPatch(patch)
	updated.Status = domain.RecordStatusVerified
	updated.Version++
	updated.UpdatedAt = time.Now().UTC()

	if err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.store.UpdateIfStatus(ctx, updated, domain.RecordStatusPending)
	}); err != nil {
		s.observe(op, outcomeOf(err))
		return domain.Record{}, s.translate(err, "record")
	}

	event := events.New(events.KindRecordVerified, caller.ActorID)
	rec := updated.Clone()
	event.Record = &rec
	s.bus.Publish(event)

	s.observe(op, "ok")
	return updated, nil
}

// RequestCorrection opens the correction sub-workflow on a verified record.
// At most one correction request may be pending per record; a second request
// is rejected before any document is written.
func (s *Service) RequestCorrection(ctx context.Context, caller domain.Identity, recordID domain.RecordID, reason string, requestedChanges domain.FieldPatch) (domain.CorrectionRequest, error) {
	ctx, span := s.tracer.Start(ctx, "records.RequestCorrection")
	defer span.End()

	if reason == "" {
		return domain.CorrectionRequest{}, dErrors.New(dErrors.CodeInvalidInput, "correction reason is required")
	}
	if err := requestedChanges.Validate(); err != nil {
		return domain.CorrectionRequest{}, err
	}

	record, err := s.store.Get(ctx, recordID)
	if err != nil {
		return domain.CorrectionRequest{}, s.translate(err, "record")
	}
	if err := policy.Authorize(caller, policy.ActionRequestCorrection, ownershipOf(record)); err != nil {
		s.observe("request_correction", "forbidden")
		return domain.CorrectionRequest{}, err
	}
	if record.HasActiveCorrection {
		s.observe("request_correction", "already_pending")
		return domain.CorrectionRequest{}, dErrors.New(dErrors.CodeAlreadyPending, "a correction request is already pending for this record")
	}

	now := time.Now().UTC()
	request := domain.CorrectionRequest{
		ID:               domain.NewCorrectionRequestID(),
		RecordID:         record.ID,
		RequestedBy:      caller.ActorID,
		Reason:           reason,
		RequestedChanges: requestedChanges,
		Status:           domain.CorrectionPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	updated := record.Clone()
	updated.Status = domain.RecordStatusCorrectionRequested
	updated.HasActiveCorrection = true
	updated.CorrectionRequestIDs = append(updated.CorrectionRequestIDs, request.ID)
	updated.Version++
	updated.UpdatedAt = now

	err = s.withRetry(ctx, func(ctx context.Context) error {
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			// The record CAS goes first: if a concurrent verify-with-edit or
			// another correction won the race, no request document is created.
			if err := s.store.UpdateIfStatus(ctx, updated, domain.RecordStatusVerified); err != nil {
				return err
			}
			return s.corrections.Create(ctx, request)
		})
	})
	if err != nil {
		s.observe("request_correction", outcomeOf(err))
		return domain.CorrectionRequest{}, s.translate(err, "record")
	}

	event := events.New(events.KindCorrectionRequested, caller.ActorID)
	rec := updated.Clone()
	req := request.Clone()
	event.Record = &rec
	event.Correction = &req
	s.bus.Publish(event)

	s.observe("request_correction", "ok")
	span.SetAttributes(attribute.String("correction_request_id", request.ID.String()))
	return request, nil
}

// ResolveDecision is the clinician's verdict on a correction request.
type ResolveDecision struct {
	Approve bool
	// Patch optionally amends the record's fields on approval. Approval
	// without a patch is "approved in principle, no technical change".
	Patch domain.FieldPatch
	// Response is the message to the subject; required for audit purposes.
	Response string
}

// ResolveCorrection closes a pending correction request and returns the
// record to verified. The request update, the optional field patch, and the
// status transition commit in one transaction; no partial application is ever
// visible.
func (s *Service) ResolveCorrection(ctx context.Context, caller domain.Identity, recordID domain.RecordID, requestID domain.CorrectionRequestID, decision ResolveDecision) (domain.Record, error) {
	ctx, span := s.tracer.Start(ctx, "records.ResolveCorrection")
	defer span.End()

	if decision.Response == "" {
		return domain.Record{}, dErrors.New(dErrors.CodeInvalidInput, "a response message is required")
	}
	if decision.Approve {
		if err := decision.Patch.Validate(); err != nil {
			return domain.Record{}, err
		}
	}

	record, err := s.store.Get(ctx, recordID)
	if err != nil {
		return domain.Record{}, s.translate(err, "record")
	}
	request, err := s.corrections.Get(ctx, requestID)
	if err != nil {
		return domain.Record{}, s.translate(err, "correction request")
	}
	if request.RecordID != record.ID {
		return domain.Record{}, dErrors.New(dErrors.CodeInvalidInput, "correction request does not belong to this record")
	}

	action := policy.ActionRejectCorrection
	if decision.Approve {
		action = policy.ActionApproveCorrection
	}
	if err := policy.Authorize(caller, action, ownershipOf(record)); err != nil {
		s.observe("resolve_correction", "forbidden")
		return domain.Record{}, err
	}

	if request.Status.Terminal() {
		s.observe("resolve_correction", "conflict")
		return domain.Record{}, dErrors.New(dErrors.CodeConflict, "correction request is already resolved")
	}
	if record.Status != domain.RecordStatusCorrectionRequested {
		s.observe("resolve_correction", "conflict")
		return domain.Record{}, dErrors.New(dErrors.CodeConflict, "record is not awaiting correction, re-fetch and retry")
	}

	now := time.Now().UTC()
	resolved := request.Clone()
	resolved.ProcessedBy = caller.ActorID
	resolved.Response = decision.Response
	resolved.UpdatedAt = now
	if decision.Approve {
		resolved.Status = domain.CorrectionApproved
	} else {
		resolved.Status = domain.CorrectionRejected
	}

	updated := record.Clone()
	if decision.Approve {
		updated.ApplyPatch(decision.Patch)
	}
	updated.Status = domain.RecordStatusVerified
	updated.Version++
	updated.UpdatedAt = now

	err = s.withRetry(ctx, func(ctx context.Context) error {
		return s.tx.RunInTx(ctx, func(ctx context.Context) error {
			// Mandatory recompute: hasActiveCorrection must reflect the
			// pending requests that remain once this one resolves, not an
			// assumption of zero. The guard in RequestCorrection keeps this
			// at most one, but the invariant is enforced here, not there.
			pending, err := s.corrections.CountPending(ctx, record.ID)
			if err != nil {
				return err
			}
			updated.HasActiveCorrection = pending-1 > 0
			// The record CAS goes first, as in RequestCorrection: a resolver
			// that lost the race aborts here before writing anything, so the
			// winner's terminal request is never overwritten even without
			// store-level rollback.
			if err := s.store.UpdateIfStatus(ctx, updated, domain.RecordStatusCorrectionRequested); err != nil {
				return err
			}
			return s.corrections.Update(ctx, resolved)
		})
	})
	if err != nil {
		s.observe("resolve_correction", outcomeOf(err))
		return domain.Record{}, s.translate(err, "record")
	}

	kind := events.KindCorrectionRejected
	if decision.Approve {
		kind = events.KindCorrectionApproved
	}
	event := events.New(kind, caller.ActorID)
	rec := updated.Clone()
	req := resolved.Clone()
	event.Record = &rec
	event.Correction = &req
	s.bus.Publish(event)

	s.observe("resolve_correction", "ok")
	return updated, nil
}

// Get fetches one record, enforcing the view matrix.
func (s *Service) Get(ctx context.Context, caller domain.Identity, recordID domain.RecordID) (domain.Record, error) {
	record, err := s.store.Get(ctx, recordID)
	if err != nil {
		return domain.Record{}, s.translate(err, "record")
	}
	if policy.Allowed(caller, policy.ActionViewAll, policy.Ownership{}) {
		return record, nil
	}
	if err := policy.Authorize(caller, policy.ActionViewOwn, ownershipOf(record)); err != nil {
		return domain.Record{}, err
	}
	return record, nil
}

// List returns the records the caller is entitled to see.
func (s *Service) List(ctx context.Context, caller domain.Identity) ([]domain.Record, error) {
	scope := policy.ListScope(caller)
	if scope == policy.ScopeNone {
		return nil, dErrors.New(dErrors.CodeForbidden, "not authorized for viewOwn")
	}
	recs, err := s.store.List(ctx, ListFilter{Scope: scope, ActorID: caller.ActorID})
	if err != nil {
		return nil, s.translate(err, "record")
	}
	return recs, nil
}

// ListCorrections returns a record's correction requests in request order,
// subject to the same view rules as the record itself.
func (s *Service) ListCorrections(ctx context.Context, caller domain.Identity, recordID domain.RecordID) ([]domain.CorrectionRequest, error) {
	if _, err := s.Get(ctx, caller, recordID); err != nil {
		return nil, err
	}
	reqs, err := s.corrections.ListByRecord(ctx, recordID)
	if err != nil {
		return nil, s.translate(err, "correction request")
	}
	return reqs, nil
}

func ownershipOf(record domain.Record) policy.Ownership {
	return policy.Ownership{
		SubjectID:    record.SubjectID,
		ClinicianID:  record.ClinicianID,
		EnteredBy:    record.EnteredBy,
		RecordStatus: record.Status,
	}
}

// withRetry retries transient store faults with backoff. Lost races are
// surfaced immediately; only the caller holds fresh enough state to retry
// those.
func (s *Service) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= s.casRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.casBackoff * time.Duration(attempt)):
			}
			s.logger.WarnContext(ctx, "retrying store operation", "attempt", attempt)
		}
		err = fn(ctx)
		if err == nil || !errors.Is(err, sentinel.ErrUnavailable) {
			return err
		}
	}
	return err
}

// translate maps sentinel errors from stores into the coded errors callers
// see. The noun names what was being looked up.
func (s *Service) translate(err error, noun string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, noun+" not found")
	case errors.Is(err, sentinel.ErrConflict):
		if s.metrics != nil {
			s.metrics.CASConflicts.Inc()
		}
		return dErrors.New(dErrors.CodeConflict, noun+" was modified concurrently, re-fetch and retry")
	case errors.Is(err, sentinel.ErrAlreadyPending):
		return dErrors.New(dErrors.CodeAlreadyPending, "a correction request is already pending for this record")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "storage temporarily unavailable, try again later")
	default:
		var de *dErrors.Error
		if errors.As(err, &de) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "internal storage failure")
	}
}

func (s *Service) observe(op, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(op, outcome)
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		return "conflict"
	case errors.Is(err, sentinel.ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
