package records

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"medvault/internal/events"
	"medvault/pkg/domain"
	dErrors "medvault/pkg/domain-errors"
	"medvault/pkg/platform/sentinel"
)

// captureBus records published events in order.
type captureBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *captureBus) Publish(event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

func (b *captureBus) kinds() []events.Kind {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]events.Kind, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Kind)
	}
	return out
}

func (b *captureBus) last() events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.events[len(b.events)-1]
}

// directoryStub resolves actors from a fixed map.
type directoryStub struct {
	actors map[domain.ActorID]domain.Actor
}

func (d *directoryStub) GetActor(_ context.Context, id domain.ActorID) (domain.Actor, error) {
	if actor, ok := d.actors[id]; ok {
		return actor, nil
	}
	return domain.Actor{}, sentinel.ErrNotFound
}

func (d *directoryStub) add(role domain.Role) domain.Identity {
	actor := domain.Actor{
		ID:                 domain.NewActorID(),
		Name:               "test " + role.String(),
		Role:               role,
		VerificationStatus: domain.VerificationVerified,
	}
	d.actors[actor.ID] = actor
	return domain.Identity{
		ActorID:            actor.ID,
		Role:               role,
		VerificationStatus: domain.VerificationVerified,
	}
}

// flakyStore fails the first n writes with the transient sentinel.
type flakyStore struct {
	Store
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyStore) UpdateIfStatus(ctx context.Context, updated domain.Record, expected domain.RecordStatus) error {
	f.mu.Lock()
	f.calls++
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()
	if fail {
		return sentinel.ErrUnavailable
	}
	return f.Store.UpdateIfStatus(ctx, updated, expected)
}

// interposeTx fires a hook once, before the next transaction body runs,
// simulating a competing writer that commits between a caller's pre-checks
// and its transaction.
type interposeTx struct {
	inner  *InMemoryTx
	mu     sync.Mutex
	before func()
}

func (t *interposeTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	hook := t.before
	t.before = nil
	t.mu.Unlock()
	if hook != nil {
		hook()
	}
	return t.inner.RunInTx(ctx, fn)
}

type ServiceSuite struct {
	suite.Suite
	ctx         context.Context
	store       *InMemoryStore
	corrections *InMemoryCorrectionStore
	directory   *directoryStub
	bus         *captureBus
	svc         *Service

	dataEntry domain.Identity
	clinician domain.Identity
	subject   domain.Identity
	admin     domain.Identity
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
	s.corrections = NewInMemoryCorrectionStore()
	s.directory = &directoryStub{actors: make(map[domain.ActorID]domain.Actor)}
	s.bus = &captureBus{}

	s.dataEntry = s.directory.add(domain.RoleDataEntry)
	s.clinician = s.directory.add(domain.RoleClinician)
	s.subject = s.directory.add(domain.RoleSubject)
	s.admin = s.directory.add(domain.RoleAdministrator)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.svc = NewService(s.store, s.corrections, s.directory, NewInMemoryTx(), s.bus, logger,
		WithCASRetry(2, time.Millisecond))
}

func (s *ServiceSuite) submit() domain.Record {
	record, err := s.svc.Submit(s.ctx, s.dataEntry, SubmitInput{
		SubjectID:   s.subject.ActorID,
		ClinicianID: s.clinician.ActorID,
		Fields:      map[string]string{"diagnosis": "initial"},
	})
	s.Require().NoError(err)
	return record
}

func (s *ServiceSuite) submitVerified() domain.Record {
	record := s.submit()
	verified, err := s.svc.Verify(s.ctx, s.clinician, record.ID)
	s.Require().NoError(err)
	return verified
}

func (s *ServiceSuite) TestSubmit() {
	record := s.submit()

	s.Equal(domain.RecordStatusPending, record.Status)
	s.Equal(s.dataEntry.ActorID, record.EnteredBy)
	s.Equal(1, record.Version)
	s.False(record.HasActiveCorrection)

	s.Equal([]events.Kind{events.KindRecordCreated}, s.bus.kinds())
	s.Require().NotNil(s.bus.last().Record)
	s.Equal(record.ID, s.bus.last().Record.ID)
}

func (s *ServiceSuite) TestSubmit_OnlyDataEntryAndAdmin() {
	input := SubmitInput{SubjectID: s.subject.ActorID, ClinicianID: s.clinician.ActorID}

	_, err := s.svc.Submit(s.ctx, s.clinician, input)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.svc.Submit(s.ctx, s.subject, input)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.svc.Submit(s.ctx, s.admin, input)
	s.NoError(err)
}

func (s *ServiceSuite) TestSubmit_RejectsBadAssignments() {
	_, err := s.svc.Submit(s.ctx, s.dataEntry, SubmitInput{
		SubjectID:   s.subject.ActorID,
		ClinicianID: s.subject.ActorID, // not a clinician
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.svc.Submit(s.ctx, s.dataEntry, SubmitInput{
		SubjectID:   s.subject.ActorID,
		ClinicianID: domain.NewActorID(), // unknown
	})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.svc.Submit(s.ctx, s.dataEntry, SubmitInput{ClinicianID: s.clinician.ActorID})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestVerify() {
	record := s.submit()

	verified, err := s.svc.Verify(s.ctx, s.clinician, record.ID)
	s.Require().NoError(err)
	s.Equal(domain.RecordStatusVerified, verified.Status)
	s.Equal(record.Version+1, verified.Version)
	s.Equal([]events.Kind{events.KindRecordCreated, events.KindRecordVerified}, s.bus.kinds())
}

func (s *ServiceSuite) TestVerify_OnlyAssignedClinicianOrAdmin() {
	record := s.submit()
	other := s.directory.add(domain.RoleClinician)

	_, err := s.svc.Verify(s.ctx, other, record.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.svc.Verify(s.ctx, s.admin, record.ID)
	s.NoError(err)
}

func (s *ServiceSuite) TestVerify_NotPendingIsConflict() {
	record := s.submitVerified()

	_, err := s.svc.Verify(s.ctx, s.clinician, record.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestVerify_UnknownRecord() {
	_, err := s.svc.Verify(s.ctx, s.clinician, domain.NewRecordID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestEditAndVerify_AtomicPatch() {
	record := s.submit()

	verified, err := s.svc.EditAndVerify(s.ctx, s.clinician, record.ID,
		domain.FieldPatch{"diagnosis": "amended"})
	s.Require().NoError(err)
	s.Equal(domain.RecordStatusVerified, verified.Status)
	s.Equal("amended", verified.Fields["diagnosis"])

	stored, err := s.store.Get(s.ctx, record.ID)
	s.Require().NoError(err)
	s.Equal("amended", stored.Fields["diagnosis"])
	s.Equal(domain.RecordStatusVerified, stored.Status)
}

func (s *ServiceSuite) TestEditAndVerify_EmptyPatchInvalid() {
	record := s.submit()
	_, err := s.svc.EditAndVerify(s.ctx, s.clinician, record.ID, nil)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestConcurrentVerify_ExactlyOneWins() {
	record := s.submit()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.svc.Verify(s.ctx, s.clinician, record.ID)
		}(i)
	}
	wg.Wait()

	var ok, conflict int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case dErrors.HasCode(err, dErrors.CodeConflict):
			conflict++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, ok)
	s.Equal(1, conflict)
}

func (s *ServiceSuite) TestRequestCorrection() {
	record := s.submitVerified()

	request, err := s.svc.RequestCorrection(s.ctx, s.subject, record.ID,
		"dosage is wrong", domain.FieldPatch{"dosage": "10mg"})
	s.Require().NoError(err)
	s.Equal(domain.CorrectionPending, request.Status)
	s.Equal(s.subject.ActorID, request.RequestedBy)

	stored, err := s.store.Get(s.ctx, record.ID)
	s.Require().NoError(err)
	s.Equal(domain.RecordStatusCorrectionRequested, stored.Status)
	s.True(stored.HasActiveCorrection)
	s.Equal([]domain.CorrectionRequestID{request.ID}, stored.CorrectionRequestIDs)

	s.Equal(events.KindCorrectionRequested, s.bus.last().Kind)
	s.Require().NotNil(s.bus.last().Correction)
	s.Equal(request.ID, s.bus.last().Correction.ID)
}

func (s *ServiceSuite) TestRequestCorrection_RequiresReason() {
	record := s.submitVerified()
	_, err := s.svc.RequestCorrection(s.ctx, s.subject, record.ID, "", nil)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestRequestCorrection_OnlyOwningSubject() {
	record := s.submitVerified()

	other := s.directory.add(domain.RoleSubject)
	_, err := s.svc.RequestCorrection(s.ctx, other, record.ID, "not mine", nil)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.svc.RequestCorrection(s.ctx, s.admin, record.ID, "admin asks", nil)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestRequestCorrection_PendingRecordDenied() {
	record := s.submit()
	_, err := s.svc.RequestCorrection(s.ctx, s.subject, record.ID, "too early", nil)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestRequestCorrection_SecondRequestAlreadyPending() {
	record := s.submitVerified()

	_, err := s.svc.RequestCorrection(s.ctx, s.subject, record.ID, "first", nil)
	s.Require().NoError(err)

	// The record left verified status, so the subject is denied before the
	// already-pending guard is even consulted.
	_, err = s.svc.RequestCorrection(s.ctx, s.subject, record.ID, "second", nil)
	s.Error(err)

	requests, err := s.corrections.ListByRecord(s.ctx, record.ID)
	s.Require().NoError(err)
	s.Len(requests, 1)
}

func (s *ServiceSuite) TestResolveCorrection_Approve() {
	record := s.submitVerified()
	request, err := s.svc.RequestCorrection(s.ctx, s.subject, record.ID,
		"dosage is wrong", domain.FieldPatch{"dosage": "10mg"})
	s.Require().NoError(err)

	resolved, err := s.svc.ResolveCorrection(s.ctx, s.clinician, record.ID, request.ID, ResolveDecision{
		Approve:  true,
		Patch:    domain.FieldPatch{"dosage": "10mg"},
		Response: "confirmed against the chart",
	})
	s.Require().NoError(err)
	s.Equal(domain.RecordStatusVerified, resolved.Status)
	s.False(resolved.HasActiveCorrection)
	s.Equal("10mg", resolved.Fields["dosage"])

	stored, err := s.corrections.Get(s.ctx, request.ID)
	s.Require().NoError(err)
	s.Equal(domain.CorrectionApproved, stored.Status)
	s.Equal(s.clinician.ActorID, stored.ProcessedBy)
	s.Equal("confirmed against the chart", stored.Response)

	s.Equal(events.KindCorrectionApproved, s.bus.last().Kind)
}

func (s *ServiceSuite) TestResolveCorrection_Reject() {
	record := s.submitVerified()
	request, err := s.svc.RequestCorrection(s.ctx, s.subject, record.ID, "dosage is wrong", nil)
	s.Require().NoError(err)

	resolved, err := s.svc.ResolveCorrection(s.ctx, s.clinician, record.ID, request.ID, ResolveDecision{
		Approve:  false,
		Response: "dosage matches the prescription",
	})
	s.Require().NoError(err)
	s.Equal(domain.RecordStatusVerified, resolved.Status)
	s.False(resolved.HasActiveCorrection)
	s.Equal("initial", resolved.Fields["diagnosis"], "rejection must not touch fields")

	stored, err := s.corrections.Get(s.ctx, request.ID)
	s.Require().NoError(err)
	s.Equal(domain.CorrectionRejected, stored.Status)
	s.Equal(events.KindCorrectionRejected, s.bus.last().Kind)
}

func (s *ServiceSuite) TestResolveCorrection_ResponseRequired() {
	record := s.submitVerified()
	request, err := s.svc.RequestCorrection(s.ctx, s.subject, record.ID, "dosage is wrong", nil)
	s.Require().NoError(err)

	for _, approve := range []bool{true, false} {
		_, err = s.svc.ResolveCorrection(s.ctx, s.clinician, record.ID, request.ID,
			ResolveDecision{Approve: approve})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	}
}

func (s *ServiceSuite) TestResolveCorrection_AlreadyResolvedIsConflict() {
	record := s.submitVerified()
	request, err := s.svc.RequestCorrection(s.ctx, s.subject, record.ID, "dosage is wrong", nil)
	s.Require().NoError(err)

	_, err = s.svc.ResolveCorrection(s.ctx, s.clinician, record.ID, request.ID,
		ResolveDecision{Response: "checked"})
	s.Require().NoError(err)

	_, err = s.svc.ResolveCorrection(s.ctx, s.clinician, record.ID, request.ID,
		ResolveDecision{Response: "checked again"})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestResolveCorrection_LostRaceLeavesWinnerIntact() {
	record := s.submitVerified()
	request, err := s.svc.RequestCorrection(s.ctx, s.subject, record.ID, "dosage is wrong", nil)
	s.Require().NoError(err)

	// The admin's approval commits after the clinician's pre-checks passed
	// but before the clinician's transaction body runs.
	tx := &interposeTx{inner: NewInMemoryTx()}
	tx.before = func() {
		_, err := s.svc.ResolveCorrection(s.ctx, s.admin, record.ID, request.ID, ResolveDecision{
			Approve:  true,
			Patch:    domain.FieldPatch{"dosage": "10mg"},
			Response: "approved by administrator",
		})
		s.Require().NoError(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	loser := NewService(s.store, s.corrections, s.directory, tx, s.bus, logger,
		WithCASRetry(2, time.Millisecond))

	_, err = loser.ResolveCorrection(s.ctx, s.clinician, record.ID, request.ID,
		ResolveDecision{Response: "rejected by clinician"})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	// The losing reject must leave no trace: the request keeps the winner's
	// terminal resolution and the record keeps the winner's patch.
	stored, err := s.corrections.Get(s.ctx, request.ID)
	s.Require().NoError(err)
	s.Equal(domain.CorrectionApproved, stored.Status)
	s.Equal("approved by administrator", stored.Response)
	s.Equal(s.admin.ActorID, stored.ProcessedBy)

	final, err := s.store.Get(s.ctx, record.ID)
	s.Require().NoError(err)
	s.Equal(domain.RecordStatusVerified, final.Status)
	s.Equal("10mg", final.Fields["dosage"])
	s.False(final.HasActiveCorrection)
	s.Equal(events.KindCorrectionApproved, s.bus.last().Kind, "no rejection event from the loser")
}

func (s *ServiceSuite) TestResolveCorrection_WrongRecordPairing() {
	record := s.submitVerified()
	request, err := s.svc.RequestCorrection(s.ctx, s.subject, record.ID, "dosage is wrong", nil)
	s.Require().NoError(err)

	otherRecord := s.submit()
	_, err = s.svc.ResolveCorrection(s.ctx, s.clinician, otherRecord.ID, request.ID,
		ResolveDecision{Response: "checked"})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestResolveCorrection_SubjectCannotResolve() {
	record := s.submitVerified()
	request, err := s.svc.RequestCorrection(s.ctx, s.subject, record.ID, "dosage is wrong", nil)
	s.Require().NoError(err)

	_, err = s.svc.ResolveCorrection(s.ctx, s.subject, record.ID, request.ID,
		ResolveDecision{Approve: true, Response: "self-approval"})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestResolveCorrection_AdminOverride() {
	record := s.submitVerified()
	request, err := s.svc.RequestCorrection(s.ctx, s.subject, record.ID, "dosage is wrong", nil)
	s.Require().NoError(err)

	resolved, err := s.svc.ResolveCorrection(s.ctx, s.admin, record.ID, request.ID, ResolveDecision{
		Approve:  true,
		Patch:    domain.FieldPatch{"dosage": "5mg"},
		Response: "resolved by administrator",
	})
	s.Require().NoError(err)
	s.Equal("5mg", resolved.Fields["dosage"])
}

func (s *ServiceSuite) TestSecondCorrectionCycleAfterResolve() {
	record := s.submitVerified()
	first, err := s.svc.RequestCorrection(s.ctx, s.subject, record.ID, "first issue", nil)
	s.Require().NoError(err)
	_, err = s.svc.ResolveCorrection(s.ctx, s.clinician, record.ID, first.ID,
		ResolveDecision{Response: "no change"})
	s.Require().NoError(err)

	second, err := s.svc.RequestCorrection(s.ctx, s.subject, record.ID, "second issue", nil)
	s.Require().NoError(err)

	stored, err := s.store.Get(s.ctx, record.ID)
	s.Require().NoError(err)
	s.Equal([]domain.CorrectionRequestID{first.ID, second.ID}, stored.CorrectionRequestIDs)
}

func (s *ServiceSuite) TestWithRetry_TransientFaultRecovered() {
	base := NewInMemoryStore()
	flaky := &flakyStore{Store: base, failures: 2}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(flaky, s.corrections, s.directory, NewInMemoryTx(), s.bus, logger,
		WithCASRetry(3, time.Millisecond))

	record, err := svc.Submit(s.ctx, s.dataEntry, SubmitInput{
		SubjectID:   s.subject.ActorID,
		ClinicianID: s.clinician.ActorID,
	})
	s.Require().NoError(err)

	_, err = svc.Verify(s.ctx, s.clinician, record.ID)
	s.Require().NoError(err)
	s.Equal(3, flaky.calls, "two transient failures then success")
}

func (s *ServiceSuite) TestWithRetry_ExhaustedSurfacesUnavailable() {
	base := NewInMemoryStore()
	flaky := &flakyStore{Store: base, failures: 100}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(flaky, s.corrections, s.directory, NewInMemoryTx(), s.bus, logger,
		WithCASRetry(2, time.Millisecond))

	record, err := svc.Submit(s.ctx, s.dataEntry, SubmitInput{
		SubjectID:   s.subject.ActorID,
		ClinicianID: s.clinician.ActorID,
	})
	s.Require().NoError(err)

	_, err = svc.Verify(s.ctx, s.clinician, record.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.True(dErrors.Retryable(err))
}

func (s *ServiceSuite) TestWithRetry_ConflictIsNotRetried() {
	record := s.submitVerified()
	base := s.store

	// Direct CAS against a verified record from pending: immediate conflict.
	err := s.svc.withRetry(s.ctx, func(ctx context.Context) error {
		return base.UpdateIfStatus(ctx, record, domain.RecordStatusPending)
	})
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *ServiceSuite) TestGet_ViewMatrix() {
	record := s.submit()

	// Subject cannot see the record until verified.
	_, err := s.svc.Get(s.ctx, s.subject, record.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	_, err = s.svc.Get(s.ctx, s.clinician, record.ID)
	s.NoError(err)
	_, err = s.svc.Get(s.ctx, s.dataEntry, record.ID)
	s.NoError(err)
	_, err = s.svc.Get(s.ctx, s.admin, record.ID)
	s.NoError(err)

	_, err = s.svc.Verify(s.ctx, s.clinician, record.ID)
	s.Require().NoError(err)
	_, err = s.svc.Get(s.ctx, s.subject, record.ID)
	s.NoError(err)
}

func (s *ServiceSuite) TestList_Scoped() {
	mine := s.submitVerified()
	otherSubject := s.directory.add(domain.RoleSubject)
	otherClinician := s.directory.add(domain.RoleClinician)
	_, err := s.svc.Submit(s.ctx, s.dataEntry, SubmitInput{
		SubjectID:   otherSubject.ActorID,
		ClinicianID: otherClinician.ActorID,
	})
	s.Require().NoError(err)

	subjectView, err := s.svc.List(s.ctx, s.subject)
	s.Require().NoError(err)
	s.Require().Len(subjectView, 1)
	s.Equal(mine.ID, subjectView[0].ID)

	clinicianView, err := s.svc.List(s.ctx, s.clinician)
	s.Require().NoError(err)
	s.Len(clinicianView, 1)

	adminView, err := s.svc.List(s.ctx, s.admin)
	s.Require().NoError(err)
	s.Len(adminView, 2)

	entryView, err := s.svc.List(s.ctx, s.dataEntry)
	s.Require().NoError(err)
	s.Len(entryView, 2)
}

func (s *ServiceSuite) TestListCorrections_FollowsViewRules() {
	record := s.submitVerified()
	request, err := s.svc.RequestCorrection(s.ctx, s.subject, record.ID, "dosage is wrong", nil)
	s.Require().NoError(err)

	requests, err := s.svc.ListCorrections(s.ctx, s.clinician, record.ID)
	s.Require().NoError(err)
	s.Require().Len(requests, 1)
	s.Equal(request.ID, requests[0].ID)

	other := s.directory.add(domain.RoleSubject)
	_, err = s.svc.ListCorrections(s.ctx, other, record.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}
