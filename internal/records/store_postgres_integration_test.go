//go:build integration

package records_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"medvault/internal/policy"
	"medvault/internal/records"
	"medvault/pkg/domain"
	"medvault/pkg/platform/sentinel"
	"medvault/pkg/testutil/containers"
)

const recordsSchema = `
CREATE TABLE records (
    id            UUID PRIMARY KEY,
    subject_id    UUID NOT NULL,
    clinician_id  UUID NOT NULL,
    entered_by    UUID NOT NULL,
    status        TEXT NOT NULL,
    has_active_correction BOOLEAN NOT NULL DEFAULT FALSE,
    fields        JSONB NOT NULL DEFAULT '{}',
    version       INTEGER NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);
CREATE TABLE correction_requests (
    id            UUID PRIMARY KEY,
    record_id     UUID NOT NULL REFERENCES records (id),
    requested_by  UUID NOT NULL,
    reason        TEXT NOT NULL,
    requested_changes JSONB,
    status        TEXT NOT NULL,
    processed_by  UUID,
    response      TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX correction_requests_record_idx ON correction_requests (record_id, created_at);
`

type PostgresRecordStoreSuite struct {
	suite.Suite
	postgres    *containers.PostgresContainer
	store       *records.PostgresStore
	corrections *records.PostgresCorrectionStore
}

func TestPostgresRecordStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresRecordStoreSuite))
}

func (s *PostgresRecordStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T(), recordsSchema)
	s.store = records.NewPostgres(s.postgres.DB)
	s.corrections = records.NewPostgresCorrections(s.postgres.DB)
}

func (s *PostgresRecordStoreSuite) SetupTest() {
	_, err := s.postgres.DB.Exec(`TRUNCATE correction_requests, records`)
	s.Require().NoError(err)
}

func (s *PostgresRecordStoreSuite) newRecord(status domain.RecordStatus) domain.Record {
	now := time.Now().UTC().Truncate(time.Microsecond)
	record := domain.Record{
		ID:          domain.NewRecordID(),
		SubjectID:   domain.NewActorID(),
		ClinicianID: domain.NewActorID(),
		EnteredBy:   domain.NewActorID(),
		Status:      status,
		Fields:      map[string]string{"dosage": "20mg"},
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.Require().NoError(s.store.Create(context.Background(), record))
	return record
}

func (s *PostgresRecordStoreSuite) TestCreateAndGetRoundTrip() {
	record := s.newRecord(domain.RecordStatusPending)

	got, err := s.store.Get(context.Background(), record.ID)
	s.Require().NoError(err)
	s.Equal(record.ID, got.ID)
	s.Equal(record.SubjectID, got.SubjectID)
	s.Equal(domain.RecordStatusPending, got.Status)
	s.Equal("20mg", got.Fields["dosage"])
	s.Empty(got.CorrectionRequestIDs)
}

func (s *PostgresRecordStoreSuite) TestGetMissing() {
	_, err := s.store.Get(context.Background(), domain.NewRecordID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentCASExactlyOneWins races two writers on the same expected
// status; the single-statement compare-and-set must admit exactly one.
func (s *PostgresRecordStoreSuite) TestConcurrentCASExactlyOneWins() {
	record := s.newRecord(domain.RecordStatusPending)

	updated := record
	updated.Status = domain.RecordStatusVerified
	updated.Version = 2
	updated.UpdatedAt = time.Now().UTC()

	const writers = 2
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.store.UpdateIfStatus(context.Background(), updated, domain.RecordStatusPending)
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		default:
			s.Require().ErrorIs(err, sentinel.ErrConflict)
			conflicts++
		}
	}
	s.Equal(1, wins)
	s.Equal(1, conflicts)

	got, err := s.store.Get(context.Background(), record.ID)
	s.Require().NoError(err)
	s.Equal(domain.RecordStatusVerified, got.Status)
	s.Equal(2, got.Version)
}

func (s *PostgresRecordStoreSuite) TestUpdateIfStatusMissingRecord() {
	ghost := domain.Record{
		ID:        domain.NewRecordID(),
		Status:    domain.RecordStatusVerified,
		UpdatedAt: time.Now().UTC(),
	}
	err := s.store.UpdateIfStatus(context.Background(), ghost, domain.RecordStatusPending)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresRecordStoreSuite) TestGetCollectsCorrectionIDsInRequestOrder() {
	record := s.newRecord(domain.RecordStatusVerified)

	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond)
	var want []domain.CorrectionRequestID
	for i := 0; i < 3; i++ {
		request := domain.CorrectionRequest{
			ID:          domain.NewCorrectionRequestID(),
			RecordID:    record.ID,
			RequestedBy: record.SubjectID,
			Reason:      "wrong dosage",
			Status:      domain.CorrectionRejected,
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
			UpdatedAt:   base.Add(time.Duration(i) * time.Second),
		}
		s.Require().NoError(s.corrections.Create(ctx, request))
		want = append(want, request.ID)
	}

	got, err := s.store.Get(ctx, record.ID)
	s.Require().NoError(err)
	s.Equal(want, got.CorrectionRequestIDs)
}

func (s *PostgresRecordStoreSuite) TestCountPending() {
	record := s.newRecord(domain.RecordStatusCorrectionRequested)

	ctx := context.Background()
	now := time.Now().UTC()
	pending := domain.CorrectionRequest{
		ID:          domain.NewCorrectionRequestID(),
		RecordID:    record.ID,
		RequestedBy: record.SubjectID,
		Reason:      "wrong dosage",
		Status:      domain.CorrectionPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.Require().NoError(s.corrections.Create(ctx, pending))

	count, err := s.corrections.CountPending(ctx, record.ID)
	s.Require().NoError(err)
	s.Equal(1, count)

	pending.Status = domain.CorrectionApproved
	pending.ProcessedBy = record.ClinicianID
	pending.Response = "fixed"
	s.Require().NoError(s.corrections.Update(ctx, pending))

	count, err = s.corrections.CountPending(ctx, record.ID)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *PostgresRecordStoreSuite) TestListScopes() {
	ctx := context.Background()
	visible := s.newRecord(domain.RecordStatusVerified)
	hidden := s.newRecord(domain.RecordStatusPending)

	// Subjects only see their own verified records.
	got, err := s.store.List(ctx, records.ListFilter{
		Scope:   policy.ScopeSubject,
		ActorID: visible.SubjectID,
	})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(visible.ID, got[0].ID)

	got, err = s.store.List(ctx, records.ListFilter{
		Scope:   policy.ScopeSubject,
		ActorID: hidden.SubjectID,
	})
	s.Require().NoError(err)
	s.Empty(got)

	// Administrators see everything.
	got, err = s.store.List(ctx, records.ListFilter{Scope: policy.ScopeAll})
	s.Require().NoError(err)
	s.Len(got, 2)
}
