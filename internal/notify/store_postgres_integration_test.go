//go:build integration

package notify_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"medvault/internal/events"
	"medvault/internal/notify"
	"medvault/pkg/domain"
	"medvault/pkg/platform/sentinel"
	"medvault/pkg/testutil/containers"
)

const notificationsSchema = `
CREATE TABLE notifications (
    id              UUID PRIMARY KEY,
    recipient_id    UUID NOT NULL,
    type            TEXT NOT NULL,
    priority        TEXT NOT NULL,
    event_id        UUID NOT NULL,
    action_required BOOLEAN NOT NULL DEFAULT FALSE,
    read            BOOLEAN NOT NULL DEFAULT FALSE,
    data            JSONB,
    created_at      TIMESTAMPTZ NOT NULL,
    UNIQUE (event_id, recipient_id)
);
CREATE INDEX notifications_recipient_idx ON notifications (recipient_id, read, created_at DESC);

CREATE TABLE parked_events (
    event_id  UUID PRIMARY KEY,
    kind      TEXT NOT NULL,
    attempts  INT NOT NULL,
    reason    TEXT NOT NULL,
    payload   JSONB NOT NULL,
    parked_at TIMESTAMPTZ NOT NULL
);
`

type PostgresNotifyStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *notify.PostgresStore
	lot      *notify.PostgresParkingLot
}

func TestPostgresNotifyStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresNotifyStoreSuite))
}

func (s *PostgresNotifyStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T(), notificationsSchema)
	s.store = notify.NewPostgres(s.postgres.DB)
	s.lot = notify.NewPostgresParkingLot(s.postgres.DB)
}

func (s *PostgresNotifyStoreSuite) SetupTest() {
	_, err := s.postgres.DB.Exec(`TRUNCATE notifications, parked_events`)
	s.Require().NoError(err)
}

func (s *PostgresNotifyStoreSuite) notification(recipient domain.ActorID, at time.Time) domain.Notification {
	return domain.Notification{
		ID:             domain.NewNotificationID(),
		RecipientID:    recipient,
		Type:           domain.NotifCorrectionRequest,
		Priority:       domain.PriorityHigh,
		EventID:        domain.NewEventID(),
		ActionRequired: true,
		Data:           map[string]string{"record_id": domain.NewRecordID().String()},
		CreatedAt:      at,
	}
}

// TestCreateDedupesOnEventAndRecipient is the real idempotency guarantee: the
// unique constraint turns a duplicate dispatch into a silent no-op.
func (s *PostgresNotifyStoreSuite) TestCreateDedupesOnEventAndRecipient() {
	ctx := context.Background()
	recipient := domain.NewActorID()
	n := s.notification(recipient, time.Now().UTC())

	created, err := s.store.Create(ctx, n)
	s.Require().NoError(err)
	s.True(created)

	duplicate := n
	duplicate.ID = domain.NewNotificationID()
	created, err = s.store.Create(ctx, duplicate)
	s.Require().NoError(err)
	s.False(created, "same (event, recipient) must not insert twice")

	list, err := s.store.ListByRecipient(ctx, recipient, false)
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *PostgresNotifyStoreSuite) TestListByRecipientNewestFirst() {
	ctx := context.Background()
	recipient := domain.NewActorID()
	base := time.Now().UTC().Truncate(time.Microsecond)

	older := s.notification(recipient, base.Add(-time.Hour))
	newer := s.notification(recipient, base)
	for _, n := range []domain.Notification{older, newer} {
		created, err := s.store.Create(ctx, n)
		s.Require().NoError(err)
		s.Require().True(created)
	}

	list, err := s.store.ListByRecipient(ctx, recipient, false)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(newer.ID, list[0].ID)
	s.Equal(older.ID, list[1].ID)
	s.Equal("high", list[0].Priority.String())
	s.NotEmpty(list[0].Data["record_id"])
}

func (s *PostgresNotifyStoreSuite) TestMarkReadAndUnreadFilter() {
	ctx := context.Background()
	recipient := domain.NewActorID()
	n := s.notification(recipient, time.Now().UTC())
	created, err := s.store.Create(ctx, n)
	s.Require().NoError(err)
	s.Require().True(created)

	s.Require().NoError(s.store.MarkRead(ctx, n.ID, recipient))

	unread, err := s.store.ListByRecipient(ctx, recipient, true)
	s.Require().NoError(err)
	s.Empty(unread)

	all, err := s.store.ListByRecipient(ctx, recipient, false)
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	s.True(all[0].Read)
}

func (s *PostgresNotifyStoreSuite) TestParkingLotLifecycle() {
	ctx := context.Background()

	event := events.New(events.KindRecordCreated, domain.NewActorID())
	record := domain.Record{
		ID:          domain.NewRecordID(),
		SubjectID:   domain.NewActorID(),
		ClinicianID: domain.NewActorID(),
		Status:      domain.RecordStatusPending,
	}
	event.Record = &record

	parked, err := notify.ParkEvent(event, 5, "store unavailable")
	s.Require().NoError(err)
	s.Require().NoError(s.lot.Park(ctx, parked))

	// Re-parking the same event updates in place instead of erroring.
	parked.Attempts = 6
	s.Require().NoError(s.lot.Park(ctx, parked))

	got, err := s.lot.Reclaim(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(event.ID, got[0].EventID)
	s.Equal(6, got[0].Attempts)

	thawed, err := got[0].Thaw()
	s.Require().NoError(err)
	s.Require().NotNil(thawed.Record)
	s.Equal(record.ClinicianID, thawed.Record.ClinicianID)

	// Reclaim removes; a second pass finds nothing.
	got, err = s.lot.Reclaim(ctx, 10)
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *PostgresNotifyStoreSuite) TestMarkReadWrongRecipient() {
	ctx := context.Background()
	n := s.notification(domain.NewActorID(), time.Now().UTC())
	created, err := s.store.Create(ctx, n)
	s.Require().NoError(err)
	s.Require().True(created)

	err = s.store.MarkRead(ctx, n.ID, domain.NewActorID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
