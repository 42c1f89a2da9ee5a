package audit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"medvault/internal/events"
	"medvault/pkg/domain"
)

type fakeProducer struct {
	mu      sync.Mutex
	records []*kgo.Record
	err     error
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return kgo.ProduceResults{{Err: p.err}}
	}
	p.records = append(p.records, rs...)
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		results = append(results, kgo.ProduceResult{Record: r})
	}
	return results
}

func (p *fakeProducer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleEvent() events.Event {
	record := domain.Record{
		ID:          domain.NewRecordID(),
		SubjectID:   domain.NewActorID(),
		ClinicianID: domain.NewActorID(),
		Status:      domain.RecordStatusVerified,
	}
	event := events.New(events.KindRecordVerified, record.ClinicianID)
	event.Record = &record
	return event
}

func TestRecorder_AppendsTrailEntries(t *testing.T) {
	store := NewInMemory()
	inbox := make(chan events.Event, 1)
	r := NewRecorder(store, inbox, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	event := sampleEvent()
	inbox <- event

	require.Eventually(t, func() bool {
		entries, err := store.ListByRecord(context.Background(), event.Record.ID)
		return err == nil && len(entries) == 1
	}, time.Second, 10*time.Millisecond)

	entries, err := store.ListByRecord(context.Background(), event.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, event.ID, entries[0].ID)
	assert.Equal(t, "record_verified", entries[0].Action)
	assert.Equal(t, domain.RecordStatusVerified, entries[0].RecordStatus)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRecorder_StopsWhenInboxCloses(t *testing.T) {
	inbox := make(chan events.Event)
	r := NewRecorder(NewInMemory(), inbox, discard())
	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()
	close(inbox)
	assert.NoError(t, <-done)
}

func TestRelay_PublishesAndMarks(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, fromEvent(sampleEvent())))
	require.NoError(t, store.Append(ctx, fromEvent(sampleEvent())))

	producer := &fakeProducer{}
	relay := NewRelay(store, producer, "medvault.audit", time.Hour, discard(), nil)
	relay.drain(ctx)

	assert.Equal(t, 2, producer.count())

	// Everything is marked published; a second drain produces nothing new.
	relay.drain(ctx)
	assert.Equal(t, 2, producer.count())
}

func TestRelay_BrokerFailureKeepsOutboxRows(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, fromEvent(sampleEvent())))

	producer := &fakeProducer{err: errors.New("broker down")}
	relay := NewRelay(store, producer, "medvault.audit", time.Hour, discard(), nil)
	relay.drain(ctx)

	batch, err := store.NextBatch(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, batch, 1, "unacknowledged rows stay queued")

	producer.err = nil
	relay.drain(ctx)
	batch, err = store.NextBatch(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestOutboxPayload_RoundTripsEntry(t *testing.T) {
	event := sampleEvent()
	entry := fromEvent(event)
	raw, err := json.Marshal(entryPayload(entry))
	require.NoError(t, err)

	decoded, err := entryFromPayload(raw)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, decoded.ID)
	assert.Equal(t, entry.Action, decoded.Action)
	assert.Equal(t, entry.ActorID, decoded.ActorID)
	assert.Equal(t, entry.RecordID, decoded.RecordID)
	assert.Equal(t, entry.RecordStatus, decoded.RecordStatus)
}

func TestOutboxKey_PartitionsByRecord(t *testing.T) {
	event := sampleEvent()
	entry := fromEvent(event)
	assert.Equal(t, event.Record.ID.String(), outboxKey(entry))

	actorEntry := Entry{ActorID: domain.NewActorID(), SubjectActorID: domain.NewActorID()}
	assert.Equal(t, actorEntry.SubjectActorID.String(), outboxKey(actorEntry))
}
