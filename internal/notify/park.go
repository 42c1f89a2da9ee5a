package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"medvault/internal/events"
	"medvault/pkg/domain"
)

// ParkedEvent is a dispatch the retry worker gave up on, kept durably so no
// notification is ever lost to a transient outage outliving the attempt
// budget. Parked events are re-driven out of band via Reclaim.
type ParkedEvent struct {
	EventID  domain.EventID
	Kind     events.Kind
	Attempts int
	Reason   string
	Payload  []byte
	ParkedAt time.Time
}

// ParkEvent freezes a bus event for durable storage.
func ParkEvent(event events.Event, attempts int, reason string) (ParkedEvent, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return ParkedEvent{}, fmt.Errorf("marshal parked event: %w", err)
	}
	return ParkedEvent{
		EventID:  event.ID,
		Kind:     event.Kind,
		Attempts: attempts,
		Reason:   reason,
		Payload:  payload,
		ParkedAt: time.Now().UTC(),
	}, nil
}

// Thaw restores the original bus event. Re-dispatching it is safe because
// delivery is idempotent per (event, recipient).
func (p ParkedEvent) Thaw() (events.Event, error) {
	var event events.Event
	if err := json.Unmarshal(p.Payload, &event); err != nil {
		return events.Event{}, fmt.Errorf("unmarshal parked event: %w", err)
	}
	return event, nil
}

// ParkingLot persists abandoned dispatches. Park is an upsert keyed on the
// event id; Reclaim removes and returns the oldest parked events so a caller
// can feed them back through the dispatcher.
type ParkingLot interface {
	Park(ctx context.Context, parked ParkedEvent) error
	Reclaim(ctx context.Context, limit int) ([]ParkedEvent, error)
}

type InMemoryParkingLot struct {
	mu     sync.Mutex
	parked map[domain.EventID]ParkedEvent
}

func NewInMemoryParkingLot() *InMemoryParkingLot {
	return &InMemoryParkingLot{parked: make(map[domain.EventID]ParkedEvent)}
}

func (l *InMemoryParkingLot) Park(_ context.Context, parked ParkedEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.parked[parked.EventID] = parked
	return nil
}

func (l *InMemoryParkingLot) Reclaim(_ context.Context, limit int) ([]ParkedEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ParkedEvent, 0, len(l.parked))
	for _, p := range l.parked {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParkedAt.Before(out[j].ParkedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for _, p := range out {
		delete(l.parked, p.EventID)
	}
	return out, nil
}

// PostgresParkingLot is the durable lot.
//
// Schema:
//
//	CREATE TABLE parked_events (
//	    event_id  UUID PRIMARY KEY,
//	    kind      TEXT NOT NULL,
//	    attempts  INT NOT NULL,
//	    reason    TEXT NOT NULL,
//	    payload   JSONB NOT NULL,
//	    parked_at TIMESTAMPTZ NOT NULL
//	);
type PostgresParkingLot struct {
	db *sql.DB
}

func NewPostgresParkingLot(db *sql.DB) *PostgresParkingLot {
	return &PostgresParkingLot{db: db}
}

func (l *PostgresParkingLot) Park(ctx context.Context, parked ParkedEvent) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO parked_events (event_id, kind, attempts, reason, payload, parked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO UPDATE
		SET attempts = EXCLUDED.attempts, reason = EXCLUDED.reason, parked_at = EXCLUDED.parked_at
	`, uuid.UUID(parked.EventID), string(parked.Kind), parked.Attempts, parked.Reason, parked.Payload, parked.ParkedAt)
	if err != nil {
		return wrapStoreErr("park event", err)
	}
	return nil
}

func (l *PostgresParkingLot) Reclaim(ctx context.Context, limit int) ([]ParkedEvent, error) {
	rows, err := l.db.QueryContext(ctx, `
		DELETE FROM parked_events
		WHERE event_id IN (
			SELECT event_id FROM parked_events ORDER BY parked_at LIMIT $1
		)
		RETURNING event_id, kind, attempts, reason, payload, parked_at
	`, limit)
	if err != nil {
		return nil, wrapStoreErr("reclaim parked events", err)
	}
	defer rows.Close()

	var out []ParkedEvent
	for rows.Next() {
		var (
			p  ParkedEvent
			id uuid.UUID
			k  string
		)
		if err := rows.Scan(&id, &k, &p.Attempts, &p.Reason, &p.Payload, &p.ParkedAt); err != nil {
			return nil, wrapStoreErr("scan parked event", err)
		}
		p.EventID = domain.EventID(id)
		p.Kind = events.Kind(k)
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParkedAt.Before(out[j].ParkedAt) })
	return out, rows.Err()
}
