package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"medvault/pkg/domain"
)

// InMemoryStore keeps the trail and its outbox in process. Used in tests and
// when the service runs without PostgreSQL.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	outbox  []outboxRow
}

type outboxRow struct {
	msg       OutboxMessage
	published bool
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(ctx context.Context, entry Entry) error {
	payload, err := json.Marshal(entryPayload(entry))
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	s.outbox = append(s.outbox, outboxRow{msg: OutboxMessage{
		ID:        uuid.New(),
		Key:       outboxKey(entry),
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}})
	return nil
}

func (s *InMemoryStore) ListByRecord(ctx context.Context, recordID domain.RecordID) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries {
		if e.RecordID == recordID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemoryStore) NextBatch(ctx context.Context, limit int) ([]OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []OutboxMessage
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		out = append(out, row.msg)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemoryStore) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if set[s.outbox[i].msg.ID] {
			s.outbox[i].published = true
		}
	}
	return nil
}

// payload is the JSON structure relayed to Kafka.
type payload struct {
	ID                  string `json:"id"`
	Timestamp           string `json:"timestamp"`
	Action              string `json:"action"`
	ActorID             string `json:"actor_id"`
	RecordID            string `json:"record_id,omitempty"`
	RecordStatus        string `json:"record_status,omitempty"`
	CorrectionRequestID string `json:"correction_request_id,omitempty"`
	SubjectActorID      string `json:"subject_actor_id,omitempty"`
}

func entryPayload(entry Entry) payload {
	p := payload{
		ID:        entry.ID.String(),
		Timestamp: entry.Timestamp.Format(time.RFC3339Nano),
		Action:    entry.Action,
		ActorID:   entry.ActorID.String(),
	}
	if !entry.RecordID.IsNil() {
		p.RecordID = entry.RecordID.String()
		p.RecordStatus = entry.RecordStatus.String()
	}
	if !entry.CorrectionRequestID.IsNil() {
		p.CorrectionRequestID = entry.CorrectionRequestID.String()
	}
	if !entry.SubjectActorID.IsNil() {
		p.SubjectActorID = entry.SubjectActorID.String()
	}
	return p
}

// outboxKey partitions the topic so one record's trail stays ordered.
func outboxKey(entry Entry) string {
	if !entry.RecordID.IsNil() {
		return entry.RecordID.String()
	}
	if !entry.SubjectActorID.IsNil() {
		return entry.SubjectActorID.String()
	}
	return entry.ActorID.String()
}
