package domain

import (
	"github.com/google/uuid"

	dErrors "medvault/pkg/domain-errors"
)

// Typed ids keep actor, record, correction, and notification identifiers from
// being swapped at call sites. Construct from external input via the ParseXxx
// functions; direct casting bypasses validation.
type (
	ActorID             uuid.UUID
	RecordID            uuid.UUID
	CorrectionRequestID uuid.UUID
	NotificationID      uuid.UUID
	// EventID identifies one lifecycle transition event. Dispatch idempotency
	// is keyed on (EventID, recipient).
	EventID uuid.UUID
)

func NewActorID() ActorID                         { return ActorID(uuid.New()) }
func NewRecordID() RecordID                       { return RecordID(uuid.New()) }
func NewCorrectionRequestID() CorrectionRequestID { return CorrectionRequestID(uuid.New()) }
func NewNotificationID() NotificationID           { return NotificationID(uuid.New()) }
func NewEventID() EventID                         { return EventID(uuid.New()) }

func (id ActorID) String() string             { return uuid.UUID(id).String() }
func (id RecordID) String() string            { return uuid.UUID(id).String() }
func (id CorrectionRequestID) String() string { return uuid.UUID(id).String() }
func (id NotificationID) String() string      { return uuid.UUID(id).String() }
func (id EventID) String() string             { return uuid.UUID(id).String() }

// Text marshaling keeps the typed ids in canonical uuid form inside JSON
// payloads (parked events, outbox rows) instead of raw byte arrays.
func (id ActorID) MarshalText() ([]byte, error)             { return uuid.UUID(id).MarshalText() }
func (id RecordID) MarshalText() ([]byte, error)            { return uuid.UUID(id).MarshalText() }
func (id CorrectionRequestID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id NotificationID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id EventID) MarshalText() ([]byte, error)             { return uuid.UUID(id).MarshalText() }

func (id *ActorID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *RecordID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *CorrectionRequestID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}
func (id *NotificationID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *EventID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id ActorID) IsNil() bool             { return uuid.UUID(id) == uuid.Nil }
func (id RecordID) IsNil() bool            { return uuid.UUID(id) == uuid.Nil }
func (id CorrectionRequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id NotificationID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool             { return uuid.UUID(id) == uuid.Nil }

// parseUUID enforces the shared id invariant: valid, non-empty, non-nil.
func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+" id")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id cannot be nil")
	}
	return u, nil
}

func ParseActorID(s string) (ActorID, error) {
	u, err := parseUUID(s, "actor")
	return ActorID(u), err
}

func ParseRecordID(s string) (RecordID, error) {
	u, err := parseUUID(s, "record")
	return RecordID(u), err
}

func ParseCorrectionRequestID(s string) (CorrectionRequestID, error) {
	u, err := parseUUID(s, "correction request")
	return CorrectionRequestID(u), err
}

func ParseNotificationID(s string) (NotificationID, error) {
	u, err := parseUUID(s, "notification")
	return NotificationID(u), err
}

func ParseEventID(s string) (EventID, error) {
	u, err := parseUUID(s, "event")
	return EventID(u), err
}
