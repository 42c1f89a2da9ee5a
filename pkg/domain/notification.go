package domain

import (
	"time"

	dErrors "medvault/pkg/domain-errors"
)

// NotificationPriority orders notifications for the delivery service.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityMedium NotificationPriority = "medium"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

var validPriorities = map[NotificationPriority]bool{
	PriorityLow:    true,
	PriorityMedium: true,
	PriorityHigh:   true,
	PriorityUrgent: true,
}

func ParseNotificationPriority(s string) (NotificationPriority, error) {
	p := NotificationPriority(s)
	if !validPriorities[p] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid notification priority")
	}
	return p, nil
}

func (p NotificationPriority) IsValid() bool  { return validPriorities[p] }
func (p NotificationPriority) String() string { return string(p) }

// NotificationType names what happened, from the recipient's point of view.
type NotificationType string

const (
	NotifRecordCreated      NotificationType = "record_created"
	NotifRecordVerified     NotificationType = "record_verified"
	NotifCorrectionRequest  NotificationType = "correction_request"
	NotifCorrectionApproved NotificationType = "correction_approved"
	NotifCorrectionRejected NotificationType = "correction_rejected"
	NotifActorRegistered    NotificationType = "actor_registered"
	NotifActorVerified      NotificationType = "actor_verified"
	NotifActorRejected      NotificationType = "actor_rejected"
)

// Notification is one message addressed to one recipient. Created exclusively
// by the dispatcher; the only permitted mutation afterwards is the recipient
// marking it read. The delivery service consumes unread rows out-of-band.
type Notification struct {
	ID          NotificationID       `json:"id"`
	RecipientID ActorID              `json:"recipient_id"`
	Type        NotificationType     `json:"type"`
	Priority    NotificationPriority `json:"priority"`
	// EventID ties the notification to the transition that produced it.
	// One notification per (event, recipient); re-dispatch is a no-op.
	EventID        EventID           `json:"event_id"`
	ActionRequired bool              `json:"action_required"`
	Read           bool              `json:"read"`
	Data           map[string]string `json:"data,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}
