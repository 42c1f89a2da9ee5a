package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"medvault/internal/events"
	"medvault/internal/platform/metrics"
	redisplatform "medvault/internal/platform/redis"
	"medvault/pkg/domain"
)

// AdminDirectory resolves the administrator broadcast set. The dispatcher
// calls it at dispatch time, never caching, so late-verified administrators
// are included and rejected ones are not.
type AdminDirectory interface {
	VerifiedAdministrators(ctx context.Context) ([]domain.Actor, error)
}

// target is one resolved recipient for an event.
type target struct {
	recipient      domain.ActorID
	typ            domain.NotificationType
	priority       domain.NotificationPriority
	actionRequired bool
}

// Dispatcher translates committed transition events into notifications. It
// runs after the commit and is fire-and-forget relative to it: a dispatch
// failure never rolls back a transition, it is queued for retry instead.
type Dispatcher struct {
	store   Store
	admins  AdminDirectory
	marks   *redisplatform.Client
	markTTL time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewDispatcher(store Store, admins AdminDirectory, marks *redisplatform.Client, markTTL time.Duration, logger *slog.Logger, m *metrics.Metrics) *Dispatcher {
	if markTTL <= 0 {
		markTTL = 7 * 24 * time.Hour
	}
	return &Dispatcher{
		store:   store,
		admins:  admins,
		marks:   marks,
		markTTL: markTTL,
		logger:  logger,
		metrics: m,
	}
}

// Dispatch fans the event out to its recipients. Recipients are independent:
// writes run in parallel and a failure for one does not block the others.
// Partial delivery is repaired by re-dispatching the same event; recipients
// already notified are skipped via the idempotency mark and the store's
// (event, recipient) uniqueness.
func (d *Dispatcher) Dispatch(ctx context.Context, event events.Event) ([]domain.NotificationID, error) {
	targets, err := d.resolve(ctx, event)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, nil
	}

	ids := make([]domain.NotificationID, len(targets))
	var g errgroup.Group
	for i, t := range targets {
		g.Go(func() error {
			id, created, err := d.deliver(ctx, event, t)
			if err != nil {
				return err
			}
			if created {
				ids[i] = id
			}
			return nil
		})
	}
	err = g.Wait()

	var out []domain.NotificationID
	for _, id := range ids {
		if !id.IsNil() {
			out = append(out, id)
		}
	}
	if d.metrics != nil {
		d.metrics.NotificationsCreated.Add(float64(len(out)))
	}
	return out, err
}

func (d *Dispatcher) deliver(ctx context.Context, event events.Event, t target) (domain.NotificationID, bool, error) {
	if d.marked(ctx, event.ID, t.recipient) {
		return domain.NotificationID{}, false, nil
	}

	notification := domain.Notification{
		ID:             domain.NewNotificationID(),
		RecipientID:    t.recipient,
		Type:           t.typ,
		Priority:       t.priority,
		EventID:        event.ID,
		ActionRequired: t.actionRequired,
		Data:           eventData(event),
		CreatedAt:      time.Now().UTC(),
	}
	created, err := d.store.Create(ctx, notification)
	if err != nil {
		if d.metrics != nil {
			d.metrics.NotificationsFailed.Inc()
		}
		return domain.NotificationID{}, false, fmt.Errorf("create notification for %s: %w", t.recipient.String(), err)
	}
	d.mark(ctx, event.ID, t.recipient)
	if !created {
		return domain.NotificationID{}, false, nil
	}
	return notification.ID, true, nil
}

// resolve applies the event-to-recipient mapping.
func (d *Dispatcher) resolve(ctx context.Context, event events.Event) ([]target, error) {
	switch event.Kind {
	case events.KindRecordCreated:
		return []target{{
			recipient:      event.Record.ClinicianID,
			typ:            domain.NotifRecordCreated,
			priority:       domain.PriorityHigh,
			actionRequired: true,
		}}, nil

	case events.KindRecordVerified:
		return []target{{
			recipient: event.Record.SubjectID,
			typ:       domain.NotifRecordVerified,
			priority:  domain.PriorityMedium,
		}}, nil

	case events.KindCorrectionRequested:
		return []target{{
			recipient:      event.Record.ClinicianID,
			typ:            domain.NotifCorrectionRequest,
			priority:       domain.PriorityHigh,
			actionRequired: true,
		}}, nil

	case events.KindCorrectionApproved:
		return []target{{
			recipient: event.Record.SubjectID,
			typ:       domain.NotifCorrectionApproved,
			priority:  domain.PriorityMedium,
		}}, nil

	case events.KindCorrectionRejected:
		return []target{{
			recipient: event.Record.SubjectID,
			typ:       domain.NotifCorrectionRejected,
			priority:  domain.PriorityMedium,
		}}, nil

	case events.KindActorRegistered:
		admins, err := d.admins.VerifiedAdministrators(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve administrator broadcast: %w", err)
		}
		targets := make([]target, 0, len(admins))
		for _, admin := range admins {
			targets = append(targets, target{
				recipient:      admin.ID,
				typ:            domain.NotifActorRegistered,
				priority:       domain.PriorityMedium,
				actionRequired: true,
			})
		}
		return targets, nil

	case events.KindActorVerified:
		return []target{{
			recipient: event.Subject.ID,
			typ:       domain.NotifActorVerified,
			priority:  domain.PriorityMedium,
		}}, nil

	case events.KindActorRejected:
		return []target{{
			recipient: event.Subject.ID,
			typ:       domain.NotifActorRejected,
			priority:  domain.PriorityHigh,
		}}, nil
	}

	d.logger.Warn("no notification mapping for event kind", "kind", string(event.Kind))
	return nil, nil
}

// marked checks the fast-path idempotency mark. Redis being down or absent is
// fine: the store's uniqueness constraint is the actual guarantee.
func (d *Dispatcher) marked(ctx context.Context, eventID domain.EventID, recipient domain.ActorID) bool {
	if d.marks == nil {
		return false
	}
	n, err := d.marks.Exists(ctx, markKey(eventID, recipient)).Result()
	return err == nil && n > 0
}

func (d *Dispatcher) mark(ctx context.Context, eventID domain.EventID, recipient domain.ActorID) {
	if d.marks == nil {
		return
	}
	if err := d.marks.SetNX(ctx, markKey(eventID, recipient), 1, d.markTTL).Err(); err != nil {
		d.logger.Warn("failed to set dispatch mark", "error", err)
	}
}

func markKey(eventID domain.EventID, recipient domain.ActorID) string {
	return "dispatch:" + eventID.String() + ":" + recipient.String()
}

// eventData is the payload the delivery service renders from.
func eventData(event events.Event) map[string]string {
	data := map[string]string{
		"event_id": event.ID.String(),
		"kind":     string(event.Kind),
		"actor_id": event.ActorID.String(),
	}
	if event.Record != nil {
		data["record_id"] = event.Record.ID.String()
		data["record_status"] = event.Record.Status.String()
	}
	if event.Correction != nil {
		data["correction_request_id"] = event.Correction.ID.String()
		data["correction_reason"] = event.Correction.Reason
		if event.Correction.Response != "" {
			data["correction_response"] = event.Correction.Response
		}
	}
	if event.Subject != nil {
		data["subject_actor_id"] = event.Subject.ID.String()
	}
	return data
}
