package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"medvault/internal/platform/metrics"
)

// Producer is the slice of the Kafka client the relay uses. *kgo.Client
// satisfies it.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Relay drains the outbox and publishes to Kafka. Rows are only marked
// published after the broker acknowledges the whole batch; a crash between
// produce and mark re-sends the batch, so topic consumers must dedupe on the
// payload id.
type Relay struct {
	source   OutboxSource
	client   Producer
	topic    string
	interval time.Duration
	batch    int
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewRelay(source OutboxSource, client Producer, topic string, interval time.Duration, logger *slog.Logger, m *metrics.Metrics) *Relay {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Relay{
		source:   source,
		client:   client,
		topic:    topic,
		interval: interval,
		batch:    100,
		logger:   logger,
		metrics:  m,
	}
}

// Run polls the outbox until the context is cancelled. Broker and store
// failures are logged and retried on the next tick; rows stay in the outbox
// until acknowledged.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

func (r *Relay) drain(ctx context.Context) {
	for {
		batch, err := r.source.NextBatch(ctx, r.batch)
		if err != nil {
			r.logger.ErrorContext(ctx, "fetch outbox batch failed", "error", err.Error())
			return
		}
		if len(batch) == 0 {
			return
		}

		records := make([]*kgo.Record, 0, len(batch))
		for _, msg := range batch {
			records = append(records, &kgo.Record{
				Topic: r.topic,
				Key:   []byte(msg.Key),
				Value: msg.Payload,
			})
		}
		if err := r.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
			r.logger.ErrorContext(ctx, "publish audit batch failed",
				"count", len(batch),
				"error", err.Error(),
			)
			return
		}

		ids := make([]uuid.UUID, 0, len(batch))
		for _, msg := range batch {
			ids = append(ids, msg.ID)
		}
		if err := r.source.MarkPublished(ctx, ids); err != nil {
			// The batch will be re-sent; consumers dedupe on payload id.
			r.logger.ErrorContext(ctx, "mark outbox published failed", "error", err.Error())
			return
		}
		if r.metrics != nil {
			r.metrics.AuditEventsPublished.Add(float64(len(batch)))
		}
		if len(batch) < r.batch {
			return
		}
	}
}
