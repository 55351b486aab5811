// Package outbox delivers events that the order workflow stored in the
// outbox table to a message broker.
package outbox

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Message is a stored event awaiting delivery.
type Message struct {
	ID        int64
	Key       string // aggregate id, used as the partition key
	Type      string
	Topic     string
	Payload   []byte
	Attempts  int
	CreatedAt time.Time
}

// Batch is a set of claimed messages. Marks become visible on Commit.
type Batch interface {
	Messages() []Message
	MarkPublished(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, reason string) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Source claims batches of undelivered messages.
type Source interface {
	Claim(ctx context.Context, limit int) (Batch, error)
}

// Publisher sends one message to the broker.
type Publisher interface {
	Publish(ctx context.Context, m Message) error
}

const (
	DefaultInterval  = 500 * time.Millisecond
	DefaultBatchSize = 50
)

// Relay periodically moves messages from a Source to a Publisher.
type Relay struct {
	source    Source
	publisher Publisher
	interval  time.Duration
	batchSize int
	tracer    trace.Tracer
}

// NewRelay returns a Relay. Non-positive interval or batchSize fall back to
// DefaultInterval and DefaultBatchSize.
func NewRelay(source Source, publisher Publisher, interval time.Duration, batchSize int) *Relay {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Relay{
		source:    source,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		tracer:    otel.Tracer("github.com/xenking/shop-orders/internal/outbox"),
	}
}

// Run processes batches until ctx is canceled.
func (r *Relay) Run(ctx context.Context) error {
	lg := zctx.From(ctx)
	lg.Info("Starting outbox relay", zap.Duration("interval", r.interval), zap.Int("batch_size", r.batchSize))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			lg.Info("Outbox relay stopped")
			return nil
		case <-ticker.C:
			if _, err := r.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				lg.Error("Processing outbox batch", zap.Error(err))
			}
		}
	}
}

// ProcessBatch claims one batch, publishes it and records the outcome of each
// message. It returns the number of messages published.
func (r *Relay) ProcessBatch(ctx context.Context) (published int, err error) {
	ctx, span := r.tracer.Start(ctx, "outbox.ProcessBatch")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	batch, err := r.source.Claim(ctx, r.batchSize)
	if err != nil {
		return 0, errors.Wrap(err, "claim")
	}
	defer func() {
		if rbErr := batch.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			zctx.From(ctx).Error("Rolling back outbox batch", zap.Error(rbErr))
		}
	}()

	msgs := batch.Messages()
	span.SetAttributes(attribute.Int("outbox.batch_size", len(msgs)))
	if len(msgs) == 0 {
		return 0, nil
	}

	lg := zctx.From(ctx)
	for _, m := range msgs {
		if pubErr := r.publisher.Publish(ctx, m); pubErr != nil {
			lg.Warn("Publishing outbox message",
				zap.Int64("id", m.ID),
				zap.String("type", m.Type),
				zap.Error(pubErr),
			)
			if err := batch.MarkFailed(ctx, m.ID, pubErr.Error()); err != nil {
				return published, errors.Wrapf(err, "mark %d failed", m.ID)
			}
			continue
		}
		if err := batch.MarkPublished(ctx, m.ID); err != nil {
			return published, errors.Wrapf(err, "mark %d published", m.ID)
		}
		published++
	}

	if err := batch.Commit(ctx); err != nil {
		return 0, errors.Wrap(err, "commit")
	}
	lg.Debug("Outbox batch processed", zap.Int("published", published), zap.Int("claimed", len(msgs)))
	return published, nil
}
