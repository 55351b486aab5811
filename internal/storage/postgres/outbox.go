package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shop-orders/internal/domain/order"
	"github.com/xenking/shop-orders/internal/outbox"
)

const (
	aggregateOrder = "order"

	insertOutboxSQL = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, payload)
		VALUES ($1, $2, $3, $4, $5)`

	claimOutboxSQL = `SELECT id, aggregate_id, event_type, topic, payload, attempts, created_at
		FROM outbox
		WHERE published_at IS NULL AND attempts < $2
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`

	markPublishedSQL = `UPDATE outbox SET published_at = now(), last_error = NULL WHERE id = $1`

	markFailedSQL = `UPDATE outbox SET last_error = $2, attempts = attempts + 1 WHERE id = $1`
)

var _ order.EventWriter = (*OutboxWriter)(nil)

// OutboxWriter appends workflow events inside the workflow transaction.
type OutboxWriter struct {
	q     querier
	topic string
}

// Append stores e for later delivery by the relay.
func (w *OutboxWriter) Append(ctx context.Context, e order.Event) error {
	_, err := w.q.Exec(ctx, insertOutboxSQL, aggregateOrder, e.AggregateID, e.Type, w.topic, e.Payload)
	if err != nil {
		return fmt.Errorf("appending outbox event %s: %w", e.Type, err)
	}
	return nil
}

var _ outbox.Source = (*OutboxSource)(nil)

// OutboxSource hands out batches of unpublished events to the relay. Rows of
// a batch stay locked until it is committed, so several relays can run side
// by side.
type OutboxSource struct {
	pool        *pgxpool.Pool
	maxAttempts int
}

// NewOutboxSource returns an OutboxSource. Events that failed maxAttempts
// times are no longer claimed.
func NewOutboxSource(pool *pgxpool.Pool, maxAttempts int) *OutboxSource {
	return &OutboxSource{pool: pool, maxAttempts: maxAttempts}
}

// Claim locks up to limit unpublished events.
func (s *OutboxSource) Claim(ctx context.Context, limit int) (outbox.Batch, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning outbox transaction: %w", err)
	}

	rows, err := tx.Query(ctx, claimOutboxSQL, limit, s.maxAttempts)
	if err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("claiming outbox events: %w", err)
	}
	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (outbox.Message, error) {
		var m outbox.Message
		err := row.Scan(&m.ID, &m.Key, &m.Type, &m.Topic, &m.Payload, &m.Attempts, &m.CreatedAt)
		return m, err
	})
	if err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("claiming outbox events: %w", err)
	}
	return &outboxBatch{tx: tx, msgs: msgs}, nil
}

type outboxBatch struct {
	tx   pgx.Tx
	msgs []outbox.Message
}

func (b *outboxBatch) Messages() []outbox.Message { return b.msgs }

func (b *outboxBatch) MarkPublished(ctx context.Context, id int64) error {
	_, err := b.tx.Exec(ctx, markPublishedSQL, id)
	return err
}

func (b *outboxBatch) MarkFailed(ctx context.Context, id int64, reason string) error {
	_, err := b.tx.Exec(ctx, markFailedSQL, id, reason)
	return err
}

func (b *outboxBatch) Commit(ctx context.Context) error {
	return b.tx.Commit(ctx)
}

func (b *outboxBatch) Rollback(ctx context.Context) error {
	err := b.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}
