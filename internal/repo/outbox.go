package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/velumlabs/fulfillment/internal/entities"
)

var outboxColumns = []string{
	"id", "message_id", "event_type", "order_id", "payload", "tenant_id", "created_at", "published_at",
}

// SaveEvents writes domain events to the outbox inside the caller's
// transaction. The message id is stamped here, once, so every later publish
// of the same row carries the same id and consumers can deduplicate
// redeliveries.
func (r *postgresRepo) SaveEvents(ctx context.Context, tenantID string, events ...entities.Event) error {
	if len(events) == 0 {
		return nil
	}

	q := r.qb.Insert("outbox").
		Columns("message_id", "event_type", "order_id", "payload", "tenant_id", "created_at")

	now := time.Now().UTC()
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", e.Type(), err)
		}
		q = q.Values(uuid.NewString(), e.Type(), e.AggregateID(), payload, tenantID, now)
	}

	query, args := q.MustSql()
	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save outbox events: %w", err)
	}
	return nil
}

// UnpublishedEvents returns outbox rows not yet published, oldest first, so
// the relay preserves emission order.
func (r *postgresRepo) UnpublishedEvents(ctx context.Context, limit int) ([]OutboxMessage, error) {
	query, args := r.qb.Select(outboxColumns...).
		From("outbox").
		Where(sq.Eq{"published_at": nil}).
		OrderBy("id ASC").
		Limit(uint64(limit)).
		MustSql()

	var messages []OutboxMessage
	if err := r.selectContext(ctx, &messages, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select outbox events: %w", err)
	}
	return messages, nil
}

func (r *postgresRepo) MarkEventPublished(ctx context.Context, id int64) error {
	query, args := r.qb.Update("outbox").
		Set("published_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark outbox event published: %w", err)
	}
	return nil
}
