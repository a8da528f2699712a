package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsMessageProcessed reports whether a message id already appears in the
// dedup ledger. Checked before every consumption attempt.
func (r *postgresRepo) IsMessageProcessed(ctx context.Context, messageID string) (bool, error) {
	query, args := r.qb.Select("1").
		From("processed_messages").
		Where(sq.Eq{"message_id": messageID}).
		MustSql()

	var exists int
	err := r.getContext(ctx, &exists, query, args...)
	if err == nil {
		return true, nil
	}
	if isNoRows(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check processed message: %w", err)
}

// MarkMessageProcessed appends to the dedup ledger. Written after the side
// effect and before the broker ack; the conflict clause makes a concurrent
// duplicate write harmless.
func (r *postgresRepo) MarkMessageProcessed(ctx context.Context, messageID, eventType, tenantID string) error {
	query, args := r.qb.Insert("processed_messages").
		Columns("message_id", "event_type", "processed_at", "tenant_id").
		Values(messageID, eventType, time.Now().UTC(), tenantID).
		Suffix("ON CONFLICT (message_id) DO NOTHING").
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark message processed: %w", err)
	}
	return nil
}
