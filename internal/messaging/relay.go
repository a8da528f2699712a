package messaging

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/velumlabs/fulfillment/internal/config"
	"github.com/velumlabs/fulfillment/internal/repo"
	"github.com/velumlabs/fulfillment/pkg/utils"
)

type OutboxRepo interface {
	UnpublishedEvents(ctx context.Context, limit int) ([]repo.OutboxMessage, error)
	MarkEventPublished(ctx context.Context, id int64) error
}

type EventPublisher interface {
	Publish(ctx context.Context, m repo.OutboxMessage) error
	Close() error
}

// Relay drains the outbox and publishes rows in insertion order. Events are
// written to the outbox in the same transaction as the state change, so a
// crash anywhere between commit and publish loses nothing: the row is picked
// up again on the next tick. Re-publishing after a crash is possible and
// intended; the stable message id lets consumers drop the duplicate.
type Relay struct {
	logger    *slog.Logger
	outbox    OutboxRepo
	publisher EventPublisher
	interval  time.Duration
	batchSize int
}

func NewRelay(logger *slog.Logger, cfg config.Outbox, outbox OutboxRepo, publisher EventPublisher) *Relay {
	return &Relay{
		logger:    logger.With(slog.String("component", "outbox_relay")),
		outbox:    outbox,
		publisher: publisher,
		interval:  cfg.PollInterval,
		batchSize: cfg.BatchSize,
	}
}

func (r *Relay) Consume(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("failed to drain outbox", slog.Any("error", err))
			}
		}
	}
}

func (r *Relay) drain(ctx context.Context) error {
	messages, err := r.outbox.UnpublishedEvents(ctx, r.batchSize)
	if err != nil {
		return err
	}

	for _, m := range messages {
		publish := func() error {
			return r.publisher.Publish(ctx, m)
		}
		if err := utils.Retry(utils.RetryConfig{MaxAttempts: 5, InitialDelay: 100 * time.Millisecond, Multiplier: 2}, publish); err != nil {
			// Stop the batch so later events keep their emission order.
			relayFailed.Inc()
			return err
		}
		relayPublished.Inc()

		if err := r.outbox.MarkEventPublished(ctx, m.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *Relay) Close() error {
	return r.publisher.Close()
}
