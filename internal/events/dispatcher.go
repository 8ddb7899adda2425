package events

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Gateway receives committed domain events. Implementations deliver to
// email/push/WebSocket fan-out outside this core.
type Gateway interface {
	Deliver(ctx context.Context, event OutboxEvent) error
}

// Dispatcher drains unpublished outbox rows and hands them to the gateway.
// A failed delivery leaves the row unpublished for the next pass.
type Dispatcher struct {
	db      *gorm.DB
	log     *zap.Logger
	gateway Gateway
}

func NewDispatcher(db *gorm.DB, log *zap.Logger, gateway Gateway) *Dispatcher {
	return &Dispatcher{db: db, log: log.Named("events.dispatcher"), gateway: gateway}
}

// DispatchPending delivers up to limit events, oldest first.
func (d *Dispatcher) DispatchPending(ctx context.Context, limit int) error {
	if limit <= 0 {
		limit = 50
	}

	var rows []OutboxEvent
	if err := d.db.WithContext(ctx).Raw(
		`SELECT id, tenant_id, event_type, payload, dedupe_key, published, published_at, created_at
		 FROM outbox_events
		 WHERE published = false
		 ORDER BY created_at ASC
		 LIMIT ?`,
		limit,
	).Scan(&rows).Error; err != nil {
		return err
	}

	for _, row := range rows {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := d.gateway.Deliver(ctx, row); err != nil {
			d.log.Warn("event delivery failed",
				zap.String("event_type", row.EventType),
				zap.String("event_id", row.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if err := d.markPublished(ctx, row.ID); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) markPublished(ctx context.Context, id snowflake.ID) error {
	now := time.Now().UTC()
	return d.db.WithContext(ctx).Exec(
		`UPDATE outbox_events SET published = true, published_at = ? WHERE id = ?`,
		now,
		id,
	).Error
}
