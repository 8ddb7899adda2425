package events

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/datamartgh/datamart/pkg/db"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Outbox appends events to the outbox table on the caller's handle so the
// append shares the caller's transaction.
type Outbox struct {
	log   *zap.Logger
	genID *snowflake.Node
}

func NewOutbox(log *zap.Logger, genID *snowflake.Node) *Outbox {
	return &Outbox{log: log.Named("events.outbox"), genID: genID}
}

// PublishTx inserts the event using tx. A dedupe key collision means the
// event was already recorded by an earlier attempt and is not an error.
func (o *Outbox) PublishTx(ctx context.Context, tx *gorm.DB, event Event) error {
	row := OutboxEvent{
		ID:        o.genID.Generate(),
		TenantID:  event.TenantID,
		EventType: event.Type,
		Payload:   datatypes.JSONMap(event.Payload),
		CreatedAt: time.Now().UTC(),
	}
	if event.DedupeKey != "" {
		key := event.DedupeKey
		row.DedupeKey = &key
	}

	err := tx.WithContext(ctx).Create(&row).Error
	if err != nil && db.IsDuplicateKeyErr(err) {
		o.log.Debug("outbox event deduplicated",
			zap.String("event_type", event.Type),
			zap.String("dedupe_key", event.DedupeKey),
		)
		return nil
	}
	return err
}
