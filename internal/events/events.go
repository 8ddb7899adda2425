// Package events carries domain events out of financial transactions through
// a persisted outbox. Services append events inside the same unit of work
// that moves money; the dispatcher delivers them after commit so delivery
// failures can never roll back a financial transition.
package events

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	EventOrderCreated     = "order.created"
	EventOrderCompleted   = "order.completed"
	EventOrderCancelled   = "order.cancelled"
	EventOrderRefunded    = "order.refunded"
	EventOrderReported    = "order.reported"
	EventWalletCredited   = "wallet.credited"
	EventWalletDebited    = "wallet.debited"
	EventTopUpRequested   = "wallet.topup_requested"
	EventCommissionPaid   = "commission.paid"
	EventCommissionClosed = "commission.finalized"
)

// Event is the payload handed to PublishTx by domain services.
type Event struct {
	TenantID  snowflake.ID
	Type      string
	Payload   map[string]any
	DedupeKey string
}

// OutboxEvent is the persisted outbox row.
type OutboxEvent struct {
	ID          snowflake.ID      `gorm:"primaryKey"`
	TenantID    snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_outbox_dedupe,priority:1"`
	EventType   string            `gorm:"type:text;not null"`
	Payload     datatypes.JSONMap `gorm:"not null"`
	DedupeKey   *string           `gorm:"type:text;uniqueIndex:ux_outbox_dedupe,priority:2"`
	Published   bool              `gorm:"not null;default:false"`
	PublishedAt *time.Time        `gorm:""`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (OutboxEvent) TableName() string { return "outbox_events" }
