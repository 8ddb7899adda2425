package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	ListByAgent(ctx context.Context, db *gorm.DB, agentID snowflake.ID, limit int) ([]*Order, error)
	ListDrafts(ctx context.Context, db *gorm.DB, agentID snowflake.ID) ([]*Order, error)
	// UpdateStatus transitions conditionally; ok is false when the order was
	// no longer in any of the from states.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []Status, to Status) (bool, error)
	SetPaymentStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status PaymentStatus) error
	SetItemStatus(ctx context.Context, db *gorm.DB, itemID snowflake.ID, status ItemStatus, note string) error
	CancelPendingItems(ctx context.Context, db *gorm.DB, orderID snowflake.ID) error
	// HardDelete removes the order and its items; only draft orders qualify.
	// ok is false when the order was no longer a draft.
	HardDelete(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (bool, error)
	SetReception(ctx context.Context, db *gorm.DB, orderID snowflake.ID, status ReceptionStatus, reportedAt, resolvedAt *time.Time) error
}
