package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Type distinguishes how an order entered the system.
type Type string

const (
	TypeSingle     Type = "single"
	TypeBulk       Type = "bulk"
	TypeStorefront Type = "storefront"
)

// Status is the order lifecycle state.
//
//	draft → pending → confirmed → processing → {completed|failed|partially_completed}
//
// cancelled is reachable from draft/pending/confirmed; pending_payment is the
// storefront entry state before an agent verifies payment.
type Status string

const (
	StatusDraft              Status = "draft"
	StatusPendingPayment     Status = "pending_payment"
	StatusPending            Status = "pending"
	StatusConfirmed          Status = "confirmed"
	StatusProcessing         Status = "processing"
	StatusCompleted          Status = "completed"
	StatusFailed             Status = "failed"
	StatusPartiallyCompleted Status = "partially_completed"
	StatusCancelled          Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// ReceptionStatus tracks delivery confirmation disputes.
type ReceptionStatus string

const (
	ReceptionNone        ReceptionStatus = "none"
	ReceptionNotReceived ReceptionStatus = "not_received"
	ReceptionChecking    ReceptionStatus = "checking"
	ReceptionResolved    ReceptionStatus = "resolved"
)

type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemProcessing ItemStatus = "processing"
	ItemCompleted  ItemStatus = "completed"
	ItemFailed     ItemStatus = "failed"
	ItemCancelled  ItemStatus = "cancelled"
)

// Order is one purchase unit. Total always equals the sum of item totals;
// paymentStatus == paid implies a matching debit WalletTransaction exists
// referencing this order. Orders are never hard-deleted once out of draft.
type Order struct {
	ID              snowflake.ID    `gorm:"primaryKey"`
	OrderNumber     string          `gorm:"type:text;not null;uniqueIndex"`
	Type            Type            `gorm:"type:text;not null"`
	TenantID        snowflake.ID    `gorm:"not null;index"`
	CreatedBy       snowflake.ID    `gorm:"not null;index"`
	Status          Status          `gorm:"type:text;not null;index"`
	PaymentStatus   PaymentStatus   `gorm:"type:text;not null"`
	ReceptionStatus ReceptionStatus `gorm:"type:text;not null;default:none"`
	Total           int64           `gorm:"not null"`
	ReportedAt      *time.Time      `gorm:""`
	ResolvedAt      *time.Time      `gorm:""`
	CreatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
	UpdatedAt       time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`

	Items []OrderItem `gorm:"-"`
}

// TableName sets the database table name.
func (Order) TableName() string { return "orders" }

// OrderItem is one bundle purchased for one recipient number, carrying a
// snapshot of the bundle at purchase time.
type OrderItem struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	OrderID        snowflake.ID `gorm:"not null;index"`
	BundleID       snowflake.ID `gorm:"not null;index"`
	BundleName     string       `gorm:"type:text;not null"`
	BundleCode     string       `gorm:"type:text;not null"`
	Provider       string       `gorm:"type:text;not null"`
	DataVolumeMB   int64        `gorm:"not null"`
	ValidityDays   int          `gorm:"not null"`
	RecipientPhone string       `gorm:"type:text;not null"`
	Quantity       int          `gorm:"not null"`
	UnitPrice      int64        `gorm:"not null"`
	TotalPrice     int64        `gorm:"not null"`
	Status         ItemStatus   `gorm:"type:text;not null"`
	ErrorNote      string       `gorm:"type:text"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (OrderItem) TableName() string { return "order_items" }

// OrderCounter backs human-readable sequential order numbers, one row per
// prefix+day scope.
type OrderCounter struct {
	Scope string `gorm:"primaryKey;type:text"`
	Value int64  `gorm:"not null"`
}

// TableName sets the database table name.
func (OrderCounter) TableName() string { return "order_counters" }

// Cancellable reports whether the lifecycle allows cancelling from s.
func (s Status) Cancellable() bool {
	switch s {
	case StatusDraft, StatusPending, StatusConfirmed:
		return true
	default:
		return false
	}
}

// Processable reports whether item processing may start from s.
func (s Status) Processable() bool {
	return s == StatusPending || s == StatusConfirmed
}
