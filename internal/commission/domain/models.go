package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// PeriodType distinguishes daily accrual records from monthly roll-ups.
type PeriodType string

const (
	PeriodDaily   PeriodType = "daily"
	PeriodMonthly PeriodType = "monthly"
)

// Status is the commission record state machine. pending → paid/rejected/
// expired are the only transitions; all three targets are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

var (
	ErrRecordNotFound      = errors.New("commission_record_not_found")
	ErrAlreadyPaid         = errors.New("commission_already_paid")
	ErrInvalidTransition   = errors.New("invalid_commission_transition")
	ErrDuplicateGeneration = errors.New("commission_records_already_generated")
	ErrRecordFinal         = errors.New("commission_record_final")
)

// CommissionRecord is one accrual unit for one reseller over one period.
// While IsFinal is false, real-time accrual increments the money fields in
// place; once final, money fields are frozen and only pay/reject metadata
// may change.
type CommissionRecord struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	AgentID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_commission_period,priority:1"`
	TenantID    snowflake.ID `gorm:"not null;index"`
	PeriodType  PeriodType   `gorm:"type:text;not null;uniqueIndex:ux_commission_period,priority:2"`
	PeriodStart time.Time    `gorm:"not null;uniqueIndex:ux_commission_period,priority:3"`
	PeriodEnd   time.Time    `gorm:"not null"`
	TotalOrders int64        `gorm:"not null"`
	TotalRevenue int64       `gorm:"not null"`
	RateBps     int64        `gorm:"not null"`
	Amount      int64        `gorm:"not null"`
	Status      Status       `gorm:"type:text;not null;default:pending"`
	IsFinal     bool         `gorm:"not null;default:false"`
	PaidAt      *time.Time   `gorm:""`
	PaidBy      *snowflake.ID `gorm:""`
	PaymentReference string   `gorm:"type:text"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CommissionRecord) TableName() string { return "commission_records" }

// CommissionMonthlySummary is the denormalized archival roll-up of one
// agent's month, kept so reporting never re-scans raw records.
type CommissionMonthlySummary struct {
	ID            snowflake.ID      `gorm:"primaryKey"`
	AgentID       snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_summary_month,priority:1"`
	TenantID      snowflake.ID      `gorm:"not null;index"`
	Month         time.Time         `gorm:"not null;uniqueIndex:ux_summary_month,priority:2"`
	TotalEarned   int64             `gorm:"not null"`
	TotalPaid     int64             `gorm:"not null"`
	TotalPending  int64             `gorm:"not null"`
	TotalRejected int64             `gorm:"not null"`
	TotalExpired  int64             `gorm:"not null"`
	RecordIDs     datatypes.JSONMap `gorm:""`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CommissionMonthlySummary) TableName() string { return "commission_monthly_summaries" }
