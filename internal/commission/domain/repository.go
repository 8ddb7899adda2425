package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *CommissionRecord) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*CommissionRecord, error)
	FindOpen(ctx context.Context, db *gorm.DB, agentID snowflake.ID, periodType PeriodType, periodStart time.Time) (*CommissionRecord, error)
	// Accrue atomically adds one order's revenue and commission to a
	// non-final record; ok is false when the record was finalized meanwhile.
	Accrue(ctx context.Context, db *gorm.DB, id snowflake.ID, revenue, amount int64) (bool, error)
	CountForPeriod(ctx context.Context, db *gorm.DB, periodType PeriodType, periodStart time.Time) (int64, error)
	DeleteForPeriod(ctx context.Context, db *gorm.DB, agentID snowflake.ID, periodType PeriodType, periodStart time.Time) error
	// CompletedRevenue sums completed order totals and counts for the agent
	// in [from, to).
	CompletedRevenue(ctx context.Context, db *gorm.DB, agentID snowflake.ID, from, to time.Time) (int64, int64, error)
	ListNonFinalDaily(ctx context.Context, db *gorm.DB, from, to time.Time) ([]*CommissionRecord, error)
	ListForMonth(ctx context.Context, db *gorm.DB, from, to time.Time) ([]*CommissionRecord, error)
	MarkFinal(ctx context.Context, db *gorm.DB, ids []snowflake.ID) error
	// Transition flips pending records to a terminal status conditionally.
	Transition(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status) (bool, error)
	SetPaymentDetails(ctx context.Context, db *gorm.DB, id snowflake.ID, paidAt time.Time, paidBy snowflake.ID, reference string) error
	ExpirePending(ctx context.Context, db *gorm.DB, before time.Time) (int64, error)
	InsertSummary(ctx context.Context, db *gorm.DB, summary *CommissionMonthlySummary) error
	ListSummaries(ctx context.Context, db *gorm.DB, agentID snowflake.ID, limit int) ([]*CommissionMonthlySummary, error)
	ListByAgent(ctx context.Context, db *gorm.DB, agentID snowflake.ID, filter ListFilter) ([]*CommissionRecord, error)
}
