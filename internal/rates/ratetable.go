// Package rates resolves commission percentages per reseller tier. Rates are
// basis points so commission math stays in exact integer arithmetic.
package rates

import (
	"context"
	"time"

	agentdomain "github.com/datamartgh/datamart/internal/agent/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Bps is a commission rate in basis points (500 = 5%).
type Bps int64

// Apply computes the commission on a minor-unit revenue amount, rounding
// half-up to the pesewa.
func (b Bps) Apply(revenue int64) int64 {
	return (revenue*int64(b) + 5000) / 10000
}

// Table maps reseller tiers to rates. The zero value for a missing tier is
// 0 bps, which accrues nothing.
type Table map[agentdomain.Type]Bps

// DefaultTable is the hardcoded fallback applied when no configured rate
// exists for a tier.
func DefaultTable() Table {
	return Table{
		agentdomain.TypeAgent:      300,
		agentdomain.TypeSuperAgent: 500,
		agentdomain.TypeDealer:     700,
	}
}

// Store returns the current rate for a tier.
type Store interface {
	Rate(ctx context.Context, tier agentdomain.Type) (Bps, error)
}

// CommissionRate is a configured per-tier override.
type CommissionRate struct {
	Tier      agentdomain.Type `gorm:"primaryKey;type:text"`
	RateBps   int64            `gorm:"not null"`
	UpdatedAt time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CommissionRate) TableName() string { return "commission_rates" }

type gormStore struct {
	db       *gorm.DB
	log      *zap.Logger
	fallback Table
}

// NewStore reads configured rates with the default table as fallback.
func NewStore(db *gorm.DB, log *zap.Logger) Store {
	return &gormStore{
		db:       db,
		log:      log.Named("rates"),
		fallback: DefaultTable(),
	}
}

func (s *gormStore) Rate(ctx context.Context, tier agentdomain.Type) (Bps, error) {
	var row struct {
		RateBps int64
		Found   bool
	}
	err := s.db.WithContext(ctx).Raw(
		`SELECT rate_bps, true AS found FROM commission_rates WHERE tier = ?`,
		tier,
	).Scan(&row).Error
	if err != nil {
		return 0, err
	}
	if !row.Found {
		return s.fallback[tier], nil
	}
	return Bps(row.RateBps), nil
}

var Module = fx.Module("rates",
	fx.Provide(NewStore),
)
