package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Type is the closed set of reseller tiers. Operators are platform staff;
// their orders auto-confirm and they never accrue commission.
type Type string

const (
	TypeAgent      Type = "agent"
	TypeSuperAgent Type = "super_agent"
	TypeDealer     Type = "dealer"
	TypeOperator   Type = "operator"
)

// Business reports whether the tier earns commission on completed revenue.
func (t Type) Business() bool {
	switch t {
	case TypeAgent, TypeSuperAgent, TypeDealer:
		return true
	default:
		return false
	}
}

var (
	ErrAgentNotFound = errors.New("agent_not_found")
	ErrInvalidTier   = errors.New("invalid_agent_tier")
)

// Agent is a tenant-scoped business user who sells bundles and holds a
// prepaid wallet. WalletBalance is the single mutable balance; every change
// to it is paired with a WalletTransaction row.
type Agent struct {
	ID            snowflake.ID  `gorm:"primaryKey"`
	TenantID      *snowflake.ID `gorm:"index"`
	Name          string        `gorm:"type:text;not null"`
	Phone         string        `gorm:"type:text;not null"`
	Email         string        `gorm:"type:text"`
	Type          Type          `gorm:"type:text;not null"`
	WalletBalance int64         `gorm:"not null;default:0"`
	Active        bool          `gorm:"not null;default:true"`
	CreatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Agent) TableName() string { return "agents" }

// CommissionTenantID resolves which tenant a commission record is attributed
// to: the parent tenant when the agent has one, otherwise the agent itself.
func (a *Agent) CommissionTenantID() snowflake.ID {
	if a.TenantID != nil && *a.TenantID != 0 {
		return *a.TenantID
	}
	return a.ID
}

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Agent, error)
	CountActive(ctx context.Context, db *gorm.DB) (int64, error)
	ListActive(ctx context.Context, db *gorm.DB, offset, limit int) ([]*Agent, error)
}
