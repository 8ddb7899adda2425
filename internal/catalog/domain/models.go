// Package domain holds the read-side catalog models. Catalog CRUD lives
// outside this core; order creation only reads bundles and tier prices.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	agentdomain "github.com/datamartgh/datamart/internal/agent/domain"
	"gorm.io/gorm"
)

var ErrBundleNotFound = errors.New("bundle_not_found")

// Bundle is a priced data/airtime product tied to a telecom provider.
// Price is the base unit price in pesewas; tier prices override it.
type Bundle struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	Provider     string       `gorm:"type:text;not null;index"`
	Name         string       `gorm:"type:text;not null"`
	Code         string       `gorm:"type:text;not null;uniqueIndex"`
	Price        int64        `gorm:"not null"`
	DataVolumeMB int64        `gorm:"not null"`
	ValidityDays int          `gorm:"not null"`
	Active       bool         `gorm:"not null;default:true"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Bundle) TableName() string { return "bundles" }

// BundleTierPrice is a per-tier unit price override.
type BundleTierPrice struct {
	ID        snowflake.ID     `gorm:"primaryKey"`
	BundleID  snowflake.ID     `gorm:"not null;index;uniqueIndex:ux_bundle_tier,priority:1"`
	Tier      agentdomain.Type `gorm:"type:text;not null;uniqueIndex:ux_bundle_tier,priority:2"`
	UnitPrice int64            `gorm:"not null"`
	CreatedAt time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (BundleTierPrice) TableName() string { return "bundle_tier_prices" }

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Bundle, error)
	// FindByVolume resolves the bundle a bulk row refers to by provider and
	// declared data volume.
	FindByVolume(ctx context.Context, db *gorm.DB, provider string, volumeMB int64) (*Bundle, error)
	// UnitPriceFor resolves the tier price for a bundle, falling back to the
	// bundle's base price when the tier has no override.
	UnitPriceFor(ctx context.Context, db *gorm.DB, bundle *Bundle, tier agentdomain.Type) (int64, error)
}
