package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	agentdomain "github.com/datamartgh/datamart/internal/agent/domain"
	"github.com/datamartgh/datamart/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Bundle, error) {
	var bundle domain.Bundle
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider, name, code, price, data_volume_mb, validity_days, active, created_at, updated_at
		 FROM bundles WHERE id = ? AND active = true`,
		id,
	).Scan(&bundle).Error
	if err != nil {
		return nil, err
	}
	if bundle.ID == 0 {
		return nil, nil
	}
	return &bundle, nil
}

func (r *repo) FindByVolume(ctx context.Context, db *gorm.DB, provider string, volumeMB int64) (*domain.Bundle, error) {
	var bundle domain.Bundle
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider, name, code, price, data_volume_mb, validity_days, active, created_at, updated_at
		 FROM bundles
		 WHERE provider = ? AND data_volume_mb = ? AND active = true
		 ORDER BY id ASC
		 LIMIT 1`,
		provider,
		volumeMB,
	).Scan(&bundle).Error
	if err != nil {
		return nil, err
	}
	if bundle.ID == 0 {
		return nil, nil
	}
	return &bundle, nil
}

func (r *repo) UnitPriceFor(ctx context.Context, db *gorm.DB, bundle *domain.Bundle, tier agentdomain.Type) (int64, error) {
	var row struct {
		UnitPrice int64
		Found     bool
	}
	err := db.WithContext(ctx).Raw(
		`SELECT unit_price, true AS found
		 FROM bundle_tier_prices
		 WHERE bundle_id = ? AND tier = ?`,
		bundle.ID,
		tier,
	).Scan(&row).Error
	if err != nil {
		return 0, err
	}
	if !row.Found {
		return bundle.Price, nil
	}
	return row.UnitPrice, nil
}
