// Package migration creates the schema on startup so the service is usable
// out of the box for local and self-hosted deployments.
package migration

import (
	agentdomain "github.com/datamartgh/datamart/internal/agent/domain"
	catalogdomain "github.com/datamartgh/datamart/internal/catalog/domain"
	commissiondomain "github.com/datamartgh/datamart/internal/commission/domain"
	"github.com/datamartgh/datamart/internal/events"
	orderdomain "github.com/datamartgh/datamart/internal/order/domain"
	"github.com/datamartgh/datamart/internal/rates"
	walletdomain "github.com/datamartgh/datamart/internal/wallet/domain"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&agentdomain.Agent{},
		&catalogdomain.Bundle{},
		&catalogdomain.BundleTierPrice{},
		&orderdomain.Order{},
		&orderdomain.OrderItem{},
		&orderdomain.OrderCounter{},
		&walletdomain.WalletTransaction{},
		&commissiondomain.CommissionRecord{},
		&commissiondomain.CommissionMonthlySummary{},
		&rates.CommissionRate{},
		&events.OutboxEvent{},
	)
}

// SeedRates writes the default tier rates once; configured overrides survive
// restarts untouched.
func SeedRates(db *gorm.DB) error {
	for tier, bps := range rates.DefaultTable() {
		var count int64
		if err := db.Raw(
			`SELECT COUNT(1) FROM commission_rates WHERE tier = ?`,
			tier,
		).Scan(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if err := db.Exec(
			`INSERT INTO commission_rates (tier, rate_bps, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)`,
			tier,
			int64(bps),
		).Error; err != nil {
			return err
		}
	}
	return nil
}
