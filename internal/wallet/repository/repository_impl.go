package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/datamartgh/datamart/internal/wallet/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) AdjustBalance(ctx context.Context, db *gorm.DB, agentID snowflake.ID, delta int64, requireSufficient bool) (int64, bool, error) {
	now := time.Now().UTC()

	var (
		balance int64
		updated bool
	)
	// The update and the balance read share one transaction; the row lock
	// taken by the update is held until commit, so the read cannot observe a
	// concurrent mutation. When db is already a transaction this nests as a
	// savepoint.
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var result *gorm.DB
		if requireSufficient {
			result = tx.Exec(
				`UPDATE agents
				 SET wallet_balance = wallet_balance + ?, updated_at = ?
				 WHERE id = ? AND wallet_balance >= ?`,
				delta,
				now,
				agentID,
				-delta,
			)
		} else {
			result = tx.Exec(
				`UPDATE agents
				 SET wallet_balance = wallet_balance + ?, updated_at = ?
				 WHERE id = ?`,
				delta,
				now,
				agentID,
			)
		}
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		updated = true

		return tx.Raw(
			`SELECT wallet_balance FROM agents WHERE id = ?`,
			agentID,
		).Scan(&balance).Error
	})
	if err != nil {
		return 0, false, err
	}
	if !updated {
		return 0, false, nil
	}
	return balance, true, nil
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, entry *domain.WalletTransaction) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) FindTransaction(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.WalletTransaction, error) {
	var entry domain.WalletTransaction
	err := db.WithContext(ctx).Raw(
		`SELECT id, agent_id, type, amount, balance_after, order_id, approved_by,
		        description, status, metadata, created_at
		 FROM wallet_transactions WHERE id = ?`,
		id,
	).Scan(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.ID == 0 {
		return nil, nil
	}
	return &entry, nil
}

func (r *repo) SettleTopUp(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.TxStatus, approvedBy snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE wallet_transactions
		 SET status = ?, approved_by = ?
		 WHERE id = ? AND status = ?`,
		status,
		approvedBy,
		id,
		domain.TxStatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) SetBalanceAfter(ctx context.Context, db *gorm.DB, id snowflake.ID, balanceAfter int64) error {
	return db.WithContext(ctx).Exec(
		`UPDATE wallet_transactions SET balance_after = ? WHERE id = ?`,
		balanceAfter,
		id,
	).Error
}

func (r *repo) History(ctx context.Context, db *gorm.DB, agentID snowflake.ID, filter domain.HistoryFilter) ([]*domain.WalletTransaction, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.WalletTransaction{}).
		Where("agent_id = ?", agentID)
	if filter.Type != "" {
		stmt = stmt.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Before != nil {
		stmt = stmt.Where("created_at < ?", *filter.Before)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var entries []*domain.WalletTransaction
	err := stmt.
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
