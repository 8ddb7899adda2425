package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/datamartgh/datamart/internal/commission/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const recordColumns = `id, agent_id, tenant_id, period_type, period_start, period_end,
	total_orders, total_revenue, rate_bps, amount, status, is_final,
	paid_at, paid_by, payment_reference, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.CommissionRecord) error {
	return db.WithContext(ctx).Create(record).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.CommissionRecord, error) {
	var record domain.CommissionRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+recordColumns+` FROM commission_records WHERE id = ?`,
		id,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) FindOpen(ctx context.Context, db *gorm.DB, agentID snowflake.ID, periodType domain.PeriodType, periodStart time.Time) (*domain.CommissionRecord, error) {
	var record domain.CommissionRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+recordColumns+`
		 FROM commission_records
		 WHERE agent_id = ? AND period_type = ? AND period_start = ?`,
		agentID,
		periodType,
		periodStart,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) Accrue(ctx context.Context, db *gorm.DB, id snowflake.ID, revenue, amount int64) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE commission_records
		 SET total_orders = total_orders + 1,
		     total_revenue = total_revenue + ?,
		     amount = amount + ?,
		     updated_at = ?
		 WHERE id = ? AND is_final = false AND status = ?`,
		revenue,
		amount,
		time.Now().UTC(),
		id,
		domain.StatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) CountForPeriod(ctx context.Context, db *gorm.DB, periodType domain.PeriodType, periodStart time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM commission_records
		 WHERE period_type = ? AND period_start = ?`,
		periodType,
		periodStart,
	).Scan(&count).Error
	return count, err
}

func (r *repo) DeleteForPeriod(ctx context.Context, db *gorm.DB, agentID snowflake.ID, periodType domain.PeriodType, periodStart time.Time) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM commission_records
		 WHERE agent_id = ? AND period_type = ? AND period_start = ? AND status = ?`,
		agentID,
		periodType,
		periodStart,
		domain.StatusPending,
	).Error
}

func (r *repo) CompletedRevenue(ctx context.Context, db *gorm.DB, agentID snowflake.ID, from, to time.Time) (int64, int64, error) {
	var row struct {
		Revenue int64
		Orders  int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(total), 0) AS revenue, COUNT(*) AS orders
		 FROM orders
		 WHERE created_by = ?
		   AND status IN ('completed', 'partially_completed')
		   AND updated_at >= ? AND updated_at < ?`,
		agentID,
		from,
		to,
	).Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Revenue, row.Orders, nil
}

func (r *repo) ListNonFinalDaily(ctx context.Context, db *gorm.DB, from, to time.Time) ([]*domain.CommissionRecord, error) {
	var records []*domain.CommissionRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+recordColumns+`
		 FROM commission_records
		 WHERE period_type = ? AND is_final = false
		   AND period_start >= ? AND period_start < ?
		 ORDER BY agent_id, period_start`,
		domain.PeriodDaily,
		from,
		to,
	).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) ListForMonth(ctx context.Context, db *gorm.DB, from, to time.Time) ([]*domain.CommissionRecord, error) {
	var records []*domain.CommissionRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+recordColumns+`
		 FROM commission_records
		 WHERE period_start >= ? AND period_start < ?
		 ORDER BY agent_id, period_type, period_start`,
		from,
		to,
	).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) MarkFinal(ctx context.Context, db *gorm.DB, ids []snowflake.ID) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`UPDATE commission_records SET is_final = true, updated_at = ? WHERE id IN ?`,
		time.Now().UTC(),
		ids,
	).Error
}

func (r *repo) Transition(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.Status) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE commission_records SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to,
		time.Now().UTC(),
		id,
		from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) SetPaymentDetails(ctx context.Context, db *gorm.DB, id snowflake.ID, paidAt time.Time, paidBy snowflake.ID, reference string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE commission_records
		 SET paid_at = ?, paid_by = ?, payment_reference = ?, updated_at = ?
		 WHERE id = ?`,
		paidAt,
		paidBy,
		reference,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) ExpirePending(ctx context.Context, db *gorm.DB, before time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE commission_records
		 SET status = ?, updated_at = ?
		 WHERE status = ? AND is_final = true AND period_end < ?`,
		domain.StatusExpired,
		time.Now().UTC(),
		domain.StatusPending,
		before,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) InsertSummary(ctx context.Context, db *gorm.DB, summary *domain.CommissionMonthlySummary) error {
	return db.WithContext(ctx).Create(summary).Error
}

func (r *repo) ListSummaries(ctx context.Context, db *gorm.DB, agentID snowflake.ID, limit int) ([]*domain.CommissionMonthlySummary, error) {
	if limit <= 0 {
		limit = 12
	}
	var summaries []*domain.CommissionMonthlySummary
	err := db.WithContext(ctx).
		Model(&domain.CommissionMonthlySummary{}).
		Where("agent_id = ?", agentID).
		Order("month desc").
		Limit(limit).
		Find(&summaries).Error
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

func (r *repo) ListByAgent(ctx context.Context, db *gorm.DB, agentID snowflake.ID, filter domain.ListFilter) ([]*domain.CommissionRecord, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.CommissionRecord{}).
		Where("agent_id = ?", agentID)
	if filter.PeriodType != "" {
		stmt = stmt.Where("period_type = ?", filter.PeriodType)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var records []*domain.CommissionRecord
	err := stmt.
		Order("period_start desc, id desc").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
