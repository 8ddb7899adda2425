package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/datamartgh/datamart/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	if err := db.WithContext(ctx).Exec(
		`INSERT INTO orders (
			id, order_number, type, tenant_id, created_by, status, payment_status,
			reception_status, total, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.OrderNumber,
		order.Type,
		order.TenantID,
		order.CreatedBy,
		order.Status,
		order.PaymentStatus,
		order.ReceptionStatus,
		order.Total,
		order.CreatedAt,
		order.UpdatedAt,
	).Error; err != nil {
		return err
	}

	for i := range order.Items {
		item := &order.Items[i]
		if err := db.WithContext(ctx).Exec(
			`INSERT INTO order_items (
				id, order_id, bundle_id, bundle_name, bundle_code, provider,
				data_volume_mb, validity_days, recipient_phone, quantity,
				unit_price, total_price, status, error_note, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID,
			item.OrderID,
			item.BundleID,
			item.BundleName,
			item.BundleCode,
			item.Provider,
			item.DataVolumeMB,
			item.ValidityDays,
			item.RecipientPhone,
			item.Quantity,
			item.UnitPrice,
			item.TotalPrice,
			item.Status,
			item.ErrorNote,
			item.CreatedAt,
			item.UpdatedAt,
		).Error; err != nil {
			return err
		}
	}
	return nil
}

const orderColumns = `id, order_number, type, tenant_id, created_by, status, payment_status,
	reception_status, total, reported_at, resolved_at, created_at, updated_at`

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+` FROM orders WHERE id = ?`,
		id,
	).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	if err := r.loadItems(ctx, db, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repo) loadItems(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Raw(
		`SELECT id, order_id, bundle_id, bundle_name, bundle_code, provider,
		        data_volume_mb, validity_days, recipient_phone, quantity,
		        unit_price, total_price, status, error_note, created_at, updated_at
		 FROM order_items
		 WHERE order_id = ?
		 ORDER BY id ASC`,
		order.ID,
	).Scan(&order.Items).Error
}

func (r *repo) ListByAgent(ctx context.Context, db *gorm.DB, agentID snowflake.ID, limit int) ([]*domain.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	var orders []*domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+` FROM orders
		 WHERE created_by = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		agentID,
		limit,
	).Scan(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) ListDrafts(ctx context.Context, db *gorm.DB, agentID snowflake.ID) ([]*domain.Order, error) {
	var orders []*domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+` FROM orders
		 WHERE created_by = ? AND status = ?
		 ORDER BY created_at ASC, id ASC`,
		agentID,
		domain.StatusDraft,
	).Scan(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from []domain.Status, to domain.Status) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status IN ?`,
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

func (r *repo) SetPaymentStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.PaymentStatus) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders SET payment_status = ?, updated_at = ? WHERE id = ?`,
		status,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) SetItemStatus(ctx context.Context, db *gorm.DB, itemID snowflake.ID, status domain.ItemStatus, note string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE order_items SET status = ?, error_note = ?, updated_at = ? WHERE id = ?`,
		status,
		note,
		time.Now().UTC(),
		itemID,
	).Error
}

func (r *repo) CancelPendingItems(ctx context.Context, db *gorm.DB, orderID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE order_items SET status = ?, updated_at = ? WHERE order_id = ? AND status = ?`,
		domain.ItemCancelled,
		time.Now().UTC(),
		orderID,
		domain.ItemPending,
	).Error
}

func (r *repo) HardDelete(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (bool, error) {
	// The guarded order delete goes first; items are only removed once the
	// order row is gone, so a concurrent promotion cannot strand an order
	// without its items.
	result := db.WithContext(ctx).Exec(
		`DELETE FROM orders WHERE id = ? AND status = ?`, orderID, domain.StatusDraft,
	)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	if err := db.WithContext(ctx).Exec(
		`DELETE FROM order_items WHERE order_id = ?`, orderID,
	).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *repo) SetReception(ctx context.Context, db *gorm.DB, orderID snowflake.ID, status domain.ReceptionStatus, reportedAt, resolvedAt *time.Time) error {
	stmt := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET reception_status = ?,
		     reported_at = COALESCE(?, reported_at),
		     resolved_at = COALESCE(?, resolved_at),
		     updated_at = ?
		 WHERE id = ?`,
		status,
		reportedAt,
		resolvedAt,
		time.Now().UTC(),
		orderID,
	)
	return stmt.Error
}
