package service

import (
	"context"
	"fmt"
	"time"

	"github.com/datamartgh/datamart/internal/order/domain"
	"github.com/datamartgh/datamart/pkg/db"
	"gorm.io/gorm"
)

// numberAttempts bounds uniqueness-collision retries before falling back to
// a timestamp-suffixed number.
const numberAttempts = 3

func numberPrefix(t domain.Type) string {
	switch t {
	case domain.TypeBulk:
		return "BLK"
	case domain.TypeStorefront:
		return "SHP"
	default:
		return "ORD"
	}
}

// nextOrderNumber draws the next sequential number for the order's
// prefix+day scope. The counter increment is a single conditional statement,
// so concurrent creators each observe a distinct value.
func nextOrderNumber(ctx context.Context, tx *gorm.DB, orderType domain.Type, now time.Time) (string, error) {
	scope := fmt.Sprintf("%s-%s", numberPrefix(orderType), now.Format("060102"))

	result := tx.WithContext(ctx).Exec(
		`UPDATE order_counters SET value = value + 1 WHERE scope = ?`,
		scope,
	)
	if result.Error != nil {
		return "", result.Error
	}
	if result.RowsAffected == 0 {
		err := tx.WithContext(ctx).Exec(
			`INSERT INTO order_counters (scope, value) VALUES (?, 1)`,
			scope,
		).Error
		if err != nil && !db.IsDuplicateKeyErr(err) {
			return "", err
		}
		if err != nil {
			// Lost the insert race; the row exists now.
			if err := tx.WithContext(ctx).Exec(
				`UPDATE order_counters SET value = value + 1 WHERE scope = ?`,
				scope,
			).Error; err != nil {
				return "", err
			}
		}
	}

	var value int64
	if err := tx.WithContext(ctx).Raw(
		`SELECT value FROM order_counters WHERE scope = ?`,
		scope,
	).Scan(&value).Error; err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%04d", scope, value), nil
}

// fallbackOrderNumber is the last resort after repeated collisions.
func fallbackOrderNumber(orderType domain.Type, now time.Time) string {
	return fmt.Sprintf("%s-%s-%d", numberPrefix(orderType), now.Format("060102"), now.UnixMilli()%1000000)
}
