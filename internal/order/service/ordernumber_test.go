package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/datamartgh/datamart/internal/order/domain"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func newCounterDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.OrderCounter{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestNextOrderNumberIsSequentialPerScope(t *testing.T) {
	db := newCounterDB(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 10, 9, 30, 0, 0, time.UTC)

	first, err := nextOrderNumber(ctx, db, domain.TypeSingle, now)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	assert.Equal(t, "ORD-260810-0001", first)

	second, err := nextOrderNumber(ctx, db, domain.TypeSingle, now)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	assert.Equal(t, "ORD-260810-0002", second)

	// Each prefix+day scope counts independently.
	bulk, err := nextOrderNumber(ctx, db, domain.TypeBulk, now)
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	assert.Equal(t, "BLK-260810-0001", bulk)

	shop, err := nextOrderNumber(ctx, db, domain.TypeStorefront, now)
	if err != nil {
		t.Fatalf("storefront: %v", err)
	}
	assert.Equal(t, "SHP-260810-0001", shop)

	nextDay, err := nextOrderNumber(ctx, db, domain.TypeSingle, now.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("next day: %v", err)
	}
	assert.Equal(t, "ORD-260811-0001", nextDay)
}

func TestFallbackOrderNumberKeepsScope(t *testing.T) {
	now := time.Date(2026, 8, 10, 9, 30, 0, 123_000_000, time.UTC)
	number := fallbackOrderNumber(domain.TypeBulk, now)
	assert.True(t, strings.HasPrefix(number, "BLK-260810-"))
	assert.NotEqual(t, fallbackOrderNumber(domain.TypeSingle, now), number)
}
