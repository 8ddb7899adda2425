package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	agentdomain "github.com/datamartgh/datamart/internal/agent/domain"
	"github.com/datamartgh/datamart/internal/wallet/domain"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T) (domain.Repository, *gorm.DB, *snowflake.Node) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&agentdomain.Agent{}, &domain.WalletTransaction{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	node, err := snowflake.NewNode(8)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return Provide(), db, node
}

func TestAdjustBalanceReportsItsOwnResult(t *testing.T) {
	repo, db, node := newTestRepo(t)
	ctx := context.Background()
	agent := &agentdomain.Agent{
		ID:            node.Generate(),
		Name:          "Esi Asante",
		Phone:         "0241234567",
		Type:          agentdomain.TypeAgent,
		WalletBalance: 1000,
		Active:        true,
	}
	if err := db.Create(agent).Error; err != nil {
		t.Fatalf("seed agent: %v", err)
	}

	balance, ok, err := repo.AdjustBalance(ctx, db, agent.ID, 500, false)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	assert.True(t, ok)
	assert.Equal(t, int64(1500), balance)

	// An insufficient debit matches no row and leaves the balance alone.
	_, ok, err = repo.AdjustBalance(ctx, db, agent.ID, -2000, true)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	assert.False(t, ok)

	balance, ok, err = repo.AdjustBalance(ctx, db, agent.ID, -700, true)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	assert.True(t, ok)
	assert.Equal(t, int64(800), balance)
}

func TestAdjustBalanceNestsInsideCallerTransaction(t *testing.T) {
	repo, db, node := newTestRepo(t)
	ctx := context.Background()
	agent := &agentdomain.Agent{
		ID:            node.Generate(),
		Name:          "Esi Asante",
		Phone:         "0241234567",
		Type:          agentdomain.TypeAgent,
		WalletBalance: 0,
		Active:        true,
	}
	if err := db.Create(agent).Error; err != nil {
		t.Fatalf("seed agent: %v", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		balance, ok, err := repo.AdjustBalance(ctx, tx, agent.ID, 2500, false)
		if err != nil {
			return err
		}
		assert.True(t, ok)
		assert.Equal(t, int64(2500), balance)
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}

	var stored int64
	if err := db.Raw(`SELECT wallet_balance FROM agents WHERE id = ?`, agent.ID).Scan(&stored).Error; err != nil {
		t.Fatalf("read balance: %v", err)
	}
	assert.Equal(t, int64(2500), stored)
}
