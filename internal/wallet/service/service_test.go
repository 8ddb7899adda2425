package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	agentdomain "github.com/datamartgh/datamart/internal/agent/domain"
	agentrepo "github.com/datamartgh/datamart/internal/agent/repository"
	"github.com/datamartgh/datamart/internal/uow"
	"github.com/datamartgh/datamart/internal/wallet/domain"
	walletrepo "github.com/datamartgh/datamart/internal/wallet/repository"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// seedNode is shared so back-to-back seeds within one millisecond still get
// distinct IDs from the sequence counter.
var seedNode = func() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}()

func newTestService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&agentdomain.Agent{}, &domain.WalletTransaction{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	svc := NewService(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		UOW:        uow.New(db, zap.NewNop()),
		AgentRepo:  agentrepo.Provide(),
		WalletRepo: walletrepo.Provide(),
	})
	return svc, db
}

func seedAgent(t *testing.T, db *gorm.DB, balance int64) *agentdomain.Agent {
	t.Helper()
	agent := &agentdomain.Agent{
		ID:            seedNode.Generate(),
		Name:          "Kofi Mensah",
		Phone:         "0241234567",
		Type:          agentdomain.TypeAgent,
		WalletBalance: balance,
		Active:        true,
	}
	if err := db.Create(agent).Error; err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	return agent
}

func walletBalance(t *testing.T, db *gorm.DB, agentID snowflake.ID) int64 {
	t.Helper()
	var balance int64
	if err := db.Raw(`SELECT wallet_balance FROM agents WHERE id = ?`, agentID).Scan(&balance).Error; err != nil {
		t.Fatalf("read balance: %v", err)
	}
	return balance
}

func TestCreditAndDebitKeepLedgerConsistent(t *testing.T) {
	svc, db := newTestService(t)
	agent := seedAgent(t, db, 0)
	ctx := context.Background()

	credit, err := svc.Credit(ctx, nil, domain.CreditRequest{
		AgentID:     agent.ID,
		Amount:      2000,
		Description: "Top-up",
	})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	assert.Equal(t, int64(2000), credit.BalanceAfter)

	debit, err := svc.Debit(ctx, nil, domain.DebitRequest{
		AgentID:     agent.ID,
		Amount:      500,
		Description: "Order ORD-1",
	})
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	assert.Equal(t, int64(1500), debit.BalanceAfter)
	assert.Equal(t, int64(1500), walletBalance(t, db, agent.ID))

	history, err := svc.History(ctx, agent.ID, domain.HistoryFilter{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	assert.Len(t, history, 2)
	// Newest first.
	assert.Equal(t, domain.TxTypeDebit, history[0].Type)
	assert.Equal(t, domain.TxTypeCredit, history[1].Type)
}

func TestDebitFailsClosedOnInsufficientBalance(t *testing.T) {
	svc, db := newTestService(t)
	agent := seedAgent(t, db, 1000)
	ctx := context.Background()

	_, err := svc.Debit(ctx, nil, domain.DebitRequest{
		AgentID: agent.ID,
		Amount:  1500,
	})
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	var insufficient *domain.InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected structured insufficiency error, got %T", err)
	}
	assert.Equal(t, int64(1500), insufficient.Required)
	assert.Equal(t, int64(1000), insufficient.Available)
	assert.Contains(t, insufficient.Error(), "GHS 15.00")
	assert.Contains(t, insufficient.Error(), "GHS 10.00")

	// Balance untouched, no ledger entry written.
	assert.Equal(t, int64(1000), walletBalance(t, db, agent.ID))
	history, err := svc.History(ctx, agent.ID, domain.HistoryFilter{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	assert.Empty(t, history)
}

func TestDebitRejectsNonPositiveAmounts(t *testing.T) {
	svc, db := newTestService(t)
	agent := seedAgent(t, db, 1000)

	_, err := svc.Debit(context.Background(), nil, domain.DebitRequest{AgentID: agent.ID, Amount: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = svc.Credit(context.Background(), nil, domain.CreditRequest{AgentID: agent.ID, Amount: -5})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestTopUpApprovalFlow(t *testing.T) {
	svc, db := newTestService(t)
	agent := seedAgent(t, db, 1000)
	operator := seedAgent(t, db, 0)
	ctx := context.Background()

	topUp, err := svc.RequestTopUp(ctx, agent.ID, 1000, "MoMo transfer")
	if err != nil {
		t.Fatalf("request topup: %v", err)
	}
	assert.Equal(t, domain.TxStatusPending, topUp.Status)
	// A pending request moves no money.
	assert.Equal(t, int64(1000), walletBalance(t, db, agent.ID))

	settled, err := svc.ApproveTopUp(ctx, topUp.ID, operator.ID)
	if err != nil {
		t.Fatalf("approve topup: %v", err)
	}
	assert.Equal(t, domain.TxStatusCompleted, settled.Status)
	assert.Equal(t, int64(2000), settled.BalanceAfter)
	assert.Equal(t, int64(2000), walletBalance(t, db, agent.ID))

	// A second approval must not double-credit.
	_, err = svc.ApproveTopUp(ctx, topUp.ID, operator.ID)
	assert.ErrorIs(t, err, domain.ErrTopUpNotPending)
	assert.Equal(t, int64(2000), walletBalance(t, db, agent.ID))
}

func TestRejectTopUpLeavesBalanceUntouched(t *testing.T) {
	svc, db := newTestService(t)
	agent := seedAgent(t, db, 500)
	operator := seedAgent(t, db, 0)
	ctx := context.Background()

	topUp, err := svc.RequestTopUp(ctx, agent.ID, 1000, "")
	if err != nil {
		t.Fatalf("request topup: %v", err)
	}
	if err := svc.RejectTopUp(ctx, topUp.ID, operator.ID); err != nil {
		t.Fatalf("reject topup: %v", err)
	}
	assert.Equal(t, int64(500), walletBalance(t, db, agent.ID))

	// Rejected requests cannot be approved afterwards.
	_, err = svc.ApproveTopUp(ctx, topUp.ID, operator.ID)
	assert.ErrorIs(t, err, domain.ErrTopUpNotPending)
}
