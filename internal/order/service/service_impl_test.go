package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	agentdomain "github.com/datamartgh/datamart/internal/agent/domain"
	agentrepo "github.com/datamartgh/datamart/internal/agent/repository"
	catalogdomain "github.com/datamartgh/datamart/internal/catalog/domain"
	catalogrepo "github.com/datamartgh/datamart/internal/catalog/repository"
	"github.com/datamartgh/datamart/internal/clock"
	commissiondomain "github.com/datamartgh/datamart/internal/commission/domain"
	"github.com/datamartgh/datamart/internal/config"
	"github.com/datamartgh/datamart/internal/dupcheck"
	"github.com/datamartgh/datamart/internal/fulfillment"
	"github.com/datamartgh/datamart/internal/order/domain"
	orderrepo "github.com/datamartgh/datamart/internal/order/repository"
	"github.com/datamartgh/datamart/internal/uow"
	walletdomain "github.com/datamartgh/datamart/internal/wallet/domain"
	walletrepo "github.com/datamartgh/datamart/internal/wallet/repository"
	walletservice "github.com/datamartgh/datamart/internal/wallet/service"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubFulfiller struct {
	failPhones map[string]bool
	calls      int
}

func (f *stubFulfiller) Fulfill(_ context.Context, req fulfillment.Request) error {
	f.calls++
	if f.failPhones[req.RecipientPhone] {
		return errors.New("provider rejected delivery")
	}
	return nil
}

type accrual struct {
	agentID snowflake.ID
	orderID snowflake.ID
	total   int64
}

// stubCommission records accruals; batch operations are out of scope here.
type stubCommission struct {
	accruals []accrual
}

func (s *stubCommission) AccrueOrder(_ context.Context, agentID, orderID snowflake.ID, orderTotal int64, _ time.Time) error {
	s.accruals = append(s.accruals, accrual{agentID: agentID, orderID: orderID, total: orderTotal})
	return nil
}

func (s *stubCommission) GenerateDaily(context.Context, commissiondomain.GenerateRequest) (*commissiondomain.BatchSummary, error) {
	return &commissiondomain.BatchSummary{}, nil
}

func (s *stubCommission) GenerateMonthly(context.Context, commissiondomain.GenerateRequest) (*commissiondomain.BatchSummary, error) {
	return &commissiondomain.BatchSummary{}, nil
}

func (s *stubCommission) FinalizeMonth(context.Context, time.Time) (*commissiondomain.FinalizeSummary, error) {
	return &commissiondomain.FinalizeSummary{}, nil
}

func (s *stubCommission) ArchiveMonth(context.Context, time.Time) (*commissiondomain.ArchiveSummary, error) {
	return &commissiondomain.ArchiveSummary{}, nil
}

func (s *stubCommission) Pay(context.Context, commissiondomain.PayRequest) (*commissiondomain.CommissionRecord, error) {
	return nil, nil
}

func (s *stubCommission) Reject(context.Context, snowflake.ID, snowflake.ID, string) error {
	return nil
}

func (s *stubCommission) ExpireStale(context.Context, time.Time) (int64, error) { return 0, nil }

func (s *stubCommission) ListByAgent(context.Context, snowflake.ID, commissiondomain.ListFilter) ([]*commissiondomain.CommissionRecord, error) {
	return nil, nil
}

func (s *stubCommission) ListSummaries(context.Context, snowflake.ID, int) ([]*commissiondomain.CommissionMonthlySummary, error) {
	return nil, nil
}

type harness struct {
	svc        domain.Service
	db         *gorm.DB
	node       *snowflake.Node
	clk        *clock.FakeClock
	fulfiller  *stubFulfiller
	commission *stubCommission
	walletSvc  walletdomain.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&agentdomain.Agent{},
		&catalogdomain.Bundle{},
		&catalogdomain.BundleTierPrice{},
		&domain.Order{},
		&domain.OrderItem{},
		&domain.OrderCounter{},
		&walletdomain.WalletTransaction{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	node, err := snowflake.NewNode(5)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	log := zap.NewNop()
	units := uow.New(db, log)
	agents := agentrepo.Provide()
	wallet := walletservice.NewService(walletservice.Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		UOW:        units,
		AgentRepo:  agents,
		WalletRepo: walletrepo.Provide(),
	})

	h := &harness{
		db:         db,
		node:       node,
		clk:        clock.NewFakeClock(time.Now().UTC()),
		fulfiller:  &stubFulfiller{failPhones: map[string]bool{}},
		commission: &stubCommission{},
		walletSvc:  wallet,
	}
	h.svc = NewService(Params{
		DB:            db,
		Log:           log,
		GenID:         node,
		Clock:         h.clk,
		Config:        config.Config{DuplicateWindow: 5 * time.Minute},
		UOW:           units,
		OrderRepo:     orderrepo.Provide(),
		AgentRepo:     agents,
		CatalogRepo:   catalogrepo.Provide(),
		WalletSvc:     wallet,
		DupEngine:     dupcheck.NewEngine(dupcheck.Params{DB: db, Log: log}),
		Fulfiller:     h.fulfiller,
		CommissionSvc: h.commission,
	})
	return h
}

func (h *harness) seedAgent(t *testing.T, tier agentdomain.Type, balance int64) *agentdomain.Agent {
	t.Helper()
	agent := &agentdomain.Agent{
		ID:            h.node.Generate(),
		Name:          "Ama Serwaa",
		Phone:         "0244000000",
		Type:          tier,
		WalletBalance: balance,
		Active:        true,
	}
	if err := h.db.Create(agent).Error; err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	return agent
}

func (h *harness) seedBundle(t *testing.T, provider, code string, volumeMB, price int64) *catalogdomain.Bundle {
	t.Helper()
	bundle := &catalogdomain.Bundle{
		ID:           h.node.Generate(),
		Provider:     provider,
		Name:         code,
		Code:         code,
		Price:        price,
		DataVolumeMB: volumeMB,
		ValidityDays: 30,
		Active:       true,
	}
	if err := h.db.Create(bundle).Error; err != nil {
		t.Fatalf("seed bundle: %v", err)
	}
	return bundle
}

func (h *harness) balance(t *testing.T, agentID snowflake.ID) int64 {
	t.Helper()
	var balance int64
	if err := h.db.Raw(`SELECT wallet_balance FROM agents WHERE id = ?`, agentID).Scan(&balance).Error; err != nil {
		t.Fatalf("read balance: %v", err)
	}
	return balance
}

func TestCreateSingleFundsAndPromotesOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	agent := h.seedAgent(t, agentdomain.TypeAgent, 5000)
	bundle := h.seedBundle(t, "MTN", "MTN-2GB", 2048, 2000)

	order, err := h.svc.CreateSingle(ctx, domain.CreateSingleRequest{
		AgentID:       agent.ID,
		CustomerPhone: "0241234567",
		BundleID:      bundle.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	assert.Equal(t, domain.StatusPending, order.Status)
	assert.Equal(t, domain.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, int64(2000), order.Total)
	assert.True(t, strings.HasPrefix(order.OrderNumber, "ORD-"))
	assert.True(t, strings.HasSuffix(order.OrderNumber, "-0001"))
	assert.Equal(t, int64(3000), h.balance(t, agent.ID))

	if len(order.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(order.Items))
	}
	assert.Equal(t, "0241234567", order.Items[0].RecipientPhone)

	history, err := h.walletSvc.History(ctx, agent.ID, walletdomain.HistoryFilter{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(history))
	}
	assert.Equal(t, walletdomain.TxTypeDebit, history[0].Type)
	assert.Equal(t, order.ID, *history[0].OrderID)
}

func TestCreateSingleParksDraftWhenWalletCannotCover(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	agent := h.seedAgent(t, agentdomain.TypeAgent, 1000)
	bundle := h.seedBundle(t, "MTN", "MTN-1GB", 1024, 1500)

	order, err := h.svc.CreateSingle(ctx, domain.CreateSingleRequest{
		AgentID:       agent.ID,
		CustomerPhone: "0241234567",
		BundleID:      bundle.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	assert.Equal(t, domain.StatusDraft, order.Status)
	assert.Equal(t, domain.PaymentPending, order.PaymentStatus)
	// The wallet is untouched until the draft is funded.
	assert.Equal(t, int64(1000), h.balance(t, agent.ID))

	if _, err := h.walletSvc.Credit(ctx, nil, walletdomain.CreditRequest{
		AgentID:     agent.ID,
		Amount:      2000,
		Description: "Top-up",
	}); err != nil {
		t.Fatalf("credit: %v", err)
	}

	result, err := h.svc.ProcessDrafts(ctx, agent.ID)
	if err != nil {
		t.Fatalf("process drafts: %v", err)
	}
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, int64(1500), result.Total)
	assert.Equal(t, int64(1500), h.balance(t, agent.ID))

	promoted, err := h.svc.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	assert.Equal(t, domain.StatusPending, promoted.Status)
	assert.Equal(t, domain.PaymentPaid, promoted.PaymentStatus)
}

func TestProcessDraftsRejectsPartialCoverage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	agent := h.seedAgent(t, agentdomain.TypeAgent, 100)
	bundle := h.seedBundle(t, "MTN", "MTN-1GB", 1024, 1500)

	for _, phone := range []string{"0241111111", "0242222222"} {
		order, err := h.svc.CreateSingle(ctx, domain.CreateSingleRequest{
			AgentID:       agent.ID,
			CustomerPhone: phone,
			BundleID:      bundle.ID,
		})
		if err != nil {
			t.Fatalf("create %s: %v", phone, err)
		}
		assert.Equal(t, domain.StatusDraft, order.Status)
	}

	if _, err := h.walletSvc.Credit(ctx, nil, walletdomain.CreditRequest{
		AgentID:     agent.ID,
		Amount:      2000,
		Description: "Top-up",
	}); err != nil {
		t.Fatalf("credit: %v", err)
	}

	// 2100 available cannot cover the 3000 outstanding; nothing is promoted.
	_, err := h.svc.ProcessDrafts(ctx, agent.ID)
	if !errors.Is(err, walletdomain.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	var insufficient *walletdomain.InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientBalanceError, got %T", err)
	}
	assert.Equal(t, int64(3000), insufficient.Required)
	assert.Equal(t, int64(2100), insufficient.Available)
	assert.Equal(t, int64(2100), h.balance(t, agent.ID))

	orders, err := h.svc.ListByAgent(ctx, agent.ID, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, order := range orders {
		assert.Equal(t, domain.StatusDraft, order.Status)
	}
}

func TestCreateSingleBlocksRecentDuplicate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	agent := h.seedAgent(t, agentdomain.TypeAgent, 10000)
	bundle := h.seedBundle(t, "MTN", "MTN-1GB", 1024, 1500)

	req := domain.CreateSingleRequest{
		AgentID:       agent.ID,
		CustomerPhone: "0241234567",
		BundleID:      bundle.ID,
	}
	if _, err := h.svc.CreateSingle(ctx, req); err != nil {
		t.Fatalf("first create: %v", err)
	}

	_, err := h.svc.CreateSingle(ctx, req)
	if !errors.Is(err, domain.ErrDuplicateOrder) {
		t.Fatalf("expected duplicate order error, got %v", err)
	}
	var dup *domain.DuplicateOrderError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateOrderError, got %T", err)
	}
	assert.True(t, dup.Result.IsDuplicate)
	assert.NotEmpty(t, dup.Result.Matches)

	req.ForceOverride = true
	order, err := h.svc.CreateSingle(ctx, req)
	if err != nil {
		t.Fatalf("forced create: %v", err)
	}
	assert.Equal(t, domain.StatusPending, order.Status)
}

func TestOperatorOrdersAutoConfirm(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	operator := h.seedAgent(t, agentdomain.TypeOperator, 5000)
	bundle := h.seedBundle(t, "Telecel", "TCL-1GB", 1024, 1200)

	order, err := h.svc.CreateSingle(ctx, domain.CreateSingleRequest{
		AgentID:       operator.ID,
		CustomerPhone: "0201234567",
		BundleID:      bundle.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	assert.Equal(t, domain.StatusConfirmed, order.Status)
	assert.Equal(t, domain.PaymentPaid, order.PaymentStatus)
}

func TestCreateBulkResolvesRowsByVolume(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	agent := h.seedAgent(t, agentdomain.TypeDealer, 10000)
	h.seedBundle(t, "MTN", "MTN-1GB", 1024, 500)
	h.seedBundle(t, "MTN", "MTN-2GB", 2048, 900)

	order, err := h.svc.CreateBulk(ctx, domain.CreateBulkRequest{
		AgentID:  agent.ID,
		Provider: "MTN",
		Items:    []string{"0241111111,1GB", "0552222222,2GB"},
	})
	if err != nil {
		t.Fatalf("create bulk: %v", err)
	}
	assert.Equal(t, domain.TypeBulk, order.Type)
	assert.True(t, strings.HasPrefix(order.OrderNumber, "BLK-"))
	assert.Equal(t, int64(1400), order.Total)
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}
	assert.Equal(t, "0241111111", order.Items[0].RecipientPhone)
	assert.Equal(t, int64(8600), h.balance(t, agent.ID))

	_, err = h.svc.CreateBulk(ctx, domain.CreateBulkRequest{
		AgentID:  agent.ID,
		Provider: "MTN",
		Items:    []string{"0243333333,7GB"},
	})
	if !errors.Is(err, catalogdomain.ErrBundleNotFound) {
		t.Fatalf("expected bundle not found, got %v", err)
	}

	_, err = h.svc.CreateBulk(ctx, domain.CreateBulkRequest{
		AgentID:  agent.ID,
		Provider: "MTN",
		Items:    []string{"not-a-row"},
	})
	if !errors.Is(err, dupcheck.ErrInvalidBulkRow) {
		t.Fatalf("expected invalid bulk row, got %v", err)
	}
}

func TestProcessCompletesOrderAndAccrues(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	agent := h.seedAgent(t, agentdomain.TypeSuperAgent, 5000)
	bundle := h.seedBundle(t, "MTN", "MTN-1GB", 1024, 1500)

	created, err := h.svc.CreateSingle(ctx, domain.CreateSingleRequest{
		AgentID:       agent.ID,
		CustomerPhone: "0241234567",
		BundleID:      bundle.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	order, err := h.svc.Process(ctx, created.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	assert.Equal(t, domain.StatusCompleted, order.Status)
	assert.Equal(t, domain.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, 1, h.fulfiller.calls)

	if len(h.commission.accruals) != 1 {
		t.Fatalf("expected 1 accrual, got %d", len(h.commission.accruals))
	}
	assert.Equal(t, agent.ID, h.commission.accruals[0].agentID)
	assert.Equal(t, created.ID, h.commission.accruals[0].orderID)
	assert.Equal(t, int64(1500), h.commission.accruals[0].total)

	// Completed orders cannot be processed again.
	_, err = h.svc.Process(ctx, created.ID)
	if !errors.Is(err, domain.ErrInvalidStatusTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestProcessRefundsFullyFailedOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	agent := h.seedAgent(t, agentdomain.TypeAgent, 5000)
	bundle := h.seedBundle(t, "MTN", "MTN-1GB", 1024, 1500)

	created, err := h.svc.CreateSingle(ctx, domain.CreateSingleRequest{
		AgentID:       agent.ID,
		CustomerPhone: "0241234567",
		BundleID:      bundle.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	assert.Equal(t, int64(3500), h.balance(t, agent.ID))
	h.fulfiller.failPhones["0241234567"] = true

	order, err := h.svc.Process(ctx, created.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	assert.Equal(t, domain.StatusFailed, order.Status)
	assert.Equal(t, domain.PaymentRefunded, order.PaymentStatus)
	assert.Equal(t, int64(5000), h.balance(t, agent.ID))
	assert.Empty(t, h.commission.accruals)

	reloaded, err := h.svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	assert.Equal(t, domain.ItemFailed, reloaded.Items[0].Status)
	assert.NotEmpty(t, reloaded.Items[0].ErrorNote)
}

func TestProcessPartialFailureKeepsPayment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	agent := h.seedAgent(t, agentdomain.TypeAgent, 10000)
	h.seedBundle(t, "MTN", "MTN-1GB", 1024, 500)

	created, err := h.svc.CreateBulk(ctx, domain.CreateBulkRequest{
		AgentID:  agent.ID,
		Provider: "MTN",
		Items:    []string{"0241111111,1GB", "0552222222,1GB"},
	})
	if err != nil {
		t.Fatalf("create bulk: %v", err)
	}
	h.fulfiller.failPhones["0552222222"] = true

	order, err := h.svc.Process(ctx, created.ID)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	assert.Equal(t, domain.StatusPartiallyCompleted, order.Status)
	// Partial failures keep the payment; only a total failure refunds.
	assert.Equal(t, domain.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, int64(9000), h.balance(t, agent.ID))
	assert.Empty(t, h.commission.accruals)
}

func TestCancelDraftHardDeletes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	agent := h.seedAgent(t, agentdomain.TypeAgent, 100)
	bundle := h.seedBundle(t, "MTN", "MTN-1GB", 1024, 1500)

	draft, err := h.svc.CreateSingle(ctx, domain.CreateSingleRequest{
		AgentID:       agent.ID,
		CustomerPhone: "0241234567",
		BundleID:      bundle.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	assert.Equal(t, domain.StatusDraft, draft.Status)

	if err := h.svc.Cancel(ctx, draft.ID, agent.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	_, err = h.svc.Get(ctx, draft.ID)
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected order gone, got %v", err)
	}
}

func TestHardDeleteLeavesPromotedOrdersIntact(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	agent := h.seedAgent(t, agentdomain.TypeAgent, 5000)
	bundle := h.seedBundle(t, "MTN", "MTN-1GB", 1024, 1500)

	created, err := h.svc.CreateSingle(ctx, domain.CreateSingleRequest{
		AgentID:       agent.ID,
		CustomerPhone: "0241234567",
		BundleID:      bundle.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	assert.Equal(t, domain.StatusPending, created.Status)

	// A delete racing a promotion must not touch a non-draft order or its items.
	deleted, err := orderrepo.Provide().HardDelete(ctx, h.db, created.ID)
	if err != nil {
		t.Fatalf("hard delete: %v", err)
	}
	assert.False(t, deleted)

	reloaded, err := h.svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	assert.Equal(t, domain.StatusPending, reloaded.Status)
	if len(reloaded.Items) != 1 {
		t.Fatalf("expected item to survive, got %d", len(reloaded.Items))
	}
}

func TestCancelPaidOrderRefunds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	agent := h.seedAgent(t, agentdomain.TypeAgent, 5000)
	bundle := h.seedBundle(t, "MTN", "MTN-1GB", 1024, 1500)

	created, err := h.svc.CreateSingle(ctx, domain.CreateSingleRequest{
		AgentID:       agent.ID,
		CustomerPhone: "0241234567",
		BundleID:      bundle.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	stranger := h.seedAgent(t, agentdomain.TypeAgent, 0)
	if err := h.svc.Cancel(ctx, created.ID, stranger.ID); !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("expected not owner, got %v", err)
	}

	if err := h.svc.Cancel(ctx, created.ID, agent.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	order, err := h.svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	assert.Equal(t, domain.StatusCancelled, order.Status)
	assert.Equal(t, domain.PaymentRefunded, order.PaymentStatus)
	assert.Equal(t, domain.ItemCancelled, order.Items[0].Status)
	assert.Equal(t, int64(5000), h.balance(t, agent.ID))

	// Cancelled is terminal.
	if err := h.svc.Cancel(ctx, created.ID, agent.ID); !errors.Is(err, domain.ErrInvalidStatusTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestStorefrontPaymentFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	agent := h.seedAgent(t, agentdomain.TypeAgent, 5000)
	bundle := h.seedBundle(t, "AirtelTigo", "ATL-1GB", 1024, 1100)

	created, err := h.svc.CreateStorefront(ctx, domain.CreateStorefrontRequest{
		AgentID:       agent.ID,
		CustomerPhone: "0261234567",
		BundleID:      bundle.ID,
	})
	if err != nil {
		t.Fatalf("create storefront: %v", err)
	}
	assert.Equal(t, domain.StatusPendingPayment, created.Status)
	assert.True(t, strings.HasPrefix(created.OrderNumber, "SHP-"))
	// No money moves until the agent verifies the customer's payment.
	assert.Equal(t, int64(5000), h.balance(t, agent.ID))

	order, err := h.svc.VerifyStorefrontPayment(ctx, created.ID, agent.ID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.Equal(t, domain.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, int64(3900), h.balance(t, agent.ID))

	_, err = h.svc.VerifyStorefrontPayment(ctx, created.ID, agent.ID)
	if !errors.Is(err, domain.ErrStorefrontNotAwaiting) {
		t.Fatalf("expected not awaiting, got %v", err)
	}
}

func TestDeliveryIssueLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	agent := h.seedAgent(t, agentdomain.TypeAgent, 5000)
	bundle := h.seedBundle(t, "MTN", "MTN-1GB", 1024, 1500)

	created, err := h.svc.CreateSingle(ctx, domain.CreateSingleRequest{
		AgentID:       agent.ID,
		CustomerPhone: "0241234567",
		BundleID:      bundle.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.svc.Process(ctx, created.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	if err := h.svc.ReportDeliveryIssue(ctx, created.ID, agent.ID); err != nil {
		t.Fatalf("report: %v", err)
	}
	order, err := h.svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	assert.Equal(t, domain.ReceptionNotReceived, order.ReceptionStatus)
	assert.NotNil(t, order.ReportedAt)

	if err := h.svc.StartDeliveryCheck(ctx, created.ID); err != nil {
		t.Fatalf("start check: %v", err)
	}
	if err := h.svc.ResolveDeliveryIssue(ctx, created.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	order, err = h.svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	assert.Equal(t, domain.ReceptionResolved, order.ReceptionStatus)
	assert.NotNil(t, order.ResolvedAt)
}

func TestReportDeliveryIssueWindowCloses(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	agent := h.seedAgent(t, agentdomain.TypeAgent, 5000)
	bundle := h.seedBundle(t, "MTN", "MTN-1GB", 1024, 1500)

	created, err := h.svc.CreateSingle(ctx, domain.CreateSingleRequest{
		AgentID:       agent.ID,
		CustomerPhone: "0241234567",
		BundleID:      bundle.ID,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := h.svc.Process(ctx, created.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	h.clk.Advance(3 * time.Hour)
	err = h.svc.ReportDeliveryIssue(ctx, created.ID, agent.ID)
	if !errors.Is(err, domain.ErrReportWindowClosed) {
		t.Fatalf("expected report window closed, got %v", err)
	}
}
