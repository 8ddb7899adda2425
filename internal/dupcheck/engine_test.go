package dupcheck_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/datamartgh/datamart/internal/dupcheck"
	orderdomain "github.com/datamartgh/datamart/internal/order/domain"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"0241234567":       "0241234567",
		"+233 24 123 4567": "0241234567",
		"233241234567":     "0241234567",
		"241234567":        "0241234567",
		"024-123-4567":     "0241234567",
	}
	for input, want := range cases {
		assert.Equal(t, want, dupcheck.NormalizePhone(input), "input %q", input)
	}
}

func TestParseBulkRow(t *testing.T) {
	item, err := dupcheck.ParseBulkRow("0241234567,5GB")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	assert.Equal(t, "0241234567", item.Phone)
	assert.Equal(t, int64(5*1024), item.VolumeMB)

	item, err = dupcheck.ParseBulkRow("+233201112222, 500MB")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	assert.Equal(t, "0201112222", item.Phone)
	assert.Equal(t, int64(500), item.VolumeMB)

	_, err = dupcheck.ParseBulkRow("0241234567")
	assert.ErrorIs(t, err, dupcheck.ErrInvalidBulkRow)
	_, err = dupcheck.ParseBulkRow("0241234567,5TBx")
	assert.ErrorIs(t, err, dupcheck.ErrInvalidBulkRow)
}

func newTestEngine(t *testing.T) (*dupcheck.Engine, *gorm.DB, *snowflake.Node) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&orderdomain.Order{}, &orderdomain.OrderItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	node, err := snowflake.NewNode(3)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return dupcheck.NewEngine(dupcheck.Params{DB: db, Log: zap.NewNop()}), db, node
}

func seedOrder(t *testing.T, db *gorm.DB, node *snowflake.Node, agentID snowflake.ID, status orderdomain.Status, phone string, bundleID snowflake.ID, volumeMB int64, age time.Duration) {
	t.Helper()
	createdAt := time.Now().UTC().Add(-age)
	order := &orderdomain.Order{
		ID:              node.Generate(),
		OrderNumber:     "ORD-" + node.Generate().String(),
		Type:            orderdomain.TypeSingle,
		TenantID:        agentID,
		CreatedBy:       agentID,
		Status:          status,
		PaymentStatus:   orderdomain.PaymentPaid,
		ReceptionStatus: orderdomain.ReceptionNone,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	item := &orderdomain.OrderItem{
		ID:             node.Generate(),
		OrderID:        order.ID,
		BundleID:       bundleID,
		BundleName:     "Test Bundle",
		BundleCode:     "TB",
		Provider:       "MTN",
		DataVolumeMB:   volumeMB,
		RecipientPhone: phone,
		Quantity:       1,
		Status:         orderdomain.ItemPending,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
}

func TestCheckSingleBlocksRecentDuplicate(t *testing.T) {
	engine, db, node := newTestEngine(t)
	agentID := node.Generate()
	bundleID := node.Generate()
	seedOrder(t, db, node, agentID, orderdomain.StatusPending, "0241234567", bundleID, 1024, time.Minute)

	result := engine.CheckSingle(context.Background(), agentID, "+233241234567", bundleID, dupcheck.Policy{})
	assert.True(t, result.IsDuplicate)
	assert.False(t, result.CanProceed)
	assert.Len(t, result.Matches, 1)
	assert.Contains(t, result.Message, "force override")
}

func TestCheckSingleIgnoresOldAndForeignOrders(t *testing.T) {
	engine, db, node := newTestEngine(t)
	agentID := node.Generate()
	otherAgent := node.Generate()
	bundleID := node.Generate()

	// Outside the window.
	seedOrder(t, db, node, agentID, orderdomain.StatusPending, "0241234567", bundleID, 1024, 10*time.Minute)
	// Someone else's order inside the window.
	seedOrder(t, db, node, otherAgent, orderdomain.StatusPending, "0241234567", bundleID, 1024, time.Minute)
	// Cancelled orders never block.
	seedOrder(t, db, node, agentID, orderdomain.StatusCancelled, "0241234567", bundleID, 1024, time.Minute)

	result := engine.CheckSingle(context.Background(), agentID, "0241234567", bundleID, dupcheck.Policy{})
	assert.False(t, result.IsDuplicate)
	assert.True(t, result.CanProceed)
}

func TestCheckSingleForceOverrideSkipsCheck(t *testing.T) {
	engine, db, node := newTestEngine(t)
	agentID := node.Generate()
	bundleID := node.Generate()
	seedOrder(t, db, node, agentID, orderdomain.StatusPending, "0241234567", bundleID, 1024, time.Minute)

	result := engine.CheckSingle(context.Background(), agentID, "0241234567", bundleID, dupcheck.Policy{ForceOverride: true})
	assert.True(t, result.CanProceed)
	assert.False(t, result.IsDuplicate)
}

func TestCheckSingleFailsOpenOnQueryError(t *testing.T) {
	engine, db, node := newTestEngine(t)
	if err := db.Exec(`DROP TABLE order_items`).Error; err != nil {
		t.Fatalf("drop table: %v", err)
	}

	result := engine.CheckSingle(context.Background(), node.Generate(), "0241234567", node.Generate(), dupcheck.Policy{})
	assert.True(t, result.CanProceed)
	assert.False(t, result.IsDuplicate)
}

func TestCheckBulkPartitionsDuplicates(t *testing.T) {
	engine, db, node := newTestEngine(t)
	agentID := node.Generate()
	bundleID := node.Generate()
	seedOrder(t, db, node, agentID, orderdomain.StatusCompleted, "0241234567", bundleID, 5*1024, 2*time.Minute)

	items := []dupcheck.BulkItem{
		{Raw: "0241234567,5GB", Phone: "0241234567", VolumeMB: 5 * 1024},
		{Raw: "0209998888,5GB", Phone: "0209998888", VolumeMB: 5 * 1024},
		// Same phone but different volume is a distinct purchase.
		{Raw: "0241234567,1GB", Phone: "0241234567", VolumeMB: 1024},
	}
	result := engine.CheckBulk(context.Background(), agentID, items, dupcheck.Policy{})
	assert.True(t, result.IsDuplicate)
	assert.False(t, result.CanProceed)
	assert.Len(t, result.DuplicateItems, 1)
	assert.Len(t, result.SafeItems, 2)
	assert.Equal(t, "0241234567,5GB", result.DuplicateItems[0].Raw)
}
