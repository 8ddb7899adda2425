package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// CreateSingleRequest creates one order for one recipient.
type CreateSingleRequest struct {
	AgentID       snowflake.ID
	CustomerPhone string
	BundleID      snowflake.ID
	Quantity      int
	ForceOverride bool
}

// CreateBulkRequest creates one bulk order from "phone,volumeUNIT" rows, each
// resolved against the provider's catalog.
type CreateBulkRequest struct {
	AgentID       snowflake.ID
	Provider      string
	Items         []string
	ForceOverride bool
}

// CreateStorefrontRequest creates a storefront order that waits in
// pending_payment until the agent verifies the customer's manual payment.
type CreateStorefrontRequest struct {
	AgentID       snowflake.ID
	CustomerPhone string
	BundleID      snowflake.ID
	Quantity      int
}

// DraftResult summarizes a process-drafts run.
type DraftResult struct {
	Processed int
	Total     int64
	Orders    []*Order
}

type Service interface {
	CreateSingle(ctx context.Context, req CreateSingleRequest) (*Order, error)
	CreateBulk(ctx context.Context, req CreateBulkRequest) (*Order, error)
	CreateStorefront(ctx context.Context, req CreateStorefrontRequest) (*Order, error)
	// VerifyStorefrontPayment moves a pending_payment order to pending/paid,
	// debiting the verifying agent's wallet.
	VerifyStorefrontPayment(ctx context.Context, orderID, agentID snowflake.ID) (*Order, error)
	// Process fulfills every pending item, recomputes the order status from
	// item outcomes, refunds fully failed paid orders, and triggers real-time
	// commission accrual on completion.
	Process(ctx context.Context, orderID snowflake.ID) (*Order, error)
	Cancel(ctx context.Context, orderID, actorID snowflake.ID) error
	ReportDeliveryIssue(ctx context.Context, orderID, agentID snowflake.ID) error
	StartDeliveryCheck(ctx context.Context, orderID snowflake.ID) error
	ResolveDeliveryIssue(ctx context.Context, orderID snowflake.ID) error
	// ProcessDrafts promotes an agent's draft orders once the wallet covers
	// the full outstanding draft cost; it never promotes a partial subset.
	ProcessDrafts(ctx context.Context, agentID snowflake.ID) (*DraftResult, error)
	Get(ctx context.Context, orderID snowflake.ID) (*Order, error)
	ListByAgent(ctx context.Context, agentID snowflake.ID, limit int) ([]*Order, error)
}
