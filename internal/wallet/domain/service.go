package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// CreditRequest credits an agent's wallet.
type CreditRequest struct {
	AgentID     snowflake.ID
	Amount      int64
	Description string
	OrderID     *snowflake.ID
	ApprovedBy  *snowflake.ID
	Metadata    map[string]any
}

// DebitRequest debits an agent's wallet, failing when balance < Amount.
type DebitRequest struct {
	AgentID     snowflake.ID
	Amount      int64
	Description string
	OrderID     *snowflake.ID
	Metadata    map[string]any
}

// Service is the exclusive owner of spendable balances. Credit and Debit
// accept an optional handle so they can join a caller's unit of work; passing
// nil runs them against the base connection.
type Service interface {
	Credit(ctx context.Context, h *gorm.DB, req CreditRequest) (*WalletTransaction, error)
	Debit(ctx context.Context, h *gorm.DB, req DebitRequest) (*WalletTransaction, error)
	RequestTopUp(ctx context.Context, agentID snowflake.ID, amount int64, description string) (*WalletTransaction, error)
	ApproveTopUp(ctx context.Context, topUpID, approvedBy snowflake.ID) (*WalletTransaction, error)
	RejectTopUp(ctx context.Context, topUpID, approvedBy snowflake.ID) error
	History(ctx context.Context, agentID snowflake.ID, filter HistoryFilter) ([]*WalletTransaction, error)
}
