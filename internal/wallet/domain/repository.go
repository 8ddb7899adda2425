package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// HistoryFilter narrows transaction history reads.
type HistoryFilter struct {
	Type   TxType
	Status TxStatus
	Before *time.Time
	Limit  int
}

type Repository interface {
	// AdjustBalance applies delta to the agent's wallet in one atomic
	// statement. When requireSufficient is set the update only matches while
	// wallet_balance >= -delta, so a concurrent debit can never pass the
	// sufficiency check against a stale balance. Returns the new balance and
	// whether a row was updated.
	AdjustBalance(ctx context.Context, db *gorm.DB, agentID snowflake.ID, delta int64, requireSufficient bool) (int64, bool, error)
	InsertTransaction(ctx context.Context, db *gorm.DB, entry *WalletTransaction) error
	FindTransaction(ctx context.Context, db *gorm.DB, id snowflake.ID) (*WalletTransaction, error)
	// SettleTopUp transitions a pending top-up row in one conditional update;
	// ok is false when the row was not pending anymore. The conditional flip
	// claims the top-up before any money moves, so a concurrent approval can
	// never credit twice.
	SettleTopUp(ctx context.Context, db *gorm.DB, id snowflake.ID, status TxStatus, approvedBy snowflake.ID) (bool, error)
	SetBalanceAfter(ctx context.Context, db *gorm.DB, id snowflake.ID, balanceAfter int64) error
	History(ctx context.Context, db *gorm.DB, agentID snowflake.ID, filter HistoryFilter) ([]*WalletTransaction, error)
}
