package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/datamartgh/datamart/pkg/money"
	"gorm.io/datatypes"
)

// TxType distinguishes the two directions money can move.
type TxType string

const (
	TxTypeCredit TxType = "credit"
	TxTypeDebit  TxType = "debit"
)

// TxStatus tracks top-up requests. Regular ledger entries are written
// completed; only a top-up request starts pending.
type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusCompleted TxStatus = "completed"
	TxStatusRejected  TxStatus = "rejected"
)

var (
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrTopUpNotFound       = errors.New("topup_not_found")
	ErrTopUpNotPending     = errors.New("topup_not_pending")
)

// InsufficientBalanceError carries the amounts needed for user-facing
// display. errors.Is(err, ErrInsufficientBalance) matches it.
type InsufficientBalanceError struct {
	Required  int64
	Available int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient wallet balance: required %s, available %s",
		money.FormatGHS(e.Required), money.FormatGHS(e.Available))
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// WalletTransaction is an immutable ledger entry. BalanceAfter snapshots the
// wallet balance at write time for audit and dispute resolution. The sum of
// all entries for an agent, applied in creation order, equals the agent's
// current balance.
type WalletTransaction struct {
	ID           snowflake.ID      `gorm:"primaryKey"`
	AgentID      snowflake.ID      `gorm:"not null;index"`
	Type         TxType            `gorm:"type:text;not null"`
	Amount       int64             `gorm:"not null"`
	BalanceAfter int64             `gorm:"not null"`
	OrderID      *snowflake.ID     `gorm:"index"`
	ApprovedBy   *snowflake.ID     `gorm:""`
	Description  string            `gorm:"type:text"`
	Status       TxStatus          `gorm:"type:text;not null;default:completed"`
	Metadata     datatypes.JSONMap `gorm:""`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
}

// TableName sets the database table name.
func (WalletTransaction) TableName() string { return "wallet_transactions" }
