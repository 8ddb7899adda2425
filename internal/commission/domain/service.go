package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Progress reports batch generation advancement to an optional callback.
type Progress struct {
	Processed    int
	Total        int
	Percentage   float64
	Batch        int
	TotalBatches int
}

// GenerateRequest drives one batch generation run. Period is any instant
// inside the target period (day or month). Force deletes and recomputes
// records that already exist for the period.
type GenerateRequest struct {
	Period     time.Time
	Force      bool
	OnProgress func(Progress)
}

// AgentResult is the per-agent outcome of a batch run.
type AgentResult struct {
	AgentID snowflake.ID
	Outcome string
	Amount  int64
	Err     string
}

const (
	OutcomeCreated      = "created"
	OutcomeUpdated      = "updated"
	OutcomeExists       = "exists"
	OutcomeNoCommission = "no_commission"
	OutcomeError        = "error"
)

// BatchSummary summarizes a batch generation run.
type BatchSummary struct {
	TotalAgents  int
	Created      int
	Updated      int
	Exists       int
	NoCommission int
	Errors       int
	SuccessRate  float64
	Results      []AgentResult
}

// FinalizeSummary summarizes a month-close run.
type FinalizeSummary struct {
	Agents    int
	Finalized int
	Skipped   int
}

// ArchiveSummary summarizes an archival run.
type ArchiveSummary struct {
	Agents    int
	Summaries int
}

// PayRequest pays one finalized or pending record into the agent's wallet.
type PayRequest struct {
	RecordID         snowflake.ID
	PaidBy           snowflake.ID
	PaymentReference string
}

// ListFilter narrows commission record queries.
type ListFilter struct {
	PeriodType PeriodType
	Status     Status
	Limit      int
}

type Service interface {
	// AccrueOrder applies one completed order to the current month's
	// non-final record for the creator, creating the record on first use.
	AccrueOrder(ctx context.Context, agentID, orderID snowflake.ID, orderTotal int64, completedAt time.Time) error
	GenerateDaily(ctx context.Context, req GenerateRequest) (*BatchSummary, error)
	GenerateMonthly(ctx context.Context, req GenerateRequest) (*BatchSummary, error)
	// FinalizeMonth rolls every non-final daily record of the month into one
	// final monthly record per agent and freezes the sources.
	FinalizeMonth(ctx context.Context, month time.Time) (*FinalizeSummary, error)
	// ArchiveMonth snapshots the month's records into
	// CommissionMonthlySummary rows for reporting.
	ArchiveMonth(ctx context.Context, month time.Time) (*ArchiveSummary, error)
	Pay(ctx context.Context, req PayRequest) (*CommissionRecord, error)
	Reject(ctx context.Context, recordID, actorID snowflake.ID, reason string) error
	// ExpireStale marks stale pending finalized records expired; the monthly
	// reset sweep is its only caller.
	ExpireStale(ctx context.Context, before time.Time) (int64, error)
	ListByAgent(ctx context.Context, agentID snowflake.ID, filter ListFilter) ([]*CommissionRecord, error)
	// ListSummaries reads the archived monthly roll-ups, newest month first.
	ListSummaries(ctx context.Context, agentID snowflake.ID, limit int) ([]*CommissionMonthlySummary, error)
}
