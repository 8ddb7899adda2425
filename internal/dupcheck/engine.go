// Package dupcheck guards against accidental double-submission of orders
// without blocking legitimate repeat purchases. The check is a heuristic over
// the requester's own recent order history; it is deliberately non-critical
// and fails open on internal errors.
package dupcheck

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	obsmetrics "github.com/datamartgh/datamart/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Match describes one prior order that collides with the submission.
type Match struct {
	OrderNumber string
	Phone       string
	CreatedAt   time.Time
	AgeMinutes  int
}

// Result is the structured outcome of a duplicate check.
type Result struct {
	IsDuplicate bool
	CanProceed  bool
	Message     string
	Matches     []Match

	// Bulk checks partition the submission.
	DuplicateItems []BulkItem
	SafeItems      []BulkItem
}

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

// Engine inspects recent order history directly; it owns no state of its own.
type Engine struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewEngine(p Params) *Engine {
	return &Engine{db: p.DB, log: p.Log.Named("dupcheck")}
}

type recentItem struct {
	OrderNumber    string
	CreatedAt      time.Time
	RecipientPhone string
	BundleID       snowflake.ID
	DataVolumeMB   int64
}

func (e *Engine) recentItems(ctx context.Context, agentID snowflake.ID, since time.Time) ([]recentItem, error) {
	var rows []recentItem
	err := e.db.WithContext(ctx).Raw(
		`SELECT o.order_number, o.created_at, i.recipient_phone, i.bundle_id, i.data_volume_mb
		 FROM orders o
		 JOIN order_items i ON i.order_id = o.id
		 WHERE o.created_by = ?
		   AND o.created_at >= ?
		   AND o.status NOT IN ('cancelled', 'failed')`,
		agentID,
		since,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CheckSingle matches on (normalized phone, bundle identity) within the
// policy window. Internal failures fail open: blocking commerce on a
// heuristic is worse than letting one duplicate through.
func (e *Engine) CheckSingle(ctx context.Context, agentID snowflake.ID, phone string, bundleID snowflake.ID, policy Policy) *Result {
	if policy.ForceOverride {
		return &Result{CanProceed: true}
	}
	policy = policy.withDefaults()

	normalized := NormalizePhone(phone)
	now := time.Now().UTC()
	rows, err := e.recentItems(ctx, agentID, now.Add(-policy.Window))
	if err != nil {
		e.log.Warn("duplicate check failed, allowing order",
			zap.String("agent_id", agentID.String()),
			zap.Error(err),
		)
		return &Result{CanProceed: true}
	}

	var matches []Match
	for _, row := range rows {
		if NormalizePhone(row.RecipientPhone) == normalized && row.BundleID == bundleID {
			matches = append(matches, newMatch(row, normalized, now))
		}
	}
	if len(matches) == 0 {
		return &Result{CanProceed: true}
	}

	obsmetrics.Default().IncDuplicateBlocked()
	return &Result{
		IsDuplicate: true,
		CanProceed:  false,
		Matches:     matches,
		Message:     describeMatches(matches),
	}
}

// CheckBulk matches each parsed row on (normalized phone, declared volume)
// and partitions the submission into duplicate and safe items.
func (e *Engine) CheckBulk(ctx context.Context, agentID snowflake.ID, items []BulkItem, policy Policy) *Result {
	if policy.ForceOverride {
		return &Result{CanProceed: true, SafeItems: items}
	}
	policy = policy.withDefaults()

	now := time.Now().UTC()
	rows, err := e.recentItems(ctx, agentID, now.Add(-policy.Window))
	if err != nil {
		e.log.Warn("bulk duplicate check failed, allowing order",
			zap.String("agent_id", agentID.String()),
			zap.Error(err),
		)
		return &Result{CanProceed: true, SafeItems: items}
	}

	var (
		matches    []Match
		duplicates []BulkItem
		safe       []BulkItem
	)
	for _, item := range items {
		found := false
		for _, row := range rows {
			if NormalizePhone(row.RecipientPhone) == item.Phone && row.DataVolumeMB == item.VolumeMB {
				matches = append(matches, newMatch(row, item.Phone, now))
				found = true
				break
			}
		}
		if found {
			duplicates = append(duplicates, item)
		} else {
			safe = append(safe, item)
		}
	}
	if len(duplicates) == 0 {
		return &Result{CanProceed: true, SafeItems: safe}
	}

	obsmetrics.Default().IncDuplicateBlocked()
	return &Result{
		IsDuplicate:    true,
		CanProceed:     false,
		Matches:        matches,
		Message:        describeMatches(matches),
		DuplicateItems: duplicates,
		SafeItems:      safe,
	}
}

func newMatch(row recentItem, phone string, now time.Time) Match {
	age := int(now.Sub(row.CreatedAt).Minutes())
	if age < 0 {
		age = 0
	}
	return Match{
		OrderNumber: row.OrderNumber,
		Phone:       phone,
		CreatedAt:   row.CreatedAt,
		AgeMinutes:  age,
	}
}

func describeMatches(matches []Match) string {
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, fmt.Sprintf("order %s for %s placed %d minute(s) ago",
			m.OrderNumber, m.Phone, m.AgeMinutes))
	}
	return "Possible duplicate submission: " + strings.Join(parts, "; ") +
		". Resubmit with force override to proceed."
}

var Module = fx.Module("dupcheck",
	fx.Provide(NewEngine),
)
