// Package scheduler runs the periodic settlement jobs: order fulfillment for
// funded orders, daily commission generation, month close and archival, the
// expiry sweep, and outbox delivery. Every job is idempotent; re-running a
// period is safe.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/datamartgh/datamart/internal/clock"
	commissiondomain "github.com/datamartgh/datamart/internal/commission/domain"
	"github.com/datamartgh/datamart/internal/events"
	"github.com/datamartgh/datamart/internal/locks"
	obsmetrics "github.com/datamartgh/datamart/internal/observability/metrics"
	orderdomain "github.com/datamartgh/datamart/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Clock         clock.Clock
	OrderSvc      orderdomain.Service
	CommissionSvc commissiondomain.Service
	Dispatcher    *events.Dispatcher `optional:"true"`
	Locker        *locks.Locker      `optional:"true"`
	Config        Config             `optional:"true"`
}

type Scheduler struct {
	db            *gorm.DB
	log           *zap.Logger
	cfg           Config
	clock         clock.Clock
	orderSvc      orderdomain.Service
	commissionSvc commissiondomain.Service
	dispatcher    *events.Dispatcher
	locker        *locks.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.OrderSvc == nil || p.CommissionSvc == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:            p.DB,
		log:           p.Log.Named("scheduler"),
		cfg:           p.Config.withDefaults(),
		clock:         p.Clock,
		orderSvc:      p.OrderSvc,
		commissionSvc: p.CommissionSvc,
		dispatcher:    p.Dispatcher,
		locker:        p.Locker,
	}, nil
}

// runJob wraps one job with a timeout, a redis guard when configured, and
// run metrics. A timeout is soft: the partial work is committed and the next
// tick resumes where the sweep left off.
func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	if s.locker != nil {
		key := "datamart:scheduler:" + name
		token, ok, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
		if err != nil {
			s.log.Warn("job lock unavailable, skipping",
				zap.String("job", name),
				zap.Error(err),
			)
			return nil
		}
		if !ok {
			return nil
		}
		defer func() {
			if err := s.locker.Release(ctx, key, token); err != nil {
				s.log.Warn("job lock release failed",
					zap.String("job", name),
					zap.Error(err),
				)
			}
		}()
	}

	metrics := obsmetrics.Default()
	metrics.IncJobRun(name)
	err := fn(ctx)
	metrics.ObserveJobDuration(name, time.Since(start))
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	metrics.IncJobError(name)
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Timeout time.Duration
		Run     func(context.Context) error
	}{
		{"process_orders", s.cfg.JobTimeout, s.ProcessOrdersJob},
		{"generate_daily", 5 * time.Minute, s.GenerateDailyJob},
		{"finalize_month", 5 * time.Minute, s.FinalizeMonthJob},
		{"archive_month", 5 * time.Minute, s.ArchiveMonthJob},
		{"expire_sweep", s.cfg.JobTimeout, s.ExpireSweepJob},
		{"dispatch_events", s.cfg.JobTimeout, s.DispatchEventsJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, job.Timeout, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// ProcessOrdersJob fulfills funded orders that have not started processing.
func (s *Scheduler) ProcessOrdersJob(ctx context.Context) error {
	var jobErr error

	for {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}
		ids, err := s.claimProcessableOrders(ctx, s.cfg.OrderBatchSize)
		if err != nil {
			return errors.Join(jobErr, err)
		}
		if len(ids) == 0 {
			break
		}

		for _, id := range ids {
			if ctx.Err() != nil {
				return errors.Join(jobErr, ctx.Err())
			}
			if _, err := s.orderSvc.Process(ctx, id); err != nil {
				// Concurrent processing loses the conditional transition; that
				// is not a job failure.
				if errors.Is(err, orderdomain.ErrInvalidStatusTransition) {
					continue
				}
				jobErr = errors.Join(jobErr, err)
				s.log.Warn("order processing failed",
					zap.String("order_id", id.String()),
					zap.Error(err),
				)
			}
		}
		if len(ids) < s.cfg.OrderBatchSize {
			break
		}
	}
	return jobErr
}

// claimProcessableOrders snapshots a batch of paid pending/confirmed order
// ids. The snapshot is advisory: each order is claimed by the conditional
// pending/confirmed -> processing transition inside Process, and a concurrent
// instance losing that transition is skipped above.
func (s *Scheduler) claimProcessableOrders(ctx context.Context, limit int) ([]snowflake.ID, error) {
	queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var ids []snowflake.ID
	err := s.db.WithContext(queryCtx).Raw(
		`SELECT id
		 FROM orders
		 WHERE status IN (?, ?) AND payment_status = ?
		 ORDER BY created_at ASC, id ASC
		 LIMIT ?`,
		orderdomain.StatusPending,
		orderdomain.StatusConfirmed,
		orderdomain.PaymentPaid,
		limit,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// GenerateDailyJob computes yesterday's commission records once per day.
func (s *Scheduler) GenerateDailyJob(ctx context.Context) error {
	yesterday := s.clock.Now().AddDate(0, 0, -1)
	summary, err := s.commissionSvc.GenerateDaily(ctx, commissiondomain.GenerateRequest{Period: yesterday})
	if err != nil {
		if errors.Is(err, commissiondomain.ErrDuplicateGeneration) {
			return nil
		}
		return err
	}
	s.log.Info("daily commission generation",
		zap.Int("agents", summary.TotalAgents),
		zap.Int("created", summary.Created),
		zap.Int("errors", summary.Errors),
	)
	return nil
}

// FinalizeMonthJob closes the previous month once the calendar rolls over.
func (s *Scheduler) FinalizeMonthJob(ctx context.Context) error {
	previous := monthStart(s.clock.Now()).AddDate(0, -1, 0)
	summary, err := s.commissionSvc.FinalizeMonth(ctx, previous)
	if err != nil {
		return err
	}
	if summary.Finalized > 0 {
		s.log.Info("month finalization",
			zap.String("month", previous.Format("2006-01")),
			zap.Int("finalized", summary.Finalized),
		)
	}
	return nil
}

// ArchiveMonthJob snapshots the previous month's records into summaries.
func (s *Scheduler) ArchiveMonthJob(ctx context.Context) error {
	previous := monthStart(s.clock.Now()).AddDate(0, -1, 0)
	summary, err := s.commissionSvc.ArchiveMonth(ctx, previous)
	if err != nil {
		return err
	}
	if summary.Summaries > 0 {
		s.log.Info("month archival",
			zap.String("month", previous.Format("2006-01")),
			zap.Int("summaries", summary.Summaries),
		)
	}
	return nil
}

// ExpireSweepJob expires finalized commissions left unpaid past the grace
// window.
func (s *Scheduler) ExpireSweepJob(ctx context.Context) error {
	cutoff := monthStart(s.clock.Now()).AddDate(0, -s.cfg.ExpireAfterMonths, 0)
	_, err := s.commissionSvc.ExpireStale(ctx, cutoff)
	return err
}

// DispatchEventsJob drains the outbox.
func (s *Scheduler) DispatchEventsJob(ctx context.Context) error {
	if s.dispatcher == nil {
		return nil
	}
	return s.dispatcher.DispatchPending(ctx, s.cfg.DispatchBatchSize)
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
