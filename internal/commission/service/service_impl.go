package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	agentdomain "github.com/datamartgh/datamart/internal/agent/domain"
	"github.com/datamartgh/datamart/internal/clock"
	"github.com/datamartgh/datamart/internal/commission/domain"
	"github.com/datamartgh/datamart/internal/config"
	"github.com/datamartgh/datamart/internal/events"
	obsmetrics "github.com/datamartgh/datamart/internal/observability/metrics"
	"github.com/datamartgh/datamart/internal/rates"
	"github.com/datamartgh/datamart/internal/uow"
	walletdomain "github.com/datamartgh/datamart/internal/wallet/domain"
	pkgdb "github.com/datamartgh/datamart/pkg/db"
	"github.com/datamartgh/datamart/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Config    config.Config
	UOW       uow.UnitOfWork
	Repo      domain.Repository
	AgentRepo agentdomain.Repository
	Rates     rates.Store
	WalletSvc walletdomain.Service
	Outbox    *events.Outbox `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	uow        uow.UnitOfWork
	repo       domain.Repository
	agentRepo  agentdomain.Repository
	rates      rates.Store
	walletSvc  walletdomain.Service
	outbox     *events.Outbox
	batchSize  int
	batchDelay time.Duration
}

func NewService(p Params) domain.Service {
	batchSize := p.Config.CommissionBatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("commission.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		uow:        p.UOW,
		repo:       p.Repo,
		agentRepo:  p.AgentRepo,
		rates:      p.Rates,
		walletSvc:  p.WalletSvc,
		outbox:     p.Outbox,
		batchSize:  batchSize,
		batchDelay: p.Config.CommissionBatchDelay,
	}
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// AccrueOrder adds one completed order to the creator's open monthly record.
// The record is created lazily on first accrual; an insert race resolves by
// accruing onto whichever record won. Accrual onto a finalized record is
// skipped silently since the batch recompute owns frozen periods.
func (s *Service) AccrueOrder(ctx context.Context, agentID, orderID snowflake.ID, orderTotal int64, completedAt time.Time) error {
	agent, err := s.agentRepo.FindByID(ctx, s.db, agentID)
	if err != nil {
		return err
	}
	if agent == nil {
		return agentdomain.ErrAgentNotFound
	}
	if !agent.Type.Business() {
		return nil
	}

	rate, err := s.rates.Rate(ctx, agent.Type)
	if err != nil {
		return err
	}
	amount := rate.Apply(orderTotal)

	periodStart := monthStart(completedAt)
	periodEnd := periodStart.AddDate(0, 1, 0)

	record, err := s.repo.FindOpen(ctx, s.db, agentID, domain.PeriodMonthly, periodStart)
	if err != nil {
		return err
	}
	if record == nil {
		now := s.clock.Now()
		record = &domain.CommissionRecord{
			ID:           s.genID.Generate(),
			AgentID:      agentID,
			TenantID:     agent.CommissionTenantID(),
			PeriodType:   domain.PeriodMonthly,
			PeriodStart:  periodStart,
			PeriodEnd:    periodEnd,
			TotalOrders:  1,
			TotalRevenue: orderTotal,
			RateBps:      int64(rate),
			Amount:       amount,
			Status:       domain.StatusPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		err = s.repo.Insert(ctx, s.db, record)
		if err == nil {
			obsmetrics.Default().IncCommissionAccrual()
			return nil
		}
		if !pkgdb.IsDuplicateKeyErr(err) {
			return err
		}
		record, err = s.repo.FindOpen(ctx, s.db, agentID, domain.PeriodMonthly, periodStart)
		if err != nil {
			return err
		}
		if record == nil {
			return domain.ErrRecordNotFound
		}
	}

	ok, err := s.repo.Accrue(ctx, s.db, record.ID, orderTotal, amount)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Warn("accrual skipped, record already finalized",
			zap.String("agent_id", agentID.String()),
			zap.String("order_id", orderID.String()),
			zap.Time("period_start", periodStart),
		)
		return nil
	}
	obsmetrics.Default().IncCommissionAccrual()
	return nil
}

func (s *Service) GenerateDaily(ctx context.Context, req domain.GenerateRequest) (*domain.BatchSummary, error) {
	start := dayStart(req.Period)
	return s.generate(ctx, domain.PeriodDaily, start, start.AddDate(0, 0, 1), req)
}

func (s *Service) GenerateMonthly(ctx context.Context, req domain.GenerateRequest) (*domain.BatchSummary, error) {
	start := monthStart(req.Period)
	return s.generate(ctx, domain.PeriodMonthly, start, start.AddDate(0, 1, 0), req)
}

// generate recomputes one period's records for every active business agent,
// in fixed-size batches with a pause between batches so a large reseller base
// cannot monopolize the database.
func (s *Service) generate(ctx context.Context, periodType domain.PeriodType, periodStart, periodEnd time.Time, req domain.GenerateRequest) (*domain.BatchSummary, error) {
	if !req.Force {
		count, err := s.repo.CountForPeriod(ctx, s.db, periodType, periodStart)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, domain.ErrDuplicateGeneration
		}
	}

	total, err := s.agentRepo.CountActive(ctx, s.db)
	if err != nil {
		return nil, err
	}

	summary := &domain.BatchSummary{Results: make([]domain.AgentResult, 0, total)}
	totalBatches := int((total + int64(s.batchSize) - 1) / int64(s.batchSize))

	processed := 0
	for batch := 0; batch < totalBatches; batch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		agents, err := s.agentRepo.ListActive(ctx, s.db, batch*s.batchSize, s.batchSize)
		if err != nil {
			return nil, err
		}
		if len(agents) == 0 {
			break
		}

		for _, agent := range agents {
			result := s.generateForAgent(ctx, agent, periodType, periodStart, periodEnd, req.Force)
			summary.Results = append(summary.Results, result)
			switch result.Outcome {
			case domain.OutcomeCreated:
				summary.Created++
			case domain.OutcomeUpdated:
				summary.Updated++
			case domain.OutcomeExists:
				summary.Exists++
			case domain.OutcomeNoCommission:
				summary.NoCommission++
			case domain.OutcomeError:
				summary.Errors++
			}
			processed++
		}

		if req.OnProgress != nil {
			req.OnProgress(domain.Progress{
				Processed:    processed,
				Total:        int(total),
				Percentage:   float64(processed) / float64(total) * 100,
				Batch:        batch + 1,
				TotalBatches: totalBatches,
			})
		}
		if batch+1 < totalBatches && s.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.batchDelay):
			}
		}
	}

	summary.TotalAgents = processed
	if processed > 0 {
		summary.SuccessRate = float64(processed-summary.Errors) / float64(processed) * 100
	}
	s.log.Info("commission generation finished",
		zap.String("period_type", string(periodType)),
		zap.Time("period_start", periodStart),
		zap.Int("agents", summary.TotalAgents),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("errors", summary.Errors),
	)
	return summary, nil
}

func (s *Service) generateForAgent(ctx context.Context, agent *agentdomain.Agent, periodType domain.PeriodType, periodStart, periodEnd time.Time, force bool) domain.AgentResult {
	result := domain.AgentResult{AgentID: agent.ID}

	existing, err := s.repo.FindOpen(ctx, s.db, agent.ID, periodType, periodStart)
	if err != nil {
		result.Outcome = domain.OutcomeError
		result.Err = err.Error()
		return result
	}
	if existing != nil {
		if existing.IsFinal || !force {
			result.Outcome = domain.OutcomeExists
			result.Amount = existing.Amount
			return result
		}
	}

	revenue, orders, err := s.repo.CompletedRevenue(ctx, s.db, agent.ID, periodStart, periodEnd)
	if err != nil {
		result.Outcome = domain.OutcomeError
		result.Err = err.Error()
		return result
	}
	if revenue == 0 {
		result.Outcome = domain.OutcomeNoCommission
		return result
	}

	rate, err := s.rates.Rate(ctx, agent.Type)
	if err != nil {
		result.Outcome = domain.OutcomeError
		result.Err = err.Error()
		return result
	}
	amount := rate.Apply(revenue)
	if amount == 0 {
		result.Outcome = domain.OutcomeNoCommission
		return result
	}

	err = s.uow.Run(ctx, func(tx *gorm.DB) error {
		if existing != nil {
			if err := s.repo.DeleteForPeriod(ctx, tx, agent.ID, periodType, periodStart); err != nil {
				return err
			}
		}
		now := s.clock.Now()
		return s.repo.Insert(ctx, tx, &domain.CommissionRecord{
			ID:           s.genID.Generate(),
			AgentID:      agent.ID,
			TenantID:     agent.CommissionTenantID(),
			PeriodType:   periodType,
			PeriodStart:  periodStart,
			PeriodEnd:    periodEnd,
			TotalOrders:  orders,
			TotalRevenue: revenue,
			RateBps:      int64(rate),
			Amount:       amount,
			Status:       domain.StatusPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	})
	if err != nil {
		result.Outcome = domain.OutcomeError
		result.Err = err.Error()
		return result
	}

	result.Amount = amount
	if existing != nil {
		result.Outcome = domain.OutcomeUpdated
	} else {
		result.Outcome = domain.OutcomeCreated
	}
	return result
}

// FinalizeMonth rolls each agent's non-final daily records into one frozen
// monthly record. The monthly totals are recomputed from the daily records,
// replacing any real-time running record, so an order is never counted twice.
func (s *Service) FinalizeMonth(ctx context.Context, month time.Time) (*domain.FinalizeSummary, error) {
	from := monthStart(month)
	to := from.AddDate(0, 1, 0)

	dailies, err := s.repo.ListNonFinalDaily(ctx, s.db, from, to)
	if err != nil {
		return nil, err
	}

	byAgent := make(map[snowflake.ID][]*domain.CommissionRecord)
	for _, record := range dailies {
		byAgent[record.AgentID] = append(byAgent[record.AgentID], record)
	}

	summary := &domain.FinalizeSummary{Agents: len(byAgent)}
	for agentID, records := range byAgent {
		existing, err := s.repo.FindOpen(ctx, s.db, agentID, domain.PeriodMonthly, from)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.IsFinal {
			summary.Skipped++
			continue
		}

		var orders, revenue, amount int64
		ids := make([]snowflake.ID, 0, len(records)+1)
		for _, record := range records {
			orders += record.TotalOrders
			revenue += record.TotalRevenue
			amount += record.Amount
			ids = append(ids, record.ID)
		}
		rateBps := records[0].RateBps
		tenantID := records[0].TenantID

		monthly := &domain.CommissionRecord{
			ID:           s.genID.Generate(),
			AgentID:      agentID,
			TenantID:     tenantID,
			PeriodType:   domain.PeriodMonthly,
			PeriodStart:  from,
			PeriodEnd:    to,
			TotalOrders:  orders,
			TotalRevenue: revenue,
			RateBps:      rateBps,
			Amount:       amount,
			Status:       domain.StatusPending,
			IsFinal:      true,
			CreatedAt:    s.clock.Now(),
			UpdatedAt:    s.clock.Now(),
		}

		err = s.uow.Run(ctx, func(tx *gorm.DB) error {
			if existing != nil {
				if err := s.repo.DeleteForPeriod(ctx, tx, agentID, domain.PeriodMonthly, from); err != nil {
					return err
				}
			}
			if err := s.repo.Insert(ctx, tx, monthly); err != nil {
				return err
			}
			if err := s.repo.MarkFinal(ctx, tx, ids); err != nil {
				return err
			}
			if s.outbox != nil {
				return s.outbox.PublishTx(ctx, tx, events.Event{
					TenantID: tenantID,
					Type:     events.EventCommissionClosed,
					Payload: map[string]any{
						"agent_id": agentID.String(),
						"month":    from.Format("2006-01"),
						"amount":   amount,
					},
					DedupeKey: "commission_finalized:" + agentID.String() + ":" + from.Format("2006-01"),
				})
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		summary.Finalized++
	}

	s.log.Info("month finalized",
		zap.String("month", from.Format("2006-01")),
		zap.Int("agents", summary.Agents),
		zap.Int("finalized", summary.Finalized),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, nil
}

// ArchiveMonth snapshots the month's monthly records into denormalized
// summaries. Re-archiving a month is a no-op per agent already archived.
func (s *Service) ArchiveMonth(ctx context.Context, month time.Time) (*domain.ArchiveSummary, error) {
	from := monthStart(month)
	to := from.AddDate(0, 1, 0)

	records, err := s.repo.ListForMonth(ctx, s.db, from, to)
	if err != nil {
		return nil, err
	}

	type rollup struct {
		tenantID snowflake.ID
		earned   int64
		paid     int64
		pending  int64
		rejected int64
		expired  int64
		ids      []string
	}
	byAgent := make(map[snowflake.ID]*rollup)
	for _, record := range records {
		if record.PeriodType != domain.PeriodMonthly {
			continue
		}
		r := byAgent[record.AgentID]
		if r == nil {
			r = &rollup{tenantID: record.TenantID}
			byAgent[record.AgentID] = r
		}
		r.earned += record.Amount
		switch record.Status {
		case domain.StatusPaid:
			r.paid += record.Amount
		case domain.StatusPending:
			r.pending += record.Amount
		case domain.StatusRejected:
			r.rejected += record.Amount
		case domain.StatusExpired:
			r.expired += record.Amount
		}
		r.ids = append(r.ids, record.ID.String())
	}

	summary := &domain.ArchiveSummary{Agents: len(byAgent)}
	for agentID, r := range byAgent {
		ids := make([]any, len(r.ids))
		for i, id := range r.ids {
			ids[i] = id
		}
		err := s.repo.InsertSummary(ctx, s.db, &domain.CommissionMonthlySummary{
			ID:            s.genID.Generate(),
			AgentID:       agentID,
			TenantID:      r.tenantID,
			Month:         from,
			TotalEarned:   r.earned,
			TotalPaid:     r.paid,
			TotalPending:  r.pending,
			TotalRejected: r.rejected,
			TotalExpired:  r.expired,
			RecordIDs:     datatypes.JSONMap{"record_ids": ids},
			CreatedAt:     s.clock.Now(),
		})
		if err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				continue
			}
			return nil, err
		}
		summary.Summaries++
	}

	s.log.Info("month archived",
		zap.String("month", from.Format("2006-01")),
		zap.Int("agents", summary.Agents),
		zap.Int("summaries", summary.Summaries),
	)
	return summary, nil
}

// Pay settles one pending record into the agent's wallet. The status flip,
// payment metadata, and wallet credit share a unit of work; the conditional
// transition makes double payment impossible even with concurrent operators.
func (s *Service) Pay(ctx context.Context, req domain.PayRequest) (*domain.CommissionRecord, error) {
	record, err := s.repo.FindByID(ctx, s.db, req.RecordID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, domain.ErrRecordNotFound
	}
	switch record.Status {
	case domain.StatusPaid:
		return nil, domain.ErrAlreadyPaid
	case domain.StatusPending:
	default:
		return nil, domain.ErrInvalidTransition
	}

	paidAt := s.clock.Now()
	err = s.uow.Run(ctx, func(tx *gorm.DB) error {
		ok, err := s.repo.Transition(ctx, tx, record.ID, domain.StatusPending, domain.StatusPaid)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrAlreadyPaid
		}
		if err := s.repo.SetPaymentDetails(ctx, tx, record.ID, paidAt, req.PaidBy, req.PaymentReference); err != nil {
			return err
		}
		if _, err := s.walletSvc.Credit(ctx, tx, walletdomain.CreditRequest{
			AgentID:     record.AgentID,
			Amount:      record.Amount,
			Description: "Commission payout " + money.FormatGHS(record.Amount) + " for " + record.PeriodStart.Format("2006-01"),
			ApprovedBy:  &req.PaidBy,
		}); err != nil {
			return err
		}
		if s.outbox != nil {
			return s.outbox.PublishTx(ctx, tx, events.Event{
				TenantID: record.TenantID,
				Type:     events.EventCommissionPaid,
				Payload: map[string]any{
					"record_id": record.ID.String(),
					"agent_id":  record.AgentID.String(),
					"amount":    record.Amount,
					"reference": req.PaymentReference,
				},
				DedupeKey: "commission_paid:" + record.ID.String(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	record.Status = domain.StatusPaid
	record.PaidAt = &paidAt
	record.PaidBy = &req.PaidBy
	record.PaymentReference = req.PaymentReference
	return record, nil
}

func (s *Service) Reject(ctx context.Context, recordID, actorID snowflake.ID, reason string) error {
	record, err := s.repo.FindByID(ctx, s.db, recordID)
	if err != nil {
		return err
	}
	if record == nil {
		return domain.ErrRecordNotFound
	}
	if record.Status != domain.StatusPending {
		return domain.ErrInvalidTransition
	}

	ok, err := s.repo.Transition(ctx, s.db, recordID, domain.StatusPending, domain.StatusRejected)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidTransition
	}
	s.log.Info("commission rejected",
		zap.String("record_id", recordID.String()),
		zap.String("actor_id", actorID.String()),
		zap.String("reason", reason),
	)
	return nil
}

func (s *Service) ExpireStale(ctx context.Context, before time.Time) (int64, error) {
	expired, err := s.repo.ExpirePending(ctx, s.db, before)
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		s.log.Info("stale commissions expired",
			zap.Int64("count", expired),
			zap.Time("before", before),
		)
	}
	return expired, nil
}

func (s *Service) ListByAgent(ctx context.Context, agentID snowflake.ID, filter domain.ListFilter) ([]*domain.CommissionRecord, error) {
	return s.repo.ListByAgent(ctx, s.db, agentID, filter)
}

func (s *Service) ListSummaries(ctx context.Context, agentID snowflake.ID, limit int) ([]*domain.CommissionMonthlySummary, error) {
	return s.repo.ListSummaries(ctx, s.db, agentID, limit)
}
