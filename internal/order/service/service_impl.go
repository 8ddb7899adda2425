package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	agentdomain "github.com/datamartgh/datamart/internal/agent/domain"
	catalogdomain "github.com/datamartgh/datamart/internal/catalog/domain"
	"github.com/datamartgh/datamart/internal/clock"
	commissiondomain "github.com/datamartgh/datamart/internal/commission/domain"
	"github.com/datamartgh/datamart/internal/config"
	"github.com/datamartgh/datamart/internal/dupcheck"
	"github.com/datamartgh/datamart/internal/events"
	"github.com/datamartgh/datamart/internal/fulfillment"
	obsmetrics "github.com/datamartgh/datamart/internal/observability/metrics"
	"github.com/datamartgh/datamart/internal/order/domain"
	"github.com/datamartgh/datamart/internal/uow"
	walletdomain "github.com/datamartgh/datamart/internal/wallet/domain"
	pkgdb "github.com/datamartgh/datamart/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// reportWindow is how long after completion a delivery issue may be reported.
const reportWindow = 2 * time.Hour

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Config        config.Config
	UOW           uow.UnitOfWork
	OrderRepo     domain.Repository
	AgentRepo     agentdomain.Repository
	CatalogRepo   catalogdomain.Repository
	WalletSvc     walletdomain.Service
	DupEngine     *dupcheck.Engine
	Fulfiller     fulfillment.Provider
	CommissionSvc commissiondomain.Service
	Outbox        *events.Outbox `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	uow           uow.UnitOfWork
	orderRepo     domain.Repository
	agentRepo     agentdomain.Repository
	catalogRepo   catalogdomain.Repository
	walletSvc     walletdomain.Service
	dupEngine     *dupcheck.Engine
	fulfiller     fulfillment.Provider
	commissionSvc commissiondomain.Service
	outbox        *events.Outbox
	dupWindow     dupcheck.Policy
}

func NewService(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("order.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		uow:           p.UOW,
		orderRepo:     p.OrderRepo,
		agentRepo:     p.AgentRepo,
		catalogRepo:   p.CatalogRepo,
		walletSvc:     p.WalletSvc,
		dupEngine:     p.DupEngine,
		fulfiller:     p.Fulfiller,
		commissionSvc: p.CommissionSvc,
		outbox:        p.Outbox,
		dupWindow:     dupcheck.Policy{Window: p.Config.DuplicateWindow},
	}
}

func (s *Service) policy(force bool) dupcheck.Policy {
	policy := s.dupWindow
	policy.ForceOverride = force
	return policy
}

func (s *Service) loadAgent(ctx context.Context, id snowflake.ID) (*agentdomain.Agent, error) {
	agent, err := s.agentRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, agentdomain.ErrAgentNotFound
	}
	return agent, nil
}

func (s *Service) newItem(orderID snowflake.ID, bundle *catalogdomain.Bundle, phone string, quantity int, unitPrice int64) domain.OrderItem {
	now := s.clock.Now()
	return domain.OrderItem{
		ID:             s.genID.Generate(),
		OrderID:        orderID,
		BundleID:       bundle.ID,
		BundleName:     bundle.Name,
		BundleCode:     bundle.Code,
		Provider:       bundle.Provider,
		DataVolumeMB:   bundle.DataVolumeMB,
		ValidityDays:   bundle.ValidityDays,
		RecipientPhone: phone,
		Quantity:       quantity,
		UnitPrice:      unitPrice,
		TotalPrice:     unitPrice * int64(quantity),
		Status:         domain.ItemPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// insertWithNumber persists the order, regenerating the order number on
// uniqueness collisions until attempts are exhausted, then once more with a
// timestamp-suffixed fallback.
func (s *Service) insertWithNumber(ctx context.Context, tx *gorm.DB, order *domain.Order) error {
	now := s.clock.Now()
	for attempt := 0; attempt < numberAttempts; attempt++ {
		number, err := nextOrderNumber(ctx, tx, order.Type, now)
		if err != nil {
			return err
		}
		order.OrderNumber = number
		err = s.orderRepo.Insert(ctx, tx, order)
		if err == nil {
			return nil
		}
		if !pkgdb.IsDuplicateKeyErr(err) {
			return err
		}
		s.log.Warn("order number collision, regenerating",
			zap.String("order_number", number),
			zap.Int("attempt", attempt+1),
		)
	}

	order.OrderNumber = fallbackOrderNumber(order.Type, now)
	err := s.orderRepo.Insert(ctx, tx, order)
	if err == nil {
		return nil
	}
	if pkgdb.IsDuplicateKeyErr(err) {
		return domain.ErrOrderNumberExhausted
	}
	return err
}

// createFunded persists the order and attempts to fund it in one unit of
// work. The order is written first in its draft shape so that, even in
// best-effort mode, an insufficient balance leaves a clean draft rather than
// a half-funded order.
func (s *Service) createFunded(ctx context.Context, agent *agentdomain.Agent, orderType domain.Type, items []domain.OrderItem) (*domain.Order, error) {
	if len(items) == 0 {
		return nil, domain.ErrNoItems
	}
	var total int64
	for _, item := range items {
		total += item.TotalPrice
	}

	now := s.clock.Now()
	order := &domain.Order{
		ID:              s.genID.Generate(),
		Type:            orderType,
		TenantID:        agent.CommissionTenantID(),
		CreatedBy:       agent.ID,
		Status:          domain.StatusDraft,
		PaymentStatus:   domain.PaymentPending,
		ReceptionStatus: domain.ReceptionNone,
		Total:           total,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	order.Items = items

	err := s.uow.Run(ctx, func(tx *gorm.DB) error {
		if err := s.insertWithNumber(ctx, tx, order); err != nil {
			return err
		}

		_, err := s.walletSvc.Debit(ctx, tx, walletdomain.DebitRequest{
			AgentID:     agent.ID,
			Amount:      total,
			Description: "Order " + order.OrderNumber,
			OrderID:     &order.ID,
		})
		if err != nil {
			if errors.Is(err, walletdomain.ErrInsufficientBalance) {
				// The order survives as a draft until the wallet is topped up.
				s.log.Info("order parked as draft, wallet cannot cover total",
					zap.String("order_number", order.OrderNumber),
					zap.Int64("total", total),
				)
				return s.publishCreated(ctx, tx, order)
			}
			return err
		}

		target := domain.StatusPending
		if agent.Type == agentdomain.TypeOperator {
			target = domain.StatusConfirmed
		}
		if _, err := s.orderRepo.UpdateStatus(ctx, tx, order.ID, []domain.Status{domain.StatusDraft}, target); err != nil {
			return err
		}
		if err := s.orderRepo.SetPaymentStatus(ctx, tx, order.ID, domain.PaymentPaid); err != nil {
			return err
		}
		order.Status = target
		order.PaymentStatus = domain.PaymentPaid
		return s.publishCreated(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	obsmetrics.Default().IncOrderCreated(string(orderType))
	return order, nil
}

func (s *Service) publishCreated(ctx context.Context, tx *gorm.DB, order *domain.Order) error {
	if s.outbox == nil {
		return nil
	}
	return s.outbox.PublishTx(ctx, tx, events.Event{
		TenantID: order.TenantID,
		Type:     events.EventOrderCreated,
		Payload: map[string]any{
			"order_id":     order.ID.String(),
			"order_number": order.OrderNumber,
			"agent_id":     order.CreatedBy.String(),
			"status":       string(order.Status),
			"total":        order.Total,
		},
		DedupeKey: "order_created:" + order.ID.String(),
	})
}

func (s *Service) CreateSingle(ctx context.Context, req domain.CreateSingleRequest) (*domain.Order, error) {
	if req.Quantity <= 0 {
		req.Quantity = 1
	}
	agent, err := s.loadAgent(ctx, req.AgentID)
	if err != nil {
		return nil, err
	}
	bundle, err := s.catalogRepo.FindByID(ctx, s.db, req.BundleID)
	if err != nil {
		return nil, err
	}
	if bundle == nil {
		return nil, catalogdomain.ErrBundleNotFound
	}

	check := s.dupEngine.CheckSingle(ctx, agent.ID, req.CustomerPhone, bundle.ID, s.policy(req.ForceOverride))
	if !check.CanProceed {
		return nil, &domain.DuplicateOrderError{Result: check}
	}

	unitPrice, err := s.catalogRepo.UnitPriceFor(ctx, s.db, bundle, agent.Type)
	if err != nil {
		return nil, err
	}
	item := s.newItem(0, bundle, dupcheck.NormalizePhone(req.CustomerPhone), req.Quantity, unitPrice)
	return s.createFunded(ctx, agent, domain.TypeSingle, []domain.OrderItem{item})
}

func (s *Service) CreateBulk(ctx context.Context, req domain.CreateBulkRequest) (*domain.Order, error) {
	agent, err := s.loadAgent(ctx, req.AgentID)
	if err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, domain.ErrNoItems
	}

	parsed := make([]dupcheck.BulkItem, 0, len(req.Items))
	for _, row := range req.Items {
		item, err := dupcheck.ParseBulkRow(row)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, item)
	}

	check := s.dupEngine.CheckBulk(ctx, agent.ID, parsed, s.policy(req.ForceOverride))
	if !check.CanProceed {
		return nil, &domain.DuplicateOrderError{Result: check}
	}

	items := make([]domain.OrderItem, 0, len(parsed))
	for _, row := range parsed {
		bundle, err := s.catalogRepo.FindByVolume(ctx, s.db, req.Provider, row.VolumeMB)
		if err != nil {
			return nil, err
		}
		if bundle == nil {
			return nil, fmt.Errorf("%w: no %s bundle for row %q", catalogdomain.ErrBundleNotFound, req.Provider, row.Raw)
		}
		unitPrice, err := s.catalogRepo.UnitPriceFor(ctx, s.db, bundle, agent.Type)
		if err != nil {
			return nil, err
		}
		items = append(items, s.newItem(0, bundle, row.Phone, 1, unitPrice))
	}
	return s.createFunded(ctx, agent, domain.TypeBulk, items)
}

// CreateStorefront parks the order in pending_payment; no money moves until
// the agent verifies the customer's manual payment.
func (s *Service) CreateStorefront(ctx context.Context, req domain.CreateStorefrontRequest) (*domain.Order, error) {
	if req.Quantity <= 0 {
		req.Quantity = 1
	}
	agent, err := s.loadAgent(ctx, req.AgentID)
	if err != nil {
		return nil, err
	}
	bundle, err := s.catalogRepo.FindByID(ctx, s.db, req.BundleID)
	if err != nil {
		return nil, err
	}
	if bundle == nil {
		return nil, catalogdomain.ErrBundleNotFound
	}
	unitPrice, err := s.catalogRepo.UnitPriceFor(ctx, s.db, bundle, agent.Type)
	if err != nil {
		return nil, err
	}

	item := s.newItem(0, bundle, dupcheck.NormalizePhone(req.CustomerPhone), req.Quantity, unitPrice)
	now := s.clock.Now()
	order := &domain.Order{
		ID:              s.genID.Generate(),
		Type:            domain.TypeStorefront,
		TenantID:        agent.CommissionTenantID(),
		CreatedBy:       agent.ID,
		Status:          domain.StatusPendingPayment,
		PaymentStatus:   domain.PaymentPending,
		ReceptionStatus: domain.ReceptionNone,
		Total:           item.TotalPrice,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	item.OrderID = order.ID
	order.Items = []domain.OrderItem{item}

	err = s.uow.Run(ctx, func(tx *gorm.DB) error {
		if err := s.insertWithNumber(ctx, tx, order); err != nil {
			return err
		}
		return s.publishCreated(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}
	obsmetrics.Default().IncOrderCreated(string(domain.TypeStorefront))
	return order, nil
}

// VerifyStorefrontPayment funds a pending_payment order from the verifying
// agent's wallet. Insufficient balance fails the verification outright;
// storefront orders never degrade to drafts.
func (s *Service) VerifyStorefrontPayment(ctx context.Context, orderID, agentID snowflake.ID) (*domain.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	if order.CreatedBy != agentID {
		return nil, domain.ErrNotOwner
	}
	if order.Status != domain.StatusPendingPayment {
		return nil, domain.ErrStorefrontNotAwaiting
	}

	err = s.uow.Run(ctx, func(tx *gorm.DB) error {
		ok, err := s.orderRepo.UpdateStatus(ctx, tx, order.ID, []domain.Status{domain.StatusPendingPayment}, domain.StatusPending)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrStorefrontNotAwaiting
		}
		if _, err := s.walletSvc.Debit(ctx, tx, walletdomain.DebitRequest{
			AgentID:     agentID,
			Amount:      order.Total,
			Description: "Storefront order " + order.OrderNumber,
			OrderID:     &order.ID,
		}); err != nil {
			return err
		}
		return s.orderRepo.SetPaymentStatus(ctx, tx, order.ID, domain.PaymentPaid)
	})
	if err != nil {
		return nil, err
	}
	obsmetrics.Default().IncOrderTransition(string(domain.StatusPendingPayment), string(domain.StatusPending))
	order.Status = domain.StatusPending
	order.PaymentStatus = domain.PaymentPaid
	return order, nil
}

// Process fulfills every pending item and recomputes the order status from
// item outcomes. A fully failed paid order is refunded in full; a completed
// order triggers real-time commission accrual for business-tier creators.
func (s *Service) Process(ctx context.Context, orderID snowflake.ID) (*domain.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	if !order.Status.Processable() {
		return nil, &domain.InvalidTransitionError{From: order.Status, To: domain.StatusProcessing}
	}

	ok, err := s.orderRepo.UpdateStatus(ctx, s.db, order.ID,
		[]domain.Status{domain.StatusPending, domain.StatusConfirmed}, domain.StatusProcessing)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &domain.InvalidTransitionError{From: order.Status, To: domain.StatusProcessing}
	}
	obsmetrics.Default().IncOrderTransition(string(order.Status), string(domain.StatusProcessing))

	completed, failed := 0, 0
	for i := range order.Items {
		item := &order.Items[i]
		switch item.Status {
		case domain.ItemCompleted:
			completed++
			continue
		case domain.ItemFailed:
			failed++
			continue
		case domain.ItemCancelled:
			continue
		}

		if err := s.orderRepo.SetItemStatus(ctx, s.db, item.ID, domain.ItemProcessing, ""); err != nil {
			return nil, err
		}
		fulfillErr := s.fulfiller.Fulfill(ctx, fulfillment.Request{
			OrderNumber:    order.OrderNumber,
			RecipientPhone: item.RecipientPhone,
			BundleCode:     item.BundleCode,
			Provider:       item.Provider,
			DataVolumeMB:   item.DataVolumeMB,
		})
		if fulfillErr != nil {
			failed++
			item.Status = domain.ItemFailed
			if err := s.orderRepo.SetItemStatus(ctx, s.db, item.ID, domain.ItemFailed, fulfillErr.Error()); err != nil {
				return nil, err
			}
			continue
		}
		completed++
		item.Status = domain.ItemCompleted
		if err := s.orderRepo.SetItemStatus(ctx, s.db, item.ID, domain.ItemCompleted, ""); err != nil {
			return nil, err
		}
	}

	final := domain.StatusPartiallyCompleted
	switch {
	case failed == 0:
		final = domain.StatusCompleted
	case completed == 0:
		final = domain.StatusFailed
	}

	err = s.uow.Run(ctx, func(tx *gorm.DB) error {
		if _, err := s.orderRepo.UpdateStatus(ctx, tx, order.ID, []domain.Status{domain.StatusProcessing}, final); err != nil {
			return err
		}
		if final == domain.StatusFailed && order.PaymentStatus == domain.PaymentPaid {
			if _, err := s.walletSvc.Credit(ctx, tx, walletdomain.CreditRequest{
				AgentID:     order.CreatedBy,
				Amount:      order.Total,
				Description: "Refund for failed order " + order.OrderNumber,
				OrderID:     &order.ID,
			}); err != nil {
				return err
			}
			if err := s.orderRepo.SetPaymentStatus(ctx, tx, order.ID, domain.PaymentRefunded); err != nil {
				return err
			}
			order.PaymentStatus = domain.PaymentRefunded
			if s.outbox != nil {
				if err := s.outbox.PublishTx(ctx, tx, events.Event{
					TenantID: order.TenantID,
					Type:     events.EventOrderRefunded,
					Payload: map[string]any{
						"order_id":     order.ID.String(),
						"order_number": order.OrderNumber,
						"amount":       order.Total,
					},
					DedupeKey: "order_refunded:" + order.ID.String(),
				}); err != nil {
					return err
				}
			}
		}
		if final == domain.StatusCompleted && s.outbox != nil {
			if err := s.outbox.PublishTx(ctx, tx, events.Event{
				TenantID: order.TenantID,
				Type:     events.EventOrderCompleted,
				Payload: map[string]any{
					"order_id":     order.ID.String(),
					"order_number": order.OrderNumber,
					"agent_id":     order.CreatedBy.String(),
					"total":        order.Total,
				},
				DedupeKey: "order_completed:" + order.ID.String(),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	obsmetrics.Default().IncOrderTransition(string(domain.StatusProcessing), string(final))
	order.Status = final

	if final == domain.StatusCompleted {
		s.accrueCommission(ctx, order)
	}
	return order, nil
}

// accrueCommission feeds the completed order into real-time accrual. Accrual
// failure never fails the order; the daily batch recomputes from completed
// orders and repairs any gap.
func (s *Service) accrueCommission(ctx context.Context, order *domain.Order) {
	agent, err := s.agentRepo.FindByID(ctx, s.db, order.CreatedBy)
	if err != nil || agent == nil {
		s.log.Warn("accrual skipped, creator not found",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return
	}
	if !agent.Type.Business() {
		return
	}
	if err := s.commissionSvc.AccrueOrder(ctx, agent.ID, order.ID, order.Total, s.clock.Now()); err != nil {
		s.log.Warn("real-time commission accrual failed",
			zap.String("order_id", order.ID.String()),
			zap.String("agent_id", agent.ID.String()),
			zap.Error(err),
		)
	}
}

// Cancel tears down an order that has not started processing. Drafts are
// hard-deleted since they never moved money; paid orders are refunded in the
// same unit of work, so a refund failure aborts the cancellation.
func (s *Service) Cancel(ctx context.Context, orderID, actorID snowflake.ID) error {
	order, err := s.orderRepo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return domain.ErrOrderNotFound
	}
	actor, err := s.loadAgent(ctx, actorID)
	if err != nil {
		return err
	}
	if actor.Type != agentdomain.TypeOperator && order.CreatedBy != actorID {
		return domain.ErrNotOwner
	}
	if !order.Status.Cancellable() {
		return &domain.InvalidTransitionError{From: order.Status, To: domain.StatusCancelled}
	}

	if order.Status == domain.StatusDraft {
		ok, err := s.orderRepo.HardDelete(ctx, s.db, order.ID)
		if err != nil {
			return err
		}
		if !ok {
			// Promoted out of draft between the read and the delete.
			return &domain.InvalidTransitionError{From: order.Status, To: domain.StatusCancelled}
		}
		return nil
	}

	err = s.uow.Run(ctx, func(tx *gorm.DB) error {
		ok, err := s.orderRepo.UpdateStatus(ctx, tx, order.ID,
			[]domain.Status{domain.StatusPending, domain.StatusConfirmed}, domain.StatusCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return &domain.InvalidTransitionError{From: order.Status, To: domain.StatusCancelled}
		}
		if err := s.orderRepo.CancelPendingItems(ctx, tx, order.ID); err != nil {
			return err
		}

		if order.PaymentStatus == domain.PaymentPaid {
			if _, err := s.walletSvc.Credit(ctx, tx, walletdomain.CreditRequest{
				AgentID:     order.CreatedBy,
				Amount:      order.Total,
				Description: "Refund for cancelled order " + order.OrderNumber,
				OrderID:     &order.ID,
			}); err != nil {
				return err
			}
			if err := s.orderRepo.SetPaymentStatus(ctx, tx, order.ID, domain.PaymentRefunded); err != nil {
				return err
			}
		}

		if s.outbox != nil {
			return s.outbox.PublishTx(ctx, tx, events.Event{
				TenantID: order.TenantID,
				Type:     events.EventOrderCancelled,
				Payload: map[string]any{
					"order_id":     order.ID.String(),
					"order_number": order.OrderNumber,
					"refunded":     order.PaymentStatus == domain.PaymentPaid,
				},
				DedupeKey: "order_cancelled:" + order.ID.String(),
			})
		}
		return nil
	})
	if err != nil {
		return err
	}
	obsmetrics.Default().IncOrderTransition(string(order.Status), string(domain.StatusCancelled))
	return nil
}

// ReportDeliveryIssue opens a delivery dispute on a recently completed order.
// It moves no money; resolution is a separate administrative transition.
func (s *Service) ReportDeliveryIssue(ctx context.Context, orderID, agentID snowflake.ID) error {
	order, err := s.orderRepo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return domain.ErrOrderNotFound
	}
	if order.CreatedBy != agentID {
		return domain.ErrNotOwner
	}
	if order.Status != domain.StatusCompleted {
		return &domain.InvalidTransitionError{From: order.Status, To: domain.StatusCompleted}
	}

	now := s.clock.Now()
	if now.Sub(order.UpdatedAt) > reportWindow {
		return domain.ErrReportWindowClosed
	}

	if err := s.orderRepo.SetReception(ctx, s.db, order.ID, domain.ReceptionNotReceived, &now, nil); err != nil {
		return err
	}
	if s.outbox != nil {
		if err := s.outbox.PublishTx(ctx, s.db, events.Event{
			TenantID: order.TenantID,
			Type:     events.EventOrderReported,
			Payload: map[string]any{
				"order_id":     order.ID.String(),
				"order_number": order.OrderNumber,
			},
			DedupeKey: "order_reported:" + order.ID.String(),
		}); err != nil {
			s.log.Warn("failed to publish report event", zap.Error(err))
		}
	}
	return nil
}

func (s *Service) StartDeliveryCheck(ctx context.Context, orderID snowflake.ID) error {
	order, err := s.orderRepo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return domain.ErrOrderNotFound
	}
	if order.ReceptionStatus != domain.ReceptionNotReceived {
		return domain.ErrInvalidStatusTransition
	}
	return s.orderRepo.SetReception(ctx, s.db, order.ID, domain.ReceptionChecking, nil, nil)
}

func (s *Service) ResolveDeliveryIssue(ctx context.Context, orderID snowflake.ID) error {
	order, err := s.orderRepo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return domain.ErrOrderNotFound
	}
	if order.ReceptionStatus != domain.ReceptionChecking {
		return domain.ErrInvalidStatusTransition
	}
	now := s.clock.Now()
	return s.orderRepo.SetReception(ctx, s.db, order.ID, domain.ReceptionResolved, nil, &now)
}

// ProcessDrafts funds an agent's parked drafts. The whole outstanding draft
// cost must be coverable; otherwise the batch fails with the insufficiency
// rather than promoting an arbitrary subset.
func (s *Service) ProcessDrafts(ctx context.Context, agentID snowflake.ID) (*domain.DraftResult, error) {
	drafts, err := s.orderRepo.ListDrafts(ctx, s.db, agentID)
	if err != nil {
		return nil, err
	}
	if len(drafts) == 0 {
		return &domain.DraftResult{}, nil
	}

	var outstanding int64
	for _, draft := range drafts {
		outstanding += draft.Total
	}

	err = s.uow.Run(ctx, func(tx *gorm.DB) error {
		agent, err := s.agentRepo.FindByID(ctx, tx, agentID)
		if err != nil {
			return err
		}
		if agent == nil {
			return agentdomain.ErrAgentNotFound
		}
		if agent.WalletBalance < outstanding {
			return &walletdomain.InsufficientBalanceError{
				Required:  outstanding,
				Available: agent.WalletBalance,
			}
		}

		for _, draft := range drafts {
			if _, err := s.walletSvc.Debit(ctx, tx, walletdomain.DebitRequest{
				AgentID:     agentID,
				Amount:      draft.Total,
				Description: "Order " + draft.OrderNumber,
				OrderID:     &draft.ID,
			}); err != nil {
				return err
			}
			if _, err := s.orderRepo.UpdateStatus(ctx, tx, draft.ID, []domain.Status{domain.StatusDraft}, domain.StatusPending); err != nil {
				return err
			}
			if err := s.orderRepo.SetPaymentStatus(ctx, tx, draft.ID, domain.PaymentPaid); err != nil {
				return err
			}
			draft.Status = domain.StatusPending
			draft.PaymentStatus = domain.PaymentPaid
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("draft orders promoted",
		zap.String("agent_id", agentID.String()),
		zap.Int("count", len(drafts)),
		zap.Int64("total", outstanding),
	)
	return &domain.DraftResult{
		Processed: len(drafts),
		Total:     outstanding,
		Orders:    drafts,
	}, nil
}

func (s *Service) Get(ctx context.Context, orderID snowflake.ID) (*domain.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *Service) ListByAgent(ctx context.Context, agentID snowflake.ID, limit int) ([]*domain.Order, error) {
	return s.orderRepo.ListByAgent(ctx, s.db, agentID, limit)
}
