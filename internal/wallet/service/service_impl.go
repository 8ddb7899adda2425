package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	agentdomain "github.com/datamartgh/datamart/internal/agent/domain"
	"github.com/datamartgh/datamart/internal/events"
	obsmetrics "github.com/datamartgh/datamart/internal/observability/metrics"
	"github.com/datamartgh/datamart/internal/uow"
	"github.com/datamartgh/datamart/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	UOW        uow.UnitOfWork
	AgentRepo  agentdomain.Repository
	WalletRepo domain.Repository
	Outbox     *events.Outbox `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	uow        uow.UnitOfWork
	agentRepo  agentdomain.Repository
	walletRepo domain.Repository
	outbox     *events.Outbox
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("wallet.service"),
		genID:      p.GenID,
		uow:        p.UOW,
		agentRepo:  p.AgentRepo,
		walletRepo: p.WalletRepo,
		outbox:     p.Outbox,
	}
}

func (s *Service) handle(h *gorm.DB) *gorm.DB {
	if h != nil {
		return h
	}
	return s.db
}

// Credit increases the agent's balance and records the matching ledger entry
// on the same handle, so both land in the caller's unit of work.
func (s *Service) Credit(ctx context.Context, h *gorm.DB, req domain.CreditRequest) (*domain.WalletTransaction, error) {
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	h = s.handle(h)

	balance, ok, err := s.walletRepo.AdjustBalance(ctx, h, req.AgentID, req.Amount, false)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, agentdomain.ErrAgentNotFound
	}

	entry := &domain.WalletTransaction{
		ID:           s.genID.Generate(),
		AgentID:      req.AgentID,
		Type:         domain.TxTypeCredit,
		Amount:       req.Amount,
		BalanceAfter: balance,
		OrderID:      req.OrderID,
		ApprovedBy:   req.ApprovedBy,
		Description:  req.Description,
		Status:       domain.TxStatusCompleted,
		Metadata:     datatypes.JSONMap(req.Metadata),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.walletRepo.InsertTransaction(ctx, h, entry); err != nil {
		return nil, err
	}

	obsmetrics.Default().IncWalletMutation(string(domain.TxTypeCredit))
	s.log.Info("wallet credited",
		zap.String("agent_id", req.AgentID.String()),
		zap.Int64("amount", req.Amount),
		zap.Int64("balance_after", balance),
	)
	return entry, nil
}

// Debit decreases the agent's balance only while it covers the amount. The
// sufficiency check and the decrement are one conditional update, so
// concurrent debits cannot both pass against a stale balance.
func (s *Service) Debit(ctx context.Context, h *gorm.DB, req domain.DebitRequest) (*domain.WalletTransaction, error) {
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	h = s.handle(h)

	balance, ok, err := s.walletRepo.AdjustBalance(ctx, h, req.AgentID, -req.Amount, true)
	if err != nil {
		return nil, err
	}
	if !ok {
		agent, err := s.agentRepo.FindByID(ctx, h, req.AgentID)
		if err != nil {
			return nil, err
		}
		if agent == nil {
			return nil, agentdomain.ErrAgentNotFound
		}
		obsmetrics.Default().IncInsufficientBalance()
		return nil, &domain.InsufficientBalanceError{
			Required:  req.Amount,
			Available: agent.WalletBalance,
		}
	}

	entry := &domain.WalletTransaction{
		ID:           s.genID.Generate(),
		AgentID:      req.AgentID,
		Type:         domain.TxTypeDebit,
		Amount:       req.Amount,
		BalanceAfter: balance,
		OrderID:      req.OrderID,
		Description:  req.Description,
		Status:       domain.TxStatusCompleted,
		Metadata:     datatypes.JSONMap(req.Metadata),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.walletRepo.InsertTransaction(ctx, h, entry); err != nil {
		return nil, err
	}

	obsmetrics.Default().IncWalletMutation(string(domain.TxTypeDebit))
	s.log.Info("wallet debited",
		zap.String("agent_id", req.AgentID.String()),
		zap.Int64("amount", req.Amount),
		zap.Int64("balance_after", balance),
	)
	return entry, nil
}

// RequestTopUp records a pending credit awaiting manual verification. No
// money moves until an operator approves it.
func (s *Service) RequestTopUp(ctx context.Context, agentID snowflake.ID, amount int64, description string) (*domain.WalletTransaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	agent, err := s.agentRepo.FindByID(ctx, s.db, agentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		return nil, agentdomain.ErrAgentNotFound
	}

	entry := &domain.WalletTransaction{
		ID:          s.genID.Generate(),
		AgentID:     agentID,
		Type:        domain.TxTypeCredit,
		Amount:      amount,
		Description: description,
		Status:      domain.TxStatusPending,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.walletRepo.InsertTransaction(ctx, s.db, entry); err != nil {
		return nil, err
	}

	if s.outbox != nil {
		if err := s.outbox.PublishTx(ctx, s.db, events.Event{
			TenantID: agent.CommissionTenantID(),
			Type:     events.EventTopUpRequested,
			Payload: map[string]any{
				"topup_id": entry.ID.String(),
				"agent_id": agentID.String(),
				"amount":   amount,
			},
			DedupeKey: "topup_requested:" + entry.ID.String(),
		}); err != nil {
			s.log.Warn("failed to publish topup event", zap.Error(err))
		}
	}
	return entry, nil
}

// ApproveTopUp claims the pending row, credits the wallet, and stamps the
// settled balance. The claim happens before money moves so a concurrent
// approval loses the conditional update instead of double-crediting.
func (s *Service) ApproveTopUp(ctx context.Context, topUpID, approvedBy snowflake.ID) (*domain.WalletTransaction, error) {
	var settled *domain.WalletTransaction
	err := s.uow.Run(ctx, func(tx *gorm.DB) error {
		entry, err := s.walletRepo.FindTransaction(ctx, tx, topUpID)
		if err != nil {
			return err
		}
		if entry == nil {
			return domain.ErrTopUpNotFound
		}
		if entry.Status != domain.TxStatusPending || entry.Type != domain.TxTypeCredit {
			return domain.ErrTopUpNotPending
		}

		ok, err := s.walletRepo.SettleTopUp(ctx, tx, topUpID, domain.TxStatusCompleted, approvedBy)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrTopUpNotPending
		}

		balance, ok, err := s.walletRepo.AdjustBalance(ctx, tx, entry.AgentID, entry.Amount, false)
		if err != nil {
			return err
		}
		if !ok {
			return agentdomain.ErrAgentNotFound
		}
		if err := s.walletRepo.SetBalanceAfter(ctx, tx, topUpID, balance); err != nil {
			return err
		}

		entry.Status = domain.TxStatusCompleted
		entry.BalanceAfter = balance
		entry.ApprovedBy = &approvedBy
		settled = entry

		if s.outbox != nil {
			return s.outbox.PublishTx(ctx, tx, events.Event{
				TenantID: entry.AgentID,
				Type:     events.EventWalletCredited,
				Payload: map[string]any{
					"topup_id":      topUpID.String(),
					"agent_id":      entry.AgentID.String(),
					"amount":        entry.Amount,
					"balance_after": balance,
				},
				DedupeKey: "topup_settled:" + topUpID.String(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	obsmetrics.Default().IncWalletMutation(string(domain.TxTypeCredit))
	return settled, nil
}

func (s *Service) RejectTopUp(ctx context.Context, topUpID, approvedBy snowflake.ID) error {
	entry, err := s.walletRepo.FindTransaction(ctx, s.db, topUpID)
	if err != nil {
		return err
	}
	if entry == nil {
		return domain.ErrTopUpNotFound
	}
	ok, err := s.walletRepo.SettleTopUp(ctx, s.db, topUpID, domain.TxStatusRejected, approvedBy)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrTopUpNotPending
	}
	return nil
}

// History is read-only, newest first, and never fails on the empty case.
func (s *Service) History(ctx context.Context, agentID snowflake.ID, filter domain.HistoryFilter) ([]*domain.WalletTransaction, error) {
	entries, err := s.walletRepo.History(ctx, s.db, agentID, filter)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*domain.WalletTransaction{}
	}
	return entries, nil
}
