package server

import (
	"net/http"
	"time"

	walletdomain "github.com/datamartgh/datamart/internal/wallet/domain"
	"github.com/datamartgh/datamart/pkg/db/pagination"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) ListWalletTransactions(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, newValidationError("page_size", "invalid_page_size", "invalid page size"))
		return
	}
	if page.PageSize <= 0 || page.PageSize > 250 {
		page.PageSize = 50
	}

	filter := walletdomain.HistoryFilter{
		Type:   walletdomain.TxType(c.Query("type")),
		Status: walletdomain.TxStatus(c.Query("status")),
		// One extra row tells us whether another page exists.
		Limit: page.PageSize + 1,
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			AbortWithError(c, newValidationError("page_token", "invalid_page_token", "invalid page token"))
			return
		}
		before, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			AbortWithError(c, newValidationError("page_token", "invalid_page_token", "invalid page token"))
			return
		}
		filter.Before = &before
	}

	entries, err := s.walletSvc.History(c.Request.Context(), currentAgent(c).ID, filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	pageInfo, entries := pagination.BuildCursorPage(entries, page.PageSize, func(tx *walletdomain.WalletTransaction) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{
			ID:        tx.ID.String(),
			CreatedAt: tx.CreatedAt.Format(time.RFC3339Nano),
		})
		return token
	})
	c.JSON(http.StatusOK, gin.H{
		"data":      entries,
		"page_info": pageInfo,
		"balance":   currentAgent(c).WalletBalance,
	})
}

type topUpRequest struct {
	Amount      int64  `json:"amount_minor" binding:"required"`
	Description string `json:"description"`
}

func (s *Server) RequestTopUp(c *gin.Context) {
	var req topUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	entry, err := s.walletSvc.RequestTopUp(c.Request.Context(), currentAgent(c).ID, req.Amount, req.Description)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": entry})
}

// ApproveTopUp credits the wallet and immediately retries the agent's parked
// draft orders with the new balance.
func (s *Server) ApproveTopUp(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	entry, err := s.walletSvc.ApproveTopUp(c.Request.Context(), id, currentAgent(c).ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	drafts, err := s.orderSvc.ProcessDrafts(c.Request.Context(), entry.AgentID)
	if err != nil {
		// The credit stands; draft promotion retries on the next top-up or an
		// explicit process-drafts call.
		s.log.Warn("draft promotion after top-up failed",
			zap.String("agent_id", entry.AgentID.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, gin.H{"data": entry})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entry, "drafts": drafts})
}

func (s *Server) RejectTopUp(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := s.walletSvc.RejectTopUp(c.Request.Context(), id, currentAgent(c).ID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}
