package server

import (
	"net/http"
	"time"

	commissiondomain "github.com/datamartgh/datamart/internal/commission/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListCommissions(c *gin.Context) {
	filter := commissiondomain.ListFilter{
		PeriodType: commissiondomain.PeriodType(c.Query("period_type")),
		Status:     commissiondomain.Status(c.Query("status")),
		Limit:      intQuery(c, "limit", 50),
	}
	records, err := s.commissionSvc.ListByAgent(c.Request.Context(), currentAgent(c).ID, filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}

func (s *Server) ListCommissionSummaries(c *gin.Context) {
	summaries, err := s.commissionSvc.ListSummaries(c.Request.Context(), currentAgent(c).ID, intQuery(c, "limit", 12))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summaries})
}

type generateCommissionsRequest struct {
	PeriodType string `json:"period_type" binding:"required"`
	Period     string `json:"period" binding:"required"`
	Force      bool   `json:"force"`
}

func (s *Server) GenerateCommissions(c *gin.Context) {
	var req generateCommissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	period, err := time.Parse("2006-01-02", req.Period)
	if err != nil {
		AbortWithError(c, newValidationError("period", "invalid_period", "period must be YYYY-MM-DD"))
		return
	}

	genReq := commissiondomain.GenerateRequest{Period: period, Force: req.Force}
	var summary *commissiondomain.BatchSummary
	switch req.PeriodType {
	case string(commissiondomain.PeriodDaily):
		summary, err = s.commissionSvc.GenerateDaily(c.Request.Context(), genReq)
	case string(commissiondomain.PeriodMonthly):
		summary, err = s.commissionSvc.GenerateMonthly(c.Request.Context(), genReq)
	default:
		AbortWithError(c, newValidationError("period_type", "invalid_period_type", "period_type must be daily or monthly"))
		return
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary})
}

type payCommissionRequest struct {
	PaymentReference string `json:"payment_reference"`
}

func (s *Server) PayCommission(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req payCommissionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
			return
		}
	}

	record, err := s.commissionSvc.Pay(c.Request.Context(), commissiondomain.PayRequest{
		RecordID:         id,
		PaidBy:           currentAgent(c).ID,
		PaymentReference: req.PaymentReference,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": record})
}

type rejectCommissionRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) RejectCommission(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req rejectCommissionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
			return
		}
	}

	if err := s.commissionSvc.Reject(c.Request.Context(), id, currentAgent(c).ID, req.Reason); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "rejected"})
}
