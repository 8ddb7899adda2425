package server

import (
	"net/http"

	agentdomain "github.com/datamartgh/datamart/internal/agent/domain"
	orderdomain "github.com/datamartgh/datamart/internal/order/domain"
	"github.com/gin-gonic/gin"
)

type createSingleOrderRequest struct {
	CustomerPhone string `json:"customer_phone" binding:"required"`
	BundleID      string `json:"bundle_id" binding:"required"`
	Quantity      int    `json:"quantity"`
	Force         bool   `json:"force"`
}

func (s *Server) CreateSingleOrder(c *gin.Context) {
	var req createSingleOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	bundleID, ok := parseIDField(c, "bundle_id", req.BundleID)
	if !ok {
		return
	}

	order, err := s.orderSvc.CreateSingle(c.Request.Context(), orderdomain.CreateSingleRequest{
		AgentID:       currentAgent(c).ID,
		CustomerPhone: req.CustomerPhone,
		BundleID:      bundleID,
		Quantity:      req.Quantity,
		ForceOverride: req.Force,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": order})
}

type createBulkOrderRequest struct {
	Provider string   `json:"provider" binding:"required"`
	Items    []string `json:"items" binding:"required"`
	Force    bool     `json:"force"`
}

func (s *Server) CreateBulkOrder(c *gin.Context) {
	var req createBulkOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}

	order, err := s.orderSvc.CreateBulk(c.Request.Context(), orderdomain.CreateBulkRequest{
		AgentID:       currentAgent(c).ID,
		Provider:      req.Provider,
		Items:         req.Items,
		ForceOverride: req.Force,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": order})
}

type createStorefrontOrderRequest struct {
	CustomerPhone string `json:"customer_phone" binding:"required"`
	BundleID      string `json:"bundle_id" binding:"required"`
	Quantity      int    `json:"quantity"`
}

func (s *Server) CreateStorefrontOrder(c *gin.Context) {
	var req createStorefrontOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_request", "invalid request"))
		return
	}
	bundleID, ok := parseIDField(c, "bundle_id", req.BundleID)
	if !ok {
		return
	}

	order, err := s.orderSvc.CreateStorefront(c.Request.Context(), orderdomain.CreateStorefrontRequest{
		AgentID:       currentAgent(c).ID,
		CustomerPhone: req.CustomerPhone,
		BundleID:      bundleID,
		Quantity:      req.Quantity,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": order})
}

func (s *Server) VerifyStorefrontPayment(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	order, err := s.orderSvc.VerifyStorefrontPayment(c.Request.Context(), id, currentAgent(c).ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) ProcessOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	order, err := s.orderSvc.Process(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) CancelOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := s.orderSvc.Cancel(c.Request.Context(), id, currentAgent(c).ID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (s *Server) ReportDeliveryIssue(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := s.orderSvc.ReportDeliveryIssue(c.Request.Context(), id, currentAgent(c).ID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reported"})
}

func (s *Server) StartDeliveryCheck(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := s.orderSvc.StartDeliveryCheck(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "checking"})
}

func (s *Server) ResolveDeliveryIssue(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := s.orderSvc.ResolveDeliveryIssue(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resolved"})
}

func (s *Server) ProcessDraftOrders(c *gin.Context) {
	result, err := s.orderSvc.ProcessDrafts(c.Request.Context(), currentAgent(c).ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) GetOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	order, err := s.orderSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	agent := currentAgent(c)
	if order.CreatedBy != agent.ID && agent.Type != agentdomain.TypeOperator {
		AbortWithError(c, ErrForbidden)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) ListOrders(c *gin.Context) {
	orders, err := s.orderSvc.ListByAgent(c.Request.Context(), currentAgent(c).ID, intQuery(c, "limit", 50))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": orders})
}
