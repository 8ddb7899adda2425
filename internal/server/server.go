// Package server exposes the HTTP surface. Handlers are thin: they parse,
// delegate to domain services, and map errors; no business rules live here.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	agentdomain "github.com/datamartgh/datamart/internal/agent/domain"
	commissiondomain "github.com/datamartgh/datamart/internal/commission/domain"
	"github.com/datamartgh/datamart/internal/config"
	orderdomain "github.com/datamartgh/datamart/internal/order/domain"
	walletdomain "github.com/datamartgh/datamart/internal/wallet/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin() *gin.Engine {
	return NewEngine()
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, _ *Server, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	log           *zap.Logger
	agentRepo     agentdomain.Repository
	orderSvc      orderdomain.Service
	walletSvc     walletdomain.Service
	commissionSvc commissiondomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	Log           *zap.Logger
	AgentRepo     agentdomain.Repository
	OrderSvc      orderdomain.Service
	WalletSvc     walletdomain.Service
	CommissionSvc commissiondomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		log:           p.Log.Named("server"),
		agentRepo:     p.AgentRepo,
		orderSvc:      p.OrderSvc,
		walletSvc:     p.WalletSvc,
		commissionSvc: p.CommissionSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AgentRequired())

	// -------- Orders --------
	api.POST("/orders", s.CreateSingleOrder)
	api.POST("/orders/bulk", s.CreateBulkOrder)
	api.POST("/orders/storefront", s.CreateStorefrontOrder)
	api.GET("/orders", s.ListOrders)
	api.GET("/orders/:id", s.GetOrder)
	api.POST("/orders/:id/verify-payment", s.VerifyStorefrontPayment)
	api.POST("/orders/:id/cancel", s.CancelOrder)
	api.POST("/orders/:id/report", s.ReportDeliveryIssue)
	api.POST("/orders/drafts/process", s.ProcessDraftOrders)

	// -------- Wallet --------
	api.GET("/wallet/transactions", s.ListWalletTransactions)
	api.POST("/wallet/topups", s.RequestTopUp)

	// -------- Commissions --------
	api.GET("/commissions", s.ListCommissions)
	api.GET("/commissions/summaries", s.ListCommissionSummaries)

	// Operator-only transitions.
	admin := s.engine.Group("/api/admin", s.AgentRequired(), s.OperatorRequired())
	admin.POST("/orders/:id/process", s.ProcessOrder)
	admin.POST("/orders/:id/start-check", s.StartDeliveryCheck)
	admin.POST("/orders/:id/resolve", s.ResolveDeliveryIssue)
	admin.POST("/wallet/topups/:id/approve", s.ApproveTopUp)
	admin.POST("/wallet/topups/:id/reject", s.RejectTopUp)
	admin.POST("/commissions/generate", s.GenerateCommissions)
	admin.POST("/commissions/:id/pay", s.PayCommission)
	admin.POST("/commissions/:id/reject", s.RejectCommission)
}
