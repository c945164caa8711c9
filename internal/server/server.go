package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/feeledger/internal/audit/domain"
	"github.com/smallbiznis/feeledger/internal/authorization"
	"github.com/smallbiznis/feeledger/internal/config"
	feedomain "github.com/smallbiznis/feeledger/internal/fee/domain"
	"github.com/smallbiznis/feeledger/internal/observability"
	obslogger "github.com/smallbiznis/feeledger/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/feeledger/internal/observability/metrics"
	obstracing "github.com/smallbiznis/feeledger/internal/observability/tracing"
	"github.com/smallbiznis/feeledger/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
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

// tenantLimiter throttles writes per tenant.
type tenantLimiter interface {
	Enabled() bool
	AllowTenant(ctx context.Context, tenantID snowflake.ID) (*ratelimit.RateLimitResult, error)
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	feeSvc       feedomain.Service
	paymentSvc   feedomain.PaymentService
	discountSvc  feedomain.DiscountService
	structureSvc feedomain.StructureService
	documentSvc  feedomain.DocumentService
	authzSvc     authorization.Service
	auditSvc     auditdomain.Service
	writeLimiter tenantLimiter
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	FeeSvc       feedomain.Service
	PaymentSvc   feedomain.PaymentService
	DiscountSvc  feedomain.DiscountService
	StructureSvc feedomain.StructureService
	DocumentSvc  feedomain.DocumentService
	AuthzSvc     authorization.Service
	AuditSvc     auditdomain.Service     `optional:"true"`
	WriteLimiter *ratelimit.WriteLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.server"),
		feeSvc:       p.FeeSvc,
		paymentSvc:   p.PaymentSvc,
		discountSvc:  p.DiscountSvc,
		structureSvc: p.StructureSvc,
		documentSvc:  p.DocumentSvc,
		authzSvc:     p.AuthzSvc,
		auditSvc:     p.AuditSvc,
	}
	if p.WriteLimiter != nil {
		svc.writeLimiter = p.WriteLimiter
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(TenantContext())
	api.Use(ActorContext())

	view := s.authorize(authorization.ObjectFee, authorization.ActionFeeView)
	audit := s.authorize(authorization.ObjectFee, authorization.ActionFeeAudit)
	write := s.WriteRateLimit()

	// -------- Students --------
	api.GET("/students/:id/fees", view, s.GetStudentFees)
	api.GET("/students/:id/fees/summary", view, s.GetStudentFeeSummary)
	api.GET("/students/:id/fees/statement", view, s.GetStudentFeeStatement)
	api.GET("/students/:id/fees/consistency", audit, s.ValidateStudentFees)

	// -------- Payments --------
	api.POST("/students/:id/payments", s.authorize(authorization.ObjectPayment, authorization.ActionPaymentRecord), write, s.RecordPayment)
	api.GET("/payments/:id/receipt", view, s.GetPaymentReceipt)

	// -------- Discounts --------
	manageDiscounts := s.authorize(authorization.ObjectDiscount, authorization.ActionDiscountManage)
	api.POST("/students/:id/discounts", manageDiscounts, write, s.CreateDiscount)
	api.PATCH("/discounts/:id", manageDiscounts, write, s.UpdateDiscount)
	api.DELETE("/discounts/:id", manageDiscounts, write, s.DeactivateDiscount)

	// -------- Classes --------
	api.GET("/classes/:id/fee-structure", view, s.GetClassFeeStructure)
	api.PATCH("/fee-structure/:id", s.authorize(authorization.ObjectFeeStructure, authorization.ActionFeeStructureManage), write, s.UpdateFeeComponent)
	api.POST("/classes/:id/fees/sync", audit, s.SyncClassFees)

	// -------- Parents --------
	api.GET("/parents/:id/fees", view, s.GetParentFees)

	// -------- Audit --------
	api.GET("/audit-logs", audit, s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
