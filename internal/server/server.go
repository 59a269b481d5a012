package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/societybill/internal/authorization"
	"github.com/smallbiznis/societybill/internal/bill"
	billdomain "github.com/smallbiznis/societybill/internal/bill/domain"
	"github.com/smallbiznis/societybill/internal/config"
	"github.com/smallbiznis/societybill/internal/maintenancerule"
	ruledomain "github.com/smallbiznis/societybill/internal/maintenancerule/domain"
	"github.com/smallbiznis/societybill/internal/observability"
	obsmiddleware "github.com/smallbiznis/societybill/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/societybill/internal/observability/metrics"
	obstracing "github.com/smallbiznis/societybill/internal/observability/tracing"
	"github.com/smallbiznis/societybill/internal/unit"
	unitdomain "github.com/smallbiznis/societybill/internal/unit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	unit.Module,
	maintenancerule.Module,
	bill.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.Middleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
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
	engine   *gin.Engine
	cfg      config.Config
	authzSvc authorization.Service
	ruleSvc  ruledomain.Service
	billSvc  billdomain.Service
	units    unitdomain.Directory
}

type ServerParams struct {
	fx.In

	Gin      *gin.Engine
	Cfg      config.Config
	AuthzSvc authorization.Service
	RuleSvc  ruledomain.Service
	BillSvc  billdomain.Service
	Units    unitdomain.Directory
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:   p.Gin,
		cfg:      p.Cfg,
		authzSvc: p.AuthzSvc,
		ruleSvc:  p.RuleSvc,
		billSvc:  p.BillSvc,
		units:    p.Units,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) registerAPIRoutes() {
	society := s.engine.Group("/api/societies/:society_id", s.Authenticated())

	rules := society.Group("/rules")
	{
		rules.POST("", s.authorize(authorization.ObjectMaintenanceRule, authorization.ActionRuleManage), s.CreateRule)
		rules.GET("", s.authorize(authorization.ObjectMaintenanceRule, authorization.ActionRuleView), s.ListRules)
		rules.GET("/:id", s.authorize(authorization.ObjectMaintenanceRule, authorization.ActionRuleView), s.GetRule)
		rules.PATCH("/:id", s.authorize(authorization.ObjectMaintenanceRule, authorization.ActionRuleManage), s.UpdateRule)
		rules.POST("/:id/activate", s.authorize(authorization.ObjectMaintenanceRule, authorization.ActionRuleManage), s.ActivateRule)
		rules.POST("/:id/deactivate", s.authorize(authorization.ObjectMaintenanceRule, authorization.ActionRuleManage), s.DeactivateRule)
	}

	society.GET("/units/:unit_id/applicable-rule",
		s.authorize(authorization.ObjectUnit, authorization.ActionUnitResolveRule),
		s.GetApplicableRule,
	)

	bills := society.Group("/bills")
	{
		bills.POST("", s.authorize(authorization.ObjectMaintenanceBill, authorization.ActionBillGenerate), s.GenerateBill)
		bills.POST("/generate-month", s.authorize(authorization.ObjectMaintenanceBill, authorization.ActionBillGenerate), s.GenerateMonth)
		bills.GET("", s.authorize(authorization.ObjectMaintenanceBill, authorization.ActionBillView), s.ListBills)
		bills.GET("/:id", s.authorize(authorization.ObjectMaintenanceBill, authorization.ActionBillView), s.GetBill)
		bills.POST("/:id/payments", s.authorize(authorization.ObjectMaintenanceBill, authorization.ActionBillPay), s.RecordPayment)
	}
}
