package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	accountdomain "github.com/rollcallhq/rollcall/internal/account/domain"
	catalogdomain "github.com/rollcallhq/rollcall/internal/catalog/domain"
	"github.com/rollcallhq/rollcall/internal/config"
	identitydomain "github.com/rollcallhq/rollcall/internal/identity/domain"
	"github.com/rollcallhq/rollcall/internal/observability"
	orgdomain "github.com/rollcallhq/rollcall/internal/organization/domain"
	paymentdomain "github.com/rollcallhq/rollcall/internal/payment/domain"
	"github.com/rollcallhq/rollcall/internal/providers/pdf"
	quotadomain "github.com/rollcallhq/rollcall/internal/quota/domain"
	subscriptiondomain "github.com/rollcallhq/rollcall/internal/subscription/domain"
	usagedomain "github.com/rollcallhq/rollcall/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, httpMetrics *observability.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Named("http")))
	r.Use(observability.Tracing())
	r.Use(httpMetrics.Middleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
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
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	redis           *goredis.Client
	genID           *snowflake.Node
	accountSvc      accountdomain.Service
	organizationSvc orgdomain.Service
	usageSvc        usagedomain.Service
	quotaSvc        quotadomain.Service
	subscriptionSvc subscriptiondomain.Service
	catalogSvc      catalogdomain.Service
	identitySvc     identitydomain.Service
	paymentSvc      paymentdomain.Service
	pdfProvider     pdf.Provider
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	Redis           *goredis.Client
	GenID           *snowflake.Node
	AccountSvc      accountdomain.Service
	OrganizationSvc orgdomain.Service
	UsageSvc        usagedomain.Service
	QuotaSvc        quotadomain.Service
	SubscriptionSvc subscriptiondomain.Service
	CatalogSvc      catalogdomain.Service
	IdentitySvc     identitydomain.Service
	PaymentSvc      paymentdomain.Service
	PDFProvider     pdf.Provider
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		redis:           p.Redis,
		genID:           p.GenID,
		accountSvc:      p.AccountSvc,
		organizationSvc: p.OrganizationSvc,
		usageSvc:        p.UsageSvc,
		quotaSvc:        p.QuotaSvc,
		subscriptionSvc: p.SubscriptionSvc,
		catalogSvc:      p.CatalogSvc,
		identitySvc:     p.IdentitySvc,
		paymentSvc:      p.PaymentSvc,
		pdfProvider:     p.PDFProvider,
	}

	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", s.Health)
	s.engine.GET("/readiness", s.Readiness)

	auth := s.engine.Group("/auth")
	{
		auth.POST("/signup", s.Signup)
		auth.POST("/login", s.Login)
		auth.POST("/tokens", s.AuthRequired(), s.IssueToken)
		auth.DELETE("/tokens/:id", s.AuthRequired(), s.RevokeToken)
		auth.POST("/password", s.AuthRequired(), s.SetPassword)
	}

	api := s.engine.Group("/api")

	// -------- Catalog --------
	api.GET("/catalog/packages", s.ListPackages)

	// -------- Accounts --------
	api.POST("/accounts", s.AuthRequired(), s.CreateAccount)
	api.POST("/accounts/bulk", s.AuthRequired(), s.BulkCreateAccounts)
	api.GET("/accounts/:id", s.AuthRequired(), s.GetAccount)
	api.DELETE("/accounts/:id", s.AuthRequired(), s.DeleteAccount)
	api.GET("/children", s.AuthRequired(), s.ListChildren)

	// -------- Organizations --------
	api.POST("/organizations", s.AuthRequired(), s.CreateOrganization)
	api.GET("/organizations", s.AuthRequired(), s.ListOrganizations)
	api.GET("/organizations/:id", s.AuthRequired(), s.GetOrganization)
	api.DELETE("/organizations/:id", s.AuthRequired(), s.DeleteOrganization)

	// -------- Usage and quota --------
	api.GET("/usage", s.AuthRequired(), s.GetUsage)
	api.POST("/usage/refresh", s.AuthRequired(), s.RefreshUsage)
	api.GET("/quota/check", s.AuthRequired(), s.CheckQuota)

	// -------- Subscription --------
	api.GET("/subscription", s.AuthRequired(), s.GetSubscription)
	api.POST("/subscription", s.AuthRequired(), s.StartSubscription)
	api.POST("/subscription/plan", s.AuthRequired(), s.ChangePlan)
	api.POST("/subscription/cancel", s.AuthRequired(), s.CancelSubscription)
	api.GET("/subscription/statement.pdf", s.AuthRequired(), s.DownloadStatement)

	// -------- Payments --------
	api.POST("/payments/webhooks/:provider", s.HandlePaymentWebhook)
	api.GET("/payments/events", s.AuthRequired(), s.ListPaymentEvents)
}
