// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"ispledger/internal/domain"
	"ispledger/internal/domain/auth"
	"ispledger/internal/infrastructure/http/v1/handlers"
	"ispledger/internal/infrastructure/http/v1/middleware"
	"ispledger/internal/infrastructure/metrics"
	"ispledger/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Services is the wired domain layer
	Services *domain.Services

	// Idempotency stores X-Idempotency-Key responses. Nil disables the middleware.
	Idempotency middleware.IdempotencyStore

	// Metrics is optional; when set, GET /metrics is served.
	Metrics *metrics.Registry

	// Readiness lists the dependencies checked by /health/ready.
	Readiness map[string]handlers.ReadinessChecker

	// Debug switches gin into debug mode.
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}

	router := gin.New()

	var (
		httpObserver middleware.HTTPObserver
		opObserver   handlers.OperationObserver
	)
	if cfg.Metrics != nil {
		httpObserver = cfg.Metrics
		opObserver = cfg.Metrics
	}

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger, httpObserver))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Readiness)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))
		if cfg.Idempotency != nil {
			protected.Use(middleware.Idempotency(cfg.Idempotency))
		}

		base := handlers.NewBaseHandler(opObserver)
		registerCheckoutRoutes(protected, base, cfg.Services)
		registerLedgerRoutes(protected, base, cfg.Services)
		registerInstallationRoutes(protected, base, cfg.Services)
		registerInventoryRoutes(protected, base, cfg.Services)
	}

	return router
}

// registerCheckoutRoutes registers checkout and NOC approval endpoints.
func registerCheckoutRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, s *domain.Services) {
	handler := handlers.NewCheckoutHandler(base, s.Checkout)

	checkouts := rg.Group("/checkouts")
	RegisterReadRoutes(checkouts, handler)
	checkouts.POST("", middleware.RequirePermission(auth.PermCheckout), handler.Create)
	checkouts.POST("/:id/approve", middleware.RequirePermission(auth.PermApprove), handler.Approve)
	checkouts.POST("/:id/reject", middleware.RequirePermission(auth.PermApprove), handler.Reject)
}

// registerLedgerRoutes registers debts, settlements and technician limits.
func registerLedgerRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, s *domain.Services) {
	handler := handlers.NewLedgerHandler(base, s.Ledger, s.Policy)
	read := middleware.RequirePermission(auth.PermRead)

	debts := rg.Group("/debts")
	{
		debts.GET("", read, handler.ListDebts)
		debts.GET("/:id", read, handler.GetDebt)
		debts.POST("/returns", middleware.RequirePermission(auth.PermReturn), handler.Return)
		debts.POST("/:id/incident", middleware.RequirePermission(auth.PermReturn), handler.ReportIncident)
		debts.POST("/:id/write-off", middleware.RequirePermission(auth.PermWriteOff), handler.WriteOffDebt)
	}

	technicians := rg.Group("/technicians")
	{
		technicians.GET("/:id/debt-limit", read, handler.GetDebtLimit)
		technicians.PUT("/:id/debt-limit", middleware.RequirePermission(auth.PermApprove), handler.SetDebtLimit)
	}

	settlements := rg.Group("/settlements")
	{
		settlements.POST("", middleware.RequirePermission(auth.PermSettle), handler.Settle)
		settlements.GET("", read, handler.ListSettlements)
		settlements.GET("/:id", read, handler.GetSettlement)
	}
}

// registerInstallationRoutes registers customer installation endpoints.
func registerInstallationRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, s *domain.Services) {
	handler := handlers.NewInstallationHandler(base, s.Installation)
	install := middleware.RequirePermission(auth.PermInstall)

	installations := rg.Group("/installations")
	RegisterReadRoutes(installations, handler)
	installations.POST("", install, handler.Create)
	installations.POST("/:id/remove", install, handler.Remove)
	installations.POST("/:id/replace", install, handler.Replace)
	installations.POST("/:id/audit-length", install, handler.AuditLength)
}

// registerInventoryRoutes registers assets, tracked units and unit maintenance.
func registerInventoryRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, s *domain.Services) {
	inv := handlers.NewInventoryHandler(base, s.Inventory)
	manage := middleware.RequirePermission(auth.PermInventoryManage)
	read := middleware.RequirePermission(auth.PermRead)

	assets := rg.Group("/assets")
	{
		assets.POST("", manage, inv.CreateAsset)
		assets.GET("", read, inv.ListAssets)
		assets.GET("/:id", read, inv.GetAsset)
		assets.POST("/:id/receipts", manage, inv.Receipt)
	}

	units := rg.Group("/units")
	{
		units.POST("", manage, inv.RegisterUnit)
		units.GET("", read, inv.ListUnits)
		units.GET("/:id", read, inv.GetUnit)
		units.POST("/:id/dispatch", manage, inv.Dispatch)
		units.POST("/:id/receive", manage, inv.Receive)
		units.POST("/:id/audit-length", manage, inv.AuditLength)
	}

	RegisterUnitMaintenanceRoutes(units.Group("/:id"), handlers.NewMaintenanceHandler(base, s.Maintenance))
}
