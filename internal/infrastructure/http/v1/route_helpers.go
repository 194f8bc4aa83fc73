package v1

import (
	"github.com/gin-gonic/gin"

	"ispledger/internal/domain/auth"
	"ispledger/internal/infrastructure/http/v1/middleware"
)

// ReadRouteHandler is implemented by resources listed and fetched by ID.
type ReadRouteHandler interface {
	List(c *gin.Context)
	Get(c *gin.Context)
}

// UnitMaintenanceRouteHandler covers the after-service lifecycle of a tracked unit.
type UnitMaintenanceRouteHandler interface {
	StartRepair(c *gin.Context)
	CompleteRepair(c *gin.Context)
	FailRepair(c *gin.Context)
	SendToSupplier(c *gin.Context)
	ReceiveFromSupplier(c *gin.Context)
	RejectBySupplier(c *gin.Context)
	WriteOff(c *gin.Context)
	History(c *gin.Context)
}

// RegisterReadRoutes registers GET "" and GET "/:id" behind the read permission.
//
// Usage:
//
//	handler := handlers.NewCheckoutHandler(base, services.Checkout)
//	RegisterReadRoutes(rg.Group("/checkouts"), handler)
func RegisterReadRoutes(group *gin.RouterGroup, handler ReadRouteHandler) {
	group.GET("", middleware.RequirePermission(auth.PermRead), handler.List)
	group.GET("/:id", middleware.RequirePermission(auth.PermRead), handler.Get)
}

// RegisterUnitMaintenanceRoutes registers repair, supplier and write-off routes
// on a "/units/:id" group. History is readable with the read permission.
func RegisterUnitMaintenanceRoutes(group *gin.RouterGroup, handler UnitMaintenanceRouteHandler) {
	manage := middleware.RequirePermission(auth.PermMaintenance)

	repair := group.Group("/repair")
	repair.POST("/start", manage, handler.StartRepair)
	repair.POST("/complete", manage, handler.CompleteRepair)
	repair.POST("/fail", manage, handler.FailRepair)

	supplier := group.Group("/supplier")
	supplier.POST("/send", manage, handler.SendToSupplier)
	supplier.POST("/receive", manage, handler.ReceiveFromSupplier)
	supplier.POST("/reject", manage, handler.RejectBySupplier)

	group.POST("/write-off", middleware.RequirePermission(auth.PermWriteOff), handler.WriteOff)
	group.GET("/history", middleware.RequirePermission(auth.PermRead), handler.History)
}
