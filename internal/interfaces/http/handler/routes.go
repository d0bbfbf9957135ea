package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/tradeco/backoffice/internal/interfaces/http/router"
)

// InvoiceRoutes creates the route group for invoice endpoints, including the
// per-invoice e-Factura operations.
func InvoiceRoutes(invoices *InvoiceHandler, efactura *EFacturaHandler, authMiddleware gin.HandlerFunc) *router.DomainGroup {
	group := router.NewDomainGroup("invoices", "/invoices")
	group.Use(authMiddleware)

	group.GET("", invoices.ListInvoices)
	group.GET("/:id", invoices.GetInvoice)
	group.POST("", invoices.CreateInvoice)
	group.POST("/:id/approve", invoices.ApproveInvoice)
	group.POST("/:id/reject", invoices.RejectInvoice)
	group.POST("/:id/cancel", invoices.CancelInvoice)

	// e-Factura submission lifecycle, scoped per invoice
	group.POST("/:id/efactura/submit", efactura.SubmitInvoice)
	group.POST("/:id/efactura/poll", efactura.PollInvoice)
	group.GET("/:id/efactura/download", efactura.DownloadSigned)

	return group
}

// EFacturaRoutes creates the route group for cross-invoice e-Factura operations
func EFacturaRoutes(handler *EFacturaHandler, authMiddleware gin.HandlerFunc) *router.DomainGroup {
	group := router.NewDomainGroup("efactura", "/efactura")
	group.Use(authMiddleware)

	group.POST("/poll", handler.PollAll)

	return group
}

// PaymentRoutes creates the route group for incoming payment endpoints
func PaymentRoutes(handler *PaymentHandler, authMiddleware gin.HandlerFunc) *router.DomainGroup {
	group := router.NewDomainGroup("payments", "/payments")
	group.Use(authMiddleware)

	group.GET("", handler.ListPayments)
	group.GET("/:id", handler.GetPayment)
	group.POST("", handler.RecordPayment)
	group.GET("/:id/allocations", handler.ListPaymentAllocations)
	group.POST("/:id/cancel", handler.CancelPayment)

	return group
}

// AllocationRoutes creates the route group for allocation endpoints
func AllocationRoutes(handler *AllocationHandler, authMiddleware gin.HandlerFunc) *router.DomainGroup {
	group := router.NewDomainGroup("allocations", "/allocations")
	group.Use(authMiddleware)

	group.POST("", handler.CreateAllocation)
	group.DELETE("/:id", handler.DeleteAllocation)

	return group
}

// CompensationRoutes creates the route group for compensation endpoints
func CompensationRoutes(handler *CompensationHandler, authMiddleware gin.HandlerFunc) *router.DomainGroup {
	group := router.NewDomainGroup("compensations", "/compensations")
	group.Use(authMiddleware)

	group.POST("", handler.Compensate)

	return group
}

// BalanceRoutes creates the route group for client balance endpoints
func BalanceRoutes(handler *BalanceHandler, authMiddleware gin.HandlerFunc) *router.DomainGroup {
	group := router.NewDomainGroup("clients", "/clients")
	group.Use(authMiddleware)

	group.GET("/:id/balance", handler.GetClientBalance)

	return group
}

// SettingsRoutes creates the route group for settings endpoints.
// Updating the company profile requires the admin role.
func SettingsRoutes(handler *SettingsHandler, authMiddleware, adminOnly gin.HandlerFunc) *router.DomainGroup {
	group := router.NewDomainGroup("settings", "/settings")
	group.Use(authMiddleware)

	group.GET("/company-profile", handler.GetCompanyProfile)
	group.PUT("/company-profile", adminOnly, handler.UpdateCompanyProfile)

	return group
}

// SystemRoutes creates the route group for system endpoints
func SystemRoutes(handler *SystemHandler) *router.DomainGroup {
	group := router.NewDomainGroup("system", "/system")

	group.GET("/info", handler.GetSystemInfo)
	group.GET("/ping", handler.Ping)

	return group
}
