package router

import (
	"github.com/erp/bff/internal/interfaces/http/handler"
)

// Handlers are the API handlers mounted under /api/v1
type Handlers struct {
	Auth            *handler.AuthHandler
	Company         *handler.CompanyHandler
	Resource        *handler.ResourceHandler
	Fiscal          *handler.FiscalHandler
	SalesInvoice    *handler.SalesInvoiceHandler
	PurchaseInvoice *handler.PurchaseInvoiceHandler
	Inventory       *handler.InventoryHandler
	System          *handler.SystemHandler
}

// DomainGroups builds the route groups of the API
func DomainGroups(h Handlers) []*DomainGroup {
	authRoutes := NewDomainGroup("auth", "/auth").
		POST("/login", h.Auth.Login).
		POST("/logout", h.Auth.Logout).
		GET("/me", h.Auth.Me).
		POST("/switch-company", h.Auth.SwitchCompany).
		POST("/refresh", h.Auth.Refresh)

	companyRoutes := NewDomainGroup("companies", "/companies").
		GET("", h.Company.List).
		GET("/current/profile", h.Company.CurrentProfile)

	resourceRoutes := NewDomainGroup("resources", "/resources/:resource").
		GET("", h.Resource.List).
		POST("", h.Resource.Create).
		GET("/:name", h.Resource.Get).
		PUT("/:name", h.Resource.Update).
		DELETE("/:name", h.Resource.Delete)

	fiscalRoutes := NewDomainGroup("fiscal", "/fiscal").
		GET("/voucher-types", h.Fiscal.VoucherTypes).
		GET("/cuit/:cuit", h.Fiscal.CheckCUIT).
		POST("/letter", h.Fiscal.Letter).
		GET("/names/:name", h.Fiscal.ParseName)

	salesRoutes := NewDomainGroup("sales-invoices", "/sales-invoices").
		GET("", h.SalesInvoice.List).
		POST("", h.SalesInvoice.Create).
		GET("/vat-book", h.SalesInvoice.VATBook).
		GET("/vat-book/export", h.SalesInvoice.ExportVATBook).
		GET("/:name", h.SalesInvoice.Get).
		POST("/:name/submit", h.SalesInvoice.Submit).
		POST("/:name/cancel", h.SalesInvoice.Cancel).
		POST("/:name/archive", h.SalesInvoice.Archive)

	purchaseRoutes := NewDomainGroup("purchase-invoices", "/purchase-invoices").
		POST("", h.PurchaseInvoice.Register)

	withholdingRoutes := NewDomainGroup("withholdings", "/withholdings").
		POST("/preview", h.PurchaseInvoice.PreviewWithholding)

	inventoryRoutes := NewDomainGroup("inventory", "/inventory").
		GET("/warehouses", h.Inventory.Warehouses).
		GET("/stock", h.Inventory.Stock)
	inventoryRoutes.Group("reconciliations", "/reconciliations").
		POST("", h.Inventory.ApplyReconciliation).
		POST("/preview", h.Inventory.PreviewReconciliation).
		POST("/export", h.Inventory.ExportReconciliation).
		POST("/import", h.Inventory.ImportReconciliation)

	systemRoutes := NewDomainGroup("system", "/system").
		GET("/info", h.System.GetSystemInfo)

	return []*DomainGroup{
		authRoutes,
		companyRoutes,
		resourceRoutes,
		fiscalRoutes,
		salesRoutes,
		purchaseRoutes,
		withholdingRoutes,
		inventoryRoutes,
		systemRoutes,
	}
}
