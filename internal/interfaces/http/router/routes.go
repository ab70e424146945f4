package router

import (
	"github.com/erp/ledger/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
)

// Handlers bundles every ledger handler the API exposes
type Handlers struct {
	PurchaseOrders *handler.PurchaseOrderHandler
	Sales          *handler.SaleHandler
	Lots           *handler.LotHandler
	Reports        *handler.ReportHandler
	Finance        *handler.FinanceHandler
	Imports        *handler.ImportHandler
	System         *handler.SystemHandler
}

// LedgerGroups builds the route groups of the ledger API. idempotent guards
// every POST that changes the ledger; nil leaves them unguarded.
func LedgerGroups(h Handlers, idempotent gin.HandlerFunc) []RouteRegistrar {
	write := func(fn gin.HandlerFunc) []gin.HandlerFunc {
		if idempotent == nil {
			return []gin.HandlerFunc{fn}
		}
		return []gin.HandlerFunc{idempotent, fn}
	}

	orders := NewDomainGroup("purchase-orders", "/purchase-orders").
		POST("", write(h.PurchaseOrders.Create)...).
		GET("", h.PurchaseOrders.List).
		GET("/:id", h.PurchaseOrders.GetByID).
		POST("/:id/order", write(h.PurchaseOrders.MarkOrdered)...).
		POST("/:id/ship", write(h.PurchaseOrders.MarkShipped)...).
		POST("/:id/cancel", write(h.PurchaseOrders.Cancel)...).
		POST("/:id/receive", write(h.PurchaseOrders.Receive)...).
		POST("/:id/unreceive", write(h.PurchaseOrders.Unreceive)...)

	sales := NewDomainGroup("sales", "/sales").
		POST("", write(h.Sales.Create)...).
		POST("/import", write(h.Imports.ImportSales)...).
		GET("/:id", h.Sales.GetByID).
		POST("/:id/return", write(h.Sales.Return)...)

	writeOffs := NewDomainGroup("write-offs", "/write-offs").
		POST("", write(h.Sales.WriteOff)...)

	lots := NewDomainGroup("lots", "/lots").
		POST("/opening-balance", write(h.Lots.CreateOpeningBalance)...).
		POST("/opening-balance/import", write(h.Imports.ImportOpeningBalances)...)

	products := NewDomainGroup("products", "/products").
		GET("/:id/lots", h.Lots.ListLots).
		GET("/:id/availability", h.Lots.Availability).
		GET("/:id/cost", h.Lots.Cost)

	reports := NewDomainGroup("reports", "/reports").
		GET("/pnl", h.Reports.ProfitAndLoss).
		GET("/unit-economics", h.Reports.UnitEconomics).
		GET("/stock-valuation", h.Reports.StockValuation).
		GET("/stock-valuation/export", h.Reports.ExportStockValuation).
		GET("/repriced-sales", h.Reports.RepricedSales)

	finance := NewDomainGroup("finance", "/finance").
		GET("/transactions", h.Finance.ListTransactions).
		GET("/summary", h.Finance.Summary)

	system := NewDomainGroup("system", "/system").
		GET("/info", h.System.GetSystemInfo).
		GET("/ping", h.System.Ping)

	return []RouteRegistrar{orders, sales, writeOffs, lots, products, reports, finance, system}
}
