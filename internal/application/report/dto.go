package report

import (
	"time"

	appfinance "github.com/erp/ledger/internal/application/finance"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PeriodFilter narrows a report to a sold_at / transaction_date window and
// optional channel or recording user
type PeriodFilter struct {
	From       *time.Time `form:"from" time_format:"2006-01-02" time_utc:"1"`
	To         *time.Time `form:"to" time_format:"2006-01-02" time_utc:"1"`
	Channel    string     `form:"channel"`
	RecordedBy string     `form:"user"`
}

// ProfitAndLossResponse is the profit and loss statement over a period
type ProfitAndLossResponse struct {
	From            *time.Time                `json:"from,omitempty"`
	To              *time.Time                `json:"to,omitempty"`
	Channel         string                    `json:"channel,omitempty"`
	RecordedBy      string                    `json:"recorded_by,omitempty"`
	Currency        string                    `json:"currency"`
	GrossRevenue    decimal.Decimal           `json:"gross_revenue"`
	Refunds         decimal.Decimal           `json:"refunds"`
	NetRevenue      decimal.Decimal           `json:"net_revenue"`
	COGS            decimal.Decimal           `json:"cogs"`
	Fees            decimal.Decimal           `json:"fees"`
	ReversedCOGS    decimal.Decimal           `json:"reversed_cogs"` // earlier sales returned in the period
	ReversedFees    decimal.Decimal           `json:"reversed_fees"`
	ReversedSales   int                       `json:"reversed_sales"`
	GrossProfit     decimal.Decimal           `json:"gross_profit"`
	InventoryLoss   decimal.Decimal           `json:"inventory_loss"`
	OperatingProfit decimal.Decimal           `json:"operating_profit"`
	PurchasingSpend decimal.Decimal           `json:"purchasing_spend"`
	NetCashFlow     decimal.Decimal           `json:"net_cash_flow"`
	SalesCount      int                       `json:"sales_count"` // not returned by the period end, write-offs excluded
	ZeroCostSales   int                       `json:"zero_cost_sales"`
	Ledger          *appfinance.LedgerSummary `json:"ledger"`
}

// UnitEconomicsRow aggregates the sales of one product
type UnitEconomicsRow struct {
	ProductID      *uuid.UUID      `json:"product_id,omitempty"`
	SalesCount     int             `json:"sales_count"`
	Units          decimal.Decimal `json:"units"`
	Revenue        decimal.Decimal `json:"revenue"`
	COGS           decimal.Decimal `json:"cogs"`
	Fees           decimal.Decimal `json:"fees"`
	Profit         decimal.Decimal `json:"profit"`
	RevenuePerUnit decimal.Decimal `json:"revenue_per_unit"`
	COGSPerUnit    decimal.Decimal `json:"cogs_per_unit"`
	FeesPerUnit    decimal.Decimal `json:"fees_per_unit"`
	ProfitPerUnit  decimal.Decimal `json:"profit_per_unit"`
	MarginPercent  decimal.Decimal `json:"margin_percent"`
	ZeroCostSales  int             `json:"zero_cost_sales"`
}

// UnitEconomicsResponse is per-product unit economics with a portfolio row
type UnitEconomicsResponse struct {
	From     *time.Time                `json:"from,omitempty"`
	To       *time.Time                `json:"to,omitempty"`
	Channel  string                    `json:"channel,omitempty"`
	Currency string                    `json:"currency"`
	Products []UnitEconomicsRow        `json:"products"`
	Total    UnitEconomicsRow          `json:"total"`
	Ledger   *appfinance.LedgerSummary `json:"ledger"`
}

// StockValuationRow is the valuation of one product
type StockValuationRow struct {
	ProductID           uuid.UUID       `json:"product_id"`
	Available           decimal.Decimal `json:"available"`
	WeightedAverageCost decimal.Decimal `json:"weighted_average_cost"`
	Value               decimal.Decimal `json:"value"`
}

// StockValuationResponse is the stock valuation with portfolio totals
type StockValuationResponse struct {
	GeneratedAt    time.Time           `json:"generated_at"`
	Currency       string              `json:"currency"`
	Products       []StockValuationRow `json:"products"`
	TotalAvailable decimal.Decimal     `json:"total_available"`
	TotalValue     decimal.Decimal     `json:"total_value"`
}

// RepricedSale is the FIFO re-pricing of a sale stored without cost
type RepricedSale struct {
	SaleID     uuid.UUID       `json:"sale_id"`
	ProductID  uuid.UUID       `json:"product_id"`
	Channel    string          `json:"channel"`
	SoldAt     time.Time       `json:"sold_at"`
	Quantity   decimal.Decimal `json:"quantity"`
	Revenue    decimal.Decimal `json:"revenue"`
	Fees       decimal.Decimal `json:"fees"`
	StoredCOGS decimal.Decimal `json:"stored_cogs"`
	UnitCOGS   decimal.Decimal `json:"unit_cogs"`
	TotalCOGS  decimal.Decimal `json:"total_cogs"`
	Shortfall  decimal.Decimal `json:"shortfall"`
	Profit     decimal.Decimal `json:"profit"`
}

// RepricedSalesResponse lists re-priced sales in sold_at order
type RepricedSalesResponse struct {
	From          *time.Time      `json:"from,omitempty"`
	To            *time.Time      `json:"to,omitempty"`
	Sales         []RepricedSale  `json:"sales"`
	TotalCOGS     decimal.Decimal `json:"total_cogs"`
	WithShortfall int             `json:"with_shortfall"`
}
