package trade

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/domain/shared/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WriteOffChannel is the channel of synthetic sales that record shrinkage
const WriteOffChannel = "write-off"

// SaleStatus represents the status of a sale
type SaleStatus string

const (
	SaleStatusActive    SaleStatus = "active"
	SaleStatusDelivered SaleStatus = "delivered"
	SaleStatusReturned  SaleStatus = "returned"
)

// ConsumingSaleStatuses are the statuses whose quantity counts as sold stock
var ConsumingSaleStatuses = []SaleStatus{SaleStatusActive, SaleStatusDelivered}

// IsValid checks if the status is a valid SaleStatus
func (s SaleStatus) IsValid() bool {
	switch s {
	case SaleStatusActive, SaleStatusDelivered, SaleStatusReturned:
		return true
	}
	return false
}

// String returns the string representation of SaleStatus
func (s SaleStatus) String() string {
	return string(s)
}

// IsConsuming reports whether a sale in this status holds stock
func (s SaleStatus) IsConsuming() bool {
	return s == SaleStatusActive || s == SaleStatusDelivered
}

// CanTransitionTo checks if the status can transition to the target status
func (s SaleStatus) CanTransitionTo(target SaleStatus) bool {
	switch s {
	case SaleStatusActive:
		return target == SaleStatusDelivered || target == SaleStatusReturned
	case SaleStatusDelivered:
		return target == SaleStatusReturned
	case SaleStatusReturned:
		return false // Terminal
	}
	return false
}

// Fee is one marketplace fee charged against a sale
type Fee struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// SaleDraft carries the caller-supplied fields of a new sale
type SaleDraft struct {
	Channel        string
	ChannelOrderID string
	ChannelSKU     string
	ProductID      *uuid.UUID
	Quantity       decimal.Decimal
	PricePerUnit   decimal.Decimal
	Fees           []Fee
	Status         SaleStatus
	SoldAt         time.Time
	Note           string
	RecordedBy     string
}

// Sale is the aggregate root for a captured sale, including write-offs
type Sale struct {
	shared.BaseAggregateRoot
	Channel        string
	ChannelOrderID string
	ChannelSKU     string
	ProductID      *uuid.UUID
	Quantity       decimal.Decimal
	PricePerUnit   decimal.Decimal
	Revenue        decimal.Decimal
	UnitCOGS       decimal.Decimal
	TotalCOGS      decimal.Decimal
	Fees           []Fee
	CostingMethod  strategy.CostMethod
	LotAllocations []strategy.LotAllocation
	Status         SaleStatus
	SoldAt         time.Time
	ReturnedAt     *time.Time
	Note           string
	RecordedBy     string
}

// NewSale validates a draft and creates an uncosted sale. The status defaults
// to delivered; creating a sale directly as returned is rejected.
func NewSale(d SaleDraft) (*Sale, error) {
	channel := strings.TrimSpace(d.Channel)
	if channel == "" {
		return nil, shared.NewInvalidInputError("sale channel cannot be empty")
	}
	if !d.Quantity.IsPositive() {
		return nil, shared.NewInvalidInputError("sale quantity must be positive")
	}
	if d.PricePerUnit.IsNegative() {
		return nil, shared.NewInvalidInputError("price per unit cannot be negative")
	}
	if d.ProductID != nil && *d.ProductID == uuid.Nil {
		return nil, shared.NewInvalidInputError("product reference cannot be the nil UUID")
	}
	for _, f := range d.Fees {
		if f.Amount.IsNegative() {
			return nil, shared.NewInvalidInputError(fmt.Sprintf("fee %q cannot be negative", f.Name))
		}
	}

	status := d.Status
	if status == "" {
		status = SaleStatusDelivered
	}
	if !status.IsValid() {
		return nil, shared.NewInvalidInputError(fmt.Sprintf("unknown sale status %q", status))
	}
	if status == SaleStatusReturned {
		return nil, shared.NewInvalidTransitionError("sale", "new", SaleStatusReturned.String())
	}

	soldAt := d.SoldAt
	if soldAt.IsZero() {
		soldAt = time.Now()
	}

	sale := &Sale{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Channel:           channel,
		ChannelOrderID:    d.ChannelOrderID,
		ChannelSKU:        d.ChannelSKU,
		ProductID:         d.ProductID,
		Quantity:          d.Quantity,
		PricePerUnit:      d.PricePerUnit,
		Revenue:           shared.RoundMoney(d.Quantity.Mul(d.PricePerUnit)),
		UnitCOGS:          decimal.Zero,
		TotalCOGS:         decimal.Zero,
		Fees:              d.Fees,
		CostingMethod:     strategy.CostMethodNone,
		Status:            status,
		SoldAt:            soldAt,
		Note:              d.Note,
		RecordedBy:        d.RecordedBy,
	}
	// The natural key must stay unique among live sales; manual entries
	// without an external order reference get their own ID.
	if sale.ChannelOrderID == "" {
		sale.ChannelOrderID = sale.ID.String()
	}
	return sale, nil
}

// NewWriteOff creates the synthetic delivered sale that books shrinkage
func NewWriteOff(productID uuid.UUID, quantity decimal.Decimal, reason string, now time.Time) (*Sale, error) {
	if productID == uuid.Nil {
		return nil, shared.NewInvalidInputError("write-off requires a product")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, shared.NewInvalidInputError("write-off reason cannot be empty")
	}
	return NewSale(SaleDraft{
		Channel:      WriteOffChannel,
		ProductID:    &productID,
		Quantity:     quantity,
		PricePerUnit: decimal.Zero,
		Status:       SaleStatusDelivered,
		SoldAt:       now,
		Note:         reason,
	})
}

// HasProduct reports whether the sale references a product
func (s *Sale) HasProduct() bool {
	return s.ProductID != nil && *s.ProductID != uuid.Nil
}

// IsWriteOff reports whether the sale is a synthetic write-off
func (s *Sale) IsWriteOff() bool {
	return s.Channel == WriteOffChannel
}

// ApplyCost stores the outcome of the costing policy that priced the sale
func (s *Sale) ApplyCost(method strategy.CostMethod, unitCOGS, totalCOGS decimal.Decimal) {
	s.CostingMethod = method
	s.UnitCOGS = unitCOGS
	s.TotalCOGS = totalCOGS
	s.UpdatedAt = time.Now()
}

// RecordConsumption keeps the lot draws of a FIFO commit so a return can
// put them back
func (s *Sale) RecordConsumption(allocations []strategy.LotAllocation) {
	s.LotAllocations = allocations
}

// ConsumedLots reports whether returning the sale must restore lots
func (s *Sale) ConsumedLots() bool {
	return s.CostingMethod == strategy.CostMethodFIFO && len(s.LotAllocations) > 0
}

// AppendNote adds a line to the sale note
func (s *Sale) AppendNote(line string) {
	if s.Note == "" {
		s.Note = line
		return
	}
	s.Note = s.Note + "\n" + line
}

// TotalFees sums fee line items
func (s *Sale) TotalFees() decimal.Decimal {
	total := decimal.Zero
	for _, f := range s.Fees {
		total = total.Add(f.Amount)
	}
	return total
}

// Profit is revenue less cost of goods and fees. It is reported, not stored.
func (s *Sale) Profit() decimal.Decimal {
	return s.Revenue.Sub(s.TotalCOGS).Sub(s.TotalFees())
}

// MarkDelivered moves an active sale to delivered
func (s *Sale) MarkDelivered(now time.Time) error {
	if !s.Status.CanTransitionTo(SaleStatusDelivered) {
		return shared.NewInvalidTransitionError("sale", s.Status.String(), SaleStatusDelivered.String())
	}
	s.Status = SaleStatusDelivered
	s.UpdatedAt = now
	return nil
}

// Return moves the sale to its terminal returned state
func (s *Sale) Return(now time.Time) error {
	if !s.Status.CanTransitionTo(SaleStatusReturned) {
		return shared.NewInvalidTransitionError("sale", s.Status.String(), SaleStatusReturned.String())
	}
	s.Status = SaleStatusReturned
	s.ReturnedAt = &now
	s.UpdatedAt = now
	s.AddDomainEvent(NewSaleReturnedEvent(s))
	return nil
}
