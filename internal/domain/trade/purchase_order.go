package trade

import (
	"fmt"
	"sort"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseOrderStatus represents the status of a purchase order
type PurchaseOrderStatus string

const (
	PurchaseOrderStatusDraft     PurchaseOrderStatus = "draft"
	PurchaseOrderStatusOrdered   PurchaseOrderStatus = "ordered"
	PurchaseOrderStatusShipped   PurchaseOrderStatus = "shipped"
	PurchaseOrderStatusReceived  PurchaseOrderStatus = "received"
	PurchaseOrderStatusCancelled PurchaseOrderStatus = "cancelled"
)

// IsValid checks if the status is a valid PurchaseOrderStatus
func (s PurchaseOrderStatus) IsValid() bool {
	switch s {
	case PurchaseOrderStatusDraft, PurchaseOrderStatusOrdered, PurchaseOrderStatusShipped,
		PurchaseOrderStatusReceived, PurchaseOrderStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of PurchaseOrderStatus
func (s PurchaseOrderStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status.
// received -> draft is only reachable through Unreceive.
func (s PurchaseOrderStatus) CanTransitionTo(target PurchaseOrderStatus) bool {
	switch s {
	case PurchaseOrderStatusDraft:
		return target == PurchaseOrderStatusOrdered || target == PurchaseOrderStatusReceived || target == PurchaseOrderStatusCancelled
	case PurchaseOrderStatusOrdered:
		return target == PurchaseOrderStatusShipped || target == PurchaseOrderStatusReceived || target == PurchaseOrderStatusCancelled
	case PurchaseOrderStatusShipped:
		return target == PurchaseOrderStatusReceived || target == PurchaseOrderStatusCancelled
	case PurchaseOrderStatusReceived:
		return target == PurchaseOrderStatusDraft
	case PurchaseOrderStatusCancelled:
		return false
	}
	return false
}

// LineStatus represents the receiving status of a purchase order line
type LineStatus string

const (
	LineStatusPending   LineStatus = "pending"
	LineStatusPartial   LineStatus = "partial"
	LineStatusReceived  LineStatus = "received"
	LineStatusCancelled LineStatus = "cancelled"
)

// IsValid checks if the status is a valid LineStatus
func (s LineStatus) IsValid() bool {
	switch s {
	case LineStatusPending, LineStatusPartial, LineStatusReceived, LineStatusCancelled:
		return true
	}
	return false
}

// IsProcessed reports whether a receipt already produced cost and a lot for the line
func (s LineStatus) IsProcessed() bool {
	return s == LineStatusPartial || s == LineStatusReceived
}

// SharedCost is an order-level cost apportioned evenly across received lines
type SharedCost struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// LineCosts are the per-line cost components added on top of the purchase price
type LineCosts struct {
	Packaging decimal.Decimal
	Logistics decimal.Decimal
	Customs   decimal.Decimal
	Extra     decimal.Decimal
}

// Sum adds all components
func (c LineCosts) Sum() decimal.Decimal {
	return shared.SumMoney(c.Packaging, c.Logistics, c.Customs, c.Extra)
}

func (c LineCosts) validate() error {
	for name, v := range map[string]decimal.Decimal{
		"packaging": c.Packaging,
		"logistics": c.Logistics,
		"customs":   c.Customs,
		"extra":     c.Extra,
	} {
		if v.IsNegative() {
			return shared.NewInvalidInputError(fmt.Sprintf("%s cost cannot be negative", name))
		}
	}
	return nil
}

// PurchaseOrderLine is a product line within a purchase order.
// PurchasePrice is the purchase amount for the line as a whole, not per unit.
type PurchaseOrderLine struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	ProductID     uuid.UUID
	OrderedQty    decimal.Decimal
	ReceivedQty   decimal.Decimal
	PurchasePrice decimal.Decimal
	Costs         LineCosts
	UnitCost      decimal.Decimal
	TotalCost     decimal.Decimal
	Status        LineStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LandedUnitCost apportions a line's purchase price, own costs and its share of
// order-level costs over the received quantity. The unit cost is rounded to the
// ledger minor unit first and the total is derived from the rounded unit cost.
func LandedUnitCost(purchasePrice decimal.Decimal, costs LineCosts, sharedPerItem, receivedQty decimal.Decimal) (unitCost, totalCost decimal.Decimal) {
	if !receivedQty.IsPositive() {
		return decimal.Zero, decimal.Zero
	}
	individual := costs.Sum().Add(sharedPerItem)
	unitCost = shared.RoundMoney(purchasePrice.Add(individual).Div(receivedQty))
	totalCost = shared.RoundMoney(unitCost.Mul(receivedQty))
	return unitCost, totalCost
}

// PurchaseOrder is the aggregate root for supplier purchasing
type PurchaseOrder struct {
	shared.BaseAggregateRoot
	SupplierRef string
	Status      PurchaseOrderStatus
	OrderedAt   *time.Time
	ExpectedAt  *time.Time
	ReceivedAt  *time.Time
	SharedCosts []SharedCost
	Lines       []PurchaseOrderLine
}

// NewPurchaseOrder creates a draft purchase order
func NewPurchaseOrder(supplierRef string, expectedAt *time.Time, sharedCosts []SharedCost) (*PurchaseOrder, error) {
	if supplierRef == "" {
		return nil, shared.NewInvalidInputError("supplier reference cannot be empty")
	}
	for _, c := range sharedCosts {
		if c.Amount.IsNegative() {
			return nil, shared.NewInvalidInputError(fmt.Sprintf("shared cost %q cannot be negative", c.Name))
		}
	}

	order := &PurchaseOrder{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SupplierRef:       supplierRef,
		Status:            PurchaseOrderStatusDraft,
		ExpectedAt:        expectedAt,
		SharedCosts:       sharedCosts,
		Lines:             make([]PurchaseOrderLine, 0),
	}
	order.AddDomainEvent(NewPurchaseOrderCreatedEvent(order))
	return order, nil
}

// AddLine appends a product line; only draft orders can be edited
func (o *PurchaseOrder) AddLine(productID uuid.UUID, orderedQty, purchasePrice decimal.Decimal, costs LineCosts) (*PurchaseOrderLine, error) {
	if o.Status != PurchaseOrderStatusDraft {
		return nil, shared.NewInvalidTransitionError("purchase order", o.Status.String(), "edited")
	}
	if productID == uuid.Nil {
		return nil, shared.NewInvalidInputError("line product cannot be empty")
	}
	if !orderedQty.IsPositive() {
		return nil, shared.NewInvalidInputError("ordered quantity must be positive")
	}
	if purchasePrice.IsNegative() {
		return nil, shared.NewInvalidInputError("purchase price cannot be negative")
	}
	if err := costs.validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	o.Lines = append(o.Lines, PurchaseOrderLine{
		ID:            uuid.New(),
		OrderID:       o.ID,
		ProductID:     productID,
		OrderedQty:    orderedQty,
		ReceivedQty:   decimal.Zero,
		PurchasePrice: purchasePrice,
		Costs:         costs,
		UnitCost:      decimal.Zero,
		TotalCost:     decimal.Zero,
		Status:        LineStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	o.UpdatedAt = now
	return &o.Lines[len(o.Lines)-1], nil
}

// TotalSharedCost sums the order-level shared costs
func (o *PurchaseOrder) TotalSharedCost() decimal.Decimal {
	total := decimal.Zero
	for _, c := range o.SharedCosts {
		total = total.Add(c.Amount)
	}
	return total
}

// GetLine returns the line with the given ID or nil
func (o *PurchaseOrder) GetLine(lineID uuid.UUID) *PurchaseOrderLine {
	for i := range o.Lines {
		if o.Lines[i].ID == lineID {
			return &o.Lines[i]
		}
	}
	return nil
}

// ProductIDs returns the distinct products on the order, sorted
func (o *PurchaseOrder) ProductIDs() []uuid.UUID {
	return distinctProducts(o.Lines, func(PurchaseOrderLine) bool { return true })
}

// ReceivedProductIDs returns the distinct products with a received quantity, sorted
func (o *PurchaseOrder) ReceivedProductIDs() []uuid.UUID {
	return distinctProducts(o.Lines, func(l PurchaseOrderLine) bool { return l.ReceivedQty.IsPositive() })
}

func distinctProducts(lines []PurchaseOrderLine, keep func(PurchaseOrderLine) bool) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	out := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		if !keep(l) {
			continue
		}
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		out = append(out, l.ProductID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// MarkOrdered moves a draft order to ordered
func (o *PurchaseOrder) MarkOrdered(now time.Time) error {
	if err := o.transition(PurchaseOrderStatusOrdered); err != nil {
		return err
	}
	if len(o.Lines) == 0 {
		return shared.NewInvalidInputError("cannot order a purchase order without lines")
	}
	o.Status = PurchaseOrderStatusOrdered
	o.OrderedAt = &now
	o.UpdatedAt = now
	return nil
}

// MarkShipped moves an ordered order to shipped
func (o *PurchaseOrder) MarkShipped(now time.Time) error {
	if err := o.transition(PurchaseOrderStatusShipped); err != nil {
		return err
	}
	o.Status = PurchaseOrderStatusShipped
	o.UpdatedAt = now
	return nil
}

// Cancel cancels an order that has not been received
func (o *PurchaseOrder) Cancel(now time.Time) error {
	if err := o.transition(PurchaseOrderStatusCancelled); err != nil {
		return err
	}
	o.Status = PurchaseOrderStatusCancelled
	for i := range o.Lines {
		o.Lines[i].Status = LineStatusCancelled
		o.Lines[i].UpdatedAt = now
	}
	o.UpdatedAt = now
	o.AddDomainEvent(NewPurchaseOrderCancelledEvent(o))
	return nil
}

func (o *PurchaseOrder) transition(target PurchaseOrderStatus) error {
	if !o.Status.CanTransitionTo(target) {
		return shared.NewInvalidTransitionError("purchase order", o.Status.String(), target.String())
	}
	return nil
}

// ReceivedLine is the cost outcome for one line of a receipt
type ReceivedLine struct {
	LineID      uuid.UUID
	ProductID   uuid.UUID
	ReceivedQty decimal.Decimal
	UnitCost    decimal.Decimal
	TotalCost   decimal.Decimal
}

// Receipt is the outcome of one receiving event
type Receipt struct {
	OrderID       uuid.UUID
	SharedPerItem decimal.Decimal
	Lines         []ReceivedLine
	Skipped       []uuid.UUID // lines already processed by an earlier run
	TotalCost     decimal.Decimal
}

// Receive apportions landed cost across the lines being received and moves the
// order to received. quantities maps line ID to the quantity actually received;
// an empty map receives every pending line at its ordered quantity. Lines a
// previous run already processed are skipped so a crashed receipt can be re-run.
func (o *PurchaseOrder) Receive(quantities map[uuid.UUID]decimal.Decimal, now time.Time) (*Receipt, error) {
	if err := o.transition(PurchaseOrderStatusReceived); err != nil {
		return nil, err
	}

	if len(quantities) == 0 {
		quantities = make(map[uuid.UUID]decimal.Decimal, len(o.Lines))
		for _, l := range o.Lines {
			if l.Status == LineStatusPending {
				quantities[l.ID] = l.OrderedQty
			}
		}
	}
	for lineID, qty := range quantities {
		if o.GetLine(lineID) == nil {
			return nil, fmt.Errorf("%w: line %s does not belong to purchase order %s", shared.ErrInvalidInput, lineID, o.ID)
		}
		if qty.IsNegative() {
			return nil, shared.NewInvalidInputError(fmt.Sprintf("received quantity for line %s cannot be negative", lineID))
		}
	}

	receipt := &Receipt{OrderID: o.ID, TotalCost: decimal.Zero}
	receiving := make([]*PurchaseOrderLine, 0, len(quantities))
	for i := range o.Lines {
		line := &o.Lines[i]
		qty, ok := quantities[line.ID]
		if !ok || !qty.IsPositive() {
			continue
		}
		if line.Status.IsProcessed() || line.Status == LineStatusCancelled {
			receipt.Skipped = append(receipt.Skipped, line.ID)
			continue
		}
		receiving = append(receiving, line)
	}

	itemCount := int64(len(receiving))
	if itemCount < 1 {
		itemCount = 1
	}
	receipt.SharedPerItem = o.TotalSharedCost().Div(decimal.NewFromInt(itemCount))

	for _, line := range receiving {
		qty := quantities[line.ID]
		unitCost, totalCost := LandedUnitCost(line.PurchasePrice, line.Costs, receipt.SharedPerItem, qty)

		line.ReceivedQty = qty
		line.UnitCost = unitCost
		line.TotalCost = totalCost
		if qty.GreaterThanOrEqual(line.OrderedQty) {
			line.Status = LineStatusReceived
		} else {
			line.Status = LineStatusPartial
		}
		line.UpdatedAt = now

		receipt.Lines = append(receipt.Lines, ReceivedLine{
			LineID:      line.ID,
			ProductID:   line.ProductID,
			ReceivedQty: qty,
			UnitCost:    unitCost,
			TotalCost:   totalCost,
		})
		receipt.TotalCost = receipt.TotalCost.Add(totalCost)
	}

	o.Status = PurchaseOrderStatusReceived
	o.ReceivedAt = &now
	o.UpdatedAt = now
	o.AddDomainEvent(NewPurchaseOrderReceivedEvent(o, receipt))
	return receipt, nil
}

// Unreceive reverts a received order to draft and clears line costs. Callers
// must check for dependent sales before calling. Returns the IDs of the lines
// whose receipt was reverted.
func (o *PurchaseOrder) Unreceive(now time.Time) ([]uuid.UUID, error) {
	if o.Status != PurchaseOrderStatusReceived {
		return nil, shared.NewInvalidTransitionError("purchase order", o.Status.String(), PurchaseOrderStatusDraft.String())
	}

	reverted := make([]uuid.UUID, 0, len(o.Lines))
	for i := range o.Lines {
		line := &o.Lines[i]
		if line.Status == LineStatusCancelled {
			continue
		}
		if line.ReceivedQty.IsPositive() || line.Status.IsProcessed() {
			reverted = append(reverted, line.ID)
		}
		line.ReceivedQty = decimal.Zero
		line.UnitCost = decimal.Zero
		line.TotalCost = decimal.Zero
		line.Status = LineStatusPending
		line.UpdatedAt = now
	}

	o.Status = PurchaseOrderStatusDraft
	o.ReceivedAt = nil
	o.UpdatedAt = now
	o.AddDomainEvent(NewPurchaseOrderUnreceivedEvent(o, reverted))
	return reverted, nil
}

// IsReceived reports whether the order is at status received
func (o *PurchaseOrder) IsReceived() bool {
	return o.Status == PurchaseOrderStatusReceived
}

// TotalReceivedCost sums line totals currently on the order
func (o *PurchaseOrder) TotalReceivedCost() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.TotalCost)
	}
	return total
}
