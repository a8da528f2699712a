package entities

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

type Address struct {
	ZIP     string
	City    string
	Street  string
	Region  string
	Country string
}

// Item is owned by its order. Identity (ProductID) is immutable; quantity may
// change while the order is still pending.
type Item struct {
	ProductID   string
	Name        string
	Quantity    int
	UnitPrice   decimal.Decimal
	WeightGrams int
}

func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type ShippingInfo struct {
	CarrierID      int
	ShippingTypeID int
	Cost           decimal.Decimal
	EstimatedDays  int
}

// Order is the aggregate root. All mutations go through its methods, which
// validate the lifecycle transition, keep TotalAmount consistent and return
// the emitted domain event.
type Order struct {
	ID             string
	CustomerID     string
	Status         Status
	Items          []Item
	Address        Address
	TotalAmount    decimal.Decimal
	ShippingCost   decimal.Decimal
	Shipping       *ShippingInfo
	TrackingNumber string
	CancelReason   string
	TenantID       string
	Version        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewOrder(customerID string, address Address, items []Item, tenantID string) (*Order, OrderCreated, error) {
	if customerID == "" || tenantID == "" {
		return nil, OrderCreated{}, fmt.Errorf("%w: customer and tenant are required", ErrInvalidArgument)
	}
	if len(items) == 0 {
		return nil, OrderCreated{}, fmt.Errorf("%w: order must have at least one item", ErrInvalidArgument)
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, OrderCreated{}, fmt.Errorf("%w: item %s quantity must be positive", ErrInvalidArgument, it.ProductID)
		}
		if it.UnitPrice.IsNegative() {
			return nil, OrderCreated{}, fmt.Errorf("%w: item %s unit price must not be negative", ErrInvalidArgument, it.ProductID)
		}
	}

	now := time.Now().UTC()
	o := &Order{
		ID:           uuid.NewString(),
		CustomerID:   customerID,
		Status:       StatusPending,
		Items:        items,
		Address:      address,
		ShippingCost: decimal.Zero,
		TenantID:     tenantID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	o.recomputeTotal()

	event := OrderCreated{
		OrderID:     o.ID,
		CustomerID:  o.CustomerID,
		TotalAmount: o.TotalAmount.String(),
	}
	return o, event, nil
}

// UpdateStatus moves the order to the given status. A cancelled order is
// terminal; a delivered order only accepts Cancelled (unlike Cancel, which
// rejects delivered orders — the two entry points are deliberately asymmetric).
func (o *Order) UpdateStatus(next Status) (OrderStatusChanged, error) {
	if !next.Valid() {
		return OrderStatusChanged{}, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, next)
	}
	if o.Status == StatusCancelled {
		return OrderStatusChanged{}, fmt.Errorf("%w: order %s is cancelled", ErrInvalidState, o.ID)
	}
	if o.Status == StatusDelivered && next != StatusCancelled {
		return OrderStatusChanged{}, fmt.Errorf("%w: delivered order %s can only be cancelled", ErrInvalidState, o.ID)
	}

	old := o.Status
	o.Status = next
	o.UpdatedAt = time.Now().UTC()

	return OrderStatusChanged{
		OrderID:   o.ID,
		OldStatus: string(old),
		NewStatus: string(next),
	}, nil
}

// Cancel marks the order cancelled. Shipped and delivered orders cannot be
// cancelled through this entry point.
func (o *Order) Cancel(reason string) (OrderCancelled, error) {
	if o.Status == StatusDelivered || o.Status == StatusShipped || o.Status == StatusCancelled {
		return OrderCancelled{}, fmt.Errorf("%w: cannot cancel order %s in status %s", ErrInvalidState, o.ID, o.Status)
	}

	o.Status = StatusCancelled
	o.CancelReason = reason
	o.UpdatedAt = time.Now().UTC()

	return OrderCancelled{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Reason:     reason,
	}, nil
}

func (o *Order) SetShippingInfo(carrierID, shippingTypeID int, cost decimal.Decimal, estimatedDays int) error {
	if carrierID <= 0 || shippingTypeID <= 0 {
		return fmt.Errorf("%w: carrier and shipping type ids must be positive", ErrInvalidArgument)
	}
	if cost.IsNegative() {
		return fmt.Errorf("%w: shipping cost must not be negative", ErrInvalidArgument)
	}
	if estimatedDays < 0 {
		return fmt.Errorf("%w: estimated days must not be negative", ErrInvalidArgument)
	}

	o.Shipping = &ShippingInfo{
		CarrierID:      carrierID,
		ShippingTypeID: shippingTypeID,
		Cost:           cost,
		EstimatedDays:  estimatedDays,
	}
	o.ShippingCost = cost
	o.recomputeTotal()
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete applies the selected shipping option and confirms the order.
// Only pending orders can be completed.
func (o *Order) Complete(carrierID, shippingTypeID int, cost decimal.Decimal, estimatedDays int) (OrderStatusChanged, error) {
	if o.Status != StatusPending {
		return OrderStatusChanged{}, fmt.Errorf("%w: order %s is not pending", ErrInvalidState, o.ID)
	}
	if err := o.SetShippingInfo(carrierID, shippingTypeID, cost, estimatedDays); err != nil {
		return OrderStatusChanged{}, err
	}
	return o.UpdateStatus(StatusConfirmed)
}

// UpdateItemQuantity changes the quantity of an owned item while the order is
// still editable (pending) and recomputes the total.
func (o *Order) UpdateItemQuantity(productID string, quantity int) error {
	if o.Status != StatusPending {
		return fmt.Errorf("%w: order %s is no longer editable", ErrInvalidState, o.ID)
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidArgument)
	}
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			o.Items[i].Quantity = quantity
			o.recomputeTotal()
			o.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("%w: product %s is not part of order %s", ErrInvalidArgument, productID, o.ID)
}

func (o *Order) SetTrackingNumber(tn string) error {
	if tn == "" {
		return fmt.Errorf("%w: tracking number must not be empty", ErrInvalidArgument)
	}
	o.TrackingNumber = tn
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// TotalWeightGrams sums the item weights, used for shipping pricing.
func (o *Order) TotalWeightGrams() int {
	total := 0
	for _, it := range o.Items {
		total += it.WeightGrams * it.Quantity
	}
	return total
}

func (o *Order) recomputeTotal() {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal())
	}
	o.TotalAmount = total.Add(o.ShippingCost)
}

func (o *Order) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(o); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (o *Order) Unmarshal(data []byte) error {
	buf := bytes.NewBuffer(data)
	dec := gob.NewDecoder(buf)
	if err := dec.Decode(o); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	return nil
}

func init() {
	gob.Register(Order{})
	gob.Register(Item{})
	gob.Register(Address{})
	gob.Register(ShippingInfo{})
}
