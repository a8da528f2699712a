package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/velumlabs/fulfillment/internal/entities"
)

// CreateOrderRequest is the payload for creating an order.
type CreateOrderRequest struct {
	CustomerID string             `json:"customerId" validate:"required"`
	Address    AddressJSON        `json:"address" validate:"required"`
	Items      []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type OrderItemRequest struct {
	ProductID   string          `json:"productId" validate:"required"`
	Name        string          `json:"name" validate:"required"`
	Quantity    int             `json:"quantity" validate:"required,gt=0"`
	UnitPrice   decimal.Decimal `json:"unitPrice" validate:"required"`
	WeightGrams int             `json:"weightGrams" validate:"gte=0"`
}

type AddressJSON struct {
	ZIP     string `json:"zip" validate:"required"`
	City    string `json:"city,omitempty"`
	Street  string `json:"street,omitempty"`
	Region  string `json:"region,omitempty"`
	Country string `json:"country,omitempty"`
}

type UpdateStatusRequest struct {
	Status         string `json:"status" validate:"required"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
}

type BatchUpdateStatusRequest struct {
	OrderIDs []string `json:"orderIds" validate:"required,min=1,dive,required"`
	Status   string   `json:"status" validate:"required"`
}

type BatchUpdateStatusResponse struct {
	Results []BatchResultJSON `json:"results"`
}

type BatchResultJSON struct {
	OrderID string `json:"orderId"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason,omitempty"`
}

type CompleteOrderRequest struct {
	CarrierID      int `json:"carrierId" validate:"required,gt=0"`
	ShippingTypeID int `json:"shippingTypeId" validate:"required,gt=0"`
}

type UpdateItemQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

// Order is the API representation of an order aggregate.
type Order struct {
	OrderID        string           `json:"orderId"`
	CustomerID     string           `json:"customerId"`
	Status         string           `json:"status"`
	Address        AddressJSON      `json:"address"`
	Items          []OrderItemJSON  `json:"items"`
	TotalAmount    decimal.Decimal  `json:"totalAmount"`
	ShippingCost   decimal.Decimal  `json:"shippingCost"`
	Shipping       *ShippingJSON    `json:"shipping,omitempty"`
	TrackingNumber string           `json:"trackingNumber,omitempty"`
	CancelReason   string           `json:"cancelReason,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

type OrderItemJSON struct {
	ProductID   string          `json:"productId"`
	Name        string          `json:"name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	WeightGrams int             `json:"weightGrams"`
}

type ShippingJSON struct {
	CarrierID      int             `json:"carrierId"`
	ShippingTypeID int             `json:"shippingTypeId"`
	Cost           decimal.Decimal `json:"cost"`
	EstimatedDays  int             `json:"estimatedDays"`
}

// StockRequest creates a ledger entry.
type StockRequest struct {
	SKU         string `json:"sku" validate:"required"`
	WarehouseID string `json:"warehouseId" validate:"required"`
	Quantity    int    `json:"quantity" validate:"gte=0"`
}

type StockQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

type StockSetQuantityRequest struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

type Stock struct {
	SKU         string    `json:"sku"`
	WarehouseID string    `json:"warehouseId"`
	Quantity    int       `json:"quantity"`
	Reserved    int       `json:"reserved"`
	Available   int       `json:"available"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func OrderEntityToJSON(o entities.Order) Order {
	items := make([]OrderItemJSON, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemJSON{
			ProductID:   it.ProductID,
			Name:        it.Name,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Subtotal:    it.Subtotal(),
			WeightGrams: it.WeightGrams,
		})
	}

	order := Order{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Status:     string(o.Status),
		Address: AddressJSON{
			ZIP:     o.Address.ZIP,
			City:    o.Address.City,
			Street:  o.Address.Street,
			Region:  o.Address.Region,
			Country: o.Address.Country,
		},
		Items:          items,
		TotalAmount:    o.TotalAmount,
		ShippingCost:   o.ShippingCost,
		TrackingNumber: o.TrackingNumber,
		CancelReason:   o.CancelReason,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}

	if o.Shipping != nil {
		order.Shipping = &ShippingJSON{
			CarrierID:      o.Shipping.CarrierID,
			ShippingTypeID: o.Shipping.ShippingTypeID,
			Cost:           o.Shipping.Cost,
			EstimatedDays:  o.Shipping.EstimatedDays,
		}
	}

	return order
}

func ItemsRequestToEntity(items []OrderItemRequest) []entities.Item {
	result := make([]entities.Item, 0, len(items))
	for _, it := range items {
		result = append(result, entities.Item{
			ProductID:   it.ProductID,
			Name:        it.Name,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			WeightGrams: it.WeightGrams,
		})
	}
	return result
}

func AddressRequestToEntity(a AddressJSON) entities.Address {
	return entities.Address{
		ZIP:     a.ZIP,
		City:    a.City,
		Street:  a.Street,
		Region:  a.Region,
		Country: a.Country,
	}
}

func StockEntityToJSON(s entities.Stock) Stock {
	return Stock{
		SKU:         s.SKU,
		WarehouseID: s.WarehouseID,
		Quantity:    s.Quantity,
		Reserved:    s.Reserved,
		Available:   s.Available(),
		UpdatedAt:   s.UpdatedAt,
	}
}
