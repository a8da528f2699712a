package repo

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/velumlabs/fulfillment/internal/entities"
)

type Order struct {
	OrderID        string          `db:"order_id"`
	CustomerID     string          `db:"customer_id"`
	Status         string          `db:"status"`
	ZIP            string          `db:"zip"`
	City           sql.NullString  `db:"city"`
	Street         sql.NullString  `db:"street"`
	Region         sql.NullString  `db:"region"`
	Country        sql.NullString  `db:"country"`
	TotalAmount    decimal.Decimal `db:"total_amount"`
	ShippingCost   decimal.Decimal `db:"shipping_cost"`
	CarrierID      sql.NullInt32   `db:"carrier_id"`
	ShippingTypeID sql.NullInt32   `db:"shipping_type_id"`
	EstimatedDays  sql.NullInt32   `db:"estimated_days"`
	TrackingNumber sql.NullString  `db:"tracking_number"`
	CancelReason   sql.NullString  `db:"cancel_reason"`
	TenantID       string          `db:"tenant_id"`
	Version        int             `db:"version"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

type Item struct {
	OrderID     string          `db:"order_id"`
	ProductID   string          `db:"product_id"`
	Name        string          `db:"name"`
	Quantity    int             `db:"quantity"`
	UnitPrice   decimal.Decimal `db:"unit_price"`
	WeightGrams int             `db:"weight_grams"`
}

type Stock struct {
	SKU         string    `db:"sku"`
	WarehouseID string    `db:"warehouse_id"`
	Quantity    int       `db:"quantity"`
	Reserved    int       `db:"reserved"`
	TenantID    string    `db:"tenant_id"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type OutboxMessage struct {
	ID          int64        `db:"id"`
	MessageID   string       `db:"message_id"`
	EventType   string       `db:"event_type"`
	OrderID     string       `db:"order_id"`
	Payload     []byte       `db:"payload"`
	TenantID    string       `db:"tenant_id"`
	CreatedAt   time.Time    `db:"created_at"`
	PublishedAt sql.NullTime `db:"published_at"`
}

type ProcessedMessage struct {
	MessageID   string    `db:"message_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
	TenantID    string    `db:"tenant_id"`
}

func OrderToEntity(o Order, items []Item) entities.Order {
	order := entities.Order{
		ID:         o.OrderID,
		CustomerID: o.CustomerID,
		Status:     entities.Status(o.Status),
		Address: entities.Address{
			ZIP:     o.ZIP,
			City:    nullStringToString(o.City),
			Street:  nullStringToString(o.Street),
			Region:  nullStringToString(o.Region),
			Country: nullStringToString(o.Country),
		},
		TotalAmount:    o.TotalAmount,
		ShippingCost:   o.ShippingCost,
		TrackingNumber: nullStringToString(o.TrackingNumber),
		CancelReason:   nullStringToString(o.CancelReason),
		TenantID:       o.TenantID,
		Version:        o.Version,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}

	if o.CarrierID.Valid {
		order.Shipping = &entities.ShippingInfo{
			CarrierID:      int(o.CarrierID.Int32),
			ShippingTypeID: int(o.ShippingTypeID.Int32),
			Cost:           o.ShippingCost,
			EstimatedDays:  int(o.EstimatedDays.Int32),
		}
	}

	if len(items) > 0 {
		order.Items = make([]entities.Item, 0, len(items))
		for _, it := range items {
			order.Items = append(order.Items, ItemToEntity(it))
		}
	}

	return order
}

func ItemToEntity(i Item) entities.Item {
	return entities.Item{
		ProductID:   i.ProductID,
		Name:        i.Name,
		Quantity:    i.Quantity,
		UnitPrice:   i.UnitPrice,
		WeightGrams: i.WeightGrams,
	}
}

func StockToEntity(s Stock) entities.Stock {
	return entities.Stock{
		SKU:         s.SKU,
		WarehouseID: s.WarehouseID,
		Quantity:    s.Quantity,
		Reserved:    s.Reserved,
		TenantID:    s.TenantID,
		UpdatedAt:   s.UpdatedAt,
	}
}

func nullStringToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt32(i int) sql.NullInt32 {
	if i == 0 {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(i), Valid: true}
}
