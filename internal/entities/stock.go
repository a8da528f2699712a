package entities

import (
	"fmt"
	"time"
)

// Stock is the inventory ledger entry for one (SKU, warehouse) pair.
// Invariant after every operation: 0 <= Reserved <= Quantity, except through
// UpdateQuantity, which replaces Quantity without touching Reserved and may
// leave Available negative — callers guard that themselves.
type Stock struct {
	SKU         string
	WarehouseID string
	Quantity    int
	Reserved    int
	TenantID    string
	UpdatedAt   time.Time
}

func NewStock(sku, warehouseID string, quantity int, tenantID string) (*Stock, error) {
	if sku == "" || warehouseID == "" || tenantID == "" {
		return nil, fmt.Errorf("%w: sku, warehouse and tenant are required", ErrInvalidArgument)
	}
	if quantity < 0 {
		return nil, fmt.Errorf("%w: quantity must not be negative", ErrInvalidArgument)
	}
	return &Stock{
		SKU:         sku,
		WarehouseID: warehouseID,
		Quantity:    quantity,
		TenantID:    tenantID,
		UpdatedAt:   time.Now().UTC(),
	}, nil
}

func (s *Stock) Available() int {
	return s.Quantity - s.Reserved
}

// Reserve places a soft hold on qty units.
func (s *Stock) Reserve(qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: reserve quantity must be positive", ErrInvalidArgument)
	}
	if qty > s.Available() {
		return fmt.Errorf("%w: %d requested, %d available for %s", ErrInsufficientStock, qty, s.Available(), s.SKU)
	}
	s.Reserved += qty
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// ReleaseReservation returns qty previously reserved units to availability.
func (s *Stock) ReleaseReservation(qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: release quantity must be positive", ErrInvalidArgument)
	}
	if qty > s.Reserved {
		return fmt.Errorf("%w: %d requested, %d reserved for %s", ErrInvalidRelease, qty, s.Reserved, s.SKU)
	}
	s.Reserved -= qty
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Decrease is a definitive debit against availability. Reserved is left
// untouched: consuming a reservation is ReleaseReservation followed by
// Decrease.
func (s *Stock) Decrease(qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: decrease quantity must be positive", ErrInvalidArgument)
	}
	if qty > s.Available() {
		return fmt.Errorf("%w: %d requested, %d available for %s", ErrInsufficientStock, qty, s.Available(), s.SKU)
	}
	s.Quantity -= qty
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Increase restocks unconditionally.
func (s *Stock) Increase(qty int) error {
	if qty <= 0 {
		return fmt.Errorf("%w: increase quantity must be positive", ErrInvalidArgument)
	}
	s.Quantity += qty
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdateQuantity replaces the on-hand quantity without adjusting Reserved.
func (s *Stock) UpdateQuantity(qty int) error {
	if qty < 0 {
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalidArgument)
	}
	s.Quantity = qty
	s.UpdatedAt = time.Now().UTC()
	return nil
}
