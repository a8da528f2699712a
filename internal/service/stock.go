package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/velumlabs/fulfillment/internal/entities"
	"github.com/velumlabs/fulfillment/internal/tenant"
	"github.com/velumlabs/fulfillment/pkg/trm"
)

type StockRepo interface {
	CreateStock(ctx context.Context, s *entities.Stock) error
	GetStock(ctx context.Context, tenantID, sku, warehouseID string) (entities.Stock, error)

	// Conditional updates; a failed guard maps to the matching domain error
	// so concurrent callers can never over-commit inventory.
	ReserveStock(ctx context.Context, tenantID, sku, warehouseID string, qty int) error
	ReleaseStockReservation(ctx context.Context, tenantID, sku, warehouseID string, qty int) error
	DecreaseStock(ctx context.Context, tenantID, sku, warehouseID string, qty int) error
	IncreaseStock(ctx context.Context, tenantID, sku, warehouseID string, qty int) error
	UpdateStockQuantity(ctx context.Context, tenantID, sku, warehouseID string, qty int) error
}

type OrderGetter interface {
	GetOrderByID(ctx context.Context, tenantID, orderID string) (entities.Order, error)
}

type stockService struct {
	logger    *slog.Logger
	txManager trm.Manager
	repo      StockRepo
	orders    OrderGetter
	tenants   tenant.Resolver
	warehouse string
}

func NewStockService(logger *slog.Logger, txManager trm.Manager, repo StockRepo, orders OrderGetter, tenants tenant.Resolver, warehouse string) *stockService {
	return &stockService{
		logger:    logger.With(slog.String("service", "stock")),
		txManager: txManager,
		repo:      repo,
		orders:    orders,
		tenants:   tenants,
		warehouse: warehouse,
	}
}

func (s *stockService) CreateStock(ctx context.Context, sku, warehouseID string, quantity int) (entities.Stock, error) {
	tenantID, err := s.tenants.Resolve(ctx)
	if err != nil {
		return entities.Stock{}, err
	}

	stock, err := entities.NewStock(sku, warehouseID, quantity, tenantID)
	if err != nil {
		return entities.Stock{}, err
	}
	if err := s.repo.CreateStock(ctx, stock); err != nil {
		return entities.Stock{}, err
	}
	return *stock, nil
}

func (s *stockService) GetStock(ctx context.Context, sku, warehouseID string) (entities.Stock, error) {
	tenantID, err := s.tenants.Resolve(ctx)
	if err != nil {
		return entities.Stock{}, err
	}
	return s.repo.GetStock(ctx, tenantID, sku, warehouseID)
}

func (s *stockService) Reserve(ctx context.Context, sku, warehouseID string, qty int) (entities.Stock, error) {
	return s.apply(ctx, sku, warehouseID, qty,
		(*entities.Stock).Reserve, s.repo.ReserveStock)
}

func (s *stockService) ReleaseReservation(ctx context.Context, sku, warehouseID string, qty int) (entities.Stock, error) {
	return s.apply(ctx, sku, warehouseID, qty,
		(*entities.Stock).ReleaseReservation, s.repo.ReleaseStockReservation)
}

func (s *stockService) Decrease(ctx context.Context, sku, warehouseID string, qty int) (entities.Stock, error) {
	return s.apply(ctx, sku, warehouseID, qty,
		(*entities.Stock).Decrease, s.repo.DecreaseStock)
}

func (s *stockService) Increase(ctx context.Context, sku, warehouseID string, qty int) (entities.Stock, error) {
	return s.apply(ctx, sku, warehouseID, qty,
		(*entities.Stock).Increase, s.repo.IncreaseStock)
}

func (s *stockService) UpdateQuantity(ctx context.Context, sku, warehouseID string, qty int) (entities.Stock, error) {
	return s.apply(ctx, sku, warehouseID, qty,
		(*entities.Stock).UpdateQuantity, s.repo.UpdateStockQuantity)
}

// apply validates the operation against the current ledger view, then runs
// the guarded store update. The read check fails fast with the precise
// domain error; the conditional update is what actually protects against a
// concurrent writer invalidating that read.
func (s *stockService) apply(
	ctx context.Context, sku, warehouseID string, qty int,
	check func(*entities.Stock, int) error,
	update func(ctx context.Context, tenantID, sku, warehouseID string, qty int) error,
) (entities.Stock, error) {
	tenantID, err := s.tenants.Resolve(ctx)
	if err != nil {
		return entities.Stock{}, err
	}

	stock, err := s.repo.GetStock(ctx, tenantID, sku, warehouseID)
	if err != nil {
		return entities.Stock{}, err
	}
	if err := check(&stock, qty); err != nil {
		return entities.Stock{}, err
	}

	if err := update(ctx, tenantID, sku, warehouseID, qty); err != nil {
		return entities.Stock{}, err
	}

	return s.repo.GetStock(ctx, tenantID, sku, warehouseID)
}

// ReserveForOrder places a reservation for every item of the order in the
// default warehouse, all or nothing.
func (s *stockService) ReserveForOrder(ctx context.Context, orderID string) error {
	tenantID, order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}

	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		for _, it := range order.Items {
			if err := s.repo.ReserveStock(ctx, tenantID, it.ProductID, s.warehouse, it.Quantity); err != nil {
				return fmt.Errorf("failed to reserve %s: %w", it.ProductID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "stock reserved for order", slog.String("order_id", orderID))
	return nil
}

// FulfillOrder consumes the order's reservations: each item's hold is
// released and the same quantity definitively debited, in one transaction.
func (s *stockService) FulfillOrder(ctx context.Context, orderID string) error {
	tenantID, order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}

	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		for _, it := range order.Items {
			if err := s.repo.ReleaseStockReservation(ctx, tenantID, it.ProductID, s.warehouse, it.Quantity); err != nil {
				return fmt.Errorf("failed to release %s: %w", it.ProductID, err)
			}
			if err := s.repo.DecreaseStock(ctx, tenantID, it.ProductID, s.warehouse, it.Quantity); err != nil {
				return fmt.Errorf("failed to debit %s: %w", it.ProductID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "stock debited for order", slog.String("order_id", orderID))
	return nil
}

// ReleaseForOrder returns the order's reservations to availability.
func (s *stockService) ReleaseForOrder(ctx context.Context, orderID string) error {
	tenantID, order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return err
	}

	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		for _, it := range order.Items {
			if err := s.repo.ReleaseStockReservation(ctx, tenantID, it.ProductID, s.warehouse, it.Quantity); err != nil {
				return fmt.Errorf("failed to release %s: %w", it.ProductID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "reservations released for order", slog.String("order_id", orderID))
	return nil
}

// HandleOrderCreated, HandleOrderStatusChanged and HandleOrderCancelled are
// the side effects bound to the idempotent consumers.

func (s *stockService) HandleOrderCreated(ctx context.Context, payload []byte) error {
	var event entities.OrderCreated
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal order.created: %w", err)
	}
	if event.OrderID == "" {
		return fmt.Errorf("%w: order.created without order id", entities.ErrInvalidOrder)
	}
	return s.ReserveForOrder(ctx, event.OrderID)
}

func (s *stockService) HandleOrderStatusChanged(ctx context.Context, payload []byte) error {
	var event entities.OrderStatusChanged
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal order.status.changed: %w", err)
	}
	if event.OrderID == "" {
		return fmt.Errorf("%w: order.status.changed without order id", entities.ErrInvalidOrder)
	}

	// Inventory reacts to the shipment only; other transitions carry no
	// stock side effect but still go through the dedup ledger.
	if entities.Status(event.NewStatus) != entities.StatusShipped {
		return nil
	}
	return s.FulfillOrder(ctx, event.OrderID)
}

func (s *stockService) HandleOrderCancelled(ctx context.Context, payload []byte) error {
	var event entities.OrderCancelled
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to unmarshal order.cancelled: %w", err)
	}
	if event.OrderID == "" {
		return fmt.Errorf("%w: order.cancelled without order id", entities.ErrInvalidOrder)
	}
	return s.ReleaseForOrder(ctx, event.OrderID)
}

func (s *stockService) loadOrder(ctx context.Context, orderID string) (string, entities.Order, error) {
	tenantID, err := s.tenants.Resolve(ctx)
	if err != nil {
		return "", entities.Order{}, err
	}
	order, err := s.orders.GetOrderByID(ctx, tenantID, orderID)
	if err != nil {
		return "", entities.Order{}, err
	}
	return tenantID, order, nil
}
