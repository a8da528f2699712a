package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/velumlabs/fulfillment/internal/entities"
	"github.com/velumlabs/fulfillment/internal/shipping"
	"github.com/velumlabs/fulfillment/internal/tenant"
	"github.com/velumlabs/fulfillment/pkg/trm"
	"github.com/velumlabs/fulfillment/pkg/utils"
)

type OrderRepo interface {
	SaveOrder(ctx context.Context, o *entities.Order) error
	GetOrderByID(ctx context.Context, tenantID, orderID string) (entities.Order, error)
	LatestOrders(ctx context.Context, count int) ([]entities.Order, error)

	// Guarded by the order's optimistic version; returns
	// entities.ErrConcurrencyConflict on a stale write.
	UpdateOrder(ctx context.Context, o *entities.Order) error
	UpdateItemQuantity(ctx context.Context, tenantID, orderID, productID string, quantity int) error

	// Written in the same transaction as the state change.
	SaveEvents(ctx context.Context, tenantID string, events ...entities.Event) error
}

type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
}

type ShippingSelection struct {
	CarrierID      int
	ShippingTypeID int
}

type BatchResult struct {
	OrderID string
	Err     error
}

const batchConcurrency = 8

var retryConfig = utils.RetryConfig{
	InitialDelay: 100 * time.Millisecond,
	MaxAttempts:  5,
	Multiplier:   2,
}

// nonRetryable lists domain failures that reloading cannot fix. Everything
// else, concurrency conflicts included, is retried with a fresh read.
var nonRetryable = []error{
	entities.ErrOrderNotFound,
	entities.ErrInvalidState,
	entities.ErrInvalidArgument,
	tenant.ErrNoTenant,
}

type orderService struct {
	logger    *slog.Logger
	txManager trm.Manager
	repo      OrderRepo
	cache     Cache
	tenants   tenant.Resolver
	shipping  shipping.Calculator
}

func NewOrderService(logger *slog.Logger, txManager trm.Manager, repo OrderRepo, cache Cache, tenants tenant.Resolver, calc shipping.Calculator) *orderService {
	return &orderService{
		logger:    logger.With(slog.String("service", "order")),
		txManager: txManager,
		repo:      repo,
		cache:     cache,
		tenants:   tenants,
		shipping:  calc,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, customerID string, address entities.Address, items []entities.Item) (entities.Order, error) {
	tenantID, err := s.tenants.Resolve(ctx)
	if err != nil {
		return entities.Order{}, err
	}

	order, event, err := entities.NewOrder(customerID, address, items, tenantID)
	if err != nil {
		return entities.Order{}, err
	}

	fn := func() error {
		return s.txManager.Do(ctx, func(ctx context.Context) error {
			if err := s.repo.SaveOrder(ctx, order); err != nil {
				return err
			}
			return s.repo.SaveEvents(ctx, tenantID, event)
		})
	}
	if err := utils.Retry(retryConfig, fn, nonRetryable...); err != nil {
		return entities.Order{}, err
	}

	s.logger.DebugContext(ctx, "order created", slog.String("order_id", order.ID))
	s.cacheSet(*order)
	return *order, nil
}

func (s *orderService) GetOrderByID(ctx context.Context, orderID string) (entities.Order, error) {
	tenantID, err := s.tenants.Resolve(ctx)
	if err != nil {
		return entities.Order{}, err
	}

	if data, ok := s.cache.Get(cacheKey(tenantID, orderID)); ok {
		var order entities.Order
		if err := order.Unmarshal(data); err != nil {
			s.logger.Error("failed to unmarshal cached order", slog.String("order_id", orderID), slog.Any("error", err))
			return entities.Order{}, err
		}
		return order, nil
	}

	var order entities.Order
	fn := func() error {
		var err error
		order, err = s.repo.GetOrderByID(ctx, tenantID, orderID)
		return err
	}
	if err := utils.Retry(retryConfig, fn, entities.ErrOrderNotFound); err != nil {
		return entities.Order{}, err
	}

	s.cacheSet(order)
	return order, nil
}

func (s *orderService) UpdateOrderStatus(ctx context.Context, orderID string, next entities.Status, trackingNumber string) (entities.Order, error) {
	return s.mutate(ctx, orderID, func(o *entities.Order) ([]entities.Event, error) {
		event, err := o.UpdateStatus(next)
		if err != nil {
			return nil, err
		}
		if trackingNumber != "" {
			if err := o.SetTrackingNumber(trackingNumber); err != nil {
				return nil, err
			}
		}
		return []entities.Event{event}, nil
	})
}

func (s *orderService) CancelOrder(ctx context.Context, orderID, reason string) (entities.Order, error) {
	return s.mutate(ctx, orderID, func(o *entities.Order) ([]entities.Event, error) {
		event, err := o.Cancel(reason)
		if err != nil {
			return nil, err
		}
		return []entities.Event{event}, nil
	})
}

// CompleteOrder prices shipping for the order, applies the selected option
// and confirms the order. The selection must be one of the options the
// calculator returned for this order's zip, total and weight.
func (s *orderService) CompleteOrder(ctx context.Context, orderID string, sel ShippingSelection) (entities.Order, error) {
	return s.mutate(ctx, orderID, func(o *entities.Order) ([]entities.Event, error) {
		options := s.shipping.Calculate(o.Address.ZIP, o.TotalAmount, o.TotalWeightGrams())

		var selected *shipping.Option
		for i := range options {
			if options[i].CarrierID == sel.CarrierID && options[i].ShippingTypeID == sel.ShippingTypeID {
				selected = &options[i]
				break
			}
		}
		if selected == nil {
			return nil, fmt.Errorf("%w: shipping option %d/%d is not available for this order",
				entities.ErrInvalidArgument, sel.CarrierID, sel.ShippingTypeID)
		}

		event, err := o.Complete(selected.CarrierID, selected.ShippingTypeID, selected.Price, selected.EstimatedDays)
		if err != nil {
			return nil, err
		}
		return []entities.Event{event}, nil
	})
}

func (s *orderService) UpdateItemQuantity(ctx context.Context, orderID, productID string, quantity int) (entities.Order, error) {
	tenantID, err := s.tenants.Resolve(ctx)
	if err != nil {
		return entities.Order{}, err
	}

	var updated entities.Order
	fn := func() error {
		order, err := s.repo.GetOrderByID(ctx, tenantID, orderID)
		if err != nil {
			return err
		}
		if err := order.UpdateItemQuantity(productID, quantity); err != nil {
			return err
		}

		if err := s.txManager.Do(ctx, func(ctx context.Context) error {
			if err := s.repo.UpdateItemQuantity(ctx, tenantID, orderID, productID, quantity); err != nil {
				return err
			}
			return s.repo.UpdateOrder(ctx, &order)
		}); err != nil {
			return err
		}

		updated = order
		return nil
	}
	if err := utils.Retry(retryConfig, fn, nonRetryable...); err != nil {
		return entities.Order{}, err
	}

	s.cacheSet(updated)
	return updated, nil
}

// BatchUpdateStatus updates each order concurrently without a shared
// transaction. Partial success is expected; the result carries the per-order
// outcome and nothing is rolled back as a unit.
func (s *orderService) BatchUpdateStatus(ctx context.Context, orderIDs []string, next entities.Status) []BatchResult {
	results := make([]BatchResult, len(orderIDs))

	var g errgroup.Group
	g.SetLimit(batchConcurrency)
	for i, id := range orderIDs {
		i, id := i, id
		g.Go(func() error {
			_, err := s.UpdateOrderStatus(ctx, id, next, "")
			results[i] = BatchResult{OrderID: id, Err: err}
			return nil
		})
	}
	g.Wait()

	return results
}

func (s *orderService) WarmUpCache(ctx context.Context, count int) error {
	orders, err := s.repo.LatestOrders(ctx, count)
	if err != nil {
		return fmt.Errorf("failed to warm up cache: %w", err)
	}
	for _, order := range orders {
		s.cacheSet(order)
	}
	s.logger.Info("cache warmed up", slog.Int("orders", len(orders)))
	return nil
}

// mutate reloads the order, applies fn and commits the new state together
// with the emitted events. A concurrency conflict restarts the whole cycle
// against a fresh read.
func (s *orderService) mutate(ctx context.Context, orderID string, fn func(o *entities.Order) ([]entities.Event, error)) (entities.Order, error) {
	tenantID, err := s.tenants.Resolve(ctx)
	if err != nil {
		return entities.Order{}, err
	}

	var updated entities.Order
	op := func() error {
		order, err := s.repo.GetOrderByID(ctx, tenantID, orderID)
		if err != nil {
			return err
		}

		events, err := fn(&order)
		if err != nil {
			return err
		}

		if err := s.txManager.Do(ctx, func(ctx context.Context) error {
			if err := s.repo.UpdateOrder(ctx, &order); err != nil {
				return err
			}
			return s.repo.SaveEvents(ctx, tenantID, events...)
		}); err != nil {
			return err
		}

		updated = order
		return nil
	}
	if err := utils.Retry(retryConfig, op, nonRetryable...); err != nil {
		return entities.Order{}, err
	}

	s.logger.DebugContext(ctx, "order updated",
		slog.String("order_id", updated.ID), slog.String("status", string(updated.Status)))
	s.cacheSet(updated)
	return updated, nil
}

func (s *orderService) cacheSet(order entities.Order) {
	data, err := order.Marshal()
	if err != nil {
		s.logger.Error("failed to marshal order for cache", slog.String("order_id", order.ID), slog.Any("error", err))
		return
	}
	s.cache.Set(cacheKey(order.TenantID, order.ID), data)
}

func cacheKey(tenantID, orderID string) string {
	return tenantID + ":" + orderID
}
