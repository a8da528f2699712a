package service_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/velumlabs/fulfillment/internal/entities"
	"github.com/velumlabs/fulfillment/internal/service"
	"github.com/velumlabs/fulfillment/internal/tenant"
)

type mockStockRepo struct {
	mock.Mock
}

func (m *mockStockRepo) CreateStock(ctx context.Context, s *entities.Stock) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockStockRepo) GetStock(ctx context.Context, tenantID, sku, warehouseID string) (entities.Stock, error) {
	args := m.Called(ctx, tenantID, sku, warehouseID)
	return args.Get(0).(entities.Stock), args.Error(1)
}

func (m *mockStockRepo) ReserveStock(ctx context.Context, tenantID, sku, warehouseID string, qty int) error {
	return m.Called(ctx, tenantID, sku, warehouseID, qty).Error(0)
}

func (m *mockStockRepo) ReleaseStockReservation(ctx context.Context, tenantID, sku, warehouseID string, qty int) error {
	return m.Called(ctx, tenantID, sku, warehouseID, qty).Error(0)
}

func (m *mockStockRepo) DecreaseStock(ctx context.Context, tenantID, sku, warehouseID string, qty int) error {
	return m.Called(ctx, tenantID, sku, warehouseID, qty).Error(0)
}

func (m *mockStockRepo) IncreaseStock(ctx context.Context, tenantID, sku, warehouseID string, qty int) error {
	return m.Called(ctx, tenantID, sku, warehouseID, qty).Error(0)
}

func (m *mockStockRepo) UpdateStockQuantity(ctx context.Context, tenantID, sku, warehouseID string, qty int) error {
	return m.Called(ctx, tenantID, sku, warehouseID, qty).Error(0)
}

type mockOrderGetter struct {
	mock.Mock
}

func (m *mockOrderGetter) GetOrderByID(ctx context.Context, tenantID, orderID string) (entities.Order, error) {
	args := m.Called(ctx, tenantID, orderID)
	return args.Get(0).(entities.Order), args.Error(1)
}

type stockAPI interface {
	CreateStock(ctx context.Context, sku, warehouseID string, quantity int) (entities.Stock, error)
	GetStock(ctx context.Context, sku, warehouseID string) (entities.Stock, error)
	Reserve(ctx context.Context, sku, warehouseID string, qty int) (entities.Stock, error)
	ReleaseReservation(ctx context.Context, sku, warehouseID string, qty int) (entities.Stock, error)
	Decrease(ctx context.Context, sku, warehouseID string, qty int) (entities.Stock, error)
	HandleOrderCreated(ctx context.Context, payload []byte) error
	HandleOrderStatusChanged(ctx context.Context, payload []byte) error
	HandleOrderCancelled(ctx context.Context, payload []byte) error
}

const testWarehouse = "wh-main"

func newStockService(repo *mockStockRepo, orders *mockOrderGetter) stockAPI {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return service.NewStockService(logger, passthroughTxManager{}, repo, orders,
		tenant.ContextResolver{}, testWarehouse)
}

func ledger(quantity, reserved int) entities.Stock {
	return entities.Stock{
		SKU:         "sku-1",
		WarehouseID: testWarehouse,
		Quantity:    quantity,
		Reserved:    reserved,
		TenantID:    "tenant-1",
	}
}

func TestStockService_CreateStock(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		repo := new(mockStockRepo)
		svc := newStockService(repo, new(mockOrderGetter))

		repo.On("CreateStock", mock.Anything, mock.MatchedBy(func(s *entities.Stock) bool {
			return s.SKU == "sku-1" && s.Quantity == 50 && s.TenantID == "tenant-1"
		})).Return(nil).Once()

		stock, err := svc.CreateStock(tenantCtx(), "sku-1", testWarehouse, 50)
		require.NoError(t, err)
		assert.Equal(t, 50, stock.Available())
		repo.AssertExpectations(t)
	})

	t.Run("duplicate", func(t *testing.T) {
		repo := new(mockStockRepo)
		svc := newStockService(repo, new(mockOrderGetter))

		repo.On("CreateStock", mock.Anything, mock.Anything).
			Return(entities.ErrDuplicateStock).Once()

		_, err := svc.CreateStock(tenantCtx(), "sku-1", testWarehouse, 50)
		assert.ErrorIs(t, err, entities.ErrDuplicateStock)
	})

	t.Run("negative quantity", func(t *testing.T) {
		repo := new(mockStockRepo)
		svc := newStockService(repo, new(mockOrderGetter))

		_, err := svc.CreateStock(tenantCtx(), "sku-1", testWarehouse, -1)
		assert.ErrorIs(t, err, entities.ErrInvalidArgument)
		repo.AssertNotCalled(t, "CreateStock", mock.Anything, mock.Anything)
	})
}

func TestStockService_Reserve(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		repo := new(mockStockRepo)
		svc := newStockService(repo, new(mockOrderGetter))

		repo.On("GetStock", mock.Anything, "tenant-1", "sku-1", testWarehouse).
			Return(ledger(100, 0), nil).Once()
		repo.On("ReserveStock", mock.Anything, "tenant-1", "sku-1", testWarehouse, 30).
			Return(nil).Once()
		repo.On("GetStock", mock.Anything, "tenant-1", "sku-1", testWarehouse).
			Return(ledger(100, 30), nil).Once()

		stock, err := svc.Reserve(tenantCtx(), "sku-1", testWarehouse, 30)
		require.NoError(t, err)
		assert.Equal(t, 70, stock.Available())
		repo.AssertExpectations(t)
	})

	t.Run("insufficient fails before the store update", func(t *testing.T) {
		repo := new(mockStockRepo)
		svc := newStockService(repo, new(mockOrderGetter))

		repo.On("GetStock", mock.Anything, "tenant-1", "sku-1", testWarehouse).
			Return(ledger(100, 80), nil).Once()

		_, err := svc.Reserve(tenantCtx(), "sku-1", testWarehouse, 30)
		assert.ErrorIs(t, err, entities.ErrInsufficientStock)
		repo.AssertNotCalled(t, "ReserveStock",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("lost race surfaces the guard error", func(t *testing.T) {
		repo := new(mockStockRepo)
		svc := newStockService(repo, new(mockOrderGetter))

		repo.On("GetStock", mock.Anything, "tenant-1", "sku-1", testWarehouse).
			Return(ledger(100, 0), nil).Once()
		repo.On("ReserveStock", mock.Anything, "tenant-1", "sku-1", testWarehouse, 30).
			Return(entities.ErrInsufficientStock).Once()

		_, err := svc.Reserve(tenantCtx(), "sku-1", testWarehouse, 30)
		assert.ErrorIs(t, err, entities.ErrInsufficientStock)
	})
}

func TestStockService_Decrease(t *testing.T) {
	repo := new(mockStockRepo)
	svc := newStockService(repo, new(mockOrderGetter))

	repo.On("GetStock", mock.Anything, "tenant-1", "sku-1", testWarehouse).
		Return(ledger(100, 30), nil).Once()
	repo.On("DecreaseStock", mock.Anything, "tenant-1", "sku-1", testWarehouse, 30).
		Return(nil).Once()
	repo.On("GetStock", mock.Anything, "tenant-1", "sku-1", testWarehouse).
		Return(ledger(70, 30), nil).Once()

	stock, err := svc.Decrease(tenantCtx(), "sku-1", testWarehouse, 30)
	require.NoError(t, err)

	// The reservation survives the debit.
	assert.Equal(t, 70, stock.Quantity)
	assert.Equal(t, 30, stock.Reserved)
	assert.Equal(t, 40, stock.Available())
}

func orderEvent(t *testing.T, event entities.Event) []byte {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return data
}

func consumerOrder(t *testing.T) entities.Order {
	t.Helper()
	order, _, err := entities.NewOrder("cust-1", entities.Address{ZIP: "01310"}, []entities.Item{
		{ProductID: "sku-1", Name: "Blue Shirt", Quantity: 2, UnitPrice: price("29.99"), WeightGrams: 300},
		{ProductID: "sku-2", Name: "Mug", Quantity: 1, UnitPrice: price("49.99"), WeightGrams: 450},
	}, "tenant-1")
	require.NoError(t, err)
	return *order
}

func TestStockService_HandleOrderCreated(t *testing.T) {
	t.Run("reserves every item", func(t *testing.T) {
		repo := new(mockStockRepo)
		orders := new(mockOrderGetter)
		svc := newStockService(repo, orders)

		order := consumerOrder(t)
		orders.On("GetOrderByID", mock.Anything, "tenant-1", order.ID).Return(order, nil).Once()
		repo.On("ReserveStock", mock.Anything, "tenant-1", "sku-1", testWarehouse, 2).Return(nil).Once()
		repo.On("ReserveStock", mock.Anything, "tenant-1", "sku-2", testWarehouse, 1).Return(nil).Once()

		payload := orderEvent(t, entities.OrderCreated{OrderID: order.ID, CustomerID: "cust-1"})
		require.NoError(t, svc.HandleOrderCreated(tenantCtx(), payload))
		repo.AssertExpectations(t)
	})

	t.Run("missing order id", func(t *testing.T) {
		svc := newStockService(new(mockStockRepo), new(mockOrderGetter))

		err := svc.HandleOrderCreated(tenantCtx(), []byte(`{}`))
		assert.ErrorIs(t, err, entities.ErrInvalidOrder)
	})

	t.Run("malformed payload", func(t *testing.T) {
		svc := newStockService(new(mockStockRepo), new(mockOrderGetter))

		err := svc.HandleOrderCreated(tenantCtx(), []byte(`not json`))
		assert.Error(t, err)
	})
}

func TestStockService_HandleOrderStatusChanged(t *testing.T) {
	t.Run("shipment debits the reservations", func(t *testing.T) {
		repo := new(mockStockRepo)
		orders := new(mockOrderGetter)
		svc := newStockService(repo, orders)

		order := consumerOrder(t)
		orders.On("GetOrderByID", mock.Anything, "tenant-1", order.ID).Return(order, nil).Once()
		repo.On("ReleaseStockReservation", mock.Anything, "tenant-1", "sku-1", testWarehouse, 2).Return(nil).Once()
		repo.On("DecreaseStock", mock.Anything, "tenant-1", "sku-1", testWarehouse, 2).Return(nil).Once()
		repo.On("ReleaseStockReservation", mock.Anything, "tenant-1", "sku-2", testWarehouse, 1).Return(nil).Once()
		repo.On("DecreaseStock", mock.Anything, "tenant-1", "sku-2", testWarehouse, 1).Return(nil).Once()

		payload := orderEvent(t, entities.OrderStatusChanged{
			OrderID:   order.ID,
			OldStatus: string(entities.StatusConfirmed),
			NewStatus: string(entities.StatusShipped),
		})
		require.NoError(t, svc.HandleOrderStatusChanged(tenantCtx(), payload))
		repo.AssertExpectations(t)
	})

	t.Run("other transitions are a no-op", func(t *testing.T) {
		repo := new(mockStockRepo)
		orders := new(mockOrderGetter)
		svc := newStockService(repo, orders)

		payload := orderEvent(t, entities.OrderStatusChanged{
			OrderID:   "order-1",
			OldStatus: string(entities.StatusPending),
			NewStatus: string(entities.StatusConfirmed),
		})
		require.NoError(t, svc.HandleOrderStatusChanged(tenantCtx(), payload))
		orders.AssertNotCalled(t, "GetOrderByID", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestStockService_HandleOrderCancelled(t *testing.T) {
	repo := new(mockStockRepo)
	orders := new(mockOrderGetter)
	svc := newStockService(repo, orders)

	order := consumerOrder(t)
	orders.On("GetOrderByID", mock.Anything, "tenant-1", order.ID).Return(order, nil).Once()
	repo.On("ReleaseStockReservation", mock.Anything, "tenant-1", "sku-1", testWarehouse, 2).Return(nil).Once()
	repo.On("ReleaseStockReservation", mock.Anything, "tenant-1", "sku-2", testWarehouse, 1).Return(nil).Once()

	payload := orderEvent(t, entities.OrderCancelled{OrderID: order.ID, Reason: "customer request"})
	require.NoError(t, svc.HandleOrderCancelled(tenantCtx(), payload))
	repo.AssertExpectations(t)
}

func TestStockService_ReserveForOrderFailure(t *testing.T) {
	repo := new(mockStockRepo)
	orders := new(mockOrderGetter)
	svc := newStockService(repo, orders)

	order := consumerOrder(t)
	orders.On("GetOrderByID", mock.Anything, "tenant-1", order.ID).Return(order, nil).Once()
	repo.On("ReserveStock", mock.Anything, "tenant-1", "sku-1", testWarehouse, 2).Return(nil).Once()
	repo.On("ReserveStock", mock.Anything, "tenant-1", "sku-2", testWarehouse, 1).
		Return(entities.ErrInsufficientStock).Once()

	payload := orderEvent(t, entities.OrderCreated{OrderID: order.ID})
	err := svc.HandleOrderCreated(tenantCtx(), payload)
	assert.ErrorIs(t, err, entities.ErrInsufficientStock)
}
