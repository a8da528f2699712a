package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/velumlabs/fulfillment/internal/entities"
	"github.com/velumlabs/fulfillment/internal/service"
	"github.com/velumlabs/fulfillment/internal/tenant"
	"github.com/velumlabs/fulfillment/pkg/utils"
)

type OrderService interface {
	CreateOrder(ctx context.Context, customerID string, address entities.Address, items []entities.Item) (entities.Order, error)
	GetOrderByID(ctx context.Context, orderID string) (entities.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, next entities.Status, trackingNumber string) (entities.Order, error)
	CancelOrder(ctx context.Context, orderID, reason string) (entities.Order, error)
	CompleteOrder(ctx context.Context, orderID string, sel service.ShippingSelection) (entities.Order, error)
	UpdateItemQuantity(ctx context.Context, orderID, productID string, quantity int) (entities.Order, error)
	BatchUpdateStatus(ctx context.Context, orderIDs []string, next entities.Status) []service.BatchResult
}

type StockService interface {
	CreateStock(ctx context.Context, sku, warehouseID string, quantity int) (entities.Stock, error)
	GetStock(ctx context.Context, sku, warehouseID string) (entities.Stock, error)
	Reserve(ctx context.Context, sku, warehouseID string, qty int) (entities.Stock, error)
	ReleaseReservation(ctx context.Context, sku, warehouseID string, qty int) (entities.Stock, error)
	Decrease(ctx context.Context, sku, warehouseID string, qty int) (entities.Stock, error)
	Increase(ctx context.Context, sku, warehouseID string, qty int) (entities.Stock, error)
	UpdateQuantity(ctx context.Context, sku, warehouseID string, qty int) (entities.Stock, error)
}

type HTTPHandler struct {
	logger   *slog.Logger
	validate *validator.Validate
	orders   OrderService
	stock    StockService
}

func NewHTTPHandler(logger *slog.Logger, orders OrderService, stock StockService) *HTTPHandler {
	return &HTTPHandler{
		logger:   logger.With(slog.String("handler", "http")),
		validate: validator.New(),
		orders:   orders,
		stock:    stock,
	}
}

func (h *HTTPHandler) Init(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Post("/status", h.BatchUpdateStatus)
		r.Route("/{order_id}", func(r chi.Router) {
			r.Get("/", h.GetOrderByID)
			r.Patch("/status", h.UpdateStatus)
			r.Post("/cancel", h.CancelOrder)
			r.Post("/complete", h.CompleteOrder)
			r.Patch("/items/{product_id}", h.UpdateItemQuantity)
		})
	})

	r.Route("/stock", func(r chi.Router) {
		r.Post("/", h.CreateStock)
		r.Route("/{sku}/{warehouse_id}", func(r chi.Router) {
			r.Get("/", h.GetStock)
			r.Post("/reserve", h.stockOp(h.stock.Reserve))
			r.Post("/release", h.stockOp(h.stock.ReleaseReservation))
			r.Post("/decrease", h.stockOp(h.stock.Decrease))
			r.Post("/increase", h.stockOp(h.stock.Increase))
			r.Put("/quantity", h.SetStockQuantity)
		})
	})
}

// CreateOrder creates a pending order.
// @Summary      Create order
// @Tags         orders
// @Param        payload  body  CreateOrderRequest  true  "Order payload"
// @Success      201  {object}  Order
// @Failure      400  {object}  utils.ValidationErrorResponse
// @Router       /orders [post]
func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateOrderRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.orders.CreateOrder(ctx, req.CustomerID, AddressRequestToEntity(req.Address), ItemsRequestToEntity(req.Items))
	if err != nil {
		h.writeDomainError(ctx, w, err)
		return
	}

	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusCreated)
}

// GetOrderByID returns an order by id.
// @Summary      Get order
// @Tags         orders
// @Param        order_id  path  string  true  "Order id"
// @Success      200  {object}  Order
// @Failure      404  {object}  utils.ErrorResponse
// @Router       /orders/{order_id} [get]
func (h *HTTPHandler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	order, err := h.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		h.writeDomainError(ctx, w, err)
		return
	}

	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

// UpdateStatus transitions the order lifecycle.
// @Summary      Update order status
// @Tags         orders
// @Param        order_id  path  string               true  "Order id"
// @Param        payload   body  UpdateStatusRequest  true  "New status"
// @Success      200  {object}  Order
// @Failure      409  {object}  utils.ErrorResponse
// @Router       /orders/{order_id}/status [patch]
func (h *HTTPHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	var req UpdateStatusRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.orders.UpdateOrderStatus(ctx, orderID, entities.Status(req.Status), req.TrackingNumber)
	if err != nil {
		h.writeDomainError(ctx, w, err)
		return
	}

	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

// BatchUpdateStatus updates a set of orders concurrently, reporting the
// outcome per order.
// @Summary      Batch update order status
// @Tags         orders
// @Param        payload  body  BatchUpdateStatusRequest  true  "Order ids and status"
// @Success      207  {object}  BatchUpdateStatusResponse
// @Router       /orders/status [post]
func (h *HTTPHandler) BatchUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BatchUpdateStatusRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	results := h.orders.BatchUpdateStatus(ctx, req.OrderIDs, entities.Status(req.Status))

	resp := BatchUpdateStatusResponse{Results: make([]BatchResultJSON, 0, len(results))}
	for _, res := range results {
		out := BatchResultJSON{OrderID: res.OrderID, OK: res.Err == nil}
		if res.Err != nil {
			out.Error = res.Err.Error()
		}
		resp.Results = append(resp.Results, out)
	}

	utils.WriteJSON(w, resp, http.StatusMultiStatus)
}

// CancelOrder cancels a non-shipped order.
// @Summary      Cancel order
// @Tags         orders
// @Param        order_id  path  string              true  "Order id"
// @Param        payload   body  CancelOrderRequest  false "Cancellation reason"
// @Success      200  {object}  Order
// @Failure      409  {object}  utils.ErrorResponse
// @Router       /orders/{order_id}/cancel [post]
func (h *HTTPHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	// An empty body is a valid cancellation without a reason. Decoding
	// unconditionally keeps the reason on chunked requests, where
	// ContentLength is unknown.
	var req CancelOrderRequest
	if err := utils.DecodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	order, err := h.orders.CancelOrder(ctx, orderID, req.Reason)
	if err != nil {
		h.writeDomainError(ctx, w, err)
		return
	}

	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

// CompleteOrder confirms a pending order with a shipping selection.
// @Summary      Complete order
// @Tags         orders
// @Param        order_id  path  string                true  "Order id"
// @Param        payload   body  CompleteOrderRequest  true  "Shipping selection"
// @Success      200  {object}  Order
// @Failure      400  {object}  utils.ErrorResponse
// @Failure      409  {object}  utils.ErrorResponse
// @Router       /orders/{order_id}/complete [post]
func (h *HTTPHandler) CompleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")

	var req CompleteOrderRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.orders.CompleteOrder(ctx, orderID, service.ShippingSelection{
		CarrierID:      req.CarrierID,
		ShippingTypeID: req.ShippingTypeID,
	})
	if err != nil {
		h.writeDomainError(ctx, w, err)
		return
	}

	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

// UpdateItemQuantity changes an item's quantity on a pending order.
// @Summary      Update item quantity
// @Tags         orders
// @Param        order_id    path  string                     true  "Order id"
// @Param        product_id  path  string                     true  "Product id"
// @Param        payload     body  UpdateItemQuantityRequest  true  "New quantity"
// @Success      200  {object}  Order
// @Router       /orders/{order_id}/items/{product_id} [patch]
func (h *HTTPHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "order_id")
	productID := chi.URLParam(r, "product_id")

	var req UpdateItemQuantityRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	order, err := h.orders.UpdateItemQuantity(ctx, orderID, productID, req.Quantity)
	if err != nil {
		h.writeDomainError(ctx, w, err)
		return
	}

	utils.WriteJSON(w, OrderEntityToJSON(order), http.StatusOK)
}

// CreateStock creates a ledger entry for a SKU and warehouse.
// @Summary      Create stock
// @Tags         stock
// @Param        payload  body  StockRequest  true  "Stock payload"
// @Success      201  {object}  Stock
// @Failure      409  {object}  utils.ErrorResponse
// @Router       /stock [post]
func (h *HTTPHandler) CreateStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req StockRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	stock, err := h.stock.CreateStock(ctx, req.SKU, req.WarehouseID, req.Quantity)
	if err != nil {
		h.writeDomainError(ctx, w, err)
		return
	}

	utils.WriteJSON(w, StockEntityToJSON(stock), http.StatusCreated)
}

// GetStock returns the ledger entry for a SKU and warehouse.
// @Summary      Get stock
// @Tags         stock
// @Param        sku           path  string  true  "SKU"
// @Param        warehouse_id  path  string  true  "Warehouse id"
// @Success      200  {object}  Stock
// @Failure      404  {object}  utils.ErrorResponse
// @Router       /stock/{sku}/{warehouse_id} [get]
func (h *HTTPHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stock, err := h.stock.GetStock(ctx, chi.URLParam(r, "sku"), chi.URLParam(r, "warehouse_id"))
	if err != nil {
		h.writeDomainError(ctx, w, err)
		return
	}

	utils.WriteJSON(w, StockEntityToJSON(stock), http.StatusOK)
}

// stockOp adapts one quantity-taking ledger operation to an endpoint.
func (h *HTTPHandler) stockOp(op func(ctx context.Context, sku, warehouseID string, qty int) (entities.Stock, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req StockQuantityRequest
		if err := utils.DecodeBody(r, &req); err != nil {
			utils.WriteError(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := h.validate.Struct(req); err != nil {
			utils.WriteValidationError(w, err)
			return
		}

		stock, err := op(ctx, chi.URLParam(r, "sku"), chi.URLParam(r, "warehouse_id"), req.Quantity)
		if err != nil {
			h.writeDomainError(ctx, w, err)
			return
		}

		utils.WriteJSON(w, StockEntityToJSON(stock), http.StatusOK)
	}
}

// SetStockQuantity replaces the on-hand quantity.
// @Summary      Set stock quantity
// @Tags         stock
// @Param        sku           path  string                   true  "SKU"
// @Param        warehouse_id  path  string                   true  "Warehouse id"
// @Param        payload       body  StockSetQuantityRequest  true  "Absolute quantity"
// @Success      200  {object}  Stock
// @Router       /stock/{sku}/{warehouse_id}/quantity [put]
func (h *HTTPHandler) SetStockQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req StockSetQuantityRequest
	if err := utils.DecodeBody(r, &req); err != nil {
		utils.WriteError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	stock, err := h.stock.UpdateQuantity(ctx, chi.URLParam(r, "sku"), chi.URLParam(r, "warehouse_id"), req.Quantity)
	if err != nil {
		h.writeDomainError(ctx, w, err)
		return
	}

	utils.WriteJSON(w, StockEntityToJSON(stock), http.StatusOK)
}

func (h *HTTPHandler) writeDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entities.ErrOrderNotFound), errors.Is(err, entities.ErrStockNotFound):
		utils.WriteError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, entities.ErrInvalidArgument):
		utils.WriteError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, tenant.ErrNoTenant):
		utils.WriteError(w, "tenant header is required", http.StatusBadRequest)
	case errors.Is(err, entities.ErrInvalidState),
		errors.Is(err, entities.ErrConcurrencyConflict),
		errors.Is(err, entities.ErrInsufficientStock),
		errors.Is(err, entities.ErrInvalidRelease),
		errors.Is(err, entities.ErrDuplicateStock):
		utils.WriteError(w, err.Error(), http.StatusConflict)
	default:
		h.logger.ErrorContext(ctx, "internal error", slog.Any("error", err))
		utils.WriteError(w, "internal server error", http.StatusInternalServerError)
	}
}
