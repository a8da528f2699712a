package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/velumlabs/fulfillment/internal/entities"
	"github.com/velumlabs/fulfillment/pkg/trm"
)

var orderColumns = []string{
	"order_id", "customer_id", "status", "zip", "city", "street", "region", "country",
	"total_amount", "shipping_cost", "carrier_id", "shipping_type_id", "estimated_days",
	"tracking_number", "cancel_reason", "tenant_id", "version", "created_at", "updated_at",
}

var itemColumns = []string{
	"order_id", "product_id", "name", "quantity", "unit_price", "weight_grams",
}

type postgresRepo struct {
	db *sqlx.DB
	qb sq.StatementBuilderType
}

func NewPostgresRepo(db *sqlx.DB) *postgresRepo {
	return &postgresRepo{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *postgresRepo) SaveOrder(ctx context.Context, o *entities.Order) error {
	query, args := r.qb.Insert("orders").
		Columns(orderColumns...).
		Values(
			o.ID, o.CustomerID, string(o.Status), o.Address.ZIP,
			nullString(o.Address.City), nullString(o.Address.Street),
			nullString(o.Address.Region), nullString(o.Address.Country),
			o.TotalAmount, o.ShippingCost,
			shippingCarrierID(o), shippingTypeID(o), shippingDays(o),
			nullString(o.TrackingNumber), nullString(o.CancelReason),
			o.TenantID, o.Version, o.CreatedAt, o.UpdatedAt,
		).
		MustSql()

	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}

	return r.saveItems(ctx, o.ID, o.Items)
}

func (r *postgresRepo) saveItems(ctx context.Context, orderID string, items []entities.Item) error {
	if len(items) == 0 {
		return nil
	}

	q := r.qb.Insert("order_items").Columns(itemColumns...)
	for _, it := range items {
		q = q.Values(orderID, it.ProductID, it.Name, it.Quantity, it.UnitPrice, it.WeightGrams)
	}

	query, args := q.MustSql()
	if _, err := r.execContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save order items: %w", err)
	}
	return nil
}

func (r *postgresRepo) GetOrderByID(ctx context.Context, tenantID, orderID string) (entities.Order, error) {
	query, args := r.qb.Select(orderColumns...).
		From("orders").
		Where(sq.Eq{"order_id": orderID, "tenant_id": tenantID}).
		MustSql()

	var order Order
	err := r.getContext(ctx, &order, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Order{}, entities.ErrOrderNotFound
	}
	if err != nil {
		return entities.Order{}, fmt.Errorf("failed to get order: %w", err)
	}

	items, err := r.orderItems(ctx, []string{orderID})
	if err != nil {
		return entities.Order{}, err
	}

	return OrderToEntity(order, items[orderID]), nil
}

func (r *postgresRepo) LatestOrders(ctx context.Context, count int) ([]entities.Order, error) {
	query, args := r.qb.Select(orderColumns...).
		From("orders").
		OrderBy("created_at DESC").
		Limit(uint64(count)).
		MustSql()

	var orders []Order
	if err := r.selectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select orders: %w", err)
	}
	if len(orders) == 0 {
		return []entities.Order{}, nil
	}

	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.OrderID
	}

	items, err := r.orderItems(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]entities.Order, 0, len(orders))
	for _, o := range orders {
		result = append(result, OrderToEntity(o, items[o.OrderID]))
	}
	return result, nil
}

// UpdateOrder writes the mutated aggregate back, guarded by the optimistic
// version. A stale version yields ErrConcurrencyConflict; the caller reloads
// and retries. On success the in-memory version is advanced to match the row.
func (r *postgresRepo) UpdateOrder(ctx context.Context, o *entities.Order) error {
	query, args := r.qb.Update("orders").
		Set("status", string(o.Status)).
		Set("total_amount", o.TotalAmount).
		Set("shipping_cost", o.ShippingCost).
		Set("carrier_id", shippingCarrierID(o)).
		Set("shipping_type_id", shippingTypeID(o)).
		Set("estimated_days", shippingDays(o)).
		Set("tracking_number", nullString(o.TrackingNumber)).
		Set("cancel_reason", nullString(o.CancelReason)).
		Set("updated_at", o.UpdatedAt).
		Set("version", o.Version+1).
		Where(sq.Eq{"order_id": o.ID, "tenant_id": o.TenantID, "version": o.Version}).
		MustSql()

	res, err := r.execContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return entities.ErrConcurrencyConflict
	}

	o.Version++
	return nil
}

func (r *postgresRepo) UpdateItemQuantity(ctx context.Context, tenantID, orderID, productID string, quantity int) error {
	query, args := r.qb.Update("order_items").
		Set("quantity", quantity).
		Where(sq.Eq{"order_id": orderID, "product_id": productID}).
		Where(sq.Expr("EXISTS (SELECT 1 FROM orders WHERE order_id = ? AND tenant_id = ?)", orderID, tenantID)).
		MustSql()

	res, err := r.execContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update item quantity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return entities.ErrOrderNotFound
	}
	return nil
}

func (r *postgresRepo) orderItems(ctx context.Context, orderIDs []string) (map[string][]Item, error) {
	query, args := r.qb.Select(itemColumns...).
		From("order_items").
		Where(sq.Eq{"order_id": orderIDs}).
		MustSql()

	var items []Item
	if err := r.selectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select order items: %w", err)
	}

	byOrder := make(map[string][]Item, len(orderIDs))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	return byOrder, nil
}

func shippingCarrierID(o *entities.Order) sql.NullInt32 {
	if o.Shipping == nil {
		return sql.NullInt32{}
	}
	return nullInt32(o.Shipping.CarrierID)
}

func shippingTypeID(o *entities.Order) sql.NullInt32 {
	if o.Shipping == nil {
		return sql.NullInt32{}
	}
	return nullInt32(o.Shipping.ShippingTypeID)
}

func shippingDays(o *entities.Order) sql.NullInt32 {
	if o.Shipping == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(o.Shipping.EstimatedDays), Valid: true}
}

func (r *postgresRepo) execContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	tx := trm.ExtractTx(ctx)
	if tx != nil {
		return tx.ExecContext(ctx, query, args...)
	}
	return r.db.ExecContext(ctx, query, args...)
}

func (r *postgresRepo) getContext(ctx context.Context, dest any, query string, args ...any) error {
	tx := trm.ExtractTx(ctx)
	if tx != nil {
		return tx.GetContext(ctx, dest, query, args...)
	}
	return r.db.GetContext(ctx, dest, query, args...)
}

func (r *postgresRepo) selectContext(ctx context.Context, dest any, query string, args ...any) error {
	tx := trm.ExtractTx(ctx)
	if tx != nil {
		return tx.SelectContext(ctx, dest, query, args...)
	}
	return r.db.SelectContext(ctx, dest, query, args...)
}
