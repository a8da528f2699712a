package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/velumlabs/fulfillment/internal/entities"
)

var stockColumns = []string{"sku", "warehouse_id", "quantity", "reserved", "tenant_id", "updated_at"}

const pqUniqueViolation = "23505"

func (r *postgresRepo) CreateStock(ctx context.Context, s *entities.Stock) error {
	query, args := r.qb.Insert("stock").
		Columns(stockColumns...).
		Values(s.SKU, s.WarehouseID, s.Quantity, s.Reserved, s.TenantID, s.UpdatedAt).
		MustSql()

	_, err := r.execContext(ctx, query, args...)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return entities.ErrDuplicateStock
	}
	if err != nil {
		return fmt.Errorf("failed to create stock: %w", err)
	}
	return nil
}

func (r *postgresRepo) GetStock(ctx context.Context, tenantID, sku, warehouseID string) (entities.Stock, error) {
	query, args := r.qb.Select(stockColumns...).
		From("stock").
		Where(sq.Eq{"sku": sku, "warehouse_id": warehouseID, "tenant_id": tenantID}).
		MustSql()

	var stock Stock
	err := r.getContext(ctx, &stock, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.Stock{}, entities.ErrStockNotFound
	}
	if err != nil {
		return entities.Stock{}, fmt.Errorf("failed to get stock: %w", err)
	}
	return StockToEntity(stock), nil
}

// ReserveStock holds qty units with a single conditional update, so two
// concurrent reservations can never both pass a stale availability check.
func (r *postgresRepo) ReserveStock(ctx context.Context, tenantID, sku, warehouseID string, qty int) error {
	query, args := r.qb.Update("stock").
		Set("reserved", sq.Expr("reserved + ?", qty)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"sku": sku, "warehouse_id": warehouseID, "tenant_id": tenantID}).
		Where(sq.Expr("reserved + ? <= quantity", qty)).
		MustSql()

	return r.conditionalStockUpdate(ctx, tenantID, sku, warehouseID, query, args, entities.ErrInsufficientStock)
}

func (r *postgresRepo) ReleaseStockReservation(ctx context.Context, tenantID, sku, warehouseID string, qty int) error {
	query, args := r.qb.Update("stock").
		Set("reserved", sq.Expr("reserved - ?", qty)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"sku": sku, "warehouse_id": warehouseID, "tenant_id": tenantID}).
		Where(sq.Expr("reserved - ? >= 0", qty)).
		MustSql()

	return r.conditionalStockUpdate(ctx, tenantID, sku, warehouseID, query, args, entities.ErrInvalidRelease)
}

// DecreaseStock debits the on-hand quantity. Reserved is not adjusted; the
// condition keeps quantity - reserved (availability) non-negative.
func (r *postgresRepo) DecreaseStock(ctx context.Context, tenantID, sku, warehouseID string, qty int) error {
	query, args := r.qb.Update("stock").
		Set("quantity", sq.Expr("quantity - ?", qty)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"sku": sku, "warehouse_id": warehouseID, "tenant_id": tenantID}).
		Where(sq.Expr("quantity - ? >= reserved", qty)).
		MustSql()

	return r.conditionalStockUpdate(ctx, tenantID, sku, warehouseID, query, args, entities.ErrInsufficientStock)
}

func (r *postgresRepo) IncreaseStock(ctx context.Context, tenantID, sku, warehouseID string, qty int) error {
	query, args := r.qb.Update("stock").
		Set("quantity", sq.Expr("quantity + ?", qty)).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"sku": sku, "warehouse_id": warehouseID, "tenant_id": tenantID}).
		MustSql()

	return r.conditionalStockUpdate(ctx, tenantID, sku, warehouseID, query, args, nil)
}

// UpdateStockQuantity replaces quantity without touching reserved. It can
// leave availability negative when the new quantity is below the current
// reservation; callers guard that case themselves.
func (r *postgresRepo) UpdateStockQuantity(ctx context.Context, tenantID, sku, warehouseID string, qty int) error {
	query, args := r.qb.Update("stock").
		Set("quantity", qty).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"sku": sku, "warehouse_id": warehouseID, "tenant_id": tenantID}).
		MustSql()

	return r.conditionalStockUpdate(ctx, tenantID, sku, warehouseID, query, args, nil)
}

// conditionalStockUpdate runs a guarded update and maps a zero-row result to
// either the guard's domain error or ErrStockNotFound when the row is absent.
func (r *postgresRepo) conditionalStockUpdate(ctx context.Context, tenantID, sku, warehouseID, query string, args []any, guardErr error) error {
	res, err := r.execContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check stock update result: %w", err)
	}
	if affected > 0 {
		return nil
	}

	if _, err := r.GetStock(ctx, tenantID, sku, warehouseID); err != nil {
		return err
	}
	if guardErr != nil {
		return guardErr
	}
	return fmt.Errorf("stock update affected no rows for %s/%s", sku, warehouseID)
}
