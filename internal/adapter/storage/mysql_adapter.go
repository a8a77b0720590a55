package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hail0yz/PROJET-ECOM-sub000/internal/core/domain"
	"github.com/hail0yz/PROJET-ECOM-sub000/internal/port"
)

// MySQLStore implements port.StockStore on a relational schema with a
// version column per inventory row. Conflicts are detected, not
// prevented: writes carry WHERE version = ? and a zero row count means a
// concurrent writer won.
type MySQLStore struct {
	queries
	db *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{queries: queries{q: db}, db: db}
}

func (m *MySQLStore) RunAtomic(ctx context.Context, fn func(tx port.StockTx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&mysqlTx{queries: queries{q: tx}, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (m *MySQLStore) ListInventory(ctx context.Context) ([]domain.Inventory, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT sku, available_quantity, reserved_quantity, minimum_stock_level, version, created_at, updated_at
		FROM inventories ORDER BY sku`)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	defer rows.Close()
	return scanInventories(rows)
}

func (m *MySQLStore) ListLowStock(ctx context.Context) ([]domain.Inventory, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT sku, available_quantity, reserved_quantity, minimum_stock_level, version, created_at, updated_at
		FROM inventories
		WHERE available_quantity - reserved_quantity < minimum_stock_level
		ORDER BY sku`)
	if err != nil {
		return nil, fmt.Errorf("list low stock: %w", err)
	}
	defer rows.Close()
	return scanInventories(rows)
}

func (m *MySQLStore) FindExpiredOrderIDs(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT order_id FROM stock_reservations
		WHERE status = ? AND expires_at <= ?
		ORDER BY expires_at LIMIT ?`,
		domain.ReservationStatusReserved, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("find expired reservations: %w", err)
	}
	defer rows.Close()

	var orderIDs []string
	for rows.Next() {
		var orderID string
		if err := rows.Scan(&orderID); err != nil {
			return nil, fmt.Errorf("scan expired reservation: %w", err)
		}
		orderIDs = append(orderIDs, orderID)
	}
	return orderIDs, rows.Err()
}

type mysqlTx struct {
	queries
	tx *sql.Tx
}

func (t *mysqlTx) UpdateInventory(ctx context.Context, inv domain.Inventory) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE inventories
		SET available_quantity = ?, reserved_quantity = ?, minimum_stock_level = ?,
		    version = version + 1, updated_at = NOW()
		WHERE sku = ? AND version = ?`,
		inv.AvailableQuantity, inv.ReservedQuantity, inv.MinimumStockLevel,
		inv.SKU, inv.Version)
	if err != nil {
		return fmt.Errorf("update inventory %s: %w", inv.SKU, err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("inventory %s at version %d: %w", inv.SKU, inv.Version, port.ErrVersionConflict)
	}
	return nil
}

func (t *mysqlTx) InsertInventory(ctx context.Context, inv domain.Inventory) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO inventories (sku, available_quantity, reserved_quantity, minimum_stock_level, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, NOW(), NOW())`,
		inv.SKU, inv.AvailableQuantity, inv.ReservedQuantity, inv.MinimumStockLevel)
	if err != nil {
		return fmt.Errorf("insert inventory %s: %w", inv.SKU, err)
	}
	return nil
}

func (t *mysqlTx) InsertReservation(ctx context.Context, r *domain.Reservation) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO stock_reservations (id, order_id, status, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.OrderID, r.Status, r.ExpiresAt, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reservation %s: %w", r.ID, err)
	}

	for _, item := range r.Items {
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO stock_reservation_items (reservation_id, sku, reserved_quantity)
			VALUES (?, ?, ?)`,
			r.ID, item.SKU, item.Quantity)
		if err != nil {
			return fmt.Errorf("insert reservation item %s/%s: %w", r.ID, item.SKU, err)
		}
	}
	return nil
}

func (t *mysqlTx) UpdateReservation(ctx context.Context, r *domain.Reservation) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE stock_reservations
		SET status = ?, confirmed_at = ?, released_at = ?
		WHERE id = ? AND status = ?`,
		r.Status, nullableTime(r.ConfirmedAt), nullableTime(r.ReleasedAt),
		r.ID, domain.ReservationStatusReserved)
	if err != nil {
		return fmt.Errorf("update reservation %s: %w", r.ID, err)
	}

	// A terminal row can no longer move; a concurrent confirm/release got
	// there first.
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("reservation %s already terminal: %w", r.ID, port.ErrVersionConflict)
	}
	return nil
}

// queries holds the reads shared between the store and its transactions.
type queries struct {
	q querier
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s queries) FindInventoryBySKUs(ctx context.Context, skus []string) ([]domain.Inventory, error) {
	if len(skus) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(skus))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(skus))
	for i, sku := range skus {
		args[i] = sku
	}

	rows, err := s.q.QueryContext(ctx, fmt.Sprintf(`
		SELECT sku, available_quantity, reserved_quantity, minimum_stock_level, version, created_at, updated_at
		FROM inventories WHERE sku IN (%s) ORDER BY sku`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("query inventories: %w", err)
	}
	defer rows.Close()
	return scanInventories(rows)
}

func (s queries) FindReservationByOrderID(ctx context.Context, orderID string) (*domain.Reservation, error) {
	var (
		r           domain.Reservation
		confirmedAt sql.NullTime
		releasedAt  sql.NullTime
	)
	err := s.q.QueryRowContext(ctx, `
		SELECT id, order_id, status, expires_at, confirmed_at, released_at, created_at
		FROM stock_reservations WHERE order_id = ?`, orderID,
	).Scan(&r.ID, &r.OrderID, &r.Status, &r.ExpiresAt, &confirmedAt, &releasedAt, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reservation for order %s: %w", orderID, port.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query reservation: %w", err)
	}

	if confirmedAt.Valid {
		r.ConfirmedAt = &confirmedAt.Time
	}
	if releasedAt.Valid {
		r.ReleasedAt = &releasedAt.Time
	}

	itemRows, err := s.q.QueryContext(ctx, `
		SELECT sku, reserved_quantity FROM stock_reservation_items
		WHERE reservation_id = ? ORDER BY sku`, r.ID)
	if err != nil {
		return nil, fmt.Errorf("query reservation items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item domain.ReservationItem
		if err := itemRows.Scan(&item.SKU, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan reservation item: %w", err)
		}
		r.Items = append(r.Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanInventories(rows *sql.Rows) ([]domain.Inventory, error) {
	var out []domain.Inventory
	for rows.Next() {
		var inv domain.Inventory
		if err := rows.Scan(
			&inv.SKU, &inv.AvailableQuantity, &inv.ReservedQuantity,
			&inv.MinimumStockLevel, &inv.Version, &inv.CreatedAt, &inv.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
