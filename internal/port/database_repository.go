package port

import (
	"context"
	"errors"
	"time"

	"github.com/hail0yz/PROJET-ECOM-sub000/internal/core/domain"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned when a versioned write lost the race
	// against a concurrent writer. It is the only retryable error class.
	ErrVersionConflict = errors.New("version conflict")
)

// StockReader is the read surface shared by the store and its transactions.
type StockReader interface {
	// FindInventoryBySKUs returns the inventory rows for the given SKUs.
	// Missing SKUs are simply absent from the result.
	FindInventoryBySKUs(ctx context.Context, skus []string) ([]domain.Inventory, error)

	// FindReservationByOrderID returns the reservation for an order,
	// items included, or ErrNotFound.
	FindReservationByOrderID(ctx context.Context, orderID string) (*domain.Reservation, error)
}

// StockTx is the write surface available inside one atomic unit.
type StockTx interface {
	StockReader

	// UpdateInventory writes an inventory row if and only if its version
	// is unchanged since the read; ErrVersionConflict otherwise. The
	// stored version is bumped on success.
	UpdateInventory(ctx context.Context, inv domain.Inventory) error

	InsertInventory(ctx context.Context, inv domain.Inventory) error

	InsertReservation(ctx context.Context, r *domain.Reservation) error

	// UpdateReservation advances a reservation out of RESERVED. A row
	// already in a terminal state yields ErrVersionConflict.
	UpdateReservation(ctx context.Context, r *domain.Reservation) error
}

// StockStore is the transactional persistence boundary of the reservation
// engine. All mutations go through RunAtomic: either every write in fn
// commits, or none do.
type StockStore interface {
	StockReader

	RunAtomic(ctx context.Context, fn func(tx StockTx) error) error

	ListInventory(ctx context.Context) ([]domain.Inventory, error)

	// ListLowStock returns rows whose unreserved quantity is below their
	// minimum stock level.
	ListLowStock(ctx context.Context) ([]domain.Inventory, error)

	// FindExpiredOrderIDs returns order ids of RESERVED reservations whose
	// expiry is at or before cutoff, bounded by limit.
	FindExpiredOrderIDs(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}
