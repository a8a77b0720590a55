package port

import "context"

// AvailabilityCache holds per-SKU unreserved-quantity snapshots for fast
// availability reads. It is written through best-effort after commits and
// is never the source of truth.
type AvailabilityCache interface {
	// SetAvailability stores the current unreserved quantity for a SKU.
	SetAvailability(ctx context.Context, sku string, quantity int) error

	// GetAvailability returns the cached quantity and whether it was present.
	GetAvailability(ctx context.Context, sku string) (int, bool, error)

	// Invalidate drops the snapshot for a SKU.
	Invalidate(ctx context.Context, sku string) error
}
