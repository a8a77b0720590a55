package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hail0yz/PROJET-ECOM-sub000/internal/core/domain"
	"github.com/hail0yz/PROJET-ECOM-sub000/internal/port"
)

// memStore is a synchronized in-memory port.StockStore for tests. Each
// RunAtomic works on a copy of the committed state and publishes it only
// when fn succeeds, mimicking transactional rollback. Holding the mutex
// across the whole unit serializes commits the way the database would.
type memStore struct {
	mu           sync.Mutex
	inventories  map[string]domain.Inventory
	reservations map[string]domain.Reservation // keyed by order id

	conflictsLeft int   // inject version conflicts on UpdateInventory
	updateErr     error // inject a fatal error on UpdateInventory
	txCount       int
}

func newMemStore(invs ...domain.Inventory) *memStore {
	s := &memStore{
		inventories:  make(map[string]domain.Inventory),
		reservations: make(map[string]domain.Reservation),
	}
	for _, inv := range invs {
		s.inventories[inv.SKU] = inv
	}
	return s
}

func (s *memStore) RunAtomic(ctx context.Context, fn func(tx port.StockTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++

	tx := &memTx{
		store:        s,
		inventories:  make(map[string]domain.Inventory, len(s.inventories)),
		reservations: make(map[string]domain.Reservation, len(s.reservations)),
	}
	for k, v := range s.inventories {
		tx.inventories[k] = v
	}
	for k, v := range s.reservations {
		tx.reservations[k] = cloneReservation(v)
	}

	if err := fn(tx); err != nil {
		return err
	}
	s.inventories = tx.inventories
	s.reservations = tx.reservations
	return nil
}

func (s *memStore) FindInventoryBySKUs(ctx context.Context, skus []string) ([]domain.Inventory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return findInventories(s.inventories, skus), nil
}

func (s *memStore) FindReservationByOrderID(ctx context.Context, orderID string) (*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return findReservation(s.reservations, orderID)
}

func (s *memStore) ListInventory(ctx context.Context) ([]domain.Inventory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	skus := make([]string, 0, len(s.inventories))
	for sku := range s.inventories {
		skus = append(skus, sku)
	}
	sort.Strings(skus)
	return findInventories(s.inventories, skus), nil
}

func (s *memStore) ListLowStock(ctx context.Context) ([]domain.Inventory, error) {
	all, _ := s.ListInventory(ctx)
	var low []domain.Inventory
	for _, inv := range all {
		if inv.BelowMinimum() {
			low = append(low, inv)
		}
	}
	return low, nil
}

func (s *memStore) FindExpiredOrderIDs(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var orderIDs []string
	for orderID, r := range s.reservations {
		if r.Status == domain.ReservationStatusReserved && !r.ExpiresAt.After(cutoff) {
			orderIDs = append(orderIDs, orderID)
		}
	}
	sort.Strings(orderIDs)
	if len(orderIDs) > limit {
		orderIDs = orderIDs[:limit]
	}
	return orderIDs, nil
}

func (s *memStore) inventory(sku string) domain.Inventory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inventories[sku]
}

func (s *memStore) reservation(orderID string) (domain.Reservation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[orderID]
	return cloneReservation(r), ok
}

type memTx struct {
	store        *memStore
	inventories  map[string]domain.Inventory
	reservations map[string]domain.Reservation
}

func (t *memTx) FindInventoryBySKUs(ctx context.Context, skus []string) ([]domain.Inventory, error) {
	return findInventories(t.inventories, skus), nil
}

func (t *memTx) FindReservationByOrderID(ctx context.Context, orderID string) (*domain.Reservation, error) {
	return findReservation(t.reservations, orderID)
}

func (t *memTx) UpdateInventory(ctx context.Context, inv domain.Inventory) error {
	if t.store.updateErr != nil {
		return t.store.updateErr
	}
	if t.store.conflictsLeft > 0 {
		t.store.conflictsLeft--
		return fmt.Errorf("inventory %s: %w", inv.SKU, port.ErrVersionConflict)
	}

	current, ok := t.inventories[inv.SKU]
	if !ok {
		return fmt.Errorf("inventory %s: %w", inv.SKU, port.ErrNotFound)
	}
	if current.Version != inv.Version {
		return fmt.Errorf("inventory %s: %w", inv.SKU, port.ErrVersionConflict)
	}
	inv.Version++
	t.inventories[inv.SKU] = inv
	return nil
}

func (t *memTx) InsertInventory(ctx context.Context, inv domain.Inventory) error {
	if _, ok := t.inventories[inv.SKU]; ok {
		return fmt.Errorf("inventory %s already exists", inv.SKU)
	}
	t.inventories[inv.SKU] = inv
	return nil
}

func (t *memTx) InsertReservation(ctx context.Context, r *domain.Reservation) error {
	if _, ok := t.reservations[r.OrderID]; ok {
		return fmt.Errorf("reservation for order %s already exists", r.OrderID)
	}
	t.reservations[r.OrderID] = cloneReservation(*r)
	return nil
}

func (t *memTx) UpdateReservation(ctx context.Context, r *domain.Reservation) error {
	current, ok := t.reservations[r.OrderID]
	if !ok {
		return fmt.Errorf("reservation for order %s: %w", r.OrderID, port.ErrNotFound)
	}
	if current.Status != domain.ReservationStatusReserved {
		return fmt.Errorf("reservation %s already terminal: %w", r.ID, port.ErrVersionConflict)
	}
	t.reservations[r.OrderID] = cloneReservation(*r)
	return nil
}

func findInventories(m map[string]domain.Inventory, skus []string) []domain.Inventory {
	var out []domain.Inventory
	for _, sku := range skus {
		if inv, ok := m[sku]; ok {
			out = append(out, inv)
		}
	}
	return out
}

func findReservation(m map[string]domain.Reservation, orderID string) (*domain.Reservation, error) {
	r, ok := m[orderID]
	if !ok {
		return nil, fmt.Errorf("reservation for order %s: %w", orderID, port.ErrNotFound)
	}
	clone := cloneReservation(r)
	return &clone, nil
}

func cloneReservation(r domain.Reservation) domain.Reservation {
	clone := r
	clone.Items = append([]domain.ReservationItem(nil), r.Items...)
	if r.ConfirmedAt != nil {
		t := *r.ConfirmedAt
		clone.ConfirmedAt = &t
	}
	if r.ReleasedAt != nil {
		t := *r.ReleasedAt
		clone.ReleasedAt = &t
	}
	return clone
}

// memCache records availability snapshots written by the service.
type memCache struct {
	mu     sync.Mutex
	values map[string]int
}

func newMemCache() *memCache {
	return &memCache{values: make(map[string]int)}
}

func (c *memCache) SetAvailability(ctx context.Context, sku string, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[sku] = quantity
	return nil
}

func (c *memCache) GetAvailability(ctx context.Context, sku string) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[sku]
	return v, ok, nil
}

func (c *memCache) Invalidate(ctx context.Context, sku string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, sku)
	return nil
}
