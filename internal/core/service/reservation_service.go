package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hail0yz/PROJET-ECOM-sub000/internal/core/domain"
	"github.com/hail0yz/PROJET-ECOM-sub000/internal/port"
)

var (
	ErrReservationNotFound     = errors.New("reservation not found")
	ErrInvalidReservationState = errors.New("reservation is not active")
)

// ReservationService owns the reserve / confirm / release lifecycle.
// Inventory rows and the reservation ledger are only ever mutated
// together, inside one atomic unit, under optimistic-lock retry.
type ReservationService struct {
	store  port.StockStore
	cache  port.AvailabilityCache
	logger *zap.Logger
	policy RetryPolicy
	ttl    time.Duration
	now    func() time.Time
}

func NewReservationService(store port.StockStore, cache port.AvailabilityCache, logger *zap.Logger, policy RetryPolicy, ttl time.Duration) *ReservationService {
	if ttl <= 0 {
		ttl = domain.DefaultReservationTTL
	}
	return &ReservationService{
		store:  store,
		cache:  cache,
		logger: logger,
		policy: policy,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Reserve places a hold on stock for an order. The request is
// all-or-nothing: one unsatisfiable line item aborts every line. Calling
// it again for the same order is safe and reports the existing
// reservation.
func (s *ReservationService) Reserve(ctx context.Context, orderID string, items map[string]int) (domain.ReservationOutcome, error) {
	if orderID == "" {
		return domain.FailedOutcome("order id is required"), nil
	}
	if len(items) == 0 {
		return domain.FailedOutcome("no items to reserve"), nil
	}
	for sku, qty := range items {
		if qty <= 0 {
			return domain.FailedOutcome("invalid quantity %d for sku %s", qty, sku), nil
		}
	}

	skus := sortedSKUs(items)
	s.logger.Info("reserving stock",
		zap.String("orderId", orderID),
		zap.Int("skuCount", len(skus)))

	var outcome domain.ReservationOutcome
	err := withOptimisticRetry(ctx, s.policy, func() error {
		return s.store.RunAtomic(ctx, func(tx port.StockTx) error {
			existing, err := tx.FindReservationByOrderID(ctx, orderID)
			if err != nil && !errors.Is(err, port.ErrNotFound) {
				return err
			}
			if existing != nil {
				outcome = domain.AlreadyReservedOutcome(existing.ID)
				return nil
			}

			records, err := tx.FindInventoryBySKUs(ctx, skus)
			if err != nil {
				return err
			}
			if len(records) != len(skus) {
				outcome = domain.ProductNotFoundOutcome(missingSKUs(skus, records))
				return nil
			}

			shortfalls := make(map[string]int)
			for i := range records {
				if !records[i].CanReserve(items[records[i].SKU]) {
					shortfalls[records[i].SKU] = items[records[i].SKU]
				}
			}
			if len(shortfalls) > 0 {
				outcome = domain.InsufficientStockOutcome(shortfalls)
				return nil
			}

			now := s.now()
			for i := range records {
				if err := records[i].Reserve(items[records[i].SKU]); err != nil {
					return err
				}
				if err := tx.UpdateInventory(ctx, records[i]); err != nil {
					return err
				}
			}

			reservation := domain.NewReservation(uuid.NewString(), orderID, reservationItems(skus, items), now, s.ttl)
			if err := tx.InsertReservation(ctx, reservation); err != nil {
				return err
			}
			outcome = domain.ReservedOutcome(reservation.ID)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, ErrLockAcquisitionFailed) {
			s.logger.Warn("reserve exhausted retry budget",
				zap.String("orderId", orderID),
				zap.Error(err))
			return domain.LockAcquisitionFailedOutcome(), nil
		}
		return domain.ReservationOutcome{}, fmt.Errorf("reserve stock for order %s: %w", orderID, err)
	}

	if outcome.Status == domain.OutcomeReserved {
		s.refreshAvailability(ctx, skus)
		s.logger.Info("stock reserved",
			zap.String("orderId", orderID),
			zap.String("reservationId", outcome.ReservationID))
	}
	return outcome, nil
}

// Confirm permanently deducts the held stock of an order. Confirming a
// reservation that is not RESERVED is rejected: silently accepting it
// would deduct stock twice.
func (s *ReservationService) Confirm(ctx context.Context, orderID string) error {
	if orderID == "" {
		return fmt.Errorf("%w: empty order id", ErrReservationNotFound)
	}

	s.logger.Info("confirming reservation", zap.String("orderId", orderID))

	var touched []string
	err := withOptimisticRetry(ctx, s.policy, func() error {
		return s.store.RunAtomic(ctx, func(tx port.StockTx) error {
			reservation, err := s.activeReservation(ctx, tx, orderID)
			if err != nil {
				return err
			}

			records, err := s.reservedInventory(ctx, tx, reservation)
			if err != nil {
				return err
			}
			for _, item := range reservation.Items {
				rec := records[item.SKU]
				if err := rec.ConfirmReservation(item.Quantity); err != nil {
					return err
				}
				if err := tx.UpdateInventory(ctx, *rec); err != nil {
					return err
				}
			}

			reservation.Confirm(s.now())
			if err := tx.UpdateReservation(ctx, reservation); err != nil {
				return err
			}
			touched = itemSKUs(reservation.Items)
			return nil
		})
	})
	if err != nil {
		return err
	}

	s.refreshAvailability(ctx, touched)
	s.logger.Info("reservation confirmed", zap.String("orderId", orderID))
	return nil
}

// Release lifts the hold of an order without deducting stock. A
// reservation already confirmed or released is a no-op, so compensating
// callers can release defensively under retry or duplicate delivery.
func (s *ReservationService) Release(ctx context.Context, orderID string) error {
	if orderID == "" {
		return fmt.Errorf("%w: empty order id", ErrReservationNotFound)
	}

	s.logger.Info("releasing reservation", zap.String("orderId", orderID))

	var touched []string
	err := withOptimisticRetry(ctx, s.policy, func() error {
		return s.store.RunAtomic(ctx, func(tx port.StockTx) error {
			reservation, err := tx.FindReservationByOrderID(ctx, orderID)
			if errors.Is(err, port.ErrNotFound) {
				return fmt.Errorf("%w: order %s", ErrReservationNotFound, orderID)
			}
			if err != nil {
				return err
			}
			if reservation.IsTerminal() {
				s.logger.Warn("release skipped, reservation not active",
					zap.String("orderId", orderID),
					zap.String("reservationId", reservation.ID),
					zap.String("status", string(reservation.Status)))
				return nil
			}

			records, err := s.reservedInventory(ctx, tx, reservation)
			if err != nil {
				return err
			}
			for _, item := range reservation.Items {
				rec := records[item.SKU]
				if err := rec.CancelReservation(item.Quantity); err != nil {
					return err
				}
				if err := tx.UpdateInventory(ctx, *rec); err != nil {
					return err
				}
			}

			reservation.Release(s.now())
			if err := tx.UpdateReservation(ctx, reservation); err != nil {
				return err
			}
			touched = itemSKUs(reservation.Items)
			return nil
		})
	})
	if err != nil {
		return err
	}

	if len(touched) > 0 {
		s.refreshAvailability(ctx, touched)
		s.logger.Info("reservation released", zap.String("orderId", orderID))
	}
	return nil
}

func (s *ReservationService) activeReservation(ctx context.Context, tx port.StockTx, orderID string) (*domain.Reservation, error) {
	reservation, err := tx.FindReservationByOrderID(ctx, orderID)
	if errors.Is(err, port.ErrNotFound) {
		return nil, fmt.Errorf("%w: order %s", ErrReservationNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}
	if reservation.IsTerminal() {
		return nil, fmt.Errorf("%w: reservation %s is %s",
			ErrInvalidReservationState, reservation.ID, reservation.Status)
	}
	return reservation, nil
}

// reservedInventory re-reads the inventory rows referenced by a
// reservation inside the current transaction, keyed by SKU.
func (s *ReservationService) reservedInventory(ctx context.Context, tx port.StockTx, reservation *domain.Reservation) (map[string]*domain.Inventory, error) {
	skus := itemSKUs(reservation.Items)
	records, err := tx.FindInventoryBySKUs(ctx, skus)
	if err != nil {
		return nil, err
	}
	if len(records) != len(skus) {
		return nil, fmt.Errorf("%w: inventory rows for reservation %s",
			port.ErrNotFound, reservation.ID)
	}
	bySKU := make(map[string]*domain.Inventory, len(records))
	for i := range records {
		bySKU[records[i].SKU] = &records[i]
	}
	return bySKU, nil
}

// refreshAvailability pushes unreserved-quantity snapshots into the cache
// after a commit. Failures are logged, never surfaced: the cache is an
// optimization, not the source of truth.
func (s *ReservationService) refreshAvailability(ctx context.Context, skus []string) {
	if s.cache == nil || len(skus) == 0 {
		return
	}
	records, err := s.store.FindInventoryBySKUs(ctx, skus)
	if err != nil {
		s.logger.Warn("availability refresh read failed", zap.Error(err))
		return
	}
	for i := range records {
		if err := s.cache.SetAvailability(ctx, records[i].SKU, records[i].Unreserved()); err != nil {
			s.logger.Warn("availability cache write failed",
				zap.String("sku", records[i].SKU),
				zap.Error(err))
		}
	}
}

func sortedSKUs(items map[string]int) []string {
	skus := make([]string, 0, len(items))
	for sku := range items {
		skus = append(skus, sku)
	}
	sort.Strings(skus)
	return skus
}

func itemSKUs(items []domain.ReservationItem) []string {
	skus := make([]string, len(items))
	for i, item := range items {
		skus[i] = item.SKU
	}
	return skus
}

func missingSKUs(requested []string, found []domain.Inventory) []string {
	present := make(map[string]bool, len(found))
	for i := range found {
		present[found[i].SKU] = true
	}
	var missing []string
	for _, sku := range requested {
		if !present[sku] {
			missing = append(missing, sku)
		}
	}
	return missing
}

func reservationItems(skus []string, items map[string]int) []domain.ReservationItem {
	out := make([]domain.ReservationItem, len(skus))
	for i, sku := range skus {
		out[i] = domain.ReservationItem{SKU: sku, Quantity: items[sku]}
	}
	return out
}
