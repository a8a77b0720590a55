package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hail0yz/PROJET-ECOM-sub000/internal/core/domain"
	"github.com/hail0yz/PROJET-ECOM-sub000/internal/port"
)

var (
	ErrInventoryNotFound = errors.New("inventory not found")
	ErrInventoryExists   = errors.New("inventory already exists")
	ErrInvalidQuantity   = errors.New("invalid quantity")
)

// CreateInventory provisions the stock row for a new SKU.
func (s *ReservationService) CreateInventory(ctx context.Context, sku string, available, minimumStockLevel int) (*domain.Inventory, error) {
	if sku == "" {
		return nil, fmt.Errorf("%w: empty sku", ErrInventoryNotFound)
	}
	if available < 0 || minimumStockLevel < 0 {
		return nil, fmt.Errorf("%w: available %d, minimum %d", ErrInvalidQuantity, available, minimumStockLevel)
	}

	inv := domain.Inventory{
		SKU:               sku,
		AvailableQuantity: available,
		MinimumStockLevel: minimumStockLevel,
	}
	err := s.store.RunAtomic(ctx, func(tx port.StockTx) error {
		existing, err := tx.FindInventoryBySKUs(ctx, []string{sku})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return fmt.Errorf("%w: sku %s", ErrInventoryExists, sku)
		}
		return tx.InsertInventory(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.refreshAvailability(ctx, []string{sku})
	s.logger.Info("inventory created",
		zap.String("sku", sku),
		zap.Int("available", available))
	return &inv, nil
}

// AddStock receives quantity units into an existing SKU. The write is
// version-checked and retried like any other inventory mutation.
func (s *ReservationService) AddStock(ctx context.Context, sku string, quantity int) (*domain.Inventory, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}

	var updated domain.Inventory
	err := withOptimisticRetry(ctx, s.policy, func() error {
		return s.store.RunAtomic(ctx, func(tx port.StockTx) error {
			records, err := tx.FindInventoryBySKUs(ctx, []string{sku})
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return fmt.Errorf("%w: sku %s", ErrInventoryNotFound, sku)
			}
			records[0].AvailableQuantity += quantity
			if err := tx.UpdateInventory(ctx, records[0]); err != nil {
				return err
			}
			updated = records[0]
			updated.Version++
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.refreshAvailability(ctx, []string{sku})
	s.logger.Info("stock added",
		zap.String("sku", sku),
		zap.Int("quantity", quantity))
	return &updated, nil
}

func (s *ReservationService) GetInventory(ctx context.Context, sku string) (*domain.Inventory, error) {
	records, err := s.store.FindInventoryBySKUs(ctx, []string{sku})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: sku %s", ErrInventoryNotFound, sku)
	}
	return &records[0], nil
}

// Availability answers "how many units could an order still reserve".
// Cache first, store on miss, snapshot refilled on the way out.
func (s *ReservationService) Availability(ctx context.Context, sku string) (int, error) {
	if s.cache != nil {
		qty, ok, err := s.cache.GetAvailability(ctx, sku)
		if err != nil {
			s.logger.Warn("availability cache read failed",
				zap.String("sku", sku),
				zap.Error(err))
		} else if ok {
			return qty, nil
		}
	}

	inv, err := s.GetInventory(ctx, sku)
	if err != nil {
		return 0, err
	}
	s.refreshAvailability(ctx, []string{sku})
	return inv.Unreserved(), nil
}

func (s *ReservationService) ListInventory(ctx context.Context) ([]domain.Inventory, error) {
	return s.store.ListInventory(ctx)
}

func (s *ReservationService) ListLowStock(ctx context.Context) ([]domain.Inventory, error) {
	return s.store.ListLowStock(ctx)
}
