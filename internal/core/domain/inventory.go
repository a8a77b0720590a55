package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrReservationMismatch = errors.New("reserved quantity mismatch")
)

type Inventory struct {
	SKU               string
	AvailableQuantity int
	ReservedQuantity  int
	MinimumStockLevel int
	Version           int64 // optimistic locking
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Unreserved is the quantity still open to new reservations.
func (i *Inventory) Unreserved() int {
	return i.AvailableQuantity - i.ReservedQuantity
}

func (i *Inventory) CanReserve(quantity int) bool {
	return i.Unreserved() >= quantity
}

// Reserve places a hold on stock without consuming it.
func (i *Inventory) Reserve(quantity int) error {
	if !i.CanReserve(quantity) {
		return fmt.Errorf("%w: sku %s has %d unreserved, requested %d",
			ErrInsufficientStock, i.SKU, i.Unreserved(), quantity)
	}
	i.ReservedQuantity += quantity
	return nil
}

// ConfirmReservation converts a hold into a permanent deduction.
func (i *Inventory) ConfirmReservation(quantity int) error {
	if i.ReservedQuantity < quantity {
		return fmt.Errorf("%w: sku %s has %d reserved, confirming %d",
			ErrReservationMismatch, i.SKU, i.ReservedQuantity, quantity)
	}
	i.ReservedQuantity -= quantity
	i.AvailableQuantity -= quantity
	return nil
}

// CancelReservation lifts a hold without touching available stock.
func (i *Inventory) CancelReservation(quantity int) error {
	if i.ReservedQuantity < quantity {
		return fmt.Errorf("%w: sku %s has %d reserved, cancelling %d",
			ErrReservationMismatch, i.SKU, i.ReservedQuantity, quantity)
	}
	i.ReservedQuantity -= quantity
	return nil
}

func (i *Inventory) BelowMinimum() bool {
	return i.Unreserved() < i.MinimumStockLevel
}
