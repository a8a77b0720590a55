package domain

import "time"

type ReservationStatus string

const (
	ReservationStatusReserved  ReservationStatus = "RESERVED"
	ReservationStatusConfirmed ReservationStatus = "CONFIRMED"
	ReservationStatusReleased  ReservationStatus = "RELEASED"
)

// DefaultReservationTTL is how long a hold stays valid before it is
// eligible for expiration sweeping.
const DefaultReservationTTL = 24 * time.Hour

type ReservationItem struct {
	SKU      string
	Quantity int
}

// Reservation is a provisional hold on stock for one order. RESERVED is
// the only state that can still change; CONFIRMED and RELEASED are
// terminal and mutually exclusive.
type Reservation struct {
	ID          string
	OrderID     string
	Items       []ReservationItem
	Status      ReservationStatus
	ExpiresAt   time.Time
	ConfirmedAt *time.Time
	ReleasedAt  *time.Time
	CreatedAt   time.Time
}

func NewReservation(id, orderID string, items []ReservationItem, now time.Time, ttl time.Duration) *Reservation {
	return &Reservation{
		ID:        id,
		OrderID:   orderID,
		Items:     items,
		Status:    ReservationStatusReserved,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

func (r *Reservation) IsTerminal() bool {
	return r.Status != ReservationStatusReserved
}

func (r *Reservation) IsExpired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

func (r *Reservation) Confirm(now time.Time) {
	r.Status = ReservationStatusConfirmed
	r.ConfirmedAt = &now
}

func (r *Reservation) Release(now time.Time) {
	r.Status = ReservationStatusReleased
	r.ReleasedAt = &now
}
