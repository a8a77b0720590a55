package domain

import "fmt"

type OutcomeStatus string

const (
	OutcomeReserved              OutcomeStatus = "RESERVED"
	OutcomeAlreadyReserved       OutcomeStatus = "ALREADY_RESERVED"
	OutcomeInsufficientStock     OutcomeStatus = "INSUFFICIENT_STOCK"
	OutcomeProductNotFound       OutcomeStatus = "PRODUCT_NOT_FOUND"
	OutcomeLockAcquisitionFailed OutcomeStatus = "LOCK_ACQUISITION_FAILED"
	OutcomeFailed                OutcomeStatus = "FAILED"
)

// ReservationOutcome is the value returned by a reserve attempt. Expected
// business results (out of stock, unknown sku, duplicate order) travel
// here rather than as errors, so callers can branch on Status.
type ReservationOutcome struct {
	Status        OutcomeStatus  `json:"status"`
	ReservationID string         `json:"reservation_id,omitempty"`
	Shortfalls    map[string]int `json:"shortfalls,omitempty"`
	MissingSKUs   []string       `json:"missing_skus,omitempty"`
	Message       string         `json:"message,omitempty"`
}

// Reserved reports whether the order holds a reservation after the call,
// whether it was created now or on an earlier attempt.
func (o ReservationOutcome) Reserved() bool {
	return o.Status == OutcomeReserved || o.Status == OutcomeAlreadyReserved
}

func ReservedOutcome(reservationID string) ReservationOutcome {
	return ReservationOutcome{
		Status:        OutcomeReserved,
		ReservationID: reservationID,
		Message:       "stock reserved",
	}
}

func AlreadyReservedOutcome(reservationID string) ReservationOutcome {
	return ReservationOutcome{
		Status:        OutcomeAlreadyReserved,
		ReservationID: reservationID,
		Message:       "stock already reserved for this order",
	}
}

func InsufficientStockOutcome(shortfalls map[string]int) ReservationOutcome {
	return ReservationOutcome{
		Status:     OutcomeInsufficientStock,
		Shortfalls: shortfalls,
		Message:    "insufficient stock",
	}
}

func ProductNotFoundOutcome(missing []string) ReservationOutcome {
	return ReservationOutcome{
		Status:      OutcomeProductNotFound,
		MissingSKUs: missing,
		Message:     "at least one sku not found",
	}
}

func LockAcquisitionFailedOutcome() ReservationOutcome {
	return ReservationOutcome{
		Status:  OutcomeLockAcquisitionFailed,
		Message: "could not reserve under concurrent load, retry later",
	}
}

func FailedOutcome(format string, args ...any) ReservationOutcome {
	return ReservationOutcome{
		Status:  OutcomeFailed,
		Message: fmt.Sprintf(format, args...),
	}
}
