package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BaseHashrate is the fixed hashrate every bid carries.
const BaseHashrate = 5

type ReservationStatus string

const (
	ReservationStatusPending  ReservationStatus = "pending"
	ReservationStatusApproved ReservationStatus = "approved"
	ReservationStatusRejected ReservationStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationStatusPending, ReservationStatusApproved, ReservationStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further settlement can change the reservation.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationStatusApproved || s == ReservationStatusRejected
}

// Reservation is a user's bid on a session zone pending settlement.
type Reservation struct {
	ID string
	// RemoteID is the reservation id assigned by the settlement backend.
	RemoteID       string
	SessionID      string
	ZoneID         string
	PackageID      string
	BaseHashrate   int
	ExtraHashrate  int
	FrozenAmount   decimal.Decimal
	Status         ReservationStatus
	MatchTime      *time.Time
	ActualBuyPrice *decimal.Decimal
	RefundDiff     *decimal.Decimal
	// RefundedAmount is set on rejection: the whole frozen amount goes back.
	RefundedAmount *decimal.Decimal
	HoldingID      string
	IdempotencyKey string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FrozenAmount is the amount held against a bid: always the zone ceiling,
// never the eventual match price.
func FrozenAmount(z Zone) (decimal.Decimal, error) {
	return z.Ceiling()
}

// RefundDiff is the differential returned after an approved match.
func RefundDiff(frozen, actualBuyPrice decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, frozen.Sub(actualBuyPrice))
}

// BidFunds carries the advisory inputs checked before a bid is submitted.
type BidFunds struct {
	AvailableHashrate int
	ExtraHashrate     int
	AccountBalance    decimal.Decimal
	FrozenAmount      decimal.Decimal
}

// ValidateBidFunds applies the client-side gates; the settlement backend
// remains the final authority.
func ValidateBidFunds(f BidFunds) error {
	if f.ExtraHashrate < 0 {
		return ErrInvalidExtraHashrate
	}
	if f.AvailableHashrate < BaseHashrate || f.ExtraHashrate > MaxExtraHashrate(f.AvailableHashrate) {
		return ErrInsufficientHashrate
	}
	if f.AccountBalance.LessThan(f.FrozenAmount) {
		return ErrInsufficientBalance
	}
	return nil
}

// MaxExtraHashrate is the upper bound of the user-adjustable extra hashrate.
func MaxExtraHashrate(available int) int {
	if available <= BaseHashrate {
		return 0
	}
	return available - BaseHashrate
}
