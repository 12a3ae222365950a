package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrTransient marks network or server failures that may be retried; no state
// is assumed changed when it is returned.
var ErrTransient = errors.New("backend temporarily unavailable")

// RemoteError is a business-rule rejection returned by the backend. Message is
// shown to the user verbatim.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote rejected (%s): %s", e.Code, e.Message)
}

type BidRequest struct {
	SessionID      string
	ZoneID         string
	PackageID      string
	ExtraHashrate  int
	IdempotencyKey string
}

type BidReceipt struct {
	ReservationID string
	Message       string
}

type ConsignmentReceipt struct {
	Message         string
	CouponConsumed  *bool
	CouponRemaining *int
}

type DeliveryReceipt struct {
	Message string
}

// ReservationOutcome is the settlement backend's view of a reservation.
type ReservationOutcome struct {
	Status         ReservationStatus
	MatchTime      *time.Time
	ActualBuyPrice *decimal.Decimal
	// Holding is present once an approved reservation produced a collectible.
	Holding *Holding
}
