package domain

import "errors"

var (
	ErrZoneNotFound            = errors.New("zone not found")
	ErrZoneCeilingUnresolvable = errors.New("zone ceiling price unresolvable")
	ErrSessionNotFound         = errors.New("session not found")
	ErrInvalidID               = errors.New("invalid id")
	ErrMissingIdentifiers      = errors.New("session, zone and package ids are required")
	ErrIdempotencyKeyRequired  = errors.New("idempotency key required")
	ErrIdempotencyConflict     = errors.New("idempotency conflict")

	ErrInvalidExtraHashrate = errors.New("extra hashrate out of range")
	ErrInsufficientHashrate = errors.New("insufficient hashrate")
	ErrInsufficientBalance  = errors.New("insufficient balance")

	ErrReservationNotFound = errors.New("reservation not found")
	ErrReservationTerminal = errors.New("reservation already settled")
	ErrInvalidStatus       = errors.New("invalid status")

	ErrHoldingNotFound                    = errors.New("holding not found")
	ErrHoldingSold                        = errors.New("holding already sold")
	ErrHoldingConsigning                  = errors.New("holding is being consigned")
	ErrHoldingDelivered                   = errors.New("holding already delivered")
	ErrDeliveryOnly                       = errors.New("holding was consigned before and can only be delivered")
	ErrNotUnlocked                        = errors.New("holding not yet unlocked")
	ErrNoMatchingCoupon                   = errors.New("no matching consignment coupon")
	ErrInvalidPrice                       = errors.New("invalid price")
	ErrForcedDeliveryConfirmationRequired = errors.New("this item was once consigned; forced delivery requires confirmation")
)
