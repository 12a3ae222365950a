package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type DeliveryStatus string

const (
	DeliveryStatusNotDelivered DeliveryStatus = "not_delivered"
	DeliveryStatusDelivered    DeliveryStatus = "delivered"
)

type ConsignmentStatus string

const (
	ConsignmentStatusNotConsigned ConsignmentStatus = "not_consigned"
	ConsignmentStatusPending      ConsignmentStatus = "pending"
	ConsignmentStatusConsigning   ConsignmentStatus = "consigning"
	ConsignmentStatusRejected     ConsignmentStatus = "rejected"
	ConsignmentStatusSold         ConsignmentStatus = "sold"
)

// consignmentCodes is the numeric encoding used by the backend.
var consignmentCodes = []ConsignmentStatus{
	ConsignmentStatusNotConsigned,
	ConsignmentStatusPending,
	ConsignmentStatusConsigning,
	ConsignmentStatusRejected,
	ConsignmentStatusSold,
}

// ParseConsignmentStatus accepts either the numeric code ("0".."4") or the
// status name in any case.
func ParseConsignmentStatus(raw string) (ConsignmentStatus, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		if n < 0 || n >= len(consignmentCodes) {
			return "", ErrInvalidStatus
		}
		return consignmentCodes[n], nil
	}
	s := ConsignmentStatus(strings.ToLower(raw))
	for _, known := range consignmentCodes {
		if s == known {
			return s, nil
		}
	}
	return "", ErrInvalidStatus
}

// Holding is a collectible unit owned by the user.
type Holding struct {
	ID            string
	UserID        string
	ReservationID string
	Title         string
	Price         decimal.Decimal
	MarketPrice   decimal.Decimal
	PurchaseTime  time.Time
	SessionID     string
	ZoneID        string
	PackageID     string

	DeliveryStatus    DeliveryStatus
	ConsignmentStatus ConsignmentStatus
	// HasConsignmentHistory is set the first time ConsignmentStatus leaves
	// not_consigned and is never cleared.
	HasConsignmentHistory bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (h Holding) IsConsigning() bool {
	return h.ConsignmentStatus == ConsignmentStatusPending || h.ConsignmentStatus == ConsignmentStatusConsigning
}

func (h Holding) HasSold() bool {
	return h.ConsignmentStatus == ConsignmentStatusSold
}

func (h Holding) IsDelivered() bool {
	return h.DeliveryStatus == DeliveryStatusDelivered
}

// Terminal reports whether the holding reached delivered or sold.
func (h Holding) Terminal() bool {
	return h.IsDelivered() || h.HasSold()
}

// HasScope reports whether the holding carries the session/zone pair coupons are scoped to.
func (h Holding) HasScope() bool {
	return h.SessionID != "" && h.ZoneID != "" && h.ZoneID != "0"
}

// ObserveConsignment records a consignment status reported by the backend.
// The history flag only ever moves from false to true.
func (h *Holding) ObserveConsignment(status ConsignmentStatus) error {
	if h.Terminal() && status != h.ConsignmentStatus {
		if h.HasSold() {
			return ErrHoldingSold
		}
		return ErrHoldingDelivered
	}
	h.ConsignmentStatus = status
	if status != ConsignmentStatusNotConsigned {
		h.HasConsignmentHistory = true
	}
	return nil
}

// CheckDeliverable applies the local delivery gates that do not depend on time.
func (h Holding) CheckDeliverable() error {
	switch {
	case h.HasSold():
		return ErrHoldingSold
	case h.IsConsigning():
		return ErrHoldingConsigning
	case h.IsDelivered():
		return ErrHoldingDelivered
	}
	return nil
}

// CheckConsignable applies the local consignment gates that do not depend on
// time or coupons.
func (h Holding) CheckConsignable() error {
	switch {
	case h.HasSold():
		return ErrHoldingSold
	case h.IsConsigning():
		return ErrHoldingConsigning
	case h.IsDelivered():
		return ErrHoldingDelivered
	case h.HasConsignmentHistory:
		return ErrDeliveryOnly
	}
	return nil
}

// RequiresForcedDelivery reports whether delivery needs the explicit
// forced-delivery confirmation.
func (h Holding) RequiresForcedDelivery() bool {
	return h.HasConsignmentHistory
}
