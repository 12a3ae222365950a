package backend

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/cimillas/ultimate-collectibles/internal/domain"
	"github.com/shopspring/decimal"
)

// Outcome is the success discriminator of a backend response. The backend
// sends it as a number or as a string; both collapse here.
type Outcome int

const (
	OutcomeFailure Outcome = iota
	OutcomeSuccess
)

func parseOutcome(code string) Outcome {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "0", "200", "success", "ok":
		return OutcomeSuccess
	}
	return OutcomeFailure
}

// flexString decodes a JSON string, number or boolean into its text form.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

// epochSeconds decodes seconds since epoch sent as a number or a string.
type epochSeconds struct {
	time.Time
}

func (e *epochSeconds) UnmarshalJSON(b []byte) error {
	var raw flexString
	if err := raw.UnmarshalJSON(b); err != nil {
		return err
	}
	if raw == "" || raw == "0" {
		e.Time = time.Time{}
		return nil
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return err
	}
	e.Time = time.Unix(int64(f), 0).UTC()
	return nil
}

func (e epochSeconds) ptr() *time.Time {
	if e.IsZero() {
		return nil
	}
	t := e.Time
	return &t
}

type envelope struct {
	Code    flexString      `json:"code"`
	Message string          `json:"message"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

func (e envelope) outcome() Outcome {
	return parseOutcome(string(e.Code))
}

func (e envelope) message() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Msg
}

type collectibleDetailDTO struct {
	Price          decimal.NullDecimal `json:"price"`
	PriceZoneLabel string              `json:"price_zone_label"`
	ZonePrice      decimal.NullDecimal `json:"zone_price"`
	MaxPrice       decimal.NullDecimal `json:"max_price"`
	SessionID      flexString          `json:"session_id"`
	ZoneID         flexString          `json:"zone_id"`
	PackageID      flexString          `json:"package_id"`
}

type zoneDTO struct {
	ID           flexString          `json:"id"`
	Name         string              `json:"name"`
	CeilingPrice decimal.NullDecimal `json:"ceiling_price"`
}

type sessionDTO struct {
	ID        flexString   `json:"id"`
	Title     string       `json:"title"`
	StartTime epochSeconds `json:"start_time"`
	EndTime   epochSeconds `json:"end_time"`
	Zones     []zoneDTO    `json:"zones"`
}

func (s sessionDTO) toDomain(fallbackID string) domain.Session {
	id := string(s.ID)
	if id == "" {
		id = fallbackID
	}
	out := domain.Session{
		ID:        id,
		Title:     s.Title,
		StartTime: s.StartTime.Time,
		EndTime:   s.EndTime.Time,
		Zones:     make([]domain.Zone, 0, len(s.Zones)),
	}
	for _, z := range s.Zones {
		zone := domain.Zone{ID: string(z.ID), SessionID: id, Name: z.Name}
		if z.CeilingPrice.Valid {
			zone.CeilingPrice = z.CeilingPrice.Decimal
		}
		out.Zones = append(out.Zones, zone)
	}
	return out
}

type bidRequestDTO struct {
	SessionID     string `json:"session_id"`
	ZoneID        string `json:"zone_id"`
	PackageID     string `json:"package_id"`
	ExtraHashrate int    `json:"extra_hashrate"`
}

type bidResultDTO struct {
	ReservationID flexString `json:"reservation_id"`
}

type eligibilityDTO struct {
	Unlocked         bool `json:"unlocked"`
	RemainingSeconds *int `json:"remaining_seconds"`
}

type couponDTO struct {
	ID        flexString `json:"id"`
	SessionID flexString `json:"session_id"`
	ZoneID    flexString `json:"zone_id"`
}

type consignmentRequestDTO struct {
	Price string `json:"price"`
}

type consignmentResultDTO struct {
	CouponConsumed  *bool `json:"coupon_consumed"`
	CouponRemaining *int  `json:"coupon_remaining"`
}

type holdingDTO struct {
	ID                flexString          `json:"id"`
	Title             string              `json:"title"`
	Price             decimal.NullDecimal `json:"price"`
	MarketPrice       decimal.NullDecimal `json:"market_price"`
	PurchaseTime      epochSeconds        `json:"purchase_time"`
	SessionID         flexString          `json:"session_id"`
	ZoneID            flexString          `json:"zone_id"`
	PackageID         flexString          `json:"package_id"`
	DeliveryStatus    flexString          `json:"delivery_status"`
	ConsignmentStatus flexString          `json:"consignment_status"`
}

func (h holdingDTO) toDomain() (domain.Holding, error) {
	out := domain.Holding{
		ID:                string(h.ID),
		Title:             h.Title,
		PurchaseTime:      h.PurchaseTime.Time,
		SessionID:         string(h.SessionID),
		ZoneID:            string(h.ZoneID),
		PackageID:         string(h.PackageID),
		DeliveryStatus:    domain.DeliveryStatusNotDelivered,
		ConsignmentStatus: domain.ConsignmentStatusNotConsigned,
	}
	if h.Price.Valid {
		out.Price = h.Price.Decimal
	}
	if h.MarketPrice.Valid {
		out.MarketPrice = h.MarketPrice.Decimal
	}
	if h.ConsignmentStatus != "" {
		status, err := domain.ParseConsignmentStatus(string(h.ConsignmentStatus))
		if err != nil {
			return domain.Holding{}, err
		}
		if err := out.ObserveConsignment(status); err != nil {
			return domain.Holding{}, err
		}
	}
	switch strings.ToLower(string(h.DeliveryStatus)) {
	case "1", "delivered":
		out.DeliveryStatus = domain.DeliveryStatusDelivered
	}
	return out, nil
}

type reservationDTO struct {
	Status         flexString          `json:"status"`
	MatchTime      epochSeconds        `json:"match_time"`
	ActualBuyPrice decimal.NullDecimal `json:"actual_buy_price"`
	Holding        *holdingDTO         `json:"holding"`
}

// reservationStatus maps the backend's reservation status codes.
func reservationStatus(raw string) (domain.ReservationStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "0", "pending":
		return domain.ReservationStatusPending, nil
	case "1", "approved":
		return domain.ReservationStatusApproved, nil
	case "2", "rejected", "refunded":
		return domain.ReservationStatusRejected, nil
	}
	return "", domain.ErrInvalidStatus
}
