package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cimillas/ultimate-collectibles/internal/app"
	"github.com/cimillas/ultimate-collectibles/internal/domain"
	"github.com/shopspring/decimal"
)

// BidSubmitter is the minimal interface needed to submit and read reservations.
type BidSubmitter interface {
	SubmitBid(ctx context.Context, in app.SubmitBidInput) (app.SubmitBidResult, error)
	GetReservation(ctx context.Context, id string) (domain.Reservation, error)
}

// SettlementApplier records settlement outcomes reported by the backend.
type SettlementApplier interface {
	ApplyOutcome(ctx context.Context, reservationID string, out domain.ReservationOutcome) (domain.Reservation, error)
}

// HandleSubmitBid returns the handler for POST /reservations.
func HandleSubmitBid(svc BidSubmitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
		if key == "" {
			writeError(w, http.StatusBadRequest, codeIdempotencyRequired, domain.ErrIdempotencyKeyRequired.Error())
			return
		}

		var req submitBidRequest
		if !decodeJSON(w, r, &req, false) {
			return
		}

		res, err := svc.SubmitBid(r.Context(), app.SubmitBidInput{
			CollectibleID:     req.CollectibleID,
			SessionID:         req.SessionID,
			ZoneID:            req.ZoneID,
			PackageID:         req.PackageID,
			ExtraHashrate:     req.ExtraHashrate,
			AvailableHashrate: req.AvailableHashrate,
			AccountBalance:    req.AccountBalance,
			ListingCeiling:    req.ZonePrice,
			IdempotencyKey:    key,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		status := http.StatusOK
		if res.Created {
			status = http.StatusCreated
		}
		writeJSON(w, status, submitBidResponse{
			Reservation:      toReservationResponse(res.Reservation),
			Message:          res.Message,
			MaxExtraHashrate: res.MaxExtraHashrate,
		})
	}
}

// HandleReservation serves GET /reservations/{id} and
// POST /reservations/{id}/settlement.
func HandleReservation(reader BidSubmitter, settler SettlementApplier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parts := splitPath(r.URL.Path, "/reservations")
		switch {
		case len(parts) == 1:
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			res, err := reader.GetReservation(r.Context(), parts[0])
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, toReservationResponse(res))
		case len(parts) == 2 && parts[1] == "settlement":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			handleSettlement(w, r, settler, parts[0])
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

func handleSettlement(w http.ResponseWriter, r *http.Request, settler SettlementApplier, id string) {
	var req settlementRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	out := domain.ReservationOutcome{
		Status:    domain.ReservationStatus(req.Status),
		MatchTime: req.MatchTime,
	}
	if req.ActualBuyPrice.Valid {
		p := req.ActualBuyPrice.Decimal
		out.ActualBuyPrice = &p
	}
	if req.Holding != nil {
		h, err := req.Holding.toDomain()
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		out.Holding = &h
	}

	res, err := settler.ApplyOutcome(r.Context(), id, out)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponse(res))
}

type submitBidRequest struct {
	CollectibleID     string          `json:"collectible_id"`
	SessionID         string          `json:"session_id"`
	ZoneID            string          `json:"zone_id"`
	PackageID         string          `json:"package_id"`
	ExtraHashrate     int             `json:"extra_hashrate" validate:"gte=0"`
	AvailableHashrate int             `json:"available_hashrate" validate:"gte=0"`
	AccountBalance    decimal.Decimal `json:"account_balance"`
	// ZonePrice is the zone ceiling of the listing the bid was placed from.
	ZonePrice decimal.Decimal `json:"zone_price"`
}

type settlementRequest struct {
	Status         string              `json:"status" validate:"required,oneof=pending approved rejected"`
	MatchTime      *time.Time          `json:"match_time"`
	ActualBuyPrice decimal.NullDecimal `json:"actual_buy_price"`
	Holding        *holdingPayload     `json:"holding"`
}

type holdingPayload struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Price             decimal.Decimal `json:"price"`
	MarketPrice       decimal.Decimal `json:"market_price"`
	PurchaseTime      time.Time       `json:"purchase_time"`
	SessionID         string          `json:"session_id"`
	ZoneID            string          `json:"zone_id"`
	PackageID         string          `json:"package_id"`
	ConsignmentStatus string          `json:"consignment_status"`
}

func (p holdingPayload) toDomain() (domain.Holding, error) {
	h := domain.Holding{
		ID:                p.ID,
		Title:             p.Title,
		Price:             p.Price,
		MarketPrice:       p.MarketPrice,
		PurchaseTime:      p.PurchaseTime,
		SessionID:         p.SessionID,
		ZoneID:            p.ZoneID,
		PackageID:         p.PackageID,
		DeliveryStatus:    domain.DeliveryStatusNotDelivered,
		ConsignmentStatus: domain.ConsignmentStatusNotConsigned,
	}
	if p.ConsignmentStatus != "" {
		status, err := domain.ParseConsignmentStatus(p.ConsignmentStatus)
		if err != nil {
			return domain.Holding{}, err
		}
		if err := h.ObserveConsignment(status); err != nil {
			return domain.Holding{}, err
		}
	}
	return h, nil
}

type submitBidResponse struct {
	Reservation      reservationResponse `json:"reservation"`
	Message          string              `json:"message,omitempty"`
	MaxExtraHashrate int                 `json:"max_extra_hashrate"`
}

type reservationResponse struct {
	ID             string     `json:"id"`
	RemoteID       string     `json:"remote_id,omitempty"`
	SessionID      string     `json:"session_id"`
	ZoneID         string     `json:"zone_id"`
	PackageID      string     `json:"package_id"`
	BaseHashrate   int        `json:"base_hashrate"`
	ExtraHashrate  int        `json:"extra_hashrate"`
	FrozenAmount   string     `json:"frozen_amount"`
	Status         string     `json:"status"`
	MatchTime      *time.Time `json:"match_time,omitempty"`
	ActualBuyPrice *string    `json:"actual_buy_price,omitempty"`
	RefundDiff     *string    `json:"refund_diff,omitempty"`
	RefundedAmount *string    `json:"refunded_amount,omitempty"`
	HoldingID      string     `json:"holding_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toReservationResponse(r domain.Reservation) reservationResponse {
	return reservationResponse{
		ID:             r.ID,
		RemoteID:       r.RemoteID,
		SessionID:      r.SessionID,
		ZoneID:         r.ZoneID,
		PackageID:      r.PackageID,
		BaseHashrate:   r.BaseHashrate,
		ExtraHashrate:  r.ExtraHashrate,
		FrozenAmount:   money(r.FrozenAmount),
		Status:         string(r.Status),
		MatchTime:      r.MatchTime,
		ActualBuyPrice: moneyPtr(r.ActualBuyPrice),
		RefundDiff:     moneyPtr(r.RefundDiff),
		RefundedAmount: moneyPtr(r.RefundedAmount),
		HoldingID:      r.HoldingID,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func moneyPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := money(*d)
	return &s
}
