package http

import (
	"context"
	"net/http"
	"time"

	"github.com/cimillas/ultimate-collectibles/internal/app"
	"github.com/cimillas/ultimate-collectibles/internal/coupon"
	"github.com/cimillas/ultimate-collectibles/internal/domain"
	"github.com/cimillas/ultimate-collectibles/internal/eligibility"
)

// DispositionService is the interface the holding endpoints need.
type DispositionService interface {
	GetHolding(ctx context.Context, id string) (domain.Holding, error)
	Eligibility(ctx context.Context, holdingID string) (eligibility.Status, error)
	Countdown(ctx context.Context, holdingID string) (<-chan eligibility.Status, error)
	Coupons(ctx context.Context, holdingID string) (coupon.Result, error)
	RequestDelivery(ctx context.Context, in app.DeliveryInput) (app.DeliveryResult, error)
	RequestConsignment(ctx context.Context, holdingID string) (app.ConsignmentResult, error)
	ObserveConsignmentStatus(ctx context.Context, holdingID string, status domain.ConsignmentStatus) (domain.Holding, error)
}

// HandleHoldings serves everything under /holdings/{id}.
func HandleHoldings(svc DispositionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parts := splitPath(r.URL.Path, "/holdings")
		if len(parts) == 0 || len(parts) > 2 {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		id := parts[0]
		action := ""
		if len(parts) == 2 {
			action = parts[1]
		}

		method := http.MethodPost
		switch action {
		case "", "eligibility", "countdown", "coupons":
			method = http.MethodGet
		case "delivery", "consignment", "consignment-status":
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if r.Method != method {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		switch action {
		case "":
			h, err := svc.GetHolding(r.Context(), id)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, toHoldingResponse(h))
		case "eligibility":
			st, err := svc.Eligibility(r.Context(), id)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, toEligibilityResponse(st))
		case "countdown":
			streamCountdown(w, r, svc, id)
		case "coupons":
			res, err := svc.Coupons(r.Context(), id)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, couponsResponse{
				AvailableCount: res.AvailableCount,
				HasTicket:      res.HasTicket,
				Exact:          res.Exact,
			})
		case "delivery":
			var req deliveryRequest
			if !decodeJSON(w, r, &req, true) {
				return
			}
			res, err := svc.RequestDelivery(r.Context(), app.DeliveryInput{HoldingID: id, ConfirmForced: req.ConfirmForced})
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, deliveryResponse{
				Holding: toHoldingResponse(res.Holding),
				Message: res.Message,
				Forced:  res.Forced,
			})
		case "consignment":
			res, err := svc.RequestConsignment(r.Context(), id)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, consignmentResponse{
				Holding:         toHoldingResponse(res.Holding),
				Message:         res.Message,
				CouponConsumed:  res.CouponConsumed,
				CouponRemaining: res.CouponRemaining,
			})
		case "consignment-status":
			var req consignmentStatusRequest
			if !decodeJSON(w, r, &req, false) {
				return
			}
			status, err := domain.ParseConsignmentStatus(req.Status)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			h, err := svc.ObserveConsignmentStatus(r.Context(), id, status)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, toHoldingResponse(h))
		}
	}
}

type deliveryRequest struct {
	ConfirmForced bool `json:"confirm_forced"`
}

type consignmentStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type holdingResponse struct {
	ID                     string    `json:"id"`
	ReservationID          string    `json:"reservation_id,omitempty"`
	Title                  string    `json:"title"`
	Price                  string    `json:"price"`
	MarketPrice            string    `json:"market_price"`
	PurchaseTime           time.Time `json:"purchase_time"`
	SessionID              string    `json:"session_id,omitempty"`
	ZoneID                 string    `json:"zone_id,omitempty"`
	PackageID              string    `json:"package_id,omitempty"`
	DeliveryStatus         string    `json:"delivery_status"`
	ConsignmentStatus      string    `json:"consignment_status"`
	HasConsignmentHistory  bool      `json:"has_consignment_history"`
	IsConsigning           bool      `json:"is_consigning"`
	HasSold                bool      `json:"has_sold"`
	IsDelivered            bool      `json:"is_delivered"`
	RequiresForcedDelivery bool      `json:"requires_forced_delivery"`
}

func toHoldingResponse(h domain.Holding) holdingResponse {
	return holdingResponse{
		ID:                     h.ID,
		ReservationID:          h.ReservationID,
		Title:                  h.Title,
		Price:                  money(h.Price),
		MarketPrice:            money(h.MarketPrice),
		PurchaseTime:           h.PurchaseTime,
		SessionID:              h.SessionID,
		ZoneID:                 h.ZoneID,
		PackageID:              h.PackageID,
		DeliveryStatus:         string(h.DeliveryStatus),
		ConsignmentStatus:      string(h.ConsignmentStatus),
		HasConsignmentHistory:  h.HasConsignmentHistory,
		IsConsigning:           h.IsConsigning(),
		HasSold:                h.HasSold(),
		IsDelivered:            h.IsDelivered(),
		RequiresForcedDelivery: h.RequiresForcedDelivery(),
	}
}

type eligibilityResponse struct {
	Passed           bool   `json:"passed"`
	RemainingSeconds int64  `json:"remaining_seconds"`
	HoursLeft        int    `json:"hours_left"`
	Source           string `json:"source"`
}

func toEligibilityResponse(st eligibility.Status) eligibilityResponse {
	return eligibilityResponse{
		Passed:           st.Passed,
		RemainingSeconds: int64(st.Remaining / time.Second),
		HoursLeft:        st.HoursLeft,
		Source:           string(st.Source),
	}
}

type couponsResponse struct {
	AvailableCount int  `json:"available_count"`
	HasTicket      bool `json:"has_ticket"`
	Exact          bool `json:"exact"`
}

type deliveryResponse struct {
	Holding holdingResponse `json:"holding"`
	Message string          `json:"message,omitempty"`
	Forced  bool            `json:"forced"`
}

type consignmentResponse struct {
	Holding         holdingResponse `json:"holding"`
	Message         string          `json:"message,omitempty"`
	CouponConsumed  *bool           `json:"coupon_consumed,omitempty"`
	CouponRemaining *int            `json:"coupon_remaining,omitempty"`
}
