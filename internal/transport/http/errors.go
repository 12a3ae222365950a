package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cimillas/ultimate-collectibles/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	codeMethodNotAllowed       = "method_not_allowed"
	codeNotFound               = "not_found"
	codeInvalidRequestBody     = "invalid_request_body"
	codeValidationFailed       = "validation_failed"
	codeInvalidID              = "invalid_id"
	codeInvalidStatus          = "invalid_status"
	codeIdempotencyRequired    = "idempotency_key_required"
	codeIdempotencyConflict    = "idempotency_conflict"
	codeMissingIdentifiers     = "missing_identifiers"
	codeSessionNotFound        = "session_not_found"
	codeZoneNotFound           = "zone_not_found"
	codeZoneCeilingUnresolved  = "zone_ceiling_unresolvable"
	codeInvalidExtraHashrate   = "invalid_extra_hashrate"
	codeInsufficientHashrate   = "insufficient_hashrate"
	codeInsufficientBalance    = "insufficient_balance"
	codeReservationNotFound    = "reservation_not_found"
	codeReservationTerminal    = "reservation_terminal"
	codeHoldingNotFound        = "holding_not_found"
	codeHoldingSold            = "holding_sold"
	codeHoldingConsigning      = "holding_consigning"
	codeHoldingDelivered       = "holding_delivered"
	codeDeliveryOnly           = "delivery_only"
	codeNotUnlocked            = "not_unlocked"
	codeNoMatchingCoupon       = "no_matching_coupon"
	codeInvalidPrice           = "invalid_price"
	codeForcedDeliveryRequired = "forced_delivery_confirmation_required"
	codeRemoteRejected         = "remote_rejected"
	codeBackendUnavailable     = "backend_unavailable"
	codeForbidden              = "forbidden"
	codeNotReady               = "not_ready"
	codeInternalError          = "internal_error"
)

type errorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	RemoteCode string `json:"remote_code,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(v)
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

type errorMapping struct {
	status int
	code   string
}

var domainErrors = map[error]errorMapping{
	domain.ErrInvalidID:                          {http.StatusBadRequest, codeInvalidID},
	domain.ErrInvalidStatus:                      {http.StatusBadRequest, codeInvalidStatus},
	domain.ErrIdempotencyKeyRequired:             {http.StatusBadRequest, codeIdempotencyRequired},
	domain.ErrMissingIdentifiers:                 {http.StatusBadRequest, codeMissingIdentifiers},
	domain.ErrInvalidExtraHashrate:               {http.StatusBadRequest, codeInvalidExtraHashrate},
	domain.ErrInvalidPrice:                       {http.StatusBadRequest, codeInvalidPrice},
	domain.ErrInsufficientHashrate:               {http.StatusUnprocessableEntity, codeInsufficientHashrate},
	domain.ErrInsufficientBalance:                {http.StatusUnprocessableEntity, codeInsufficientBalance},
	domain.ErrZoneCeilingUnresolvable:            {http.StatusUnprocessableEntity, codeZoneCeilingUnresolved},
	domain.ErrSessionNotFound:                    {http.StatusNotFound, codeSessionNotFound},
	domain.ErrZoneNotFound:                       {http.StatusNotFound, codeZoneNotFound},
	domain.ErrReservationNotFound:                {http.StatusNotFound, codeReservationNotFound},
	domain.ErrHoldingNotFound:                    {http.StatusNotFound, codeHoldingNotFound},
	domain.ErrIdempotencyConflict:                {http.StatusConflict, codeIdempotencyConflict},
	domain.ErrReservationTerminal:                {http.StatusConflict, codeReservationTerminal},
	domain.ErrHoldingSold:                        {http.StatusConflict, codeHoldingSold},
	domain.ErrHoldingConsigning:                  {http.StatusConflict, codeHoldingConsigning},
	domain.ErrHoldingDelivered:                   {http.StatusConflict, codeHoldingDelivered},
	domain.ErrDeliveryOnly:                       {http.StatusConflict, codeDeliveryOnly},
	domain.ErrNotUnlocked:                        {http.StatusConflict, codeNotUnlocked},
	domain.ErrNoMatchingCoupon:                   {http.StatusConflict, codeNoMatchingCoupon},
	domain.ErrForcedDeliveryConfirmationRequired: {http.StatusPreconditionRequired, codeForcedDeliveryRequired},
}

// writeServiceError maps service errors to responses. Backend rejections keep
// the server message verbatim.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var remote *domain.RemoteError
	if errors.As(err, &remote) {
		log.Info().Str("path", r.URL.Path).Str("remote_code", remote.Code).Str("message", remote.Message).Msg("backend rejected request")
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:      remote.Message,
			Code:       codeRemoteRejected,
			RemoteCode: remote.Code,
		})
		return
	}
	if errors.Is(err, domain.ErrTransient) {
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("backend unavailable")
		writeError(w, http.StatusServiceUnavailable, codeBackendUnavailable, "backend temporarily unavailable, try again")
		return
	}
	for target, m := range domainErrors {
		if errors.Is(err, target) {
			writeError(w, m.status, m.code, target.Error())
			return
		}
	}
	log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
