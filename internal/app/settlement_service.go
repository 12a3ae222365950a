package app

import (
	"context"
	"errors"
	"time"

	"github.com/cimillas/ultimate-collectibles/internal/clock"
	"github.com/cimillas/ultimate-collectibles/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OutcomeSource reads the settlement backend's view of a reservation.
type OutcomeSource interface {
	GetReservation(ctx context.Context, remoteID string) (domain.ReservationOutcome, error)
}

type SettlementService struct {
	reservations ReservationRepository
	holdings     HoldingRepository
	source       OutcomeSource
	clock        clock.Clock
	logger       zerolog.Logger
	batchSize    int
}

const defaultSyncBatch = 100

type SettlementServiceOption func(*SettlementService)

func WithSettlementLogger(l zerolog.Logger) SettlementServiceOption {
	return func(s *SettlementService) {
		s.logger = l
	}
}

// WithSyncBatch bounds how many pending reservations one sync pass reads.
func WithSyncBatch(n int) SettlementServiceOption {
	return func(s *SettlementService) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func NewSettlementService(reservations ReservationRepository, holdings HoldingRepository, source OutcomeSource, clk clock.Clock, opts ...SettlementServiceOption) *SettlementService {
	svc := &SettlementService{
		reservations: reservations,
		holdings:     holdings,
		source:       source,
		clock:        clk,
		logger:       zerolog.Nop(),
		batchSize:    defaultSyncBatch,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// ApplyOutcome records a settlement result on a reservation. A pending outcome
// leaves it untouched; repeating the terminal outcome already recorded is a no-op.
func (s *SettlementService) ApplyOutcome(ctx context.Context, reservationID string, out domain.ReservationOutcome) (domain.Reservation, error) {
	if !out.Status.Valid() {
		return domain.Reservation{}, domain.ErrInvalidStatus
	}
	if out.Status == domain.ReservationStatusApproved && (out.ActualBuyPrice == nil || out.ActualBuyPrice.IsNegative()) {
		return domain.Reservation{}, domain.ErrInvalidPrice
	}

	now := s.clock.Now()
	var result domain.Reservation
	err := s.reservations.WithTx(ctx, func(txCtx context.Context) error {
		r, err := s.reservations.GetReservationForUpdate(txCtx, reservationID)
		if err != nil {
			return err
		}
		if r.Status.Terminal() {
			if r.Status != out.Status {
				return domain.ErrReservationTerminal
			}
			result = r
			return nil
		}
		if out.Status == domain.ReservationStatusPending {
			result = r
			return nil
		}

		switch out.Status {
		case domain.ReservationStatusApproved:
			matchTime := now
			if out.MatchTime != nil {
				matchTime = *out.MatchTime
			}
			actual := *out.ActualBuyPrice
			diff := domain.RefundDiff(r.FrozenAmount, actual)
			r.MatchTime = &matchTime
			r.ActualBuyPrice = &actual
			r.RefundDiff = &diff

			h := holdingFromOutcome(r, out.Holding, matchTime, now)
			if err := s.holdings.CreateHolding(txCtx, h); err != nil {
				return err
			}
			r.HoldingID = h.ID
		case domain.ReservationStatusRejected:
			refunded := r.FrozenAmount
			r.RefundedAmount = &refunded
		}
		r.Status = out.Status
		r.UpdatedAt = now
		if err := s.reservations.UpdateReservation(txCtx, r); err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return result, nil
}

func holdingFromOutcome(r domain.Reservation, remote *domain.Holding, matchTime, now time.Time) domain.Holding {
	var h domain.Holding
	if remote != nil {
		h = *remote
	}
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	h.ReservationID = r.ID
	if h.SessionID == "" {
		h.SessionID = r.SessionID
	}
	if h.ZoneID == "" || h.ZoneID == "0" {
		h.ZoneID = r.ZoneID
	}
	if h.PackageID == "" {
		h.PackageID = r.PackageID
	}
	if h.Price.IsZero() && r.ActualBuyPrice != nil {
		h.Price = *r.ActualBuyPrice
	}
	if h.PurchaseTime.IsZero() {
		h.PurchaseTime = matchTime
	}
	if h.DeliveryStatus == "" {
		h.DeliveryStatus = domain.DeliveryStatusNotDelivered
	}
	if h.ConsignmentStatus == "" {
		h.ConsignmentStatus = domain.ConsignmentStatusNotConsigned
	}
	h.CreatedAt = now
	h.UpdatedAt = now
	return h
}

// SyncPending polls the settlement backend for every pending reservation and
// applies terminal outcomes. Failures on one reservation do not stop the pass.
func (s *SettlementService) SyncPending(ctx context.Context) (int, error) {
	pending, err := s.reservations.ListPendingReservations(ctx, s.batchSize)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, r := range pending {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		if r.RemoteID == "" {
			continue
		}
		out, err := s.source.GetReservation(ctx, r.RemoteID)
		if err != nil {
			s.logger.Warn().Err(err).Str("reservation_id", r.ID).Msg("read settlement outcome")
			continue
		}
		if out.Status == domain.ReservationStatusPending {
			continue
		}
		updated, err := s.ApplyOutcome(ctx, r.ID, out)
		if err != nil {
			if errors.Is(err, domain.ErrReservationTerminal) {
				s.logger.Error().Err(err).Str("reservation_id", r.ID).Msg("conflicting settlement outcome")
			} else {
				s.logger.Warn().Err(err).Str("reservation_id", r.ID).Msg("apply settlement outcome")
			}
			continue
		}
		settled++
		s.logger.Info().
			Str("reservation_id", updated.ID).
			Str("status", string(updated.Status)).
			Str("holding_id", updated.HoldingID).
			Msg("reservation settled")
	}
	return settled, nil
}
