package app

import (
	"context"
	"errors"
	"strings"

	"github.com/cimillas/ultimate-collectibles/internal/clock"
	"github.com/cimillas/ultimate-collectibles/internal/domain"
	"github.com/cimillas/ultimate-collectibles/internal/resolver"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type ReservationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	FindReservationByIdempotencyKey(ctx context.Context, key string) (*domain.Reservation, error)
	CreateReservation(ctx context.Context, r domain.Reservation) error
	GetReservation(ctx context.Context, id string) (domain.Reservation, error)
	GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error)
	UpdateReservation(ctx context.Context, r domain.Reservation) error
	ListPendingReservations(ctx context.Context, limit int) ([]domain.Reservation, error)
}

// BidBackend is the part of the trading backend a bid needs.
type BidBackend interface {
	SessionDetail(ctx context.Context, sessionID string) (domain.Session, error)
	SubmitBid(ctx context.Context, req domain.BidRequest) (domain.BidReceipt, error)
}

type IDResolver interface {
	Preload(ctx context.Context, collectibleID string, ids resolver.IDs, ceiling decimal.Decimal) error
	Resolve(ctx context.Context, collectibleID string, known resolver.IDs) resolver.Resolution
}

type ReservationService struct {
	repo     ReservationRepository
	backend  BidBackend
	resolver IDResolver
	clock    clock.Clock
	logger   zerolog.Logger
}

type ReservationServiceOption func(*ReservationService)

func WithReservationLogger(l zerolog.Logger) ReservationServiceOption {
	return func(s *ReservationService) {
		s.logger = l
	}
}

func NewReservationService(repo ReservationRepository, backend BidBackend, res IDResolver, clk clock.Clock, opts ...ReservationServiceOption) *ReservationService {
	svc := &ReservationService{
		repo:     repo,
		backend:  backend,
		resolver: res,
		clock:    clk,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type SubmitBidInput struct {
	// CollectibleID, when set, lets missing ids be resolved from the collectible.
	CollectibleID     string
	SessionID         string
	ZoneID            string
	PackageID         string
	ExtraHashrate     int
	AvailableHashrate int
	AccountBalance    decimal.Decimal
	// ListingCeiling is the zone ceiling shown on the listing the user bid
	// from, zero when unknown. It outranks every ceiling the backend derives.
	ListingCeiling decimal.Decimal
	IdempotencyKey string
}

type SubmitBidResult struct {
	Reservation domain.Reservation
	Message     string
	Created     bool
	// MaxExtraHashrate is the most extra hashrate the caller's available
	// hashrate allows.
	MaxExtraHashrate int
}

func (s *ReservationService) SubmitBid(ctx context.Context, in SubmitBidInput) (SubmitBidResult, error) {
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	if in.IdempotencyKey == "" {
		return SubmitBidResult{}, domain.ErrIdempotencyKeyRequired
	}
	if in.ExtraHashrate < 0 {
		return SubmitBidResult{}, domain.ErrInvalidExtraHashrate
	}
	if in.ListingCeiling.IsNegative() {
		return SubmitBidResult{}, domain.ErrInvalidPrice
	}

	ids := resolver.IDs{SessionID: in.SessionID, ZoneID: in.ZoneID, PackageID: in.PackageID}
	if in.CollectibleID != "" && s.resolver != nil && in.ListingCeiling.IsPositive() {
		if err := s.resolver.Preload(ctx, in.CollectibleID, ids, in.ListingCeiling); err != nil {
			s.logger.Warn().Err(err).Str("collectible_id", in.CollectibleID).Msg("preload listing context")
		}
	}
	var resolution resolver.Resolution
	if !ids.Complete() && in.CollectibleID != "" && s.resolver != nil {
		resolution = s.resolver.Resolve(ctx, in.CollectibleID, ids)
		ids = resolution.IDs
	}
	if in.ListingCeiling.IsPositive() && resolution.Confidence < resolver.ConfidencePreloaded {
		resolution.CeilingPrice = in.ListingCeiling
		resolution.Confidence = resolver.ConfidencePreloaded
	}
	if !ids.Complete() {
		return SubmitBidResult{}, domain.ErrMissingIdentifiers
	}

	existing, err := s.repo.FindReservationByIdempotencyKey(ctx, in.IdempotencyKey)
	if err != nil {
		return SubmitBidResult{}, err
	}
	if existing != nil {
		return replay(*existing, ids, in)
	}

	session, err := s.backend.SessionDetail(ctx, ids.SessionID)
	if err != nil {
		return SubmitBidResult{}, err
	}
	zone, ok := session.FindZone(ids.ZoneID)
	if !ok {
		return SubmitBidResult{}, domain.ErrZoneNotFound
	}
	frozen, err := domain.FrozenAmount(zone)
	if errors.Is(err, domain.ErrZoneCeilingUnresolvable) && resolution.Confidence >= resolver.ConfidenceExplicitField {
		frozen, err = resolution.CeilingPrice, nil
	}
	if err != nil {
		return SubmitBidResult{}, err
	}

	if err := domain.ValidateBidFunds(domain.BidFunds{
		AvailableHashrate: in.AvailableHashrate,
		ExtraHashrate:     in.ExtraHashrate,
		AccountBalance:    in.AccountBalance,
		FrozenAmount:      frozen,
	}); err != nil {
		return SubmitBidResult{}, err
	}

	receipt, err := s.backend.SubmitBid(ctx, domain.BidRequest{
		SessionID:      ids.SessionID,
		ZoneID:         ids.ZoneID,
		PackageID:      ids.PackageID,
		ExtraHashrate:  in.ExtraHashrate,
		IdempotencyKey: in.IdempotencyKey,
	})
	if err != nil {
		return SubmitBidResult{}, err
	}

	now := s.clock.Now()
	reservation := domain.Reservation{
		ID:             uuid.NewString(),
		RemoteID:       receipt.ReservationID,
		SessionID:      ids.SessionID,
		ZoneID:         ids.ZoneID,
		PackageID:      ids.PackageID,
		BaseHashrate:   domain.BaseHashrate,
		ExtraHashrate:  in.ExtraHashrate,
		FrozenAmount:   frozen,
		Status:         domain.ReservationStatusPending,
		IdempotencyKey: in.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		return s.repo.CreateReservation(txCtx, reservation)
	})
	if errors.Is(err, domain.ErrIdempotencyConflict) {
		// A concurrent submission with the same key won the insert.
		winner, findErr := s.repo.FindReservationByIdempotencyKey(ctx, in.IdempotencyKey)
		if findErr != nil {
			return SubmitBidResult{}, findErr
		}
		if winner != nil {
			return replay(*winner, ids, in)
		}
	}
	if err != nil {
		return SubmitBidResult{}, err
	}

	s.logger.Info().
		Str("reservation_id", reservation.ID).
		Str("remote_id", reservation.RemoteID).
		Str("session_id", reservation.SessionID).
		Str("zone_id", reservation.ZoneID).
		Str("frozen_amount", reservation.FrozenAmount.StringFixed(2)).
		Msg("bid submitted")
	return SubmitBidResult{
		Reservation:      reservation,
		Message:          receipt.Message,
		Created:          true,
		MaxExtraHashrate: domain.MaxExtraHashrate(in.AvailableHashrate),
	}, nil
}

func replay(existing domain.Reservation, ids resolver.IDs, in SubmitBidInput) (SubmitBidResult, error) {
	if existing.SessionID != ids.SessionID || existing.ZoneID != ids.ZoneID ||
		existing.PackageID != ids.PackageID || existing.ExtraHashrate != in.ExtraHashrate {
		return SubmitBidResult{}, domain.ErrIdempotencyConflict
	}
	return SubmitBidResult{
		Reservation:      existing,
		Created:          false,
		MaxExtraHashrate: domain.MaxExtraHashrate(in.AvailableHashrate),
	}, nil
}

func (s *ReservationService) GetReservation(ctx context.Context, id string) (domain.Reservation, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Reservation{}, domain.ErrInvalidID
	}
	return s.repo.GetReservation(ctx, id)
}
