package app

import (
	"context"
	"strings"
	"time"

	"github.com/cimillas/ultimate-collectibles/internal/clock"
	"github.com/cimillas/ultimate-collectibles/internal/coupon"
	"github.com/cimillas/ultimate-collectibles/internal/domain"
	"github.com/cimillas/ultimate-collectibles/internal/eligibility"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type HoldingRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateHolding(ctx context.Context, h domain.Holding) error
	GetHolding(ctx context.Context, id string) (domain.Holding, error)
	GetHoldingForUpdate(ctx context.Context, id string) (domain.Holding, error)
	UpdateHolding(ctx context.Context, h domain.Holding) error
}

// DispositionBackend is the part of the trading backend that accepts
// delivery and consignment requests.
type DispositionBackend interface {
	ListUnconsumedCoupons(ctx context.Context) ([]domain.Coupon, error)
	SubmitConsignment(ctx context.Context, holdingID string, price decimal.Decimal) (domain.ConsignmentReceipt, error)
	SubmitDelivery(ctx context.Context, holdingID string) (domain.DeliveryReceipt, error)
}

type EligibilityChecker interface {
	Check(ctx context.Context, h domain.Holding) eligibility.Status
}

type DispositionService struct {
	holdings          HoldingRepository
	backend           DispositionBackend
	checker           EligibilityChecker
	matcher           *coupon.Matcher
	clock             clock.Clock
	logger            zerolog.Logger
	countdownInterval time.Duration
	recheckInterval   time.Duration
}

const (
	defaultCountdownInterval = time.Second
	defaultRecheckInterval   = 30 * time.Second
)

type DispositionServiceOption func(*DispositionService)

func WithDispositionLogger(l zerolog.Logger) DispositionServiceOption {
	return func(s *DispositionService) {
		s.logger = l
	}
}

// WithCountdownInterval sets the tick of live countdowns.
func WithCountdownInterval(d time.Duration) DispositionServiceOption {
	return func(s *DispositionService) {
		if d > 0 {
			s.countdownInterval = d
		}
	}
}

// WithRecheckInterval sets how often a countdown asks again when the lock has
// no known end.
func WithRecheckInterval(d time.Duration) DispositionServiceOption {
	return func(s *DispositionService) {
		if d > 0 {
			s.recheckInterval = d
		}
	}
}

func NewDispositionService(holdings HoldingRepository, backend DispositionBackend, checker EligibilityChecker, matcher *coupon.Matcher, clk clock.Clock, opts ...DispositionServiceOption) *DispositionService {
	if matcher == nil {
		matcher = coupon.NewMatcher(coupon.LegacyOptimistic)
	}
	svc := &DispositionService{
		holdings:          holdings,
		backend:           backend,
		checker:           checker,
		matcher:           matcher,
		clock:             clk,
		logger:            zerolog.Nop(),
		countdownInterval: defaultCountdownInterval,
		recheckInterval:   defaultRecheckInterval,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *DispositionService) GetHolding(ctx context.Context, id string) (domain.Holding, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Holding{}, domain.ErrInvalidID
	}
	return s.holdings.GetHolding(ctx, id)
}

func (s *DispositionService) Eligibility(ctx context.Context, holdingID string) (eligibility.Status, error) {
	h, err := s.GetHolding(ctx, holdingID)
	if err != nil {
		return eligibility.Status{}, err
	}
	return s.checker.Check(ctx, h), nil
}

// Countdown streams the remaining lock time of a holding until it unlocks or
// ctx is cancelled. A lock without a known end, such as a remote "locked"
// with no remaining time, is re-checked instead of counted down, so the local
// clock never reports it unlocked.
func (s *DispositionService) Countdown(ctx context.Context, holdingID string) (<-chan eligibility.Status, error) {
	h, err := s.GetHolding(ctx, holdingID)
	if err != nil {
		return nil, err
	}
	status := s.checker.Check(ctx, h)
	if deadline, ok := status.Deadline(s.clock.Now()); ok {
		return eligibility.Countdown(ctx, s.clock, deadline, s.countdownInterval, status.Source), nil
	}
	return eligibility.Watch(ctx, status, s.recheckInterval, func(ctx context.Context) eligibility.Status {
		return s.checker.Check(ctx, h)
	}), nil
}

func (s *DispositionService) Coupons(ctx context.Context, holdingID string) (coupon.Result, error) {
	h, err := s.GetHolding(ctx, holdingID)
	if err != nil {
		return coupon.Result{}, err
	}
	coupons, err := s.backend.ListUnconsumedCoupons(ctx)
	if err != nil {
		return coupon.Result{}, err
	}
	return s.matcher.Match(coupons, h), nil
}

type DeliveryInput struct {
	HoldingID string
	// ConfirmForced acknowledges delivery of a holding that was consigned before.
	ConfirmForced bool
}

type DeliveryResult struct {
	Holding domain.Holding
	Message string
	Forced  bool
}

// RequestDelivery asks the backend to ship the holding. Local state moves to
// delivered only after the backend accepted the request.
func (s *DispositionService) RequestDelivery(ctx context.Context, in DeliveryInput) (DeliveryResult, error) {
	h, err := s.GetHolding(ctx, in.HoldingID)
	if err != nil {
		return DeliveryResult{}, err
	}
	if err := h.CheckDeliverable(); err != nil {
		return DeliveryResult{}, err
	}
	if !s.checker.Check(ctx, h).Passed {
		return DeliveryResult{}, domain.ErrNotUnlocked
	}
	forced := h.RequiresForcedDelivery()
	if forced && !in.ConfirmForced {
		return DeliveryResult{}, domain.ErrForcedDeliveryConfirmationRequired
	}

	receipt, err := s.backend.SubmitDelivery(ctx, h.ID)
	if err != nil {
		return DeliveryResult{}, err
	}

	var updated domain.Holding
	err = s.holdings.WithTx(ctx, func(txCtx context.Context) error {
		cur, err := s.holdings.GetHoldingForUpdate(txCtx, h.ID)
		if err != nil {
			return err
		}
		cur.DeliveryStatus = domain.DeliveryStatusDelivered
		cur.UpdatedAt = s.clock.Now()
		if err := s.holdings.UpdateHolding(txCtx, cur); err != nil {
			return err
		}
		updated = cur
		return nil
	})
	if err != nil {
		return DeliveryResult{}, err
	}

	s.logger.Info().Str("holding_id", h.ID).Bool("forced", forced).Msg("delivery requested")
	return DeliveryResult{Holding: updated, Message: receipt.Message, Forced: forced}, nil
}

type ConsignmentResult struct {
	Holding         domain.Holding
	Message         string
	CouponConsumed  *bool
	CouponRemaining *int
}

// RequestConsignment lists the holding for resale at its last known price.
func (s *DispositionService) RequestConsignment(ctx context.Context, holdingID string) (ConsignmentResult, error) {
	h, err := s.GetHolding(ctx, holdingID)
	if err != nil {
		return ConsignmentResult{}, err
	}
	if err := h.CheckConsignable(); err != nil {
		return ConsignmentResult{}, err
	}
	if !h.Price.IsPositive() {
		return ConsignmentResult{}, domain.ErrInvalidPrice
	}
	if !s.checker.Check(ctx, h).Passed {
		return ConsignmentResult{}, domain.ErrNotUnlocked
	}

	coupons, err := s.backend.ListUnconsumedCoupons(ctx)
	if err != nil {
		return ConsignmentResult{}, err
	}
	match := s.matcher.Match(coupons, h)
	if !match.HasTicket {
		return ConsignmentResult{}, domain.ErrNoMatchingCoupon
	}

	receipt, err := s.backend.SubmitConsignment(ctx, h.ID, h.Price)
	if err != nil {
		return ConsignmentResult{}, err
	}

	var updated domain.Holding
	err = s.holdings.WithTx(ctx, func(txCtx context.Context) error {
		cur, err := s.holdings.GetHoldingForUpdate(txCtx, h.ID)
		if err != nil {
			return err
		}
		if err := cur.ObserveConsignment(domain.ConsignmentStatusConsigning); err != nil {
			return err
		}
		cur.UpdatedAt = s.clock.Now()
		if err := s.holdings.UpdateHolding(txCtx, cur); err != nil {
			return err
		}
		updated = cur
		return nil
	})
	if err != nil {
		return ConsignmentResult{}, err
	}

	s.logger.Info().
		Str("holding_id", h.ID).
		Str("price", h.Price.StringFixed(2)).
		Bool("exact_coupon_match", match.Exact).
		Msg("consignment requested")
	return ConsignmentResult{
		Holding:         updated,
		Message:         receipt.Message,
		CouponConsumed:  receipt.CouponConsumed,
		CouponRemaining: receipt.CouponRemaining,
	}, nil
}

// ObserveConsignmentStatus records a consignment status pushed by the backend.
func (s *DispositionService) ObserveConsignmentStatus(ctx context.Context, holdingID string, status domain.ConsignmentStatus) (domain.Holding, error) {
	if strings.TrimSpace(holdingID) == "" {
		return domain.Holding{}, domain.ErrInvalidID
	}
	var updated domain.Holding
	err := s.holdings.WithTx(ctx, func(txCtx context.Context) error {
		cur, err := s.holdings.GetHoldingForUpdate(txCtx, holdingID)
		if err != nil {
			return err
		}
		if err := cur.ObserveConsignment(status); err != nil {
			return err
		}
		cur.UpdatedAt = s.clock.Now()
		if err := s.holdings.UpdateHolding(txCtx, cur); err != nil {
			return err
		}
		updated = cur
		return nil
	})
	if err != nil {
		return domain.Holding{}, err
	}
	return updated, nil
}
