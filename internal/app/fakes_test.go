package app

import (
	"context"
	"sort"
	"sync"

	"github.com/cimillas/ultimate-collectibles/internal/domain"
	"github.com/cimillas/ultimate-collectibles/internal/eligibility"
	"github.com/cimillas/ultimate-collectibles/internal/resolver"
	"github.com/shopspring/decimal"
)

type fakeReservationRepo struct {
	reservations map[string]domain.Reservation
	createErr    error
}

func newFakeReservationRepo(rs ...domain.Reservation) *fakeReservationRepo {
	f := &fakeReservationRepo{reservations: make(map[string]domain.Reservation)}
	for _, r := range rs {
		f.reservations[r.ID] = r
	}
	return f
}

func (f *fakeReservationRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeReservationRepo) FindReservationByIdempotencyKey(_ context.Context, key string) (*domain.Reservation, error) {
	for _, r := range f.reservations {
		if r.IdempotencyKey == key {
			r := r
			return &r, nil
		}
	}
	return nil, nil
}

func (f *fakeReservationRepo) CreateReservation(_ context.Context, r domain.Reservation) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.reservations[r.ID] = r
	return nil
}

func (f *fakeReservationRepo) GetReservation(_ context.Context, id string) (domain.Reservation, error) {
	r, ok := f.reservations[id]
	if !ok {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return r, nil
}

func (f *fakeReservationRepo) GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error) {
	return f.GetReservation(ctx, id)
}

func (f *fakeReservationRepo) UpdateReservation(_ context.Context, r domain.Reservation) error {
	if _, ok := f.reservations[r.ID]; !ok {
		return domain.ErrReservationNotFound
	}
	f.reservations[r.ID] = r
	return nil
}

func (f *fakeReservationRepo) ListPendingReservations(_ context.Context, limit int) ([]domain.Reservation, error) {
	var out []domain.Reservation
	for _, r := range f.reservations {
		if r.Status == domain.ReservationStatusPending {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeHoldingRepo struct {
	holdings map[string]domain.Holding
	updates  int
}

func newFakeHoldingRepo(hs ...domain.Holding) *fakeHoldingRepo {
	f := &fakeHoldingRepo{holdings: make(map[string]domain.Holding)}
	for _, h := range hs {
		f.holdings[h.ID] = h
	}
	return f
}

func (f *fakeHoldingRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeHoldingRepo) CreateHolding(_ context.Context, h domain.Holding) error {
	f.holdings[h.ID] = h
	return nil
}

func (f *fakeHoldingRepo) GetHolding(_ context.Context, id string) (domain.Holding, error) {
	h, ok := f.holdings[id]
	if !ok {
		return domain.Holding{}, domain.ErrHoldingNotFound
	}
	return h, nil
}

func (f *fakeHoldingRepo) GetHoldingForUpdate(ctx context.Context, id string) (domain.Holding, error) {
	return f.GetHolding(ctx, id)
}

func (f *fakeHoldingRepo) UpdateHolding(_ context.Context, h domain.Holding) error {
	if _, ok := f.holdings[h.ID]; !ok {
		return domain.ErrHoldingNotFound
	}
	f.holdings[h.ID] = h
	f.updates++
	return nil
}

type fakeBackend struct {
	sessions map[string]domain.Session
	bidErr   error
	bids     []domain.BidRequest

	coupons        []domain.Coupon
	couponsErr     error
	consignErr     error
	deliveryErr    error
	consignments   int
	deliveries     int
	consignedPrice decimal.Decimal

	outcomes   map[string]domain.ReservationOutcome
	outcomeErr map[string]error
}

func (f *fakeBackend) SessionDetail(_ context.Context, sessionID string) (domain.Session, error) {
	s, ok := f.sessions[sessionID]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeBackend) SubmitBid(_ context.Context, req domain.BidRequest) (domain.BidReceipt, error) {
	if f.bidErr != nil {
		return domain.BidReceipt{}, f.bidErr
	}
	f.bids = append(f.bids, req)
	return domain.BidReceipt{ReservationID: "remote-1", Message: "预约成功"}, nil
}

func (f *fakeBackend) ListUnconsumedCoupons(context.Context) ([]domain.Coupon, error) {
	return f.coupons, f.couponsErr
}

func (f *fakeBackend) SubmitConsignment(_ context.Context, _ string, price decimal.Decimal) (domain.ConsignmentReceipt, error) {
	if f.consignErr != nil {
		return domain.ConsignmentReceipt{}, f.consignErr
	}
	f.consignments++
	f.consignedPrice = price
	return domain.ConsignmentReceipt{Message: "寄售成功"}, nil
}

func (f *fakeBackend) SubmitDelivery(context.Context, string) (domain.DeliveryReceipt, error) {
	if f.deliveryErr != nil {
		return domain.DeliveryReceipt{}, f.deliveryErr
	}
	f.deliveries++
	return domain.DeliveryReceipt{Message: "提货成功"}, nil
}

func (f *fakeBackend) GetReservation(_ context.Context, remoteID string) (domain.ReservationOutcome, error) {
	if err := f.outcomeErr[remoteID]; err != nil {
		return domain.ReservationOutcome{}, err
	}
	out, ok := f.outcomes[remoteID]
	if !ok {
		return domain.ReservationOutcome{}, domain.ErrReservationNotFound
	}
	return out, nil
}

type fakeResolver struct {
	res   resolver.Resolution
	calls int

	preloadCalls   int
	preloadID      string
	preloadCeiling decimal.Decimal
}

func (f *fakeResolver) Preload(_ context.Context, collectibleID string, _ resolver.IDs, ceiling decimal.Decimal) error {
	f.preloadCalls++
	f.preloadID = collectibleID
	f.preloadCeiling = ceiling
	return nil
}

func (f *fakeResolver) Resolve(_ context.Context, _ string, known resolver.IDs) resolver.Resolution {
	f.calls++
	out := f.res
	if known.SessionID != "" {
		out.SessionID = known.SessionID
	}
	if known.PackageID != "" {
		out.PackageID = known.PackageID
	}
	return out
}

type fixedChecker struct {
	status eligibility.Status
}

func (c fixedChecker) Check(context.Context, domain.Holding) eligibility.Status {
	return c.status
}

// sequenceChecker returns its statuses in order and repeats the last one.
type sequenceChecker struct {
	mu       sync.Mutex
	statuses []eligibility.Status
	calls    int
}

func (c *sequenceChecker) Check(context.Context, domain.Holding) eligibility.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.calls
	if i >= len(c.statuses) {
		i = len(c.statuses) - 1
	}
	c.calls++
	return c.statuses[i]
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
