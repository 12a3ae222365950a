package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cimillas/ultimate-collectibles/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type ReservationRepository struct {
	pool *pgxpool.Pool
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

func (r *ReservationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const reservationColumns = `
id::text, remote_id, session_id, zone_id, package_id, base_hashrate, extra_hashrate,
frozen_amount::text, status, match_time, actual_buy_price::text, refund_diff::text,
refunded_amount::text, holding_id, idempotency_key, created_at, updated_at`

func (r *ReservationRepository) FindReservationByIdempotencyKey(ctx context.Context, key string) (*domain.Reservation, error) {
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE idempotency_key = $1`

	res, err := scanReservation(queryRow(ctx, r.pool, q, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find reservation by idempotency key: %w", err)
	}
	return &res, nil
}

func (r *ReservationRepository) CreateReservation(ctx context.Context, res domain.Reservation) error {
	const stmt = `
INSERT INTO reservations (
	id, remote_id, session_id, zone_id, package_id, base_hashrate, extra_hashrate,
	frozen_amount, status, idempotency_key, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := exec(ctx, r.pool, stmt,
		res.ID,
		res.RemoteID,
		res.SessionID,
		res.ZoneID,
		res.PackageID,
		res.BaseHashrate,
		res.ExtraHashrate,
		res.FrozenAmount.String(),
		string(res.Status),
		res.IdempotencyKey,
		res.CreatedAt,
		res.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrIdempotencyConflict
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (domain.Reservation, error) {
	return r.get(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id)
}

func (r *ReservationRepository) GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error) {
	return r.get(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1 FOR UPDATE`, id)
}

func (r *ReservationRepository) get(ctx context.Context, q, id string) (domain.Reservation, error) {
	res, err := scanReservation(queryRow(ctx, r.pool, q, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Reservation{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

// UpdateReservation writes the settlement fields. Identity, scope and the
// frozen amount are immutable after creation.
func (r *ReservationRepository) UpdateReservation(ctx context.Context, res domain.Reservation) error {
	const stmt = `
UPDATE reservations
SET remote_id = $2, status = $3, match_time = $4, actual_buy_price = $5::numeric,
	refund_diff = $6::numeric, refunded_amount = $7::numeric, holding_id = $8, updated_at = $9
WHERE id = $1`

	tag, err := exec(ctx, r.pool, stmt,
		res.ID,
		res.RemoteID,
		string(res.Status),
		res.MatchTime,
		decimalArg(res.ActualBuyPrice),
		decimalArg(res.RefundDiff),
		decimalArg(res.RefundedAmount),
		res.HoldingID,
		res.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReservationNotFound
	}
	return nil
}

func (r *ReservationRepository) ListPendingReservations(ctx context.Context, limit int) ([]domain.Reservation, error) {
	q := `SELECT ` + reservationColumns + `
FROM reservations
WHERE status = 'pending'
ORDER BY created_at
LIMIT $1`

	rows, err := queryRows(ctx, r.pool, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending reservations: %w", err)
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending reservations: %w", err)
	}
	return out, nil
}

func scanReservation(row pgx.Row) (domain.Reservation, error) {
	var (
		res                          domain.Reservation
		status, frozen               string
		actual, refundDiff, refunded *string
	)
	err := row.Scan(
		&res.ID,
		&res.RemoteID,
		&res.SessionID,
		&res.ZoneID,
		&res.PackageID,
		&res.BaseHashrate,
		&res.ExtraHashrate,
		&frozen,
		&status,
		&res.MatchTime,
		&actual,
		&refundDiff,
		&refunded,
		&res.HoldingID,
		&res.IdempotencyKey,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		return domain.Reservation{}, err
	}

	res.Status = domain.ReservationStatus(status)
	if res.FrozenAmount, err = decimal.NewFromString(frozen); err != nil {
		return domain.Reservation{}, fmt.Errorf("frozen_amount: %w", err)
	}
	if res.ActualBuyPrice, err = decimalPtr(actual); err != nil {
		return domain.Reservation{}, fmt.Errorf("actual_buy_price: %w", err)
	}
	if res.RefundDiff, err = decimalPtr(refundDiff); err != nil {
		return domain.Reservation{}, fmt.Errorf("refund_diff: %w", err)
	}
	if res.RefundedAmount, err = decimalPtr(refunded); err != nil {
		return domain.Reservation{}, fmt.Errorf("refunded_amount: %w", err)
	}
	return res, nil
}
