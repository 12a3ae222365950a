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

type HoldingRepository struct {
	pool *pgxpool.Pool
}

func NewHoldingRepository(pool *pgxpool.Pool) *HoldingRepository {
	return &HoldingRepository{pool: pool}
}

func (r *HoldingRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const holdingColumns = `
id, user_id, reservation_id, title, price::text, market_price::text, purchase_time,
session_id, zone_id, package_id, delivery_status, consignment_status,
has_consignment_history, created_at, updated_at`

// CreateHolding inserts the holding. Inserting an id that already exists is a
// no-op so a replayed settlement does not fail.
func (r *HoldingRepository) CreateHolding(ctx context.Context, h domain.Holding) error {
	const stmt = `
INSERT INTO holdings (
	id, user_id, reservation_id, title, price, market_price, purchase_time,
	session_id, zone_id, package_id, delivery_status, consignment_status,
	has_consignment_history, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (id) DO NOTHING`

	if h.ID == "" {
		return domain.ErrInvalidID
	}
	_, err := exec(ctx, r.pool, stmt,
		h.ID,
		h.UserID,
		h.ReservationID,
		h.Title,
		h.Price.String(),
		h.MarketPrice.String(),
		h.PurchaseTime,
		h.SessionID,
		h.ZoneID,
		h.PackageID,
		string(h.DeliveryStatus),
		string(h.ConsignmentStatus),
		h.HasConsignmentHistory,
		h.CreatedAt,
		h.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create holding: %w", err)
	}
	return nil
}

func (r *HoldingRepository) GetHolding(ctx context.Context, id string) (domain.Holding, error) {
	return r.get(ctx, `SELECT `+holdingColumns+` FROM holdings WHERE id = $1`, id)
}

func (r *HoldingRepository) GetHoldingForUpdate(ctx context.Context, id string) (domain.Holding, error) {
	return r.get(ctx, `SELECT `+holdingColumns+` FROM holdings WHERE id = $1 FOR UPDATE`, id)
}

func (r *HoldingRepository) get(ctx context.Context, q, id string) (domain.Holding, error) {
	h, err := scanHolding(queryRow(ctx, r.pool, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Holding{}, domain.ErrHoldingNotFound
		}
		return domain.Holding{}, fmt.Errorf("get holding: %w", err)
	}
	return h, nil
}

// UpdateHolding writes the disposition state. The history flag is OR-ed with
// the stored value so no update can clear it.
func (r *HoldingRepository) UpdateHolding(ctx context.Context, h domain.Holding) error {
	const stmt = `
UPDATE holdings
SET price = $2::numeric, market_price = $3::numeric, delivery_status = $4, consignment_status = $5,
	has_consignment_history = has_consignment_history OR $6, updated_at = $7
WHERE id = $1`

	tag, err := exec(ctx, r.pool, stmt,
		h.ID,
		h.Price.String(),
		h.MarketPrice.String(),
		string(h.DeliveryStatus),
		string(h.ConsignmentStatus),
		h.HasConsignmentHistory,
		h.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update holding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrHoldingNotFound
	}
	return nil
}

func scanHolding(row pgx.Row) (domain.Holding, error) {
	var (
		h                                 domain.Holding
		price, marketPrice                string
		deliveryStatus, consignmentStatus string
	)
	err := row.Scan(
		&h.ID,
		&h.UserID,
		&h.ReservationID,
		&h.Title,
		&price,
		&marketPrice,
		&h.PurchaseTime,
		&h.SessionID,
		&h.ZoneID,
		&h.PackageID,
		&deliveryStatus,
		&consignmentStatus,
		&h.HasConsignmentHistory,
		&h.CreatedAt,
		&h.UpdatedAt,
	)
	if err != nil {
		return domain.Holding{}, err
	}

	h.DeliveryStatus = domain.DeliveryStatus(deliveryStatus)
	h.ConsignmentStatus = domain.ConsignmentStatus(consignmentStatus)
	if h.Price, err = decimal.NewFromString(price); err != nil {
		return domain.Holding{}, fmt.Errorf("price: %w", err)
	}
	if h.MarketPrice, err = decimal.NewFromString(marketPrice); err != nil {
		return domain.Holding{}, fmt.Errorf("market_price: %w", err)
	}
	return h, nil
}
