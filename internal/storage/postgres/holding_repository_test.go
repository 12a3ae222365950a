package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/cimillas/ultimate-collectibles/internal/domain"
	"github.com/cimillas/ultimate-collectibles/internal/testutil"
	"github.com/shopspring/decimal"
)

func TestHoldingRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewHoldingRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	t.Run("CreateHolding round trip", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		purchased := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
		h := domain.Holding{
			ID:                "h-create",
			ReservationID:     "r1",
			Title:             "Dragon",
			Price:             decimal.RequireFromString("499.90"),
			MarketPrice:       decimal.NewFromInt(520),
			PurchaseTime:      purchased,
			SessionID:         "s1",
			ZoneID:            "5",
			DeliveryStatus:    domain.DeliveryStatusNotDelivered,
			ConsignmentStatus: domain.ConsignmentStatusNotConsigned,
		}
		if err := repo.CreateHolding(ctx, h); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := repo.CreateHolding(ctx, h); err != nil {
			t.Fatalf("expected replayed create to be a no-op, got %v", err)
		}

		got, err := repo.GetHolding(ctx, "h-create")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !got.Price.Equal(h.Price) || !got.PurchaseTime.Equal(purchased) || got.ZoneID != "5" {
			t.Fatalf("unexpected holding: %+v", got)
		}
		if got.HasConsignmentHistory {
			t.Fatalf("expected no history")
		}

		if _, err := repo.GetHolding(ctx, "missing"); err != domain.ErrHoldingNotFound {
			t.Fatalf("expected ErrHoldingNotFound, got %v", err)
		}
	})

	t.Run("history flag is never cleared", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		testutil.InsertHolding(t, ctx, pool, domain.Holding{
			ID:                    "h-history",
			Price:                 decimal.NewFromInt(300),
			ConsignmentStatus:     domain.ConsignmentStatusRejected,
			HasConsignmentHistory: true,
		})

		err := repo.WithTx(ctx, func(txCtx context.Context) error {
			h, err := repo.GetHoldingForUpdate(txCtx, "h-history")
			if err != nil {
				return err
			}
			h.ConsignmentStatus = domain.ConsignmentStatusNotConsigned
			h.HasConsignmentHistory = false
			h.UpdatedAt = time.Now().UTC()
			return repo.UpdateHolding(txCtx, h)
		})
		if err != nil {
			t.Fatalf("tx failed: %v", err)
		}

		got, err := repo.GetHolding(ctx, "h-history")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.ConsignmentStatus != domain.ConsignmentStatusNotConsigned {
			t.Fatalf("expected status reset, got %s", got.ConsignmentStatus)
		}
		if !got.HasConsignmentHistory {
			t.Fatalf("expected history flag to survive the update")
		}
	})

	t.Run("UpdateHolding missing row", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		err := repo.UpdateHolding(ctx, domain.Holding{
			ID:                "nope",
			DeliveryStatus:    domain.DeliveryStatusDelivered,
			ConsignmentStatus: domain.ConsignmentStatusNotConsigned,
		})
		if err != domain.ErrHoldingNotFound {
			t.Fatalf("expected ErrHoldingNotFound, got %v", err)
		}
	})
}
