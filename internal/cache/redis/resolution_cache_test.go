package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/cimillas/ultimate-collectibles/internal/resolver"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client, err := Open(ctx, addr, "", 15)
	if err != nil {
		t.Skipf("skipping Redis integration tests: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestResolutionCache(t *testing.T) {
	client := newTestClient(t)
	cache := NewResolutionCache(client, time.Minute)
	ctx := context.Background()
	id := "test-collectible-" + time.Now().Format("150405.000000")
	t.Cleanup(func() { _ = cache.Invalidate(ctx, id) })

	_, ok, err := cache.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	want := resolver.Resolution{
		IDs:          resolver.IDs{SessionID: "s1", ZoneID: "5", PackageID: "p1"},
		CeilingPrice: decimal.NewFromInt(500),
		Confidence:   resolver.ConfidenceLabel,
		Label:        "500元区",
		Attempted:    true,
	}
	require.NoError(t, cache.Put(ctx, id, want))

	got, ok, err := cache.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.IDs, got.IDs)
	assert.True(t, want.CeilingPrice.Equal(got.CeilingPrice))
	assert.Equal(t, want.Confidence, got.Confidence)
	assert.True(t, got.Attempted)

	require.NoError(t, cache.Invalidate(ctx, id))
	_, ok, err = cache.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpen_EmptyAddr(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "", "", 0)
	assert.Error(t, err)
}
