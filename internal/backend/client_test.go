package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cimillas/ultimate-collectibles/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, "tok")
	require.NoError(t, err)
	return c
}

func TestNew_RequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := New(" ", "")
	assert.Error(t, err)
}

func TestCollectibleDetail(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collectibles/c1", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"code":200,"msg":"ok","data":{"price":"430.50","price_zone_label":"500元区","max_price":500,"session_id":12,"zone_id":0,"package_id":"p1"}}`)
	})

	d, err := c.CollectibleDetail(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, d.Price.Equal(decimal.RequireFromString("430.5")))
	assert.Equal(t, "500元区", d.PriceZoneLabel)
	assert.True(t, d.ZonePrice.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "12", d.SessionID)
	assert.Equal(t, "0", d.ZoneID)
	assert.Equal(t, "p1", d.PackageID)
}

func TestSessionDetail(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":"200","data":{"title":"Spring draw","start_time":1735689600,"end_time":"1735776000","zones":[{"id":5,"name":"500元区"},{"id":"6","name":"1K区","ceiling_price":"1000"}]}}`)
	})

	s, err := c.SessionDetail(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, "Spring draw", s.Title)
	assert.Equal(t, time.Unix(1735689600, 0).UTC(), s.StartTime)
	assert.Equal(t, time.Unix(1735776000, 0).UTC(), s.EndTime)
	require.Len(t, s.Zones, 2)
	assert.Equal(t, "5", s.Zones[0].ID)
	assert.Equal(t, "s1", s.Zones[0].SessionID)
	assert.True(t, s.Zones[1].CeilingPrice.Equal(decimal.NewFromInt(1000)))
}

func TestSubmitBid(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "idem-1", r.Header.Get("Idempotency-Key"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "s1", body["session_id"])
		assert.Equal(t, float64(3), body["extra_hashrate"])
		_, _ = io.WriteString(w, `{"code":0,"message":"预约成功","data":{"reservation_id":991}}`)
	})

	receipt, err := c.SubmitBid(context.Background(), domain.BidRequest{
		SessionID: "s1", ZoneID: "5", PackageID: "p1", ExtraHashrate: 3, IdempotencyKey: "idem-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "991", receipt.ReservationID)
	assert.Equal(t, "预约成功", receipt.Message)
}

func TestRemoteRejectionKeepsMessage(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":"E4001","msg":"藏品未满48小时，暂不可寄售"}`)
	})

	_, err := c.SubmitConsignment(context.Background(), "h1", decimal.NewFromInt(500))
	var remote *domain.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "E4001", remote.Code)
	assert.Equal(t, "藏品未满48小时，暂不可寄售", remote.Message)
	assert.False(t, errors.Is(err, domain.ErrTransient))
}

func TestBooleanCodeIsNotSuccess(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":true,"msg":"rejected"}`)
	})

	_, err := c.SubmitDelivery(context.Background(), "h1")
	var remote *domain.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "true", remote.Code)
	assert.Equal(t, "rejected", remote.Message)
}

func TestClientErrorStatusIsRemoteError(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"message":"no matching coupon"}`)
	})

	_, err := c.SubmitDelivery(context.Background(), "h1")
	var remote *domain.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "http_400", remote.Code)
	assert.Equal(t, "no matching coupon", remote.Message)
}

func TestServerErrorIsTransient(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.ConsignmentEligibility(context.Background(), "h1")
	assert.ErrorIs(t, err, domain.ErrTransient)
}

func TestTransportErrorIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c, err := New(srv.URL, "")
	require.NoError(t, err)

	_, err = c.ListUnconsumedCoupons(context.Background())
	assert.ErrorIs(t, err, domain.ErrTransient)
}

func TestConsignmentEligibility(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/holdings/h1/consignment-eligibility", r.URL.Path)
		_, _ = io.WriteString(w, `{"code":200,"data":{"unlocked":false,"remaining_seconds":3600}}`)
	})

	remote, err := c.ConsignmentEligibility(context.Background(), "h1")
	require.NoError(t, err)
	assert.False(t, remote.Unlocked)
	require.NotNil(t, remote.RemainingSeconds)
	assert.Equal(t, 3600, *remote.RemainingSeconds)
}

func TestListUnconsumedCoupons(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "unconsumed", r.URL.Query().Get("status"))
		_, _ = io.WriteString(w, `{"code":200,"data":[{"id":1,"session_id":"s1","zone_id":5},{"id":2,"session_id":"s1","zone_id":"6"}]}`)
	})

	coupons, err := c.ListUnconsumedCoupons(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Coupon{
		{ID: "1", SessionID: "s1", ZoneID: "5"},
		{ID: "2", SessionID: "s1", ZoneID: "6"},
	}, coupons)
}

func TestSubmitConsignment(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body consignmentRequestDTO
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "499.90", body.Price)
		_, _ = io.WriteString(w, `{"code":200,"msg":"寄售成功","data":{"coupon_consumed":true,"coupon_remaining":2}}`)
	})

	receipt, err := c.SubmitConsignment(context.Background(), "h1", decimal.RequireFromString("499.9"))
	require.NoError(t, err)
	assert.Equal(t, "寄售成功", receipt.Message)
	require.NotNil(t, receipt.CouponConsumed)
	assert.True(t, *receipt.CouponConsumed)
	require.NotNil(t, receipt.CouponRemaining)
	assert.Equal(t, 2, *receipt.CouponRemaining)
}

func TestGetReservation(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":200,"data":{"status":1,"match_time":1735689600,"actual_buy_price":"750",
			"holding":{"id":"h9","title":"Dragon","price":"750","market_price":"800","purchase_time":1735689600,"session_id":"s1","zone_id":"6","consignment_status":0,"delivery_status":0}}}`)
	})

	out, err := c.GetReservation(context.Background(), "991")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusApproved, out.Status)
	require.NotNil(t, out.MatchTime)
	assert.Equal(t, time.Unix(1735689600, 0).UTC(), *out.MatchTime)
	require.NotNil(t, out.ActualBuyPrice)
	assert.True(t, out.ActualBuyPrice.Equal(decimal.NewFromInt(750)))
	require.NotNil(t, out.Holding)
	assert.Equal(t, "h9", out.Holding.ID)
	assert.Equal(t, domain.ConsignmentStatusNotConsigned, out.Holding.ConsignmentStatus)
	assert.False(t, out.Holding.HasConsignmentHistory)
}

func TestGetReservation_PendingAndUnknown(t *testing.T) {
	t.Parallel()

	status := `"pending"`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":200,"data":{"status":`+status+`}}`)
	})

	out, err := c.GetReservation(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationStatusPending, out.Status)
	assert.Nil(t, out.MatchTime)
	assert.Nil(t, out.Holding)
}

func TestParseOutcome(t *testing.T) {
	t.Parallel()

	for _, code := range []string{"0", "200", "success", "OK"} {
		assert.Equal(t, OutcomeSuccess, parseOutcome(code), code)
	}
	for _, code := range []string{"", "500", "E4001", "fail", "true", "false"} {
		assert.Equal(t, OutcomeFailure, parseOutcome(code), code)
	}
}

func TestHoldingDTOHistory(t *testing.T) {
	t.Parallel()

	var dto holdingDTO
	require.NoError(t, json.Unmarshal([]byte(`{"id":"h1","consignment_status":"3","delivery_status":"delivered"}`), &dto))
	h, err := dto.toDomain()
	require.NoError(t, err)
	assert.Equal(t, domain.ConsignmentStatusRejected, h.ConsignmentStatus)
	assert.True(t, h.HasConsignmentHistory)
	assert.True(t, h.IsDelivered())
}
