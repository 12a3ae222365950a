// Package backend is the REST client for the trading platform collaborators:
// collectible and session reads, bid submission, consignment eligibility,
// coupons, consignment and delivery requests, and reservation settlement reads.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cimillas/ultimate-collectibles/internal/domain"
	"github.com/cimillas/ultimate-collectibles/internal/eligibility"
	"github.com/cimillas/ultimate-collectibles/internal/resolver"
	"github.com/shopspring/decimal"
)

const (
	defaultTimeout  = 10 * time.Second
	maxResponseSize = 2 << 20
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func New(baseURL, token string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("backend base url is empty")
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   strings.TrimSpace(token),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) CollectibleDetail(ctx context.Context, collectibleID string) (resolver.CollectibleDetail, error) {
	var dto collectibleDetailDTO
	if err := c.do(ctx, http.MethodGet, "/collectibles/"+url.PathEscape(collectibleID), nil, &dto); err != nil {
		return resolver.CollectibleDetail{}, err
	}
	out := resolver.CollectibleDetail{
		PriceZoneLabel: dto.PriceZoneLabel,
		SessionID:      string(dto.SessionID),
		ZoneID:         string(dto.ZoneID),
		PackageID:      string(dto.PackageID),
	}
	if dto.Price.Valid {
		out.Price = dto.Price.Decimal
	}
	switch {
	case dto.ZonePrice.Valid && dto.ZonePrice.Decimal.IsPositive():
		out.ZonePrice = dto.ZonePrice.Decimal
	case dto.MaxPrice.Valid:
		out.ZonePrice = dto.MaxPrice.Decimal
	}
	return out, nil
}

func (c *Client) SessionDetail(ctx context.Context, sessionID string) (domain.Session, error) {
	var dto sessionDTO
	if err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(sessionID), nil, &dto); err != nil {
		return domain.Session{}, err
	}
	return dto.toDomain(sessionID), nil
}

func (c *Client) SubmitBid(ctx context.Context, req domain.BidRequest) (domain.BidReceipt, error) {
	body := bidRequestDTO{
		SessionID:     req.SessionID,
		ZoneID:        req.ZoneID,
		PackageID:     req.PackageID,
		ExtraHashrate: req.ExtraHashrate,
	}
	var dto bidResultDTO
	msg, err := c.doWithMessage(ctx, http.MethodPost, "/bids", body, &dto, req.IdempotencyKey)
	if err != nil {
		return domain.BidReceipt{}, err
	}
	return domain.BidReceipt{ReservationID: string(dto.ReservationID), Message: msg}, nil
}

func (c *Client) ConsignmentEligibility(ctx context.Context, holdingID string) (eligibility.Remote, error) {
	var dto eligibilityDTO
	if err := c.do(ctx, http.MethodGet, "/holdings/"+url.PathEscape(holdingID)+"/consignment-eligibility", nil, &dto); err != nil {
		return eligibility.Remote{}, err
	}
	return eligibility.Remote{Unlocked: dto.Unlocked, RemainingSeconds: dto.RemainingSeconds}, nil
}

func (c *Client) ListUnconsumedCoupons(ctx context.Context) ([]domain.Coupon, error) {
	var dtos []couponDTO
	if err := c.do(ctx, http.MethodGet, "/coupons?status=unconsumed", nil, &dtos); err != nil {
		return nil, err
	}
	out := make([]domain.Coupon, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, domain.Coupon{ID: string(d.ID), SessionID: string(d.SessionID), ZoneID: string(d.ZoneID)})
	}
	return out, nil
}

func (c *Client) SubmitConsignment(ctx context.Context, holdingID string, price decimal.Decimal) (domain.ConsignmentReceipt, error) {
	var dto consignmentResultDTO
	msg, err := c.doWithMessage(ctx, http.MethodPost, "/holdings/"+url.PathEscape(holdingID)+"/consignment",
		consignmentRequestDTO{Price: price.StringFixed(2)}, &dto, "")
	if err != nil {
		return domain.ConsignmentReceipt{}, err
	}
	return domain.ConsignmentReceipt{
		Message:         msg,
		CouponConsumed:  dto.CouponConsumed,
		CouponRemaining: dto.CouponRemaining,
	}, nil
}

func (c *Client) SubmitDelivery(ctx context.Context, holdingID string) (domain.DeliveryReceipt, error) {
	msg, err := c.doWithMessage(ctx, http.MethodPost, "/holdings/"+url.PathEscape(holdingID)+"/delivery", struct{}{}, nil, "")
	if err != nil {
		return domain.DeliveryReceipt{}, err
	}
	return domain.DeliveryReceipt{Message: msg}, nil
}

func (c *Client) GetReservation(ctx context.Context, remoteID string) (domain.ReservationOutcome, error) {
	var dto reservationDTO
	if err := c.do(ctx, http.MethodGet, "/reservations/"+url.PathEscape(remoteID), nil, &dto); err != nil {
		return domain.ReservationOutcome{}, err
	}
	status, err := reservationStatus(string(dto.Status))
	if err != nil {
		return domain.ReservationOutcome{}, fmt.Errorf("reservation %s: %w", remoteID, err)
	}
	out := domain.ReservationOutcome{Status: status, MatchTime: dto.MatchTime.ptr()}
	if dto.ActualBuyPrice.Valid {
		p := dto.ActualBuyPrice.Decimal
		out.ActualBuyPrice = &p
	}
	if dto.Holding != nil {
		h, err := dto.Holding.toDomain()
		if err != nil {
			return domain.ReservationOutcome{}, fmt.Errorf("reservation %s holding: %w", remoteID, err)
		}
		out.Holding = &h
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	_, err := c.doWithMessage(ctx, method, path, body, out, "")
	return err
}

// doWithMessage sends the request and decodes the response envelope. A
// failure discriminator becomes a *domain.RemoteError carrying the server
// message verbatim; transport errors and 5xx responses wrap domain.ErrTransient.
func (c *Client) doWithMessage(ctx context.Context, method, path string, body, out any, idempotencyKey string) (string, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return "", err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s %s: %v", domain.ErrTransient, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", domain.ErrTransient, path, err)
	}
	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("%w: %s %s: http %d", domain.ErrTransient, method, path, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("decode %s response (http %d): %w", path, resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 || env.outcome() != OutcomeSuccess {
		code := string(env.Code)
		if code == "" {
			code = fmt.Sprintf("http_%d", resp.StatusCode)
		}
		return "", &domain.RemoteError{Code: code, Message: env.message()}
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return "", fmt.Errorf("decode %s data: %w", path, err)
		}
	}
	return env.message(), nil
}
