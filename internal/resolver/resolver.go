// Package resolver fills in missing session, zone and package ids for a
// collectible and establishes its zone ceiling price.
package resolver

import (
	"context"
	"strings"

	"github.com/cimillas/ultimate-collectibles/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type IDs struct {
	SessionID string `json:"session_id"`
	ZoneID    string `json:"zone_id"`
	PackageID string `json:"package_id"`
}

// Complete reports whether all three ids are present. A zone id of "0" counts as absent.
func (ids IDs) Complete() bool {
	return ids.SessionID != "" && !zoneMissing(ids.ZoneID) && ids.PackageID != ""
}

func (ids IDs) fill(from IDs) IDs {
	if ids.SessionID == "" {
		ids.SessionID = from.SessionID
	}
	if zoneMissing(ids.ZoneID) && !zoneMissing(from.ZoneID) {
		ids.ZoneID = from.ZoneID
	}
	if ids.PackageID == "" {
		ids.PackageID = from.PackageID
	}
	return ids
}

func zoneMissing(id string) bool {
	return id == "" || id == "0"
}

// Confidence ranks the signal a ceiling price came from.
type Confidence int

const (
	ConfidenceNone Confidence = iota
	ConfidenceOwnPrice
	ConfidenceExplicitField
	ConfidenceLabel
	ConfidencePreloaded
)

type Resolution struct {
	IDs
	CeilingPrice decimal.Decimal `json:"ceiling_price"`
	Confidence   Confidence      `json:"confidence"`
	Label        string          `json:"label,omitempty"`
	// Attempted is set once the backend lookups ran for the collectible.
	Attempted bool `json:"attempted"`
}

// CollectibleDetail is the subset of the collectible-detail payload the
// resolver reads.
type CollectibleDetail struct {
	Price          decimal.Decimal
	PriceZoneLabel string
	// ZonePrice is an explicit ceiling on the payload, zero when absent.
	ZonePrice decimal.Decimal
	SessionID string
	ZoneID    string
	PackageID string
}

type Collaborator interface {
	CollectibleDetail(ctx context.Context, collectibleID string) (CollectibleDetail, error)
	SessionDetail(ctx context.Context, sessionID string) (domain.Session, error)
}

// Cache memoizes resolutions by collectible id. It is owned by the caller.
type Cache interface {
	Get(ctx context.Context, key string) (Resolution, bool, error)
	Put(ctx context.Context, key string, r Resolution) error
}

type Resolver struct {
	backend Collaborator
	cache   Cache
	logger  zerolog.Logger
}

func New(backend Collaborator, cache Cache, logger zerolog.Logger) *Resolver {
	return &Resolver{backend: backend, cache: cache, logger: logger}
}

// Preload seeds the cache with context the caller already holds, such as the
// listing the user navigated from. Its ceiling price outranks anything the
// backend lookups derive later.
func (r *Resolver) Preload(ctx context.Context, collectibleID string, ids IDs, ceiling decimal.Decimal) error {
	res := Resolution{IDs: ids}
	if ceiling.IsPositive() {
		res.CeilingPrice = ceiling
		res.Confidence = ConfidencePreloaded
	}
	if existing, ok := r.lookup(ctx, collectibleID); ok {
		res = merge(existing, res)
		res.Attempted = existing.Attempted
	}
	return r.cache.Put(ctx, collectibleID, res)
}

// Resolve returns the best available ids for the collectible. It never fails:
// on error the known values come back unchanged and validation is left to the
// submission path.
func (r *Resolver) Resolve(ctx context.Context, collectibleID string, known IDs) Resolution {
	if known.Complete() {
		return Resolution{IDs: known}
	}

	cached, ok := r.lookup(ctx, collectibleID)
	if ok {
		out := cached
		out.IDs = known.fill(cached.IDs)
		if cached.Attempted || out.Complete() {
			return out
		}
	}

	fresh, err := r.resolve(ctx, collectibleID, known.fill(cached.IDs), cached)
	if err != nil {
		r.logger.Warn().Err(err).Str("collectible_id", collectibleID).Msg("zone resolution failed")
		if ok {
			out := cached
			out.IDs = known.fill(cached.IDs)
			return out
		}
		return Resolution{IDs: known}
	}

	if ok {
		fresh = merge(cached, fresh)
	}
	fresh.Attempted = true
	if err := r.cache.Put(ctx, collectibleID, fresh); err != nil {
		r.logger.Warn().Err(err).Str("collectible_id", collectibleID).Msg("cache resolution")
	}
	return fresh
}

func (r *Resolver) lookup(ctx context.Context, key string) (Resolution, bool) {
	if r.cache == nil {
		return Resolution{}, false
	}
	res, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.Warn().Err(err).Str("collectible_id", key).Msg("read resolution cache")
		return Resolution{}, false
	}
	return res, ok
}

// resolve looks the collectible up on the backend. Zone matching uses the
// strongest ceiling known, which may be one the prior resolution holds.
func (r *Resolver) resolve(ctx context.Context, collectibleID string, known IDs, prior Resolution) (Resolution, error) {
	detail, err := r.backend.CollectibleDetail(ctx, collectibleID)
	if err != nil {
		return Resolution{}, err
	}

	res := Resolution{
		IDs:   known.fill(IDs{SessionID: detail.SessionID, ZoneID: detail.ZoneID, PackageID: detail.PackageID}),
		Label: strings.TrimSpace(detail.PriceZoneLabel),
	}
	res.CeilingPrice, res.Confidence = ceilingFrom(detail)
	if prior.Confidence > res.Confidence {
		res.CeilingPrice, res.Confidence = prior.CeilingPrice, prior.Confidence
	}

	if (zoneMissing(res.ZoneID) || res.Label != "") && res.SessionID != "" {
		session, err := r.backend.SessionDetail(ctx, res.SessionID)
		if err != nil {
			r.logger.Warn().Err(err).Str("session_id", res.SessionID).Msg("session detail for zone match")
			return res, nil
		}
		if zone, ok := MatchZone(session.Zones, res.Label, res.CeilingPrice); ok {
			res.ZoneID = zone.ID
		}
	}
	return res, nil
}

// ceilingFrom tries the label, then explicit numeric fields, then the
// collectible's own price.
func ceilingFrom(d CollectibleDetail) (decimal.Decimal, Confidence) {
	if p, ok := domain.ParseZoneLabel(d.PriceZoneLabel); ok && p.IsPositive() {
		return p, ConfidenceLabel
	}
	if d.ZonePrice.IsPositive() {
		return d.ZonePrice, ConfidenceExplicitField
	}
	if d.Price.IsPositive() {
		return d.Price, ConfidenceOwnPrice
	}
	return decimal.Zero, ConfidenceNone
}

// MatchZone finds the zone whose name equals the label, else the first zone
// whose name contains the floor of the target price.
func MatchZone(zones []domain.Zone, label string, target decimal.Decimal) (domain.Zone, bool) {
	if label != "" {
		for _, z := range zones {
			if z.Name == label {
				return z, true
			}
		}
	}
	if !target.IsPositive() {
		return domain.Zone{}, false
	}
	needle := target.Floor().String()
	for _, z := range zones {
		if strings.Contains(z.Name, needle) {
			return z, true
		}
	}
	return domain.Zone{}, false
}

// merge combines an existing resolution with a newer one. Ids fill gaps from
// either side; the ceiling price is only replaced by an equal or stronger signal.
func merge(existing, next Resolution) Resolution {
	out := next
	out.IDs = next.IDs.fill(existing.IDs)
	if existing.Confidence > next.Confidence {
		out.CeilingPrice = existing.CeilingPrice
		out.Confidence = existing.Confidence
	}
	if out.Label == "" {
		out.Label = existing.Label
	}
	return out
}
