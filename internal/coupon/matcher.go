// Package coupon decides whether a holding can be consigned given the user's
// unconsumed coupons.
package coupon

import (
	"fmt"
	"strings"

	"github.com/cimillas/ultimate-collectibles/internal/domain"
)

// LegacyPolicy controls what is reported for holdings without session/zone ids,
// where exact matching cannot be applied.
type LegacyPolicy string

const (
	// LegacyOptimistic reports every unconsumed coupon as available and lets
	// the backend validate on submission.
	LegacyOptimistic LegacyPolicy = "optimistic"
	// LegacyStrict reports zero for unscoped holdings.
	LegacyStrict LegacyPolicy = "strict"
)

// ParseLegacyPolicy parses a configuration value.
func ParseLegacyPolicy(s string) (LegacyPolicy, error) {
	switch p := LegacyPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case LegacyOptimistic, LegacyStrict:
		return p, nil
	case "":
		return LegacyOptimistic, nil
	default:
		return "", fmt.Errorf("unknown coupon legacy policy %q", s)
	}
}

type Result struct {
	AvailableCount int
	HasTicket      bool
	// Exact is false when the count was not produced by session/zone matching.
	Exact bool
}

type Matcher struct {
	policy LegacyPolicy
}

func NewMatcher(policy LegacyPolicy) *Matcher {
	if policy == "" {
		policy = LegacyOptimistic
	}
	return &Matcher{policy: policy}
}

func (m *Matcher) Policy() LegacyPolicy {
	return m.policy
}

// Match counts the coupons eligible for the holding.
func (m *Matcher) Match(coupons []domain.Coupon, h domain.Holding) Result {
	if !h.HasScope() {
		if m.policy == LegacyStrict {
			return Result{}
		}
		return Result{AvailableCount: len(coupons), HasTicket: len(coupons) > 0}
	}

	n := 0
	for _, c := range coupons {
		if c.Matches(h) {
			n++
		}
	}
	return Result{AvailableCount: n, HasTicket: n > 0, Exact: true}
}
