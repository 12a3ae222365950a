package domain

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Session is a scheduled blind-box draw window. Read-only on this side.
type Session struct {
	ID        string
	Title     string
	StartTime time.Time
	EndTime   time.Time
	Zones     []Zone
}

// Zone is a price tier within a session.
type Zone struct {
	ID        string
	SessionID string
	Name      string
	// CeilingPrice is the explicit ceiling when the backend supplies one; zero otherwise.
	CeilingPrice decimal.Decimal
}

var (
	leadingNumber  = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)`)
	leadingInteger = regexp.MustCompile(`^\s*(\d+)`)
	thousand       = decimal.NewFromInt(1000)
)

// ParseZoneLabel extracts the ceiling price encoded in a zone label such as
// "500元区" (500) or "1K区" (1000).
func ParseZoneLabel(label string) (decimal.Decimal, bool) {
	if strings.ContainsAny(label, "Kk") {
		m := leadingNumber.FindStringSubmatch(label)
		if m == nil {
			return decimal.Zero, false
		}
		n, err := decimal.NewFromString(m[1])
		if err != nil {
			return decimal.Zero, false
		}
		return n.Mul(thousand), true
	}

	m := leadingInteger.FindStringSubmatch(label)
	if m == nil {
		return decimal.Zero, false
	}
	n, err := decimal.NewFromString(m[1])
	if err != nil {
		return decimal.Zero, false
	}
	return n, true
}

// Ceiling returns the zone's ceiling price, preferring the explicit field and
// falling back to the label.
func (z Zone) Ceiling() (decimal.Decimal, error) {
	if z.CeilingPrice.IsPositive() {
		return z.CeilingPrice, nil
	}
	if p, ok := ParseZoneLabel(z.Name); ok && p.IsPositive() {
		return p, nil
	}
	return decimal.Zero, ErrZoneCeilingUnresolvable
}

// FindZone returns the zone with the given id.
func (s Session) FindZone(zoneID string) (Zone, bool) {
	for _, z := range s.Zones {
		if z.ID == zoneID {
			return z, true
		}
	}
	return Zone{}, false
}
