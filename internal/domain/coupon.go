package domain

// Coupon is a single-use consignment authorization scoped to one session zone.
type Coupon struct {
	ID        string
	SessionID string
	ZoneID    string
}

// Matches reports whether the coupon is scoped to the holding's session zone.
func (c Coupon) Matches(h Holding) bool {
	return c.SessionID == h.SessionID && c.ZoneID == h.ZoneID
}
