package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseZoneLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label string
		want  int64
		ok    bool
	}{
		{label: "500元区", want: 500, ok: true},
		{label: "1K区", want: 1000, ok: true},
		{label: "2k区", want: 2000, ok: true},
		{label: " 200元区", want: 200, ok: true},
		{label: "1.5K区", want: 1500, ok: true},
		{label: "99", want: 99, ok: true},
		{label: "元区", ok: false},
		{label: "K区", ok: false},
		{label: "", ok: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.label, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseZoneLabel(tt.label)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, got.Equal(decimal.NewFromInt(tt.want)), "got %s", got)
			}
		})
	}
}

func TestZoneCeiling(t *testing.T) {
	t.Parallel()

	explicit := Zone{Name: "500元区", CeilingPrice: decimal.NewFromInt(520)}
	got, err := explicit.Ceiling()
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(520)))

	parsed := Zone{Name: "1K区"}
	got, err = parsed.Ceiling()
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(1000)))

	_, err = Zone{Name: "VIP"}.Ceiling()
	assert.ErrorIs(t, err, ErrZoneCeilingUnresolvable)
}

func TestSessionFindZone(t *testing.T) {
	t.Parallel()

	s := Session{ID: "s1", Zones: []Zone{{ID: "5", Name: "500元区"}, {ID: "6", Name: "1K区"}}}
	z, ok := s.FindZone("6")
	require.True(t, ok)
	assert.Equal(t, "1K区", z.Name)

	_, ok = s.FindZone("7")
	assert.False(t, ok)
}
