package numeric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareHelpers(t *testing.T) {
	assert.True(t, LTE(0.1+0.2, 0.3000000000000001))
	assert.True(t, GTE(800, 800))
	assert.True(t, LT(799.999999, 800))
	assert.True(t, GT(800.000001, 800))
	assert.Equal(t, 0, Compare(math.NaN(), 0))
}

func TestPercentOf(t *testing.T) {
	assert.InDelta(t, 40.0, PercentOf(0.04, 0.1), 1e-12)
	assert.Equal(t, 0.0, PercentOf(5, 0))
	assert.Equal(t, 0.0, PercentOf(5, -1))
}

func TestReachesPercentDrop(t *testing.T) {
	cases := []struct {
		name     string
		from, to float64
		pct      float64
		want     bool
	}{
		{"exact boundary", 1000, 800, 20, true},
		{"just above boundary", 1000, 800.000001, 20, false},
		{"below boundary", 1000, 799, 20, true},
		{"zero peak", 0, -1, 20, false},
		{"1200 to 950", 1200, 950, 20, true},
		{"1200 to 960", 1200, 960, 20, true},
		{"1200 to 961", 1200, 961, 20, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ReachesPercentDrop(tc.from, tc.to, tc.pct))
		})
	}
}

func TestMin(t *testing.T) {
	assert.Equal(t, 0.08, Min(0.08, 0.1))
	assert.Equal(t, 0.05, Min(0.08, 0.05))
}
