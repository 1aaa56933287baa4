package changes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffs(t *testing.T) {
	assert.Equal(t, []float64{0, -10, 5, 0}, Diffs([]float64{100, 90, 95, 95}))
	assert.Equal(t, []float64{0}, Diffs([]float64{42}))
	assert.Empty(t, Diffs(nil))
}

func TestCumulativeExcludesCurrentDelta(t *testing.T) {
	diffs := []float64{0, -10, -20, -30, -40, 5}

	got := Cumulative(diffs, Lags)

	assert.Equal(t, []float64{0, 0, -10, -30, -60, -90}, got)
}

func TestCumulativeSingleLag(t *testing.T) {
	assert.Equal(t, []float64{0, 1, 2}, Cumulative([]float64{1, 2, 3}, 1))
}
