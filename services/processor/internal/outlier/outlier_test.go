package outlier

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMADFlagsSpike(t *testing.T) {
	values := []float64{1, 2, 1, 2, 1, 2, -200, 1, 2}

	scores := MAD{}.Scores(values)
	require.Len(t, scores, len(values))

	assert.Equal(t, 1, Flagged(scores, DefaultThreshold))
	assert.Greater(t, math.Abs(scores[6]), DefaultThreshold)
}

func TestMADConstantSeries(t *testing.T) {
	scores := MAD{}.Scores([]float64{5, 5, 5, 5})
	assert.Equal(t, []float64{0, 0, 0, 0}, scores)
}

func TestZScore(t *testing.T) {
	scores := ZScore{}.Scores([]float64{2, 4, 4, 4, 5, 5, 7, 9})

	// mean 5, population stddev 2
	assert.InDelta(t, -1.5, scores[0], 1e-9)
	assert.InDelta(t, 2.0, scores[7], 1e-9)
	assert.Empty(t, ZScore{}.Scores(nil))
}

func TestNew(t *testing.T) {
	s, err := New("")
	require.NoError(t, err)
	assert.Equal(t, MethodMAD, s.Name())

	s, err = New(MethodZScore)
	require.NoError(t, err)
	assert.Equal(t, MethodZScore, s.Name())

	_, err = New("isolation-forest")
	assert.Error(t, err)
}
