package motion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/hand_rehab/internal/resolver"
)

func take(t *testing.T, s Source, n int) []float64 {
	t.Helper()
	out := make([]float64, n)
	for i := range out {
		v, err := s.Next()
		require.NoError(t, err)
		out[i] = v
	}
	return out
}

func TestWaveform_Shape(t *testing.T) {
	w, err := NewWaveform(40, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, w.SamplesPerRep())

	v := take(t, w, 10)
	for _, i := range []int{0, 1, 2} {
		assert.Greater(t, v[i], 0.0, "sample %d", i)
		assert.Less(t, v[i+5], 0.0, "sample %d", i+5)
	}
	assert.InDelta(t, 40.0, v[1], 1e-9)
	assert.InDelta(t, -40.0, v[6], 1e-9)
	assert.Equal(t, []float64{0, 0}, v[3:5])
	assert.Equal(t, []float64{0, 0}, v[8:10])

	// periodic
	assert.Equal(t, v, take(t, w, 10))
}

func TestWaveform_CountsOneRepPerExcursion(t *testing.T) {
	w, err := NewWaveform(25, 4, 1)
	require.NoError(t, err)

	d := resolver.NewRepDetector(resolver.DefaultNeutralThreshold)
	rep := 0
	for _, v := range take(t, w, 6*w.SamplesPerRep()) {
		rep = d.Observe(v)
	}
	assert.Equal(t, 7, rep)
}

func TestNewWaveform_Invalid(t *testing.T) {
	_, err := NewWaveform(0, 3, 2)
	assert.ErrorContains(t, err, "amplitude")

	_, err = NewWaveform(10, 0, 2)
	assert.Error(t, err)

	_, err = NewWaveform(10, 3, 0)
	assert.Error(t, err)
}
