package fit

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/batch-resizer/pkg/types"
)

const tol = 1e-9

func TestParseFitMode(t *testing.T) {
	tests := []struct {
		input string
		want  FitMode
	}{
		{"cover", Cover},
		{"contain", Contain},
		{"exact", Exact},
		{" Cover ", Cover},
		{"EXACT", Exact},
	}
	for _, tt := range tests {
		got, err := ParseFitMode(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseFitMode("stretch")
	var modeErr *InvalidFitModeError
	require.True(t, errors.As(err, &modeErr))
	assert.Equal(t, "stretch", modeErr.Mode)
	assert.Contains(t, err.Error(), "stretch")
}

func TestFitModeText(t *testing.T) {
	for _, m := range Modes() {
		text, err := m.MarshalText()
		require.NoError(t, err)
		var back FitMode
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, m, back)
	}

	_, err := FitMode(42).MarshalText()
	assert.Error(t, err)
}

func TestComputePlacementScenarios(t *testing.T) {
	dest := types.Dimensions{Width: 400, Height: 400}

	cover, err := ComputePlacement(2.0, dest, Cover)
	require.NoError(t, err)
	assert.Equal(t, types.Rect{Left: -200, Top: 0, Width: 800, Height: 400}, cover)

	contain, err := ComputePlacement(2.0, dest, Contain)
	require.NoError(t, err)
	assert.Equal(t, types.Rect{Left: 0, Top: 100, Width: 400, Height: 200}, contain)
}

func TestComputePlacementTallSource(t *testing.T) {
	dest := types.Dimensions{Width: 905, Height: 500}

	cover, err := ComputePlacement(0.5, dest, Cover)
	require.NoError(t, err)
	assert.InDelta(t, 905, cover.Width, tol)
	assert.InDelta(t, 1810, cover.Height, tol)
	assert.InDelta(t, -655, cover.Top, tol)
	assert.InDelta(t, 0, cover.Left, tol)

	contain, err := ComputePlacement(0.5, dest, Contain)
	require.NoError(t, err)
	assert.InDelta(t, 250, contain.Width, tol)
	assert.InDelta(t, 500, contain.Height, tol)
	assert.InDelta(t, 327.5, contain.Left, tol)
	assert.InDelta(t, 0, contain.Top, tol)
}

func TestComputePlacementProperties(t *testing.T) {
	dests := []types.Dimensions{
		{Width: 400, Height: 400},
		{Width: 905, Height: 500},
		{Width: 120, Height: 640},
		{Width: 1, Height: 1},
		{Width: 333.3, Height: 77.7},
	}
	aspects := []float64{0.1, 0.5, 0.75, 1, 4.0 / 3.0, 1.81, 2, 16.0 / 9.0, 10}

	for _, dest := range dests {
		for _, aspect := range aspects {
			exact, err := ComputePlacement(aspect, dest, Exact)
			require.NoError(t, err)
			assert.Equal(t, types.Rect{Width: dest.Width, Height: dest.Height}, exact)

			cover, err := ComputePlacement(aspect, dest, Cover)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, cover.Width, dest.Width-tol, "cover width %v %v", dest, aspect)
			assert.GreaterOrEqual(t, cover.Height, dest.Height-tol, "cover height %v %v", dest, aspect)

			contain, err := ComputePlacement(aspect, dest, Contain)
			require.NoError(t, err)
			assert.LessOrEqual(t, contain.Width, dest.Width+tol, "contain width %v %v", dest, aspect)
			assert.LessOrEqual(t, contain.Height, dest.Height+tol, "contain height %v %v", dest, aspect)

			for _, r := range []types.Rect{cover, contain} {
				assert.InDelta(t, dest.Width/2, r.CenterX(), 1e-6)
				assert.InDelta(t, dest.Height/2, r.CenterY(), 1e-6)
				assert.InDelta(t, aspect, r.Width/r.Height, 1e-9*aspect)
			}
		}
	}
}

func TestComputePlacementInvalid(t *testing.T) {
	dest := types.Dimensions{Width: 400, Height: 400}

	_, err := ComputePlacement(1, dest, FitMode(7))
	var modeErr *InvalidFitModeError
	assert.True(t, errors.As(err, &modeErr))

	var dimErr *InvalidDimensionsError
	_, err = ComputePlacement(0, dest, Cover)
	assert.True(t, errors.As(err, &dimErr))

	_, err = ComputePlacement(1, types.Dimensions{Width: 0, Height: 10}, Contain)
	assert.True(t, errors.As(err, &dimErr))
}

func TestComputePlacementFor(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 800, 400))
	r, err := ComputePlacementFor(img, types.Dimensions{Width: 400, Height: 400}, Cover)
	require.NoError(t, err)
	assert.Equal(t, -200.0, r.Left)

	_, err = ComputePlacementFor(image.NewRGBA(image.Rect(0, 0, 0, 10)), types.Dimensions{Width: 1, Height: 1}, Cover)
	assert.Error(t, err)
}

func BenchmarkComputePlacement(b *testing.B) {
	dest := types.Dimensions{Width: 905, Height: 500}
	for i := 0; i < b.N; i++ {
		_, _ = ComputePlacement(1.5, dest, Modes()[i%3])
	}
}
