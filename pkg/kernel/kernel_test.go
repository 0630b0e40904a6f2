package kernel

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/batch-resizer/pkg/types"
)

func TestSynthesizeSigmaTwo(t *testing.T) {
	k, err := Synthesize(types.Isotropic(2.0))
	require.NoError(t, err)

	assert.Equal(t, 6, k.RadiusX)
	assert.Equal(t, 6, k.RadiusY)
	assert.Equal(t, 13, k.Width())
	assert.Equal(t, 13, k.Height())
	assert.Equal(t, 169, k.Taps())

	// The center cell is at index (6, 6) of the grid.
	assert.Equal(t, k.Weights[6*13+6], k.Peak)
	assert.InDelta(t, 1/(2*math.Pi*4), k.Peak, 1e-15)
}

func TestTapsFor(t *testing.T) {
	assert.Equal(t, 169.0, TapsFor(types.Isotropic(2)))
	assert.Equal(t, 151.0*151.0, TapsFor(types.Isotropic(25)))
	assert.Equal(t, 13.0*3.0, TapsFor(types.Sigma{X: 2, Y: 0.25}))
}

func TestSynthesizeTooLarge(t *testing.T) {
	// A 16000px source drawn into a single pixel at factor 4.
	_, err := Synthesize(types.Isotropic(4000))
	var tooLarge *TooLargeError
	require.True(t, errors.As(err, &tooLarge))
	assert.Equal(t, 24001.0*24001.0, tooLarge.Taps)
}

func TestSynthesizeProperties(t *testing.T) {
	sigmas := []types.Sigma{
		types.Isotropic(0.1),
		types.Isotropic(0.5),
		types.Isotropic(1),
		types.Isotropic(1.7),
		{X: 1, Y: 3},
		{X: 2.5, Y: 0.4},
	}

	for _, formula := range []Formula{FormulaJoint, FormulaSeparable} {
		for _, s := range sigmas {
			k, err := SynthesizeWith(s, formula)
			require.NoError(t, err)

			assert.Equal(t, 2*int(math.Ceil(3*s.X))+1, k.Width(), "%s %s", formula, s)
			assert.Equal(t, 2*int(math.Ceil(3*s.Y))+1, k.Height(), "%s %s", formula, s)
			assert.Equal(t, k.At(0, 0), k.Peak)

			for dy := -k.RadiusY; dy <= k.RadiusY; dy++ {
				for dx := -k.RadiusX; dx <= k.RadiusX; dx++ {
					w := k.At(dx, dy)
					assert.GreaterOrEqual(t, w, 0.0)
					assert.LessOrEqual(t, w, k.Peak)
					assert.Equal(t, w, k.At(-dx, dy))
					assert.Equal(t, w, k.At(dx, -dy))
				}
			}
		}
	}
}

func TestSynthesizeJointFormula(t *testing.T) {
	s := types.Sigma{X: 1, Y: 2}
	k, err := Synthesize(s)
	require.NoError(t, err)

	want := math.Exp(-(1.0+4.0)/(2*1*2)) / (2 * math.Pi * 1 * 2)
	assert.InDelta(t, want, k.At(1, 2), 1e-15)
	assert.Equal(t, FormulaJoint, k.Formula)
}

func TestSynthesizeSeparableFormula(t *testing.T) {
	s := types.Sigma{X: 1, Y: 2}
	k, err := SynthesizeWith(s, FormulaSeparable)
	require.NoError(t, err)

	want := math.Exp(-(1.0/2.0 + 4.0/8.0)) / (2 * math.Pi * 2)
	assert.InDelta(t, want, k.At(1, 2), 1e-15)
}

func TestFormulasAgreeWhenIsotropic(t *testing.T) {
	a, err := SynthesizeWith(types.Isotropic(1.3), FormulaJoint)
	require.NoError(t, err)
	b, err := SynthesizeWith(types.Isotropic(1.3), FormulaSeparable)
	require.NoError(t, err)
	assert.InDeltaSlice(t, a.Weights, b.Weights, 1e-15)
}

func TestSynthesizeInvalidSigma(t *testing.T) {
	for _, s := range []types.Sigma{{}, {X: 1, Y: 0}, {X: -1, Y: 1}, {X: math.NaN(), Y: 1}} {
		_, err := Synthesize(s)
		var sigErr *InvalidSigmaError
		require.True(t, errors.As(err, &sigErr), "%v", s)
		assert.Equal(t, s.Y, sigErr.Sigma.Y)
	}
}

func TestQuantize(t *testing.T) {
	k, err := Synthesize(types.Isotropic(1))
	require.NoError(t, err)

	q := k.Quantize()
	require.Len(t, q, k.Taps())
	center := k.RadiusY*k.Width() + k.RadiusX
	assert.Equal(t, uint8(255), q[center])

	for i, w := range k.Weights {
		assert.Equal(t, uint8(math.Round(w/k.Peak*255)), q[i])
	}

	// Corner of a 3-sigma kernel: exp(-9) * 255 rounds to zero.
	assert.Equal(t, uint8(0), q[0])

	var sum uint32
	for _, v := range q {
		sum += uint32(v)
	}
	assert.Equal(t, sum, k.QuantizedSum())
}

func TestAxes(t *testing.T) {
	for _, formula := range []Formula{FormulaJoint, FormulaSeparable} {
		k, err := SynthesizeWith(types.Sigma{X: 0.8, Y: 1.6}, formula)
		require.NoError(t, err)

		row, col := k.Axes()
		require.Len(t, row, k.Width())
		require.Len(t, col, k.Height())
		assert.Equal(t, 1.0, row[k.RadiusX])
		assert.Equal(t, 1.0, col[k.RadiusY])

		for dy := -k.RadiusY; dy <= k.RadiusY; dy++ {
			for dx := -k.RadiusX; dx <= k.RadiusX; dx++ {
				got := k.Peak * row[dx+k.RadiusX] * col[dy+k.RadiusY]
				assert.InDelta(t, k.At(dx, dy), got, 1e-15)
			}
		}
	}
}

func TestQuantizeAxis(t *testing.T) {
	assert.Equal(t, []uint8{0, 128, 255, 255}, QuantizeAxis([]float64{-0.1, 0.5, 1, 2}))
}

func TestParseFormula(t *testing.T) {
	f, err := ParseFormula("Separable")
	require.NoError(t, err)
	assert.Equal(t, FormulaSeparable, f)

	f, err = ParseFormula("")
	require.NoError(t, err)
	assert.Equal(t, FormulaJoint, f)

	_, err = ParseFormula("box")
	assert.Error(t, err)
}

func BenchmarkSynthesize(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = Synthesize(types.Isotropic(4))
	}
}
