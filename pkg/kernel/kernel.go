// Package kernel synthesizes the discrete 2D Gaussian kernels used by the
// anti-aliasing pre-filter.
//
// Kernels are truncated at three standard deviations per axis and carry the
// weight of their center cell (Peak). The peak is what lets a kernel travel
// through an 8-bit channel: Quantize maps every weight to round(w/Peak*255)
// and the convolution pass divides by the sum of the quantized taps it read,
// which restores the correct relative weights.
package kernel

import (
	"fmt"
	"math"
	"strings"

	"github.com/menta2k/batch-resizer/pkg/types"
)

// TruncateSigmas is the number of standard deviations kept on each side of the
// center. Changing it changes the filter footprint of every pass.
const TruncateSigmas = 3

// QuantizeLevels is the maximum value of a quantized kernel cell
const QuantizeLevels = 255

// Formula selects the Gaussian weighting function
type Formula int

const (
	// FormulaJoint weights (x, y) by exp(-(x²+y²)/(2·σx·σy)) / (2π·σx·σy).
	// Default formula.
	FormulaJoint Formula = iota

	// FormulaSeparable weights (x, y) by the product of the two per-axis
	// Gaussians, which is the textbook anisotropic kernel.
	FormulaSeparable
)

func (f Formula) String() string {
	switch f {
	case FormulaJoint:
		return "joint"
	case FormulaSeparable:
		return "separable"
	}
	return fmt.Sprintf("Formula(%d)", int(f))
}

// ParseFormula parses "joint" or "separable"
func ParseFormula(name string) (Formula, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "joint":
		return FormulaJoint, nil
	case "separable":
		return FormulaSeparable, nil
	}
	return 0, fmt.Errorf("unknown kernel formula: %q", name)
}

// InvalidSigmaError is returned when a kernel is requested for a sigma that is
// not strictly positive on both axes. Callers must skip filtering instead.
type InvalidSigmaError struct {
	Sigma types.Sigma
}

func (e *InvalidSigmaError) Error() string {
	return fmt.Sprintf("invalid sigma %s: must be > 0 on both axes", e.Sigma)
}

// MaxTaps is the largest grid Synthesize will allocate. Backends usually
// accept far less.
const MaxTaps = 1 << 24

// TooLargeError is returned when the kernel for a sigma would exceed MaxTaps
type TooLargeError struct {
	Sigma types.Sigma
	Taps  float64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("kernel for sigma %s needs %.0f taps, limit is %d", e.Sigma, e.Taps, MaxTaps)
}

// Kernel is a dense (2·RadiusX+1) × (2·RadiusY+1) grid of non-negative weights
type Kernel struct {
	Sigma   types.Sigma
	Formula Formula
	RadiusX int
	RadiusY int

	// Weights holds the grid row by row, top row first.
	Weights []float64

	// Peak is the weight of the center cell, the largest in the grid.
	Peak float64
}

// Radius returns the 3-sigma truncation radius for one axis
func Radius(sigma float64) int {
	return int(math.Ceil(TruncateSigmas * sigma))
}

// TapsFor returns the cell count of the kernel for sigma without building it.
// It is computed in floating point so huge sigmas cannot overflow.
func TapsFor(sigma types.Sigma) float64 {
	w := 2*math.Ceil(TruncateSigmas*sigma.X) + 1
	h := 2*math.Ceil(TruncateSigmas*sigma.Y) + 1
	return w * h
}

// Synthesize builds a kernel with the joint formula
func Synthesize(sigma types.Sigma) (*Kernel, error) {
	return SynthesizeWith(sigma, FormulaJoint)
}

// SynthesizeWith builds a kernel for sigma using the given formula
func SynthesizeWith(sigma types.Sigma, formula Formula) (*Kernel, error) {
	if !sigma.Positive() {
		return nil, &InvalidSigmaError{Sigma: sigma}
	}
	if taps := TapsFor(sigma); taps > MaxTaps {
		return nil, &TooLargeError{Sigma: sigma, Taps: taps}
	}

	var weight func(x, y float64) float64
	sx, sy := sigma.X, sigma.Y
	norm := 1 / (2 * math.Pi * sx * sy)
	switch formula {
	case FormulaJoint:
		denom := 2 * sx * sy
		weight = func(x, y float64) float64 {
			return math.Exp(-(x*x+y*y)/denom) * norm
		}
	case FormulaSeparable:
		dx, dy := 2*sx*sx, 2*sy*sy
		weight = func(x, y float64) float64 {
			return math.Exp(-(x*x/dx + y*y/dy)) * norm
		}
	default:
		return nil, fmt.Errorf("unknown kernel formula: %s", formula)
	}

	rx, ry := Radius(sx), Radius(sy)
	k := &Kernel{
		Sigma:   sigma,
		Formula: formula,
		RadiusX: rx,
		RadiusY: ry,
		Weights: make([]float64, (2*rx+1)*(2*ry+1)),
	}

	w := k.Width()
	for y := -ry; y <= ry; y++ {
		row := (y + ry) * w
		for x := -rx; x <= rx; x++ {
			k.Weights[row+x+rx] = weight(float64(x), float64(y))
		}
	}
	k.Peak = k.At(0, 0)

	return k, nil
}

// Width returns the number of columns
func (k *Kernel) Width() int {
	return 2*k.RadiusX + 1
}

// Height returns the number of rows
func (k *Kernel) Height() int {
	return 2*k.RadiusY + 1
}

// Taps returns the number of cells
func (k *Kernel) Taps() int {
	return len(k.Weights)
}

// At returns the weight at offset (dx, dy) from the center
func (k *Kernel) At(dx, dy int) float64 {
	return k.Weights[(dy+k.RadiusY)*k.Width()+dx+k.RadiusX]
}

// Sum returns the sum of all raw weights
func (k *Kernel) Sum() float64 {
	var s float64
	for _, w := range k.Weights {
		s += w
	}
	return s
}

// Quantize returns the kernel in its 8-bit transport form, round(w/Peak*255),
// laid out like Weights.
func (k *Kernel) Quantize() []uint8 {
	out := make([]uint8, len(k.Weights))
	for i, w := range k.Weights {
		out[i] = quantize(w / k.Peak)
	}
	return out
}

// QuantizedSum returns the sum of the transport weights, the divisor a pass
// uses when every tap lands on a texel
func (k *Kernel) QuantizedSum() uint32 {
	var s uint32
	for _, v := range k.Quantize() {
		s += uint32(v)
	}
	return s
}

// Axes returns the center row and the center column divided by Peak. Both
// formulas factor as Peak·row(x)·col(y), so a separable pass built from these
// covers the same footprint as the full grid.
func (k *Kernel) Axes() (row, col []float64) {
	row = make([]float64, k.Width())
	for x := -k.RadiusX; x <= k.RadiusX; x++ {
		row[x+k.RadiusX] = k.At(x, 0) / k.Peak
	}
	col = make([]float64, k.Height())
	for y := -k.RadiusY; y <= k.RadiusY; y++ {
		col[y+k.RadiusY] = k.At(0, y) / k.Peak
	}
	return row, col
}

// QuantizeAxis maps relative weights in [0,1] to the 8-bit transport form
func QuantizeAxis(weights []float64) []uint8 {
	out := make([]uint8, len(weights))
	for i, w := range weights {
		out[i] = quantize(w)
	}
	return out
}

func quantize(rel float64) uint8 {
	v := math.Round(rel * QuantizeLevels)
	if v < 0 {
		return 0
	}
	if v > QuantizeLevels {
		return QuantizeLevels
	}
	return uint8(v)
}
