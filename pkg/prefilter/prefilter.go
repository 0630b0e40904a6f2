// Package prefilter blurs a source image before it is downscaled so the
// resampled output does not alias.
package prefilter

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/menta2k/batch-resizer/pkg/convolution"
	"github.com/menta2k/batch-resizer/pkg/kernel"
	"github.com/menta2k/batch-resizer/pkg/types"
)

// DefaultFilterFactor is the recommended sharpness. Larger values blur less
// per unit of downscale.
const DefaultFilterFactor = 4.0

// InvalidFilterFactorError reports a filter factor that is zero, negative or
// not finite. Disable the pre-filter instead of passing such a value.
type InvalidFilterFactorError struct {
	Value float64
}

func (e *InvalidFilterFactorError) Error() string {
	return fmt.Sprintf("invalid filter factor %g: must be > 0", e.Value)
}

// ValidateFactor returns an InvalidFilterFactorError for unusable factors
func ValidateFactor(factor float64) error {
	if !(factor > 0) || math.IsInf(factor, 0) {
		return &InvalidFilterFactorError{Value: factor}
	}
	return nil
}

// Scale returns the per-axis scale from source to target size. Values below
// one mean the axis is downscaled.
func Scale(source types.Dimensions, target types.Rect) (x, y float64) {
	return target.Width / source.Width, target.Height / source.Height
}

// DeriveSigma returns the blur, in source pixels, to apply before drawing a
// source of the given size into target: sigma = 1 / (factor · scale) per axis.
func DeriveSigma(source types.Dimensions, target types.Rect, factor float64) (types.Sigma, error) {
	if err := ValidateFactor(factor); err != nil {
		return types.Sigma{}, err
	}
	if !source.Valid() {
		return types.Sigma{}, fmt.Errorf("invalid source size %s", source)
	}
	if !target.Size().Valid() {
		return types.Sigma{}, fmt.Errorf("invalid target size %s", target.Size())
	}
	sx, sy := Scale(source, target)
	return types.Sigma{X: 1 / (factor * sx), Y: 1 / (factor * sy)}, nil
}

// NeedsFilter reports whether drawing source into target shrinks either axis
func NeedsFilter(source types.Dimensions, target types.Rect) bool {
	sx, sy := Scale(source, target)
	return sx < 1 || sy < 1
}

// Filter derives a kernel for each source and runs it through a convolution
// backend
type Filter struct {
	Backend convolution.Backend
	Formula kernel.Formula
	Factor  float64
}

// New returns a filter with the default factor and the joint formula
func New(backend convolution.Backend) *Filter {
	return &Filter{
		Backend: backend,
		Formula: kernel.FormulaJoint,
		Factor:  DefaultFilterFactor,
	}
}

// Apply returns a blurred copy of src sized like src, ready to be drawn into
// target, and the sigma used. When neither axis is downscaled it returns a
// nil raster and a zero sigma: the source can be drawn as is.
func (f *Filter) Apply(ctx context.Context, src image.Image, target types.Rect) (*image.RGBA, types.Sigma, error) {
	if f.Backend == nil {
		return nil, types.Sigma{}, &convolution.PipelineInitError{Backend: "none", Reason: "no convolution backend configured"}
	}
	source := types.DimensionsOf(src)
	sigma, err := DeriveSigma(source, target, f.Factor)
	if err != nil {
		return nil, types.Sigma{}, err
	}
	if !NeedsFilter(source, target) {
		return nil, types.Sigma{}, nil
	}

	// Reject oversized kernels before allocating them.
	if limit := convolution.MaxKernelTaps(f.Backend); limit > 0 {
		if taps := kernel.TapsFor(sigma); taps > float64(limit) {
			return nil, types.Sigma{}, fmt.Errorf("pre-filter convolution with sigma %s: %w", sigma, &convolution.PipelineInitError{
				Backend: f.Backend.Name(),
				Reason:  fmt.Sprintf("kernel of %.0f taps exceeds %d taps", taps, limit),
			})
		}
	}

	k, err := kernel.SynthesizeWith(sigma, f.Formula)
	if err != nil {
		return nil, types.Sigma{}, err
	}
	out, err := f.Backend.Convolve(ctx, src, k)
	if err != nil {
		return nil, types.Sigma{}, fmt.Errorf("pre-filter convolution with sigma %s: %w", sigma, err)
	}
	return out, sigma, nil
}
