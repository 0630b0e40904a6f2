// Package pipeline runs the per-item resize pipeline over a batch of sources:
// load, validate, fit, pre-filter and composite.
package pipeline

import (
	"fmt"
	"image/color"

	"github.com/menta2k/batch-resizer/pkg/composite"
	"github.com/menta2k/batch-resizer/pkg/fit"
	"github.com/menta2k/batch-resizer/pkg/kernel"
	"github.com/menta2k/batch-resizer/pkg/prefilter"
	"github.com/menta2k/batch-resizer/pkg/types"
)

// Params is the immutable configuration of one run. Every change of Params
// requires a fresh run; nothing is reused across runs.
type Params struct {
	Dest         types.Dimensions
	Mode         fit.FitMode
	PreFilter    bool
	FilterFactor float64
	Formula      kernel.Formula
	Interpolator string
	Background   color.Color
}

// DefaultParams returns a 905x500 cover resize with the default pre-filter
func DefaultParams() Params {
	return Params{
		Dest:         types.Dimensions{Width: 905, Height: 500},
		Mode:         fit.Cover,
		PreFilter:    true,
		FilterFactor: prefilter.DefaultFilterFactor,
		Formula:      kernel.FormulaJoint,
		Interpolator: composite.DefaultInterpolator,
	}
}

// Validate reports input errors. They are caller bugs and abort a run before
// any item is touched.
func (p Params) Validate() error {
	if !p.Dest.Valid() {
		return &fit.InvalidDimensionsError{What: "destination", Value: p.Dest.String()}
	}
	if _, err := p.Mode.MarshalText(); err != nil {
		return err
	}
	if p.PreFilter {
		if err := prefilter.ValidateFactor(p.FilterFactor); err != nil {
			return err
		}
	}
	if p.Formula != kernel.FormulaJoint && p.Formula != kernel.FormulaSeparable {
		return fmt.Errorf("invalid kernel formula %d", int(p.Formula))
	}
	if _, err := composite.ParseInterpolator(p.Interpolator); err != nil {
		return err
	}
	return nil
}

func (p Params) compositeOptions() []composite.Option {
	interp, _ := composite.ParseInterpolator(p.Interpolator)
	opts := []composite.Option{composite.WithInterpolator(interp)}
	if p.Background != nil {
		opts = append(opts, composite.WithBackground(p.Background))
	}
	return opts
}
