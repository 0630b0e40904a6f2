// Package composite draws a (possibly pre-filtered) source into a fresh
// destination canvas at its fitted placement.
package composite

import (
	"fmt"
	"image"
	"image/color"
	"sort"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/menta2k/batch-resizer/pkg/types"
)

// Interpolator names accepted by ParseInterpolator. Nearest and
// ApproxBiLinear read at most a 2x2 neighbourhood at any scale, so the only
// low-pass applied to a downscale is the pre-filter. BiLinear and CatmullRom
// widen their support with the scale factor and blur on top of it.
const (
	Nearest        = "nearest"
	ApproxBiLinear = "approx-bilinear"
	BiLinear       = "bilinear"
	CatmullRom     = "catmull-rom"
)

// DefaultInterpolator is used when no interpolator is configured
const DefaultInterpolator = ApproxBiLinear

var interpolators = map[string]draw.Interpolator{
	Nearest:        draw.NearestNeighbor,
	ApproxBiLinear: draw.ApproxBiLinear,
	BiLinear:       draw.BiLinear,
	CatmullRom:     draw.CatmullRom,
}

// Interpolators returns the supported interpolator names, sorted
func Interpolators() []string {
	names := make([]string, 0, len(interpolators))
	for name := range interpolators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseInterpolator looks up an interpolator by name. The empty name selects
// DefaultInterpolator.
func ParseInterpolator(name string) (draw.Interpolator, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultInterpolator
	}
	interp, ok := interpolators[name]
	if !ok {
		return nil, fmt.Errorf("unknown interpolator %q (supported: %s)", name, strings.Join(Interpolators(), ", "))
	}
	return interp, nil
}

type options struct {
	interp     draw.Interpolator
	background color.Color
}

// Option configures Composite
type Option func(*options)

// WithInterpolator sets the resampling interpolator
func WithInterpolator(interp draw.Interpolator) Option {
	return func(o *options) {
		if interp != nil {
			o.interp = interp
		}
	}
}

// WithBackground fills the canvas with c before the content is drawn
func WithBackground(c color.Color) Option {
	return func(o *options) {
		o.background = c
	}
}

// Composite returns a canvas of size dest with content drawn into placement.
// Pixels outside placement stay transparent unless a background is set.
func Composite(dest types.Dimensions, content image.Image, placement types.Rect, opts ...Option) (*image.RGBA, error) {
	if !dest.Valid() {
		return nil, fmt.Errorf("invalid destination size %s", dest)
	}
	if content == nil || content.Bounds().Empty() {
		return nil, fmt.Errorf("empty content")
	}
	if !placement.Size().Valid() {
		return nil, fmt.Errorf("invalid placement %s", placement)
	}

	o := options{interp: interpolators[DefaultInterpolator]}
	for _, opt := range opts {
		opt(&o)
	}

	canvas := image.NewRGBA(image.Rectangle{Max: dest.Size()})
	if o.background != nil {
		draw.Draw(canvas, canvas.Bounds(), image.NewUniform(o.background), image.Point{}, draw.Src)
	}

	sr := content.Bounds()
	srcW, srcH := float64(sr.Dx()), float64(sr.Dy())

	switch {
	case placement.IsIntegral() && placement.Width == srcW && placement.Height == srcH:
		draw.Draw(canvas, placement.Bounds(), content, sr.Min, draw.Over)
	case placement.IsIntegral():
		o.interp.Scale(canvas, placement.Bounds(), content, sr, draw.Over, nil)
	default:
		// Maps source pixel space onto canvas space, including the source
		// origin so offset sub-images land where expected.
		sx := placement.Width / srcW
		sy := placement.Height / srcH
		s2d := f64.Aff3{
			sx, 0, placement.Left - sx*float64(sr.Min.X),
			0, sy, placement.Top - sy*float64(sr.Min.Y),
		}
		o.interp.Transform(canvas, s2d, content, sr, draw.Over, nil)
	}
	return canvas, nil
}
