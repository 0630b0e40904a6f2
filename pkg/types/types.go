package types

import (
	"fmt"
	"image"
	"math"
)

// Dimensions is a width/height pair in pixels. Fractional values are allowed
// so that placement math never rounds before it has to.
type Dimensions struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// DimensionsOf returns the pixel dimensions of an image
func DimensionsOf(img image.Image) Dimensions {
	b := img.Bounds()
	return Dimensions{Width: float64(b.Dx()), Height: float64(b.Dy())}
}

// AspectRatio returns width / height
func (d Dimensions) AspectRatio() float64 {
	return d.Width / d.Height
}

// Valid reports whether both sides are finite and strictly positive
func (d Dimensions) Valid() bool {
	return positive(d.Width) && positive(d.Height)
}

// Size returns the integer raster size that fully covers the dimensions
func (d Dimensions) Size() image.Point {
	return image.Pt(int(math.Ceil(d.Width)), int(math.Ceil(d.Height)))
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%gx%g", d.Width, d.Height)
}

// Rect is a placement region in destination canvas coordinates. Left and Top
// are negative when the region overflows the canvas.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CenterX returns the horizontal center of the rect
func (r Rect) CenterX() float64 {
	return r.Left + r.Width/2
}

// CenterY returns the vertical center of the rect
func (r Rect) CenterY() float64 {
	return r.Top + r.Height/2
}

// Size returns the width and height of the rect
func (r Rect) Size() Dimensions {
	return Dimensions{Width: r.Width, Height: r.Height}
}

// Bounds returns the smallest integer rectangle covering r
func (r Rect) Bounds() image.Rectangle {
	return image.Rect(
		int(math.Floor(r.Left)),
		int(math.Floor(r.Top)),
		int(math.Ceil(r.Left+r.Width)),
		int(math.Ceil(r.Top+r.Height)),
	)
}

// IsIntegral reports whether every field of r is a whole number
func (r Rect) IsIntegral() bool {
	return isWhole(r.Left) && isWhole(r.Top) && isWhole(r.Width) && isWhole(r.Height)
}

func (r Rect) String() string {
	return fmt.Sprintf("%gx%g@%g,%g", r.Width, r.Height, r.Left, r.Top)
}

// Sigma is the standard deviation of a Gaussian blur per axis. The zero value
// means no blur.
type Sigma struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Isotropic returns a sigma with the same value on both axes
func Isotropic(s float64) Sigma {
	return Sigma{X: s, Y: s}
}

// IsZero reports whether sigma disables filtering
func (s Sigma) IsZero() bool {
	return s.X == 0 && s.Y == 0
}

// Positive reports whether both axes are finite and strictly positive
func (s Sigma) Positive() bool {
	return positive(s.X) && positive(s.Y)
}

// Scale multiplies both axes by f
func (s Sigma) Scale(f float64) Sigma {
	return Sigma{X: s.X * f, Y: s.Y * f}
}

func (s Sigma) String() string {
	if s.X == s.Y {
		return fmt.Sprintf("%g", s.X)
	}
	return fmt.Sprintf("(%g,%g)", s.X, s.Y)
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func isWhole(v float64) bool {
	return v == math.Trunc(v) && !math.IsInf(v, 0)
}
