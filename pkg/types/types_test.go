package types

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDimensionsOf(t *testing.T) {
	img := image.NewRGBA(image.Rect(10, 20, 410, 320))
	d := DimensionsOf(img)
	assert.Equal(t, Dimensions{Width: 400, Height: 300}, d)
	assert.InDelta(t, 4.0/3.0, d.AspectRatio(), 1e-12)
}

func TestDimensionsValid(t *testing.T) {
	tests := []struct {
		dims  Dimensions
		valid bool
	}{
		{Dimensions{400, 300}, true},
		{Dimensions{0.5, 0.5}, true},
		{Dimensions{0, 300}, false},
		{Dimensions{400, -1}, false},
		{Dimensions{math.NaN(), 1}, false},
		{Dimensions{math.Inf(1), 1}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, tt.dims.Valid(), "%v", tt.dims)
	}
}

func TestDimensionsSize(t *testing.T) {
	assert.Equal(t, image.Pt(401, 300), Dimensions{400.2, 300}.Size())
}

func TestRectBounds(t *testing.T) {
	r := Rect{Left: -200, Top: 0, Width: 800, Height: 400}
	assert.Equal(t, image.Rect(-200, 0, 600, 400), r.Bounds())
	assert.True(t, r.IsIntegral())

	frac := Rect{Left: 0.5, Top: 33.3, Width: 10, Height: 10}
	assert.Equal(t, image.Rect(0, 33, 11, 44), frac.Bounds())
	assert.False(t, frac.IsIntegral())
}

func TestRectCenter(t *testing.T) {
	r := Rect{Left: 0, Top: 100, Width: 400, Height: 200}
	assert.Equal(t, 200.0, r.CenterX())
	assert.Equal(t, 200.0, r.CenterY())
}

func TestSigma(t *testing.T) {
	s := Isotropic(2)
	assert.True(t, s.Positive())
	assert.False(t, s.IsZero())
	assert.Equal(t, Sigma{X: 1, Y: 1}, s.Scale(0.5))
	assert.Equal(t, "2", s.String())
	assert.Equal(t, "(1,2)", Sigma{X: 1, Y: 2}.String())

	assert.True(t, Sigma{}.IsZero())
	assert.False(t, Sigma{X: 1}.Positive())
}
