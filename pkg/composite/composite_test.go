package composite

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/draw"

	"github.com/menta2k/batch-resizer/pkg/fit"
	"github.com/menta2k/batch-resizer/pkg/types"
)

// createTestImage creates an opaque image with a distinct color per pixel
func createTestImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{uint8(x * 7), uint8(y * 11), uint8((x + y) * 3), 255})
		}
	}
	return img
}

func uniform(width, height int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func TestCompositeExactIdentity(t *testing.T) {
	src := createTestImage(20, 10)
	dest := types.DimensionsOf(src)

	placement, err := fit.ComputePlacementFor(src, dest, fit.Exact)
	require.NoError(t, err)

	out, err := Composite(dest, src, placement)
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), out.Bounds())
	assert.Equal(t, src.Pix, out.Pix)
}

func TestCompositeLeavesOutsideTransparent(t *testing.T) {
	src := uniform(40, 20, color.RGBA{200, 10, 10, 255})
	dest := types.Dimensions{Width: 20, Height: 20}

	placement, err := fit.ComputePlacementFor(src, dest, fit.Contain)
	require.NoError(t, err)
	assert.Equal(t, types.Rect{Left: 0, Top: 5, Width: 20, Height: 10}, placement)

	out, err := Composite(dest, src, placement, WithInterpolator(draw.NearestNeighbor))
	require.NoError(t, err)
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			c := out.RGBAAt(x, y)
			if y < 5 || y >= 15 {
				assert.Equal(t, color.RGBA{}, c, "(%d,%d)", x, y)
			} else {
				assert.Equal(t, color.RGBA{200, 10, 10, 255}, c, "(%d,%d)", x, y)
			}
		}
	}
}

func TestCompositeBackground(t *testing.T) {
	src := uniform(10, 30, color.RGBA{0, 0, 255, 255})
	dest := types.Dimensions{Width: 30, Height: 30}
	placement, err := fit.ComputePlacementFor(src, dest, fit.Contain)
	require.NoError(t, err)

	out, err := Composite(dest, src, placement, WithBackground(color.White))
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, out.RGBAAt(0, 15))
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, out.RGBAAt(15, 15))
}

func TestCompositeCoverCrops(t *testing.T) {
	src := uniform(80, 40, color.RGBA{10, 200, 10, 255})
	dest := types.Dimensions{Width: 40, Height: 40}
	placement, err := fit.ComputePlacementFor(src, dest, fit.Cover)
	require.NoError(t, err)

	out, err := Composite(dest, src, placement)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 40), out.Bounds())
	for _, p := range []image.Point{{0, 0}, {39, 0}, {20, 20}, {39, 39}} {
		assert.Equal(t, uint8(255), out.RGBAAt(p.X, p.Y).A, "%v", p)
	}
}

func TestCompositeFractionalPlacement(t *testing.T) {
	src := uniform(3, 2, color.RGBA{50, 60, 70, 255})
	dest := types.Dimensions{Width: 10, Height: 5}
	placement, err := fit.ComputePlacementFor(src, dest, fit.Contain)
	require.NoError(t, err)
	require.False(t, placement.IsIntegral())

	out, err := Composite(dest, src, placement, WithInterpolator(draw.NearestNeighbor))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 5), out.Bounds())
	assert.Equal(t, color.RGBA{}, out.RGBAAt(0, 2))
	assert.Equal(t, color.RGBA{50, 60, 70, 255}, out.RGBAAt(5, 2))
}

func TestCompositeOffsetSource(t *testing.T) {
	base := createTestImage(30, 30)
	sub := base.SubImage(image.Rect(10, 10, 20, 20))
	dest := types.Dimensions{Width: 10, Height: 10}

	out, err := Composite(dest, sub, types.Rect{Width: 10, Height: 10})
	require.NoError(t, err)
	assert.Equal(t, base.RGBAAt(10, 10), out.RGBAAt(0, 0))
	assert.Equal(t, base.RGBAAt(19, 19), out.RGBAAt(9, 9))
}

func TestCompositeInvalidInput(t *testing.T) {
	src := createTestImage(4, 4)
	_, err := Composite(types.Dimensions{}, src, types.Rect{Width: 4, Height: 4})
	assert.Error(t, err)
	_, err = Composite(types.Dimensions{Width: 4, Height: 4}, nil, types.Rect{Width: 4, Height: 4})
	assert.Error(t, err)
	_, err = Composite(types.Dimensions{Width: 4, Height: 4}, src, types.Rect{})
	assert.Error(t, err)
}

// blockStripes is black with a 2px white block every 8 columns, aligned with
// the sample pairs of a 4x bilinear downscale.
func blockStripes(width, height int) *image.RGBA {
	img := uniform(width, height, color.RGBA{0, 0, 0, 255})
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x%8 == 1 || x%8 == 2 {
				img.SetRGBA(x, y, color.RGBA{255, 255, 255, 255})
			}
		}
	}
	return img
}

func TestCompositeDownscaleDoesNotBlur(t *testing.T) {
	src := blockStripes(64, 64)
	dest := types.Dimensions{Width: 16, Height: 16}
	placement := types.Rect{Width: 16, Height: 16}

	for name, opts := range map[string][]Option{
		"default": nil,
		Nearest:   {WithInterpolator(draw.NearestNeighbor)},
	} {
		out, err := Composite(dest, src, placement, opts...)
		require.NoError(t, err, name)
		for x := 0; x < 16; x++ {
			want := uint8(0)
			if x%2 == 0 {
				want = 255
			}
			assert.Equal(t, want, out.RGBAAt(x, 8).R, "%s: column %d", name, x)
		}
	}
}

func TestCompositeWideKernelsBlur(t *testing.T) {
	src := blockStripes(64, 64)
	dest := types.Dimensions{Width: 16, Height: 16}

	out, err := Composite(dest, src, types.Rect{Width: 16, Height: 16}, WithInterpolator(draw.CatmullRom))
	require.NoError(t, err)
	// The widened support averages the block with its black surroundings.
	assert.Less(t, out.RGBAAt(8, 8).R, uint8(200))
	assert.Greater(t, out.RGBAAt(8, 8).R, uint8(20))
}

func TestParseInterpolator(t *testing.T) {
	for _, name := range Interpolators() {
		interp, err := ParseInterpolator(name)
		require.NoError(t, err, name)
		assert.NotNil(t, interp)
	}

	interp, err := ParseInterpolator("")
	require.NoError(t, err)
	assert.Equal(t, draw.Interpolator(draw.ApproxBiLinear), interp)

	_, err = ParseInterpolator(" BiLinear ")
	assert.NoError(t, err)

	_, err = ParseInterpolator("lanczos")
	assert.Error(t, err)
}

func BenchmarkComposite(b *testing.B) {
	src := createTestImage(1200, 800)
	dest := types.Dimensions{Width: 905, Height: 500}
	placement, _ := fit.ComputePlacementFor(src, dest, fit.Cover)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = Composite(dest, src, placement)
	}
}
