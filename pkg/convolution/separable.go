package convolution

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync/atomic"

	"github.com/anthonynsimon/bild/parallel"

	"github.com/menta2k/batch-resizer/pkg/kernel"
)

// Separable convolves with two 1D passes built from the center row and column
// of the kernel. Each axis is quantized on its own, so results can differ
// from the full 2D pass by a level or two on large kernels, in exchange for
// rx+ry taps per pixel instead of rx·ry.
type Separable struct {
	opts options
}

// NewSeparable creates a two-pass backend
func NewSeparable(opts ...Option) *Separable {
	return &Separable{opts: buildOptions(opts)}
}

// Name returns "separable"
func (s *Separable) Name() string {
	return SeparableBackend
}

func (s *Separable) kernelLimit() int {
	return s.opts.maxKernelTaps
}

// Convolve runs a horizontal then a vertical pass over img
func (s *Separable) Convolve(ctx context.Context, img image.Image, k *kernel.Kernel) (*image.RGBA, error) {
	if k == nil || k.Taps() == 0 {
		return nil, &PipelineInitError{Backend: s.Name(), Reason: "empty kernel"}
	}
	if k.Taps() > s.opts.maxKernelTaps {
		return nil, &PipelineInitError{
			Backend: s.Name(),
			Reason:  fmt.Sprintf("kernel %dx%d exceeds %d taps", k.Width(), k.Height(), s.opts.maxKernelTaps),
		}
	}
	if k.Width() > s.opts.maxTextureSize || k.Height() > s.opts.maxTextureSize {
		return nil, &PipelineInitError{
			Backend: s.Name(),
			Reason:  fmt.Sprintf("kernel %dx%d exceeds max texture size %d", k.Width(), k.Height(), s.opts.maxTextureSize),
		}
	}

	row, col := k.Axes()
	wx, sumX := axisWeights(row)
	wy, sumY := axisWeights(col)

	tex, err := uploadTexture(s.Name(), img, k.RadiusX, k.RadiusY, s.opts.maxTextureSize)
	if err != nil {
		return nil, err
	}

	// Horizontal pass keeps the vertical border rows so the second pass can
	// read them.
	rows := tex.height + 2*tex.padY
	tmp := make([]float32, tex.width*rows*4)
	var cancelled atomic.Bool

	parallel.Line(rows, func(start, end int) {
		for ty := start; ty < end; ty++ {
			if cancelled.Load() {
				return
			}
			if ctx.Err() != nil {
				cancelled.Store(true)
				return
			}
			line := tex.pix[ty*tex.stride:]
			out := tmp[ty*tex.width*4:]
			for x := 0; x < tex.width; x++ {
				var r, g, b, a float32
				for i, w := range wx {
					o := (x + i) * 4
					r += float32(line[o+0]) * w
					g += float32(line[o+1]) * w
					b += float32(line[o+2]) * w
					a += float32(line[o+3]) * w
				}
				o := x * 4
				out[o+0] = r / sumX
				out[o+1] = g / sumX
				out[o+2] = b / sumX
				out[o+3] = a / sumX
			}
		}
	})
	if cancelled.Load() {
		return nil, ctx.Err()
	}

	dst := image.NewRGBA(image.Rect(0, 0, tex.width, tex.height))
	rowLen := tex.width * 4
	parallel.Line(tex.height, func(start, end int) {
		for y := start; y < end; y++ {
			if cancelled.Load() {
				return
			}
			if ctx.Err() != nil {
				cancelled.Store(true)
				return
			}
			out := dst.Pix[y*dst.Stride:]
			for x := 0; x < tex.width; x++ {
				var r, g, b, a float32
				base := y*rowLen + x*4
				for i, w := range wy {
					s := tmp[base+i*rowLen:]
					r += s[0] * w
					g += s[1] * w
					b += s[2] * w
					a += s[3] * w
				}
				o := x * 4
				out[o+0] = toByte(r / sumY)
				out[o+1] = toByte(g / sumY)
				out[o+2] = toByte(b / sumY)
				out[o+3] = toByte(a / sumY)
			}
		}
	})
	if cancelled.Load() {
		return nil, ctx.Err()
	}
	return dst, nil
}

// axisWeights quantizes relative weights and returns them with their sum
func axisWeights(rel []float64) ([]float32, float32) {
	q := kernel.QuantizeAxis(rel)
	out := make([]float32, len(q))
	var sum float32
	for i, v := range q {
		out[i] = float32(v)
		sum += float32(v)
	}
	return out, sum
}

func toByte(v float32) uint8 {
	v = float32(math.Round(float64(v)))
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
