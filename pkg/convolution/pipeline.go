package convolution

import (
	"context"
	"fmt"
	"image"
	"sync/atomic"

	"github.com/anthonynsimon/bild/parallel"

	"github.com/menta2k/batch-resizer/pkg/kernel"
)

// Pipeline executes a convolution as a single full-screen pass: the kernel is
// compiled into a program of quantized taps, the source is uploaded as a
// clamp-to-edge texture and every output pixel is shaded independently.
type Pipeline struct {
	opts options
}

// NewPipeline creates a shader pipeline
func NewPipeline(opts ...Option) *Pipeline {
	return &Pipeline{opts: buildOptions(opts)}
}

// Name returns "shader"
func (p *Pipeline) Name() string {
	return ShaderBackend
}

// tap is one non-zero kernel cell
type tap struct {
	dx, dy int
	weight uint64
}

// program is a compiled kernel ready for the fragment stage
type program struct {
	taps []tap

	// weightSum is the sum of every quantized cell. With clamp-to-edge
	// sampling every tap reads a texel, so it is also the per-pixel divisor.
	weightSum uint64

	radiusX int
	radiusY int
}

func (p *Pipeline) kernelLimit() int {
	return p.opts.maxKernelTaps
}

func (p *Pipeline) compile(k *kernel.Kernel) (*program, error) {
	if k == nil || k.Taps() == 0 {
		return nil, &PipelineInitError{Backend: p.Name(), Reason: "empty kernel"}
	}
	if limit := p.opts.maxKernelTaps; k.Taps() > limit {
		return nil, &PipelineInitError{
			Backend: p.Name(),
			Reason:  fmt.Sprintf("kernel %dx%d exceeds %d taps", k.Width(), k.Height(), limit),
		}
	}

	q := k.Quantize()
	prog := &program{radiusX: k.RadiusX, radiusY: k.RadiusY}
	w := k.Width()
	for i, v := range q {
		if v == 0 {
			continue
		}
		prog.taps = append(prog.taps, tap{
			dx:     i%w - k.RadiusX,
			dy:     i/w - k.RadiusY,
			weight: uint64(v),
		})
		prog.weightSum += uint64(v)
	}
	if prog.weightSum == 0 {
		return nil, &PipelineInitError{Backend: p.Name(), Reason: "kernel quantizes to zero"}
	}
	return prog, nil
}

// Convolve runs the pass over img
func (p *Pipeline) Convolve(ctx context.Context, img image.Image, k *kernel.Kernel) (*image.RGBA, error) {
	prog, err := p.compile(k)
	if err != nil {
		return nil, err
	}
	tex, err := uploadTexture(p.Name(), img, prog.radiusX, prog.radiusY, p.opts.maxTextureSize)
	if err != nil {
		return nil, err
	}
	return p.draw(ctx, tex, prog)
}

func (p *Pipeline) draw(ctx context.Context, tex *texture, prog *program) (*image.RGBA, error) {
	dst := image.NewRGBA(image.Rect(0, 0, tex.width, tex.height))

	// Tap offsets relative to the texel under the output pixel.
	rel := make([]int, len(prog.taps))
	for i, t := range prog.taps {
		rel[i] = t.dy*tex.stride + t.dx*4
	}
	half := prog.weightSum / 2

	var cancelled atomic.Bool
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
				base := tex.offset(x, y, 0, 0)
				var r, g, b, a uint64
				for i, t := range prog.taps {
					s := tex.pix[base+rel[i]:]
					r += uint64(s[0]) * t.weight
					g += uint64(s[1]) * t.weight
					b += uint64(s[2]) * t.weight
					a += uint64(s[3]) * t.weight
				}
				o := x * 4
				out[o+0] = uint8((r + half) / prog.weightSum)
				out[o+1] = uint8((g + half) / prog.weightSum)
				out[o+2] = uint8((b + half) / prog.weightSum)
				out[o+3] = uint8((a + half) / prog.weightSum)
			}
		}
	})

	if cancelled.Load() {
		return nil, ctx.Err()
	}
	return dst, nil
}
