// Package convolution applies a Gaussian kernel to an image.
//
// Every backend follows the same numeric contract: the kernel footprint is
// the one synthesized by package kernel (3-sigma truncation), weights travel
// in their 8-bit quantized form and are renormalized by the sum of the taps
// actually read, and samples outside the image repeat the nearest edge pixel
// (clamp-to-edge). Arithmetic runs on premultiplied RGBA.
package convolution

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/menta2k/batch-resizer/pkg/kernel"
)

// Backend runs one convolution pass
type Backend interface {
	// Name identifies the backend in logs and configuration.
	Name() string

	// Convolve returns a new raster of the same size as img.
	Convolve(ctx context.Context, img image.Image, k *kernel.Kernel) (*image.RGBA, error)
}

// PipelineInitError reports that a backend could not be set up for a pass:
// unknown backend, kernel or texture beyond the device limits, empty input.
type PipelineInitError struct {
	Backend string
	Reason  string
}

func (e *PipelineInitError) Error() string {
	return fmt.Sprintf("pipeline init failed (%s): %s", e.Backend, e.Reason)
}

// Backend names accepted by NewBackend
const (
	ShaderBackend    = "shader"
	SeparableBackend = "separable"
)

// Default device limits
const (
	DefaultMaxTextureSize = 16384
	DefaultMaxKernelTaps  = 1 << 20
)

type options struct {
	maxTextureSize int
	maxKernelTaps  int
}

// Option configures a backend
type Option func(*options)

// WithMaxTextureSize limits the width and height of the uploaded source
func WithMaxTextureSize(n int) Option {
	return func(o *options) { o.maxTextureSize = n }
}

// WithMaxKernelTaps limits the number of cells of an uploaded kernel
func WithMaxKernelTaps(n int) Option {
	return func(o *options) { o.maxKernelTaps = n }
}

func buildOptions(opts []Option) options {
	o := options{
		maxTextureSize: DefaultMaxTextureSize,
		maxKernelTaps:  DefaultMaxKernelTaps,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type kernelLimiter interface {
	kernelLimit() int
}

// MaxKernelTaps returns the largest kernel, in cells, that b accepts, or 0
// when b does not say. Callers check it before synthesizing a kernel.
func MaxKernelTaps(b Backend) int {
	if l, ok := b.(kernelLimiter); ok {
		return l.kernelLimit()
	}
	return 0
}

// NewBackend returns the backend registered under name. An empty name selects
// the shader pipeline.
func NewBackend(name string, opts ...Option) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ShaderBackend, "gpu":
		return NewPipeline(opts...), nil
	case SeparableBackend, "cpu":
		return NewSeparable(opts...), nil
	}
	return nil, &PipelineInitError{Backend: name, Reason: "unsupported backend"}
}

// Serialized wraps b so that at most one pass runs at a time, the way a
// single graphics context would execute them.
func Serialized(b Backend) Backend {
	if s, ok := b.(*serialized); ok {
		return s
	}
	return &serialized{backend: b}
}

type serialized struct {
	mu      sync.Mutex
	backend Backend
}

func (s *serialized) Name() string {
	return s.backend.Name()
}

func (s *serialized) kernelLimit() int {
	return MaxKernelTaps(s.backend)
}

func (s *serialized) Convolve(ctx context.Context, img image.Image, k *kernel.Kernel) (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.backend.Convolve(ctx, img, k)
}
