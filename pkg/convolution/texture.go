package convolution

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/anthonynsimon/bild/clone"
)

// texture is a source image uploaded with a clamp-to-edge border wide enough
// for every tap of the kernel, so the pass never needs bounds checks.
type texture struct {
	pix    []uint8
	stride int

	// width and height of the unpadded source
	width  int
	height int

	padX int
	padY int
}

// uploadTexture copies img into a zero-origin RGBA and extends its edges by
// padX/padY pixels.
func uploadTexture(backend string, img image.Image, padX, padY, maxSize int) (*texture, error) {
	if img == nil {
		return nil, &PipelineInitError{Backend: backend, Reason: "nil source image"}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, &PipelineInitError{Backend: backend, Reason: fmt.Sprintf("empty source image %dx%d", w, h)}
	}
	if w > maxSize || h > maxSize {
		return nil, &PipelineInitError{
			Backend: backend,
			Reason:  fmt.Sprintf("source %dx%d exceeds max texture size %d", w, h, maxSize),
		}
	}

	src, ok := img.(*image.RGBA)
	if !ok || b.Min != (image.Point{}) {
		src = image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(src, src.Bounds(), img, b.Min, draw.Src)
	}

	padded := clone.Pad(src, padX, padY, clone.EdgeExtend)
	pb := padded.Bounds()
	if pb.Dx() != w+2*padX || pb.Dy() != h+2*padY {
		return nil, &PipelineInitError{
			Backend: backend,
			Reason:  fmt.Sprintf("texture upload produced %dx%d, want %dx%d", pb.Dx(), pb.Dy(), w+2*padX, h+2*padY),
		}
	}

	return &texture{
		pix:    padded.Pix[padded.PixOffset(pb.Min.X, pb.Min.Y):],
		stride: padded.Stride,
		width:  w,
		height: h,
		padX:   padX,
		padY:   padY,
	}, nil
}

// offset returns the index of the padded texel that maps to source pixel
// (x, y) shifted by (dx, dy).
func (t *texture) offset(x, y, dx, dy int) int {
	return (y+t.padY+dy)*t.stride + (x+t.padX+dx)*4
}
