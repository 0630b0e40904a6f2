package processing

import (
	"bufio"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/ollama/ollama/model/imageproc"
)

// Format is an output encoding
type Format string

// Supported output formats
const (
	FormatJPEG Format = "jpg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
)

// ParseFormat maps a name or file extension to a Format
func ParseFormat(name string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), ".") {
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "png", "":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", name)
	}
}

// Extension returns the file extension including the dot
func (f Format) Extension() string {
	return "." + string(f)
}

// Encoder writes output rasters in a single format
type Encoder struct {
	Format   Format
	Quality  int
	Lossless bool
}

// NewEncoder creates an encoder for format at the given quality (1-100)
func NewEncoder(format Format, quality int, lossless bool) *Encoder {
	if quality < 1 || quality > 100 {
		quality = 90
	}
	return &Encoder{Format: format, Quality: quality, Lossless: lossless}
}

// Encode writes img to w
func (e *Encoder) Encode(w io.Writer, img image.Image) error {
	switch e.Format {
	case FormatWebP:
		opts := &webp.Options{Lossless: e.Lossless, Quality: float32(e.Quality)}
		if err := webp.Encode(w, img, opts); err != nil {
			return fmt.Errorf("failed to encode webp: %w", err)
		}
	case FormatPNG:
		if err := imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
			return fmt.Errorf("failed to encode png: %w", err)
		}
	case FormatJPEG:
		// JPEG has no alpha: transparent letterbox areas become white
		// instead of black.
		flat := imageproc.Composite(img)
		if err := imaging.Encode(w, flat, imaging.JPEG, imaging.JPEGQuality(e.Quality)); err != nil {
			return fmt.Errorf("failed to encode jpeg: %w", err)
		}
	default:
		return fmt.Errorf("unsupported output format: %s", e.Format)
	}
	return nil
}

// Save writes img to path, creating parent directories as needed
func (e *Encoder) Save(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	bw := bufio.NewWriter(f)
	if err := e.Encode(bw, img); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
