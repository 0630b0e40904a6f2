package analyzer

import (
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"github.com/menta2k/batch-resizer/pkg/types"
)

// ImageAnalyzer inspects decoded sources before they enter the resize pipeline
type ImageAnalyzer struct {
	config Config
}

// Config holds configuration for the image analyzer
type Config struct {
	SupportedFormats []string
	MinImageSize     int
}

// DefaultFormats lists the decoders registered by the processing package
var DefaultFormats = []string{"jpeg", "png", "webp", "gif"}

// New creates a new ImageAnalyzer with default configuration
func New() *ImageAnalyzer {
	return &ImageAnalyzer{
		config: Config{
			SupportedFormats: DefaultFormats,
			MinImageSize:     1,
		},
	}
}

// NewWithConfig creates a new ImageAnalyzer with custom configuration
func NewWithConfig(config Config) *ImageAnalyzer {
	if len(config.SupportedFormats) == 0 {
		config.SupportedFormats = DefaultFormats
	}
	if config.MinImageSize < 1 {
		config.MinImageSize = 1
	}
	return &ImageAnalyzer{config: config}
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int
	Height      int
	AspectRatio float64
	Area        int
	Format      string
}

// Dimensions returns the size as fractional dimensions for placement math
func (i ImageInfo) Dimensions() types.Dimensions {
	return types.Dimensions{Width: float64(i.Width), Height: float64(i.Height)}
}

func (i ImageInfo) String() string {
	if i.Format == "" {
		return fmt.Sprintf("%dx%d", i.Width, i.Height)
	}
	return fmt.Sprintf("%dx%d %s", i.Width, i.Height, i.Format)
}

// GetImageInfo returns basic information about an image
func (a *ImageAnalyzer) GetImageInfo(img image.Image) ImageInfo {
	bounds := img.Bounds()
	return newInfo(bounds.Dx(), bounds.Dy(), "")
}

// Probe reads only the header of an encoded image
func (a *ImageAnalyzer) Probe(r io.Reader) (ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to read image header: %w", err)
	}
	if !a.IsFormatSupported(format) {
		return ImageInfo{}, fmt.Errorf("unsupported image format: %s", format)
	}
	return newInfo(cfg.Width, cfg.Height, format), nil
}

// ProbeFile reads the header of the image stored at path
func (a *ImageAnalyzer) ProbeFile(path string) (ImageInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to open image file: %w", err)
	}
	defer f.Close()
	return a.Probe(f)
}

// IsFormatSupported reports whether a decoder format name is accepted
func (a *ImageAnalyzer) IsFormatSupported(format string) bool {
	if format == "jpg" {
		format = "jpeg"
	}
	for _, supported := range a.config.SupportedFormats {
		if supported == "jpg" {
			supported = "jpeg"
		}
		if strings.EqualFold(format, supported) {
			return true
		}
	}
	return false
}

// TooSmallError reports a source below the configured minimum size
type TooSmallError struct {
	Width, Height int
	Min           int
}

func (e *TooSmallError) Error() string {
	return fmt.Sprintf("image too small: %dx%d (minimum: %d)", e.Width, e.Height, e.Min)
}

// ValidateImage checks if an image meets minimum requirements
func (a *ImageAnalyzer) ValidateImage(img image.Image) error {
	if img == nil {
		return fmt.Errorf("no image")
	}
	bounds := img.Bounds()
	if bounds.Dx() < a.config.MinImageSize || bounds.Dy() < a.config.MinImageSize {
		return &TooSmallError{Width: bounds.Dx(), Height: bounds.Dy(), Min: a.config.MinImageSize}
	}
	return nil
}

func newInfo(width, height int, format string) ImageInfo {
	info := ImageInfo{Width: width, Height: height, Area: width * height, Format: format}
	if height > 0 {
		info.AspectRatio = float64(width) / float64(height)
	}
	return info
}
