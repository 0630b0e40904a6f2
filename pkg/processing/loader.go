package processing

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// DefaultUserAgent is sent with every URL download
const DefaultUserAgent = "Batch-Resizer/1.0 (+https://github.com/menta2k/batch-resizer)"

// Loader decodes source images from files, URLs and readers
type Loader struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithHTTPClient replaces the client used for URL downloads
func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *Loader) {
		if c != nil {
			l.client = c
		}
	}
}

// WithUserAgent sets the User-Agent header for downloads
func WithUserAgent(ua string) LoaderOption {
	return func(l *Loader) {
		l.userAgent = ua
	}
}

// WithMaxBytes limits the size of downloaded images. Zero means no limit.
func WithMaxBytes(n int64) LoaderOption {
	return func(l *Loader) {
		l.maxBytes = n
	}
}

// NewLoader creates a loader with a 30 second download timeout
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		client:    &http.Client{Timeout: 30 * time.Second},
		userAgent: DefaultUserAgent,
		maxBytes:  64 << 20,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// IsURL reports whether source should be downloaded rather than opened
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Load loads an image from either a file path or URL
func (l *Loader) Load(ctx context.Context, source string) (image.Image, error) {
	if IsURL(source) {
		return l.LoadURL(ctx, source)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.LoadFile(source)
}

// LoadFile loads an image from a file path with WebP support
func (l *Loader) LoadFile(path string) (image.Image, error) {
	// Registered decoders first, with EXIF orientation applied.
	if img, err := imaging.Open(path, imaging.AutoOrientation(true)); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	img, err := l.decodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// LoadURL downloads and decodes an image
func (l *Loader) LoadURL(ctx context.Context, imageURL string) (image.Image, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", l.userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %s", resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	var body io.Reader = resp.Body
	if l.maxBytes > 0 {
		body = io.LimitReader(resp.Body, l.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if l.maxBytes > 0 && int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", l.maxBytes)
	}

	return l.decodeBytes(data)
}

// Decode reads and decodes an image from r
func (l *Loader) Decode(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return l.decodeBytes(data)
}

// decodeBytes decodes an image from byte data with WebP support
func (l *Loader) decodeBytes(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("image: unknown or unsupported format")
}
