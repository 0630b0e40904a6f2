// Package archive bundles encoded output images into a zip file.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/menta2k/batch-resizer/pkg/processing"
)

// Entry is one image to store in the archive
type Entry struct {
	Name  string
	Image image.Image
}

// Writer adds encoded images to a zip stream. It is safe for concurrent use;
// entries are written one at a time.
type Writer struct {
	mu      sync.Mutex
	zw      *zip.Writer
	encoder *processing.Encoder
	names   map[string]int
	modTime time.Time
}

// NewWriter creates a Writer that encodes every entry with encoder
func NewWriter(w io.Writer, encoder *processing.Encoder) *Writer {
	return &Writer{
		zw:      zip.NewWriter(w),
		encoder: encoder,
		names:   make(map[string]int),
		modTime: time.Now(),
	}
}

// Add encodes img and stores it under name. The format extension replaces any
// extension on name, and duplicate names get a numeric suffix.
func (w *Writer) Add(name string, img image.Image) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	stored := w.uniqueName(name)
	// Encoded images are already compressed.
	fw, err := w.zw.CreateHeader(&zip.FileHeader{
		Name:     stored,
		Method:   zip.Store,
		Modified: w.modTime,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create archive entry %s: %w", stored, err)
	}
	if err := w.encoder.Encode(fw, img); err != nil {
		return "", fmt.Errorf("failed to write archive entry %s: %w", stored, err)
	}
	return stored, nil
}

// Close finishes the zip stream. It does not close the underlying writer.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.zw.Close()
}

func (w *Writer) uniqueName(name string) string {
	base := path.Base(filepath.ToSlash(name))
	base = strings.TrimSuffix(base, path.Ext(base))
	if base == "" || base == "." || base == "/" {
		base = "image"
	}
	ext := w.encoder.Format.Extension()

	candidate := base + ext
	for {
		n := w.names[candidate]
		w.names[candidate] = n + 1
		if n == 0 {
			return candidate
		}
		candidate = base + "_" + strconv.Itoa(n) + ext
	}
}

// Bundle writes entries into a zip file at dst and returns the stored names in
// entry order. The archive is built next to dst and renamed into place, so dst
// is either the previous archive or the complete new one. ctx is checked
// between entries.
func Bundle(ctx context.Context, dst string, encoder *processing.Encoder, entries []Entry) ([]string, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	tmp := f.Name()
	abort := func(err error) ([]string, error) {
		f.Close()
		os.Remove(tmp)
		return nil, err
	}

	w := NewWriter(f, encoder)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}
		stored, err := w.Add(e.Name, e.Image)
		if err != nil {
			return abort(err)
		}
		names = append(names, stored)
	}
	if err := w.Close(); err != nil {
		return abort(fmt.Errorf("failed to finish archive: %w", err))
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("failed to move archive into place: %w", err)
	}
	return names, nil
}
