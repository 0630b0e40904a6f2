// Package batchresizer resizes batches of images to a fixed canvas under a
// fit policy, with a Gaussian pre-filter that removes aliasing before any
// downscale.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		batchresizer "github.com/menta2k/batch-resizer"
//	)
//
//	func main() {
//		cfg := batchresizer.DefaultConfig()
//		cfg.Resize.Width, cfg.Resize.Height = 400, 400
//		cfg.Resize.Mode = "contain"
//
//		resizer, err := batchresizer.NewWithConfig(cfg, nil)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		report, err := resizer.ProcessFiles(context.Background(), []string{"photos/"})
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Printf("wrote %d files", len(report.Files))
//	}
//
// Every source goes through the same short pipeline:
//
// 1. Fit (pkg/fit): computes the placement rectangle for cover, contain or exact
// 2. Pre-filter (pkg/prefilter, pkg/kernel, pkg/convolution): blurs the source
// by sigma = 1/(factor·scale) when the placement shrinks it
// 3. Composite (pkg/composite): draws the source into a transparent canvas
//
// Batches run through pkg/pipeline, which processes items in parallel,
// reports a status per item and cancels a run when a newer one starts.
package batchresizer

import (
	"context"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/menta2k/batch-resizer/internal/config"
	"github.com/menta2k/batch-resizer/internal/utils"
	"github.com/menta2k/batch-resizer/pkg/analyzer"
	"github.com/menta2k/batch-resizer/pkg/archive"
	"github.com/menta2k/batch-resizer/pkg/convolution"
	"github.com/menta2k/batch-resizer/pkg/pipeline"
	"github.com/menta2k/batch-resizer/pkg/processing"
)

// Version of the batch resizer library
const Version = "1.0.0"

// Config is the full resizer configuration
type Config = config.Config

// DefaultConfig returns the default configuration: 905x500 cover with the
// pre-filter enabled at factor 4
func DefaultConfig() *Config {
	return config.Default()
}

// LoadConfig reads a JSON or YAML configuration file
func LoadConfig(path string) (*Config, error) {
	return config.LoadFromFile(path)
}

// Resizer provides a high-level interface over the resize pipeline
type Resizer struct {
	cfg      Config
	params   pipeline.Params
	backend  convolution.Backend
	loader   *processing.Loader
	encoder  *processing.Encoder
	analyzer *analyzer.ImageAnalyzer
	session  *pipeline.Session
	logger   logrus.FieldLogger
}

// New creates a Resizer with the default configuration
func New() *Resizer {
	r, err := NewWithConfig(DefaultConfig(), nil)
	if err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return r
}

// NewWithConfig creates a Resizer from cfg. A nil logger discards output.
func NewWithConfig(cfg *Config, logger logrus.FieldLogger) (*Resizer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		quiet := logrus.New()
		quiet.SetOutput(io.Discard)
		logger = quiet
	}

	params, err := cfg.Params()
	if err != nil {
		return nil, err
	}
	backend, err := cfg.Backend()
	if err != nil {
		return nil, err
	}
	encoder, err := cfg.Encoder()
	if err != nil {
		return nil, err
	}

	return &Resizer{
		cfg:      *cfg,
		params:   params,
		backend:  backend,
		loader:   processing.NewLoader(),
		encoder:  encoder,
		analyzer: analyzer.NewWithConfig(analyzer.Config{MinImageSize: cfg.Pipeline.MinImageSize}),
		session: pipeline.NewSession(backend,
			pipeline.WithLogger(logger),
			pipeline.WithConcurrency(cfg.Pipeline.Concurrency),
			pipeline.WithMinImageSize(cfg.Pipeline.MinImageSize),
		),
		logger: logger,
	}, nil
}

// Params returns the pipeline parameters every run uses
func (r *Resizer) Params() pipeline.Params {
	return r.params
}

// Session returns the batch session backing Run
func (r *Resizer) Session() *pipeline.Session {
	return r.session
}

// LoadImage loads an image from a file path or URL
func (r *Resizer) LoadImage(ctx context.Context, source string) (image.Image, error) {
	return r.loader.Load(ctx, source)
}

// GetImageInfo returns basic information about an image
func (r *Resizer) GetImageInfo(img image.Image) analyzer.ImageInfo {
	return r.analyzer.GetImageInfo(img)
}

// ResizeImage runs a single decoded image through the pipeline
func (r *Resizer) ResizeImage(ctx context.Context, img image.Image) (*image.RGBA, error) {
	if err := r.analyzer.ValidateImage(img); err != nil {
		return nil, fmt.Errorf("image validation failed: %w", err)
	}
	it, err := pipeline.ProcessItem(ctx, r.params, r.backend, img)
	if err != nil {
		return nil, err
	}
	return it.Output, nil
}

// Sources turns inputs (paths or URLs) into lazily loaded pipeline sources
func (r *Resizer) Sources(inputs []string) []pipeline.Source {
	sources := make([]pipeline.Source, len(inputs))
	for i, in := range inputs {
		in := in
		sources[i] = pipeline.Source{
			Name: in,
			Load: func(ctx context.Context) (image.Image, error) {
				return r.loader.Load(ctx, in)
			},
		}
	}
	return sources
}

// Run resizes inputs without writing anything. A run in flight on the same
// Resizer is cancelled first.
func (r *Resizer) Run(ctx context.Context, inputs []string) (*pipeline.Result, error) {
	return r.session.Run(ctx, r.params, r.Sources(inputs))
}

// Report describes a processed and exported batch
type Report struct {
	Result *pipeline.Result
	// Files are the written output paths, or the archive entry names when
	// exporting to an archive.
	Files   []string
	Archive string
}

// ProcessFiles expands files, directories and URLs, resizes them all and
// exports the successful outputs
func (r *Resizer) ProcessFiles(ctx context.Context, inputs []string) (*Report, error) {
	expanded, err := utils.ExpandInputs(inputs)
	if err != nil {
		return nil, err
	}
	if len(expanded) == 0 {
		return nil, fmt.Errorf("no images found in %s", strings.Join(inputs, ", "))
	}

	result, err := r.Run(ctx, expanded)
	if err != nil {
		return &Report{Result: result}, err
	}

	files, err := r.Export(ctx, result)
	report := &Report{Result: result, Files: files}
	if r.cfg.Output.Archive != "" {
		report.Archive = r.cfg.Output.Archive
	}
	return report, err
}

// Export writes every successful item either as loose files in the output
// directory or into the configured archive. It stops at the first item after
// ctx is done, so a superseded run does not keep writing.
func (r *Resizer) Export(ctx context.Context, result *pipeline.Result) ([]string, error) {
	out := r.cfg.Output
	ext := strings.TrimPrefix(r.encoder.Format.Extension(), ".")
	used := make(map[string]int)

	var entries []archive.Entry
	var written []string
	for _, it := range result.Succeeded() {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		path := uniquePath(used, utils.GenerateOutputFilename(it.Name, out.OutputDir, out.Prefix, out.Suffix, ext))

		if out.Archive != "" {
			entries = append(entries, archive.Entry{Name: filepath.Base(path), Image: it.Output})
			continue
		}
		if err := r.encoder.Save(it.Output, path); err != nil {
			return written, fmt.Errorf("failed to save %s: %w", it.Name, err)
		}
		r.logger.WithFields(logrus.Fields{"input": it.Name, "output": path}).Debug("wrote output")
		written = append(written, path)
	}

	if out.Archive == "" {
		return written, nil
	}
	names, err := archive.Bundle(ctx, out.Archive, r.encoder, entries)
	if err != nil {
		return nil, err
	}
	r.logger.WithFields(logrus.Fields{"archive": out.Archive, "entries": len(names)}).Info("wrote archive")
	return names, nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}

func uniquePath(used map[string]int, path string) string {
	n := used[path]
	used[path] = n + 1
	if n == 0 {
		return path
	}
	ext := filepath.Ext(path)
	return uniquePath(used, strings.TrimSuffix(path, ext)+"_"+strconv.Itoa(n)+ext)
}
