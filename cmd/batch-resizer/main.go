package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	batchresizer "github.com/menta2k/batch-resizer"
	"github.com/menta2k/batch-resizer/internal/config"
	"github.com/menta2k/batch-resizer/internal/utils"
	"github.com/menta2k/batch-resizer/internal/watch"
	"github.com/menta2k/batch-resizer/pkg/pipeline"
	"github.com/menta2k/batch-resizer/pkg/processing"
)

func main() {
	var in, outDir, configPath string
	var width, height, filter float64
	var mode, formula, backend, interp, ext, zipPath string
	var quality, concurrency int
	var noPrefilter, lossless, watchMode, debug bool

	flag.StringVar(&in, "in", "", "input images: files, directories or URLs, comma separated")
	flag.StringVar(&outDir, "out", "", "output directory")
	flag.StringVar(&configPath, "config", "", "config file (.json or .yaml), default "+config.GetConfigPath())

	flag.Float64Var(&width, "width", 0, "destination width in pixels")
	flag.Float64Var(&height, "height", 0, "destination height in pixels")
	flag.StringVar(&mode, "mode", "", "fit mode: cover|contain|exact")
	flag.Float64Var(&filter, "filter", 0, "pre-filter sharpness factor (> 0, higher is sharper)")
	flag.BoolVar(&noPrefilter, "no-prefilter", false, "disable the anti-aliasing pre-filter")
	flag.StringVar(&formula, "formula", "", "kernel formula: joint|separable")
	flag.StringVar(&backend, "backend", "", "convolution backend: shader|separable")
	flag.StringVar(&interp, "interp", "", "resampling interpolator: approx-bilinear|nearest (no extra blur), bilinear|catmull-rom (blur when downscaling)")

	flag.StringVar(&ext, "ext", "", "output format: jpg|png|webp")
	flag.IntVar(&quality, "quality", 0, "JPEG/WebP output quality (1-100)")
	flag.BoolVar(&lossless, "lossless", false, "WebP output lossless mode")
	flag.StringVar(&zipPath, "zip", "", "bundle outputs into this zip archive instead of -out")

	flag.IntVar(&concurrency, "concurrency", 0, "images processed in parallel, 0 = one per CPU")
	flag.BoolVar(&watchMode, "watch", false, "re-run whenever inputs or the config file change")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")

	flag.Parse()

	logger := initLogger(debug)

	if in == "" {
		logger.Fatalf("usage: %s -in photo.jpg,dir/,https://... [-width 905 -height 500] [-mode cover|contain|exact] [-filter 4] [-out outdir | -zip out.zip] [-ext jpg|png|webp]", filepath.Base(os.Args[0]))
	}
	inputs := strings.Split(in, ",")

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	// Flags override the file; the file overrides the defaults.
	load := func() (*config.Config, error) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return nil, err
		}
		if set["width"] {
			cfg.Resize.Width = width
		}
		if set["height"] {
			cfg.Resize.Height = height
		}
		if set["mode"] {
			cfg.Resize.Mode = mode
		}
		if set["filter"] {
			cfg.Resize.FilterFactor = filter
		}
		if set["no-prefilter"] {
			cfg.Resize.PreFilter = !noPrefilter
		}
		if set["formula"] {
			cfg.Resize.Formula = formula
		}
		if set["backend"] {
			cfg.Pipeline.Backend = backend
		}
		if set["interp"] {
			cfg.Resize.Interpolator = interp
		}
		if set["ext"] {
			cfg.Output.Format = ext
		}
		if set["quality"] {
			cfg.Output.Quality = quality
		}
		if set["lossless"] {
			cfg.Output.Lossless = lossless
		}
		if set["out"] {
			cfg.Output.OutputDir = outDir
		}
		if set["zip"] {
			cfg.Output.Archive = zipPath
		}
		if set["concurrency"] {
			cfg.Pipeline.Concurrency = concurrency
		}
		return cfg, cfg.Validate()
	}

	cfg, err := load()
	if err != nil {
		logger.WithError(err).Error("invalid configuration")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resizer, err := batchresizer.NewWithConfig(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize resizer")
		os.Exit(2)
	}

	ok := runOnce(ctx, logger, resizer, inputs)
	if !watchMode {
		if !ok {
			os.Exit(1)
		}
		return
	}

	watchPaths := watchTargets(inputs, configPath)
	w, err := watch.New(watchPaths, watch.WithLogger(logger), watch.WithFilter(utils.IsImageFile))
	if err != nil {
		logger.WithError(err).Fatal("failed to start watcher")
	}
	logger.WithField("paths", watchPaths).Info("watching for changes, press Ctrl+C to stop")

	err = w.Run(ctx, func(runCtx context.Context, changed []string) {
		logger.WithField("changed", changed).Debug("changes")
		cfg, err := load()
		if err != nil {
			logger.WithError(err).Error("invalid configuration, keeping previous results")
			return
		}
		r, err := batchresizer.NewWithConfig(cfg, logger)
		if err != nil {
			logger.WithError(err).Error("failed to initialize resizer")
			return
		}
		runOnce(runCtx, logger, r, inputs)
	})
	if err != nil {
		logger.WithError(err).Fatal("watcher stopped")
	}
	logger.Info("shutting down")
}

// initLogger initializes the logger with appropriate level
func initLogger(debugMode bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if debugMode {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
		logger.Debug("Debug logging enabled")
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	return logger
}

// loadConfig reads path, or the default config file when it exists
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		def := config.GetConfigPath()
		if _, err := os.Stat(def); err != nil {
			return config.Default(), nil
		}
		path = def
	}
	return config.LoadFromFile(path)
}

// runOnce processes inputs and logs one line per item. It reports whether at
// least one item succeeded.
func runOnce(ctx context.Context, logger *logrus.Logger, resizer *batchresizer.Resizer, inputs []string) bool {
	start := time.Now()
	report, err := resizer.ProcessFiles(ctx, inputs)
	if report != nil && report.Result != nil {
		for _, it := range report.Result.Items {
			entry := logger.WithFields(logrus.Fields{
				"input":    it.Name,
				"status":   it.Status.String(),
				"duration": it.Duration.Round(time.Millisecond).String(),
			})
			switch it.Status {
			case pipeline.StatusDone:
				entry.WithFields(logrus.Fields{
					"placement": it.Placement.String(),
					"sigma":     it.Sigma.String(),
				}).Info("resized")
			case pipeline.StatusFailed:
				entry.WithError(it.Err).Warn("failed")
			default:
				entry.Debug("skipped")
			}
		}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("run cancelled")
		} else {
			logger.WithError(err).Error("batch failed")
		}
		return false
	}

	fields := logrus.Fields{
		"succeeded": len(report.Result.Succeeded()),
		"failed":    len(report.Result.Failed()),
		"elapsed":   time.Since(start).Round(time.Millisecond).String(),
	}
	if report.Archive != "" {
		fields["archive"] = report.Archive
		if info, err := os.Stat(report.Archive); err == nil {
			fields["size"] = utils.FormatFileSize(info.Size())
		}
	} else {
		fields["files"] = len(report.Files)
	}
	logger.WithFields(fields).Info("batch complete")
	return len(report.Result.Succeeded()) > 0
}

// watchTargets returns the local inputs and config file worth watching
func watchTargets(inputs []string, configPath string) []string {
	var paths []string
	for _, in := range inputs {
		in = strings.TrimSpace(in)
		if in == "" || processing.IsURL(in) {
			continue
		}
		if _, err := os.Stat(in); err == nil {
			paths = append(paths, in)
		}
	}
	if configPath != "" {
		paths = append(paths, configPath)
	}
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "nothing local to watch")
		os.Exit(2)
	}
	return paths
}
