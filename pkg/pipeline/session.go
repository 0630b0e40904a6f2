package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/batch-resizer/pkg/analyzer"
	"github.com/menta2k/batch-resizer/pkg/composite"
	"github.com/menta2k/batch-resizer/pkg/convolution"
	"github.com/menta2k/batch-resizer/pkg/fit"
	"github.com/menta2k/batch-resizer/pkg/prefilter"
)

// Session owns the items of the latest run. Starting a new run cancels the
// one in flight and discards its items.
type Session struct {
	backend     convolution.Backend
	logger      logrus.FieldLogger
	concurrency int
	analyzer    *analyzer.ImageAnalyzer

	mu     sync.Mutex
	items  []*Item
	cancel context.CancelFunc
	done   chan struct{}
	runID  uint64
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the logger used for per-item events
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithConcurrency limits how many items are processed at once
func WithConcurrency(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithMinImageSize rejects sources smaller than n pixels on either side
func WithMinImageSize(n int) Option {
	return func(s *Session) {
		s.analyzer = analyzer.NewWithConfig(analyzer.Config{MinImageSize: n})
	}
}

// NewSession creates a session that convolves through backend
func NewSession(backend convolution.Backend, opts ...Option) *Session {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	s := &Session{
		backend:     backend,
		logger:      quiet,
		concurrency: runtime.GOMAXPROCS(0),
		analyzer:    analyzer.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run processes sources with params and returns one item per source. Param
// errors are returned before anything starts. Item errors are recorded on the
// item and the batch continues. If ctx is cancelled or another Run supersedes
// this one, unfinished items are marked cancelled and the context error is
// returned together with the partial result.
func (s *Session) Run(ctx context.Context, params Params, sources []Source) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	items := make([]*Item, len(sources))
	for i, src := range sources {
		items[i] = &Item{Index: i, Name: src.Name}
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.logger.Debug("cancelling previous run")
		s.cancel()
	}
	prev := s.done
	done := make(chan struct{})
	s.runID++
	id := s.runID
	s.cancel, s.done, s.items = cancel, done, items
	s.mu.Unlock()

	defer func() {
		cancel()
		close(done)
		s.mu.Lock()
		if s.runID == id {
			s.cancel = nil
		}
		s.mu.Unlock()
	}()

	// Let the superseded run drain so the two never share the backend.
	if prev != nil {
		select {
		case <-prev:
		case <-runCtx.Done():
		}
	}

	log := s.logger.WithFields(logrus.Fields{
		"run":   id,
		"items": len(sources),
		"dest":  params.Dest.String(),
		"mode":  params.Mode.String(),
	})
	log.Info("batch started")
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := range sources {
		if runCtx.Err() != nil {
			break
		}
		src, it := sources[i], items[i]
		g.Go(func() error {
			s.runItem(runCtx, params, src, it)
			return nil
		})
	}
	_ = g.Wait()

	result := &Result{Params: params, Items: items}
	if err := runCtx.Err(); err != nil {
		for _, it := range items {
			if it.Status == StatusPending {
				it.Status = StatusCancelled
				it.Err = err
			}
		}
		log.WithError(err).Warn("batch cancelled")
		return result, err
	}

	log.WithFields(logrus.Fields{
		"succeeded": len(result.Succeeded()),
		"failed":    len(result.Failed()),
		"duration":  time.Since(start).String(),
	}).Info("batch finished")
	return result, nil
}

// Cancel stops the run in flight, if any
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Items returns the items of the latest run
func (s *Session) Items() []*Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Item(nil), s.items...)
}

// Clear cancels any run in flight and discards all items
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.items = nil
}

func (s *Session) runItem(ctx context.Context, params Params, src Source, it *Item) {
	start := time.Now()
	defer func() { it.Duration = time.Since(start) }()

	log := s.logger.WithFields(logrus.Fields{"item": it.Index, "name": it.Name})

	if err := ctx.Err(); err != nil {
		it.Status, it.Err = StatusCancelled, err
		return
	}
	if src.Load == nil {
		s.fail(ctx, log, it, fmt.Errorf("no loader for %q", src.Name))
		return
	}

	img, err := src.Load(ctx)
	if err != nil {
		s.fail(ctx, log, it, fmt.Errorf("load: %w", err))
		return
	}
	if err := s.analyzer.ValidateImage(img); err != nil {
		s.fail(ctx, log, it, err)
		return
	}
	it.Source = img

	if err := process(ctx, params, s.backend, img, it); err != nil {
		s.fail(ctx, log, it, err)
		return
	}
	it.Status = StatusDone
	log.WithFields(logrus.Fields{
		"placement": it.Placement.String(),
		"sigma":     it.Sigma.String(),
	}).Debug("item done")
}

func (s *Session) fail(ctx context.Context, log logrus.FieldLogger, it *Item, err error) {
	it.Err = err
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		it.Status = StatusCancelled
		return
	}
	it.Status = StatusFailed
	log.WithError(err).Warn("item failed")
}

// ProcessItem runs fit, pre-filter and composite on a single decoded image
// outside of any session.
func ProcessItem(ctx context.Context, params Params, backend convolution.Backend, img image.Image) (*Item, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	it := &Item{Source: img}
	if img == nil || img.Bounds().Empty() {
		it.Status, it.Err = StatusFailed, fmt.Errorf("empty source image")
		return it, it.Err
	}
	if err := process(ctx, params, backend, img, it); err != nil {
		it.Status, it.Err = StatusFailed, err
		return it, err
	}
	it.Status = StatusDone
	return it, nil
}

// process runs the strictly sequential stages of one item
func process(ctx context.Context, params Params, backend convolution.Backend, img image.Image, it *Item) error {
	placement, err := fit.ComputePlacementFor(img, params.Dest, params.Mode)
	if err != nil {
		return err
	}
	it.Placement = placement

	var content image.Image = img
	if params.PreFilter {
		f := &prefilter.Filter{Backend: backend, Formula: params.Formula, Factor: params.FilterFactor}
		filtered, sigma, err := f.Apply(ctx, img, placement)
		if err != nil {
			return err
		}
		if filtered != nil {
			it.Filtered, it.Sigma, content = filtered, sigma, filtered
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	out, err := composite.Composite(params.Dest, content, placement, params.compositeOptions()...)
	if err != nil {
		return fmt.Errorf("composite: %w", err)
	}
	it.Output = out
	return nil
}
