// Package watch re-runs a batch whenever its inputs or configuration change.
package watch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce is how long the watcher waits for changes to settle
const DefaultDebounce = 500 * time.Millisecond

// Trigger is called after a burst of changes. ctx is cancelled as soon as a
// newer burst arrives or the watcher stops.
type Trigger func(ctx context.Context, changed []string)

// Watcher monitors directories and single files for changes
type Watcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration
	logger   logrus.FieldLogger
	filter   func(path string) bool

	// files are watched through their parent directory so editors that
	// replace the file on save are still seen.
	files map[string]bool
	dirs  map[string]bool
}

// Option configures a Watcher
type Option func(*Watcher)

// WithDebounce sets the quiet period before a trigger fires
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithFilter limits which files inside watched directories count as changes.
// Explicitly watched files always count.
func WithFilter(f func(path string) bool) Option {
	return func(w *Watcher) {
		w.filter = f
	}
}

// New creates a watcher over paths, which may be files or directories
func New(paths []string, opts ...Option) (*Watcher, error) {
	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		fs:       fsWatcher,
		debounce: DefaultDebounce,
		logger:   quiet,
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, p := range paths {
		if err := w.add(p); err != nil {
			fsWatcher.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) add(p string) error {
	abs, err := filepath.Abs(p)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", p, err)
	}

	target := abs
	if info.IsDir() {
		w.dirs[abs] = true
	} else {
		w.files[abs] = true
		target = filepath.Dir(abs)
	}
	if err := w.fs.Add(target); err != nil {
		return fmt.Errorf("failed to watch %s: %w", p, err)
	}
	w.logger.WithField("path", target).Debug("watching")
	return nil
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	name, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	if w.files[name] {
		return true
	}
	if !w.dirs[filepath.Dir(name)] {
		return false
	}
	if base := filepath.Base(name); len(base) > 0 && base[0] == '.' {
		return false
	}
	return w.filter == nil || w.filter(name)
}

// Run blocks until ctx is done, calling trigger after every settled burst of
// changes. Each trigger runs in its own goroutine. A new burst cancels the
// trigger in flight and starts the next one only after it has returned, so
// two triggers never overlap. Run closes the watcher before returning.
func (w *Watcher) Run(ctx context.Context, trigger Trigger) error {
	var (
		wg      sync.WaitGroup
		timer   *time.Timer
		timerC  <-chan time.Time
		pending = make(map[string]bool)

		// stop cancels the trigger in flight; last is closed when it returns.
		stop context.CancelFunc
		last chan struct{}
	)
	defer func() {
		if stop != nil {
			stop()
		}
		wg.Wait()
		w.fs.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			pending[ev.Name] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("watcher error")

		case <-timerC:
			timerC = nil
			changed := make([]string, 0, len(pending))
			for name := range pending {
				changed = append(changed, name)
			}
			sort.Strings(changed)
			pending = make(map[string]bool)

			if stop != nil {
				stop()
			}
			runCtx, runCancel := context.WithCancel(ctx)
			stop = runCancel
			prev, done := last, make(chan struct{})
			last = done
			w.logger.WithField("changed", len(changed)).Info("change detected, re-running")

			wg.Add(1)
			go func() {
				defer wg.Done()
				defer close(done)
				if prev != nil {
					<-prev
				}
				if runCtx.Err() != nil {
					return
				}
				trigger(runCtx, changed)
			}()
		}
	}
}

// Close releases the watcher without running it
func (w *Watcher) Close() error {
	return w.fs.Close()
}
