// Package watcher reports new image files in the screenshot directory.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"

	"github.com/GriffinCanCode/snapnotify/internal/capture"
	apperrors "github.com/GriffinCanCode/snapnotify/internal/errors"
	"github.com/GriffinCanCode/snapnotify/internal/patterns"
	"github.com/GriffinCanCode/snapnotify/internal/resilience"
	"github.com/GriffinCanCode/snapnotify/internal/syncx"
	"github.com/GriffinCanCode/snapnotify/internal/trace"
)

// State describes whether the directory is being watched.
type State int32

const (
	StateStopped  State = iota
	StateWatching       // events are flowing
	StateDegraded       // recovery failed, no events until restart
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateWatching:
		return "watching"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

var errDirRemoved = errors.New("watched directory removed")

// Config holds watcher settings. Zero values take the package defaults.
type Config struct {
	Dir           string
	Matcher       *patterns.Matcher
	Window        time.Duration
	SweepInterval time.Duration
	Ready         *resilience.RetryConfig
	MaxHandlers   int
	Now           func() time.Time
}

// Stats counts what the watcher has done since it was created.
type Stats struct {
	Emitted    uint64
	Duplicates uint64
	Ignored    uint64
	NotReady   uint64
	Recoveries uint64
}

// Watcher turns create notifications in one directory into capture events,
// one per file per dedup window.
type Watcher struct {
	dir      string
	pub      capture.Publisher
	matcher  *patterns.Matcher
	recent   *recentFiles
	ready    resilience.RetryConfig
	sweepInt time.Duration
	workers  int
	now      func() time.Time

	state *syncx.RWGuard[State]

	emitted    atomic.Uint64
	duplicates atomic.Uint64
	ignored    atomic.Uint64
	notReady   atomic.Uint64
	recoveries atomic.Uint64

	fswMu sync.Mutex
	fsw   *fsnotify.Watcher

	mu       sync.Mutex
	cancel   context.CancelFunc
	loops    *conc.WaitGroup
	handlers *pool.Pool
}

// New creates a watcher. It does nothing until Start.
func New(pub capture.Publisher, cfg Config) *Watcher {
	dir := cfg.Dir
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	if cfg.Matcher == nil {
		cfg.Matcher = patterns.NewImageMatcher()
	}
	if cfg.Window <= 0 {
		cfg.Window = DedupWindow
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = SweepInterval
	}
	ready := resilience.ReadyRetryConfig()
	if cfg.Ready != nil {
		ready = *cfg.Ready
	}
	if cfg.MaxHandlers <= 0 {
		cfg.MaxHandlers = MaxHandlers
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Watcher{
		dir:      dir,
		pub:      pub,
		matcher:  cfg.Matcher,
		recent:   newRecentFiles(cfg.Window),
		ready:    ready,
		sweepInt: cfg.SweepInterval,
		workers:  cfg.MaxHandlers,
		now:      cfg.Now,
		state:    syncx.NewGuard(StateStopped),
	}
}

// Start ensures the directory exists and begins watching it.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return apperrors.New(apperrors.CodeInvalidArgument, "folder watcher already running")
	}

	if err := os.MkdirAll(w.dir, DirMode); err != nil {
		return apperrors.Wrap(err, apperrors.CodeWatchFailed, "create target directory").
			WithMetadata("dir", w.dir)
	}

	fsw, err := fsnotify.NewBufferedWatcher(EventQueueSize)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeWatchFailed, "create fsnotify watcher")
	}
	if err := fsw.AddWith(w.dir, fsnotify.WithBufferSize(OSBufferSize)); err != nil {
		fsw.Close()
		return apperrors.Wrap(err, apperrors.CodeWatchFailed, "watch directory").
			WithMetadata("dir", w.dir)
	}

	w.fswMu.Lock()
	w.fsw = fsw
	w.fswMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.handlers = pool.New().WithMaxGoroutines(w.workers)
	w.loops = &conc.WaitGroup{}
	w.loops.Go(func() { w.eventLoop(ctx, fsw) })
	w.loops.Go(func() { w.sweepLoop(ctx) })

	w.setState(ctx, StateWatching)
	trace.Logger(ctx).Info("folder watcher started", "dir", w.dir)
	return nil
}

// Stop halts the sweeper, closes the watch, and waits for in-flight handlers.
// Safe to call before Start or more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel == nil {
		return
	}
	w.cancel()

	w.fswMu.Lock()
	if w.fsw != nil {
		w.fsw.Close()
		w.fsw = nil
	}
	w.fswMu.Unlock()

	w.loops.Wait()
	w.handlers.Wait()
	w.cancel = nil
	w.setState(context.Background(), StateStopped)
}

// State returns the current watch state.
func (w *Watcher) State() State { return w.state.Get() }

// Dir returns the absolute watched directory.
func (w *Watcher) Dir() string { return w.dir }

// Stats returns a snapshot of the counters.
func (w *Watcher) Stats() Stats {
	return Stats{
		Emitted:    w.emitted.Load(),
		Duplicates: w.duplicates.Load(),
		Ignored:    w.ignored.Load(),
		NotReady:   w.notReady.Load(),
		Recoveries: w.recoveries.Load(),
	}
}

func (w *Watcher) eventLoop(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) == w.dir {
				if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					w.handleError(ctx, errDirRemoved)
				}
				continue
			}
			if !ev.Has(fsnotify.Create) {
				continue
			}
			path := ev.Name
			w.handlers.Go(func() { w.handleCreate(ctx, path) })
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.handleError(ctx, err)
		}
	}
}

func (w *Watcher) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(w.sweepInt)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := w.recent.sweep(w.now(), fileExists); n > 0 {
				trace.Logger(ctx).Debug("swept recent files", "removed", n, "remaining", w.recent.len())
			}
		}
	}
}

// handleCreate emits one event for a new image file. Errors are logged and absorbed.
func (w *Watcher) handleCreate(ctx context.Context, path string) {
	if !w.matcher.Match(path) {
		w.ignored.Add(1)
		return
	}

	ctx, span := trace.StartSpan(ctx, "folder_capture")
	defer span.End()
	span.SetAttr("path", path)
	log := trace.Logger(ctx)

	if !w.recent.claim(path, w.now()) {
		w.duplicates.Add(1)
		log.Debug("duplicate create notification", "path", path)
		return
	}

	if err := w.waitReady(ctx, path); err != nil {
		if ctx.Err() != nil {
			w.recent.release(path)
			log.Debug("shutdown during readiness wait", "path", path)
			return
		}
		w.notReady.Add(1)
		log.Warn("file not ready after retries, emitting anyway", "path", path, "error", err)
	}

	w.recent.commit(path, w.now())
	w.emitted.Add(1)
	log.Info("screenshot detected", "path", path)
	w.pub.Publish(capture.Event{Path: path})
}

// waitReady polls until path opens for reading and has content.
func (w *Watcher) waitReady(ctx context.Context, path string) error {
	return resilience.Retry(ctx, w.ready, func() error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return err
		}
		if info.Size() == 0 {
			return errEmptyFile
		}
		return nil
	})
}

var errEmptyFile = errors.New("file is empty")

// handleError re-arms the watch: drop it, recreate the directory, add it back.
// A failure leaves the watcher degraded.
func (w *Watcher) handleError(ctx context.Context, cause error) {
	log := trace.Logger(ctx)
	log.Warn("watch error, re-arming", "dir", w.dir, "error", cause)

	w.fswMu.Lock()
	defer w.fswMu.Unlock()

	if w.fsw == nil {
		return
	}
	_ = w.fsw.Remove(w.dir) // already gone when the directory was deleted

	if err := os.MkdirAll(w.dir, DirMode); err != nil {
		w.degrade(ctx, apperrors.Wrap(err, apperrors.CodeWatchFailed, "recreate target directory"))
		return
	}
	if err := w.fsw.AddWith(w.dir, fsnotify.WithBufferSize(OSBufferSize)); err != nil {
		w.degrade(ctx, apperrors.Wrap(err, apperrors.CodeWatchFailed, "re-add watch"))
		return
	}

	w.recoveries.Add(1)
	w.setState(ctx, StateWatching)
	log.Info("watch re-armed", "dir", w.dir)
}

func (w *Watcher) degrade(ctx context.Context, err error) {
	trace.Logger(ctx).Error("folder watching disabled", "dir", w.dir, "error", err)
	w.setState(ctx, StateDegraded)
}

func (w *Watcher) setState(ctx context.Context, s State) {
	if old := w.state.Swap(s); old != s {
		trace.Logger(ctx).Debug("folder watcher state", "from", old.String(), "to", s.String())
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
