package clipboard

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // GIF decoder
	_ "image/jpeg" // JPEG decoder
	"image/png"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	_ "golang.org/x/image/bmp" // BMP decoder

	"github.com/GriffinCanCode/snapnotify/internal/capture"
	apperrors "github.com/GriffinCanCode/snapnotify/internal/errors"
	"github.com/GriffinCanCode/snapnotify/internal/fingerprint"
	"github.com/GriffinCanCode/snapnotify/internal/syncx"
	"github.com/GriffinCanCode/snapnotify/internal/trace"
)

// Config holds monitor settings.
type Config struct {
	Dir           string                    // target directory, must exist
	Fingerprinter fingerprint.Fingerprinter // nil means fingerprint.Content
	Now           func() time.Time          // clock for file names; nil means time.Now
}

// Stats counts what the monitor has done since it was created.
type Stats struct {
	Captured   uint64
	Duplicates uint64
	Failures   uint64
}

// Monitor saves each distinct clipboard image once and publishes its path.
type Monitor struct {
	listener Listener
	pub      capture.Publisher
	dir      string
	fp       fingerprint.Fingerprinter
	now      func() time.Time

	last *syncx.RWGuard[fingerprint.Fingerprint]

	captured   atomic.Uint64
	duplicates atomic.Uint64
	failures   atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a monitor. It does nothing until Start.
func New(listener Listener, pub capture.Publisher, cfg Config) *Monitor {
	dir := cfg.Dir
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	fp := cfg.Fingerprinter
	if fp == nil {
		fp = fingerprint.Content{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		listener: listener,
		pub:      pub,
		dir:      dir,
		fp:       fp,
		now:      now,
		last:     syncx.NewGuard(fingerprint.Fingerprint("")),
	}
}

// Start registers the clipboard listener and begins processing changes.
// A registration failure is returned as CodeListenerRegistration; the caller
// can fall back to watching the folder instead.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return apperrors.New(apperrors.CodeInvalidArgument, "clipboard monitor already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	changes, err := m.listener.Start(ctx)
	if err != nil {
		cancel()
		return apperrors.Wrap(err, apperrors.CodeListenerRegistration, "register clipboard listener")
	}

	m.cancel = cancel
	m.done = make(chan struct{})
	go m.loop(ctx, changes, m.done)

	trace.Logger(ctx).Info("clipboard monitor started", "dir", m.dir)
	return nil
}

// Stop unregisters the listener and waits for the processing goroutine.
// A change already being processed may still publish. Safe to call before
// Start or more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel == nil {
		return
	}
	m.cancel()
	if err := m.listener.Close(); err != nil {
		trace.Logger(context.Background()).Warn("clipboard listener close failed", "error", err)
	}
	<-m.done
	m.cancel = nil
	m.done = nil
}

// Stats returns a snapshot of the counters.
func (m *Monitor) Stats() Stats {
	return Stats{
		Captured:   m.captured.Load(),
		Duplicates: m.duplicates.Load(),
		Failures:   m.failures.Load(),
	}
}

// Dir returns the absolute target directory.
func (m *Monitor) Dir() string { return m.dir }

func (m *Monitor) loop(ctx context.Context, changes <-chan Change, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ch, ok := <-changes:
			if !ok {
				return
			}
			m.process(ctx, ch)
		}
	}
}

// process handles one clipboard change. Errors are logged and absorbed.
func (m *Monitor) process(ctx context.Context, ch Change) {
	if len(ch.Image) == 0 {
		return
	}

	ctx, span := trace.StartSpan(ctx, "clipboard_capture")
	defer span.End()
	log := trace.Logger(ctx)

	defer func() {
		if r := recover(); r != nil {
			m.failures.Add(1)
			log.Error("clipboard change panicked", "panic", fmt.Sprint(r))
		}
	}()

	img, _, err := image.Decode(bytes.NewReader(ch.Image))
	if err != nil || img == nil {
		m.failures.Add(1)
		log.Warn("clipboard image skipped",
			"error", apperrors.Wrap(err, apperrors.CodeImageDecode, "decode clipboard image"))
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		m.failures.Add(1)
		log.Warn("clipboard image skipped",
			"error", apperrors.Wrap(err, apperrors.CodeImageDecode, "encode png"))
		return
	}

	fp, err := m.fp.Fingerprint(img, buf.Bytes())
	if err != nil {
		m.failures.Add(1)
		log.Warn("clipboard image skipped", "error", err)
		return
	}

	// Stored before saving so a change that arrives mid-save is already a duplicate.
	if !syncx.SetIfChanged(m.last, fp) {
		m.duplicates.Add(1)
		log.Debug("duplicate clipboard image")
		return
	}

	path, err := saveUnique(m.dir, m.now(), buf.Bytes())
	if err != nil {
		m.failures.Add(1)
		log.Error("save screenshot failed", "error", err)
		return
	}

	m.captured.Add(1)
	span.SetAttr("path", path)
	log.Info("screenshot saved",
		"path", path,
		"size", humanize.Bytes(uint64(buf.Len())),
		"bounds", img.Bounds().Size().String())
	m.pub.Publish(capture.Event{Path: path})
}
