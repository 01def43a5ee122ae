package orchestrator

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/GriffinCanCode/snapnotify/internal/capture"
	"github.com/GriffinCanCode/snapnotify/internal/clipboard"
	"github.com/GriffinCanCode/snapnotify/internal/config"
	apperrors "github.com/GriffinCanCode/snapnotify/internal/errors"
	"github.com/GriffinCanCode/snapnotify/internal/fingerprint"
	"github.com/GriffinCanCode/snapnotify/internal/syncx"
	"github.com/GriffinCanCode/snapnotify/internal/trace"
	"github.com/GriffinCanCode/snapnotify/internal/watcher"
)

// MonitorStatus describes one capture source.
type MonitorStatus struct {
	State      string `json:"state"`
	Error      string `json:"error,omitempty"`
	Captured   uint64 `json:"captured"`
	Duplicates uint64 `json:"duplicates"`
	Failures   uint64 `json:"failures"`
}

// Status is a point-in-time view of the manager.
type Status struct {
	Dir         string        `json:"dir"`
	Active      string        `json:"active,omitempty"`
	Clipboard   MonitorStatus `json:"clipboard"`
	Folder      MonitorStatus `json:"folder"`
	Dropped     uint64        `json:"dropped"`
	LastCapture string        `json:"last_capture,omitempty"`
	LastAt      time.Time     `json:"last_capture_at,omitzero"`
	StartedAt   time.Time     `json:"started_at,omitzero"`
}

type lastCapture struct {
	path string
	at   time.Time
}

// Manager runs the clipboard monitor and falls back to the folder watcher
// when the clipboard cannot be registered. Only one source is active at a
// time because events are not deduplicated across sources.
type Manager struct {
	dir    string
	hub    *capture.Hub
	clip   *clipboard.Monitor
	folder *watcher.Watcher

	last *syncx.RWGuard[lastCapture]

	mu        sync.RWMutex
	active    string
	clipErr   error
	running   bool
	stopped   bool
	startedAt time.Time
}

// New builds a manager from configuration. listener is the clipboard source;
// pass clipboard.NewSystemListener() outside tests.
func New(cfg *config.Config, listener clipboard.Listener) (*Manager, error) {
	fp, err := fingerprint.New(cfg.FingerprintMode)
	if err != nil {
		return nil, err
	}

	hub := capture.NewHub(cfg.EventBuffer)
	m := &Manager{
		dir:  cfg.ScreenshotDir,
		hub:  hub,
		last: syncx.NewGuard(lastCapture{}),
	}
	m.clip = clipboard.New(listener, hub, clipboard.Config{Dir: cfg.ScreenshotDir, Fingerprinter: fp})
	m.folder = watcher.New(hub, watcher.Config{Dir: cfg.ScreenshotDir})
	m.dir = m.clip.Dir()

	hub.Subscribe("status", func(_ context.Context, ev capture.Event) error {
		m.last.Set(lastCapture{path: ev.Path, at: time.Now()})
		return nil
	})
	return m, nil
}

// Subscribe registers a consumer of capture events. Call before Start.
func (m *Manager) Subscribe(name string, fn capture.Handler) {
	m.hub.Subscribe(name, fn)
}

// Start ensures the target directory exists and starts one capture source.
// A clipboard registration failure is logged and answered with the folder
// watcher; any other failure is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running || m.stopped {
		return apperrors.New(apperrors.CodeInvalidArgument, "manager already started")
	}

	log := trace.Logger(ctx)
	if err := os.MkdirAll(m.dir, watcher.DirMode); err != nil {
		return apperrors.Wrap(err, apperrors.CodeSaveFailed, "create screenshot directory").
			WithMetadata("dir", m.dir)
	}

	m.hub.Start(ctx)

	err := m.clip.Start(ctx)
	switch {
	case err == nil:
		m.active = SourceClipboard
	case apperrors.IsCode(err, apperrors.CodeListenerRegistration):
		m.clipErr = err
		log.Warn("clipboard unavailable, watching folder instead", "dir", m.dir, "error", err)
		if err := m.folder.Start(ctx); err != nil {
			m.hub.Stop()
			m.stopped = true
			return err
		}
		m.active = SourceFolder
	default:
		m.hub.Stop()
		m.stopped = true
		return err
	}

	m.running = true
	m.startedAt = time.Now()
	log.Info("capture started", "source", m.active, "dir", m.dir)
	return nil
}

// Stop tears down the active source and drains pending events.
// Safe to call more than once; a stopped manager cannot be restarted.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clip.Stop()
	m.folder.Stop()
	m.hub.Stop()
	m.running = false
	m.stopped = true
}

// Dir returns the absolute target directory.
func (m *Manager) Dir() string { return m.dir }

// Status returns the state of both sources.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	last := m.last.Get()
	st := Status{
		Dir:         m.dir,
		Dropped:     m.hub.Dropped(),
		LastCapture: last.path,
		LastAt:      last.at,
		StartedAt:   m.startedAt,
	}
	if m.running {
		st.Active = m.active
	}

	cs := m.clip.Stats()
	st.Clipboard = MonitorStatus{
		State:      m.clipboardState(),
		Captured:   cs.Captured,
		Duplicates: cs.Duplicates,
		Failures:   cs.Failures,
	}
	if m.clipErr != nil {
		st.Clipboard.Error = m.clipErr.Error()
	}

	fs := m.folder.Stats()
	st.Folder = MonitorStatus{
		State:      m.folderState(),
		Captured:   fs.Emitted,
		Duplicates: fs.Duplicates,
		Failures:   fs.NotReady,
	}
	return st
}

func (m *Manager) clipboardState() string {
	switch {
	case m.clipErr != nil:
		return StateUnavailable
	case !m.running:
		return StateStopped
	case m.active == SourceClipboard:
		return StateActive
	default:
		return StateStandby
	}
}

func (m *Manager) folderState() string {
	if !m.running {
		return StateStopped
	}
	if m.active != SourceFolder {
		return StateStandby
	}
	switch m.folder.State() {
	case watcher.StateWatching:
		return StateActive
	case watcher.StateDegraded:
		return StateDegraded
	default:
		return StateStopped
	}
}
