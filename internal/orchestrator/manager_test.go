package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/snapnotify/internal/capture"
	"github.com/GriffinCanCode/snapnotify/internal/clipboard"
	"github.com/GriffinCanCode/snapnotify/internal/config"
	apperrors "github.com/GriffinCanCode/snapnotify/internal/errors"
)

type fakeListener struct {
	ch       chan clipboard.Change
	startErr error
}

func (f *fakeListener) Start(context.Context) (<-chan clipboard.Change, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.ch, nil
}

func (f *fakeListener) Close() error { return nil }

type sink struct {
	mu    sync.Mutex
	paths []string
}

func (s *sink) handle(_ context.Context, ev capture.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, ev.Path)
	return nil
}

func (s *sink) wait(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		got := append([]string(nil), s.paths...)
		s.mu.Unlock()
		if len(got) >= n {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("received fewer than %d events", n)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.ScreenshotDir = filepath.Join(t.TempDir(), "Screenshots")
	cfg.EventBuffer = 8
	return cfg
}

func redPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestManagerClipboardSource(t *testing.T) {
	cfg := testConfig(t)
	l := &fakeListener{ch: make(chan clipboard.Change, 4)}
	m, err := New(cfg, l)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s := &sink{}
	m.Subscribe("test", s.handle)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	if _, err := os.Stat(cfg.ScreenshotDir); err != nil {
		t.Fatalf("target directory not created: %v", err)
	}

	l.ch <- clipboard.Change{Image: redPNG(t)}
	got := s.wait(t, 1)
	if filepath.Dir(got[0]) != m.Dir() || !strings.HasPrefix(filepath.Base(got[0]), "Screenshot_") {
		t.Errorf("path = %q, want Screenshot_* in %s", got[0], m.Dir())
	}

	st := m.Status()
	if st.Active != SourceClipboard {
		t.Errorf("Active = %q, want %q", st.Active, SourceClipboard)
	}
	if st.Clipboard.State != StateActive || st.Folder.State != StateStandby {
		t.Errorf("states = %s/%s, want active/standby", st.Clipboard.State, st.Folder.State)
	}
	if st.Clipboard.Captured != 1 {
		t.Errorf("Clipboard.Captured = %d, want 1", st.Clipboard.Captured)
	}
	if st.Dropped != 0 {
		t.Errorf("Dropped = %d, want 0", st.Dropped)
	}
}

func TestManagerFallsBackToFolder(t *testing.T) {
	cfg := testConfig(t)
	m, err := New(cfg, &fakeListener{startErr: errors.New("no display")})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s := &sink{}
	m.Subscribe("test", s.handle)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer m.Stop()

	st := m.Status()
	if st.Active != SourceFolder {
		t.Fatalf("Active = %q, want %q", st.Active, SourceFolder)
	}
	if st.Clipboard.State != StateUnavailable || st.Clipboard.Error == "" {
		t.Errorf("Clipboard = %+v, want unavailable with error", st.Clipboard)
	}
	if st.Folder.State != StateActive {
		t.Errorf("Folder.State = %q, want active", st.Folder.State)
	}

	p := filepath.Join(m.Dir(), "dropped.png")
	if err := os.WriteFile(p, []byte("image bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := s.wait(t, 1); got[0] != p {
		t.Errorf("path = %q, want %q", got[0], p)
	}

	deadline := time.Now().Add(time.Second)
	for m.Status().LastCapture != p && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if last := m.Status().LastCapture; last != p {
		t.Errorf("LastCapture = %q, want %q", last, p)
	}
}

func TestManagerLifecycle(t *testing.T) {
	m, err := New(testConfig(t), &fakeListener{ch: make(chan clipboard.Change)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Start(context.Background()); !apperrors.IsCode(err, apperrors.CodeInvalidArgument) {
		t.Errorf("second Start err = %v, want CodeInvalidArgument", err)
	}

	m.Stop()
	m.Stop()

	st := m.Status()
	if st.Active != "" || st.Clipboard.State != StateStopped || st.Folder.State != StateStopped {
		t.Errorf("Status after Stop = %+v", st)
	}
	if err := m.Start(context.Background()); !apperrors.IsCode(err, apperrors.CodeInvalidArgument) {
		t.Errorf("Start after Stop err = %v, want CodeInvalidArgument", err)
	}
}

func TestManagerRejectsUnknownFingerprint(t *testing.T) {
	cfg := testConfig(t)
	cfg.FingerprintMode = "sha1"
	if _, err := New(cfg, &fakeListener{}); !apperrors.IsCode(err, apperrors.CodeConfigInvalid) {
		t.Errorf("New err = %v, want CodeConfigInvalid", err)
	}
}
