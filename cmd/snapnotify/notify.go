package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/GriffinCanCode/snapnotify/internal/capture"
)

// consoleNotifier prints one line per capture.
type consoleNotifier struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time

	badge lipgloss.Style
	path  lipgloss.Style
	dim   lipgloss.Style
}

func newConsoleNotifier(w io.Writer) *consoleNotifier {
	return &consoleNotifier{
		w:     w,
		now:   time.Now,
		badge: lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("14")).Padding(0, 1),
		path:  lipgloss.NewStyle().Bold(true),
		dim:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// Notify has the capture.Handler signature.
func (n *consoleNotifier) Notify(_ context.Context, ev capture.Event) error {
	size := "?"
	if info, err := os.Stat(ev.Path); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	_, err := fmt.Fprintf(n.w, "%s %s %s\n",
		n.badge.Render("screenshot"),
		n.path.Render(ev.Path),
		n.dim.Render(n.now().Format("15:04:05")+" "+size))
	return err
}
