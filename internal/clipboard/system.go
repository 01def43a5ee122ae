package clipboard

import (
	"context"
	"sync"
	"time"

	"golang.design/x/clipboard"
)

// SystemListener watches the OS clipboard for image content.
type SystemListener struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewSystemListener creates a listener over the platform clipboard.
func NewSystemListener() *SystemListener {
	return &SystemListener{}
}

// Start initializes the platform clipboard. It fails when no clipboard is
// reachable, e.g. a Linux session without a display.
func (l *SystemListener) Start(ctx context.Context) (<-chan Change, error) {
	if err := clipboard.Init(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.cancel = cancel
	l.mu.Unlock()

	raw := clipboard.Watch(ctx, clipboard.FmtImage)
	out := make(chan Change, ChangeBuffer)
	go func() {
		defer close(out)
		for data := range raw {
			select {
			case out <- Change{Image: data, At: time.Now()}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close stops watching. Safe to call before Start or more than once.
func (l *SystemListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	return nil
}
