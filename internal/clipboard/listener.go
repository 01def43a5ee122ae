// Package clipboard turns clipboard image updates into saved screenshots.
package clipboard

import (
	"context"
	"time"
)

// Change is one clipboard update. Image holds the encoded payload and is
// empty when the clipboard no longer carries an image.
type Change struct {
	Image []byte
	At    time.Time
}

// Listener delivers clipboard updates. Start registers with the OS and
// returns a channel that is closed once the listener is closed or ctx ends.
type Listener interface {
	Start(ctx context.Context) (<-chan Change, error)
	Close() error
}
