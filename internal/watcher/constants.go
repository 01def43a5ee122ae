package watcher

import "time"

// Folder watcher configuration constants
const (
	// Paths accepted within this window are not reported again
	DedupWindow = 5 * time.Second

	// How often stale recent-file records are swept
	SweepInterval = 5 * time.Second

	// OS-side notification buffer (honoured by the Windows backend)
	OSBufferSize = 64 * 1024

	// Queued fsnotify events before the backend blocks
	EventQueueSize = 256

	// Concurrent create handlers; each may sleep while a file finishes writing
	MaxHandlers = 4

	// Mode for a recreated target directory
	DirMode = 0o755
)
