// Package server provides HTTP, WebSocket and gRPC health endpoints
package server

import "time"

// Server configuration constants
const (
	// Per-client write deadline when pushing capture events
	WriteTimeout = 2 * time.Second

	// Inbound WebSocket messages allowed per client per window
	RateLimitMessages = 10
	RateLimitWindow   = time.Second

	// How often health statuses are recomputed from the manager
	HealthRefreshInterval = 2 * time.Second
)

// gRPC health service names
const (
	ServiceOverall   = "snapnotify"
	ServiceClipboard = "snapnotify.clipboard"
	ServiceFolder    = "snapnotify.folder"
)
