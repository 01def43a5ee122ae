// Package grpcclient queries a running snapnotify daemon over gRPC
package grpcclient

import "time"

// Client configuration defaults
const (
	// Keepalive configuration
	DefaultKeepaliveTime    = 10 * time.Second
	DefaultKeepaliveTimeout = 3 * time.Second

	// Per-attempt deadline for a health check
	HealthCheckTimeout = 2 * time.Second
)
