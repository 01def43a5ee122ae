// Package orchestrator runs the capture monitors for the host process
package orchestrator

// Monitor states reported by Status
const (
	StateActive      = "active"      // running and delivering events
	StateStandby     = "standby"     // not started because another monitor is active
	StateUnavailable = "unavailable" // failed to register with the OS
	StateDegraded    = "degraded"    // running but recovery failed
	StateStopped     = "stopped"
)

// Source names used in status and logs
const (
	SourceClipboard = "clipboard"
	SourceFolder    = "folder"
)
