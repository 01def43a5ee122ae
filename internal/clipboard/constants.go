package clipboard

// Clipboard monitor configuration constants
const (
	// Saved file naming: Screenshot_<stamp>[_<n>].png
	FilePrefix      = "Screenshot_"
	FileExt         = ".png"
	TimestampLayout = "20060102_150405"

	// Upper bound on numeric suffixes tried within one second
	MaxNameAttempts = 1000

	// Pending changes between the OS listener and the processing goroutine
	ChangeBuffer = 8

	// Permissions for saved screenshots
	FileMode = 0o644
)
