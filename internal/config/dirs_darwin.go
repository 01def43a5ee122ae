//go:build darwin

package config

// DefaultScreenshotDir returns ~/Pictures/Screenshots.
func DefaultScreenshotDir() string {
	return picturesDir(homeDir())
}
