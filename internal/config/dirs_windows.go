//go:build windows

package config

import (
	"os"
	"path/filepath"
)

// DefaultScreenshotDir returns %USERPROFILE%\Pictures\Screenshots.
func DefaultScreenshotDir() string {
	if profile := os.Getenv("USERPROFILE"); profile != "" {
		return picturesDir(profile)
	}
	return filepath.Join(homeDir(), "Pictures", "Screenshots")
}
