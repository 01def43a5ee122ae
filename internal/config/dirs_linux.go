//go:build linux

package config

import (
	"os"
	"path/filepath"
)

// DefaultScreenshotDir honours XDG_PICTURES_DIR, then ~/Pictures/Screenshots.
func DefaultScreenshotDir() string {
	if xdg := os.Getenv("XDG_PICTURES_DIR"); xdg != "" {
		return filepath.Join(xdg, "Screenshots")
	}
	return picturesDir(homeDir())
}
