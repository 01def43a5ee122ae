// Package patterns decides which file names count as screenshots.
package patterns

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/gobwas/glob"

	apperrors "github.com/GriffinCanCode/snapnotify/internal/errors"
)

// ImagePatterns are the raster formats screenshot tools write.
var ImagePatterns = []string{"*.{png,jpg,jpeg,bmp,gif}"}

// Matcher matches base names against compiled globs, case-insensitively.
type Matcher struct {
	mu       sync.RWMutex
	patterns []glob.Glob
}

// NewMatcher compiles patterns. Blank lines and # comments are skipped.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	if err := m.SetPatterns(patterns); err != nil {
		return nil, err
	}
	return m, nil
}

// NewImageMatcher returns a matcher for ImagePatterns.
func NewImageMatcher() *Matcher {
	m, err := NewMatcher(ImagePatterns)
	if err != nil {
		panic(err) // ImagePatterns is a constant
	}
	return m
}

// SetPatterns replaces the pattern set.
func (m *Matcher) SetPatterns(patterns []string) error {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		g, err := glob.Compile(strings.ToLower(filepath.ToSlash(p)))
		if err != nil {
			return apperrors.Wrapf(err, apperrors.CodeInvalidArgument, "compile pattern %q", p)
		}
		compiled = append(compiled, g)
	}

	m.mu.Lock()
	m.patterns = compiled
	m.mu.Unlock()
	return nil
}

// Match reports whether the base name of path matches any pattern.
// An empty pattern set matches nothing.
func (m *Matcher) Match(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name := strings.ToLower(filepath.Base(filepath.ToSlash(path)))
	if name == "." || name == "/" {
		return false
	}
	for _, g := range m.patterns {
		if g.Match(name) {
			return true
		}
	}
	return false
}
