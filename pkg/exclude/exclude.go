// Package exclude matches relative paths against glob-style exclusion
// patterns. Patterns use path.Match syntax on forward-slash paths; a
// pattern without a slash matches against each path component, so "*.tmp"
// excludes temporary files anywhere in the tree. A trailing slash
// restricts a pattern to directories.
package exclude

import (
	"fmt"
	"path"
	"strings"
)

// Pattern is a single compiled exclusion rule.
type Pattern struct {
	raw      string
	glob     string
	dirOnly  bool
	anchored bool // contains a slash: match the whole relative path
}

// Matcher holds a set of patterns and answers exclusion queries.
type Matcher struct {
	patterns []Pattern
}

// NewMatcher compiles the given patterns. Invalid glob syntax is an error.
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{}
	for _, raw := range patterns {
		p := strings.TrimSpace(raw)
		if p == "" {
			continue
		}

		dirOnly := strings.HasSuffix(p, "/")
		p = strings.TrimSuffix(p, "/")
		p = strings.TrimPrefix(p, "/")

		// Validate the glob up front so a bad pattern fails the run
		// instead of silently matching nothing.
		if _, err := path.Match(p, "probe"); err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", raw, err)
		}

		m.patterns = append(m.patterns, Pattern{
			raw:      raw,
			glob:     p,
			dirOnly:  dirOnly,
			anchored: strings.Contains(p, "/"),
		})
	}
	return m, nil
}

// Empty reports whether the matcher has no patterns.
func (m *Matcher) Empty() bool {
	return m == nil || len(m.patterns) == 0
}

// ShouldExclude reports whether the relative path (forward slashes, no
// leading slash) matches any pattern.
func (m *Matcher) ShouldExclude(relPath string, isDir bool) bool {
	if m.Empty() {
		return false
	}

	relPath = strings.Trim(strings.ReplaceAll(relPath, "\\", "/"), "/")

	for _, p := range m.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		if p.matches(relPath) {
			return true
		}
	}
	return false
}

func (p *Pattern) matches(relPath string) bool {
	if p.anchored {
		ok, _ := path.Match(p.glob, relPath)
		return ok
	}
	for _, segment := range strings.Split(relPath, "/") {
		if ok, _ := path.Match(p.glob, segment); ok {
			return true
		}
	}
	return false
}
