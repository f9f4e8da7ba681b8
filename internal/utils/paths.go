package utils

import (
	"net/url"
	"strings"
)

// NormalizeRemotePath converts a path into the canonical remote form:
// forward slashes only, no duplicate separators, no leading or trailing
// slash. The empty string denotes the server root.
func NormalizeRemotePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")

	var b strings.Builder
	b.Grow(len(p))
	prevSlash := false
	for _, r := range p {
		if r == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteRune(r)
	}

	return strings.Trim(b.String(), "/")
}

// JoinRemote joins a base directory and a relative path into a normalized
// remote path. Either part may be empty.
func JoinRemote(base, rel string) string {
	base = NormalizeRemotePath(base)
	rel = NormalizeRemotePath(rel)

	switch {
	case base == "":
		return rel
	case rel == "":
		return base
	default:
		return base + "/" + rel
	}
}

// ParentRemoteDir returns the directory component of a normalized remote
// path, or the empty string for entries at the server root.
func ParentRemoteDir(p string) string {
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return ""
	}
	return p[:idx]
}

// SplitRemotePath splits a normalized remote path into its segments.
// The empty path yields no segments.
func SplitRemotePath(p string) []string {
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// EncodeRemotePath percent-encodes each segment of a remote path while
// preserving the slash separators.
func EncodeRemotePath(p string) string {
	if p == "" {
		return ""
	}
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
