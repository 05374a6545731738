package sftpdeploy

import (
	"path"
	"strings"
)

// Join builds a canonical forward-slash remote path from segments.
// Empty segments are dropped, backslashes become slashes and runs of
// slashes collapse to one, so Join(Join(a, b), c) == Join(a, b, c).
func Join(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return collapseSlashes(strings.ReplaceAll(strings.Join(parts, "/"), `\`, "/"))
}

// ParentOf returns the directory that must exist before remotePath can be written.
func ParentOf(remotePath string) string {
	return path.Dir(Join(remotePath))
}

// Segments splits a remote path into its components, dropping empty and "." parts.
func Segments(remotePath string) []string {
	var out []string
	for _, s := range strings.Split(Join(remotePath), "/") {
		if s != "" && s != "." {
			out = append(out, s)
		}
	}
	return out
}

func collapseSlashes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSlash := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteByte(c)
	}
	return b.String()
}
