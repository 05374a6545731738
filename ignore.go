package sftpdeploy

import (
	"errors"
	"io/fs"
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"
)

// DefaultIgnoreFile is read from the local root when no other file is named.
const DefaultIgnoreFile = ".deployignore"

// Matcher decides whether a path below an uploaded directory is left out.
type Matcher interface {
	MatchesPath(path string) bool
}

// LoadIgnoreFile compiles a gitignore-style file. A missing file yields a
// matcher that excludes nothing.
func LoadIgnoreFile(path string) (*ignore.GitIgnore, error) {
	ig, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ignore.CompileIgnoreLines(), nil
		}
		return nil, err
	}
	return ig, nil
}

// excluded reports whether rel (relative to the manifest entry, OS separators)
// matches m. Directories are matched with a trailing slash.
func excluded(m Matcher, rel string, isDir bool) bool {
	if m == nil || rel == "" {
		return false
	}
	p := filepath.ToSlash(rel)
	if isDir {
		p += "/"
	}
	return m.MatchesPath(p)
}
