package server

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
)

var ErrPathOutsideBase = errors.New("path escapes the library directory")

// resolvePath anchors a caller-supplied relative path inside the library
// base directory and rejects traversal attempts. Every filesystem-touching
// handler goes through this.
func (s *Server) resolvePath(relative string) (string, error) {
	base := s.cfg.Library.BaseDir
	resolved := filepath.Clean(filepath.Join(base, relative))

	rel, err := filepath.Rel(base, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		slog.Warn("Path traversal attempt", "path", relative, "resolved", resolved)
		return "", ErrPathOutsideBase
	}
	return resolved, nil
}

// relativeToBase converts an absolute library path back to the relative
// form the frontend uses.
func (s *Server) relativeToBase(path string) string {
	rel, err := filepath.Rel(s.cfg.Library.BaseDir, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
