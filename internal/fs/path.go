package fs

import (
	"path"
	"strings"
)

// SourcePath represents a path in the source tree, relative to its root.
// The root itself is the empty path.
type SourcePath struct {
	// relative path from source root, never starting with "/" or ".."
	path string
}

// NewSourcePath creates a new SourcePath instance.
// It cleans the path and ensures it's relative to the source root.
func NewSourcePath(p string) SourcePath {
	cleaned := path.Clean("/" + p)
	cleaned = strings.TrimPrefix(cleaned, "/")
	return SourcePath{path: cleaned}
}

// String returns the string representation of the path
func (sp SourcePath) String() string {
	return sp.path
}

// IsRoot returns true for the source root.
func (sp SourcePath) IsRoot() bool {
	return sp.path == ""
}

// Parent returns a SourcePath representing the parent directory. The
// root is its own parent.
func (sp SourcePath) Parent() SourcePath {
	parent := path.Dir(sp.path)
	if parent == "." {
		parent = ""
	}
	return SourcePath{path: parent}
}

// Child resolves a single directory entry name against sp. "." and ".."
// are honoured without ever leaving the root; names containing a slash or
// a NUL byte are rejected.
func (sp SourcePath) Child(name string) (SourcePath, error) {
	switch {
	case name == "" || strings.ContainsAny(name, "/\x00"):
		return SourcePath{}, ErrInvalidArgument
	case name == ".":
		return sp, nil
	case name == "..":
		return sp.Parent(), nil
	case sp.IsRoot():
		return SourcePath{path: name}, nil
	default:
		return SourcePath{path: sp.path + "/" + name}, nil
	}
}
