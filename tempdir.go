package multidisplay

import (
	"os"

	"github.com/pkg/errors"
)

// TempDir is the directory received files of one client are written to.
// It is emptied at the start of every session.
type TempDir struct {
	path string
}

// NewTempDir returns a TempDir rooted at path. Nothing is created until Reset.
func NewTempDir(path string) *TempDir {
	return &TempDir{path: path}
}

// Path returns the directory path.
func (d *TempDir) Path() string {
	return d.path
}

// Reset deletes the directory with everything in it and creates it again.
// Calling it on a missing directory just creates it.
func (d *TempDir) Reset() error {
	if err := os.RemoveAll(d.path); err != nil {
		return &IOError{Path: d.path, Err: errors.Wrap(err, "remove")}
	}
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return &IOError{Path: d.path, Err: errors.Wrap(err, "create")}
	}
	return nil
}

// Remove deletes the directory. Removing a missing directory is not an error.
func (d *TempDir) Remove() error {
	if err := os.RemoveAll(d.path); err != nil {
		return &IOError{Path: d.path, Err: errors.Wrap(err, "remove")}
	}
	return nil
}
