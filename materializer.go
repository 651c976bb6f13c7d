package multidisplay

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// DocumentExtension is the extension of files handed to the rasterizer,
// which only accepts plain file names.
const DocumentExtension = ".pdf"

var invalidNameRun = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// SanitizeFileName replaces every run of characters outside [A-Za-z0-9_-] in
// the base name of a document with a single '-'. The extension is matched
// case-insensitively and written in lower case. Other names are returned
// unchanged.
//
//	SanitizeFileName("report (final).pdf") == "report-final-.pdf"
func SanitizeFileName(name string) string {
	if !strings.HasSuffix(strings.ToLower(name), DocumentExtension) {
		return name
	}
	base := name[:len(name)-len(DocumentExtension)]
	return invalidNameRun.ReplaceAllString(base, "-") + DocumentExtension
}

// Materializer writes received files into a TempDir.
type Materializer struct {
	dir    *TempDir
	logger Logger
}

// NewMaterializer returns a Materializer writing into dir.
func NewMaterializer(dir *TempDir, logger Logger) *Materializer {
	if logger == nil {
		logger = defaultLogger()
	}
	return &Materializer{dir: dir, logger: logger}
}

// Materialize stores data under the sanitized fileName and returns the
// resulting path. The file is written to a temporary name and renamed into
// place once flushed, so the returned path never refers to a partial file.
// An existing file of the same name is replaced.
func (m *Materializer) Materialize(fileName string, data []byte) (string, error) {
	name := SanitizeFileName(fileName)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", &IOError{Path: fileName, Err: ErrInvalidFileName}
	}

	path := filepath.Join(m.dir.Path(), name)

	tmp, err := os.CreateTemp(m.dir.Path(), ".incoming-*.part")
	if err != nil {
		return "", &IOError{Path: path, Err: errors.Wrap(err, "create")}
	}
	tmpPath := tmp.Name()

	if err := writeAndClose(tmp, data); err != nil {
		_ = os.Remove(tmpPath)
		return "", &IOError{Path: path, Err: err}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", &IOError{Path: path, Err: errors.Wrap(err, "rename")}
	}

	m.logger.Debug("file materialized", "file", path, "bytes", len(data))
	return path, nil
}

// fileMode lets display processes running as another user read the files.
const fileMode = 0o644

func writeAndClose(f *os.File, data []byte) error {
	if err := f.Chmod(fileMode); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "chmod")
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "write")
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "sync")
	}
	return errors.Wrap(f.Close(), "close")
}
