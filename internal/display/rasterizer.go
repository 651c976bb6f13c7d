package display

import (
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

// Rasterizer converts a document into page images named after outputPrefix
// and returns the number of pages.
type Rasterizer interface {
	Convert(pdfPath, outputPrefix string) (int, error)
}

// NopRasterizer converts nothing and reports zero pages.
type NopRasterizer struct{}

func (NopRasterizer) Convert(string, string) (int, error) { return 0, nil }

// Ghostscript rasterizes documents with the gs binary into
// <outputPrefix>-<page>.png files.
type Ghostscript struct {
	// Binary defaults to "gs".
	Binary string
	// Resolution in DPI; defaults to 150.
	Resolution int
}

func (g Ghostscript) Convert(pdfPath, outputPrefix string) (int, error) {
	binary := g.Binary
	if binary == "" {
		binary = "gs"
	}
	resolution := g.Resolution
	if resolution <= 0 {
		resolution = 150
	}

	cmd := exec.Command(binary,
		"-dNOPAUSE", "-dBATCH", "-dSAFER", "-q",
		"-sDEVICE=png16m",
		"-r"+strconv.Itoa(resolution),
		"-sOutputFile="+outputPrefix+"-%d.png",
		pdfPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return 0, errors.Wrapf(err, "ghostscript: %s", out)
	}

	pages, err := filepath.Glob(outputPrefix + "-*.png")
	if err != nil {
		return 0, errors.Wrap(err, "list pages")
	}
	return len(pages), nil
}
