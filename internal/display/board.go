// Package display keeps the state of the displays of one installation. It is
// the console stand-in for a renderer: content is tracked and logged, not drawn.
package display

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Zereker/multidisplay"
)

var _ multidisplay.Display = (*Board)(nil)

// State is what one display currently shows.
type State struct {
	File      string
	Media     Media
	Playing   bool
	Page      int
	PageCount int
	LastInput string
}

// Board tracks every display of an installation.
type Board struct {
	rasterizer Rasterizer
	logger     multidisplay.Logger

	mu     sync.Mutex
	states map[uint8]*State
	fixed  bool
}

// NewBoard returns a Board for the given display ids. With no ids every
// display id is accepted.
func NewBoard(ids []uint8, rasterizer Rasterizer, logger multidisplay.Logger) *Board {
	if rasterizer == nil {
		rasterizer = NopRasterizer{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	b := &Board{
		rasterizer: rasterizer,
		logger:     logger,
		states:     make(map[uint8]*State),
		fixed:      len(ids) > 0,
	}
	for _, id := range ids {
		b.states[id] = &State{}
	}
	return b
}

// ApplyFile loads a file on a display. Documents are rasterized into a
// folder named after the file under tempDirRoot.
func (b *Board) ApplyFile(displayID uint8, path, tempDirRoot string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.state(displayID)
	if !ok {
		b.logger.Warn("no such display", "display_id", displayID, "file", path)
		return
	}

	*st = State{File: path, Media: Classify(path)}

	switch st.Media {
	case MediaUnknown:
		b.logger.Warn("unsupported file format", "display_id", displayID, "file", path)
	case MediaDocument:
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		pagesDir := filepath.Join(tempDirRoot, name)
		if err := os.MkdirAll(pagesDir, 0o755); err != nil {
			b.logger.Error("cannot create page folder", "display_id", displayID, "dir", pagesDir, "error", err)
			return
		}
		pages, err := b.rasterizer.Convert(path, filepath.Join(pagesDir, name))
		if err != nil {
			b.logger.Error("rasterizing failed", "display_id", displayID, "file", path, "error", err)
			return
		}
		st.PageCount = pages
	}

	b.logger.Info("display updated", "display_id", displayID, "media", st.Media, "file", path, "pages", st.PageCount)
}

// ApplyUserInput applies a command to a display.
func (b *Board) ApplyUserInput(displayID uint8, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.state(displayID)
	if !ok {
		b.logger.Warn("no such display", "display_id", displayID, "input", text)
		return
	}
	st.LastInput = text

	cmd, ok := ParseCommand(text)
	if !ok {
		b.logger.Info("display input", "display_id", displayID, "input", text)
		return
	}

	switch cmd {
	case CommandPlay, CommandPause:
		if st.Media == MediaVideo {
			st.Playing = !st.Playing
		}
	case CommandStop:
		st.Playing = false
	case CommandNext:
		if st.Media == MediaDocument && st.Page < st.PageCount-1 {
			st.Page++
		}
	case CommandPrevious:
		if st.Media == MediaDocument && st.Page > 0 {
			st.Page--
		}
	}

	b.logger.Info("display command", "display_id", displayID, "command", cmd,
		"playing", st.Playing, "page", st.Page, "pages", st.PageCount)
}

// Snapshot returns a copy of the state of a display.
func (b *Board) Snapshot(displayID uint8) (State, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.states[displayID]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// state returns the state of a display, creating it on an open board.
func (b *Board) state(displayID uint8) (*State, bool) {
	st, ok := b.states[displayID]
	if !ok && !b.fixed {
		st = &State{}
		b.states[displayID] = st
		ok = true
	}
	return st, ok
}
