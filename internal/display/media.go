package display

import (
	"path/filepath"
	"strings"
)

// Media is the kind of content a display can show.
type Media int

const (
	MediaUnknown Media = iota
	MediaImage
	MediaVideo
	MediaDocument
)

func (m Media) String() string {
	switch m {
	case MediaImage:
		return "image"
	case MediaVideo:
		return "video"
	case MediaDocument:
		return "document"
	default:
		return "unknown"
	}
}

// Classify returns the media kind of a file from its extension.
func Classify(path string) Media {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return MediaImage
	case ".ogg", ".ogv":
		return MediaVideo
	case ".pdf":
		return MediaDocument
	default:
		return MediaUnknown
	}
}

// Command is a UI command sent to a display.
type Command string

const (
	CommandPlay     Command = "playVideo"
	CommandPause    Command = "pauseVideo"
	CommandStop     Command = "stopVideo"
	CommandNext     Command = "nextSlide"
	CommandPrevious Command = "previousSlide"
)

// ParseCommand maps text to a known Command.
func ParseCommand(text string) (Command, bool) {
	switch cmd := Command(strings.TrimSpace(text)); cmd {
	case CommandPlay, CommandPause, CommandStop, CommandNext, CommandPrevious:
		return cmd, true
	default:
		return "", false
	}
}
