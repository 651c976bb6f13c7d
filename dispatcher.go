package multidisplay

// Display is the subsystem that renders content on the displays.
type Display interface {
	// ApplyUserInput applies a UI command to a display.
	ApplyUserInput(displayID uint8, text string)
	// ApplyFile shows a received file on a display. tempDirRoot is where the
	// display may put derived files, such as rasterized document pages.
	ApplyFile(displayID uint8, path, tempDirRoot string)
}

// Dispatcher hands queued entries to the display subsystem. It runs on the
// application's tick and never blocks.
type Dispatcher struct {
	queue    *Queue
	display  Display
	tempRoot string
	logger   Logger
}

// NewDispatcher returns a Dispatcher draining queue into display.
func NewDispatcher(queue *Queue, display Display, tempRoot string, logger Logger) *Dispatcher {
	if logger == nil {
		logger = defaultLogger()
	}
	return &Dispatcher{
		queue:    queue,
		display:  display,
		tempRoot: tempRoot,
		logger:   logger,
	}
}

// Tick drains the queue and applies every entry in order. It returns the
// number of entries handed to the display.
func (d *Dispatcher) Tick() int {
	applied := 0
	for _, e := range d.queue.Drain() {
		switch e.Kind {
		case EntryText:
			d.display.ApplyUserInput(e.DisplayID, e.Payload)
		case EntryFile:
			d.display.ApplyFile(e.DisplayID, e.Payload, d.tempRoot)
		default:
			d.logger.Warn("discarding entry", "display_id", e.DisplayID, "kind", e.Kind)
			continue
		}
		applied++
	}
	return applied
}
