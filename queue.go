package multidisplay

import "sync"

// EntryKind tells the dispatcher what the payload of an Entry is.
type EntryKind uint8

const (
	// EntryText carries the text of a StringMessage.
	EntryText EntryKind = iota + 1
	// EntryFile carries the path of a materialized ObjectMessage.
	EntryFile
)

func (k EntryKind) String() string {
	switch k {
	case EntryText:
		return "text"
	case EntryFile:
		return "file"
	default:
		return "unknown"
	}
}

// Entry is a decoded message ready for the display subsystem.
type Entry struct {
	DisplayID uint8
	Kind      EntryKind
	Payload   string
}

// Queue is the FIFO mailbox between the receiving goroutine and the tick
// loop. All methods are safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	entries []Entry
	limit   int
	dropped uint64
}

// NewQueue returns a queue holding at most limit entries, dropping the oldest
// one when full. A limit of zero means unbounded.
func NewQueue(limit int) *Queue {
	if limit < 0 {
		limit = 0
	}
	return &Queue{limit: limit}
}

// Enqueue appends e to the queue.
func (q *Queue) Enqueue(e Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.limit > 0 && len(q.entries) >= q.limit {
		n := copy(q.entries, q.entries[1:])
		q.entries = q.entries[:n]
		q.dropped++
	}
	q.entries = append(q.entries, e)
}

// Drain removes and returns every queued entry in arrival order.
func (q *Queue) Drain() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries := q.entries
	q.entries = nil
	return entries
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Dropped returns how many entries were discarded because the queue was full.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
