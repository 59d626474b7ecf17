package activity

import (
	"sync"

	"go.uber.org/zap"
)

// Notifier receives ledger activity. Notify must not block the caller and
// has no way to fail the operation that produced the entry.
type Notifier interface {
	Notify(e Entry)
}

// Discard drops every entry.
type Discard struct{}

func (Discard) Notify(Entry) {}

// DefaultQueueSize is used when NewLog is given a non-positive size.
const DefaultQueueSize = 256

// Log appends entries to a CSV file from a background goroutine. Entries
// that arrive while the queue is full, and entries that fail to write, are
// logged and dropped.
type Log struct {
	path  string
	log   *zap.Logger
	queue chan Entry
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewLog starts a writer for the log file at path.
func NewLog(path string, size int, log *zap.Logger) *Log {
	if size <= 0 {
		size = DefaultQueueSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	l := &Log{
		path:  path,
		log:   log,
		queue: make(chan Entry, size),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

// Notify queues e for writing.
func (l *Log) Notify(e Entry) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		l.log.Warn("activity log closed, dropping entry", zap.String("action", e.Action), zap.String("reference", e.Reference))
		return
	}
	select {
	case l.queue <- e:
	default:
		l.log.Warn("activity queue full, dropping entry", zap.String("action", e.Action), zap.String("reference", e.Reference))
	}
}

// Close stops accepting entries and waits for queued ones to be written.
func (l *Log) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	<-l.done
	return nil
}

func (l *Log) run() {
	defer close(l.done)
	for e := range l.queue {
		if err := Append(l.path, []Entry{e}); err != nil {
			l.log.Error("writing activity entry",
				zap.String("action", e.Action),
				zap.String("reference", e.Reference),
				zap.Error(err))
		}
	}
}
