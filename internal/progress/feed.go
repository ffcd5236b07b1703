// Package progress carries human-readable run events from the lookup worker
// to whatever presents them. The feed is unbounded and ordered: Publish never
// blocks the producer, and the consumer sees events in publish order.
package progress

import (
	"sync"
	"time"

	"github.com/sells-group/asp-search/internal/model"
)

// Kind classifies an event.
type Kind string

const (
	KindInfo     Kind = "info"
	KindWarning  Kind = "warning"
	KindRecord   Kind = "record"
	KindComplete Kind = "complete"
)

// Event is one progress message.
type Event struct {
	Seq     uint64
	Time    time.Time
	Kind    Kind
	Message string

	// Record is set on KindRecord events.
	Record *model.Record
	// Summary is set on the KindComplete event.
	Summary *model.RunSummary
}

// Publisher accepts events without blocking.
type Publisher interface {
	Publish(Event)
}

// Feed is a single-producer, single-consumer event queue. The consumer must
// drain Events until it is closed.
type Feed struct {
	mu     sync.Mutex
	queue  []Event
	seq    uint64
	closed bool

	wake chan struct{}
	out  chan Event
}

// NewFeed starts a feed and its delivery goroutine.
func NewFeed() *Feed {
	f := &Feed{
		wake: make(chan struct{}, 1),
		out:  make(chan Event),
	}
	go f.pump()
	return f
}

// Publish appends e to the feed. Events published after Close are dropped.
func (f *Feed) Publish(e Event) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.seq++
	e.Seq = f.seq
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	f.queue = append(f.queue, e)
	f.mu.Unlock()
	f.notify()
}

// Close stops accepting events. Already queued events are still delivered,
// after which Events is closed. Close is idempotent.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.mu.Unlock()
	f.notify()
}

// Events returns the delivery channel.
func (f *Feed) Events() <-chan Event {
	return f.out
}

func (f *Feed) notify() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *Feed) pump() {
	defer close(f.out)
	for {
		f.mu.Lock()
		batch := f.queue
		f.queue = nil
		closed := f.closed
		f.mu.Unlock()

		for _, e := range batch {
			f.out <- e
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-f.wake
	}
}

// Drain collects every remaining event until the feed is closed.
func Drain(f *Feed) []Event {
	var out []Event
	for e := range f.Events() {
		out = append(out, e)
	}
	return out
}

// Discard is a Publisher that drops everything.
type Discard struct{}

func (Discard) Publish(Event) {}
