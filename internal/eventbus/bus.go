package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is an in-memory signal that decouples the scheduler and
// notifier from whoever wants to observe them. Publish never blocks;
// subscribers read from buffered channels and slow ones lose events.
type Event struct {
	Type string // dotted name, e.g. "task.finished"
	Time time.Time
	Data any
}

// Bus is the fanout surface shared by app wiring and the services
// that publish.
type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns an in-memory fanout bus. It owns no goroutines; delivery
// happens on the publisher's stack.
func New() Bus {
	return &fanout{subs: map[uint64]chan Event{}}
}

type fanout struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func (b *fanout) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.RLock()
	targets := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		offer(ch, e)
	}
}

// offer hands the event to one subscriber without blocking. A
// subscriber that unsubscribes mid-publish closes its channel, so the
// send may panic; that race resolves as a drop.
func offer(ch chan Event, e Event) {
	defer func() { _ = recover() }()
	select {
	case ch <- e:
	default:
	}
}

func (b *fanout) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.seq.Add(1)
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { b.drop(id, ch) })
	}
}

// drop removes one subscription. Closing after the delete is safe
// because offer recovers from the send-on-closed race.
func (b *fanout) drop(id uint64, ch chan Event) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
	close(ch)
}
