package service

import (
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"devdash/internal/models"
)

// Subscriber receives every published entry together with its process id.
// Filtering by process id is up to the subscriber.
type Subscriber func(processID string, entry models.LogEntry)

const defaultSubscriberQueue = 256

type delivery struct {
	processID string
	entry     models.LogEntry
}

type subscription struct {
	fn      Subscriber
	queue   chan delivery
	once    sync.Once
	dropped atomic.Uint64
}

// Broker fans log entries out to subscribers. Each subscriber owns a
// buffered queue drained by its own goroutine, so Publish never waits on a
// subscriber. When a queue is full the entry is dropped for that
// subscriber only.
type Broker struct {
	mu        sync.RWMutex
	subs      map[uint64]*subscription
	next      uint64
	queueSize int
	logger    *log.Logger
}

func NewBroker(queueSize int, logger *log.Logger) *Broker {
	if queueSize <= 0 {
		queueSize = defaultSubscriberQueue
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Broker{
		subs:      make(map[uint64]*subscription),
		queueSize: queueSize,
		logger:    logger,
	}
}

// Subscribe registers fn and returns the function that removes it.
// Calling the returned function more than once is safe.
func (b *Broker) Subscribe(fn Subscriber) (unsubscribe func()) {
	sub := &subscription{
		fn:    fn,
		queue: make(chan delivery, b.queueSize),
	}

	b.mu.Lock()
	b.next++
	id := b.next
	b.subs[id] = sub
	b.mu.Unlock()

	go func() {
		for d := range sub.queue {
			sub.fn(d.processID, d.entry)
		}
	}()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		sub.once.Do(func() { close(sub.queue) })
	}
}

// Publish hands entry to every current subscriber without blocking.
func (b *Broker) Publish(processID string, entry models.LogEntry) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, sub := range b.subs {
		select {
		case sub.queue <- delivery{processID: processID, entry: entry}:
		default:
			if n := sub.dropped.Add(1); n == 1 || n%100 == 0 {
				b.logger.Warn("subscriber queue full, dropping entries", "subscriber", id, "dropped", n)
			}
		}
	}
}

// Count returns the number of registered subscribers.
func (b *Broker) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close removes every subscriber.
func (b *Broker) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[uint64]*subscription)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.once.Do(func() { close(sub.queue) })
	}
}
