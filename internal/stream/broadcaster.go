// Package stream fans dataset events out to live subscribers.
package stream

import (
	"sync"
	"sync/atomic"

	"github.com/mr1hm/go-shelter-finder/internal/models"
)

const defaultBuffer = 16

type Broadcaster struct {
	subscribers map[uint64]chan models.DatasetEvent
	nextID      atomic.Uint64
	dropped     atomic.Uint64
	buffer      int
	closed      bool
	mu          sync.RWMutex
}

func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Broadcaster{
		subscribers: make(map[uint64]chan models.DatasetEvent),
		buffer:      buffer,
	}
}

// Subscribe registers a new listener. After Close it returns an already
// closed channel.
func (b *Broadcaster) Subscribe() (uint64, <-chan models.DatasetEvent) {
	id := b.nextID.Add(1)
	ch := make(chan models.DatasetEvent, b.buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return id, ch
	}
	b.subscribers[id] = ch

	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) Broadcast(e models.DatasetEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			// slow subscriber
			b.dropped.Add(1)
		}
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Dropped returns how many deliveries were skipped because a subscriber's buffer was full.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes all subscriber channels, ending their streams.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
