package app

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/viewbridge/internal/shared/id"
)

// MessageType names what a bus message carries.
type MessageType string

const (
	MessageResult  MessageType = "result"
	MessageEvent   MessageType = "event"
	MessageLoad    MessageType = "load"
	MessageSpawned MessageType = "spawned"
	MessageClosed  MessageType = "closed"
)

// Message is one surface notification.
type Message struct {
	Type      MessageType  `json:"type"`
	View      string       `json:"view"`
	ViewID    id.ViewID    `json:"view_id,omitempty"`
	RequestID id.RequestID `json:"request_id,omitempty"`
	Value     string       `json:"value,omitempty"`
	Error     string       `json:"error,omitempty"`
	Name      string       `json:"name,omitempty"`
	Payload   string       `json:"payload,omitempty"`
	Time      time.Time    `json:"time"`
}

// Bus fans messages out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the message.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Message
	next    uint64
	dropped atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]chan Message)}
}

// Subscribe registers a subscriber with the given buffer. The returned
// function unsubscribes and closes the channel; it is safe to call twice.
func (b *Bus) Subscribe(buffer int) (<-chan Message, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Message, buffer)

	b.mu.Lock()
	key := b.next
	b.next++
	b.subs[key] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, key)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers msg to every subscriber with room for it.
func (b *Bus) Publish(msg Message) {
	if msg.Time.IsZero() {
		msg.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- msg:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
