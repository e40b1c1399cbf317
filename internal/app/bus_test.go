package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusFanOut(t *testing.T) {
	bus := NewBus()
	a, unsubA := bus.Subscribe(4)
	b, unsubB := bus.Subscribe(4)
	defer unsubA()
	defer unsubB()

	bus.Publish(Message{Type: MessageLoad, View: "hud"})

	for _, ch := range []<-chan Message{a, b} {
		msg := <-ch
		assert.Equal(t, MessageLoad, msg.Type)
		assert.Equal(t, "hud", msg.View)
		assert.False(t, msg.Time.IsZero())
	}
	assert.Equal(t, 2, bus.Subscribers())
}

func TestBusDropsForSlowSubscriber(t *testing.T) {
	bus := NewBus()
	slow, unsub := bus.Subscribe(1)
	defer unsub()

	bus.Publish(Message{Type: MessageEvent, Name: "first"})
	bus.Publish(Message{Type: MessageEvent, Name: "second"})

	assert.Equal(t, "first", (<-slow).Name)
	assert.Equal(t, uint64(1), bus.Dropped())
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus()
	ch, unsub := bus.Subscribe(0)

	unsub()
	unsub()

	_, ok := <-ch
	require.False(t, ok, "channel closed")
	assert.Zero(t, bus.Subscribers())

	bus.Publish(Message{Type: MessageClosed})
	assert.Zero(t, bus.Dropped())
}
