package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	t.Run("publish reaches every subscriber", func(t *testing.T) {
		a := make(chan Event, 1)
		b := make(chan Event, 1)
		bus.Subscribe(a)
		bus.Subscribe(b)
		defer bus.Unsubscribe(a)
		defer bus.Unsubscribe(b)

		bus.Publish(Event{Type: EventSettingsInvalidated})
		assert.Equal(t, EventSettingsInvalidated, (<-a).Type)
		assert.Equal(t, EventSettingsInvalidated, (<-b).Type)
	})

	t.Run("slow subscriber is skipped", func(t *testing.T) {
		full := make(chan Event)
		bus.Subscribe(full)
		defer bus.Unsubscribe(full)

		done := make(chan struct{})
		go func() {
			bus.Publish(Event{Type: EventDeviceRegistered})
			close(done)
		}()
		<-done
	})

	t.Run("unsubscribed channel receives nothing", func(t *testing.T) {
		ch := make(chan Event, 1)
		bus.Subscribe(ch)
		bus.Unsubscribe(ch)
		bus.Publish(Event{Type: EventDeviceRegistered})
		assert.Len(t, ch, 0)
	})
}
