package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	bus := NewBus()

	var got []*Event
	bus.Subscribe(EpisodeCompleted, func(e *Event) {
		got = append(got, e)
	})

	bus.Publish(&Event{Type: EpisodeCompleted, RunID: "r1"})
	bus.Publish(&Event{Type: RunCompleted, RunID: "r1"}) // different type, not delivered

	assert.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].RunID)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()

	count := 0
	cancel := bus.Subscribe(RunCompleted, func(*Event) { count++ })

	bus.Publish(&Event{Type: RunCompleted})
	cancel()
	bus.Publish(&Event{Type: RunCompleted})

	assert.Equal(t, 1, count)
}

func TestConcurrentPublishIsSafe(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	count := 0
	bus.Subscribe(EpisodeCompleted, func(*Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.Publish(&Event{Type: EpisodeCompleted})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000, count)
}
