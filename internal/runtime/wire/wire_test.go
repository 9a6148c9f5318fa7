package wire

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWire_ReadTerminatesAfterClose(t *testing.T) {
	w := New(8)
	w.Write(Event{Type: EventRunStarted, RunID: "r1"})
	w.Write(Event{Type: EventRunCompleted, RunID: "r1"})
	w.Close()

	var got []Event
	for e := range w.Read() {
		got = append(got, e)
	}
	require.Len(t, got, 2)
	assert.Equal(t, EventRunStarted, got[0].Type)
	assert.Equal(t, EventRunCompleted, got[1].Type)
}

func TestWire_WritesAfterCloseAreDropped(t *testing.T) {
	w := New(8)
	w.Close()
	done := make(chan struct{})
	go func() {
		w.Write(Event{Type: EventError})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Write after Close should not block")
	}
}

func TestWire_ConcurrentProducersAllObserved(t *testing.T) {
	w := New(64)
	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			w.Write(Event{Type: EventStepCompleted, RunID: "r1", Depth: i})
		}(i)
	}
	wg.Wait()
	w.Close()

	count := 0
	for range w.Read() {
		count++
	}
	assert.Equal(t, n, count)
}

func TestWire_SecondReaderAlsoObservesTermination(t *testing.T) {
	w := New(4)
	w.Write(Event{Type: EventRunStarted})
	w.Close()

	for range w.Read() {
	}

	done := make(chan struct{})
	go func() {
		for range w.Read() {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second Read should also terminate once the sentinel is re-posted")
	}
}
