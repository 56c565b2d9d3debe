package meter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/itohio/goincubator/pkg/sample"
)

// TestMeter_GracefulShutdown_NoCallbacksAfterClose tests that meter stops sending
// callbacks after the input channel is closed.
func TestMeter_GracefulShutdown_NoCallbacksAfterClose(t *testing.T) {
	m := New(testConfig())

	var mu sync.Mutex
	callbackCount := 0
	m.OnUpdate(func(samples []sample.Sample, rates []float64, exc []Excursion) {
		mu.Lock()
		callbackCount++
		mu.Unlock()
	})

	input := make(chan sample.Sample, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.ProcessSamples(input)
	}()

	now := time.Now()
	for i := 0; i < 3; i++ {
		input <- sample.Sample{
			Timestamp:   now.Add(time.Duration(i) * time.Second),
			Temperature: 37 + float64(i)*0.1,
		}
	}
	close(input)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ProcessSamples did not finish within timeout")
	}

	mu.Lock()
	initialCount := callbackCount
	mu.Unlock()
	assert.Equal(t, 3, initialCount)

	// A late sample is still recorded but not announced.
	m.processSample(sample.Sample{Timestamp: now.Add(3 * time.Second), Temperature: 37.5})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, initialCount, callbackCount, "No callbacks should be sent after channel closes")
	assert.Len(t, m.Samples(), 4)
}

// TestMeter_ResetShutdown tests that ResetShutdown allows callbacks again.
func TestMeter_ResetShutdown(t *testing.T) {
	m := New(testConfig())

	callbackCount := 0
	callbackMu := &sync.Mutex{}
	m.OnUpdate(func(samples []sample.Sample, rates []float64, exc []Excursion) {
		callbackMu.Lock()
		callbackCount++
		callbackMu.Unlock()
	})

	// First chain - send and close
	input1 := make(chan sample.Sample, 10)
	done1 := make(chan struct{})
	go func() {
		defer close(done1)
		m.ProcessSamples(input1)
	}()

	// Send samples with enough time difference to create a rate
	now := time.Now()
	input1 <- sample.Sample{Timestamp: now, Temperature: 37.1}
	time.Sleep(100 * time.Millisecond)
	input1 <- sample.Sample{Timestamp: now.Add(100 * time.Millisecond), Temperature: 37.2}
	time.Sleep(50 * time.Millisecond)

	// Close input and wait for ProcessSamples to finish
	// This ensures the goroutine has exited and shutdown flag is set
	close(input1)
	select {
	case <-done1:
		// ProcessSamples finished - shutdown flag should now be set
	case <-time.After(2 * time.Second):
		t.Fatal("First ProcessSamples did not finish within timeout")
	}

	callbackMu.Lock()
	count1 := callbackCount
	callbackMu.Unlock()

	// Reset shutdown flag (now safe since first goroutine is done and shutdown is set)
	m.ResetShutdown()

	// Second chain - should work again
	input2 := make(chan sample.Sample, 10)
	done2 := make(chan struct{})
	go func() {
		defer close(done2)
		m.ProcessSamples(input2)
	}()

	// Send samples with enough time difference to create a rate
	now2 := time.Now()
	input2 <- sample.Sample{Timestamp: now2, Temperature: 37.3}
	time.Sleep(100 * time.Millisecond)
	input2 <- sample.Sample{Timestamp: now2.Add(100 * time.Millisecond), Temperature: 37.4}
	time.Sleep(50 * time.Millisecond)

	// Close input and wait for ProcessSamples to finish
	close(input2)
	select {
	case <-done2:
		// ProcessSamples finished
	case <-time.After(2 * time.Second):
		t.Fatal("Second ProcessSamples did not finish within timeout")
	}

	callbackMu.Lock()
	count2 := callbackCount
	callbackMu.Unlock()

	// Should have received more callbacks after reset
	assert.Greater(t, count2, count1, "Callbacks should resume after ResetShutdown")
}
