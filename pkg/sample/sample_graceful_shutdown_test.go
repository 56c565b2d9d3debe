package sample

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/itohio/goincubator/pkg/incubator"
)

// TestConverter_GracefulShutdown tests that converter closes output channel
// when input channel is closed while a reader is still draining it.
func TestConverter_GracefulShutdown(t *testing.T) {
	converter := NewConverter(10)
	input := make(chan incubator.Status, 10)
	output := converter(input)

	received := make(chan int, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		count := 0
		for range output {
			count++
		}
		received <- count
	}()

	now := time.Now()
	numSamples := 3
	for i := 0; i < numSamples; i++ {
		input <- incubator.Status{Time: now.Add(time.Duration(i) * time.Second), Temperature: 37.5}
	}

	close(input)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Output channel did not close within timeout")
	}

	select {
	case count := <-received:
		assert.Equal(t, numSamples, count, "Should receive all samples before channel closes")
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Did not receive sample count")
	}
}
