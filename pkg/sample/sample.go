package sample

import (
	"log/slog"
	"time"

	"github.com/itohio/goincubator/pkg/incubator"
)

// Sample is one point of incubator history.
type Sample struct {
	Timestamp   time.Time `json:"time"`
	Temperature float64   `json:"temperature"` // °C
	Target      float64   `json:"target"`      // °C
	Humidity    float64   `json:"humidity"`    // %RH
	Duty        float64   `json:"duty"`        // Pre-clamp PID duty
	Heater      bool      `json:"heater"`
	Degrees     int       `json:"degrees"`
}

// Deviation returns Temperature - Target.
func (s Sample) Deviation() float64 {
	return s.Temperature - s.Target
}

// Converter turns a status stream into a sample stream.
type Converter func(in <-chan incubator.Status) <-chan Sample

// NewConverter creates a converter that maps every status to a Sample. The
// output channel closes when the input closes.
func NewConverter(bufSize int) Converter {
	if bufSize <= 0 {
		bufSize = 100
	}

	return func(in <-chan incubator.Status) <-chan Sample {
		out := make(chan Sample, bufSize)

		go func() {
			defer close(out)

			for st := range in {
				select {
				case out <- FromStatus(st):
				case <-time.After(time.Second):
					slog.Warn("Converter output channel full, dropping sample")
				}
			}
		}()

		return out
	}
}

// FromStatus converts a status snapshot.
func FromStatus(st incubator.Status) Sample {
	return Sample{
		Timestamp:   st.Time,
		Temperature: float64(st.Temperature),
		Target:      float64(st.Target),
		Humidity:    float64(st.Humidity),
		Duty:        float64(st.Duty),
		Heater:      st.Heater,
		Degrees:     st.Degrees,
	}
}
