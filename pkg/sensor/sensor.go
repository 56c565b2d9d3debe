// Package sensor turns raw temperature/humidity samples into readings that
// are always finite: a faulty sample is replaced by the last good one.
package sensor

import (
	"log/slog"
	"time"

	"github.com/chewxy/math32"

	"github.com/itohio/goincubator/pkg/device"
)

// Reading is a sanitised measurement.
type Reading struct {
	Time        time.Time
	Temperature float32
	Humidity    float32
	Substituted bool // Last good values were used in place of a faulty sample
}

// Sanitizer keeps the last known-good reading.
type Sanitizer struct {
	last    Reading
	faults  int
	samples int
}

// New creates a sanitizer whose fallback, until the first good sample, is
// (temperature, humidity).
func New(temperature, humidity float32) *Sanitizer {
	return &Sanitizer{
		last: Reading{Temperature: temperature, Humidity: humidity},
	}
}

// Update consumes a raw sample and returns the reading to act on.
func (s *Sanitizer) Update(raw device.RawSample) Reading {
	s.samples++

	if !raw.OK() || !finite(raw.Temperature) || !finite(raw.Humidity) {
		s.faults++
		slog.Warn("DHT22 error, using last reading",
			slog.Int("status", raw.Status),
			slog.Float64("temperature", float64(s.last.Temperature)),
			slog.Int("faults", s.faults))
		r := s.last
		r.Time = raw.Timestamp
		r.Substituted = true
		return r
	}

	s.last = Reading{
		Time:        raw.Timestamp,
		Temperature: raw.Temperature,
		Humidity:    raw.Humidity,
	}
	return s.last
}

// Last returns the last known-good reading.
func (s *Sanitizer) Last() Reading {
	return s.last
}

// Temperature returns the last known-good temperature.
func (s *Sanitizer) Temperature() float32 {
	return s.last.Temperature
}

// Humidity returns the last known-good humidity.
func (s *Sanitizer) Humidity() float32 {
	return s.last.Humidity
}

// Faults returns the number of substituted samples.
func (s *Sanitizer) Faults() int {
	return s.faults
}

func finite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}
