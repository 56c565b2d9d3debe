// Package meter keeps a time-windowed history of incubator samples, the
// heating rate between consecutive samples and temperature excursions away
// from the target.
package meter

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/itohio/goincubator/pkg/config"
	"github.com/itohio/goincubator/pkg/sample"
)

var _ History = (*Meter)(nil)

// Excursion is a period during which the temperature stayed further than
// the alarm threshold from the target.
type Excursion struct {
	StartIndex int       `json:"start_index"` // Start sample index in buffer
	EndIndex   int       `json:"end_index"`   // End sample index in buffer (updated while open)
	StartTime  time.Time `json:"start"`
	EndTime    time.Time `json:"end"`
	Peak       float64   `json:"peak"` // Largest signed deviation from target (°C)
	Open       bool      `json:"open"` // Still ongoing at the newest sample

	reported bool
}

// Duration returns how long the excursion lasted so far.
func (e Excursion) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}

// History processes samples, maintains buffers, and detects excursions.
type History interface {
	ProcessSamples(input <-chan sample.Sample)
	Samples() []sample.Sample                                                 // Current samples (FIFO, oldest first)
	Rates() []float64                                                         // °C/min between consecutive samples (n-1 for n samples)
	Excursions() []Excursion                                                  // Excursions at least MinAlarm long
	Alarm() bool                                                              // An excursion is ongoing and long enough to report
	OnUpdate(func(samples []sample.Sample, rates []float64, exc []Excursion)) // Register callback for updates
}

// Meter implements History.
type Meter struct {
	// Buffers are ordered oldest first and trimmed by timestamp.
	// rates[i] = (samples[i+1].Temperature - samples[i].Temperature) / dt
	samples    []sample.Sample
	rates      []float64
	excursions []Excursion

	mu sync.RWMutex

	callbacks []func(samples []sample.Sample, rates []float64, exc []Excursion)
	cbMu      sync.RWMutex

	window    time.Duration
	threshold float64
	minAlarm  time.Duration

	// Set when the input channel closes, prevents further callbacks
	shutdown bool
}

// New creates a history meter.
func New(cfg *config.HistoryConfig) *Meter {
	return &Meter{
		samples:    make([]sample.Sample, 0),
		rates:      make([]float64, 0),
		excursions: make([]Excursion, 0),
		window:     cfg.Window,
		threshold:  cfg.AlarmThreshold,
		minAlarm:   cfg.MinAlarm,
	}
}

// ProcessSamples consumes samples until the input channel closes.
func (m *Meter) ProcessSamples(input <-chan sample.Sample) {
	for s := range input {
		m.processSample(s)
	}
	m.mu.Lock()
	m.shutdown = true
	m.mu.Unlock()
}

// processSample appends a sample, trims the window, updates rates and
// excursions, then notifies callbacks.
func (m *Meter) processSample(s sample.Sample) {
	m.mu.Lock()

	m.samples = append(m.samples, s)
	m.trim(s.Timestamp.Add(-m.window))

	if n := len(m.samples); n >= 2 {
		prev := m.samples[n-2]
		dt := s.Timestamp.Sub(prev.Timestamp).Minutes()
		rate := 0.0
		if dt > 0 {
			rate = (s.Temperature - prev.Temperature) / dt
		}
		m.rates = append(m.rates, rate)
	}

	m.updateExcursions()

	shouldNotify := !m.shutdown
	m.mu.Unlock()

	if shouldNotify {
		m.notifyCallbacks()
	}
}

// trim drops samples at or before cutoff along with their rates, and shifts
// excursion indices.
func (m *Meter) trim(cutoff time.Time) {
	cut := 0
	for cut < len(m.samples)-1 && !m.samples[cut].Timestamp.After(cutoff) {
		cut++
	}
	if cut == 0 {
		return
	}

	m.samples = m.samples[cut:]
	if cut <= len(m.rates) {
		m.rates = m.rates[cut:]
	} else {
		m.rates = m.rates[:0]
	}

	valid := m.excursions[:0]
	for _, e := range m.excursions {
		e.StartIndex -= cut
		e.EndIndex -= cut
		if e.EndIndex < 0 {
			continue
		}
		if e.StartIndex < 0 {
			e.StartIndex = 0
		}
		valid = append(valid, e)
	}
	m.excursions = valid
}

func (m *Meter) updateExcursions() {
	last := len(m.samples) - 1
	s := m.samples[last]
	dev := s.Deviation()

	var open *Excursion
	if n := len(m.excursions); n > 0 && m.excursions[n-1].Open {
		open = &m.excursions[n-1]
	}

	if math.Abs(dev) <= m.threshold {
		if open != nil {
			open.Open = false
			if open.reported {
				slog.Info("Temperature back in range",
					slog.Duration("duration", open.Duration()),
					slog.Float64("peak", open.Peak))
			}
		}
		return
	}

	if open == nil {
		m.excursions = append(m.excursions, Excursion{
			StartIndex: last,
			EndIndex:   last,
			StartTime:  s.Timestamp,
			EndTime:    s.Timestamp,
			Peak:       dev,
			Open:       true,
		})
		open = &m.excursions[len(m.excursions)-1]
	} else {
		open.EndIndex = last
		open.EndTime = s.Timestamp
		if math.Abs(dev) > math.Abs(open.Peak) {
			open.Peak = dev
		}
	}

	if !open.reported && open.Duration() >= m.minAlarm {
		open.reported = true
		slog.Warn("Temperature out of range",
			slog.Float64("temperature", s.Temperature),
			slog.Float64("target", s.Target),
			slog.Duration("for", open.Duration()))
	}
}

// Samples returns a copy of the current samples buffer.
func (m *Meter) Samples() []sample.Sample {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]sample.Sample, len(m.samples))
	copy(result, m.samples)
	return result
}

// Rates returns a copy of the heating rates in °C/min.
func (m *Meter) Rates() []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]float64, len(m.rates))
	copy(result, m.rates)
	return result
}

// Excursions returns the excursions lasting at least the alarm duration.
func (m *Meter) Excursions() []Excursion {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reportable()
}

func (m *Meter) reportable() []Excursion {
	result := make([]Excursion, 0, len(m.excursions))
	for _, e := range m.excursions {
		if e.Duration() >= m.minAlarm {
			result = append(result, e)
		}
	}
	return result
}

// Alarm reports whether a long enough excursion is ongoing.
func (m *Meter) Alarm() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.excursions)
	return n > 0 && m.excursions[n-1].Open && m.excursions[n-1].reported
}

// OnUpdate registers a callback invoked after every sample. The callback
// receives copies and should return quickly.
func (m *Meter) OnUpdate(callback func(samples []sample.Sample, rates []float64, exc []Excursion)) {
	m.cbMu.Lock()
	defer m.cbMu.Unlock()
	m.callbacks = append(m.callbacks, callback)
}

// ResetShutdown allows callbacks again after the input channel closed.
// Call it before starting a new ProcessSamples chain.
func (m *Meter) ResetShutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdown = false
}

// notifyCallbacks copies data under the read lock and calls callbacks
// without holding any lock.
func (m *Meter) notifyCallbacks() {
	m.mu.RLock()
	samplesCopy := make([]sample.Sample, len(m.samples))
	copy(samplesCopy, m.samples)
	ratesCopy := make([]float64, len(m.rates))
	copy(ratesCopy, m.rates)
	excCopy := m.reportable()
	m.mu.RUnlock()

	m.cbMu.RLock()
	callbacks := make([]func(samples []sample.Sample, rates []float64, exc []Excursion), len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(samplesCopy, ratesCopy, excCopy)
		}
	}
}
