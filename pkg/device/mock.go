package device

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/itohio/goincubator/pkg/config"
)

// Mock simulates an incubator for testing and development: a heated box
// losing heat to the room, a humidity reading and a servo.
type Mock struct {
	cfg *config.MockConfig

	samples   chan RawSample
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool

	heater bool
	servo  int

	// Simulation state
	startTime   time.Time
	temperature float64
	count       int
}

// NewMock creates a new mocked device instance.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		def := config.Default().Mock
		cfg = &def
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Mock{
		cfg:         cfg,
		samples:     make(chan RawSample, DefaultBufferSize),
		ctx:         ctx,
		cancel:      cancel,
		connected:   false,
		servo:       NoServo,
		temperature: cfg.Start,
	}
}

// Connect simulates connecting to the device.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	m.connected = true
	m.startTime = time.Now()

	go m.generateSamples()

	return nil
}

// Close stops the mocked device.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}

	m.cancel()
	m.connected = false
	m.heater = false
	close(m.samples)

	return nil
}

// Samples returns the channel for reading samples.
func (m *Mock) Samples() <-chan RawSample {
	return m.samples
}

// SetHeater sets the simulated heater state.
func (m *Mock) SetHeater(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrNotConnected
	}
	m.heater = on
	return nil
}

// SetServo sets the simulated servo angle.
func (m *Mock) SetServo(degrees int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrNotConnected
	}
	m.servo = max(0, min(180, degrees))
	return nil
}

// ReleaseServo detaches the simulated servo.
func (m *Mock) ReleaseServo() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrNotConnected
	}
	m.servo = NoServo
	return nil
}

// Heater returns the simulated heater state.
func (m *Mock) Heater() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.heater
}

// Servo returns the simulated servo angle, NoServo when released.
func (m *Mock) Servo() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.servo
}

// Temperature returns the simulated chamber temperature.
func (m *Mock) Temperature() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.temperature
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// generateSamples generates simulated samples.
func (m *Mock) generateSamples() {
	ticker := time.NewTicker(m.cfg.SampleRate)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case now := <-ticker.C:
			sample := m.step(now, m.cfg.SampleRate.Seconds()*m.cfg.TimeScale)
			m.publish(sample)
		}
	}
}

// publish delivers a sample unless the device was closed meanwhile.
func (m *Mock) publish(sample RawSample) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.connected {
		return
	}
	select {
	case m.samples <- sample:
	default:
		// Channel full, skip
	}
}

// step advances the thermal model by dt seconds and returns the reading.
func (m *Mock) step(now time.Time, dt float64) RawSample {
	m.mu.Lock()
	defer m.mu.Unlock()

	gain := 0.0
	if m.heater {
		gain = m.cfg.HeaterRate
	}
	loss := m.cfg.LossRate * (m.temperature - m.cfg.Ambient)
	m.temperature += (gain - loss) * dt
	m.count++

	elapsed := now.Sub(m.startTime).Seconds()
	noise := (math.Sin(elapsed*0.7) + math.Cos(elapsed*1.3)) * m.cfg.NoiseLevel * 0.5

	sample := RawSample{
		Timestamp:   now,
		Temperature: quantize(m.temperature + noise),
		Humidity:    quantize(m.cfg.Humidity + noise*2),
		Status:      StatusOK,
		Heater:      m.heater,
		Servo:       m.servo,
	}

	if m.cfg.FaultEvery > 0 && m.count%m.cfg.FaultEvery == 0 {
		// A failed DHT22 read reports zeros.
		sample.Status = StatusTimeout
		sample.Temperature = 0
		sample.Humidity = 0
	}

	return sample
}

// quantize rounds to the firmware's 0.1 resolution.
func quantize(v float64) float32 {
	return float32(math.Round(v*10)) / 10
}
