package device

import (
	"testing"
	"time"

	"github.com/itohio/goincubator/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMockConfig() *config.MockConfig {
	return &config.MockConfig{
		Ambient:    20.0,
		Start:      30.0,
		HeaterRate: 0.1,
		LossRate:   0.01,
		NoiseLevel: 0,
		Humidity:   60.0,
		SampleRate: 20 * time.Millisecond,
		TimeScale:  1.0,
	}
}

func TestNewMock(t *testing.T) {
	cfg := testMockConfig()

	dev := NewMock(cfg)
	assert.NotNil(t, dev)
	assert.Equal(t, cfg, dev.cfg)
	assert.NotNil(t, dev.samples)
	assert.False(t, dev.IsConnected())
	assert.Equal(t, NoServo, dev.Servo())
	assert.Equal(t, 30.0, dev.Temperature())
}

func TestNewMock_NilConfig(t *testing.T) {
	dev := NewMock(nil)
	assert.NotNil(t, dev)
	assert.NotNil(t, dev.cfg)
	assert.Equal(t, config.Default().Mock.Ambient, dev.cfg.Ambient)
	assert.Equal(t, time.Second, dev.cfg.SampleRate)
}

func TestMock_CommandsRequireConnection(t *testing.T) {
	dev := NewMock(testMockConfig())

	err := dev.SetHeater(true)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Contains(t, err.Error(), "not connected")
	assert.ErrorIs(t, dev.SetServo(90), ErrNotConnected)
	assert.ErrorIs(t, dev.ReleaseServo(), ErrNotConnected)
}

func TestMock_Commands(t *testing.T) {
	dev := NewMock(testMockConfig())
	require.NoError(t, dev.Connect())
	defer dev.Close()

	require.NoError(t, dev.SetHeater(true))
	assert.True(t, dev.Heater())
	require.NoError(t, dev.SetHeater(false))
	assert.False(t, dev.Heater())

	require.NoError(t, dev.SetServo(135))
	assert.Equal(t, 135, dev.Servo())
	require.NoError(t, dev.SetServo(500))
	assert.Equal(t, 180, dev.Servo())
	require.NoError(t, dev.ReleaseServo())
	assert.Equal(t, NoServo, dev.Servo())
}

func TestMock_Connect_AlreadyConnected(t *testing.T) {
	dev := NewMock(testMockConfig())

	err := dev.Connect()
	assert.NoError(t, err)
	defer dev.Close()

	err = dev.Connect()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already connected")
}

func TestMock_Close_NotConnected(t *testing.T) {
	dev := NewMock(testMockConfig())

	err := dev.Close()
	assert.NoError(t, err) // Should not error when not connected
}

func TestMock_Close_SwitchesHeaterOff(t *testing.T) {
	dev := NewMock(testMockConfig())
	require.NoError(t, dev.Connect())
	require.NoError(t, dev.SetHeater(true))

	require.NoError(t, dev.Close())
	assert.False(t, dev.IsConnected())
	assert.False(t, dev.Heater())
}

func TestMock_CloseWhileStreaming(t *testing.T) {
	dev := NewMock(testMockConfig())
	require.NoError(t, dev.Connect())
	require.NoError(t, dev.SetHeater(true))
	require.NoError(t, dev.SetServo(120))

	samples := dev.Samples()
	deadline := time.After(5 * time.Second)

	// Wait until the outputs show up in the stream, then shut down mid-flight.
	for seen := false; !seen; {
		select {
		case s, ok := <-samples:
			require.True(t, ok, "samples closed before Close")
			seen = s.Heater && s.Servo == 120
		case <-deadline:
			t.Fatal("no sample reported the heater on")
		}
	}
	require.NoError(t, dev.Close())

	for open := true; open; {
		select {
		case _, open = <-samples:
		case <-deadline:
			t.Fatal("samples channel did not close")
		}
	}

	assert.False(t, dev.Heater(), "heater must not stay on after shutdown")
	assert.Equal(t, 120, dev.Servo())
	assert.ErrorIs(t, dev.SetHeater(true), ErrNotConnected)
	assert.ErrorIs(t, dev.SetServo(90), ErrNotConnected)
	assert.False(t, dev.Heater())
	assert.NoError(t, dev.Close())
}

func TestMock_step_ThermalModel(t *testing.T) {
	cfg := testMockConfig()
	dev := NewMock(cfg)
	now := time.Now()
	dev.startTime = now

	// Heater off: loses 1% of (30-20) per second.
	s := dev.step(now, 1)
	assert.InDelta(t, 29.9, dev.Temperature(), 1e-9)
	assert.Equal(t, float32(29.9), s.Temperature)
	assert.Equal(t, float32(60), s.Humidity)
	assert.True(t, s.OK())

	// Heater on: gains 0.1 and loses 0.099.
	dev.heater = true
	s = dev.step(now, 1)
	assert.InDelta(t, 29.901, dev.Temperature(), 1e-9)
	assert.True(t, s.Heater)
}

func TestMock_step_FaultInjection(t *testing.T) {
	cfg := testMockConfig()
	cfg.FaultEvery = 3
	dev := NewMock(cfg)
	now := time.Now()

	var faults int
	for range 9 {
		s := dev.step(now, 1)
		if !s.OK() {
			faults++
			assert.Equal(t, float32(0), s.Temperature)
			assert.Equal(t, StatusTimeout, s.Status)
		}
	}
	assert.Equal(t, 3, faults)
}

func TestQuantize(t *testing.T) {
	assert.Equal(t, float32(37.5), quantize(37.46))
	assert.Equal(t, float32(-1.2), quantize(-1.24))
}
