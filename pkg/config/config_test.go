package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, "config_ro.txt", cfg.Store.ReadOnlyFile)
	assert.Equal(t, "config_rw.txt", cfg.Store.ReadWriteFile)
	assert.Equal(t, time.Second, cfg.Control.Tick)
	assert.Equal(t, 600, cfg.Control.ISteps)
	assert.Equal(t, 120, cfg.Control.DSteps)
	assert.Equal(t, 10, cfg.Control.PWMSteps)
	assert.Equal(t, float32(38.5), cfg.Control.Seed)
	assert.Equal(t, 10, cfg.Rotation.DegreesPerTick)
	assert.Equal(t, ":8080", cfg.HTTP.Listen)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 30*time.Minute, cfg.History.Window)
	assert.Equal(t, 0.5, cfg.History.AlarmThreshold)
	assert.Equal(t, 1000, cfg.History.MaxPoints)
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
serial:
  port: "/dev/ttyUSB1"
  baud_rate: 57600

store:
  read_only_file: /data/ro.txt
  read_write_file: /data/rw.txt

control:
  tick: 500ms
  i_steps: 300
  d_steps: 60
  pwm_steps: 20
  seed: 37.8

rotation:
  degrees_per_tick: 5

http:
  listen: "127.0.0.1:9000"

log:
  level: debug
  file: /var/log/incubator.json

mock:
  ambient: 18
  fault_every: 7
  sample_rate: 250ms
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Port)
	assert.Equal(t, 57600, cfg.Serial.BaudRate)
	assert.Equal(t, "/data/ro.txt", cfg.Store.ReadOnlyFile)
	assert.Equal(t, "/data/rw.txt", cfg.Store.ReadWriteFile)
	assert.Equal(t, 500*time.Millisecond, cfg.Control.Tick)
	assert.Equal(t, 300, cfg.Control.ISteps)
	assert.Equal(t, 60, cfg.Control.DSteps)
	assert.Equal(t, 20, cfg.Control.PWMSteps)
	assert.Equal(t, float32(37.8), cfg.Control.Seed)
	assert.Equal(t, 5, cfg.Rotation.DegreesPerTick)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTP.Listen)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/var/log/incubator.json", cfg.Log.File)
	assert.Equal(t, 18.0, cfg.Mock.Ambient)
	assert.Equal(t, 7, cfg.Mock.FaultEvery)
	assert.Equal(t, 250*time.Millisecond, cfg.Mock.SampleRate)
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("invalid: yaml: content: [")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
serial:
  port: "/dev/ttyUSB0"
control:
  i_steps: 0
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)

	// Should use defaults for missing fields
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)   // default
	assert.Equal(t, 600, cfg.Control.ISteps)       // default
	assert.Equal(t, time.Second, cfg.Control.Tick) // default
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("INCUBATOR_SERIAL_PORT", "/dev/ttyS9")
	t.Setenv("INCUBATOR_TICK", "2s")
	t.Setenv("INCUBATOR_STORE_RW", "/tmp/rw.txt")

	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyS9", cfg.Serial.Port)
	assert.Equal(t, 2*time.Second, cfg.Control.Tick)
	assert.Equal(t, "/tmp/rw.txt", cfg.Store.ReadWriteFile)
	assert.Equal(t, "config_ro.txt", cfg.Store.ReadOnlyFile)
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Serial.Port = "/dev/ttyUSB0"
	cfg.Control.PWMSteps = 20

	tmpfile, err := os.CreateTemp("", "test_save_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	err = cfg.Save(tmpfile.Name())
	require.NoError(t, err)

	// Load it back and verify
	loaded, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", loaded.Serial.Port)
	assert.Equal(t, 20, loaded.Control.PWMSteps)
}
