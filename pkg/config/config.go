package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the host application configuration. Device tunables
// (target temperature, PID gains, rotation limits) live in the two store
// files, not here.
type Config struct {
	Serial   SerialConfig   `yaml:"serial"`
	Store    StoreConfig    `yaml:"store"`
	Control  ControlConfig  `yaml:"control"`
	Rotation RotationConfig `yaml:"rotation"`
	Clock    ClockConfig    `yaml:"clock"`
	HTTP     HTTPConfig     `yaml:"http"`
	History  HistoryConfig  `yaml:"history"`
	Log      LogConfig      `yaml:"log"`
	Mock     MockConfig     `yaml:"mock"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port" env:"INCUBATOR_SERIAL_PORT"`
	BaudRate int    `yaml:"baud_rate" env:"INCUBATOR_SERIAL_BAUD"`
}

// StoreConfig names the two tiers of the configuration store.
type StoreConfig struct {
	ReadOnlyFile  string `yaml:"read_only_file" env:"INCUBATOR_STORE_RO"`
	ReadWriteFile string `yaml:"read_write_file" env:"INCUBATOR_STORE_RW"`
}

// ControlConfig contains the scheduler tick and controller window sizes.
type ControlConfig struct {
	Tick     time.Duration `yaml:"tick" env:"INCUBATOR_TICK"`
	ISteps   int           `yaml:"i_steps"`
	DSteps   int           `yaml:"d_steps"`
	PWMSteps int           `yaml:"pwm_steps"`
	Seed     float32       `yaml:"seed"` // Cold-start window temperature (°C)
}

// RotationConfig contains egg-turning parameters.
type RotationConfig struct {
	DegreesPerTick int `yaml:"degrees_per_tick"`
}

// ClockConfig contains time display settings.
type ClockConfig struct {
	Location string `yaml:"location" env:"INCUBATOR_TZ"`
}

// HTTPConfig contains the status/metrics endpoint configuration.
type HTTPConfig struct {
	Listen string `yaml:"listen" env:"INCUBATOR_HTTP_LISTEN"` // Empty disables the server
}

// HistoryConfig controls the temperature history kept for charts and alarms.
type HistoryConfig struct {
	Window         time.Duration `yaml:"window"`          // Time span kept in memory
	AlarmThreshold float64       `yaml:"alarm_threshold"` // Deviation from target that counts as an excursion (°C)
	MinAlarm       time.Duration `yaml:"min_alarm"`       // Shorter excursions are ignored
	MaxPoints      int           `yaml:"max_points"`      // Chart and /history resolution
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level string `yaml:"level" env:"INCUBATOR_LOG_LEVEL"`
	File  string `yaml:"file" env:"INCUBATOR_LOG_FILE"` // Optional JSON log file
}

// MockConfig contains simulated incubator parameters.
type MockConfig struct {
	Ambient    float64       `yaml:"ambient"`     // Room temperature (°C)
	Start      float64       `yaml:"start"`       // Initial chamber temperature (°C)
	HeaterRate float64       `yaml:"heater_rate"` // °C/s gained with the heater on
	LossRate   float64       `yaml:"loss_rate"`   // Fraction of (T - ambient) lost per second
	NoiseLevel float64       `yaml:"noise_level"` // Reading noise amplitude (°C)
	Humidity   float64       `yaml:"humidity"`    // Relative humidity (%)
	FaultEvery int           `yaml:"fault_every"` // Report a sensor fault every N samples (0 = never)
	SampleRate time.Duration `yaml:"sample_rate"` // Sample rate
	TimeScale  float64       `yaml:"time_scale"`  // Simulated seconds per real second
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:     "/dev/ttyACM0",
			BaudRate: 115200,
		},
		Store: StoreConfig{
			ReadOnlyFile:  "config_ro.txt",
			ReadWriteFile: "config_rw.txt",
		},
		Control: ControlConfig{
			Tick:     time.Second,
			ISteps:   600,
			DSteps:   120,
			PWMSteps: 10,
			Seed:     38.5,
		},
		Rotation: RotationConfig{
			DegreesPerTick: 10, // 100ms per degree at a 1s tick
		},
		Clock: ClockConfig{
			Location: "Local",
		},
		HTTP: HTTPConfig{
			Listen: ":8080",
		},
		History: HistoryConfig{
			Window:         30 * time.Minute,
			AlarmThreshold: 0.5,
			MinAlarm:       time.Minute,
			MaxPoints:      1000,
		},
		Log: LogConfig{
			Level: "info",
		},
		Mock: MockConfig{
			Ambient:    22.0,
			Start:      30.0,
			HeaterRate: 0.08,
			LossRate:   0.001,
			NoiseLevel: 0.05,
			Humidity:   55.0,
			FaultEvery: 0,
			SampleRate: time.Second,
			TimeScale:  1.0,
		},
	}
}

// Load loads configuration from a YAML file and applies environment
// overrides. If the file doesn't exist or fields are missing, it uses
// default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	// Ensure minimum required fields are set (use defaults if missing)
	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Store.ReadOnlyFile == "" {
		c.Store.ReadOnlyFile = def.Store.ReadOnlyFile
	}
	if c.Store.ReadWriteFile == "" {
		c.Store.ReadWriteFile = def.Store.ReadWriteFile
	}

	if c.Control.Tick <= 0 {
		c.Control.Tick = def.Control.Tick
	}
	if c.Control.ISteps <= 0 {
		c.Control.ISteps = def.Control.ISteps
	}
	if c.Control.DSteps <= 0 {
		c.Control.DSteps = def.Control.DSteps
	}
	if c.Control.PWMSteps <= 0 {
		c.Control.PWMSteps = def.Control.PWMSteps
	}
	if c.Control.Seed == 0 {
		c.Control.Seed = def.Control.Seed
	}

	if c.Rotation.DegreesPerTick <= 0 {
		c.Rotation.DegreesPerTick = def.Rotation.DegreesPerTick
	}

	if c.Clock.Location == "" {
		c.Clock.Location = def.Clock.Location
	}

	if c.History.Window <= 0 {
		c.History.Window = def.History.Window
	}
	if c.History.AlarmThreshold <= 0 {
		c.History.AlarmThreshold = def.History.AlarmThreshold
	}
	if c.History.MaxPoints <= 0 {
		c.History.MaxPoints = def.History.MaxPoints
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}

	if c.Mock.SampleRate == 0 {
		c.Mock.SampleRate = def.Mock.SampleRate
	}
	if c.Mock.TimeScale <= 0 {
		c.Mock.TimeScale = def.Mock.TimeScale
	}
	if c.Mock.HeaterRate == 0 {
		c.Mock.HeaterRate = def.Mock.HeaterRate
	}
}
