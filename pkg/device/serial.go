// Package device is the host side of the incubator MCU link: a line protocol
// over a serial port, plus a simulated incubator for development.
package device

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the firmware UART baud rate.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the samples channel buffer.
	DefaultBufferSize = 16
	// NoServo is reported while the servo is detached.
	NoServo = -1
)

// Sensor status codes reported by the firmware.
const (
	StatusOK      = 0
	StatusTimeout = 1
	StatusCRC     = 2
)

// RawSample represents one measurement line from the MCU.
type RawSample struct {
	Timestamp   time.Time
	Temperature float32 // °C
	Humidity    float32 // %RH
	Status      int     // Sensor status, StatusOK when the reading is valid
	Heater      bool    // Heater output state
	Servo       int     // Servo angle in degrees, NoServo when released
}

// OK reports whether the sensor reading is valid.
func (s RawSample) OK() bool {
	return s.Status == StatusOK
}

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial represents a connection to the incubator MCU.
type Serial struct {
	port     string
	baudRate int
	bufSize  int

	conn      serial.Port
	samples   chan RawSample
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
}

// New creates a new Serial device with the specified port, baud rate, and buffer size.
func New(port string, baudRate int, bufSize int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:      port,
		baudRate:  baudRate,
		bufSize:   bufSize,
		samples:   make(chan RawSample, bufSize),
		ctx:       ctx,
		cancel:    cancel,
		connected: false,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}

	return result, nil
}

// Connect connects to the serial port and starts reading samples.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}

	mode := &serial.Mode{
		BaudRate: d.baudRate,
	}

	port, err := serial.Open(d.port, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	d.conn = port
	d.connected = true

	go d.readSamples()

	return nil
}

// Close closes the connection and stops reading samples.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	d.cancel()

	if d.conn != nil {
		// Leave the heater off when the host goes away.
		if _, err := d.conn.Write([]byte(FormatHeater(false))); err != nil {
			slog.Warn("Failed to switch heater off on close", slog.Any("error", err))
		}
		if err := d.conn.Close(); err != nil {
			slog.Warn("Error closing serial port", slog.Any("error", err))
		}
		d.conn = nil
	}

	d.connected = false
	close(d.samples)

	return nil
}

// Samples returns the channel for reading samples.
func (d *Serial) Samples() <-chan RawSample {
	return d.samples
}

// SetHeater switches the heater output.
func (d *Serial) SetHeater(on bool) error {
	return d.send(FormatHeater(on))
}

// SetServo moves the servo to degrees and keeps it attached.
func (d *Serial) SetServo(degrees int) error {
	return d.send(FormatServo(degrees))
}

// ReleaseServo detaches the servo.
func (d *Serial) ReleaseServo() error {
	return d.send(FormatRelease())
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

func (d *Serial) send(cmd string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return ErrNotConnected
	}

	if _, err := d.conn.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("failed to send command %q: %w", strings.TrimSpace(cmd), err)
	}
	return nil
}

// readSamples reads lines from the serial port and parses them into RawSample.
func (d *Serial) readSamples() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in readSamples", slog.Any("panic", r))
		}
	}()

	d.mu.RLock()
	conn := d.conn
	d.mu.RUnlock()

	scanner := bufio.NewScanner(conn)
	for {
		select {
		case <-d.ctx.Done():
			return
		default:
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil && err != io.EOF {
					slog.Error("Error reading from serial port", slog.Any("error", err))
				}
				return
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				// '#' lines are firmware diagnostics
				if line != "" {
					slog.Debug("Firmware", slog.String("message", line[1:]))
				}
				continue
			}

			sample, err := ParseLine(line)
			if err != nil {
				slog.Warn("Failed to parse line", slog.String("line", line), slog.Any("error", err))
				continue
			}

			if !d.publish(sample) {
				return
			}
		}
	}
}

// publish delivers a sample without blocking. It returns false once the
// device has been closed.
func (d *Serial) publish(sample RawSample) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return false
	}
	select {
	case d.samples <- sample:
	default:
		slog.Warn("Samples channel full, dropping sample")
	}
	return true
}

// ParseLine parses a line from the MCU into a RawSample.
// Format: unix_micros,temp_deci_c,humd_deci_pct,status,heater,servo
// Example: 1700000000000000,375,612,0,1,90
func ParseLine(line string) (RawSample, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 6 {
		return RawSample{}, fmt.Errorf("invalid line format: expected 6 comma-separated values, got %d", len(parts))
	}

	timestampMicros, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return RawSample{}, fmt.Errorf("invalid timestamp: %w", err)
	}

	temp, err := strconv.ParseInt(parts[1], 10, 16)
	if err != nil {
		return RawSample{}, fmt.Errorf("invalid temperature: %w", err)
	}

	humd, err := strconv.ParseUint(parts[2], 10, 16)
	if err != nil {
		return RawSample{}, fmt.Errorf("invalid humidity: %w", err)
	}
	if humd > 1000 {
		return RawSample{}, fmt.Errorf("humidity out of range: %d (max 1000)", humd)
	}

	status, err := strconv.Atoi(parts[3])
	if err != nil {
		return RawSample{}, fmt.Errorf("invalid status: %w", err)
	}

	if parts[4] != "0" && parts[4] != "1" {
		return RawSample{}, fmt.Errorf("invalid heater state: %q", parts[4])
	}

	servo, err := strconv.Atoi(parts[5])
	if err != nil {
		return RawSample{}, fmt.Errorf("invalid servo angle: %w", err)
	}
	if servo < NoServo || servo > 180 {
		return RawSample{}, fmt.Errorf("servo angle out of range: %d", servo)
	}

	return RawSample{
		Timestamp:   time.UnixMicro(timestampMicros),
		Temperature: float32(temp) / 10,
		Humidity:    float32(humd) / 10,
		Status:      status,
		Heater:      parts[4] == "1",
		Servo:       servo,
	}, nil
}

// FormatHeater builds the heater command: "H1\n" or "H0\n".
func FormatHeater(on bool) string {
	if on {
		return "H1\n"
	}
	return "H0\n"
}

// FormatServo builds the servo command, clamped to [0, 180]: "S90\n".
func FormatServo(degrees int) string {
	degrees = max(0, min(180, degrees))
	return "S" + strconv.Itoa(degrees) + "\n"
}

// FormatRelease builds the servo release command.
func FormatRelease() string {
	return "R\n"
}
