// Package command implements the incubator's text protocol:
//
//	get KEY
//	set KEY:VALUE
//	ping | hey | hello | piyo | peep | cheep | reboot
//
// Input is trimmed and lower-cased. Responses are single human-readable
// lines. Range validation of tunables happens here; the controller and the
// store accept any value.
package command

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/itohio/goincubator/pkg/store"
	"github.com/itohio/goincubator/pkg/thermal"
)

// Limits for settable tunables.
const (
	MinTemperature = 25.0
	MaxTemperature = 40.0
	MinCoefficient = 0.0
	MaxCoefficient = 10.0
)

// Response texts without arguments.
const (
	Pong     = "Pong"
	Piyo     = "Piyo"
	Bye      = "BYE"
	NotFound = "Command not found"
)

// Settings is the part of the config store commands read and write.
type Settings interface {
	Get(key string) (string, bool)
	GetInt(key string, def int64) int64
	GetFloat(key string, def float64) float64
	Set(key, value string) error
}

// Controller receives new setpoints.
type Controller interface {
	SetTarget(temp float32)
	SetCoefficients(kp, ki, kd float32)
	Duty() float32
}

// Sensor reports the current sanitised reading.
type Sensor interface {
	Temperature() float32
	Humidity() float32
}

// Rotator moves the eggs to an explicit angle.
type Rotator interface {
	Fix(degrees int, release bool)
}

// Clock supplies "now" for `set start:0`.
type Clock interface {
	Unix() int64
}

// Deps wires the dispatcher to the components it drives.
type Deps struct {
	Settings   Settings
	Controller Controller
	Sensor     Sensor
	Rotator    Rotator
	Clock      Clock

	// AutoRotate is called when auto rotation is switched on or off.
	AutoRotate func(on bool)
	// Reboot is called after answering a reboot request.
	Reboot func()
}

// Dispatcher parses and executes commands. It is not safe for concurrent
// use; callers serialise commands into the scheduler.
type Dispatcher struct {
	deps Deps
}

// New creates a dispatcher.
func New(deps Deps) *Dispatcher {
	return &Dispatcher{deps: deps}
}

// Run executes one command line and returns the response.
func (d *Dispatcher) Run(line string) string {
	line = strings.ToLower(strings.TrimSpace(line))
	slog.Debug("Command", slog.String("line", line))

	switch {
	case strings.HasPrefix(line, "get "):
		return d.get(strings.TrimSpace(line[4:]))
	case strings.HasPrefix(line, "set "):
		key, val, err := ParseKeyValue(line[4:])
		if err != nil {
			return "[SET] " + err.Error()
		}
		return d.set(key, val)
	case strings.HasPrefix(line, "ping"):
		return Pong
	case isGreeting(line):
		return Piyo
	case strings.HasPrefix(line, "reboot"):
		if d.deps.Reboot != nil {
			d.deps.Reboot()
		}
		return Bye
	default:
		return NotFound
	}
}

func isGreeting(line string) bool {
	for _, g := range []string{"hey", "hello", "piyo", "peep", "cheep"} {
		if strings.HasPrefix(line, g) {
			return true
		}
	}
	return false
}

// ParseError is returned by ParseKeyValue for malformed `set` arguments.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "Parse error - " + e.Reason
}

// ParseKeyValue splits "KEY:VALUE" at the first colon and trims both parts.
func ParseKeyValue(s string) (key, value string, err error) {
	key, value, found := strings.Cut(s, ":")
	if !found {
		return "", "", &ParseError{Reason: `no divider ":" found`}
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", &ParseError{Reason: "key is empty"}
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", "", &ParseError{Reason: "value is empty"}
	}
	return key, value, nil
}

func (d *Dispatcher) get(target string) string {
	result := fmt.Sprintf("the value for %q is not found", target)
	if v, ok := d.deps.Settings.Get(target); ok && v != "" {
		result = target + ":" + v
	}

	switch target {
	case "temp":
		result = "Temperature = " + FormatFloat(d.deps.Sensor.Temperature())
	case "humd":
		result = "Humidity = " + FormatFloat(d.deps.Sensor.Humidity())
	case "degrees":
		v, _ := d.deps.Settings.Get(store.KeyRotateLastDegrees)
		result = "Egg degrees = " + v
	case "duty":
		result = "PID duty = " + FormatFloat(d.deps.Controller.Duty())
	}

	return "[GET] " + result
}

func (d *Dispatcher) set(key, val string) string {
	slog.Info("Set", slog.String("key", key), slog.String("value", val))

	var result string
	switch key {
	case "auto_rotate":
		result = d.setAutoRotate(val)
	case "degrees":
		result = d.setDegrees(val)
	case "temperature":
		result = d.setTemperature(val)
	case "start":
		result = d.setStart(val)
	case store.KeyKp, store.KeyKi, store.KeyKd:
		result = d.setCoefficient(key, val)
	default:
		result = fmt.Sprintf("command %q is not supported", key)
	}
	return "[SET] " + result
}

func (d *Dispatcher) setAutoRotate(val string) string {
	var on bool
	switch val {
	case "on":
		on = true
	case "off":
	default:
		return `auto_rotate (abort) value need to be "on" or "off"`
	}

	flag := "0"
	if on {
		flag = "1"
	}
	if err := d.deps.Settings.Set(store.KeyRotateOnOff, flag); err != nil {
		return "auto_rotate (abort) " + saveFailure(err)
	}
	if d.deps.AutoRotate != nil {
		d.deps.AutoRotate(on)
	}
	if on {
		return "auto_rotate (OK) set to ON"
	}
	return "auto_rotate (OK) set to OFF"
}

func (d *Dispatcher) setDegrees(val string) string {
	deg := ParseInt(val)
	if int(d.deps.Settings.GetInt(store.KeyRotateMaxDegrees, 0)) < deg {
		return "degrees (abort) larger than rotate_max_degrees"
	}
	if int(d.deps.Settings.GetInt(store.KeyRotateMinDegrees, 0)) > deg {
		return "degrees (abort) smaller than rotate_min_degrees"
	}
	d.deps.Rotator.Fix(deg, false)
	return "degrees (OK) set to " + strconv.Itoa(deg)
}

func (d *Dispatcher) setTemperature(val string) string {
	c := ParseFloat(val)
	switch {
	case c > MaxTemperature:
		return "target temperature (abort) too hot"
	case c < MinTemperature:
		return "target temperature (abort) too cold"
	}
	if err := d.deps.Settings.Set(store.KeyTempTarget, FormatFloat(c)); err != nil {
		return "target temperature (abort) " + saveFailure(err)
	}
	d.deps.Controller.SetTarget(c)
	return "target temperature (OK) set to " + FormatFloat(c)
}

func (d *Dispatcher) setStart(val string) string {
	epoch := int64(ParseInt(val))
	switch {
	case epoch < 0:
		return "start epoch (abort) value is out of date"
	case epoch == 0:
		if err := d.deps.Settings.Set(store.KeyEpochStart, strconv.FormatInt(d.deps.Clock.Unix(), 10)); err != nil {
			return "start epoch (abort) " + saveFailure(err)
		}
		return "start epoch (OK) set to now"
	}
	if err := d.deps.Settings.Set(store.KeyEpochStart, strconv.FormatInt(epoch, 10)); err != nil {
		return "start epoch (abort) " + saveFailure(err)
	}
	return "start epoch (OK) set to " + strconv.FormatInt(epoch, 10)
}

func (d *Dispatcher) setCoefficient(key, val string) string {
	v := ParseFloat(val)
	switch {
	case v > MaxCoefficient:
		return "PID coefficient (abort) too large"
	case v < MinCoefficient:
		return "PID coefficient (abort) too small"
	}
	if err := d.deps.Settings.Set(key, FormatFloat(v)); err != nil {
		return "PID coefficient (abort) " + saveFailure(err)
	}

	defK := float64(thermal.DefaultCoefficient)
	kp := float32(d.deps.Settings.GetFloat(store.KeyKp, defK))
	ki := float32(d.deps.Settings.GetFloat(store.KeyKi, defK))
	kd := float32(d.deps.Settings.GetFloat(store.KeyKd, defK))
	d.deps.Controller.SetCoefficients(kp, ki, kd)

	return fmt.Sprintf("PID coefficients (OK) set as Kp = %s, Ki = %s, Kd = %s",
		FormatFloat(kp), FormatFloat(ki), FormatFloat(kd))
}

func saveFailure(err error) string {
	slog.Error("Failed to save setting", slog.Any("error", err))
	return "failed to save: " + err.Error()
}

// FormatFloat renders a value with two decimals, the precision tunables are
// stored with.
func FormatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', 2, 32)
}

// ParseFloat reads a leading decimal number and yields 0 when there is none,
// so "37.5c" is 37.5 and "abc" is 0.
func ParseFloat(s string) float32 {
	return float32(store.ParseFloat(s))
}

// ParseInt reads a leading integer and yields 0 when there is none.
func ParseInt(s string) int {
	return int(store.ParseInt(s))
}
