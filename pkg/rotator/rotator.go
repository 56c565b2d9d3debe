// Package rotator turns the eggs with the servo. Movement is spread over
// scheduler ticks so the control loop never blocks on the servo.
package rotator

import (
	"log/slog"
	"strconv"

	"github.com/itohio/goincubator/pkg/store"
)

const (
	// DefaultDegreesPerTick is the servo travel per scheduler tick.
	DefaultDegreesPerTick = 10
	// Center is the angle Fix moves to by default.
	Center = 90
	// Default angle limits when the store has none provisioned.
	DefaultMinDegrees = 30
	DefaultMaxDegrees = 150
)

// Settings is the part of the config store the rotator needs.
type Settings interface {
	GetInt(key string, def int64) int64
	Set(key, value string) error
}

// Servo drives the physical servo.
type Servo interface {
	SetServo(degrees int) error
	ReleaseServo() error
}

// Rotator owns the egg angle.
type Rotator struct {
	settings Settings
	servo    Servo
	perTick  int

	current int
	target  int
	moving  bool
	release bool
}

// New creates a rotator starting at the persisted rotate_last_degrees.
func New(settings Settings, servo Servo, degreesPerTick int) *Rotator {
	if degreesPerTick <= 0 {
		degreesPerTick = DefaultDegreesPerTick
	}
	current := int(settings.GetInt(store.KeyRotateLastDegrees, Center))
	return &Rotator{
		settings: settings,
		servo:    servo,
		perTick:  degreesPerTick,
		current:  current,
		target:   current,
	}
}

// Limits returns the provisioned angle range.
func (r *Rotator) Limits() (minDeg, maxDeg int) {
	minDeg = int(r.settings.GetInt(store.KeyRotateMinDegrees, DefaultMinDegrees))
	maxDeg = int(r.settings.GetInt(store.KeyRotateMaxDegrees, DefaultMaxDegrees))
	return minDeg, maxDeg
}

// Rotate starts a turn to the opposite limit: toward the minimum when the
// eggs lean past 90°, otherwise toward the maximum. The servo stays attached
// afterwards to hold the tray. It returns the target angle.
func (r *Rotator) Rotate() int {
	minDeg, maxDeg := r.Limits()
	target := maxDeg
	if r.current > Center {
		target = minDeg
	}
	r.start(target, false)
	slog.Info("Rotating eggs",
		slog.Int("from", r.current),
		slog.Int("to", target),
		slog.Int("min", minDeg),
		slog.Int("max", maxDeg))
	return target
}

// Fix starts a move to an explicit angle, detaching the servo at the end
// when release is set.
func (r *Rotator) Fix(degrees int, release bool) {
	r.start(max(0, min(180, degrees)), release)
	slog.Info("Adjusting egg angle", slog.Int("from", r.current), slog.Int("to", r.target))
}

func (r *Rotator) start(target int, release bool) {
	r.target = target
	r.release = release
	r.moving = true
}

// Step advances a pending move by at most the per-tick travel. It returns
// true on the tick the move completes.
func (r *Rotator) Step() bool {
	if !r.moving {
		return false
	}

	switch {
	case r.current < r.target:
		r.current = min(r.current+r.perTick, r.target)
	case r.current > r.target:
		r.current = max(r.current-r.perTick, r.target)
	}

	if err := r.servo.SetServo(r.current); err != nil {
		slog.Warn("Failed to move servo", slog.Int("degrees", r.current), slog.Any("error", err))
	}

	if r.current != r.target {
		return false
	}

	r.moving = false
	if err := r.settings.Set(store.KeyRotateLastDegrees, strconv.Itoa(r.current)); err != nil {
		slog.Error("Failed to persist egg angle", slog.Int("degrees", r.current), slog.Any("error", err))
	}
	if r.release {
		if err := r.servo.ReleaseServo(); err != nil {
			slog.Warn("Failed to release servo", slog.Any("error", err))
		}
	}
	slog.Info("Egg angle reached", slog.Int("degrees", r.current))
	return true
}

// Current returns the commanded servo angle.
func (r *Rotator) Current() int {
	return r.current
}

// Target returns the angle of the current or last move.
func (r *Rotator) Target() int {
	return r.target
}

// Moving reports whether a move is in progress.
func (r *Rotator) Moving() bool {
	return r.moving
}
