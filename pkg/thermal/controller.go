// Package thermal implements the incubator heater controller: a windowed PID
// over circular temperature histories, quantised into a time-slot PWM level
// that drives a binary heater output.
package thermal

import (
	"log/slog"

	"github.com/chewxy/math32"

	"github.com/itohio/goincubator/pkg/ring"
)

const (
	// DefaultISteps is the integral window length (10 minutes at 1 Hz).
	DefaultISteps = 600
	// DefaultDSteps is the derivative window length.
	DefaultDSteps = 120
	// DefaultPWMSteps is the number of ticks in one heater PWM period.
	DefaultPWMSteps = 10
	// DefaultSeed pre-fills both windows so a hot restart does not overshoot.
	DefaultSeed float32 = 38.5
	// DefaultTarget is used until the caller pushes temp_target.
	DefaultTarget float32 = 37.5
	// DefaultCoefficient is the initial value of Kp, Ki and Kd.
	DefaultCoefficient float32 = 1.0
)

// Options configures window sizes and the cold-start seed. Zero fields take
// their defaults.
type Options struct {
	ISteps   int
	DSteps   int
	PWMSteps int
	Seed     float32
}

// Output is the result of one control tick.
type Output struct {
	Step   uint64
	Duty   float32 // Pre-clamp drive demand
	Level  int     // Quantised level in [-PWMSteps, PWMSteps]
	Active bool    // Heater output for this tick
}

// Controller is the windowed PID heater controller. It is not safe for
// concurrent use; the scheduler owns it.
type Controller struct {
	integral   *ring.Ring[float32]
	derivative *ring.Ring[float32]
	pwmSteps   int

	target     float32
	kp, ki, kd float32

	duty float32
	last Output
}

// New creates a controller with pre-seeded windows.
func New(opts Options) *Controller {
	if opts.ISteps <= 0 {
		opts.ISteps = DefaultISteps
	}
	if opts.DSteps <= 0 {
		opts.DSteps = DefaultDSteps
	}
	if opts.PWMSteps <= 0 {
		opts.PWMSteps = DefaultPWMSteps
	}
	if opts.Seed == 0 {
		opts.Seed = DefaultSeed
	}

	return &Controller{
		integral:   ring.New(opts.ISteps, opts.Seed),
		derivative: ring.New(opts.DSteps, opts.Seed),
		pwmSteps:   opts.PWMSteps,
		target:     DefaultTarget,
		kp:         DefaultCoefficient,
		ki:         DefaultCoefficient,
		kd:         DefaultCoefficient,
	}
}

// SetTarget sets the target temperature in °C. Range checks belong to the caller.
func (c *Controller) SetTarget(temp float32) {
	c.target = temp
	slog.Info("Set target temperature", slog.Float64("target", float64(temp)))
}

// Target returns the current target temperature.
func (c *Controller) Target() float32 {
	return c.target
}

// SetCoefficients sets the PID gains.
func (c *Controller) SetCoefficients(kp, ki, kd float32) {
	c.kp, c.ki, c.kd = kp, ki, kd
	slog.Info("Set PID coefficients",
		slog.Float64("kp", float64(kp)),
		slog.Float64("ki", float64(ki)),
		slog.Float64("kd", float64(kd)))
}

// Coefficients returns the PID gains.
func (c *Controller) Coefficients() (kp, ki, kd float32) {
	return c.kp, c.ki, c.kd
}

// Duty returns the last pre-clamp duty, so saturated demand stays visible.
func (c *Controller) Duty() float32 {
	return c.duty
}

// Last returns the output of the most recent Update.
func (c *Controller) Last() Output {
	return c.last
}

// PWMSteps returns the PWM period in ticks.
func (c *Controller) PWMSteps() int {
	return c.pwmSteps
}

// IntegralWindow returns a copy of the integral window in slot order.
func (c *Controller) IntegralWindow() []float32 {
	return c.integral.Snapshot()
}

// DerivativeWindow returns a copy of the derivative window in slot order.
func (c *Controller) DerivativeWindow() []float32 {
	return c.derivative.Snapshot()
}

// Reseed overwrites both windows with temp.
func (c *Controller) Reseed(temp float32) {
	c.integral.Fill(temp)
	c.derivative.Fill(temp)
}

// Update records the reading for step and computes this tick's heater output.
// current must be finite; fault substitution happens upstream.
func (c *Controller) Update(step uint64, current float32) Output {
	c.integral.Put(step, current)
	dSlot := c.derivative.Put(step, current)

	// Compare against the oldest sample still in the window.
	var diff float32
	last := c.derivative.Len() - 1
	if dSlot == last {
		diff = c.derivative.At(last) - c.derivative.At(0)
	} else {
		diff = c.derivative.At(dSlot) - c.derivative.At(dSlot+1)
	}

	p := c.target - current

	var sum float32
	c.integral.Each(func(_ int, v float32) {
		sum += c.target - v
	})
	i := sum / float32(c.integral.Len())

	// (diff / DSteps) * DSteps cancels to diff.
	d := diff

	c.duty = c.kp*p + c.ki*i - c.kd*d

	level := Quantize(c.duty, c.pwmSteps)
	out := Output{
		Step:   step,
		Duty:   c.duty,
		Level:  level,
		Active: SlotActive(step, level, c.pwmSteps),
	}
	c.last = out
	return out
}

// Quantize clamps duty to [-1, 1] and scales it to an integer level in
// [-pwmSteps, pwmSteps], rounding half away from zero.
func Quantize(duty float32, pwmSteps int) int {
	if duty < -1 {
		duty = -1
	}
	if duty > 1 {
		duty = 1
	}
	return int(math32.Round(duty * float32(pwmSteps)))
}

// SlotActive reports whether the heater is on at step for the given level.
// Negative levels request cooling, which has no actuator, so the heater is off.
func SlotActive(step uint64, level, pwmSteps int) bool {
	if level < 0 || pwmSteps <= 0 {
		return false
	}
	return int(step%uint64(pwmSteps)) < level
}
