// Package incubator runs the control loop: one goroutine owns the store,
// the thermal controller, the sensor sanitiser, the rotator and all device
// writes. Commands from other goroutines are funnelled into that loop.
package incubator

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/itohio/goincubator/pkg/clock"
	"github.com/itohio/goincubator/pkg/command"
	"github.com/itohio/goincubator/pkg/config"
	"github.com/itohio/goincubator/pkg/device"
	"github.com/itohio/goincubator/pkg/rotator"
	"github.com/itohio/goincubator/pkg/sensor"
	"github.com/itohio/goincubator/pkg/store"
	"github.com/itohio/goincubator/pkg/thermal"
)

// DefaultRotateInterval applies when rotate_interval is not provisioned.
const DefaultRotateInterval = 3 * time.Hour

// ErrStopped is returned by Submit once the loop has exited.
var ErrStopped = errors.New("incubator loop stopped")

// Settings is the config store as seen by the loop.
type Settings interface {
	Get(key string) (string, bool)
	GetInt(key string, def int64) int64
	GetFloat(key string, def float64) float64
	Set(key, value string) error
	SetIfUnset(key, value string) (bool, error)
}

type request struct {
	line string
	resp chan string
}

// Runner is the incubator scheduler.
type Runner struct {
	cfg      *config.Config
	settings Settings
	dev      device.Device
	clock    *clock.Clock

	controller *thermal.Controller
	sensor     *sensor.Sanitizer
	rotator    *rotator.Rotator
	dispatcher *command.Dispatcher

	requests chan request
	done     chan struct{}
	stopOnce sync.Once

	// Loop-owned state
	step       uint64 // Controller step, one per tick
	latest     device.RawSample
	fresh      bool
	substitute bool
	autoRotate bool
	interval   time.Duration
	autostop   time.Duration
	reboot     bool

	mu     sync.RWMutex
	status Status

	callbacks []func(Status)
	cbMu      sync.RWMutex
}

// New wires a runner. The clock may be nil, in which case wall time in the
// configured location is used.
func New(cfg *config.Config, settings Settings, dev device.Device, clk *clock.Clock) *Runner {
	if clk == nil {
		loc, err := clock.LoadLocation(cfg.Clock.Location)
		if err != nil {
			slog.Warn("Unknown time zone, using local time", slog.String("location", cfg.Clock.Location), slog.Any("error", err))
		}
		clk = clock.New(nil, loc)
	}

	r := &Runner{
		cfg:      cfg,
		settings: settings,
		dev:      dev,
		clock:    clk,
		controller: thermal.New(thermal.Options{
			ISteps:   cfg.Control.ISteps,
			DSteps:   cfg.Control.DSteps,
			PWMSteps: cfg.Control.PWMSteps,
			Seed:     cfg.Control.Seed,
		}),
		sensor:   sensor.New(cfg.Control.Seed, 0),
		requests: make(chan request),
		done:     make(chan struct{}),
	}
	r.rotator = rotator.New(settings, dev, cfg.Rotation.DegreesPerTick)
	r.dispatcher = command.New(command.Deps{
		Settings:   settings,
		Controller: r.controller,
		Sensor:     r.sensor,
		Rotator:    r.rotator,
		Clock:      clk,
		AutoRotate: r.setAutoRotate,
		Reboot:     func() { r.reboot = true },
	})
	r.load()
	r.publish(r.controller.Last())
	return r
}

// load pushes persisted tunables into the controller and restores the
// rotation schedule.
func (r *Runner) load() {
	r.clock.Tick()

	defK := float64(thermal.DefaultCoefficient)
	target := r.settings.GetFloat(store.KeyTempTarget, float64(thermal.DefaultTarget))
	kp := r.settings.GetFloat(store.KeyKp, defK)
	ki := r.settings.GetFloat(store.KeyKi, defK)
	kd := r.settings.GetFloat(store.KeyKd, defK)
	r.controller.SetTarget(float32(target))
	r.controller.SetCoefficients(float32(kp), float32(ki), float32(kd))

	now := strconv.FormatInt(r.clock.Unix(), 10)
	if ok, err := r.settings.SetIfUnset(store.KeyEpochStart, now); err != nil {
		slog.Error("Failed to initialise incubation start", slog.Any("error", err))
	} else if ok {
		slog.Info("Incubation started", slog.String("epoch_start", now))
	}

	r.interval = time.Duration(r.settings.GetInt(store.KeyRotateInterval, int64(DefaultRotateInterval/time.Second))) * time.Second
	r.autostop = time.Duration(r.settings.GetInt(store.KeyRotateAutostopHours, 0)) * time.Hour
	r.setAutoRotate(r.settings.GetInt(store.KeyRotateOnOff, 0) == 1)

	slog.Info("Incubator loaded",
		slog.Float64("target", target),
		slog.Float64("kp", kp),
		slog.Float64("ki", ki),
		slog.Float64("kd", kd),
		slog.Bool("auto_rotate", r.autoRotate),
		slog.Duration("rotate_interval", r.interval))
}

// restart re-initialises the loop state the way a device reset would.
func (r *Runner) restart() {
	slog.Info("Restarting control loop")
	r.reboot = false
	r.controller.Reseed(r.cfg.Control.Seed)
	r.load()
}

// Run drives the loop until ctx is cancelled. The heater is switched off on
// exit.
func (r *Runner) Run(ctx context.Context) error {
	defer r.stop()
	defer func() {
		if err := r.dev.SetHeater(false); err != nil && !errors.Is(err, device.ErrNotConnected) {
			slog.Warn("Failed to switch heater off", slog.Any("error", err))
		}
	}()

	ticker := time.NewTicker(r.cfg.Control.Tick)
	defer ticker.Stop()

	samples := r.dev.Samples()
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-samples:
			if !ok {
				slog.Warn("Device sample stream closed")
				samples = nil
				continue
			}
			r.latest = s
			r.fresh = true
		case req := <-r.requests:
			req.resp <- r.execute(req.line)
		case <-ticker.C:
			r.tick()
		}
	}
}

func (r *Runner) stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

// Submit runs a command line inside the loop and returns its response.
func (r *Runner) Submit(ctx context.Context, line string) (string, error) {
	req := request{line: line, resp: make(chan string, 1)}
	select {
	case r.requests <- req:
	case <-r.done:
		return "", ErrStopped
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case resp := <-req.resp:
		return resp, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (r *Runner) execute(line string) string {
	resp := r.dispatcher.Run(line)
	if r.reboot {
		r.restart()
	}
	r.publish(r.controller.Last())
	return resp
}

// tick runs one control period.
func (r *Runner) tick() {
	r.clock.Tick()
	step := r.step
	r.step++

	r.substitute = false
	if r.fresh {
		reading := r.sensor.Update(r.latest)
		r.substitute = reading.Substituted
		r.fresh = false
	}

	out := r.controller.Update(step, r.sensor.Temperature())
	if err := r.dev.SetHeater(out.Active); err != nil {
		slog.Warn("Failed to drive heater", slog.Bool("on", out.Active), slog.Any("error", err))
	}

	r.rotator.Step()
	r.schedule()
	r.publish(out)
}

// schedule triggers periodic egg turning and stops it after the configured
// number of hours since incubation start.
func (r *Runner) schedule() {
	if !r.autoRotate {
		return
	}

	if r.autostopReached() {
		slog.Info("Auto rotation period is over", slog.Duration("after", r.autostop))
		if err := r.settings.Set(store.KeyRotateOnOff, "0"); err != nil {
			slog.Error("Failed to persist auto rotation state", slog.Any("error", err))
		}
		r.setAutoRotate(false)
		r.rotator.Fix(rotator.Center, true)
		return
	}

	if !r.clock.HasNextEvent() {
		r.clock.SetNextEvent(r.interval)
		return
	}
	if r.clock.UntilNextEvent() > 0 {
		return
	}

	if !r.rotator.Moving() {
		r.rotator.Rotate()
	}
	r.clock.SetNextEvent(r.interval)
}

func (r *Runner) autostopReached() bool {
	if r.autostop <= 0 {
		return false
	}
	start := r.settings.GetInt(store.KeyEpochStart, 0)
	if start <= 0 {
		return false
	}
	return time.Duration(r.clock.Unix()-start)*time.Second >= r.autostop
}

func (r *Runner) setAutoRotate(on bool) {
	r.autoRotate = on
	if on {
		r.clock.SetNextEvent(r.interval)
	} else {
		r.clock.ClearNextEvent()
	}
	slog.Info("Auto rotation", slog.Bool("on", on))
}

func (r *Runner) publish(out thermal.Output) {
	kp, ki, kd := r.controller.Coefficients()
	st := Status{
		Time:        r.clock.Now(),
		Date:        r.clock.DateString(),
		Clock:       r.clock.TimeString(),
		Step:        out.Step,
		Temperature: r.sensor.Temperature(),
		Humidity:    r.sensor.Humidity(),
		SensorFault: r.substitute,
		Target:      r.controller.Target(),
		Kp:          kp,
		Ki:          ki,
		Kd:          kd,
		Duty:        r.controller.Duty(),
		Level:       out.Level,
		Heater:      out.Active,
		Degrees:     r.rotator.Current(),
		Rotating:    r.rotator.Moving(),
		AutoRotate:  r.autoRotate,
		NextRotate:  max(0, r.clock.UntilNextEvent()),
		EpochStart:  r.settings.GetInt(store.KeyEpochStart, 0),
		Connected:   r.dev.IsConnected(),
	}

	r.mu.Lock()
	r.status = st
	r.mu.Unlock()

	r.cbMu.RLock()
	callbacks := make([]func(Status), len(r.callbacks))
	copy(callbacks, r.callbacks)
	r.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(st)
		}
	}
}

// Status returns the latest published snapshot.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// OnUpdate registers a callback invoked from the loop goroutine after every
// tick and command. Callbacks must return quickly.
func (r *Runner) OnUpdate(callback func(Status)) {
	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	r.callbacks = append(r.callbacks, callback)
}
