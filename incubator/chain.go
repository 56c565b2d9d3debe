package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/goincubator/pkg/config"
	"github.com/itohio/goincubator/pkg/device"
	"github.com/itohio/goincubator/pkg/incubator"
	"github.com/itohio/goincubator/pkg/meter"
	"github.com/itohio/goincubator/pkg/sample"
	"github.com/itohio/goincubator/pkg/scope"
	"github.com/itohio/goincubator/pkg/store"
)

const (
	// ~30 FPS is plenty for a 1 Hz loop.
	updateInterval = 33 * time.Millisecond
	commandTimeout = 5 * time.Second
	statusBuffer   = 100
)

// loopChain tracks the running control loop for graceful shutdown.
type loopChain struct {
	device    device.Device
	runner    *incubator.Runner
	history   *meter.Meter
	cancel    context.CancelFunc
	loopDone  chan struct{} // Closed when the loop goroutine exits
	meterDone chan struct{} // Closed when the meter goroutine exits
}

// appState holds the application state.
type appState struct {
	cfg         *config.Config
	configFile  string
	window      fyne.Window
	scopeWidget *scope.ScopeWidget
	panel       *statusPanel
	connectBtn  *widget.Button
	rotateBtn   *widget.Button
	heaterBtn   *widget.Button
	response    *widget.Label
	useMock     bool
	chain       *loopChain // nil if not connected

	// Throttling for UI updates
	lastUpdate time.Time
	updateMu   sync.Mutex
}

// close stops the loop, closes the device and waits for the history
// pipeline to drain. Safe on a nil chain.
func (c *loopChain) close() {
	if c == nil {
		return
	}

	c.cancel()
	<-c.loopDone

	if err := c.device.Close(); err != nil {
		slog.Warn("Failed to close device", slog.Any("error", err))
	}

	// The meter exits once the converter drains the closed status channel.
	<-c.meterDone
}

// handleConnect handles the connect/disconnect button click.
func handleConnect(state *appState) {
	if state.chain != nil {
		state.chain.close()
		state.chain = nil
		state.rotateBtn.Disable()
		state.panel.setConnected(false)
		slog.Info("Disconnected")
		return
	}

	chain, err := startChain(state)
	if err != nil {
		if state.useMock {
			dialog.ShowError(fmt.Errorf("failed to start simulated incubator: %w", err), state.window)
		} else {
			dialog.ShowError(fmt.Errorf("failed to connect to %s: %w", state.cfg.Serial.Port, err), state.window)
		}
		return
	}
	state.chain = chain
	state.rotateBtn.Enable()
	slog.Info("Connected", slog.String("port", state.cfg.Serial.Port), slog.Bool("mock", state.useMock))
}

// startChain connects the device and starts the loop plus the history
// pipeline feeding the chart.
func startChain(state *appState) (*loopChain, error) {
	var dev device.Device
	if state.useMock {
		dev = device.NewMock(&state.cfg.Mock)
	} else {
		dev = device.New(state.cfg.Serial.Port, state.cfg.Serial.BaudRate, device.DefaultBufferSize)
	}
	if err := dev.Connect(); err != nil {
		return nil, err
	}

	settings := store.New(state.cfg.Store.ReadOnlyFile, state.cfg.Store.ReadWriteFile)
	runner := incubator.New(state.cfg, settings, dev, nil)
	history := meter.New(&state.cfg.History)

	history.OnUpdate(func(samples []sample.Sample, rates []float64, exc []meter.Excursion) {
		if !state.shouldUpdate() {
			return
		}
		fyne.Do(func() {
			state.scopeWidget.UpdateData(samples, rates, exc)
		})
	})

	statusCh := make(chan incubator.Status, statusBuffer)
	runner.OnUpdate(func(st incubator.Status) {
		select {
		case statusCh <- st:
		default:
			slog.Debug("History backlog full, dropping status")
		}
		fyne.Do(func() {
			state.panel.update(st)
			updateHeaterButton(state.heaterBtn, st.Heater)
			updateHeaterButton(state.rotateBtn, st.AutoRotate)
		})
	})

	ctx, cancel := context.WithCancel(context.Background())
	chain := &loopChain{
		device:    dev,
		runner:    runner,
		history:   history,
		cancel:    cancel,
		loopDone:  make(chan struct{}),
		meterDone: make(chan struct{}),
	}

	go func() {
		defer close(chain.loopDone)
		// Callbacks only fire from the loop, so closing here is safe.
		defer close(statusCh)
		if err := runner.Run(ctx); err != nil {
			slog.Error("Control loop failed", slog.Any("error", err))
		}
	}()

	samples := sample.NewConverter(statusBuffer)(statusCh)
	go func() {
		defer close(chain.meterDone)
		history.ProcessSamples(samples)
	}()

	return chain, nil
}

// shouldUpdate throttles chart refreshes.
func (state *appState) shouldUpdate() bool {
	state.updateMu.Lock()
	defer state.updateMu.Unlock()

	now := time.Now()
	if now.Sub(state.lastUpdate) < updateInterval {
		return false
	}
	state.lastUpdate = now
	return true
}

// submitCommand sends a protocol line to the loop off the UI thread and
// shows the reply.
func submitCommand(state *appState, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if state.chain == nil {
		state.response.SetText("not connected")
		return
	}

	runner := state.chain.runner
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		resp, err := runner.Submit(ctx, line)
		if err != nil {
			resp = "error: " + err.Error()
		}
		fyne.Do(func() {
			state.response.SetText("> " + line + "\n" + resp)
		})
	}()
}

// handleAutoRotateToggle flips automatic egg turning through the command
// protocol, so the choice is persisted like any other setting.
func handleAutoRotateToggle(state *appState) {
	if state.chain == nil {
		return
	}
	if state.chain.runner.Status().AutoRotate {
		submitCommand(state, "set auto_rotate:off")
	} else {
		submitCommand(state, "set auto_rotate:on")
	}
}

// updateHeaterButton highlights a toolbar button while its output is on.
func updateHeaterButton(btn *widget.Button, isOn bool) {
	want := widget.MediumImportance
	if isOn {
		want = widget.HighImportance
	}
	if btn.Importance == want {
		return
	}
	btn.Importance = want
	btn.Refresh()
}

// currentStatus returns the latest loop snapshot, or a zero Status when
// disconnected.
func (state *appState) currentStatus() incubator.Status {
	if state.chain == nil {
		return incubator.Status{}
	}
	return state.chain.runner.Status()
}
