package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/goincubator/pkg/command"
	"github.com/itohio/goincubator/pkg/device"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createSerialTab(state),
		createControlTab(state),
		createHistoryTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 450))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 450))
	d.Show()
}

func (state *appState) saveConfig() {
	if err := state.cfg.Save(state.configFile); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
	}
}

// createSerialTab creates the Serial configuration tab.
func createSerialTab(state *appState) *container.TabItem {
	ports, err := device.Ports()
	portOptions := []string{}
	portMap := make(map[string]string) // Display name to port name

	if err == nil {
		for _, port := range ports {
			displayName := port.Name
			if port.Description != "" && port.Description != port.Name {
				displayName = fmt.Sprintf("%s (%s)", port.Name, port.Description)
			}
			portOptions = append(portOptions, displayName)
			portMap[displayName] = port.Name
		}
	}

	currentPort := state.cfg.Serial.Port
	currentDisplay := currentPort
	found := false
	for _, opt := range portOptions {
		if portMap[opt] == currentPort {
			currentDisplay = opt
			found = true
			break
		}
	}
	if !found && currentPort != "" {
		portOptions = append(portOptions, currentPort)
		portMap[currentPort] = currentPort
	}

	portSelect := widget.NewSelect(portOptions, nil)
	if currentDisplay != "" {
		portSelect.SetSelected(currentDisplay)
	}

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Serial Port", Widget: portSelect},
		},
		OnSubmit: func() {
			if portSelect.Selected == "" {
				return
			}
			selectedPort := portMap[portSelect.Selected]
			if selectedPort == "" {
				selectedPort = portSelect.Selected
			}

			portChanged := state.cfg.Serial.Port != selectedPort
			state.cfg.Serial.Port = selectedPort
			state.saveConfig()

			// Reconnect on the new port
			if portChanged && state.chain != nil && !state.useMock {
				handleConnect(state)
				handleConnect(state)
			}
		},
	}

	return container.NewTabItem("Serial", form)
}

// createControlTab edits the persisted tunables through the command
// protocol so the usual range checks apply.
func createControlTab(state *appState) *container.TabItem {
	st := state.currentStatus()

	targetEntry := widget.NewEntry()
	targetEntry.SetText(command.FormatFloat(st.Target))
	kpEntry := widget.NewEntry()
	kpEntry.SetText(command.FormatFloat(st.Kp))
	kiEntry := widget.NewEntry()
	kiEntry.SetText(command.FormatFloat(st.Ki))
	kdEntry := widget.NewEntry()
	kdEntry.SetText(command.FormatFloat(st.Kd))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Target (°C)", Widget: targetEntry},
			{Text: "Kp", Widget: kpEntry},
			{Text: "Ki", Widget: kiEntry},
			{Text: "Kd", Widget: kdEntry},
		},
		OnSubmit: func() {
			if state.chain == nil {
				dialog.ShowInformation("Control", "Connect first", state.window)
				return
			}

			lines := controlCommands(
				[2]string{"temperature", targetEntry.Text},
				[2]string{"kp", kpEntry.Text},
				[2]string{"ki", kiEntry.Text},
				[2]string{"kd", kdEntry.Text},
			)

			runner := state.chain.runner
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
				defer cancel()

				var replies []string
				for _, line := range lines {
					resp, err := runner.Submit(ctx, line)
					if err != nil {
						resp = "error: " + err.Error()
					}
					replies = append(replies, resp)
				}
				fyne.Do(func() {
					dialog.ShowInformation("Control", strings.Join(replies, "\n"), state.window)
				})
			}()
		},
	}

	return container.NewTabItem("Control", form)
}

// controlCommands turns name/value pairs into set commands, skipping empty
// values.
func controlCommands(pairs ...[2]string) []string {
	lines := make([]string, 0, len(pairs))
	for _, p := range pairs {
		value := strings.TrimSpace(p[1])
		if value == "" {
			continue
		}
		lines = append(lines, "set "+p[0]+":"+value)
	}
	return lines
}

// createHistoryTab creates the chart and alarm configuration tab. Changes
// apply on the next connect.
func createHistoryTab(state *appState) *container.TabItem {
	windowEntry := widget.NewEntry()
	windowEntry.SetText(state.cfg.History.Window.String())

	thresholdEntry := widget.NewEntry()
	thresholdEntry.SetText(strconv.FormatFloat(state.cfg.History.AlarmThreshold, 'f', 2, 64))

	minAlarmEntry := widget.NewEntry()
	minAlarmEntry.SetText(state.cfg.History.MinAlarm.String())

	maxPointsEntry := widget.NewEntry()
	maxPointsEntry.SetText(strconv.Itoa(state.cfg.History.MaxPoints))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Window", Widget: windowEntry},
			{Text: "Alarm threshold (°C)", Widget: thresholdEntry},
			{Text: "Min alarm duration", Widget: minAlarmEntry},
			{Text: "Chart points", Widget: maxPointsEntry},
		},
		OnSubmit: func() {
			if d, err := time.ParseDuration(windowEntry.Text); err == nil && d > 0 {
				state.cfg.History.Window = d
			}
			if v, err := strconv.ParseFloat(thresholdEntry.Text, 64); err == nil && v > 0 {
				state.cfg.History.AlarmThreshold = v
			}
			if d, err := time.ParseDuration(minAlarmEntry.Text); err == nil && d >= 0 {
				state.cfg.History.MinAlarm = d
			}
			if n, err := strconv.Atoi(maxPointsEntry.Text); err == nil && n > 0 {
				state.cfg.History.MaxPoints = n
			}
			state.saveConfig()
		},
	}

	return container.NewTabItem("History", form)
}

// createMockTab creates the simulated incubator configuration tab.
func createMockTab(state *appState) *container.TabItem {
	ambientEntry := widget.NewEntry()
	ambientEntry.SetText(strconv.FormatFloat(state.cfg.Mock.Ambient, 'f', 1, 64))

	heaterRateEntry := widget.NewEntry()
	heaterRateEntry.SetText(strconv.FormatFloat(state.cfg.Mock.HeaterRate, 'f', 3, 64))

	lossRateEntry := widget.NewEntry()
	lossRateEntry.SetText(strconv.FormatFloat(state.cfg.Mock.LossRate, 'f', 4, 64))

	noiseEntry := widget.NewEntry()
	noiseEntry.SetText(strconv.FormatFloat(state.cfg.Mock.NoiseLevel, 'f', 3, 64))

	faultEntry := widget.NewEntry()
	faultEntry.SetText(strconv.Itoa(state.cfg.Mock.FaultEvery))

	timeScaleEntry := widget.NewEntry()
	timeScaleEntry.SetText(strconv.FormatFloat(state.cfg.Mock.TimeScale, 'f', 1, 64))

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Ambient (°C)", Widget: ambientEntry},
			{Text: "Heater rate (°C/s)", Widget: heaterRateEntry},
			{Text: "Loss rate (1/s)", Widget: lossRateEntry},
			{Text: "Noise (°C)", Widget: noiseEntry},
			{Text: "Fault every N samples", Widget: faultEntry},
			{Text: "Time scale", Widget: timeScaleEntry},
		},
		OnSubmit: func() {
			if v, err := strconv.ParseFloat(ambientEntry.Text, 64); err == nil {
				state.cfg.Mock.Ambient = v
			}
			if v, err := strconv.ParseFloat(heaterRateEntry.Text, 64); err == nil {
				state.cfg.Mock.HeaterRate = v
			}
			if v, err := strconv.ParseFloat(lossRateEntry.Text, 64); err == nil {
				state.cfg.Mock.LossRate = v
			}
			if v, err := strconv.ParseFloat(noiseEntry.Text, 64); err == nil {
				state.cfg.Mock.NoiseLevel = v
			}
			if n, err := strconv.Atoi(faultEntry.Text); err == nil && n >= 0 {
				state.cfg.Mock.FaultEvery = n
			}
			if v, err := strconv.ParseFloat(timeScaleEntry.Text, 64); err == nil && v > 0 {
				state.cfg.Mock.TimeScale = v
			}
			state.saveConfig()
		},
	}

	return container.NewTabItem("Mock", form)
}
