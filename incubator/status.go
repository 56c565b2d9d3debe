package main

import (
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/goincubator/pkg/command"
	"github.com/itohio/goincubator/pkg/incubator"
)

// Status panel rows, top to bottom.
const (
	rowDate = iota
	rowTime
	rowTemperature
	rowHumidity
	rowTarget
	rowPID
	rowDuty
	rowEgg
	rowNextTurn
	rowDays
	rowLink
	rowCount
)

var rowNames = [rowCount]string{
	rowDate:        "Date",
	rowTime:        "Time",
	rowTemperature: "Temperature",
	rowHumidity:    "Humidity",
	rowTarget:      "Target",
	rowPID:         "PID",
	rowDuty:        "Duty",
	rowEgg:         "Egg",
	rowNextTurn:    "Next turn",
	rowDays:        "Day",
	rowLink:        "Link",
}

// statusPanel shows the latest loop snapshot as a two-column form.
type statusPanel struct {
	container *fyne.Container
	values    [rowCount]*widget.Label
}

func newStatusPanel() *statusPanel {
	p := &statusPanel{}
	objects := make([]fyne.CanvasObject, 0, 2*rowCount)
	for i := range rowCount {
		p.values[i] = widget.NewLabel("-")
		objects = append(objects, widget.NewLabelWithStyle(rowNames[i], fyne.TextAlignTrailing, fyne.TextStyle{Bold: true}), p.values[i])
	}
	p.container = container.New(layout.NewFormLayout(), objects...)
	return p
}

// update must run on the UI thread.
func (p *statusPanel) update(st incubator.Status) {
	for i, text := range statusRows(st) {
		if p.values[i].Text != text {
			p.values[i].SetText(text)
		}
	}
}

func (p *statusPanel) setConnected(connected bool) {
	p.values[rowLink].SetText(linkText(connected))
}

// statusRows renders a snapshot into the panel rows.
func statusRows(st incubator.Status) [rowCount]string {
	var rows [rowCount]string

	rows[rowDate] = st.Date
	rows[rowTime] = st.Clock

	rows[rowTemperature] = command.FormatFloat(st.Temperature) + " °C"
	if st.SensorFault {
		rows[rowTemperature] += " (sensor fault)"
	}
	rows[rowHumidity] = command.FormatFloat(st.Humidity) + " %"
	rows[rowTarget] = command.FormatFloat(st.Target) + " °C"
	rows[rowPID] = command.FormatFloat(st.Kp) + " / " + command.FormatFloat(st.Ki) + " / " + command.FormatFloat(st.Kd)

	rows[rowDuty] = command.FormatFloat(st.Duty) + " (level " + strconv.Itoa(st.Level) + ")"
	if st.Heater {
		rows[rowDuty] += " on"
	}

	rows[rowEgg] = strconv.Itoa(st.Degrees) + "°"
	if st.Rotating {
		rows[rowEgg] += " turning"
	}

	rows[rowNextTurn] = "off"
	if st.AutoRotate {
		rows[rowNextTurn] = (time.Duration(st.NextRotate) * time.Second).String()
	}

	rows[rowDays] = "-"
	if st.EpochStart > 0 && !st.Time.IsZero() {
		elapsed := st.Time.Sub(time.Unix(st.EpochStart, 0))
		rows[rowDays] = strconv.Itoa(int(elapsed/(24*time.Hour)) + 1)
	}

	rows[rowLink] = linkText(st.Connected)
	return rows
}

func linkText(connected bool) string {
	if connected {
		return "connected"
	}
	return "disconnected"
}
