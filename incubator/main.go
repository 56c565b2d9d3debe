// Command incubator is a desktop monitor that runs the incubator control
// loop and charts the chamber temperature.
package main

import (
	"flag"
	"log"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/goincubator/pkg/config"
	"github.com/itohio/goincubator/pkg/logging"
	"github.com/itohio/goincubator/pkg/scope"
)

func main() {
	var (
		portFlag   = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag   = flag.Bool("mock", false, "Use a simulated incubator instead of the serial port")
	)
	flag.Parse()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}

	closer, err := logging.Setup(logging.Options{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Service: "incubator",
	})
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closer.Close()

	application := app.NewWithID("com.itohio.goincubator")

	window := application.NewWindow("Incubator")
	window.Resize(fyne.NewSize(1100, 700))
	window.CenterOnScreen()

	state := &appState{
		cfg:        cfg,
		configFile: *configFlag,
		window:     window,
		useMock:    *mockFlag,
	}

	state.scopeWidget = scope.New(&cfg.History)
	state.panel = newStatusPanel()

	content := container.NewBorder(
		createToolbar(state),
		createCommandBar(state),
		nil,
		state.panel.container,
		state.scopeWidget,
	)

	window.SetContent(content)
	window.SetOnClosed(func() {
		state.chain.close()
	})
	window.ShowAndRun()
}

// createToolbar creates the Connect, Settings and Auto-rotate buttons plus
// the heater indicator.
func createToolbar(state *appState) fyne.CanvasObject {
	state.connectBtn = widget.NewButtonWithIcon("", theme.LoginIcon(), func() {
		handleConnect(state)
	})

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	state.rotateBtn = widget.NewButtonWithIcon("Auto rotate", theme.ViewRefreshIcon(), func() {
		handleAutoRotateToggle(state)
	})
	state.rotateBtn.Disable()

	state.heaterBtn = widget.NewButtonWithIcon("Heater", theme.InfoIcon(), nil)
	state.heaterBtn.Disable()

	return container.NewBorder(
		nil,
		nil,
		container.NewHBox(state.connectBtn, settingsBtn),
		container.NewHBox(state.rotateBtn, state.heaterBtn),
		nil,
	)
}

// createCommandBar creates the protocol console: an entry that submits a
// line to the loop and a label showing the reply.
func createCommandBar(state *appState) fyne.CanvasObject {
	state.response = widget.NewLabel("")

	entry := widget.NewEntry()
	entry.SetPlaceHolder("ping, get temp, set temperature:37.5, set auto_rotate:on ...")
	entry.OnSubmitted = func(line string) {
		entry.SetText("")
		submitCommand(state, line)
	}

	return container.NewVBox(entry, state.response)
}
