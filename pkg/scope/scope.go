// Package scope is a Fyne chart widget plotting chamber temperature against
// the target, with heater activity and temperature excursions marked.
package scope

import (
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/goincubator/pkg/config"
	"github.com/itohio/goincubator/pkg/meter"
	"github.com/itohio/goincubator/pkg/sample"
)

// minSpan keeps the Y axis from collapsing on a perfectly steady chamber.
const minSpan = 1.0

// ScopeWidget is a custom Fyne widget that displays the temperature history.
type ScopeWidget struct {
	widget.BaseWidget

	cfg *config.HistoryConfig

	// Data (protected by mu)
	mu         sync.RWMutex
	samples    []sample.Sample
	rates      []float64
	excursions []meter.Excursion

	// Display buffer (reused for downsampling)
	displaySamples []sample.Sample

	// Auto-scaling
	yMin, yMax float64
	xMin, xMax time.Time
}

// New creates a new ScopeWidget instance.
func New(cfg *config.HistoryConfig) *ScopeWidget {
	s := &ScopeWidget{
		cfg:            cfg,
		displaySamples: make([]sample.Sample, 0, cfg.MaxPoints),
	}
	s.ExtendBaseWidget(s)
	s.Refresh()
	return s
}

// UpdateData updates the widget with new history data. Call it through
// fyne.Do from meter callbacks.
func (s *ScopeWidget) UpdateData(samples []sample.Sample, rates []float64, excursions []meter.Excursion) {
	s.mu.Lock()
	s.displaySamples = sample.Downsample(s.displaySamples, samples, s.cfg.MaxPoints)
	s.samples = samples
	s.rates = rates
	s.excursions = excursions
	s.yMin, s.yMax, s.xMin, s.xMax = autoScale(s.displaySamples, s.cfg.Window, time.Now())
	s.mu.Unlock()

	// Refresh outside the lock
	s.Refresh()
}

// autoScale returns axis ranges covering temperature and target with a 10%
// margin. The X range spans at least window.
func autoScale(samples []sample.Sample, window time.Duration, now time.Time) (yMin, yMax float64, xMin, xMax time.Time) {
	if len(samples) == 0 {
		return 36.5, 38.5, now.Add(-window), now
	}

	yMin, yMax = samples[0].Temperature, samples[0].Temperature
	for _, s := range samples {
		yMin = min(yMin, s.Temperature, s.Target)
		yMax = max(yMax, s.Temperature, s.Target)
	}

	span := yMax - yMin
	if span < minSpan {
		mid := (yMax + yMin) / 2
		yMin, yMax = mid-minSpan/2, mid+minSpan/2
		span = minSpan
	}
	yMin -= span * 0.1
	yMax += span * 0.1

	xMax = samples[len(samples)-1].Timestamp
	xMin = samples[0].Timestamp
	if xMax.Sub(xMin) < window {
		xMin = xMax.Add(-window)
	}
	return yMin, yMax, xMin, xMax
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	background := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	return &scopeRenderer{
		scope:      s,
		background: background,
		objects:    []fyne.CanvasObject{background},
	}
}
