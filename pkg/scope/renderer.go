package scope

import (
	"image/color"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"

	"github.com/itohio/goincubator/pkg/meter"
	"github.com/itohio/goincubator/pkg/sample"
)

var (
	gridColor        = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor       = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	temperatureColor = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	targetColor      = color.RGBA{R: 100, G: 200, B: 255, A: 255}
	heaterColor      = color.RGBA{R: 200, G: 60, B: 40, A: 255}
	excursionColor   = color.RGBA{R: 220, G: 40, B: 40, A: 90}
)

// plot maps data coordinates into the drawing area.
type plot struct {
	x, y, width, height float32
	yMin, yMax          float64
	xMin, xMax          time.Time
}

func (p plot) posX(t time.Time) float32 {
	span := p.xMax.Sub(p.xMin).Seconds()
	if span <= 0 {
		return p.x
	}
	return p.x + float32(t.Sub(p.xMin).Seconds()/span)*p.width
}

func (p plot) posY(v float64) float32 {
	span := p.yMax - p.yMin
	if span <= 0 {
		return p.y + p.height/2
	}
	return p.y + p.height - float32((v-p.yMin)/span)*p.height
}

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope *ScopeWidget

	background *canvas.Rectangle
	objects    []fyne.CanvasObject
	lastSize   fyne.Size
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 250)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	r.background.Resize(size)

	if r.lastSize != size {
		r.lastSize = size
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh rebuilds the canvas objects from the current data.
func (r *scopeRenderer) Refresh() {
	r.scope.mu.RLock()
	samples := r.scope.displaySamples
	rates := r.scope.rates
	excursions := r.scope.excursions
	full := r.scope.samples
	p := plot{
		yMin: r.scope.yMin,
		yMax: r.scope.yMax,
		xMin: r.scope.xMin,
		xMax: r.scope.xMax,
	}
	r.scope.mu.RUnlock()

	size := r.scope.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	const marginLeft, marginRight, marginTop, marginBottom = 50, 20, 20, 30
	p.x, p.y = marginLeft, marginTop
	p.width = size.Width - marginLeft - marginRight
	p.height = size.Height - marginTop - marginBottom

	r.objects = []fyne.CanvasObject{r.background}
	r.drawExcursions(p, excursions)
	r.drawGrid(p)
	r.drawHeater(p, samples)
	r.drawSeries(p, samples, func(s sample.Sample) float64 { return s.Target }, targetColor, 1)
	r.drawSeries(p, samples, func(s sample.Sample) float64 { return s.Temperature }, temperatureColor, 2)
	r.drawRate(p, full, rates)
}

func (r *scopeRenderer) drawGrid(p plot) {
	const hLines, vLines = 6, 6

	for i := range hLines + 1 {
		y := p.y + float32(i)*p.height/hLines
		r.addLine(gridColor, 1, fyne.NewPos(p.x, y), fyne.NewPos(p.x+p.width, y))

		value := p.yMax - float64(i)*(p.yMax-p.yMin)/hLines
		r.addText(formatTemperature(value), labelColor, 10, fyne.TextAlignTrailing, fyne.NewPos(p.x-5, y-6))
	}

	span := p.xMax.Sub(p.xMin)
	for i := range vLines + 1 {
		x := p.x + float32(i)*p.width/vLines
		r.addLine(gridColor, 1, fyne.NewPos(x, p.y), fyne.NewPos(x, p.y+p.height))

		ago := span - time.Duration(i)*span/vLines
		r.addText(formatAgo(ago), labelColor, 10, fyne.TextAlignCenter, fyne.NewPos(x-20, p.y+p.height+5))
	}
}

func (r *scopeRenderer) drawSeries(p plot, samples []sample.Sample, value func(sample.Sample) float64, c color.Color, width float32) {
	for i := 1; i < len(samples); i++ {
		r.addLine(c, width,
			fyne.NewPos(p.posX(samples[i-1].Timestamp), p.posY(value(samples[i-1]))),
			fyne.NewPos(p.posX(samples[i].Timestamp), p.posY(value(samples[i]))))
	}
}

// drawHeater marks heater-on intervals along the bottom edge.
func (r *scopeRenderer) drawHeater(p plot, samples []sample.Sample) {
	bottom := p.y + p.height - 2
	for i := 1; i < len(samples); i++ {
		if !samples[i-1].Heater {
			continue
		}
		r.addLine(heaterColor, 4,
			fyne.NewPos(p.posX(samples[i-1].Timestamp), bottom),
			fyne.NewPos(p.posX(samples[i].Timestamp), bottom))
	}
}

func (r *scopeRenderer) drawExcursions(p plot, excursions []meter.Excursion) {
	for _, e := range excursions {
		x1 := max(p.x, p.posX(e.StartTime))
		x2 := max(x1+1, p.posX(e.EndTime))
		rect := canvas.NewRectangle(excursionColor)
		rect.Move(fyne.NewPos(x1, p.y))
		rect.Resize(fyne.NewSize(x2-x1, p.height))
		r.objects = append(r.objects, rect)
	}
}

// drawRate prints the latest heating rate in the top-left corner.
func (r *scopeRenderer) drawRate(p plot, samples []sample.Sample, rates []float64) {
	if len(rates) == 0 || len(samples) == 0 {
		return
	}
	last := samples[len(samples)-1]
	text := formatTemperature(last.Temperature) + "  " + formatRate(rates[len(rates)-1])
	r.addText(text, temperatureColor, 12, fyne.TextAlignLeading, fyne.NewPos(p.x+10, p.y+5))
}

func (r *scopeRenderer) addLine(c color.Color, width float32, from, to fyne.Position) {
	line := canvas.NewLine(c)
	line.Position1 = from
	line.Position2 = to
	line.StrokeWidth = width
	r.objects = append(r.objects, line)
}

func (r *scopeRenderer) addText(s string, c color.Color, size float32, align fyne.TextAlign, pos fyne.Position) {
	text := canvas.NewText(s, c)
	text.TextSize = size
	text.Alignment = align
	text.Move(pos)
	r.objects = append(r.objects, text)
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {}

func formatTemperature(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64) + "°C"
}

func formatRate(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	if v >= 0 {
		s = "+" + s
	}
	return s + "°C/min"
}

// formatAgo renders a duration before now as "-5m", "-30s" or "now".
func formatAgo(d time.Duration) string {
	switch {
	case d <= 0:
		return "now"
	case d >= time.Hour:
		return "-" + strconv.FormatFloat(d.Hours(), 'f', 1, 64) + "h"
	case d >= time.Minute:
		return "-" + strconv.Itoa(int(d.Round(time.Minute)/time.Minute)) + "m"
	default:
		return "-" + strconv.Itoa(int(d.Round(time.Second)/time.Second)) + "s"
	}
}
