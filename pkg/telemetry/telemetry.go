// Package telemetry exports incubator status as Prometheus metrics.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/itohio/goincubator/pkg/incubator"
)

const namespace = "incubator"

// Metrics holds the incubator gauges on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	temperature  prometheus.Gauge
	humidity     prometheus.Gauge
	target       prometheus.Gauge
	duty         prometheus.Gauge
	level        prometheus.Gauge
	heater       prometheus.Gauge
	degrees      prometheus.Gauge
	autoRotate   prometheus.Gauge
	connected    prometheus.Gauge
	sensorFaults prometheus.Counter
	ticks        prometheus.Counter
}

// New registers the incubator gauges and the Go runtime collectors.
func New() *Metrics {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	m := &Metrics{
		registry:    prometheus.NewRegistry(),
		temperature: gauge("temperature_celsius", "Sanitised chamber temperature."),
		humidity:    gauge("humidity_percent", "Sanitised relative humidity."),
		target:      gauge("target_celsius", "Target chamber temperature."),
		duty:        gauge("heater_duty", "Pre-clamp PID duty."),
		level:       gauge("heater_level", "Quantised heater level."),
		heater:      gauge("heater_on", "Heater output, 1 when on."),
		degrees:     gauge("egg_degrees", "Commanded egg tray angle."),
		autoRotate:  gauge("auto_rotate", "Automatic egg turning, 1 when enabled."),
		connected:   gauge("device_connected", "MCU link state, 1 when connected."),
		sensorFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_faults_total",
			Help:      "Sensor samples replaced by the last good reading.",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Control loop updates observed.",
		}),
	}

	m.registry.MustRegister(
		m.temperature, m.humidity, m.target, m.duty, m.level, m.heater,
		m.degrees, m.autoRotate, m.connected, m.sensorFaults, m.ticks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe records a status snapshot. It is meant to be registered with
// Runner.OnUpdate.
func (m *Metrics) Observe(st incubator.Status) {
	m.temperature.Set(float64(st.Temperature))
	m.humidity.Set(float64(st.Humidity))
	m.target.Set(float64(st.Target))
	m.duty.Set(float64(st.Duty))
	m.level.Set(float64(st.Level))
	m.heater.Set(boolToFloat(st.Heater))
	m.degrees.Set(float64(st.Degrees))
	m.autoRotate.Set(boolToFloat(st.AutoRotate))
	m.connected.Set(boolToFloat(st.Connected))
	if st.SensorFault {
		m.sensorFaults.Inc()
	}
	m.ticks.Inc()
}

// Registry exposes the registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
