package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry creates a custom Prometheus registry with the standard
// Go/process collectors attached.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler returns the Prometheus exposition HTTP handler.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics are the domain counters/gauges this core exposes.
type AppMetrics struct {
	FramesDecoded     *prometheus.CounterVec // labels: type
	FramesDropped     prometheus.Counter
	RequestsSent      prometheus.Counter
	RequestTimeouts   prometheus.Counter
	RequestErrors     prometheus.Counter
	ReconnectTotal    prometheus.Counter
	OnlineDeviceGauge prometheus.Gauge
}

// NewAppMetrics registers and returns the domain metrics.
func NewAppMetrics(reg *prometheus.Registry) *AppMetrics {
	m := &AppMetrics{
		FramesDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "veloctl_frames_decoded_total",
			Help: "MUP1 frames successfully decoded, by frame type.",
		}, []string{"type"}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "veloctl_frames_dropped_total",
			Help: "MUP1 frames dropped due to framing or checksum failure.",
		}),
		RequestsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "veloctl_requests_sent_total",
			Help: "CoAP requests sent across all device connections.",
		}),
		RequestTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "veloctl_request_timeouts_total",
			Help: "CoAP requests that timed out waiting for a response.",
		}),
		RequestErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "veloctl_request_errors_total",
			Help: "CoAP requests that failed other than by timeout: a non-2.xx response or a dropped connection.",
		}),
		ReconnectTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "veloctl_reconnect_total",
			Help: "Device connect attempts, first and repeated, across all serial paths.",
		}),
		OnlineDeviceGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "veloctl_online_devices",
			Help: "Current number of connected Device Connections.",
		}),
	}
	reg.MustRegister(m.FramesDecoded, m.FramesDropped, m.RequestsSent, m.RequestTimeouts, m.RequestErrors, m.ReconnectTotal, m.OnlineDeviceGauge)
	return m
}
