package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skobkin/joylink/internal/connectors"
)

const namespace = "joylink"

// Collector holds link and API metrics on a private registry.
// It satisfies device.Observer.
type Collector struct {
	registry *prometheus.Registry

	linesReceived  prometheus.Counter
	lineBytes      prometheus.Counter
	recordsDecoded prometheus.Counter
	malformedLines prometheus.Counter
	ignoredRecords prometheus.Counter
	recordsSent    prometheus.Counter
	sendFailures   prometheus.Counter
	connState      *prometheus.GaugeVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		linesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "lines_received_total",
			Help:      "Complete lines read from the peripheral.",
		}),
		lineBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "line_bytes_received_total",
			Help:      "Bytes of complete lines read from the peripheral.",
		}),
		recordsDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "records_decoded_total",
			Help:      "Joystick readings decoded.",
		}),
		malformedLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "malformed_lines_total",
			Help:      "Lines that could not be decoded.",
		}),
		ignoredRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "ignored_records_total",
			Help:      "Well-formed records that were not joystick readings.",
		}),
		recordsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "records_sent_total",
			Help:      "LED commands written to the peripheral.",
		}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "send_failures_total",
			Help:      "LED commands that could not be written.",
		}),
		connState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "link",
			Name:      "connection_state",
			Help:      "1 for the current connection state, 0 otherwise.",
		}, []string{"state"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}

	c.registry.MustRegister(
		c.linesReceived,
		c.lineBytes,
		c.recordsDecoded,
		c.malformedLines,
		c.ignoredRecords,
		c.recordsSent,
		c.sendFailures,
		c.connState,
		c.httpRequests,
		c.httpDuration,
	)
	c.ConnectionState(connectors.ConnectionStateDisconnected)

	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) LineReceived(n int) {
	c.linesReceived.Inc()
	c.lineBytes.Add(float64(n))
}

func (c *Collector) ReadingDecoded() {
	c.recordsDecoded.Inc()
}

func (c *Collector) MalformedLine() {
	c.malformedLines.Inc()
}

func (c *Collector) RecordIgnored() {
	c.ignoredRecords.Inc()
}

func (c *Collector) CommandSent() {
	c.recordsSent.Inc()
}

func (c *Collector) SendFailed() {
	c.sendFailures.Inc()
}

func (c *Collector) ConnectionState(state connectors.ConnectionState) {
	for _, s := range []connectors.ConnectionState{
		connectors.ConnectionStateDisconnected,
		connectors.ConnectionStateConnecting,
		connectors.ConnectionStateConnected,
	} {
		value := 0.0
		if s == state {
			value = 1
		}
		c.connState.WithLabelValues(string(s)).Set(value)
	}
}

func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusLabel := strconv.Itoa(status)
	c.httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	c.httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
