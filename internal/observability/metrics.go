package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tspsctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tspsctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	packetsReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tspsctl",
			Subsystem: "receiver",
			Name:      "packets_total",
			Help:      "UDP datagrams decoded into OSC packets.",
		},
	)
	receiverErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tspsctl",
			Subsystem: "receiver",
			Name:      "errors_total",
			Help:      "Receive loop errors by kind; the packet is dropped.",
		},
		[]string{"kind"},
	)
	messagesQueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tspsctl",
			Subsystem: "receiver",
			Name:      "messages_queued_total",
			Help:      "OSC messages appended to the hand-off queue.",
		},
	)
	messagesApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tspsctl",
			Subsystem: "registry",
			Name:      "messages_total",
			Help:      "Messages applied to the registry by address and result.",
		},
		[]string{"address", "result"},
	)
	drainBatch = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tspsctl",
			Subsystem: "pump",
			Name:      "drain_batch_size",
			Help:      "Messages taken per non-empty drain.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
	livePeople = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tspsctl",
			Subsystem: "registry",
			Name:      "people",
			Help:      "Live tracked people.",
		},
	)
	observerPanics = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tspsctl",
			Subsystem: "registry",
			Name:      "observer_panics_total",
			Help:      "Recovered observer callback panics by event.",
		},
		[]string{"event"},
	)
	streamDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tspsctl",
			Subsystem: "stream",
			Name:      "dropped_total",
			Help:      "Stream events dropped because a client buffer was full.",
		},
	)
	streamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tspsctl",
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Attached stream clients.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			packetsReceived, receiverErrors, messagesQueued,
			messagesApplied, drainBatch, livePeople, observerPanics,
			streamDropped, streamClients,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordPacket(messages int) {
	RegisterMetrics()
	packetsReceived.Inc()
	messagesQueued.Add(float64(messages))
}

func RecordReceiverError(kind string) {
	RegisterMetrics()
	receiverErrors.WithLabelValues(kind).Inc()
}

func RecordMessage(address, result string) {
	RegisterMetrics()
	messagesApplied.WithLabelValues(address, result).Inc()
}

func RecordDrain(n int) {
	RegisterMetrics()
	drainBatch.Observe(float64(n))
}

func SetLivePeople(n int) {
	RegisterMetrics()
	livePeople.Set(float64(n))
}

func RecordObserverPanic(event string) {
	RegisterMetrics()
	observerPanics.WithLabelValues(event).Inc()
}

func RecordStreamDrop() {
	RegisterMetrics()
	streamDropped.Inc()
}

func SetStreamClients(n int) {
	RegisterMetrics()
	streamClients.Set(float64(n))
}
