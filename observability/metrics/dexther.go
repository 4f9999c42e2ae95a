package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DextherMetrics tracks settlement, offer and HTTP activity for dextherd.
type DextherMetrics struct {
	swaps        *prometheus.CounterVec
	offers       *prometheus.CounterVec
	assetsMoved  *prometheus.CounterVec
	feesCharged  prometheus.Counter
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	subscribers  prometheus.Gauge
}

var (
	dextherOnce     sync.Once
	dextherRegistry *DextherMetrics
)

// Dexther returns the process wide metrics registry, registering the
// collectors with the default prometheus registerer on first use.
func Dexther() *DextherMetrics {
	dextherOnce.Do(func() {
		dextherRegistry = newDextherMetrics()
		prometheus.MustRegister(dextherRegistry.collectors()...)
	})
	return dextherRegistry
}

// NewUnregistered builds a metrics set that is not attached to any
// registerer. Callers register it themselves via Register.
func NewUnregistered() *DextherMetrics {
	return newDextherMetrics()
}

// Register attaches the collectors to reg.
func (m *DextherMetrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func newDextherMetrics() *DextherMetrics {
	return &DextherMetrics{
		swaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dexther_swaps_total",
			Help: "Count of swap settlement attempts by outcome.",
		}, []string{"outcome"}),
		offers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dexther_offers_total",
			Help: "Count of offer lifecycle transitions by transition and outcome.",
		}, []string{"transition", "outcome"}),
		assetsMoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dexther_assets_moved_total",
			Help: "Number of asset transfers executed by kind.",
		}, []string{"kind"}),
		feesCharged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dexther_fees_charged_total",
			Help: "Number of fee charges routed to the treasury.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dexther_http_requests_total",
			Help: "HTTP requests served by route and status code.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dexther_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dexther_event_subscribers",
			Help: "Live websocket event subscribers.",
		}),
	}
}

func (m *DextherMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.swaps,
		m.offers,
		m.assetsMoved,
		m.feesCharged,
		m.httpRequests,
		m.httpDuration,
		m.subscribers,
	}
}

func labelOrUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// ObserveSwap records a settlement attempt. outcome is "settled" or an error
// class such as "invalid_signature".
func (m *DextherMetrics) ObserveSwap(outcome string) {
	if m == nil {
		return
	}
	m.swaps.WithLabelValues(labelOrUnknown(outcome)).Inc()
}

func (m *DextherMetrics) ObserveOffer(transition, outcome string) {
	if m == nil {
		return
	}
	m.offers.WithLabelValues(labelOrUnknown(transition), labelOrUnknown(outcome)).Inc()
}

// ObserveAssetsMoved adds count transfers of the given kind.
func (m *DextherMetrics) ObserveAssetsMoved(kind string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.assetsMoved.WithLabelValues(labelOrUnknown(kind)).Add(float64(count))
}

func (m *DextherMetrics) ObserveFees(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.feesCharged.Add(float64(count))
}

// ObserveHTTP records a served request.
func (m *DextherMetrics) ObserveHTTP(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	route = labelOrUnknown(route)
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *DextherMetrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}
