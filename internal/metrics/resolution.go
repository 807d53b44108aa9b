// Package metrics exposes Prometheus instruments for auth resolution.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Resolution records resolution passes, decoded deep links and live clients.
type Resolution struct {
	passes        *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	deepLinks     *prometheus.CounterVec
	activeClients prometheus.Gauge
}

// NewResolution registers the resolution metrics on the provided registerer.
func NewResolution(reg prometheus.Registerer) *Resolution {
	if reg == nil {
		return &Resolution{}
	}
	passes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gigbridge",
		Name:      "resolution_passes_total",
		Help:      "Auth resolution passes by resulting state and whether a navigation was issued.",
	}, []string{"state", "navigated"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gigbridge",
		Name:      "resolution_duration_seconds",
		Help:      "Duration of auth resolution passes in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"state"})
	deepLinks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gigbridge",
		Name:      "deep_links_total",
		Help:      "Deep links received by decoded kind.",
	}, []string{"kind"})
	activeClients := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gigbridge",
		Name:      "active_clients",
		Help:      "Client instances currently registered.",
	})
	reg.MustRegister(passes, duration, deepLinks, activeClients)
	return &Resolution{
		passes:        passes,
		duration:      duration,
		deepLinks:     deepLinks,
		activeClients: activeClients,
	}
}

// ObservePass records one resolution pass.
func (r *Resolution) ObservePass(state string, navigated bool, d time.Duration) {
	if r == nil || r.passes == nil {
		return
	}
	state = normalizeLabel(state)
	r.passes.WithLabelValues(state, strconv.FormatBool(navigated)).Inc()
	r.duration.WithLabelValues(state).Observe(d.Seconds())
}

// ObserveDeepLink counts a decoded deep link.
func (r *Resolution) ObserveDeepLink(kind string) {
	if r == nil || r.deepLinks == nil {
		return
	}
	r.deepLinks.WithLabelValues(normalizeLabel(kind)).Inc()
}

// SetActiveClients reports the number of registered clients.
func (r *Resolution) SetActiveClients(n int) {
	if r == nil || r.activeClients == nil {
		return
	}
	r.activeClients.Set(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
