package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Rooms           prometheus.Gauge
	PlayersJoined   prometheus.Counter
	RolesAssigned   prometheus.Counter
	RoundsCompleted *prometheus.CounterVec
	Resets          prometheus.Counter
	RequestLatency  *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New registers all collectors on a private registry so several servers
// (and tests) can coexist in one process.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms",
			Help:      "Number of rooms held in memory",
		}),
		PlayersJoined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "players_joined_total",
			Help:      "Players added to rooms, creators included",
		}),
		RolesAssigned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "role_assignments_total",
			Help:      "Rounds that had roles dealt",
		}),
		RoundsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_completed_total",
			Help:      "Resolved rounds by guess outcome",
		}, []string{"outcome"}),
		Resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_resets_total",
			Help:      "Rooms reset for another round",
		}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"route", "status"}),
		registry: reg,
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Rooms,
		m.PlayersJoined,
		m.RolesAssigned,
		m.RoundsCompleted,
		m.Resets,
		m.RequestLatency,
	)
	return m
}

func (m *Metrics) SetRooms(n int) {
	m.Rooms.Set(float64(n))
}

func (m *Metrics) ObserveRound(correct bool) {
	outcome := "chor_escaped"
	if correct {
		outcome = "chor_caught"
	}
	m.RoundsCompleted.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRequest(route, status string, d time.Duration) {
	m.RequestLatency.WithLabelValues(route, status).Observe(d.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
