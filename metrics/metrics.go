// Package metrics exports pathfinding telemetry to Prometheus.
package metrics

import (
	"github.com/kasuganosora/gridpath/game/pathfind"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service collectors. Every room reports through its own
// Observer, labelled with the map ID.
type Metrics struct {
	searches   *prometheus.CounterVec
	withdrawn  *prometheus.CounterVec
	yields     *prometheus.CounterVec
	expanded   *prometheus.HistogramVec
	slices     *prometheus.HistogramVec
	latency    *prometheus.HistogramVec
	pathLength *prometheus.HistogramVec
	rejected   *prometheus.CounterVec
	rooms      prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		searches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gridpath_searches_total",
			Help: "Completed searches by outcome",
		}, []string{"map_id", "outcome"}), // "found" or "exhausted"
		withdrawn: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gridpath_requests_withdrawn_total",
			Help: "Requests dropped without notification by a rebind",
		}, []string{"map_id"}),
		yields: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gridpath_slice_yields_total",
			Help: "Ticks that ended with a search still in progress",
		}, []string{"map_id"}),
		expanded: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridpath_search_expanded_nodes",
			Help:    "Nodes expanded per search",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"map_id"}),
		slices: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridpath_search_slices",
			Help:    "Ticks spent per search",
			Buckets: []float64{1, 2, 3, 5, 10, 20, 50, 100},
		}, []string{"map_id"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridpath_search_duration_seconds",
			Help:    "Wall time from the first expansion to completion, yields included",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}, []string{"map_id"}),
		pathLength: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridpath_path_steps",
			Help:    "Steps in delivered paths",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}, []string{"map_id"}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "gridpath_requests_rejected_total",
			Help: "Submissions refused synchronously by reason",
		}, []string{"reason"}),
		rooms: f.NewGauge(prometheus.GaugeOpts{
			Name: "gridpath_active_rooms",
			Help: "Rooms with a running tick loop",
		}),
	}
}

// Rejected counts a refused submission.
func (m *Metrics) Rejected(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}

// RoomStarted and RoomStopped track the room gauge.
func (m *Metrics) RoomStarted() { m.rooms.Inc() }

func (m *Metrics) RoomStopped() { m.rooms.Dec() }

// Observer returns the pathfind.Observer for one map.
func (m *Metrics) Observer(mapID string) pathfind.Observer {
	return &observer{m: m, mapID: mapID}
}

type observer struct {
	m     *Metrics
	mapID string
}

func (o *observer) SearchStarted(*pathfind.Request) {}

func (o *observer) SearchFinished(_ *pathfind.Request, res pathfind.Result) {
	outcome := "exhausted"
	if res.Found {
		outcome = "found"
		o.m.pathLength.WithLabelValues(o.mapID).Observe(float64(res.Steps()))
	}
	o.m.searches.WithLabelValues(o.mapID, outcome).Inc()
	o.m.expanded.WithLabelValues(o.mapID).Observe(float64(res.Expanded))
	o.m.slices.WithLabelValues(o.mapID).Observe(float64(res.Slices))
	o.m.latency.WithLabelValues(o.mapID).Observe(res.Elapsed.Seconds())
}

func (o *observer) SliceYielded(*pathfind.Request) {
	o.m.yields.WithLabelValues(o.mapID).Inc()
}

func (o *observer) RequestsWithdrawn(reqs []*pathfind.Request) {
	o.m.withdrawn.WithLabelValues(o.mapID).Add(float64(len(reqs)))
}
