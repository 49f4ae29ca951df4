package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline groups collectors for the inventory alerting pipeline.
// A nil *Pipeline is valid and records nothing.
type Pipeline struct {
	snapshotVersion prometheus.Gauge
	refreshFailures prometheus.Counter
	eventsApplied   *prometheus.CounterVec
	eventsOverflow  prometheus.Counter
	activeAlerts    *prometheus.GaugeVec
	soundCues       *prometheus.CounterVec
	probeLatency    prometheus.Histogram
	storeUp         prometheus.Gauge
}

// NewPipeline registers pipeline collectors on registerer.
func NewPipeline(registerer prometheus.Registerer) *Pipeline {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	p := &Pipeline{
		snapshotVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "odyssey_inventory_snapshot_version",
			Help: "Version of the latest published inventory snapshot.",
		}),
		refreshFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "odyssey_inventory_refresh_failures_total",
			Help: "Inventory refetches that failed and kept the previous snapshot.",
		}),
		eventsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_inventory_events_total",
			Help: "Change events applied by the snapshot cache by operation.",
		}, []string{"op"}),
		eventsOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "odyssey_inventory_events_overflow_total",
			Help: "Change events dropped from a full queue and replaced by a refetch.",
		}),
		activeAlerts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "odyssey_inventory_alerts",
			Help: "Items currently classified per stock level.",
		}, []string{"level"}),
		soundCues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "odyssey_sound_cues_total",
			Help: "Sound cues played by kind and outcome.",
		}, []string{"kind", "outcome"}),
		probeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "odyssey_store_probe_latency_seconds",
			Help:    "Round-trip latency of store connectivity probes.",
			Buckets: prometheus.DefBuckets,
		}),
		storeUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "odyssey_store_up",
			Help: "1 when the last connectivity probe reached the store.",
		}),
	}
	registerer.MustRegister(
		p.snapshotVersion,
		p.refreshFailures,
		p.eventsApplied,
		p.eventsOverflow,
		p.activeAlerts,
		p.soundCues,
		p.probeLatency,
		p.storeUp,
	)
	return p
}

// SnapshotPublished records the version of a newly published snapshot.
func (p *Pipeline) SnapshotPublished(version uint64) {
	if p == nil {
		return
	}
	p.snapshotVersion.Set(float64(version))
}

// RefreshFailed counts a failed refetch.
func (p *Pipeline) RefreshFailed() {
	if p == nil {
		return
	}
	p.refreshFailures.Inc()
}

// EventApplied counts an applied change event.
func (p *Pipeline) EventApplied(op string) {
	if p == nil {
		return
	}
	p.eventsApplied.WithLabelValues(op).Inc()
}

// EventOverflow counts an event dropped from a full queue.
func (p *Pipeline) EventOverflow() {
	if p == nil {
		return
	}
	p.eventsOverflow.Inc()
}

// SetAlertCounts records how many items sit at each level.
func (p *Pipeline) SetAlertCounts(critical, low int) {
	if p == nil {
		return
	}
	p.activeAlerts.WithLabelValues("critical").Set(float64(critical))
	p.activeAlerts.WithLabelValues("low").Set(float64(low))
}

// SoundCue counts a sound cue outcome (played, muted, failed).
func (p *Pipeline) SoundCue(kind, outcome string) {
	if p == nil {
		return
	}
	p.soundCues.WithLabelValues(kind, outcome).Inc()
}

// Probe records a connectivity probe result.
func (p *Pipeline) Probe(reachable bool, latencySeconds float64) {
	if p == nil {
		return
	}
	if reachable {
		p.storeUp.Set(1)
		p.probeLatency.Observe(latencySeconds)
		return
	}
	p.storeUp.Set(0)
}
