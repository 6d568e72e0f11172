// internal/metrics/metrics.go
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"treespace/internal/dispatch"
	"treespace/internal/orthogroup"
)

// Unit status label values.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Batch holds the metrics of one run in a private registry, so several runs
// in one process never share counters.
type Batch struct {
	reg      *prometheus.Registry
	units    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	running  *prometheus.GaugeVec
	families *prometheus.GaugeVec
}

var _ dispatch.Observer = (*Batch)(nil)

// New registers the treespace collectors on a fresh registry.
func New() *Batch {
	b := &Batch{
		reg: prometheus.NewRegistry(),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "treespace_units_total",
			Help: "Per-family tool invocations by stage and final status.",
		}, []string{"stage", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "treespace_unit_duration_seconds",
			Help:    "Wall time of per-family tool invocations.",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
		}, []string{"stage"}),
		running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "treespace_units_running",
			Help: "Units currently executing.",
		}, []string{"stage"}),
		families: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "treespace_families",
			Help: "Families in the orthogroup table by class.",
		}, []string{"class"}),
	}
	b.reg.MustRegister(b.units, b.duration, b.running, b.families)
	return b
}

// Registry exposes the underlying registry.
func (b *Batch) Registry() *prometheus.Registry { return b.reg }

// SetFamilies records the classification totals.
func (b *Batch) SetFamilies(singletons, multi int) {
	b.families.WithLabelValues(orthogroup.Singleton.String()).Set(float64(singletons))
	b.families.WithLabelValues(orthogroup.MultiMember.String()).Set(float64(multi))
}

func (b *Batch) UnitStarted(_ context.Context, stage, _ string) {
	b.running.WithLabelValues(stage).Inc()
}

func (b *Batch) UnitFinished(_ context.Context, oc dispatch.Outcome) {
	b.running.WithLabelValues(oc.Stage).Dec()
	status := StatusOK
	if !oc.OK() {
		status = StatusFailed
	}
	b.units.WithLabelValues(oc.Stage, status).Inc()
	if !oc.Started.IsZero() && !oc.Finished.IsZero() {
		b.duration.WithLabelValues(oc.Stage).Observe(oc.Finished.Sub(oc.Started).Seconds())
	}
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (b *Batch) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, b.reg)
}
