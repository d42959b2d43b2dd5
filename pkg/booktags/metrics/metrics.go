// Package metrics collects per-run gauges for the textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the gauges of a single run in a private registry.
type Recorder struct {
	reg *prometheus.Registry

	InputRows     *prometheus.GaugeVec
	Tags          *prometheus.GaugeVec
	Consolidation *prometheus.GaugeVec
	Books         *prometheus.GaugeVec
	StageDuration *prometheus.GaugeVec
	RunInfo       *prometheus.GaugeVec
	LastRun       prometheus.Gauge
}

// New creates a recorder and registers its gauges.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		InputRows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "booktags_input_rows",
			Help: "Rows read from each input table",
		}, []string{"table"}),
		Tags: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "booktags_tags",
			Help: "Number of tags after each pipeline stage",
		}, []string{"stage"}),
		Consolidation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "booktags_consolidation_rows",
			Help: "Book tag rows rewritten or merged by synonym consolidation",
		}, []string{"kind"}),
		Books: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "booktags_books",
			Help: "Books written to the feature tables or dropped by the id join",
		}, []string{"result"}),
		StageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "booktags_stage_duration_seconds",
			Help: "Wall time spent in each pipeline stage",
		}, []string{"stage"}),
		RunInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "booktags_run_info",
			Help: "Identifier of the run that produced these metrics",
		}, []string{"run_id"}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "booktags_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
	r.reg.MustRegister(r.InputRows, r.Tags, r.Consolidation, r.Books, r.StageDuration, r.RunInfo, r.LastRun)
	return r
}

// Stage records how long a stage took.
func (r *Recorder) Stage(name string, d time.Duration) {
	r.StageDuration.WithLabelValues(name).Set(d.Seconds())
}

// Finish marks the run as complete.
func (r *Recorder) Finish(runID string, at time.Time) {
	r.RunInfo.WithLabelValues(runID).Set(1)
	r.LastRun.Set(float64(at.Unix()))
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.reg
}

// WriteTextfile writes the gauges in text exposition format for the node
// exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
