// Package metrics defines the prometheus collectors of the import service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Candidate outcomes.
const (
	OutcomeImported  = "imported"
	OutcomeDuplicate = "duplicate"
	OutcomeInvalid   = "invalid"
)

// Task store lookup results.
const (
	LookupHit  = "hit"
	LookupMiss = "miss"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	candidates     *prometheus.CounterVec
	documents      prometheus.Counter
	commitFailures prometheus.Counter
	taskLookups    *prometheus.CounterVec
	tasksStaged    *prometheus.CounterVec
	gatherer       prometheus.Gatherer
}

// New creates the collectors and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "regatta_import",
			Name:      "candidates_total",
			Help:      "Selected candidate records by import outcome.",
		}, []string{"outcome"}),
		documents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "regatta_import",
			Name:      "documents_attached_total",
			Help:      "Documents attached to regattas.",
		}),
		commitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "regatta_import",
			Name:      "commit_failures_total",
			Help:      "Import transactions rolled back on storage failure.",
		}),
		taskLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "regatta_import",
			Name:      "task_lookups_total",
			Help:      "Task store lookups by task kind and result.",
		}, []string{"kind", "result"}),
		tasksStaged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "regatta_import",
			Name:      "tasks_staged_total",
			Help:      "Extraction tasks staged by the extractor, by kind.",
		}, []string{"kind"}),
		gatherer: reg,
	}
	reg.MustRegister(m.candidates, m.documents, m.commitFailures, m.taskLookups, m.tasksStaged)
	return m
}

// ObserveImport records the counts of one committed import.
func (m *Metrics) ObserveImport(imported, duplicates, invalid, documents int) {
	if m == nil {
		return
	}
	m.candidates.WithLabelValues(OutcomeImported).Add(float64(imported))
	m.candidates.WithLabelValues(OutcomeDuplicate).Add(float64(duplicates))
	m.candidates.WithLabelValues(OutcomeInvalid).Add(float64(invalid))
	m.documents.Add(float64(documents))
}

// ObserveDocuments records documents attached outside a regatta import.
func (m *Metrics) ObserveDocuments(n int) {
	if m == nil {
		return
	}
	m.documents.Add(float64(n))
}

// CommitFailed records one rolled-back import.
func (m *Metrics) CommitFailed() {
	if m == nil {
		return
	}
	m.commitFailures.Inc()
}

// TaskLookup records a task store read.
func (m *Metrics) TaskLookup(kind string, found bool) {
	if m == nil {
		return
	}
	result := LookupMiss
	if found {
		result = LookupHit
	}
	m.taskLookups.WithLabelValues(kind, result).Inc()
}

// TaskStaged records a task written by the extractor.
func (m *Metrics) TaskStaged(kind string) {
	if m == nil {
		return
	}
	m.tasksStaged.WithLabelValues(kind).Inc()
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
