// Package metrics exposes the crawler's Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for crawl jobs and outbound fetches.
type Metrics struct {
	// Documents processed by kind and outcome ("stored", "failed").
	Documents *prometheus.CounterVec

	// Sections and appendix sub-parts written.
	Sections prometheus.Counter
	SubParts prometheus.Counter

	// Registry matches by source ("concetti", "tvpl", "archive").
	Matches *prometheus.CounterVec

	// Per-document pipeline latency.
	DocumentLatency prometheus.Histogram

	// Outbound request latency by host and status class.
	FetchLatency *prometheus.HistogramVec

	// Crawl jobs waiting in the queue.
	QueueDepth prometheus.Gauge
}

// New registers every collector with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Documents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vbplcrawl_documents_total",
			Help: "Documents processed by kind and outcome",
		}, []string{"kind", "outcome"}),

		Sections: f.NewCounter(prometheus.CounterOpts{
			Name: "vbplcrawl_sections_total",
			Help: "Sections extracted from document bodies",
		}),

		SubParts: f.NewCounter(prometheus.CounterOpts{
			Name: "vbplcrawl_appendix_sub_parts_total",
			Help: "Appendix sub-parts extracted from document bodies",
		}),

		Matches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vbplcrawl_registry_matches_total",
			Help: "Documents completed from an alternate source",
		}, []string{"source"}),

		DocumentLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vbplcrawl_document_duration_seconds",
			Help:    "Duration of the full pipeline for one document",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),

		FetchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vbplcrawl_fetch_duration_seconds",
			Help:    "Duration of outbound HTTP requests by host and status class",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"host", "status"}),

		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "vbplcrawl_queue_depth",
			Help: "Crawl jobs waiting for a worker",
		}),
	}
}

// DocumentDone records one finished document.
func (m *Metrics) DocumentDone(kind string, failed bool, sections, subParts int, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "stored"
	if failed {
		outcome = "failed"
	}
	m.Documents.WithLabelValues(kind, outcome).Inc()
	m.Sections.Add(float64(sections))
	m.SubParts.Add(float64(subParts))
	m.DocumentLatency.Observe(d.Seconds())
}

// Matched records a document completed from source.
func (m *Metrics) Matched(source string) {
	if m != nil {
		m.Matches.WithLabelValues(source).Inc()
	}
}

// ObserveFetch has the shape of fetch.Observer. Status 0 is a transport
// failure.
func (m *Metrics) ObserveFetch(host string, status int, d time.Duration) {
	if m != nil {
		m.FetchLatency.WithLabelValues(host, statusClass(status)).Observe(d.Seconds())
	}
}

// SetQueueDepth records the current queue length.
func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}

func statusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
