package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestDocumentDone(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.DocumentDone("phapquy", false, 12, 2, time.Second)
	m.DocumentDone("phapquy", true, 0, 0, time.Second)
	m.DocumentDone("hopnhat", false, 3, 0, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Documents.WithLabelValues("phapquy", "stored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Documents.WithLabelValues("phapquy", "failed")))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.Sections))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SubParts))
}

func TestObserveFetchStatusClass(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveFetch("vbpl.vn", 200, 10*time.Millisecond)
	m.ObserveFetch("vbpl.vn", 404, 10*time.Millisecond)
	m.ObserveFetch("vbpl.vn", 0, 10*time.Millisecond)

	assert.Equal(t, 3, testutil.CollectAndCount(m.FetchLatency))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.DocumentDone("phapquy", false, 1, 1, time.Second)
	m.Matched("concetti")
	m.ObserveFetch("x", 200, time.Second)
	m.SetQueueDepth(3)
}

func TestStatusClass(t *testing.T) {
	cases := map[int]string{0: "error", -1: "error", 200: "2xx", 302: "3xx", 503: "5xx"}
	for in, want := range cases {
		if got := statusClass(in); got != want {
			t.Errorf("statusClass(%d): expected %q, got %q", in, want, got)
		}
	}
}
