package observability

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestCounter(t *testing.T) {
	r := NewMetricsRegistry()
	c := r.NewCounter("mend_builds_total", "Total builds run.", nil)

	c.Inc()
	c.Add(2)
	if got := c.Value(); got != 3 {
		t.Errorf("Value = %v, want 3", got)
	}
}

func TestGauge(t *testing.T) {
	r := NewMetricsRegistry()
	g := r.NewGauge("mend_sessions_active", "Active sessions.", nil)

	g.Set(5)
	g.Inc()
	g.Dec()
	g.Dec()
	if got := g.Value(); got != 4 {
		t.Errorf("Value = %v, want 4", got)
	}
}

func TestHistogram(t *testing.T) {
	r := NewMetricsRegistry()
	h := r.NewHistogram("mend_build_seconds", "Build durations.", nil, []float64{1, 5, 10})

	h.Observe(0.5)
	h.Observe(3)
	h.Observe(30)
	if got := h.Count(); got != 3 {
		t.Errorf("Count = %d, want 3", got)
	}
	if got := h.Sum(); got != 33.5 {
		t.Errorf("Sum = %v, want 33.5", got)
	}
}

func TestCounterConcurrency(t *testing.T) {
	r := NewMetricsRegistry()
	c := r.NewCounter("mend_fixes_total", "Total fixes.", nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Inc()
			}
		}()
	}
	wg.Wait()
	if got := c.Value(); got != 1000 {
		t.Errorf("Value = %v, want 1000", got)
	}
}

func TestPrometheusOutput(t *testing.T) {
	r := NewMetricsRegistry()
	c := r.NewCounter("mend_builds_total", "Total builds run.", map[string]string{"engine": "quickfix"})
	c.Add(7)
	g := r.NewGauge("mend_sessions_active", "Active sessions.", nil)
	g.Set(2)
	h := r.NewHistogram("mend_build_seconds", "Build durations.", nil, []float64{1, 5})
	h.Observe(0.5)
	h.Observe(7)

	var b strings.Builder
	r.WritePrometheus(&b)
	out := b.String()

	for _, want := range []string{
		"# TYPE mend_builds_total counter",
		`mend_builds_total{engine="quickfix"} 7`,
		"# TYPE mend_sessions_active gauge",
		"mend_sessions_active 2",
		"# TYPE mend_build_seconds histogram",
		`mend_build_seconds_bucket{le="1"} 1`,
		`mend_build_seconds_bucket{le="+Inf"} 2`,
		"mend_build_seconds_sum 7.5",
		"mend_build_seconds_count 2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestMetricsHandler(t *testing.T) {
	r := NewMetricsRegistry()
	r.NewCounter("mend_builds_total", "Total builds run.", nil).Inc()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "mend_builds_total 1") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestObserveDuration(t *testing.T) {
	r := NewMetricsRegistry()
	h := r.NewHistogram("mend_op_seconds", "Op durations.", nil, nil)

	h.ObserveDuration(time.Now().Add(-100 * time.Millisecond))
	if h.Count() != 1 {
		t.Fatalf("Count = %d", h.Count())
	}
	if h.Sum() < 0.05 || h.Sum() > 5 {
		t.Errorf("Sum = %v, want roughly 0.1", h.Sum())
	}
}
