package observability

// PipelineMetrics bundles the counters and histograms the repair pipeline
// reports. All methods are nil-safe so call sites need no guards.
type PipelineMetrics struct {
	BuildsTotal   *Counter
	BuildFailures *Counter
	QuickFixes    *Counter
	LLMCalls      *Counter
	BuildDuration *Histogram
}

// NewPipelineMetrics registers the pipeline metrics on the given registry.
func NewPipelineMetrics(r *MetricsRegistry) *PipelineMetrics {
	return &PipelineMetrics{
		BuildsTotal:   r.NewCounter("mend_builds_total", "Build validations run", nil),
		BuildFailures: r.NewCounter("mend_build_failures_total", "Build validations that failed", nil),
		QuickFixes:    r.NewCounter("mend_quickfixes_total", "Quick-fix rule applications", nil),
		LLMCalls:      r.NewCounter("mend_llm_calls_total", "Model repair rounds", nil),
		BuildDuration: r.NewHistogram("mend_build_duration_seconds", "Build validation latency", nil, nil),
	}
}

// RecordBuild records one build validation.
func (m *PipelineMetrics) RecordBuild(success bool, seconds float64) {
	if m == nil {
		return
	}
	m.BuildsTotal.Inc()
	if !success {
		m.BuildFailures.Inc()
	}
	m.BuildDuration.Observe(seconds)
}

// RecordQuickFix records applied quick-fix changes.
func (m *PipelineMetrics) RecordQuickFix(changes int) {
	if m == nil {
		return
	}
	m.QuickFixes.Add(float64(changes))
}

// RecordLLMCall records one model repair round.
func (m *PipelineMetrics) RecordLLMCall() {
	if m == nil {
		return
	}
	m.LLMCalls.Inc()
}
