package observability

import "testing"

func TestPipelineMetricsRecords(t *testing.T) {
	r := NewMetricsRegistry()
	m := NewPipelineMetrics(r)

	m.RecordBuild(true, 1.5)
	m.RecordBuild(false, 20)
	m.RecordQuickFix(3)
	m.RecordLLMCall()

	if got := m.BuildsTotal.Value(); got != 2 {
		t.Errorf("BuildsTotal = %v, want 2", got)
	}
	if got := m.BuildFailures.Value(); got != 1 {
		t.Errorf("BuildFailures = %v, want 1", got)
	}
	if got := m.QuickFixes.Value(); got != 3 {
		t.Errorf("QuickFixes = %v, want 3", got)
	}
	if got := m.LLMCalls.Value(); got != 1 {
		t.Errorf("LLMCalls = %v, want 1", got)
	}
	if got := m.BuildDuration.Count(); got != 2 {
		t.Errorf("BuildDuration.Count = %d, want 2", got)
	}
}

func TestPipelineMetricsNilSafe(t *testing.T) {
	var m *PipelineMetrics
	m.RecordBuild(true, 1)
	m.RecordQuickFix(1)
	m.RecordLLMCall()
}
