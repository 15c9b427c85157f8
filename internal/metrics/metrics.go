// Package metrics collects statistics for a full repair run and renders
// them as JSON or a human-readable report.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/buildmend/mend/internal/repair"
)

// SessionMetrics collects statistics for one repair session.
type SessionMetrics struct {
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at,omitempty"`
	Duration   time.Duration    `json:"duration_ms,omitempty"`
	Outcome    string           `json:"outcome"`
	Success    bool             `json:"success"`
	Input      InputMetrics     `json:"input"`
	Attempts   []AttemptMetrics `json:"attempts"`
	LLM        LLMMetrics       `json:"llm"`
	Errors     []string         `json:"errors,omitempty"`
}

type InputMetrics struct {
	FileCount  int `json:"file_count"`
	TotalBytes int `json:"total_bytes"`
}

type AttemptMetrics struct {
	Number  int    `json:"number"`
	Engine  string `json:"engine"`
	Errors  int    `json:"errors"`
	Changes int    `json:"changes"`
}

type LLMMetrics struct {
	Calls        int    `json:"calls"`
	Provider     string `json:"provider,omitempty"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// New starts tracking a session.
func New() *SessionMetrics {
	return &SessionMetrics{StartedAt: time.Now()}
}

// CollectInput records the size of the tree under repair.
func (m *SessionMetrics) CollectInput(fileCount, totalBytes int) {
	m.Input.FileCount = fileCount
	m.Input.TotalBytes = totalBytes
}

// AddLLMCall accumulates token usage across model calls.
func (m *SessionMetrics) AddLLMCall(provider string, inputTokens, outputTokens int) {
	m.LLM.Calls++
	m.LLM.Provider = provider
	m.LLM.InputTokens += inputTokens
	m.LLM.OutputTokens += outputTokens
}

// Finish folds a terminal repair result into the metrics.
func (m *SessionMetrics) Finish(res *repair.Result) {
	m.FinishedAt = time.Now()
	m.Duration = m.FinishedAt.Sub(m.StartedAt)
	m.Outcome = string(res.Outcome)
	m.Success = res.Success
	for _, a := range res.Attempts {
		m.Attempts = append(m.Attempts, AttemptMetrics{
			Number:  a.Number,
			Engine:  string(a.Engine),
			Errors:  len(a.Errors),
			Changes: len(a.Changes),
		})
		for _, e := range a.Errors {
			m.Errors = appendUnique(m.Errors, e.Message)
		}
	}
}

// PrintSummary writes a human-readable report.
func (m *SessionMetrics) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "\n╔══════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║         MEND REPAIR REPORT           ║\n")
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ Outcome:     %-23s║\n", m.Outcome)
	fmt.Fprintf(w, "║ Duration:    %-23s║\n", m.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "║ Files:       %-23d║\n", m.Input.FileCount)
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ ATTEMPTS\n")
	if len(m.Attempts) == 0 {
		fmt.Fprintf(w, "║   (build succeeded without repairs)\n")
	}
	for _, a := range m.Attempts {
		fmt.Fprintf(w, "║   #%d  %-9s %d error(s), %d change(s)\n",
			a.Number, a.Engine, a.Errors, a.Changes)
	}
	if m.LLM.Calls > 0 {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ MODEL (%s)\n", m.LLM.Provider)
		fmt.Fprintf(w, "║   Calls:       %d\n", m.LLM.Calls)
		fmt.Fprintf(w, "║   Tokens:      %d in / %d out\n", m.LLM.InputTokens, m.LLM.OutputTokens)
	}
	if len(m.Errors) > 0 {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ ERRORS SEEN\n")
		for _, e := range m.Errors {
			fmt.Fprintf(w, "║   • %s\n", e)
		}
	}
	fmt.Fprintf(w, "╚══════════════════════════════════════╝\n")
}

// JSON returns the metrics as formatted JSON.
func (m *SessionMetrics) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func appendUnique(list []string, s string) []string {
	for _, x := range list {
		if x == s {
			return list
		}
	}
	return append(list, s)
}
