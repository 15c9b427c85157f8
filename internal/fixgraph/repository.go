// Package fixgraph records how build failures get resolved, as a graph of
// error kinds and the engines and rules that fixed them. The graph answers
// "what usually fixes this kind of error" across many sessions.
package fixgraph

import "context"

// Outcome is one resolved-or-abandoned error from a finished session.
type Outcome struct {
	Kind    string
	Engine  string
	Rule    string
	Fixed   bool
	Project string
}

// ResolutionStat aggregates how often an engine resolved a given kind.
type ResolutionStat struct {
	Engine string
	Count  int64
}

// Repository persists repair outcomes.
type Repository interface {
	// RecordOutcomes persists the outcomes of one finished session.
	RecordOutcomes(ctx context.Context, outcomes []Outcome) error
	// ResolutionStats returns per-engine fix counts for an error kind,
	// most frequent first.
	ResolutionStats(ctx context.Context, kind string) ([]ResolutionStat, error)
	// Close releases resources.
	Close(ctx context.Context) error
}
