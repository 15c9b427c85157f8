// Package repair runs the build-fix-rebuild loop over a broken source tree.
package repair

import (
	"time"

	"github.com/buildmend/mend/internal/buildlog"
	"github.com/buildmend/mend/internal/source"
)

// Engine identifies which fix stage resolved (or failed to resolve) the
// errors of one attempt.
type Engine string

const (
	EngineNone     Engine = "none"
	EngineQuickFix Engine = "quickfix"
	EngineAI       Engine = "ai"
)

// Change records one applied modification for the attempt history.
type Change struct {
	File        string `json:"file"`
	Error       string `json:"error"`
	Rule        string `json:"rule,omitempty"`
	Description string `json:"description"`
}

// Attempt is the record of one loop iteration. Immutable once appended to
// the session history.
type Attempt struct {
	Number  int                   `json:"number"`
	Errors  []buildlog.BuildError `json:"errors"`
	Engine  Engine                `json:"engine"`
	Changes []Change              `json:"changes,omitempty"`
	// Message notes which provider produced a rewrite, or why nothing
	// was applied.
	Message string `json:"message,omitempty"`
}

// Outcome is the terminal state of a repair session.
type Outcome string

const (
	OutcomeSucceeded           Outcome = "succeeded"
	OutcomeAttemptsExhausted   Outcome = "attempts_exhausted"
	OutcomeTimedOut            Outcome = "timed_out"
	OutcomeUnfixableNoProgress Outcome = "unfixable_no_progress"
	OutcomeInfraFailure        Outcome = "infrastructure_failure"
)

// Options bounds one repair session.
type Options struct {
	MaxAttempts int
	Timeout     time.Duration
	// InitialOutput, when set, is the raw output of a build the caller has
	// already run and seen fail. The first iteration classifies it directly
	// instead of rebuilding an already-known-broken tree.
	InitialOutput string
}

// DefaultOptions returns the standard attempt and wall-clock budget.
func DefaultOptions() Options {
	return Options{MaxAttempts: 3, Timeout: 5 * time.Minute}
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Minute
	}
	return o
}

// Result is the uniform terminal output of a session. FinalTree is always
// the tree most recently seen by a completed validation, never a
// partially-applied or unvalidated one.
type Result struct {
	Outcome   Outcome       `json:"outcome"`
	Success   bool          `json:"success"`
	FinalTree source.Tree   `json:"final_tree"`
	Attempts  []Attempt     `json:"attempts"`
	Message   string        `json:"message"`
	Elapsed   time.Duration `json:"elapsed"`
}
