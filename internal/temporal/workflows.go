package temporal

import (
	"time"

	"go.temporal.io/sdk/workflow"

	"github.com/buildmend/mend/internal/repair"
)

// RepairInput holds the workflow parameters.
type RepairInput struct {
	Tree        map[string]string
	MaxAttempts int
	Timeout     time.Duration
	// InitialOutput, when set, is a build failure the caller already
	// observed; the first iteration classifies it instead of rebuilding.
	InitialOutput string
}

// RepairOutput holds the workflow result.
type RepairOutput struct {
	Outcome  string
	Success  bool
	Tree     map[string]string
	Attempts []repair.Attempt
	Message  string
}

// RepairWorkflow drives the build-fix-rebuild loop as a durable workflow.
// The loop decisions live here; builds, classification, and fixes run as
// activities so each survives a worker restart.
func RepairWorkflow(ctx workflow.Context, input RepairInput) (*RepairOutput, error) {
	maxAttempts := input.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	timeout := input.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	logger := workflow.GetLogger(ctx)
	start := workflow.Now(ctx)
	deadline := start.Add(timeout)

	tree := input.Tree
	var attempts []repair.Attempt
	pendingOutput := input.InitialOutput

	finish := func(outcome repair.Outcome, success bool, msg string) *RepairOutput {
		return &RepairOutput{
			Outcome:  string(outcome),
			Success:  success,
			Tree:     tree,
			Attempts: attempts,
			Message:  msg,
		}
	}

	// Each activity is capped at the remaining wall-clock budget, so a hung
	// build cannot overrun the session deadline. An activity error at or past
	// the deadline is the budget expiring, not an infrastructure failure.
	budgeted := func() (workflow.Context, bool) {
		remaining, ok := remainingBudget(workflow.Now(ctx), deadline)
		if !ok {
			return nil, false
		}
		return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
			StartToCloseTimeout: remaining,
		}), true
	}
	expired := func() bool {
		return !workflow.Now(ctx).Before(deadline)
	}

	for {
		var rawOutput string
		if pendingOutput != "" {
			rawOutput = pendingOutput
			pendingOutput = ""
		} else {
			actx, ok := budgeted()
			if !ok {
				return finish(repair.OutcomeTimedOut, false, "wall-clock budget exhausted"), nil
			}
			var vr ValidateResult
			if err := workflow.ExecuteActivity(actx, ValidateActivity, tree).Get(ctx, &vr); err != nil {
				if expired() {
					return finish(repair.OutcomeTimedOut, false, "wall-clock budget exhausted"), nil
				}
				return nil, err
			}
			if vr.Success {
				return finish(repair.OutcomeSucceeded, true, "build succeeded"), nil
			}
			rawOutput = vr.RawOutput
		}

		attemptNo := len(attempts) + 1
		if attemptNo > maxAttempts {
			return finish(repair.OutcomeAttemptsExhausted, false, "attempt budget exhausted"), nil
		}
		if workflow.Now(ctx).After(deadline) {
			return finish(repair.OutcomeTimedOut, false, "wall-clock budget exhausted"), nil
		}

		logger.Info("build failed, attempting repair", "attempt", attemptNo)

		actx, ok := budgeted()
		if !ok {
			return finish(repair.OutcomeTimedOut, false, "wall-clock budget exhausted"), nil
		}
		var qr FixResult
		if err := workflow.ExecuteActivity(actx, QuickFixActivity, tree, rawOutput).Get(ctx, &qr); err != nil {
			if expired() {
				return finish(repair.OutcomeTimedOut, false, "wall-clock budget exhausted"), nil
			}
			return nil, err
		}
		if qr.Applied {
			tree = qr.Tree
			attempts = append(attempts, repair.Attempt{
				Number:  attemptNo,
				Errors:  qr.Errors,
				Engine:  repair.EngineQuickFix,
				Changes: qr.Changes,
			})
			continue
		}

		actx, ok = budgeted()
		if !ok {
			return finish(repair.OutcomeTimedOut, false, "wall-clock budget exhausted"), nil
		}
		var ar FixResult
		if err := workflow.ExecuteActivity(actx, AIFixActivity, tree, rawOutput).Get(ctx, &ar); err != nil {
			if expired() {
				return finish(repair.OutcomeTimedOut, false, "wall-clock budget exhausted"), nil
			}
			return nil, err
		}
		if ar.Applied {
			tree = ar.Tree
			attempts = append(attempts, repair.Attempt{
				Number:  attemptNo,
				Errors:  ar.Errors,
				Engine:  repair.EngineAI,
				Changes: ar.Changes,
				Message: ar.Message,
			})
			continue
		}

		// Nothing fixed this pass. A second identical failure with no
		// applied fix cannot make progress.
		if len(attempts) > 0 {
			prev := attempts[len(attempts)-1]
			if prev.Engine == repair.EngineNone && errorSetKey(prev.Errors) == qr.ErrorKey {
				attempts = append(attempts, repair.Attempt{
					Number:  attemptNo,
					Errors:  qr.Errors,
					Engine:  repair.EngineNone,
					Message: ar.Message,
				})
				return finish(repair.OutcomeUnfixableNoProgress, false,
					"identical errors with no applicable fix on consecutive attempts"), nil
			}
		}
		attempts = append(attempts, repair.Attempt{
			Number:  attemptNo,
			Errors:  qr.Errors,
			Engine:  repair.EngineNone,
			Message: ar.Message,
		})
	}
}

// remainingBudget reports the time left before deadline; ok is false once
// the deadline has been reached.
func remainingBudget(now, deadline time.Time) (time.Duration, bool) {
	d := deadline.Sub(now)
	return d, d > 0
}
