package temporal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"go.temporal.io/sdk/testsuite"

	"github.com/buildmend/mend/internal/buildlog"
	"github.com/buildmend/mend/internal/repair"
)

func TestRemainingBudget(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	d, ok := remainingBudget(now, now.Add(30*time.Second))
	if !ok || d != 30*time.Second {
		t.Errorf("remainingBudget = %v, %v", d, ok)
	}
	if _, ok := remainingBudget(now, now); ok {
		t.Error("ok = true at the deadline")
	}
	if _, ok := remainingBudget(now, now.Add(-time.Second)); ok {
		t.Error("ok = true past the deadline")
	}
}

const workflowRuntimeOutput = "ReferenceError: frobnicate is not defined\n"

func TestRepairWorkflowQuickFixThenSuccess(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterActivity(ValidateActivity)
	env.RegisterActivity(QuickFixActivity)
	env.RegisterActivity(AIFixActivity)

	errs := buildlog.Classify(workflowRuntimeOutput)
	fixedTree := map[string]string{"a.ts": "fixed\n"}

	env.OnActivity(ValidateActivity, mock.Anything, mock.Anything).
		Return(ValidateResult{Success: false, RawOutput: workflowRuntimeOutput}, nil).Once()
	env.OnActivity(QuickFixActivity, mock.Anything, mock.Anything, mock.Anything).
		Return(FixResult{
			Applied:  true,
			Tree:     fixedTree,
			Engine:   string(repair.EngineQuickFix),
			Errors:   errs,
			ErrorKey: errorSetKey(errs),
			Changes:  []repair.Change{{File: "a.ts", Rule: "unterminated-string"}},
		}, nil)
	env.OnActivity(ValidateActivity, mock.Anything, mock.Anything).
		Return(ValidateResult{Success: true, RawOutput: "ok"}, nil)

	env.ExecuteWorkflow(RepairWorkflow, RepairInput{
		Tree:        map[string]string{"a.ts": "broken\n"},
		MaxAttempts: 3,
		Timeout:     time.Minute,
	})

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var out RepairOutput
	if err := env.GetWorkflowResult(&out); err != nil {
		t.Fatalf("result: %v", err)
	}
	if out.Outcome != string(repair.OutcomeSucceeded) || !out.Success {
		t.Errorf("outcome = %q success = %v", out.Outcome, out.Success)
	}
	if len(out.Attempts) != 1 || out.Attempts[0].Engine != repair.EngineQuickFix {
		t.Errorf("attempts = %+v", out.Attempts)
	}
	if out.Tree["a.ts"] != "fixed\n" {
		t.Errorf("tree = %v", out.Tree)
	}
}

func TestRepairWorkflowStopsOnNoProgress(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterActivity(ValidateActivity)
	env.RegisterActivity(QuickFixActivity)
	env.RegisterActivity(AIFixActivity)

	errs := buildlog.Classify(workflowRuntimeOutput)

	env.OnActivity(ValidateActivity, mock.Anything, mock.Anything).
		Return(ValidateResult{Success: false, RawOutput: workflowRuntimeOutput}, nil)
	env.OnActivity(QuickFixActivity, mock.Anything, mock.Anything, mock.Anything).
		Return(FixResult{
			Applied:  false,
			Engine:   string(repair.EngineQuickFix),
			Errors:   errs,
			ErrorKey: errorSetKey(errs),
		}, nil)
	env.OnActivity(AIFixActivity, mock.Anything, mock.Anything, mock.Anything).
		Return(FixResult{
			Applied:  false,
			Engine:   string(repair.EngineAI),
			Errors:   errs,
			ErrorKey: errorSetKey(errs),
			Message:  "response contains no FILE blocks",
		}, nil)

	env.ExecuteWorkflow(RepairWorkflow, RepairInput{
		Tree:        map[string]string{"a.ts": "frobnicate()\n"},
		MaxAttempts: 3,
		Timeout:     time.Minute,
	})

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var out RepairOutput
	if err := env.GetWorkflowResult(&out); err != nil {
		t.Fatalf("result: %v", err)
	}
	if out.Outcome != string(repair.OutcomeUnfixableNoProgress) {
		t.Fatalf("outcome = %q (%s)", out.Outcome, out.Message)
	}
	if len(out.Attempts) != 2 {
		t.Fatalf("attempts = %d, want exactly 2", len(out.Attempts))
	}
	for _, a := range out.Attempts {
		if a.Engine != repair.EngineNone {
			t.Errorf("attempt %d engine = %v, want none", a.Number, a.Engine)
		}
		if a.Message != "response contains no FILE blocks" {
			t.Errorf("attempt %d message = %q", a.Number, a.Message)
		}
	}
}
