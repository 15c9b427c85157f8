package qualitygate

import (
	"strings"
	"testing"
)

func passingContext() *EvalContext {
	return &EvalContext{
		Outcome:      "succeeded",
		BuildOK:      true,
		AttemptsUsed: 1,
		MaxAttempts:  3,
		LLMCalls:     1,
		TotalTokens:  1500,
		FilesChanged: 1,
	}
}

func TestBuildConfirmedGate(t *testing.T) {
	g := NewBuildConfirmedGate(SeverityCritical)

	r, err := g.Evaluate(passingContext())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if r.Status != GatePassed {
		t.Errorf("Status = %v", r.Status)
	}

	ctx := passingContext()
	ctx.BuildOK = false
	ctx.Outcome = "attempts_exhausted"
	ctx.Errors = []string{"Type error: x"}
	r, _ = g.Evaluate(ctx)
	if r.Status != GateFailed {
		t.Errorf("Status = %v, want failed", r.Status)
	}
	if len(r.Details) != 1 {
		t.Errorf("Details = %v", r.Details)
	}
}

func TestAttemptBudgetGate(t *testing.T) {
	g := NewAttemptBudgetGate(0.67, SeverityAdvisory)

	r, _ := g.Evaluate(passingContext())
	if r.Status != GatePassed {
		t.Errorf("Status = %v", r.Status)
	}

	ctx := passingContext()
	ctx.AttemptsUsed = 3
	r, _ = g.Evaluate(ctx)
	if r.Status != GateWarning {
		t.Errorf("Status = %v, want warning at full budget", r.Status)
	}

	ctx.MaxAttempts = 0
	r, _ = g.Evaluate(ctx)
	if r.Status != GateSkipped {
		t.Errorf("Status = %v, want skipped with no budget", r.Status)
	}
}

func TestTokenBudgetGate(t *testing.T) {
	g := NewTokenBudgetGate(1000, SeverityAdvisory)

	ctx := passingContext()
	r, _ := g.Evaluate(ctx)
	if r.Status != GateFailed {
		t.Errorf("Status = %v, want failed at 1500/1000 tokens", r.Status)
	}

	ctx.TotalTokens = 500
	r, _ = g.Evaluate(ctx)
	if r.Status != GatePassed {
		t.Errorf("Status = %v", r.Status)
	}

	disabled := NewTokenBudgetGate(0, SeverityAdvisory)
	r, _ = disabled.Evaluate(ctx)
	if r.Status != GateSkipped {
		t.Errorf("Status = %v, want skipped when disabled", r.Status)
	}
}

func TestProviderFallbackGate(t *testing.T) {
	g := NewProviderFallbackGate(SeverityAdvisory)

	r, _ := g.Evaluate(passingContext())
	if r.Status != GatePassed {
		t.Errorf("Status = %v", r.Status)
	}

	ctx := passingContext()
	ctx.UsedSecondary = true
	r, _ = g.Evaluate(ctx)
	if r.Status != GateWarning {
		t.Errorf("Status = %v, want warning", r.Status)
	}
}

func TestPipelineCriticalFailureSkipsRest(t *testing.T) {
	p := NewPipeline(
		NewBuildConfirmedGate(SeverityCritical),
		NewAttemptBudgetGate(0.67, SeverityAdvisory),
		NewProviderFallbackGate(SeverityAdvisory),
	)

	ctx := passingContext()
	ctx.BuildOK = false
	res := p.Run(ctx)

	if res.Status != GateFailed {
		t.Errorf("Status = %v", res.Status)
	}
	if res.FailedCount != 1 || res.SkippedCount != 2 {
		t.Errorf("failed = %d skipped = %d", res.FailedCount, res.SkippedCount)
	}
	if !strings.Contains(res.Summary, "1 failed") {
		t.Errorf("Summary = %q", res.Summary)
	}
}

func TestPipelineAllPass(t *testing.T) {
	p := BuildPipeline(DefaultConfig())
	res := p.Run(passingContext())

	if res.Status != GatePassed {
		t.Errorf("Status = %v (%s)", res.Status, res.Summary)
	}
	if res.FailedCount != 0 {
		t.Errorf("FailedCount = %d", res.FailedCount)
	}
}

func TestPipelineAdvisoryWarningDoesNotBlock(t *testing.T) {
	p := BuildPipeline(DefaultConfig())
	ctx := passingContext()
	ctx.UsedSecondary = true
	ctx.AttemptsUsed = 3

	res := p.Run(ctx)
	if res.Status != GatePassed {
		t.Errorf("Status = %v, advisory warnings must not block", res.Status)
	}
	if res.WarningCount != 2 {
		t.Errorf("WarningCount = %d", res.WarningCount)
	}
}

func TestBuildPipelineDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	p := BuildPipeline(cfg)

	res := p.Run(&EvalContext{})
	if res.Status != GatePassed || len(res.Gates) != 0 {
		t.Errorf("res = %+v", res)
	}
}
