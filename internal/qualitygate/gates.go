package qualitygate

import "fmt"

// BuildConfirmedGate checks that the final tree passed a real build. This is
// the gate that keeps an unvalidated model suggestion from being reported
// as a successful repair.
type BuildConfirmedGate struct {
	severity GateSeverity
}

func NewBuildConfirmedGate(severity GateSeverity) *BuildConfirmedGate {
	return &BuildConfirmedGate{severity: severity}
}

func (g *BuildConfirmedGate) Name() string           { return "build_confirmed" }
func (g *BuildConfirmedGate) Severity() GateSeverity { return g.severity }
func (g *BuildConfirmedGate) Evaluate(ctx *EvalContext) (*GateResult, error) {
	r := &GateResult{
		Name:     g.Name(),
		Severity: g.severity,
	}
	if ctx.BuildOK {
		r.Status = GatePassed
		r.Score = 1.0
		r.Message = "Final tree confirmed by build"
	} else {
		r.Status = GateFailed
		r.Score = 0.0
		r.Message = fmt.Sprintf("Session ended %s with %d unresolved error(s)",
			ctx.Outcome, len(ctx.Errors))
		r.Details = ctx.Errors
	}
	return r, nil
}

// AttemptBudgetGate warns when a session consumed most of its attempt
// budget; chronically tight sessions suggest the quick-fix rules or the
// prompt need work.
type AttemptBudgetGate struct {
	MaxShare float64
	severity GateSeverity
}

func NewAttemptBudgetGate(maxShare float64, severity GateSeverity) *AttemptBudgetGate {
	return &AttemptBudgetGate{MaxShare: maxShare, severity: severity}
}

func (g *AttemptBudgetGate) Name() string           { return "attempt_budget" }
func (g *AttemptBudgetGate) Severity() GateSeverity { return g.severity }
func (g *AttemptBudgetGate) Evaluate(ctx *EvalContext) (*GateResult, error) {
	r := &GateResult{
		Name:      g.Name(),
		Severity:  g.severity,
		Threshold: g.MaxShare,
	}

	if ctx.MaxAttempts == 0 {
		r.Status = GateSkipped
		r.Message = "No attempt budget configured"
		return r, nil
	}

	share := float64(ctx.AttemptsUsed) / float64(ctx.MaxAttempts)
	r.Score = share

	if share <= g.MaxShare {
		r.Status = GatePassed
		r.Message = fmt.Sprintf("Used %d of %d attempts", ctx.AttemptsUsed, ctx.MaxAttempts)
	} else {
		r.Status = GateWarning
		r.Message = fmt.Sprintf("Used %d of %d attempts, above %.0f%% of budget",
			ctx.AttemptsUsed, ctx.MaxAttempts, g.MaxShare*100)
	}
	return r, nil
}

// TokenBudgetGate bounds model spend per session.
type TokenBudgetGate struct {
	MaxTokens int
	severity  GateSeverity
}

func NewTokenBudgetGate(maxTokens int, severity GateSeverity) *TokenBudgetGate {
	return &TokenBudgetGate{MaxTokens: maxTokens, severity: severity}
}

func (g *TokenBudgetGate) Name() string           { return "token_budget" }
func (g *TokenBudgetGate) Severity() GateSeverity { return g.severity }
func (g *TokenBudgetGate) Evaluate(ctx *EvalContext) (*GateResult, error) {
	r := &GateResult{
		Name:      g.Name(),
		Severity:  g.severity,
		Threshold: float64(g.MaxTokens),
	}

	if g.MaxTokens == 0 {
		r.Status = GateSkipped
		r.Message = "No token budget configured"
		return r, nil
	}

	r.Score = float64(ctx.TotalTokens)
	if ctx.TotalTokens <= g.MaxTokens {
		r.Status = GatePassed
		r.Message = fmt.Sprintf("Used %d of %d tokens", ctx.TotalTokens, g.MaxTokens)
	} else {
		r.Status = GateFailed
		r.Message = fmt.Sprintf("Token usage %d exceeds budget %d", ctx.TotalTokens, g.MaxTokens)
	}
	return r, nil
}

// ProviderFallbackGate surfaces sessions where the primary provider was
// bypassed, which usually means an outage or a rate-limit problem worth a
// look even when the repair succeeded.
type ProviderFallbackGate struct {
	severity GateSeverity
}

func NewProviderFallbackGate(severity GateSeverity) *ProviderFallbackGate {
	return &ProviderFallbackGate{severity: severity}
}

func (g *ProviderFallbackGate) Name() string           { return "provider_fallback" }
func (g *ProviderFallbackGate) Severity() GateSeverity { return g.severity }
func (g *ProviderFallbackGate) Evaluate(ctx *EvalContext) (*GateResult, error) {
	r := &GateResult{
		Name:     g.Name(),
		Severity: g.severity,
	}
	if !ctx.UsedSecondary {
		r.Status = GatePassed
		r.Score = 1.0
		r.Message = "Primary provider served all model calls"
	} else {
		r.Status = GateWarning
		r.Message = "Secondary provider was needed"
	}
	return r, nil
}
