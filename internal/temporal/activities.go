// Package temporal runs repair sessions as durable Temporal workflows, so a
// crashed worker resumes a session instead of losing it.
package temporal

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/buildmend/mend/internal/airepair"
	"github.com/buildmend/mend/internal/buildlog"
	"github.com/buildmend/mend/internal/observability"
	"github.com/buildmend/mend/internal/quickfix"
	"github.com/buildmend/mend/internal/repair"
	"github.com/buildmend/mend/internal/source"
	"github.com/buildmend/mend/internal/validator"
)

// Dependencies holds shared resources injected into activities.
type Dependencies struct {
	Validator validator.Validator
	QuickFix  *quickfix.Engine
	Generator *airepair.Generator            // nil disables the model stage
	Metrics   *observability.PipelineMetrics // nil disables reporting
}

var deps *Dependencies

// SetDependencies injects shared resources (called during worker setup).
func SetDependencies(d *Dependencies) {
	deps = d
}

// ValidateResult is the serializable outcome of one build validation.
type ValidateResult struct {
	Success   bool
	RawOutput string
}

// FixResult is the serializable outcome of one fix stage.
type FixResult struct {
	Applied  bool
	Tree     map[string]string
	Engine   string
	Changes  []repair.Change
	ErrorKey string
	Errors   []buildlog.BuildError
	// Message notes which provider produced a rewrite, or why nothing
	// was applied.
	Message string
}

// ValidateActivity materializes and builds the tree.
func ValidateActivity(ctx context.Context, tree map[string]string) (ValidateResult, error) {
	start := time.Now()
	res, err := deps.Validator.Validate(ctx, source.Tree(tree))
	if err != nil {
		return ValidateResult{}, fmt.Errorf("validate: %w", err)
	}
	deps.Metrics.RecordBuild(res.Success, time.Since(start).Seconds())
	return ValidateResult{Success: res.Success, RawOutput: res.RawOutput}, nil
}

// QuickFixActivity classifies the build output and applies deterministic
// fixes. Applied=false signals the workflow to escalate.
func QuickFixActivity(ctx context.Context, tree map[string]string, rawOutput string) (FixResult, error) {
	errs := buildlog.Classify(rawOutput)
	out := FixResult{
		Engine:   string(repair.EngineQuickFix),
		Errors:   errs,
		ErrorKey: errorSetKey(errs),
	}

	res := deps.QuickFix.Apply(source.Tree(tree), errs)
	if !res.Fixed {
		return out, nil
	}

	out.Applied = true
	out.Tree = res.Tree
	deps.Metrics.RecordQuickFix(len(res.Changes))
	for _, c := range res.Changes {
		out.Changes = append(out.Changes, repair.Change{
			File:        c.File,
			Error:       c.Error,
			Rule:        c.Rule,
			Description: c.Description,
		})
	}
	return out, nil
}

// AIFixActivity asks the model generator for corrected files.
func AIFixActivity(ctx context.Context, tree map[string]string, rawOutput string) (FixResult, error) {
	errs := buildlog.Classify(rawOutput)
	out := FixResult{
		Engine:   string(repair.EngineAI),
		Errors:   errs,
		ErrorKey: errorSetKey(errs),
	}

	if deps.Generator == nil {
		out.Message = "no repair provider configured"
		return out, nil
	}

	deps.Metrics.RecordLLMCall()
	gen, err := deps.Generator.Generate(ctx, source.Tree(tree), errs, rawOutput)
	if err != nil {
		// Provider outages are not workflow failures; the loop decides
		// whether to retry or give up.
		out.Message = fmt.Sprintf("model repair failed: %v", err)
		return out, nil
	}
	if !gen.Success {
		out.Message = gen.Message
		return out, nil
	}

	out.Applied = true
	out.Tree = gen.Tree
	out.Message = fmt.Sprintf("rewritten by %s", gen.Provider)
	for _, f := range gen.ChangedFiles {
		out.Changes = append(out.Changes, repair.Change{
			File:        f,
			Description: source.Describe(f, tree[f], gen.Tree[f]),
		})
	}
	return out, nil
}

func errorSetKey(errs []buildlog.BuildError) string {
	keys := make([]string, len(errs))
	for i, e := range errs {
		keys[i] = e.Key()
	}
	sort.Strings(keys)
	return strings.Join(keys, "\x00")
}
