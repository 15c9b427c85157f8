package airepair

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/buildmend/mend/internal/buildlog"
	"github.com/buildmend/mend/internal/llm"
	"github.com/buildmend/mend/internal/observability"
	"github.com/buildmend/mend/internal/source"
)

// Memory recalls short descriptions of past fixes for similar errors.
// A nil Memory disables recall; repairs proceed without hints.
type Memory interface {
	Recall(ctx context.Context, query string, limit int) ([]string, error)
}

const recallLimit = 3

// Result is the outcome of one model repair round. Message explains why
// Success is false when no usable answer came back.
type Result struct {
	Success      bool
	Tree         source.Tree
	ChangedFiles []string
	Message      string
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
	// Fallback marks a round served by the secondary provider.
	Fallback bool
}

// Generator produces repaired source trees from build errors. Primary is
// tried first; Secondary covers primary outages and unusable answers. The
// generator performs no retries of its own, the providers and the outer
// repair loop already do.
type Generator struct {
	Primary   llm.Provider
	Secondary llm.Provider
	Memory    Memory
	Options   *llm.RequestOptions

	// Observer, when set, receives every completed round for metrics.
	Observer func(*Result)
}

// NewGenerator wires a generator; secondary and memory may be nil.
func NewGenerator(primary, secondary llm.Provider, memory Memory) *Generator {
	return &Generator{Primary: primary, Secondary: secondary, Memory: memory}
}

// Generate asks the providers for corrected files. It returns an error only
// when every configured provider fails outright; an answer with no usable
// file blocks is reported as Success=false with the input tree unchanged.
func (g *Generator) Generate(ctx context.Context, tree source.Tree, errs []buildlog.BuildError, rawOutput string) (*Result, error) {
	if g.Primary == nil && g.Secondary == nil {
		return nil, fmt.Errorf("no repair provider configured")
	}

	recalled := g.recall(ctx, errs)
	prompt := BuildPrompt(tree, errs, rawOutput, recalled)

	var lastErr error
	for _, p := range []llm.Provider{g.Primary, g.Secondary} {
		if p == nil {
			continue
		}
		lctx, span := observability.StartLLMSpan(ctx, p.Name())
		start := time.Now()
		resp, err := p.Complete(lctx, prompt, g.Options)
		if err != nil {
			observability.RecordError(span, err)
			span.End()
			lastErr = fmt.Errorf("%s: %w", p.Name(), err)
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}
		observability.RecordLLMMetrics(span, resp.Model, resp.InputTokens, resp.OutputTokens, time.Since(start))
		span.End()

		fixed, changed, reason, ok := ParseResponse(tree, resp.Content)
		res := &Result{
			Success:      ok,
			Tree:         fixed,
			ChangedFiles: changed,
			Message:      reason,
			Provider:     p.Name(),
			Model:        resp.Model,
			InputTokens:  resp.InputTokens,
			OutputTokens: resp.OutputTokens,
			Fallback:     g.Primary != nil && p == g.Secondary,
		}
		if g.Observer != nil {
			g.Observer(res)
		}
		if ok {
			return res, nil
		}
		// An unusable answer from the primary still leaves the secondary
		// worth trying; from the last provider it is the final word.
		if p == g.Secondary || g.Secondary == nil {
			return res, nil
		}
	}
	return nil, lastErr
}

func (g *Generator) recall(ctx context.Context, errs []buildlog.BuildError) []string {
	if g.Memory == nil || len(errs) == 0 {
		return nil
	}
	var parts []string
	for _, e := range errs {
		parts = append(parts, e.Message)
	}
	hints, err := g.Memory.Recall(ctx, strings.Join(parts, "\n"), recallLimit)
	if err != nil {
		// Recall is a hint source, not a dependency.
		return nil
	}
	return hints
}
