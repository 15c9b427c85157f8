package repair

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/buildmend/mend/internal/airepair"
	"github.com/buildmend/mend/internal/buildlog"
	"github.com/buildmend/mend/internal/observability"
	"github.com/buildmend/mend/internal/quickfix"
	"github.com/buildmend/mend/internal/source"
	"github.com/buildmend/mend/internal/validator"
)

// Orchestrator drives one repair session: build, classify, quick-fix,
// escalate to the model, rebuild, until a terminal state. It holds no
// session state, so one orchestrator serves concurrent sessions.
type Orchestrator struct {
	validator validator.Validator
	quickfix  *quickfix.Engine
	ai        *airepair.Generator
	logger    *slog.Logger

	// hooks for observers; nil means no reporting
	onAttempt func(Attempt)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithAttemptObserver registers a callback invoked after each completed
// attempt, for metrics and progress reporting.
func WithAttemptObserver(fn func(Attempt)) Option {
	return func(o *Orchestrator) { o.onAttempt = fn }
}

// NewOrchestrator wires the loop. The AI generator may be nil; quick fixes
// then carry the whole repair.
func NewOrchestrator(v validator.Validator, qf *quickfix.Engine, ai *airepair.Generator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		validator: v,
		quickfix:  qf,
		ai:        ai,
		logger:    slog.Default(),
	}
	if o.quickfix == nil {
		o.quickfix = quickfix.NewEngine()
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// iterationResult carries one loop iteration's outcome across the
// deadline race.
type iterationResult struct {
	terminal *Result
	tree     source.Tree
	attempt  *Attempt
	// validatedTree is the tree state as of the iteration's completed
	// build, recorded before any fix was applied to it.
	validatedTree source.Tree
	err           error
}

// Repair executes a session to its terminal state. The returned Result is
// always non-nil when err is nil; an error means a build infrastructure
// failure, which aborts the session immediately.
func (o *Orchestrator) Repair(ctx context.Context, tree source.Tree, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	session := &sessionState{
		tree:          tree.Clone(),
		lastValidated: tree.Clone(),
		opts:          opts,
	}

	for {
		ch := make(chan iterationResult, 1)
		go func() {
			ch <- o.iterate(ctx, session)
		}()

		select {
		case <-ctx.Done():
			// Abandon the in-flight iteration; its result, even if it
			// arrives late, is discarded.
			o.logger.Warn("session deadline elapsed mid-iteration",
				"attempts", len(session.attempts))
			return o.finish(session, start, OutcomeTimedOut, false,
				"wall-clock budget exhausted mid-iteration"), nil
		case res := <-ch:
			if res.err != nil {
				if ctx.Err() != nil {
					return o.finish(session, start, OutcomeTimedOut, false,
						"wall-clock budget exhausted"), nil
				}
				return nil, res.err
			}
			if res.validatedTree != nil {
				session.lastValidated = res.validatedTree
			}
			if res.attempt != nil {
				session.attempts = append(session.attempts, *res.attempt)
				if o.onAttempt != nil {
					o.onAttempt(*res.attempt)
				}
			}
			if res.terminal != nil {
				res.terminal.Attempts = session.attempts
				res.terminal.Elapsed = time.Since(start)
				return res.terminal, nil
			}
			session.tree = res.tree
		}
	}
}

type sessionState struct {
	tree          source.Tree
	lastValidated source.Tree
	attempts      []Attempt
	opts          Options
	// consumedInitial marks that the caller-supplied build output was
	// classified, so the first iteration skipped rebuilding a tree the
	// caller already watched fail.
	consumedInitial bool
}

// iterate runs one full loop pass: build (or consume the caller-supplied
// failure), classify, quick-fix or escalate. It returns either a terminal
// result or the tree for the next pass.
func (o *Orchestrator) iterate(ctx context.Context, s *sessionState) iterationResult {
	var rawOutput string

	if s.opts.InitialOutput != "" && !s.consumedInitial {
		s.consumedInitial = true
		rawOutput = s.opts.InitialOutput
	} else {
		bctx, span := observability.StartBuildSpan(ctx, len(s.attempts)+1)
		res, err := o.validator.Validate(bctx, s.tree)
		if err != nil {
			observability.RecordError(span, err)
			span.End()
			return iterationResult{err: fmt.Errorf("validate: %w", err)}
		}
		observability.RecordBuildResult(span, res.Success, len(res.Errors))
		span.End()
		if res.Success {
			return iterationResult{
				validatedTree: s.tree,
				terminal: &Result{
					Outcome:   OutcomeSucceeded,
					Success:   true,
					FinalTree: s.tree,
					Message:   fmt.Sprintf("build succeeded after %d repair attempt(s)", len(s.attempts)),
				},
			}
		}
		rawOutput = res.RawOutput
	}

	// The build on s.tree completed (and failed), so s.tree is the most
	// recently validated state from here on.
	attemptNo := len(s.attempts) + 1
	if attemptNo > s.opts.MaxAttempts {
		return iterationResult{validatedTree: s.tree, terminal: &Result{
			Outcome:   OutcomeAttemptsExhausted,
			FinalTree: s.tree,
			Message:   fmt.Sprintf("attempt budget of %d exhausted", s.opts.MaxAttempts),
		}}
	}
	if err := ctx.Err(); err != nil {
		return iterationResult{validatedTree: s.tree, terminal: &Result{
			Outcome:   OutcomeTimedOut,
			FinalTree: s.tree,
			Message:   "wall-clock budget exhausted",
		}}
	}

	_, cspan := observability.StartClassifySpan(ctx, len(rawOutput))
	errs := buildlog.Classify(rawOutput)
	cspan.End()
	o.logger.Info("build failed, classifying",
		"attempt", attemptNo, "errors", len(errs))

	attempt := Attempt{Number: attemptNo, Errors: errs, Engine: EngineNone}

	// Deterministic fixes first; the model is only consulted when none
	// of them apply.
	_, qspan := observability.StartQuickFixSpan(ctx, len(errs))
	qf := o.quickfix.Apply(s.tree, errs)
	qspan.End()
	if qf.Fixed {
		attempt.Engine = EngineQuickFix
		for _, c := range qf.Changes {
			attempt.Changes = append(attempt.Changes, Change{
				File:        c.File,
				Error:       c.Error,
				Rule:        c.Rule,
				Description: c.Description,
			})
		}
		o.logger.Info("quick fixes applied", "attempt", attemptNo, "changes", len(qf.Changes))
		return iterationResult{tree: qf.Tree, attempt: &attempt, validatedTree: s.tree}
	}

	if o.ai != nil {
		gen, err := o.ai.Generate(ctx, s.tree, errs, rawOutput)
		if err != nil {
			if ctx.Err() != nil {
				return iterationResult{terminal: &Result{
					Outcome:   OutcomeTimedOut,
					FinalTree: s.tree,
					Message:   "wall-clock budget exhausted during model call",
				}, attempt: &attempt, validatedTree: s.tree}
			}
			attempt.Message = fmt.Sprintf("model repair failed: %v", err)
			o.logger.Warn("model repair failed", "attempt", attemptNo, "error", err)
		} else if gen.Success {
			attempt.Engine = EngineAI
			attempt.Message = fmt.Sprintf("rewritten by %s", gen.Provider)
			for _, f := range gen.ChangedFiles {
				attempt.Changes = append(attempt.Changes, Change{
					File:        f,
					Error:       summarize(errs),
					Description: source.Describe(f, s.tree[f], gen.Tree[f]),
				})
			}
			o.logger.Info("model repair applied",
				"attempt", attemptNo, "provider", gen.Provider, "files", len(gen.ChangedFiles))
			return iterationResult{tree: gen.Tree, attempt: &attempt, validatedTree: s.tree}
		} else {
			attempt.Message = gen.Message
			o.logger.Warn("model produced no usable fix",
				"attempt", attemptNo, "provider", gen.Provider, "reason", gen.Message)
		}
	}

	// Nothing fixed this pass. One verbatim rebuild is allowed in case the
	// failure was flaky, but a second identical failure with no applied fix
	// cannot make progress.
	if prev := previousAttempt(s.attempts); prev != nil &&
		prev.Engine == EngineNone && errorSetKey(prev.Errors) == errorSetKey(errs) {
		return iterationResult{terminal: &Result{
			Outcome:   OutcomeUnfixableNoProgress,
			FinalTree: s.tree,
			Message:   "identical errors with no applicable fix on consecutive attempts",
		}, attempt: &attempt, validatedTree: s.tree}
	}

	return iterationResult{tree: s.tree, attempt: &attempt, validatedTree: s.tree}
}

func (o *Orchestrator) finish(s *sessionState, start time.Time, outcome Outcome, success bool, msg string) *Result {
	return &Result{
		Outcome:   outcome,
		Success:   success,
		FinalTree: s.lastValidated,
		Attempts:  s.attempts,
		Message:   msg,
		Elapsed:   time.Since(start),
	}
}

func previousAttempt(attempts []Attempt) *Attempt {
	if len(attempts) == 0 {
		return nil
	}
	return &attempts[len(attempts)-1]
}

// errorSetKey serializes an error set order-independently so two builds
// producing the same errors compare equal.
func errorSetKey(errs []buildlog.BuildError) string {
	keys := make([]string, len(errs))
	for i, e := range errs {
		keys[i] = e.Key()
	}
	sort.Strings(keys)
	return strings.Join(keys, "\x00")
}

func summarize(errs []buildlog.BuildError) string {
	if len(errs) == 0 {
		return "build failure"
	}
	if len(errs) == 1 {
		return errs[0].Message
	}
	return fmt.Sprintf("%s (+%d more)", errs[0].Message, len(errs)-1)
}
