// Package quickfix applies deterministic, pattern-matched repairs to a
// source tree without calling any remote service.
package quickfix

import (
	"github.com/buildmend/mend/internal/buildlog"
	"github.com/buildmend/mend/internal/source"
)

// Change records one applied fix for the attempt history.
type Change struct {
	File        string `json:"file"`
	Error       string `json:"error"`
	Rule        string `json:"rule"`
	Description string `json:"description"`
}

// Result is the outcome of one Apply pass. When Fixed is false, Tree is the
// input tree untouched and Changes is empty: the caller's signal to escalate.
type Result struct {
	Fixed   bool
	Tree    source.Tree
	Changes []Change
}

// Engine holds an ordered rule set.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine; with no rules given, the built-in set is used.
func NewEngine(rules ...Rule) *Engine {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Engine{rules: rules}
}

// Apply attempts every rule against every error that resolves to a file in
// the tree. A file may receive several sequential fixes when multiple errors
// target it. The input tree is never mutated.
func (e *Engine) Apply(tree source.Tree, errs []buildlog.BuildError) Result {
	var out source.Tree // lazily cloned on first change
	var changes []Change

	current := func(path string) string {
		if out != nil {
			if c, ok := out[path]; ok {
				return c
			}
		}
		return tree[path]
	}

	for _, be := range errs {
		if be.File == "" {
			continue
		}
		if _, ok := tree[be.File]; !ok {
			continue
		}
		for _, rule := range e.rules {
			if !rule.Matches(be) {
				continue
			}
			fixed, desc, changed := rule.Apply(current(be.File), be)
			if !changed {
				continue
			}
			if out == nil {
				out = tree.Clone()
			}
			out[be.File] = fixed
			changes = append(changes, Change{
				File:        be.File,
				Error:       be.Message,
				Rule:        rule.Name(),
				Description: desc,
			})
		}
	}

	if out == nil {
		return Result{Fixed: false, Tree: tree}
	}
	return Result{Fixed: true, Tree: out, Changes: changes}
}
