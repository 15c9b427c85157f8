// Package validator executes a project's build command against an in-memory
// source tree and reports the outcome.
package validator

import (
	"context"

	"github.com/buildmend/mend/internal/source"
)

// Result is the outcome of one validation run. Success=false with captured
// output is a build failure; infrastructure problems (cannot spawn the build,
// disk full) are returned as an error from Validate instead.
type Result struct {
	Success   bool     `json:"success"`
	Errors    []string `json:"errors,omitempty"`
	RawOutput string   `json:"raw_output,omitempty"`
}

// Validator runs a build against a source tree.
type Validator interface {
	Validate(ctx context.Context, tree source.Tree) (*Result, error)
}
