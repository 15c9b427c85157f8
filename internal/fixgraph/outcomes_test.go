package fixgraph

import (
	"testing"

	"github.com/buildmend/mend/internal/buildlog"
	"github.com/buildmend/mend/internal/repair"
)

func TestFromResultSuccessfulSession(t *testing.T) {
	res := &repair.Result{
		Success: true,
		Attempts: []repair.Attempt{
			{
				Number: 1,
				Engine: repair.EngineQuickFix,
				Errors: []buildlog.BuildError{
					{Kind: buildlog.KindSyntax, Message: "Unterminated string constant"},
				},
				Changes: []repair.Change{
					{File: "a.tsx", Rule: "unterminated-string", Description: "closed string"},
				},
			},
			{
				Number: 2,
				Engine: repair.EngineAI,
				Errors: []buildlog.BuildError{
					{Kind: buildlog.KindType, Message: "Type error: x"},
					{Kind: buildlog.KindType, Message: "Type error: y"},
				},
			},
		},
	}

	out := FromResult(res, "demo")
	if len(out) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(out))
	}
	if out[0].Kind != "syntax" || out[0].Engine != "quickfix" || !out[0].Fixed {
		t.Errorf("out[0] = %+v", out[0])
	}
	if out[0].Rule != "unterminated-string" {
		t.Errorf("Rule = %q", out[0].Rule)
	}
	if out[1].Engine != "ai" || out[1].Rule != "" {
		t.Errorf("out[1] = %+v", out[1])
	}
	for _, o := range out {
		if o.Project != "demo" {
			t.Errorf("Project = %q", o.Project)
		}
	}
}

func TestFromResultFailedSession(t *testing.T) {
	res := &repair.Result{
		Success: false,
		Attempts: []repair.Attempt{
			{
				Number: 1,
				Engine: repair.EngineNone,
				Errors: []buildlog.BuildError{
					{Kind: buildlog.KindRuntime, Message: "frobnicate is not defined"},
				},
			},
		},
	}

	out := FromResult(res, "demo")
	if len(out) != 1 {
		t.Fatalf("outcomes = %d", len(out))
	}
	if out[0].Fixed {
		t.Error("Fixed = true for unresolved error")
	}
	if out[0].Engine != "none" {
		t.Errorf("Engine = %q", out[0].Engine)
	}
}
