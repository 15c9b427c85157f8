package fixgraph

import "github.com/buildmend/mend/internal/repair"

// FromResult flattens a finished session into outcome records. Each error
// of each attempt becomes one outcome; an attempt's errors count as fixed
// when its engine applied a change and the session ultimately succeeded.
func FromResult(res *repair.Result, project string) []Outcome {
	var out []Outcome
	for _, a := range res.Attempts {
		fixed := a.Engine != repair.EngineNone && res.Success
		for _, e := range a.Errors {
			o := Outcome{
				Kind:    string(e.Kind),
				Engine:  string(a.Engine),
				Fixed:   fixed,
				Project: project,
			}
			if a.Engine == repair.EngineQuickFix && len(a.Changes) > 0 {
				o.Rule = a.Changes[0].Rule
			}
			out = append(out, o)
		}
	}
	return out
}
