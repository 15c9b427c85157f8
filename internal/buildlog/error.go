// Package buildlog parses raw build-tool output into structured diagnostics.
package buildlog

// ErrorKind categorizes a build diagnostic.
type ErrorKind string

const (
	KindSyntax  ErrorKind = "syntax"
	KindType    ErrorKind = "type"
	KindModule  ErrorKind = "module"
	KindRuntime ErrorKind = "runtime"
	KindUnknown ErrorKind = "unknown"
)

// BuildError is one diagnostic extracted from build output.
// File, Line and Column are optional: File is empty and Line/Column are zero
// when the tool output did not localize the error. Line and Column are
// 1-based when present.
type BuildError struct {
	Kind    ErrorKind `json:"kind"`
	File    string    `json:"file,omitempty"`
	Line    int       `json:"line,omitempty"`
	Column  int       `json:"column,omitempty"`
	Message string    `json:"message"`
	Raw     string    `json:"raw"`
}

// Key returns a stable identity for progress comparison across attempts.
func (e BuildError) Key() string {
	return string(e.Kind) + "|" + e.File + "|" + e.Message
}
