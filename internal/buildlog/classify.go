package buildlog

import (
	"regexp"
	"strconv"
	"strings"
)

// rule is one classification pattern: a regular expression, the kind it
// assigns, and an extractor that maps a submatch to a BuildError. Rules are
// data records, not branches, so the set stays open for extension.
type rule struct {
	name    string
	re      *regexp.Regexp
	kind    ErrorKind
	extract func(r rule, m []string) BuildError
}

// extractMessage builds a record from submatch[1] as the message, with no
// location.
func extractMessage(r rule, m []string) BuildError {
	return BuildError{
		Kind:    r.kind,
		Message: trimMessage(m[1]),
		Raw:     m[0],
	}
}

// extractLocated builds a record from submatches (message, file, line, column).
func extractLocated(r rule, m []string) BuildError {
	line, _ := strconv.Atoi(m[3])
	col, _ := strconv.Atoi(m[4])
	return BuildError{
		Kind:    r.kind,
		File:    strings.TrimPrefix(m[2], "./"),
		Line:    line,
		Column:  col,
		Message: trimMessage(m[1]),
		Raw:     m[0],
	}
}

// rules is checked in order against the full output. Rules are independent:
// overlapping matches produce one record each, duplicates are not removed.
var rules = []rule{
	// swc/next parse error with a ,-[file:line:col] location frame.
	{
		name:    "swc-located",
		re:      regexp.MustCompile(`(?m)^[ \t]*(?:x|×)?[ \t]*([A-Z][^\n]*?)[ \t]*\n[ \t]*,-\[([^\[\]\n:]+):(\d+):(\d+)\]`),
		kind:    KindSyntax,
		extract: extractLocated,
	},
	// tsc diagnostics: path(line,col): error TSxxxx: message
	{
		name: "tsc",
		re:   regexp.MustCompile(`(?m)^([^\s(][^(\n]*)\((\d+),(\d+)\): error TS\d+: (.+)$`),
		kind: KindType,
		extract: func(r rule, m []string) BuildError {
			line, _ := strconv.Atoi(m[2])
			col, _ := strconv.Atoi(m[3])
			return BuildError{
				Kind:    r.kind,
				File:    strings.TrimPrefix(m[1], "./"),
				Line:    line,
				Column:  col,
				Message: trimMessage(m[4]),
				Raw:     m[0],
			}
		},
	},
	// next build type checking: ./file:line:col \n Type error: message
	{
		name:    "next-type",
		re:      regexp.MustCompile(`(?m)^(?:\./)?([\w@./-]+):(\d+):(\d+)[ \t]*\nType error: (.+)$`),
		kind:    KindType,
		extract: func(r rule, m []string) BuildError {
			line, _ := strconv.Atoi(m[2])
			col, _ := strconv.Atoi(m[3])
			return BuildError{
				Kind:    r.kind,
				File:    m[1],
				Line:    line,
				Column:  col,
				Message: trimMessage(m[4]),
				Raw:     m[0],
			}
		},
	},
	// webpack/next module resolution.
	{
		name:    "module-not-found",
		re:      regexp.MustCompile(`(?m)^[ \t]*Module not found:(?:[ \t]*Error:)?[ \t]*(.+)$`),
		kind:    KindModule,
		extract: extractMessage,
	},
	// node require/import failure.
	{
		name:    "cannot-find-module",
		re:      regexp.MustCompile(`(?m)^[ \t]*(?:Error:[ \t]*)?(Cannot find module '[^']+'.*)$`),
		kind:    KindModule,
		extract: extractMessage,
	},
	{
		name:    "syntax-error",
		re:      regexp.MustCompile(`(?m)^[ \t]*(?:Uncaught[ \t]+)?SyntaxError: (.+)$`),
		kind:    KindSyntax,
		extract: extractMessage,
	},
	{
		name:    "reference-error",
		re:      regexp.MustCompile(`(?m)^[ \t]*(?:Uncaught[ \t]+)?ReferenceError: (.+)$`),
		kind:    KindRuntime,
		extract: extractMessage,
	},
	{
		name:    "type-error-runtime",
		re:      regexp.MustCompile(`(?m)^[ \t]*(?:Uncaught[ \t]+)?TypeError: (.+)$`),
		kind:    KindRuntime,
		extract: extractMessage,
	},
}

var fallbackLine = regexp.MustCompile(`(?m)^Error:.*$`)

// Classify parses raw build output into structured errors. It is a pure
// function: identical input yields an identical sequence. Records appear in
// rule scan order, and within one rule in text order. When no rule matches
// anywhere, every line beginning with "Error:" yields one unknown-kind record;
// output with no recognizable error markers yields an empty sequence.
func Classify(rawOutput string) []BuildError {
	var out []BuildError
	for _, r := range rules {
		for _, m := range r.re.FindAllStringSubmatch(rawOutput, -1) {
			out = append(out, r.extract(r, m))
		}
	}
	if out != nil {
		return out
	}

	for _, m := range fallbackLine.FindAllString(rawOutput, -1) {
		line := strings.TrimSpace(m)
		out = append(out, BuildError{
			Kind:    KindUnknown,
			Message: line,
			Raw:     line,
		})
	}
	return out
}

func trimMessage(s string) string {
	return strings.TrimSuffix(strings.TrimSpace(s), ".")
}
