package quickfix

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/buildmend/mend/internal/buildlog"
)

// Rule is one deterministic repair. Matches decides whether the rule applies
// to a diagnostic; Apply transforms the file content and reports what it did.
// Rules never call remote services and must be idempotent: applying a rule to
// content it already fixed returns changed=false.
type Rule interface {
	Name() string
	Matches(err buildlog.BuildError) bool
	Apply(content string, err buildlog.BuildError) (fixed string, description string, changed bool)
}

// DefaultRules returns the built-in rule set in application order.
func DefaultRules() []Rule {
	return []Rule{
		&UnterminatedStringRule{},
		&StyleBlockRule{},
		&MissingImportRule{},
		&VoidElementRule{},
	}
}

// UnterminatedStringRule closes a string literal left open on the reported
// line. It counts quote characters on that line and appends the matching
// quote only when the count is odd, so re-running it on fixed content is a
// no-op.
type UnterminatedStringRule struct{}

func (r *UnterminatedStringRule) Name() string { return "unterminated-string" }

func (r *UnterminatedStringRule) Matches(err buildlog.BuildError) bool {
	msg := strings.ToLower(err.Message)
	return strings.Contains(msg, "unterminated string") && err.Line > 0
}

func (r *UnterminatedStringRule) Apply(content string, err buildlog.BuildError) (string, string, bool) {
	lines := strings.Split(content, "\n")
	if err.Line > len(lines) {
		return content, "", false
	}
	line := lines[err.Line-1]

	for _, quote := range []string{`"`, `'`, "`"} {
		if strings.Count(line, quote)%2 == 1 {
			lines[err.Line-1] = line + quote
			return strings.Join(lines, "\n"),
				"closed unterminated " + quote + "-string on line " + strconv.Itoa(err.Line),
				true
		}
	}
	return content, "", false
}

// StyleBlockRule strips inline <style jsx> blocks, which plain React builds
// reject. Non-greedy so multiple blocks in one file are each removed intact.
type StyleBlockRule struct{}

var styleBlockRe = regexp.MustCompile(`(?s)<style\s+jsx[^>]*>.*?</style>`)

func (r *StyleBlockRule) Name() string { return "style-block" }

func (r *StyleBlockRule) Matches(err buildlog.BuildError) bool {
	msg := strings.ToLower(err.Message)
	return strings.Contains(msg, "style jsx") ||
		(err.Kind == buildlog.KindSyntax && strings.Contains(msg, "style"))
}

func (r *StyleBlockRule) Apply(content string, err buildlog.BuildError) (string, string, bool) {
	stripped := styleBlockRe.ReplaceAllString(content, "")
	if stripped == content {
		return content, "", false
	}
	return stripped, "removed unsupported <style jsx> block(s)", true
}

// MissingImportRule prepends a minimal import when the diagnostic names a
// well-known symbol and the file has no import for it near the top.
type MissingImportRule struct{}

// knownImports maps a symbol referenced in "not defined" / "not found"
// messages to the import line that provides it.
var knownImports = map[string]string{
	"React":     `import React from 'react';`,
	"useState":  `import { useState } from 'react';`,
	"useEffect": `import { useEffect } from 'react';`,
	"useRef":    `import { useRef } from 'react';`,
	"Link":      `import Link from 'next/link';`,
	"Image":     `import Image from 'next/image';`,
}

var symbolRe = regexp.MustCompile(`'([A-Za-z_][A-Za-z0-9_]*)'|\b(React|useState|useEffect|useRef|Link|Image)\b`)

func (r *MissingImportRule) Name() string { return "missing-import" }

func (r *MissingImportRule) Matches(err buildlog.BuildError) bool {
	msg := strings.ToLower(err.Message)
	return strings.Contains(msg, "is not defined") ||
		strings.Contains(msg, "cannot find name") ||
		strings.Contains(msg, "not found")
}

func (r *MissingImportRule) Apply(content string, err buildlog.BuildError) (string, string, bool) {
	symbol := extractSymbol(err.Message)
	if symbol == "" {
		return content, "", false
	}
	importLine, ok := knownImports[symbol]
	if !ok {
		return content, "", false
	}
	if hasImportFor(content, symbol) {
		return content, "", false
	}
	return importLine + "\n" + content, "added import for " + symbol, true
}

func extractSymbol(message string) string {
	m := symbolRe.FindStringSubmatch(message)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}

// hasImportFor reports whether any import statement in the first lines of the
// file already mentions the symbol.
func hasImportFor(content, symbol string) bool {
	lines := strings.Split(content, "\n")
	limit := len(lines)
	if limit > 20 {
		limit = 20
	}
	for _, line := range lines[:limit] {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "import ") && !strings.Contains(trimmed, "require(") {
			continue
		}
		if strings.Contains(trimmed, symbol) {
			return true
		}
	}
	return false
}

// VoidElementRule normalizes known void elements to self-closing form, which
// JSX requires.
type VoidElementRule struct{}

var voidElementRe = regexp.MustCompile(`<(?:img|br|hr|input|meta|link)\b[^<>]*>`)

func (r *VoidElementRule) Name() string { return "void-element" }

func (r *VoidElementRule) Matches(err buildlog.BuildError) bool {
	msg := strings.ToLower(err.Message)
	return strings.Contains(msg, "self-closing") ||
		strings.Contains(msg, "unclosed") ||
		strings.Contains(msg, "expected corresponding jsx closing tag")
}

func (r *VoidElementRule) Apply(content string, err buildlog.BuildError) (string, string, bool) {
	fixed := voidElementRe.ReplaceAllStringFunc(content, func(tag string) string {
		inner := strings.TrimSuffix(tag, ">")
		if strings.HasSuffix(strings.TrimSpace(inner), "/") {
			return tag
		}
		return inner + " />"
	})
	if fixed == content {
		return content, "", false
	}
	return fixed, "normalized void element(s) to self-closing form", true
}
