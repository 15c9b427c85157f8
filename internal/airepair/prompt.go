// Package airepair asks a language model to rewrite the files implicated in
// a failed build and parses the corrected files out of its answer.
package airepair

import (
	"fmt"
	"sort"
	"strings"

	"github.com/buildmend/mend/internal/buildlog"
	"github.com/buildmend/mend/internal/llm"
	"github.com/buildmend/mend/internal/source"
)

const (
	// maxFileExcerpt bounds how much of any one file goes into the prompt.
	maxFileExcerpt = 8000
	// maxRawOutput bounds the raw build log excerpt.
	maxRawOutput = 4000
	// maxWholeTreeFiles caps how many files are inlined when no error names
	// a specific file and the whole tree must be shown.
	maxWholeTreeFiles = 12
)

const systemPrompt = `You are an expert Next.js and TypeScript engineer fixing a broken build.
You are given build errors and the source files involved. Return the corrected
files, complete from first line to last. For every file you change, emit:

FILE: <path>
` + "```" + `
<full corrected file content>
` + "```" + `

Only emit files that need changes. Never abbreviate file content with ellipses
or comments like "rest unchanged". Do not explain your changes.`

// BuildPrompt assembles the model request for one repair round. Recalled
// snippets of past successful fixes, when present, are included as hints.
func BuildPrompt(tree source.Tree, errs []buildlog.BuildError, rawOutput string, recalled []string) *llm.Prompt {
	var b strings.Builder

	b.WriteString("The build failed with the following errors:\n\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(formatError(e))
		b.WriteString("\n")
		if line := tree.Line(e.File, e.Line); strings.TrimSpace(line) != "" {
			b.WriteString("    > ")
			b.WriteString(strings.TrimSpace(line))
			b.WriteString("\n")
		}
	}

	if rawOutput != "" {
		b.WriteString("\nBuild output excerpt:\n```\n")
		b.WriteString(truncate(rawOutput, maxRawOutput))
		b.WriteString("\n```\n")
	}

	if len(recalled) > 0 {
		b.WriteString("\nFixes that worked for similar errors in the past:\n")
		for _, r := range recalled {
			b.WriteString("- ")
			b.WriteString(r)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nSource files:\n")
	for _, path := range promptFiles(tree, errs) {
		b.WriteString("\nFILE: ")
		b.WriteString(path)
		b.WriteString("\n```\n")
		b.WriteString(truncate(tree[path], maxFileExcerpt))
		b.WriteString("\n```\n")
	}

	return &llm.Prompt{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: b.String()},
		},
	}
}

// promptFiles picks which files to show the model: the files the errors name
// when any exist in the tree, otherwise a capped slice of the whole tree.
func promptFiles(tree source.Tree, errs []buildlog.BuildError) []string {
	seen := make(map[string]bool)
	var named []string
	for _, e := range errs {
		if e.File == "" || seen[e.File] {
			continue
		}
		if _, ok := tree[e.File]; !ok {
			continue
		}
		seen[e.File] = true
		named = append(named, e.File)
	}
	if len(named) > 0 {
		sort.Strings(named)
		return named
	}

	all := tree.Paths()
	if len(all) > maxWholeTreeFiles {
		all = all[:maxWholeTreeFiles]
	}
	return all
}

func formatError(e buildlog.BuildError) string {
	loc := ""
	if e.File != "" {
		loc = e.File
		if e.Line > 0 {
			loc = fmt.Sprintf("%s:%d", loc, e.Line)
			if e.Column > 0 {
				loc = fmt.Sprintf("%s:%d", loc, e.Column)
			}
		}
		loc = " at " + loc
	}
	return fmt.Sprintf("[%s]%s: %s", e.Kind, loc, e.Message)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "\n... (truncated)"
}
