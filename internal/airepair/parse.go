package airepair

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/buildmend/mend/internal/llm"
	"github.com/buildmend/mend/internal/source"
)

// fileHeaderRe matches the FILE: marker the prompt asks the model to emit.
// Models sometimes bold the marker or add backticks around the path.
var fileHeaderRe = regexp.MustCompile(`(?m)^\s*\*{0,2}FILE:\s*` + "`?" + `([^\s` + "`" + `*]+)` + "`?" + `\*{0,2}\s*$`)

var fenceRe = regexp.MustCompile("(?m)^```[a-zA-Z]*\\s*$")

// ParseResponse extracts corrected files from a model answer and applies them
// to a clone of the tree. Paths not present in the original tree are dropped;
// the model never gets to create or move files. When no usable file block was
// found the returned bool is false and the string says why.
func ParseResponse(tree source.Tree, response string) (source.Tree, []string, string, bool) {
	response = llm.StripThinkingTags(response)

	headers := fileHeaderRe.FindAllStringSubmatchIndex(response, -1)
	if len(headers) == 0 {
		return tree, nil, "response contains no FILE blocks", false
	}

	out := tree.Clone()
	var changed []string
	var unfenced, unknown, unchanged int
	for i, h := range headers {
		path := response[h[2]:h[3]]
		segEnd := len(response)
		if i+1 < len(headers) {
			segEnd = headers[i+1][0]
		}
		segment := response[h[1]:segEnd]

		content, ok := extractFenced(segment)
		if !ok {
			unfenced++
			continue
		}
		if _, exists := out[path]; !exists {
			unknown++
			continue
		}
		if out[path] == content {
			unchanged++
			continue
		}
		out[path] = content
		changed = append(changed, path)
	}

	if len(changed) == 0 {
		reason := fmt.Sprintf("no usable file blocks (%d without fenced content, %d for paths outside the tree, %d identical to the input)",
			unfenced, unknown, unchanged)
		return tree, nil, reason, false
	}
	return out, changed, "", true
}

// extractFenced returns the body of the first fenced code block in segment.
func extractFenced(segment string) (string, bool) {
	fences := fenceRe.FindAllStringIndex(segment, -1)
	if len(fences) < 2 {
		return "", false
	}
	body := segment[fences[0][1]:fences[1][0]]
	body = strings.TrimPrefix(body, "\n")
	if strings.TrimSpace(body) == "" {
		return "", false
	}
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return body, true
}
