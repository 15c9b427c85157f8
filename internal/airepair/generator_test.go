package airepair

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/buildmend/mend/internal/buildlog"
	"github.com/buildmend/mend/internal/llm"
	"github.com/buildmend/mend/internal/source"
)

type scriptedProvider struct {
	name    string
	content string
	err     error
	calls   int
	prompts []*llm.Prompt
}

func (s *scriptedProvider) Complete(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error) {
	s.calls++
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Content: s.content, Model: s.name + "-model"}, nil
}

func (s *scriptedProvider) Embed(context.Context, []string) ([][]float32, error) {
	return nil, fmt.Errorf("not supported")
}

func (s *scriptedProvider) Name() string { return s.name }

type staticMemory struct{ hints []string }

func (m *staticMemory) Recall(context.Context, string, int) ([]string, error) {
	return m.hints, nil
}

func fixResponse(path, content string) string {
	return "FILE: " + path + "\n```\n" + content + "```\n"
}

var syntaxErr = buildlog.BuildError{
	Kind:    buildlog.KindSyntax,
	File:    "src/app/page.tsx",
	Line:    3,
	Message: "Unterminated string constant",
}

func TestGeneratePrimarySucceeds(t *testing.T) {
	tree := source.Tree{"src/app/page.tsx": "broken\n"}
	primary := &scriptedProvider{name: "primary", content: fixResponse("src/app/page.tsx", "fixed\n")}
	secondary := &scriptedProvider{name: "secondary"}

	g := NewGenerator(primary, secondary, nil)
	res, err := g.Generate(context.Background(), tree, []buildlog.BuildError{syntaxErr}, "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !res.Success {
		t.Fatal("Success = false")
	}
	if res.Provider != "primary" {
		t.Errorf("Provider = %q", res.Provider)
	}
	if res.Fallback {
		t.Error("Fallback = true for a round served by the primary")
	}
	if res.Tree["src/app/page.tsx"] != "fixed\n" {
		t.Errorf("tree content = %q", res.Tree["src/app/page.tsx"])
	}
	if secondary.calls != 0 {
		t.Errorf("secondary called %d times, want 0", secondary.calls)
	}
}

func TestGenerateFallsBackOnPrimaryError(t *testing.T) {
	tree := source.Tree{"src/app/page.tsx": "broken\n"}
	primary := &scriptedProvider{name: "primary", err: fmt.Errorf("503")}
	secondary := &scriptedProvider{name: "secondary", content: fixResponse("src/app/page.tsx", "fixed\n")}

	g := NewGenerator(primary, secondary, nil)
	res, err := g.Generate(context.Background(), tree, []buildlog.BuildError{syntaxErr}, "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !res.Success || res.Provider != "secondary" {
		t.Errorf("Success=%v Provider=%q, want success via secondary", res.Success, res.Provider)
	}
	if !res.Fallback {
		t.Error("Fallback = false for a round served by the secondary")
	}
}

func TestGenerateFallsBackOnUnusableAnswer(t *testing.T) {
	tree := source.Tree{"src/app/page.tsx": "broken\n"}
	primary := &scriptedProvider{name: "primary", content: "no file blocks here"}
	secondary := &scriptedProvider{name: "secondary", content: fixResponse("src/app/page.tsx", "fixed\n")}

	g := NewGenerator(primary, secondary, nil)
	res, err := g.Generate(context.Background(), tree, []buildlog.BuildError{syntaxErr}, "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !res.Success || res.Provider != "secondary" {
		t.Errorf("Success=%v Provider=%q, want success via secondary", res.Success, res.Provider)
	}
}

func TestGenerateAllProvidersFail(t *testing.T) {
	tree := source.Tree{"src/app/page.tsx": "broken\n"}
	primary := &scriptedProvider{name: "primary", err: fmt.Errorf("503")}
	secondary := &scriptedProvider{name: "secondary", err: fmt.Errorf("timeout")}

	g := NewGenerator(primary, secondary, nil)
	if _, err := g.Generate(context.Background(), tree, []buildlog.BuildError{syntaxErr}, ""); err == nil {
		t.Fatal("expected error when every provider fails")
	}
}

func TestGenerateUnusableAnswerNoSecondary(t *testing.T) {
	tree := source.Tree{"src/app/page.tsx": "broken\n"}
	primary := &scriptedProvider{name: "primary", content: "prose only"}

	g := NewGenerator(primary, nil, nil)
	res, err := g.Generate(context.Background(), tree, []buildlog.BuildError{syntaxErr}, "")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Success {
		t.Error("Success = true for unusable answer")
	}
	if res.Tree["src/app/page.tsx"] != "broken\n" {
		t.Error("tree changed despite unusable answer")
	}
	if res.Message == "" {
		t.Error("Message empty, want a reason for the unusable answer")
	}
}

func TestGenerateNoProvidersConfigured(t *testing.T) {
	g := NewGenerator(nil, nil, nil)
	if _, err := g.Generate(context.Background(), source.Tree{}, []buildlog.BuildError{syntaxErr}, ""); err == nil {
		t.Fatal("expected error with no providers")
	}
}

func TestGenerateIncludesRecalledHints(t *testing.T) {
	tree := source.Tree{"src/app/page.tsx": "broken\n"}
	primary := &scriptedProvider{name: "primary", content: fixResponse("src/app/page.tsx", "fixed\n")}
	mem := &staticMemory{hints: []string{"close the unterminated quote on the reported line"}}

	g := NewGenerator(primary, nil, mem)
	if _, err := g.Generate(context.Background(), tree, []buildlog.BuildError{syntaxErr}, ""); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(primary.prompts) != 1 {
		t.Fatalf("prompts = %d", len(primary.prompts))
	}
	user := primary.prompts[0].Messages[1].Content
	if !strings.Contains(user, "close the unterminated quote") {
		t.Error("prompt missing recalled hint")
	}
}

func TestPromptQuotesOffendingLine(t *testing.T) {
	tree := source.Tree{"src/app/page.tsx": "a\nb\n const x = 'hello;\nd\n"}
	p := BuildPrompt(tree, []buildlog.BuildError{syntaxErr}, "", nil)
	user := p.Messages[1].Content
	if !strings.Contains(user, "> const x = 'hello;") {
		t.Error("prompt missing the source line the error points at")
	}
}

func TestPromptShowsOnlyNamedFiles(t *testing.T) {
	tree := source.Tree{
		"src/app/page.tsx":   "page\n",
		"src/app/layout.tsx": "layout\n",
	}
	p := BuildPrompt(tree, []buildlog.BuildError{syntaxErr}, "", nil)
	user := p.Messages[1].Content
	if !strings.Contains(user, "FILE: src/app/page.tsx") {
		t.Error("prompt missing the file the error names")
	}
	if strings.Contains(user, "FILE: src/app/layout.tsx") {
		t.Error("prompt includes file no error names")
	}
}
