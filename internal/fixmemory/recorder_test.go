package fixmemory

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/buildmend/mend/internal/buildlog"
	"github.com/buildmend/mend/internal/llm"
)

type fakeEmbedder struct{ fail bool }

func (f *fakeEmbedder) Complete(context.Context, *llm.Prompt, *llm.RequestOptions) (*llm.Response, error) {
	return nil, fmt.Errorf("not supported")
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.fail {
		return nil, fmt.Errorf("embed backend down")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1, 2}
	}
	return out, nil
}

func (f *fakeEmbedder) Name() string { return "fake-embedder" }

type memRepo struct {
	docs    []Document
	results []SearchResult
}

func (m *memRepo) Upsert(ctx context.Context, docs []Document) error {
	m.docs = append(m.docs, docs...)
	return nil
}

func (m *memRepo) Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error) {
	if topK < len(m.results) {
		return m.results[:topK], nil
	}
	return m.results, nil
}

func (m *memRepo) Close() error { return nil }

var uuidRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func TestRecordStoresEmbeddedFixes(t *testing.T) {
	repo := &memRepo{}
	rec := NewRecorder(&fakeEmbedder{}, repo)

	fixes := []Fix{
		{
			Error: buildlog.BuildError{
				Kind:    buildlog.KindSyntax,
				File:    "src/app/page.tsx",
				Message: "Unterminated string constant",
			},
			Engine:      "quickfix",
			Description: "closed unterminated string on line 3",
		},
		{
			Error:       buildlog.BuildError{Kind: buildlog.KindModule, Message: "Module not found: 'next/link'"},
			Engine:      "ai",
			Description: "rewritten by primary",
		},
	}

	if err := rec.Record(context.Background(), fixes); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if len(repo.docs) != 2 {
		t.Fatalf("docs = %d, want 2", len(repo.docs))
	}
	d := repo.docs[0]
	if d.Content != "Unterminated string constant" {
		t.Errorf("Content = %q", d.Content)
	}
	if d.Metadata["engine"] != "quickfix" || d.Metadata["kind"] != "syntax" {
		t.Errorf("Metadata = %v", d.Metadata)
	}
	if len(d.Vector) != 3 {
		t.Errorf("Vector = %v", d.Vector)
	}
	if !uuidRe.MatchString(d.ID) {
		t.Errorf("ID = %q, want UUIDv4", d.ID)
	}
}

func TestRecordNothingToDo(t *testing.T) {
	repo := &memRepo{}
	rec := NewRecorder(&fakeEmbedder{fail: true}, repo)
	if err := rec.Record(context.Background(), nil); err != nil {
		t.Fatalf("Record(nil): %v", err)
	}
	if len(repo.docs) != 0 {
		t.Errorf("docs = %d, want 0", len(repo.docs))
	}
}

func TestRecordEmbedFailure(t *testing.T) {
	rec := NewRecorder(&fakeEmbedder{fail: true}, &memRepo{})
	fixes := []Fix{{Error: buildlog.BuildError{Message: "x"}}}
	if err := rec.Record(context.Background(), fixes); err == nil {
		t.Fatal("expected error when embedding fails")
	}
}

func TestRecallFormatsHints(t *testing.T) {
	repo := &memRepo{results: []SearchResult{
		{
			Content:  "Unterminated string constant",
			Score:    0.91,
			Metadata: map[string]string{"description": "closed the quote", "engine": "quickfix"},
		},
		{Content: "Module not found: 'next/link'", Score: 0.8},
	}}
	rec := NewRecorder(&fakeEmbedder{}, repo)

	hints, err := rec.Recall(context.Background(), "Unterminated string constant", 5)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(hints) != 2 {
		t.Fatalf("hints = %v", hints)
	}
	if !strings.Contains(hints[0], "closed the quote") || !strings.Contains(hints[0], "via quickfix") {
		t.Errorf("hints[0] = %q", hints[0])
	}
	if hints[1] != "Module not found: 'next/link'" {
		t.Errorf("hints[1] = %q", hints[1])
	}
}

func TestRecallRespectsLimit(t *testing.T) {
	repo := &memRepo{results: []SearchResult{
		{Content: "a"}, {Content: "b"}, {Content: "c"},
	}}
	rec := NewRecorder(&fakeEmbedder{}, repo)

	hints, err := rec.Recall(context.Background(), "query", 2)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	if len(hints) != 2 {
		t.Errorf("hints = %v", hints)
	}
}
