package fixmemory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/buildmend/mend/internal/buildlog"
	"github.com/buildmend/mend/internal/llm"
)

// Fix describes one resolved error for recording.
type Fix struct {
	Error       buildlog.BuildError
	Engine      string
	Description string
}

// Recorder embeds repaired errors and stores them, and recalls stored
// fixes for errors similar to a new failure.
type Recorder struct {
	provider llm.Provider
	repo     Repository
}

// NewRecorder creates a Recorder. Both collaborators are required; callers
// that lack either should not construct one.
func NewRecorder(provider llm.Provider, repo Repository) *Recorder {
	return &Recorder{provider: provider, repo: repo}
}

// Record embeds each fixed error's message and upserts it with how it was
// resolved. Called after a session ends in a confirmed successful build.
func (r *Recorder) Record(ctx context.Context, fixes []Fix) error {
	if len(fixes) == 0 {
		return nil
	}
	texts := make([]string, len(fixes))
	for i, f := range fixes {
		texts[i] = f.Error.Message
	}

	vectors, err := r.provider.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(texts))
	}

	docs := make([]Document, len(fixes))
	for i, f := range fixes {
		docs[i] = Document{
			ID:      newUUID(),
			Content: f.Error.Message,
			Vector:  vectors[i],
			Metadata: map[string]string{
				"kind":        string(f.Error.Kind),
				"file":        f.Error.File,
				"engine":      f.Engine,
				"description": f.Description,
			},
		}
	}
	return r.repo.Upsert(ctx, docs)
}

// Recall embeds the query and returns formatted hints describing how
// similar errors were fixed before, best match first.
func (r *Recorder) Recall(ctx context.Context, query string, limit int) ([]string, error) {
	vectors, err := r.provider.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want 1", len(vectors))
	}

	matches, err := r.repo.Search(ctx, vectors[0], limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hints := make([]string, 0, len(matches))
	for _, m := range matches {
		var b strings.Builder
		b.WriteString(m.Content)
		if desc := m.Metadata["description"]; desc != "" {
			b.WriteString(" -> ")
			b.WriteString(desc)
		}
		if engine := m.Metadata["engine"]; engine != "" {
			fmt.Fprintf(&b, " (via %s)", engine)
		}
		hints = append(hints, b.String())
	}
	return hints, nil
}

func newUUID() string {
	// Minimal UUIDv4 generator to avoid external dependencies.
	var b [16]byte
	_, _ = rand.Read(b[:])
	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80 // variant 10

	var out [36]byte
	hex.Encode(out[0:8], b[0:4])
	out[8] = '-'
	hex.Encode(out[9:13], b[4:6])
	out[13] = '-'
	hex.Encode(out[14:18], b[6:8])
	out[18] = '-'
	hex.Encode(out[19:23], b[8:10])
	out[23] = '-'
	hex.Encode(out[24:36], b[10:16])
	return string(out[:])
}
