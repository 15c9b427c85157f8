// Package source holds the in-memory representation of a project under
// repair: a flat mapping from relative file path to full file content.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Tree maps relative file paths to full file contents. Keys are unique and
// carry no ordering significance. A Tree is owned by exactly one repair
// session; components that modify files return a fresh Tree rather than
// mutating the one they were given.
type Tree map[string]string

// Clone returns an independent copy of the tree.
func (t Tree) Clone() Tree {
	out := make(Tree, len(t))
	for path, content := range t {
		out[path] = content
	}
	return out
}

// Paths returns all file paths in sorted order.
func (t Tree) Paths() []string {
	paths := make([]string, 0, len(t))
	for p := range t {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Load reads every regular file under dir into a Tree, keyed by the path
// relative to dir. Hidden directories (".git", "node_modules") are skipped.
func Load(dir string) (Tree, error) {
	tree := make(Tree)
	err := filepath.Walk(dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		name := fi.Name()
		if fi.IsDir() {
			if name == ".git" || name == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		tree[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tree, nil
}

// Write materializes the tree under dir, creating parent directories as
// needed. Paths containing ".." are rejected so a tree can never escape its
// target directory.
func (t Tree) Write(dir string) error {
	for _, rel := range t.Paths() {
		if strings.Contains(rel, "..") {
			return fmt.Errorf("refusing to write path %q", rel)
		}
		outPath := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(outPath, []byte(t[rel]), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", rel, err)
		}
	}
	return nil
}

// Line returns the 1-based line of a file, or "" when the file or line does
// not exist.
func (t Tree) Line(path string, n int) string {
	content, ok := t[path]
	if !ok || n < 1 {
		return ""
	}
	lines := strings.Split(content, "\n")
	if n > len(lines) {
		return ""
	}
	return lines[n-1]
}
