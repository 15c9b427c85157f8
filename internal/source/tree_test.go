package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCloneIsIndependent(t *testing.T) {
	orig := Tree{"a.txt": "one", "b.txt": "two"}
	clone := orig.Clone()
	clone["a.txt"] = "changed"
	clone["c.txt"] = "new"

	if orig["a.txt"] != "one" {
		t.Errorf("clone mutation leaked into original: %q", orig["a.txt"])
	}
	if _, ok := orig["c.txt"]; ok {
		t.Error("new key in clone leaked into original")
	}
}

func TestPathsSorted(t *testing.T) {
	tree := Tree{"z.go": "", "a.go": "", "m/x.go": ""}
	paths := tree.Paths()
	want := []string{"a.go", "m/x.go", "z.go"}
	if len(paths) != len(want) {
		t.Fatalf("Paths() = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("Paths()[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestWriteAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	tree := Tree{
		"src/app/page.tsx": "export default function Page() {}\n",
		"package.json":     "{}\n",
	}
	if err := tree.Write(dir); err != nil {
		t.Fatalf("Write: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded) != len(tree) {
		t.Fatalf("loaded %d files, want %d", len(loaded), len(tree))
	}
	for path, content := range tree {
		if loaded[path] != content {
			t.Errorf("loaded[%q] = %q, want %q", path, loaded[path], content)
		}
	}
}

func TestWriteRejectsEscapingPaths(t *testing.T) {
	dir := t.TempDir()
	tree := Tree{"../evil.txt": "nope"}
	if err := tree.Write(dir); err == nil {
		t.Fatal("expected error for path containing ..")
	}
	if _, err := os.Stat(filepath.Join(dir, "..", "evil.txt")); err == nil {
		t.Fatal("file escaped the target directory")
	}
}

func TestLoadSkipsNodeModules(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "node_modules", "react"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "node_modules", "react", "index.js"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("y"), 0o644); err != nil {
		t.Fatal(err)
	}

	tree, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tree) != 1 {
		t.Fatalf("loaded %d files, want 1: %v", len(tree), tree.Paths())
	}
	if _, ok := tree["app.js"]; !ok {
		t.Error("app.js missing from tree")
	}
}

func TestLine(t *testing.T) {
	tree := Tree{"f.txt": "first\nsecond\nthird"}
	if got := tree.Line("f.txt", 2); got != "second" {
		t.Errorf("Line(2) = %q", got)
	}
	if got := tree.Line("f.txt", 9); got != "" {
		t.Errorf("Line(9) = %q, want empty", got)
	}
	if got := tree.Line("missing.txt", 1); got != "" {
		t.Errorf("Line on missing file = %q, want empty", got)
	}
}

func TestDescribe(t *testing.T) {
	desc := Describe("a.tsx", "one\ntwo\nthree", "one\nTWO\nthree")
	if !strings.Contains(desc, "1 line(s) changed from line 2") {
		t.Errorf("Describe = %q", desc)
	}

	grown := Describe("a.tsx", "one", "one\ntwo")
	if !strings.Contains(grown, "+1 lines") {
		t.Errorf("Describe with growth = %q", grown)
	}

	same := Describe("a.tsx", "x", "x")
	if !strings.Contains(same, "unchanged") {
		t.Errorf("Describe identical = %q", same)
	}
}
