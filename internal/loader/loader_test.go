package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mdviewer/internal/doctree"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestLoadMirrorsDirectories(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "readme.md", "R")
	writeFile(t, root, "documents/data-models.md", "DM")
	writeFile(t, root, "lib/dataset/readme.md", "DS")
	writeFile(t, root, "lib/dataset/source.py", "print()")
	writeFile(t, root, "node_modules/pkg/readme.md", "ignored")
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	tree, stats, err := Load(context.Background(), Options{Root: root, Ignore: DefaultIgnore})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if stats.Documents != 3 || stats.Directories != 3 {
		t.Errorf("stats = %+v, want 3 documents in 3 directories", stats)
	}
	if _, ok := tree["node_modules"]; ok {
		t.Error("ignored directory loaded")
	}
	if _, ok := tree["empty"]; ok {
		t.Error("empty directory kept")
	}

	loc := doctree.Resolve(tree, doctree.Path{"lib", "dataset"}, doctree.DefaultFilename)
	if !loc.Found || loc.Display != "DS" {
		t.Errorf("lib/dataset = %+v", loc)
	}
	if _, ok := loc.Directory["source.py"]; ok {
		t.Error("non-markdown file loaded")
	}
}

func TestLoadCustomInclude(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "a.md", "A")
	writeFile(t, root, "notes/b.txt", "B")

	tree, _, err := Load(context.Background(), Options{Root: root, Include: []string{"**/*.txt"}})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if _, ok := tree["a.md"]; ok {
		t.Error("a.md should not match **/*.txt")
	}
	notes, ok := tree["notes"].Tree()
	if !ok {
		t.Fatal("notes directory missing")
	}
	if text, _ := notes["b.txt"].Text(); text != "B" {
		t.Errorf("b.txt = %q", text)
	}
}

func TestLoadStripsFrontmatter(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "page.md", "---\ntitle: x\n---\n# Page\n")

	tree, _, err := Load(context.Background(), Options{Root: root, StripFrontmatter: true})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if text, _ := tree["page.md"].Text(); text != "# Page\n" {
		t.Errorf("page.md = %q", text)
	}
}

func TestLoadSkipsLargeFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "big.md", "0123456789")
	writeFile(t, root, "small.md", "0")

	tree, stats, err := Load(context.Background(), Options{Root: root, MaxFileSize: 5})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if _, ok := tree["big.md"]; ok {
		t.Error("oversized file loaded")
	}
	if stats.Skipped != 1 || stats.Documents != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "file.md", "x")

	if _, _, err := Load(context.Background(), Options{Root: filepath.Join(root, "file.md")}); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("file root error = %v, want ErrNotDirectory", err)
	}
	if _, _, err := Load(context.Background(), Options{Root: filepath.Join(root, "missing")}); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing root error = %v, want ErrNotExist", err)
	}
	if _, _, err := Load(context.Background(), Options{Root: root, Ignore: []string{"[bad"}}); err == nil {
		t.Error("expected invalid pattern error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := Load(ctx, Options{Root: root}); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled load error = %v", err)
	}
}

func TestMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rel  string
		want bool
	}{
		{".git", true},
		{"sub/.git", true},
		{"a/b/node_modules", true},
		{"docs", false},
		{"environment", false},
	}
	for _, tt := range tests {
		if got := Matches(DefaultIgnore, tt.rel); got != tt.want {
			t.Errorf("Matches(DefaultIgnore, %q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}

func TestStripFrontmatter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name, in, want string
	}{
		{"none", "# Title\n", "# Title\n"},
		{"simple", "---\na: 1\n---\nbody", "body"},
		{"crlf", "---\r\na: 1\r\n---\r\nbody", "body"},
		{"unterminated", "---\na: 1\nbody", "---\na: 1\nbody"},
		{"rule later", "text\n---\nmore", "text\n---\nmore"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := StripFrontmatter(tt.in); got != tt.want {
				t.Errorf("StripFrontmatter(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
