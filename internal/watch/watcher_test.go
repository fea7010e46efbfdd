package watch

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

// TestWatcherDebounce verifies that rapid events coalesce into a single
// callback carrying every changed path.
func TestWatcherDebounce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	var (
		mu        sync.Mutex
		calls     int
		collected []string
	)
	done := make(chan struct{})

	w, err := New(Config{
		BaseDir:  dir,
		Patterns: []string{"**/*.md"},
		Debounce: 100 * time.Millisecond,
		OnChange: func(_ context.Context, changed []string) error {
			mu.Lock()
			defer mu.Unlock()
			calls++
			collected = append(collected, changed...)
			if calls == 1 {
				close(done)
			}
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	for _, name := range []string{"a.md", "b.md", "c.md", "ignored.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("data"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for OnChange")
	}

	// wait past another debounce window to catch stray callbacks
	time.Sleep(300 * time.Millisecond)

	cancel()
	if err := <-errCh; err != nil {
		t.Errorf("Run() error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("OnChange called %d times, want 1", calls)
	}
	for _, want := range []string{"a.md", "b.md", "c.md"} {
		if !slices.Contains(collected, want) {
			t.Errorf("changed paths %v missing %q", collected, want)
		}
	}
	if slices.Contains(collected, "ignored.txt") {
		t.Errorf("changed paths %v include a file outside Patterns", collected)
	}
}

// TestWatcherNewDirectory verifies that directories created after start are
// watched too.
func TestWatcherNewDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	got := make(chan []string, 4)

	w, err := New(Config{
		BaseDir:  dir,
		Patterns: []string{"**/*.md"},
		Debounce: 50 * time.Millisecond,
		OnChange: func(_ context.Context, changed []string) error {
			got <- changed
			return nil
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	sub := filepath.Join(dir, "docs")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	// let the directory registration settle before writing inside it
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(sub, "new.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case changed := <-got:
			if slices.Contains(changed, "docs/new.md") {
				return
			}
		case <-deadline:
			t.Fatal("never saw docs/new.md")
		}
	}
}

func TestWatcherIgnores(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := New(Config{BaseDir: dir, Ignore: []string{"**/drafts/**"}})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer w.fsw.Close()

	tests := []struct {
		rel  string
		want bool
	}{
		{".git/HEAD", true},
		{"notes.md.swp", true},
		{"drafts/x.md", true},
		{"docs/x.md", false},
	}
	for _, tt := range tests {
		if got := matchAny(w.ignores, tt.rel); got != tt.want {
			t.Errorf("ignored(%q) = %v, want %v", tt.rel, got, tt.want)
		}
	}
}

func TestWatcherAccept(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "guide"), 0o755); err != nil {
		t.Fatal(err)
	}
	w, err := New(Config{BaseDir: dir, Patterns: []string{"**/*.md"}})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer w.fsw.Close()

	tests := []struct {
		name string
		evt  fsnotify.Event
		rel  string
		want bool
	}{
		{"matching write", fsnotify.Event{Name: filepath.Join(dir, "a.md"), Op: fsnotify.Write}, "a.md", true},
		{"nested write", fsnotify.Event{Name: filepath.Join(dir, "guide", "b.md"), Op: fsnotify.Write}, "guide/b.md", true},
		{"other extension", fsnotify.Event{Name: filepath.Join(dir, "notes.txt"), Op: fsnotify.Write}, "notes.txt", false},
		{"removed folder", fsnotify.Event{Name: filepath.Join(dir, "old"), Op: fsnotify.Remove}, "old", true},
		{"renamed folder", fsnotify.Event{Name: filepath.Join(dir, "moved"), Op: fsnotify.Rename}, "moved", true},
		{"created directory", fsnotify.Event{Name: filepath.Join(dir, "guide"), Op: fsnotify.Create}, "guide", true},
		{"git internals", fsnotify.Event{Name: filepath.Join(dir, ".git", "index.md"), Op: fsnotify.Write}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rel, ok := w.accept(tt.evt)
			if ok != tt.want {
				t.Errorf("accept(%s) = %v, want %v", tt.evt, ok, tt.want)
			}
			if ok && rel != tt.rel {
				t.Errorf("accept(%s) path = %q, want %q", tt.evt, rel, tt.rel)
			}
		})
	}
}

func TestWatcherRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	w, err := New(Config{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() error = %v, want nil on cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestNewInvalidPattern(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{BaseDir: t.TempDir(), Patterns: []string{"[oops"}}); err == nil {
		t.Error("expected error for invalid pattern")
	}
}
