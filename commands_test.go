package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mdviewer/internal/doctree"
)

func newTestApp(t *testing.T, root string) *App {
	t.Helper()
	app := NewApp()
	app.Logger.SetOutput(io.Discard)
	app.Config = getDefaultConfig()
	app.Config.Root = root
	app.Config.Port = 0
	app.Config.Watch = false
	app.Config.OpenBrowser = false
	if err := app.Initialize(context.Background(), false); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return app
}

func writeDocs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "readme.md"), "# Home\n\nWelcome home.\n")
	writeFile(t, filepath.Join(dir, "zebra.md"), "# Zebra\n")
	writeFile(t, filepath.Join(dir, "guide", "readme.md"), "# Guide\n\nStart here.\n")
	writeFile(t, filepath.Join(dir, "guide", "install.md"), "# Install\n\nRun the binary.\n")
	return dir
}

func TestAppNavigate(t *testing.T) {
	app := newTestApp(t, writeDocs(t))

	page := app.Navigate(doctree.ParsePath("guide/install.md"))
	if !page.Location.Found {
		t.Fatal("guide/install.md not found")
	}
	if !strings.Contains(page.Location.Display, "Run the binary.") {
		t.Errorf("Display = %q", page.Location.Display)
	}
	if page.Up.String() != "" || !page.HasUp {
		t.Errorf("Up = %q, HasUp = %v; want root", page.Up, page.HasUp)
	}

	root := app.Navigate(doctree.Path{})
	if root.HasUp {
		t.Error("root page has an up link")
	}
	if len(root.Entries) != 3 || root.Entries[0].Name != "guide" {
		t.Errorf("root entries = %+v, want guide first", root.Entries)
	}
}

func TestAppReload(t *testing.T) {
	dir := writeDocs(t)
	app := newTestApp(t, dir)

	if page := app.Navigate(doctree.ParsePath("notes.md")); page.Location.Found {
		t.Fatal("notes.md found before it exists")
	}
	before := app.Store.Version()

	writeFile(t, filepath.Join(dir, "notes.md"), "# Notes\n")
	if err := app.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	if page := app.Navigate(doctree.ParsePath("notes.md")); !page.Location.Found {
		t.Error("notes.md not found after reload")
	}
	if app.Store.Version() <= before {
		t.Errorf("Version() = %d, want greater than %d", app.Store.Version(), before)
	}
}

func TestShowPage(t *testing.T) {
	app := newTestApp(t, writeDocs(t))

	t.Run("directory shows its default file", func(t *testing.T) {
		var out bytes.Buffer
		if err := showPage(&out, app, doctree.ParsePath("guide")); err != nil {
			t.Fatalf("showPage() error = %v", err)
		}
		got := out.String()
		for _, want := range []string{"up one level", "install.md", "Start here."} {
			if !strings.Contains(got, want) {
				t.Errorf("output missing %q:\n%s", want, got)
			}
		}
	})

	t.Run("missing document", func(t *testing.T) {
		var out bytes.Buffer
		err := showPage(&out, app, doctree.ParsePath("guide/missing.md"))

		var exitErr *ExitError
		if !errors.As(err, &exitErr) || exitErr.Code != 1 {
			t.Fatalf("showPage() error = %v, want ExitError with code 1", err)
		}
		if !strings.Contains(out.String(), "Not found: guide/missing.md.") {
			t.Errorf("output = %q", out.String())
		}
		if strings.Contains(out.String(), "Start here.") {
			t.Error("not found page shows document content")
		}
	})
}

func TestRenderTree(t *testing.T) {
	tree := doctree.Tree{
		"Zebra.md": doctree.Doc("z"),
		"guide": doctree.Dir(doctree.Tree{
			"install.md": doctree.Doc("i"),
		}),
		"alpha.md": doctree.Doc("a"),
	}

	got := renderTree("Docs", tree)

	if !strings.HasPrefix(got, "Docs") {
		t.Errorf("tree does not start with its label:\n%s", got)
	}
	order := []string{"guide/", "install.md", "alpha.md", "Zebra.md"}
	last := -1
	for _, name := range order {
		i := strings.Index(got, name)
		if i < 0 {
			t.Fatalf("tree missing %q:\n%s", name, got)
		}
		if i < last {
			t.Errorf("%q printed out of order:\n%s", name, got)
		}
		last = i
	}
}

func TestTreeShape(t *testing.T) {
	tree := doctree.Tree{
		"a.md": doctree.Doc("hello"),
		"sub": doctree.Dir(doctree.Tree{
			"b.md": doctree.Doc(""),
		}),
		"empty": doctree.Dir(nil),
	}

	data, err := json.Marshal(treeShape(tree))
	if err != nil {
		t.Fatal(err)
	}
	want := `{"a.md":5,"empty":{},"sub":{"b.md":0}}`
	if string(data) != want {
		t.Errorf("treeShape() = %s, want %s", data, want)
	}
}

func TestTreeCommand(t *testing.T) {
	dir := writeDocs(t)

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"tree", "--json", "--root", dir})

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("tree command error = %v", err)
	}

	var shape map[string]any
	if err := json.Unmarshal(out.Bytes(), &shape); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	guide, ok := shape["guide"].(map[string]any)
	if !ok {
		t.Fatalf("guide missing from %v", shape)
	}
	if _, ok := guide["install.md"]; !ok {
		t.Errorf("guide/install.md missing from %v", guide)
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "mdviewer "+Version) {
		t.Errorf("version output = %q", out.String())
	}
}

func TestStartStopsWithContext(t *testing.T) {
	app := newTestApp(t, writeDocs(t))
	app.Config.Host = "127.0.0.1"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Start(ctx, true) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}
