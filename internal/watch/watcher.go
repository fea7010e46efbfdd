// Package watch reports debounced filesystem changes below a document root.
//
// Rapid successive events (an editor writing then renaming a temp file, a
// checkout touching many files) coalesce into one callback carrying the
// deduplicated set of changed paths.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 300 * time.Millisecond

// defaultIgnores are editor and OS noise that never affects documents.
var defaultIgnores = []string{
	"**/.git/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.DS_Store",
}

// Config holds the parameters for a Watcher.
type Config struct {
	// BaseDir is the directory watched recursively.
	BaseDir string
	// Patterns select which files trigger callbacks; empty matches all.
	// Directory creation and removal always trigger.
	Patterns []string
	// Ignore are merged with the built-in ignores.
	Ignore []string
	// Debounce is the quiet period before OnChange fires.
	Debounce time.Duration
	// OnChange receives changed paths relative to BaseDir, sorted. It runs
	// on the Run goroutine; events arriving meanwhile wait in fsnotify.
	OnChange func(ctx context.Context, changed []string) error
	Logger   *log.Logger
}

// Watcher monitors a document root.
type Watcher struct {
	fsw      *fsnotify.Watcher
	baseDir  string
	patterns []string
	ignores  []string
	debounce time.Duration
	onChange func(ctx context.Context, changed []string) error
	logger   *log.Logger
}

// New creates a Watcher and registers every non-ignored directory under
// cfg.BaseDir.
func New(cfg Config) (*Watcher, error) {
	for _, pat := range append(slices.Clone(cfg.Patterns), cfg.Ignore...) {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("watch: invalid pattern %q", pat)
		}
	}
	base, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve %q: %w", cfg.BaseDir, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		baseDir:  base,
		patterns: cfg.Patterns,
		ignores:  append(slices.Clone(defaultIgnores), cfg.Ignore...),
		debounce: cfg.Debounce,
		onChange: cfg.OnChange,
		logger:   cfg.Logger,
	}
	if w.debounce <= 0 {
		w.debounce = defaultDebounce
	}
	if w.logger == nil {
		w.logger = log.New(io.Discard)
	}
	if err := w.addDirectories(); err != nil {
		fsw.Close() //nolint:errcheck
		return nil, err
	}
	return w, nil
}

// Run delivers batched changes to OnChange until ctx is cancelled, then
// releases the underlying fsnotify watcher. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("close fsnotify", "err", err)
		}
	}()

	pending := make(map[string]struct{})
	quiet := time.NewTimer(w.debounce)
	quiet.Stop()
	defer quiet.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed")
			}
			if rel, keep := w.accept(evt); keep {
				w.logger.Debug("filesystem event", "path", rel, "op", evt.Op.String())
				pending[rel] = struct{}{}
				quiet.Reset(w.debounce)
			}

		case <-quiet.C:
			if len(pending) == 0 || w.onChange == nil {
				continue
			}
			changed := slices.Sorted(maps.Keys(pending))
			clear(pending)
			if err := w.onChange(ctx, changed); err != nil {
				w.logger.Error("change callback failed", "err", err)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed")
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warn("fsnotify queue overflow, events were dropped", "err", err)
				continue
			}
			w.logger.Error("fsnotify error", "err", err)
		}
	}
}

// accept reports whether evt concerns the document tree and returns its
// slash-separated path relative to the base directory. New directories are
// registered on the way.
func (w *Watcher) accept(evt fsnotify.Event) (string, bool) {
	rel := w.relative(evt.Name)
	if matchAny(w.ignores, rel) {
		return "", false
	}
	// removed or renamed paths cannot be stat'ed, so a deleted folder is
	// indistinguishable from a deleted document
	if evt.Has(fsnotify.Remove) || evt.Has(fsnotify.Rename) {
		return rel, true
	}
	if evt.Has(fsnotify.Create) && w.maybeAddDir(evt.Name, rel) {
		return rel, true
	}
	return rel, len(w.patterns) == 0 || matchAny(w.patterns, rel)
}

func (w *Watcher) relative(path string) string {
	rel, err := filepath.Rel(w.baseDir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// addDirectories registers the base directory and every non-ignored
// directory below it.
func (w *Watcher) addDirectories() error {
	err := filepath.WalkDir(w.baseDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("skipping inaccessible path", "path", path, "err", err)
			return nil //nolint:nilerr
		}
		if !d.IsDir() {
			return nil
		}
		if rel := w.relative(path); rel != "." && w.ignoredDir(rel) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch: walk %s: %w", w.baseDir, err)
	}
	return nil
}

// maybeAddDir watches path when it is a directory created after New and
// reports whether it was a directory at all.
func (w *Watcher) maybeAddDir(path, rel string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	if w.ignoredDir(rel) {
		return true
	}
	if err := w.fsw.Add(path); err != nil {
		w.logger.Warn("add new directory", "path", path, "err", err)
	}
	return true
}

func (w *Watcher) ignoredDir(rel string) bool {
	return matchAny(w.ignores, rel) || matchAny(w.ignores, rel+"/")
}

func matchAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}
