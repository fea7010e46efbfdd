// Package loader reads a directory of markdown files into a doctree.Tree.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"mdviewer/internal/doctree"
)

// DefaultMaxFileSize caps the size of a single document.
const DefaultMaxFileSize = 4 << 20

// ErrNotDirectory is returned when the load root is not a directory.
var ErrNotDirectory = errors.New("loader: root is not a directory")

// DefaultInclude selects markdown files at any depth.
var DefaultInclude = []string{"**/*.md"}

// DefaultIgnore lists folders that never hold documentation worth browsing.
var DefaultIgnore = []string{
	// Version control
	"**/.git", "**/.svn", "**/.hg",

	// Dependencies
	"**/node_modules", "**/vendor", "**/bower_components",

	// Build outputs
	"**/build", "**/dist", "**/out", "**/target",

	// Framework specific
	"**/.next", "**/.nuxt", "**/.vuepress",

	// Caches
	"**/.cache", "**/__pycache__", "**/.pytest_cache", "**/.nyc_output",

	// IDEs
	"**/.vscode", "**/.idea", "**/.eclipse",

	// Python virtual environments
	"**/venv", "**/env", "**/.venv", "**/.virtualenv",

	// Coverage and test outputs
	"**/coverage", "**/htmlcov",

	// Temporary files
	"**/tmp", "**/temp", "**/.tmp",
}

type (
	// Options configures a Load.
	Options struct {
		// Root is the directory mirrored by the tree.
		Root string
		// Include are doublestar globs, relative to Root, selecting files.
		// Empty means DefaultInclude.
		Include []string
		// Ignore are doublestar globs for files and directories to skip.
		Ignore []string
		// StripFrontmatter removes a leading YAML front matter block.
		StripFrontmatter bool
		// MaxFileSize skips larger files. Zero means DefaultMaxFileSize.
		MaxFileSize int64
		// Logger receives warnings about skipped files. Nil discards them.
		Logger *log.Logger
	}

	// Stats summarises a Load.
	Stats struct {
		Documents   int
		Directories int
		Skipped     int
	}
)

// Validate checks every glob in o.
func (o Options) Validate() error {
	for _, pat := range append(append([]string{}, o.Include...), o.Ignore...) {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("loader: invalid pattern %q", pat)
		}
	}
	return nil
}

// Load walks o.Root and returns the tree of matching documents. Directories
// that end up without any document are left out. Files that cannot be read
// are logged and skipped.
func Load(ctx context.Context, o Options) (doctree.Tree, Stats, error) {
	var stats Stats

	if err := o.Validate(); err != nil {
		return nil, stats, err
	}
	root, err := filepath.Abs(o.Root)
	if err != nil {
		return nil, stats, fmt.Errorf("loader: resolve %s: %w", o.Root, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, stats, fmt.Errorf("loader: %w", err)
	}
	if !info.IsDir() {
		return nil, stats, fmt.Errorf("%w: %s", ErrNotDirectory, o.Root)
	}

	include := o.Include
	if len(include) == 0 {
		include = DefaultInclude
	}
	maxSize := o.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	logger := o.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	tree := doctree.Tree{}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			logger.Warn("skipping unreadable path", "path", path, "err", walkErr)
			stats.Skipped++
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil //nolint:nilerr // the root itself and unrelatable paths carry no document
		}
		rel = filepath.ToSlash(rel)

		if Matches(o.Ignore, rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !Matches(include, rel) {
			return nil
		}

		content, readErr := readDocument(path, maxSize)
		if readErr != nil {
			logger.Warn("failed to process file", "path", rel, "err", readErr)
			stats.Skipped++
			return nil
		}
		if o.StripFrontmatter {
			content = StripFrontmatter(content)
		}
		insert(tree, strings.Split(rel, "/"), content)
		return nil
	})
	if err != nil {
		return nil, stats, fmt.Errorf("loader: walk %s: %w", o.Root, err)
	}

	stats.Documents, stats.Directories = tree.Count()
	logger.Debug("loaded tree", "root", root, "documents", stats.Documents, "directories", stats.Directories)
	return tree, stats, nil
}

// Matches reports whether rel (slash separated, relative to the root)
// matches any of patterns.
func Matches(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// readDocument reads path unless it exceeds limit bytes.
func readDocument(path string, limit int64) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Size() > limit {
		return "", fmt.Errorf("file is %d bytes, limit is %d", info.Size(), limit)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(content), nil
}

// insert places content at parts, creating intermediate directories. Only
// directories holding a document are ever created, so empty folders never
// reach the tree.
func insert(tree doctree.Tree, parts []string, content string) {
	cur := tree
	for _, dir := range parts[:len(parts)-1] {
		sub, ok := cur[dir].Tree()
		if !ok {
			sub = doctree.Tree{}
			cur[dir] = doctree.Dir(sub)
		}
		cur = sub
	}
	cur[parts[len(parts)-1]] = doctree.Doc(content)
}

// StripFrontmatter removes YAML frontmatter from markdown content.
// Frontmatter is delimited by --- at the start and end.
func StripFrontmatter(content string) string {
	if !strings.HasPrefix(content, "---\n") && !strings.HasPrefix(content, "---\r\n") {
		return content
	}

	lines := strings.Split(content, "\n")
	if len(lines) < 3 {
		return content
	}

	// Look for the closing delimiter
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return strings.Join(lines[i+1:], "\n")
		}
	}

	// No closing delimiter found, return original content
	return content
}
