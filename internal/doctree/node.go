// Package doctree resolves request paths against an in-memory tree of
// markdown documents and computes the navigation shown next to them.
//
// A Tree is a plain value: it is built once by a loader and never mutated,
// so every function in this package is safe to call from many goroutines.
package doctree

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultFilename is the document shown when a directory is requested.
const DefaultFilename = "readme.md"

// Kind discriminates the two Node variants.
type Kind int

const (
	// KindDocument is a leaf holding document text.
	KindDocument Kind = iota
	// KindDirectory is a nested Tree.
	KindDirectory
)

// String returns the label used in JSON output and logs.
func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "document":
		*k = KindDocument
	case "directory":
		*k = KindDirectory
	default:
		return fmt.Errorf("doctree: unknown kind %q", b)
	}
	return nil
}

type (
	// Tree maps a name (never containing a slash) to a Node.
	Tree map[string]Node

	// Node is either a Document or a Directory. Construct it with Doc or Dir;
	// the zero Node is an empty document.
	Node struct {
		kind Kind
		text string
		dir  Tree
	}

	// Path is a sequence of non-empty name segments. The empty Path is the
	// root of the tree.
	Path []string
)

// Doc returns a document node holding text.
func Doc(text string) Node {
	return Node{kind: KindDocument, text: text}
}

// Dir returns a directory node. A nil tree is stored as an empty one.
func Dir(t Tree) Node {
	if t == nil {
		t = Tree{}
	}
	return Node{kind: KindDirectory, dir: t}
}

// Kind reports which variant n holds.
func (n Node) Kind() Kind { return n.kind }

// IsDir reports whether n is a directory.
func (n Node) IsDir() bool { return n.kind == KindDirectory }

// Text returns the document text, and false when n is a directory.
func (n Node) Text() (string, bool) {
	if n.kind != KindDocument {
		return "", false
	}
	return n.text, true
}

// Tree returns the directory contents, and false when n is a document.
func (n Node) Tree() (Tree, bool) {
	if n.kind != KindDirectory {
		return nil, false
	}
	return n.dir, true
}

// ParsePath splits a slash separated URL path into segments, dropping empty
// ones, so "/docs//a.md/" and "docs/a.md" are the same Path.
func ParsePath(s string) Path {
	parts := strings.Split(s, "/")
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			p = append(p, part)
		}
	}
	return p
}

// String joins the segments with "/" and no leading slash.
func (p Path) String() string {
	return strings.Join(p, "/")
}

// URL returns the absolute link for p, "/" for the root. Segments are
// escaped, so names holding '#' or '?' survive the round trip through
// ParsePath of the decoded request path.
func (p Path) URL() string {
	var b strings.Builder
	for _, seg := range p {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(seg))
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

// Parent returns p without its last segment. The parent of the root is the
// root.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return Path{}
	}
	return p.Child()[:len(p)-1]
}

// Child returns a copy of p extended with names. The receiver is never
// aliased by the result.
func (p Path) Child(names ...string) Path {
	out := make(Path, 0, len(p)+len(names))
	out = append(out, p...)
	return append(out, names...)
}

// Count returns the number of documents and directories below t.
func (t Tree) Count() (docs, dirs int) {
	for _, n := range t {
		switch n.kind {
		case KindDocument:
			docs++
		case KindDirectory:
			dirs++
			d, s := n.dir.Count()
			docs += d
			dirs += s
		}
	}
	return docs, dirs
}
