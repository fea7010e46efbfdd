package doctree

import "sync/atomic"

// Store holds the current Tree. Replace swaps in a freshly loaded tree; the
// value handed out by Load is never modified afterwards.
type Store struct {
	tree    atomic.Pointer[Tree]
	version atomic.Uint64
}

// NewStore returns a Store holding t.
func NewStore(t Tree) *Store {
	s := &Store{}
	s.Replace(t)
	return s
}

// Load returns the current tree.
func (s *Store) Load() Tree {
	if t := s.tree.Load(); t != nil {
		return *t
	}
	return Tree{}
}

// Replace installs t and returns the new version number.
func (s *Store) Replace(t Tree) uint64 {
	if t == nil {
		t = Tree{}
	}
	s.tree.Store(&t)
	return s.version.Add(1)
}

// Version counts replacements, starting at 1 for the initial tree.
func (s *Store) Version() uint64 {
	return s.version.Load()
}
