package doctree

// Location is the outcome of resolving a Path against a Tree.
type Location struct {
	// Node is the addressed node; meaningful only when Found is true.
	Node  Node
	Found bool

	// DirectoryPath is the directory whose listing accompanies the page: the
	// parent of a document, the directory itself, or the deepest existing
	// ancestor of a path that could not be resolved.
	DirectoryPath Path
	// Directory is the tree at DirectoryPath, never nil.
	Directory Tree

	// Display is the markdown to render for this location.
	Display string
}

// Resolve walks path through tree one segment at a time. A missing name, or
// an attempt to descend into a document, stops the walk and yields a
// Location with Found unset. Resolve never fails otherwise.
func Resolve(tree Tree, path Path, defaultFilename string) Location {
	if tree == nil {
		tree = Tree{}
	}

	var (
		node  = Dir(tree)
		found = true
		// deepest directory reached on the way down
		dirDepth = 0
		dir      = tree
	)
	for i, name := range path {
		cur, ok := node.Tree()
		if !ok {
			found = false
			break
		}
		next, ok := cur[name]
		if !ok {
			found = false
			break
		}
		node = next
		if sub, isDir := next.Tree(); isDir {
			dirDepth = i + 1
			dir = sub
		}
	}

	loc := Location{Found: found}
	switch {
	case !found:
		loc.DirectoryPath = path[:dirDepth:dirDepth]
		loc.Directory = dir
	case node.kind == KindDocument:
		loc.Node = node
		loc.DirectoryPath = path.Parent()
		loc.Directory = lookupDir(tree, loc.DirectoryPath)
		loc.Display = node.text
	default:
		loc.Node = node
		loc.DirectoryPath = path.Child()
		loc.Directory = node.dir
	}

	if loc.Display == "" && (!found || node.kind == KindDirectory) {
		if d, ok := loc.Directory[defaultFilename]; ok {
			loc.Display, _ = d.Text()
		}
	}
	return loc
}

// lookupDir returns the tree at p, or an empty tree when p does not name a
// directory.
func lookupDir(tree Tree, p Path) Tree {
	cur := tree
	for _, name := range p {
		sub, ok := cur[name].Tree()
		if !ok {
			return Tree{}
		}
		cur = sub
	}
	if cur == nil {
		return Tree{}
	}
	return cur
}
