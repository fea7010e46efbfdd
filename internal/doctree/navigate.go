package doctree

import (
	"net/url"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Entry is one line of a directory listing.
type Entry struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
	Link string `json:"link"`
}

// DisplayName is the name shown in navigation; directories carry a trailing
// slash.
func (e Entry) DisplayName() string {
	if e.Kind == KindDirectory {
		return e.Name + "/"
	}
	return e.Name
}

// Page is everything a surface needs to draw one navigation step.
type Page struct {
	Requested Path
	Location  Location
	// Up is the parent of Location.DirectoryPath, valid when HasUp is set.
	Up      Path
	HasUp   bool
	Entries []Entry
}

// kindRank orders directories before documents in a listing.
func kindRank(k Kind) int {
	if k == KindDirectory {
		return 0
	}
	return 1
}

// Listing enumerates dir, linking every entry below dirPath. Directories
// come first, then documents; each group is sorted by name the way a reader
// expects, ignoring case, with byte order breaking ties.
func Listing(dir Tree, dirPath Path) []Entry {
	entries := make([]Entry, 0, len(dir))
	base := dirPath.URL()
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	for name, n := range dir {
		e := Entry{Name: name, Kind: n.Kind(), Link: base + url.PathEscape(name)}
		if e.Kind == KindDirectory {
			e.Link += "/"
		}
		entries = append(entries, e)
	}
	// a Collator keeps scratch buffers and must not be shared
	coll := collate.New(language.Und, collate.IgnoreCase)
	sort.Slice(entries, func(i, j int) bool {
		ri, rj := kindRank(entries[i].Kind), kindRank(entries[j].Kind)
		if ri != rj {
			return ri < rj
		}
		if c := coll.CompareString(entries[i].Name, entries[j].Name); c != 0 {
			return c < 0
		}
		return entries[i].Name < entries[j].Name
	})
	return entries
}

// UpLink returns the parent of dirPath. There is nothing above the root, so
// the second result is false there.
func UpLink(dirPath Path) (Path, bool) {
	if len(dirPath) == 0 {
		return nil, false
	}
	return dirPath.Parent(), true
}

// Navigate resolves path and derives the listing and up link for the
// resulting directory.
func Navigate(tree Tree, path Path, defaultFilename string) Page {
	loc := Resolve(tree, path, defaultFilename)
	up, hasUp := UpLink(loc.DirectoryPath)
	return Page{
		Requested: path.Child(),
		Location:  loc,
		Up:        up,
		HasUp:     hasUp,
		Entries:   Listing(loc.Directory, loc.DirectoryPath),
	}
}
