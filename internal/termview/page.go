// Package termview draws document pages for terminals, locally and over SSH.
package termview

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"mdviewer/internal/doctree"
	"mdviewer/internal/render"
)

// Color palette shared by every terminal surface.
const (
	ColorPrimary   = lipgloss.Color("#7C3AED")
	ColorMuted     = lipgloss.Color("#6B7280")
	ColorError     = lipgloss.Color("#EF4444")
	ColorHighlight = lipgloss.Color("#3B82F6")
)

// Styles are bound to one lipgloss renderer so that each SSH session gets
// colors matching its own terminal.
type Styles struct {
	Title    lipgloss.Style
	Up       lipgloss.Style
	Dir      lipgloss.Style
	Doc      lipgloss.Style
	Error    lipgloss.Style
	Divider  lipgloss.Style
	Selected lipgloss.Style
}

// NewStyles builds Styles for r; nil means the default renderer.
func NewStyles(r *lipgloss.Renderer) Styles {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return Styles{
		Title:    r.NewStyle().Bold(true).Foreground(ColorPrimary),
		Up:       r.NewStyle().Italic(true).Foreground(ColorMuted),
		Dir:      r.NewStyle().Bold(true).Foreground(ColorHighlight),
		Doc:      r.NewStyle().Foreground(ColorHighlight),
		Error:    r.NewStyle().Bold(true).Foreground(ColorError),
		Divider:  r.NewStyle().Foreground(ColorMuted),
		Selected: r.NewStyle().Bold(true).Underline(true),
	}
}

// WritePage writes the navigation for page followed by its rendered
// document. A missing page gets only the not-found notice.
func WritePage(w io.Writer, page doctree.Page, title string, styles Styles, md render.Terminal) error {
	var b strings.Builder

	if !page.Location.Found {
		b.WriteString(styles.Error.Render("Not found: "+page.Requested.String()+".") + " Go back: /\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	heading := title
	if len(page.Requested) > 0 {
		heading += " › " + page.Requested.String()
	}
	b.WriteString(styles.Title.Render(heading) + "\n\n")

	if page.HasUp {
		b.WriteString("  " + styles.Up.Render("up one level") + " " + styles.Divider.Render("/"+page.Up.String()) + "\n")
	}
	current := ""
	if !page.Location.Node.IsDir() && len(page.Requested) > 0 {
		current = page.Requested[len(page.Requested)-1]
	}
	for _, e := range page.Entries {
		style := styles.Doc
		if e.Kind == doctree.KindDirectory {
			style = styles.Dir
		}
		if e.Name == current {
			style = style.Inherit(styles.Selected)
		}
		b.WriteString("  " + style.Render(e.DisplayName()) + "\n")
	}

	if page.Location.Display != "" {
		out, err := md.Render(page.Location.Display)
		if err != nil {
			return fmt.Errorf("render %s: %w", page.Requested, err)
		}
		width := md.Width
		if width <= 0 {
			width = 80
		}
		b.WriteString("\n" + styles.Divider.Render(strings.Repeat("─", width)) + "\n")
		b.WriteString(out)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
