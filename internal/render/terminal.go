package render

import (
	"fmt"

	"github.com/charmbracelet/glamour"
)

// Terminal renders markdown for ANSI terminals.
type Terminal struct {
	// Style is a glamour style name ("auto", "dark", "light", "notty", ...).
	// Empty means "auto".
	Style string
	// Width is the word wrap width; 0 disables wrapping.
	Width int
}

// Render converts source to styled terminal text.
func (t Terminal) Render(source string) (string, error) {
	var opts []glamour.TermRendererOption
	switch t.Style {
	case "", "auto":
		opts = append(opts, glamour.WithAutoStyle())
	default:
		opts = append(opts, glamour.WithStandardStyle(t.Style))
	}
	if t.Width > 0 {
		opts = append(opts, glamour.WithWordWrap(t.Width))
	}

	renderer, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create terminal renderer: %w", err)
	}
	out, err := renderer.Render(source)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}
