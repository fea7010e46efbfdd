// Package render turns markdown documents into HTML for the browser and into
// styled text for terminals.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/gohugoio/hugo-goldmark-extensions/passthrough"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// DefaultCodeStyle is the chroma style used for code blocks.
const DefaultCodeStyle = "github"

// HTML converts markdown to HTML with GitHub Flavored Markdown, highlighted
// code blocks and TeX math left intact for KaTeX.
type HTML struct {
	md        goldmark.Markdown
	codeStyle string
}

// NewHTML builds an HTML renderer. An empty codeStyle selects
// DefaultCodeStyle.
func NewHTML(codeStyle string) *HTML {
	if codeStyle == "" {
		codeStyle = DefaultCodeStyle
	}
	return &HTML{
		codeStyle: codeStyle,
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM, // GitHub Flavored Markdown
				extension.Typographer,
				highlighting.NewHighlighting(
					highlighting.WithStyle(codeStyle),
					highlighting.WithFormatOptions(
						chromahtml.WithClasses(true),
					),
				),
				passthrough.New(passthrough.Config{
					InlineDelimiters: []passthrough.Delimiters{
						{Open: "$", Close: "$"},
						{Open: `\(`, Close: `\)`},
					},
					BlockDelimiters: []passthrough.Delimiters{
						{Open: "$$", Close: "$$"},
						{Open: `\[`, Close: `\]`},
					},
				}),
			),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(), // Auto-generate heading IDs
				parser.WithASTTransformers(util.Prioritized(externalLinks{}, 100)),
			),
			goldmark.WithRendererOptions(
				html.WithUnsafe(), // Allow raw HTML in markdown
			),
		),
	}
}

// Render converts source to HTML.
func (h *HTML) Render(source string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := h.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return template.HTML(buf.String()), nil //nolint:gosec // raw HTML in documents is allowed on purpose
}

// CSS returns the stylesheet matching the classes emitted for code blocks.
func (h *HTML) CSS() (string, error) {
	return ChromaCSS(h.codeStyle)
}

// ChromaCSS returns the chroma stylesheet for style, falling back to the
// chroma default when style is unknown.
func ChromaCSS(style string) (string, error) {
	var buf bytes.Buffer
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	if err := formatter.WriteCSS(&buf, styles.Get(style)); err != nil {
		return "", fmt.Errorf("failed to write code stylesheet: %w", err)
	}
	return buf.String(), nil
}

// externalLinks opens absolute links in a new tab and leaves in-tree links
// alone so navigation stays inside the viewer.
type externalLinks struct{}

func (externalLinks) Transform(doc *ast.Document, _ text.Reader, _ parser.Context) {
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		link, ok := n.(*ast.Link)
		if !ok {
			return ast.WalkContinue, nil
		}
		if IsExternal(string(link.Destination)) {
			link.SetAttributeString("target", "_blank")
			link.SetAttributeString("rel", "noopener noreferrer")
		}
		return ast.WalkContinue, nil
	})
}

// IsExternal reports whether dest points outside the viewer.
func IsExternal(dest string) bool {
	lower := strings.ToLower(dest)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "mailto:") ||
		strings.HasPrefix(lower, "//")
}
