package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/disiqueira/gotree/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mdviewer/internal/doctree"
	"mdviewer/internal/render"
	"mdviewer/internal/termview"
)

// setup builds an initialized App for the command line options. A --root
// flag wins over the configured root but not over a PATH argument.
func setup(ctx context.Context, opts *options, targetPath string) (*App, error) {
	app := NewApp()
	if err := app.LoadConfig(opts.configFile, targetPath); err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	if opts.root != "" && targetPath == "" {
		root, err := filepath.Abs(opts.root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root %s: %w", opts.root, err)
		}
		app.Config.Root = root
	}
	if err := app.Initialize(ctx, opts.verbose); err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return app, nil
}

func runServe(ctx context.Context, opts *options, args []string) error {
	targetPath := ""
	if len(args) > 0 {
		targetPath = args[0]
	}
	app, err := setup(ctx, opts, targetPath)
	if err != nil {
		return err
	}
	if err := app.Start(ctx, opts.serveOnly); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func newServeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [PATH]",
		Short: "Serve the document tree over HTTP (and SSH when enabled)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, args)
		},
	}
	cmd.Flags().BoolVar(&opts.serveOnly, "serve", false, "start server without opening browser")
	return cmd
}

func newShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show [DOC]",
		Short: "Print a page of the document tree in the terminal",
		Long: `Print the navigation and rendered document for DOC, a slash separated
path inside the document root. A directory shows its default file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(cmd.Context(), opts, "")
			if err != nil {
				return err
			}
			path := doctree.Path{}
			if len(args) > 0 {
				path = doctree.ParsePath(args[0])
			}
			return showPage(cmd.OutOrStdout(), app, path)
		},
	}
}

// showPage writes one page to out, sized to the terminal when out is one.
func showPage(out io.Writer, app *App, path doctree.Path) error {
	md := render.Terminal{Style: app.Config.GlamourStyle}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil {
			md.Width = width
		}
	} else if md.Style == "" {
		md.Style = "notty"
	}

	page := app.Navigate(path)
	styles := termview.NewStyles(lipgloss.NewRenderer(out))
	if err := termview.WritePage(out, page, app.Config.Title, styles, md); err != nil {
		return err
	}
	if !page.Location.Found {
		return &ExitError{Code: 1, Err: fmt.Errorf("not found: %s", page.Requested)}
	}
	return nil
}

func newTreeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the loaded document tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := setup(cmd.Context(), opts, "")
			if err != nil {
				return err
			}
			tree := app.Store.Load()
			if opts.jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(treeShape(tree))
			}
			_, err = io.WriteString(cmd.OutOrStdout(), renderTree(app.Config.Title, tree))
			return err
		},
	}
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "print the tree as JSON (documents map to their size in bytes)")
	return cmd
}

// renderTree draws t with directories before documents at every level.
func renderTree(label string, t doctree.Tree) string {
	root := gotree.New(label)
	addTreeNodes(root, t, doctree.Path{})
	return root.Print()
}

func addTreeNodes(parent gotree.Tree, t doctree.Tree, at doctree.Path) {
	for _, e := range doctree.Listing(t, at) {
		child := parent.Add(e.DisplayName())
		if sub, ok := t[e.Name].Tree(); ok {
			addTreeNodes(child, sub, at.Child(e.Name))
		}
	}
}

// treeShape mirrors t with document sizes in place of their text.
func treeShape(t doctree.Tree) map[string]any {
	out := make(map[string]any, len(t))
	for name, n := range t {
		if sub, ok := n.Tree(); ok {
			out[name] = treeShape(sub)
			continue
		}
		text, _ := n.Text()
		out[name] = len(text)
	}
	return out
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mdviewer %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "Build Time: %s\n", BuildTime)
		},
	}
}
