package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"

	"mdviewer/internal/doctree"
	"mdviewer/internal/loader"
	"mdviewer/internal/render"
	"mdviewer/internal/server"
	"mdviewer/internal/termview"
	"mdviewer/internal/watch"
)

// NewApp creates a new application instance logging to os.Stderr.
func NewApp() *App {
	return &App{
		Logger: log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			Prefix:          "mdviewer",
		}),
	}
}

// Initialize loads the document tree described by a.Config and wires the
// HTTP surface around it.
func (a *App) Initialize(ctx context.Context, verbose bool) error {
	level, _ := parseLevel(a.Config.LogLevel) // validated by LoadConfig
	if verbose {
		level = log.DebugLevel
	}
	a.Logger.SetLevel(level)
	if a.ConfigFile != "" {
		a.Logger.Debug("using config file", "path", a.ConfigFile)
	}

	tree, err := a.loadTree(ctx)
	if err != nil {
		return err
	}
	a.Store = doctree.NewStore(tree)
	a.Markdown = render.NewHTML(a.Config.CodeStyle)
	a.HTTP = server.New(server.Config{
		Title:           a.Config.Title,
		DefaultFilename: a.Config.DefaultFilename,
	}, a.Store, a.Markdown, server.NewBroker(), a.Logger.WithPrefix("http"))
	return nil
}

func (a *App) loaderOptions() loader.Options {
	return loader.Options{
		Root:             a.Config.Root,
		Include:          a.Config.Include,
		Ignore:           a.Config.Ignore,
		StripFrontmatter: a.Config.StripFrontmatter,
		MaxFileSize:      a.Config.MaxFileSize,
		Logger:           a.Logger.WithPrefix("loader"),
	}
}

func (a *App) loadTree(ctx context.Context) (doctree.Tree, error) {
	tree, stats, err := loader.Load(ctx, a.loaderOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	a.Logger.Info("loaded documents", "root", a.Config.Root, "documents", stats.Documents, "directories", stats.Directories, "skipped", stats.Skipped)
	return tree, nil
}

// Reload rebuilds the tree from disk and swaps it in. Pages requested after
// Reload returns see the new tree; open browsers are told to refresh.
func (a *App) Reload(ctx context.Context) error {
	tree, err := a.loadTree(ctx)
	if err != nil {
		return err
	}
	version := a.Store.Replace(tree)
	if a.HTTP != nil {
		a.HTTP.NotifyReload(version)
	}
	return nil
}

// Navigate resolves a path against the current tree.
func (a *App) Navigate(path doctree.Path) doctree.Page {
	return doctree.Navigate(a.Store.Load(), path, a.Config.DefaultFilename)
}

// findAvailablePort finds an available port starting from the given port
func findAvailablePort(host string, startPort int) (net.Listener, error) {
	for port := startPort; port < startPort+100; port++ {
		listener, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err == nil {
			return listener, nil
		}
	}
	return nil, fmt.Errorf("no available port found in range %d-%d", startPort, startPort+100)
}

// openBrowser opens the default browser with the given URL
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}

// Start serves HTTP (and SSH when enabled) and watches the root for changes
// until ctx is cancelled.
func (a *App) Start(ctx context.Context, serveMode bool) error {
	listener, err := findAvailablePort(a.Config.Host, a.Config.Port)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg     sync.WaitGroup
		errsMu sync.Mutex
		errs   []error
	)
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				errsMu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				errsMu.Unlock()
				// one failed service brings the others down
				cancel()
			}
		}()
	}

	run("http", func(ctx context.Context) error { return a.HTTP.Serve(ctx, listener) })

	if a.Config.SSH.Enabled {
		ssh := termview.NewServer(termview.Config{
			Host:            a.Config.SSH.Host,
			Port:            a.Config.SSH.Port,
			HostKeyPath:     a.Config.SSH.HostKeyPath,
			Title:           a.Config.Title,
			DefaultFilename: a.Config.DefaultFilename,
			GlamourStyle:    a.Config.GlamourStyle,
		}, a.Store, a.Logger.WithPrefix("ssh"))
		run("ssh", ssh.Run)
	}

	if a.Config.Watch {
		w, err := watch.New(watch.Config{
			BaseDir:  a.Config.Root,
			Patterns: a.Config.Include,
			Ignore:   a.Config.Ignore,
			Debounce: a.Config.Debounce,
			Logger:   a.Logger.WithPrefix("watch"),
			OnChange: func(ctx context.Context, changed []string) error {
				a.Logger.Info("documents changed, reloading", "files", len(changed))
				return a.Reload(ctx)
			},
		})
		if err != nil {
			// serving without live reload beats not serving
			a.Logger.Warn("live reload disabled", "err", err)
		} else {
			run("watch", w.Run)
		}
	}

	url := "http://" + listener.Addr().String() + a.TargetPath.URL()
	docs, dirs := a.Store.Load().Count()
	a.Logger.Info("server started", "url", url, "documents", docs, "directories", dirs)
	fmt.Printf("\nServer running at: %s\nPress Ctrl+C to stop the server\n\n", url)

	// Open browser unless in serve mode
	if !serveMode && a.Config.OpenBrowser {
		if err := openBrowser(url); err != nil {
			a.Logger.Warn("could not open browser automatically", "err", err)
			fmt.Printf("Please open your browser manually to: %s\n", url)
		}
	}

	wg.Wait()
	return errors.Join(errs...)
}
