// Package server serves the document tree to browsers.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"mdviewer/internal/doctree"
	"mdviewer/internal/render"
)

//go:embed templates/*
var templatesFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templatesFS, "templates/page.html"))

const shutdownTimeout = 5 * time.Second

type (
	// Config holds presentation settings.
	Config struct {
		Title           string
		DefaultFilename string
	}

	// Server renders pages from the tree currently held by a Store.
	Server struct {
		cfg      Config
		store    *doctree.Store
		markdown *render.HTML
		broker   *Broker
		logger   *log.Logger
		mux      *http.ServeMux
	}

	// PageData is handed to the page template.
	PageData struct {
		AppTitle  string
		Title     string
		Requested string
		Found     bool
		HasUp     bool
		UpLink    string
		Entries   []doctree.Entry
		Content   template.HTML
	}

	// PageView is the JSON form of a resolved page.
	PageView struct {
		Path      string          `json:"path"`
		Found     bool            `json:"found"`
		Directory string          `json:"directory"`
		Up        *string         `json:"up,omitempty"`
		Entries   []doctree.Entry `json:"entries"`
		Markdown  string          `json:"markdown"`
	}
)

// New wires a Server. A nil broker gets a private one; a nil logger
// discards output.
func New(cfg Config, store *doctree.Store, markdown *render.HTML, broker *Broker, logger *log.Logger) *Server {
	if cfg.DefaultFilename == "" {
		cfg.DefaultFilename = doctree.DefaultFilename
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if broker == nil {
		broker = NewBroker()
	}
	s := &Server{
		cfg:      cfg,
		store:    store,
		markdown: markdown,
		broker:   broker,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes sets up HTTP routes
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /_events", s.handleEvents)
	s.mux.HandleFunc("GET /_static/chroma.css", s.handleChromaCSS)
	s.mux.HandleFunc("GET /_api/page/{path...}", s.handleAPIPage)
	s.mux.HandleFunc("GET /", s.handlePage)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	s.mux.ServeHTTP(w, r)
	s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
}

// Serve handles connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	}
}

// NotifyReload tells connected browsers that the tree changed.
func (s *Server) NotifyReload(version uint64) {
	s.broker.Publish(fmt.Sprintf("%d", version))
}

// handlePage resolves the request path and renders the navigation and the
// selected document.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	page := doctree.Navigate(s.store.Load(), doctree.ParsePath(r.URL.Path), s.cfg.DefaultFilename)

	data := PageData{
		AppTitle:  s.cfg.Title,
		Title:     pageTitle(page, s.cfg.Title),
		Requested: page.Requested.String(),
		Found:     page.Location.Found,
		HasUp:     page.HasUp,
		Entries:   page.Entries,
	}
	if page.HasUp {
		data.UpLink = page.Up.URL()
	}

	// a missing page shows only the notice
	if page.Location.Found {
		content, err := s.markdown.Render(page.Location.Display)
		if err != nil {
			s.logger.Error("render failed", "path", r.URL.Path, "err", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		data.Content = content
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if !page.Location.Found {
		w.WriteHeader(http.StatusNotFound)
	}
	if err := pageTemplate.Execute(w, data); err != nil {
		s.logger.Error("template failed", "path", r.URL.Path, "err", err)
	}
}

// handleAPIPage returns the resolved page as JSON.
func (s *Server) handleAPIPage(w http.ResponseWriter, r *http.Request) {
	page := doctree.Navigate(s.store.Load(), doctree.ParsePath(r.PathValue("path")), s.cfg.DefaultFilename)

	view := PageView{
		Path:      page.Requested.String(),
		Found:     page.Location.Found,
		Directory: page.Location.DirectoryPath.String(),
		Entries:   page.Entries,
		Markdown:  page.Location.Display,
	}
	if page.HasUp {
		up := page.Up.URL()
		view.Up = &up
	}

	w.Header().Set("Content-Type", "application/json")
	if !view.Found {
		w.WriteHeader(http.StatusNotFound)
	}
	if err := json.NewEncoder(w).Encode(view); err != nil {
		s.logger.Error("encode page", "err", err)
	}
}

func (s *Server) handleChromaCSS(w http.ResponseWriter, _ *http.Request) {
	css, err := s.markdown.CSS()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	io.WriteString(w, css) //nolint:errcheck // client went away
}

// pageTitle picks the first level one heading of the shown document, then
// the requested path, then the application title.
func pageTitle(page doctree.Page, fallback string) string {
	if !page.Location.Found {
		return "Not found"
	}
	for _, line := range strings.Split(page.Location.Display, "\n") {
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	if len(page.Requested) > 0 {
		return page.Requested.String()
	}
	return fallback
}
