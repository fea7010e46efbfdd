package termview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/logging"

	"mdviewer/internal/doctree"
	"mdviewer/internal/render"
)

const shutdownTimeout = 5 * time.Second

type (
	// Config holds settings for the SSH surface.
	Config struct {
		Host        string
		Port        int
		HostKeyPath string
		Title       string
		// DefaultFilename is shown for directory requests.
		DefaultFilename string
		// GlamourStyle overrides the style picked from the session's pty.
		GlamourStyle string
	}

	// Server lets `ssh -p PORT host docs/a.md` print a page.
	Server struct {
		cfg    Config
		store  *doctree.Store
		logger *log.Logger
	}
)

// NewServer returns an SSH surface reading from store.
func NewServer(cfg Config, store *doctree.Store, logger *log.Logger) *Server {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.DefaultFilename == "" {
		cfg.DefaultFilename = doctree.DefaultFilename
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Server{cfg: cfg, store: store, logger: logger}
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

func (s *Server) newSSHServer() (*ssh.Server, error) {
	srv, err := wish.NewServer(
		wish.WithAddress(s.Addr()),
		wish.WithHostKeyPath(s.cfg.HostKeyPath),
		wish.WithMiddleware(
			s.pageMiddleware(),
			logging.MiddlewareWithLogger(s.logger),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH server: %w", err)
	}
	return srv, nil
}

// Run serves sessions until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv, err := s.newSSHServer()
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("SSH server started", "address", s.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, ssh.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
			return nil
		}
		return fmt.Errorf("ssh server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			return fmt.Errorf("ssh server shutdown: %w", err)
		}
		s.logger.Info("SSH server stopped")
		return nil
	}
}

// pageMiddleware treats the session command as the path to show.
func (s *Server) pageMiddleware() wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			path := doctree.ParsePath(strings.Join(sess.Command(), "/"))
			page := doctree.Navigate(s.store.Load(), path, s.cfg.DefaultFilename)

			md := render.Terminal{Style: s.cfg.GlamourStyle}
			pty, _, isPty := sess.Pty()
			if isPty {
				md.Width = pty.Window.Width
				if md.Style == "" {
					md.Style = "dark"
				}
			} else if md.Style == "" {
				md.Style = "notty"
			}

			styles := NewStyles(lipgloss.NewRenderer(sess))
			if err := WritePage(sess, page, s.cfg.Title, styles, md); err != nil {
				s.logger.Error("render page", "path", path.String(), "err", err)
				fmt.Fprintln(sess.Stderr(), err)
				_ = sess.Exit(1) //nolint:errcheck // session is closing anyway
				return
			}
			if !page.Location.Found {
				_ = sess.Exit(1) //nolint:errcheck // session is closing anyway
				return
			}
			next(sess)
		}
	}
}
