package main

import (
	"time"

	"github.com/charmbracelet/log"

	"mdviewer/internal/doctree"
	"mdviewer/internal/render"
	"mdviewer/internal/server"
)

// SSHConfig configures the optional SSH surface
type SSHConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	Host        string `mapstructure:"host" json:"host"`
	Port        int    `mapstructure:"port" json:"port"`
	HostKeyPath string `mapstructure:"host_key_path" json:"host_key_path"`
}

// Config represents the application configuration
type Config struct {
	Root             string        `mapstructure:"root" json:"root"`
	DefaultFilename  string        `mapstructure:"default_filename" json:"default_filename"`
	Title            string        `mapstructure:"title" json:"title"`
	Host             string        `mapstructure:"host" json:"host"`
	Port             int           `mapstructure:"port" json:"port"`
	Include          []string      `mapstructure:"include" json:"include"`
	Ignore           []string      `mapstructure:"ignore" json:"ignore"`
	StripFrontmatter bool          `mapstructure:"strip_frontmatter" json:"strip_frontmatter"`
	MaxFileSize      int64         `mapstructure:"max_file_size" json:"max_file_size"`
	Watch            bool          `mapstructure:"watch" json:"watch"`
	Debounce         time.Duration `mapstructure:"debounce" json:"debounce"`
	OpenBrowser      bool          `mapstructure:"open_browser" json:"open_browser"`
	CodeStyle        string        `mapstructure:"code_style" json:"code_style"`
	GlamourStyle     string        `mapstructure:"glamour_style" json:"glamour_style"`
	LogLevel         string        `mapstructure:"log_level" json:"log_level"`
	SSH              SSHConfig     `mapstructure:"ssh" json:"ssh"`
}

// App represents the main application
type App struct {
	Config Config
	// ConfigFile is the file the configuration was read from, empty when
	// only defaults and environment were used.
	ConfigFile string
	// TargetPath is the tree path of a file given on the command line, opened
	// first in the browser.
	TargetPath doctree.Path

	Store    *doctree.Store
	Markdown *render.HTML
	HTTP     *server.Server
	Logger   *log.Logger
}
