package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"mdviewer/internal/doctree"
	"mdviewer/internal/loader"
)

const (
	// configName is looked up as mdviewer.json, mdviewer.yaml, ... in the
	// working directory when no --config is given.
	configName = "mdviewer"
	envPrefix  = "MDVIEWER"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// getDefaultConfig returns the default configuration
func getDefaultConfig() Config {
	return Config{
		Root:             ".",
		DefaultFilename:  doctree.DefaultFilename,
		Title:            "Documentation Browser",
		Host:             "localhost",
		Port:             8090,
		Include:          append([]string(nil), loader.DefaultInclude...),
		Ignore:           append([]string(nil), loader.DefaultIgnore...),
		StripFrontmatter: true,
		MaxFileSize:      loader.DefaultMaxFileSize,
		Watch:            true,
		Debounce:         300 * time.Millisecond,
		OpenBrowser:      true,
		LogLevel:         "info",
		SSH: SSHConfig{
			Host:        "localhost",
			Port:        2222,
			HostKeyPath: filepath.Join(".ssh", "mdviewer_ed25519"),
		},
	}
}

// setDefaults registers every default with v so that environment variables
// can override keys that no file mentions.
func setDefaults(v *viper.Viper) {
	d := getDefaultConfig()
	v.SetDefault("root", d.Root)
	v.SetDefault("default_filename", d.DefaultFilename)
	v.SetDefault("title", d.Title)
	v.SetDefault("host", d.Host)
	v.SetDefault("port", d.Port)
	v.SetDefault("include", d.Include)
	v.SetDefault("ignore", d.Ignore)
	v.SetDefault("strip_frontmatter", d.StripFrontmatter)
	v.SetDefault("max_file_size", d.MaxFileSize)
	v.SetDefault("watch", d.Watch)
	v.SetDefault("debounce", d.Debounce)
	v.SetDefault("open_browser", d.OpenBrowser)
	v.SetDefault("code_style", d.CodeStyle)
	v.SetDefault("glamour_style", d.GlamourStyle)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("ssh.enabled", d.SSH.Enabled)
	v.SetDefault("ssh.host", d.SSH.Host)
	v.SetDefault("ssh.port", d.SSH.Port)
	v.SetDefault("ssh.host_key_path", d.SSH.HostKeyPath)
}

// LoadConfig loads configuration and applies the optional target path from
// the command line.
func (a *App) LoadConfig(configFile string, targetPath string) error {
	workingDir, err := GetWorkingDirectory()
	if err != nil {
		return err
	}

	cfg, used, err := loadConfig(workingDir, configFile)
	if err != nil {
		return err
	}
	a.Config = cfg
	a.ConfigFile = used

	// Handle target path if provided
	if targetPath != "" {
		target, err := handleTargetPath(&a.Config, targetPath)
		if err != nil {
			return err
		}
		a.TargetPath = target
	}
	return nil
}

// GetWorkingDirectory gets the current working directory
func GetWorkingDirectory() (string, error) {
	workingDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return workingDir, nil
}

// loadConfig reads configFile (or mdviewer.* in workDir), a .env file in
// workDir and MDVIEWER_* variables over the defaults. It returns the
// configuration and the file it was read from, if any.
func loadConfig(workDir, configFile string) (Config, string, error) {
	if err := godotenv.Load(filepath.Join(workDir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, "", fmt.Errorf("failed to read .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, "", fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(workDir)
		if err := v.ReadInConfig(); err != nil {
			// If the default file doesn't exist, use default configuration
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, "", fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if !filepath.IsAbs(cfg.Root) {
		cfg.Root = filepath.Join(workDir, cfg.Root)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, "", err
	}
	return cfg, v.ConfigFileUsed(), nil
}

// Validate reports every problem with c, wrapping ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error
	switch {
	case c.DefaultFilename == "":
		errs = append(errs, errors.New("default_filename must not be empty"))
	case strings.Contains(c.DefaultFilename, "/"):
		errs = append(errs, fmt.Errorf("default_filename %q must not contain '/'", c.DefaultFilename))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.SSH.Enabled && (c.SSH.Port <= 0 || c.SSH.Port > 65535) {
		errs = append(errs, fmt.Errorf("ssh.port %d out of range", c.SSH.Port))
	}
	for _, pat := range append(append([]string{}, c.Include...), c.Ignore...) {
		if !doublestar.ValidatePattern(pat) {
			errs = append(errs, fmt.Errorf("invalid pattern %q", pat))
		}
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// handleTargetPath points the configuration at a path given on the command
// line. A directory becomes the root; a file makes its parent the root and
// is returned as the first page to open.
func handleTargetPath(cfg *Config, targetPath string) (doctree.Path, error) {
	absPath, err := filepath.Abs(targetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", targetPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("path does not exist: %s", targetPath)
	}

	if info.IsDir() {
		cfg.Root = absPath
		return nil, nil
	}

	cfg.Root = filepath.Dir(absPath)
	return doctree.Path{filepath.Base(absPath)}, nil
}
