package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/continuity-tools/artifact-index/internal/errors"
)

// Backend selection values for database.backend and --backend.
const (
	BackendAuto     = "auto"
	BackendEmbedded = "embedded"
	BackendServer   = "server"
)

// Environment variables read on top of the config files.
const (
	// EnvDatabaseURL is the canonical server connection URL.
	EnvDatabaseURL = "CONTINUOUS_CLAUDE_DB_URL"
	// EnvDatabaseURLLegacy is honored when EnvDatabaseURL is unset.
	EnvDatabaseURLLegacy = "DATABASE_URL"
)

// ProjectConfigNames are the per-project config files, in lookup order.
var ProjectConfigNames = []string{".artifact-index.yaml", ".artifact-index.yml"}

// Config is the complete artifact-index configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Paths    PathsConfig    `yaml:"paths" json:"paths"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	Index    IndexConfig    `yaml:"index" json:"index"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`

	// Root is the project directory relative paths resolve against.
	Root string `yaml:"-" json:"-"`
}

// PathsConfig locates each artifact kind under the project root.
type PathsConfig struct {
	Handoffs   SourceConfig `yaml:"handoffs" json:"handoffs"`
	Plans      SourceConfig `yaml:"plans" json:"plans"`
	Continuity SourceConfig `yaml:"continuity" json:"continuity"`
	// ExcludeDirs are glob patterns matched against directory base names.
	ExcludeDirs []string `yaml:"exclude_dirs" json:"exclude_dirs"`
}

// SourceConfig is a directory plus the glob patterns (relative, "/"
// separated) selecting files in it. A pattern containing "/" or "**"
// makes discovery recursive.
type SourceConfig struct {
	Dir      string   `yaml:"dir" json:"dir"`
	Patterns []string `yaml:"patterns" json:"patterns"`
}

// DatabaseConfig configures the destination backend.
type DatabaseConfig struct {
	// Path of the embedded database file.
	Path string `yaml:"path" json:"path"`
	// URL of the server backend. Usually supplied through the environment.
	URL string `yaml:"url" json:"-"`
	// Driver is the embedded driver: "sqlite" (pure Go) or "sqlite3" (CGO).
	Driver string `yaml:"driver" json:"driver"`
	// Backend is auto, embedded or server.
	Backend string `yaml:"backend" json:"backend"`
	// LegacyHandoffsSchema targets a server handoffs table keyed by UUID.
	LegacyHandoffsSchema bool `yaml:"legacy_handoffs_schema" json:"legacy_handoffs_schema"`
	// BusyTimeout is a duration string such as "5s".
	BusyTimeout string `yaml:"busy_timeout" json:"busy_timeout"`
	// MaxConns caps the server connection pool. Zero means index.workers.
	MaxConns int `yaml:"max_conns" json:"max_conns"`
}

// IndexConfig tunes indexing runs.
type IndexConfig struct {
	// Workers above 1 parallelize parsing and upserts on the server backend.
	Workers int `yaml:"workers" json:"workers"`
	// WatchDebounce is how long the watcher waits for writes to settle.
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
}

// LoggingConfig configures the file logger.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Handoffs: SourceConfig{
				Dir:      filepath.Join("thoughts", "shared", "handoffs"),
				Patterns: []string{"**.md", "**.yaml", "**.yml"},
			},
			Plans: SourceConfig{
				Dir:      filepath.Join("thoughts", "shared", "plans"),
				Patterns: []string{"*.md"},
			},
			Continuity: SourceConfig{
				Dir:      ".",
				Patterns: []string{"CONTINUITY_CLAUDE-*.md"},
			},
			ExcludeDirs: []string{".git", "node_modules", ".venv", "__pycache__"},
		},
		Database: DatabaseConfig{
			Path:        filepath.Join(".claude", "cache", "artifact-index", "context.db"),
			Driver:      "sqlite",
			Backend:     BackendAuto,
			BusyTimeout: "5s",
		},
		Index: IndexConfig{
			Workers:       1,
			WatchDebounce: "500ms",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file:
// $XDG_CONFIG_HOME/artifact-index/config.yaml, else
// ~/.config/artifact-index/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "artifact-index", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "artifact-index", "config.yaml")
	}
	return filepath.Join(home, ".config", "artifact-index", "config.yaml")
}

// GlobalEnvPath is the dotenv file shared by the workflow tooling.
func GlobalEnvPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".claude", ".env")
}

// loadUserConfig returns nil, nil when there is no user config.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load builds the configuration for the project at dir. Precedence, lowest
// first:
//  1. Defaults
//  2. User config (~/.config/artifact-index/config.yaml)
//  3. Project config (.artifact-index.yaml in dir)
//  4. Process environment, then ~/.claude/.env for unset keys, then the
//     project .env, which overrides both
func Load(dir string) (*Config, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.New(errors.ErrCodeConfigRead, "failed to resolve project directory", err)
	}

	cfg := NewConfig()
	cfg.Root = root

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, err
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(root); err != nil {
		return nil, err
	}

	env, err := loadEnv(GlobalEnvPath(), filepath.Join(root, ".env"))
	if err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides(env)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	for _, name := range ProjectConfigNames {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.New(errors.ErrCodeConfigRead, "failed to read config file", err).
			WithDetail("path", path)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return errors.New(errors.ErrCodeConfigInvalid, "failed to parse config file", err).
			WithDetail("path", path)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith copies the non-zero values of other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	mergeSource(&c.Paths.Handoffs, other.Paths.Handoffs)
	mergeSource(&c.Paths.Plans, other.Paths.Plans)
	mergeSource(&c.Paths.Continuity, other.Paths.Continuity)
	c.Paths.ExcludeDirs = appendUnique(c.Paths.ExcludeDirs, other.Paths.ExcludeDirs...)

	if other.Database.Path != "" {
		c.Database.Path = other.Database.Path
	}
	if other.Database.URL != "" {
		c.Database.URL = other.Database.URL
	}
	if other.Database.Driver != "" {
		c.Database.Driver = other.Database.Driver
	}
	if other.Database.Backend != "" {
		c.Database.Backend = other.Database.Backend
	}
	// A file can turn the legacy schema on but not off.
	if other.Database.LegacyHandoffsSchema {
		c.Database.LegacyHandoffsSchema = true
	}
	if other.Database.BusyTimeout != "" {
		c.Database.BusyTimeout = other.Database.BusyTimeout
	}
	if other.Database.MaxConns != 0 {
		c.Database.MaxConns = other.Database.MaxConns
	}

	if other.Index.Workers != 0 {
		c.Index.Workers = other.Index.Workers
	}
	if other.Index.WatchDebounce != "" {
		c.Index.WatchDebounce = other.Index.WatchDebounce
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.File != "" {
		c.Logging.File = other.Logging.File
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
}

func mergeSource(dst *SourceConfig, src SourceConfig) {
	if src.Dir != "" {
		dst.Dir = src.Dir
	}
	if len(src.Patterns) > 0 {
		dst.Patterns = src.Patterns
	}
}

// appendUnique appends the values of add not already in list, keeping order.
func appendUnique(list []string, add ...string) []string {
	for _, v := range add {
		if !slices.Contains(list, v) {
			list = append(list, v)
		}
	}
	return list
}

// loadEnv returns the process environment with dotenv files layered on:
// keys from global fill gaps only, keys from project override. Missing
// files are skipped.
func loadEnv(global, project string) (map[string]string, error) {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}

	if global != "" && fileExists(global) {
		vars, err := godotenv.Read(global)
		if err != nil {
			return nil, errors.New(errors.ErrCodeConfigRead, "failed to read env file", err).
				WithDetail("path", global)
		}
		for k, v := range vars {
			if _, set := env[k]; !set {
				env[k] = v
			}
		}
	}

	if project != "" && fileExists(project) {
		vars, err := godotenv.Read(project)
		if err != nil {
			return nil, errors.New(errors.ErrCodeConfigRead, "failed to read env file", err).
				WithDetail("path", project)
		}
		for k, v := range vars {
			env[k] = v
		}
	}
	return env, nil
}

// applyEnvOverrides applies ARTIFACT_INDEX_* and the database URL variables.
func (c *Config) applyEnvOverrides(env map[string]string) {
	if v := env[EnvDatabaseURL]; v != "" {
		c.Database.URL = v
	} else if v := env[EnvDatabaseURLLegacy]; v != "" {
		c.Database.URL = v
	}

	if v := env["ARTIFACT_INDEX_DB_PATH"]; v != "" {
		c.Database.Path = v
	}
	if v := env["ARTIFACT_INDEX_BACKEND"]; v != "" {
		c.Database.Backend = strings.ToLower(v)
	}
	if v := env["ARTIFACT_INDEX_DRIVER"]; v != "" {
		c.Database.Driver = v
	}
	if v := env["ARTIFACT_INDEX_LEGACY_HANDOFFS"]; v != "" {
		c.Database.LegacyHandoffsSchema = strings.ToLower(v) == "true" || v == "1"
	}
	if v := env["ARTIFACT_INDEX_WORKERS"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Index.Workers = n
		}
	}
	if v := env["ARTIFACT_INDEX_LOG_LEVEL"]; v != "" {
		c.Logging.Level = v
	}
}

// Validate reports the first invalid setting as an ErrCodeConfigInvalid error.
func (c *Config) Validate() error {
	invalid := func(field, format string, args ...any) error {
		return errors.New(errors.ErrCodeConfigInvalid, fmt.Sprintf(format, args...), nil).
			WithDetail("field", field)
	}

	switch c.Database.Backend {
	case BackendAuto, BackendEmbedded, BackendServer:
	default:
		return invalid("database.backend", "database.backend must be 'auto', 'embedded' or 'server', got %q", c.Database.Backend)
	}
	switch c.Database.Driver {
	case "sqlite", "sqlite3":
	default:
		return invalid("database.driver", "database.driver must be 'sqlite' or 'sqlite3', got %q", c.Database.Driver)
	}
	if c.Database.Path == "" {
		return invalid("database.path", "database.path must not be empty")
	}
	if _, err := c.BusyTimeout(); err != nil {
		return invalid("database.busy_timeout", "database.busy_timeout is not a duration: %q", c.Database.BusyTimeout)
	}
	if c.Database.MaxConns < 0 {
		return invalid("database.max_conns", "database.max_conns must be non-negative, got %d", c.Database.MaxConns)
	}

	if c.Index.Workers < 1 {
		return invalid("index.workers", "index.workers must be at least 1, got %d", c.Index.Workers)
	}
	if _, err := c.WatchDebounce(); err != nil {
		return invalid("index.watch_debounce", "index.watch_debounce is not a duration: %q", c.Index.WatchDebounce)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return invalid("logging.level", "logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	sources := map[string]SourceConfig{
		"paths.handoffs":   c.Paths.Handoffs,
		"paths.plans":      c.Paths.Plans,
		"paths.continuity": c.Paths.Continuity,
	}
	for field, src := range sources {
		if src.Dir == "" {
			return invalid(field+".dir", "%s.dir must not be empty", field)
		}
		if len(src.Patterns) == 0 {
			return invalid(field+".patterns", "%s.patterns must not be empty", field)
		}
		for _, p := range src.Patterns {
			if _, err := glob.Compile(p, '/'); err != nil {
				return invalid(field+".patterns", "invalid pattern %q: %v", p, err)
			}
		}
	}
	for _, p := range c.Paths.ExcludeDirs {
		if _, err := glob.Compile(p); err != nil {
			return invalid("paths.exclude_dirs", "invalid pattern %q: %v", p, err)
		}
	}
	return nil
}

// BusyTimeout parses database.busy_timeout.
func (c *Config) BusyTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Database.BusyTimeout)
}

// WatchDebounce parses index.watch_debounce.
func (c *Config) WatchDebounce() (time.Duration, error) {
	return time.ParseDuration(c.Index.WatchDebounce)
}

// Resolve makes p absolute against the project root.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if strings.HasPrefix(p, "~"+string(filepath.Separator)) {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return filepath.Join(c.Root, p)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// FindProjectRoot walks up from startDir to the first directory holding
// .git or a project config file. Without one it returns startDir.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}
		for _, name := range ProjectConfigNames {
			if fileExists(filepath.Join(currentDir, name)) {
				return currentDir, nil
			}
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
