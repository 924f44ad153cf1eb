package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Project-level file and directory names.
const (
	ProjectConfigName    = ".pagesearch.yaml"
	ProjectConfigAltName = ".pagesearch.yml"
	DefaultDataDir       = ".pagesearch"
)

// Config represents the complete pagesearch configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Content ContentConfig `yaml:"content" json:"content"`
	Index   IndexConfig   `yaml:"index" json:"index"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Blocks  BlocksConfig  `yaml:"blocks" json:"blocks"`
	Server  ServerConfig  `yaml:"server" json:"server"`
	Watch   WatchConfig   `yaml:"watch" json:"watch"`
}

// ContentConfig locates the site content tree.
type ContentConfig struct {
	// Path is a YAML file or a directory of YAML files, relative to the
	// project root unless absolute.
	Path string `yaml:"path" json:"path"`

	// CacheSize bounds the page and theme LRU caches (entries per cache).
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// IndexConfig configures the search index and the indexer.
type IndexConfig struct {
	// Backend selects the full-text engine: "sqlite" (FTS5, default) or "bleve".
	Backend string `yaml:"backend" json:"backend"`

	// DataDir holds the index and metadata databases.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// GroupID is the permission group used as the visibility litmus test.
	// Default: 1 (Guest).
	GroupID int64 `yaml:"group_id" json:"group_id"`

	// SearchableAreas are the block areas whose content is indexed, in order.
	SearchableAreas []string `yaml:"searchable_areas" json:"searchable_areas"`

	// Workers bounds concurrent page evaluation. Inserts stay sequential.
	Workers int `yaml:"workers" json:"workers"`

	// AtomicRebuild swaps the whole index on commit instead of truncating
	// up front, so queries never see a partial index.
	AtomicRebuild bool `yaml:"atomic_rebuild" json:"atomic_rebuild"`
}

// SearchConfig configures the query layer.
type SearchConfig struct {
	PageSize      int `yaml:"page_size" json:"page_size"`
	SnippetLength int `yaml:"snippet_length" json:"snippet_length"`
}

// BlocksConfig holds site-level block type overrides.
type BlocksConfig struct {
	// SearchableFields makes a block type searchable by reading the named
	// field, e.g. {"image": "alt"}.
	SearchableFields map[string]string `yaml:"searchable_fields" json:"searchable_fields"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport   string `yaml:"transport" json:"transport"`
	LogLevel    string `yaml:"log_level" json:"log_level"`
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
}

// WatchConfig configures content watching.
type WatchConfig struct {
	Debounce string `yaml:"debounce" json:"debounce"`
}

// DefaultSearchableAreas are the block areas indexed on every page.
var DefaultSearchableAreas = []string{"Main Content", "Main"}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Content: ContentConfig{
			Path:      "content",
			CacheSize: 512,
		},
		Index: IndexConfig{
			Backend:         "sqlite",
			DataDir:         DefaultDataDir,
			GroupID:         1,
			SearchableAreas: append([]string(nil), DefaultSearchableAreas...),
			Workers:         1,
		},
		Search: SearchConfig{
			PageSize:      10,
			SnippetLength: 200,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
		Watch: WatchConfig{
			Debounce: "500ms",
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/pagesearch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/pagesearch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "pagesearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "pagesearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "pagesearch", "config.yaml")
}

// loadUserConfig loads the user configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	var parsed Config
	if err := parseYAML(configPath, &parsed); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return &parsed, nil
}

// Load loads configuration for the project rooted at dir.
// Precedence, lowest first:
//  1. Hardcoded defaults
//  2. User config (~/.config/pagesearch/config.yaml)
//  3. Project config (.pagesearch.yaml in dir)
//  4. Environment variables (PAGESEARCH_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, err
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ProjectConfigPath returns the existing project config file in dir, or the
// default name when neither variant exists.
func ProjectConfigPath(dir string) string {
	yamlPath := filepath.Join(dir, ProjectConfigName)
	if fileExists(yamlPath) {
		return yamlPath
	}
	ymlPath := filepath.Join(dir, ProjectConfigAltName)
	if fileExists(ymlPath) {
		return ymlPath
	}
	return yamlPath
}

func (c *Config) loadFromFile(dir string) error {
	path := ProjectConfigPath(dir)
	if !fileExists(path) {
		return nil
	}
	var parsed Config
	if err := parseYAML(path, &parsed); err != nil {
		return err
	}
	c.mergeWith(&parsed)
	return nil
}

func parseYAML(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// mergeWith copies the non-zero values of other over c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Content.Path != "" {
		c.Content.Path = other.Content.Path
	}
	if other.Content.CacheSize != 0 {
		c.Content.CacheSize = other.Content.CacheSize
	}

	if other.Index.Backend != "" {
		c.Index.Backend = other.Index.Backend
	}
	if other.Index.DataDir != "" {
		c.Index.DataDir = other.Index.DataDir
	}
	if other.Index.GroupID != 0 {
		c.Index.GroupID = other.Index.GroupID
	}
	if len(other.Index.SearchableAreas) > 0 {
		c.Index.SearchableAreas = other.Index.SearchableAreas
	}
	if other.Index.Workers != 0 {
		c.Index.Workers = other.Index.Workers
	}
	if other.Index.AtomicRebuild {
		c.Index.AtomicRebuild = true
	}

	if other.Search.PageSize != 0 {
		c.Search.PageSize = other.Search.PageSize
	}
	if other.Search.SnippetLength != 0 {
		c.Search.SnippetLength = other.Search.SnippetLength
	}

	if len(other.Blocks.SearchableFields) > 0 {
		if c.Blocks.SearchableFields == nil {
			c.Blocks.SearchableFields = make(map[string]string)
		}
		for k, v := range other.Blocks.SearchableFields {
			c.Blocks.SearchableFields[k] = v
		}
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
	if other.Server.MetricsAddr != "" {
		c.Server.MetricsAddr = other.Server.MetricsAddr
	}

	if other.Watch.Debounce != "" {
		c.Watch.Debounce = other.Watch.Debounce
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PAGESEARCH_CONTENT_PATH"); v != "" {
		c.Content.Path = v
	}
	if v := os.Getenv("PAGESEARCH_BACKEND"); v != "" {
		c.Index.Backend = v
	}
	if v := os.Getenv("PAGESEARCH_DATA_DIR"); v != "" {
		c.Index.DataDir = v
	}
	if v := os.Getenv("PAGESEARCH_GROUP_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
			c.Index.GroupID = id
		}
	}
	if v := os.Getenv("PAGESEARCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Index.Workers = n
		}
	}
	if v := os.Getenv("PAGESEARCH_ATOMIC_REBUILD"); v != "" {
		c.Index.AtomicRebuild = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("PAGESEARCH_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.PageSize = n
		}
	}
	if v := os.Getenv("PAGESEARCH_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("PAGESEARCH_METRICS_ADDR"); v != "" {
		c.Server.MetricsAddr = v
	}
}

// Validate checks the configuration for values the components cannot use.
func (c *Config) Validate() error {
	if c.Content.Path == "" {
		return fmt.Errorf("content.path must be set")
	}
	if c.Content.CacheSize < 0 {
		return fmt.Errorf("content.cache_size must be non-negative, got %d", c.Content.CacheSize)
	}

	validBackends := map[string]bool{"sqlite": true, "bleve": true}
	if !validBackends[strings.ToLower(c.Index.Backend)] {
		return fmt.Errorf("index.backend must be 'sqlite' or 'bleve', got %s", c.Index.Backend)
	}
	if c.Index.GroupID <= 0 {
		return fmt.Errorf("index.group_id must be positive, got %d", c.Index.GroupID)
	}
	if c.Index.Workers < 1 {
		return fmt.Errorf("index.workers must be at least 1, got %d", c.Index.Workers)
	}
	for _, area := range c.Index.SearchableAreas {
		if strings.TrimSpace(area) == "" {
			return fmt.Errorf("index.searchable_areas must not contain empty names")
		}
	}

	if c.Search.PageSize <= 0 {
		return fmt.Errorf("search.page_size must be positive, got %d", c.Search.PageSize)
	}
	if c.Search.SnippetLength < 0 {
		return fmt.Errorf("search.snippet_length must be non-negative, got %d", c.Search.SnippetLength)
	}

	if strings.ToLower(c.Server.Transport) != "stdio" {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	if _, err := c.DebounceDuration(); err != nil {
		return err
	}

	return nil
}

// DebounceDuration parses watch.debounce.
func (c *Config) DebounceDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 0, fmt.Errorf("watch.debounce must be a duration, got %q: %w", c.Watch.Debounce, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("watch.debounce must be non-negative, got %s", d)
	}
	return d, nil
}

// ContentPath resolves content.path against the project root.
func (c *Config) ContentPath(root string) string {
	return resolve(root, c.Content.Path)
}

// DataPath resolves index.data_dir against the project root.
func (c *Config) DataPath(root string) string {
	return resolve(root, c.Index.DataDir)
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// FindProjectRoot walks up from startDir looking for a project config or
// data directory. Falls back to startDir.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if fileExists(filepath.Join(currentDir, ProjectConfigName)) ||
			fileExists(filepath.Join(currentDir, ProjectConfigAltName)) ||
			dirExists(filepath.Join(currentDir, DefaultDataDir)) {
			return currentDir, nil
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
