// Package config loads tasker settings from defaults, <root>/config.toml
// and TASKER_* environment variables, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/language"

	"github.com/amirbrooks/tasker/internal/history"
	"github.com/amirbrooks/tasker/internal/logging"
	"github.com/amirbrooks/tasker/internal/store"
)

// Source records where a setting came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceFile    Source = "file"
	SourceEnv     Source = "environment"
	SourceFlag    Source = "flag"
)

const (
	FileName            = "config.toml"
	DefaultRoot         = "~/.tasker"
	DefaultSaveDelayMS  = 500
	DefaultLocale       = "en"
	DefaultLogLevel     = "warn"
	DefaultHistoryLimit = history.DefaultLimit
)

type Config struct {
	HistoryLimit int    `toml:"history_limit"`
	SaveDelayMS  int    `toml:"save_delay_ms"`
	DefaultSort  string `toml:"default_sort"`
	DefaultTheme string `toml:"default_theme"`
	Locale       string `toml:"locale"`
	LogLevel     string `toml:"log_level"`
	// LogFile is where the TUI logs. Empty means <root>/tasker.log.
	LogFile string `toml:"log_file"`

	Root    string            `toml:"-"`
	Sources map[string]Source `toml:"-"`
}

// Keys lists the settable keys in display order.
func Keys() []string {
	return []string{"history_limit", "save_delay_ms", "default_sort", "default_theme", "locale", "log_level", "log_file"}
}

func Default() *Config {
	cfg := &Config{
		HistoryLimit: DefaultHistoryLimit,
		SaveDelayMS:  DefaultSaveDelayMS,
		DefaultSort:  string(store.SortCreated),
		DefaultTheme: string(store.ThemeAuto),
		Locale:       DefaultLocale,
		LogLevel:     DefaultLogLevel,
		Sources:      map[string]Source{},
	}
	for _, k := range Keys() {
		cfg.Sources[k] = SourceDefault
	}
	return cfg
}

// ResolveRoot picks the store root: flag value, then TASKER_ROOT, then
// ~/.tasker.
func ResolveRoot(flagRoot string) string {
	if strings.TrimSpace(flagRoot) != "" {
		return ExpandHome(strings.TrimSpace(flagRoot))
	}
	if env := strings.TrimSpace(os.Getenv("TASKER_ROOT")); env != "" {
		return ExpandHome(env)
	}
	root := ExpandHome(DefaultRoot)
	if strings.HasPrefix(root, "~") {
		return ".tasker"
	}
	return root
}

// ExpandHome expands a leading ~ and environment variables.
func ExpandHome(p string) string {
	if p == "" {
		return p
	}
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			return p
		}
		if p == "~" {
			return home
		}
		return filepath.Join(home, p[2:])
	}
	return p
}

func Path(root string) string {
	return filepath.Join(root, FileName)
}

// Load builds the configuration for root. A missing config file is not an
// error.
func Load(root string) (*Config, error) {
	cfg := Default()
	cfg.Root = root

	path := Path(root)
	if _, err := os.Stat(path); err == nil {
		if err := loadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	var fileCfg Config
	md, err := toml.DecodeFile(path, &fileCfg)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalid, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("%w: unknown keys: %s", store.ErrInvalid, strings.Join(keys, ", "))
	}
	for _, key := range Keys() {
		if !md.IsDefined(key) {
			continue
		}
		if err := cfg.set(key, fileCfg.value(key), SourceFile); err != nil {
			return err
		}
	}
	return nil
}

var envKeys = map[string]string{
	"TASKER_HISTORY_LIMIT": "history_limit",
	"TASKER_SAVE_DELAY_MS": "save_delay_ms",
	"TASKER_DEFAULT_SORT":  "default_sort",
	"TASKER_THEME":         "default_theme",
	"TASKER_LOCALE":        "locale",
	"TASKER_LOG_LEVEL":     "log_level",
	"TASKER_LOG_FILE":      "log_file",
}

func loadFromEnv(cfg *Config) error {
	for env, key := range envKeys {
		v, ok := os.LookupEnv(env)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := cfg.set(key, v, SourceEnv); err != nil {
			return fmt.Errorf("%s: %w", env, err)
		}
	}
	return nil
}

// Set assigns key from its string form, as typed on the command line.
func (c *Config) Set(key, value string) error {
	return c.set(strings.ToLower(strings.TrimSpace(key)), value, SourceFlag)
}

func (c *Config) set(key, value string, src Source) error {
	value = strings.TrimSpace(value)
	switch key {
	case "history_limit":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("%w: history_limit must be a positive integer, got %q", store.ErrInvalid, value)
		}
		c.HistoryLimit = n
	case "save_delay_ms":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: save_delay_ms must be a non-negative integer, got %q", store.ErrInvalid, value)
		}
		c.SaveDelayMS = n
	case "default_sort":
		s, ok := store.ParseSort(value)
		if !ok {
			return fmt.Errorf("%w: unknown sort %q", store.ErrInvalid, value)
		}
		c.DefaultSort = string(s)
	case "default_theme":
		t, ok := store.ParseTheme(value)
		if !ok {
			return fmt.Errorf("%w: unknown theme %q", store.ErrInvalid, value)
		}
		c.DefaultTheme = string(t)
	case "locale":
		if _, err := language.Parse(value); err != nil {
			return fmt.Errorf("%w: unknown locale %q", store.ErrInvalid, value)
		}
		c.Locale = value
	case "log_level":
		if !logging.ValidLevel(value) {
			return fmt.Errorf("%w: unknown log level %q", store.ErrInvalid, value)
		}
		c.LogLevel = strings.ToLower(value)
	case "log_file":
		c.LogFile = value
	default:
		return fmt.Errorf("%w: unknown config key %q (allowed: %s)", store.ErrInvalid, key, strings.Join(Keys(), ", "))
	}
	if c.Sources == nil {
		c.Sources = map[string]Source{}
	}
	c.Sources[key] = src
	return nil
}

// value renders key back to the string form accepted by Set.
func (c *Config) value(key string) string {
	switch key {
	case "history_limit":
		return strconv.Itoa(c.HistoryLimit)
	case "save_delay_ms":
		return strconv.Itoa(c.SaveDelayMS)
	case "default_sort":
		return c.DefaultSort
	case "default_theme":
		return c.DefaultTheme
	case "locale":
		return c.Locale
	case "log_level":
		return c.LogLevel
	case "log_file":
		return c.LogFile
	}
	return ""
}

// Get returns the string form of key.
func (c *Config) Get(key string) (string, bool) {
	for _, k := range Keys() {
		if k == key {
			return c.value(key), true
		}
	}
	return "", false
}

func (c *Config) Validate() error {
	if c.HistoryLimit < 1 {
		return fmt.Errorf("%w: history_limit must be positive", store.ErrInvalid)
	}
	if c.SaveDelayMS < 0 {
		return fmt.Errorf("%w: save_delay_ms must not be negative", store.ErrInvalid)
	}
	return nil
}

func (c *Config) SaveDelay() time.Duration {
	return time.Duration(c.SaveDelayMS) * time.Millisecond
}

// Language returns the collation language, English when unset or invalid.
func (c *Config) Language() language.Tag {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.English
	}
	return tag
}

// LogPath is the file the TUI logs to.
func (c *Config) LogPath() string {
	if strings.TrimSpace(c.LogFile) != "" {
		return ExpandHome(c.LogFile)
	}
	return filepath.Join(c.Root, "tasker.log")
}

// Save writes the file-backed settings of cfg to <root>/config.toml.
func Save(root string, cfg *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return err
	}
	return store.WriteFileAtomic(Path(root), buf.Bytes())
}
