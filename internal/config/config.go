// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/jeranaias/ragdesk/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete ragdesk configuration.
type Config struct {
	Server  ServerConfig  `toml:"server" json:"server"`
	Chat    ChatConfig    `toml:"chat" json:"chat"`
	Session SessionConfig `toml:"session" json:"session"`
	UI      UIConfig      `toml:"ui" json:"ui"`
	Log     LogConfig     `toml:"log" json:"log"`
	Watch   WatchConfig   `toml:"watch" json:"watch"`
}

// ServerConfig describes how to reach the document chat backend.
type ServerConfig struct {
	URL string `toml:"url" json:"url" env:"RAGDESK_SERVER_URL"`

	// Timeout bounds a single request. Uploads get 4x this.
	Timeout Duration `toml:"timeout" json:"timeout" env:"RAGDESK_TIMEOUT"`

	// RateLimit is requests per second; RateBurst the bucket size.
	RateLimit float64 `toml:"rate_limit" json:"rate_limit" env:"RAGDESK_RATE_LIMIT"`
	RateBurst int     `toml:"rate_burst" json:"rate_burst" env:"RAGDESK_RATE_BURST"`
}

// ChatConfig controls question and history requests.
type ChatConfig struct {
	TopK         int `toml:"top_k" json:"top_k" env:"RAGDESK_TOP_K"`
	HistoryLimit int `toml:"history_limit" json:"history_limit" env:"RAGDESK_HISTORY_LIMIT"`
}

// SessionConfig controls where and how the credential is persisted.
type SessionConfig struct {
	// Backend is one of "file", "sqlite", "memory".
	Backend string `toml:"backend" json:"backend" env:"RAGDESK_SESSION_BACKEND"`

	// Path overrides the backend's default location.
	Path string `toml:"path" json:"path" env:"RAGDESK_SESSION_PATH"`

	// Encrypt seals the stored credential with AES-256-GCM.
	Encrypt bool `toml:"encrypt" json:"encrypt" env:"RAGDESK_SESSION_ENCRYPT"`

	// Passphrase derives the sealing key. Only read from the environment;
	// without it a random key file is generated next to the session.
	Passphrase string `toml:"-" json:"-" env:"RAGDESK_SESSION_PASSPHRASE"`

	// DiscardExpired drops a restored JWT credential whose exp has passed.
	DiscardExpired bool `toml:"discard_expired" json:"discard_expired" env:"RAGDESK_SESSION_DISCARD_EXPIRED"`

	// AutoLoginAfterRegister logs in with the new account after registering.
	AutoLoginAfterRegister bool `toml:"auto_login_after_register" json:"auto_login_after_register" env:"RAGDESK_AUTO_LOGIN"`
}

// UIConfig controls rendering.
type UIConfig struct {
	Theme       string `toml:"theme" json:"theme" env:"RAGDESK_THEME"`
	WordWrap    int    `toml:"word_wrap" json:"word_wrap" env:"RAGDESK_WORD_WRAP"`
	ShowSources bool   `toml:"show_sources" json:"show_sources" env:"RAGDESK_SHOW_SOURCES"`
}

// LogConfig controls the rotating log file.
type LogConfig struct {
	Level     string `toml:"level" json:"level" env:"RAGDESK_LOG_LEVEL"`
	File      string `toml:"file" json:"file" env:"RAGDESK_LOG_FILE"`
	MaxSizeMB int    `toml:"max_size_mb" json:"max_size_mb" env:"RAGDESK_LOG_MAX_SIZE_MB"`
}

// WatchConfig controls the watch-folder auto upload.
type WatchConfig struct {
	Debounce  Duration `toml:"debounce" json:"debounce" env:"RAGDESK_WATCH_DEBOUNCE"`
	DedupeTTL Duration `toml:"dedupe_ttl" json:"dedupe_ttl" env:"RAGDESK_WATCH_DEDUPE_TTL"`
}

// =============================================================================
// DURATION
// =============================================================================

// Duration is a time.Duration that reads and writes "30s" style strings in
// TOML, JSON, and environment variables.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// =============================================================================
// DEFAULTS
// =============================================================================

const (
	// DefaultServerURL matches the backend's default bind address.
	DefaultServerURL = "http://localhost:8000"

	// DefaultTopK is the number of chunks retrieved per question.
	DefaultTopK = 5

	// DefaultHistoryLimit is the number of past exchanges loaded.
	DefaultHistoryLimit = 50
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:       DefaultServerURL,
			Timeout:   Duration{60 * time.Second},
			RateLimit: 5,
			RateBurst: 10,
		},
		Chat: ChatConfig{
			TopK:         DefaultTopK,
			HistoryLimit: DefaultHistoryLimit,
		},
		Session: SessionConfig{
			Backend:        "file",
			DiscardExpired: true,
		},
		UI: UIConfig{
			Theme:       "auto",
			WordWrap:    80,
			ShowSources: true,
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
		Watch: WatchConfig{
			Debounce:  Duration{750 * time.Millisecond},
			DedupeTTL: Duration{10 * time.Minute},
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the ragdesk configuration directory. RAGDESK_HOME
// overrides the default ~/.ragdesk.
func ConfigDir() (string, error) {
	if dir := os.Getenv("RAGDESK_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".ragdesk"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// SessionPath resolves the session storage location for the configured
// backend.
func (c *Config) SessionPath() (string, error) {
	if c.Session.Path != "" {
		return c.Session.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if strings.EqualFold(c.Session.Backend, "sqlite") {
		return filepath.Join(dir, "session.db"), nil
	}
	return filepath.Join(dir, "session.json"), nil
}

// LogPath resolves the log file location.
func (c *Config) LogPath() (string, error) {
	if c.Log.File != "" {
		return c.Log.File, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs", "ragdesk.log"), nil
}

// ensureSecurePermissions tightens config files to 0600.
// SECURITY: the session may be configured with an encryption passphrase.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration in this order, later sources winning:
// built-in defaults, config.toml (or config.json), a .env file in the
// working directory, and the process environment.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	tomlPath, err := ConfigPathTOML()
	if err != nil {
		return nil, err
	}
	jsonPath, err := ConfigPathJSON()
	if err != nil {
		return nil, err
	}

	switch {
	case fileExists(tomlPath):
		if err := LoadTOML(cfg, tomlPath); err != nil {
			loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			cfg = Default()
		}
	case fileExists(jsonPath):
		if err := LoadJSON(cfg, jsonPath); err != nil {
			loadErr = fmt.Errorf("failed to load JSON config: %w", err)
			cfg = Default()
		}
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, loadErr
}

// LoadFromPath loads a specific config file, then applies env overrides.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	var err error
	if strings.HasSuffix(path, ".json") {
		err = LoadJSON(cfg, path)
	} else {
		err = LoadTOML(cfg, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// ApplyEnvOverrides loads ./.env (if present) without clobbering variables
// already set, then overlays every RAGDESK_* variable onto c.
func (c *Config) ApplyEnvOverrides() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not read .env: %v\n", err)
	}
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("invalid environment override: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to the default TOML path.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf strings.Builder
	buf.WriteString("# ragdesk configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode TOML: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, []byte(buf.String()), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if u, err := url.Parse(c.Server.URL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, ValidationError{
			Field:   "server.url",
			Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host[:port]", c.Server.URL),
		})
	}
	if c.Server.Timeout.Duration <= 0 {
		errs = append(errs, ValidationError{Field: "server.timeout", Message: "must be positive"})
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, ValidationError{Field: "server.rate_limit", Message: "must not be negative"})
	}
	if c.Chat.TopK < 1 || c.Chat.TopK > 50 {
		errs = append(errs, ValidationError{
			Field:   "chat.top_k",
			Message: fmt.Sprintf("must be between 1 and 50, got %d", c.Chat.TopK),
		})
	}
	if c.Chat.HistoryLimit < 1 || c.Chat.HistoryLimit > 1000 {
		errs = append(errs, ValidationError{
			Field:   "chat.history_limit",
			Message: fmt.Sprintf("must be between 1 and 1000, got %d", c.Chat.HistoryLimit),
		})
	}

	validBackends := map[string]bool{"file": true, "sqlite": true, "memory": true}
	if !validBackends[strings.ToLower(c.Session.Backend)] {
		errs = append(errs, ValidationError{
			Field:   "session.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: file, sqlite, memory", c.Session.Backend),
		})
	}

	validThemes := map[string]bool{"auto": true, "dark": true, "light": true, "notty": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: auto, dark, light, notty", c.UI.Theme),
		})
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills zero values left by a partial config file.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Server.URL == "" {
		c.Server.URL = d.Server.URL
	}
	c.Server.URL = strings.TrimRight(c.Server.URL, "/")
	if c.Server.Timeout.Duration == 0 {
		c.Server.Timeout = d.Server.Timeout
	}
	if c.Server.RateBurst <= 0 {
		c.Server.RateBurst = d.Server.RateBurst
	}
	if c.Chat.TopK == 0 {
		c.Chat.TopK = d.Chat.TopK
	}
	if c.Chat.HistoryLimit == 0 {
		c.Chat.HistoryLimit = d.Chat.HistoryLimit
	}
	if c.Session.Backend == "" {
		c.Session.Backend = d.Session.Backend
	}
	c.Session.Backend = strings.ToLower(c.Session.Backend)
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.UI.WordWrap <= 0 {
		c.UI.WordWrap = d.UI.WordWrap
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = d.Log.MaxSizeMB
	}
	if c.Watch.Debounce.Duration <= 0 {
		c.Watch.Debounce = d.Watch.Debounce
	}
	if c.Watch.DedupeTTL.Duration <= 0 {
		c.Watch.DedupeTTL = d.Watch.DedupeTTL
	}
}

// String returns the config as indented JSON.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance, loading it on first
// access. A broken config file falls back to defaults with a warning.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalConfigMu.Lock()
		globalConfig = cfg
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
