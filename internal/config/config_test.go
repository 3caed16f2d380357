// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points RAGDESK_HOME at a fresh temp dir and runs from another
// temp dir so a developer's .env or config never leaks into the test.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("RAGDESK_HOME", home)
	t.Chdir(t.TempDir())
	return home
}

func TestConfig_Default(t *testing.T) {
	cfg := Default()

	if cfg.Server.URL != DefaultServerURL {
		t.Errorf("Server.URL = %q, want %q", cfg.Server.URL, DefaultServerURL)
	}
	if cfg.Chat.TopK != 5 {
		t.Errorf("Chat.TopK = %d, want 5", cfg.Chat.TopK)
	}
	if cfg.Chat.HistoryLimit != 50 {
		t.Errorf("Chat.HistoryLimit = %d, want 50", cfg.Chat.HistoryLimit)
	}
	if cfg.Session.Backend != "file" {
		t.Errorf("Session.Backend = %q, want file", cfg.Session.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should validate: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad url scheme", func(c *Config) { c.Server.URL = "ftp://x" }, "server.url"},
		{"no host", func(c *Config) { c.Server.URL = "http://" }, "server.url"},
		{"zero top_k", func(c *Config) { c.Chat.TopK = 0 }, "chat.top_k"},
		{"huge history", func(c *Config) { c.Chat.HistoryLimit = 5000 }, "chat.history_limit"},
		{"unknown backend", func(c *Config) { c.Session.Backend = "redis" }, "session.backend"},
		{"unknown theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
		{"unknown level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs))
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}
}

func TestLoad_TOMLFile(t *testing.T) {
	home := isolate(t)

	content := `
[server]
url = "https://docs.example.com/"
timeout = "90s"

[chat]
top_k = 8
`
	path := filepath.Join(home, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://docs.example.com", cfg.Server.URL, "trailing slash trimmed")
	assert.Equal(t, 90*time.Second, cfg.Server.Timeout.Duration)
	assert.Equal(t, 8, cfg.Chat.TopK)
	assert.Equal(t, DefaultHistoryLimit, cfg.Chat.HistoryLimit, "unset keys keep defaults")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), "permissions tightened on load")
}

func TestLoad_JSONFallback(t *testing.T) {
	home := isolate(t)

	path := filepath.Join(home, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"chat":{"history_limit":20}}`), 0600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Chat.HistoryLimit)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	home := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, "config.toml"), []byte("[chat]\ntop_k = 8\n"), 0600))

	t.Setenv("RAGDESK_TOP_K", "3")
	t.Setenv("RAGDESK_SERVER_URL", "http://10.0.0.5:9000")
	t.Setenv("RAGDESK_SESSION_BACKEND", "sqlite")
	t.Setenv("RAGDESK_WATCH_DEBOUNCE", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Chat.TopK)
	assert.Equal(t, "http://10.0.0.5:9000", cfg.Server.URL)
	assert.Equal(t, "sqlite", cfg.Session.Backend)
	assert.Equal(t, 2*time.Second, cfg.Watch.Debounce.Duration)
}

func TestLoad_DotEnvFile(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile(".env", []byte("RAGDESK_HISTORY_LIMIT=7\n"), 0600))
	t.Cleanup(func() { os.Unsetenv("RAGDESK_HISTORY_LIMIT") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Chat.HistoryLimit)
}

func TestLoad_InvalidEnvValue(t *testing.T) {
	isolate(t)
	t.Setenv("RAGDESK_TOP_K", "many")

	_, err := Load()
	assert.Error(t, err)
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Server.URL = "https://rag.internal"
	cfg.Session.Encrypt = true
	require.NoError(t, SaveTOML(cfg, path))

	loaded := Default()
	require.NoError(t, LoadTOML(loaded, path))
	assert.Equal(t, "https://rag.internal", loaded.Server.URL)
	assert.True(t, loaded.Session.Encrypt)
	assert.Equal(t, cfg.Server.Timeout, loaded.Server.Timeout)
}

func TestConfig_SessionPath(t *testing.T) {
	home := isolate(t)

	cfg := Default()
	p, err := cfg.SessionPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "session.json"), p)

	cfg.Session.Backend = "sqlite"
	p, err = cfg.SessionPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "session.db"), p)

	cfg.Session.Path = "/tmp/custom"
	p, _ = cfg.SessionPath()
	assert.Equal(t, "/tmp/custom", p)
}

func TestConfig_GlobalConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()

	custom := Default()
	custom.Chat.TopK = 9
	SetGlobal(custom)
	if Global().Chat.TopK != 9 {
		t.Errorf("Global().Chat.TopK = %d, want 9 after SetGlobal", Global().Chat.TopK)
	}
}
