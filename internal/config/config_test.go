package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "xdg"))
	return home
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".curseddelta"), cfg.Global.ProgramFolder)
	require.Equal(t, EngineRPC, cfg.Engine.Backend)
	require.Equal(t, "warn", cfg.Logging.Level)
	require.Equal(t, time.Second, cfg.TUI.ChatlistRefresh)
	require.Equal(t, DefaultKeymap(), cfg.Keymap)
	require.Equal(t, DefaultTheme(), cfg.Theme)

	require.Equal(t, filepath.Join(home, ".curseddelta", "accounts"), cfg.AccountsDir())
	require.Equal(t, filepath.Join(home, ".curseddelta", "logs", "log.txt"), cfg.LogFile())
	require.Equal(t, filepath.Join(home, ".curseddelta", "local.db"), cfg.LocalDBPath())
}

func TestLoadFromFileMergesPartialSections(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
global:
  program_folder: ~/chat
  account: me@example.org
engine:
  backend: local
tui:
  chatlist_refresh: 250ms
theme:
  date:
    fg: "#ff0000"
keymap:
  quit: ctrl+q
`)

	loader := NewLoader()
	loader.SetConfigFile(path)
	cfg, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, path, loader.ConfigFileUsed())

	home, _ := os.UserHomeDir()
	require.Equal(t, filepath.Join(home, "chat"), cfg.Global.ProgramFolder)
	require.Equal(t, "me@example.org", cfg.Global.Account)
	require.Equal(t, EngineLocal, cfg.Engine.Backend)
	require.Equal(t, 250*time.Millisecond, cfg.TUI.ChatlistRefresh)
	require.Equal(t, time.Second, cfg.TUI.ConversationRefresh)

	require.Equal(t, "#ff0000", cfg.Theme.Date.Foreground)
	require.Equal(t, DefaultTheme().Date.Background, cfg.Theme.Date.Background)
	require.Equal(t, "ctrl+q", cfg.Keymap.Quit)
	require.Equal(t, "enter", cfg.Keymap.SendMsg)
}

func TestEnvOverridesFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "logging:\n  level: info\nengine:\n  backend: rpc\n")
	t.Setenv("CURSEDDELTA_LOGGING_LEVEL", "debug")
	t.Setenv("CURSEDDELTA_ENGINE_BACKEND", "local")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, EngineLocal, cfg.Engine.Backend)
}

func TestSetOverridesEnv(t *testing.T) {
	isolate(t)
	t.Setenv("CURSEDDELTA_GLOBAL_ACCOUNT", "env@example.org")

	loader := NewLoader()
	loader.Set("global.account", "flag@example.org")
	cfg, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, "flag@example.org", cfg.Global.Account)
}

func TestExplicitMissingFileFails(t *testing.T) {
	isolate(t)
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Engine.Backend = "imap" }, "engine.backend"},
		{"unknown log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"disabled logging", func(c *Config) { c.Logging.Level = "disabled" }, ""},
		{"interval too small", func(c *Config) { c.TUI.NotifyBatch = time.Millisecond }, "tui.notify_batch"},
		{"empty cache", func(c *Config) { c.TUI.CacheSize = 0 }, "tui.cache_size"},
		{"narrow chat list", func(c *Config) { c.TUI.ChatNameWidth = 2 }, "tui.chat_name_width"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateRepairsConflictingSendKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Keymap.SendMsg = "alt+enter"
	cfg.Keymap.InsertNewLine = "alt+enter"
	require.NoError(t, cfg.Validate())
	require.Equal(t, "enter", cfg.Keymap.SendMsg)
	require.Equal(t, "alt+enter", cfg.Keymap.InsertNewLine)

	cfg = DefaultConfig()
	cfg.Keymap.SendMsg = "enter"
	cfg.Keymap.InsertNewLine = "enter"
	require.NoError(t, cfg.Validate())
	require.Equal(t, "enter", cfg.Keymap.SendMsg)
	require.Equal(t, "alt+enter", cfg.Keymap.InsertNewLine)
}

func TestEnsureDirectories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Global.ProgramFolder = filepath.Join(t.TempDir(), "prog")
	require.NoError(t, cfg.EnsureDirectories())

	for _, dir := range []string{cfg.AccountsDir(), filepath.Dir(cfg.LogFile())} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
}

func TestExpandTilde(t *testing.T) {
	home := isolate(t)
	require.Equal(t, "", expandTilde(""))
	require.Equal(t, home, expandTilde("~"))
	require.Equal(t, filepath.Join(home, "x"), expandTilde("~/x"))
	require.Equal(t, "/abs", expandTilde("/abs"))
}
