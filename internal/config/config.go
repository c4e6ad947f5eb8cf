// Package config handles curseddelta configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/curseddelta/curseddelta/internal/logging"
)

// Engine backends.
const (
	EngineRPC   = "rpc"
	EngineLocal = "local"
)

const minInterval = 10 * time.Millisecond

// Config is the root configuration structure for curseddelta.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Engine backend settings
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// TUI settings
	TUI TUIConfig `yaml:"tui" mapstructure:"tui"`

	// Theme holds the named UI styles.
	Theme ThemeConfig `yaml:"theme" mapstructure:"theme"`

	// Keymap holds the named key bindings.
	Keymap KeymapConfig `yaml:"keymap" mapstructure:"keymap"`
}

// GlobalConfig contains global settings.
type GlobalConfig struct {
	// ProgramFolder holds accounts, logs and the local database
	// (default: ~/.curseddelta).
	ProgramFolder string `yaml:"program_folder" mapstructure:"program_folder"`

	// Account selects the account by address or id. Empty means the
	// engine's selected account.
	Account string `yaml:"account" mapstructure:"account"`

	// Notification enables desktop notifications for incoming messages.
	Notification bool `yaml:"notification" mapstructure:"notification"`

	// DateFormat is the Go time layout used for day separators.
	DateFormat string `yaml:"date_format" mapstructure:"date_format"`
}

// EngineConfig selects and configures the messaging engine.
type EngineConfig struct {
	// Backend is rpc (deltachat-rpc-server) or local (sqlite store).
	Backend string `yaml:"backend" mapstructure:"backend"`

	// RPCServer is the deltachat-rpc-server binary name or path.
	RPCServer string `yaml:"rpc_server" mapstructure:"rpc_server"`

	// LocalDB is the sqlite file used by the local backend.
	LocalDB string `yaml:"local_db" mapstructure:"local_db"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error, disabled).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is the log file path (default: <program_folder>/logs/log.txt).
	File string `yaml:"file" mapstructure:"file"`
}

// TUIConfig contains TUI settings.
type TUIConfig struct {
	// ChatlistRefresh is the minimum spacing between chat list reloads.
	ChatlistRefresh time.Duration `yaml:"chatlist_refresh" mapstructure:"chatlist_refresh"`

	// ConversationRefresh is the minimum spacing between conversation reloads.
	ConversationRefresh time.Duration `yaml:"conversation_refresh" mapstructure:"conversation_refresh"`

	// NotifyBatch is the window used to group incoming message notifications.
	NotifyBatch time.Duration `yaml:"notify_batch" mapstructure:"notify_batch"`

	// CacheSize is the number of rendered rows kept per list.
	CacheSize int `yaml:"cache_size" mapstructure:"cache_size"`

	// ChatNameWidth is the chat list column width.
	ChatNameWidth int `yaml:"chat_name_width" mapstructure:"chat_name_width"`
}

// Style is one named UI style. Colors are anything lipgloss accepts.
type Style struct {
	Foreground string `yaml:"fg" mapstructure:"fg"`
	Background string `yaml:"bg" mapstructure:"bg"`
	Bold       bool   `yaml:"bold" mapstructure:"bold"`
}

// ThemeConfig holds the named styles used by the UI.
type ThemeConfig struct {
	Background   Style `yaml:"background" mapstructure:"background"`
	StatusBar    Style `yaml:"status_bar" mapstructure:"status_bar"`
	Separator    Style `yaml:"separator" mapstructure:"separator"`
	Date         Style `yaml:"date" mapstructure:"date"`
	Encrypted    Style `yaml:"encrypted" mapstructure:"encrypted"`
	Unencrypted  Style `yaml:"unencrypted" mapstructure:"unencrypted"`
	Failed       Style `yaml:"failed" mapstructure:"failed"`
	CurrentChat  Style `yaml:"cur_chat" mapstructure:"cur_chat"`
	UnreadChat   Style `yaml:"unread_chat" mapstructure:"unread_chat"`
	Reversed     Style `yaml:"reversed" mapstructure:"reversed"`
	Quote        Style `yaml:"quote" mapstructure:"quote"`
	Mention      Style `yaml:"mention" mapstructure:"mention"`
	SystemMsg    Style `yaml:"system_msg" mapstructure:"system_msg"`
	SelfMsg      Style `yaml:"self_msg" mapstructure:"self_msg"`
	PinnedMarker Style `yaml:"pinned_marker" mapstructure:"pinned_marker"`
}

// KeymapConfig holds key bindings in bubbletea key notation ("ctrl+x",
// "alt+enter").
type KeymapConfig struct {
	Left           string `yaml:"left" mapstructure:"left"`
	Right          string `yaml:"right" mapstructure:"right"`
	Up             string `yaml:"up" mapstructure:"up"`
	Down           string `yaml:"down" mapstructure:"down"`
	Quit           string `yaml:"quit" mapstructure:"quit"`
	InsertText     string `yaml:"insert_text" mapstructure:"insert_text"`
	SendMsg        string `yaml:"send_msg" mapstructure:"send_msg"`
	InsertNewLine  string `yaml:"insert_new_line" mapstructure:"insert_new_line"`
	NextChat       string `yaml:"next_chat" mapstructure:"next_chat"`
	PrevChat       string `yaml:"prev_chat" mapstructure:"prev_chat"`
	ToggleChatlist string `yaml:"toggle_chatlist" mapstructure:"toggle_chatlist"`
}

const (
	fgColor = "#ffffff"
	bgColor = "#1c1c1c"
)

// DefaultTheme returns the built-in styles.
func DefaultTheme() ThemeConfig {
	return ThemeConfig{
		Background:   Style{Foreground: fgColor, Background: bgColor},
		StatusBar:    Style{Foreground: "#ffffff", Background: "#3a3a3a"},
		Separator:    Style{Foreground: "#262626", Background: "#262626"},
		Date:         Style{Foreground: "#66ff00", Background: bgColor},
		Encrypted:    Style{Foreground: "#808080", Background: bgColor},
		Unencrypted:  Style{Foreground: "#aa0000", Background: bgColor},
		Failed:       Style{Foreground: "#aa0000", Background: bgColor},
		CurrentChat:  Style{Foreground: "#000000", Background: "#5fafff"},
		UnreadChat:   Style{Foreground: "#000000", Background: "#66ff00"},
		Reversed:     Style{Foreground: bgColor, Background: fgColor},
		Quote:        Style{Foreground: "#808080", Background: bgColor},
		Mention:      Style{Foreground: "#ff5f5f", Background: bgColor, Bold: true},
		SystemMsg:    Style{Foreground: "#808080", Background: bgColor},
		SelfMsg:      Style{Foreground: "#00aa00", Background: bgColor},
		PinnedMarker: Style{Foreground: "#808080", Background: bgColor},
	}
}

// DefaultKeymap returns the built-in key bindings.
func DefaultKeymap() KeymapConfig {
	return KeymapConfig{
		Left:           "h",
		Right:          "l",
		Up:             "k",
		Down:           "j",
		Quit:           "q",
		InsertText:     "i",
		SendMsg:        "enter",
		InsertNewLine:  "alt+enter",
		NextChat:       "alt+up",
		PrevChat:       "alt+down",
		ToggleChatlist: "ctrl+x",
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			ProgramFolder: filepath.Join(homeDir, ".curseddelta"),
			Notification:  true,
			DateFormat:    "Mon, Jan 2 2006",
		},
		Engine: EngineConfig{
			Backend:   EngineRPC,
			RPCServer: "deltachat-rpc-server",
			LocalDB:   "", // Will be set to ProgramFolder/local.db
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
		TUI: TUIConfig{
			ChatlistRefresh:     time.Second,
			ConversationRefresh: time.Second,
			NotifyBatch:         2 * time.Second,
			CacheSize:           1000,
			ChatNameWidth:       30,
		},
		Theme:  DefaultTheme(),
		Keymap: DefaultKeymap(),
	}
}

// Validate checks if the configuration is valid. A keymap that binds
// send_msg and insert_new_line to the same key is repaired in place.
func (c *Config) Validate() error {
	switch c.Engine.Backend {
	case EngineRPC, EngineLocal:
	default:
		return fmt.Errorf("engine.backend must be one of %s, %s", EngineRPC, EngineLocal)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	intervals := map[string]time.Duration{
		"tui.chatlist_refresh":     c.TUI.ChatlistRefresh,
		"tui.conversation_refresh": c.TUI.ConversationRefresh,
		"tui.notify_batch":         c.TUI.NotifyBatch,
	}
	for key, d := range intervals {
		if d < minInterval {
			return fmt.Errorf("%s must be at least %s", key, minInterval)
		}
	}

	if c.TUI.CacheSize < 1 {
		return fmt.Errorf("tui.cache_size must be at least 1")
	}
	if c.TUI.ChatNameWidth < 4 {
		return fmt.Errorf("tui.chat_name_width must be at least 4")
	}

	if c.Keymap.SendMsg == c.Keymap.InsertNewLine {
		c.Keymap.SendMsg = "enter"
		if c.Keymap.InsertNewLine == "enter" {
			c.Keymap.InsertNewLine = "alt+enter"
		}
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.ProgramFolder,
		c.AccountsDir(),
		filepath.Dir(c.LogFile()),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// AccountsDir returns the directory handed to deltachat-rpc-server.
func (c *Config) AccountsDir() string {
	return filepath.Join(c.Global.ProgramFolder, "accounts")
}

// LogFile returns the full log file path.
func (c *Config) LogFile() string {
	if c.Logging.File != "" {
		return c.Logging.File
	}
	return filepath.Join(c.Global.ProgramFolder, "logs", "log.txt")
}

// LocalDBPath returns the full local engine database path.
func (c *Config) LocalDBPath() string {
	if c.Engine.LocalDB != "" {
		return c.Engine.LocalDB
	}
	return filepath.Join(c.Global.ProgramFolder, "local.db")
}
