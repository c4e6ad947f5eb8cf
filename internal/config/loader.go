package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, as in
// CURSEDDELTA_GLOBAL_ACCOUNT for global.account.
const EnvPrefix = "CURSEDDELTA"

// setting is a scalar key the loader knows a default for.
type setting struct {
	key string
	def func(*Config) any
}

// settings lists every scalar key. Theme and keymap tables are left to the
// struct defaults so a file overriding one entry keeps the others.
var settings = []setting{
	{"global.program_folder", func(c *Config) any { return c.Global.ProgramFolder }},
	{"global.account", func(c *Config) any { return c.Global.Account }},
	{"global.notification", func(c *Config) any { return c.Global.Notification }},
	{"global.date_format", func(c *Config) any { return c.Global.DateFormat }},
	{"engine.backend", func(c *Config) any { return c.Engine.Backend }},
	{"engine.rpc_server", func(c *Config) any { return c.Engine.RPCServer }},
	{"engine.local_db", func(c *Config) any { return c.Engine.LocalDB }},
	{"logging.level", func(c *Config) any { return c.Logging.Level }},
	{"logging.format", func(c *Config) any { return c.Logging.Format }},
	{"logging.file", func(c *Config) any { return c.Logging.File }},
	{"tui.chatlist_refresh", func(c *Config) any { return c.TUI.ChatlistRefresh }},
	{"tui.conversation_refresh", func(c *Config) any { return c.TUI.ConversationRefresh }},
	{"tui.notify_batch", func(c *Config) any { return c.TUI.NotifyBatch }},
	{"tui.cache_size", func(c *Config) any { return c.TUI.CacheSize }},
	{"tui.chat_name_width", func(c *Config) any { return c.TUI.ChatNameWidth }},
}

// envOnlyKeys can be set from the environment without a loader default.
var envOnlyKeys = []string{
	"keymap.send_msg",
	"keymap.insert_new_line",
	"keymap.quit",
}

// Loader resolves configuration from defaults, an optional YAML file, the
// environment and explicit Set calls, later sources winning.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// SetConfigFile pins the config file. Without it the search paths are
// tried and a missing file is not an error.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// Set overrides key above every other source. Command line flags use it.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// ConfigFileUsed returns the config file that was read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Load resolves, expands and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()
	l.prepare(cfg)

	if err := l.readFile(); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Global.ProgramFolder = expandTilde(cfg.Global.ProgramFolder)
	cfg.Engine.RPCServer = expandTilde(cfg.Engine.RPCServer)
	cfg.Engine.LocalDB = expandTilde(cfg.Engine.LocalDB)
	cfg.Logging.File = expandTilde(cfg.Logging.File)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	loader := NewLoader()
	loader.SetConfigFile(path)
	return loader.Load()
}

func (l *Loader) prepare(cfg *Config) {
	v := l.v
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, dir := range searchPaths() {
		v.AddConfigPath(dir)
	}

	// Every key is bound explicitly; Unmarshal skips nested env values
	// that viper has not seen through a default or binding.
	for _, s := range settings {
		v.SetDefault(s.key, s.def(cfg))
		_ = v.BindEnv(s.key, envName(s.key))
	}
	for _, key := range envOnlyKeys {
		_ = v.BindEnv(key, envName(key))
	}
}

func (l *Loader) readFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
		return l.v.ReadInConfig()
	}
	err := l.v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	return err
}

// searchPaths lists the directories searched for config.yaml, most
// specific first.
func searchPaths() []string {
	var dirs []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dirs = append(dirs, filepath.Join(xdg, appDir))
	}
	if home, _ := os.UserHomeDir(); home != "" {
		dirs = append(dirs,
			filepath.Join(home, ".config", appDir),
			filepath.Join(home, "."+appDir),
		)
	}
	return append(dirs, ".")
}

const appDir = "curseddelta"

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// expandTilde expands a leading ~ to the user's home directory.
func expandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
