// Package cli implements the curseddelta command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/curseddelta/curseddelta/internal/config"
	"github.com/curseddelta/curseddelta/internal/engine"
	"github.com/curseddelta/curseddelta/internal/engine/local"
	"github.com/curseddelta/curseddelta/internal/engine/rpc"
	"github.com/curseddelta/curseddelta/internal/logging"
)

// Execute runs the root command with os.Args.
func Execute(version string) error {
	return ExecuteContext(context.Background(), version)
}

// ExecuteContext is Execute with a context that cancels running commands.
func ExecuteContext(ctx context.Context, version string) error {
	return newRootCmd(version).ExecuteContext(ctx)
}

// app carries what the subcommands share: resolved configuration, the log
// file and the flags that override config.
type app struct {
	version string

	configFile    string
	programFolder string
	account       string
	logLevel      string
	backend       string

	cfg     *config.Config
	logFile *os.File
	logger  zerolog.Logger
}

func newRootCmd(version string) *cobra.Command {
	a := &app{version: version}

	cmd := &cobra.Command{
		Use:   "curseddelta",
		Short: "Delta Chat client for the terminal",
		Long: "curseddelta is a terminal client for Delta Chat.\n\n" +
			"Run without a subcommand to open the chat interface.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runUI(cmd.Context())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default searches ~/.config/curseddelta)")
	flags.StringVarP(&a.programFolder, "program-folder", "f", "", "folder for accounts, logs and the local database")
	flags.StringVarP(&a.account, "account", "a", "", "account address or id to use")
	flags.StringVar(&a.logLevel, "log", "", "log level (debug, info, warning, error, disabled)")
	flags.StringVar(&a.backend, "engine", "", "engine backend (rpc, local)")

	cmd.AddCommand(
		newInitCmd(a),
		newConfigCmd(a),
		newDemoCmd(a),
	)
	return cmd
}

// setup loads configuration, applies flag overrides and starts logging.
func (a *app) setup(cmd *cobra.Command) error {
	loader := config.NewLoader()
	if a.configFile != "" {
		loader.SetConfigFile(a.configFile)
	}

	flags := cmd.Flags()
	overrides := []struct {
		flag, key, value string
	}{
		{"program-folder", "global.program_folder", a.programFolder},
		{"account", "global.account", a.account},
		{"log", "logging.level", a.logLevel},
		{"engine", "engine.backend", a.backend},
	}
	for _, o := range overrides {
		if flags.Changed(o.flag) {
			loader.Set(o.key, o.value)
		}
	}

	cfg, err := loader.Load()
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	a.cfg = cfg

	if cfg.Logging.Level == logging.LevelDisabled {
		logging.Init(logging.Config{Level: logging.LevelDisabled})
	} else {
		f, err := logging.OpenFile(cfg.LogFile())
		if err != nil {
			return err
		}
		a.logFile = f
		logging.Init(logging.Config{
			Level:   cfg.Logging.Level,
			Format:  cfg.Logging.Format,
			Output:  f,
			NoColor: true,
		})
	}
	a.logger = logging.Component("cli")
	a.logger.Debug().
		Str("config", loader.ConfigFileUsed()).
		Str("program_folder", cfg.Global.ProgramFolder).
		Str("engine", cfg.Engine.Backend).
		Msg("configuration loaded")
	return nil
}

func (a *app) close() {
	if a.logFile != nil {
		_ = a.logFile.Close()
		a.logFile = nil
	}
}

// openEngine starts the configured backend.
func (a *app) openEngine(ctx context.Context) (engine.Engine, error) {
	switch a.cfg.Engine.Backend {
	case config.EngineLocal:
		eng, err := local.Open(ctx, a.cfg.LocalDBPath())
		if err != nil {
			return nil, err
		}
		return eng, nil
	default:
		client, err := rpc.Start(ctx, rpc.Options{
			Path:        a.cfg.Engine.RPCServer,
			AccountsDir: a.cfg.AccountsDir(),
		})
		if err != nil {
			return nil, &ExitError{Code: 1, Err: fmt.Errorf("%w (install deltachat-rpc-server or use --engine local)", err)}
		}
		return client, nil
	}
}

// selectAccount returns the account named by --account. Without the flag the
// single existing account is used, or the engine's selected one.
func (a *app) selectAccount(ctx context.Context, eng engine.Engine, requireExplicit bool) (int, error) {
	if a.cfg.Global.Account != "" {
		acc, err := engine.ResolveAccount(ctx, eng, a.cfg.Global.Account)
		if errors.Is(err, engine.ErrNotFound) {
			return 0, &ExitError{Code: 1, Err: fmt.Errorf("unknown account: %s", a.cfg.Global.Account)}
		}
		return acc, err
	}

	ids, err := eng.GetAllAccountIDs(ctx)
	if err != nil {
		return 0, err
	}
	switch {
	case len(ids) == 0:
		return 0, &ExitError{Code: 1, Err: errNoAccount}
	case len(ids) > 1 && requireExplicit:
		return 0, &ExitError{Code: 1, Err: errors.New("you must use --account option to select an account, there are several accounts")}
	}
	return engine.ResolveAccount(ctx, eng, "")
}

var errNoAccount = errors.New("no account configured, run: curseddelta init ADDR PASSWORD")
