package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/curseddelta/curseddelta/internal/engine"
	"github.com/curseddelta/curseddelta/internal/logging"
)

// uiKeyPrefix marks free-form keys clients may store next to the engine's.
const uiKeyPrefix = "ui."

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config [OPTION] [VALUE]",
		Short: "Show or change account settings",
		Long: "Without arguments every setting of the account is listed. With OPTION\n" +
			"its value is shown, and with VALUE it is changed first.",
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			eng, err := a.openEngine(ctx)
			if err != nil {
				return err
			}
			defer eng.Close()

			acc, err := a.selectAccount(ctx, eng, true)
			if err != nil {
				return err
			}

			raw, err := eng.GetConfig(ctx, acc, engine.ConfigKeysOption)
			if err != nil {
				return err
			}
			keys := strings.Fields(raw)

			if len(args) == 0 {
				for _, key := range keys {
					value, err := eng.GetConfig(ctx, acc, key)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s=%q\n", key, logging.RedactConfigValue(key, value))
				}
				return nil
			}

			key := args[0]
			if !strings.HasPrefix(key, uiKeyPrefix) && !slices.Contains(keys, key) {
				return &ExitError{Code: 1, Err: fmt.Errorf("unknown configuration option: %s", key)}
			}
			if len(args) == 2 {
				if err := eng.SetConfig(ctx, acc, key, args[1]); err != nil {
					return err
				}
				a.logger.Info().
					Int("account", acc).
					Str("key", key).
					Str("value", logging.RedactConfigValue(key, args[1])).
					Msg("config changed")
			}
			value, err := eng.GetConfig(ctx, acc, key)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s=%q\n", key, value)
			return nil
		},
	}
}
