package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/curseddelta/curseddelta/internal/engine"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init ADDR PASSWORD",
		Short: "Configure an e-mail account",
		Long: "Configure an e-mail account. With --account the existing account is\n" +
			"reconfigured, otherwise the account for ADDR is created if needed.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			addr, password := args[0], args[1]

			eng, err := a.openEngine(ctx)
			if err != nil {
				return err
			}
			defer eng.Close()

			var acc int
			if a.cfg.Global.Account != "" {
				acc, err = a.selectAccount(ctx, eng, true)
			} else {
				acc, err = engine.GetOrCreateAccount(ctx, eng, addr)
			}
			if err != nil {
				return err
			}

			for _, kv := range [][2]string{{"addr", addr}, {"mail_pw", password}} {
				if err := eng.SetConfig(ctx, acc, kv[0], kv[1]); err != nil {
					return fmt.Errorf("set %s: %w", kv[0], err)
				}
			}

			a.logger.Info().Int("account", acc).Str("addr", addr).Msg("configuring account")
			if err := eng.Configure(ctx, acc); err != nil {
				return &ExitError{Code: 1, Err: fmt.Errorf("configuration failed: %w", err)}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Account configured successfully.")
			return nil
		},
	}
}
