package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/curseddelta/curseddelta/internal/engine"
	"github.com/curseddelta/curseddelta/internal/notify"
	"github.com/curseddelta/curseddelta/internal/tui"
)

// isTerminal reports whether the UI can take over stdin and stdout.
var isTerminal = hasTTY

func hasTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func (a *app) runUI(ctx context.Context) error {
	if !isTerminal() {
		return &ExitError{Code: 1, Err: errors.New("the chat interface requires an interactive terminal")}
	}

	eng, err := a.openEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	acc, err := a.selectAccount(ctx, eng, false)
	if err != nil {
		return err
	}
	return a.startUI(ctx, eng, acc)
}

// startUI starts IO for acc and runs the interface until the user quits.
func (a *app) startUI(ctx context.Context, eng engine.Engine, acc int) error {
	configured, err := eng.IsConfigured(ctx, acc)
	if err != nil {
		return err
	}
	if !configured {
		return &ExitError{Code: 1, Err: fmt.Errorf("account %d is not configured, run: curseddelta init ADDR PASSWORD", acc)}
	}
	if err := eng.StartIO(ctx, acc); err != nil {
		return fmt.Errorf("start io: %w", err)
	}
	a.logger.Info().Int("account", acc).Msg("starting interface")

	var notifier notify.Notifier
	if a.cfg.Global.Notification {
		notifier = notify.Auto(appName, os.Stdout)
	}
	return tui.Run(ctx, tui.Options{
		Engine:   eng,
		Account:  acc,
		Config:   a.cfg,
		Notifier: notifier,
		Version:  a.version,
	})
}

const appName = "curseddelta"
