package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/curseddelta/curseddelta/internal/engine"
	"github.com/curseddelta/curseddelta/internal/engine/local"
)

var demoLines = []string{
	"are you around?",
	"just pushed the fix",
	"lunch at noon?",
	"@Me can you take a look",
	"sounds good",
	"see you tomorrow",
}

func newDemoCmd(a *app) *cobra.Command {
	var (
		burst    int
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Open the interface on a local demo account",
		Long: "Open the interface on a seeded account stored in the local database.\n" +
			"Contacts keep writing while it runs. No network access is needed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !isTerminal() {
				return &ExitError{Code: 1, Err: errors.New("the chat interface requires an interactive terminal")}
			}

			eng, err := local.Open(ctx, a.cfg.LocalDBPath())
			if err != nil {
				return err
			}
			defer eng.Close()

			acc, err := eng.Seed(ctx)
			if err != nil {
				return fmt.Errorf("seed demo account: %w", err)
			}

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			go func() {
				if err := simulateBurst(ctx, eng, acc, burst, interval); err != nil && !errors.Is(err, context.Canceled) {
					a.logger.Warn().Err(err).Msg("demo sender stopped")
				}
			}()
			return a.startUI(ctx, eng, acc)
		},
	}
	cmd.Flags().IntVar(&burst, "burst", 6, "number of incoming messages to simulate")
	cmd.Flags().DurationVar(&interval, "interval", 3*time.Second, "delay between simulated messages")
	return cmd
}

type demoSender struct {
	chatID    int
	contactID int
}

// demoSenders lists every visible chat with a contact who can write to it.
func demoSenders(ctx context.Context, eng engine.Engine, acc int) ([]demoSender, error) {
	ids, err := eng.GetChatlistEntries(ctx, acc, 0, "")
	if err != nil {
		return nil, err
	}
	var senders []demoSender
	for _, id := range ids {
		if !engine.VisibleChat(id) {
			continue
		}
		contacts, err := eng.GetChatContacts(ctx, acc, id)
		if err != nil {
			return nil, err
		}
		for _, c := range contacts {
			if c > engine.ContactLastSpecial {
				senders = append(senders, demoSender{chatID: id, contactID: c})
				break
			}
		}
	}
	return senders, nil
}

// simulateBurst delivers count messages round robin over the demo chats,
// one every interval.
func simulateBurst(ctx context.Context, eng *local.Engine, acc, count int, interval time.Duration) error {
	senders, err := demoSenders(ctx, eng, acc)
	if err != nil {
		return err
	}
	if len(senders) == 0 {
		return nil
	}

	for i := range count {
		if interval > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
		s := senders[i%len(senders)]
		if _, err := eng.Deliver(ctx, acc, local.Incoming{
			ChatID:    s.chatID,
			FromID:    s.contactID,
			Text:      demoLines[i%len(demoLines)],
			Encrypted: true,
		}); err != nil {
			return err
		}
	}
	return nil
}
