package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"

	"github.com/muesli/termenv"
)

// Notifier delivers notifications to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) error { return nil }

// TerminalNotifier asks the terminal emulator to raise the notification
// through an OSC 777 escape sequence.
type TerminalNotifier struct {
	out *termenv.Output
}

// NewTerminalNotifier writes escape sequences to w.
func NewTerminalNotifier(w io.Writer) *TerminalNotifier {
	return &TerminalNotifier{out: termenv.NewOutput(w)}
}

func (t *TerminalNotifier) Notify(_ context.Context, n Notification) error {
	t.out.Notify(n.Title, n.Body)
	return nil
}

// CommandNotifier runs notify-send (or a compatible program).
type CommandNotifier struct {
	Path    string
	AppName string
}

func (c CommandNotifier) Notify(ctx context.Context, n Notification) error {
	app := c.AppName
	if n.App != "" {
		app = fmt.Sprintf("%s (%s)", c.AppName, n.App)
	}
	cmd := exec.CommandContext(ctx, c.Path, "-a", app, n.Title, n.Body)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", c.Path, err, out)
	}
	return nil
}

// Auto picks notify-send when a graphical session is available and falls
// back to terminal escape sequences on w.
func Auto(appName string, w io.Writer) Notifier {
	if hasDisplay() {
		if path, err := exec.LookPath("notify-send"); err == nil {
			return CommandNotifier{Path: path, AppName: appName}
		}
	}
	return NewTerminalNotifier(w)
}

func hasDisplay() bool {
	if runtime.GOOS != "linux" {
		return false
	}
	return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
}
