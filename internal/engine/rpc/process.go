package rpc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/curseddelta/curseddelta/internal/logging"
)

// DefaultServerPath is looked up in PATH when Options.Path is empty.
const DefaultServerPath = "deltachat-rpc-server"

const shutdownGrace = 3 * time.Second

// Options configures the spawned server.
type Options struct {
	Path        string
	AccountsDir string
}

// Start spawns deltachat-rpc-server and returns a client connected to it.
// The server keeps its accounts under AccountsDir.
func Start(ctx context.Context, opts Options) (*Client, error) {
	path := opts.Path
	if path == "" {
		path = DefaultServerPath
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", path, err)
	}
	if opts.AccountsDir != "" {
		if err := os.MkdirAll(opts.AccountsDir, 0o700); err != nil {
			return nil, fmt.Errorf("create accounts dir: %w", err)
		}
	}

	cmd := exec.CommandContext(ctx, resolved)
	cmd.Env = os.Environ()
	if opts.AccountsDir != "" {
		cmd.Env = append(cmd.Env, "DC_ACCOUNTS_PATH="+opts.AccountsDir)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", resolved, err)
	}

	client := newClient(stdout, stdin, logging.Component("rpc").With().Int("pid", cmd.Process.Pid).Logger())

	// The server logs to stderr; forward it so the terminal stays clean.
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			client.logger.Debug().Str("stream", "stderr").Msg(scanner.Text())
		}
	}()

	client.onClose = func() error {
		waitErr := make(chan error, 1)
		go func() { waitErr <- cmd.Wait() }()
		select {
		case err := <-waitErr:
			return exitError(err)
		case <-time.After(shutdownGrace):
			_ = cmd.Process.Kill()
			return exitError(<-waitErr)
		}
	}
	return client, nil
}

func exitError(err error) error {
	var exit *exec.ExitError
	if err == nil || errors.As(err, &exit) {
		return nil
	}
	return fmt.Errorf("wait for rpc server: %w", err)
}
