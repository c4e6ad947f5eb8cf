// Package rpc drives deltachat-rpc-server over newline-delimited JSON-RPC on
// its standard streams.
package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/curseddelta/curseddelta/internal/engine"
	"github.com/curseddelta/curseddelta/internal/logging"
)

const maxLineSize = 16 * 1024 * 1024

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type response struct {
	ID     *int64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

// Error is an error object returned by the server.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Client is a JSON-RPC connection. It implements engine.Engine.
type Client struct {
	w       io.WriteCloser
	writeMu sync.Mutex
	nextID  atomic.Int64
	logger  zerolog.Logger

	mu      sync.Mutex
	pending map[int64]chan response
	readErr error

	events chan engine.Event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
	onClose   func() error
	rc        io.Closer
}

var _ engine.Engine = (*Client)(nil)

// NewClient speaks JSON-RPC over r and w. The event loop starts immediately.
// If r is also an io.Closer, Close closes it so the read loop ends even
// when the peer keeps its side open.
func NewClient(r io.Reader, w io.WriteCloser) *Client {
	return newClient(r, w, logging.Component("rpc"))
}

func newClient(r io.Reader, w io.WriteCloser, logger zerolog.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		w:       w,
		logger:  logger,
		pending: make(map[int64]chan response),
		events:  make(chan engine.Event, 64),
		ctx:     ctx,
		cancel:  cancel,
	}
	if rc, ok := r.(io.Closer); ok {
		c.rc = rc
	}
	c.wg.Add(2)
	go c.readLoop(r)
	go c.eventLoop()
	return c
}

// Call invokes method and decodes its result into out, which may be nil.
func (c *Client) Call(ctx context.Context, method string, out any, params ...any) error {
	if params == nil {
		params = []any{}
	}
	id := c.nextID.Add(1)
	ch := make(chan response, 1)

	c.mu.Lock()
	if c.readErr != nil {
		err := c.readErr
		c.mu.Unlock()
		return err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	payload, err := json.Marshal(request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		c.forget(id)
		return fmt.Errorf("encode %s request: %w", method, err)
	}
	payload = append(payload, '\n')

	c.writeMu.Lock()
	_, err = c.w.Write(payload)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return fmt.Errorf("write %s request: %w", method, err)
	}
	c.logger.Debug().Str("method", method).Int64("id", id).Interface("params", logging.RedactParams(params)).Msg("rpc call")

	select {
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return c.failure()
		}
		if resp.Error != nil {
			return fmt.Errorf("%s: %w", method, resp.Error)
		}
		if out == nil || len(resp.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
		return nil
	}
}

func (c *Client) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) failure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return c.readErr
	}
	return engine.ErrClosed
}

func (c *Client) readLoop(r io.Reader) {
	defer c.wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var resp response
		if err := json.Unmarshal(line, &resp); err != nil {
			c.logger.Warn().Err(err).Msg("undecodable rpc line")
			continue
		}
		if resp.ID == nil {
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[*resp.ID]
		delete(c.pending, *resp.ID)
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	c.mu.Lock()
	c.readErr = fmt.Errorf("rpc connection lost: %w", errors.Join(engine.ErrClosed, err))
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
	c.cancel()
}

// Events returns engine events in arrival order. The channel closes when the
// connection ends.
func (c *Client) Events() <-chan engine.Event {
	return c.events
}

// Close stops the event loop, closes the write side and releases the
// server process when there is one.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.w.Close()
		if c.onClose != nil {
			if cerr := c.onClose(); cerr != nil && err == nil {
				err = cerr
			}
		}
		if c.rc != nil {
			_ = c.rc.Close()
		}
		c.wg.Wait()
	})
	return err
}
