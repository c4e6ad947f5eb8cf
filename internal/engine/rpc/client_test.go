package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/curseddelta/curseddelta/internal/engine"
)

type handlerFunc func(method string, params []json.RawMessage) (any, *Error)

// fakeServer answers requests from a Client over in-memory pipes. Each
// request is served on its own goroutine so a pending get_next_event does
// not block other calls.
type fakeServer struct {
	t       *testing.T
	handler handlerFunc
	events  chan wireEvent

	writeMu sync.Mutex
	out     *io.PipeWriter

	mu    sync.Mutex
	calls []string
}

func newFakeServer(t *testing.T, handler handlerFunc) (*fakeServer, *Client) {
	t.Helper()
	clientToServer, serverIn := io.Pipe()
	serverToClient, serverOut := io.Pipe()

	s := &fakeServer{t: t, handler: handler, events: make(chan wireEvent, 16), out: serverOut}
	go s.serve(clientToServer)

	c := NewClient(serverToClient, serverIn)
	t.Cleanup(func() { _ = c.Close() })
	return s, c
}

func (s *fakeServer) serve(in *io.PipeReader) {
	done := make(chan struct{})
	defer func() {
		close(done)
		_ = s.out.Close()
	}()
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		var req struct {
			ID     int64             `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}
		s.mu.Lock()
		s.calls = append(s.calls, req.Method)
		s.mu.Unlock()

		go func() {
			if req.Method == "get_next_event" {
				select {
				case ev := <-s.events:
					s.reply(req.ID, ev, nil)
				case <-done:
				}
				return
			}
			result, rpcErr := s.handler(req.Method, req.Params)
			s.reply(req.ID, result, rpcErr)
		}()
	}
}

func (s *fakeServer) reply(id int64, result any, rpcErr *Error) {
	resp := map[string]any{"jsonrpc": "2.0", "id": id}
	if rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}
	line, err := json.Marshal(resp)
	require.NoError(s.t, err)
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, _ = s.out.Write(append(line, '\n'))
}

func (s *fakeServer) called(method string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.calls {
		if m == method {
			return true
		}
	}
	return false
}

func TestCallDecodesResults(t *testing.T) {
	_, c := newFakeServer(t, func(method string, params []json.RawMessage) (any, *Error) {
		switch method {
		case "get_all_account_ids":
			return []int{1, 2}, nil
		case "get_selected_account_id":
			return nil, nil
		case "get_config":
			var key string
			require.NoError(t, json.Unmarshal(params[1], &key))
			if key == "addr" {
				return "me@example.org", nil
			}
			return nil, nil
		case "get_basic_chat_info":
			return map[string]any{"id": 12, "name": "Friends", "chatType": 120, "isMuted": true}, nil
		case "get_message_list_items":
			var infoOnly, dayMarkers bool
			require.NoError(t, json.Unmarshal(params[2], &infoOnly))
			require.NoError(t, json.Unmarshal(params[3], &dayMarkers))
			require.False(t, infoOnly)
			require.True(t, dayMarkers)
			return []map[string]any{
				{"kind": "dayMarker", "timestamp": 1700000000},
				{"kind": "message", "msg_id": 40},
			}, nil
		}
		return nil, &Error{Code: -32601, Message: "method not found"}
	})
	ctx := context.Background()

	ids, err := c.GetAllAccountIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, ids)

	selected, err := c.GetSelectedAccountID(ctx)
	require.NoError(t, err)
	require.Zero(t, selected)

	addr, err := c.GetConfig(ctx, 1, "addr")
	require.NoError(t, err)
	require.Equal(t, "me@example.org", addr)

	unset, err := c.GetConfig(ctx, 1, "displayname")
	require.NoError(t, err)
	require.Empty(t, unset)

	chat, err := c.GetBasicChatInfo(ctx, 1, 12)
	require.NoError(t, err)
	require.Equal(t, engine.ChatTypeGroup, chat.ChatType)
	require.True(t, chat.IsMuted)

	items, err := c.GetMessageListItems(ctx, 1, 12)
	require.NoError(t, err)
	require.Equal(t, []engine.MessageListItem{
		{Kind: engine.ItemDayMarker, Timestamp: 1700000000},
		{Kind: engine.ItemMessage, MsgID: 40},
	}, items)
}

func TestCallReturnsServerError(t *testing.T) {
	_, c := newFakeServer(t, func(string, []json.RawMessage) (any, *Error) {
		return nil, &Error{Code: -1, Message: "not a member of the chat"}
	})

	_, err := c.SendText(context.Background(), 1, 12, "hi")
	require.Error(t, err)

	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr))
	require.Equal(t, -1, rpcErr.Code)
	require.Contains(t, err.Error(), "misc_send_text_message")
}

func TestChatlistItemsSkipNonChatResults(t *testing.T) {
	_, c := newFakeServer(t, func(method string, _ []json.RawMessage) (any, *Error) {
		require.Equal(t, "get_chatlist_items_by_entries", method)
		return map[string]any{
			"12": map[string]any{"kind": "ChatListItem", "id": 12, "name": "Bob", "freshMessageCounter": 3},
			"6":  map[string]any{"kind": "ArchiveLink", "freshMessageCounter": 0},
		}, nil
	})

	items, err := c.GetChatlistItems(context.Background(), 1, []int{12, 6})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Bob", items[12].Name)
	require.Equal(t, 3, items[12].FreshMessageCounter)
}

func TestEventsAreDelivered(t *testing.T) {
	srv, c := newFakeServer(t, func(string, []json.RawMessage) (any, *Error) { return nil, nil })

	var ev wireEvent
	ev.ContextID = 3
	ev.Event.Kind = "IncomingMsg"
	ev.Event.ChatID = 12
	ev.Event.MsgID = 99
	srv.events <- ev

	var info wireEvent
	info.ContextID = 3
	info.Event.Kind = "ImapConnected"
	info.Event.Msg = "connected"
	srv.events <- info

	select {
	case got := <-c.Events():
		require.Equal(t, engine.Event{Account: 3, Kind: engine.EventIncomingMsg, ChatID: 12, MsgID: 99, Type: "IncomingMsg"}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
	select {
	case got := <-c.Events():
		require.Equal(t, engine.EventUnknown, got.Kind)
		require.Equal(t, "ImapConnected", got.Type)
		require.Equal(t, "connected", got.Msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
	require.True(t, srv.called("get_next_event"))
}

func TestCloseEndsEventsAndCalls(t *testing.T) {
	_, c := newFakeServer(t, func(string, []json.RawMessage) (any, *Error) { return []int{}, nil })

	require.NoError(t, c.Close())

	select {
	case _, ok := <-c.Events():
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed")
	}

	_, err := c.GetAllAccountIDs(context.Background())
	require.ErrorIs(t, err, engine.ErrClosed)
}

func TestCloseDoesNotWaitForPeerToCloseOutput(t *testing.T) {
	serverToClient, serverOut := io.Pipe()
	clientToServer, serverIn := io.Pipe()
	t.Cleanup(func() { _ = serverOut.Close() })

	// The peer drains requests but never answers and never closes its output.
	go func() { _, _ = io.Copy(io.Discard, clientToServer) }()

	c := NewClient(serverToClient, serverIn)
	closed := make(chan error, 1)
	go func() { closed <- c.Close() }()

	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on an open peer")
	}
}

func TestCallHonoursContext(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	_, c := newFakeServer(t, func(string, []json.RawMessage) (any, *Error) {
		<-block
		return nil, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.StartIO(ctx, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStartMissingBinary(t *testing.T) {
	_, err := Start(context.Background(), Options{Path: "/nonexistent/deltachat-rpc-server"})
	require.Error(t, err)
}
