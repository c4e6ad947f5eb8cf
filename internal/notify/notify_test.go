package notify

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/curseddelta/curseddelta/internal/engine"
	"github.com/curseddelta/curseddelta/internal/engine/enginetest"
)

type fixture struct {
	eng    *enginetest.Engine
	acc    int
	bob    int
	direct int
	group  int
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	eng := enginetest.New()
	acc := eng.NewAccount("me@example.org", "Zoe")
	bob := eng.AddContact(acc, "bob@example.org", "Bob")
	return fixture{
		eng:    eng,
		acc:    acc,
		bob:    bob,
		direct: eng.AddChat(acc, engine.BasicChat{Name: "Bob"}, bob),
		group:  eng.AddChat(acc, engine.BasicChat{Name: "Team", ChatType: engine.ChatTypeGroup}, engine.ContactSelf, bob),
	}
}

func (f fixture) message(t *testing.T, chat int, text string, mutate ...func(*engine.Message)) engine.Message {
	t.Helper()
	msg := engine.Message{ChatID: chat, FromID: f.bob, Text: text, State: engine.MessageStateInFresh}
	for _, m := range mutate {
		m(&msg)
	}
	id := f.eng.AddMessage(f.acc, msg)
	got, err := f.eng.GetMessage(context.Background(), f.acc, id)
	require.NoError(t, err)
	return got
}

func TestShouldNotify(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mine := f.eng.AddMessage(f.acc, engine.Message{ChatID: f.group, FromID: engine.ContactSelf, Text: "my question"})
	f.eng.SetMuted(f.acc, f.group, true)
	mutedDirect := f.eng.AddChat(f.acc, engine.BasicChat{Name: "Muted Bob", IsMuted: true}, f.bob)

	tests := []struct {
		name string
		msg  engine.Message
		want bool
	}{
		{"plain message in unmuted chat", f.message(t, f.direct, "hi"), true},
		{"info message", f.message(t, f.direct, "Bob joined", func(m *engine.Message) { m.IsInfo = true }), false},
		{"system message", f.message(t, f.direct, "keys changed", func(m *engine.Message) { m.SystemMessageType = "ChatProtectionEnabled" }), false},
		{"own message", f.message(t, f.direct, "echo", func(m *engine.Message) { m.FromID = engine.ContactSelf }), false},
		{"muted group without mention", f.message(t, f.group, "lunch?"), false},
		{"muted group mentioning self", f.message(t, f.group, "hey @Zoe look"), true},
		{"muted group quoting self", f.message(t, f.group, "answer", func(m *engine.Message) {
			m.Quote = &engine.Quote{Kind: "WithMessage", MessageID: mine, Text: "my question"}
		}), true},
		{"muted group quoting someone else", f.message(t, f.group, "answer", func(m *engine.Message) {
			m.Quote = &engine.Quote{Kind: "JustText", Text: "forwarded"}
		}), false},
		{"muted direct chat even with mention", f.message(t, mutedDirect, "@Zoe"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ShouldNotify(ctx, f.eng, f.acc, tt.msg)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestShouldNotifyFallsBackToAddress(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.eng.SetConfig(ctx, f.acc, "displayname", ""))
	f.eng.SetMuted(f.acc, f.group, true)

	got, err := ShouldNotify(ctx, f.eng, f.acc, f.message(t, f.group, "ping @me@example.org"))
	require.NoError(t, err)
	require.True(t, got)
}

func TestFormatSingleChat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	direct, err := Format(ctx, f.eng, f.acc, []engine.Message{f.message(t, f.direct, "hello\n  there")})
	require.NoError(t, err)
	require.Equal(t, []Notification{{App: "me@example.org", Title: "Bob", Body: "hello there"}}, direct)

	group, err := Format(ctx, f.eng, f.acc, []engine.Message{
		f.message(t, f.group, "one"),
		f.message(t, f.group, "two"),
	})
	require.NoError(t, err)
	require.Len(t, group, 2)
	require.Equal(t, "Team", group[0].Title)
	require.Equal(t, "Bob: one", group[0].Body)
	require.Equal(t, "Bob: two", group[1].Body)
}

func TestFormatSeveralChatsSummarises(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	extra := []int{
		f.eng.AddChat(f.acc, engine.BasicChat{Name: "Alpha"}, f.bob),
		f.eng.AddChat(f.acc, engine.BasicChat{Name: "Zulu"}, f.bob),
	}

	msgs := []engine.Message{
		f.message(t, f.direct, "a"),
		f.message(t, f.group, "b"),
		f.message(t, extra[0], "c"),
		f.message(t, extra[1], "d"),
		f.message(t, extra[1], "e"),
	}
	got, err := Format(ctx, f.eng, f.acc, msgs)
	require.NoError(t, err)
	require.Equal(t, []Notification{{
		App:   "me@example.org",
		Title: "5 new messages",
		Body:  "in Alpha, Bob, Team and 1 more",
	}}, got)

	none, err := Format(ctx, f.eng, f.acc, nil)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestTerminalNotifierWritesEscape(t *testing.T) {
	var buf bytes.Buffer
	n := NewTerminalNotifier(&buf)
	require.NoError(t, n.Notify(context.Background(), Notification{Title: "Bob", Body: "hi"}))
	require.Contains(t, buf.String(), "777;notify;Bob;hi")
}

func TestCommandNotifierPassesArguments(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script helper")
	}
	dir := t.TempDir()
	out := filepath.Join(dir, "args")
	script := filepath.Join(dir, "notify-send")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\nprintf '%s\\n' \"$@\" > "+out+"\n"), 0o755))

	n := CommandNotifier{Path: script, AppName: "curseddelta"}
	require.NoError(t, n.Notify(context.Background(), Notification{App: "me@example.org", Title: "Bob", Body: "hi there"}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, []string{"-a", "curseddelta (me@example.org)", "Bob", "hi there"}, strings.Split(strings.TrimSpace(string(data)), "\n"))

	failing := CommandNotifier{Path: filepath.Join(dir, "missing"), AppName: "curseddelta"}
	require.Error(t, failing.Notify(context.Background(), Notification{Title: "x"}))
}

func TestNop(t *testing.T) {
	require.NoError(t, Nop{}.Notify(context.Background(), Notification{}))
}
