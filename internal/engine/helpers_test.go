package engine_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/curseddelta/curseddelta/internal/engine"
	"github.com/curseddelta/curseddelta/internal/engine/enginetest"
)

func TestSubtitle(t *testing.T) {
	ctx := context.Background()
	eng := enginetest.New()
	acc := eng.NewAccount("me@example.org", "Me")
	bob := eng.AddContact(acc, "bob@example.org", "Bob")
	eve := eng.AddContact(acc, "eve@example.org", "Eve")

	tests := []struct {
		name    string
		chat    engine.BasicChat
		members []int
		want    string
	}{
		{"one to one", engine.BasicChat{Name: "Bob"}, []int{bob}, "bob@example.org"},
		{"group", engine.BasicChat{Name: "G", ChatType: engine.ChatTypeGroup}, []int{engine.ContactSelf, bob, eve}, "3 members"},
		{"group of one", engine.BasicChat{Name: "G", ChatType: engine.ChatTypeGroup}, []int{engine.ContactSelf}, "1 member"},
		{"broadcast", engine.BasicChat{Name: "B", ChatType: engine.ChatTypeBroadcast}, []int{bob}, "1 recipient"},
		{"mailing list", engine.BasicChat{Name: "L", ChatType: engine.ChatTypeMailingList}, []int{bob, eve}, "Mailing List"},
		{"saved messages", engine.BasicChat{Name: "Me", IsSelfTalk: true}, []int{engine.ContactSelf}, "Messages I sent to myself"},
		{"device", engine.BasicChat{Name: "Device", IsDeviceChat: true}, []int{engine.ContactDevice}, "Locally generated messages"},
		{"empty", engine.BasicChat{Name: "Nobody"}, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := eng.AddChat(acc, tt.chat, tt.members...)
			info, err := eng.GetBasicChatInfo(ctx, acc, id)
			require.NoError(t, err)

			got, err := engine.Subtitle(ctx, eng, acc, info)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestResolveAccount(t *testing.T) {
	ctx := context.Background()
	eng := enginetest.New()

	_, err := engine.ResolveAccount(ctx, eng, "")
	require.ErrorIs(t, err, engine.ErrNotFound)

	first := eng.NewAccount("a@example.org", "A")
	second := eng.NewAccount("b@example.org", "B")

	got, err := engine.ResolveAccount(ctx, eng, "")
	require.NoError(t, err)
	require.Equal(t, first, got)

	got, err = engine.ResolveAccount(ctx, eng, "B@example.org")
	require.NoError(t, err)
	require.Equal(t, second, got)

	got, err = engine.ResolveAccount(ctx, eng, "2")
	require.NoError(t, err)
	require.Equal(t, second, got)

	_, err = engine.ResolveAccount(ctx, eng, "42")
	require.ErrorIs(t, err, engine.ErrNotFound)

	_, err = engine.ResolveAccount(ctx, eng, "nobody@example.org")
	require.ErrorIs(t, err, engine.ErrNotFound)
}

func TestGetOrCreateAccount(t *testing.T) {
	ctx := context.Background()
	eng := enginetest.New()
	existing := eng.NewAccount("a@example.org", "A")

	got, err := engine.GetOrCreateAccount(ctx, eng, "a@example.org")
	require.NoError(t, err)
	require.Equal(t, existing, got)

	created, err := engine.GetOrCreateAccount(ctx, eng, "new@example.org")
	require.NoError(t, err)
	require.NotEqual(t, existing, created)

	addr, err := engine.AccountAddress(ctx, eng, created)
	require.NoError(t, err)
	require.Equal(t, "new@example.org", addr)

	configured, err := eng.IsConfigured(ctx, created)
	require.NoError(t, err)
	require.False(t, configured)
}

func TestChatTypeAcceptsBothWireForms(t *testing.T) {
	tests := []struct {
		raw  string
		want engine.ChatType
	}{
		{`"Single"`, engine.ChatTypeSingle},
		{`"Group"`, engine.ChatTypeGroup},
		{`"Mailinglist"`, engine.ChatTypeMailingList},
		{`"OutBroadcast"`, engine.ChatTypeBroadcast},
		{`100`, engine.ChatTypeSingle},
		{`120`, engine.ChatTypeGroup},
		{`140`, engine.ChatTypeMailingList},
		{`160`, engine.ChatTypeBroadcast},
		{`7`, engine.ChatType("7")},
	}
	for _, tt := range tests {
		var chat engine.BasicChat
		require.NoError(t, json.Unmarshal([]byte(`{"id":12,"chatType":`+tt.raw+`}`), &chat), tt.raw)
		require.Equal(t, tt.want, chat.ChatType, tt.raw)
	}

	var bad engine.ChatType
	require.Error(t, json.Unmarshal([]byte(`{}`), &bad))
}

func TestEventKindNames(t *testing.T) {
	require.Equal(t, "IncomingMsg", engine.EventIncomingMsg.String())
	require.Equal(t, engine.EventMsgsNoticed, engine.ParseEventKind("MsgsNoticed"))
	require.Equal(t, engine.EventUnknown, engine.ParseEventKind("ImapConnected"))
	require.Equal(t, "Unknown", engine.EventKind(99).String())
}

func TestVisibleChat(t *testing.T) {
	require.False(t, engine.VisibleChat(engine.ChatLastSpecial))
	require.True(t, engine.VisibleChat(engine.ChatLastSpecial+1))
}
