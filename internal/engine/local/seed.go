package local

import (
	"context"
	"fmt"
	"time"

	"github.com/curseddelta/curseddelta/internal/engine"
)

// DemoAddress is the address of the account created by Seed.
const DemoAddress = "me@demo.local"

// Seed creates a configured demo account with a handful of chats and returns
// its id. Calling it again returns the existing demo account.
func (e *Engine) Seed(ctx context.Context) (int, error) {
	if acc, err := engine.ResolveAccount(ctx, e, DemoAddress); err == nil {
		return acc, nil
	}

	acc, err := e.AddAccount(ctx)
	if err != nil {
		return 0, err
	}
	for key, value := range map[string]string{
		"addr":        DemoAddress,
		"mail_pw":     "demo",
		"displayname": "Me",
	} {
		if err := e.SetConfig(ctx, acc, key, value); err != nil {
			return 0, err
		}
	}
	if err := e.Configure(ctx, acc); err != nil {
		return 0, err
	}

	alice, err := e.CreateContact(ctx, acc, "alice@demo.local", "Alice")
	if err != nil {
		return 0, err
	}
	bob, err := e.CreateContact(ctx, acc, "bob@demo.local", "Bob")
	if err != nil {
		return 0, err
	}
	carol, err := e.CreateContact(ctx, acc, "carol@demo.local", "Carol")
	if err != nil {
		return 0, err
	}

	start := time.Now().Add(-26 * time.Hour)
	at := func(minutes int) time.Time { return start.Add(time.Duration(minutes) * time.Minute) }

	device, err := e.CreateChat(ctx, acc, ChatSpec{Name: "Device Messages", DeviceChat: true, Members: []int{engine.ContactDevice}})
	if err != nil {
		return 0, err
	}
	saved, err := e.CreateChat(ctx, acc, ChatSpec{Name: "Saved Messages", SelfTalk: true, Protected: true, Members: []int{engine.ContactSelf}, Pinned: true})
	if err != nil {
		return 0, err
	}
	aliceChat, err := e.CreateChat(ctx, acc, ChatSpec{Name: "Alice", Protected: true, Members: []int{alice}})
	if err != nil {
		return 0, err
	}
	friends, err := e.CreateChat(ctx, acc, ChatSpec{Name: "Friends", Type: engine.ChatTypeGroup, Protected: true, Members: []int{alice, bob}})
	if err != nil {
		return 0, err
	}
	news, err := e.CreateChat(ctx, acc, ChatSpec{Name: "Release News", Type: engine.ChatTypeMailingList, Muted: true, Members: []int{carol}})
	if err != nil {
		return 0, err
	}
	carolChat, err := e.CreateChat(ctx, acc, ChatSpec{Name: "Carol", ContactRequest: true, Members: []int{carol}})
	if err != nil {
		return 0, err
	}

	script := []Incoming{
		{ChatID: device, FromID: engine.ContactDevice, Text: "Welcome to curseddelta. This account lives in a local database.", Timestamp: at(0)},
		{ChatID: aliceChat, FromID: alice, Text: "Hi! Did you get the files?", Encrypted: true, Timestamp: at(10)},
		{ChatID: friends, FromID: engine.ContactInfo, Text: "Alice created the group", Info: true, Timestamp: at(20)},
		{ChatID: friends, FromID: alice, Text: "Dinner on Friday?", Encrypted: true, Timestamp: at(21)},
		{ChatID: friends, FromID: bob, Text: "Count me in", Encrypted: true, Timestamp: at(24 * 60)},
		{ChatID: news, FromID: carol, Text: "Version 1.0 is out", Timestamp: at(25 * 60)},
		{ChatID: carolChat, FromID: carol, Text: "Hello, we met at the conference", Timestamp: at(25*60 + 30)},
	}
	for _, in := range script {
		if _, err := e.Deliver(ctx, acc, in); err != nil {
			return 0, fmt.Errorf("seed message: %w", err)
		}
	}
	if _, err := e.insertMessage(ctx, acc, engine.Message{
		ChatID:    saved,
		FromID:    engine.ContactSelf,
		Text:      "Notes to self: buy milk",
		Timestamp: at(30).Unix(),
		State:     engine.MessageStateOutDelivered,
	}, 0); err != nil {
		return 0, err
	}
	if err := e.SelectAccount(ctx, acc); err != nil {
		return 0, err
	}
	e.logger.Info().Int("account_id", acc).Msg("demo account seeded")
	return acc, nil
}
