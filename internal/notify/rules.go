// Package notify decides which incoming messages deserve a desktop
// notification and delivers them.
package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/curseddelta/curseddelta/internal/engine"
	"github.com/curseddelta/curseddelta/internal/textutil"
)

const (
	maxSenderWidth  = 40
	maxBodyWidth    = 2000
	maxAccountWidth = 30
	maxChatsListed  = 3
)

// Notification is one desktop notification.
type Notification struct {
	// App names the sending account.
	App   string
	Title string
	Body  string
}

// SelfName is the name other people use to mention the account owner.
func SelfName(ctx context.Context, eng engine.Engine, acc int) (string, error) {
	name, err := eng.GetConfig(ctx, acc, "displayname")
	if err != nil {
		return "", err
	}
	if name != "" {
		return name, nil
	}
	return engine.AccountAddress(ctx, eng, acc)
}

// ShouldNotify reports whether msg should raise a notification. Info and
// system messages never do. Messages in muted chats only do when they are
// group messages quoting the account owner or mentioning @name.
func ShouldNotify(ctx context.Context, eng engine.Engine, acc int, msg engine.Message) (bool, error) {
	if msg.IsInfo || isSystemMessage(msg) || msg.FromID == engine.ContactSelf {
		return false, nil
	}
	chat, err := eng.GetBasicChatInfo(ctx, acc, msg.ChatID)
	if err != nil {
		return false, fmt.Errorf("chat %d: %w", msg.ChatID, err)
	}
	if !chat.IsMuted {
		return true, nil
	}
	if !chat.ChatType.IsMultiUser() {
		return false, nil
	}
	return MentionsSelf(ctx, eng, acc, msg)
}

// MentionsSelf reports whether msg quotes a message of the account owner or
// contains @name for the owner's name.
func MentionsSelf(ctx context.Context, eng engine.Engine, acc int, msg engine.Message) (bool, error) {
	if msg.Quote.HasMessage() {
		quoted, err := eng.GetMessage(ctx, acc, msg.Quote.MessageID)
		if err == nil && quoted.FromID == engine.ContactSelf {
			return true, nil
		}
	}
	self, err := SelfName(ctx, eng, acc)
	if err != nil {
		return false, err
	}
	return self != "" && strings.Contains(msg.Text, "@"+self), nil
}

func isSystemMessage(msg engine.Message) bool {
	return msg.SystemMessageType != "" && msg.SystemMessageType != "Unknown"
}

// Format turns a batch of messages into notifications: one per message
// when they all belong to the same chat, otherwise a single summary.
func Format(ctx context.Context, eng engine.Engine, acc int, msgs []engine.Message) ([]Notification, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	addr, err := engine.AccountAddress(ctx, eng, acc)
	if err != nil {
		return nil, err
	}
	app := textutil.Shorten(addr, maxAccountWidth, textutil.Ellipsis)

	chats := make(map[int]engine.BasicChat)
	for _, msg := range msgs {
		if _, ok := chats[msg.ChatID]; ok {
			continue
		}
		chat, err := eng.GetBasicChatInfo(ctx, acc, msg.ChatID)
		if err != nil {
			return nil, fmt.Errorf("chat %d: %w", msg.ChatID, err)
		}
		chats[msg.ChatID] = chat
	}

	if len(chats) == 1 {
		out := make([]Notification, 0, len(msgs))
		for _, msg := range msgs {
			chat := chats[msg.ChatID]
			body := textutil.Shorten(msg.Text, maxBodyWidth, textutil.Ellipsis)
			if chat.ChatType.IsMultiUser() {
				body = textutil.Shorten(msg.SenderName(), maxSenderWidth, textutil.Ellipsis) + ": " + body
			}
			out = append(out, Notification{App: app, Title: chat.Name, Body: body})
		}
		return out, nil
	}

	names := make([]string, 0, len(chats))
	for _, chat := range chats {
		names = append(names, chat.Name)
	}
	sort.Strings(names)
	listed := names
	if len(listed) > maxChatsListed {
		listed = listed[:maxChatsListed]
	}
	body := "in " + strings.Join(listed, ", ")
	if extra := len(names) - len(listed); extra > 0 {
		body += fmt.Sprintf(" and %d more", extra)
	}
	return []Notification{{
		App:   app,
		Title: fmt.Sprintf("%d new messages", len(msgs)),
		Body:  body,
	}}, nil
}
