// Package engine describes the messaging engine the client drives and the
// data it returns.
package engine

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when an account, chat, contact or message id
	// does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotConfigured is returned when an account has no working login.
	ErrNotConfigured = errors.New("account not configured")
	// ErrNotMember is returned when sending to a chat the account left.
	ErrNotMember = errors.New("not a member of the chat")
	// ErrClosed is returned by calls made after Close.
	ErrClosed = errors.New("engine closed")
)

// ConfigKeysOption is the read-only option listing the settable option
// names, separated by spaces.
const ConfigKeysOption = "sys.config_keys"

// ChatlistFlags narrows GetChatlistEntries.
type ChatlistFlags int

const (
	ChatlistArchivedOnly ChatlistFlags = 1 << iota
	ChatlistNoSpecials
	ChatlistAddAllDoneHint
	ChatlistForForwarding
)

// Engine is the messaging backend. Every call is scoped to an account id.
type Engine interface {
	GetAllAccountIDs(ctx context.Context) ([]int, error)
	GetSelectedAccountID(ctx context.Context) (int, error)
	SelectAccount(ctx context.Context, acc int) error
	AddAccount(ctx context.Context) (int, error)
	IsConfigured(ctx context.Context, acc int) (bool, error)
	GetConfig(ctx context.Context, acc int, key string) (string, error)
	SetConfig(ctx context.Context, acc int, key, value string) error
	Configure(ctx context.Context, acc int) error
	StartIO(ctx context.Context, acc int) error

	GetChatlistEntries(ctx context.Context, acc int, flags ChatlistFlags, query string) ([]int, error)
	GetChatlistItems(ctx context.Context, acc int, chatIDs []int) (map[int]ChatlistItem, error)
	GetBasicChatInfo(ctx context.Context, acc, chat int) (BasicChat, error)
	GetChatContacts(ctx context.Context, acc, chat int) ([]int, error)
	AcceptChat(ctx context.Context, acc, chat int) error
	MarkNoticedChat(ctx context.Context, acc, chat int) error

	GetContact(ctx context.Context, acc, contact int) (Contact, error)

	GetMessageListItems(ctx context.Context, acc, chat int) ([]MessageListItem, error)
	GetMessage(ctx context.Context, acc, msg int) (Message, error)
	GetFreshMessages(ctx context.Context, acc int) ([]int, error)
	MarkSeenMessages(ctx context.Context, acc int, msgs []int) error
	SendText(ctx context.Context, acc, chat int, text string) (int, error)

	Events() <-chan Event
	Close() error
}
