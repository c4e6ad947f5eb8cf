// Package eventcenter turns engine events into UI refresh signals and
// desktop notifications.
package eventcenter

import "slices"

// SignalKind identifies what part of the UI needs a refresh.
type SignalKind int

const (
	// ChatlistChanged means the set, order or summaries of chats changed.
	ChatlistChanged SignalKind = iota + 1
	// ChatChanged means one chat's metadata changed.
	ChatChanged
	// MessagesChanged means the open conversation may be stale.
	MessagesChanged
)

func (k SignalKind) String() string {
	switch k {
	case ChatlistChanged:
		return "chatlist_changed"
	case ChatChanged:
		return "chat_changed"
	case MessagesChanged:
		return "messages_changed"
	default:
		return "unknown"
	}
}

// Signal is published to subscribers. ChatID and MsgID come from the engine
// event that caused it; throttled signals carry the most recent one.
type Signal struct {
	Kind    SignalKind
	Account int
	ChatID  int
	MsgID   int
}

// Handler is invoked for every signal matching a subscription.
type Handler func(Signal)

// Filter selects signals for a subscription.
type Filter struct {
	// Kinds filters by signal kind (nil = all kinds).
	Kinds []SignalKind

	// Account filters to one account (0 = all).
	Account int
}

// Matches reports whether sig passes the filter.
func (f Filter) Matches(sig Signal) bool {
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, sig.Kind) {
		return false
	}
	if f.Account != 0 && sig.Account != f.Account {
		return false
	}
	return true
}

// Errors for subscription management.
var (
	ErrInvalidSubscriptionID = &Error{Message: "subscription ID is required"}
	ErrNilHandler            = &Error{Message: "handler cannot be nil"}
	ErrSubscriptionExists    = &Error{Message: "subscription with this ID already exists"}
	ErrSubscriptionNotFound  = &Error{Message: "subscription not found"}
)

// Error represents an error from subscription management.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
