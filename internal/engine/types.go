package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Special contact ids reserved by the engine.
const (
	ContactSelf        = 1
	ContactInfo        = 2
	ContactDevice      = 5
	ContactLastSpecial = 9
)

// ChatLastSpecial is the highest chat id reserved for engine-internal chats.
// Those chats are never shown in the chat list.
const ChatLastSpecial = 9

// ChatType classifies a chat. The engine has used both integer and string
// encodings on the wire; ChatType accepts either.
type ChatType string

const (
	ChatTypeSingle      ChatType = "Single"
	ChatTypeGroup       ChatType = "Group"
	ChatTypeMailingList ChatType = "Mailinglist"
	ChatTypeBroadcast   ChatType = "Broadcast"
)

var legacyChatTypes = map[int]ChatType{
	100: ChatTypeSingle,
	120: ChatTypeGroup,
	140: ChatTypeMailingList,
	160: ChatTypeBroadcast,
}

// UnmarshalJSON decodes a chat type from its string or legacy numeric form.
func (c *ChatType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = normalizeChatType(s)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("chat type: %w", err)
	}
	if t, ok := legacyChatTypes[n]; ok {
		*c = t
		return nil
	}
	*c = ChatType(fmt.Sprintf("%d", n))
	return nil
}

func normalizeChatType(s string) ChatType {
	switch strings.ToLower(s) {
	case "single":
		return ChatTypeSingle
	case "group":
		return ChatTypeGroup
	case "mailinglist", "mailing_list":
		return ChatTypeMailingList
	case "broadcast", "outbroadcast", "inbroadcast":
		return ChatTypeBroadcast
	default:
		return ChatType(s)
	}
}

// IsMultiUser reports whether messages in the chat come from several people.
func (c ChatType) IsMultiUser() bool {
	switch c {
	case ChatTypeGroup, ChatTypeMailingList, ChatTypeBroadcast:
		return true
	}
	return false
}

// MessageState is the delivery state of a message.
type MessageState int

const (
	MessageStateUndefined    MessageState = 0
	MessageStateInFresh      MessageState = 10
	MessageStateInNoticed    MessageState = 13
	MessageStateInSeen       MessageState = 16
	MessageStateOutPreparing MessageState = 18
	MessageStateOutDraft     MessageState = 19
	MessageStateOutPending   MessageState = 20
	MessageStateOutFailed    MessageState = 24
	MessageStateOutDelivered MessageState = 26
	MessageStateOutMdnRcvd   MessageState = 28
)

// ChatlistItem is the summary row the engine returns for a chat list entry.
type ChatlistItem struct {
	ID                  int    `json:"id"`
	Name                string `json:"name"`
	Color               string `json:"color"`
	IsSelfTalk          bool   `json:"isSelfTalk"`
	IsDeviceTalk        bool   `json:"isDeviceTalk"`
	IsPinned            bool   `json:"isPinned"`
	IsMuted             bool   `json:"isMuted"`
	IsContactRequest    bool   `json:"isContactRequest"`
	DMChatContact       *int   `json:"dmChatContact"`
	FreshMessageCounter int    `json:"freshMessageCounter"`
	SummaryText1        string `json:"summaryText1"`
	SummaryText2        string `json:"summaryText2"`
}

// BasicChat holds chat metadata without its members.
type BasicChat struct {
	ID               int      `json:"id"`
	Name             string   `json:"name"`
	ChatType         ChatType `json:"chatType"`
	Color            string   `json:"color"`
	IsProtected      bool     `json:"isProtected"`
	IsDeviceChat     bool     `json:"isDeviceChat"`
	IsSelfTalk       bool     `json:"isSelfTalk"`
	IsMuted          bool     `json:"isMuted"`
	IsContactRequest bool     `json:"isContactRequest"`
	ProfileImage     string   `json:"profileImage"`
}

// Contact is a person known to an account.
type Contact struct {
	ID          int    `json:"id"`
	Address     string `json:"address"`
	DisplayName string `json:"displayName"`
	Name        string `json:"name"`
	Color       string `json:"color"`
}

// Quote is the message a reply refers to.
type Quote struct {
	Kind               string `json:"kind"`
	Text               string `json:"text"`
	MessageID          int    `json:"messageId"`
	AuthorDisplayName  string `json:"authorDisplayName"`
	AuthorDisplayColor string `json:"authorDisplayColor"`
	OverrideSenderName string `json:"overrideSenderName"`
}

// HasMessage reports whether the quoted message is still available.
func (q *Quote) HasMessage() bool {
	return q != nil && q.Kind == "WithMessage"
}

// Message is a single chat message.
type Message struct {
	ID                 int          `json:"id"`
	ChatID             int          `json:"chatId"`
	FromID             int          `json:"fromId"`
	Text               string       `json:"text"`
	Timestamp          int64        `json:"timestamp"`
	State              MessageState `json:"state"`
	IsInfo             bool         `json:"isInfo"`
	ShowPadlock        bool         `json:"showPadlock"`
	FileName           string       `json:"fileName"`
	OverrideSenderName string       `json:"overrideSenderName"`
	SystemMessageType  string       `json:"systemMessageType"`
	Sender             Contact      `json:"sender"`
	Quote              *Quote       `json:"quote"`
}

// SenderName returns the name to display for the message author.
func (m Message) SenderName() string {
	if m.OverrideSenderName != "" {
		return "~" + m.OverrideSenderName
	}
	if m.Sender.DisplayName != "" {
		return m.Sender.DisplayName
	}
	return m.Sender.Address
}

// MessageListItemKind distinguishes messages from day separators.
type MessageListItemKind string

const (
	ItemMessage   MessageListItemKind = "message"
	ItemDayMarker MessageListItemKind = "dayMarker"
)

// MessageListItem is one row of a conversation: a message or a day marker.
type MessageListItem struct {
	Kind      MessageListItemKind `json:"kind"`
	MsgID     int                 `json:"msg_id,omitempty"`
	Timestamp int64               `json:"timestamp,omitempty"`
}
