package engine

// EventKind identifies an engine event.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventInfo
	EventWarning
	EventError
	EventChatModified
	EventContactsChanged
	EventIncomingMsg
	EventMsgsChanged
	EventMsgsNoticed
	EventMsgDelivered
	EventMsgFailed
	EventMsgRead
)

var eventKindNames = map[EventKind]string{
	EventUnknown:         "Unknown",
	EventInfo:            "Info",
	EventWarning:         "Warning",
	EventError:           "Error",
	EventChatModified:    "ChatModified",
	EventContactsChanged: "ContactsChanged",
	EventIncomingMsg:     "IncomingMsg",
	EventMsgsChanged:     "MsgsChanged",
	EventMsgsNoticed:     "MsgsNoticed",
	EventMsgDelivered:    "MsgDelivered",
	EventMsgFailed:       "MsgFailed",
	EventMsgRead:         "MsgRead",
}

func (k EventKind) String() string {
	if name, ok := eventKindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// ParseEventKind maps a wire event name to its kind.
func ParseEventKind(name string) EventKind {
	for kind, n := range eventKindNames {
		if n == name {
			return kind
		}
	}
	return EventUnknown
}

// Event is a notification emitted by the engine for one account.
type Event struct {
	Account int
	Kind    EventKind
	ChatID  int
	MsgID   int
	// Msg carries the text of Info, Warning and Error events.
	Msg string
	// Type is the raw wire name, kept for Unknown events.
	Type string
}
