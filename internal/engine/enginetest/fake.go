// Package enginetest provides an in-memory engine for tests.
package enginetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/curseddelta/curseddelta/internal/engine"
)

type chat struct {
	info    engine.BasicChat
	pinned  bool
	members []int
	msgs    []int
}

type account struct {
	config   map[string]string
	contacts map[int]engine.Contact
	chats    map[int]*chat
	messages map[int]*engine.Message

	nextContact int
	nextChat    int
	nextMsg     int
}

// Engine is a goroutine-safe in-memory engine.Engine. Tests populate it with
// AddContact, AddChat and AddMessage and inspect the recorded calls.
type Engine struct {
	mu       sync.Mutex
	accounts map[int]*account
	order    []int
	selected int
	nextAcc  int
	events   chan engine.Event
	closed   bool

	// SendErr, when set, is returned by SendText.
	SendErr error

	seen     [][]int
	accepted []int
	noticed  []int
	sent     []string
}

var _ engine.Engine = (*Engine)(nil)

// New returns an empty fake engine.
func New() *Engine {
	return &Engine{
		accounts: make(map[int]*account),
		nextAcc:  1,
		events:   make(chan engine.Event, 256),
	}
}

// NewAccount adds a configured account with the given address.
func (e *Engine) NewAccount(addr, displayName string) int {
	acc, _ := e.AddAccount(context.Background())
	e.mu.Lock()
	defer e.mu.Unlock()
	a := e.accounts[acc]
	a.config["addr"] = addr
	a.config["configured_addr"] = addr
	a.config["configured"] = "1"
	a.config["displayname"] = displayName
	a.contacts[engine.ContactSelf] = engine.Contact{
		ID:          engine.ContactSelf,
		Address:     addr,
		DisplayName: displayName,
		Name:        displayName,
	}
	return acc
}

// AddContact registers a contact and returns its id.
func (e *Engine) AddContact(acc int, addr, name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	a := e.mustAccount(acc)
	id := a.nextContact
	a.nextContact++
	a.contacts[id] = engine.Contact{ID: id, Address: addr, DisplayName: name, Name: name}
	return id
}

// AddChat registers a chat with the given members and returns its id.
func (e *Engine) AddChat(acc int, info engine.BasicChat, members ...int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	a := e.mustAccount(acc)
	id := a.nextChat
	a.nextChat++
	info.ID = id
	if info.ChatType == "" {
		info.ChatType = engine.ChatTypeSingle
	}
	a.chats[id] = &chat{info: info, members: append([]int(nil), members...)}
	return id
}

// PinChat marks a chat pinned so it sorts first.
func (e *Engine) PinChat(acc, chatID int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mustAccount(acc).chats[chatID].pinned = true
}

// SetMuted changes the muted flag of a chat.
func (e *Engine) SetMuted(acc, chatID int, muted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mustAccount(acc).chats[chatID].info.IsMuted = muted
}

// AddMessage stores msg in its chat and returns the assigned id. The sender
// is resolved from FromID when not set.
func (e *Engine) AddMessage(acc int, msg engine.Message) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addMessageLocked(e.mustAccount(acc), msg)
}

func (e *Engine) addMessageLocked(a *account, msg engine.Message) int {
	id := a.nextMsg
	a.nextMsg++
	msg.ID = id
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}
	if msg.Sender.ID == 0 {
		msg.Sender = a.contacts[msg.FromID]
	}
	a.messages[id] = &msg
	if c, ok := a.chats[msg.ChatID]; ok {
		c.msgs = append(c.msgs, id)
	}
	return id
}

// Emit queues an event for Events consumers.
func (e *Engine) Emit(ev engine.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.events <- ev
}

// Seen returns every MarkSeenMessages batch received so far.
func (e *Engine) Seen() [][]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]int, len(e.seen))
	copy(out, e.seen)
	return out
}

// Accepted returns the chats passed to AcceptChat.
func (e *Engine) Accepted() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.accepted...)
}

// Noticed returns the chats passed to MarkNoticedChat.
func (e *Engine) Noticed() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.noticed...)
}

// Sent returns the texts passed to SendText.
func (e *Engine) Sent() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.sent...)
}

func (e *Engine) mustAccount(acc int) *account {
	a, ok := e.accounts[acc]
	if !ok {
		panic(fmt.Sprintf("enginetest: unknown account %d", acc))
	}
	return a
}

func (e *Engine) account(acc int) (*account, error) {
	if e.closed {
		return nil, engine.ErrClosed
	}
	a, ok := e.accounts[acc]
	if !ok {
		return nil, fmt.Errorf("account %d: %w", acc, engine.ErrNotFound)
	}
	return a, nil
}

func (e *Engine) chat(acc, chatID int) (*account, *chat, error) {
	a, err := e.account(acc)
	if err != nil {
		return nil, nil, err
	}
	c, ok := a.chats[chatID]
	if !ok {
		return nil, nil, fmt.Errorf("chat %d: %w", chatID, engine.ErrNotFound)
	}
	return a, c, nil
}

func (e *Engine) GetAllAccountIDs(context.Context) ([]int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.order...), nil
}

func (e *Engine) GetSelectedAccountID(context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected, nil
}

func (e *Engine) SelectAccount(_ context.Context, acc int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.account(acc); err != nil {
		return err
	}
	e.selected = acc
	return nil
}

func (e *Engine) AddAccount(context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, engine.ErrClosed
	}
	id := e.nextAcc
	e.nextAcc++
	e.accounts[id] = &account{
		config:      make(map[string]string),
		contacts:    make(map[int]engine.Contact),
		chats:       make(map[int]*chat),
		messages:    make(map[int]*engine.Message),
		nextContact: engine.ContactLastSpecial + 1,
		nextChat:    engine.ChatLastSpecial + 1,
		nextMsg:     engine.ChatLastSpecial + 1,
	}
	e.order = append(e.order, id)
	if e.selected == 0 {
		e.selected = id
	}
	return id, nil
}

func (e *Engine) IsConfigured(_ context.Context, acc int) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, err := e.account(acc)
	if err != nil {
		return false, err
	}
	return a.config["configured"] == "1", nil
}

func (e *Engine) GetConfig(_ context.Context, acc int, key string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, err := e.account(acc)
	if err != nil {
		return "", err
	}
	return a.config[key], nil
}

func (e *Engine) SetConfig(_ context.Context, acc int, key, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, err := e.account(acc)
	if err != nil {
		return err
	}
	a.config[key] = value
	return nil
}

func (e *Engine) Configure(_ context.Context, acc int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, err := e.account(acc)
	if err != nil {
		return err
	}
	if a.config["addr"] == "" || a.config["mail_pw"] == "" {
		return fmt.Errorf("account %d: %w", acc, engine.ErrNotConfigured)
	}
	a.config["configured_addr"] = a.config["addr"]
	a.config["configured"] = "1"
	return nil
}

func (e *Engine) StartIO(_ context.Context, acc int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.account(acc)
	return err
}

func (e *Engine) GetChatlistEntries(_ context.Context, acc int, _ engine.ChatlistFlags, query string) ([]int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, err := e.account(acc)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(query)
	ids := make([]int, 0, len(a.chats))
	for id, c := range a.chats {
		if query != "" && !strings.Contains(strings.ToLower(c.info.Name), query) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ci, cj := a.chats[ids[i]], a.chats[ids[j]]
		if ci.pinned != cj.pinned {
			return ci.pinned
		}
		ti, tj := lastTimestamp(a, ci), lastTimestamp(a, cj)
		if ti != tj {
			return ti > tj
		}
		return ids[i] > ids[j]
	})
	return ids, nil
}

func lastTimestamp(a *account, c *chat) int64 {
	if len(c.msgs) == 0 {
		return 0
	}
	return a.messages[c.msgs[len(c.msgs)-1]].Timestamp
}

func (e *Engine) GetChatlistItems(_ context.Context, acc int, chatIDs []int) (map[int]engine.ChatlistItem, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, err := e.account(acc)
	if err != nil {
		return nil, err
	}
	items := make(map[int]engine.ChatlistItem, len(chatIDs))
	for _, id := range chatIDs {
		c, ok := a.chats[id]
		if !ok {
			continue
		}
		item := engine.ChatlistItem{
			ID:               id,
			Name:             c.info.Name,
			Color:            c.info.Color,
			IsSelfTalk:       c.info.IsSelfTalk,
			IsDeviceTalk:     c.info.IsDeviceChat,
			IsPinned:         c.pinned,
			IsMuted:          c.info.IsMuted,
			IsContactRequest: c.info.IsContactRequest,
		}
		for _, mid := range c.msgs {
			if a.messages[mid].State == engine.MessageStateInFresh {
				item.FreshMessageCounter++
			}
		}
		if n := len(c.msgs); n > 0 {
			item.SummaryText2 = a.messages[c.msgs[n-1]].Text
		}
		items[id] = item
	}
	return items, nil
}

func (e *Engine) GetBasicChatInfo(_ context.Context, acc, chatID int) (engine.BasicChat, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, c, err := e.chat(acc, chatID)
	if err != nil {
		return engine.BasicChat{}, err
	}
	return c.info, nil
}

func (e *Engine) GetChatContacts(_ context.Context, acc, chatID int) ([]int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, c, err := e.chat(acc, chatID)
	if err != nil {
		return nil, err
	}
	return append([]int(nil), c.members...), nil
}

func (e *Engine) AcceptChat(_ context.Context, acc, chatID int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, c, err := e.chat(acc, chatID)
	if err != nil {
		return err
	}
	c.info.IsContactRequest = false
	e.accepted = append(e.accepted, chatID)
	return nil
}

func (e *Engine) MarkNoticedChat(_ context.Context, acc, chatID int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, c, err := e.chat(acc, chatID)
	if err != nil {
		return err
	}
	for _, mid := range c.msgs {
		if m := a.messages[mid]; m.State == engine.MessageStateInFresh {
			m.State = engine.MessageStateInNoticed
		}
	}
	e.noticed = append(e.noticed, chatID)
	return nil
}

func (e *Engine) GetContact(_ context.Context, acc, contactID int) (engine.Contact, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, err := e.account(acc)
	if err != nil {
		return engine.Contact{}, err
	}
	c, ok := a.contacts[contactID]
	if !ok {
		return engine.Contact{}, fmt.Errorf("contact %d: %w", contactID, engine.ErrNotFound)
	}
	return c, nil
}

func (e *Engine) GetMessageListItems(_ context.Context, acc, chatID int) ([]engine.MessageListItem, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, c, err := e.chat(acc, chatID)
	if err != nil {
		return nil, err
	}
	var items []engine.MessageListItem
	var lastDay string
	for _, mid := range c.msgs {
		ts := a.messages[mid].Timestamp
		day := time.Unix(ts, 0).UTC().Format("2006-01-02")
		if day != lastDay {
			lastDay = day
			items = append(items, engine.MessageListItem{Kind: engine.ItemDayMarker, Timestamp: ts})
		}
		items = append(items, engine.MessageListItem{Kind: engine.ItemMessage, MsgID: mid})
	}
	return items, nil
}

func (e *Engine) GetMessage(_ context.Context, acc, msgID int) (engine.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, err := e.account(acc)
	if err != nil {
		return engine.Message{}, err
	}
	m, ok := a.messages[msgID]
	if !ok {
		return engine.Message{}, fmt.Errorf("message %d: %w", msgID, engine.ErrNotFound)
	}
	return *m, nil
}

func (e *Engine) GetFreshMessages(_ context.Context, acc int) ([]int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, err := e.account(acc)
	if err != nil {
		return nil, err
	}
	var ids []int
	for id, m := range a.messages {
		if m.State == engine.MessageStateInFresh {
			if c, ok := a.chats[m.ChatID]; ok && !c.info.IsMuted {
				ids = append(ids, id)
			}
		}
	}
	sort.Ints(ids)
	return ids, nil
}

func (e *Engine) MarkSeenMessages(_ context.Context, acc int, msgs []int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, err := e.account(acc)
	if err != nil {
		return err
	}
	for _, id := range msgs {
		if m, ok := a.messages[id]; ok && m.State < engine.MessageStateInSeen {
			m.State = engine.MessageStateInSeen
		}
	}
	e.seen = append(e.seen, append([]int(nil), msgs...))
	return nil
}

func (e *Engine) SendText(_ context.Context, acc, chatID int, text string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, _, err := e.chat(acc, chatID)
	if err != nil {
		return 0, err
	}
	if e.SendErr != nil {
		return 0, e.SendErr
	}
	e.sent = append(e.sent, text)
	id := e.addMessageLocked(a, engine.Message{
		ChatID: chatID,
		FromID: engine.ContactSelf,
		Text:   text,
		State:  engine.MessageStateOutPending,
	})
	return id, nil
}

func (e *Engine) Events() <-chan engine.Event {
	return e.events
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.events)
	}
	return nil
}
