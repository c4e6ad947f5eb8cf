package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/curseddelta/curseddelta/internal/engine"
)

// ChatSpec describes a chat to create.
type ChatSpec struct {
	Name           string
	Type           engine.ChatType
	Members        []int
	Protected      bool
	Muted          bool
	Pinned         bool
	ContactRequest bool
	SelfTalk       bool
	DeviceChat     bool
	Color          string
}

// CreateContact adds a contact to the account's address book.
func (e *Engine) CreateContact(ctx context.Context, acc int, addr, name string) (int, error) {
	if err := e.requireAccount(ctx, acc); err != nil {
		return 0, err
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return 0, errors.New("contact address is required")
	}
	var id int
	err := e.transaction(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = nextID(ctx, tx, "contacts", acc, engine.ContactLastSpecial)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO contacts (account_id, id, address, display_name) VALUES (?, ?, ?, ?)
		`, acc, id, addr, name)
		if err != nil {
			return fmt.Errorf("failed to insert contact: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.emit(engine.Event{Account: acc, Kind: engine.EventContactsChanged})
	return id, nil
}

// CreateChat adds a chat. The account itself is always a member unless the
// chat is the device chat.
func (e *Engine) CreateChat(ctx context.Context, acc int, spec ChatSpec) (int, error) {
	if err := e.requireAccount(ctx, acc); err != nil {
		return 0, err
	}
	if spec.Type == "" {
		spec.Type = engine.ChatTypeSingle
	}
	members := spec.Members
	if !spec.DeviceChat && spec.Type.IsMultiUser() {
		members = append([]int{engine.ContactSelf}, members...)
	}

	var id int
	err := e.transaction(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = nextID(ctx, tx, "chats", acc, engine.ChatLastSpecial)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO chats (account_id, id, name, chat_type, color, is_protected, is_device,
				is_self_talk, is_muted, is_contact_request, is_pinned, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, acc, id, spec.Name, string(spec.Type), spec.Color,
			boolToInt(spec.Protected), boolToInt(spec.DeviceChat), boolToInt(spec.SelfTalk),
			boolToInt(spec.Muted), boolToInt(spec.ContactRequest), boolToInt(spec.Pinned),
			time.Now().Unix())
		if err != nil {
			return fmt.Errorf("failed to insert chat: %w", err)
		}
		seen := make(map[int]bool, len(members))
		for _, contact := range members {
			if seen[contact] {
				continue
			}
			seen[contact] = true
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO chat_members (account_id, chat_id, contact_id) VALUES (?, ?, ?)
			`, acc, id, contact); err != nil {
				return fmt.Errorf("failed to add chat member: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.emit(engine.Event{Account: acc, Kind: engine.EventChatModified, ChatID: id})
	return id, nil
}

// SetChatMuted changes the muted flag of a chat.
func (e *Engine) SetChatMuted(ctx context.Context, acc, chatID int, muted bool) error {
	return e.updateChat(ctx, acc, chatID, `UPDATE chats SET is_muted = ? WHERE account_id = ? AND id = ?`, boolToInt(muted))
}

// LeaveChat removes the account from a group so later sends fail.
func (e *Engine) LeaveChat(ctx context.Context, acc, chatID int) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	res, err := e.db.ExecContext(ctx, `
		DELETE FROM chat_members WHERE account_id = ? AND chat_id = ? AND contact_id = ?
	`, acc, chatID, engine.ContactSelf)
	if err != nil {
		return fmt.Errorf("failed to leave chat: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("chat %d: %w", chatID, engine.ErrNotMember)
	}
	e.emit(engine.Event{Account: acc, Kind: engine.EventChatModified, ChatID: chatID})
	return nil
}

func (e *Engine) AcceptChat(ctx context.Context, acc, chatID int) error {
	return e.updateChat(ctx, acc, chatID, `UPDATE chats SET is_contact_request = ? WHERE account_id = ? AND id = ?`, 0)
}

func (e *Engine) updateChat(ctx context.Context, acc, chatID int, query string, value any) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	res, err := e.db.ExecContext(ctx, query, value, acc, chatID)
	if err != nil {
		return fmt.Errorf("failed to update chat: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("chat %d: %w", chatID, engine.ErrNotFound)
	}
	e.emit(engine.Event{Account: acc, Kind: engine.EventChatModified, ChatID: chatID})
	return nil
}

func (e *Engine) MarkNoticedChat(ctx context.Context, acc, chatID int) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	res, err := e.db.ExecContext(ctx, `
		UPDATE messages SET state = ? WHERE account_id = ? AND chat_id = ? AND state = ?
	`, engine.MessageStateInNoticed, acc, chatID, engine.MessageStateInFresh)
	if err != nil {
		return fmt.Errorf("failed to mark chat noticed: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		e.emit(engine.Event{Account: acc, Kind: engine.EventMsgsNoticed, ChatID: chatID})
	}
	return nil
}

func (e *Engine) GetChatlistEntries(ctx context.Context, acc int, flags engine.ChatlistFlags, query string) ([]int, error) {
	if err := e.requireAccount(ctx, acc); err != nil {
		return nil, err
	}
	archived := 0
	if flags&engine.ChatlistArchivedOnly != 0 {
		archived = 1
	}
	sqlQuery := `
		SELECT c.id FROM chats c
		LEFT JOIN (
			SELECT chat_id, MAX(timestamp) AS ts FROM messages WHERE account_id = ? GROUP BY chat_id
		) m ON m.chat_id = c.id
		WHERE c.account_id = ? AND c.id > ? AND c.is_archived = ?`
	args := []any{acc, acc, engine.ChatLastSpecial, archived}
	if q := strings.TrimSpace(query); q != "" {
		sqlQuery += ` AND c.name LIKE ?`
		args = append(args, "%"+q+"%")
	}
	sqlQuery += ` ORDER BY c.is_pinned DESC, COALESCE(m.ts, c.created_at) DESC, c.id DESC`
	return e.queryIDs(ctx, sqlQuery, args...)
}

func (e *Engine) GetChatlistItems(ctx context.Context, acc int, chatIDs []int) (map[int]engine.ChatlistItem, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	items := make(map[int]engine.ChatlistItem, len(chatIDs))
	for _, id := range chatIDs {
		chat, err := e.GetBasicChatInfo(ctx, acc, id)
		if errors.Is(err, engine.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		item := engine.ChatlistItem{
			ID:               chat.ID,
			Name:             chat.Name,
			Color:            chat.Color,
			IsSelfTalk:       chat.IsSelfTalk,
			IsDeviceTalk:     chat.IsDeviceChat,
			IsMuted:          chat.IsMuted,
			IsContactRequest: chat.IsContactRequest,
		}
		var pinned int
		err = e.db.QueryRowContext(ctx, `
			SELECT is_pinned,
				(SELECT COUNT(*) FROM messages WHERE account_id = ? AND chat_id = ? AND state = ?)
			FROM chats WHERE account_id = ? AND id = ?
		`, acc, id, engine.MessageStateInFresh, acc, id).Scan(&pinned, &item.FreshMessageCounter)
		if err != nil {
			return nil, fmt.Errorf("failed to read chat %d summary: %w", id, err)
		}
		item.IsPinned = pinned == 1

		var text, sender string
		var fromID int
		err = e.db.QueryRowContext(ctx, `
			SELECT m.text, m.from_id, COALESCE(c.display_name, '') FROM messages m
			LEFT JOIN contacts c ON c.account_id = m.account_id AND c.id = m.from_id
			WHERE m.account_id = ? AND m.chat_id = ?
			ORDER BY m.timestamp DESC, m.id DESC LIMIT 1
		`, acc, id).Scan(&text, &fromID, &sender)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return nil, fmt.Errorf("failed to read chat %d last message: %w", id, err)
		default:
			item.SummaryText2 = text
			if fromID == engine.ContactSelf {
				item.SummaryText1 = "Me"
			} else if chat.ChatType.IsMultiUser() {
				item.SummaryText1 = sender
			}
		}

		if chat.ChatType == engine.ChatTypeSingle {
			members, err := e.GetChatContacts(ctx, acc, id)
			if err != nil {
				return nil, err
			}
			if len(members) == 1 {
				peer := members[0]
				item.DMChatContact = &peer
			}
		}
		items[id] = item
	}
	return items, nil
}

func (e *Engine) GetBasicChatInfo(ctx context.Context, acc, chatID int) (engine.BasicChat, error) {
	if err := e.checkOpen(); err != nil {
		return engine.BasicChat{}, err
	}
	var chat engine.BasicChat
	var chatType string
	var protected, device, selfTalk, muted, request int
	err := e.db.QueryRowContext(ctx, `
		SELECT id, name, chat_type, color, is_protected, is_device, is_self_talk, is_muted, is_contact_request
		FROM chats WHERE account_id = ? AND id = ?
	`, acc, chatID).Scan(&chat.ID, &chat.Name, &chatType, &chat.Color, &protected, &device, &selfTalk, &muted, &request)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.BasicChat{}, fmt.Errorf("chat %d: %w", chatID, engine.ErrNotFound)
	}
	if err != nil {
		return engine.BasicChat{}, fmt.Errorf("failed to read chat %d: %w", chatID, err)
	}
	chat.ChatType = engine.ChatType(chatType)
	chat.IsProtected = protected == 1
	chat.IsDeviceChat = device == 1
	chat.IsSelfTalk = selfTalk == 1
	chat.IsMuted = muted == 1
	chat.IsContactRequest = request == 1
	return chat, nil
}

func (e *Engine) GetChatContacts(ctx context.Context, acc, chatID int) ([]int, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	return e.queryIDs(ctx, `
		SELECT contact_id FROM chat_members WHERE account_id = ? AND chat_id = ? ORDER BY contact_id
	`, acc, chatID)
}

func (e *Engine) GetContact(ctx context.Context, acc, contactID int) (engine.Contact, error) {
	if err := e.checkOpen(); err != nil {
		return engine.Contact{}, err
	}
	c := engine.Contact{ID: contactID}
	err := e.db.QueryRowContext(ctx, `
		SELECT address, display_name, color FROM contacts WHERE account_id = ? AND id = ?
	`, acc, contactID).Scan(&c.Address, &c.DisplayName, &c.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Contact{}, fmt.Errorf("contact %d: %w", contactID, engine.ErrNotFound)
	}
	if err != nil {
		return engine.Contact{}, fmt.Errorf("failed to read contact %d: %w", contactID, err)
	}
	c.Name = c.DisplayName
	if c.DisplayName == "" {
		c.DisplayName = c.Address
	}
	return c, nil
}
