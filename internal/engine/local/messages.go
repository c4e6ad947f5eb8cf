package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/curseddelta/curseddelta/internal/engine"
)

// Incoming describes a message received from another contact.
type Incoming struct {
	ChatID     int
	FromID     int
	Text       string
	QuoteID    int
	Info       bool
	Encrypted  bool
	Timestamp  time.Time
	SenderName string
}

func (e *Engine) GetMessageListItems(ctx context.Context, acc, chatID int) ([]engine.MessageListItem, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := e.db.QueryContext(ctx, `
		SELECT id, timestamp FROM messages WHERE account_id = ? AND chat_id = ?
		ORDER BY timestamp, id
	`, acc, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	items := []engine.MessageListItem{}
	var lastDay time.Time
	for rows.Next() {
		var id int
		var ts int64
		if err := rows.Scan(&id, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		day := startOfDay(time.Unix(ts, 0))
		if !day.Equal(lastDay) {
			lastDay = day
			items = append(items, engine.MessageListItem{Kind: engine.ItemDayMarker, Timestamp: day.Unix()})
		}
		items = append(items, engine.MessageListItem{Kind: engine.ItemMessage, MsgID: id})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return items, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func (e *Engine) GetMessage(ctx context.Context, acc, msgID int) (engine.Message, error) {
	if err := e.checkOpen(); err != nil {
		return engine.Message{}, err
	}
	msg := engine.Message{ID: msgID}
	var info, padlock int
	var quoteID sql.NullInt64
	err := e.db.QueryRowContext(ctx, `
		SELECT chat_id, from_id, text, timestamp, state, is_info, show_padlock, file_name,
			override_sender_name, quote_id
		FROM messages WHERE account_id = ? AND id = ?
	`, acc, msgID).Scan(&msg.ChatID, &msg.FromID, &msg.Text, &msg.Timestamp, &msg.State,
		&info, &padlock, &msg.FileName, &msg.OverrideSenderName, &quoteID)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Message{}, fmt.Errorf("message %d: %w", msgID, engine.ErrNotFound)
	}
	if err != nil {
		return engine.Message{}, fmt.Errorf("failed to read message %d: %w", msgID, err)
	}
	msg.IsInfo = info == 1
	msg.ShowPadlock = padlock == 1

	sender, err := e.GetContact(ctx, acc, msg.FromID)
	if err != nil && !errors.Is(err, engine.ErrNotFound) {
		return engine.Message{}, err
	}
	msg.Sender = sender

	if quoteID.Valid {
		quoted, err := e.GetMessage(ctx, acc, int(quoteID.Int64))
		switch {
		case errors.Is(err, engine.ErrNotFound):
			msg.Quote = &engine.Quote{Kind: "JustText", Text: "[deleted message]"}
		case err != nil:
			return engine.Message{}, err
		default:
			msg.Quote = &engine.Quote{
				Kind:               "WithMessage",
				Text:               quoted.Text,
				MessageID:          quoted.ID,
				AuthorDisplayName:  quoted.Sender.DisplayName,
				AuthorDisplayColor: quoted.Sender.Color,
				OverrideSenderName: quoted.OverrideSenderName,
			}
		}
	}
	return msg, nil
}

func (e *Engine) GetFreshMessages(ctx context.Context, acc int) ([]int, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	return e.queryIDs(ctx, `
		SELECT m.id FROM messages m
		JOIN chats c ON c.account_id = m.account_id AND c.id = m.chat_id
		WHERE m.account_id = ? AND m.state = ? AND c.is_muted = 0 AND c.id > ?
		ORDER BY m.timestamp, m.id
	`, acc, engine.MessageStateInFresh, engine.ChatLastSpecial)
}

// MarkSeenMessages moves incoming messages to the seen state and reports
// the chats whose unread counters changed.
func (e *Engine) MarkSeenMessages(ctx context.Context, acc int, msgs []int) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(msgs)), ",")
	args := make([]any, 0, len(msgs)+3)
	args = append(args, acc, engine.MessageStateInFresh, engine.MessageStateInSeen)
	for _, id := range msgs {
		args = append(args, id)
	}

	var chats []int
	err := e.transaction(ctx, func(tx *sql.Tx) error {
		chats = chats[:0]
		rows, err := tx.QueryContext(ctx, fmt.Sprintf(`
			SELECT DISTINCT chat_id FROM messages
			WHERE account_id = ? AND state >= ? AND state < ? AND id IN (%s)
		`, placeholders), args...)
		if err != nil {
			return fmt.Errorf("failed to find unseen messages: %w", err)
		}
		for rows.Next() {
			var chat int
			if err := rows.Scan(&chat); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan chat id: %w", err)
			}
			chats = append(chats, chat)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to iterate unseen messages: %w", err)
		}

		updateArgs := append([]any{engine.MessageStateInSeen}, args...)
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
			UPDATE messages SET state = ?
			WHERE account_id = ? AND state >= ? AND state < ? AND id IN (%s)
		`, placeholders), updateArgs...); err != nil {
			return fmt.Errorf("failed to mark messages seen: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, chat := range chats {
		e.emit(engine.Event{Account: acc, Kind: engine.EventMsgsNoticed, ChatID: chat})
	}
	return nil
}

// SendText stores an outgoing message. Without a transport it is reported
// delivered right away.
func (e *Engine) SendText(ctx context.Context, acc, chatID int, text string) (int, error) {
	chat, err := e.GetBasicChatInfo(ctx, acc, chatID)
	if err != nil {
		return 0, err
	}
	if chat.IsDeviceChat {
		return 0, fmt.Errorf("chat %d is read-only: %w", chatID, engine.ErrNotMember)
	}
	if chat.ChatType.IsMultiUser() {
		members, err := e.GetChatContacts(ctx, acc, chatID)
		if err != nil {
			return 0, err
		}
		if !slices.Contains(members, engine.ContactSelf) {
			return 0, fmt.Errorf("chat %d: %w", chatID, engine.ErrNotMember)
		}
	}

	id, err := e.insertMessage(ctx, acc, engine.Message{
		ChatID:      chatID,
		FromID:      engine.ContactSelf,
		Text:        text,
		Timestamp:   time.Now().Unix(),
		State:       engine.MessageStateOutPending,
		ShowPadlock: chat.IsProtected,
	}, 0)
	if err != nil {
		return 0, err
	}
	e.emit(engine.Event{Account: acc, Kind: engine.EventMsgsChanged, ChatID: chatID, MsgID: id})

	if _, err := e.db.ExecContext(ctx, `
		UPDATE messages SET state = ? WHERE account_id = ? AND id = ?
	`, engine.MessageStateOutDelivered, acc, id); err != nil {
		e.emit(engine.Event{Account: acc, Kind: engine.EventMsgFailed, ChatID: chatID, MsgID: id})
		return id, fmt.Errorf("failed to mark message delivered: %w", err)
	}
	e.emit(engine.Event{Account: acc, Kind: engine.EventMsgDelivered, ChatID: chatID, MsgID: id})
	return id, nil
}

// Deliver stores a message as if it had arrived from another contact and
// emits IncomingMsg.
func (e *Engine) Deliver(ctx context.Context, acc int, in Incoming) (int, error) {
	if _, err := e.GetBasicChatInfo(ctx, acc, in.ChatID); err != nil {
		return 0, err
	}
	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	id, err := e.insertMessage(ctx, acc, engine.Message{
		ChatID:             in.ChatID,
		FromID:             in.FromID,
		Text:               in.Text,
		Timestamp:          ts.Unix(),
		State:              engine.MessageStateInFresh,
		IsInfo:             in.Info,
		ShowPadlock:        in.Encrypted,
		OverrideSenderName: in.SenderName,
	}, in.QuoteID)
	if err != nil {
		return 0, err
	}
	if in.Info {
		e.emit(engine.Event{Account: acc, Kind: engine.EventMsgsChanged, ChatID: in.ChatID, MsgID: id})
	} else {
		e.emit(engine.Event{Account: acc, Kind: engine.EventIncomingMsg, ChatID: in.ChatID, MsgID: id})
	}
	return id, nil
}

func (e *Engine) insertMessage(ctx context.Context, acc int, msg engine.Message, quoteID int) (int, error) {
	var quote any
	if quoteID > 0 {
		quote = quoteID
	}
	var id int
	err := e.transaction(ctx, func(tx *sql.Tx) error {
		var err error
		id, err = nextID(ctx, tx, "messages", acc, engine.ChatLastSpecial)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO messages (account_id, id, chat_id, from_id, text, timestamp, state, is_info,
				show_padlock, override_sender_name, quote_id, rfc724_mid)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, acc, id, msg.ChatID, msg.FromID, msg.Text, msg.Timestamp, msg.State,
			boolToInt(msg.IsInfo), boolToInt(msg.ShowPadlock), msg.OverrideSenderName, quote,
			"Mr."+uuid.NewString()+"@localhost")
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}
