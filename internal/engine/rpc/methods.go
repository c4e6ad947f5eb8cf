package rpc

import (
	"context"

	"github.com/curseddelta/curseddelta/internal/engine"
)

func (c *Client) GetAllAccountIDs(ctx context.Context) ([]int, error) {
	var ids []int
	err := c.Call(ctx, "get_all_account_ids", &ids)
	return ids, err
}

func (c *Client) GetSelectedAccountID(ctx context.Context) (int, error) {
	var id *int
	if err := c.Call(ctx, "get_selected_account_id", &id); err != nil || id == nil {
		return 0, err
	}
	return *id, nil
}

func (c *Client) SelectAccount(ctx context.Context, acc int) error {
	return c.Call(ctx, "select_account", nil, acc)
}

func (c *Client) AddAccount(ctx context.Context) (int, error) {
	var id int
	err := c.Call(ctx, "add_account", &id)
	return id, err
}

func (c *Client) IsConfigured(ctx context.Context, acc int) (bool, error) {
	var ok bool
	err := c.Call(ctx, "is_configured", &ok, acc)
	return ok, err
}

func (c *Client) GetConfig(ctx context.Context, acc int, key string) (string, error) {
	var value *string
	if err := c.Call(ctx, "get_config", &value, acc, key); err != nil || value == nil {
		return "", err
	}
	return *value, nil
}

func (c *Client) SetConfig(ctx context.Context, acc int, key, value string) error {
	return c.Call(ctx, "set_config", nil, acc, key, value)
}

func (c *Client) Configure(ctx context.Context, acc int) error {
	return c.Call(ctx, "configure", nil, acc)
}

func (c *Client) StartIO(ctx context.Context, acc int) error {
	return c.Call(ctx, "start_io", nil, acc)
}

func (c *Client) GetChatlistEntries(ctx context.Context, acc int, flags engine.ChatlistFlags, query string) ([]int, error) {
	var q any
	if query != "" {
		q = query
	}
	var ids []int
	err := c.Call(ctx, "get_chatlist_entries", &ids, acc, int(flags), q, nil)
	return ids, err
}

type chatlistFetchResult struct {
	Kind string `json:"kind"`
	engine.ChatlistItem
}

func (c *Client) GetChatlistItems(ctx context.Context, acc int, chatIDs []int) (map[int]engine.ChatlistItem, error) {
	var raw map[int]chatlistFetchResult
	if err := c.Call(ctx, "get_chatlist_items_by_entries", &raw, acc, chatIDs); err != nil {
		return nil, err
	}
	items := make(map[int]engine.ChatlistItem, len(raw))
	for id, res := range raw {
		if res.Kind != "ChatListItem" {
			continue
		}
		items[id] = res.ChatlistItem
	}
	return items, nil
}

func (c *Client) GetBasicChatInfo(ctx context.Context, acc, chat int) (engine.BasicChat, error) {
	var info engine.BasicChat
	err := c.Call(ctx, "get_basic_chat_info", &info, acc, chat)
	return info, err
}

func (c *Client) GetChatContacts(ctx context.Context, acc, chat int) ([]int, error) {
	var ids []int
	err := c.Call(ctx, "get_chat_contacts", &ids, acc, chat)
	return ids, err
}

func (c *Client) AcceptChat(ctx context.Context, acc, chat int) error {
	return c.Call(ctx, "accept_chat", nil, acc, chat)
}

func (c *Client) MarkNoticedChat(ctx context.Context, acc, chat int) error {
	return c.Call(ctx, "marknoticed_chat", nil, acc, chat)
}

func (c *Client) GetContact(ctx context.Context, acc, contact int) (engine.Contact, error) {
	var out engine.Contact
	err := c.Call(ctx, "get_contact", &out, acc, contact)
	return out, err
}

func (c *Client) GetMessageListItems(ctx context.Context, acc, chat int) ([]engine.MessageListItem, error) {
	var items []engine.MessageListItem
	err := c.Call(ctx, "get_message_list_items", &items, acc, chat, false, true)
	return items, err
}

func (c *Client) GetMessage(ctx context.Context, acc, msg int) (engine.Message, error) {
	var out engine.Message
	err := c.Call(ctx, "get_message", &out, acc, msg)
	return out, err
}

func (c *Client) GetFreshMessages(ctx context.Context, acc int) ([]int, error) {
	var ids []int
	err := c.Call(ctx, "get_fresh_msgs", &ids, acc)
	return ids, err
}

func (c *Client) MarkSeenMessages(ctx context.Context, acc int, msgs []int) error {
	return c.Call(ctx, "markseen_msgs", nil, acc, msgs)
}

func (c *Client) SendText(ctx context.Context, acc, chat int, text string) (int, error) {
	var id int
	err := c.Call(ctx, "misc_send_text_message", &id, acc, chat, text)
	return id, err
}
