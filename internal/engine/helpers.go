package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Subtitle describes a chat for the status bar: member count for groups,
// the peer address for one-to-one chats.
func Subtitle(ctx context.Context, eng Engine, acc int, chat BasicChat) (string, error) {
	members, err := eng.GetChatContacts(ctx, acc, chat.ID)
	if err != nil {
		return "", fmt.Errorf("chat %d contacts: %w", chat.ID, err)
	}
	switch {
	case chat.ChatType == ChatTypeMailingList:
		return "Mailing List", nil
	case chat.ChatType == ChatTypeBroadcast:
		return plural(len(members), "recipient"), nil
	case chat.ChatType.IsMultiUser():
		return plural(len(members), "member"), nil
	case len(members) == 0:
		return "", nil
	case chat.IsSelfTalk:
		return "Messages I sent to myself", nil
	case chat.IsDeviceChat:
		return "Locally generated messages", nil
	}
	peer, err := eng.GetContact(ctx, acc, members[0])
	if err != nil {
		return "", fmt.Errorf("contact %d: %w", members[0], err)
	}
	return peer.Address, nil
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// AccountAddress returns the configured address of acc, falling back to the
// address set before configuration finished.
func AccountAddress(ctx context.Context, eng Engine, acc int) (string, error) {
	for _, key := range []string{"configured_addr", "addr"} {
		addr, err := eng.GetConfig(ctx, acc, key)
		if err != nil {
			return "", fmt.Errorf("account %d %s: %w", acc, key, err)
		}
		if addr != "" {
			return addr, nil
		}
	}
	return "", nil
}

// ResolveAccount finds an account by numeric id or address. An empty value
// selects the engine's current account.
func ResolveAccount(ctx context.Context, eng Engine, addrOrID string) (int, error) {
	ids, err := eng.GetAllAccountIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list accounts: %w", err)
	}
	addrOrID = strings.TrimSpace(addrOrID)
	if addrOrID == "" {
		if len(ids) == 0 {
			return 0, fmt.Errorf("no accounts: %w", ErrNotFound)
		}
		selected, err := eng.GetSelectedAccountID(ctx)
		if err == nil && selected != 0 {
			return selected, nil
		}
		return ids[0], nil
	}

	if n, convErr := strconv.Atoi(addrOrID); convErr == nil {
		for _, id := range ids {
			if id == n {
				return id, nil
			}
		}
		return 0, fmt.Errorf("account %d: %w", n, ErrNotFound)
	}

	for _, id := range ids {
		addr, err := AccountAddress(ctx, eng, id)
		if err != nil {
			return 0, err
		}
		if strings.EqualFold(addr, addrOrID) {
			return id, nil
		}
	}
	return 0, fmt.Errorf("account %q: %w", addrOrID, ErrNotFound)
}

// GetOrCreateAccount returns the account for addr, adding an unconfigured
// one when none matches.
func GetOrCreateAccount(ctx context.Context, eng Engine, addr string) (int, error) {
	acc, err := ResolveAccount(ctx, eng, addr)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, err
	}
	acc, err = eng.AddAccount(ctx)
	if err != nil {
		return 0, fmt.Errorf("add account: %w", err)
	}
	if err := eng.SetConfig(ctx, acc, "addr", addr); err != nil {
		return 0, fmt.Errorf("set address: %w", err)
	}
	return acc, nil
}

// VisibleChat reports whether a chat id belongs in the chat list.
func VisibleChat(id int) bool {
	return id > ChatLastSpecial
}
