package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/curseddelta/curseddelta/internal/engine"
	"github.com/curseddelta/curseddelta/internal/lazylist"
	"github.com/curseddelta/curseddelta/internal/textutil"
)

const engineTimeout = 5 * time.Second

// chatRow is the materialized chat list entry.
type chatRow struct {
	item engine.ChatlistItem
}

type chatListPane struct {
	eng   engine.Engine
	acc   int
	st    styles
	width int

	rows     *lazylist.List[int, chatRow]
	cursor   int
	offset   int
	selected int
}

func newChatListPane(eng engine.Engine, acc int, st styles, width, cacheSize int) *chatListPane {
	p := &chatListPane{eng: eng, acc: acc, st: st, width: width}
	p.rows = lazylist.New(nil, p.loadRow, lazylist.WithCacheSize(cacheSize))
	return p
}

func (p *chatListPane) loadRow(chatID int) (chatRow, error) {
	ctx, cancel := context.WithTimeout(context.Background(), engineTimeout)
	defer cancel()

	items, err := p.eng.GetChatlistItems(ctx, p.acc, []int{chatID})
	if err != nil {
		return chatRow{}, err
	}
	item, ok := items[chatID]
	if !ok {
		return chatRow{}, fmt.Errorf("chat %d: %w", chatID, engine.ErrNotFound)
	}
	return chatRow{item: item}, nil
}

// setEntries replaces the chat ids, keeping the cursor on the chat it was
// on. It reports whether the selected chat is gone.
func (p *chatListPane) setEntries(ids []int) (selectionLost bool) {
	cursorChat, hadCursor := p.rows.Key(p.cursor)

	p.rows.ClearCache()
	p.rows.SetKeys(ids)

	if hadCursor {
		if i := p.rows.Index(cursorChat); i >= 0 {
			p.cursor = i
		}
	}
	p.clampCursor()

	if p.selected != 0 && p.rows.Index(p.selected) < 0 {
		p.selected = 0
		return true
	}
	return false
}

func (p *chatListPane) clampCursor() {
	if p.cursor >= p.rows.Len() {
		p.cursor = p.rows.Len() - 1
	}
	if p.cursor < 0 {
		p.cursor = 0
	}
}

func (p *chatListPane) moveCursor(delta int) {
	p.cursor += delta
	p.clampCursor()
}

func (p *chatListPane) cursorChat() (int, bool) {
	return p.rows.Key(p.cursor)
}

func (p *chatListPane) selectAtCursor() (int, bool) {
	id, ok := p.cursorChat()
	if ok {
		p.selected = id
	}
	return id, ok
}

// step selects the chat delta positions away from the selected one,
// wrapping around both ends. Nothing happens without a selection.
func (p *chatListPane) step(delta int) (int, bool) {
	n := p.rows.Len()
	if p.selected == 0 || n == 0 {
		return 0, false
	}
	i := p.rows.Index(p.selected)
	if i < 0 {
		return 0, false
	}
	i = ((i+delta)%n + n) % n
	p.cursor = i
	id, _ := p.rows.Key(i)
	p.selected = id
	return id, true
}

// selectedRow returns the selected chat's row.
func (p *chatListPane) selectedRow() (chatRow, bool) {
	i := p.rows.Index(p.selected)
	if i < 0 {
		return chatRow{}, false
	}
	row, err := p.rows.Get(i)
	if err != nil {
		return chatRow{}, false
	}
	return row, true
}

func (p *chatListPane) ensureVisible(height int) {
	if height <= 0 {
		return
	}
	if p.cursor < p.offset {
		p.offset = p.cursor
	}
	if p.cursor >= p.offset+height {
		p.offset = p.cursor - height + 1
	}
	if p.offset < 0 {
		p.offset = 0
	}
}

func (p *chatListPane) view(height int, focused bool) string {
	p.ensureVisible(height)

	lines := make([]string, 0, height)
	for i := p.offset; i < p.rows.Len() && len(lines) < height; i++ {
		row, err := p.rows.Get(i)
		if err != nil {
			lines = append(lines, p.st.failed.Render(textutil.Pad(" ! "+err.Error(), p.width)))
			continue
		}
		lines = append(lines, p.renderRow(row, focused && i == p.cursor))

		if row.item.IsPinned {
			if next, err := p.rows.Get(i + 1); err == nil && !next.item.IsPinned {
				lines = append(lines, p.st.pinnedMarker.Render(strings.Repeat("─", p.width)))
			}
		}
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", p.width))
	}
	return strings.Join(lines, "\n")
}

func (p *chatListPane) renderRow(row chatRow, atCursor bool) string {
	item := row.item

	marker := " "
	if atCursor {
		marker = p.st.cursor.Render(">")
	}

	avatar := " # "
	if item.DMChatContact != nil || item.IsSelfTalk || item.IsDeviceTalk {
		avatar = " @ "
	}

	counter := ""
	if item.FreshMessageCounter > 0 {
		counter = "(" + textutil.Badge(item.FreshMessageCounter) + ")"
	}

	room := p.width - 1 - runewidth.StringWidth(avatar) - 1
	if counter != "" {
		room -= runewidth.StringWidth(counter) + 1
	}
	name := textutil.Shorten(item.Name, max(room, 1), textutil.Ellipsis)
	pad := strings.Repeat(" ", max(room-runewidth.StringWidth(name), 0))
	if item.ID == p.selected {
		name = p.st.currentChat.Render(name)
	}

	var b strings.Builder
	b.WriteString(marker)
	b.WriteString(chatColor(item.Color).Render(avatar))
	b.WriteString(" ")
	b.WriteString(name)
	if counter != "" {
		b.WriteString(" ")
		if item.IsMuted {
			b.WriteString(counter)
		} else {
			b.WriteString(p.st.unreadChat.Render(counter))
		}
	}
	b.WriteString(pad)
	return b.String()
}
