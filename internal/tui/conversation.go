package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/curseddelta/curseddelta/internal/engine"
	"github.com/curseddelta/curseddelta/internal/lazylist"
	"github.com/curseddelta/curseddelta/internal/textutil"
)

const (
	quoteWidth      = 150
	senderNameWidth = 50
	timestampWidth  = 7
)

// messageKey identifies a conversation row: a message, or the day marker
// starting at Day (unix seconds).
type messageKey struct {
	MsgID int
	Day   int64
}

// messageBlock is a rendered conversation row.
type messageBlock struct {
	lines []string
}

type conversationPane struct {
	eng        engine.Engine
	acc        int
	st         styles
	dateFormat string
	logger     zerolog.Logger

	chat     engine.BasicChat
	subtitle string
	selfName string
	width    int
	scroll   int

	items *lazylist.List[messageKey, messageBlock]
}

func newConversationPane(eng engine.Engine, acc int, st styles, dateFormat string, cacheSize int, logger zerolog.Logger) *conversationPane {
	c := &conversationPane{eng: eng, acc: acc, st: st, dateFormat: dateFormat, logger: logger}
	c.items = lazylist.New(nil, c.loadBlock, lazylist.WithCacheSize(cacheSize))
	return c
}

func messageKeys(items []engine.MessageListItem) []messageKey {
	keys := make([]messageKey, 0, len(items))
	for _, it := range items {
		if it.Kind == engine.ItemDayMarker {
			keys = append(keys, messageKey{Day: it.Timestamp})
			continue
		}
		keys = append(keys, messageKey{MsgID: it.MsgID})
	}
	return keys
}

// show switches to chat, or refreshes it when already shown.
func (c *conversationPane) show(chat engine.BasicChat, subtitle, selfName string, items []engine.MessageListItem) {
	if chat.ID != c.chat.ID {
		c.scroll = 0
	}
	c.chat = chat
	c.subtitle = subtitle
	c.selfName = selfName
	c.items.ClearCache()
	c.items.SetKeys(messageKeys(items))
	c.clampScroll()
}

func (c *conversationPane) clear() {
	c.chat = engine.BasicChat{}
	c.subtitle = ""
	c.scroll = 0
	c.items.ClearCache()
	c.items.SetKeys(nil)
}

// setWidth re-renders every row on the next view when the width changes.
func (c *conversationPane) setWidth(width int) {
	if width == c.width {
		return
	}
	c.width = width
	c.items.ClearCache()
}

func (c *conversationPane) scrollBy(delta int) {
	c.scroll += delta
	c.clampScroll()
}

func (c *conversationPane) clampScroll() {
	if c.scroll > c.items.Len()-1 {
		c.scroll = c.items.Len() - 1
	}
	if c.scroll < 0 {
		c.scroll = 0
	}
}

// view renders the newest rows that fit in height, bottom aligned. Only
// the rows on screen are materialized.
func (c *conversationPane) view(height int) string {
	var lines []string
	for i := c.items.Len() - 1 - c.scroll; i >= 0 && len(lines) < height; i-- {
		block, err := c.items.Get(i)
		if err != nil {
			c.logger.Warn().Err(err).Int("position", i).Msg("failed to render message")
			block = messageBlock{lines: []string{c.st.failed.Render(" ! " + err.Error())}}
		}
		lines = append(append([]string(nil), block.lines...), lines...)
	}
	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	for len(lines) < height {
		lines = append([]string{""}, lines...)
	}
	return strings.Join(lines, "\n")
}

func (c *conversationPane) loadBlock(key messageKey) (messageBlock, error) {
	if key.MsgID == 0 {
		return c.dayMarker(key.Day), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), engineTimeout)
	defer cancel()

	msg, err := c.eng.GetMessage(ctx, c.acc, key.MsgID)
	if err != nil {
		return messageBlock{}, err
	}
	quoteFromSelf := false
	if msg.Quote.HasMessage() {
		if quoted, err := c.eng.GetMessage(ctx, c.acc, msg.Quote.MessageID); err == nil {
			quoteFromSelf = quoted.FromID == engine.ContactSelf
		}
	}

	if needsSeen(msg) {
		if err := c.eng.MarkSeenMessages(ctx, c.acc, []int{msg.ID}); err != nil {
			c.logger.Warn().Err(err).Int("msg_id", msg.ID).Msg("failed to mark message seen")
		}
	}
	return c.renderMessage(msg, quoteFromSelf), nil
}

func needsSeen(msg engine.Message) bool {
	if msg.FromID == engine.ContactSelf {
		return false
	}
	return msg.State == engine.MessageStateInFresh || msg.State == engine.MessageStateInNoticed
}

func (c *conversationPane) dayMarker(ts int64) messageBlock {
	label := "  " + time.Unix(ts, 0).Local().Format(c.dateFormat) + "  "
	rule := lipgloss.PlaceHorizontal(max(c.width-2, 0), lipgloss.Center, label,
		lipgloss.WithWhitespaceChars("─"))
	return messageBlock{lines: []string{"", " " + c.st.date.Render(rule), ""}}
}

// stateMark is the delivery mark shown after an outgoing message's sender.
func stateMark(state engine.MessageState) string {
	switch state {
	case engine.MessageStateOutMdnRcvd:
		return "  ✓✓"
	case engine.MessageStateOutDelivered:
		return "  ✓"
	case engine.MessageStateOutPending:
		return "  →"
	case engine.MessageStateOutFailed:
		return "  ✖"
	default:
		return ""
	}
}

func (c *conversationPane) renderMessage(msg engine.Message, quoteFromSelf bool) messageBlock {
	self := msg.FromID == engine.ContactSelf

	clock := time.Unix(msg.Timestamp, 0).Local().Format("15:04")
	var stamp string
	if msg.ShowPadlock || msg.FromID <= engine.ContactLastSpecial {
		stamp = c.st.encrypted.Render(" " + clock + " ")
	} else {
		stamp = c.st.unencrypted.Render("!" + clock + " ")
	}
	indent := strings.Repeat(" ", timestampWidth)

	header := c.st.nameStyle(msg.FromID, self).Render(textutil.Shorten(msg.SenderName(), senderNameWidth, textutil.Ellipsis))
	if mark := stateMark(msg.State); mark != "" {
		if msg.State == engine.MessageStateOutFailed {
			mark = c.st.failed.Render(mark)
		}
		header += mark
	}
	lines := []string{stamp + header}

	if msg.Quote != nil && msg.Quote.Text != "" {
		quoteStyle := c.st.quote
		if msg.Quote.HasMessage() && msg.Quote.AuthorDisplayName != "" {
			lines = append(lines, indent+quoteStyle.Render("│ "+msg.Quote.AuthorDisplayName))
		}
		lines = append(lines, indent+quoteStyle.Render("│ "+textutil.Shorten(msg.Quote.Text, quoteWidth, "[…]")))
	}

	text := msg.Text
	if msg.FileName != "" {
		sep := ""
		if text != "" {
			sep = " – "
		}
		text = "[file://" + msg.FileName + "]" + sep + text
	}

	bodyStyle := lipgloss.NewStyle()
	switch {
	case msg.IsInfo || (msg.SystemMessageType != "" && msg.SystemMessageType != "Unknown"):
		bodyStyle = c.st.systemMsg
	case self:
		bodyStyle = c.st.selfMsg
	case c.chat.ChatType.IsMultiUser() && (quoteFromSelf || (c.selfName != "" && strings.Contains(msg.Text, "@"+c.selfName))):
		bodyStyle = c.st.mention
	}

	if text != "" {
		for _, line := range strings.Split(textutil.Wrap(text, max(c.width-timestampWidth, 1)), "\n") {
			lines = append(lines, indent+bodyStyle.Render(line))
		}
	}
	return messageBlock{lines: lines}
}
