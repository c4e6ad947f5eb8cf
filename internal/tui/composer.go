package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	composerHeight = 3

	errSendFailed     = "Message could not be sent, are you a member of the chat?"
	errNoChatSelected = "No chat selected"
)

// composer is the message editor. Unsent text is kept per chat.
type composer struct {
	ta     textarea.Model
	chatID int
	drafts map[int]string
}

func newComposer(keys keyMap) composer {
	ta := textarea.New()
	ta.Placeholder = "Write a message"
	ta.ShowLineNumbers = false
	ta.Prompt = "> "
	ta.CharLimit = 0
	ta.SetHeight(composerHeight)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys(keys.InsertNewLine.Keys()...))
	ta.Cursor.SetMode(cursor.CursorStatic)
	return composer{ta: ta, drafts: make(map[int]string)}
}

// switchChat stores the draft of the current chat and restores chatID's.
func (c *composer) switchChat(chatID int) {
	if chatID == c.chatID {
		return
	}
	if c.chatID != 0 {
		if text := c.ta.Value(); text != "" {
			c.drafts[c.chatID] = text
		} else {
			delete(c.drafts, c.chatID)
		}
	}
	c.chatID = chatID
	c.ta.SetValue(c.drafts[chatID])
}

func (c *composer) text() string {
	return strings.TrimSpace(c.ta.Value())
}

// sent clears the editor after chatID's message went out.
func (c *composer) sent(chatID int) {
	delete(c.drafts, chatID)
	if chatID == c.chatID {
		c.ta.Reset()
	}
}

func (c *composer) setWidth(width int) {
	c.ta.SetWidth(max(width, 1))
}

func (c *composer) focus() tea.Cmd {
	return c.ta.Focus()
}

func (c *composer) blur() {
	c.ta.Blur()
}

func (c *composer) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	c.ta, cmd = c.ta.Update(msg)
	return cmd
}

func (c *composer) view() string {
	return c.ta.View()
}
