package tui

import (
	"strings"

	"github.com/curseddelta/curseddelta/internal/engine"
	"github.com/curseddelta/curseddelta/internal/textutil"
)

const appName = "curseddelta"

// statusText describes the open chat, or the application when none is.
func statusText(chat engine.BasicChat, subtitle, version string) string {
	if chat.ID == 0 {
		return strings.TrimSpace(appName + " " + version)
	}
	var b strings.Builder
	b.WriteString(" ")
	if chat.IsProtected || chat.IsDeviceChat {
		b.WriteString("✓ ")
	}
	b.WriteString("[ ")
	b.WriteString(chat.Name)
	b.WriteString(" ]")
	if chat.IsMuted {
		b.WriteString(" (muted)")
	}
	if subtitle != "" {
		b.WriteString(" -- ")
		b.WriteString(subtitle)
	}
	return b.String()
}

func (m *Model) statusView(width int) string {
	text := statusText(m.conversation.chat, m.conversation.subtitle, m.version)
	return m.st.statusBar.Render(textutil.Pad(text, width))
}

func (m *Model) footerView(width int) string {
	if m.toast != "" {
		return m.st.toast.Render(textutil.Pad(" "+m.toast, width))
	}
	hint := " tab focus · " + m.keys.InsertText.Help().Key + " compose · " +
		m.keys.SendMsg.Help().Key + " send · " + m.keys.Quit.Help().Key + " quit"
	return m.st.systemMsg.Render(textutil.Pad(hint, width))
}
