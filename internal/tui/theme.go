package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/curseddelta/curseddelta/internal/config"
)

// userPalette colors other people's names, picked by contact id.
var userPalette = []string{
	"#ff5f87", "#d75fff", "#5f87ff", "#00afaf", "#87d700",
	"#ffaf00", "#ff8700", "#af87ff", "#5fd7ff", "#d7af5f",
}

type styles struct {
	base         lipgloss.Style
	statusBar    lipgloss.Style
	separator    lipgloss.Style
	date         lipgloss.Style
	encrypted    lipgloss.Style
	unencrypted  lipgloss.Style
	failed       lipgloss.Style
	currentChat  lipgloss.Style
	unreadChat   lipgloss.Style
	cursor       lipgloss.Style
	quote        lipgloss.Style
	mention      lipgloss.Style
	systemMsg    lipgloss.Style
	selfMsg      lipgloss.Style
	pinnedMarker lipgloss.Style
	toast        lipgloss.Style
	users        []lipgloss.Style
}

func styleFrom(s config.Style) lipgloss.Style {
	st := lipgloss.NewStyle().Bold(s.Bold)
	if s.Foreground != "" {
		st = st.Foreground(lipgloss.Color(s.Foreground))
	}
	if s.Background != "" {
		st = st.Background(lipgloss.Color(s.Background))
	}
	return st
}

func newStyles(theme config.ThemeConfig) styles {
	st := styles{
		base:         styleFrom(theme.Background),
		statusBar:    styleFrom(theme.StatusBar),
		separator:    styleFrom(theme.Separator),
		date:         styleFrom(theme.Date),
		encrypted:    styleFrom(theme.Encrypted),
		unencrypted:  styleFrom(theme.Unencrypted),
		failed:       styleFrom(theme.Failed),
		currentChat:  styleFrom(theme.CurrentChat),
		unreadChat:   styleFrom(theme.UnreadChat),
		cursor:       styleFrom(theme.Reversed),
		quote:        styleFrom(theme.Quote),
		mention:      styleFrom(theme.Mention),
		systemMsg:    styleFrom(theme.SystemMsg),
		selfMsg:      styleFrom(theme.SelfMsg),
		pinnedMarker: styleFrom(theme.PinnedMarker),
		toast:        styleFrom(theme.Failed).Bold(true),
	}
	for _, c := range userPalette {
		st.users = append(st.users, lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Bold(true))
	}
	return st
}

// nameStyle returns a stable style for a contact.
func (s styles) nameStyle(contactID int, self bool) lipgloss.Style {
	if self {
		return s.selfMsg.Bold(true)
	}
	if contactID < 0 {
		contactID = -contactID
	}
	return s.users[contactID%len(s.users)]
}

// chatColor renders the chat avatar color packed as 0xRRGGBB.
func chatColor(color int) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("#ffffff")).
		Background(lipgloss.Color(hexColor(color)))
}

func hexColor(color int) string {
	return fmt.Sprintf("#%06x", color&0xffffff)
}
