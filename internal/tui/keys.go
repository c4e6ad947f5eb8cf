package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/curseddelta/curseddelta/internal/config"
)

type keyMap struct {
	Left           key.Binding
	Right          key.Binding
	Up             key.Binding
	Down           key.Binding
	Select         key.Binding
	Quit           key.Binding
	ForceQuit      key.Binding
	InsertText     key.Binding
	SendMsg        key.Binding
	InsertNewLine  key.Binding
	NextChat       key.Binding
	PrevChat       key.Binding
	ToggleChatlist key.Binding
	FocusNext      key.Binding
	Back           key.Binding
}

func newKeyMap(km config.KeymapConfig) keyMap {
	return keyMap{
		Left:           key.NewBinding(key.WithKeys(km.Left, "left"), key.WithHelp(km.Left, "previous pane")),
		Right:          key.NewBinding(key.WithKeys(km.Right, "right"), key.WithHelp(km.Right, "next pane")),
		Up:             key.NewBinding(key.WithKeys(km.Up, "up"), key.WithHelp(km.Up, "up")),
		Down:           key.NewBinding(key.WithKeys(km.Down, "down"), key.WithHelp(km.Down, "down")),
		Select:         key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open chat")),
		Quit:           key.NewBinding(key.WithKeys(km.Quit), key.WithHelp(km.Quit, "quit")),
		ForceQuit:      key.NewBinding(key.WithKeys("ctrl+c")),
		InsertText:     key.NewBinding(key.WithKeys(km.InsertText), key.WithHelp(km.InsertText, "compose")),
		SendMsg:        key.NewBinding(key.WithKeys(km.SendMsg), key.WithHelp(km.SendMsg, "send")),
		InsertNewLine:  key.NewBinding(key.WithKeys(km.InsertNewLine), key.WithHelp(km.InsertNewLine, "new line")),
		NextChat:       key.NewBinding(key.WithKeys(km.NextChat), key.WithHelp(km.NextChat, "next chat")),
		PrevChat:       key.NewBinding(key.WithKeys(km.PrevChat), key.WithHelp(km.PrevChat, "previous chat")),
		ToggleChatlist: key.NewBinding(key.WithKeys(km.ToggleChatlist), key.WithHelp(km.ToggleChatlist, "toggle chat list")),
		FocusNext:      key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "focus next")),
		Back:           key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "chat list")),
	}
}
