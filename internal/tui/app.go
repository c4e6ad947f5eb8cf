// Package tui implements the terminal chat client on top of bubbletea.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"

	"github.com/curseddelta/curseddelta/internal/config"
	"github.com/curseddelta/curseddelta/internal/engine"
	"github.com/curseddelta/curseddelta/internal/eventcenter"
	"github.com/curseddelta/curseddelta/internal/logging"
	"github.com/curseddelta/curseddelta/internal/notify"
	"github.com/curseddelta/curseddelta/internal/textutil"
)

const (
	defaultToastDuration = 5 * time.Second
	titleNameWidth       = 30
)

type focusArea int

const (
	focusChatlist focusArea = iota
	focusConversation
	focusComposer
)

// Options configures the UI.
type Options struct {
	Engine  engine.Engine
	Account int
	Config  *config.Config

	// Notifier receives incoming message notifications. Nil disables them.
	Notifier notify.Notifier

	Version string
}

// Model is the root bubbletea model.
type Model struct {
	eng     engine.Engine
	acc     int
	version string
	keys    keyMap
	st      styles
	logger  zerolog.Logger

	chatlist     *chatListPane
	conversation *conversationPane
	composer     composer

	focus        focusArea
	hideChatlist bool
	width        int
	height       int

	toast         string
	toastSeq      int
	toastDuration time.Duration
	title         string
}

type signalMsg struct {
	sig eventcenter.Signal
}

type chatlistLoadedMsg struct {
	ids   []int
	title string
	err   error
}

type conversationLoadedMsg struct {
	chat     engine.BasicChat
	subtitle string
	selfName string
	items    []engine.MessageListItem
	err      error
}

type sentMsg struct {
	chatID int
	err    error
}

type toastExpiredMsg struct {
	seq int
}

type errMsg struct {
	err error
}

// NewModel builds the UI model for one account.
func NewModel(opts Options) *Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	st := newStyles(cfg.Theme)
	keys := newKeyMap(cfg.Keymap)
	logger := logging.WithAccount(opts.Account).With().Str("component", "tui").Logger()

	m := &Model{
		eng:           opts.Engine,
		acc:           opts.Account,
		version:       opts.Version,
		keys:          keys,
		st:            st,
		logger:        logger,
		chatlist:      newChatListPane(opts.Engine, opts.Account, st, cfg.TUI.ChatNameWidth, cfg.TUI.CacheSize),
		conversation:  newConversationPane(opts.Engine, opts.Account, st, cfg.Global.DateFormat, cfg.TUI.CacheSize, logger),
		composer:      newComposer(keys),
		toastDuration: defaultToastDuration,
	}
	return m
}

// Run starts the UI and blocks until the user quits or ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
		opts.Config = cfg
	}
	model := NewModel(opts)

	center := eventcenter.New(opts.Engine, eventcenter.Options{
		ChatlistInterval: cfg.TUI.ChatlistRefresh,
		MessagesInterval: cfg.TUI.ConversationRefresh,
		NotifyInterval:   cfg.TUI.NotifyBatch,
		Notifier:         opts.Notifier,
	})
	defer center.Close()

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	err := center.Subscribe("tui", eventcenter.Filter{Account: opts.Account}, func(sig eventcenter.Signal) {
		program.Send(signalMsg{sig: sig})
	})
	if err != nil {
		return fmt.Errorf("subscribe to events: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := center.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			model.logger.Warn().Err(err).Msg("event loop stopped")
		}
	}()

	_, err = program.Run()
	termenv.NewOutput(os.Stdout).SetWindowTitle("")
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m *Model) Init() tea.Cmd {
	return m.loadChatlist()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.conversation.setWidth(m.rightWidth())
		m.composer.setWidth(m.rightWidth())
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case signalMsg:
		return m, m.handleSignal(msg.sig)

	case chatlistLoadedMsg:
		return m, m.handleChatlist(msg)

	case conversationLoadedMsg:
		if msg.err != nil {
			return m, m.showError(msg.err)
		}
		if msg.chat.ID != m.chatlist.selected {
			return m, nil
		}
		m.conversation.show(msg.chat, msg.subtitle, msg.selfName, msg.items)
		return m, nil

	case sentMsg:
		if msg.err != nil {
			m.logger.Warn().Err(msg.err).Int("chat_id", msg.chatID).Msg("failed to send message")
			return m, m.showToast(errSendFailed)
		}
		m.composer.sent(msg.chatID)
		return m, nil

	case toastExpiredMsg:
		if msg.seq == m.toastSeq {
			m.toast = ""
		}
		return m, nil

	case errMsg:
		return m, m.showError(msg.err)
	}

	if m.focus == focusComposer {
		return m, m.composer.update(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.ForceQuit):
		return tea.Quit
	case key.Matches(msg, m.keys.NextChat):
		return m.stepChat(-1)
	case key.Matches(msg, m.keys.PrevChat):
		return m.stepChat(1)
	case key.Matches(msg, m.keys.ToggleChatlist):
		m.hideChatlist = !m.hideChatlist
		if m.hideChatlist && m.focus == focusChatlist {
			m.focus = focusConversation
		}
		m.conversation.setWidth(m.rightWidth())
		m.composer.setWidth(m.rightWidth())
		return nil
	case key.Matches(msg, m.keys.FocusNext):
		return m.setFocus(m.nextFocus(1))
	case key.Matches(msg, m.keys.Back):
		m.hideChatlist = false
		return m.setFocus(focusChatlist)
	}

	if m.focus == focusComposer {
		if key.Matches(msg, m.keys.SendMsg) {
			return m.send()
		}
		return m.composer.update(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.InsertText):
		return m.setFocus(focusComposer)
	case key.Matches(msg, m.keys.Left):
		return m.setFocus(m.nextFocus(-1))
	case key.Matches(msg, m.keys.Right):
		return m.setFocus(m.nextFocus(1))
	}

	if m.focus == focusChatlist {
		switch {
		case key.Matches(msg, m.keys.Up):
			m.chatlist.moveCursor(-1)
		case key.Matches(msg, m.keys.Down):
			m.chatlist.moveCursor(1)
		case key.Matches(msg, m.keys.Select):
			id, ok := m.chatlist.selectAtCursor()
			if !ok {
				return nil
			}
			return tea.Batch(m.openChat(id), m.setFocus(focusComposer))
		}
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		m.conversation.scrollBy(1)
	case key.Matches(msg, m.keys.Down):
		m.conversation.scrollBy(-1)
	}
	return nil
}

func (m *Model) nextFocus(delta int) focusArea {
	order := []focusArea{focusChatlist, focusConversation, focusComposer}
	if m.hideChatlist {
		order = order[1:]
	}
	i := 0
	for j, f := range order {
		if f == m.focus {
			i = j
		}
	}
	return order[((i+delta)%len(order)+len(order))%len(order)]
}

func (m *Model) setFocus(f focusArea) tea.Cmd {
	m.focus = f
	if f == focusComposer {
		return m.composer.focus()
	}
	m.composer.blur()
	return nil
}

func (m *Model) stepChat(delta int) tea.Cmd {
	id, ok := m.chatlist.step(delta)
	if !ok {
		return nil
	}
	return m.openChat(id)
}

// openChat shows chatID in the conversation and composer.
func (m *Model) openChat(chatID int) tea.Cmd {
	m.logger.Debug().Int("chat_id", chatID).Msg("chat selected")
	m.composer.switchChat(chatID)
	return tea.Batch(m.loadConversation(chatID), m.markNoticed(chatID))
}

func (m *Model) handleSignal(sig eventcenter.Signal) tea.Cmd {
	switch sig.Kind {
	case eventcenter.ChatlistChanged:
		return m.loadChatlist()
	case eventcenter.ChatChanged:
		if sig.ChatID == m.chatlist.selected {
			return m.loadConversation(sig.ChatID)
		}
	case eventcenter.MessagesChanged:
		// The throttled signal may name another chat; the open one is
		// refreshed either way.
		if m.chatlist.selected != 0 {
			return m.loadConversation(m.chatlist.selected)
		}
	}
	return nil
}

func (m *Model) handleChatlist(msg chatlistLoadedMsg) tea.Cmd {
	if msg.err != nil {
		return m.showError(msg.err)
	}
	var cmds []tea.Cmd
	if m.chatlist.setEntries(msg.ids) {
		m.conversation.clear()
		m.composer.switchChat(0)
	}
	if row, ok := m.chatlist.selectedRow(); ok && row.item.FreshMessageCounter > 0 {
		cmds = append(cmds, m.markNoticed(row.item.ID))
	}
	if msg.title != m.title {
		m.title = msg.title
		cmds = append(cmds, tea.SetWindowTitle(msg.title))
	}
	return tea.Batch(cmds...)
}

func (m *Model) send() tea.Cmd {
	chatID := m.chatlist.selected
	if chatID == 0 {
		return m.showToast(errNoChatSelected)
	}
	text := m.composer.text()
	if text == "" {
		return nil
	}
	contactRequest := m.conversation.chat.ID == chatID && m.conversation.chat.IsContactRequest
	eng, acc := m.eng, m.acc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), engineTimeout)
		defer cancel()
		if contactRequest {
			if err := eng.AcceptChat(ctx, acc, chatID); err != nil {
				return sentMsg{chatID: chatID, err: err}
			}
		}
		_, err := eng.SendText(ctx, acc, chatID, text)
		return sentMsg{chatID: chatID, err: err}
	}
}

func (m *Model) loadChatlist() tea.Cmd {
	eng, acc := m.eng, m.acc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), engineTimeout)
		defer cancel()

		ids, err := eng.GetChatlistEntries(ctx, acc, 0, "")
		if err != nil {
			return chatlistLoadedMsg{err: fmt.Errorf("load chat list: %w", err)}
		}
		visible := ids[:0:0]
		for _, id := range ids {
			if engine.VisibleChat(id) {
				visible = append(visible, id)
			}
		}
		fresh, err := countFresh(ctx, eng)
		if err != nil {
			return chatlistLoadedMsg{err: err}
		}
		name, err := notify.SelfName(ctx, eng, acc)
		if err != nil {
			return chatlistLoadedMsg{err: err}
		}
		title := textutil.Title(textutil.Shorten(name, titleNameWidth, textutil.Ellipsis), fresh)
		return chatlistLoadedMsg{ids: visible, title: title}
	}
}

// countFresh sums the fresh messages of every account for the title badge.
func countFresh(ctx context.Context, eng engine.Engine) (int, error) {
	accounts, err := eng.GetAllAccountIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list accounts: %w", err)
	}
	total := 0
	for _, acc := range accounts {
		fresh, err := eng.GetFreshMessages(ctx, acc)
		if err != nil {
			return 0, fmt.Errorf("count fresh messages of account %d: %w", acc, err)
		}
		total += len(fresh)
	}
	return total, nil
}

func (m *Model) loadConversation(chatID int) tea.Cmd {
	eng, acc := m.eng, m.acc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), engineTimeout)
		defer cancel()

		chat, err := eng.GetBasicChatInfo(ctx, acc, chatID)
		if err != nil {
			return conversationLoadedMsg{err: fmt.Errorf("load chat %d: %w", chatID, err)}
		}
		subtitle, err := engine.Subtitle(ctx, eng, acc, chat)
		if err != nil {
			return conversationLoadedMsg{err: err}
		}
		items, err := eng.GetMessageListItems(ctx, acc, chatID)
		if err != nil {
			return conversationLoadedMsg{err: fmt.Errorf("load messages of chat %d: %w", chatID, err)}
		}
		selfName, err := notify.SelfName(ctx, eng, acc)
		if err != nil {
			return conversationLoadedMsg{err: err}
		}
		return conversationLoadedMsg{chat: chat, subtitle: subtitle, selfName: selfName, items: items}
	}
}

func (m *Model) markNoticed(chatID int) tea.Cmd {
	eng, acc := m.eng, m.acc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), engineTimeout)
		defer cancel()
		if err := eng.MarkNoticedChat(ctx, acc, chatID); err != nil {
			return errMsg{err: fmt.Errorf("mark chat %d noticed: %w", chatID, err)}
		}
		return nil
	}
}

func (m *Model) showToast(text string) tea.Cmd {
	m.toastSeq++
	m.toast = text
	seq := m.toastSeq
	return tea.Tick(m.toastDuration, func(time.Time) tea.Msg {
		return toastExpiredMsg{seq: seq}
	})
}

func (m *Model) showError(err error) tea.Cmd {
	m.logger.Warn().Err(err).Msg("ui error")
	return m.showToast(err.Error())
}

func (m *Model) leftWidth() int {
	if m.hideChatlist {
		return 0
	}
	return m.chatlist.width
}

func (m *Model) rightWidth() int {
	w := m.width - m.leftWidth()
	if !m.hideChatlist {
		w-- // separator
	}
	return max(w, 1)
}

func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "loading…"
	}

	bodyHeight := max(m.height-1, 1)
	convHeight := max(bodyHeight-1-composerHeight, 1)
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.conversation.view(convHeight),
		m.statusView(m.rightWidth()),
		m.composer.view(),
	)

	body := right
	if !m.hideChatlist {
		sep := m.st.separator.Render(strings.TrimSuffix(strings.Repeat("│\n", bodyHeight), "\n"))
		left := m.chatlist.view(bodyHeight, m.focus == focusChatlist)
		body = lipgloss.JoinHorizontal(lipgloss.Top, left, sep, right)
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, m.footerView(m.width))
}
