package main

import (
	"context"
	"errors"
	"strings"

	"senseichat/internal/chat"
	"senseichat/internal/config"
	"senseichat/internal/gateway"
	"senseichat/internal/session"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// appView selects which top-level screen is active.
type appView int

const (
	viewLogin appView = iota
	viewRegister
	viewChat
)

// Login form field order.
const (
	loginFieldUsername = iota
	loginFieldPassword
)

// Register form field order.
const (
	regFieldUsername = iota
	regFieldEmail
	regFieldPassword
	regFieldConfirm
)

const (
	sidebarWidth         = 30
	sessionExpiredNotice = "Your session expired. Please sign in again."
)

// starterQuestions seed the prompt on a fresh conversation, before the
// first message is sent. Tab cycles them into the input.
var starterQuestions = []string{
	"Show last 1 hour transactions.",
	"Investigate failed payments in the last 1 hour.",
	"Give insights on top customer issues this week.",
}

// Messages delivered back to Update by commands. Each blocking call
// into the session or chat layers runs inside a tea.Cmd goroutine and
// reports completion through one of these.
type (
	recoveredMsg    struct{ outcome session.RecoverOutcome }
	loginDoneMsg    struct{ result session.LoginResult }
	registerDoneMsg struct {
		message string
		err     error
	}
	chatSyncedMsg    struct{}
	submitDoneMsg    struct{ err error }
	newChatDoneMsg   struct{ err error }
	historyLoadedMsg struct{}
	logoutDoneMsg    struct{}
	// authLostMsg is injected from outside the tea loop when the
	// backend rejects the stored credential mid-session.
	authLostMsg struct{}
)

type styles struct {
	header     lipgloss.Style
	badge      lipgloss.Style
	sidebar    lipgloss.Style
	convActive lipgloss.Style
	convCursor lipgloss.Style
	userLabel  lipgloss.Style
	botLabel   lipgloss.Style
	errLine    lipgloss.Style
	infoLine   lipgloss.Style
	muted      lipgloss.Style
	formLabel  lipgloss.Style
}

func newStyles() styles {
	accent := lipgloss.Color("212")
	mint := lipgloss.Color("84")
	red := lipgloss.Color("203")
	gray := lipgloss.Color("243")

	return styles{
		header:     lipgloss.NewStyle().Bold(true).Foreground(accent),
		badge:      lipgloss.NewStyle().Foreground(mint),
		sidebar:    lipgloss.NewStyle().Width(sidebarWidth).Foreground(gray),
		convActive: lipgloss.NewStyle().Bold(true).Foreground(mint),
		convCursor: lipgloss.NewStyle().Foreground(accent),
		userLabel:  lipgloss.NewStyle().Bold(true).Foreground(mint),
		botLabel:   lipgloss.NewStyle().Bold(true).Foreground(accent),
		errLine:    lipgloss.NewStyle().Foreground(red),
		infoLine:   lipgloss.NewStyle().Foreground(mint),
		muted:      lipgloss.NewStyle().Foreground(gray),
		formLabel:  lipgloss.NewStyle().Bold(true),
	}
}

type model struct {
	ctx        context.Context
	cfg        *config.Config
	sess       *session.Manager
	dir        *chat.Directory
	transcript *chat.Transcript

	view   appView
	width  int
	height int
	ready  bool

	// Sign-in and sign-up forms share the focus index.
	loginInputs []textinput.Model
	regInputs   []textinput.Model
	focus       int
	formErr     string
	formInfo    string

	// Chat screen.
	vp         viewport.Model
	prompt     textinput.Model
	spin       spinner.Model
	convCursor int
	suggestIdx int
	status     string
	renderer   *glamour.TermRenderer
	styles     styles
}

func newModel(ctx context.Context, cfg *config.Config, sess *session.Manager, dir *chat.Directory, transcript *chat.Transcript) model {
	username := textinput.New()
	username.Placeholder = "username"
	username.CharLimit = 64
	username.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.CharLimit = 128
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	regUsername := textinput.New()
	regUsername.Placeholder = "username"
	regUsername.CharLimit = 64

	regEmail := textinput.New()
	regEmail.Placeholder = "email"
	regEmail.CharLimit = 128

	regPassword := textinput.New()
	regPassword.Placeholder = "password"
	regPassword.CharLimit = 128
	regPassword.EchoMode = textinput.EchoPassword
	regPassword.EchoCharacter = '•'

	regConfirm := textinput.New()
	regConfirm.Placeholder = "confirm password"
	regConfirm.CharLimit = 128
	regConfirm.EchoMode = textinput.EchoPassword
	regConfirm.EchoCharacter = '•'

	prompt := textinput.New()
	prompt.Prompt = "❯ "
	prompt.Placeholder = "Ask the assistant anything..."
	prompt.CharLimit = 4000

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))

	return model{
		ctx:         ctx,
		cfg:         cfg,
		sess:        sess,
		dir:         dir,
		transcript:  transcript,
		view:        viewLogin,
		loginInputs: []textinput.Model{username, password},
		regInputs:   []textinput.Model{regUsername, regEmail, regPassword, regConfirm},
		vp:          viewport.New(0, 0),
		prompt:      prompt,
		spin:        sp,
		styles:      newStyles(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.recoverCmd())
}

// --- commands -------------------------------------------------------------

func (m model) recoverCmd() tea.Cmd {
	return func() tea.Msg {
		return recoveredMsg{outcome: m.sess.Recover(m.ctx)}
	}
}

func (m model) loginCmd(username, password string) tea.Cmd {
	return func() tea.Msg {
		return loginDoneMsg{result: m.sess.Login(m.ctx, username, password)}
	}
}

func (m model) registerCmd(username, email, password string) tea.Cmd {
	return func() tea.Msg {
		msg, err := m.sess.Register(m.ctx, username, email, password, m.cfg.Register.DefaultRole)
		return registerDoneMsg{message: msg, err: err}
	}
}

// syncChatCmd brings the chat screen up to date after sign-in or
// recovery: fetch the conversation list, then load history for
// whichever conversation the server-order policy selected.
func (m model) syncChatCmd() tea.Cmd {
	return func() tea.Msg {
		id := m.dir.Refresh(m.ctx, false)
		if id != "" {
			m.transcript.LoadHistory(m.ctx, id)
		}
		return chatSyncedMsg{}
	}
}

func (m model) submitCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return submitDoneMsg{err: m.transcript.Submit(m.ctx, text)}
	}
}

func (m model) newChatCmd() tea.Cmd {
	return func() tea.Msg {
		return newChatDoneMsg{err: m.transcript.NewConversation(m.ctx)}
	}
}

func (m model) selectCmd(chatID string) tea.Cmd {
	return func() tea.Msg {
		m.transcript.Select(m.ctx, chatID)
		return historyLoadedMsg{}
	}
}

func (m model) logoutCmd() tea.Cmd {
	return func() tea.Msg {
		m.sess.Logout(m.ctx)
		return logoutDoneMsg{}
	}
}

// --- update ---------------------------------------------------------------

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		m.refreshViewport()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case recoveredMsg:
		if m.sess.IsAuthenticated() {
			return m.enterChat()
		}
		m.view = viewLogin
		m.focusLogin(loginFieldUsername)
		if msg.outcome == session.RecoverRejected {
			m.formErr = sessionExpiredNotice
		}
		return m, nil

	case loginDoneMsg:
		if !msg.result.OK {
			m.formErr = msg.result.Message
			return m, nil
		}
		m.resetForms()
		return m.enterChat()

	case registerDoneMsg:
		if msg.err != nil {
			m.formErr = gateway.UserMessage(msg.err, "Registration failed. Please try again.")
			return m, nil
		}
		m.view = viewLogin
		m.formErr = ""
		m.formInfo = msg.message
		m.focusLogin(loginFieldUsername)
		return m, nil

	case chatSyncedMsg, historyLoadedMsg, newChatDoneMsg:
		if d, ok := msg.(newChatDoneMsg); ok && d.err != nil && !errors.Is(d.err, gateway.ErrUnauthorized) {
			m.status = gateway.UserMessage(d.err, "Could not start a new chat. Please try again.")
		}
		m.alignCursor()
		m.refreshViewport()
		m.vp.GotoBottom()
		return m, nil

	case submitDoneMsg:
		if errors.Is(msg.err, chat.ErrBusy) {
			m.status = "Still waiting on the previous message."
		}
		m.alignCursor()
		m.refreshViewport()
		m.vp.GotoBottom()
		return m, nil

	case authLostMsg:
		return m.leaveChat(sessionExpiredNotice, "")

	case logoutDoneMsg:
		return m.leaveChat("", "Signed out.")

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.view {
		case viewLogin:
			return m.updateLogin(msg)
		case viewRegister:
			return m.updateRegister(msg)
		default:
			return m.updateChat(msg)
		}
	}

	return m, nil
}

// enterChat switches to the chat screen and kicks off the initial sync.
func (m model) enterChat() (tea.Model, tea.Cmd) {
	m.view = viewChat
	m.formErr = ""
	m.status = ""
	m.prompt.Focus()
	return m, tea.Batch(m.syncChatCmd(), m.spin.Tick, textinput.Blink)
}

// leaveChat drops back to the sign-in screen, clearing per-session UI
// state. The session layer has already cleared the credential.
func (m model) leaveChat(formErr, formInfo string) (tea.Model, tea.Cmd) {
	m.view = viewLogin
	m.status = ""
	m.convCursor = 0
	m.suggestIdx = 0
	m.prompt.SetValue("")
	m.prompt.Blur()
	m.resetForms()
	m.formErr = formErr
	m.formInfo = formInfo
	m.focusLogin(loginFieldUsername)
	return m, nil
}

func (m *model) resetForms() {
	for i := range m.loginInputs {
		m.loginInputs[i].SetValue("")
	}
	for i := range m.regInputs {
		m.regInputs[i].SetValue("")
	}
	m.formErr = ""
	m.formInfo = ""
}

func (m *model) focusLogin(field int) {
	m.focus = field
	for i := range m.loginInputs {
		if i == field {
			m.loginInputs[i].Focus()
		} else {
			m.loginInputs[i].Blur()
		}
	}
}

func (m *model) focusRegister(field int) {
	m.focus = field
	for i := range m.regInputs {
		if i == field {
			m.regInputs[i].Focus()
		} else {
			m.regInputs[i].Blur()
		}
	}
}

func (m model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, tea.Quit
	case "ctrl+r":
		m.view = viewRegister
		m.formErr = ""
		m.formInfo = ""
		m.focusRegister(regFieldUsername)
		return m, nil
	case "tab", "down":
		m.focusLogin((m.focus + 1) % len(m.loginInputs))
		return m, nil
	case "shift+tab", "up":
		m.focusLogin((m.focus + len(m.loginInputs) - 1) % len(m.loginInputs))
		return m, nil
	case "enter":
		if m.focus != loginFieldPassword {
			m.focusLogin(loginFieldPassword)
			return m, nil
		}
		m.formErr = ""
		m.formInfo = ""
		return m, m.loginCmd(m.loginInputs[loginFieldUsername].Value(), m.loginInputs[loginFieldPassword].Value())
	}

	var cmd tea.Cmd
	m.loginInputs[m.focus], cmd = m.loginInputs[m.focus].Update(msg)
	return m, cmd
}

func (m model) updateRegister(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.view = viewLogin
		m.formErr = ""
		m.focusLogin(loginFieldUsername)
		return m, nil
	case "tab", "down":
		m.focusRegister((m.focus + 1) % len(m.regInputs))
		return m, nil
	case "shift+tab", "up":
		m.focusRegister((m.focus + len(m.regInputs) - 1) % len(m.regInputs))
		return m, nil
	case "enter":
		if m.focus != regFieldConfirm {
			m.focusRegister(m.focus + 1)
			return m, nil
		}
		username := strings.TrimSpace(m.regInputs[regFieldUsername].Value())
		email := strings.TrimSpace(m.regInputs[regFieldEmail].Value())
		password := m.regInputs[regFieldPassword].Value()
		confirm := m.regInputs[regFieldConfirm].Value()
		switch {
		case username == "" || email == "" || password == "":
			m.formErr = "All fields are required."
			return m, nil
		case password != confirm:
			m.formErr = "Passwords do not match."
			return m, nil
		}
		m.formErr = ""
		return m, m.registerCmd(username, email, password)
	}

	var cmd tea.Cmd
	m.regInputs[m.focus], cmd = m.regInputs[m.focus].Update(msg)
	return m, cmd
}

func (m model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, tea.Quit
	case "enter":
		text := m.prompt.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.prompt.SetValue("")
		m.status = ""
		m.transcript.ClearError()
		return m, tea.Batch(m.submitCmd(text), m.spin.Tick)
	case "ctrl+n":
		m.status = ""
		return m, m.newChatCmd()
	case "ctrl+l":
		return m, m.logoutCmd()
	case "ctrl+k":
		if m.convCursor > 0 {
			m.convCursor--
		}
		return m, nil
	case "ctrl+j":
		if m.convCursor < len(m.dir.Conversations())-1 {
			m.convCursor++
		}
		return m, nil
	case "ctrl+o":
		convs := m.dir.Conversations()
		if m.convCursor < len(convs) {
			m.status = ""
			return m, m.selectCmd(convs[m.convCursor].ChatID)
		}
		return m, nil
	case "tab":
		// Cycle starter questions into the prompt until the first
		// message of the conversation has been sent.
		if !m.transcript.Started() {
			m.prompt.SetValue(starterQuestions[m.suggestIdx%len(starterQuestions)])
			m.prompt.CursorEnd()
			m.suggestIdx++
		}
		return m, nil
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

// alignCursor keeps the sidebar cursor on the current conversation
// after the directory changes underneath it.
func (m *model) alignCursor() {
	convs := m.dir.Conversations()
	current := m.dir.CurrentID()
	for i, c := range convs {
		if c.ChatID == current {
			m.convCursor = i
			return
		}
	}
	if m.convCursor >= len(convs) {
		m.convCursor = 0
	}
}
