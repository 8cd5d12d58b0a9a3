package main

import (
	"fmt"
	"strings"
	"time"

	"senseichat/internal/chat"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// layout recomputes pane sizes after a terminal resize. The markdown
// renderer wraps at the transcript width, so it is rebuilt here too.
func (m *model) layout() {
	contentWidth := m.width - sidebarWidth - 2
	if contentWidth < 20 {
		contentWidth = 20
	}
	// header + status + input + hint
	m.vp.Width = contentWidth
	m.vp.Height = m.height - 5
	if m.vp.Height < 3 {
		m.vp.Height = 3
	}
	m.prompt.Width = contentWidth - 4

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(contentWidth-2),
	)
	if err == nil {
		m.renderer = r
	}
}

// refreshViewport rebuilds the transcript pane from the current
// messages.
func (m *model) refreshViewport() {
	m.vp.SetContent(m.renderTranscript())
}

func (m model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	switch m.view {
	case viewLogin:
		return m.renderLogin()
	case viewRegister:
		return m.renderRegister()
	default:
		return m.renderChat()
	}
}

func (m model) renderLogin() string {
	var sb strings.Builder

	sb.WriteString(m.styles.header.Render("senseichat") + "\n\n")
	sb.WriteString(m.styles.formLabel.Render("Sign in") + "\n\n")
	sb.WriteString("  " + m.loginInputs[loginFieldUsername].View() + "\n")
	sb.WriteString("  " + m.loginInputs[loginFieldPassword].View() + "\n\n")

	if m.formErr != "" {
		sb.WriteString("  " + m.styles.errLine.Render(m.formErr) + "\n")
	}
	if m.formInfo != "" {
		sb.WriteString("  " + m.styles.infoLine.Render(m.formInfo) + "\n")
	}

	sb.WriteString("\n" + m.styles.muted.Render("enter sign in · ctrl+r create account · esc quit"))
	return lipgloss.NewStyle().Padding(1, 2).Render(sb.String())
}

func (m model) renderRegister() string {
	var sb strings.Builder

	sb.WriteString(m.styles.header.Render("senseichat") + "\n\n")
	sb.WriteString(m.styles.formLabel.Render("Create account") + "\n\n")
	for i := range m.regInputs {
		sb.WriteString("  " + m.regInputs[i].View() + "\n")
	}
	sb.WriteString("\n  " + m.styles.muted.Render("role: "+m.cfg.Register.DefaultRole) + "\n\n")

	if m.formErr != "" {
		sb.WriteString("  " + m.styles.errLine.Render(m.formErr) + "\n")
	}

	sb.WriteString("\n" + m.styles.muted.Render("enter submit · esc back to sign in"))
	return lipgloss.NewStyle().Padding(1, 2).Render(sb.String())
}

func (m model) renderChat() string {
	header := m.renderHeader()
	sidebar := m.renderSidebar()

	statusLine := ""
	switch {
	case m.transcript.InFlight():
		statusLine = m.spin.View() + " " + m.styles.muted.Render("thinking...")
	case m.transcript.LastError() != "":
		statusLine = m.styles.errLine.Render(m.transcript.LastError())
	case m.status != "":
		statusLine = m.styles.errLine.Render(m.status)
	}

	hint := m.styles.muted.Render("enter send · tab suggest · ctrl+n new chat · ctrl+k/j/o conversations · ctrl+l sign out")

	main := lipgloss.JoinVertical(lipgloss.Left,
		m.vp.View(),
		statusLine,
		m.prompt.View(),
		hint,
	)

	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", main)
	return lipgloss.JoinVertical(lipgloss.Left, header, body)
}

func (m model) renderHeader() string {
	title := m.styles.header.Render("senseichat")

	who := ""
	if p := m.sess.Profile(); p != nil {
		who = p.Username
		if role := m.sess.FirstRole(); role != "" {
			who += " · " + role
		}
		if m.sess.IsAdmin() {
			who += " · admin"
		}
	}
	if who == "" {
		return title
	}
	return title + "  " + m.styles.badge.Render(who)
}

func (m model) renderSidebar() string {
	var sb strings.Builder
	sb.WriteString(m.styles.formLabel.Render("Conversations") + "\n")

	convs := m.dir.Conversations()
	if len(convs) == 0 {
		sb.WriteString(m.styles.muted.Render("(none yet)") + "\n")
	}

	current := m.dir.CurrentID()
	for i, c := range convs {
		title := c.Title
		if title == "" {
			title = "Untitled"
		}
		name := truncate(title, sidebarWidth-4)
		if c.ChatID == current {
			name = m.styles.convActive.Render(name)
		}

		marker := "  "
		if i == m.convCursor {
			marker = m.styles.convCursor.Render("> ")
		}
		sb.WriteString(marker + name + "\n")
		if ts := formatUpdatedAt(c.UpdatedAt); ts != "" {
			sb.WriteString("    " + m.styles.muted.Render(ts) + "\n")
		}
	}

	return m.styles.sidebar.Render(sb.String())
}

func (m model) renderTranscript() string {
	msgs := m.transcript.Messages()
	if len(msgs) == 0 && !m.transcript.Started() {
		return m.renderWelcome()
	}

	var sb strings.Builder
	for _, msg := range msgs {
		switch msg.From {
		case chat.SenderUser:
			sb.WriteString(m.styles.userLabel.Render("You") + "\n")
			sb.WriteString(msg.Content + "\n\n")
		default:
			sb.WriteString(m.styles.botLabel.Render("Assistant") + "\n")
			if msg.Rendered {
				sb.WriteString(m.safeRenderMarkdown(msg.Content))
			} else {
				sb.WriteString(msg.Content + "\n")
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (m model) renderWelcome() string {
	var sb strings.Builder
	sb.WriteString(m.styles.header.Render("What can I help you with?") + "\n\n")
	sb.WriteString(m.styles.muted.Render("Try one of these, or type your own question:") + "\n\n")
	for i, q := range starterQuestions {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, q))
	}
	sb.WriteString("\n" + m.styles.muted.Render("press tab to cycle suggestions into the prompt"))
	return sb.String()
}

// safeRenderMarkdown renders markdown with panic recovery. If glamour
// panics or errors, the plain text is returned instead.
func (m model) safeRenderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content
		}
	}()

	if m.renderer != nil && content != "" {
		rendered, err := m.renderer.Render(content)
		if err == nil {
			return rendered
		}
	}
	return content
}

// formatUpdatedAt renders a conversation timestamp for the sidebar.
// The backend sends RFC 3339; anything unparseable is shown as-is.
func formatUpdatedAt(ts string) string {
	if ts == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("Jan 2 15:04")
}

// truncate shortens s to at most n characters, marking the cut with an
// ellipsis.
func truncate(s string, n int) string {
	if n <= 1 || len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
