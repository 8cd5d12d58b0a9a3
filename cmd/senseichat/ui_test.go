package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"senseichat/internal/chat"
	"senseichat/internal/config"
	"senseichat/internal/credential"
	"senseichat/internal/gateway"
	"senseichat/internal/session"

	tea "github.com/charmbracelet/bubbletea"
)

// newTestModel wires a model against a backend that is never called.
// Tests here exercise pure UI state transitions only.
func newTestModel(t *testing.T) model {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	creds := credential.NewStore(nil, logger)
	gw := gateway.New("http://127.0.0.1:0/api", creds, logger)
	sess := session.NewManager(gw, creds, nil, logger)
	dir := chat.NewDirectory(gw, logger)
	transcript := chat.NewTranscript(gw, dir, logger)

	return newModel(context.Background(), config.Default(), sess, dir, transcript)
}

func keyMsg(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func TestLoginFocusCycling(t *testing.T) {
	m := newTestModel(t)

	next, _ := m.Update(keyMsg(tea.KeyTab))
	m = next.(model)
	if m.focus != loginFieldPassword {
		t.Errorf("after tab, focus = %d, want password field", m.focus)
	}

	next, _ = m.Update(keyMsg(tea.KeyShiftTab))
	m = next.(model)
	if m.focus != loginFieldUsername {
		t.Errorf("after shift+tab, focus = %d, want username field", m.focus)
	}

	// Enter on the username field advances instead of submitting.
	next, cmd := m.Update(keyMsg(tea.KeyEnter))
	m = next.(model)
	if m.focus != loginFieldPassword {
		t.Errorf("enter on username should move focus to password, got %d", m.focus)
	}
	if cmd != nil {
		t.Error("enter on username should not submit the form")
	}
}

func TestRegisterPasswordMismatch(t *testing.T) {
	m := newTestModel(t)

	next, _ := m.Update(keyMsg(tea.KeyCtrlR))
	m = next.(model)
	if m.view != viewRegister {
		t.Fatalf("ctrl+r should open the register form, view = %d", m.view)
	}

	m.regInputs[regFieldUsername].SetValue("alice")
	m.regInputs[regFieldEmail].SetValue("alice@example.com")
	m.regInputs[regFieldPassword].SetValue("secret")
	m.regInputs[regFieldConfirm].SetValue("different")
	m.focusRegister(regFieldConfirm)

	next, cmd := m.Update(keyMsg(tea.KeyEnter))
	m = next.(model)
	if cmd != nil {
		t.Error("mismatched passwords should not reach the backend")
	}
	if m.formErr != "Passwords do not match." {
		t.Errorf("formErr = %q, want password mismatch message", m.formErr)
	}
}

func TestRegisterRequiresAllFields(t *testing.T) {
	m := newTestModel(t)
	m.view = viewRegister
	m.focusRegister(regFieldConfirm)

	next, cmd := m.Update(keyMsg(tea.KeyEnter))
	m = next.(model)
	if cmd != nil {
		t.Error("empty form should not reach the backend")
	}
	if m.formErr == "" {
		t.Error("expected a validation message for empty fields")
	}
}

func TestStarterSuggestionCycle(t *testing.T) {
	m := newTestModel(t)
	m.view = viewChat

	next, _ := m.Update(keyMsg(tea.KeyTab))
	m = next.(model)
	if got := m.prompt.Value(); got != starterQuestions[0] {
		t.Errorf("first tab = %q, want %q", got, starterQuestions[0])
	}

	next, _ = m.Update(keyMsg(tea.KeyTab))
	m = next.(model)
	if got := m.prompt.Value(); got != starterQuestions[1] {
		t.Errorf("second tab = %q, want %q", got, starterQuestions[1])
	}
}

func TestBlankPromptNotSubmitted(t *testing.T) {
	m := newTestModel(t)
	m.view = viewChat
	m.prompt.SetValue("   ")

	_, cmd := m.Update(keyMsg(tea.KeyEnter))
	if cmd != nil {
		t.Error("whitespace-only prompt should not submit")
	}
}

func TestAuthLostReturnsToLogin(t *testing.T) {
	m := newTestModel(t)
	m.view = viewChat
	m.prompt.SetValue("half-typed question")

	next, _ := m.Update(authLostMsg{})
	m = next.(model)
	if m.view != viewLogin {
		t.Errorf("view = %d, want login", m.view)
	}
	if m.formErr != sessionExpiredNotice {
		t.Errorf("formErr = %q, want session expired notice", m.formErr)
	}
	if m.prompt.Value() != "" {
		t.Error("prompt should be cleared when the session is lost")
	}
}

func TestLogoutReturnsToLoginWithoutError(t *testing.T) {
	m := newTestModel(t)
	m.view = viewChat

	next, _ := m.Update(logoutDoneMsg{})
	m = next.(model)
	if m.view != viewLogin {
		t.Errorf("view = %d, want login", m.view)
	}
	if m.formErr != "" {
		t.Errorf("formErr = %q, want empty after explicit sign-out", m.formErr)
	}
	if m.formInfo == "" {
		t.Error("expected a signed-out notice")
	}
}

func TestFormatUpdatedAt(t *testing.T) {
	if got := formatUpdatedAt(""); got != "" {
		t.Errorf("empty timestamp = %q, want empty", got)
	}
	if got := formatUpdatedAt("not-a-time"); got != "not-a-time" {
		t.Errorf("unparseable timestamp = %q, want passthrough", got)
	}
	if got := formatUpdatedAt("2026-03-01T14:30:00Z"); got == "" || got == "2026-03-01T14:30:00Z" {
		t.Errorf("valid timestamp should be reformatted, got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate(short, 10) = %q", got)
	}
	if got := truncate("a much longer title", 8); got != "a much …" {
		t.Errorf("truncate = %q, want %q", got, "a much …")
	}
	if got := truncate("ab", 1); got != "ab" {
		t.Errorf("truncate with n=1 should not slice, got %q", got)
	}
}
