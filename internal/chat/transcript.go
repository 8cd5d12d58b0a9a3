package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"senseichat/internal/gateway"
)

// placeholderTitle names an optimistically created conversation until
// the next directory refresh brings the server's title.
const placeholderTitle = "New chat"

// ErrEmptyPrompt is returned when a submission is blank after trimming.
var ErrEmptyPrompt = errors.New("empty prompt")

// ErrBusy is returned when a submission arrives while another is still
// in flight. Submissions are single-flight: concurrent ones are
// rejected, never queued.
var ErrBusy = errors.New("a submission is already in flight")

// Transcript controls the message history displayed for the current
// conversation. It owns the optimistic-append policy, the single-flight
// submission rule, the no-duplicate-empty-chat rule, and the generation
// guard that keeps a slow history load for an abandoned conversation
// from overwriting a newer selection. Safe for concurrent use.
type Transcript struct {
	gw     *gateway.Client
	dir    *Directory
	logger *slog.Logger

	mu         sync.Mutex
	messages   []Message
	started    bool
	inFlight   bool
	generation uint64
	lastErr    string
}

// NewTranscript creates an empty transcript bound to dir.
func NewTranscript(gw *gateway.Client, dir *Directory, logger *slog.Logger) *Transcript {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transcript{gw: gw, dir: dir, logger: logger}
}

// Messages returns a copy of the displayed transcript.
func (t *Transcript) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Started reports whether the current conversation has any content.
// The host shows onboarding/starter suggestions while false.
func (t *Transcript) Started() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// InFlight reports whether a submission is outstanding.
func (t *Transcript) InFlight() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inFlight
}

// LastError returns the most recent user-visible error message, or "".
func (t *Transcript) LastError() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// ClearError discards the user-visible error message.
func (t *Transcript) ClearError() {
	t.mu.Lock()
	t.lastErr = ""
	t.mu.Unlock()
}

// LoadHistory replaces the transcript with the stored history for
// chatID, or for the server's current conversation when chatID is
// empty. The server's returned conversation id is authoritative and
// updates the directory's current selection. History loading is
// best-effort: an empty or failed result clears the transcript and
// marks the conversation as not yet started.
//
// A completion is committed only if no newer selection superseded this
// load in the meantime; stale completions are discarded.
func (t *Transcript) LoadHistory(ctx context.Context, chatID string) {
	t.mu.Lock()
	gen := t.generation
	t.mu.Unlock()

	resp, err := t.gw.History(ctx, chatID)
	if err != nil {
		t.logger.Debug("history load failed", "chatId", chatID, "error", err)
		t.mu.Lock()
		if t.generation == gen {
			t.messages = nil
			t.started = false
		}
		t.mu.Unlock()
		return
	}

	resolved := resp.ChatID
	if resolved == "" {
		resolved = chatID
	}
	mapped := messagesFromHistory(resp.Messages)

	t.mu.Lock()
	if t.generation != gen {
		// A newer selection won; applying this load would display the
		// wrong conversation.
		t.mu.Unlock()
		t.logger.Debug("discarding stale history load", "chatId", chatID)
		return
	}
	if len(mapped) > 0 {
		t.messages = mapped
		t.started = true
	} else {
		t.messages = nil
		t.started = false
	}
	t.mu.Unlock()

	t.dir.setCurrent(resolved)
}

// Submit sends one prompt turn. Blank input and concurrent submissions
// are rejected ([ErrEmptyPrompt], [ErrBusy]). With no current
// conversation one is created first and adopted optimistically. The
// user's message is appended before the backend responds and is kept
// even if the turn fails; failures surface through LastError and the
// returned error.
func (t *Transcript) Submit(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyPrompt
	}

	// Reserve the single flight up front so a concurrent submission
	// cannot slip in during conversation creation.
	t.mu.Lock()
	if t.inFlight {
		t.mu.Unlock()
		return ErrBusy
	}
	t.inFlight = true
	t.started = true
	t.mu.Unlock()

	chatID := t.dir.CurrentID()
	if chatID == "" {
		created, err := t.gw.CreateConversation(ctx)
		if err != nil || created.ChatID == "" {
			t.mu.Lock()
			t.inFlight = false
			t.lastErr = "Could not start a new chat. Please try again."
			t.mu.Unlock()
			if err == nil {
				err = errors.New("create conversation: empty chatId")
			}
			return err
		}
		chatID = created.ChatID
		t.dir.setCurrent(chatID)
		t.dir.prepend(gateway.ConversationSummary{
			ChatID:    chatID,
			Title:     placeholderTitle,
			UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		})
	}

	t.mu.Lock()
	gen := t.generation
	t.messages = append(t.messages, Message{
		ID:      uuid.NewString(),
		From:    SenderUser,
		Content: trimmed,
	})
	t.lastErr = ""
	t.mu.Unlock()

	reply, err := t.gw.Prompt(ctx, trimmed, chatID)

	t.mu.Lock()
	t.inFlight = false
	if err != nil {
		// The optimistic user message stays visible; hiding typed
		// input would be worse than showing a failed turn.
		t.lastErr = gateway.UserMessage(err, "Something went wrong while contacting the assistant.")
		t.mu.Unlock()
		return err
	}
	if t.generation == gen {
		t.messages = append(t.messages, Message{
			ID:       uuid.NewString(),
			From:     SenderAssistant,
			Content:  reply,
			Rendered: true,
		})
	}
	t.mu.Unlock()

	// Pick up the server's new ordering, title, and timestamp.
	t.dir.Refresh(ctx, true)
	return nil
}

// NewConversation starts a fresh conversation. If the current
// transcript has no messages this is a no-op that just reloads the
// current history — repeatedly asking for a new chat without having
// sent anything must not pile up empty conversations.
func (t *Transcript) NewConversation(ctx context.Context) error {
	t.mu.Lock()
	empty := len(t.messages) == 0
	t.mu.Unlock()

	if empty {
		t.LoadHistory(ctx, t.dir.CurrentID())
		return nil
	}

	created, err := t.gw.CreateConversation(ctx)
	if err != nil {
		t.mu.Lock()
		t.lastErr = "Could not create a new chat. Please try again."
		t.mu.Unlock()
		return err
	}
	if created.ChatID == "" {
		return nil
	}

	t.mu.Lock()
	t.generation++
	t.messages = nil
	t.started = false
	t.mu.Unlock()

	t.dir.setCurrent(created.ChatID)
	title := created.Title
	if title == "" {
		title = placeholderTitle
	}
	t.dir.prepend(gateway.ConversationSummary{
		ChatID:    created.ChatID,
		Title:     title,
		UpdatedAt: created.UpdatedAt,
	})
	return nil
}

// Select switches to another conversation. The displayed transcript is
// cleared synchronously, before the history fetch, so the previous
// conversation's content can never flash or outlive the switch; the
// generation bump invalidates any still-pending load for the old
// selection.
func (t *Transcript) Select(ctx context.Context, chatID string) {
	if chatID == "" || chatID == t.dir.CurrentID() {
		return
	}

	t.mu.Lock()
	t.messages = nil
	t.lastErr = ""
	t.generation++
	t.mu.Unlock()

	t.dir.setCurrent(chatID)
	t.LoadHistory(ctx, chatID)
}
