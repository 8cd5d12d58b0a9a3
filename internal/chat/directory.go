package chat

import (
	"context"
	"log/slog"
	"sync"

	"senseichat/internal/gateway"
)

// Directory maintains the ordered list of the user's conversations and
// which one is current. The server's ordering (most recently updated
// first) is authoritative; the only local deviation is the transient
// prepend of an optimistically created conversation, which the next
// refresh replaces. Safe for concurrent use.
type Directory struct {
	gw     *gateway.Client
	logger *slog.Logger

	mu            sync.Mutex
	conversations []gateway.ConversationSummary
	currentID     string
}

// NewDirectory creates an empty directory with no current conversation.
func NewDirectory(gw *gateway.Client, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{gw: gw, logger: logger}
}

// Refresh replaces the list with the server's and applies the selection
// policy: with preserveCurrent and an existing selection, the selection
// survives even if the fetched list no longer contains it; otherwise
// the most recently updated conversation becomes current (or none, for
// an empty list). Listing is best-effort — a fetch failure empties the
// list and never escalates. Returns the current conversation id, which
// may be empty.
func (d *Directory) Refresh(ctx context.Context, preserveCurrent bool) string {
	list, err := d.gw.ListConversations(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()

	if err != nil {
		d.logger.Debug("conversation list fetch failed", "error", err)
		d.conversations = nil
		if !preserveCurrent {
			d.currentID = ""
		}
		return d.currentID
	}

	d.conversations = list
	if preserveCurrent && d.currentID != "" {
		return d.currentID
	}
	if len(list) > 0 {
		d.currentID = list[0].ChatID
	} else {
		d.currentID = ""
	}
	return d.currentID
}

// Conversations returns a copy of the current list.
func (d *Directory) Conversations() []gateway.ConversationSummary {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]gateway.ConversationSummary, len(d.conversations))
	copy(out, d.conversations)
	return out
}

// CurrentID returns the current conversation id, or "" when none is
// selected.
func (d *Directory) CurrentID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.currentID
}

// setCurrent records the current conversation id. An empty id means no
// selection.
func (d *Directory) setCurrent(id string) {
	d.mu.Lock()
	d.currentID = id
	d.mu.Unlock()
}

// prepend puts c at the head of the list, removing any existing entry
// with the same id first so no two conversations share a ChatID.
func (d *Directory) prepend(c gateway.ConversationSummary) {
	d.mu.Lock()
	defer d.mu.Unlock()

	filtered := make([]gateway.ConversationSummary, 0, len(d.conversations)+1)
	filtered = append(filtered, c)
	for _, existing := range d.conversations {
		if existing.ChatID != c.ChatID {
			filtered = append(filtered, existing)
		}
	}
	d.conversations = filtered
}
