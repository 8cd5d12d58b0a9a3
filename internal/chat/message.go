// Package chat keeps the client's view of conversations consistent with
// the server under out-of-order asynchronous responses: the directory
// of conversations, which one is current, and the transcript displayed
// for it.
package chat

import "senseichat/internal/gateway"

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one displayed turn. Messages are never mutated once
// appended; the transcript is cleared wholesale when switching
// conversations. Rendered marks content that should go through the
// markdown renderer (assistant output) rather than being shown verbatim.
type Message struct {
	ID       string
	From     Sender
	Content  string
	Rendered bool
}

// senderForRole maps the server's role convention onto a Sender.
func senderForRole(role string) Sender {
	if role == "USER" {
		return SenderUser
	}
	return SenderAssistant
}

// messagesFromHistory converts a stored transcript into display
// messages. Historical assistant turns are rendered like fresh ones.
func messagesFromHistory(history []gateway.HistoryMessage) []Message {
	msgs := make([]Message, 0, len(history))
	for _, h := range history {
		from := senderForRole(h.Role)
		msgs = append(msgs, Message{
			ID:       h.ID,
			From:     from,
			Content:  h.Content,
			Rendered: from == SenderAssistant,
		})
	}
	return msgs
}
