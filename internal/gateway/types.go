package gateway

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token issued on successful login.
type LoginResponse struct {
	AccessToken string `json:"accessToken"`
}

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// RegisterResponse is the backend's acknowledgement of a new account.
type RegisterResponse struct {
	Message  string `json:"message"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// MeResponse is the flat profile shape returned by GET /auth/me.
// The backend assigns exactly one role per account.
type MeResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// PromptRequest is the body for POST /auth/prompt.
type PromptRequest struct {
	Prompt string `json:"prompt"`
	ChatID string `json:"chatId,omitempty"`
}

// ConversationSummary is one entry of GET /chat/conversations. The
// server returns the list ordered most-recently-updated first; that
// order is authoritative and never re-sorted client-side.
type ConversationSummary struct {
	ChatID    string `json:"chatId"`
	Title     string `json:"title"`
	UpdatedAt string `json:"updatedAt"`
}

// HistoryMessage is one stored turn of a conversation transcript.
// Role is the server's convention: "USER" for the human, anything else
// is the assistant.
type HistoryMessage struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// HistoryResponse is the body of GET /chat/history. ChatID is the
// server's authoritative notion of which conversation was returned,
// even when the request named none.
type HistoryResponse struct {
	ChatID   string           `json:"chatId"`
	Messages []HistoryMessage `json:"messages"`
}
