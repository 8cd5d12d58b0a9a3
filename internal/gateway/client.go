// Package gateway wraps every call to the assistant backend. It owns
// the wire formats, attaches the bearer credential through httpkit, and
// enforces the one global authorization policy: a 401 on any protected
// endpoint clears the credential and notifies the host through a typed
// AuthLost hook. Login and registration are exempt so their 401s can be
// shown as ordinary "invalid credentials" messages instead of ending
// the session.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"senseichat/internal/credential"
	"senseichat/internal/httpkit"
)

const errorBodyLimit = 4096

// Client is the typed REST surface of the backend. Safe for concurrent
// use; all methods honor their context for cancellation and deadlines.
type Client struct {
	baseURL string
	aux     *http.Client
	prompt  *http.Client
	creds   *credential.Store
	logger  *slog.Logger

	auxTimeout    time.Duration
	promptTimeout time.Duration

	authLost func()
}

// Option configures a Client.
type Option func(*Client)

// WithTimeouts sets the auxiliary-call and prompt-turn timeouts.
// Prompt turns get their own, longer budget since the assistant can
// take a while to answer.
func WithTimeouts(aux, prompt time.Duration) Option {
	return func(c *Client) {
		c.auxTimeout = aux
		c.promptTimeout = prompt
	}
}

// OnAuthLost registers fn to be called whenever a protected call is
// rejected with 401. The credential has already been cleared when fn
// runs. The host uses this to return to the sign-in screen — the
// transport itself performs no navigation.
func (c *Client) OnAuthLost(fn func()) {
	c.authLost = fn
}

// New creates a gateway client rooted at baseURL (e.g.
// "http://localhost:8081/api"). The credential store supplies the
// bearer token for every request at send time.
func New(baseURL string, creds *credential.Store, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		creds:         creds,
		logger:        logger,
		auxTimeout:    8 * time.Second,
		promptTimeout: 2 * time.Minute,
	}
	for _, o := range opts {
		o(c)
	}

	c.aux = httpkit.NewClient(
		httpkit.WithTimeout(c.auxTimeout),
		httpkit.WithBearer(creds.Get),
		httpkit.WithIdempotencyKeys(),
	)
	c.prompt = httpkit.NewClient(
		httpkit.WithTimeout(c.promptTimeout),
		httpkit.WithBearer(creds.Get),
		httpkit.WithIdempotencyKeys(),
	)
	return c
}

// Login exchanges credentials for a bearer token. Exempt from the
// 401 policy so a wrong password surfaces as a validation error.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var out LoginResponse
	err := c.doJSON(ctx, c.aux, http.MethodPost, "/auth/login", nil,
		LoginRequest{Username: username, Password: password}, &out, true)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates a new account. Exempt from the 401 policy.
func (c *Client) Register(ctx context.Context, username, email, password, role string) (*RegisterResponse, error) {
	var out RegisterResponse
	err := c.doJSON(ctx, c.aux, http.MethodPost, "/auth/register", nil,
		RegisterRequest{Username: username, Email: email, Password: password, Role: role}, &out, true)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout tells the backend to end the session. Callers treat failures
// (including an already-expired credential) as non-fatal; local logout
// never depends on this call.
func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, c.aux, http.MethodPost, "/auth/logout", nil, struct{}{}, nil, true)
}

// Me fetches the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*MeResponse, error) {
	var out MeResponse
	if err := c.doJSON(ctx, c.aux, http.MethodGet, "/auth/me", nil, nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListConversations fetches the user's conversations, most recently
// updated first.
func (c *Client) ListConversations(ctx context.Context) ([]ConversationSummary, error) {
	var out []ConversationSummary
	if err := c.doJSON(ctx, c.aux, http.MethodGet, "/chat/conversations", nil, nil, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateConversation asks the backend for a fresh, empty conversation.
func (c *Client) CreateConversation(ctx context.Context) (*ConversationSummary, error) {
	var out ConversationSummary
	if err := c.doJSON(ctx, c.aux, http.MethodPost, "/chat/conversations", nil, nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// History fetches the transcript for chatID, or for the server's notion
// of the current conversation when chatID is empty.
func (c *Client) History(ctx context.Context, chatID string) (*HistoryResponse, error) {
	var query url.Values
	if chatID != "" {
		query = url.Values{"chatId": {chatID}}
	}
	var out HistoryResponse
	if err := c.doJSON(ctx, c.aux, http.MethodGet, "/chat/history", query, nil, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// Prompt sends one chat turn and returns the assistant's reply as text.
// The backend may answer with a JSON string, arbitrary JSON, or plain
// text; non-string payloads are re-encoded compactly so the caller
// always gets displayable text.
func (c *Client) Prompt(ctx context.Context, prompt, chatID string) (string, error) {
	raw, err := c.doRaw(ctx, c.prompt, http.MethodPost, "/auth/prompt", nil,
		PromptRequest{Prompt: prompt, ChatID: chatID})
	if err != nil {
		return "", err
	}
	return decodePromptPayload(raw), nil
}

// decodePromptPayload turns whatever the prompt endpoint returned into
// displayable text.
func decodePromptPayload(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(trimmed, &asString); err == nil {
		return asString
	}
	var asAny any
	if err := json.Unmarshal(trimmed, &asAny); err == nil {
		if compact, err := json.Marshal(asAny); err == nil {
			return string(compact)
		}
	}
	return string(trimmed)
}

// doJSON performs a JSON round trip. body may be nil for bodiless
// requests; out may be nil when the response is ignored. authExempt
// marks the login/register/logout endpoints that must not trigger the
// global 401 policy.
func (c *Client) doJSON(ctx context.Context, httpc *http.Client, method, path string, query url.Values, body, out any, authExempt bool) error {
	raw, err := c.send(ctx, httpc, method, path, query, body, authExempt)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

// doRaw performs a round trip and returns the raw response body.
func (c *Client) doRaw(ctx context.Context, httpc *http.Client, method, path string, query url.Values, body any) ([]byte, error) {
	return c.send(ctx, httpc, method, path, query, body, false)
}

func (c *Client) send(ctx context.Context, httpc *http.Client, method, path string, query url.Values, body any, authExempt bool) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody *bytes.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s %s: marshal request: %w", method, path, err)
		}
		reqBody = bytes.NewReader(jsonData)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s %s: create request: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: request failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && !authExempt {
		httpkit.DrainAndClose(resp.Body, errorBodyLimit)
		// Stale or expired credential: end the local session before
		// anyone else can operate with it.
		c.creds.Clear()
		c.logger.Info("authorization lost", "method", method, "path", path)
		if c.authLost != nil {
			c.authLost()
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	}

	if resp.StatusCode >= 400 {
		msg := extractServerMessage(httpkit.ReadErrorBody(resp.Body, errorBodyLimit))
		c.logger.Debug("backend rejected request",
			"method", method, "path", path, "status", resp.StatusCode, "message", msg)
		return nil, fmt.Errorf("%s %s: %w", method, path, &APIError{Status: resp.StatusCode, Message: msg})
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", method, path, err)
	}
	return raw, nil
}

// extractServerMessage pulls a human-readable message out of an error
// body: a {"message": ...} object, a bare JSON string, or the raw text.
func extractServerMessage(body string) string {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return ""
	}
	var withMessage struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(trimmed), &withMessage); err == nil && withMessage.Message != "" {
		return withMessage.Message
	}
	var asString string
	if err := json.Unmarshal([]byte(trimmed), &asString); err == nil && asString != "" {
		return asString
	}
	return trimmed
}
