// Package session orchestrates the authentication lifecycle: startup
// recovery of a stored credential, login, registration, logout, and
// role queries over the authenticated profile.
//
// The manager is a small state machine:
//
//	StateUninitialized → StateRecovering → StateAuthenticated
//	                                     ↘ StateUnauthenticated
//
// with StateAuthenticated → StateUnauthenticated on logout (or a 401 on
// any protected call) and the reverse on a successful login.
package session

import (
	"context"
	"log/slog"
	"sync"

	"senseichat/internal/credential"
	"senseichat/internal/gateway"
)

// State is the manager's position in the authentication lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateRecovering
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRecovering:
		return "recovering"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// RecoverOutcome identifies which recovery step produced the final
// state, making the degraded paths visible to callers instead of
// implicit fallthroughs.
type RecoverOutcome int

const (
	// RecoverNoCredential: nothing stored; session starts signed out.
	RecoverNoCredential RecoverOutcome = iota
	// RecoverFreshProfile: stored credential accepted, profile fetched.
	RecoverFreshProfile
	// RecoverCachedProfile: profile fetch unreachable, stale snapshot
	// restored. Identity and roles may be out of date until the next
	// successful fetch.
	RecoverCachedProfile
	// RecoverCredentialOnly: profile fetch unreachable and no usable
	// snapshot; authenticated with a nil profile. Callers must handle
	// the missing profile gracefully.
	RecoverCredentialOnly
	// RecoverRejected: the backend rejected the stored credential
	// outright (401); session starts signed out.
	RecoverRejected
)

func (o RecoverOutcome) String() string {
	switch o {
	case RecoverNoCredential:
		return "no-credential"
	case RecoverFreshProfile:
		return "fresh-profile"
	case RecoverCachedProfile:
		return "cached-profile"
	case RecoverCredentialOnly:
		return "credential-only"
	case RecoverRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Durable location of the profile snapshot.
const (
	snapshotNamespace = "auth"
	snapshotKey       = "profile"
)

// SnapshotStore is the durable home of the profile snapshot.
// *statestore.Store satisfies it.
type SnapshotStore interface {
	Get(namespace, key string) (string, error)
	Set(namespace, key, value string) error
	Delete(namespace, key string) error
}

// LoginResult is the structured outcome of a login attempt. A rejected
// login (wrong password, missing token in the response) is a result,
// not an error; only transport-level surprises become errors upstream,
// and those are folded into Message too.
type LoginResult struct {
	OK      bool
	Message string
	Profile *Profile
}

// Manager owns the authentication state. Safe for concurrent use.
type Manager struct {
	gw     *gateway.Client
	creds  *credential.Store
	store  SnapshotStore
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	profile *Profile
}

// NewManager creates a session manager in StateUninitialized.
func NewManager(gw *gateway.Client, creds *credential.Store, store SnapshotStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		gw:     gw,
		creds:  creds,
		store:  store,
		logger: logger,
		state:  StateUninitialized,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Profile returns the current profile, which is nil when signed out and
// may also be nil in the credential-only degraded state.
func (m *Manager) Profile() *Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile
}

// IsAuthenticated reports whether the session is live.
func (m *Manager) IsAuthenticated() bool {
	return m.State() == StateAuthenticated
}

func (m *Manager) setState(state State, profile *Profile) {
	m.mu.Lock()
	m.state = state
	m.profile = profile
	m.mu.Unlock()
}

// Recover restores the session at startup. The recovery strategies run
// in order until one settles the state:
//
//  1. no stored credential → signed out, snapshot purged
//  2. credential accepted by /auth/me → authenticated, fresh profile
//  3. credential rejected (401) → signed out (gateway already cleared it)
//  4. /auth/me unreachable, usable snapshot → authenticated, stale profile
//  5. /auth/me unreachable, no snapshot → authenticated, nil profile
//
// Steps 4 and 5 trade identity freshness for not punishing the user
// with a sign-out over a transient backend outage; the first 401 on any
// protected call corrects an over-optimistic recovery.
func (m *Manager) Recover(ctx context.Context) RecoverOutcome {
	m.setState(StateRecovering, nil)

	if !m.creds.Present() {
		// A profile snapshot must never outlive the absence of a
		// credential.
		m.purgeSnapshot()
		m.setState(StateUnauthenticated, nil)
		m.logger.Debug("session recovery", "outcome", RecoverNoCredential.String())
		return RecoverNoCredential
	}

	outcome, profile := m.recoverProfile(ctx)
	switch outcome {
	case RecoverRejected:
		m.purgeSnapshot()
		m.setState(StateUnauthenticated, nil)
	default:
		m.setState(StateAuthenticated, profile)
	}
	m.logger.Info("session recovered", "outcome", outcome.String())
	return outcome
}

// recoverProfile tries the profile sources in order: live fetch, cached
// snapshot, bare credential.
func (m *Manager) recoverProfile(ctx context.Context) (RecoverOutcome, *Profile) {
	profile, err := m.fetchProfile(ctx)
	if err == nil {
		return RecoverFreshProfile, profile
	}
	if gateway.IsUnauthorized(err) {
		// The stored credential is dead, not the network. The gateway
		// has already cleared it.
		return RecoverRejected, nil
	}
	m.logger.Warn("profile fetch failed during recovery", "error", err)

	if m.store != nil {
		if raw, err := m.store.Get(snapshotNamespace, snapshotKey); err == nil && raw != "" {
			if s, ok := decodeSnapshot(raw); ok {
				return RecoverCachedProfile, profileFromSnapshot(s)
			}
		}
	}

	return RecoverCredentialOnly, nil
}

// Login exchanges username+password for a credential and, on success,
// fetches the profile. The credential store is untouched on failure.
func (m *Manager) Login(ctx context.Context, username, password string) LoginResult {
	resp, err := m.gw.Login(ctx, username, password)
	if err != nil {
		return LoginResult{Message: gateway.UserMessage(err, "Login failed. Please try again.")}
	}
	if resp.AccessToken == "" {
		return LoginResult{Message: "Login failed: access token missing from response."}
	}

	m.creds.Set(resp.AccessToken)

	// Best effort: a live session with no profile beats no session.
	profile, err := m.fetchProfile(ctx)
	if err != nil {
		m.logger.Warn("profile fetch failed after login", "error", err)
		profile = nil
	}

	m.setState(StateAuthenticated, profile)
	return LoginResult{OK: true, Profile: profile}
}

// Register creates a new account. It does not log the user in; the
// backend expects a normal login afterwards. Returns the backend's
// confirmation message.
func (m *Manager) Register(ctx context.Context, username, email, password, role string) (string, error) {
	resp, err := m.gw.Register(ctx, username, email, password, role)
	if err != nil {
		return "", err
	}
	if resp.Message != "" {
		return resp.Message, nil
	}
	return "Registration successful for " + resp.Username + " (" + resp.Role + "). You can login now.", nil
}

// Logout ends the session. The backend call is best-effort — an
// expired credential or an unreachable server still results in a clean
// local sign-out. Idempotent.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.gw.Logout(ctx); err != nil {
		m.logger.Debug("logout call failed, clearing local state anyway", "error", err)
	}

	m.creds.Clear()
	m.purgeSnapshot()
	m.setState(StateUnauthenticated, nil)
}

// HasRole reports whether the current profile holds the role.
func (m *Manager) HasRole(role string) bool { return m.Profile().HasRole(role) }

// IsAdmin reports whether the current profile holds the ADMIN role.
func (m *Manager) IsAdmin() bool { return m.Profile().IsAdmin() }

// IsCustomer reports whether the current profile holds the CUSTOMER role.
func (m *Manager) IsCustomer() bool { return m.Profile().IsCustomer() }

// FirstRole returns the current profile's primary role, prefix stripped.
func (m *Manager) FirstRole() string { return m.Profile().FirstRole() }

// fetchProfile loads /auth/me, normalizes it, and refreshes the durable
// snapshot.
func (m *Manager) fetchProfile(ctx context.Context) (*Profile, error) {
	me, err := m.gw.Me(ctx)
	if err != nil {
		return nil, err
	}
	profile := profileFromMe(me)

	if m.store != nil {
		if raw, err := encodeSnapshot(profile); err == nil {
			if err := m.store.Set(snapshotNamespace, snapshotKey, raw); err != nil {
				m.logger.Warn("failed to persist profile snapshot", "error", err)
			}
		}
	}
	return profile, nil
}

func (m *Manager) purgeSnapshot() {
	if m.store == nil {
		return
	}
	if err := m.store.Delete(snapshotNamespace, snapshotKey); err != nil {
		m.logger.Warn("failed to purge profile snapshot", "error", err)
	}
}
