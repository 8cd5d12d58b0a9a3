package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"senseichat/internal/credential"
	"senseichat/internal/gateway"
	"senseichat/internal/statestore"
)

type env struct {
	mgr   *Manager
	creds *credential.Store
	store *statestore.Store
}

func testEnv(t *testing.T, handler http.Handler) *env {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store, err := statestore.NewStore(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	creds := credential.NewStore(store, nil)
	gw := gateway.New(srv.URL, creds, nil)
	return &env{
		mgr:   NewManager(gw, creds, store, nil),
		creds: creds,
		store: store,
	}
}

func meHandler(t *testing.T, me gateway.MeResponse) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/me" {
			t.Errorf("unexpected request %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(me)
	})
}

func TestRecover_NoCredential(t *testing.T) {
	e := testEnv(t, meHandler(t, gateway.MeResponse{}))

	// A stale snapshot must not survive recovery without a credential.
	e.store.Set("auth", "profile", `{"email":"old@x.y","userId":9}`)

	outcome := e.mgr.Recover(context.Background())
	if outcome != RecoverNoCredential {
		t.Errorf("outcome = %v, want no-credential", outcome)
	}
	if e.mgr.State() != StateUnauthenticated {
		t.Errorf("state = %v, want unauthenticated", e.mgr.State())
	}
	if raw, _ := e.store.Get("auth", "profile"); raw != "" {
		t.Errorf("snapshot = %q after recovery without credential, want purged", raw)
	}
}

func TestRecover_FreshProfile(t *testing.T) {
	e := testEnv(t, meHandler(t, gateway.MeResponse{ID: 1, Username: "alice", Email: "a@b.c", Role: "CUSTOMER"}))
	e.creds.Set("stored-token")

	outcome := e.mgr.Recover(context.Background())
	if outcome != RecoverFreshProfile {
		t.Fatalf("outcome = %v, want fresh-profile", outcome)
	}
	if e.mgr.State() != StateAuthenticated {
		t.Errorf("state = %v, want authenticated", e.mgr.State())
	}
	p := e.mgr.Profile()
	if p == nil || p.Username != "alice" {
		t.Fatalf("profile = %+v, want alice", p)
	}

	// Snapshot must be refreshed by the fetch.
	raw, _ := e.store.Get("auth", "profile")
	if raw == "" {
		t.Fatal("snapshot not persisted after fresh profile fetch")
	}
	var snap map[string]any
	json.Unmarshal([]byte(raw), &snap)
	if snap["email"] != "a@b.c" {
		t.Errorf("snapshot email = %v, want a@b.c", snap["email"])
	}
}

func TestRecover_CachedProfile(t *testing.T) {
	e := testEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "try later", http.StatusServiceUnavailable)
	}))
	e.creds.Set("stored-token")
	e.store.Set("auth", "profile", `{"email":"a@b.c","userId":1,"roles":["CUSTOMER","ROLE_CUSTOMER"]}`)

	outcome := e.mgr.Recover(context.Background())
	if outcome != RecoverCachedProfile {
		t.Fatalf("outcome = %v, want cached-profile", outcome)
	}
	if e.mgr.State() != StateAuthenticated {
		t.Errorf("state = %v, want authenticated (stale data is acceptable)", e.mgr.State())
	}
	p := e.mgr.Profile()
	if p == nil || p.Email != "a@b.c" || p.ID != 1 {
		t.Fatalf("profile = %+v, want cached identity", p)
	}
	if !e.mgr.HasRole("CUSTOMER") {
		t.Error("cached roles not restored")
	}
}

func TestRecover_CredentialOnly(t *testing.T) {
	e := testEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	e.creds.Set("stored-token")

	outcome := e.mgr.Recover(context.Background())
	if outcome != RecoverCredentialOnly {
		t.Fatalf("outcome = %v, want credential-only", outcome)
	}
	if e.mgr.State() != StateAuthenticated {
		t.Errorf("state = %v, want authenticated", e.mgr.State())
	}
	if e.mgr.Profile() != nil {
		t.Errorf("profile = %+v, want nil in credential-only state", e.mgr.Profile())
	}
	if e.mgr.IsAdmin() || e.mgr.HasRole("CUSTOMER") {
		t.Error("role checks on a nil profile must be false")
	}
}

func TestRecover_RejectedCredential(t *testing.T) {
	e := testEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	e.creds.Set("expired-token")
	e.store.Set("auth", "profile", `{"email":"a@b.c","userId":1}`)

	outcome := e.mgr.Recover(context.Background())
	if outcome != RecoverRejected {
		t.Fatalf("outcome = %v, want rejected", outcome)
	}
	if e.mgr.State() != StateUnauthenticated {
		t.Errorf("state = %v, want unauthenticated", e.mgr.State())
	}
	if e.creds.Present() {
		t.Error("credential survived a 401 rejection")
	}
	if raw, _ := e.store.Get("auth", "profile"); raw != "" {
		t.Error("snapshot survived a rejected credential")
	}
}

func TestLogin_Success(t *testing.T) {
	e := testEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			json.NewEncoder(w).Encode(gateway.LoginResponse{AccessToken: "fresh-token"})
		case "/auth/me":
			json.NewEncoder(w).Encode(gateway.MeResponse{ID: 1, Username: "alice", Email: "a@b.c", Role: "CUSTOMER"})
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	}))

	res := e.mgr.Login(context.Background(), "alice", "pw")
	if !res.OK {
		t.Fatalf("Login failed: %s", res.Message)
	}
	if e.creds.Get() != "fresh-token" {
		t.Errorf("credential = %q, want fresh-token", e.creds.Get())
	}
	if e.mgr.State() != StateAuthenticated {
		t.Errorf("state = %v, want authenticated", e.mgr.State())
	}
	if e.mgr.IsAdmin() {
		t.Error("IsAdmin() = true for CUSTOMER")
	}
	if !e.mgr.HasRole("CUSTOMER") {
		t.Error("HasRole(CUSTOMER) = false")
	}
	if got := e.mgr.FirstRole(); got != "CUSTOMER" {
		t.Errorf("FirstRole() = %q, want CUSTOMER", got)
	}
}

func TestLogin_Rejected(t *testing.T) {
	e := testEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "Bad credentials"})
	}))

	res := e.mgr.Login(context.Background(), "alice", "wrong")
	if res.OK {
		t.Fatal("Login should fail")
	}
	if res.Message != "Bad credentials" {
		t.Errorf("Message = %q, want server message", res.Message)
	}
	if e.creds.Present() {
		t.Error("credential set despite failed login")
	}
}

func TestLogin_MissingToken(t *testing.T) {
	e := testEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))

	res := e.mgr.Login(context.Background(), "alice", "pw")
	if res.OK {
		t.Fatal("Login should fail when accessToken is missing")
	}
	if res.Message == "" {
		t.Error("missing-token failure should carry a message")
	}
	if e.creds.Present() {
		t.Error("credential set despite missing token")
	}
}

func TestLogout_ConvergesRegardlessOfBackend(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusUnauthorized} {
		e := testEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		e.creds.Set("tok")
		e.store.Set("auth", "profile", `{"email":"a@b.c","userId":1}`)
		e.mgr.setState(StateAuthenticated, &Profile{ID: 1})

		e.mgr.Logout(context.Background())
		// Twice: must be idempotent.
		e.mgr.Logout(context.Background())

		if e.mgr.State() != StateUnauthenticated {
			t.Errorf("status %d: state = %v, want unauthenticated", status, e.mgr.State())
		}
		if e.creds.Present() {
			t.Errorf("status %d: credential not cleared", status)
		}
		if raw, _ := e.store.Get("auth", "profile"); raw != "" {
			t.Errorf("status %d: snapshot not cleared", status)
		}
	}
}

func TestRegister(t *testing.T) {
	e := testEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/register" {
			t.Errorf("unexpected request %s", r.URL.Path)
		}
		var req gateway.RegisterRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Role != "CUSTOMER" {
			t.Errorf("role = %q, want CUSTOMER", req.Role)
		}
		json.NewEncoder(w).Encode(gateway.RegisterResponse{
			Message: "User registered", Username: req.Username, Role: req.Role,
		})
	}))

	msg, err := e.mgr.Register(context.Background(), "bob", "b@c.d", "pw", "CUSTOMER")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if msg != "User registered" {
		t.Errorf("message = %q", msg)
	}
}

func TestRoleQueries(t *testing.T) {
	tests := []struct {
		name      string
		profile   *Profile
		role      string
		want      bool
		wantAdmin bool
		wantFirst string
	}{
		{"nil profile", nil, "ADMIN", false, false, ""},
		{"bare match", &Profile{Roles: []string{"CUSTOMER", "ROLE_CUSTOMER"}}, "CUSTOMER", true, false, "CUSTOMER"},
		{"prefixed only", &Profile{Roles: []string{"ROLE_ADMIN"}}, "ADMIN", true, true, "ADMIN"},
		{"no match", &Profile{Roles: []string{"CUSTOMER"}}, "ADMIN", false, false, "CUSTOMER"},
		{"empty roles", &Profile{Roles: []string{}}, "ADMIN", false, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.profile.HasRole(tt.role); got != tt.want {
				t.Errorf("HasRole(%q) = %v, want %v", tt.role, got, tt.want)
			}
			if got := tt.profile.IsAdmin(); got != tt.wantAdmin {
				t.Errorf("IsAdmin() = %v, want %v", got, tt.wantAdmin)
			}
			if got := tt.profile.FirstRole(); got != tt.wantFirst {
				t.Errorf("FirstRole() = %q, want %q", got, tt.wantFirst)
			}
		})
	}
}

func TestNormalizeRoles(t *testing.T) {
	got := normalizeRoles("CUSTOMER")
	if len(got) != 2 || got[0] != "CUSTOMER" || got[1] != "ROLE_CUSTOMER" {
		t.Errorf("normalizeRoles(CUSTOMER) = %v", got)
	}
	if got := normalizeRoles(""); len(got) != 0 {
		t.Errorf("normalizeRoles(\"\") = %v, want empty", got)
	}
}
