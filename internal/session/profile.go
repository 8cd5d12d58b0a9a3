package session

import (
	"encoding/json"
	"strings"

	"senseichat/internal/gateway"
)

// Profile is the authenticated user's identity. Roles holds the
// backend's single assigned role in both its bare and ROLE_-prefixed
// forms so capability checks accept either spelling.
type Profile struct {
	ID       int64
	Username string
	Email    string
	Roles    []string
}

// snapshot is the minimal profile copy persisted for startup resilience.
// Kept deliberately small: enough to render the UI optimistically when
// the profile re-fetch fails, nothing more.
type snapshot struct {
	Email  string   `json:"email"`
	UserID int64    `json:"userId"`
	Roles  []string `json:"roles"`
}

// normalizeRoles expands the backend's single role into its equivalent
// string forms. An empty role yields an empty set.
func normalizeRoles(role string) []string {
	if role == "" {
		return []string{}
	}
	return []string{role, "ROLE_" + role}
}

// profileFromMe converts the wire profile into the domain one.
func profileFromMe(me *gateway.MeResponse) *Profile {
	return &Profile{
		ID:       me.ID,
		Username: me.Username,
		Email:    me.Email,
		Roles:    normalizeRoles(me.Role),
	}
}

// profileFromSnapshot rebuilds a (partial) profile from the cached
// snapshot. Username is not cached and stays empty until the next
// successful fetch.
func profileFromSnapshot(s snapshot) *Profile {
	return &Profile{
		ID:    s.UserID,
		Email: s.Email,
		Roles: s.Roles,
	}
}

// usable reports whether the snapshot carries enough identity to be
// worth restoring.
func (s snapshot) usable() bool {
	return s.Email != "" || s.UserID != 0
}

func encodeSnapshot(p *Profile) (string, error) {
	data, err := json.Marshal(snapshot{
		Email:  p.Email,
		UserID: p.ID,
		Roles:  p.Roles,
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeSnapshot(raw string) (snapshot, bool) {
	var s snapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return snapshot{}, false
	}
	return s, s.usable()
}

// HasRole reports whether the profile holds the role in either its
// bare or ROLE_-prefixed form. Safe on a nil profile.
func (p *Profile) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role || r == "ROLE_"+role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the profile holds the ADMIN role.
func (p *Profile) IsAdmin() bool {
	return p.HasRole("ADMIN") || p.HasRole("ROLE_ADMIN")
}

// IsCustomer reports whether the profile holds the CUSTOMER role.
func (p *Profile) IsCustomer() bool {
	return p.HasRole("CUSTOMER") || p.HasRole("ROLE_CUSTOMER")
}

// FirstRole returns the profile's first role with any ROLE_ prefix
// stripped, or "" when no role is present.
func (p *Profile) FirstRole() string {
	if p == nil || len(p.Roles) == 0 {
		return ""
	}
	return strings.TrimPrefix(p.Roles[0], "ROLE_")
}
