package model

// RoleAdmin is the role string that grants administrator access
const RoleAdmin = "admin"

// User is the identity embedded in a session. Its JSON form is also the
// durable storage layout, so field names follow the backend payload.
type User struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	IsAdmin bool   `json:"isAdmin"`
	Role    string `json:"role,omitempty"`
	Token   string `json:"token,omitempty"`

	// Loyalty fields, only present for some accounts
	Points int    `json:"points,omitempty"`
	Tier   string `json:"tier,omitempty"`
}

// DeriveAdmin folds the explicit flag and the role string into IsAdmin.
// Either one signalling admin is enough.
func (u *User) DeriveAdmin() {
	u.IsAdmin = u.IsAdmin || u.Role == RoleAdmin
}

// Merge copies the non-empty fields of a profile response into u.
// The token is never taken from the patch: the profile endpoint does not reissue it.
func (u *User) Merge(patch User) {
	if patch.ID != "" {
		u.ID = patch.ID
	}
	if patch.Name != "" {
		u.Name = patch.Name
	}
	if patch.Email != "" {
		u.Email = patch.Email
	}
	if patch.Phone != "" {
		u.Phone = patch.Phone
	}
	if patch.Role != "" {
		u.Role = patch.Role
	}
	if patch.Points != 0 {
		u.Points = patch.Points
	}
	if patch.Tier != "" {
		u.Tier = patch.Tier
	}
	u.IsAdmin = u.IsAdmin || patch.IsAdmin
	u.DeriveAdmin()
}

// Clone returns a copy that can be handed out without sharing state
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
