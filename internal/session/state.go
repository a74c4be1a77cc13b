package session

import "github.com/existflow/topia/internal/model"

// Status is where the session is in its lifecycle
type Status int

const (
	Anonymous Status = iota
	Authenticating
	Authenticated
	Failed
)

func (s Status) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Failed:
		return "error"
	default:
		return "unknown"
	}
}

// State is a snapshot of the store. User is set only when Status is
// Authenticated, and then always carries a token.
type State struct {
	Status Status
	User   *model.User

	// Terminal error of the last login/registration (Status == Failed)
	Err     error
	Message string

	// Loading is true while an operation is in flight
	Loading bool

	// ProfileErr is the last failed profile update; the session stays up
	ProfileErr error
}

// IsAuthenticated implements guard.Principal
func (s State) IsAuthenticated() bool {
	return s.Status == Authenticated && s.User != nil
}

// IsAdmin implements guard.Principal
func (s State) IsAdmin() bool {
	return s.IsAuthenticated() && s.User.IsAdmin
}

func (s State) clone() State {
	s.User = s.User.Clone()
	return s
}
