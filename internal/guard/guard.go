// Package guard decides whether a view may render for the current session.
// Everything here is pure: no I/O, no state, the same inputs give the same
// Decision. Callers re-evaluate on every navigation.
package guard

import (
	"net/url"
	"strings"
)

const (
	// LoginPath is the login view
	LoginPath = "/login"
	// HomePath is where non-admins land when they hit an admin view
	HomePath = "/"
	// ReturnParam carries the originally requested path on the login URL
	ReturnParam = "redirect"
)

// Requirement is what a view demands of the session
type Requirement struct {
	AuthRequired  bool `yaml:"auth" json:"auth"`
	AdminRequired bool `yaml:"admin" json:"admin"`
}

// Principal is the part of the session the guard looks at
type Principal interface {
	IsAuthenticated() bool
	IsAdmin() bool
}

// Outcome is the kind of decision
type Outcome int

const (
	Allow Outcome = iota
	RedirectToLogin
	RedirectToHome
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case RedirectToLogin:
		return "redirect-to-login"
	case RedirectToHome:
		return "redirect-to-home"
	default:
		return "unknown"
	}
}

// Decision is the result of Evaluate
type Decision struct {
	Outcome Outcome
	// ReturnPath is the requested path, set for RedirectToLogin
	ReturnPath string
}

// Target is the path the navigator should move to
func (d Decision) Target(requested string) string {
	switch d.Outcome {
	case RedirectToLogin:
		return LoginURL(d.ReturnPath)
	case RedirectToHome:
		return HomePath
	default:
		return requested
	}
}

// Evaluate decides whether requestedPath may render under req for p.
// A nil Principal counts as anonymous.
func Evaluate(req Requirement, p Principal, requestedPath string) Decision {
	if !req.AuthRequired {
		return Decision{Outcome: Allow}
	}
	if p == nil || !p.IsAuthenticated() {
		return Decision{Outcome: RedirectToLogin, ReturnPath: requestedPath}
	}
	if req.AdminRequired && !p.IsAdmin() {
		return Decision{Outcome: RedirectToHome}
	}
	return Decision{Outcome: Allow}
}

// LoginURL builds the login destination carrying returnPath
func LoginURL(returnPath string) string {
	if returnPath == "" || IsLoginPath(returnPath) {
		return LoginPath
	}
	return LoginPath + "?" + ReturnParam + "=" + url.QueryEscape(returnPath)
}

// IsLoginPath reports whether p is the login view, with or without a query
func IsLoginPath(p string) bool {
	return stripQuery(p) == LoginPath
}

// ReturnPathOf reads the return path from a login URL, defaulting to HomePath.
// Only local absolute paths are honoured.
func ReturnPathOf(loginURL string) string {
	i := strings.IndexByte(loginURL, '?')
	if i < 0 {
		return HomePath
	}
	q, err := url.ParseQuery(loginURL[i+1:])
	if err != nil {
		return HomePath
	}
	ret := q.Get(ReturnParam)
	if !strings.HasPrefix(ret, "/") || strings.HasPrefix(ret, "//") {
		return HomePath
	}
	return ret
}

func stripQuery(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}
