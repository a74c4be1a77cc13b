// Package router tracks which view is showing and moves between views through
// the route guard.
package router

import (
	"sync"

	"github.com/existflow/topia/internal/guard"
	"github.com/existflow/topia/internal/logger"
)

// Source returns the live principal; it is called on every navigation
type Source func() guard.Principal

// Option configures a Router
type Option func(*Router)

// WithLogger sets the router logger
func WithLogger(l *logger.Logger) Option {
	return func(r *Router) { r.log = l }
}

// WithStart sets the initial path (default "/")
func WithStart(path string) Option {
	return func(r *Router) { r.current = path }
}

// Router is the navigator. It satisfies api.Navigator.
type Router struct {
	table  *guard.Table
	source Source
	log    *logger.Logger

	mu      sync.Mutex
	current string
	history []string
}

// New creates a router over table. A nil table means every path is public.
func New(table *guard.Table, source Source, opts ...Option) *Router {
	r := &Router{
		table:   table,
		source:  source,
		current: guard.HomePath,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.history = []string{r.current}
	return r
}

// Navigate asks to show path. The guard runs against the session as it is
// now, and the router ends up on path or on the redirect target.
func (r *Router) Navigate(path string) guard.Decision {
	var p guard.Principal
	if r.source != nil {
		p = r.source()
	}
	d := r.table.Evaluate(p, path)
	target := d.Target(path)

	if d.Outcome != guard.Allow {
		r.log.Debug("Navigation redirected",
			logger.F("requested", path),
			logger.F("outcome", d.Outcome.String()),
			logger.F("target", target))
	}
	r.move(target)
	return d
}

// Refresh re-runs the guard for the current path, e.g. after a logout
func (r *Router) Refresh() guard.Decision {
	return r.Navigate(r.CurrentPath())
}

// Redirect moves to path without consulting the guard
func (r *Router) Redirect(path string) {
	r.log.Debug("Forced redirect", logger.F("target", path))
	r.move(path)
}

// CurrentPath returns the path being shown
func (r *Router) CurrentPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// History returns every path shown so far, oldest first
func (r *Router) History() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.history...)
}

// ReturnPath is where to go after a successful login: the return path carried
// by the current login URL, or home.
func (r *Router) ReturnPath() string {
	cur := r.CurrentPath()
	if !guard.IsLoginPath(cur) {
		return guard.HomePath
	}
	return guard.ReturnPathOf(cur)
}

func (r *Router) move(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if path == r.current {
		return
	}
	r.current = path
	r.history = append(r.history, path)
}
