package guard

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed routes.yaml
var defaultRoutes []byte

// Route binds a path pattern to a Requirement
type Route struct {
	Path        string `yaml:"path"`
	Requirement `yaml:",inline"`
}

// Table is an ordered route list. The first matching route wins, and exact
// routes should come before wildcards that cover them.
type Table struct {
	Routes []Route `yaml:"routes"`
}

// DefaultTable returns the storefront route table
func DefaultTable() *Table {
	t, err := ParseTable(defaultRoutes)
	if err != nil {
		panic(fmt.Sprintf("guard: embedded routes.yaml: %v", err))
	}
	return t
}

// LoadTable reads a route table from a YAML file
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routes: %w", err)
	}
	return ParseTable(data)
}

// ParseTable parses and validates YAML route data
func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse routes: %w", err)
	}
	for i, r := range t.Routes {
		if !strings.HasPrefix(r.Path, "/") {
			return nil, fmt.Errorf("route %d: path %q must start with /", i+1, r.Path)
		}
		if strings.Contains(r.Path, "*") && !strings.HasSuffix(r.Path, "/*") {
			return nil, fmt.Errorf("route %d: wildcard only allowed as trailing /* in %q", i+1, r.Path)
		}
	}
	return &t, nil
}

// Lookup returns the requirement of the first route matching path.
// Query strings and fragments are ignored; unknown paths are public.
func (t *Table) Lookup(path string) (Requirement, bool) {
	if t == nil {
		return Requirement{}, false
	}
	p := stripQuery(path)
	for _, r := range t.Routes {
		if match(r.Path, p) {
			return r.Requirement, true
		}
	}
	return Requirement{}, false
}

// Evaluate looks up path and runs the guard against it
func (t *Table) Evaluate(p Principal, path string) Decision {
	req, _ := t.Lookup(path)
	return Evaluate(req, p, path)
}

func match(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}

	ps := strings.Split(strings.Trim(pattern, "/"), "/")
	xs := strings.Split(strings.Trim(path, "/"), "/")
	if len(ps) != len(xs) {
		return false
	}
	for i := range ps {
		if strings.HasPrefix(ps[i], ":") {
			if xs[i] == "" {
				return false
			}
			continue
		}
		if ps[i] != xs[i] {
			return false
		}
	}
	return true
}
