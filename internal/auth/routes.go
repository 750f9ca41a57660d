// ABOUTME: Public/protected route classification by path prefix
// ABOUTME: Verifies a route table against the public prefixes at startup

package auth

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrRouteMisclassified is returned by Verify when a route's declared
// visibility disagrees with the configured public prefixes.
var ErrRouteMisclassified = errors.New("route misclassified")

// Route describes one registered endpoint and whether it is meant to be public.
type Route struct {
	Path   string
	Public bool
}

// RouteClassifier decides whether a request path skips authentication.
type RouteClassifier struct {
	prefixes []string
}

// NewRouteClassifier builds a classifier from public path prefixes.
// Every prefix must be non-empty and start with "/".
func NewRouteClassifier(prefixes []string) (*RouteClassifier, error) {
	cleaned := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, errors.New("public prefix must not be empty")
		}
		if !strings.HasPrefix(p, "/") {
			return nil, fmt.Errorf("public prefix %q must start with /", p)
		}
		cleaned = append(cleaned, p)
	}
	return &RouteClassifier{prefixes: cleaned}, nil
}

// IsPublic reports whether p starts with any public prefix.
func (c *RouteClassifier) IsPublic(p string) bool {
	_, ok := c.match(p)
	return ok
}

// Prefixes returns a copy of the configured public prefixes.
func (c *RouteClassifier) Prefixes() []string {
	out := make([]string, len(c.prefixes))
	copy(out, c.prefixes)
	return out
}

func (c *RouteClassifier) match(p string) (string, bool) {
	for _, prefix := range c.prefixes {
		if strings.HasPrefix(p, prefix) {
			return prefix, true
		}
	}
	return "", false
}

// Verify checks every route against the prefixes. A protected route that a
// public prefix covers, or a public route no prefix covers, is an error.
// All mismatches are reported together.
func (c *RouteClassifier) Verify(routes []Route) error {
	var errs []error
	for _, r := range routes {
		prefix, matched := c.match(r.Path)
		switch {
		case !r.Public && matched:
			errs = append(errs, fmt.Errorf("%w: protected route %q matches public prefix %q",
				ErrRouteMisclassified, r.Path, prefix))
		case r.Public && !matched:
			errs = append(errs, fmt.Errorf("%w: public route %q is not covered by any public prefix",
				ErrRouteMisclassified, r.Path))
		}
	}
	return errors.Join(errs...)
}

// cleanPath normalises a request path the way the router does before
// matching, keeping a trailing slash.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	np := path.Clean(p)
	if p[len(p)-1] == '/' && np != "/" {
		np += "/"
	}
	return np
}
