package router

import (
	"fmt"
	"regexp"
	"strings"
)

// Upstream is a proxy target. There is no active health checking; a dead
// upstream surfaces as 502 on the requests routed to it.
type Upstream struct {
	Name string `toml:"name" mapstructure:"name"`
	Addr string `toml:"addr" mapstructure:"addr"`
}

// Route is one entry of the ordered dispatch table. Evaluation is strictly
// first match wins, so specific routes must be listed before the catch-all.
type Route interface {
	// Match reports whether the request path belongs to this route.
	Match(path string) bool
	// Label names the route for logs and metrics.
	Label() string
}

// PrefixRoute forwards paths under Prefix to the named upstream.
type PrefixRoute struct {
	Prefix   string
	Upstream string
}

func (r PrefixRoute) Match(path string) bool { return strings.HasPrefix(path, r.Prefix) }
func (r PrefixRoute) Label() string          { return "prefix:" + r.Prefix }

// RegexRoute forwards paths matching Pattern to the named upstream.
type RegexRoute struct {
	Pattern  *regexp.Regexp
	Upstream string
}

func (r RegexRoute) Match(path string) bool { return r.Pattern.MatchString(path) }
func (r RegexRoute) Label() string          { return "regex:" + r.Pattern.String() }

// StaticRoute serves files from Dir for paths under Prefix.
type StaticRoute struct {
	Prefix string
	Dir    string
}

func (r StaticRoute) Match(path string) bool { return strings.HasPrefix(path, r.Prefix) }
func (r StaticRoute) Label() string          { return "static:" + r.Prefix }

// Table holds the ordered routes. It is immutable after construction and is
// shared by all request goroutines without locking.
type Table struct {
	routes []Route
}

func NewTable(routes []Route) (*Table, error) {
	if len(routes) == 0 {
		return nil, fmt.Errorf("route table must not be empty")
	}
	for i, r := range routes {
		switch rt := r.(type) {
		case PrefixRoute:
			if rt.Prefix == "" || rt.Upstream == "" {
				return nil, fmt.Errorf("route %d: prefix route requires prefix and upstream", i)
			}
		case RegexRoute:
			if rt.Pattern == nil || rt.Upstream == "" {
				return nil, fmt.Errorf("route %d: regex route requires pattern and upstream", i)
			}
		case StaticRoute:
			if rt.Prefix == "" || rt.Dir == "" {
				return nil, fmt.Errorf("route %d: static route requires prefix and dir", i)
			}
		default:
			return nil, fmt.Errorf("route %d: unknown route type %T", i, r)
		}
	}
	return &Table{routes: routes}, nil
}

// Match returns the first route claiming the path, along with its position.
func (t *Table) Match(path string) (Route, int, bool) {
	for i, r := range t.routes {
		if r.Match(path) {
			return r, i, true
		}
	}
	return nil, -1, false
}

// Routes returns the table entries in evaluation order.
func (t *Table) Routes() []Route { return t.routes }
