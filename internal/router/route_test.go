package router

import (
	"regexp"
	"testing"
)

func TestTableFirstMatchWins(t *testing.T) {
	table, err := NewTable([]Route{
		PrefixRoute{Prefix: "/api/widgets/mcp", Upstream: "gateway"},
		StaticRoute{Prefix: "/static/", Dir: "/srv/static"},
		PrefixRoute{Prefix: "/", Upstream: "api"},
	})
	if err != nil {
		t.Fatalf("new table: %v", err)
	}

	cases := []struct {
		path string
		want string
	}{
		{"/api/widgets/mcp/tools", "prefix:/api/widgets/mcp"},
		{"/api/widgets/mcp", "prefix:/api/widgets/mcp"},
		{"/api/widgets", "prefix:/"},
		{"/static/app.js", "static:/static/"},
		{"/", "prefix:/"},
		{"/anything/else", "prefix:/"},
	}
	for _, tc := range cases {
		r, _, ok := table.Match(tc.path)
		if !ok {
			t.Fatalf("%s: no match", tc.path)
		}
		if r.Label() != tc.want {
			t.Fatalf("%s matched %s, want %s", tc.path, r.Label(), tc.want)
		}
	}
}

func TestTableNoCatchAllMisses(t *testing.T) {
	table, err := NewTable([]Route{
		PrefixRoute{Prefix: "/api/", Upstream: "api"},
	})
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	if _, _, ok := table.Match("/other"); ok {
		t.Fatal("expected miss without catch-all")
	}
}

func TestRegexRouteMatch(t *testing.T) {
	table, err := NewTable([]Route{
		RegexRoute{Pattern: regexp.MustCompile(`^/ws(/|$)`), Upstream: "api"},
		PrefixRoute{Prefix: "/", Upstream: "api"},
	})
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	r, _, _ := table.Match("/ws/chat")
	if _, ok := r.(RegexRoute); !ok {
		t.Fatalf("expected regex route, got %T", r)
	}
	r, _, _ = table.Match("/wsx")
	if _, ok := r.(PrefixRoute); !ok {
		t.Fatalf("expected fallthrough to prefix route, got %T", r)
	}
}

func TestTableValidation(t *testing.T) {
	if _, err := NewTable(nil); err == nil {
		t.Fatal("empty table must be rejected")
	}
	if _, err := NewTable([]Route{PrefixRoute{Prefix: "/"}}); err == nil {
		t.Fatal("prefix route without upstream must be rejected")
	}
	if _, err := NewTable([]Route{StaticRoute{Prefix: "/static/"}}); err == nil {
		t.Fatal("static route without dir must be rejected")
	}
	if _, err := NewTable([]Route{RegexRoute{Upstream: "api"}}); err == nil {
		t.Fatal("regex route without pattern must be rejected")
	}
}

func TestClientAddrHeaderOrder(t *testing.T) {
	req := newRequest(t, map[string]string{
		"X-Real-IP":       "10.0.0.2",
		"X-Forwarded-For": "203.0.113.9, 10.0.0.1",
	})
	if got := clientAddr(req, DefaultClientAddrHeaders); got != "203.0.113.9" {
		t.Fatalf("expected first XFF hop, got %s", got)
	}
	// Custom order prefers X-Real-IP.
	if got := clientAddr(req, []string{"X-Real-IP", "X-Forwarded-For"}); got != "10.0.0.2" {
		t.Fatalf("expected X-Real-IP, got %s", got)
	}
	// No headers falls back to the connection address.
	bare := newRequest(t, nil)
	if got := clientAddr(bare, DefaultClientAddrHeaders); got != bare.RemoteAddr {
		t.Fatalf("expected RemoteAddr fallback, got %s", got)
	}
}
