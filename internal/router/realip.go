package router

import (
	"net/http"
	"strings"
)

// DefaultClientAddrHeaders is the trusted-header order used when the config
// does not override it.
var DefaultClientAddrHeaders = []string{"X-Forwarded-For", "X-Real-IP"}

// clientAddr resolves the originating client address from the first present
// trusted header, falling back to the connection's remote address. For
// X-Forwarded-For style lists the left-most entry is taken.
//
// The resolved address feeds logging only; RemoteAddr is left untouched so
// the proxy still appends the true connection peer to X-Forwarded-For. The
// headers are only as trustworthy as whatever sits in front of this process;
// an exposed listener lets clients spoof them. That boundary is an
// operational concern, not something fixed here.
func clientAddr(r *http.Request, headers []string) string {
	for _, h := range headers {
		v := strings.TrimSpace(r.Header.Get(h))
		if v == "" {
			continue
		}
		if i := strings.IndexByte(v, ','); i >= 0 {
			v = strings.TrimSpace(v[:i])
		}
		if v != "" {
			return v
		}
	}
	return r.RemoteAddr
}
