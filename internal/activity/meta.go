package activity

import (
	"net"
	"net/http"
	"strings"
)

// Meta is the request metadata attached to an activity entry.
type Meta struct {
	// IP is the client address as reported by forwarding headers. It is display-only:
	// clients control those headers.
	IP        string
	UserAgent string
	// Addr is the transport peer address, or the address resolved through trusted proxies.
	// Throttling and lockout key on it.
	Addr string
}

// ipHeaders are consulted in order; the first non-empty one wins.
var ipHeaders = []string{
	"Client-IP",
	"X-Forwarded-For",
	"X-Forwarded",
	"Forwarded-For",
	"Forwarded",
}

// MetaFromRequest extracts the client address and user agent of r.
func MetaFromRequest(r *http.Request) Meta {
	return Meta{IP: clientIP(r), UserAgent: r.UserAgent(), Addr: remoteHost(r)}
}

func clientIP(r *http.Request) string {
	for _, h := range ipHeaders {
		v := r.Header.Get(h)
		// multi-hop lists start with the originating client
		if i := strings.IndexByte(v, ','); i >= 0 {
			v = v[:i]
		}
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	if r.RemoteAddr == "" {
		return "UNKNOWN"
	}
	return remoteHost(r)
}

func remoteHost(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
