// Package httpbridge tunnels HTTP/1.1 exchanges over the RPC fabric: a
// server-side handler forwards to an allow-listed upstream host, and a
// client-side http.RoundTripper makes the fabric look like a normal Go HTTP
// transport.
package httpbridge

import "strings"

// hostAllowed reports whether host appears in allowed, matched exactly but
// case-insensitively. No port is stripped here: callers pass a bare host
// name (url.URL.Hostname), and an allow-list entry with a port never
// matches.
func hostAllowed(host string, allowed []string) bool {
	host = strings.ToLower(host)
	for _, a := range allowed {
		if strings.ToLower(a) == host {
			return true
		}
	}
	return false
}
