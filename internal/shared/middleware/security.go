package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HSTS sets Strict-Transport-Security on responses to requests that arrived
// over TLS, directly or through a proxy that says so. A non-positive maxAge
// disables the header.
func HSTS(maxAge time.Duration) func(http.Handler) http.Handler {
	value := "max-age=" + strconv.FormatInt(int64(maxAge/time.Second), 10)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxAge > 0 && isTLS(r) {
				w.Header().Set("Strict-Transport-Security", value)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NoStore marks responses under /api/ as uncacheable. They carry balances
// and connection metadata.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Cache-Control", "no-store")
		}
		next.ServeHTTP(w, r)
	})
}

func isTLS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// RedirectToHTTPS answers plain HTTP requests with a permanent redirect to
// the same path on the TLS listener. Hosts outside allowedHosts get 400 so a
// forged Host header cannot turn the API into an open redirect.
func RedirectToHTTPS(allowedHosts []string, tlsPort string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Header.Get("X-Forwarded-Host")
		if host == "" {
			host = r.Host
		}
		if !IsHostAllowed(host, allowedHosts) {
			http.Error(w, "Invalid host", http.StatusBadRequest)
			return
		}

		target := hostOnly(host)
		if strings.Contains(target, ":") {
			target = "[" + target + "]"
		}
		if tlsPort != "" && tlsPort != "443" {
			target += ":" + tlsPort
		}
		http.Redirect(w, r, "https://"+target+r.RequestURI, http.StatusMovedPermanently)
	})
}

// IsHostAllowed reports whether host, with or without a port, names one of
// allowedHosts. Ports are ignored on both sides. An empty list allows every
// host.
func IsHostAllowed(host string, allowedHosts []string) bool {
	if len(allowedHosts) == 0 {
		return true
	}

	name := hostOnly(host)
	if name == "" {
		return false
	}
	for _, allowed := range allowedHosts {
		if hostOnly(allowed) == name {
			return true
		}
	}
	return false
}

// hostOnly lower-cases h and strips any port and IPv6 brackets.
func hostOnly(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	if name, _, err := net.SplitHostPort(h); err == nil {
		return name
	}
	return strings.TrimSuffix(strings.TrimPrefix(h, "["), "]")
}
