package web

import (
	"net"
	"net/http"

	"github.com/ngaotu/misa-crm-backend/internal/core"
)

// withClient stores the caller's address and user agent for audit entries.
// It runs after TrustedRealIP, so RemoteAddr is already the client.
func withClient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		ctx := core.WithClient(r.Context(), ip, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
