package server

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/shonenark/ark-gateway/internal/config"
)

// SecurityContext is the per-request state the access policy works from.
type SecurityContext struct {
	ClientIP  string
	HTTPS     bool
	Tier      config.EnvironmentTier
	RequestID string
}

type securityContextKey struct{}

// SecurityContextMiddleware derives the SecurityContext for each request.
// The tier is resolved once at startup and passed in.
func SecurityContextMiddleware(tier config.EnvironmentTier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc := &SecurityContext{
				ClientIP:  ClientIP(r),
				HTTPS:     IsHTTPS(r),
				Tier:      tier,
				RequestID: GetRequestID(r.Context()),
			}
			ctx := context.WithValue(r.Context(), securityContextKey{}, sc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSecurityContext returns the request's SecurityContext, or nil.
func GetSecurityContext(ctx context.Context) *SecurityContext {
	sc, _ := ctx.Value(securityContextKey{}).(*SecurityContext)
	return sc
}

// ClientIP resolves the caller's address: the first X-Forwarded-For hop,
// then X-Real-IP, then the socket address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// IsHTTPS reports whether the request arrived over TLS, directly or at a
// terminating proxy.
func IsHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
