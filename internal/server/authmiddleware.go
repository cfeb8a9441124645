package server

import (
	"fmt"
	"net/http"

	"github.com/shonenark/ark-gateway/internal/auth"
	"github.com/shonenark/ark-gateway/internal/config"
	"github.com/shonenark/ark-gateway/internal/domain"
)

// BasicAuth challenges for credentials. Every failure, whether the header
// is missing, malformed or wrong, gets the same 401 body.
func BasicAuth(creds auth.Credentials, realm string) func(http.Handler) http.Handler {
	challenge := fmt.Sprintf("Basic realm=%q, charset=\"UTF-8\"", realm)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := creds.Authenticate(r); err != nil {
				AddError(r.Context(), err)
				w.Header().Set("WWW-Authenticate", challenge)
				WriteError(w, r, domain.ErrUnauthorized("authentication required").
					WithHint("this site requires a username and password"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// EnvironmentGate applies BasicAuth when the policy requires it and passes
// through otherwise.
func EnvironmentGate(policy config.AccessPolicy, creds auth.Credentials, realm string) func(http.Handler) http.Handler {
	if policy == config.PolicyBasicAuth {
		return BasicAuth(creds, realm)
	}
	return func(next http.Handler) http.Handler { return next }
}
