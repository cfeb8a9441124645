// Package auth checks HTTP Basic credentials for the staging gate and the
// admin surface.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// Credentials is the single username/password pair a gated site accepts.
type Credentials struct {
	Username string
	Password string
}

// Configured reports whether both fields are set. An unconfigured pair
// never authenticates anyone.
func (c Credentials) Configured() bool {
	return c.Username != "" && c.Password != ""
}

// Check compares the supplied pair against c in constant time. Both fields
// are always compared so the response time does not reveal which one was
// wrong.
func (c Credentials) Check(username, password string) bool {
	if !c.Configured() {
		return false
	}
	userOK := equal(username, c.Username)
	passOK := equal(password, c.Password)
	return userOK&passOK == 1
}

// Authenticate extracts Basic credentials from r and checks them.
func (c Credentials) Authenticate(r *http.Request) error {
	username, password, err := ExtractBasic(r)
	if err != nil {
		return err
	}
	if !c.Check(username, password) {
		return fmt.Errorf("invalid credentials")
	}
	return nil
}

// equal hashes both sides first so inputs of different lengths still take
// the same path through ConstantTimeCompare.
func equal(got, want string) int {
	g := sha256.Sum256([]byte(got))
	w := sha256.Sum256([]byte(want))
	return subtle.ConstantTimeCompare(g[:], w[:])
}

// ExtractBasic parses an "Authorization: Basic <base64(user:pass)>" header.
// The password may contain colons; the username may not.
func ExtractBasic(r *http.Request) (username, password string, err error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", "", fmt.Errorf("missing Authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid Authorization header format")
	}
	if !strings.EqualFold(parts[0], "basic") {
		return "", "", fmt.Errorf("unsupported authorization scheme")
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(parts[1]))
	if err != nil {
		return "", "", fmt.Errorf("invalid basic credentials encoding")
	}

	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", fmt.Errorf("invalid basic credentials")
	}
	return username, password, nil
}

// BasicHeader builds the Authorization header value for username and password.
func BasicHeader(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}
