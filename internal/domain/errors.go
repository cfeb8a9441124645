// Package domain provides the workflow, deployment and error types shared by
// the reconciler, the deploy CLI and the webhook gateway.
package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Base error kinds. Structured errors below wrap one of these so callers can
// classify failures with errors.Is.
var (
	// ErrConfiguration indicates a missing or invalid setting. Fatal at startup.
	ErrConfiguration = baseError("configuration error")

	// ErrConnectivity indicates the remote automation API is unreachable or
	// rejected the pre-flight check.
	ErrConnectivity = baseError("connectivity error")

	// ErrWorkflow indicates a single workflow's create, update or activate failed.
	ErrWorkflow = baseError("workflow error")

	// ErrAuthentication indicates a signature or credential mismatch.
	ErrAuthentication = baseError("authentication error")

	// ErrValidation indicates a malformed workflow definition or payload.
	ErrValidation = baseError("validation error")
)

type baseError string

func (e baseError) Error() string { return string(e) }

// ConfigError lists the settings that are missing or invalid.
type ConfigError struct {
	Missing []string
	Reason  string
	Hint    string
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("configuration")
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, ": missing %s", strings.Join(e.Missing, ", "))
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

// RemoteError is a non-2xx answer from the automation API.
type RemoteError struct {
	// Op is the remote step, e.g. "list workflows" or "activate workflow".
	Op         string
	StatusCode int
	Body       string
}

// maxErrorBody bounds the remote body quoted in RemoteError messages.
const maxErrorBody = 512

func (e *RemoteError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > maxErrorBody {
		cut := maxErrorBody
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s: remote returned %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s: remote returned %d: %s", e.Op, e.StatusCode, body)
}

func (e *RemoteError) Unwrap() error { return ErrWorkflow }

// ValidationError describes why a workflow definition was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid workflow: %s", e.Reason)
	}
	return fmt.Sprintf("invalid workflow: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IsConfiguration reports whether err is or wraps ErrConfiguration.
func IsConfiguration(err error) bool { return errors.Is(err, ErrConfiguration) }

// IsConnectivity reports whether err is or wraps ErrConnectivity.
func IsConnectivity(err error) bool { return errors.Is(err, ErrConnectivity) }

// IsValidation reports whether err is or wraps ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsAuthentication reports whether err is or wraps ErrAuthentication.
func IsAuthentication(err error) bool { return errors.Is(err, ErrAuthentication) }

// AsRemoteError reports whether err can be typed as a *RemoteError.
func AsRemoteError(err error) (*RemoteError, bool) {
	var re *RemoteError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// ErrorType represents the category of an HTTP-facing error.
type ErrorType string

const (
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypePermission     ErrorType = "permission"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeUpstream       ErrorType = "upstream"
	ErrorTypeServer         ErrorType = "server"
)

// APIError is the error shape returned by the gateway's HTTP handlers.
type APIError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"error"`
	// Hint tells an operator how to fix the condition, e.g. "set N8N_API_KEY".
	Hint       string   `json:"hint,omitempty"`
	Missing    []string `json:"missing,omitempty"`
	StatusCode int      `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// HTTPStatusCode returns the status to answer with.
func (e *APIError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypePermission:
		return http.StatusForbidden
	case ErrorTypeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// NewAPIError creates a new API error.
func NewAPIError(errType ErrorType, message string) *APIError {
	return &APIError{Type: errType, Message: message}
}

// WithHint adds a remediation hint.
func (e *APIError) WithHint(hint string) *APIError {
	e.Hint = hint
	return e
}

// WithStatusCode sets a specific HTTP status code.
func (e *APIError) WithStatusCode(code int) *APIError {
	e.StatusCode = code
	return e
}

// ErrInvalidRequest creates an invalid request error.
func ErrInvalidRequest(message string) *APIError {
	return NewAPIError(ErrorTypeInvalidRequest, message)
}

// ErrUnauthorized creates an authentication error. The message is kept
// generic on purpose by callers.
func ErrUnauthorized(message string) *APIError {
	return NewAPIError(ErrorTypeAuthentication, message)
}

// ErrForbidden creates a permission error.
func ErrForbidden(message string) *APIError {
	return NewAPIError(ErrorTypePermission, message)
}

// ErrNotFound creates a not found error.
func ErrNotFound(message string) *APIError {
	return NewAPIError(ErrorTypeNotFound, message)
}

// ErrServer creates an internal server error.
func ErrServer(message string) *APIError {
	return NewAPIError(ErrorTypeServer, message)
}
