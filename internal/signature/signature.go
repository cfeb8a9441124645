// Package signature verifies HMAC-SHA256 signatures on inbound webhooks.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultHeader carries the hex signature, optionally prefixed "sha256=".
	DefaultHeader = "X-Webhook-Signature"
	prefix        = "sha256="
)

// Result is the outcome of a validation. Error is a short reason and is set
// only when Valid is false.
type Result struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func invalid(reason string) Result { return Result{Valid: false, Error: reason} }

// Option configures a Validator.
type Option func(*Validator)

// WithHeader overrides the signature header name.
func WithHeader(name string) Option {
	return func(v *Validator) {
		if name != "" {
			v.header = name
		}
	}
}

// WithTimestamp makes the signed payload "<timestamp>.<body>" and rejects
// timestamps (unix seconds) further than tolerance from now.
func WithTimestamp(header string, tolerance time.Duration) Option {
	return func(v *Validator) {
		if header != "" && tolerance > 0 {
			v.timestampHeader = header
			v.tolerance = tolerance
		}
	}
}

// Validator checks webhook signatures against a shared secret.
type Validator struct {
	secret          []byte
	header          string
	timestampHeader string
	tolerance       time.Duration
	now             func() time.Time
}

// NewValidator creates a validator. An empty secret is accepted here and
// rejects every request at validation time.
func NewValidator(secret string, opts ...Option) *Validator {
	v := &Validator{
		secret: []byte(secret),
		header: DefaultHeader,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Header returns the name of the signature header.
func (v *Validator) Header() string { return v.header }

// Validate checks rawBody against the signature in headers. It fails closed
// and never panics: every problem becomes an invalid Result.
func (v *Validator) Validate(rawBody string, headers http.Header) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = invalid("signature check failed")
		}
	}()

	if len(v.secret) == 0 {
		return invalid("webhook secret not configured")
	}

	got := strings.TrimSpace(headers.Get(v.header))
	if got == "" {
		return invalid("missing signature header")
	}
	if len(got) >= len(prefix) && strings.EqualFold(got[:len(prefix)], prefix) {
		got = got[len(prefix):]
	}
	gotMAC, err := hex.DecodeString(got)
	if err != nil {
		return invalid("malformed signature")
	}

	payload := []byte(rawBody)
	if v.timestampHeader != "" {
		ts := strings.TrimSpace(headers.Get(v.timestampHeader))
		if ts == "" {
			return invalid("missing timestamp header")
		}
		sec, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return invalid("malformed timestamp")
		}
		skew := v.now().Sub(time.Unix(sec, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > v.tolerance {
			return invalid("timestamp outside tolerance")
		}
		payload = append([]byte(ts+"."), payload...)
	}

	if !hmac.Equal(gotMAC, v.mac(payload)) {
		return invalid("signature mismatch")
	}
	return Result{Valid: true}
}

// Sign returns the header value for body, "sha256=<hex>".
func (v *Validator) Sign(body []byte) string {
	return prefix + hex.EncodeToString(v.mac(body))
}

// SignAt signs body for a validator configured with WithTimestamp.
func (v *Validator) SignAt(body []byte, ts time.Time) (signature, timestamp string) {
	timestamp = strconv.FormatInt(ts.Unix(), 10)
	return v.Sign(append([]byte(timestamp+"."), body...)), timestamp
}

func (v *Validator) mac(payload []byte) []byte {
	m := hmac.New(sha256.New, v.secret)
	m.Write(payload)
	return m.Sum(nil)
}
