package n8n

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shonenark/ark-gateway/internal/domain"
)

// ErrNoWebhookURL is returned when forwarding is attempted without a webhook
// base URL.
var ErrNoWebhookURL = &domain.ConfigError{
	Missing: []string{"N8N_WEBHOOK_URL"},
	Hint:    "set N8N_WEBHOOK_URL",
}

// ForwarderConfig configures a Forwarder.
type ForwarderConfig struct {
	// BaseURL is the n8n webhook root; the workflow path is appended.
	BaseURL string
	Timeout time.Duration
	// Retries is the number of extra attempts after a failed delivery.
	Retries int
	Headers map[string]string
	// Client overrides the HTTP client. Timeout is ignored when set.
	Client *http.Client
	// Backoff is the pause before each retry. Defaults to DefaultBackoff.
	Backoff time.Duration
}

// DefaultBackoff is the pause between delivery attempts.
const DefaultBackoff = 250 * time.Millisecond

// ForwardResult is what n8n answered.
type ForwardResult struct {
	StatusCode int
	Body       json.RawMessage
	Attempts   int
}

// Forwarder delivers validated webhook payloads to an n8n webhook trigger.
type Forwarder struct {
	baseURL string
	retries int
	backoff time.Duration
	headers map[string]string
	client  *http.Client
}

// NewForwarder creates a new forwarder.
func NewForwarder(cfg ForwarderConfig) *Forwarder {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	return &Forwarder{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		retries: cfg.Retries,
		backoff: backoff,
		headers: cfg.Headers,
		client:  client,
	}
}

// Configured reports whether a webhook base URL is set.
func (f *Forwarder) Configured() bool { return f.baseURL != "" }

// Forward POSTs payload to <base>/<path>. Transport errors and 5xx answers
// are retried up to the configured count, pausing between attempts; other
// answers are final. Context cancellation stops retries.
func (f *Forwarder) Forward(ctx context.Context, path string, payload any) (*ForwardResult, error) {
	if !f.Configured() {
		return nil, ErrNoWebhookURL
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	target := f.baseURL + "/" + strings.TrimPrefix(path, "/")

	var lastErr error
	attempts := f.retries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(f.backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("forward to %s: %w", target, lastErr)
			case <-timer.C:
			}
		}

		res, err := f.doRequest(ctx, target, body)
		if err == nil {
			res.Attempts = attempt
			return res, nil
		}
		lastErr = err

		if ctx.Err() != nil || !retryable(err) {
			break
		}
	}

	return nil, fmt.Errorf("forward to %s: %w", target, lastErr)
}

func (f *Forwarder) doRequest(ctx context.Context, target string, body []byte) (*ForwardResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.RemoteError{Op: "forward webhook", StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	res := &ForwardResult{StatusCode: resp.StatusCode}
	if json.Valid(respBody) {
		res.Body = respBody
	}
	return res, nil
}

// retryable reports whether a failed delivery may succeed on another attempt:
// transport failures and 5xx answers.
func retryable(err error) bool {
	if re, ok := domain.AsRemoteError(err); ok {
		return re.StatusCode >= http.StatusInternalServerError
	}
	return true
}

// IsNotConfigured reports whether err came from a forwarder without a base URL.
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrNoWebhookURL)
}
