package n8n

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shonenark/ark-gateway/internal/domain"
	"github.com/shonenark/ark-gateway/internal/pkg/safehttp"
)

func TestForwarder_Forward(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "ark", r.Header.Get("X-Forwarded-By"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"message":"Workflow was started"}`))
	}))
	defer srv.Close()

	f := NewForwarder(ForwarderConfig{
		BaseURL: srv.URL + "/webhook/",
		Timeout: time.Second,
		Headers: map[string]string{"X-Forwarded-By": "ark"},
	})

	res, err := f.Forward(context.Background(), "signup-flow", map[string]any{"event": "user.signup"})
	require.NoError(t, err)

	assert.Equal(t, "/webhook/signup-flow", gotPath)
	assert.Equal(t, "user.signup", gotBody["event"])
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 1, res.Attempts)
	assert.JSONEq(t, `{"message":"Workflow was started"}`, string(res.Body))
}

func TestForwarder_Retries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := NewForwarder(ForwarderConfig{BaseURL: srv.URL, Retries: 2, Backoff: time.Millisecond})
	res, err := f.Forward(context.Background(), "/x", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Nil(t, res.Body)
}

func TestForwarder_Failure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "workflow inactive", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewForwarder(ForwarderConfig{BaseURL: srv.URL, Retries: 3, Backoff: time.Millisecond})
	_, err := f.Forward(context.Background(), "x", map[string]any{})
	require.Error(t, err)

	re, ok := domain.AsRemoteError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, re.StatusCode)
	assert.EqualValues(t, 1, calls.Load(), "4xx answers are final")
}

func TestForwarder_BackoffBetweenAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewForwarder(ForwarderConfig{BaseURL: srv.URL, Retries: 2, Backoff: 20 * time.Millisecond})
	start := time.Now()
	_, err := f.Forward(context.Background(), "x", map[string]any{})
	require.Error(t, err)

	assert.EqualValues(t, 3, calls.Load())
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestForwarder_CancelDuringBackoff(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := NewForwarder(ForwarderConfig{BaseURL: srv.URL, Retries: 5, Backoff: time.Hour})
	_, err := f.Forward(ctx, "x", map[string]any{})
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestForwarder_NotConfigured(t *testing.T) {
	f := NewForwarder(ForwarderConfig{})
	assert.False(t, f.Configured())

	_, err := f.Forward(context.Background(), "x", map[string]any{})
	assert.True(t, IsNotConfigured(err))
	assert.True(t, domain.IsConfiguration(err))
}

func TestForwarder_BlockPrivate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request reached a loopback target")
	}))
	defer srv.Close()

	f := NewForwarder(ForwarderConfig{BaseURL: srv.URL, Client: safehttp.NewClient(time.Second)})
	_, err := f.Forward(context.Background(), "x", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access to private IP")
}
