package safehttp

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPrivate(t *testing.T) {
	tests := map[string]bool{
		"127.0.0.1":   true,
		"10.1.2.3":    true,
		"192.168.1.1": true,
		"169.254.0.5": true,
		"::1":         true,
		"0.0.0.0":     true,
		"8.8.8.8":     false,
		"2606:4700::": false,
	}
	for addr, want := range tests {
		assert.Equal(t, want, IsPrivate(net.ParseIP(addr)), addr)
	}
}

func TestNewClient_RefusesLoopback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := NewClient(2 * time.Second).Get(srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access to private IP")
}
