// Package safehttp provides an HTTP transport that refuses to dial private
// networks, used when webhook payloads are forwarded to a configurable URL.
package safehttp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// SafeTransport rejects connections to private, loopback or link-local
// addresses. The check runs on the connected address, after DNS resolution.
var SafeTransport = &http.Transport{
	Proxy:               http.ProxyFromEnvironment,
	DialContext:         dialPublic,
	TLSHandshakeTimeout: 10 * time.Second,
	MaxIdleConns:        20,
	IdleConnTimeout:     90 * time.Second,
}

func dialPublic(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	ip := net.ParseIP(host)
	if ip == nil {
		conn.Close()
		return nil, fmt.Errorf("failed to parse remote IP for %q", addr)
	}

	if IsPrivate(ip) {
		conn.Close()
		return nil, fmt.Errorf("access to private IP %s is denied", ip)
	}

	return conn, nil
}

// IsPrivate reports whether ip is loopback, private, link-local or unspecified.
func IsPrivate(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

// NewClient returns a client using SafeTransport.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{Transport: SafeTransport, Timeout: timeout}
}
