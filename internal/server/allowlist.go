package server

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/shonenark/ark-gateway/internal/domain"
)

// Allowlist is a set of client addresses and networks.
type Allowlist struct {
	prefixes []netip.Prefix
}

// ParseAllowlist accepts single addresses ("10.0.0.7") and CIDRs
// ("192.168.0.0/16"). Blank entries are skipped.
func ParseAllowlist(entries []string) (*Allowlist, error) {
	al := &Allowlist{}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, &domain.ConfigError{Reason: fmt.Sprintf("invalid IP_ALLOWLIST entry %q: %v", e, err)}
			}
			al.prefixes = append(al.prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, &domain.ConfigError{Reason: fmt.Sprintf("invalid IP_ALLOWLIST entry %q: %v", e, err)}
		}
		addr = addr.Unmap()
		al.prefixes = append(al.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return al, nil
}

// Empty reports whether the list has no entries. An empty list admits everyone.
func (a *Allowlist) Empty() bool { return a == nil || len(a.prefixes) == 0 }

// Allows reports whether ip falls within any entry.
func (a *Allowlist) Allows(ip string) bool {
	if a.Empty() {
		return true
	}
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range a.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// IPAllowlist rejects callers outside the list with 403.
func IPAllowlist(al *Allowlist) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if al.Empty() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if sc := GetSecurityContext(r.Context()); sc != nil {
				ip = sc.ClientIP
			}
			if !al.Allows(ip) {
				AddLogField(r.Context(), "denied_ip", ip)
				WriteError(w, r, domain.ErrForbidden("access denied"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
