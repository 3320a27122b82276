package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the host part of the connection's remote address.
// Forwarding headers are ignored; use an IPResolver behind a proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.Trim(r.RemoteAddr, "[]")
	}
	return host
}

// IPResolver derives the client address of a request, honouring
// X-Forwarded-For only when the connection comes from a trusted proxy.
// A nil *IPResolver behaves like ClientIP.
type IPResolver struct {
	trusted []netip.Prefix
}

// NewIPResolver returns a resolver trusting the given proxies. Each entry is
// a CIDR prefix or a single address.
func NewIPResolver(trustedProxies ...string) (*IPResolver, error) {
	r := &IPResolver{trusted: make([]netip.Prefix, 0, len(trustedProxies))}
	for _, raw := range trustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
			}
			r.trusted = append(r.trusted, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		addr = addr.Unmap()
		r.trusted = append(r.trusted, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return r, nil
}

// ClientIP returns the remote address unless it is a trusted proxy. In that
// case X-Forwarded-For is walked from the nearest hop outward and the first
// untrusted hop wins. An unparsable hop stops the walk at the last address
// that was verified.
func (r *IPResolver) ClientIP(req *http.Request) string {
	remote := ClientIP(req)
	if r == nil || len(r.trusted) == 0 || !r.isTrusted(remote) {
		return remote
	}

	hops := forwardedHops(req.Header.Values("X-Forwarded-For"))
	client := remote
	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(hops[i])
		if err != nil {
			return client
		}
		client = addr.Unmap().String()
		if !r.isTrusted(client) {
			return client
		}
	}
	return client
}

func (r *IPResolver) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range r.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func forwardedHops(values []string) []string {
	var hops []string
	for _, v := range values {
		for _, hop := range strings.Split(v, ",") {
			if hop = strings.TrimSpace(hop); hop != "" {
				hops = append(hops, hop)
			}
		}
	}
	return hops
}
