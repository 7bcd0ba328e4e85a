package http

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// IPConfig holds the proxies whose forwarding headers may be believed
type IPConfig struct {
	TrustedProxies []netip.Prefix
}

// ExtractClientIP returns the client address for audit and rate-limit
// purposes. Forwarding headers are honored only when the connection comes
// from a trusted proxy; otherwise RemoteAddr is used.
//
// X-Forwarded-For is read right to left and the first hop that is not
// itself a trusted proxy wins. Entries to its left were supplied by the
// client and are never believed. If every hop is trusted the left-most
// valid entry is returned.
//
// This is never used for authentication decisions.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remoteIP := getRemoteAddr(r)

	if config != nil && isTrustedProxy(remoteIP, config.TrustedProxies) {
		if ip, ok := forwardedClient(r.Header.Values("X-Forwarded-For"), config.TrustedProxies); ok {
			return ip
		}

		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && isValidIP(xri) {
			return xri
		}
	}

	return remoteIP
}

// forwardedClient walks the combined X-Forwarded-For chain from the nearest hop
func forwardedClient(headers []string, trustedProxies []netip.Prefix) (string, bool) {
	var hops []string
	for _, header := range headers {
		for _, hop := range strings.Split(header, ",") {
			hops = append(hops, strings.TrimSpace(hop))
		}
	}

	leftmost := ""
	for i := len(hops) - 1; i >= 0; i-- {
		if !isValidIP(hops[i]) {
			// A garbled hop breaks the chain; nothing further left can be trusted.
			break
		}
		if !isTrustedProxy(hops[i], trustedProxies) {
			return hops[i], true
		}
		leftmost = hops[i]
	}

	return leftmost, leftmost != ""
}

// getRemoteAddr extracts the IP address from RemoteAddr (removing port if present)
func getRemoteAddr(r *http.Request) string {
	if r.RemoteAddr != "" {
		if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return ip
		}
		return r.RemoteAddr
	}
	return "unknown"
}

func isTrustedProxy(ip string, trustedProxies []netip.Prefix) bool {
	if len(trustedProxies) == 0 {
		return false
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap().WithZone("")

	mapped := netip.AddrFrom16(addr.As16())
	for _, prefix := range trustedProxies {
		if prefix.Contains(addr) || (addr.Is4() && prefix.Addr().Is6() && prefix.Contains(mapped)) {
			return true
		}
	}

	return false
}

func isValidIP(ip string) bool {
	_, err := netip.ParseAddr(ip)
	return err == nil
}
