package auth

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// Whitelist is a parsed set of trusted proxy source ranges.
//
// Normalization: IPv4-mapped IPv6 addresses (::ffff:a.b.c.d) are unmapped
// to plain IPv4 before matching, both for the caller's address and for
// whitelist entries, so "::ffff:10.0.0.1" and "10.0.0.1" are the same host.
// Only ranges of /96 or longer inside ::ffff:0:0/96 become IPv4 ranges.
// Wider IPv6 ranges such as ::ffff:0:0/95 or ::/0 stay IPv6 and match an
// IPv4 caller through its mapped form. Zones are dropped on both sides.
type Whitelist struct {
	prefixes []netip.Prefix
}

// EntryError describes one whitelist entry that could not be parsed
type EntryError struct {
	Entry string
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("invalid whitelist entry %q: %v", e.Entry, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// ParseWhitelist parses a comma-separated list of IP literals and CIDR
// ranges. Bad entries are skipped and reported; the rest still apply.
func ParseWhitelist(raw string) (*Whitelist, []error) {
	wl := &Whitelist{}
	var errs []error

	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		prefix, err := parseEntry(entry)
		if err != nil {
			errs = append(errs, &EntryError{Entry: entry, Err: err})
			continue
		}
		wl.prefixes = append(wl.prefixes, prefix)
	}

	return wl, errs
}

func parseEntry(entry string) (netip.Prefix, error) {
	if strings.Contains(entry, "/") {
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return netip.Prefix{}, err
		}
		return normalizePrefix(prefix), nil
	}

	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap().WithZone("")
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// normalizePrefix masks host bits and rewrites ::ffff:0:0/96-contained ranges as IPv4
func normalizePrefix(prefix netip.Prefix) netip.Prefix {
	addr := prefix.Addr().WithZone("")
	bits := prefix.Bits()
	if addr.Is4In6() && bits >= 96 {
		addr = addr.Unmap()
		bits -= 96
	}
	return netip.PrefixFrom(addr, bits).Masked()
}

// Len returns the number of usable entries
func (w *Whitelist) Len() int {
	if w == nil {
		return 0
	}
	return len(w.prefixes)
}

// Prefixes returns the normalized entries
func (w *Whitelist) Prefixes() []netip.Prefix {
	if w == nil {
		return nil
	}
	out := make([]netip.Prefix, len(w.prefixes))
	copy(out, w.prefixes)
	return out
}

// IsTrusted reports whether the source address falls inside any entry.
// An empty whitelist trusts nothing.
func (w *Whitelist) IsTrusted(sourceAddress string) bool {
	if w.Len() == 0 {
		return false
	}

	addr, ok := ParseSourceAddress(sourceAddress)
	if !ok {
		return false
	}

	mapped := netip.AddrFrom16(addr.As16())
	for _, prefix := range w.prefixes {
		if prefix.Contains(addr) {
			return true
		}
		if addr.Is4() && prefix.Addr().Is6() && prefix.Contains(mapped) {
			return true
		}
	}
	return false
}

// IsTrusted parses the whitelist and checks the address in one call.
// Parse errors are ignored here; use ParseWhitelist to report them.
func IsTrusted(sourceAddress, whitelist string) bool {
	wl, _ := ParseWhitelist(whitelist)
	return wl.IsTrusted(sourceAddress)
}

// ParseSourceAddress extracts and normalizes the IP of a listener address
// such as "172.19.5.5:51234", "[::ffff:10.0.0.1]:80" or a bare IP.
func ParseSourceAddress(sourceAddress string) (netip.Addr, bool) {
	host := strings.TrimSpace(sourceAddress)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap().WithZone(""), true
}
