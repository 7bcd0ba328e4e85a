package auth

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhitelist_CIDRMembership(t *testing.T) {
	wl, errs := ParseWhitelist("172.19.0.0/16")
	assert.Empty(t, errs)

	assert.True(t, wl.IsTrusted("172.19.5.5"))
	assert.True(t, wl.IsTrusted("172.19.5.5:51234"))
	assert.True(t, wl.IsTrusted("172.19.255.255"))
	assert.False(t, wl.IsTrusted("172.20.0.1"))
	assert.False(t, wl.IsTrusted("10.0.0.5:443"))
}

func TestWhitelist_OrderIndependent(t *testing.T) {
	inside := []string{"10.1.2.3", "192.168.1.20", "2001:db8::5"}
	outside := []string{"11.0.0.1", "192.168.2.1", "2001:db9::1"}

	lists := []string{
		"10.0.0.0/8, 192.168.1.0/24, 2001:db8::/32",
		"2001:db8::/32,10.0.0.0/8,192.168.1.0/24",
		"192.168.1.0/24 , 2001:db8::/32 , 10.0.0.0/8",
	}

	for _, raw := range lists {
		wl, errs := ParseWhitelist(raw)
		assert.Empty(t, errs, raw)
		for _, addr := range inside {
			assert.True(t, wl.IsTrusted(addr), "%s should be trusted by %q", addr, raw)
		}
		for _, addr := range outside {
			assert.False(t, wl.IsTrusted(addr), "%s should not be trusted by %q", addr, raw)
		}
	}
}

func TestWhitelist_MalformedEntriesIsolated(t *testing.T) {
	wl, errs := ParseWhitelist("not-an-ip, 10.0.0.0/8, 300.1.1.1, 192.168.0.0/33, 127.0.0.1")

	assert.Len(t, errs, 3)
	assert.Equal(t, 2, wl.Len())
	assert.True(t, wl.IsTrusted("10.9.9.9"))
	assert.True(t, wl.IsTrusted("127.0.0.1"))
	assert.False(t, wl.IsTrusted("192.168.0.1"))
	assert.False(t, wl.IsTrusted("8.8.8.8"))

	var entryErr *EntryError
	assert.ErrorAs(t, errs[0], &entryErr)
	assert.Equal(t, "not-an-ip", entryErr.Entry)
}

func TestWhitelist_OnlyMalformedTrustsNothing(t *testing.T) {
	wl, errs := ParseWhitelist("garbage, 1.2.3")

	assert.Len(t, errs, 2)
	assert.Equal(t, 0, wl.Len())
	assert.False(t, wl.IsTrusted("1.2.3.4"))
}

func TestWhitelist_EmptyFailsClosed(t *testing.T) {
	for _, raw := range []string{"", "   ", ",, ,"} {
		wl, errs := ParseWhitelist(raw)
		assert.Empty(t, errs)
		assert.False(t, wl.IsTrusted("127.0.0.1"), "empty whitelist %q must trust nothing", raw)
	}

	var nilList *Whitelist
	assert.False(t, nilList.IsTrusted("127.0.0.1"))
}

func TestWhitelist_LiteralAddresses(t *testing.T) {
	wl, errs := ParseWhitelist("192.168.1.10, ::1")
	assert.Empty(t, errs)

	assert.True(t, wl.IsTrusted("192.168.1.10:8080"))
	assert.False(t, wl.IsTrusted("192.168.1.11"))
	assert.True(t, wl.IsTrusted("[::1]:7575"))
}

func TestWhitelist_IPv4MappedNormalization(t *testing.T) {
	wl, errs := ParseWhitelist("172.19.0.0/16")
	assert.Empty(t, errs)

	assert.True(t, wl.IsTrusted("::ffff:172.19.5.5"))
	assert.True(t, wl.IsTrusted("[::ffff:172.19.5.5]:443"))
	assert.False(t, wl.IsTrusted("::ffff:10.0.0.5"))

	mapped, errs := ParseWhitelist("::ffff:10.0.0.0/104, ::ffff:192.168.1.1")
	assert.Empty(t, errs)
	assert.True(t, mapped.IsTrusted("10.20.30.40"))
	assert.True(t, mapped.IsTrusted("192.168.1.1:80"))
}

func TestWhitelist_WideMappedRangeStaysIPv6(t *testing.T) {
	wl, errs := ParseWhitelist("::ffff:0:0/95")
	assert.Empty(t, errs)

	prefixes := wl.Prefixes()
	require.Len(t, prefixes, 1)
	assert.True(t, prefixes[0].Addr().Is6())
	assert.Equal(t, 95, prefixes[0].Bits())

	assert.True(t, wl.IsTrusted("10.0.0.1:443"))
	assert.True(t, wl.IsTrusted("[::ffff:10.0.0.1]:443"))
	assert.True(t, wl.IsTrusted("::fffe:1:2"))
	assert.False(t, wl.IsTrusted("2001:db8::1"))
}

func TestWhitelist_MappedRangeBecomesIPv4(t *testing.T) {
	wl, errs := ParseWhitelist("::ffff:10.0.0.0/104")
	assert.Empty(t, errs)

	assert.Equal(t, []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}, wl.Prefixes())
	assert.True(t, wl.IsTrusted("10.255.0.1"))
	assert.False(t, wl.IsTrusted("11.0.0.1"))
	assert.False(t, wl.IsTrusted("::fffe:a00:1"))
}

func TestWhitelist_IPv4RangeIgnoresIPv6Callers(t *testing.T) {
	wl, _ := ParseWhitelist("0.0.0.0/0")

	assert.False(t, wl.IsTrusted("[2001:db8::1]:80"))
	assert.False(t, wl.IsTrusted("::fffe:a00:1"))
}

func TestWhitelist_ZonedAddresses(t *testing.T) {
	wl, errs := ParseWhitelist("fe80::/10, fe80::%eth0/64, fd00::1%eth1")
	require.Len(t, errs, 1, "zoned CIDR is rejected")

	assert.True(t, wl.IsTrusted("[fe80::1%eth0]:1234"))
	assert.True(t, wl.IsTrusted("fe80::abcd%wlan0"))
	assert.True(t, wl.IsTrusted("[fd00::1%eth2]:80"))
	assert.False(t, wl.IsTrusted("[fd00::2%eth1]:80"))
}

func TestWhitelist_HostBitsMasked(t *testing.T) {
	wl, errs := ParseWhitelist("10.1.2.3/8")
	assert.Empty(t, errs)
	assert.True(t, wl.IsTrusted("10.200.0.1"))
}

func TestWhitelist_UnparsableSource(t *testing.T) {
	wl, _ := ParseWhitelist("0.0.0.0/0")

	assert.False(t, wl.IsTrusted(""))
	assert.False(t, wl.IsTrusted("unknown"))
	assert.True(t, wl.IsTrusted("203.0.113.9:1"))
}

func TestIsTrusted_Convenience(t *testing.T) {
	assert.True(t, IsTrusted("172.19.5.5", "bogus, 172.19.0.0/16"))
	assert.False(t, IsTrusted("172.19.5.5", ""))
}
