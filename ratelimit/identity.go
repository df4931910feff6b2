package ratelimit

import (
	"net/netip"
	"strings"
)

// ClientIdentity normalizes a client address for use as a counter key.
// Ports are stripped, IPv4-mapped IPv6 addresses become IPv4 and IPv6
// addresses collapse to their /64, which is what a single host usually
// controls. Unparseable input is returned trimmed, or "unknown" if empty.
func ClientIdentity(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "unknown"
	}
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		ap, perr := netip.ParseAddrPort(addr)
		if perr != nil {
			return addr
		}
		ip = ap.Addr()
	}
	ip = ip.Unmap().WithZone("")
	if ip.Is4() {
		return ip.String()
	}
	p, err := ip.Prefix(64)
	if err != nil {
		return ip.String()
	}
	return p.String()
}
