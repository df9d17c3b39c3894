// Package clientip extracts client addresses from proxied requests.
package clientip

import (
	"net"
	"net/netip"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Provider headers carrying the connecting client address.
const (
	HeaderNfClientIP   = "X-Nf-Client-Connection-Ip"
	HeaderNfClientIPv6 = "X-Nf-Client-Connection-Ipv6"
)

// ForIdentity returns the address used for visitor identity: the provider
// connection-ip header, else the first X-Forwarded-For entry. It returns ""
// when neither header carries a usable address, so callers can fall back to
// other signals.
func ForIdentity(c *fiber.Ctx) string {
	for _, header := range []string{HeaderNfClientIP, HeaderNfClientIPv6} {
		if ip, _ := normalizeIP(c.Get(header)); ip != "" {
			return ip
		}
	}

	if xff := c.Get(fiber.HeaderXForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip, _ := normalizeIP(first); ip != "" {
			return ip
		}
	}
	return ""
}

// Resolve returns the best public client address for geolocation and rate
// limiting, falling back to the connection address.
func Resolve(c *fiber.Ctx) string {
	if ip := ForIdentity(c); ip != "" {
		if parsed := net.ParseIP(ip); parsed != nil && !isPrivateIP(parsed) {
			return ip
		}
	}

	if ip := selectPreferredIP(strings.Split(c.Get(fiber.HeaderXForwardedFor), ",")); ip != "" {
		return ip
	}

	// Other reverse-proxy headers
	for _, header := range []string{
		"X-Real-IP",
		"CF-Connecting-IP",
		"True-Client-IP",
		"X-Client-IP",
	} {
		if value := c.Get(header); value != "" {
			if ip := selectPreferredIP([]string{value}); ip != "" {
				return ip
			}
		}
	}

	if forwarded := c.Get("Forwarded"); forwarded != "" {
		if ip := selectPreferredIP(parseForwardedHeader(forwarded)); ip != "" {
			return ip
		}
	}

	if ip, parsed := normalizeIP(c.IP()); parsed != nil && !parsed.IsUnspecified() {
		return ip
	}
	return "127.0.0.1"
}

// ForRateLimit returns the address login throttling is keyed on. Client
// supplied headers are ignored unless trustProxy is set, since rotating them
// would reset the limiter. With trustProxy the provider connection-ip header
// is used, else the last X-Forwarded-For entry, which the nearest proxy
// appends.
func ForRateLimit(c *fiber.Ctx, trustProxy bool) string {
	if trustProxy {
		for _, header := range []string{HeaderNfClientIP, HeaderNfClientIPv6} {
			if ip, _ := normalizeIP(c.Get(header)); ip != "" {
				return ip
			}
		}

		if xff := c.Get(fiber.HeaderXForwardedFor); xff != "" {
			entries := strings.Split(xff, ",")
			if ip, _ := normalizeIP(entries[len(entries)-1]); ip != "" {
				return ip
			}
		}
	}

	if ip, parsed := normalizeIP(c.IP()); parsed != nil && !parsed.IsUnspecified() {
		return ip
	}
	return "127.0.0.1"
}

// Helper function to check if an IP is private
func isPrivateIP(ip net.IP) bool {
	if ip == nil {
		return false
	}

	// Check if IP is private according to RFC 1918, RFC 4193, RFC 4291
	for _, block := range privateIPBlocks {
		candidate := ip

		switch len(block.IP) {
		case net.IPv4len:
			if ip4 := ip.To4(); ip4 != nil {
				candidate = ip4
			} else {
				continue
			}
		case net.IPv6len:
			candidate = ip.To16()
			if candidate == nil {
				continue
			}
		}

		if block.Contains(candidate) {
			return true
		}
	}
	return false
}

var privateIPBlocks = []*net.IPNet{
	parseCIDR("10.0.0.0/8"),     // RFC 1918
	parseCIDR("172.16.0.0/12"),  // RFC 1918
	parseCIDR("192.168.0.0/16"), // RFC 1918
	parseCIDR("fc00::/7"),       // RFC 4193 Unique Local Addresses
	parseCIDR("fe80::/10"),      // RFC 4291 Link-Local
	parseCIDR("::1/128"),        // Loopback
	parseCIDR("127.0.0.0/8"),    // Loopback
}

func parseCIDR(s string) *net.IPNet {
	_, block, _ := net.ParseCIDR(s)
	return block
}

func selectPreferredIP(values []string) string {
	var ipv6Fallback string

	for _, raw := range values {
		clean, parsed := normalizeIP(raw)
		if parsed == nil || isPrivateIP(parsed) {
			continue
		}

		if parsed.To4() != nil {
			return clean
		}

		if ipv6Fallback == "" {
			ipv6Fallback = clean
		}
	}

	return ipv6Fallback
}

func normalizeIP(raw string) (string, net.IP) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"")
	if clean == "" {
		return "", nil
	}

	// Remove zone identifier if present (e.g. fe80::1%eth0)
	if percent := strings.Index(clean, "%"); percent != -1 {
		clean = clean[:percent]
	}

	// Try parsing addr:port (handles both IPv4:port and [IPv6]:port)
	if addrPort, err := netip.ParseAddrPort(clean); err == nil {
		addr := addrPort.Addr().Unmap()
		ipStr := addr.String()
		return ipStr, net.ParseIP(ipStr)
	}

	trimmed := strings.TrimSuffix(strings.TrimPrefix(clean, "["), "]")
	if addr, err := netip.ParseAddr(trimmed); err == nil {
		ipStr := addr.Unmap().String()
		return ipStr, net.ParseIP(ipStr)
	}

	if host, _, err := net.SplitHostPort(clean); err == nil {
		return normalizeIP(host)
	}

	return "", nil
}

func parseForwardedHeader(header string) []string {
	var candidates []string

	for _, entry := range strings.Split(header, ",") {
		for _, part := range strings.Split(entry, ";") {
			part = strings.TrimSpace(part)
			if strings.HasPrefix(strings.ToLower(part), "for=") {
				candidates = append(candidates, part[len("for="):])
			}
		}
	}

	return candidates
}
