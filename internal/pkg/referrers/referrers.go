// Package referrers classifies referrer hosts into traffic sources.
package referrers

import (
	"net/url"
	"strings"
)

// Source names reported in the analytics breakdown.
const (
	SourceDirect    = "direct"
	SourceOther     = "other"
	SourceTikTok    = "tiktok"
	SourceYouTube   = "youtube"
	SourceInstagram = "instagram"
	SourceFacebook  = "facebook"
	SourceTwitter   = "twitter"
	SourceGoogle    = "google"
	SourceBing      = "bing"
	SourceDiscord   = "discord"
)

type sourceRule struct {
	source  string
	needles []string
}

// Order matters: first match wins.
var sourceRules = []sourceRule{
	{SourceTikTok, []string{"tiktok"}},
	{SourceYouTube, []string{"youtube", "youtu.be"}},
	{SourceInstagram, []string{"instagram"}},
	{SourceFacebook, []string{"facebook"}},
	{SourceTwitter, []string{"x.com", "twitter"}},
	{SourceGoogle, []string{"google"}},
	{SourceBing, []string{"bing"}},
	{SourceDiscord, []string{"discord"}},
}

// ClassifySource maps a referrer host to a source. Matching is a
// case-insensitive substring test; an empty host is direct traffic.
func ClassifySource(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return SourceDirect
	}
	for _, rule := range sourceRules {
		for _, needle := range rule.needles {
			if strings.Contains(host, needle) {
				return rule.source
			}
		}
	}
	return SourceOther
}

// HostFromReferrer extracts the lower-cased hostname from a referrer URL.
// Bare hosts without a scheme are accepted.
func HostFromReferrer(referrer string) string {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" {
		return ""
	}
	if !strings.Contains(referrer, "://") {
		referrer = "https://" + referrer
	}
	u, err := url.Parse(referrer)
	if err != nil {
		// malformed path or query; the authority is usually still readable
		_, rest, _ := strings.Cut(referrer, "://")
		if i := strings.IndexAny(rest, "/?#"); i >= 0 {
			rest = rest[:i]
		}
		if i := strings.LastIndex(rest, "@"); i >= 0 {
			rest = rest[i+1:]
		}
		return NormalizeHost(rest)
	}
	return NormalizeHost(u.Hostname())
}

// NormalizeHost lower-cases a host and strips any port and trailing dot.
func NormalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if strings.Count(host, ":") == 1 {
		host, _, _ = strings.Cut(host, ":")
	}
	return strings.TrimSuffix(host, ".")
}

func bareHost(host string) string {
	return strings.TrimPrefix(NormalizeHost(host), "www.")
}

// InternalHosts decides whether a referrer host belongs to the site itself.
type InternalHosts struct {
	hosts    []string
	suffixes []string
}

// NewInternalHosts builds a matcher from configured public hosts and suffixes.
func NewInternalHosts(hosts, suffixes []string) *InternalHosts {
	ih := &InternalHosts{}
	for _, h := range hosts {
		if h = bareHost(h); h != "" {
			ih.hosts = append(ih.hosts, h)
		}
	}
	for _, s := range suffixes {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			ih.suffixes = append(ih.suffixes, s)
		}
	}
	return ih
}

// IsInternal reports whether host is the current request host, one of the
// configured public hosts, or ends in an internal suffix. A leading "www."
// is ignored on both sides.
func (ih *InternalHosts) IsInternal(host, currentHost string) bool {
	host = bareHost(host)
	if host == "" {
		return false
	}
	if current := bareHost(currentHost); current != "" && host == current {
		return true
	}
	for _, h := range ih.hosts {
		if host == h {
			return true
		}
	}
	for _, s := range ih.suffixes {
		if strings.HasSuffix(host, s) {
			return true
		}
	}
	return false
}

// Common referrer hostnames mapped to friendly display names
var knownReferrers = map[string]string{
	"google.com":     "Google",
	"bing.com":       "Bing",
	"duckduckgo.com": "DuckDuckGo",
	"x.com":          "X/Twitter",
	"twitter.com":    "X/Twitter",
	"t.co":           "X/Twitter",
	"facebook.com":   "Facebook",
	"instagram.com":  "Instagram",
	"pinterest.com":  "Pinterest",
	"reddit.com":     "Reddit",
	"tiktok.com":     "TikTok",
	"youtube.com":    "YouTube",
	"youtu.be":       "YouTube",
	"discord.com":    "Discord",
	"deviantart.com": "DeviantArt",
	"behance.net":    "Behance",
	"artstation.com": "ArtStation",
	"tumblr.com":     "Tumblr",
	"bsky.app":       "Bluesky",
}

// FriendlyName returns a human-friendly name for a referrer hostname.
// Unknown hosts are returned without "www." and with the first letter capitalized.
func FriendlyName(hostname string) string {
	hostname = bareHost(hostname)

	if name, ok := knownReferrers[hostname]; ok {
		return name
	}

	// Subdomain of a known referrer
	for domain, name := range knownReferrers {
		if strings.HasSuffix(hostname, "."+domain) {
			return name
		}
	}

	return capitalizeFirst(hostname)
}

// capitalizeFirst capitalizes the first letter of a string
func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
