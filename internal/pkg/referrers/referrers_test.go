package referrers

import "testing"

func TestClassifySource(t *testing.T) {
	tests := []struct {
		host     string
		expected string
	}{
		{"", "direct"},
		{"   ", "direct"},
		{"www.tiktok.com", "tiktok"},
		{"m.youtube.com", "youtube"},
		{"youtu.be", "youtube"},
		{"l.instagram.com", "instagram"},
		{"lm.facebook.com", "facebook"},
		{"x.com", "twitter"},
		{"mobile.twitter.com", "twitter"},
		{"www.google.com", "google"},
		{"GOOGLE.DE", "google"},
		{"bing.com", "bing"},
		{"discord.com", "discord"},
		{"example.org", "other"},

		// First match wins: tiktok precedes youtube in the rule order
		{"tiktok-youtube.example", "tiktok"},
		// "x.com" substring inside an unrelated host
		{"box.com", "twitter"},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			got := ClassifySource(tt.host)
			if got != tt.expected {
				t.Errorf("ClassifySource(%q) = %q, want %q", tt.host, got, tt.expected)
			}
			if again := ClassifySource(tt.host); again != got {
				t.Errorf("ClassifySource(%q) not deterministic: %q then %q", tt.host, got, again)
			}
		})
	}
}

func TestHostFromReferrer(t *testing.T) {
	tests := []struct {
		referrer string
		expected string
	}{
		{"", ""},
		{"https://www.Google.com/search?q=art", "www.google.com"},
		{"http://example.org:8080/path", "example.org"},
		{"t.co/abc", "t.co"},
		{"https://gallery.netlify.app/", "gallery.netlify.app"},
		{"http://example.com/%zz", "example.com"},
		{"https://News.example.org/a?q=%zz#top", "news.example.org"},
	}

	for _, tt := range tests {
		t.Run(tt.referrer, func(t *testing.T) {
			if got := HostFromReferrer(tt.referrer); got != tt.expected {
				t.Errorf("HostFromReferrer(%q) = %q, want %q", tt.referrer, got, tt.expected)
			}
		})
	}
}

func TestInternalHosts(t *testing.T) {
	ih := NewInternalHosts([]string{"www.mygallery.art"}, []string{".netlify.app"})

	tests := []struct {
		name        string
		host        string
		currentHost string
		expected    bool
	}{
		{"empty host", "", "mygallery.art", false},
		{"current host", "preview.example.com", "preview.example.com:443", true},
		{"configured host without www", "mygallery.art", "", true},
		{"current host with www", "www.preview.example.com", "preview.example.com", true},
		{"internal suffix", "deploy-preview-12--site.netlify.app", "", true},
		{"external", "google.com", "mygallery.art", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ih.IsInternal(tt.host, tt.currentHost); got != tt.expected {
				t.Errorf("IsInternal(%q, %q) = %v, want %v", tt.host, tt.currentHost, got, tt.expected)
			}
		})
	}
}

func TestFriendlyName(t *testing.T) {
	tests := []struct {
		hostname string
		expected string
	}{
		{"google.com", "Google"},
		{"www.google.com", "Google"},
		{"m.facebook.com", "Facebook"},
		{"youtu.be", "YouTube"},
		{"example.com", "Example.com"},
		{"www.example.com", "Example.com"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			got := FriendlyName(tt.hostname)
			if got != tt.expected {
				t.Errorf("FriendlyName(%q) = %q, want %q", tt.hostname, got, tt.expected)
			}
		})
	}
}
