package gatekeeper

import (
	"testing"
)

func TestIsSafe(t *testing.T) {
	unsafe := []string{
		"http://127.0.0.1",
		"http://localhost",
		"http://169.254.169.254",
		"http://10.0.0.1",
		"http://[::1]",
		"http://foo.internal",
		"ftp://example.com",
		"http://192.168.1.1",
		"http://100.100.100.200",
		"http://192.0.0.192",
		"http://bar.local",
	}
	for _, u := range unsafe {
		if IsSafe(u) {
			t.Errorf("expected %q to be unsafe", u)
		}
	}

	safe := []string{
		"https://blog.cloudflare.com/rss/",
		"http://example.com/feed",
	}
	for _, u := range safe {
		if !IsSafe(u) {
			t.Errorf("expected %q to be safe", u)
		}
	}
}
