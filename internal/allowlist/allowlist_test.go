package allowlist

import (
	"errors"
	"strings"
	"testing"
)

func TestHostsAllows(t *testing.T) {
	h := New([]string{"YouTube.com", "https://geo.internal:8443/", " "})
	tests := []struct {
		host string
		want bool
	}{
		{"youtube.com", true},
		{"www.youtube.com", true},
		{"m.YOUTUBE.com.", true},
		{"notyoutube.com", false},
		{"youtube.com.evil.example", false},
		{"geo.internal", true},
		{"eu.geo.internal", true},
		{"internal", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := h.Allows(tt.host); got != tt.want {
				t.Fatalf("Allows(%q) = %v, want %v", tt.host, got, tt.want)
			}
		})
	}
}

func TestNewFallsBackToDefaults(t *testing.T) {
	h := New([]string{" ", "https://", "http://"}, "youtu.be", "tiktok.com")
	if h.Len() != 2 {
		t.Fatalf("expected defaults, got %d entries", h.Len())
	}
	if !h.Allows("vm.tiktok.com") {
		t.Fatal("expected default host subdomain to be allowed")
	}
}

func TestNewConfiguredEntriesReplaceDefaults(t *testing.T) {
	h := New([]string{"example.org"}, "youtube.com")
	if h.Allows("youtube.com") {
		t.Fatal("defaults must not apply when entries are configured")
	}
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		schemes  []string
		wantHost string
		wantErr  string
	}{
		{name: "https", raw: "https://WWW.YouTube.com/shorts/a", schemes: []string{"https"}, wantHost: "www.youtube.com"},
		{name: "http allowed", raw: "http://youtu.be/a", schemes: []string{"http", "https"}, wantHost: "youtu.be"},
		{name: "relative", raw: "youtube.com/a", schemes: []string{"https"}, wantErr: ErrNotAbsolute.Error()},
		{name: "userinfo", raw: "https://u:p@youtube.com/", schemes: []string{"https"}, wantErr: ErrUserinfo.Error()},
		{name: "https only", raw: "http://nominatim.openstreetmap.org", schemes: []string{"https"}, wantErr: "https is required"},
		{name: "ftp", raw: "ftp://youtube.com/a", schemes: []string{"http", "https"}, wantErr: "http or https is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, host, err := ParseURL(tt.raw, tt.schemes...)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if host != tt.wantHost {
				t.Fatalf("host = %q, want %q", host, tt.wantHost)
			}
		})
	}
}

func TestParseURLSentinels(t *testing.T) {
	if _, _, err := ParseURL("https://u@x.example", "https"); !errors.Is(err, ErrUserinfo) {
		t.Fatalf("expected ErrUserinfo, got %v", err)
	}
}
