package usecase

import (
	"errors"
	"fmt"
	"strings"

	"github.com/forPelevin/placecut/internal/allowlist"
)

// DefaultVideoHosts are the accepted video sources when none are configured.
var DefaultVideoHosts = []string{"youtube.com", "youtu.be", "tiktok.com", "instagram.com"}

// ValidateVideoURL accepts absolute http(s) URLs whose host is an allowed
// host or one of its subdomains.
func ValidateVideoURL(rawURL string, allowedHosts []string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return errors.New("url is required")
	}

	_, host, err := allowlist.ParseURL(rawURL, "http", "https")
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if !allowlist.New(allowedHosts, DefaultVideoHosts...).Allows(host) {
		return fmt.Errorf("unsupported url %q: host %q is not an accepted video source", rawURL, host)
	}
	return nil
}
