package nominatim

import (
	"fmt"
	"strings"

	"github.com/forPelevin/placecut/internal/allowlist"
)

const (
	DefaultBaseURL  = "https://nominatim.openstreetmap.org"
	DefaultBaseHost = "nominatim.openstreetmap.org"
)

func normalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return strings.TrimRight(baseURL, "/")
}

// ValidateBaseURL accepts an https endpoint without userinfo, query or
// fragment whose host is in allowedHosts (subdomains included). An empty
// baseURL means the public instance; an empty allowedHosts means only it.
func ValidateBaseURL(baseURL string, allowedHosts []string) error {
	baseURL = normalizeBaseURL(baseURL)

	u, host, err := allowlist.ParseURL(baseURL, "https")
	if err != nil {
		return fmt.Errorf("invalid geocode base_url %q: %w", baseURL, err)
	}
	if u.RawQuery != "" || u.Fragment != "" || u.ForceQuery {
		return fmt.Errorf("invalid geocode base_url %q: query and fragment are not allowed", baseURL)
	}
	if !allowlist.New(allowedHosts, DefaultBaseHost).Allows(host) {
		return fmt.Errorf("invalid geocode base_url %q: host %q is not in geocode allowed_hosts", baseURL, host)
	}
	return nil
}
