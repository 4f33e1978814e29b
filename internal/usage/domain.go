package usage

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/goodtune/sitelimit/internal/storage"
)

// ExtractDomain resolves an address to the domain it belongs to. Only http
// and https addresses with a host resolve; everything else returns "".
// The result is in storage key form, so "X.Example." resolves to "x.example".
func ExtractDomain(address string) string {
	address = strings.TrimSpace(address)
	if address == "" {
		return ""
	}

	u, err := url.Parse(address)
	if err != nil {
		return ""
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return ""
	}

	return storage.NormalizeDomain(u.Hostname())
}

// DefaultIconURL returns the icon service address used when the host did not
// report an icon for domain.
func DefaultIconURL(domain string) string {
	return fmt.Sprintf("https://icons.duckduckgo.com/ip3/%s.ico", domain)
}
