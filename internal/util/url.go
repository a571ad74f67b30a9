package util

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var trackingParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "gclid", "fbclid", "ref", "sk", "sd"}

// NormalizeURL canonicalizes a deal URL so the same listing always maps to the same id:
// https scheme, lowercase host without "www.", no trailing slash, no tracking params.
func NormalizeURL(rawURL string) (string, error) {
	parsedURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL, err
	}
	if parsedURL.Host == "" {
		return rawURL, nil
	}

	if parsedURL.Scheme == "http" {
		parsedURL.Scheme = "https"
	}
	parsedURL.Host = strings.TrimPrefix(strings.ToLower(parsedURL.Host), "www.")
	if len(parsedURL.Path) > 1 && strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path = parsedURL.Path[:len(parsedURL.Path)-1]
		// Clear RawPath to ensure String() regenerates the URL path without the trailing slash
		parsedURL.RawPath = ""
	}
	queryParams := parsedURL.Query()
	for _, param := range trackingParams {
		queryParams.Del(param)
	}
	parsedURL.RawQuery = queryParams.Encode()
	parsedURL.Fragment = ""
	return parsedURL.String(), nil
}

// GetDomain returns the registrable domain of rawURL ("sub.example.co.uk" -> "example.co.uk").
func GetDomain(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(parsedURL.Hostname()), "www.")
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}
