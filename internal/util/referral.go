package util

import (
	"net/url"
	"strings"
)

// redirectParams maps known affiliate redirect hosts to the query parameter holding the destination.
var redirectParams = map[string]string{
	"click.linksynergy.com": "murl",
	"go.redirectingat.com":  "url",
	"www.awin1.com":         "ued",
	"prf.hn":                "destination",
}

// UnwrapRedirect returns the destination of an affiliate redirect link.
// changed is false when rawURL is not a known redirect.
func UnwrapRedirect(rawURL string) (dest string, changed bool) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, false
	}

	param, ok := redirectParams[strings.ToLower(parsedURL.Host)]
	if !ok {
		return rawURL, false
	}
	target := parsedURL.Query().Get(param)
	if target == "" {
		return rawURL, false
	}
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		decoded, decodeErr := url.QueryUnescape(target)
		if decodeErr != nil {
			return rawURL, false
		}
		target = decoded
	}
	return target, true
}
