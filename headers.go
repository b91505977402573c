package main

import (
	"net/http"
	"net/url"
	"strings"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Headers a caller may not override, either because net/http manages them or
// because they only make sense for a single connection.
var protectedHeaders = map[string]bool{
	"Accept-Encoding":     true,
	"Host":                true,
	"Connection":          true,
	"Content-Length":      true,
	"Keep-Alive":          true,
	"Proxy-Authorization": true,
	"Proxy-Connection":    true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Range":               true,
}

// generateHeadersForDomain generates domain-specific headers
func generateHeadersForDomain(targetURL *url.URL) http.Header {
	headers := make(http.Header)
	headers.Set("User-Agent", defaultUserAgent)
	headers.Set("Accept", "*/*")
	headers.Set("Accept-Language", "en-US,en;q=0.9")
	headers.Set("Accept-Encoding", "gzip")

	hostname := strings.ToLower(targetURL.Hostname())

	// CDNs and streaming hosts commonly check where the player was loaded from
	if strings.Contains(hostname, "cdn") || strings.Contains(hostname, "stream") {
		origin := targetURL.Scheme + "://" + targetURL.Host
		headers.Set("Origin", origin)
		headers.Set("Referer", origin+"/")
	}

	return headers
}

// generateRequestHeaders generates upstream request headers with optional overrides
func generateRequestHeaders(targetURL *url.URL, additionalHeaders map[string]string) http.Header {
	headers := generateHeadersForDomain(targetURL)

	for k, v := range additionalHeaders {
		key := http.CanonicalHeaderKey(strings.TrimSpace(k))
		if key == "" || v == "" || protectedHeaders[key] {
			continue
		}
		headers.Set(key, v)
	}

	return headers
}
