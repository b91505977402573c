package main

import (
	"mime"
	"net/url"
	"strings"
)

const (
	mimeM3U8    = "application/vnd.apple.mpegurl"
	mimeMPEGTS  = "video/MP2T"
	mimeDefault = "text/plain"
)

// Playlist types seen in the wild for HLS manifests
var manifestTypes = map[string]bool{
	"application/vnd.apple.mpegurl": true,
	"application/x-mpegurl":         true,
	"audio/mpegurl":                 true,
	"audio/x-mpegurl":               true,
}

// classify picks the MIME type to relay. A declared type always wins, then
// the path extension, then text/plain.
func classify(finalURL *url.URL, declared string) string {
	if declared = strings.TrimSpace(declared); declared != "" {
		return declared
	}

	path := strings.ToLower(finalURL.Path)
	switch {
	case strings.HasSuffix(path, ".m3u8"):
		return mimeM3U8
	case strings.HasSuffix(path, ".ts"):
		return mimeMPEGTS
	default:
		return mimeDefault
	}
}

// isBinary reports whether a payload of this type must be relayed untouched
func isBinary(mimeType string) bool {
	t := strings.ToLower(mimeType)
	return strings.Contains(t, "video") || strings.Contains(t, "application/octet-stream")
}

// isManifest reports whether the type is an HLS playlist that gets rewritten
func isManifest(mimeType string) bool {
	return manifestTypes[mediaType(mimeType)]
}

// mediaType returns the lower-cased type without parameters
func mediaType(mimeType string) string {
	if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
		return parsed
	}

	if i := strings.IndexByte(mimeType, ';'); i != -1 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
