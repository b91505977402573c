package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRequestHeaders(t *testing.T) {
	headers := generateRequestHeaders(mustParse(t, "https://example.com/video.m3u8"), map[string]string{
		"referer":         "https://player.example.com/",
		"User-Agent":      "custom-agent",
		"Host":            "evil.example.com",
		"Range":           "bytes=0-10",
		"Accept-Encoding": "br",
		"X-Empty":         "",
	})

	assert.Equal(t, "https://player.example.com/", headers.Get("Referer"))
	assert.Equal(t, "custom-agent", headers.Get("User-Agent"))
	assert.Equal(t, "gzip", headers.Get("Accept-Encoding"))
	assert.Empty(t, headers.Get("Host"))
	assert.Empty(t, headers.Get("Range"))
	assert.Empty(t, headers.Get("X-Empty"))
	assert.Empty(t, headers.Get("Origin"))
}

func TestGenerateHeadersForStreamingHosts(t *testing.T) {
	headers := generateHeadersForDomain(mustParse(t, "https://cdn7.streamhost.net/hls/index.m3u8"))

	assert.Equal(t, "https://cdn7.streamhost.net", headers.Get("Origin"))
	assert.Equal(t, "https://cdn7.streamhost.net/", headers.Get("Referer"))
	assert.Equal(t, defaultUserAgent, headers.Get("User-Agent"))
}
