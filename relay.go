package main

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
)

const defaultMaxBodySize int64 = 64 << 20

// Classified is an upstream payload together with the type it will be relayed as
type Classified struct {
	FinalURL *url.URL
	MIMEType string
	Body     []byte
}

// fetchClassified reads the final response of a resolution and classifies it
func fetchClassified(res *Resolution, limit int64) (*Classified, error) {
	defer res.Response.Body.Close()

	body, err := readResponseBody(res.Response, limit)
	if err != nil {
		if errors.Is(err, ErrPayloadTooLarge) || errors.Is(err, ErrUnsupportedEncoding) {
			return nil, err
		}
		return nil, &TransportError{URL: res.FinalURL.Redacted(), Err: err}
	}

	return &Classified{
		FinalURL: res.FinalURL,
		MIMEType: classify(res.FinalURL, res.Response.Header.Get("Content-Type")),
		Body:     body,
	}, nil
}

// relayStrategy names how a payload is sent back, for logs and metrics
func relayStrategy(c *Classified) string {
	switch {
	case isBinary(c.MIMEType):
		return "binary"
	case isManifest(c.MIMEType):
		return "manifest"
	default:
		return "text"
	}
}

// relay writes a classified payload to the caller. Binary payloads go out
// untouched, manifests are rewritten, other text is passed through.
func relay(w http.ResponseWriter, c *Classified) (written int, err error) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", c.MIMEType)
	w.Header().Set("X-Content-Type-Options", "nosniff")

	if isBinary(c.MIMEType) {
		w.Header().Set("Content-Length", strconv.Itoa(len(c.Body)))
		w.WriteHeader(http.StatusOK)
		return w.Write(c.Body)
	}

	text := string(c.Body)
	if isManifest(c.MIMEType) {
		text = rewriteManifest(text, c.FinalURL)
		if kind, _ := describePlaylist(text); kind != "" {
			w.Header().Set("X-Playlist-Kind", kind)
		}
	}

	w.Header().Set("Content-Length", strconv.Itoa(len(text)))
	w.WriteHeader(http.StatusOK)
	return w.Write([]byte(text))
}
