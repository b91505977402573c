package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// validateTarget accepts only absolute http(s) URLs with a host
func validateTarget(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: url parameter is required", ErrInvalidURL)
	}

	target, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if !isHTTPScheme(target.Scheme) {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, target.Scheme)
	}

	if target.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	return target, nil
}

func isHTTPScheme(scheme string) bool {
	scheme = strings.ToLower(scheme)
	return scheme == "http" || scheme == "https"
}

// validateRequest extracts the target URL and header overrides from the request
func validateRequest(r *http.Request) (*url.URL, map[string]string, error) {
	target, err := validateTarget(r.URL.Query().Get("url"))
	if err != nil {
		return nil, nil, err
	}

	return target, parseHeaderOverrides(r.URL.Query().Get("headers")), nil
}

// parseHeaderOverrides decodes the optional `headers` query parameter, a JSON
// object that may itself be URL-escaped. Garbage is ignored.
func parseHeaderOverrides(param string) map[string]string {
	parsedHeaders := make(map[string]string)
	if param == "" {
		return parsedHeaders
	}

	decoded, err := url.QueryUnescape(param)
	if err != nil {
		decoded = param
	}

	if err := json.Unmarshal([]byte(decoded), &parsedHeaders); err != nil {
		logger.WithError(err).Debug("ignoring malformed headers parameter")
		return make(map[string]string)
	}

	return parsedHeaders
}

// readResponseBody reads and decodes the response body, failing with
// ErrPayloadTooLarge once more than limit bytes have been decoded.
func readResponseBody(resp *http.Response, limit int64) ([]byte, error) {
	reader, err := decodeBody(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	readLimit := limit
	if readLimit < math.MaxInt64 {
		readLimit++
	}

	body, err := io.ReadAll(io.LimitReader(reader, readLimit))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrPayloadTooLarge, limit)
	}

	return body, nil
}

// decodeBody undoes the codings listed in a Content-Encoding header, last
// applied first. Closing the result closes every decoder but not body.
func decodeBody(body io.Reader, contentEncoding string) (io.ReadCloser, error) {
	decoded := &decodedBody{Reader: body}

	codings := strings.Split(contentEncoding, ",")
	for i := len(codings) - 1; i >= 0; i-- {
		coding := strings.ToLower(strings.TrimSpace(codings[i]))

		var (
			next io.ReadCloser
			err  error
		)
		switch coding {
		case "", "identity":
			continue
		case "gzip", "x-gzip":
			next, err = gzip.NewReader(decoded.Reader)
		case "deflate":
			next, err = zlib.NewReader(decoded.Reader)
		case "zstd":
			var dec *zstd.Decoder
			dec, err = zstd.NewReader(decoded.Reader, zstd.WithDecoderConcurrency(1))
			if err == nil {
				next = dec.IOReadCloser()
			}
		default:
			decoded.Close()
			return nil, fmt.Errorf("%w %q", ErrUnsupportedEncoding, coding)
		}

		if err != nil {
			decoded.Close()
			return nil, fmt.Errorf("decoding %s body: %w", coding, err)
		}

		decoded.Reader = next
		decoded.closers = append(decoded.closers, next)
	}

	return decoded, nil
}

type decodedBody struct {
	io.Reader
	closers []io.Closer
}

func (d *decodedBody) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// resolveURL resolves a reference against a base URL
func resolveURL(base *url.URL, ref string) (*url.URL, error) {
	relURL, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}

	return base.ResolveReference(relURL), nil
}
