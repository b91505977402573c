package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultMaxRedirects = 5

// Resolution is the outcome of following a redirect chain. Response is the
// open 200 response for FinalURL; the caller must close its body.
type Resolution struct {
	FinalURL *url.URL
	Hops     int
	Response *http.Response
}

// Resolver follows redirects by hand so that every hop is bounded and resolved
// against the URL that produced it.
type Resolver struct {
	Client  *http.Client
	MaxHops int
}

// newUpstreamClient returns a client that never follows redirects on its own
func newUpstreamClient() *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   15 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Resolve issues GET requests starting at target until a 200 is reached.
// Request headers are rebuilt for every hop from the caller's overrides.
func (r *Resolver) Resolve(ctx context.Context, target *url.URL, overrides map[string]string) (*Resolution, error) {
	current := target
	hops := 0

	for {
		header := generateRequestHeaders(current, overrides)
		if !sameOrSubdomain(target, current) {
			stripCredentials(header)
		}

		resp, err := r.fetch(ctx, current, header)
		if err != nil {
			return nil, err
		}

		location := resp.Header.Get("Location")
		switch {
		case resp.StatusCode == http.StatusOK:
			return &Resolution{FinalURL: current, Hops: hops, Response: resp}, nil

		case resp.StatusCode >= 300 && resp.StatusCode <= 399 && location != "":
			drainAndClose(resp)

			hops++
			if hops > r.MaxHops {
				return nil, fmt.Errorf("%w: more than %d hops, last at %s", ErrTooManyRedirects, r.MaxHops, current.Redacted())
			}

			next, err := resolveURL(current, location)
			if err != nil || !isHTTPScheme(next.Scheme) || next.Host == "" {
				return nil, &UpstreamError{
					URL:        current.Redacted(),
					StatusCode: resp.StatusCode,
					Status:     fmt.Sprintf("%s with unusable location", resp.Status),
				}
			}

			logger.WithFields(logrus.Fields{
				"hop":    hops,
				"status": resp.StatusCode,
				"from":   current.Redacted(),
				"to":     next.Redacted(),
			}).Debug("following redirect")

			current = next

		default:
			drainAndClose(resp)
			return nil, &UpstreamError{
				URL:        current.Redacted(),
				StatusCode: resp.StatusCode,
				Status:     resp.Status,
			}
		}
	}
}

func (r *Resolver) fetch(ctx context.Context, target *url.URL, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, &TransportError{URL: target.Redacted(), Err: err}
	}
	req.Header = header.Clone()

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: target.Redacted(), Err: err}
	}

	return resp, nil
}

// Headers net/http drops when a redirect leaves the original domain
var credentialHeaders = []string{"Authorization", "Www-Authenticate", "Cookie", "Cookie2"}

func stripCredentials(header http.Header) {
	for _, key := range credentialHeaders {
		header.Del(key)
	}
}

// sameOrSubdomain reports whether dest is origin's host or one of its subdomains
func sameOrSubdomain(origin, dest *url.URL) bool {
	src := strings.ToLower(origin.Hostname())
	dst := strings.ToLower(dest.Hostname())
	return dst == src || strings.HasSuffix(dst, "."+src)
}

// drainAndClose lets the connection be reused after a response we don't relay
func drainAndClose(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
