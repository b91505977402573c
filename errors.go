package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"
)

var (
	ErrInvalidURL       = errors.New("invalid URL")
	ErrTooManyRedirects = errors.New("too many redirects")
	ErrPayloadTooLarge  = errors.New("upstream payload exceeds size limit")

	ErrUnsupportedEncoding = errors.New("unsupported content encoding")

	errPanic = errors.New("internal error")
)

// UpstreamError is returned when the upstream answered with a status that is
// neither 200 nor a followable redirect.
type UpstreamError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *UpstreamError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("upstream %s returned %s", e.URL, e.Status)
	}
	return fmt.Sprintf("upstream %s returned %d", e.URL, e.StatusCode)
}

// TransportError wraps DNS, connection and TLS failures.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// failure describes how a pipeline error is reported to the caller
type failure struct {
	status  int
	message string
	outcome string
}

// describeFailure maps a pipeline error to its response status, message and
// metrics outcome. Upstream status codes are forwarded when they are known.
func describeFailure(err error) failure {
	var upstreamErr *UpstreamError
	var transportErr *TransportError

	switch {
	case errors.Is(err, ErrInvalidURL):
		return failure{http.StatusBadRequest, "Invalid URL", "invalid_input"}
	case errors.Is(err, ErrTooManyRedirects):
		return failure{http.StatusBadGateway, "Too many redirects", "too_many_redirects"}
	case errors.As(err, &upstreamErr):
		status := http.StatusBadGateway
		if upstreamErr.StatusCode >= 400 && upstreamErr.StatusCode <= 599 {
			status = upstreamErr.StatusCode
		}
		return failure{status, "Upstream error", "upstream_error"}
	case errors.Is(err, context.DeadlineExceeded):
		return failure{http.StatusGatewayTimeout, "Upstream timeout", "timeout"}
	case errors.As(err, &transportErr):
		return failure{http.StatusBadGateway, "Failed to fetch resource", "transport_error"}
	case errors.Is(err, ErrPayloadTooLarge):
		return failure{http.StatusBadGateway, "Payload too large", "payload_too_large"}
	case errors.Is(err, ErrUnsupportedEncoding):
		return failure{http.StatusBadGateway, "Unsupported content encoding", "unsupported_encoding"}
	default:
		return failure{http.StatusInternalServerError, "Proxy error", "internal_error"}
	}
}

const maxDetailLength = 200

// sanitizeDetail drops control characters and caps the length of a diagnostic
// before it is echoed back to the caller.
func sanitizeDetail(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) {
			return r
		}
		return -1
	}, s)

	runes := []rune(cleaned)
	if len(runes) > maxDetailLength {
		return string(runes[:maxDetailLength]) + "..."
	}
	return cleaned
}

// sendError sends a JSON error response for err
func sendError(w http.ResponseWriter, err error) {
	f := describeFailure(err)

	body := map[string]interface{}{
		"error":  f.message,
		"status": f.status,
	}
	if detail := sanitizeDetail(err.Error()); detail != "" {
		body["details"] = detail
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(f.status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Debug("writing error response")
	}
}
