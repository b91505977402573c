package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Server wires the fetch-and-relay pipeline to HTTP
type Server struct {
	config   *Config
	resolver *Resolver
	metrics  *relayMetrics
}

func NewServer(cfg *Config, client *http.Client) *Server {
	return &Server{
		config: cfg,
		resolver: &Resolver{
			Client:  client,
			MaxHops: cfg.MaxRedirects,
		},
		metrics: newRelayMetrics(),
	}
}

// Router returns the HTTP routes of the server
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	for _, path := range []string{"/proxy", "/api/proxy"} {
		r.HandleFunc(path, s.proxyHandler).Methods(http.MethodGet)
		r.HandleFunc(path, preflightHandler).Methods(http.MethodOptions)
	}
	r.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/", s.homeHandler).Methods(http.MethodGet)

	if s.config.Metrics {
		r.Handle("/metrics", s.metrics.handler()).Methods(http.MethodGet)
	}

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Allow", "GET, OPTIONS")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	r.Use(recoverMiddleware)

	return r
}

// proxyHandler runs validate, resolve, classify and relay in sequence. Any
// failure ends the pipeline with a single error response.
func (s *Server) proxyHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	entry := logger.WithField("target", sanitizeDetail(r.URL.Query().Get("url")))

	target, overrides, err := validateRequest(r)
	if err != nil {
		s.fail(w, entry, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	res, err := s.resolver.Resolve(ctx, target, overrides)
	if err != nil {
		s.fail(w, entry, err)
		return
	}

	classified, err := fetchClassified(res, s.config.MaxBodySize)
	s.metrics.observeUpstream(start, res.Hops)
	if err != nil {
		s.fail(w, entry.WithField("final_url", res.FinalURL.Redacted()), err)
		return
	}

	strategy := relayStrategy(classified)
	entry = entry.WithFields(logrus.Fields{
		"final_url": classified.FinalURL.Redacted(),
		"hops":      res.Hops,
		"mime":      classified.MIMEType,
		"strategy":  strategy,
	})

	written, err := relay(w, classified)
	if err != nil {
		// Headers are already out, the caller just sees a short body
		entry.WithError(err).Warn("error while writing response")
	}

	s.metrics.requests.WithLabelValues(outcomeFor(nil)).Inc()
	s.metrics.relayedBytes.WithLabelValues(strategy).Add(float64(written))

	entry.WithFields(logrus.Fields{
		"bytes":    written,
		"duration": time.Since(start),
	}).Info("relayed resource")
}

func (s *Server) fail(w http.ResponseWriter, entry *logrus.Entry, err error) {
	f := describeFailure(err)
	s.metrics.requests.WithLabelValues(f.outcome).Inc()

	entry = entry.WithError(err).WithField("status", f.status)
	if f.status < http.StatusInternalServerError {
		entry.Info("rejected proxy request")
	} else {
		entry.Warn("proxy request failed")
	}

	sendError(w, err)
}

func preflightHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte("ok")); err != nil {
		logger.WithError(err).Debug("writing health response")
	}
}

func (s *Server) homeHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")

	err := json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "M3U8 Cross-Origin Relay",
		"endpoints": map[string]string{
			"proxy":  "/proxy?url={url}&headers={optional_headers}",
			"health": "/healthz",
		},
		"example":      s.config.PublicURL + "/proxy?url=https://example.com/video.m3u8",
		"maxRedirects": s.config.MaxRedirects,
	})
	if err != nil {
		logger.WithError(err).Debug("writing home response")
	}
}

// recoverMiddleware turns a panic in a handler into a 500 response
func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.WithFields(logrus.Fields{
					"panic": rec,
					"path":  r.URL.Path,
				}).Error("recovered from panic in handler")
				sendError(w, errPanic)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
