package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"stagecast/internal/broadcast"
	"stagecast/internal/observability/metrics"
	"stagecast/internal/signal"
	"stagecast/internal/store"
)

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

// Config wires the HTTP server. TokenHash, when set, protects the dispatch
// and signal routes; it must be a hash produced by HashToken.
type Config struct {
	Addr      string
	TLS       TLSConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Security  SecurityConfig
	Logger    *slog.Logger
	Metrics   *metrics.Recorder
	TokenHash string
}

type Server struct {
	httpServer  *http.Server
	store       *store.Store
	queue       signal.Queue
	logger      *slog.Logger
	metrics     *metrics.Recorder
	rateLimiter *rateLimiter
	tokenHash   string
	tlsCertFile string
	tlsKeyFile  string
}

const maxActionBody = 1 << 20

// New builds the broadcast control server around the dispatcher and the
// signal queue. The queue may be nil; the signal route then responds 503.
func New(st *store.Store, queue signal.Queue, cfg Config) (*Server, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.Default()
	}

	policy, err := newCORSPolicy(cfg.CORS)
	if err != nil {
		return nil, err
	}

	srv := &Server{
		store:       st,
		queue:       queue,
		logger:      cfg.Logger,
		metrics:     recorder,
		rateLimiter: newRateLimiter(cfg.RateLimit),
		tokenHash:   strings.TrimSpace(cfg.TokenHash),
		tlsCertFile: strings.TrimSpace(cfg.TLS.CertFile),
		tlsKeyFile:  strings.TrimSpace(cfg.TLS.KeyFile),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.Handle("/metrics", recorder.Handler())
	mux.HandleFunc("/v1/broadcast", srv.handleBroadcast)
	mux.HandleFunc("/v1/broadcast/actions", srv.handleActions)
	mux.HandleFunc("/v1/signals", srv.handleSignals)

	handlerChain := http.Handler(mux)
	handlerChain = srv.authMiddleware(handlerChain)
	handlerChain = srv.rateLimitMiddleware(handlerChain)
	handlerChain = metrics.HTTPMiddleware(recorder, handlerChain)
	handlerChain = securityHeadersMiddleware(cfg.Security, handlerChain)
	handlerChain = corsMiddleware(policy, cfg.Logger, handlerChain)
	handlerChain = srv.loggingMiddleware(handlerChain)
	handlerChain = requestIDMiddleware(cfg.Logger, handlerChain)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handlerChain,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srv.httpServer = httpServer

	if srv.tlsCertFile != "" && srv.tlsKeyFile != "" {
		httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return srv, nil
}

// Handler exposes the full middleware chain for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	if s.httpServer == nil {
		return fmt.Errorf("http server is not configured")
	}

	if s.tlsCertFile != "" && s.tlsKeyFile != "" {
		return s.httpServer.ListenAndServeTLS(s.tlsCertFile, s.tlsKeyFile)
	}

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type snapshotResponse struct {
	Version uint64                   `json:"version"`
	State   broadcast.BroadcastState `json:"state"`
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snapshot := s.store.Snapshot()
	writeJSON(w, http.StatusOK, snapshotResponse{Version: snapshot.Version, State: snapshot.State})
}

type actionRequest struct {
	Kind    broadcast.ActionKind `json:"kind"`
	Payload json.RawMessage      `json:"payload,omitempty"`
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxActionBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read request body")
		return
	}
	var req actionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed action request")
		return
	}
	if req.Kind == "" {
		writeError(w, http.StatusBadRequest, "action kind is required")
		return
	}

	action, err := broadcast.DecodeAction(req.Kind, req.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snapshot, err := s.store.Dispatch(r.Context(), action)
	if err != nil {
		logger := loggerWithRequestContext(r.Context(), s.logger)
		if logger != nil {
			logger.Error("dispatch failed", "kind", string(req.Kind), "error", err)
		}
		writeError(w, http.StatusInternalServerError, "dispatch failed")
		return
	}

	writeJSON(w, http.StatusOK, snapshotResponse{Version: snapshot.Version, State: snapshot.State})
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "signal queue not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxActionBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read request body")
		return
	}
	var event signal.Event
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, http.StatusBadRequest, "malformed signal")
		return
	}
	if event.Type == "" {
		writeError(w, http.StatusBadRequest, "signal type is required")
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	if err := s.queue.Publish(r.Context(), event); err != nil {
		logger := loggerWithRequestContext(r.Context(), s.logger)
		if logger != nil {
			logger.Error("signal publish failed", "type", string(event.Type), "error", err)
		}
		writeError(w, http.StatusInternalServerError, "publish failed")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.tokenHash == "" || !isProtectedRoute(r) {
			next.ServeHTTP(w, r)
			return
		}
		token := extractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing dispatch token")
			return
		}
		if err := VerifyToken(s.tokenHash, token); err != nil {
			if !errors.Is(err, ErrInvalidToken) && s.logger != nil {
				s.logger.Error("token verification failed", "error", err)
			}
			writeError(w, http.StatusUnauthorized, "invalid dispatch token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isProtectedRoute(r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return false
	}
	switch r.URL.Path {
	case "/v1/broadcast/actions", "/v1/signals":
		return true
	}
	return false
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	rl := s.rateLimiter
	if rl == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.AllowRequest() {
			writeError(w, http.StatusTooManyRequests, "global rate limit exceeded")
			return
		}
		if isProtectedRoute(r) {
			ip := extractClientIP(r)
			allowed, retryAfter, err := rl.AllowDispatch(ip)
			if err != nil {
				if s.logger != nil {
					s.logger.Error("rate limiter failure", "error", err)
				}
				writeError(w, http.StatusServiceUnavailable, "rate limit failure")
				return
			}
			if !allowed {
				if retryAfter > 0 {
					w.Header().Set("Retry-After", fmt.Sprintf("%.0f", retryAfter.Seconds()))
				}
				writeError(w, http.StatusTooManyRequests, "too many dispatches")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	if s.logger == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := metrics.NewResponseRecorder(w)
		start := time.Now()
		next.ServeHTTP(recorder, r)
		duration := time.Since(start)
		logger := loggerWithRequestContext(r.Context(), s.logger)
		if logger == nil {
			return
		}
		logger.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.Status(),
			"duration_ms", duration.Milliseconds(),
			"remote_ip", extractClientIP(r))
	})
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return strings.TrimSpace(xrip)
	}
	return clientIP(r.RemoteAddr)
}

func clientIP(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
