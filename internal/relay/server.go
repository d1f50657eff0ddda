// Package relay implements the local HTTP server that fronts Ollama for the
// chat client. It accepts the client's three request shapes on /api/chat
// and translates them to Ollama's chat and generate APIs.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/diogo/localchat/internal/api"
	"github.com/diogo/localchat/internal/models"
)

// ServiceName is reported by the health endpoint
const ServiceName = "localchat relay + Ollama"

// maxRequestSize bounds a client request body
const maxRequestSize = 4 << 20

// shutdownTimeout bounds graceful shutdown
const shutdownTimeout = 5 * time.Second

// Options configures a Server
type Options struct {
	Addr     string
	Upstream string
	// RateLimit is the sustained requests per second admitted; 0 disables limiting.
	RateLimit  float64
	Burst      int
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Server relays chat requests to Ollama
type Server struct {
	addr     string
	upstream *Upstream
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// chatRequest covers the prompt, history and stream request shapes
type chatRequest struct {
	Prompt   string           `json:"prompt"`
	Messages []models.Message `json:"messages"`
	Model    string           `json:"model"`
}

// New creates a Server
func New(opts Options) (*Server, error) {
	if err := api.ValidateEndpoint(opts.Upstream); err != nil {
		return nil, fmt.Errorf("upstream: %w", err)
	}
	if opts.RateLimit < 0 || opts.Burst < 0 {
		return nil, fmt.Errorf("rate limit and burst must not be negative")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		addr:     opts.Addr,
		upstream: NewUpstream(opts.Upstream, opts.HTTPClient, logger),
		logger:   logger,
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return s, nil
}

// Handler returns the relay's HTTP handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /health", s.handleHealth)

	return s.withLogging(withCORS(s.withRateLimit(mux)))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info("relay listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("upstream", s.upstream.BaseURL()),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-errCh
	s.logger.Info("relay stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "running",
		"service": ServiceName,
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestSize)).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}
	if req.Model == "" {
		req.Model = models.DefaultModel
	}

	log := s.logger.With(
		zap.String("request_id", r.Header.Get(models.HeaderRequestID)),
		zap.String("model", req.Model),
	)

	switch {
	case len(req.Messages) > 0:
		for _, m := range req.Messages {
			if !m.Role.Valid() {
				writeDetail(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid role %q", m.Role))
				return
			}
		}
		if wantsJSON(r) {
			s.chatJSON(w, r, req, log)
		} else {
			s.chatStream(w, r, req, log)
		}
	case strings.TrimSpace(req.Prompt) != "":
		s.generate(w, r, req, log)
	default:
		writeDetail(w, http.StatusUnprocessableEntity, "messages or prompt is required")
	}
}

// chatStream relays fragments as a plain text stream, flushing each one
func (s *Server) chatStream(w http.ResponseWriter, r *http.Request, req chatRequest, log *zap.Logger) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeDetail(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	started := false
	fragments, err := s.upstream.StreamChat(r.Context(), req.Model, req.Messages, func(fragment string) error {
		if !started {
			w.Header().Set(models.HeaderContentType, models.ContentTypeText)
			w.Header().Set("Cache-Control", "no-cache")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := io.WriteString(w, fragment); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})

	switch {
	case err != nil && !started:
		log.Warn("upstream stream failed", zap.Error(err))
		writeDetail(w, http.StatusBadGateway, err.Error())
	case err != nil:
		// the status line is gone; report in-band like the stream's own text
		log.Warn("upstream stream broke", zap.Error(err), zap.Int("fragments", fragments))
		_, _ = io.WriteString(w, "Error: "+err.Error())
		flusher.Flush()
	case !started:
		w.Header().Set(models.HeaderContentType, models.ContentTypeText)
		w.WriteHeader(http.StatusOK)
	default:
		log.Debug("stream relayed", zap.Int("fragments", fragments))
	}
}

// chatJSON aggregates the streamed fragments into one {"response": ...} body
func (s *Server) chatJSON(w http.ResponseWriter, r *http.Request, req chatRequest, log *zap.Logger) {
	var sb strings.Builder
	fragments, err := s.upstream.StreamChat(r.Context(), req.Model, req.Messages, func(fragment string) error {
		sb.WriteString(fragment)
		return nil
	})
	if err != nil {
		log.Warn("upstream chat failed", zap.Error(err))
		writeDetail(w, http.StatusBadGateway, err.Error())
		return
	}

	log.Debug("chat aggregated", zap.Int("fragments", fragments))
	writeJSON(w, http.StatusOK, models.PayloadResponse{Response: sb.String()})
}

// generate answers a single prompt through Ollama's generate API
func (s *Server) generate(w http.ResponseWriter, r *http.Request, req chatRequest, log *zap.Logger) {
	text, err := s.upstream.Generate(r.Context(), req.Model, req.Prompt)
	if err != nil {
		log.Warn("upstream generate failed", zap.Error(err))
		writeDetail(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.PayloadResponse{Response: text})
}

// wantsJSON reports whether the client asked for a whole-payload reply
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get(models.HeaderAccept), models.ContentTypeJSON)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(models.HeaderContentType, models.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail writes a FastAPI-style {"detail": ...} error body
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{api.PathError: detail})
}
