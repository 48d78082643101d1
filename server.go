package gantry

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultDrainTimeout  = 30 * time.Second
	defaultTransportBody = 4 << 20 // 4 MiB transport cap; operations enforce their own limits
)

// ServerConfig assembles a Server. Registry is required; an Evaluator is
// required only when any registered operation declares auth.
type ServerConfig struct {
	Addr     string
	Registry *Registry

	// Evaluator is the policy backend fronted by the decision cache.
	Evaluator Evaluator
	Cache     CacheConfig

	Tracer Tracer
	Sink   Sink
	Logger *slog.Logger

	RateLimit *RateLimitConfig
	CORS      *CORSConfig

	Debug           bool
	StrictResponses bool
	DefaultTimeout  time.Duration

	// DrainTimeout bounds graceful shutdown; default 30s.
	DrainTimeout time.Duration
	// MaxBodyBytes caps bodies read off the wire before the pipeline
	// sees them; default 4 MiB.
	MaxBodyBytes int64
}

// Server binds a Registry and Pipeline to net/http.
type Server struct {
	addr     string
	pipeline *Pipeline
	cache    *AuthzCache
	logger   *slog.Logger
	drain    time.Duration
	maxBody  int64
}

// NewServer wires the registry, decision cache, and pipeline together.
func NewServer(cfg ServerConfig) *Server {
	var cache *AuthzCache
	if cfg.Evaluator != nil {
		cache = NewAuthzCache(cfg.Evaluator, cfg.Cache)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		addr:   cfg.Addr,
		cache:  cache,
		logger: logger,
		drain:  cfg.DrainTimeout,
	}
	if s.drain <= 0 {
		s.drain = defaultDrainTimeout
	}
	s.maxBody = cfg.MaxBodyBytes
	if s.maxBody <= 0 {
		s.maxBody = defaultTransportBody
	}

	s.pipeline = NewPipeline(PipelineConfig{
		Contracts:       cfg.Registry,
		Handlers:        cfg.Registry,
		Router:          cfg.Registry.Router(),
		Cache:           cache,
		Tracer:          cfg.Tracer,
		Sink:            cfg.Sink,
		Logger:          logger,
		RateLimit:       cfg.RateLimit,
		CORS:            cfg.CORS,
		Debug:           cfg.Debug,
		StrictResponses: cfg.StrictResponses,
		DefaultTimeout:  cfg.DefaultTimeout,
	})
	return s
}

// Cache exposes the decision cache for invalidation and stats. Nil when
// the server was built without an evaluator.
func (s *Server) Cache() *AuthzCache {
	return s.cache
}

// Pipeline exposes the underlying pipeline, mainly for tests.
func (s *Server) Pipeline() *Pipeline {
	return s.pipeline
}

// ServeHTTP implements http.Handler: it buffers the request, runs the
// pipeline, and writes the result back.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := s.readRequest(r)
	if err != nil {
		s.writeResponse(w, errorEnvelopeResponse(&RequestContext{}, AsError(err), false))
		return
	}

	resp := s.pipeline.Execute(r.Context(), req)
	s.writeResponse(w, resp)
}

func (s *Server) readRequest(r *http.Request) (*Request, error) {
	req := &Request{
		Method:     r.Method,
		Path:       r.URL.EscapedPath(),
		RawQuery:   r.URL.RawQuery,
		Header:     r.Header,
		RemoteAddr: r.RemoteAddr,
	}

	if r.Body == nil {
		return req, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxBody+1))
	if err != nil {
		return nil, Errorf(CodeInvalidRequest, "reading request body: %v", err)
	}
	if int64(len(body)) > s.maxBody {
		return nil, Errorf(CodeInvalidRequest, "request body exceeds %d bytes", s.maxBody)
	}
	req.Body = body
	return req, nil
}

func (s *Server) writeResponse(w http.ResponseWriter, resp *Response) {
	for name, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(resp.Status)
	if len(resp.Body) > 0 {
		if _, err := w.Write(resp.Body); err != nil {
			s.logger.Debug("writing response body", "error", err)
		}
	}
}

// ListenAndServe starts an HTTP server on the configured address. It
// blocks until the context is cancelled, then shuts down gracefully
// within the drain timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.drain)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
