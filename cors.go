package gantry

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures the optional CORS handling. When enabled it runs
// ahead of RequestId: preflight requests short-circuit before the core
// stages, and cross-origin headers are added to every response.
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int // seconds
}

type corsStage struct {
	origins string
	methods string
	headers string
	expose  string
	maxAge  string
	creds   bool
}

func newCORSStage(cfg CORSConfig) *corsStage {
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOrigins = []string{"*"}
	}
	if len(cfg.AllowMethods) == 0 {
		cfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	}
	if len(cfg.AllowHeaders) == 0 {
		cfg.AllowHeaders = []string{"Content-Type", "Authorization"}
	}

	cs := &corsStage{
		origins: strings.Join(cfg.AllowOrigins, ", "),
		methods: strings.Join(cfg.AllowMethods, ", "),
		headers: strings.Join(cfg.AllowHeaders, ", "),
		expose:  strings.Join(cfg.ExposeHeaders, ", "),
		creds:   cfg.AllowCredentials,
	}
	if cfg.MaxAge > 0 {
		cs.maxAge = strconv.Itoa(cfg.MaxAge)
	}
	return cs
}

// stage short-circuits OPTIONS preflight with 204. All other requests
// continue; decorate adds the cross-origin headers on the way out.
func (cs *corsStage) stage(_ context.Context, _ *RequestContext, req *Request) StageOutcome {
	if req.Method == http.MethodOptions {
		return ShortCircuit(NewResponse(http.StatusNoContent))
	}
	return Continue()
}

func (cs *corsStage) decorate(_ *Request, resp *Response) {
	resp.SetHeader("Access-Control-Allow-Origin", cs.origins)
	resp.SetHeader("Access-Control-Allow-Methods", cs.methods)
	resp.SetHeader("Access-Control-Allow-Headers", cs.headers)

	if cs.expose != "" {
		resp.SetHeader("Access-Control-Expose-Headers", cs.expose)
	}
	if cs.creds {
		resp.SetHeader("Access-Control-Allow-Credentials", "true")
	}
	if cs.maxAge != "" {
		resp.SetHeader("Access-Control-Max-Age", cs.maxAge)
	}

	resp.SetHeader("Vary", "Origin")
}
