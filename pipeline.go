package gantry

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"
)

type outcomeAction uint8

const (
	actionContinue outcomeAction = iota
	actionShortCircuit
	actionFail
)

// StageOutcome is the result of one pipeline stage: continue to the next
// stage, short-circuit with a response (skipping the handler but not the
// post-handler stages), or fail with an error.
type StageOutcome struct {
	action outcomeAction
	resp   *Response
	err    error
}

// Continue proceeds to the next stage.
func Continue() StageOutcome {
	return StageOutcome{action: actionContinue}
}

// ShortCircuit skips the remaining pre-handler stages and the handler. The
// post-handler stages still run on resp.
func ShortCircuit(resp *Response) StageOutcome {
	return StageOutcome{action: actionShortCircuit, resp: resp}
}

// Fail aborts with err; ErrorNormalization converts it to a response and
// Telemetry still emits.
func Fail(err error) StageOutcome {
	return StageOutcome{action: actionFail, err: err}
}

// StageFunc is the contract every pipeline stage satisfies.
type StageFunc func(ctx context.Context, rc *RequestContext, req *Request) StageOutcome

type stage struct {
	name string
	fn   StageFunc
}

// HandlerResolver resolves operation ids to their bound handlers.
type HandlerResolver interface {
	Handler(id string) (Handler, bool)
}

// PipelineConfig assembles a Pipeline. Contracts and Handlers are required;
// everything else has working defaults.
type PipelineConfig struct {
	Contracts ContractProvider
	Handlers  HandlerResolver
	Router    *Router

	// Cache fronts the policy evaluator. Operations with no auth
	// requirement never touch it; with auth declared it is required.
	Cache *AuthzCache

	// Tracer creates spans; defaults to a no-op tracer.
	Tracer Tracer
	// Sink receives telemetry samples; defaults to a slog-backed sink.
	Sink Sink
	// Logger is used for pipeline diagnostics; defaults to slog.Default().
	Logger *slog.Logger

	// RateLimit enables the optional rate-limit stage when non-nil.
	RateLimit *RateLimitConfig
	// CORS enables preflight and response-header handling when non-nil.
	// The stage runs ahead of RequestId and is never reorderable.
	CORS *CORSConfig

	// Debug appends developer detail to error envelopes.
	Debug bool

	// StrictResponses replaces responses that fail contract validation
	// with a 500 instead of logging and annotating.
	StrictResponses bool

	// DefaultTimeout bounds the whole pipeline when the operation does
	// not declare its own; zero leaves requests unbounded.
	DefaultTimeout time.Duration
}

// Pipeline runs the fixed-order stages around a resolved handler. The
// stage order is not user-configurable: optional stages may be switched
// off but never reordered.
type Pipeline struct {
	contracts       ContractProvider
	handlers        HandlerResolver
	router          *Router
	cache           *AuthzCache
	tracer          Tracer
	sink            Sink
	logger          *slog.Logger
	limiter         *rateLimiter
	cors            *corsStage
	debug           bool
	strictResponses bool
	timeout         time.Duration

	pre []stage
}

// NewPipeline builds the fixed stage chain.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	p := &Pipeline{
		contracts:       cfg.Contracts,
		handlers:        cfg.Handlers,
		router:          cfg.Router,
		cache:           cfg.Cache,
		tracer:          cfg.Tracer,
		sink:            cfg.Sink,
		logger:          cfg.Logger,
		debug:           cfg.Debug,
		strictResponses: cfg.StrictResponses,
		timeout:         cfg.DefaultTimeout,
	}
	if p.tracer == nil {
		p.tracer = noopTracer{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.sink == nil {
		p.sink = NewLogSink(p.logger)
	}
	if cfg.RateLimit != nil {
		p.limiter = newRateLimiter(*cfg.RateLimit)
	}
	if cfg.CORS != nil {
		p.cors = newCORSStage(*cfg.CORS)
	}

	p.pre = []stage{
		{"request_id", stageRequestID},
		{"tracing", p.stageTracing},
		{"identity", stageIdentity},
		{"routing", p.stageRouting},
		{"authorization", p.stageAuthorize},
		{"validation", p.stageValidate},
	}
	if p.limiter != nil {
		p.pre = append(p.pre, stage{"rate_limit", p.limiter.stage})
	}
	return p
}

// StageNames returns the pre-handler stage names in execution order.
func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.pre))
	for i, st := range p.pre {
		names[i] = st.name
	}
	return names
}

// Execute runs one request through the pipeline and always returns a
// response. Post-handler stages run unconditionally once entered,
// including after short-circuits, failures, panics, and cancellation.
func (p *Pipeline) Execute(ctx context.Context, req *Request) *Response {
	rc := &RequestContext{start: time.Now(), Identity: Anonymous()}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
		rc.Deadline, _ = ctx.Deadline()
	}

	var resp *Response
	var failErr error

	if p.cors != nil {
		if out := p.cors.stage(ctx, rc, req); out.action == actionShortCircuit {
			resp = out.resp
			return p.finish(ctx, rc, req, resp, nil)
		}
	}

	for _, st := range p.pre {
		select {
		case <-ctx.Done():
			failErr = ctx.Err()
		default:
		}
		if failErr != nil {
			break
		}

		out := st.fn(ctx, rc, req)
		if out.action == actionShortCircuit {
			resp = out.resp
			break
		}
		if out.action == actionFail {
			failErr = out.err
			break
		}

		// Tracing hands back a span-bearing context for the rest of the
		// request.
		if st.name == "tracing" && rc.spanCtx != nil {
			ctx = rc.spanCtx
		}

		// The operation may tighten the request deadline once routing
		// has resolved it.
		if st.name == "routing" && rc.operation != nil && rc.operation.Timeout > 0 {
			deadline := rc.start.Add(rc.operation.Timeout)
			if rc.Deadline.IsZero() || deadline.Before(rc.Deadline) {
				var cancel context.CancelFunc
				ctx, cancel = context.WithDeadline(ctx, deadline)
				defer cancel()
				rc.Deadline = deadline
			}
		}
	}

	if resp == nil && failErr == nil {
		resp, failErr = p.invokeHandler(ctx, rc, req)
	}

	return p.finish(ctx, rc, req, resp, failErr)
}

// invokeHandler runs the resolved handler with panic containment.
func (p *Pipeline) invokeHandler(ctx context.Context, rc *RequestContext, req *Request) (resp *Response, err error) {
	h, ok := p.handlers.Handler(rc.OperationID)
	if !ok {
		return nil, Errorf(CodeInternal, "no handler bound for operation %q", rc.OperationID)
	}

	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("handler panic",
				"panic", rec,
				"stack", string(debug.Stack()),
				"operation", rc.OperationID,
				"request_id", rc.ID,
			)
			resp = nil
			err = Errorf(CodeInternal, "handler panic: %v", rec)
		}
	}()

	return h(ctx, rc, req)
}

// finish runs the post-handler stages: response validation, telemetry,
// error normalization. The tail is non-cancellable so telemetry is emitted
// even for cancelled requests.
func (p *Pipeline) finish(ctx context.Context, rc *RequestContext, req *Request, resp *Response, failErr error) *Response {
	ctx = context.WithoutCancel(ctx)

	if resp != nil && failErr == nil {
		resp, failErr = p.validateResponse(rc, resp)
	}

	p.emitTelemetry(ctx, rc, resp, failErr)

	resp = p.normalize(rc, resp, failErr)

	if p.cors != nil {
		p.cors.decorate(req, resp)
	}
	return resp
}
