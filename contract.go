package gantry

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Handler is the core handler signature. The framework owns transport and
// serialization — handlers see only the pipeline's request, never
// http.ResponseWriter or *http.Request.
type Handler func(ctx context.Context, rc *RequestContext, req *Request) (*Response, error)

// PolicyMode controls how evaluator failures are treated for an operation.
type PolicyMode string

const (
	// PolicyStrict makes a cache or evaluator failure fatal for the request.
	PolicyStrict PolicyMode = "strict"
	// PolicyFailClosed denies the request on evaluator failure without
	// treating it as an internal fault.
	PolicyFailClosed PolicyMode = "fail_closed"
)

// AuthRequirement declares the policy an operation is guarded by.
type AuthRequirement struct {
	PolicyID      string
	PolicyVersion string
	Mode          PolicyMode
	// AllowAnonymous permits requests with no credential; the policy still
	// runs with the anonymous identity.
	AllowAnonymous bool
	// Resource and Action feed the decision fingerprint. Action defaults
	// to the HTTP method when empty.
	Resource string
	Action   string
}

// ParamSchema declares a non-body input the validation stage checks.
type ParamSchema struct {
	// Source is one of "path", "query", or "header".
	Source   string
	Name     string
	Required bool
	Schema   *Schema
}

// Operation is a contract-declared endpoint: its route, schemas, auth
// requirements, and per-operation limits.
type Operation struct {
	ID     string
	Method string
	Path   string

	// Request is the body schema, nil when the operation takes no body.
	Request *Schema
	// Parameters constrain path, query, and header inputs.
	Parameters []ParamSchema
	// Responses maps status codes to declared response body schemas.
	Responses map[int]*Schema

	// Auth is nil for operations with no policy (e.g. health probes).
	Auth *AuthRequirement

	// MaxBodyBytes bounds the request body; 0 applies the server default.
	MaxBodyBytes int64
	// Timeout bounds the whole pipeline for this operation; 0 means the
	// server default.
	Timeout time.Duration
}

// ContractProvider resolves operation ids to their contract declarations.
// The pipeline treats the provider's internal representation as opaque.
type ContractProvider interface {
	Operation(id string) (*Operation, bool)
}

// OperationOption configures an operation at registration time.
type OperationOption func(*Operation)

// WithRequestSchema declares the request body schema.
func WithRequestSchema(s *Schema) OperationOption {
	return func(op *Operation) { op.Request = s }
}

// WithResponseSchema declares the response body schema for a status code.
func WithResponseSchema(status int, s *Schema) OperationOption {
	return func(op *Operation) {
		if op.Responses == nil {
			op.Responses = make(map[int]*Schema)
		}
		op.Responses[status] = s
	}
}

// WithParam declares a path, query, or header constraint.
func WithParam(p ParamSchema) OperationOption {
	return func(op *Operation) { op.Parameters = append(op.Parameters, p) }
}

// WithAuth declares the operation's policy requirement.
func WithAuth(a AuthRequirement) OperationOption {
	return func(op *Operation) { op.Auth = &a }
}

// WithBodyLimit sets the per-operation maximum request body size in bytes.
func WithBodyLimit(maxBytes int64) OperationOption {
	return func(op *Operation) { op.MaxBodyBytes = maxBytes }
}

// WithTimeout sets the per-operation pipeline timeout.
func WithTimeout(d time.Duration) OperationOption {
	return func(op *Operation) { op.Timeout = d }
}

// Registry is an in-memory ContractProvider that also owns the route table
// and handler bindings. Registration happens at startup; the registry is
// read-only once the server is serving.
type Registry struct {
	mu       sync.Mutex
	router   *Router
	ops      map[string]*Operation
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		router:   NewRouter(),
		ops:      make(map[string]*Operation),
		handlers: make(map[string]Handler),
	}
}

// Register binds an operation and its handler, inserting the route.
func (r *Registry) Register(op *Operation, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if op.ID == "" {
		return fmt.Errorf("operation for %s %s has no id", op.Method, op.Path)
	}
	if _, exists := r.ops[op.ID]; exists {
		return fmt.Errorf("operation %q already registered", op.ID)
	}
	if err := r.router.Insert(op.Method, op.Path, op.ID); err != nil {
		return err
	}
	r.ops[op.ID] = op
	r.handlers[op.ID] = h
	return nil
}

func (r *Registry) register(method, path, id string, h Handler, opts []OperationOption) error {
	op := &Operation{ID: id, Method: method, Path: path}
	for _, opt := range opts {
		opt(op)
	}
	return r.Register(op, h)
}

// Get registers a GET operation.
func (r *Registry) Get(path, id string, h Handler, opts ...OperationOption) error {
	return r.register(http.MethodGet, path, id, h, opts)
}

// Post registers a POST operation.
func (r *Registry) Post(path, id string, h Handler, opts ...OperationOption) error {
	return r.register(http.MethodPost, path, id, h, opts)
}

// Put registers a PUT operation.
func (r *Registry) Put(path, id string, h Handler, opts ...OperationOption) error {
	return r.register(http.MethodPut, path, id, h, opts)
}

// Patch registers a PATCH operation.
func (r *Registry) Patch(path, id string, h Handler, opts ...OperationOption) error {
	return r.register(http.MethodPatch, path, id, h, opts)
}

// Delete registers a DELETE operation.
func (r *Registry) Delete(path, id string, h Handler, opts ...OperationOption) error {
	return r.register(http.MethodDelete, path, id, h, opts)
}

// Operation implements ContractProvider.
func (r *Registry) Operation(id string) (*Operation, bool) {
	op, ok := r.ops[id]
	return op, ok
}

// Handler returns the handler bound to an operation id.
func (r *Registry) Handler(id string) (Handler, bool) {
	h, ok := r.handlers[id]
	return h, ok
}

// Router returns the route table built from registrations.
func (r *Registry) Router() *Router {
	return r.router
}
