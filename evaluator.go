package gantry

import (
	"context"
	"errors"
)

// PolicyInput is the query handed to the policy evaluator.
type PolicyInput struct {
	PolicyID      string
	PolicyVersion string
	OperationID   string
	Identity      Identity
	Resource      string
	Action        string
}

// Evaluator is the external policy engine consulted by the authorization
// stage. Implementations must honor the deadline on ctx.
type Evaluator interface {
	Evaluate(ctx context.Context, input PolicyInput) (Decision, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, input PolicyInput) (Decision, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(ctx context.Context, input PolicyInput) (Decision, error) {
	return f(ctx, input)
}

// ErrEvaluationTimeout is returned when the evaluator exceeds its per-call
// deadline. It is classified retryable.
var ErrEvaluationTimeout = errors.New("policy evaluation timed out")

// EvalErrorKind classifies evaluator failures. Retryable failures (network,
// timeout) are never cached; permanent failures (malformed policy) are
// cached as a deny for a short negative TTL to protect the evaluator.
type EvalErrorKind int

const (
	EvalRetryable EvalErrorKind = iota
	EvalPermanent
)

// EvalError wraps an evaluator failure with its classification.
type EvalError struct {
	Kind EvalErrorKind
	Err  error
}

func (e *EvalError) Error() string {
	if e.Kind == EvalPermanent {
		return "permanent evaluator error: " + e.Err.Error()
	}
	return "retryable evaluator error: " + e.Err.Error()
}

func (e *EvalError) Unwrap() error { return e.Err }

// PermanentEvalError marks err as a permanent evaluator failure.
func PermanentEvalError(err error) *EvalError {
	return &EvalError{Kind: EvalPermanent, Err: err}
}

// RetryableEvalError marks err as a retryable evaluator failure.
func RetryableEvalError(err error) *EvalError {
	return &EvalError{Kind: EvalRetryable, Err: err}
}

// classifyEvalError maps an evaluator error to its kind. Errors already
// carrying a classification keep it; deadline expiry is retryable;
// everything else defaults to retryable so a transient fault never poisons
// the cache.
func classifyEvalError(err error) EvalErrorKind {
	var ee *EvalError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return EvalRetryable
}
