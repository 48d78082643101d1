package gantry

import (
	"context"
	"errors"
	"strings"
)

// stageRouting resolves the operation id and path parameters into the
// context. An unmatched path fails with NOT_FOUND; a matched path with an
// unregistered method short-circuits with 405 and an Allow header.
func (p *Pipeline) stageRouting(_ context.Context, rc *RequestContext, req *Request) StageOutcome {
	m, err := p.router.Match(req.Method, req.Path)
	if err != nil {
		var mna *MethodNotAllowedError
		if errors.As(err, &mna) {
			resp := errorEnvelopeResponse(rc, NewError(CodeMethodNotAllowed, "method not allowed"), p.debug)
			resp.SetHeader("Allow", strings.Join(mna.Allow, ", "))
			return ShortCircuit(resp)
		}
		return Fail(NewError(CodeNotFound, "no route matches the request path"))
	}

	rc.OperationID = m.OperationID
	rc.Params = m.Params

	op, ok := p.contracts.Operation(m.OperationID)
	if !ok {
		return Fail(Errorf(CodeInternal, "no contract for operation %q", m.OperationID))
	}
	rc.operation = op
	return Continue()
}

// obligationsKey is where granted decision obligations land in the
// context attribute bag.
const obligationsKey = "authz.obligations"

// stageAuthorize consults the decision cache for operations guarded by a
// policy. Operations with no auth requirement skip the evaluator entirely.
func (p *Pipeline) stageAuthorize(ctx context.Context, rc *RequestContext, req *Request) StageOutcome {
	op := rc.operation
	if op == nil || op.Auth == nil {
		return Continue()
	}
	auth := op.Auth

	if rc.Identity.IsAnonymous() && !auth.AllowAnonymous {
		return Fail(NewError(CodeUnauthenticated, "credentials required"))
	}

	if p.cache == nil {
		return Fail(Errorf(CodeInternal, "operation %q requires a policy but no decision cache is configured", op.ID))
	}

	action := auth.Action
	if action == "" {
		action = op.Method
	}

	fp := ComputeFingerprint(auth.PolicyID, auth.PolicyVersion, op.ID, rc.Identity.Key(), auth.Resource, action)
	decision, err := p.cache.Lookup(ctx, fp, PolicyInput{
		PolicyID:      auth.PolicyID,
		PolicyVersion: auth.PolicyVersion,
		OperationID:   op.ID,
		Identity:      rc.Identity,
		Resource:      auth.Resource,
		Action:        action,
	})
	if err != nil {
		return p.authzFailure(auth, err)
	}

	if !decision.Allowed {
		msg := "access denied"
		if decision.Reason != "" {
			msg += ": " + decision.Reason
		}
		return Fail(NewError(CodeForbidden, msg))
	}

	if len(decision.Obligations) > 0 {
		rc.Set(obligationsKey, decision.Obligations)
	}
	return Continue()
}

// authzFailure maps an evaluator or cache failure per the operation's
// policy mode. Strict mode treats failures as fatal, except the evaluation
// timeout, which is a deny. Every other mode fails closed: the request is
// denied without being treated as an internal fault.
func (p *Pipeline) authzFailure(auth *AuthRequirement, err error) StageOutcome {
	if auth.Mode == PolicyStrict {
		if errors.Is(err, ErrEvaluationTimeout) {
			return Fail(WrapError(CodeForbidden, "access denied: policy evaluation timed out", err))
		}
		return Fail(WrapError(CodeUnavailable, "policy evaluation failed", err))
	}
	return Fail(WrapError(CodeForbidden, "access denied: policy unavailable", err))
}
