package gantry

import (
	"encoding/json"
	"fmt"
)

// defaultMessage returns the taxonomy message for a code, used when
// free-form error text must be stripped.
func defaultMessage(code Code) string {
	switch code {
	case CodeInvalidRequest:
		return "invalid request"
	case CodeUnauthenticated:
		return "authentication required"
	case CodeForbidden:
		return "access denied"
	case CodeNotFound:
		return "not found"
	case CodeMethodNotAllowed:
		return "method not allowed"
	case CodeValidationFailed:
		return "validation failed"
	case CodeRateLimited:
		return "rate limit exceeded"
	case CodeUnavailable:
		return "service unavailable"
	case CodeTimeout:
		return "request timed out"
	default:
		return "internal error"
	}
}

func marshalEnvelope(env envelope) ([]byte, error) {
	return json.Marshal(env)
}

// errorEnvelopeResponse renders an *Error as the canonical wire envelope.
// Server-error messages are stripped to the taxonomy message unless debug
// is set; debug additionally appends the wrapped cause.
func errorEnvelopeResponse(rc *RequestContext, e *Error, debug bool) *Response {
	message := e.Message
	if e.Code.Status() >= 500 && !debug {
		// Never leak internal detail on server errors outside debug mode.
		message = defaultMessage(e.Code)
	}
	if debug && e.cause != nil {
		message = fmt.Sprintf("%s (%v)", message, e.cause)
	}

	body, err := marshalEnvelope(envelope{Error: envelopeBody{
		Code:      e.Code,
		Message:   message,
		RequestID: rc.ID,
		Details:   e.Details,
	}})
	if err != nil {
		body = []byte(`{"error":{"code":"INTERNAL","message":"error encoding failure"}}`)
	}

	resp := NewResponse(e.Code.Status())
	resp.SetHeader("Content-Type", "application/json")
	if rc.ID != "" {
		resp.SetHeader(requestIDHeader, rc.ID)
	}
	resp.Body = body
	return resp
}

// normalize is the terminal post-handler stage. It converts any pending
// failure into the canonical envelope and guarantees the request id header
// on every response. Post-handler stages never short-circuit; normalize
// only annotates or replaces what it was handed.
func (p *Pipeline) normalize(rc *RequestContext, resp *Response, failErr error) *Response {
	if failErr != nil {
		return errorEnvelopeResponse(rc, AsError(failErr), p.debug)
	}
	if resp == nil {
		return errorEnvelopeResponse(rc, NewError(CodeInternal, "handler produced no response"), p.debug)
	}

	if rc.ID != "" && resp.HeaderValue(requestIDHeader) == "" {
		resp.SetHeader(requestIDHeader, rc.ID)
	}
	if resp.Status >= 400 && resp.HeaderValue("Content-Type") == "" {
		resp.SetHeader("Content-Type", "application/json")
	}
	return resp
}
