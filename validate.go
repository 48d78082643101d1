package gantry

import (
	"context"
	"fmt"
)

// defaultBodyLimit bounds request bodies when the operation declares no
// limit of its own.
const defaultBodyLimit = 1 << 20 // 1 MiB

// stageValidate checks path parameters, query values, headers, and the
// body against the operation's contract schemas. All failures accumulate
// into a single 422 — a request is never bounced on the first error alone.
func (p *Pipeline) stageValidate(_ context.Context, rc *RequestContext, req *Request) StageOutcome {
	op := rc.operation
	if op == nil {
		return Continue()
	}

	limit := op.MaxBodyBytes
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	if int64(len(req.Body)) > limit {
		return Fail(Errorf(CodeInvalidRequest, "request body exceeds limit of %d bytes", limit))
	}

	var errs []FieldError

	for _, param := range op.Parameters {
		value, present := paramValue(rc, req, param)
		if !present {
			if param.Required {
				errs = append(errs, FieldError{Source: param.Source, Field: param.Name, Reason: "missing"})
			}
			continue
		}
		if value == "" {
			if param.Required {
				errs = append(errs, FieldError{Source: param.Source, Field: param.Name, Reason: "empty"})
			}
			continue
		}
		errs = append(errs, param.Schema.ValidateString(value, param.Source, param.Name)...)
	}

	if op.Request != nil {
		errs = append(errs, op.Request.ValidateJSON(req.Body, "body")...)
	}

	if len(errs) > 0 {
		return Fail(NewError(CodeValidationFailed, "request validation failed").WithDetails(errs...))
	}
	return Continue()
}

func paramValue(rc *RequestContext, req *Request, param ParamSchema) (string, bool) {
	switch param.Source {
	case "path":
		return rc.Params.Get(param.Name)
	case "query":
		return queryValue(req.RawQuery, param.Name)
	case "header":
		v := req.HeaderValue(param.Name)
		return v, v != ""
	default:
		return "", false
	}
}

// queryValue extracts a single query parameter from the raw query string
// without percent-decoding, consistent with the router's raw-bytes
// contract.
func queryValue(query, name string) (string, bool) {
	for len(query) > 0 {
		pair := query
		for i := 0; i < len(query); i++ {
			if query[i] == '&' {
				pair = query[:i]
				break
			}
		}
		query = query[len(pair):]
		if len(query) > 0 {
			query = query[1:]
		}

		for i := 0; i < len(pair); i++ {
			if pair[i] == '=' {
				if pair[:i] == name {
					return pair[i+1:], true
				}
				break
			}
		}
	}
	return "", false
}

// responseAnnotationKey marks responses whose body failed contract
// validation in non-strict mode.
const responseAnnotationKey = "response.validation"

// validateResponse applies the operation's declared response schema to the
// outbound body. In non-strict mode a mismatch is logged and annotated; in
// strict mode the response is replaced with a 500 and the handler's body
// discarded.
func (p *Pipeline) validateResponse(rc *RequestContext, resp *Response) (*Response, error) {
	op := rc.operation
	if op == nil || len(op.Responses) == 0 {
		return resp, nil
	}
	schema, ok := op.Responses[resp.Status]
	if !ok {
		return resp, nil
	}

	errs := schema.ValidateJSON(resp.Body, "response")
	if len(errs) == 0 {
		return resp, nil
	}

	if p.strictResponses {
		return nil, NewError(CodeInternal, "response failed contract validation").WithDetails(errs...)
	}

	rc.Set(responseAnnotationKey, errs)
	p.logger.Warn("response failed contract validation",
		"operation", op.ID,
		"request_id", rc.ID,
		"status", resp.Status,
		"violations", fmt.Sprintf("%d", len(errs)),
	)
	return resp, nil
}
