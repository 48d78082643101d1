package gantry

import (
	"encoding/json"
	"net/http"
)

// Request is the transport-independent request the pipeline operates on.
// Path carries the raw request path — the pipeline performs no
// percent-decoding. Body is fully buffered and bounded by the operation's
// body limit before the pipeline runs.
type Request struct {
	Method string
	Path   string
	// RawQuery is the query string without the leading '?', undecoded.
	RawQuery   string
	Header     http.Header
	Body       []byte
	RemoteAddr string
}

// HeaderValue returns the first value for the named header, with
// case-insensitive lookup.
func (r *Request) HeaderValue(name string) string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get(name)
}

// Response is the transport-independent response produced by handlers and
// stages.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// NewResponse returns an empty response with the given status.
func NewResponse(status int) *Response {
	return &Response{Status: status, Header: make(http.Header)}
}

// SetHeader sets a response header, replacing any existing values.
func (r *Response) SetHeader(name, value string) {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	r.Header.Set(name, value)
}

// HeaderValue returns the first value for the named response header.
func (r *Response) HeaderValue(name string) string {
	if r.Header == nil {
		return ""
	}
	return r.Header.Get(name)
}

// JSON builds a response with a JSON-encoded body and Content-Type set.
func JSON(status int, v any) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	resp := NewResponse(status)
	resp.SetHeader("Content-Type", "application/json")
	resp.Body = body
	return resp, nil
}
