package gantry

import (
	"context"

	"github.com/google/uuid"
)

// requestIDHeader is mirrored from inbound requests to outbound responses.
const requestIDHeader = "X-Request-Id"

// stageRequestID adopts an inbound X-Request-Id when it is syntactically a
// UUID, otherwise mints a new time-ordered (v7) identifier. The id is
// stored on the context; ErrorNormalization mirrors it onto the response.
// Running the stage twice is a no-op.
func stageRequestID(_ context.Context, rc *RequestContext, req *Request) StageOutcome {
	if rc.ID != "" {
		return Continue()
	}

	if inbound := req.HeaderValue(requestIDHeader); inbound != "" {
		if _, err := uuid.Parse(inbound); err == nil {
			rc.ID = inbound
			return Continue()
		}
	}

	rc.ID = mintRequestID()
	return Continue()
}

// mintRequestID returns a UUIDv7. The v7 layout is time-ordered, which
// keeps ids sortable in logs. Falls back to v4 if the clock source fails.
func mintRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
