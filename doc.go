// Package gantry is the request-processing core of a contract-first HTTP
// framework. Every request flows through a fixed-order middleware pipeline
// that cannot be reordered by users:
//
//	RequestId → Tracing → Identity → routing → Authorization → Validation →
//	RateLimit? → handler → ResponseValidation → Telemetry → ErrorNormalization
//
// Routes are declared against a contract registry and matched by a segment
// trie that supports static segments, {param} captures, and terminal *name
// catch-alls:
//
//	reg := gantry.NewRegistry()
//	reg.Get("/users/{userId}", "getUser", getUser)
//
//	srv := gantry.NewServer(gantry.ServerConfig{Registry: reg})
//
// Authorization decisions come from an external policy evaluator fronted by
// a single-flight decision cache: for any fingerprint at most one evaluation
// is in flight, and concurrent callers share its result.
//
// The pipeline produces a RequestContext for handlers. Handlers never see
// http.ResponseWriter or *http.Request:
//
//	func getUser(ctx context.Context, rc *gantry.RequestContext, req *gantry.Request) (*gantry.Response, error) {
//	    id, _ := rc.Params.Get("userId")
//	    return gantry.JSON(http.StatusOK, user{ID: id})
//	}
//
// Errors are normalized into a canonical envelope with a stable code
// taxonomy, and every response carries the request id minted or adopted by
// the first stage.
package gantry
