package gantry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Routing errors.
var (
	// ErrDuplicateRoute is returned by Insert when the exact (path, method)
	// pair is already registered.
	ErrDuplicateRoute = errors.New("duplicate route")

	// ErrConflictingParam is returned by Insert when a parameter or
	// catch-all segment collides with an existing capture of a different
	// name at the same depth.
	ErrConflictingParam = errors.New("conflicting parameter")

	// ErrNotFound is returned by Match when no registered path matches.
	ErrNotFound = errors.New("route not found")
)

// MethodNotAllowedError is returned by Match when the path matched a
// registered route but the method has no registration. Allow lists the
// methods the route does accept, sorted.
type MethodNotAllowedError struct {
	Allow []string
}

func (e *MethodNotAllowedError) Error() string {
	return "method not allowed (allow: " + strings.Join(e.Allow, ", ") + ")"
}

// RouteMatch is a successful router lookup: the operation id registered for
// the (method, path) pair plus any captured path parameters.
type RouteMatch struct {
	OperationID string
	Params      Params
}

// routeEntry records the operation id per HTTP method at a trie leaf.
type routeEntry struct {
	byMethod map[string]string
}

func (e *routeEntry) allow() []string {
	methods := make([]string, 0, len(e.byMethod))
	for m := range e.byMethod {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// node is a trie node keyed by whole path segments: a static-child map, at
// most one parameter child, and at most one terminal catch-all child.
type node struct {
	static       map[string]*node
	param        *node
	paramName    string
	wildcard     *node
	wildcardName string
	entry        *routeEntry
}

// Router maps (method, path) to an operation id using a segment trie.
// Matching prefers static segments over parameters over catch-alls and runs
// in O(k) for a path of k segments, independent of the number of routes.
//
// A Router is built at startup and must not be modified once serving;
// concurrent Match calls need no synchronization.
type Router struct {
	root  node
	count int
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{}
}

// Len returns the number of (path, method) registrations.
func (r *Router) Len() int { return r.count }

type segmentKind uint8

const (
	segStatic segmentKind = iota
	segParam
	segWildcard
)

type segment struct {
	kind segmentKind
	// literal text for static segments, capture name for param/wildcard
	value string
}

// splitPath cuts a path into segments. Trailing slashes are significant:
// "/x/" yields ["x", ""] and registers/matches independently of "/x".
func splitPath(path string) ([]string, error) {
	if path == "" || path[0] != '/' {
		return nil, fmt.Errorf("path %q must begin with '/'", path)
	}
	return strings.Split(path[1:], "/"), nil
}

func parsePattern(path string) ([]segment, error) {
	raw, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	segs := make([]segment, 0, len(raw))
	for i, s := range raw {
		switch {
		case strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"):
			name := s[1 : len(s)-1]
			if name == "" {
				return nil, fmt.Errorf("path %q: parameter segment must be named", path)
			}
			segs = append(segs, segment{kind: segParam, value: name})
		case strings.HasPrefix(s, "*"):
			name := s[1:]
			if name == "" {
				return nil, fmt.Errorf("path %q: catch-all segment must be named", path)
			}
			if i != len(raw)-1 {
				return nil, fmt.Errorf("path %q: catch-all segment must be terminal", path)
			}
			segs = append(segs, segment{kind: segWildcard, value: name})
		default:
			segs = append(segs, segment{kind: segStatic, value: s})
		}
	}
	return segs, nil
}

// Insert registers operationID for (method, path). Path patterns use three
// segment kinds: literal text matched byte-exactly, "{name}" capturing one
// non-empty segment, and a terminal "*name" capturing the remainder.
func (r *Router) Insert(method, path, operationID string) error {
	segs, err := parsePattern(path)
	if err != nil {
		return err
	}

	n := &r.root
	for _, seg := range segs {
		switch seg.kind {
		case segParam:
			if n.param == nil {
				n.param = &node{}
				n.paramName = seg.value
			} else if n.paramName != seg.value {
				return fmt.Errorf("%w: {%s} vs existing {%s} in %q", ErrConflictingParam, seg.value, n.paramName, path)
			}
			n = n.param
		case segWildcard:
			if n.wildcard == nil {
				n.wildcard = &node{}
				n.wildcardName = seg.value
			} else if n.wildcardName != seg.value {
				return fmt.Errorf("%w: *%s vs existing *%s in %q", ErrConflictingParam, seg.value, n.wildcardName, path)
			}
			n = n.wildcard
		default:
			if n.static == nil {
				n.static = make(map[string]*node)
			}
			child, ok := n.static[seg.value]
			if !ok {
				child = &node{}
				n.static[seg.value] = child
			}
			n = child
		}
	}

	if n.entry == nil {
		n.entry = &routeEntry{byMethod: make(map[string]string)}
	}
	if _, exists := n.entry.byMethod[method]; exists {
		return fmt.Errorf("%w: %s %s", ErrDuplicateRoute, method, path)
	}
	n.entry.byMethod[method] = operationID
	r.count++
	return nil
}

// Match resolves (method, path) to a RouteMatch. The path is taken as raw
// bytes; no percent-decoding is performed and parameter values are the raw
// segments. It returns ErrNotFound when no path matches and a
// *MethodNotAllowedError when the path matches but the method does not.
func (r *Router) Match(method, path string) (*RouteMatch, error) {
	raw, err := splitPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	params := NewParams()
	leaf := r.root.matchSegments(raw, &params)
	if leaf == nil || leaf.entry == nil {
		return nil, ErrNotFound
	}

	op, ok := leaf.entry.byMethod[method]
	if !ok {
		return nil, &MethodNotAllowedError{Allow: leaf.entry.allow()}
	}
	return &RouteMatch{OperationID: op, Params: params}, nil
}

// matchSegments walks the trie, preferring static children over the
// parameter child over the catch-all. Captures made along a branch that
// ultimately fails are rolled back before the next branch is tried.
func (n *node) matchSegments(segs []string, params *Params) *node {
	if len(segs) == 0 {
		if n.entry != nil {
			return n
		}
		return nil
	}

	head, rest := segs[0], segs[1:]

	if child, ok := n.static[head]; ok {
		if leaf := child.matchSegments(rest, params); leaf != nil {
			return leaf
		}
	}

	if n.param != nil && head != "" {
		mark := params.Len()
		params.Push(n.paramName, head)
		if leaf := n.param.matchSegments(rest, params); leaf != nil {
			return leaf
		}
		params.truncate(mark)
	}

	if n.wildcard != nil && n.wildcard.entry != nil {
		params.Push(n.wildcardName, strings.Join(segs, "/"))
		return n.wildcard
	}

	return nil
}
