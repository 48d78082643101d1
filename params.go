package gantry

// inlineParams is the capacity pre-allocated for a parameter set. Most
// routes declare four or fewer captures, so a match rarely reallocates.
const inlineParams = 4

// Param is a single captured path parameter.
type Param struct {
	Name  string
	Value string
}

// Params is an ordered list of path parameters captured during a route
// match. Insertion order is preserved and lookups return the first pair
// with a matching name. Values are the raw segment bytes — the router
// performs no percent-decoding.
//
// A Params value attached to a RequestContext must not be mutated.
type Params struct {
	pairs []Param
}

// NewParams returns an empty parameter set sized for typical routes.
func NewParams() Params {
	return Params{pairs: make([]Param, 0, inlineParams)}
}

// Push appends a (name, value) pair.
func (p *Params) Push(name, value string) {
	p.pairs = append(p.pairs, Param{Name: name, Value: value})
}

// Get returns the value for name. The second return reports whether the
// name was present; the first matching pair wins.
func (p Params) Get(name string) (string, bool) {
	for _, pair := range p.pairs {
		if pair.Name == name {
			return pair.Value, true
		}
	}
	return "", false
}

// Len returns the number of captured parameters.
func (p Params) Len() int { return len(p.pairs) }

// IsEmpty reports whether no parameters were captured.
func (p Params) IsEmpty() bool { return len(p.pairs) == 0 }

// All returns the pairs in capture order. The returned slice is shared;
// callers must treat it as read-only.
func (p Params) All() []Param { return p.pairs }

// truncate drops pairs beyond n, undoing speculative captures.
func (p *Params) truncate(n int) {
	p.pairs = p.pairs[:n]
}
