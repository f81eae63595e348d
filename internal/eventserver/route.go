package eventserver

import (
	"context"
	"sort"
	"strings"

	"github.com/OpenMined/syft-extras/internal/protocol"
)

// Handler processes one dispatched request. It may return a *protocol.Response
// for full control, or any other value to have it wrapped as a completed
// response body, or an error to have it turned into an error response.
type Handler func(ctx context.Context, req protocol.Request) (interface{}, error)

type segmentKind int

const (
	segLiteral segmentKind = iota
	segWildcard
	segDoubleStar
)

type patternSegment struct {
	kind    segmentKind
	literal string
	name    string
}

// Route pairs a compiled endpoint pattern with its handler.
type Route struct {
	Pattern string
	Handler Handler

	segments []patternSegment
	order    int
}

func compilePattern(pattern string) []patternSegment {
	parts := strings.Split(strings.Trim(pattern, "/"), "/")
	segments := make([]patternSegment, 0, len(parts))
	for _, p := range parts {
		switch {
		case p == "**":
			segments = append(segments, patternSegment{kind: segDoubleStar})
		case strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") && len(p) > 2:
			segments = append(segments, patternSegment{kind: segWildcard, name: p[1 : len(p)-1]})
		default:
			segments = append(segments, patternSegment{kind: segLiteral, literal: p})
		}
	}
	return segments
}

// specificity ranks a compiled pattern so that longer, more literal patterns
// outrank shorter or wilder ones.
type specificity struct {
	literalCount int
	fixedLength  int
	hasDoubleStar bool
}

func (s specificity) less(o specificity) bool {
	if s.literalCount != o.literalCount {
		return s.literalCount < o.literalCount
	}
	if s.fixedLength != o.fixedLength {
		return s.fixedLength < o.fixedLength
	}
	if s.hasDoubleStar != o.hasDoubleStar {
		return s.hasDoubleStar // having ** is less specific
	}
	return false
}

func specificityOf(segments []patternSegment) specificity {
	var s specificity
	for _, seg := range segments {
		switch seg.kind {
		case segLiteral:
			s.literalCount++
			s.fixedLength++
		case segWildcard:
			s.fixedLength++
		case segDoubleStar:
			s.hasDoubleStar = true
		}
	}
	return s
}

// Router holds registered routes sorted by specificity, most specific first.
type Router struct {
	routes []*Route
}

// Register adds a route for pattern. Registration order breaks specificity
// ties, earliest registration winning.
func (r *Router) Register(pattern string, h Handler) *Route {
	route := &Route{Pattern: pattern, Handler: h, segments: compilePattern(pattern), order: len(r.routes)}
	r.routes = append(r.routes, route)
	sort.SliceStable(r.routes, func(i, j int) bool {
		si, sj := specificityOf(r.routes[i].segments), specificityOf(r.routes[j].segments)
		if si.less(sj) {
			return false
		}
		if sj.less(si) {
			return true
		}
		return r.routes[i].order < r.routes[j].order
	})
	return route
}

// Routes returns the registered routes in match-priority order.
func (r *Router) Routes() []*Route {
	return append([]*Route{}, r.routes...)
}

// Match finds the highest-priority route whose pattern matches endpoint.
func (r *Router) Match(endpoint string) (*Route, map[string]string, bool) {
	segments := splitEndpoint(endpoint)
	for _, route := range r.routes {
		if params, ok := matchSegments(route.segments, segments); ok {
			return route, params, true
		}
	}
	return nil, nil, false
}

func matchSegments(pattern []patternSegment, path []string) (map[string]string, bool) {
	params := make(map[string]string)
	i, j := 0, 0
	for i < len(pattern) {
		seg := pattern[i]
		if seg.kind == segDoubleStar {
			// ** must be the final pattern segment; it matches everything
			// remaining, including zero segments.
			return params, true
		}
		if j >= len(path) {
			return nil, false
		}
		switch seg.kind {
		case segLiteral:
			if seg.literal != path[j] {
				return nil, false
			}
		case segWildcard:
			params[seg.name] = path[j]
		}
		i++
		j++
	}
	if j != len(path) {
		return nil, false
	}
	return params, true
}

func splitEndpoint(endpoint string) []string {
	endpoint = strings.Trim(endpoint, "/")
	if endpoint == "" {
		return nil
	}
	return strings.Split(endpoint, "/")
}
