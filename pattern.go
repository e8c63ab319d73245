package dispatch

import (
	"fmt"
	"strings"

	"github.com/grafana/regexp"
)

// Params holds the named values captured from a request path.
type Params map[string]string

// Get returns the value captured for name. The second return value is false
// when the pattern has no such parameter.
func (p Params) Get(name string) (string, bool) {
	v, ok := p[name]
	return v, ok
}

// Pattern is a compiled route pattern. Patterns are made of slash separated
// segments: literals ('/users'), named parameters ('/users/:id'), parameters
// with a constraint ('/users/:id([0-9]+)'), and an optional trailing wildcard
// ('/files/*' or '/files/*path') that captures the rest of the path.
type Pattern struct {
	str        string
	segments   []segment
	paramCount int
}

type segmentKind int

const (
	static segmentKind = iota
	param
	wildcard
)

type segment struct {
	kind       segmentKind
	value      string
	key        string
	constraint *regexp.Regexp
}

// WildcardKey is the parameter name used for an unnamed trailing wildcard.
const WildcardKey = "*"

// NewPattern compiles a route pattern. It returns an *InvalidPatternError when
// a parameter name is repeated, a wildcard is not the final segment, or a
// segment is malformed.
func NewPattern(patternStr string) (*Pattern, error) {
	segments, err := parseSegments(patternStr)
	if err != nil {
		return nil, &InvalidPatternError{
			Pattern: patternStr,
			Reason:  err,
		}
	}

	paramCount := 0
	for _, seg := range segments {
		if seg.kind != static {
			paramCount++
		}
	}

	return &Pattern{
		str:        patternStr,
		segments:   segments,
		paramCount: paramCount,
	}, nil
}

// MustPattern is like NewPattern but panics on an invalid pattern.
func MustPattern(patternStr string) *Pattern {
	p, err := NewPattern(patternStr)
	if err != nil {
		panic(err)
	}
	return p
}

// Match compares path against the pattern. When it matches, the captured
// parameters are returned along with true. Leading and trailing slashes are
// ignored on both sides.
func (p *Pattern) Match(path string) (Params, bool) {
	parts := splitPath(path)
	params := make(Params, p.paramCount)

	for i, seg := range p.segments {
		if seg.kind == wildcard {
			params[seg.key] = strings.Join(parts[i:], "/")
			return params, true
		}
		if i >= len(parts) {
			return nil, false
		}

		part := parts[i]
		switch seg.kind {
		case static:
			if part != seg.value {
				return nil, false
			}
		case param:
			if part == "" {
				return nil, false
			}
			if seg.constraint != nil && !seg.constraint.MatchString(part) {
				return nil, false
			}
			params[seg.key] = part
		}
	}

	if len(parts) != len(p.segments) {
		return nil, false
	}

	return params, true
}

// Path builds a concrete path from the pattern by substituting params. Every
// named parameter must be present. A wildcard value is optional.
func (p *Pattern) Path(params Params) (string, error) {
	var b strings.Builder
	for _, seg := range p.segments {
		switch seg.kind {
		case static:
			b.WriteString("/")
			b.WriteString(seg.value)
		case param:
			value, ok := params[seg.key]
			if !ok || value == "" {
				return "", fmt.Errorf("%w: %s", ErrMissingParam, seg.key)
			}
			b.WriteString("/")
			b.WriteString(value)
		case wildcard:
			if value := strings.Trim(params[seg.key], "/"); value != "" {
				b.WriteString("/")
				b.WriteString(value)
			}
		}
	}

	if b.Len() == 0 {
		return "/", nil
	}
	return b.String(), nil
}

func (p *Pattern) String() string {
	return p.str
}

// Keys returns the parameter names of the pattern in order.
func (p *Pattern) Keys() []string {
	keys := make([]string, 0, p.paramCount)
	for _, seg := range p.segments {
		if seg.kind != static {
			keys = append(keys, seg.key)
		}
	}
	return keys
}

func parseSegments(patternStr string) ([]segment, error) {
	parts := splitPath(patternStr)
	segments := make([]segment, 0, len(parts))
	seen := make(map[string]bool, len(parts))

	for i, part := range parts {
		if part == "" {
			return nil, ErrEmptySegment
		}

		var seg segment
		switch part[0] {
		case '*':
			if i != len(parts)-1 {
				return nil, ErrWildcardNotLast
			}
			seg.kind = wildcard
			seg.key = strings.TrimLeft(part, "*")
			if seg.key == "" {
				seg.key = WildcardKey
			}
		case ':':
			seg.kind = param
			key, constraint, err := parseParam(part[1:])
			if err != nil {
				return nil, err
			}
			seg.key = key
			seg.constraint = constraint
		default:
			seg.kind = static
			seg.value = part
		}

		if seg.kind != static {
			if seen[seg.key] {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateParam, seg.key)
			}
			seen[seg.key] = true
		}

		segments = append(segments, seg)
	}

	return segments, nil
}

func parseParam(body string) (string, *regexp.Regexp, error) {
	open := strings.IndexByte(body, '(')
	if open == -1 {
		if body == "" {
			return "", nil, ErrEmptyParamName
		}
		return body, nil, nil
	}

	key := body[:open]
	if key == "" {
		return "", nil, ErrEmptyParamName
	}
	if !strings.HasSuffix(body, ")") {
		return "", nil, fmt.Errorf("unterminated constraint for parameter %s", key)
	}

	constraint, err := regexp.Compile("^(?:" + body[open+1:len(body)-1] + ")$")
	if err != nil {
		return "", nil, err
	}
	return key, constraint, nil
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
