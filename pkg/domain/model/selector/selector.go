// Package selector addresses nodes and attributes in the model graph.
//
// A selector is a "/"-separated list of key=value segments:
//
//	class=emf:Case/attribute=ptop:title
//	/definition=testCase/field=title/attribute=label
//
// A leading "/" marks a definition-rooted path. Values are path-escaped,
// so that ids containing "/" can be written as "%2F".
package selector

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	KeyClass      = "class"
	KeyDefinition = "definition"
	KeyProperty   = "property"
	KeyAttribute  = "attribute"
	KeyField      = "field"
	KeyRegion     = "region"
	KeyTransition = "transition"
	KeyGroup      = "group"
)

var ErrInvalidSelector = errors.New("invalid selector")

type Segment struct {
	Key   string
	Value string
}

func (s Segment) String() string {
	return s.Key + "=" + url.PathEscape(s.Value)
}

// Selector is a parsed selector. The zero value selects nothing.
type Selector struct {
	rooted   bool
	segments []Segment
}

// Parse parses a selector syntactically.
//
// Keys are not checked here. Unknown keys are reported by Resolve.
func Parse(s string) (Selector, error) {
	rest, rooted := strings.CutPrefix(s, "/")
	if rest == "" {
		return Selector{}, fmt.Errorf("%w: empty: %q", ErrInvalidSelector, s)
	}

	parts := strings.Split(rest, "/")
	segments := make([]Segment, 0, len(parts))
	for _, p := range parts {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" || value == "" {
			return Selector{}, fmt.Errorf("%w: segment %q in %q should be key=value", ErrInvalidSelector, p, s)
		}
		unescaped, err := url.PathUnescape(value)
		if err != nil {
			return Selector{}, fmt.Errorf("%w: segment %q in %q: %w", ErrInvalidSelector, p, s, err)
		}
		segments = append(segments, Segment{Key: key, Value: unescaped})
	}

	if rooted && segments[0].Key != KeyDefinition {
		return Selector{}, fmt.Errorf("%w: %q: rooted selector should start with definition=", ErrInvalidSelector, s)
	}
	return Selector{rooted: rooted, segments: segments}, nil
}

// MustParse is Parse for selectors known to be valid. It panics on errors.
func MustParse(s string) Selector {
	sel, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return sel
}

func (s Selector) String() string {
	parts := make([]string, len(s.segments))
	for i, seg := range s.segments {
		parts[i] = seg.String()
	}
	joined := strings.Join(parts, "/")
	if s.rooted {
		return "/" + joined
	}
	return joined
}

func (s Selector) IsZero() bool {
	return len(s.segments) == 0
}

// Segments returns a copy of segments.
func (s Selector) Segments() []Segment {
	return append([]Segment(nil), s.segments...)
}

// Root is the first segment: the top-level node the selector starts from.
func (s Selector) Root() Segment {
	if len(s.segments) == 0 {
		return Segment{}
	}
	return s.segments[0]
}

// Attribute returns the attribute name, when the selector points an attribute.
func (s Selector) Attribute() (string, bool) {
	if len(s.segments) == 0 {
		return "", false
	}
	last := s.segments[len(s.segments)-1]
	if last.Key != KeyAttribute {
		return "", false
	}
	return last.Value, true
}

// Parent returns the selector without its last segment.
func (s Selector) Parent() (Selector, bool) {
	if len(s.segments) <= 1 {
		return Selector{}, false
	}
	return Selector{rooted: s.rooted, segments: s.segments[:len(s.segments)-1]}, true
}

// Child appends a segment.
func (s Selector) Child(key, value string) Selector {
	segments := make([]Segment, len(s.segments), len(s.segments)+1)
	copy(segments, s.segments)
	return Selector{rooted: s.rooted, segments: append(segments, Segment{Key: key, Value: value})}
}

func (s Selector) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Selector) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
