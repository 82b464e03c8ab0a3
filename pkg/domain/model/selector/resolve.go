package selector

import (
	"errors"
	"fmt"

	"github.com/opst/modelfab/pkg/domain/model"
)

// NotSupportedNodeError tells a segment names something the graph does not know:
// an unknown key, a key not allowed at that depth, or an attribute not declared in MetaInfo.
type NotSupportedNodeError struct {
	Selector string
	Segment  Segment
	Reason   string
}

func (e *NotSupportedNodeError) Error() string {
	return fmt.Sprintf("not supported node: %s in %s (%s)", e.Segment, e.Selector, e.Reason)
}

// ErrNodeNotFound is returned by Resolve when a node on the path does not exist.
var ErrNodeNotFound = errors.New("node not found")

// Target is what a selector points: a node, or an attribute of the node.
type Target struct {
	Selector Selector
	Node     model.Node

	// Attribute is the name of the attribute. Empty when the target is the node itself.
	Attribute string

	// Meta is the declaration of the attribute. Zero when the target is the node itself.
	Meta model.AttributeMeta
}

func (t Target) IsAttribute() bool {
	return t.Attribute != ""
}

// Exists tells the node is in the graph. Targets from Peek may not exist yet.
func (t Target) Exists() bool {
	return t.Node != nil
}

// Inherited tells the node is owned by an ancestor of the definition the selector
// starts from, so that changing it needs a local override.
func (t Target) Inherited() bool {
	return t.Node != nil && t.Node.DefinedIn() != t.Selector.Root().Value
}

// Local returns the attribute set on the node the selector addresses itself.
// Values of inherited nodes are not local.
func (t Target) Local() (model.Attribute, bool) {
	if !t.IsAttribute() || !t.Exists() || t.Inherited() {
		return model.Attribute{}, false
	}
	return t.Node.GetAttribute(t.Attribute)
}

// Resolve finds the target without changing the graph.
//
// Children of definitions are looked up with inheritance.
// Missing nodes cause ErrNodeNotFound. Attributes need not be set to be resolved.
func Resolve(m *model.Models, sel Selector) (Target, error) {
	return resolve(m, sel, false)
}

// Peek is Resolve which tolerates missing nodes.
//
// When a node on the path is missing, Peek returns a Target without Node
// (but with Attribute and Meta, if the selector points an attribute) instead of ErrNodeNotFound.
// The graph is not changed.
func Peek(m *model.Models, sel Selector) (Target, error) {
	t, err := resolve(m, sel, false)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, ErrNodeNotFound) {
		return Target{}, err
	}

	t = Target{Selector: sel}
	if name, ok := sel.Attribute(); ok {
		kind := model.Kind(sel.segments[len(sel.segments)-2].Key)
		decl, _ := m.Meta().Lookup(kind, name) // checked by resolve
		t.Attribute = name
		t.Meta = decl
	}
	return t, nil
}

// ResolveForUpdate finds the target, creating missing nodes on the way.
//
// Created nodes are not deployed. For a child inherited from a parent definition,
// a local child (an override) is created in the definition named by the selector.
func ResolveForUpdate(m *model.Models, sel Selector) (Target, error) {
	return resolve(m, sel, true)
}

func resolve(m *model.Models, sel Selector, create bool) (Target, error) {
	if sel.IsZero() {
		return Target{}, fmt.Errorf("%w: empty", ErrInvalidSelector)
	}

	unsupported := func(seg Segment, reason string) error {
		return &NotSupportedNodeError{Selector: sel.String(), Segment: seg, Reason: reason}
	}
	notFound := func(seg Segment) error {
		return fmt.Errorf("%w: %s in %s", ErrNodeNotFound, seg, sel)
	}

	if err := checkPath(m.Meta(), sel); err != nil {
		return Target{}, err
	}

	segments := sel.segments
	root := segments[0]

	var node model.Node
	switch root.Key {
	case KeyClass:
		c, ok := m.Class(root.Value)
		if !ok && !create {
			return Target{}, notFound(root)
		}
		if !ok {
			c = m.PutClass(root.Value, "")
		}
		node = c
	case KeyProperty:
		p, ok := m.Property(root.Value)
		if !ok && !create {
			return Target{}, notFound(root)
		}
		if !ok {
			p = m.PutProperty(root.Value, "")
		}
		node = p
	case KeyDefinition:
		d, ok := m.Definition(root.Value)
		if !ok && !create {
			return Target{}, notFound(root)
		}
		if !ok {
			d = m.PutDefinition(root.Value, "")
		}
		node = d
	case KeyAttribute, KeyField, KeyRegion, KeyTransition, KeyGroup:
		return Target{}, unsupported(root, "should be under a top-level node")
	default:
		return Target{}, unsupported(root, "unknown key")
	}

	for i, seg := range segments[1:] {
		last := i == len(segments)-2

		switch seg.Key {
		case KeyAttribute:
			if !last {
				return Target{}, unsupported(seg, "attribute should be the last segment")
			}
			decl, ok := m.Meta().Lookup(node.Kind(), seg.Value)
			if !ok {
				return Target{}, unsupported(seg, fmt.Sprintf("not declared for %s", node.Kind()))
			}
			return Target{Selector: sel, Node: node, Attribute: seg.Value, Meta: decl}, nil

		case KeyField, KeyRegion, KeyTransition, KeyGroup:
			d, ok := node.(*model.Definition)
			if !ok {
				return Target{}, unsupported(seg, fmt.Sprintf("%s has no %s", node.Kind(), seg.Key))
			}
			kind := model.Kind(seg.Key)
			var child *model.Child
			if create {
				child = d.PutChild(kind, seg.Value)
			} else if c, ok := d.FindChild(kind, seg.Value); ok {
				child = c
			} else {
				return Target{}, notFound(seg)
			}
			node = child

		case KeyClass, KeyDefinition, KeyProperty:
			return Target{}, unsupported(seg, "top-level node should be the first segment")

		default:
			return Target{}, unsupported(seg, "unknown key")
		}
	}

	return Target{Selector: sel, Node: node}, nil
}

// checkPath checks keys and attribute names without looking at nodes,
// so that a broken selector creates nothing.
func checkPath(meta *model.MetaInfo, sel Selector) error {
	unsupported := func(seg Segment, reason string) error {
		return &NotSupportedNodeError{Selector: sel.String(), Segment: seg, Reason: reason}
	}

	var kind model.Kind
	for i, seg := range sel.segments {
		first, last := i == 0, i == len(sel.segments)-1
		switch seg.Key {
		case KeyClass, KeyDefinition, KeyProperty:
			if !first {
				return unsupported(seg, "top-level node should be the first segment")
			}
			kind = model.Kind(seg.Key)
		case KeyField, KeyRegion, KeyTransition, KeyGroup:
			if first {
				return unsupported(seg, "should be under a top-level node")
			}
			if kind != model.KindDefinition {
				return unsupported(seg, fmt.Sprintf("%s has no %s", kind, seg.Key))
			}
			kind = model.Kind(seg.Key)
		case KeyAttribute:
			if first {
				return unsupported(seg, "should be under a top-level node")
			}
			if !last {
				return unsupported(seg, "attribute should be the last segment")
			}
			if _, ok := meta.Lookup(kind, seg.Value); !ok {
				return unsupported(seg, fmt.Sprintf("not declared for %s", kind))
			}
		default:
			return unsupported(seg, "unknown key")
		}
	}
	return nil
}
