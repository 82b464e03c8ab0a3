// Package types are request and response bodies of the modeld API.
package types

import (
	"github.com/opst/modelfab/pkg/domain/changeset"
	"github.com/opst/modelfab/pkg/domain/model"
	"github.com/opst/modelfab/pkg/domain/model/selector"
)

// Summary is the response of GET /api/models/ .
type Summary struct {
	Version     int64    `json:"version"`
	Classes     []string `json:"classes"`
	Definitions []string `json:"definitions"`
	Properties  []string `json:"properties"`
}

type Attribute struct {
	Name     string `json:"name"`
	DataType string `json:"dataType,omitempty"`
	Value    any    `json:"value"`

	// Inherited tells the value is set on an ancestor.
	Inherited bool `json:"inherited,omitempty"`
}

type Node struct {
	Id         string      `json:"id"`
	Kind       string      `json:"kind"`
	DefinedIn  string      `json:"definedIn"`
	Deployed   bool        `json:"deployed"`
	Attributes []Attribute `json:"attributes"`
}

// Resolved is the response of GET /api/models/node/ .
type Resolved struct {
	Version  int64  `json:"version"`
	Selector string `json:"selector"`
	Node     Node   `json:"node"`

	// Attribute is the addressed attribute. nil when the selector addresses a node.
	Attribute *Attribute `json:"attribute,omitempty"`
}

// Changes is the response of GET /api/models/changes/ .
type Changes struct {
	Version int64            `json:"version"`
	Changes []changeset.Info `json:"changes"`
}

// HierarchyNode is a class or a definition with its descendants.
type HierarchyNode struct {
	Id     string `json:"id"`
	Parent string `json:"parent,omitempty"`

	// Deployed tells the node has been exported to the downstream.
	Deployed bool            `json:"deployed"`
	Children []HierarchyNode `json:"children"`
}

// Hierarchy is the response of GET /api/models/hierarchy/ .
//
// Roots are nodes without parents, or whose parent is not in the model.
type Hierarchy struct {
	Version     int64           `json:"version"`
	Classes     []HierarchyNode `json:"classes"`
	Definitions []HierarchyNode `json:"definitions"`
}

// Meta is the response of GET /api/models/meta/ .
type Meta struct {
	// Attributes are declarations of legal attributes, by kind of nodes.
	Attributes map[model.Kind][]model.AttributeMeta `json:"attributes"`
}

func ComposeSummary(m *model.Models) Summary {
	s := Summary{
		Version:     m.Version(),
		Classes:     []string{},
		Definitions: []string{},
		Properties:  []string{},
	}
	for _, c := range m.Classes() {
		s.Classes = append(s.Classes, c.Id())
	}
	for _, d := range m.Definitions() {
		s.Definitions = append(s.Definitions, d.Id())
	}
	for _, p := range m.Properties() {
		s.Properties = append(s.Properties, p.Id())
	}
	return s
}

func ComposeNode(n model.Node) Node {
	ret := Node{
		Id:         n.Id(),
		Kind:       string(n.Kind()),
		DefinedIn:  n.DefinedIn(),
		Deployed:   n.Deployed(),
		Attributes: []Attribute{},
	}
	for _, a := range n.Attributes() {
		ret.Attributes = append(ret.Attributes, Attribute{Name: a.Name, DataType: a.DataType, Value: a.Value})
	}
	return ret
}

func ComposeResolved(m *model.Models, t selector.Target) Resolved {
	ret := Resolved{
		Version:  m.Version(),
		Selector: t.Selector.String(),
		Node:     ComposeNode(t.Node),
	}
	if !t.IsAttribute() {
		return ret
	}

	attr := Attribute{Name: t.Attribute, DataType: t.Meta.DataType}
	if a, ok := t.Node.GetAttribute(t.Attribute); ok {
		attr.Value = a.Value
	} else if a, ok := t.Node.FindAttribute(t.Attribute); ok {
		attr.Value = a.Value
		attr.Inherited = true
	}
	ret.Attribute = &attr
	return ret
}

func ComposeHierarchy(m *model.Models) Hierarchy {
	h := Hierarchy{Version: m.Version(), Classes: []HierarchyNode{}, Definitions: []HierarchyNode{}}

	var class func(c *model.Class, visited map[string]bool) HierarchyNode
	class = func(c *model.Class, visited map[string]bool) HierarchyNode {
		visited[c.Id()] = true
		n := HierarchyNode{Id: c.Id(), Parent: c.Parent(), Deployed: c.Deployed(), Children: []HierarchyNode{}}
		for _, sub := range m.SubClasses(c.Id()) {
			if !visited[sub.Id()] {
				n.Children = append(n.Children, class(sub, visited))
			}
		}
		return n
	}
	visited := map[string]bool{}
	for _, c := range m.Classes() {
		if _, ok := m.Class(c.Parent()); !ok {
			h.Classes = append(h.Classes, class(c, visited))
		}
	}

	var definition func(d *model.Definition, visited map[string]bool) HierarchyNode
	definition = func(d *model.Definition, visited map[string]bool) HierarchyNode {
		visited[d.Id()] = true
		n := HierarchyNode{Id: d.Id(), Parent: d.Parent(), Deployed: d.Deployed(), Children: []HierarchyNode{}}
		for _, sub := range m.SubDefinitions(d.Id()) {
			if !visited[sub.Id()] {
				n.Children = append(n.Children, definition(sub, visited))
			}
		}
		return n
	}
	visited = map[string]bool{}
	for _, d := range m.Definitions() {
		if _, ok := m.Definition(d.Parent()); !ok {
			h.Definitions = append(h.Definitions, definition(d, visited))
		}
	}
	return h
}

// ComposeMeta lists declarations for every kind of nodes, including kinds without any.
func ComposeMeta(meta *model.MetaInfo) Meta {
	decls := meta.Declarations()
	ret := Meta{Attributes: map[model.Kind][]model.AttributeMeta{}}
	for _, k := range append([]model.Kind{model.KindClass, model.KindDefinition, model.KindProperty}, model.ChildKinds...) {
		ret.Attributes[k] = decls[k]
		if ret.Attributes[k] == nil {
			ret.Attributes[k] = []model.AttributeMeta{}
		}
	}
	return ret
}
