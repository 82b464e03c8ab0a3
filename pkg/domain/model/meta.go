package model

import (
	"sort"
)

// Kind is the kind of nodes in the model graph.
type Kind string

const (
	KindClass      Kind = "class"
	KindDefinition Kind = "definition"
	KindProperty   Kind = "property"
	KindField      Kind = "field"
	KindRegion     Kind = "region"
	KindTransition Kind = "transition"
	KindGroup      Kind = "group"
)

// ChildKinds are kinds of nodes owned by a definition.
var ChildKinds = []Kind{KindField, KindRegion, KindTransition, KindGroup}

func (k Kind) IsChild() bool {
	switch k {
	case KindField, KindRegion, KindTransition, KindGroup:
		return true
	}
	return false
}

func (k Kind) IsTopLevel() bool {
	switch k {
	case KindClass, KindDefinition, KindProperty:
		return true
	}
	return false
}

func (k Kind) String() string {
	return string(k)
}

// ParseKind returns the Kind named s.
func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	if k.IsChild() || k.IsTopLevel() {
		return k, true
	}
	return "", false
}

// data types of attributes
const (
	TypeString  = "string"
	TypeURI     = "uri"
	TypeBoolean = "boolean"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeLabel   = "label"
	TypeCode    = "code"
)

// AttributeMeta declares an attribute legal for one kind of nodes.
type AttributeMeta struct {
	Name     string `json:"name" yaml:"name"`
	DataType string `json:"dataType" yaml:"dataType"`

	// Default is the value of the attribute when it is set nowhere in the inheritance chain.
	Default any `json:"default,omitempty" yaml:"default,omitempty"`

	// ReadOnly attributes can be changed only while they are unset,
	// or on nodes which have never been deployed.
	ReadOnly bool `json:"readOnly,omitempty" yaml:"readOnly,omitempty"`

	// CodeList, if not zero, is the code list which values of the attribute must belong to.
	CodeList int `json:"codeList,omitempty" yaml:"codeList,omitempty"`
}

// MetaInfo enumerates attributes legal for each kind of nodes.
//
// MetaInfo is immutable, and shared by clones of a graph.
type MetaInfo struct {
	decls map[Kind]map[string]AttributeMeta
}

func NewMetaInfo(decls map[Kind][]AttributeMeta) *MetaInfo {
	m := &MetaInfo{decls: map[Kind]map[string]AttributeMeta{}}
	for kind, attrs := range decls {
		byName := make(map[string]AttributeMeta, len(attrs))
		for _, a := range attrs {
			byName[a.Name] = a
		}
		m.decls[kind] = byName
	}
	return m
}

// Lookup finds the declaration of the attribute for the kind.
func (m *MetaInfo) Lookup(kind Kind, name string) (AttributeMeta, bool) {
	if m == nil {
		return AttributeMeta{}, false
	}
	a, ok := m.decls[kind][name]
	return a, ok
}

// Names lists names of attributes declared for the kind, in lexical order.
func (m *MetaInfo) Names(kind Kind) []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.decls[kind]))
	for n := range m.decls[kind] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Declarations returns all declarations, grouped by kind.
func (m *MetaInfo) Declarations() map[Kind][]AttributeMeta {
	out := map[Kind][]AttributeMeta{}
	if m == nil {
		return out
	}
	for kind := range m.decls {
		for _, n := range m.Names(kind) {
			out[kind] = append(out[kind], m.decls[kind][n])
		}
	}
	return out
}
