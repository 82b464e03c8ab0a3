package model

import (
	"sort"
)

// Models is the root of the model graph.
type Models struct {
	version int64
	meta    *MetaInfo

	classes     map[string]*Class
	definitions map[string]*Definition
	properties  map[string]*Property
}

// New creates an empty graph at version 0.
func New(meta *MetaInfo) *Models {
	if meta == nil {
		meta = NewMetaInfo(nil)
	}
	return &Models{
		meta:        meta,
		classes:     map[string]*Class{},
		definitions: map[string]*Definition{},
		properties:  map[string]*Property{},
	}
}

// Version is the model version this graph represents.
func (m *Models) Version() int64 {
	return m.version
}

func (m *Models) SetVersion(v int64) {
	m.version = v
}

func (m *Models) Meta() *MetaInfo {
	return m.meta
}

func (m *Models) Class(id string) (*Class, bool) {
	c, ok := m.classes[id]
	return c, ok
}

func (m *Models) Definition(id string) (*Definition, bool) {
	d, ok := m.definitions[id]
	return d, ok
}

func (m *Models) Property(id string) (*Property, bool) {
	p, ok := m.properties[id]
	return p, ok
}

// Node looks up a top-level node by id.
//
// When ids of different kinds collide, definitions win over classes, and classes over properties.
func (m *Models) Node(id string) (Node, bool) {
	if d, ok := m.definitions[id]; ok {
		return d, true
	}
	if c, ok := m.classes[id]; ok {
		return c, true
	}
	if p, ok := m.properties[id]; ok {
		return p, true
	}
	return nil, false
}

// TopLevel looks up a top-level node by kind and id.
func (m *Models) TopLevel(kind Kind, id string) (Node, bool) {
	switch kind {
	case KindClass:
		if c, ok := m.classes[id]; ok {
			return c, true
		}
	case KindDefinition:
		if d, ok := m.definitions[id]; ok {
			return d, true
		}
	case KindProperty:
		if p, ok := m.properties[id]; ok {
			return p, true
		}
	}
	return nil, false
}

func (m *Models) Classes() []*Class {
	return sortedValues(m.classes)
}

func (m *Models) Definitions() []*Definition {
	return sortedValues(m.definitions)
}

func (m *Models) Properties() []*Property {
	return sortedValues(m.properties)
}

// SubClasses returns classes whose parent is the class.
func (m *Models) SubClasses(id string) []*Class {
	var out []*Class
	for _, c := range m.Classes() {
		if c.parent == id {
			out = append(out, c)
		}
	}
	return out
}

// SubDefinitions returns definitions whose parent is the definition.
func (m *Models) SubDefinitions(id string) []*Definition {
	var out []*Definition
	for _, d := range m.Definitions() {
		if d.parent == id {
			out = append(out, d)
		}
	}
	return out
}

// PropertiesOf returns properties whose domain is the class.
func (m *Models) PropertiesOf(classId string) []*Property {
	var out []*Property
	for _, p := range m.Properties() {
		if p.Domain() == classId {
			out = append(out, p)
		}
	}
	return out
}

// PutClass returns the class, creating it when missing.
//
// parent is updated only when it is not empty. A created class is not deployed.
func (m *Models) PutClass(id string, parent string) *Class {
	c, ok := m.classes[id]
	if !ok {
		c = &Class{id: id}
		m.classes[id] = c
	}
	if parent != "" {
		c.parent = parent
	}
	return c
}

// PutDefinition returns the definition, creating it when missing.
//
// parent is updated only when it is not empty. A created definition is not deployed.
func (m *Models) PutDefinition(id string, parent string) *Definition {
	d, ok := m.definitions[id]
	if !ok {
		d = &Definition{id: id, graph: m}
		m.definitions[id] = d
	}
	if parent != "" {
		d.parent = parent
	}
	return d
}

// PutProperty returns the property, creating it when missing.
//
// domain is updated only when it is not empty. A created property is not deployed.
func (m *Models) PutProperty(id string, domain string) *Property {
	p, ok := m.properties[id]
	if !ok {
		p = &Property{id: id}
		m.properties[id] = p
	}
	if domain != "" {
		p.domain = domain
	}
	return p
}

// MarkDeployed marks top-level nodes, and children of definitions, as deployed.
//
// Unknown ids are ignored.
func (m *Models) MarkDeployed(ids ...string) {
	for _, id := range ids {
		if c, ok := m.classes[id]; ok {
			c.setDeployed()
		}
		if p, ok := m.properties[id]; ok {
			p.setDeployed()
		}
		if d, ok := m.definitions[id]; ok {
			d.setDeployed()
			for _, byId := range d.children {
				for _, c := range byId {
					c.setDeployed()
				}
			}
		}
	}
}

// Undeployed returns the ids of top-level nodes which are not marked as deployed yet.
//
// Unknown ids are ignored.
func (m *Models) Undeployed(ids ...string) []string {
	var out []string
	for _, id := range ids {
		c, cok := m.classes[id]
		p, pok := m.properties[id]
		d, dok := m.definitions[id]
		if (cok && !c.Deployed()) || (pok && !p.Deployed()) || (dok && !d.Deployed()) {
			out = append(out, id)
		}
	}
	return out
}

// MarkAllDeployed marks every node as deployed.
func (m *Models) MarkAllDeployed() {
	ids := make([]string, 0, len(m.classes)+len(m.definitions)+len(m.properties))
	for id := range m.classes {
		ids = append(ids, id)
	}
	for id := range m.definitions {
		ids = append(ids, id)
	}
	for id := range m.properties {
		ids = append(ids, id)
	}
	m.MarkDeployed(ids...)
}

// Clone makes a deep copy of the graph. MetaInfo is shared.
func (m *Models) Clone() *Models {
	out := New(m.meta)
	out.version = m.version

	for id, c := range m.classes {
		out.classes[id] = &Class{
			attributes: c.cloneAttributes(),
			deployment: c.deployment,
			id:         c.id,
			parent:     c.parent,
		}
	}
	for id, p := range m.properties {
		out.properties[id] = &Property{
			attributes: p.cloneAttributes(),
			deployment: p.deployment,
			id:         p.id,
			domain:     p.domain,
		}
	}
	for id, d := range m.definitions {
		nd := &Definition{
			attributes: d.cloneAttributes(),
			deployment: d.deployment,
			id:         d.id,
			parent:     d.parent,
			graph:      out,
		}
		for _, kind := range ChildKinds {
			for _, c := range d.Children(kind) {
				nc := nd.PutChild(kind, c.id)
				nc.attributes = c.cloneAttributes()
				nc.deployment = c.deployment
			}
		}
		out.definitions[id] = nd
	}
	return out
}

// EffectiveValue is the value of the attribute seen on the node:
// the local one, or the inherited one, or the declared default.
func (m *Models) EffectiveValue(n Node, name string) any {
	if a, ok := n.FindAttribute(name); ok {
		return a.Value
	}
	if decl, ok := m.meta.Lookup(n.Kind(), name); ok {
		return decl.Default
	}
	return nil
}

// RestoredValue is the value the attribute falls back to when the local one is removed.
func (m *Models) RestoredValue(n Node, name string) any {
	if a, ok := InheritedAttribute(n, name); ok {
		return a.Value
	}
	if decl, ok := m.meta.Lookup(n.Kind(), name); ok {
		return decl.Default
	}
	return nil
}

func sortedValues[T any](m map[string]T) []T {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}
