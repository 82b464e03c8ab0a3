package model

// Node is a node of the model graph.
type Node interface {
	Id() string
	Kind() Kind

	// Attributes returns attributes set on this node itself.
	Attributes() []Attribute

	// GetAttribute looks up the attribute set on this node itself.
	GetAttribute(name string) (Attribute, bool)

	// FindAttribute looks up the attribute on this node, and then up the inheritance chain.
	//
	// Only definitions and their children inherit. For others, this is GetAttribute.
	FindAttribute(name string) (Attribute, bool)

	// DefinedIn is the id of the top-level node owning this node.
	// Top-level nodes are defined in themselves.
	DefinedIn() string

	// Deployed tells whether the node has ever been exported to the downstream.
	Deployed() bool

	// SetAttribute sets a local attribute, adding it when missing.
	//
	// Nodes of a published graph must not be changed.
	SetAttribute(name string, dataType string, value any)

	// RemoveAttribute removes the local attribute, so that lookups fall back to inherited values.
	//
	// It returns false when the attribute was not set locally.
	RemoveAttribute(name string) bool
}

type attributes struct {
	list []Attribute
}

func (a *attributes) Attributes() []Attribute {
	out := make([]Attribute, len(a.list))
	for i, attr := range a.list {
		out[i] = Attribute{Name: attr.Name, DataType: attr.DataType, Value: CopyValue(attr.Value)}
	}
	return out
}

func (a *attributes) GetAttribute(name string) (Attribute, bool) {
	for _, attr := range a.list {
		if attr.Name == name {
			return attr, true
		}
	}
	return Attribute{}, false
}

func (a *attributes) SetAttribute(name string, dataType string, value any) {
	for i := range a.list {
		if a.list[i].Name == name {
			if dataType != "" {
				a.list[i].DataType = dataType
			}
			a.list[i].Value = CopyValue(value)
			return
		}
	}
	a.list = append(a.list, Attribute{Name: name, DataType: dataType, Value: CopyValue(value)})
}

func (a *attributes) RemoveAttribute(name string) bool {
	for i := range a.list {
		if a.list[i].Name == name {
			a.list = append(a.list[:i:i], a.list[i+1:]...)
			return true
		}
	}
	return false
}

func (a *attributes) cloneAttributes() attributes {
	return attributes{list: a.Attributes()}
}

type deployment struct {
	deployed bool
}

func (d *deployment) Deployed() bool {
	return d.deployed
}

func (d *deployment) setDeployed() {
	d.deployed = true
}

// Class is a semantic class.
//
// Classes form a hierarchy by Parent, but attributes of classes are not inherited.
type Class struct {
	attributes
	deployment
	id     string
	parent string
}

var _ Node = &Class{}

func (c *Class) Id() string        { return c.id }
func (c *Class) Kind() Kind        { return KindClass }
func (c *Class) DefinedIn() string { return c.id }

// Parent is the id of the super class. It is empty for root classes.
func (c *Class) Parent() string { return c.parent }

func (c *Class) FindAttribute(name string) (Attribute, bool) {
	return c.GetAttribute(name)
}

// Property is a semantic property. Its domain is the class where it is deployed with.
type Property struct {
	attributes
	deployment
	id     string
	domain string
}

var _ Node = &Property{}

func (p *Property) Id() string        { return p.id }
func (p *Property) Kind() Kind        { return KindProperty }
func (p *Property) DefinedIn() string { return p.id }

// Domain is the id of the class this property belongs to.
//
// When it is not given explicitly, the "domain" attribute is used.
func (p *Property) Domain() string {
	if p.domain != "" {
		return p.domain
	}
	if a, ok := p.GetAttribute("domain"); ok {
		if s, ok := a.Value.(string); ok {
			return s
		}
	}
	return ""
}

func (p *Property) FindAttribute(name string) (Attribute, bool) {
	return p.GetAttribute(name)
}

// Definition is a structured definition.
//
// A definition inherits attributes and children from its parent definition.
type Definition struct {
	attributes
	deployment
	id     string
	parent string
	graph  *Models

	children map[Kind]map[string]*Child
	order    map[Kind][]string
}

var _ Node = &Definition{}

func (d *Definition) Id() string        { return d.id }
func (d *Definition) Kind() Kind        { return KindDefinition }
func (d *Definition) DefinedIn() string { return d.id }

// Parent is the id of the parent definition. It is empty when this does not inherit.
func (d *Definition) Parent() string { return d.parent }

// Ancestors returns parent definitions, nearest first.
//
// Missing parents end the chain, and so do cycles.
func (d *Definition) Ancestors() []*Definition {
	var out []*Definition
	seen := map[string]struct{}{d.id: {}}
	for cur := d; cur.parent != "" && d.graph != nil; {
		if _, ok := seen[cur.parent]; ok {
			break
		}
		p, ok := d.graph.definitions[cur.parent]
		if !ok {
			break
		}
		seen[p.id] = struct{}{}
		out = append(out, p)
		cur = p
	}
	return out
}

func (d *Definition) FindAttribute(name string) (Attribute, bool) {
	if a, ok := d.GetAttribute(name); ok {
		return a, true
	}
	for _, p := range d.Ancestors() {
		if a, ok := p.GetAttribute(name); ok {
			return a, true
		}
	}
	return Attribute{}, false
}

// Child returns the child of the kind declared in this definition itself.
func (d *Definition) Child(kind Kind, id string) (*Child, bool) {
	c, ok := d.children[kind][id]
	return c, ok
}

// FindChild returns the child of the kind, declared in this definition or inherited.
func (d *Definition) FindChild(kind Kind, id string) (*Child, bool) {
	if c, ok := d.Child(kind, id); ok {
		return c, true
	}
	for _, p := range d.Ancestors() {
		if c, ok := p.Child(kind, id); ok {
			return c, true
		}
	}
	return nil, false
}

// Children returns children of the kind declared in this definition itself, in declaration order.
func (d *Definition) Children(kind Kind) []*Child {
	out := make([]*Child, 0, len(d.order[kind]))
	for _, id := range d.order[kind] {
		out = append(out, d.children[kind][id])
	}
	return out
}

// EffectiveChildren returns children of the kind visible from this definition:
// inherited ones first in the order of the root-most definition, and then its own.
// A child declared locally overrides the inherited one with the same id.
func (d *Definition) EffectiveChildren(kind Kind) []*Child {
	chain := append([]*Definition{d}, d.Ancestors()...)

	var ids []string
	seen := map[string]struct{}{}
	for i := len(chain) - 1; 0 <= i; i-- {
		for _, id := range chain[i].order[kind] {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	out := make([]*Child, 0, len(ids))
	for _, id := range ids {
		if c, ok := d.FindChild(kind, id); ok {
			out = append(out, c)
		}
	}
	return out
}

// PutChild returns the child declared in this definition, creating it when missing.
//
// A created child is marked as not deployed.
func (d *Definition) PutChild(kind Kind, id string) *Child {
	if c, ok := d.Child(kind, id); ok {
		return c
	}
	if d.children == nil {
		d.children = map[Kind]map[string]*Child{}
		d.order = map[Kind][]string{}
	}
	if d.children[kind] == nil {
		d.children[kind] = map[string]*Child{}
	}
	c := &Child{id: id, kind: kind, owner: d}
	d.children[kind][id] = c
	d.order[kind] = append(d.order[kind], id)
	return c
}

// RemoveChild removes the child declared in this definition itself.
func (d *Definition) RemoveChild(kind Kind, id string) bool {
	if _, ok := d.children[kind][id]; !ok {
		return false
	}
	delete(d.children[kind], id)
	order := d.order[kind]
	for i, o := range order {
		if o == id {
			d.order[kind] = append(order[:i:i], order[i+1:]...)
			break
		}
	}
	return true
}

// Child is a field, region, transition or group of a definition.
type Child struct {
	attributes
	deployment
	id    string
	kind  Kind
	owner *Definition
}

var _ Node = &Child{}

func (c *Child) Id() string        { return c.id }
func (c *Child) Kind() Kind        { return c.kind }
func (c *Child) DefinedIn() string { return c.owner.id }

// Owner is the definition declaring this child.
func (c *Child) Owner() *Definition { return c.owner }

// FindAttribute looks up the attribute on this child, and then on the same child of
// ancestors of the owner definition.
func (c *Child) FindAttribute(name string) (Attribute, bool) {
	if a, ok := c.GetAttribute(name); ok {
		return a, true
	}
	for _, p := range c.owner.Ancestors() {
		pc, ok := p.Child(c.kind, c.id)
		if !ok {
			continue
		}
		if a, ok := pc.GetAttribute(name); ok {
			return a, true
		}
	}
	return Attribute{}, false
}

// InheritedAttribute looks up the attribute skipping this node itself.
//
// This is the value an attribute falls back to when the local one is removed.
func InheritedAttribute(n Node, name string) (Attribute, bool) {
	switch nn := n.(type) {
	case *Definition:
		for _, p := range nn.Ancestors() {
			if a, ok := p.GetAttribute(name); ok {
				return a, true
			}
		}
	case *Child:
		for _, p := range nn.owner.Ancestors() {
			pc, ok := p.Child(nn.kind, nn.id)
			if !ok {
				continue
			}
			if a, ok := pc.GetAttribute(name); ok {
				return a, true
			}
		}
	}
	return Attribute{}, false
}
