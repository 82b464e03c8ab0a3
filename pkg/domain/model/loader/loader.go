// Package loader reads the seed model, the graph a deployment starts from, from YAML.
//
//	meta:
//	  class:
//	    - { name: "ptop:title", dataType: string }
//	classes:
//	  - id: "emf:Case"
//	    parent: "ptop:Entity"
//	    attributes:
//	      - { name: "ptop:title", value: "Case" }
//	definitions:
//	  - id: caseBase
//	    fields:
//	      - id: title
//	        attributes:
//	          - { name: label, value: { en: "Title" } }
//
// Nodes in the seed are the deployed state, so they are marked as deployed.
package loader

import (
	"fmt"
	"os"

	"github.com/opst/modelfab/pkg/domain/model"
	xe "github.com/opst/modelfab/pkg/errors"
	"gopkg.in/yaml.v3"
)

type SeedMarshall struct {
	Meta        map[string][]model.AttributeMeta `yaml:"meta,omitempty"`
	Classes     []ClassMarshall                  `yaml:"classes,omitempty"`
	Properties  []PropertyMarshall               `yaml:"properties,omitempty"`
	Definitions []DefinitionMarshall             `yaml:"definitions,omitempty"`
}

type ClassMarshall struct {
	Id         string            `yaml:"id"`
	Parent     string            `yaml:"parent,omitempty"`
	Attributes []model.Attribute `yaml:"attributes,omitempty"`
}

type PropertyMarshall struct {
	Id         string            `yaml:"id"`
	Domain     string            `yaml:"domain,omitempty"`
	Attributes []model.Attribute `yaml:"attributes,omitempty"`
}

type DefinitionMarshall struct {
	Id          string            `yaml:"id"`
	Parent      string            `yaml:"parent,omitempty"`
	Attributes  []model.Attribute `yaml:"attributes,omitempty"`
	Fields      []ChildMarshall   `yaml:"fields,omitempty"`
	Regions     []ChildMarshall   `yaml:"regions,omitempty"`
	Transitions []ChildMarshall   `yaml:"transitions,omitempty"`
	Groups      []ChildMarshall   `yaml:"groups,omitempty"`
}

type ChildMarshall struct {
	Id         string            `yaml:"id"`
	Attributes []model.Attribute `yaml:"attributes,omitempty"`
}

func (dm DefinitionMarshall) children() map[model.Kind][]ChildMarshall {
	return map[model.Kind][]ChildMarshall{
		model.KindField:      dm.Fields,
		model.KindRegion:     dm.Regions,
		model.KindTransition: dm.Transitions,
		model.KindGroup:      dm.Groups,
	}
}

// Load reads the seed model from a file.
func Load(path string) (*model.Models, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	m, err := Unmarshal(content)
	if err != nil {
		return nil, xe.WrapWithNote(path, err)
	}
	return m, nil
}

func Unmarshal(content []byte) (*model.Models, error) {
	seed := SeedMarshall{}
	if err := yaml.Unmarshal(content, &seed); err != nil {
		return nil, err
	}
	return seed.Build()
}

// Build makes a graph of the seed.
func (s SeedMarshall) Build() (*model.Models, error) {
	decls := map[model.Kind][]model.AttributeMeta{}
	for k, attrs := range s.Meta {
		kind, ok := model.ParseKind(k)
		if !ok {
			return nil, fmt.Errorf("meta: unknown kind: %s", k)
		}
		decls[kind] = attrs
	}
	m := model.New(model.NewMetaInfo(decls))

	set := func(n model.Node, attrs []model.Attribute) error {
		for _, a := range attrs {
			decl, ok := m.Meta().Lookup(n.Kind(), a.Name)
			if !ok {
				return fmt.Errorf("%s %s: attribute %s is not declared in meta", n.Kind(), n.Id(), a.Name)
			}
			if err := model.CheckType(decl.DataType, a.Value); err != nil {
				return fmt.Errorf("%s %s: attribute %s: %w", n.Kind(), n.Id(), a.Name, err)
			}
			n.SetAttribute(a.Name, decl.DataType, a.Value)
		}
		return nil
	}

	for _, c := range s.Classes {
		if c.Id == "" {
			return nil, fmt.Errorf("classes: id is required")
		}
		if err := set(m.PutClass(c.Id, c.Parent), c.Attributes); err != nil {
			return nil, err
		}
	}
	for _, p := range s.Properties {
		if p.Id == "" {
			return nil, fmt.Errorf("properties: id is required")
		}
		if err := set(m.PutProperty(p.Id, p.Domain), p.Attributes); err != nil {
			return nil, err
		}
	}
	for _, dm := range s.Definitions {
		if dm.Id == "" {
			return nil, fmt.Errorf("definitions: id is required")
		}
		d := m.PutDefinition(dm.Id, dm.Parent)
		if err := set(d, dm.Attributes); err != nil {
			return nil, err
		}
		for _, kind := range model.ChildKinds {
			for _, cm := range dm.children()[kind] {
				if cm.Id == "" {
					return nil, fmt.Errorf("definition %s: %s without id", dm.Id, kind)
				}
				if err := set(d.PutChild(kind, cm.Id), cm.Attributes); err != nil {
					return nil, err
				}
			}
		}
	}
	for _, d := range m.Definitions() {
		if d.Parent() == "" {
			continue
		}
		if _, ok := m.Definition(d.Parent()); !ok {
			return nil, fmt.Errorf("definition %s: parent %s is not found", d.Id(), d.Parent())
		}
	}

	m.MarkAllDeployed()
	return m, nil
}

// Dump converts a graph into the seed format.
func Dump(m *model.Models) SeedMarshall {
	seed := SeedMarshall{Meta: map[string][]model.AttributeMeta{}}
	for kind, attrs := range m.Meta().Declarations() {
		seed.Meta[string(kind)] = attrs
	}
	for _, c := range m.Classes() {
		seed.Classes = append(seed.Classes, ClassMarshall{
			Id: c.Id(), Parent: c.Parent(), Attributes: c.Attributes(),
		})
	}
	for _, p := range m.Properties() {
		seed.Properties = append(seed.Properties, PropertyMarshall{
			Id: p.Id(), Domain: p.Domain(), Attributes: p.Attributes(),
		})
	}
	for _, d := range m.Definitions() {
		dm := DefinitionMarshall{Id: d.Id(), Parent: d.Parent(), Attributes: d.Attributes()}
		children := func(kind model.Kind) []ChildMarshall {
			var out []ChildMarshall
			for _, c := range d.Children(kind) {
				out = append(out, ChildMarshall{Id: c.Id(), Attributes: c.Attributes()})
			}
			return out
		}
		dm.Fields = children(model.KindField)
		dm.Regions = children(model.KindRegion)
		dm.Transitions = children(model.KindTransition)
		dm.Groups = children(model.KindGroup)
		seed.Definitions = append(seed.Definitions, dm)
	}
	return seed
}

// Marshal writes a graph in the seed format.
func Marshal(m *model.Models) ([]byte, error) {
	return yaml.Marshal(Dump(m))
}
