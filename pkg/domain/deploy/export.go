package deploy

import (
	"encoding/xml"
	"sort"

	"github.com/opst/modelfab/pkg/domain/model"
)

type definitionXML struct {
	XMLName     xml.Name       `xml:"definition"`
	Id          string         `xml:"id,attr"`
	Parent      string         `xml:"parentId,attr,omitempty"`
	Attributes  []attributeXML `xml:"attribute"`
	Fields      []childXML     `xml:"fields>field,omitempty"`
	Regions     []childXML     `xml:"regions>region,omitempty"`
	Transitions []childXML     `xml:"transitions>transition,omitempty"`
	Groups      []childXML     `xml:"groups>group,omitempty"`
}

type childXML struct {
	Name       string         `xml:"name,attr"`
	Attributes []attributeXML `xml:"attribute"`
}

type attributeXML struct {
	Name   string     `xml:"name,attr"`
	Type   string     `xml:"type,attr,omitempty"`
	Value  string     `xml:",chardata"`
	Labels []labelXML `xml:"label"`
}

type labelXML struct {
	Lang  string `xml:"lang,attr"`
	Value string `xml:",chardata"`
}

// DefinitionXML renders the definition as its downstream representation.
//
// Inherited attributes and children are merged in, so the document is complete by itself.
func DefinitionXML(models *model.Models, d *model.Definition) ([]byte, error) {
	doc := definitionXML{
		Id:         d.Id(),
		Parent:     d.Parent(),
		Attributes: attributesXML(models, d),
	}
	for _, kind := range model.ChildKinds {
		var children []childXML
		for _, c := range d.EffectiveChildren(kind) {
			children = append(children, childXML{Name: c.Id(), Attributes: attributesXML(models, c)})
		}
		switch kind {
		case model.KindField:
			doc.Fields = children
		case model.KindRegion:
			doc.Regions = children
		case model.KindTransition:
			doc.Transitions = children
		case model.KindGroup:
			doc.Groups = children
		}
	}
	return xml.MarshalIndent(doc, "", "  ")
}

func attributesXML(models *model.Models, n model.Node) []attributeXML {
	var out []attributeXML
	for _, name := range models.Meta().Names(n.Kind()) {
		decl, _ := models.Meta().Lookup(n.Kind(), name)
		v := models.EffectiveValue(n, name)
		if model.IsUnset(v) {
			continue
		}
		a := attributeXML{Name: name, Type: decl.DataType}
		if labels, ok := labelsOf(v); ok && decl.DataType == model.TypeLabel {
			for _, lang := range sortedKeys(labels) {
				a.Labels = append(a.Labels, labelXML{Lang: lang, Value: labels[lang]})
			}
		} else {
			a.Value = model.ValueString(v)
		}
		out = append(out, a)
	}
	return out
}

// DefinitionLabels returns label definitions in the definition and its children.
//
// Label ids are "<definition>.<attribute>" and "<definition>.<child>.<attribute>".
func DefinitionLabels(models *model.Models, d *model.Definition) []LabelDefinition {
	var out []LabelDefinition
	collect := func(n model.Node, prefix string) {
		for _, name := range models.Meta().Names(n.Kind()) {
			decl, _ := models.Meta().Lookup(n.Kind(), name)
			if decl.DataType != model.TypeLabel {
				continue
			}
			labels, ok := labelsOf(models.EffectiveValue(n, name))
			if !ok || len(labels) == 0 {
				continue
			}
			out = append(out, LabelDefinition{
				Id:        prefix + "." + name,
				Labels:    labels,
				DefinedIn: []string{d.Id()},
			})
		}
	}

	collect(d, d.Id())
	for _, kind := range model.ChildKinds {
		for _, c := range d.EffectiveChildren(kind) {
			collect(c, d.Id()+"."+c.Id())
		}
	}
	return out
}

// DefinitionCodeValue is the code value standing for the definition in the code-list.
//
// Descriptions are taken from the attribute descriptionAttr.
func DefinitionCodeValue(models *model.Models, d *model.Definition, codeList int, descriptionAttr string) CodeValue {
	cv := CodeValue{CodeList: codeList, Value: d.Id(), DefinedIn: d.Id()}
	if descriptionAttr == "" {
		return cv
	}
	if labels, ok := labelsOf(models.EffectiveValue(d, descriptionAttr)); ok && len(labels) != 0 {
		cv.Descriptions = labels
	}
	return cv
}

// Rdf vocabulary used in triples.
const (
	RdfType        = "rdf:type"
	RdfsSubClassOf = "rdfs:subClassOf"
	RdfsDomain     = "rdfs:domain"
	OwlClass       = "owl:Class"
	RdfProperty    = "rdf:Property"
)

// ClassTriples renders the class as triples.
//
// Properties whose domain is the class are included.
func ClassTriples(models *model.Models, c *model.Class) []Triple {
	out := []Triple{{Subject: c.Id(), Predicate: RdfType, Object: OwlClass}}
	if p := c.Parent(); p != "" {
		out = append(out, Triple{Subject: c.Id(), Predicate: RdfsSubClassOf, Object: p})
	}
	out = append(out, attributeTriples(c)...)

	for _, p := range models.PropertiesOf(c.Id()) {
		out = append(out, PropertyTriples(p)...)
	}
	return out
}

// PropertyTriples renders the property alone.
func PropertyTriples(p *model.Property) []Triple {
	out := []Triple{{Subject: p.Id(), Predicate: RdfType, Object: RdfProperty}}
	if d := p.Domain(); d != "" {
		out = append(out, Triple{Subject: p.Id(), Predicate: RdfsDomain, Object: d})
	}
	return append(out, attributeTriples(p)...)
}

func attributeTriples(n model.Node) []Triple {
	var out []Triple
	for _, a := range n.Attributes() {
		if model.IsUnset(a.Value) {
			continue
		}
		if labels, ok := labelsOf(a.Value); ok && a.DataType == model.TypeLabel {
			for _, lang := range sortedKeys(labels) {
				out = append(out, Triple{
					Subject: n.Id(), Predicate: a.Name, Object: labels[lang], Literal: true, Lang: lang,
				})
			}
			continue
		}
		literal := a.DataType != model.TypeURI
		out = append(out, Triple{
			Subject: n.Id(), Predicate: a.Name, Object: model.ValueString(a.Value), Literal: literal,
		})
	}
	return out
}

// labelsOf reads a label value: a language to text map, or a plain text (without language).
func labelsOf(v any) (map[string]string, bool) {
	switch vv := v.(type) {
	case string:
		if vv == "" {
			return nil, false
		}
		return map[string]string{"": vv}, true
	case map[string]string:
		out := make(map[string]string, len(vv))
		for k, t := range vv {
			out[k] = t
		}
		return out, true
	case map[string]any:
		out := make(map[string]string, len(vv))
		for k, t := range vv {
			s, ok := t.(string)
			if !ok {
				return nil, false
			}
			out[k] = s
		}
		return out, true
	}
	return nil, false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
