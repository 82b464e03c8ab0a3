package deploy

import (
	"context"

	"github.com/opst/modelfab/pkg/domain/model"
	"github.com/opst/modelfab/pkg/domain/report"
)

// DefinitionCodeList is the code-list where definitions are registered as code values.
type DefinitionCodeList struct {
	// Id of the code-list. Zero disables registering.
	Id int

	// DescriptionAttribute is the definition attribute used as descriptions of the code value.
	DescriptionAttribute string
}

// Validator checks candidates against the downstream, without changing anything.
type Validator struct {
	Definitions DefinitionImporter

	// CodeLists is optional.
	CodeLists CodeListValidator

	CodeList DefinitionCodeList
}

// Validate builds a report of candidates in the snapshot.
//
// Failures of the downstream itself are reported as generic errors.
func (v *Validator) Validate(ctx context.Context, snapshot *model.Models, candidates []Candidate) *report.Report {
	r := report.New(snapshot.Version())
	for _, c := range candidates {
		switch c.Kind {
		case model.KindDefinition:
			v.validateDefinition(ctx, snapshot, c, r)
		case model.KindClass:
			validateClass(snapshot, c, r)
		case model.KindProperty:
			validateProperty(snapshot, c, r)
		default:
			r.Fail(c.Id, string(c.Kind), "%s cannot be deployed", c.Kind)
		}
	}
	return r
}

func (v *Validator) validateDefinition(ctx context.Context, snapshot *model.Models, c Candidate, r *report.Report) {
	kind := string(model.KindDefinition)
	d, ok := snapshot.Definition(c.Id)
	if !ok {
		r.Fail(c.Id, kind, "definition is missing at version %d", snapshot.Version())
		return
	}
	r.Pass(c.Id, kind)

	for _, a := range d.Ancestors() {
		if !a.Deployed() {
			r.Warn(c.Id, kind, "parent definition %s has not been deployed", a.Id())
		}
	}

	doc, err := DefinitionXML(snapshot, d)
	if err != nil {
		r.Fail(c.Id, kind, "cannot be rendered: %s", err)
		return
	}
	if v.Definitions != nil {
		msgs, err := v.Definitions.Validate(ctx, c.Id, doc)
		if err != nil {
			r.AddGenericError("definition importer failed to validate %s: %s", c.Id, err)
			return
		}
		for _, m := range msgs {
			switch m.Severity {
			case report.Warning:
				r.Warn(c.Id, kind, "%s", m.Text)
			default:
				r.Fail(c.Id, kind, "%s", m.Text)
			}
		}
	}

	if v.CodeLists != nil && v.CodeList.Id != 0 {
		cv := DefinitionCodeValue(snapshot, d, v.CodeList.Id, v.CodeList.DescriptionAttribute)
		if err := v.CodeLists.ValidateCodeValue(ctx, cv); err != nil {
			r.Fail(c.Id, kind, "code value is not acceptable: %s", err)
		}
	}
}

func validateClass(snapshot *model.Models, c Candidate, r *report.Report) {
	kind := string(model.KindClass)
	cls, ok := snapshot.Class(c.Id)
	if !ok {
		r.Fail(c.Id, kind, "class is missing at version %d", snapshot.Version())
		return
	}
	r.Pass(c.Id, kind)

	if p := cls.Parent(); p != "" {
		if _, ok := snapshot.Class(p); !ok {
			r.Fail(c.Id, kind, "super class %s is missing", p)
		}
	}
	checkAttributes(snapshot, cls, c.Id, r)
	for _, p := range snapshot.PropertiesOf(c.Id) {
		checkAttributes(snapshot, p, c.Id, r)
	}
}

func validateProperty(snapshot *model.Models, c Candidate, r *report.Report) {
	kind := string(model.KindProperty)
	p, ok := snapshot.Property(c.Id)
	if !ok {
		r.Fail(c.Id, kind, "property is missing at version %d", snapshot.Version())
		return
	}
	r.Pass(c.Id, kind)

	if d := p.Domain(); d == "" {
		r.Warn(c.Id, kind, "property has no domain")
	} else if _, ok := snapshot.Class(d); !ok {
		r.Fail(c.Id, kind, "domain class %s is missing", d)
	}
	checkAttributes(snapshot, p, c.Id, r)
}

// checkAttributes reports attributes of n under the entry of reportAs.
//
// Values not conforming the data type are errors, and declared attributes without values are warnings.
func checkAttributes(snapshot *model.Models, n model.Node, reportAs string, r *report.Report) {
	kind := string(model.KindClass)
	if e := r.Entry(reportAs, ""); e.Kind != "" {
		kind = e.Kind
	}
	for _, name := range snapshot.Meta().Names(n.Kind()) {
		decl, _ := snapshot.Meta().Lookup(n.Kind(), name)
		a, ok := n.GetAttribute(name)
		if !ok || model.IsUnset(a.Value) {
			if model.IsUnset(decl.Default) {
				r.Warn(reportAs, kind, "%s of %s is not set", name, n.Id())
			}
			continue
		}
		if err := model.CheckType(decl.DataType, a.Value); err != nil {
			r.Fail(reportAs, kind, "%s of %s: %s", name, n.Id(), err)
		}
	}
}
