package update

import (
	"context"

	"github.com/opst/modelfab/pkg/domain/deploy"
	"github.com/opst/modelfab/pkg/domain/model"
	"github.com/opst/modelfab/pkg/domain/report"
	xe "github.com/opst/modelfab/pkg/errors"
)

// Validator checks a changed top-level node in the working graph.
//
// Problems of the node are added to the report.
// Errors are for failures of the validator itself, and abort the batch.
type Validator interface {
	Validate(ctx context.Context, models *model.Models, node model.Node, r *report.Report) error
}

type ValidatorFunc func(ctx context.Context, models *model.Models, node model.Node, r *report.Report) error

func (f ValidatorFunc) Validate(ctx context.Context, models *model.Models, node model.Node, r *report.Report) error {
	return f(ctx, models, node, r)
}

// Definitions validates changed definitions with the definition importer.
func Definitions(importer deploy.DefinitionImporter) Validator {
	return ValidatorFunc(func(ctx context.Context, models *model.Models, node model.Node, r *report.Report) error {
		d, ok := node.(*model.Definition)
		if !ok {
			return nil
		}
		kind := string(model.KindDefinition)
		doc, err := deploy.DefinitionXML(models, d)
		if err != nil {
			r.Fail(d.Id(), kind, "cannot be rendered: %s", err)
			return nil
		}
		msgs, err := importer.Validate(ctx, d.Id(), doc)
		if err != nil {
			return xe.WrapWithNote("definition importer", err)
		}
		for _, m := range msgs {
			if m.Severity == report.Warning {
				r.Warn(d.Id(), kind, "%s", m.Text)
			} else {
				r.Fail(d.Id(), kind, "%s", m.Text)
			}
		}
		return nil
	})
}

// CodeValues validates values of attributes bound to code-lists, on the node and
// children of a definition.
func CodeValues(validator deploy.CodeListValidator) Validator {
	return ValidatorFunc(func(ctx context.Context, models *model.Models, node model.Node, r *report.Report) error {
		nodes := []model.Node{node}
		if d, ok := node.(*model.Definition); ok {
			for _, kind := range model.ChildKinds {
				for _, c := range d.Children(kind) {
					nodes = append(nodes, c)
				}
			}
		}

		for _, n := range nodes {
			for _, a := range n.Attributes() {
				decl, ok := models.Meta().Lookup(n.Kind(), a.Name)
				if !ok || decl.CodeList == 0 || model.IsUnset(a.Value) {
					continue
				}
				cv := deploy.CodeValue{CodeList: decl.CodeList, Value: model.ValueString(a.Value), DefinedIn: n.DefinedIn()}
				if err := validator.ValidateCodeValue(ctx, cv); err != nil {
					r.Fail(
						node.Id(), string(node.Kind()),
						"%s of %s %s: %s is not in code-list %d: %s",
						a.Name, n.Kind(), n.Id(), cv.Value, cv.CodeList, err,
					)
				}
			}
		}
		return nil
	})
}
