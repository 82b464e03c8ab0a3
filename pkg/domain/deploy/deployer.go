package deploy

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/opst/modelfab/pkg/domain/model"
)

// Previous returns the graph as the node was deployed last,
// or nil when the node has never been deployed.
type Previous func(ctx context.Context, nodeId string) (*model.Models, error)

// Deployer exports candidates to the downstream.
type Deployer struct {
	Definitions DefinitionImporter
	Semantic    SemanticRepository

	// CodeLists is optional.
	CodeLists CodeListPersister

	// Labels is optional.
	Labels LabelService

	CodeList DefinitionCodeList

	// Logger is optional.
	Logger *log.Logger
}

type compensation struct {
	what string
	undo func(context.Context) error
}

// journal is the compensation log of a deployment.
type journal []compensation

func (j *journal) record(what string, undo func(context.Context) error) {
	*j = append(*j, compensation{what: what, undo: undo})
}

// rollback runs compensations in reverse order. It does not stop at errors.
func (j journal) rollback(ctx context.Context, logger *log.Logger) error {
	ctx = context.WithoutCancel(ctx)
	var errs []error
	for i := len(j) - 1; 0 <= i; i-- {
		c := j[i]
		if err := c.undo(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.what, err))
			continue
		}
		if logger != nil {
			logger.Printf("rolled back: %s", c.what)
		}
	}
	return errors.Join(errs...)
}

// Deploy exports candidates in the snapshot, in order.
//
// Candidates should be validated before. When an export fails, everything written in
// this call is compensated (the previous representation is written back, or removed if
// the node has never been deployed), and *RollbackedError is returned.
func (d *Deployer) Deploy(ctx context.Context, snapshot *model.Models, candidates []Candidate, previous Previous) error {
	var j journal
	for _, c := range candidates {
		prev, err := previous(ctx, c.Id)
		if err == nil {
			err = d.export(ctx, snapshot, prev, c, &j)
		}
		if err != nil {
			return &RollbackedError{NodeId: c.Id, Cause: err, RollbackErr: j.rollback(ctx, d.Logger)}
		}
		if d.Logger != nil {
			d.Logger.Printf("exported %s %s (version %d)", c.Kind, c.Id, snapshot.Version())
		}
	}
	return nil
}

func (d *Deployer) export(ctx context.Context, snapshot, prev *model.Models, c Candidate, j *journal) error {
	switch c.Kind {
	case model.KindDefinition:
		return d.exportDefinition(ctx, snapshot, prev, c.Id, j)
	case model.KindClass:
		cls, ok := snapshot.Class(c.Id)
		if !ok {
			return fmt.Errorf("class %s is missing", c.Id)
		}
		var prevTriples []Triple
		if prev != nil {
			if pc, ok := prev.Class(c.Id); ok {
				prevTriples = ClassTriples(prev, pc)
			}
		}
		return d.exportTriples(ctx, c.Id, ClassTriples(snapshot, cls), prevTriples, j)
	case model.KindProperty:
		p, ok := snapshot.Property(c.Id)
		if !ok {
			return fmt.Errorf("property %s is missing", c.Id)
		}
		var prevTriples []Triple
		if prev != nil {
			if pp, ok := prev.Property(c.Id); ok {
				prevTriples = PropertyTriples(pp)
			}
		}
		return d.exportTriples(ctx, c.Id, PropertyTriples(p), prevTriples, j)
	}
	return fmt.Errorf("%s cannot be deployed", c.Kind)
}

func (d *Deployer) exportTriples(ctx context.Context, id string, triples, prevTriples []Triple, j *journal) error {
	if d.Semantic == nil {
		return errors.New("no semantic repository is configured")
	}
	if err := d.Semantic.Save(ctx, id, triples); err != nil {
		return fmt.Errorf("semantic repository: %w", err)
	}
	if prevTriples != nil {
		j.record("triples of "+id, func(ctx context.Context) error {
			return d.Semantic.Save(ctx, id, prevTriples)
		})
	} else {
		j.record("triples of "+id, func(ctx context.Context) error {
			return d.Semantic.Remove(ctx, id)
		})
	}
	return nil
}

func (d *Deployer) exportDefinition(ctx context.Context, snapshot, prev *model.Models, id string, j *journal) error {
	if d.Definitions == nil {
		return errors.New("no definition importer is configured")
	}
	def, ok := snapshot.Definition(id)
	if !ok {
		return fmt.Errorf("definition %s is missing", id)
	}
	var prevDef *model.Definition
	if prev != nil {
		prevDef, _ = prev.Definition(id)
	}

	doc, err := DefinitionXML(snapshot, def)
	if err != nil {
		return err
	}
	var prevDoc []byte
	if prevDef != nil {
		if prevDoc, err = DefinitionXML(prev, prevDef); err != nil {
			return err
		}
	}
	if err := d.Definitions.Import(ctx, id, doc); err != nil {
		return fmt.Errorf("definition importer: %w", err)
	}
	j.record("definition "+id, func(ctx context.Context) error {
		if prevDoc == nil {
			return d.Definitions.Remove(ctx, id)
		}
		return d.Definitions.Import(ctx, id, prevDoc)
	})

	if d.CodeLists != nil && d.CodeList.Id != 0 {
		cv := DefinitionCodeValue(snapshot, def, d.CodeList.Id, d.CodeList.DescriptionAttribute)
		if err := d.CodeLists.Persist(ctx, cv); err != nil {
			return fmt.Errorf("code-list: %w", err)
		}
		j.record("code value "+id, func(ctx context.Context) error {
			if prevDef == nil {
				return d.CodeLists.Remove(ctx, cv)
			}
			return d.CodeLists.Persist(ctx, DefinitionCodeValue(prev, prevDef, d.CodeList.Id, d.CodeList.DescriptionAttribute))
		})
	}

	if d.Labels != nil {
		var prevLabels []LabelDefinition
		if prevDef != nil {
			prevLabels = DefinitionLabels(prev, prevDef)
		}
		if err := d.exportLabels(ctx, DefinitionLabels(snapshot, def), prevLabels, j); err != nil {
			return fmt.Errorf("labels: %w", err)
		}
	}
	return nil
}

func (d *Deployer) exportLabels(ctx context.Context, labels, prevLabels []LabelDefinition, j *journal) error {
	prevById := map[string]LabelDefinition{}
	for _, l := range prevLabels {
		prevById[l.Id] = l
	}

	for _, l := range labels {
		if err := d.Labels.Save(ctx, l); err != nil {
			return err
		}
		p, existed := prevById[l.Id]
		delete(prevById, l.Id)
		id := l.Id
		j.record("label "+id, func(ctx context.Context) error {
			if !existed {
				return d.Labels.Remove(ctx, id)
			}
			return d.Labels.Save(ctx, p)
		})
	}

	// labels no longer used
	for _, l := range prevLabels {
		if _, ok := prevById[l.Id]; !ok {
			continue
		}
		if err := d.Labels.Remove(ctx, l.Id); err != nil {
			return err
		}
		j.record("label "+l.Id, func(ctx context.Context) error {
			return d.Labels.Save(ctx, l)
		})
	}
	return nil
}
