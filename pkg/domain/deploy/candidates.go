package deploy

import (
	"sort"

	"github.com/opst/modelfab/pkg/domain/changeset"
	"github.com/opst/modelfab/pkg/domain/model"
	"github.com/opst/modelfab/pkg/domain/model/selector"
)

// Candidate is a top-level node to be deployed.
type Candidate struct {
	Id   string
	Kind model.Kind

	// Covers are ids of top-level nodes whose changes are deployed with this candidate.
	// It includes Id itself.
	Covers []string
}

func (c Candidate) covers(id string) bool {
	for _, cv := range c.Covers {
		if cv == id {
			return true
		}
	}
	return false
}

// Candidates lists top-level nodes changed since they were deployed last.
//
// # Args
//
// - snapshot: the graph at the version deployed.
//
// - changes: changes recorded until the version of snapshot.
//
// - deployed: the version each node was deployed last. Missing nodes are treated as deployed at 0.
//
// # Returns
//
// Candidates in the order to be deployed: classes, properties without domain,
// and definitions with parents first.
//
// A changed property makes its domain class a candidate, covering the property.
// Changes which are not applied, or whose selector is broken, are ignored.
func Candidates(snapshot *model.Models, changes []changeset.Info, deployed map[string]int64) []Candidate {
	byId := map[string]*Candidate{}
	add := func(id string, kind model.Kind, covered string) {
		c, ok := byId[id]
		if !ok {
			c = &Candidate{Id: id, Kind: kind, Covers: []string{id}}
			byId[id] = c
		}
		if !c.covers(covered) {
			c.Covers = append(c.Covers, covered)
		}
	}

	for _, ch := range changes {
		if ch.Status != "" && ch.Status != changeset.Applied {
			continue
		}
		root, err := ch.Root()
		if err != nil {
			continue
		}
		if ch.Version <= deployed[root.Value] {
			continue
		}

		switch root.Key {
		case selector.KeyClass:
			if _, ok := snapshot.Class(root.Value); ok {
				add(root.Value, model.KindClass, root.Value)
			}
		case selector.KeyDefinition:
			if _, ok := snapshot.Definition(root.Value); ok {
				add(root.Value, model.KindDefinition, root.Value)
			}
		case selector.KeyProperty:
			p, ok := snapshot.Property(root.Value)
			if !ok {
				continue
			}
			if domain := p.Domain(); domain != "" {
				if _, ok := snapshot.Class(domain); ok {
					add(domain, model.KindClass, p.Id())
					continue
				}
			}
			add(p.Id(), model.KindProperty, p.Id())
		}
	}

	out := make([]Candidate, 0, len(byId))
	for _, c := range byId {
		sort.Strings(c.Covers)
		out = append(out, *c)
	}
	return Order(snapshot, out)
}

// Order sorts candidates in the order to be deployed.
//
// Classes come first, then properties and definitions.
// A definition comes after its ancestors.
func Order(snapshot *model.Models, candidates []Candidate) []Candidate {
	rank := map[model.Kind]int{model.KindClass: 0, model.KindProperty: 1, model.KindDefinition: 2}
	depth := func(c Candidate) int {
		if d, ok := snapshot.Definition(c.Id); ok {
			return len(d.Ancestors())
		}
		return 0
	}

	out := append([]Candidate(nil), candidates...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if rank[a.Kind] != rank[b.Kind] {
			return rank[a.Kind] < rank[b.Kind]
		}
		if da, db := depth(a), depth(b); da != db {
			return da < db
		}
		return a.Id < b.Id
	})
	return out
}

// Select picks candidates for the requested node ids.
//
// A candidate is picked when its id or one of its covered ids is requested.
// Requested ids picking no candidates are returned as unknown.
func Select(candidates []Candidate, ids []string) (selected []Candidate, unknown []string) {
	picked := map[string]bool{}
	for _, id := range ids {
		found := false
		for _, c := range candidates {
			if c.covers(id) {
				found = true
				picked[c.Id] = true
			}
		}
		if !found {
			unknown = append(unknown, id)
		}
	}
	for _, c := range candidates {
		if picked[c.Id] {
			selected = append(selected, c)
		}
	}
	return selected, unknown
}

// Covered lists all ids covered by candidates.
func Covered(candidates []Candidate) []string {
	var out []string
	for _, c := range candidates {
		out = append(out, c.Covers...)
	}
	return out
}
