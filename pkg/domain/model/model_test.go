package model_test

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/opst/modelfab/pkg/cmp"
	"github.com/opst/modelfab/pkg/domain/model"
)

func fixture() *model.Models {
	m := model.New(model.NewMetaInfo(map[model.Kind][]model.AttributeMeta{
		model.KindClass:      {{Name: "ptop:title", DataType: model.TypeString}},
		model.KindDefinition: {{Name: "title", DataType: model.TypeString, Default: "(untitled)"}},
		model.KindField:      {{Name: "label", DataType: model.TypeLabel}},
	}))

	base := m.PutDefinition("base", "")
	base.SetAttribute("title", model.TypeString, "Base")
	base.PutChild(model.KindField, "title").SetAttribute("label", model.TypeLabel, map[string]any{"en": "Title"})
	base.PutChild(model.KindField, "owner")

	middle := m.PutDefinition("middle", "base")
	middle.PutChild(model.KindField, "due")

	leaf := m.PutDefinition("leaf", "middle")
	leaf.PutChild(model.KindField, "title")

	m.PutClass("emf:Case", "ptop:Entity")
	m.PutProperty("emf:hasOwner", "emf:Case")
	m.MarkAllDeployed()
	return m
}

func TestDefinition_Attributes(t *testing.T) {
	m := fixture()
	leaf, _ := m.Definition("leaf")

	t.Run("GetAttribute looks at the node only", func(t *testing.T) {
		if _, ok := leaf.GetAttribute("title"); ok {
			t.Error("inherited attribute is found as local")
		}
	})

	t.Run("FindAttribute walks up the parent chain", func(t *testing.T) {
		a, ok := leaf.FindAttribute("title")
		if !ok || a.Value != "Base" {
			t.Errorf("unexpected: %+v (found = %v)", a, ok)
		}
	})

	t.Run("Ancestors are nearest first", func(t *testing.T) {
		var ids []string
		for _, d := range leaf.Ancestors() {
			ids = append(ids, d.Id())
		}
		if !cmp.SliceEq(ids, []string{"middle", "base"}) {
			t.Errorf("unexpected ancestors: %v", ids)
		}
	})

	t.Run("EffectiveValue falls back to the declared default", func(t *testing.T) {
		w := m.Clone()
		base, _ := w.Definition("base")
		base.RemoveAttribute("title")
		leaf, _ := w.Definition("leaf")
		if v := w.EffectiveValue(leaf, "title"); v != "(untitled)" {
			t.Errorf("unexpected: %v", v)
		}
	})

	t.Run("RestoredValue skips the local attribute", func(t *testing.T) {
		w := m.Clone()
		leaf, _ := w.Definition("leaf")
		leaf.SetAttribute("title", model.TypeString, "Leaf")
		if v := w.EffectiveValue(leaf, "title"); v != "Leaf" {
			t.Errorf("effective: %v", v)
		}
		if v := w.RestoredValue(leaf, "title"); v != "Base" {
			t.Errorf("restored: %v", v)
		}
	})
}

func TestDefinition_Children(t *testing.T) {
	m := fixture()
	leaf, _ := m.Definition("leaf")

	t.Run("a local child inherits attributes of the same child of ancestors", func(t *testing.T) {
		title, _ := leaf.Child(model.KindField, "title")
		a, ok := title.FindAttribute("label")
		if !ok || !model.SameValue(a.Value, map[string]string{"en": "Title"}) {
			t.Errorf("unexpected: %+v", a)
		}
		if title.DefinedIn() != "leaf" {
			t.Errorf("DefinedIn: %s", title.DefinedIn())
		}
	})

	t.Run("FindChild finds inherited children", func(t *testing.T) {
		owner, ok := leaf.FindChild(model.KindField, "owner")
		if !ok || owner.DefinedIn() != "base" {
			t.Errorf("unexpected: %+v", owner)
		}
		if _, ok := leaf.Child(model.KindField, "owner"); ok {
			t.Error("inherited child is found as local")
		}
	})

	t.Run("EffectiveChildren lists inherited ones first", func(t *testing.T) {
		var ids, owners []string
		for _, c := range leaf.EffectiveChildren(model.KindField) {
			ids = append(ids, c.Id())
			owners = append(owners, c.DefinedIn())
		}
		if !cmp.SliceEq(ids, []string{"title", "owner", "due"}) {
			t.Errorf("ids: %v", ids)
		}
		if !cmp.SliceEq(owners, []string{"leaf", "base", "middle"}) {
			t.Errorf("owners: %v", owners)
		}
	})

	t.Run("RemoveChild makes the child inherited again", func(t *testing.T) {
		w := m.Clone()
		leaf, _ := w.Definition("leaf")
		if !leaf.RemoveChild(model.KindField, "title") {
			t.Fatal("not removed")
		}
		if leaf.RemoveChild(model.KindField, "title") {
			t.Error("removed twice")
		}
		title, ok := leaf.FindChild(model.KindField, "title")
		if !ok || title.DefinedIn() != "base" {
			t.Errorf("unexpected: %+v", title)
		}
	})
}

func TestModels_Clone(t *testing.T) {
	m := fixture()
	m.SetVersion(12)
	w := m.Clone()

	if w.Version() != 12 {
		t.Errorf("version: %d", w.Version())
	}

	wbase, _ := w.Definition("base")
	wbase.SetAttribute("title", model.TypeString, "Changed")
	wtitle, _ := wbase.Child(model.KindField, "title")
	wtitle.SetAttribute("label", model.TypeLabel, map[string]any{"en": "Changed"})
	w.PutClass("emf:Project", "")

	base, _ := m.Definition("base")
	if a, _ := base.GetAttribute("title"); a.Value != "Base" {
		t.Errorf("original is changed: %+v", a)
	}
	title, _ := base.Child(model.KindField, "title")
	if a, _ := title.GetAttribute("label"); !model.SameValue(a.Value, map[string]any{"en": "Title"}) {
		t.Errorf("original child is changed: %+v", a)
	}
	if _, ok := m.Class("emf:Project"); ok {
		t.Error("original has a class added to the clone")
	}

	wleaf, _ := w.Definition("leaf")
	if a, _ := wleaf.FindAttribute("title"); a.Value != "Changed" {
		t.Errorf("clone does not inherit inside itself: %+v", a)
	}

	if p, _ := w.Class("emf:Project"); p.Deployed() {
		t.Error("created node is deployed")
	}
	if c, _ := w.Class("emf:Case"); !c.Deployed() {
		t.Error("deployed flag is lost")
	}
}

func TestModels_Lookup(t *testing.T) {
	m := fixture()

	if n, ok := m.Node("leaf"); !ok || n.Kind() != model.KindDefinition {
		t.Errorf("Node(leaf): %+v", n)
	}
	if _, ok := m.TopLevel(model.KindClass, "leaf"); ok {
		t.Error("TopLevel(class, leaf) is found")
	}
	if n, ok := m.TopLevel(model.KindProperty, "emf:hasOwner"); !ok || n.DefinedIn() != "emf:hasOwner" {
		t.Errorf("TopLevel(property): %+v", n)
	}
	if ps := m.PropertiesOf("emf:Case"); len(ps) != 1 || ps[0].Id() != "emf:hasOwner" {
		t.Errorf("PropertiesOf: %+v", ps)
	}
}

func TestModels_Undeployed(t *testing.T) {
	m := fixture()
	m.PutClass("emf:Project", "")
	m.PutDefinition("draft", "base").PutChild(model.KindField, "memo")

	got := m.Undeployed("emf:Case", "emf:Project", "draft", "leaf", "unknown")
	if want := []string{"emf:Project", "draft"}; !cmp.SliceContentEq(got, want) {
		t.Errorf("Undeployed: got %v, want %v", got, want)
	}

	m.MarkDeployed(got...)
	if rest := m.Undeployed("emf:Project", "draft"); len(rest) != 0 {
		t.Errorf("still undeployed: %v", rest)
	}
	draft, _ := m.Definition("draft")
	if memo, _ := draft.Child(model.KindField, "memo"); !memo.Deployed() {
		t.Error("child of a deployed definition is not deployed")
	}
}

func TestSameValue(t *testing.T) {
	var decoded any
	if err := json.Unmarshal([]byte(`{"n": 3, "label": {"en": "x"}}`), &decoded); err != nil {
		t.Fatal(err)
	}
	doc := decoded.(map[string]any)

	for name, testcase := range map[string]struct {
		a, b any
		then bool
	}{
		"nil and empty string":      {a: nil, b: "", then: true},
		"nil and empty map":         {a: nil, b: map[string]any{}, then: true},
		"int and float from json":   {a: 3, b: doc["n"], then: true},
		"label maps":                {a: map[string]string{"en": "x"}, b: doc["label"], then: true},
		"different strings":         {a: "a", b: "b", then: false},
		"unset and value":           {a: nil, b: "b", then: false},
		"bool and string":           {a: true, b: "true", then: false},
		"different labels":          {a: map[string]any{"en": "x"}, b: map[string]any{"en": "y"}, then: false},
	} {
		t.Run(name, func(t *testing.T) {
			if actual := model.SameValue(testcase.a, testcase.b); actual != testcase.then {
				t.Errorf("SameValue(%#v, %#v) = %v", testcase.a, testcase.b, actual)
			}
		})
	}
}

func TestCheckType(t *testing.T) {
	for name, testcase := range map[string]struct {
		dataType string
		value    any
		ok       bool
	}{
		"string":            {dataType: model.TypeString, value: "x", ok: true},
		"string with int":   {dataType: model.TypeString, value: 1, ok: false},
		"integer":           {dataType: model.TypeInteger, value: 3.0, ok: true},
		"integer with frac": {dataType: model.TypeInteger, value: 3.5, ok: false},
		"boolean":           {dataType: model.TypeBoolean, value: false, ok: true},
		"label as map":      {dataType: model.TypeLabel, value: map[string]any{"en": "x"}, ok: true},
		"label with number": {dataType: model.TypeLabel, value: map[string]any{"en": 1}, ok: false},
		"unset is any type": {dataType: model.TypeBoolean, value: nil, ok: true},
	} {
		t.Run(name, func(t *testing.T) {
			err := model.CheckType(testcase.dataType, testcase.value)
			if (err == nil) != testcase.ok {
				t.Errorf("CheckType(%s, %#v) = %v", testcase.dataType, testcase.value, err)
			}
		})
	}
}

func TestHolder(t *testing.T) {
	initial := fixture()
	h := model.NewHolder(initial)

	wg := sync.WaitGroup{}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := h.Update(func(current *model.Models) (*model.Models, error) {
				next := current.Clone()
				next.SetVersion(current.Version() + 1)
				return next, nil
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if v := h.Current().Version(); v != 10 {
		t.Errorf("updates are lost: version = %d", v)
	}
	if initial.Version() != 0 {
		t.Errorf("published graph is mutated: %d", initial.Version())
	}
}
