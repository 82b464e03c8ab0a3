// Package historytest has tests every history implementation should pass.
package historytest

import (
	"context"
	"errors"
	"testing"

	testutilctx "github.com/opst/modelfab/internal/testutils/context"
	"github.com/opst/modelfab/pkg/cmp"
	"github.com/opst/modelfab/pkg/domain/changeset"
	kdb "github.com/opst/modelfab/pkg/domain/history/db"
	"github.com/opst/modelfab/pkg/domain/model"
	"github.com/opst/modelfab/pkg/utils/try"
)

func change(sel string, old, new any) changeset.Info {
	return changeset.Info{ChangeSet: changeset.ChangeSet{
		Selector: sel, Operation: changeset.OpModifyAttribute, OldValue: old, NewValue: new,
	}}
}

// Run tests the history given by newTestee. newTestee should return an empty history.
func Run(t *testing.T, newTestee func(t *testing.T) kdb.Interface) {
	ctx := testutilctx.WithTest(context.Background(), t)

	t.Run("an empty history is at version 0", func(t *testing.T) {
		testee := newTestee(t)
		if v := try.To(testee.Version(ctx)).OrFatal(t); v != 0 {
			t.Errorf("version: %d", v)
		}
		if got := try.To(testee.Changes(ctx, 0, kdb.Latest)).OrFatal(t); len(got) != 0 {
			t.Errorf("changes: %+v", got)
		}
	})

	t.Run("Record advances the version by one per batch", func(t *testing.T) {
		testee := newTestee(t)

		v1 := try.To(testee.Record(ctx, 0, []changeset.Info{
			change("class=emf:Case/attribute=ptop:title", nil, "Test Case"),
			change("/definition=testCase/field=title/attribute=label", "Title", map[string]any{"en": "Title", "de": "Titel"}),
		})).OrFatal(t)
		v2 := try.To(testee.Record(ctx, 1, []changeset.Info{
			change("class=emf:Case/attribute=emf:order", nil, 3),
		})).OrFatal(t)

		if v1 != 1 || v2 != 2 {
			t.Errorf("versions: %d, %d", v1, v2)
		}
		if v := try.To(testee.Version(ctx)).OrFatal(t); v != 2 {
			t.Errorf("version: %d", v)
		}

		all := try.To(testee.Changes(ctx, 0, kdb.Latest)).OrFatal(t)
		if len(all) != 3 {
			t.Fatalf("changes: %+v", all)
		}
		for i, c := range all {
			if c.Status != changeset.Applied {
				t.Errorf("[%d] status: %s", i, c.Status)
			}
			if 0 < i && c.Id <= all[i-1].Id {
				t.Errorf("ids are not ordered: %+v", all)
			}
		}
		if !cmp.SliceEqWith(
			all,
			[]int64{1, 1, 2},
			func(c changeset.Info, v int64) bool { return c.Version == v },
		) {
			t.Errorf("versions of changes: %+v", all)
		}
		if !model.SameValue(all[1].NewValue, map[string]any{"en": "Title", "de": "Titel"}) || all[1].OldValue != "Title" {
			t.Errorf("values: %+v", all[1])
		}
		if all[0].OldValue != nil {
			t.Errorf("old value: %#v", all[0].OldValue)
		}
		if !model.SameValue(all[2].NewValue, 3) {
			t.Errorf("number: %#v", all[2].NewValue)
		}

		pinned := try.To(testee.Changes(ctx, 0, 1)).OrFatal(t)
		if len(pinned) != 2 {
			t.Errorf("changes until 1: %+v", pinned)
		}
		after := try.To(testee.Changes(ctx, 1, kdb.Latest)).OrFatal(t)
		if len(after) != 1 || after[0].Selector != "class=emf:Case/attribute=emf:order" {
			t.Errorf("changes after 1: %+v", after)
		}
	})

	t.Run("Record with stale version records nothing", func(t *testing.T) {
		testee := newTestee(t)
		try.To(testee.Record(ctx, 0, []changeset.Info{change("class=a/attribute=b", nil, "x")})).OrFatal(t)

		_, err := testee.Record(ctx, 0, []changeset.Info{change("class=a/attribute=b", "x", "y")})
		if !errors.Is(err, kdb.ErrStaleVersion) {
			t.Errorf("unexpected error: %v", err)
		}
		if v := try.To(testee.Version(ctx)).OrFatal(t); v != 1 {
			t.Errorf("version: %d", v)
		}
		if got := try.To(testee.Changes(ctx, 0, kdb.Latest)).OrFatal(t); len(got) != 1 {
			t.Errorf("changes: %+v", got)
		}
	})

	t.Run("deployed versions never go back", func(t *testing.T) {
		testee := newTestee(t)
		if err := testee.MarkDeployed(ctx, []string{"emf:Case", "testCase"}, 3); err != nil {
			t.Fatal(err)
		}
		if err := testee.MarkDeployed(ctx, []string{"emf:Case", "emf:Project"}, 2); err != nil {
			t.Fatal(err)
		}
		if err := testee.MarkDeployed(ctx, nil, 5); err != nil {
			t.Fatal(err)
		}

		got := try.To(testee.DeployedVersions(ctx)).OrFatal(t)
		want := map[string]int64{"emf:Case": 3, "testCase": 3, "emf:Project": 2}
		if !cmp.MapEq(got, want) {
			t.Errorf("deployed versions:\n- got: %v\n- want: %v", got, want)
		}
	})
}
