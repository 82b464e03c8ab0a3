// Package queuetest has tests every queue implementation should pass.
package queuetest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	testutilctx "github.com/opst/modelfab/internal/testutils/context"
	kdb "github.com/opst/modelfab/pkg/domain/queue/db"
	"github.com/opst/modelfab/pkg/utils/try"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Run tests the queue given by newTestee. newTestee should return an empty queue.
func Run(t *testing.T, newTestee func(t *testing.T) kdb.Interface) {
	ctx := testutilctx.WithTest(context.Background(), t)

	t.Run("messages are popped in pushed order, per channel", func(t *testing.T) {
		testee := newTestee(t)

		id1 := try.To(testee.Push(ctx, kdb.UpdateChannel, payload{Name: "first", Count: 1})).OrFatal(t)
		try.To(testee.Push(ctx, kdb.DeployChannel, payload{Name: "other", Count: 9})).OrFatal(t)
		id2 := try.To(testee.Push(ctx, kdb.UpdateChannel, payload{Name: "second", Count: 2})).OrFatal(t)

		if _, err := uuid.Parse(id1); err != nil {
			t.Errorf("id is not uuid: %s", id1)
		}
		if n := try.To(testee.Len(ctx, kdb.UpdateChannel)).OrFatal(t); n != 2 {
			t.Errorf("len: %d", n)
		}

		var got []payload
		var ids []string
		for {
			popped, err := testee.Pop(ctx, kdb.UpdateChannel, func(m kdb.Message) error {
				var p payload
				if err := m.Decode(&p); err != nil {
					return err
				}
				if m.Channel != kdb.UpdateChannel {
					t.Errorf("channel: %s", m.Channel)
				}
				got = append(got, p)
				ids = append(ids, m.Id)
				return nil
			})
			if err != nil {
				t.Fatal(err)
			}
			if !popped {
				break
			}
		}

		if len(got) != 2 || got[0] != (payload{Name: "first", Count: 1}) || got[1] != (payload{Name: "second", Count: 2}) {
			t.Errorf("payloads: %+v", got)
		}
		if len(ids) != 2 || ids[0] != id1 || ids[1] != id2 {
			t.Errorf("ids: %v", ids)
		}
		if n := try.To(testee.Len(ctx, kdb.DeployChannel)).OrFatal(t); n != 1 {
			t.Errorf("other channel: %d", n)
		}
	})

	t.Run("a failed message stays in the queue", func(t *testing.T) {
		testee := newTestee(t)
		try.To(testee.Push(ctx, kdb.UpdateChannel, payload{Name: "first"})).OrFatal(t)

		expectedErr := errors.New("fake error")
		popped, err := testee.Pop(ctx, kdb.UpdateChannel, func(kdb.Message) error { return expectedErr })
		if popped || !errors.Is(err, expectedErr) {
			t.Errorf("popped: %v, err: %v", popped, err)
		}

		var p payload
		popped, err = testee.Pop(ctx, kdb.UpdateChannel, func(m kdb.Message) error { return m.Decode(&p) })
		if !popped || err != nil || p.Name != "first" {
			t.Errorf("popped: %v, err: %v, payload: %+v", popped, err, p)
		}
	})

	t.Run("a dropped message is removed", func(t *testing.T) {
		testee := newTestee(t)
		try.To(testee.Push(ctx, kdb.DeployChannel, payload{Name: "first"})).OrFatal(t)

		expectedErr := errors.New("fake error")
		popped, err := testee.Pop(ctx, kdb.DeployChannel, func(kdb.Message) error { return kdb.Drop(expectedErr) })
		if !popped || !errors.Is(err, expectedErr) || !kdb.IsDropped(err) {
			t.Errorf("popped: %v, err: %v", popped, err)
		}
		if n := try.To(testee.Len(ctx, kdb.DeployChannel)).OrFatal(t); n != 0 {
			t.Errorf("len: %d", n)
		}
	})

	t.Run("popping an empty channel pops nothing", func(t *testing.T) {
		testee := newTestee(t)
		popped, err := testee.Pop(ctx, kdb.UpdateResponseChannel, func(kdb.Message) error {
			t.Error("handler is called")
			return nil
		})
		if popped || err != nil {
			t.Errorf("popped: %v, err: %v", popped, err)
		}
	})
}
