package recurring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opst/modelfab/pkg/loop"
	"github.com/opst/modelfab/pkg/loop/recurring"
)

func TestParsePolicy(t *testing.T) {
	for name, testcase := range map[string]struct {
		when    string
		then    string
		wantErr bool
	}{
		"forever":                  {when: "forever", then: "forever:0s"},
		"forever with cooldown":    {when: "forever:3s", then: "forever:3s"},
		"forever with empty param": {when: "forever:", then: "forever:0s"},
		"backlog":                  {when: "backlog", then: "backlog"},
		"backlog with param":       {when: "backlog:1s", wantErr: true},
		"broken cooldown":          {when: "forever:soon", wantErr: true},
		"unknown":                  {when: "sometimes", wantErr: true},
	} {
		t.Run(name, func(t *testing.T) {
			p, err := recurring.ParsePolicy(testcase.when)
			if testcase.wantErr {
				if err == nil {
					t.Errorf("expected error, but got %s", p)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if p.String() != testcase.then {
				t.Errorf("actual = %s, expected = %s", p, testcase.then)
			}
		})
	}
}

func TestPolicy(t *testing.T) {
	fakeErr := errors.New("fake")

	for name, testcase := range map[string]struct {
		policy  recurring.Policy
		updated bool
		err     error
		then    loop.Next
	}{
		"forever, updated":           {policy: recurring.Forever(time.Second), updated: true, then: loop.Continue(0)},
		"forever, drained":           {policy: recurring.Forever(time.Second), updated: false, then: loop.Continue(time.Second)},
		"forever ignores errors":     {policy: recurring.Forever(time.Second), updated: false, err: fakeErr, then: loop.Continue(time.Second)},
		"backlog, updated":           {policy: recurring.Backlog(), updated: true, then: loop.Continue(0)},
		"backlog, drained":           {policy: recurring.Backlog(), updated: false, then: loop.Break(nil)},
		"until error, with error":    {policy: recurring.UntilError(recurring.Backlog()), updated: true, err: fakeErr, then: loop.Break(fakeErr)},
		"until error, without error": {policy: recurring.UntilError(recurring.Backlog()), updated: true, then: loop.Continue(0)},
	} {
		t.Run(name, func(t *testing.T) {
			actual := testcase.policy.Next(testcase.updated, testcase.err)
			if actual.String() != testcase.then.String() {
				t.Errorf("actual = %s, expected = %s", actual, testcase.then)
			}
		})
	}
}

func TestTask_Applied(t *testing.T) {
	rounds := 0
	task := recurring.Task[int](func(_ context.Context, v int) (int, bool, error) {
		rounds += 1
		return v + 1, v < 3, nil
	})

	actual, err := loop.Start(context.Background(), 0, task.Applied(recurring.Backlog()))
	if err != nil {
		t.Fatal(err)
	}
	if actual != 4 || rounds != 4 {
		t.Errorf("actual = %d (in %d rounds)", actual, rounds)
	}
}
