package hook_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/opst/modelfab/pkg/hook"
	"github.com/opst/modelfab/pkg/utils/try"
)

type Value struct {
	Content string `json:"content"`
}

func TestWeb_Notify(t *testing.T) {
	type Resp struct {
		StatusCode  int
		ContentType string
		Content     string
	}

	type When struct {
		resp1 Resp
		resp2 Resp
	}

	type Then struct {
		invoked1 bool
		invoked2 bool
		err      error
		message  string
	}

	theory := func(when When, then Then) func(t *testing.T) {
		return func(t *testing.T) {
			value := Value{Content: "hello"}
			handler := func(w http.ResponseWriter, r *http.Request, name string, resp Resp) {
				if r.Method != http.MethodPost {
					t.Errorf("%s: unexpected method: %s", name, r.Method)
				}
				if ctype := r.Header.Get("Content-Type"); ctype != "application/json" {
					t.Errorf("%s: unexpected content type: %s", name, ctype)
				}
				var got Value
				if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
					t.Errorf("%s: unexpected error: %v", name, err)
				}
				if got != value {
					t.Errorf("%s: Expected: %v, Got: %v", name, value, got)
				}

				if resp.ContentType != "" {
					w.Header().Set("Content-Type", resp.ContentType)
				}
				w.WriteHeader(resp.StatusCode)
				if resp.Content != "" {
					w.Write([]byte(resp.Content))
				}
			}

			invoked1, invoked2 := false, false
			server1 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				invoked1 = true
				handler(w, r, "server1", when.resp1)
			}))
			defer server1.Close()
			server2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				invoked2 = true
				handler(w, r, "server2", when.resp2)
			}))
			defer server2.Close()

			testee := hook.Web[Value]{
				URLs: []*url.URL{
					try.To(url.Parse(server1.URL)).OrFatal(t),
					try.To(url.Parse(server2.URL)).OrFatal(t),
				},
			}
			err := testee.Notify(context.Background(), value)
			if !errors.Is(err, then.err) {
				t.Errorf("Want: %v, Got: %v", then.err, err)
			}
			if then.message != "" && (err == nil || !strings.Contains(err.Error(), then.message)) {
				t.Errorf("message %q is missing in %v", then.message, err)
			}
			if invoked1 != then.invoked1 {
				t.Errorf("server1: Want: %v, Got: %v", then.invoked1, invoked1)
			}
			if invoked2 != then.invoked2 {
				t.Errorf("server2: Want: %v, Got: %v", then.invoked2, invoked2)
			}
		}
	}

	t.Run("Success All", theory(
		When{
			resp1: Resp{StatusCode: http.StatusOK},
			resp2: Resp{StatusCode: http.StatusNoContent},
		},
		Then{invoked1: true, invoked2: true},
	))

	t.Run("Fail First", theory(
		When{
			resp1: Resp{StatusCode: http.StatusNotFound},
			resp2: Resp{StatusCode: http.StatusOK},
		},
		Then{invoked1: true, invoked2: false, err: hook.ErrHookFailed},
	))

	t.Run("Fail Second with message", theory(
		When{
			resp1: Resp{StatusCode: http.StatusOK},
			resp2: Resp{StatusCode: http.StatusInternalServerError, ContentType: "text/plain", Content: "broken"},
		},
		Then{invoked1: true, invoked2: true, err: hook.ErrHookFailed, message: "broken"},
	))
}

func TestWeb_Notify_InvalidUrl(t *testing.T) {
	testee := hook.Web[string]{
		URLs: []*url.URL{try.To(url.Parse("http://somewhere.invalid")).OrFatal(t)},
	}
	if err := testee.Notify(context.Background(), "hello"); !errors.Is(err, hook.ErrHookFailed) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestWeb_Notify_NoUrls(t *testing.T) {
	if err := (hook.Web[Value]{}).Notify(context.Background(), Value{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	r := hook.NewRegistry[Value]()

	var got []string
	record := func(name string) hook.Func[Value] {
		return func(_ context.Context, v Value) error {
			got = append(got, name+":"+v.Content)
			return nil
		}
	}
	expected := errors.New("fake error")

	r.Register("b", record("b"))
	unregister := r.Register("a", record("a"))
	r.Register("c", hook.Func[Value](func(context.Context, Value) error { return expected }))
	r.Register("", hook.None[Value]{})

	if r.Len() != 4 {
		t.Errorf("len: %d", r.Len())
	}

	err := r.Notify(ctx, Value{Content: "x"})
	if !errors.Is(err, expected) || !errors.Is(err, hook.ErrHookFailed) {
		t.Errorf("unexpected error: %v", err)
	}
	if strings.Join(got, ",") != "a:x,b:x" {
		t.Errorf("notified: %v", got)
	}

	unregister()
	got = nil
	r.Notify(ctx, Value{Content: "y"})
	if strings.Join(got, ",") != "b:y" {
		t.Errorf("notified after unregister: %v", got)
	}
}
