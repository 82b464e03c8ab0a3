package binderr_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	httptestutil "github.com/opst/modelfab/internal/testutils/http"
	"github.com/opst/modelfab/pkg/api/binderr"
	"github.com/opst/modelfab/pkg/domain/report"
)

func TestErrorMessage(t *testing.T) {
	e := echo.New()

	t.Run("echo writes the message as the body", func(t *testing.T) {
		r := report.New(3)
		r.Fail("emf:Case", "class", "collision")

		c, resp := httptestutil.Post(e, "/api/models/changes/", nil)
		e.DefaultHTTPErrorHandler(binderr.UpdateModelFailed(r, errors.New("rejected")), c)

		if resp.Code != http.StatusConflict {
			t.Errorf("status: %d", resp.Code)
		}
		var body binderr.ErrorMessage
		if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
			t.Fatalf("%v: %s", err, resp.Body)
		}
		if body.Reason != "UpdateModelFailed" || body.Advice == "" {
			t.Errorf("body: %+v", body)
		}
		if body.Report == nil || len(body.Report.FailedEntries()) != 1 || body.Report.Version != 3 {
			t.Errorf("report: %+v", body.Report)
		}
	})

	t.Run("cause is not in the body, but unwrapped", func(t *testing.T) {
		cause := errors.New("secret")
		herr := binderr.InternalServerError(cause)
		if !errors.Is(herr.Internal, cause) {
			t.Errorf("cause is lost: %v", herr.Internal)
		}

		b, err := json.Marshal(herr.Message)
		if err != nil {
			t.Fatal(err)
		}
		var raw map[string]any
		if err := json.Unmarshal(b, &raw); err != nil {
			t.Fatal(err)
		}
		if raw["reason"] != "unexpected error" || len(raw) != 2 {
			t.Errorf("body: %s", b)
		}
	})

	t.Run("reason is required", func(t *testing.T) {
		var m binderr.ErrorMessage
		if err := json.Unmarshal([]byte(`{"advice":"retry"}`), &m); err == nil {
			t.Error("expected error, but nil")
		}
	})
}
