package echoutil_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"github.com/opst/modelfab/pkg/echoutil"
)

func TestSetLevel(t *testing.T) {
	for name, expected := range map[string]log.Lvl{
		"debug":   log.DEBUG,
		"INFO":    log.INFO,
		"warn":    log.WARN,
		"":        log.WARN,
		"error":   log.ERROR,
		"off":     log.OFF,
		"verbose": log.WARN,
	} {
		t.Run(name, func(t *testing.T) {
			e := echo.New()
			e.Logger.SetOutput(new(bytes.Buffer))
			echoutil.SetLevel(e, name)
			if actual := e.Logger.Level(); actual != expected {
				t.Errorf("level: %d, want %d", actual, expected)
			}
		})
	}
}

func TestLogHandlerFunc(t *testing.T) {
	e := echo.New()
	logs := new(bytes.Buffer)
	e.Logger.SetOutput(logs)
	e.Logger.SetLevel(log.INFO)

	e.GET("/ok", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}, echoutil.LogHandlerFunc)
	e.GET("/missing", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "missing")
	}, echoutil.LogHandlerFunc)

	for path, status := range map[string]string{"/ok": "status = 200", "/missing": "status = 404"} {
		logs.Reset()
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if !strings.Contains(logs.String(), "< request") || !strings.Contains(logs.String(), status) {
			t.Errorf("%s: logs:\n%s", path, logs)
		}
	}
}
