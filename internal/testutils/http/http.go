// Package http builds echo contexts for handler tests.
//
//	c, resp := http.Post(e, "/api/models/changes/", body, http.JSON())
//	err := handlers.PostChangesHandler(svc)(c)
package http

import (
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/labstack/echo/v4"
)

type RequestOption func(req *http.Request)

func WithHeader(key string, value string, values ...string) RequestOption {
	return func(req *http.Request) {
		req.Header.Add(key, value)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
}

func ContentType(ctyp string) RequestOption {
	return WithHeader(echo.HeaderContentType, ctyp)
}

// JSON is ContentType("application/json").
func JSON() RequestOption {
	return ContentType(echo.MIMEApplicationJSON)
}

func Get(e *echo.Echo, target string, reqopts ...RequestOption) (echo.Context, *httptest.ResponseRecorder) {
	return request(e, http.MethodGet, target, nil, reqopts...)
}

func Post(e *echo.Echo, target string, body io.Reader, reqopts ...RequestOption) (echo.Context, *httptest.ResponseRecorder) {
	return request(e, http.MethodPost, target, body, reqopts...)
}

func request(e *echo.Echo, method string, target string, body io.Reader, reqopts ...RequestOption) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, body)
	for _, opt := range reqopts {
		opt(req)
	}
	resp := httptest.NewRecorder()
	return e.NewContext(req, resp), resp
}
