// Package web talks to the definition repository and the semantic triple store over HTTP.
//
// Definition repository:
//
//	POST   {base}/definitions/{id}/validate   (application/xml) -> {"messages": [...]}
//	PUT    {base}/definitions/{id}            (application/xml)
//	DELETE {base}/definitions/{id}
//
// Triple store:
//
//	PUT    {base}/nodes/{id}/triples          (application/json, array of triples)
//	DELETE {base}/nodes/{id}/triples
//
// Removing what does not exist (404) is not an error.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/opst/modelfab/pkg/domain/deploy"
	"github.com/opst/modelfab/pkg/domain/report"
)

// ErrUnexpectedStatus tells the downstream answered with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected status")

type client struct {
	base *url.URL
	http *http.Client
}

func newClient(base *url.URL, c *http.Client) client {
	if c == nil {
		c = http.DefaultClient
	}
	return client{base: base, http: c}
}

func (c client) url(elem ...string) string {
	escaped := make([]string, len(elem))
	for i, e := range elem {
		escaped[i] = url.PathEscape(e)
	}
	return c.base.JoinPath(escaped...).String()
}

// do sends the request, and returns the body of 2xx responses.
//
// When allowNotFound is set, 404 is taken as success with an empty body.
func (c client) do(ctx context.Context, method, url, ctype string, body []byte, allowNotFound bool) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, err
	}
	if ctype != "" {
		req.Header.Set("Content-Type", ctype)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	switch {
	case 200 <= resp.StatusCode && resp.StatusCode < 300:
		return payload, nil
	case allowNotFound && resp.StatusCode == http.StatusNotFound:
		return nil, nil
	}
	return nil, fmt.Errorf(
		"%w: %s %s: %d: %s",
		ErrUnexpectedStatus, method, url, resp.StatusCode, strings.TrimSpace(string(payload)),
	)
}

// Definitions is a client of the definition repository.
type Definitions struct {
	client
}

var _ deploy.DefinitionImporter = Definitions{}

// NewDefinitions returns a client of the definition repository at base.
//
// http.DefaultClient is used when c is nil.
func NewDefinitions(base *url.URL, c *http.Client) Definitions {
	return Definitions{client: newClient(base, c)}
}

type validationResult struct {
	Messages []report.Message `json:"messages"`
}

func (d Definitions) Validate(ctx context.Context, id string, xml []byte) ([]report.Message, error) {
	body, err := d.do(ctx, http.MethodPost, d.url("definitions", id, "validate"), "application/xml", xml, false)
	if err != nil {
		return nil, err
	}
	var res validationResult
	if len(body) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("validation result of %s: %w", id, err)
	}
	return res.Messages, nil
}

func (d Definitions) Import(ctx context.Context, id string, xml []byte) error {
	_, err := d.do(ctx, http.MethodPut, d.url("definitions", id), "application/xml", xml, false)
	return err
}

func (d Definitions) Remove(ctx context.Context, id string) error {
	_, err := d.do(ctx, http.MethodDelete, d.url("definitions", id), "", nil, true)
	return err
}

// Semantic is a client of the semantic triple store.
type Semantic struct {
	client
}

var _ deploy.SemanticRepository = Semantic{}

// NewSemantic returns a client of the triple store at base.
//
// http.DefaultClient is used when c is nil.
func NewSemantic(base *url.URL, c *http.Client) Semantic {
	return Semantic{client: newClient(base, c)}
}

func (s Semantic) Save(ctx context.Context, nodeId string, triples []deploy.Triple) error {
	if triples == nil {
		triples = []deploy.Triple{}
	}
	body, err := json.Marshal(triples)
	if err != nil {
		return err
	}
	_, err = s.do(ctx, http.MethodPut, s.url("nodes", nodeId, "triples"), "application/json", body, false)
	return err
}

func (s Semantic) Remove(ctx context.Context, nodeId string) error {
	_, err := s.do(ctx, http.MethodDelete, s.url("nodes", nodeId, "triples"), "", nil, true)
	return err
}
