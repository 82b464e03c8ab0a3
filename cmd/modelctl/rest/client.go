// Package rest is a client of the modelfab API server.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/opst/modelfab/pkg/api/binderr"
	"github.com/opst/modelfab/pkg/api/types"
	"github.com/opst/modelfab/pkg/domain/history"
	"github.com/opst/modelfab/pkg/domain/management"
	"github.com/opst/modelfab/pkg/domain/report"
	"github.com/opst/modelfab/pkg/domain/update"
)

type Client interface {
	GetModels(ctx context.Context) (types.Summary, error)
	GetNode(ctx context.Context, selector string) (types.Resolved, error)
	GetChanges(ctx context.Context, after int64) (types.Changes, error)

	// PostChanges submits the update request.
	//
	// When sync is false, only the ticket is returned.
	// Rejections are *ServerError with the report.
	PostChanges(ctx context.Context, req update.Request, sync bool) (Submitted[update.Response], error)

	GetDeployment(ctx context.Context) (*report.Report, error)

	// PostDeployment submits the deployment request.
	//
	// When sync is false, only the ticket is returned.
	// Invalid deployments are *ServerError with the report.
	PostDeployment(ctx context.Context, req history.DeploymentRequest, sync bool) (Submitted[*report.Report], error)
}

// Submitted is a result of a submission: a ticket of a queued request,
// or the result of a request processed at once.
type Submitted[T any] struct {
	Ticket *management.Ticket
	Result T
}

// ServerError is an error response from the server.
type ServerError struct {
	Status  int
	Message binderr.ErrorMessage
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s (status code = %d)", e.Message.String(), e.Status)
}

type client struct {
	base *url.URL
	http *http.Client
}

func New(server string, c *http.Client) (Client, error) {
	base, err := url.Parse(server)
	if err != nil {
		return nil, err
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("server should be http(s) url: %s", server)
	}
	if c == nil {
		c = http.DefaultClient
	}
	return &client{base: base, http: c}, nil
}

// apipath builds the url of the api path. Paths are trailing-slashed.
func (c *client) apipath(query url.Values, elem ...string) string {
	u := c.base.JoinPath(append([]string{"api", "models"}, elem...)...)
	u.Path += "/"
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *client) do(ctx context.Context, method string, u string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return c.http.Do(req)
}

// unmarshalJsonResponse decodes 2xx response into v, and others into *ServerError.
func unmarshalJsonResponse[T any](resp *http.Response, v *T) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("cannot read response (status code = %d): %w", resp.StatusCode, err)
	}
	if 200 <= resp.StatusCode && resp.StatusCode < 300 {
		if err := json.Unmarshal(body, v); err != nil {
			return fmt.Errorf("unexpected response (status code = %d): %w", resp.StatusCode, err)
		}
		return nil
	}

	serr := &ServerError{Status: resp.StatusCode}
	if err := json.Unmarshal(body, &serr.Message); err != nil {
		serr.Message = binderr.ErrorMessage{Reason: http.StatusText(resp.StatusCode), Advice: string(body)}
	}
	return serr
}

func get[T any](ctx context.Context, c *client, u string) (T, error) {
	var v T
	resp, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return v, err
	}
	defer resp.Body.Close()
	err = unmarshalJsonResponse(resp, &v)
	return v, err
}

func submit[T any](ctx context.Context, c *client, u string, body any) (Submitted[T], error) {
	resp, err := c.do(ctx, http.MethodPost, u, body)
	if err != nil {
		return Submitted[T]{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted {
		ticket := new(management.Ticket)
		if err := unmarshalJsonResponse(resp, ticket); err != nil {
			return Submitted[T]{}, err
		}
		return Submitted[T]{Ticket: ticket}, nil
	}

	var result T
	if err := unmarshalJsonResponse(resp, &result); err != nil {
		return Submitted[T]{}, err
	}
	return Submitted[T]{Result: result}, nil
}

func syncQuery(sync bool) url.Values {
	q := url.Values{}
	if sync {
		q.Set("sync", "true")
	}
	return q
}

func (c *client) GetModels(ctx context.Context) (types.Summary, error) {
	return get[types.Summary](ctx, c, c.apipath(nil))
}

func (c *client) GetNode(ctx context.Context, selector string) (types.Resolved, error) {
	return get[types.Resolved](ctx, c, c.apipath(url.Values{"selector": {selector}}, "node"))
}

func (c *client) GetChanges(ctx context.Context, after int64) (types.Changes, error) {
	q := url.Values{}
	if 0 < after {
		q.Set("after", strconv.FormatInt(after, 10))
	}
	return get[types.Changes](ctx, c, c.apipath(q, "changes"))
}

func (c *client) PostChanges(ctx context.Context, req update.Request, sync bool) (Submitted[update.Response], error) {
	return submit[update.Response](ctx, c, c.apipath(syncQuery(sync), "changes"), req)
}

func (c *client) GetDeployment(ctx context.Context) (*report.Report, error) {
	return get[*report.Report](ctx, c, c.apipath(nil, "deployment"))
}

func (c *client) PostDeployment(ctx context.Context, req history.DeploymentRequest, sync bool) (Submitted[*report.Report], error) {
	return submit[*report.Report](ctx, c, c.apipath(syncQuery(sync), "deployment"), req)
}
