package hook

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

	cfg_hook "github.com/opst/modelfab/pkg/configs/hook"
)

// Web is a web hook.
type Web[T any] struct {
	// URLs to be posted the value T as a JSON payload, in order.
	//
	// If and only if all of the URLs return a 2xx status code, the hook succeeds.
	// It stops at the first failure.
	URLs []*url.URL

	// Client sends requests. http.DefaultClient is used when nil.
	Client *http.Client
}

func Build[T any](cfg cfg_hook.WebHook) Web[T] {
	return Web[T]{URLs: cfg.After}
}

func (w Web[T]) send(ctx context.Context, url string, payload []byte) error {
	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errors.Join(err, ErrHookFailed)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return errors.Join(err, ErrHookFailed)
	}
	defer resp.Body.Close()

	if 200 <= resp.StatusCode && resp.StatusCode < 300 {
		return nil
	}

	ctype := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ctype, "text/") && !(strings.HasPrefix(ctype, "application/") && strings.Contains(ctype, "json")) {
		return fmt.Errorf(
			"%w (%s %d, Content-Type: %s)",
			ErrHookFailed, url, resp.StatusCode, ctype,
		)
	}

	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf(
		"%w (%s %d, Content-Type: %s): %s",
		ErrHookFailed, url, resp.StatusCode, ctype, string(body),
	)
}

func (w Web[T]) Notify(ctx context.Context, value T) error {
	if len(w.URLs) == 0 {
		return nil
	}
	buf, err := json.Marshal(value)
	if err != nil {
		return err
	}
	for _, u := range w.URLs {
		if err := w.send(ctx, u.String(), buf); err != nil {
			return err
		}
	}
	return nil
}
