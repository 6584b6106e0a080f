package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var ErrUpstreamUnavailable = errors.New("upstream unavailable")

const (
	defaultTimeout = time.Second * 10
	// maxErrorBody caps how much of a failed response ends up in errors.
	maxErrorBody = 512
)

// UpstreamError reports a failed call to a live source. It matches
// ErrUpstreamUnavailable with errors.Is.
type UpstreamError struct {
	Source string
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%v unavailable: %v", e.Source, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

type client struct {
	name    string
	baseURL string
	headers http.Header
	http    *http.Client
}

func newClient(name, baseURL string) client {
	return client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: http.Header{},
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

func (c client) getJSON(ctx context.Context, path string, values url.Values, dest interface{}) error {
	u := fmt.Sprintf("%v%v", c.baseURL, path)
	if len(values) > 0 {
		u = fmt.Sprintf("%v?%v", u, values.Encode())
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return c.fail(errors.Wrap(err, "unable to build request"))
	}
	for key, vals := range c.headers {
		for _, v := range vals {
			request.Header.Add(key, v)
		}
	}
	response, err := c.http.Do(request)
	if err != nil {
		return c.fail(errors.Wrap(err, "request failed"))
	}
	defer func() {
		err := response.Body.Close()
		if err != nil {
			slog.Warn("error during closing response body", "source", c.name, "error", err)
		}
	}()
	code := response.StatusCode
	if code < 200 || code > 299 {
		body, err := io.ReadAll(io.LimitReader(response.Body, maxErrorBody))
		if err != nil {
			return c.fail(errors.Errorf("unexpected status %v; can't read body: %v", code, err.Error()))
		}
		return c.fail(errors.Errorf("unexpected status %v; body: %v", code, string(body)))
	}
	err = json.NewDecoder(response.Body).Decode(dest)
	if err != nil {
		return c.fail(errors.Wrap(err, "unable to decode response"))
	}
	return nil
}

func (c client) fail(err error) error {
	return &UpstreamError{Source: c.name, Err: err}
}

// number accepts both JSON numbers and numeric strings, which the upstream
// APIs mix freely.
type number float64

func (n *number) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return errors.Wrapf(err, "invalid number %v", string(data))
	}
	*n = number(f)
	return nil
}
