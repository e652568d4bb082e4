package transport

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
	"time"
)

const (
	defaultClientTimeout           = 30 * time.Second
	defaultResponseBodyLimit int64 = 10 << 20 // 10 MiB
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPExecutor resolves request paths against BaseURL and runs them through
// Client.
type HTTPExecutor struct {
	BaseURL              *url.URL
	Client               HTTPDoer
	DefaultHeaders       map[string]string
	Accept               string // sent unless the request sets Accept itself
	MaxResponseBodyBytes int64
}

var _ Executor = (*HTTPExecutor)(nil)

// NewHTTPExecutor parses baseURL. A nil client gets a 30s timeout client.
func NewHTTPExecutor(baseURL string, client HTTPDoer) (*HTTPExecutor, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("transport: invalid base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("transport: base url must be absolute, got %q", baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: defaultClientTimeout}
	}
	return &HTTPExecutor{
		BaseURL:              u,
		Client:               client,
		DefaultHeaders:       map[string]string{},
		MaxResponseBodyBytes: defaultResponseBodyLimit,
	}, nil
}

func (x *HTTPExecutor) Execute(ctx context.Context, req Request) (Response, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	target := x.resolve(req)
	fail := func(kind Kind, status int, body []byte, err error) (Response, error) {
		return Response{}, &Error{Kind: kind, Method: method, URL: target, StatusCode: status, Body: body, Err: err}
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return fail(KindRequest, 0, nil, fmt.Errorf("encode body: %w", err))
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fail(KindRequest, 0, nil, err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if x.Accept != "" {
		httpReq.Header.Set("Accept", x.Accept)
	}
	for k, v := range x.DefaultHeaders {
		setHeader(httpReq.Header, k, v)
	}
	for k, v := range req.Headers {
		setHeader(httpReq.Header, k, v)
	}

	res, err := x.Client.Do(httpReq)
	if err != nil {
		return fail(KindNetwork, 0, nil, err)
	}
	defer res.Body.Close()

	limit := x.MaxResponseBodyBytes
	if limit <= 0 {
		limit = defaultResponseBodyLimit
	}
	raw, err := io.ReadAll(io.LimitReader(res.Body, limit+1))
	if err != nil {
		return fail(KindNetwork, res.StatusCode, nil, fmt.Errorf("read body: %w", err))
	}
	if int64(len(raw)) > limit {
		return fail(KindNetwork, res.StatusCode, nil, fmt.Errorf("response body exceeds %d bytes", limit))
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fail(KindStatus, res.StatusCode, truncateBody(raw), errors.New(http.StatusText(res.StatusCode)))
	}

	return Response{
		StatusCode:  res.StatusCode,
		ContentType: res.Header.Get("Content-Type"),
		Headers:     flattenHeaders(res.Header),
		Body:        raw,
	}, nil
}

func (x *HTTPExecutor) resolve(req Request) string {
	u := x.BaseURL.JoinPath(strings.TrimSpace(req.Path))
	if len(req.Query) > 0 {
		q := u.Query()
		for k, v := range req.Query {
			if strings.TrimSpace(k) == "" {
				continue
			}
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// setHeader skips empty values so an unset language hint leaves the server
// default in place.
func setHeader(h http.Header, k, v string) {
	k, v = strings.TrimSpace(k), strings.TrimSpace(v)
	if k == "" || v == "" {
		return
	}
	h.Set(k, v)
}

func flattenHeaders(headers http.Header) map[string]string {
	flat := make(map[string]string, len(headers))
	for k, vs := range headers {
		flat[k] = strings.Join(vs, ",")
	}
	return flat
}
