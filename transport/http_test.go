package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type captured struct {
	method string
	path   string
	query  string
	header http.Header
	body   []byte
}

func newServer(t *testing.T, status int, ct, reply string) (*httptest.Server, *captured) {
	t.Helper()
	c := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.method = r.Method
		c.path = r.URL.EscapedPath()
		c.query = r.URL.RawQuery
		c.header = r.Header.Clone()
		c.body, _ = io.ReadAll(r.Body)
		if ct != "" {
			w.Header().Set("Content-Type", ct)
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func TestExecuteGetWithQueryAndLanguage(t *testing.T) {
	srv, c := newServer(t, http.StatusOK, "application/json", `[{"id":"A"}]`)
	x, err := NewHTTPExecutor(srv.URL+"/api/", nil)
	if err != nil {
		t.Fatalf("NewHTTPExecutor: %v", err)
	}
	x.Accept = "application/json"

	res, err := x.Execute(context.Background(), Request{
		Path:    "certificates",
		Query:   map[string]string{"username": "bob smith"},
		Headers: map[string]string{"Accept-Language": "es"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if c.method != http.MethodGet {
		t.Fatalf("method=%s want GET", c.method)
	}
	if c.path != "/api/certificates" {
		t.Fatalf("path=%q", c.path)
	}
	if c.query != "username=bob+smith" {
		t.Fatalf("query=%q", c.query)
	}
	if got := c.header.Get("Accept-Language"); got != "es" {
		t.Fatalf("Accept-Language=%q", got)
	}
	if got := c.header.Get("Accept"); got != "application/json" {
		t.Fatalf("Accept=%q", got)
	}
	if res.ContentType != "application/json" || string(res.Body) != `[{"id":"A"}]` {
		t.Fatalf("unexpected response %+v", res)
	}
}

func TestExecuteOmitsEmptyLanguageHint(t *testing.T) {
	srv, c := newServer(t, http.StatusOK, "application/json", `{}`)
	x, _ := NewHTTPExecutor(srv.URL, nil)

	if _, err := x.Execute(context.Background(), Request{
		Path:    "/certificates/A",
		Headers: map[string]string{"Accept-Language": ""},
	}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, ok := c.header["Accept-Language"]; ok {
		t.Fatalf("empty language hint should not be sent")
	}
	if c.path != "/certificates/A" {
		t.Fatalf("path=%q", c.path)
	}
}

func TestExecutePostsJSONBody(t *testing.T) {
	srv, c := newServer(t, http.StatusCreated, "application/json", `{"id":"A"}`)
	x, _ := NewHTTPExecutor(srv.URL, nil)

	_, err := x.Execute(context.Background(), Request{
		Method: "post",
		Path:   "certificates/complete",
		Body:   map[string]string{"certificateId": "A"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if c.method != http.MethodPost {
		t.Fatalf("method=%s want POST", c.method)
	}
	if ct := c.header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type=%q", ct)
	}
	var got map[string]string
	if err := json.Unmarshal(c.body, &got); err != nil || got["certificateId"] != "A" {
		t.Fatalf("body=%s err=%v", c.body, err)
	}
}

func TestExecuteStatusError(t *testing.T) {
	srv, _ := newServer(t, http.StatusNotFound, "application/json", `{"message":"not found"}`)
	x, _ := NewHTTPExecutor(srv.URL, nil)

	_, err := x.Execute(context.Background(), Request{Path: "certificates/missing"})
	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("want *Error, got %T %v", err, err)
	}
	if te.Kind != KindStatus || te.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected error %+v", te)
	}
	if !strings.Contains(string(te.Body), "not found") {
		t.Fatalf("body snippet missing: %q", te.Body)
	}
}

func TestExecuteBodyLimit(t *testing.T) {
	srv, _ := newServer(t, http.StatusOK, "application/json", strings.Repeat("x", 64))
	x, _ := NewHTTPExecutor(srv.URL, nil)
	x.MaxResponseBodyBytes = 16

	_, err := x.Execute(context.Background(), Request{Path: "certificates"})
	var te *Error
	if !errors.As(err, &te) || te.Kind != KindNetwork {
		t.Fatalf("want network error on oversized body, got %v", err)
	}
}

func TestExecuteNetworkError(t *testing.T) {
	doer := doerFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	x, _ := NewHTTPExecutor("http://certs.invalid", doer)

	_, err := x.Execute(context.Background(), Request{Path: "certificates"})
	var te *Error
	if !errors.As(err, &te) || te.Kind != KindNetwork {
		t.Fatalf("want network error, got %v", err)
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("cause not preserved: %v", err)
	}
}

func TestNewHTTPExecutorRejectsRelativeBase(t *testing.T) {
	if _, err := NewHTTPExecutor("/api", nil); err == nil {
		t.Fatalf("expected error for relative base url")
	}
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(r *http.Request) (*http.Response, error) { return f(r) }
