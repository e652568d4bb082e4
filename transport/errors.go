package transport

import (
	"fmt"
	"strings"
)

// Kind classifies a transport failure.
type Kind string

const (
	KindRequest Kind = "request" // the request could not be built
	KindNetwork Kind = "network" // the call did not complete
	KindStatus  Kind = "status"  // the server answered non-2xx
	KindDecode  Kind = "decode"  // the body could not be decoded
)

const maxErrorBody = 512

// Error is the single failure type surfaced to handles. It is never retried.
type Error struct {
	Kind       Kind
	Method     string
	URL        string
	StatusCode int
	Body       []byte // leading bytes of the response body, status errors only
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "transport %s error", e.Kind)
	if e.Method != "" || e.URL != "" {
		fmt.Fprintf(&b, ": %s %s", e.Method, e.URL)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if len(e.Body) > 0 {
		fmt.Fprintf(&b, ": %q", e.Body)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func truncateBody(b []byte) []byte {
	if len(b) > maxErrorBody {
		b = b[:maxErrorBody]
	}
	return append([]byte(nil), b...)
}
