package certsync

import (
	"errors"
	"fmt"

	"github.com/unkn0wn-root/certsync/transport"
)

var (
	// ErrInvalidArgument rejects a call before any request is made.
	ErrInvalidArgument = errors.New("certsync: invalid argument")
	// ErrClosed rejects calls on a closed client.
	ErrClosed = errors.New("certsync: client closed")
)

// TransportError is the failure surfaced to handles when a call fails,
// including when a successful body cannot be decoded (Kind == KindDecode).
type TransportError = transport.Error

// ReconciliationSkipped reports that a successful response did not satisfy
// an operation's merge precondition. It is not a failure: the handle still
// resolves with the raw payload and whatever the reconciliation did change
// is committed.
type ReconciliationSkipped struct {
	Op     string
	Reason string
}

func (e *ReconciliationSkipped) Error() string {
	return fmt.Sprintf("certsync: %s reconciliation skipped: %s", e.Op, e.Reason)
}

func isSkipped(err error) bool {
	var s *ReconciliationSkipped
	return errors.As(err, &s)
}

func invalidArg(op, name string) error {
	return fmt.Errorf("%w: %s requires %s", ErrInvalidArgument, op, name)
}
