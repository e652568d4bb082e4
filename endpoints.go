package certsync

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/unkn0wn-root/certsync/transport"
)

const (
	opList     = "fetchAllCertificates"
	opFind     = "findCertificate"
	opComplete = "complete"
	opMint     = "mint"

	tagList = "certificates"

	headerLanguage = "Accept-Language"
)

func certificateTag(id string) string { return "certificate:" + id }

type opKind uint8

const (
	kindQuery opKind = iota
	kindMutation
)

// endpoint describes one operation: how to key, build and reconcile it.
type endpoint[A, R any] struct {
	name     string
	kind     opKind
	validate func(A) error
	keyArgs  func(A) map[string]string
	request  func(A) transport.Request
	clone    func(R) R

	// queries: tag the result is cached under, and whether to skip the cache
	tag   func(A) string
	force func(A) bool

	// mutations: tags bumped after success
	invalidates func(A) []string

	reconcile func(prior Snapshot, args A, payload R) (Snapshot, error)
}

// ListArgs selects the certificates of one user.
type ListArgs struct {
	Username string
	Locale   string // Accept-Language hint; empty means server default
	// ForceRefetch bypasses the result cache read. The response is still
	// cached.
	ForceRefetch bool
}

// FindArgs selects a single certificate.
type FindArgs struct {
	ID           string
	Locale       string
	ForceRefetch bool
}

type CompleteArgs struct {
	ID string
}

type MintArgs struct {
	ID        string
	Address   string // receiver wallet
	Signature string
}

var listEndpoint = endpoint[ListArgs, []Certificate]{
	name: opList,
	kind: kindQuery,
	validate: func(a ListArgs) error {
		if strings.TrimSpace(a.Username) == "" {
			return invalidArg(opList, "username")
		}
		return nil
	},
	keyArgs: func(a ListArgs) map[string]string {
		return map[string]string{"username": a.Username, "locale": a.Locale}
	},
	request: func(a ListArgs) transport.Request {
		return transport.Request{
			Method:  http.MethodGet,
			Path:    "certificates",
			Query:   map[string]string{"username": a.Username},
			Headers: map[string]string{headerLanguage: a.Locale},
		}
	},
	clone: cloneList,
	tag:   func(ListArgs) string { return tagList },
	force: func(a ListArgs) bool { return a.ForceRefetch },
	reconcile: func(prior Snapshot, _ ListArgs, list []Certificate) (Snapshot, error) {
		next := prior
		next.List = list
		return next, nil
	},
}

var findEndpoint = endpoint[FindArgs, Certificate]{
	name: opFind,
	kind: kindQuery,
	validate: func(a FindArgs) error {
		if strings.TrimSpace(a.ID) == "" {
			return invalidArg(opFind, "id")
		}
		return nil
	},
	keyArgs: func(a FindArgs) map[string]string {
		return map[string]string{"id": a.ID, "locale": a.Locale}
	},
	request: func(a FindArgs) transport.Request {
		return transport.Request{
			Method:  http.MethodGet,
			Path:    "certificates/" + url.PathEscape(a.ID),
			Headers: map[string]string{headerLanguage: a.Locale},
		}
	},
	clone: Certificate.Clone,
	tag:   func(a FindArgs) string { return certificateTag(a.ID) },
	force: func(a FindArgs) bool { return a.ForceRefetch },
	reconcile: func(prior Snapshot, _ FindArgs, c Certificate) (Snapshot, error) {
		return prior.withCurrent(&c), nil
	},
}

// completeEndpoint treats the response as the whole certificate: Current is
// replaced, never merged.
var completeEndpoint = endpoint[CompleteArgs, Certificate]{
	name: opComplete,
	kind: kindMutation,
	validate: func(a CompleteArgs) error {
		if strings.TrimSpace(a.ID) == "" {
			return invalidArg(opComplete, "id")
		}
		return nil
	},
	keyArgs: func(a CompleteArgs) map[string]string {
		return map[string]string{"id": a.ID}
	},
	request: func(a CompleteArgs) transport.Request {
		return transport.Request{
			Method: http.MethodPost,
			Path:   "certificates/complete",
			Body:   map[string]string{"certificateId": a.ID},
		}
	},
	clone:       Certificate.Clone,
	invalidates: func(a CompleteArgs) []string { return []string{certificateTag(a.ID), tagList} },
	reconcile: func(prior Snapshot, _ CompleteArgs, c Certificate) (Snapshot, error) {
		return prior.withCurrent(&c), nil
	},
}

var mintEndpoint = endpoint[MintArgs, MintResponse]{
	name: opMint,
	kind: kindMutation,
	validate: func(a MintArgs) error {
		switch {
		case strings.TrimSpace(a.ID) == "":
			return invalidArg(opMint, "id")
		case strings.TrimSpace(a.Address) == "":
			return invalidArg(opMint, "address")
		case strings.TrimSpace(a.Signature) == "":
			return invalidArg(opMint, "signature")
		}
		return nil
	},
	keyArgs: func(a MintArgs) map[string]string {
		return map[string]string{"id": a.ID, "address": a.Address, "signature": a.Signature}
	},
	request: func(a MintArgs) transport.Request {
		return transport.Request{
			Method: http.MethodPost,
			Path:   "certificates/mint",
			Body: map[string]string{
				"certificateId": a.ID,
				"receiver":      a.Address,
				"signature":     a.Signature,
			},
		}
	},
	clone:       MintResponse.clone,
	invalidates: func(a MintArgs) []string { return []string{certificateTag(a.ID), tagList} },
	reconcile:   reconcileMint,
}

func reconcileMint(prior Snapshot, _ MintArgs, res MintResponse) (Snapshot, error) {
	switch o := res.Outcome().(type) {
	case CertificateUpdated:
		next := prior.withCurrent(mergeMinting(prior.Current, o.Certificate))
		next.MintingTxData = o.TxData
		return next, nil
	case NoCertificateReturned:
		next := prior
		if o.TxData != nil {
			next.MintingTxData = o.TxData
		}
		return next, &ReconciliationSkipped{Op: opMint, Reason: "response carried no certificate"}
	default:
		return prior, &ReconciliationSkipped{Op: opMint, Reason: "unknown outcome"}
	}
}
