package certsync

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
)

func mustMint(t *testing.T, s string) MintResponse {
	t.Helper()
	var r MintResponse
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		t.Fatalf("unmarshal %s: %v", s, err)
	}
	return r
}

func TestMintOutcome(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		updated bool
		tx      string
	}{
		{"with certificate", `{"certificate":{"minting":{"tx":"0x1"}},"txData":{"nonce":1}}`, true, `{"nonce":1}`},
		{"absent certificate", `{"txData":{"nonce":2}}`, false, `{"nonce":2}`},
		{"null certificate", `{"certificate":null}`, false, ""},
		{"empty certificate", `{"certificate":{},"txData":null}`, false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			switch o := mustMint(t, tc.body).Outcome().(type) {
			case CertificateUpdated:
				if !tc.updated {
					t.Fatalf("got CertificateUpdated, want NoCertificateReturned")
				}
				if string(o.TxData) != tc.tx {
					t.Fatalf("txData = %s", o.TxData)
				}
			case NoCertificateReturned:
				if tc.updated {
					t.Fatalf("got NoCertificateReturned, want CertificateUpdated")
				}
				if string(o.TxData) != tc.tx {
					t.Fatalf("txData = %s", o.TxData)
				}
				if tc.tx == "" && o.TxData != nil {
					t.Fatalf("txData should be nil, got %s", o.TxData)
				}
			default:
				t.Fatalf("unexpected outcome %T", o)
			}
		})
	}
}

func TestReconcileMint_MergesIntoCachedCurrent(t *testing.T) {
	cached := mustCert(t, `{"id":"A","owner":"bob"}`)
	prior := Snapshot{}.withCurrent(&cached)

	res := mustMint(t, `{"certificate":{"minting":{"tx":"0x1"}},"txData":{"nonce":1}}`)
	next, err := reconcileMint(prior, MintArgs{ID: "A"}, res)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	got := next.Current
	if got.ID != "A" {
		t.Fatalf("id = %q", got.ID)
	}
	if owner, _ := got.StringAttr("owner"); owner != "bob" {
		t.Fatalf("owner lost in merge: %+v", got)
	}
	if !got.HasMintingTx() || got.Minting.Tx != "0x1" {
		t.Fatalf("minting = %+v", got.Minting)
	}
	if !next.CurrentMintingStatus {
		t.Fatal("minting status should be true")
	}
	if string(next.MintingTxData) != `{"nonce":1}` {
		t.Fatalf("txData = %s", next.MintingTxData)
	}
	if prior.Current.Minting != nil {
		t.Fatal("prior snapshot mutated")
	}
}

// With nothing cached the base is the response certificate, identity fields
// included. With a cached Current only minting is taken from the response.
// Both branches are pinned here on purpose; the response may well be the more
// complete projection, and changing either branch should break a test.
func TestReconcileMint_NoCachedCurrentUsesResponse(t *testing.T) {
	res := mustMint(t, `{"certificate":{"id":"B","owner":"eve","minting":{"tx":"0x9"}}}`)
	next, err := reconcileMint(Snapshot{}, MintArgs{ID: "B"}, res)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if next.Current == nil || next.Current.ID != "B" {
		t.Fatalf("current = %+v", next.Current)
	}
	if owner, _ := next.Current.StringAttr("owner"); owner != "eve" {
		t.Fatalf("owner = %q", owner)
	}
	if !next.CurrentMintingStatus {
		t.Fatal("minting status should be true")
	}
	if next.MintingTxData != nil {
		t.Fatalf("txData should be cleared, got %s", next.MintingTxData)
	}
}

func TestReconcileMint_ReplacesOnlyMinting(t *testing.T) {
	cached := mustCert(t, `{"id":"A","owner":"bob","minting":{"tx":"0xold","status":"done"}}`)
	prior := Snapshot{MintingTxData: []byte(`{"old":true}`)}.withCurrent(&cached)

	// the mint response echoes a different owner; only minting is taken
	res := mustMint(t, `{"certificate":{"id":"A","owner":"mallory","minting":{"status":"queued"}}}`)
	next, err := reconcileMint(prior, MintArgs{ID: "A"}, res)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if owner, _ := next.Current.StringAttr("owner"); owner != "bob" {
		t.Fatalf("owner = %q", owner)
	}
	if next.Current.HasMintingTx() || next.CurrentMintingStatus {
		t.Fatalf("minting without tx must clear status: %+v", next.Current.Minting)
	}
	if string(next.Current.Minting.Attrs["status"]) != `"queued"` {
		t.Fatalf("minting not replaced: %+v", next.Current.Minting)
	}
	if next.MintingTxData != nil {
		t.Fatalf("txData = %s", next.MintingTxData)
	}
}

func TestReconcileMint_NoCertificateSkips(t *testing.T) {
	cached := mustCert(t, `{"id":"A","minting":{"tx":"0x1"}}`)
	prior := Snapshot{}.withCurrent(&cached)

	next, err := reconcileMint(prior, MintArgs{ID: "A"}, mustMint(t, `{"txData":{"nonce":7}}`))
	var skipped *ReconciliationSkipped
	if !errors.As(err, &skipped) || skipped.Op != opMint {
		t.Fatalf("err = %v", err)
	}
	if next.Current != prior.Current || !next.CurrentMintingStatus {
		t.Fatal("current must be left alone")
	}
	if string(next.MintingTxData) != `{"nonce":7}` {
		t.Fatalf("txData = %s", next.MintingTxData)
	}

	prior = next
	next, err = reconcileMint(prior, MintArgs{ID: "A"}, mustMint(t, `{"certificate":null}`))
	if !isSkipped(err) {
		t.Fatalf("err = %v", err)
	}
	if string(next.MintingTxData) != `{"nonce":7}` {
		t.Fatalf("absent txData must keep previous value, got %s", next.MintingTxData)
	}
}

func TestCompleteReplacesCurrent(t *testing.T) {
	cached := mustCert(t, `{"id":"A","owner":"bob","minting":{"tx":"0x1"}}`)
	prior := Snapshot{}.withCurrent(&cached)

	next, err := completeEndpoint.reconcile(prior, CompleteArgs{ID: "A"}, mustCert(t, `{"id":"A","owner":"bob","status":"complete"}`))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if got := mustJSON(t, next.Current); got != `{"id":"A","owner":"bob","status":"complete"}` {
		t.Fatalf("complete must replace, not merge: %s", got)
	}
	if next.CurrentMintingStatus {
		t.Fatal("status must be recomputed from the new certificate")
	}
}

func TestFindSetsCurrentAndListReplaces(t *testing.T) {
	next, _ := findEndpoint.reconcile(Snapshot{}, FindArgs{ID: "A"}, mustCert(t, `{"id":"A","minting":{"tx":"0x1"}}`))
	if next.Current.ID != "A" || !next.CurrentMintingStatus {
		t.Fatalf("find: %+v", next)
	}

	prior := Snapshot{List: []Certificate{{ID: "old1"}, {ID: "old2"}}}
	next, _ = listEndpoint.reconcile(prior, ListArgs{Username: "bob"}, []Certificate{{ID: "new"}})
	if len(next.List) != 1 || next.List[0].ID != "new" {
		t.Fatalf("list = %+v", next.List)
	}
	next, _ = listEndpoint.reconcile(next, ListArgs{Username: "bob"}, []Certificate{})
	if next.List == nil || len(next.List) != 0 {
		t.Fatalf("empty result must replace with empty list, got %+v", next.List)
	}
}

func TestEndpointRequests(t *testing.T) {
	r := listEndpoint.request(ListArgs{Username: "bob", Locale: "es"})
	if r.Method != http.MethodGet || r.Path != "certificates" || r.Query["username"] != "bob" || r.Headers[headerLanguage] != "es" {
		t.Fatalf("list request = %+v", r)
	}

	r = findEndpoint.request(FindArgs{ID: "a/b"})
	if r.Path != "certificates/a%2Fb" {
		t.Fatalf("find path = %q", r.Path)
	}

	r = mintEndpoint.request(MintArgs{ID: "A", Address: "0xabc", Signature: "sig"})
	body, _ := r.Body.(map[string]string)
	if r.Method != http.MethodPost || body["certificateId"] != "A" || body["receiver"] != "0xabc" || body["signature"] != "sig" {
		t.Fatalf("mint request = %+v", r)
	}

	r = completeEndpoint.request(CompleteArgs{ID: "A"})
	body, _ = r.Body.(map[string]string)
	if r.Path != "certificates/complete" || body["certificateId"] != "A" {
		t.Fatalf("complete request = %+v", r)
	}
}

func TestRequestKeys(t *testing.T) {
	a := keyFor(findEndpoint, FindArgs{ID: "A", Locale: "es"})
	b := keyFor(findEndpoint, FindArgs{ID: "A", Locale: "es", ForceRefetch: true})
	if a != b {
		t.Fatalf("ForceRefetch must not change the key: %q vs %q", a, b)
	}
	if got := keyFor(findEndpoint, FindArgs{ID: "A"}); got != `findCertificate({"id":"A"})` {
		t.Fatalf("key = %q", got)
	}
	if keyFor(findEndpoint, FindArgs{ID: "A", Locale: "en"}) == a {
		t.Fatal("locale must be part of the key")
	}
}

func TestValidation(t *testing.T) {
	errs := []error{
		listEndpoint.validate(ListArgs{Username: "  "}),
		findEndpoint.validate(FindArgs{}),
		completeEndpoint.validate(CompleteArgs{}),
		mintEndpoint.validate(MintArgs{ID: "A", Address: "0x1"}),
	}
	for i, err := range errs {
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("case %d: err = %v", i, err)
		}
	}
}
