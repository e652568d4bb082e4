package certsync

import "encoding/json"

// MintResponse is the raw payload of a mint call.
type MintResponse struct {
	Certificate *Certificate    `json:"certificate,omitempty"`
	TxData      json.RawMessage `json:"txData,omitempty"`
}

// MintOutcome is CertificateUpdated or NoCertificateReturned.
type MintOutcome interface {
	mintOutcome()
}

// CertificateUpdated: the response carried a certificate whose minting
// record must be merged into the cached current certificate.
type CertificateUpdated struct {
	Certificate Certificate
	TxData      json.RawMessage // nil when absent
}

// NoCertificateReturned: certificate was absent, null or an empty object.
type NoCertificateReturned struct {
	TxData json.RawMessage // nil when absent
}

func (CertificateUpdated) mintOutcome()    {}
func (NoCertificateReturned) mintOutcome() {}

// Outcome classifies the response.
func (r MintResponse) Outcome() MintOutcome {
	var tx json.RawMessage
	if present(r.TxData) {
		tx = r.TxData
	}
	if r.Certificate.IsZero() {
		return NoCertificateReturned{TxData: tx}
	}
	return CertificateUpdated{Certificate: *r.Certificate, TxData: tx}
}

func (r MintResponse) clone() MintResponse {
	out := MintResponse{TxData: cloneRaw(r.TxData)}
	if r.Certificate != nil {
		c := r.Certificate.Clone()
		out.Certificate = &c
	}
	return out
}

// mergeMinting starts from the cached certificate when there is one and from
// the returned certificate otherwise, then replaces exactly Minting with the
// returned one. Both branches are intentional: the cached projection is
// usually richer than what the mint endpoint echoes back.
func mergeMinting(cached *Certificate, returned Certificate) *Certificate {
	base := returned.Clone()
	if cached != nil {
		base = cached.Clone()
	}
	base.Minting = nil
	if returned.Minting != nil {
		m := returned.Minting.Clone()
		base.Minting = &m
	}
	return &base
}
