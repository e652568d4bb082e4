package certsync

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Certificate is the remote certificate entity.
//
// Only ID and Minting are interpreted. Every other field (owner, course,
// descriptive metadata) is kept in Attrs exactly as the server sent it, so a
// merge that touches Minting leaves the rest byte-for-byte intact.
type Certificate struct {
	ID      string
	Minting *Minting
	Attrs   map[string]json.RawMessage
}

// Minting is the on-chain minting sub-record. Tx is set once the mint
// transaction exists; other status fields are kept in Attrs.
type Minting struct {
	Tx    string
	Attrs map[string]json.RawMessage
}

// Attr returns the raw JSON of a non-interpreted field.
func (c Certificate) Attr(name string) (json.RawMessage, bool) {
	v, ok := c.Attrs[name]
	return v, ok
}

// StringAttr decodes a string field; ok is false when the field is missing or
// not a JSON string.
func (c Certificate) StringAttr(name string) (string, bool) {
	raw, ok := c.Attrs[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// HasMintingTx reports whether the certificate carries a minting transaction.
func (c *Certificate) HasMintingTx() bool {
	return c != nil && c.Minting != nil && c.Minting.Tx != ""
}

// IsZero reports whether the certificate carries no fields at all, which is
// how an empty `{}` object decodes.
func (c *Certificate) IsZero() bool {
	return c == nil || (c.ID == "" && c.Minting == nil && len(c.Attrs) == 0)
}

// Clone returns a deep copy.
func (c Certificate) Clone() Certificate {
	out := Certificate{ID: c.ID, Attrs: cloneAttrs(c.Attrs)}
	if c.Minting != nil {
		m := c.Minting.Clone()
		out.Minting = &m
	}
	return out
}

func (m Minting) Clone() Minting {
	return Minting{Tx: m.Tx, Attrs: cloneAttrs(m.Attrs)}
}

func (c Certificate) MarshalJSON() ([]byte, error) {
	obj := make(map[string]json.RawMessage, len(c.Attrs)+2)
	for k, v := range c.Attrs {
		obj[k] = v
	}
	if c.ID != "" {
		id, err := json.Marshal(c.ID)
		if err != nil {
			return nil, err
		}
		obj["id"] = id
	}
	if c.Minting != nil {
		m, err := json.Marshal(c.Minting)
		if err != nil {
			return nil, err
		}
		obj["minting"] = m
	}
	return json.Marshal(obj)
}

func (c *Certificate) UnmarshalJSON(b []byte) error {
	obj, err := splitObject(b)
	if err != nil {
		return fmt.Errorf("certificate: %w", err)
	}
	*c = Certificate{}
	if raw, ok := obj["id"]; ok {
		delete(obj, "id")
		if !isNull(raw) {
			if err := json.Unmarshal(raw, &c.ID); err != nil {
				return fmt.Errorf("certificate: id: %w", err)
			}
		}
	}
	if raw, ok := obj["minting"]; ok {
		delete(obj, "minting")
		if !isNull(raw) {
			var m Minting
			if err := json.Unmarshal(raw, &m); err != nil {
				return fmt.Errorf("certificate: minting: %w", err)
			}
			c.Minting = &m
		}
	}
	if len(obj) > 0 {
		c.Attrs = obj
	}
	return nil
}

func (m Minting) MarshalJSON() ([]byte, error) {
	obj := make(map[string]json.RawMessage, len(m.Attrs)+1)
	for k, v := range m.Attrs {
		obj[k] = v
	}
	if m.Tx != "" {
		tx, err := json.Marshal(m.Tx)
		if err != nil {
			return nil, err
		}
		obj["tx"] = tx
	}
	return json.Marshal(obj)
}

func (m *Minting) UnmarshalJSON(b []byte) error {
	obj, err := splitObject(b)
	if err != nil {
		return err
	}
	*m = Minting{}
	if raw, ok := obj["tx"]; ok {
		delete(obj, "tx")
		if !isNull(raw) {
			if err := json.Unmarshal(raw, &m.Tx); err != nil {
				return fmt.Errorf("tx: %w", err)
			}
		}
	}
	if len(obj) > 0 {
		m.Attrs = obj
	}
	return nil
}

func splitObject(b []byte) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		obj = map[string]json.RawMessage{}
	}
	return obj, nil
}

func cloneAttrs(in map[string]json.RawMessage) map[string]json.RawMessage {
	if in == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(in))
	for k, v := range in {
		out[k] = cloneRaw(v)
	}
	return out
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	return append(json.RawMessage(nil), r...)
}

func isNull(r json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(r), []byte("null"))
}

// present reports whether an opaque JSON value was actually sent.
func present(r json.RawMessage) bool {
	return len(bytes.TrimSpace(r)) > 0 && !isNull(r)
}

func cloneList(in []Certificate) []Certificate {
	if in == nil {
		return nil
	}
	out := make([]Certificate, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
