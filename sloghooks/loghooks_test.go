package sloghooks

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func newLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestRedactsKeysByDefault(t *testing.T) {
	var buf bytes.Buffer
	h := New(newLogger(&buf), Options{})

	key := `mint({"address":"0xabc","id":"A","signature":"secret"})`
	h.RequestStarted("mint", key)

	recs := decodeLines(t, &buf)
	if len(recs) != 1 {
		t.Fatalf("records = %d", len(recs))
	}
	got, _ := recs[0]["key"].(string)
	if got == key || strings.Contains(got, "secret") || len(got) != 16 {
		t.Fatalf("key not redacted: %q", got)
	}
}

func TestCustomRedactAndFailureLevel(t *testing.T) {
	var buf bytes.Buffer
	h := New(newLogger(&buf), Options{Redact: func(s string) string { return "K" }})

	h.RequestSettled("findCertificate", "k", time.Second, nil) // LogSettled off
	h.RequestSettled("findCertificate", "k", time.Second, errors.New("boom"))

	recs := decodeLines(t, &buf)
	if len(recs) != 1 {
		t.Fatalf("records = %v", recs)
	}
	if recs[0]["level"] != "WARN" || recs[0]["key"] != "K" || recs[0]["err"] != "boom" {
		t.Fatalf("record = %v", recs[0])
	}
}

func TestSelfHealSampling(t *testing.T) {
	var buf bytes.Buffer
	h := New(newLogger(&buf), Options{SelfHealEvery: 3})

	for i := 0; i < 9; i++ {
		h.ResultSelfHeal("sk", "expired")
	}
	if n := len(decodeLines(t, &buf)); n != 3 {
		t.Fatalf("sampled records = %d, want 3", n)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	h := New(nil, Options{})
	h.GenBumpError("certificates", errors.New("down"))
	h.ProviderSetRejected("sk")
}
