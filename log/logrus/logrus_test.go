package logrus

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/unkn0wn-root/certsync"
)

func TestLoggerForwardsFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	l := New(base)

	l.Debug("request started", certsync.Fields{"op": "mint"})
	e := hook.LastEntry()
	if e == nil || e.Level != logrus.DebugLevel || e.Message != "request started" {
		t.Fatalf("entry = %+v", e)
	}
	if e.Data["op"] != "mint" || e.Data["component"] != "certsync" {
		t.Fatalf("data = %v", e.Data)
	}

	boom := errors.New("boom")
	l.Error("request failed", certsync.Fields{"err": boom})
	e = hook.LastEntry()
	if e.Level != logrus.ErrorLevel || e.Data[logrus.ErrorKey] != boom {
		t.Fatalf("entry = %+v", e)
	}

	l.Warn("bare", nil)
	if n := len(hook.AllEntries()); n != 3 {
		t.Fatalf("entries = %d", n)
	}
}
