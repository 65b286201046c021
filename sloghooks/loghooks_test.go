package sloghooks

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newBuf() (*bytes.Buffer, *slog.Logger) {
	var buf bytes.Buffer
	return &buf, slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestRedactsKeys(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{})
	h.StoreError("accounts", "get", "entity:42", errors.New("down"))

	out := buf.String()
	if !strings.Contains(out, "segcache.store_error") || !strings.Contains(out, "op=get") {
		t.Fatalf("output = %s", out)
	}
	if strings.Contains(out, "entity:42") {
		t.Fatalf("key leaked: %s", out)
	}
}

func TestCustomRedactor(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{Redact: func(k string) string { return "k=" + k }})
	h.CorruptEntry("accounts", "entity:1")
	if !strings.Contains(buf.String(), "k=entity:1") {
		t.Fatalf("output = %s", buf.String())
	}
}

func TestSampling(t *testing.T) {
	buf, l := newBuf()
	h := New(l, Options{StoreErrorEvery: 5})
	for i := 0; i < 10; i++ {
		h.StoreError("accounts", "set", "entity:1", errors.New("down"))
	}
	if n := strings.Count(buf.String(), "segcache.store_error"); n != 2 {
		t.Fatalf("logged %d of 10, want 2", n)
	}
}

func TestNilLogger(t *testing.T) {
	h := New(nil, Options{})
	h.StoreError("s", "get", "k", nil)
	h.SegmentDisabled("s", errors.New("x"))
	h.CorruptEntry("s", "k")
	h.ProviderSetRejected("s", "k")
	h.PatternUnsupported("s", "*")
}
