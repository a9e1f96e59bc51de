package plisp

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestTraceToMap(t *testing.T) {
	tr := &Trace{
		Op:        "eval",
		Source:    "(car '(a b))",
		Hash:      HashSource("(car '(a b))"),
		Result:    "a",
		Timestamp: time.Date(2026, 2, 27, 20, 0, 0, 0, time.UTC),
		Duration:  1500 * time.Microsecond,
	}

	m := tr.ToMap()
	if m["op"] != "eval" || m["source"] != "(car '(a b))" {
		t.Fatalf("unexpected op/source: %v", m)
	}
	if m["result"] != "a" {
		t.Fatalf("result mismatch: %v", m["result"])
	}
	if _, ok := m["error"]; ok {
		t.Fatal("successful trace must not carry an error")
	}
	if m["timestamp"] != "2026-02-27T20:00:00Z" {
		t.Fatalf("timestamp mismatch: %v", m["timestamp"])
	}
	if m["duration_us"] != int64(1500) {
		t.Fatalf("duration mismatch: %v", m["duration_us"])
	}
	if m["cached"] != false {
		t.Fatalf("cached mismatch: %v", m["cached"])
	}
}

func TestTraceToMapError(t *testing.T) {
	tr := &Trace{Op: "eval", Source: "x", Error: "1:0 Atom 'x' not in environment.", Kind: "AtomNotFound"}
	m := tr.ToMap()
	if m["error"] != tr.Error || m["kind"] != "AtomNotFound" {
		t.Fatalf("unexpected error fields: %v", m)
	}
	if _, ok := m["result"]; ok {
		t.Fatal("failed trace must not carry a result")
	}
}

func TestHashSource(t *testing.T) {
	a := HashSource("(cons 'a 'b)")
	if a != HashSource("(cons 'a 'b)") {
		t.Fatal("hash must be deterministic")
	}
	if a == HashSource("(cons 'a 'c)") {
		t.Fatal("different sources must hash differently")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex digits, got %d", len(a))
	}
}

func TestErrorKind(t *testing.T) {
	_, perr := Parse("(a")
	_, eerr := EvalString("x")
	aerr := Analyze(mustParse(t, "(cons 'a)"))

	for _, tc := range []struct {
		err  error
		want string
	}{
		{perr, "UnbalancedOpeningParenthesis"},
		{eerr, "AtomNotFound"},
		{aerr, "PrototypeMismatch"},
		{fmt.Errorf("wrapped: %w", eerr), "AtomNotFound"},
		{errors.New("boom"), "internal"},
	} {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Fatalf("ErrorKind(%v): expected %s, got %s", tc.err, tc.want, got)
		}
	}
}

func TestErrorKindsComplete(t *testing.T) {
	kinds := map[string]bool{}
	for _, k := range ErrorKinds() {
		if kinds[k] {
			t.Fatalf("duplicate kind %s", k)
		}
		kinds[k] = true
	}
	if len(kinds) != 5+5+4+1 {
		t.Fatalf("expected 15 kinds, got %v", ErrorKinds())
	}
	for _, k := range []string{"EmptyProgram", "DepthExceeded", "Interrupted", "IllegalForm", "internal"} {
		if !kinds[k] {
			t.Fatalf("missing kind %s", k)
		}
	}
}
