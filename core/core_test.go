package plisp

import (
	"net"
	"path/filepath"
	"testing"
	"time"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SockPath = filepath.Join(t.TempDir(), "plisp.sock")
	return cfg
}

func startServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	s, err := NewServer(cfg)
	if err != nil {
		t.Fatal(err)
	}
	go s.Run()
	t.Cleanup(s.Shutdown)
	return s
}

func dial(t *testing.T, s *Server) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("unix", s.cfg.SockPath, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn net.Conn, msg map[string]any) map[string]any {
	t.Helper()
	msg["id"] = NextID()
	if err := WriteMsg(conn, msg); err != nil {
		t.Fatal(err)
	}
	resp, err := ReadMsg(conn)
	if err != nil {
		t.Fatal(err)
	}
	if resp["id"] != msg["id"] {
		t.Fatalf("expected id %v, got %v", msg["id"], resp["id"])
	}
	return resp
}

func TestServerEval(t *testing.T) {
	s := startServer(t, testConfig(t))
	conn := dial(t, s)

	resp := roundTrip(t, conn, map[string]any{"op": "eval", "source": "(cons 'a '(b))"})
	if resp["ok"] != true {
		t.Fatalf("eval failed: %v", resp)
	}
	v := resp["value"].(map[string]any)
	if v["result"] != "(a b)" || v["cached"] != false {
		t.Fatalf("unexpected value %v", v)
	}
	if v["hash"] != HashSource("(cons 'a '(b))") {
		t.Fatalf("unexpected hash %v", v["hash"])
	}

	resp = roundTrip(t, conn, map[string]any{"op": "eval", "source": "(cons 'a '(b))"})
	if v := resp["value"].(map[string]any); v["cached"] != true || v["result"] != "(a b)" {
		t.Fatalf("expected cached result, got %v", v)
	}
}

func TestServerEvalError(t *testing.T) {
	s := startServer(t, testConfig(t))
	conn := dial(t, s)

	resp := roundTrip(t, conn, map[string]any{"op": "eval", "source": "(car x)"})
	if resp["ok"] != false || resp["kind"] != "AtomNotFound" {
		t.Fatalf("expected AtomNotFound, got %v", resp)
	}
	if resp["error"] != "1:5 Atom 'x' not in environment." {
		t.Fatalf("unexpected error %v", resp["error"])
	}

	resp = roundTrip(t, conn, map[string]any{"op": "eval", "source": "(car"})
	if resp["kind"] != "UnbalancedOpeningParenthesis" {
		t.Fatalf("expected parse error, got %v", resp)
	}

	resp = roundTrip(t, conn, map[string]any{"op": "eval"})
	if resp["ok"] != false {
		t.Fatalf("expected missing source to fail, got %v", resp)
	}
}

func TestServerManualAndUnknownOp(t *testing.T) {
	s := startServer(t, testConfig(t))
	conn := dial(t, s)

	resp := roundTrip(t, conn, map[string]any{})
	v, ok := resp["value"].(map[string]any)
	if resp["ok"] != true || !ok || v["name"] != "plispd" {
		t.Fatalf("unexpected manual %v", resp)
	}
	if prims := v["primitives"].([]any); len(prims) != 7 {
		t.Fatalf("expected 7 primitives, got %v", prims)
	}
	kinds := map[any]bool{}
	for _, k := range v["error_kinds"].([]any) {
		kinds[k] = true
	}
	for _, k := range []string{"EmptyProgram", "DanglingAtom", "Interrupted", "IllegalForm", "internal"} {
		if !kinds[k] {
			t.Fatalf("manual does not list error kind %s: %v", k, v["error_kinds"])
		}
	}

	resp = roundTrip(t, conn, map[string]any{"op": "frobnicate"})
	if resp["ok"] != false || resp["error"] != "unknown op: frobnicate" {
		t.Fatalf("unexpected response %v", resp)
	}
}

func TestServerParseAndAnalyze(t *testing.T) {
	s := startServer(t, testConfig(t))
	conn := dial(t, s)

	resp := roundTrip(t, conn, map[string]any{"op": "parse", "source": "'(a . (b))"})
	if resp["value"] != "(quote (a b))" {
		t.Fatalf("unexpected parse %v", resp)
	}

	resp = roundTrip(t, conn, map[string]any{"op": "analyze", "source": "(car '(a))"})
	if resp["ok"] != true || resp["value"] != "ok" {
		t.Fatalf("unexpected analyze %v", resp)
	}
	resp = roundTrip(t, conn, map[string]any{"op": "analyze", "source": "(cons 'a)"})
	if resp["ok"] != false || resp["kind"] != "PrototypeMismatch" {
		t.Fatalf("expected PrototypeMismatch, got %v", resp)
	}
}

func TestServerTracesCapAndClear(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxTraces = 3
	s := startServer(t, cfg)
	conn := dial(t, s)

	for _, src := range []string{"'a", "'b", "'c", "'d", "x"} {
		roundTrip(t, conn, map[string]any{"op": "eval", "source": src})
	}

	resp := roundTrip(t, conn, map[string]any{"op": "traces"})
	traces := resp["value"].([]any)
	if len(traces) != 3 {
		t.Fatalf("expected 3 traces, got %d", len(traces))
	}
	first := traces[0].(map[string]any)
	last := traces[2].(map[string]any)
	if first["source"] != "'c" || last["source"] != "x" || last["kind"] != "AtomNotFound" {
		t.Fatalf("unexpected traces %v", traces)
	}

	resp = roundTrip(t, conn, map[string]any{"op": "traces", "limit": 1})
	if traces := resp["value"].([]any); len(traces) != 1 || traces[0].(map[string]any)["source"] != "x" {
		t.Fatalf("unexpected limited traces %v", resp["value"])
	}

	roundTrip(t, conn, map[string]any{"op": "clear"})
	resp = roundTrip(t, conn, map[string]any{"op": "traces"})
	if traces := resp["value"].([]any); len(traces) != 0 {
		t.Fatalf("expected no traces after clear, got %v", traces)
	}
	resp = roundTrip(t, conn, map[string]any{"op": "eval", "source": "'a"})
	if resp["value"].(map[string]any)["cached"] != false {
		t.Fatal("clear must drop cached results")
	}
}

func TestServerHistory(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dir = t.TempDir()
	s := startServer(t, cfg)
	conn := dial(t, s)

	roundTrip(t, conn, map[string]any{"op": "eval", "source": "'a"})
	roundTrip(t, conn, map[string]any{"op": "parse", "source": "(b c)"})
	roundTrip(t, conn, map[string]any{"op": "clear"})

	resp := roundTrip(t, conn, map[string]any{"op": "history"})
	if resp["ok"] != true {
		t.Fatalf("history failed: %v", resp)
	}
	traces := resp["value"].([]any)
	if len(traces) != 2 {
		t.Fatalf("expected persisted traces to survive clear, got %v", traces)
	}
	if traces[1].(map[string]any)["op"] != "parse" {
		t.Fatalf("expected oldest first, got %v", traces)
	}
}

func TestServerHistoryWithoutStore(t *testing.T) {
	s := startServer(t, testConfig(t))
	resp := s.sendToActor(map[string]any{"id": "h", "op": "history"})
	if resp["ok"] != false {
		t.Fatalf("expected history to fail without a database, got %v", resp)
	}
}

func TestServerDepthLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxDepth = 100
	s := startServer(t, cfg)
	conn := dial(t, s)

	resp := roundTrip(t, conn, map[string]any{"op": "eval", "source": "((label f (lambda (x) (f x))) (f 'a))"})
	if resp["kind"] != "DepthExceeded" {
		t.Fatalf("expected DepthExceeded, got %v", resp)
	}
}

func TestServerCacheEviction(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxCache = 2
	s, err := NewServer(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Shutdown()

	for _, src := range []string{"'a", "'b", "'c"} {
		s.handleRequest(map[string]any{"op": "eval", "source": src})
	}
	if len(s.cache) != 2 {
		t.Fatalf("expected 2 cached results, got %d", len(s.cache))
	}
	if _, ok := s.cache[HashSource("'a")]; ok {
		t.Fatal("oldest result must be evicted")
	}
}

func TestServerShutdownTwice(t *testing.T) {
	s, err := NewServer(testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	s.Shutdown()
	s.Shutdown()
}

func TestServerEvalTimeout(t *testing.T) {
	cfg := testConfig(t)
	cfg.EvalTimeout = 50 * time.Millisecond
	s := startServer(t, cfg)
	conn := dial(t, s)

	resp := roundTrip(t, conn, map[string]any{"op": "eval", "source": treeRecursion(60)})
	if resp["ok"] != false || resp["kind"] != "Interrupted" {
		t.Fatalf("expected Interrupted, got %v", resp)
	}

	resp = roundTrip(t, conn, map[string]any{"op": "eval", "source": "'a"})
	if resp["ok"] != true {
		t.Fatalf("server must keep serving after an interrupted eval, got %v", resp)
	}
}

func TestServerShutdownWaitsForActor(t *testing.T) {
	cfg := testConfig(t)
	cfg.Dir = t.TempDir()
	cfg.EvalTimeout = 300 * time.Millisecond
	s, err := NewServer(cfg)
	if err != nil {
		t.Fatal(err)
	}
	go s.Run()

	done := make(chan map[string]any, 1)
	go func() {
		done <- s.sendToActor(map[string]any{"id": "slow", "op": "eval", "source": treeRecursion(60)})
	}()
	time.Sleep(100 * time.Millisecond)
	s.Shutdown()
	<-done

	store, err := OpenTraceStore(cfg.Dir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	traces, err := store.Recent(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(traces) != 1 || traces[0].Kind != "Interrupted" {
		t.Fatalf("expected the in-flight eval to be stored, got %+v", traces)
	}
}
