package main

import (
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func resultText(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	if len(r.Content) != 1 {
		t.Fatalf("expected one content item, got %d", len(r.Content))
	}
	text, ok := r.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", r.Content[0])
	}
	return text.Text
}

func TestFormatResult(t *testing.T) {
	r, err := formatResult(map[string]any{"ok": true, "value": "(quote a)"})
	if err != nil {
		t.Fatal(err)
	}
	if r.IsError || resultText(t, r) != "(quote a)" {
		t.Fatalf("unexpected result %+v", r)
	}

	r, err = formatResult(map[string]any{"ok": true, "value": map[string]any{"result": "a"}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resultText(t, r), `"result": "a"`) {
		t.Fatalf("expected indented JSON, got %q", resultText(t, r))
	}

	r, err = formatResult(map[string]any{"ok": false, "error": "1:0 Atom 'x' not in environment.", "kind": "AtomNotFound"})
	if err != nil {
		t.Fatal(err)
	}
	if !r.IsError || resultText(t, r) != "AtomNotFound: 1:0 Atom 'x' not in environment." {
		t.Fatalf("unexpected error result %+v", r)
	}

	r, _ = formatResult(map[string]any{"ok": false})
	if resultText(t, r) != "unknown error" {
		t.Fatalf("unexpected fallback %q", resultText(t, r))
	}
}
