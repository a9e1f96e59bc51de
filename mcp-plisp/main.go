package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	plisp "github.com/emanuelpalm/plisp/core"
)

// daemon is a connection to plispd shared by all tool calls.
type daemon struct {
	conn net.Conn
	mu   sync.Mutex
}

// send sends a request to plispd and returns the response.
func (d *daemon) send(req map[string]any) (map[string]any, error) {
	req["id"] = plisp.NextID()
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := plisp.WriteMsg(d.conn, req); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	resp, err := plisp.ReadMsg(d.conn)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return resp, nil
}

// formatResult turns a plispd response into an MCP tool result.
func formatResult(resp map[string]any) (*mcp.CallToolResult, error) {
	ok, _ := resp["ok"].(bool)
	if !ok {
		errMsg, _ := resp["error"].(string)
		if errMsg == "" {
			errMsg = "unknown error"
		}
		if kind, _ := resp["kind"].(string); kind != "" {
			errMsg = kind + ": " + errMsg
		}
		return mcp.NewToolResultError(errMsg), nil
	}
	if s, isString := resp["value"].(string); isString {
		return mcp.NewToolResultText(s), nil
	}
	out, err := json.MarshalIndent(resp["value"], "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

// sourceHandler forwards the "source" argument to op.
func (d *daemon) sourceHandler(op string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		src, err := request.RequireString("source")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		resp, err := d.send(map[string]any{"op": op, "source": src})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return formatResult(resp)
	}
}

func (d *daemon) handleTraces(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := map[string]any{"op": "traces"}
	if limit := request.GetInt("limit", 0); limit > 0 {
		req["limit"] = limit
	}
	if request.GetBool("persisted", false) {
		req["op"] = "history"
	}
	resp, err := d.send(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return formatResult(resp)
}

func (d *daemon) handleClear(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := d.send(map[string]any{"op": "clear"})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return formatResult(resp)
}

func sourceParam() mcp.ToolOption {
	return mcp.WithString("source",
		mcp.Required(),
		mcp.Description("Exactly one s-expression, e.g. ((label cadr (lambda (x) (car (cdr x)))) (cadr '(a b c)))"),
	)
}

func main() {
	sockPath := os.Getenv("PLISP_SOCK")
	if sockPath == "" {
		sockPath = "/tmp/plisp.sock"
	}

	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		log.Fatalf("connect to %s: %v", sockPath, err)
	}
	defer conn.Close()
	log.Printf("connected to plispd: %s", sockPath)
	d := &daemon{conn: conn}

	s := server.NewMCPServer(
		"plisp",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.AddTool(
		mcp.NewTool("plisp_eval",
			mcp.WithDescription("Evaluate a Lisp expression built from quote, atom, eq, car, cdr, cons, cond, lambda and label. Returns the printed result. Failures are prefixed with their kind, e.g. AtomNotFound, CondExhausted, DepthExceeded, Interrupted or one of the parse kinds (UnbalancedOpeningParenthesis, UnbalancedClosingParenthesis, DanglingQuote, DanglingAtom, EmptyProgram)."),
			sourceParam(),
		),
		d.sourceHandler("eval"),
	)

	s.AddTool(
		mcp.NewTool("plisp_parse",
			mcp.WithDescription("Parse an expression without evaluating it and print it back in canonical form. Failures are prefixed with UnbalancedOpeningParenthesis, UnbalancedClosingParenthesis, DanglingQuote, DanglingAtom or EmptyProgram."),
			sourceParam(),
		),
		d.sourceHandler("parse"),
	)

	s.AddTool(
		mcp.NewTool("plisp_analyze",
			mcp.WithDescription("Check that every atom is defined and every call passes the right number of arguments, without evaluating. Failures are prefixed with NotDefined, PrototypeMismatch, LambdaMisuse, IllegalForm or a parse kind."),
			sourceParam(),
		),
		d.sourceHandler("analyze"),
	)

	s.AddTool(
		mcp.NewTool("plisp_traces",
			mcp.WithDescription("List recent requests with their results or errors, oldest first."),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of traces to return"),
			),
			mcp.WithBoolean("persisted",
				mcp.Description("If true, read from the trace database instead of memory"),
			),
		),
		d.handleTraces,
	)

	s.AddTool(
		mcp.NewTool("plisp_clear",
			mcp.WithDescription("Forget in-memory traces and cached results."),
		),
		d.handleClear,
	)

	if err := server.ServeStdio(s); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
