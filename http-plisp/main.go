package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valyala/fasthttp"

	plisp "github.com/emanuelpalm/plisp/core"
)

const daemonTimeout = 30 * time.Second

// gateway forwards HTTP requests to plispd. Every request gets its own
// daemon connection. Failed requests answer 422 with the daemon's "kind",
// one of the names listed under "error_kinds" by GET /, EmptyProgram
// included.
type gateway struct {
	sockPath string
	timeout  time.Duration
}

func (g *gateway) send(req map[string]any) (map[string]any, error) {
	conn, err := net.DialTimeout("unix", g.sockPath, g.timeout)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(g.timeout))

	req["id"] = plisp.NextID()
	if err := plisp.WriteMsg(conn, req); err != nil {
		return nil, err
	}
	return plisp.ReadMsg(conn)
}

func (g *gateway) handle(ctx *fasthttp.RequestCtx) {
	switch string(ctx.Path()) {
	case "/":
		g.forward(ctx, map[string]any{})
	case "/eval":
		g.forwardSource(ctx, "eval")
	case "/parse":
		g.forwardSource(ctx, "parse")
	case "/analyze":
		g.forwardSource(ctx, "analyze")
	case "/traces":
		req := map[string]any{"op": "traces"}
		if ctx.QueryArgs().GetBool("persisted") {
			req["op"] = "history"
		}
		if limit, err := ctx.QueryArgs().GetUint("limit"); err == nil {
			req["limit"] = limit
		}
		g.forward(ctx, req)
	case "/clear":
		if !ctx.IsPost() {
			ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
			return
		}
		g.forward(ctx, map[string]any{"op": "clear"})
	default:
		ctx.Error("not found", fasthttp.StatusNotFound)
	}
}

// forwardSource sends the request body as the source of op.
func (g *gateway) forwardSource(ctx *fasthttp.RequestCtx, op string) {
	if !ctx.IsPost() {
		ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
		return
	}
	g.forward(ctx, map[string]any{"op": op, "source": string(ctx.PostBody())})
}

func (g *gateway) forward(ctx *fasthttp.RequestCtx, req map[string]any) {
	resp, err := g.send(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			ctx.Error("plispd timeout", fasthttp.StatusGatewayTimeout)
			return
		}
		log.Printf("forward %v: %v", req["op"], err)
		ctx.Error("failed to reach plispd", fasthttp.StatusBadGateway)
		return
	}

	status := fasthttp.StatusOK
	if ok, _ := resp["ok"].(bool); !ok {
		status = fasthttp.StatusUnprocessableEntity
	}
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	if err := json.NewEncoder(ctx).Encode(resp); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	g := &gateway{
		sockPath: envOr("PLISP_SOCK", "/tmp/plisp.sock"),
		timeout:  daemonTimeout,
	}
	addr := envOr("PLISP_HTTP_ADDR", ":8080")

	srv := &fasthttp.Server{
		Handler:      g.handle,
		Name:         "http-plisp",
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutting down...")
		if err := srv.Shutdown(); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("http-plisp listening on %s (plispd: %s)", addr, g.sockPath)
	if err := srv.ListenAndServe(addr); err != nil {
		log.Fatalf("error in ListenAndServe: %v", err)
	}
}
