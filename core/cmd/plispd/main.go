package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	plisp "github.com/emanuelpalm/plisp/core"
)

func main() {
	cfg := plisp.DefaultConfig()

	if sockPath := os.Getenv("PLISP_SOCK"); sockPath != "" {
		cfg.SockPath = sockPath
	}

	cfg.Dir = os.Getenv("PLISP_DIR")

	if v := os.Getenv("PLISP_MAX_DEPTH"); v != "" {
		depth, err := strconv.Atoi(v)
		if err != nil || depth < 0 {
			log.Fatalf("invalid PLISP_MAX_DEPTH %q", v)
		}
		cfg.MaxDepth = depth
	}

	if v := os.Getenv("PLISP_TRACE_RETENTION"); v != "" {
		retention, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("invalid PLISP_TRACE_RETENTION %q: %v", v, err)
		}
		cfg.Retention = retention
	}

	if v := os.Getenv("PLISP_EVAL_TIMEOUT"); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil || timeout < 0 {
			log.Fatalf("invalid PLISP_EVAL_TIMEOUT %q", v)
		}
		cfg.EvalTimeout = timeout
	}

	server, err := plisp.NewServer(cfg)
	if err != nil {
		log.Fatalf("failed to start server: %v", err)
	}

	// Handle shutdown signals
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Println("shutting down...")
		server.Shutdown()
		os.Exit(0)
	}()

	dir := cfg.Dir
	if dir == "" {
		dir = "(memory only)"
	}
	log.Printf("plispd listening (socket: %s, traces: %s, max depth: %d)", cfg.SockPath, dir, cfg.MaxDepth)
	server.Run()
}
