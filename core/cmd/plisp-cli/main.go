package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"

	plisp "github.com/emanuelpalm/plisp/core"
)

func main() {
	sockPath := os.Getenv("PLISP_SOCK")
	if sockPath == "" {
		sockPath = "/tmp/plisp.sock"
	}

	msg, err := request(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	if _, ok := msg["id"]; !ok {
		msg["id"] = plisp.NextID()
	}

	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := plisp.WriteMsg(conn, msg); err != nil {
		fmt.Fprintf(os.Stderr, "send: %v\n", err)
		os.Exit(1)
	}

	resp, err := plisp.ReadMsg(conn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "receive: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "format response: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if ok, _ := resp["ok"].(bool); !ok {
		os.Exit(1)
	}
}

// request builds the message to send. With no arguments the message is
// read as JSON from stdin. Otherwise the first argument is the op and the
// second, if present, is the source; "-" reads the source from stdin.
func request(args []string) (map[string]any, error) {
	if len(args) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("parse JSON: %w", err)
		}
		if msg == nil {
			return nil, fmt.Errorf("parse JSON: expected an object")
		}
		return msg, nil
	}

	msg := map[string]any{"op": args[0]}
	switch len(args) {
	case 1:
	case 2:
		src := args[1]
		if src == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return nil, fmt.Errorf("read stdin: %w", err)
			}
			src = string(data)
		}
		msg["source"] = src
	default:
		return nil, fmt.Errorf("usage: plisp-cli [op [source|-]]")
	}
	return msg, nil
}
