package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"git.sr.ht/~sircmpwn/getopt"
	"github.com/fatih/color"
	"github.com/peterh/liner"

	plisp "github.com/emanuelpalm/plisp/core"
)

const usage = "usage: plisp [-a] [-d depth] [-i] [file]"

var errColor = color.New(color.FgRed)

type options struct {
	analyze     bool
	interactive bool
	depth       int
}

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	opts, optind, err := getopt.Getopts(args, "ad:hi")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
	o := options{depth: plisp.DefaultMaxDepth}
	for _, opt := range opts {
		switch opt.Option {
		case 'a':
			o.analyze = true
		case 'd':
			depth, err := strconv.Atoi(opt.Value)
			if err != nil || depth < 0 {
				fmt.Fprintf(os.Stderr, "invalid -d parameter %q\n", opt.Value)
				return 2
			}
			o.depth = depth
		case 'i':
			o.interactive = true
		case 'h':
			fmt.Println(usage)
			return 0
		}
	}
	rest := args[optind:]

	ev := &plisp.Evaluator{MaxDepth: o.depth}
	switch {
	case o.interactive && len(rest) == 0:
		return repl(ev, o)
	case len(rest) == 1:
		src, err := os.ReadFile(rest[0])
		if err != nil {
			errColor.Fprintf(os.Stderr, "File error: %v\n", err)
			return 1
		}
		return runSource(os.Stdout, os.Stderr, ev, o, src)
	default:
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
}

// runSource parses src and either analyzes or evaluates it, reporting the
// outcome the way the command line does.
func runSource(stdout, stderr io.Writer, ev *plisp.Evaluator, o options, src []byte) int {
	expr, err := plisp.ParseBytes(src)
	if err != nil {
		errColor.Fprintf(stderr, "Parser error: %v\n", err)
		return 1
	}

	if o.analyze {
		if err := plisp.Analyze(expr); err != nil {
			errColor.Fprintf(stderr, "Analyzer error: %v\n", err)
			return 1
		}
		fmt.Fprintln(stdout, "No errors detected.")
		return 0
	}

	val, err := ev.Eval(expr, plisp.Env{})
	if err != nil {
		errColor.Fprintf(stderr, "Runtime error: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, val)
	return 0
}

func repl(ev *plisp.Evaluator, o options) int {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt("plisp> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println()
				return 0
			}
			errColor.Fprintf(os.Stderr, "Input error: %v\n", err)
			return 1
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)
		runSource(os.Stdout, os.Stderr, ev, o, []byte(input))
	}
}
