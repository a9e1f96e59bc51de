package plisp

import (
	"encoding/hex"
	"errors"
	"time"

	"github.com/zeebo/blake3"
)

// Trace records one request the server evaluated: what was asked, what
// came back, and how long it took.
type Trace struct {
	Op        string // eval, parse or analyze
	Source    string
	Hash      string // blake3 of Source, hex encoded
	Result    string // printed result, empty on error
	Error     string // non-empty on error
	Kind      string // error kind, see ErrorKind
	Cached    bool
	Timestamp time.Time
	Duration  time.Duration
}

// ToMap converts a Trace to its JSON wire form.
func (t *Trace) ToMap() map[string]any {
	m := map[string]any{
		"op":          t.Op,
		"source":      t.Source,
		"hash":        t.Hash,
		"cached":      t.Cached,
		"timestamp":   t.Timestamp.UTC().Format(time.RFC3339),
		"duration_us": t.Duration.Microseconds(),
	}
	if t.Error != "" {
		m["error"] = t.Error
		m["kind"] = t.Kind
	} else {
		m["result"] = t.Result
	}
	return m
}

// HashSource returns the hex blake3 digest of src. Sources with the same
// hash evaluate to the same result.
func HashSource(src string) string {
	h := blake3.New()
	h.WriteString(src)
	return hex.EncodeToString(h.Sum(nil))
}

// ErrorKinds lists every name ErrorKind may return.
func ErrorKinds() []string {
	var kinds []string
	for k := UnbalancedOpeningParenthesis; k <= EmptyProgram; k++ {
		kinds = append(kinds, k.String())
	}
	for k := AtomNotFound; k <= Interrupted; k++ {
		kinds = append(kinds, k.String())
	}
	for k := NotDefined; k <= IllegalForm; k++ {
		kinds = append(kinds, k.String())
	}
	return append(kinds, "internal")
}

// ErrorKind names the class of err for clients: the kind of a parse,
// evaluation or analysis error, or "internal" for anything else.
func ErrorKind(err error) string {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind.String()
	}
	var ee *EvalError
	if errors.As(err, &ee) {
		return ee.Kind.String()
	}
	var ae *AnalyzeError
	if errors.As(err, &ae) {
		return ae.Kind.String()
	}
	return "internal"
}
