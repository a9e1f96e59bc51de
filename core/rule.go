package plisp

import "sync/atomic"

// Rule matches a prefix of a token buffer. On success it returns the
// matched expression and leaves the cursor after the match. On failure it
// returns false and leaves the cursor where it found it.
type Rule func(b *TokenBuffer) (*SExpr, bool)

// OneOf matches a single token of class c and yields it as an atom.
func OneOf(c TokenClass) Rule {
	return func(b *TokenBuffer) (*SExpr, bool) {
		state := b.State()
		tok := b.Next()
		if tok.Class != c {
			b.Restore(state)
			return nil, false
		}
		return AtomAt(tok.Lexeme, &tok), true
	}
}

// AnyOf tries rules in order from the same position and yields the first
// match.
func AnyOf(rules ...Rule) Rule {
	return func(b *TokenBuffer) (*SExpr, bool) {
		state := b.State()
		for _, r := range rules {
			if s, ok := r(b); ok {
				return s, true
			}
			b.Restore(state)
		}
		return nil, false
	}
}

// AllOf matches rules in sequence and yields their results as a list. If
// any rule fails the whole sequence is undone.
func AllOf(rules ...Rule) Rule {
	return func(b *TokenBuffer) (*SExpr, bool) {
		state := b.State()
		results := make([]*SExpr, 0, len(rules))
		for _, r := range rules {
			s, ok := r(b)
			if !ok {
				b.Restore(state)
				return nil, false
			}
			results = append(results, s)
		}
		return List(results...), true
	}
}

// ManyOf matches r as many times as possible and yields the results as a
// list, Nil if there were none. It always succeeds. Repetition stops early
// if r matches without consuming input.
func ManyOf(r Rule) Rule {
	return func(b *TokenBuffer) (*SExpr, bool) {
		var results []*SExpr
		for {
			state := b.State()
			s, ok := r(b)
			if !ok {
				b.Restore(state)
				break
			}
			results = append(results, s)
			if b.State() == state {
				break
			}
		}
		return List(results...), true
	}
}

// Transform returns a rule that applies f to every match of r.
func (r Rule) Transform(f func(*SExpr) *SExpr) Rule {
	return func(b *TokenBuffer) (*SExpr, bool) {
		s, ok := r(b)
		if !ok {
			return nil, false
		}
		return f(s), true
	}
}

var memoRules int64

// Memoize returns a rule that remembers, per buffer and offset, what r
// yielded and where it stopped. Backtracking alternatives that reach the
// same offset again reuse the answer instead of reparsing, which keeps
// nested input linear.
func Memoize(r Rule) Rule {
	id := int(atomic.AddInt64(&memoRules, 1))
	return func(b *TokenBuffer) (*SExpr, bool) {
		key := memoKey{rule: id, offset: b.State()}
		if e, ok := b.memo[key]; ok {
			b.Restore(e.end)
			return e.result, e.ok
		}
		s, ok := r(b)
		if !ok {
			b.Restore(key.offset)
		}
		if b.memo == nil {
			b.memo = make(map[memoKey]memoEntry)
		}
		b.memo[key] = memoEntry{result: s, ok: ok, end: b.State()}
		return s, ok
	}
}
