package plisp

// TokenBuffer holds a fully lexed token stream and a cursor that rules may
// save and restore while backtracking. A buffer belongs to a single parse.
type TokenBuffer struct {
	tokens []Token
	offset int
	memo   map[memoKey]memoEntry
}

// memoKey identifies one memoized rule applied at one offset.
type memoKey struct {
	rule   int
	offset int
}

type memoEntry struct {
	result *SExpr
	ok     bool
	end    int
}

// NewTokenBuffer drains l.
func NewTokenBuffer(l *Lexer) *TokenBuffer {
	var toks []Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Class == TokenEnd {
			break
		}
	}
	return &TokenBuffer{tokens: toks}
}

// NewTokenBufferOf builds a buffer from explicit tokens, appending a
// TokenEnd sentinel unless the last token already is one.
func NewTokenBufferOf(tokens ...Token) *TokenBuffer {
	toks := make([]Token, len(tokens), len(tokens)+1)
	copy(toks, tokens)
	if len(toks) == 0 || toks[len(toks)-1].Class != TokenEnd {
		var origin TokenOrigin
		if len(toks) > 0 {
			origin = toks[len(toks)-1].Origin
		} else {
			origin = TokenOrigin{Row: 1}
		}
		toks = append(toks, Token{Origin: origin, Class: TokenEnd})
	}
	return &TokenBuffer{tokens: toks}
}

func (b *TokenBuffer) State() int {
	return b.offset
}

func (b *TokenBuffer) Restore(state int) {
	b.offset = state
}

// Next consumes and returns the next token. At the end of the stream it
// keeps returning the TokenEnd sentinel without advancing.
func (b *TokenBuffer) Next() Token {
	tok := b.tokens[b.offset]
	if b.offset < len(b.tokens)-1 {
		b.offset++
	}
	return tok
}

// Peek returns the next token without consuming it.
func (b *TokenBuffer) Peek() Token {
	return b.tokens[b.offset]
}
