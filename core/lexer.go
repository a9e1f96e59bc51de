package plisp

// Lexer splits source bytes into tokens. It never fails: bytes it does not
// recognize become single-byte TokenErr tokens for the parser to reject.
type Lexer struct {
	src []byte
	pos int
	row int
	col int
}

func NewLexer(src []byte) *Lexer {
	return &Lexer{src: src, row: 1}
}

// Next returns the next token. Once the input is exhausted it returns
// TokenEnd on every call.
func (l *Lexer) Next() Token {
	l.skipWhitespace()

	origin := TokenOrigin{Row: l.row, Col: l.col}
	if l.pos >= len(l.src) {
		return Token{Origin: origin, Class: TokenEnd}
	}

	ch := l.src[l.pos]
	switch ch {
	case '\'':
		return l.single(origin, TokenQuo)
	case '(':
		return l.single(origin, TokenPal)
	case ')':
		return l.single(origin, TokenPar)
	}
	if !isSymbolByte(ch) {
		return l.single(origin, TokenErr)
	}

	start := l.pos
	for l.pos < len(l.src) && isSymbolByte(l.src[l.pos]) {
		l.advance(1)
	}
	lexeme := string(l.src[start:l.pos])
	if lexeme == "." {
		return Token{Origin: origin, Class: TokenDot, Lexeme: lexeme}
	}
	return Token{Origin: origin, Class: TokenAtm, Lexeme: lexeme}
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case '\n':
			l.pos++
			l.row++
			l.col = 0
		case ' ', '\t', '\r':
			l.advance(1)
		default:
			return
		}
	}
}

func (l *Lexer) single(origin TokenOrigin, class TokenClass) Token {
	tok := Token{Origin: origin, Class: class, Lexeme: string(l.src[l.pos : l.pos+1])}
	l.advance(1)
	return tok
}

func (l *Lexer) advance(n int) {
	l.pos += n
	l.col += n
}

// isSymbolByte reports whether ch may appear in an atom: printable ASCII
// other than parentheses and quote, or any byte of a multi-byte UTF-8
// sequence.
func isSymbolByte(ch byte) bool {
	if ch >= 0x80 {
		return true
	}
	if ch < '!' || ch > '~' {
		return false
	}
	return ch != '(' && ch != ')' && ch != '\''
}

// Lex returns every token of src, ending with exactly one TokenEnd.
func Lex(src []byte) []Token {
	l := NewLexer(src)
	var toks []Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Class == TokenEnd {
			return toks
		}
	}
}
