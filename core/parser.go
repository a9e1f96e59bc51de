package plisp

import "fmt"

// Grammar:
//
//	PROG  := EXPR END | EXPR ERROR | ERROR
//	EXPR  := ATOM | CONS | LIST | QUOTE
//	CONS  := '(' EXPR '.' EXPR ')'
//	LIST  := '(' EXPR* ')'
//	QUOTE := "'" EXPR
//
// CONS and LIST share their first token; CONS is tried first and the
// buffer is rewound before LIST is attempted.

type ParseErrorKind int

const (
	UnbalancedOpeningParenthesis ParseErrorKind = iota
	UnbalancedClosingParenthesis
	DanglingQuote
	DanglingAtom
	EmptyProgram
)

func (k ParseErrorKind) String() string {
	switch k {
	case UnbalancedOpeningParenthesis:
		return "UnbalancedOpeningParenthesis"
	case UnbalancedClosingParenthesis:
		return "UnbalancedClosingParenthesis"
	case DanglingQuote:
		return "DanglingQuote"
	case DanglingAtom:
		return "DanglingAtom"
	case EmptyProgram:
		return "EmptyProgram"
	default:
		return fmt.Sprintf("ParseErrorKind(%d)", int(k))
	}
}

func (k ParseErrorKind) message() string {
	switch k {
	case UnbalancedOpeningParenthesis:
		return "Unbalanced opening parenthesis."
	case UnbalancedClosingParenthesis:
		return "Unbalanced closing parenthesis."
	case DanglingQuote:
		return "Dangling quote."
	case DanglingAtom:
		return "Dangling atom."
	case EmptyProgram:
		return "Empty program."
	default:
		return "Parse error."
	}
}

// ParseError reports why a whole input could not be parsed. Token is the
// offending token.
type ParseError struct {
	Kind  ParseErrorKind
	Token Token
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s %s", e.Token.Origin, e.Kind.message())
}

var (
	exprRule Rule
	progRule Rule
)

func init() {
	// expr refers to itself through cons, list and quote.
	expr := func(b *TokenBuffer) (*SExpr, bool) { return exprRule(b) }

	cons := AllOf(OneOf(TokenPal), expr, OneOf(TokenDot), expr, OneOf(TokenPar)).
		Transform(func(s *SExpr) *SExpr {
			parts := s.Elements()
			return ConsAt(parts[1], parts[3], parts[0].Token())
		})

	list := AllOf(OneOf(TokenPal), ManyOf(expr), OneOf(TokenPar)).
		Transform(func(s *SExpr) *SExpr {
			elems := s.Cdr().Car()
			if elems.IsNil() {
				return Nil
			}
			return ConsAt(elems.Car(), elems.Cdr(), s.Car().Token())
		})

	quote := AllOf(OneOf(TokenQuo), expr).
		Transform(func(s *SExpr) *SExpr {
			return List(AtomAt("quote", s.Car().Token()), s.Cdr().Car())
		})

	// cons and list share the prefix '(' EXPR, so every nested expression
	// would otherwise be parsed once per enclosing alternative.
	exprRule = Memoize(AnyOf(OneOf(TokenAtm), cons, list, quote))
	progRule = AllOf(expr, OneOf(TokenEnd)).Transform((*SExpr).Car)
}

// Parse parses src, which must hold exactly one expression.
func Parse(src string) (*SExpr, error) {
	return ParseBytes([]byte(src))
}

func ParseBytes(src []byte) (*SExpr, error) {
	return ParseBuffer(NewTokenBuffer(NewLexer(src)))
}

// ParseBuffer parses the remaining tokens of b as one program. It returns
// either an expression or a *ParseError, never both.
func ParseBuffer(b *TokenBuffer) (*SExpr, error) {
	state := b.State()
	if s, ok := progRule(b); ok {
		return s, nil
	}
	b.Restore(state)

	// EXPR ERROR: skip the longest leading expression, then report what
	// follows it. ERROR: report the first token.
	exprRule(b)
	return nil, errorAt(b.Next())
}

func errorAt(tok Token) *ParseError {
	var kind ParseErrorKind
	switch tok.Class {
	case TokenPal:
		kind = UnbalancedOpeningParenthesis
	case TokenPar:
		kind = UnbalancedClosingParenthesis
	case TokenQuo:
		kind = DanglingQuote
	case TokenEnd:
		kind = EmptyProgram
	default:
		kind = DanglingAtom
	}
	return &ParseError{Kind: kind, Token: tok}
}
