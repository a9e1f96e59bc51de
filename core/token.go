package plisp

import "fmt"

type TokenClass int

const (
	TokenEnd TokenClass = iota // input exhausted
	TokenErr                   // one unrecognized byte
	TokenQuo                   // '
	TokenPal                   // (
	TokenPar                   // )
	TokenDot                   // .
	TokenAtm
)

func (c TokenClass) String() string {
	switch c {
	case TokenEnd:
		return "END"
	case TokenErr:
		return "ERR"
	case TokenQuo:
		return "QUO"
	case TokenPal:
		return "PAL"
	case TokenPar:
		return "PAR"
	case TokenDot:
		return "DOT"
	case TokenAtm:
		return "ATM"
	default:
		return fmt.Sprintf("TokenClass(%d)", int(c))
	}
}

// TokenOrigin is a source position. Rows start at 1, columns at 0 and
// count bytes.
type TokenOrigin struct {
	Row int
	Col int
}

func (o TokenOrigin) String() string {
	return fmt.Sprintf("%d:%d", o.Row, o.Col)
}

type Token struct {
	Origin TokenOrigin
	Class  TokenClass
	Lexeme string
}

// Equal compares class and lexeme. The origin is metadata and is ignored.
func (t Token) Equal(o Token) bool {
	return t.Class == o.Class && t.Lexeme == o.Lexeme
}

func (t Token) String() string {
	if t.Class == TokenEnd {
		return fmt.Sprintf("%s@%s", t.Class, t.Origin)
	}
	return fmt.Sprintf("%s(%q)@%s", t.Class, t.Lexeme, t.Origin)
}
