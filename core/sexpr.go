package plisp

import "strings"

type SExprKind int

const (
	KindNil SExprKind = iota
	KindAtom
	KindCons
)

func (k SExprKind) String() string {
	switch k {
	case KindNil:
		return "Nil"
	case KindAtom:
		return "Atom"
	case KindCons:
		return "Cons"
	default:
		return "<unknown>"
	}
}

// SExpr is a symbolic expression: Nil, an Atom or a Cons cell. Values are
// never modified after construction and may be shared freely.
type SExpr struct {
	Kind   SExprKind
	Name   string // atom name, used only for KindAtom
	car    *SExpr
	cdr    *SExpr
	origin *Token
}

// Nil is the empty list and logical false. It is the only KindNil value.
var Nil = &SExpr{Kind: KindNil}

var (
	T = NewAtom("t")
	F = Nil
)

func NewAtom(name string) *SExpr {
	return &SExpr{Kind: KindAtom, Name: name}
}

// AtomAt returns an atom remembering the token it was read from.
func AtomAt(name string, tok *Token) *SExpr {
	return &SExpr{Kind: KindAtom, Name: name, origin: tok}
}

func NewCons(car, cdr *SExpr) *SExpr {
	return &SExpr{Kind: KindCons, car: orNil(car), cdr: orNil(cdr)}
}

// ConsAt returns a cell whose own origin is tok.
func ConsAt(car, cdr *SExpr, tok *Token) *SExpr {
	return &SExpr{Kind: KindCons, car: orNil(car), cdr: orNil(cdr), origin: tok}
}

// List builds a proper list of elems.
func List(elems ...*SExpr) *SExpr {
	l := Nil
	for i := len(elems) - 1; i >= 0; i-- {
		l = NewCons(elems[i], l)
	}
	return l
}

func orNil(s *SExpr) *SExpr {
	if s == nil {
		return Nil
	}
	return s
}

func (s *SExpr) IsNil() bool  { return s.Kind == KindNil }
func (s *SExpr) IsAtom() bool { return s.Kind == KindAtom }
func (s *SExpr) IsCons() bool { return s.Kind == KindCons }

// Car returns the address register of a cell. Atoms and Nil return
// themselves.
func (s *SExpr) Car() *SExpr {
	if s.Kind == KindCons {
		return s.car
	}
	return s
}

// Cdr returns the decrement register of a cell, or Nil for anything else.
func (s *SExpr) Cdr() *SExpr {
	if s.Kind == KindCons {
		return s.cdr
	}
	return Nil
}

// Token returns the token the expression was read from, if any. A cell
// without a token of its own reports its car's token, then its cdr's.
func (s *SExpr) Token() *Token {
	for x := s; ; x = x.cdr {
		if x.origin != nil {
			return x.origin
		}
		if x.Kind != KindCons {
			return nil
		}
		if tok := x.car.Token(); tok != nil {
			return tok
		}
	}
}

// spine returns the elements of s read as a list. An improper tail counts
// as one final element, which is how atoms behave as single element lists.
func (s *SExpr) spine() []*SExpr {
	var elems []*SExpr
	x := s
	for x.Kind == KindCons {
		elems = append(elems, x.car)
		x = x.cdr
	}
	if x.Kind == KindAtom {
		elems = append(elems, x)
	}
	return elems
}

// Concat appends other to the list s.
func (s *SExpr) Concat(other *SExpr) *SExpr {
	elems := s.spine()
	out := orNil(other)
	for i := len(elems) - 1; i >= 0; i-- {
		out = NewCons(elems[i], out)
	}
	return out
}

// Zip pairs the elements of s with those of other. The result is as long
// as s; missing elements of other pair with Nil.
func (s *SExpr) Zip(other *SExpr) *SExpr {
	elems := s.spine()
	pairs := make([]*SExpr, len(elems))
	o := orNil(other)
	for i, e := range elems {
		pairs[i] = NewCons(e, o.Car())
		o = o.Cdr()
	}
	return List(pairs...)
}

// Size is the number of cells in the cdr chain; 1 for an atom.
func (s *SExpr) Size() int {
	n := 0
	x := s
	for x.Kind == KindCons {
		n++
		x = x.cdr
	}
	if x.Kind == KindAtom {
		n++
	}
	return n
}

// Elements returns the cars of the cdr chain, ignoring a dotted tail.
func (s *SExpr) Elements() []*SExpr {
	var elems []*SExpr
	for x := s; x.Kind == KindCons; x = x.cdr {
		elems = append(elems, x.car)
	}
	return elems
}

// Equal reports deep structural equality. Origins are ignored.
func (s *SExpr) Equal(o *SExpr) bool {
	a, b := s, o
	for {
		if a == b {
			return true
		}
		if a == nil || b == nil || a.Kind != b.Kind {
			return false
		}
		switch a.Kind {
		case KindNil:
			return true
		case KindAtom:
			return a.Name == b.Name
		}
		if !a.car.Equal(b.car) {
			return false
		}
		a, b = a.cdr, b.cdr
	}
}

func (s *SExpr) String() string {
	if s.Kind == KindNil {
		return "NIL"
	}
	var sb strings.Builder
	s.write(&sb)
	return sb.String()
}

func (s *SExpr) write(sb *strings.Builder) {
	switch s.Kind {
	case KindNil:
		sb.WriteString("()")
	case KindAtom:
		sb.WriteString(s.Name)
	case KindCons:
		sb.WriteByte('(')
		x := s
		for {
			x.car.write(sb)
			switch x.cdr.Kind {
			case KindNil:
				sb.WriteByte(')')
				return
			case KindAtom:
				sb.WriteString(" . ")
				sb.WriteString(x.cdr.Name)
				sb.WriteByte(')')
				return
			}
			sb.WriteByte(' ')
			x = x.cdr
		}
	}
}
