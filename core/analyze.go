package plisp

import (
	"fmt"
	"strings"
)

// Prototype describes how a name may be called.
type Prototype struct {
	Name  string
	Arity int // -1 when any number of arguments is accepted
}

func (p Prototype) String() string {
	name := strings.ToUpper(p.Name)
	switch {
	case p.Arity < 0:
		return name + "[*]"
	case p.Arity == 0:
		return name
	}
	params := make([]string, p.Arity)
	for i := range params {
		params[i] = string(rune('a' + i%26))
	}
	return name + "[" + strings.Join(params, ";") + "]"
}

// PrototypeOfLabel derives the prototype a (label NAME VALUE) form binds.
// A lambda value takes as many arguments as it has parameters; anything
// else is a constant.
func PrototypeOfLabel(form *SExpr) (Prototype, error) {
	if !isForm(form, formLabel) || form.Cdr().Size() != 2 || !form.Cdr().Car().IsAtom() {
		return Prototype{}, &AnalyzeError{Kind: PrototypeMismatch, Expr: form, Proto: labelPrototype}
	}
	name := form.Cdr().Car()
	value := form.Cdr().Cdr().Car()
	arity := 0
	if isForm(value, formLambda) {
		arity = value.Cdr().Car().Size()
	}
	return Prototype{Name: name.Name, Arity: arity}, nil
}

var (
	lambdaPrototype = Prototype{Name: formLambda, Arity: 2}
	labelPrototype  = Prototype{Name: formLabel, Arity: 2}
)

type AnalyzeErrorKind int

const (
	NotDefined AnalyzeErrorKind = iota
	PrototypeMismatch
	LambdaMisuse
	IllegalForm
)

func (k AnalyzeErrorKind) String() string {
	switch k {
	case NotDefined:
		return "NotDefined"
	case PrototypeMismatch:
		return "PrototypeMismatch"
	case LambdaMisuse:
		return "LambdaMisuse"
	case IllegalForm:
		return "IllegalForm"
	default:
		return fmt.Sprintf("AnalyzeErrorKind(%d)", int(k))
	}
}

// AnalyzeError is a fault found before evaluation.
type AnalyzeError struct {
	Kind  AnalyzeErrorKind
	Expr  *SExpr
	Proto Prototype // expected prototype, for PrototypeMismatch and LambdaMisuse
}

func (e *AnalyzeError) Error() string {
	var msg string
	switch e.Kind {
	case NotDefined:
		msg = fmt.Sprintf("The atom '%s' is not defined.", e.Expr.Car())
	case PrototypeMismatch:
		msg = fmt.Sprintf("The expression '%s' does not match prototype %s.", e.Expr, e.Proto)
	case LambdaMisuse:
		msg = fmt.Sprintf("The lambda call '%s' does not match prototype %s.", e.Expr, e.Proto)
	default:
		msg = fmt.Sprintf("Illegal form: %s", e.Expr)
	}
	if tok := e.Expr.Token(); tok != nil {
		return tok.Origin.String() + " " + msg
	}
	return msg
}

// scope is an immutable chain of prototypes, innermost first.
type scope struct {
	proto Prototype
	next  *scope
}

func (s *scope) with(p Prototype) *scope {
	return &scope{proto: p, next: s}
}

func (s *scope) lookup(name string) (Prototype, bool) {
	for x := s; x != nil; x = x.next {
		if x.proto.Name == name {
			return x.proto, true
		}
	}
	return Prototype{}, false
}

var primitiveScope = func() *scope {
	var s *scope
	for _, name := range Primitives() {
		p, _ := LookupPrimitive(name)
		s = s.with(Prototype{Name: name, Arity: p.Arity()})
	}
	return s
}()

// Analyze checks that every atom expr evaluates or calls is defined and
// that every call passes as many arguments as its callee takes. Quoted
// data is not inspected.
func Analyze(expr *SExpr) error {
	return analyze(expr, primitiveScope)
}

func analyze(expr *SExpr, sc *scope) error {
	switch expr.Kind {
	case KindNil:
		return nil
	case KindAtom:
		if _, ok := sc.lookup(expr.Name); !ok {
			return &AnalyzeError{Kind: NotDefined, Expr: expr}
		}
		return nil
	}

	head := expr.Car()
	if head.IsAtom() {
		return analyzeCall(expr, sc)
	}
	switch {
	case isForm(head, formLabel):
		return analyzeLabel(expr, sc)
	case isForm(head, formLambda):
		return analyzeLambda(expr, sc)
	}
	return &AnalyzeError{Kind: IllegalForm, Expr: expr}
}

func analyzeCall(expr *SExpr, sc *scope) error {
	head := expr.Car()
	switch head.Name {
	case formLambda, formLabel:
		return &AnalyzeError{Kind: LambdaMisuse, Expr: expr, Proto: Prototype{Name: head.Name, Arity: 2}}
	}

	// Quoted data is never inspected, not even its length.
	if head.Name == PrimQuote.String() {
		return nil
	}
	proto, ok := sc.lookup(head.Name)
	if !ok {
		return &AnalyzeError{Kind: NotDefined, Expr: expr}
	}
	args := expr.Cdr()
	if proto.Arity >= 0 && args.Size() != proto.Arity {
		return &AnalyzeError{Kind: PrototypeMismatch, Expr: expr, Proto: proto}
	}

	switch proto.Name {
	case PrimCond.String():
		for _, clause := range args.Elements() {
			if err := analyze(clause.Car(), sc); err != nil {
				return err
			}
			if err := analyze(clause.Cdr().Car(), sc); err != nil {
				return err
			}
		}
		return nil
	}
	for _, arg := range args.Elements() {
		if err := analyze(arg, sc); err != nil {
			return err
		}
	}
	return nil
}

// analyzeLabel checks ((label NAME VALUE) REST). NAME is visible in both
// VALUE and REST.
func analyzeLabel(expr *SExpr, sc *scope) error {
	def := expr.Car()
	proto, err := PrototypeOfLabel(def)
	if err != nil {
		return err
	}
	inner := sc.with(proto)

	value := def.Cdr().Cdr().Car()
	if isForm(value, formLambda) {
		if err := analyzeLambdaBody(value, inner); err != nil {
			return err
		}
	} else if err := analyze(value, inner); err != nil {
		return err
	}
	return analyze(expr.Cdr().Car(), inner)
}

// analyzeLambda checks ((lambda PARAMS BODY) ARGS...).
func analyzeLambda(expr *SExpr, sc *scope) error {
	fn := expr.Car()
	if fn.Cdr().Size() != 2 {
		return &AnalyzeError{Kind: PrototypeMismatch, Expr: fn, Proto: lambdaPrototype}
	}
	params := fn.Cdr().Car()
	args := expr.Cdr()
	if args.Size() != params.Size() {
		return &AnalyzeError{Kind: LambdaMisuse, Expr: expr, Proto: Prototype{Name: formLambda, Arity: params.Size()}}
	}
	for _, arg := range args.Elements() {
		if err := analyze(arg, sc); err != nil {
			return err
		}
	}
	return analyzeLambdaBody(fn, sc)
}

// analyzeLambdaBody checks the body of (lambda PARAMS BODY) with every
// parameter in scope. Parameters may be bound to anything, so calls
// through them are not arity checked.
func analyzeLambdaBody(fn *SExpr, sc *scope) error {
	if fn.Cdr().Size() != 2 {
		return &AnalyzeError{Kind: PrototypeMismatch, Expr: fn, Proto: lambdaPrototype}
	}
	params := fn.Cdr().Car()
	inner := sc
	for _, p := range params.spine() {
		if !p.IsAtom() {
			return &AnalyzeError{Kind: IllegalForm, Expr: p}
		}
		inner = inner.with(Prototype{Name: p.Name, Arity: -1})
	}
	return analyze(fn.Cdr().Cdr().Car(), inner)
}

// isForm reports whether expr is a list headed by the atom name.
func isForm(expr *SExpr, name string) bool {
	return expr.IsCons() && expr.Car().IsAtom() && expr.Car().Name == name
}
