package plisp

import (
	"context"
	"fmt"
)

// Primitive is one of the elementary operators every environment has.
type Primitive int

const (
	PrimQuote Primitive = iota
	PrimAtom
	PrimEq
	PrimCar
	PrimCdr
	PrimCons
	PrimCond
)

type primitiveInfo struct {
	name  string
	arity int // -1 for any number of arguments
}

var primitiveTable = [...]primitiveInfo{
	PrimQuote: {"quote", 1},
	PrimAtom:  {"atom", 1},
	PrimEq:    {"eq", 2},
	PrimCar:   {"car", 1},
	PrimCdr:   {"cdr", 1},
	PrimCons:  {"cons", 2},
	PrimCond:  {"cond", -1},
}

var primitivesByName = func() map[string]Primitive {
	m := make(map[string]Primitive, len(primitiveTable))
	for p, info := range primitiveTable {
		m[info.name] = Primitive(p)
	}
	return m
}()

// LookupPrimitive resolves an operator name.
func LookupPrimitive(name string) (Primitive, bool) {
	p, ok := primitivesByName[name]
	return p, ok
}

// Primitives lists the operator names in declaration order.
func Primitives() []string {
	names := make([]string, len(primitiveTable))
	for i, info := range primitiveTable {
		names[i] = info.name
	}
	return names
}

func (p Primitive) String() string { return primitiveTable[p].name }

// Arity is the number of arguments p takes, or -1 if it is variadic.
func (p Primitive) Arity() int { return primitiveTable[p].arity }

const (
	formLambda = "lambda"
	formLabel  = "label"
)

type EvalErrorKind int

const (
	AtomNotFound EvalErrorKind = iota
	CondExhausted
	IllegalExpression
	DepthExceeded
	Interrupted
)

func (k EvalErrorKind) String() string {
	switch k {
	case AtomNotFound:
		return "AtomNotFound"
	case CondExhausted:
		return "CondExhausted"
	case IllegalExpression:
		return "IllegalExpression"
	case DepthExceeded:
		return "DepthExceeded"
	case Interrupted:
		return "Interrupted"
	default:
		return fmt.Sprintf("EvalErrorKind(%d)", int(k))
	}
}

// EvalError aborts an evaluation. Expr is the offending expression.
type EvalError struct {
	Kind  EvalErrorKind
	Expr  *SExpr
	Depth int   // limit that was hit, for DepthExceeded
	Cause error // context error, for Interrupted
}

func (e *EvalError) Error() string {
	var msg string
	switch e.Kind {
	case AtomNotFound:
		msg = fmt.Sprintf("Atom '%s' not in environment.", e.Expr)
	case CondExhausted:
		msg = "No successful condition."
	case IllegalExpression:
		msg = fmt.Sprintf("Illegal expression: %s", e.Expr)
	case DepthExceeded:
		msg = fmt.Sprintf("Maximum evaluation depth %d exceeded.", e.Depth)
	case Interrupted:
		msg = fmt.Sprintf("Evaluation interrupted: %v.", e.Cause)
	default:
		msg = "Evaluation failed."
	}
	if e.Expr != nil {
		if tok := e.Expr.Token(); tok != nil {
			return tok.Origin.String() + " " + msg
		}
	}
	return msg
}

// DefaultMaxDepth bounds nested evaluation well below the point where the
// Go stack would be exhausted.
const DefaultMaxDepth = 100000

// Evaluator evaluates expressions. It holds only configuration, so one
// Evaluator may serve concurrent evaluations.
type Evaluator struct {
	// MaxDepth is the deepest allowed nesting of eval calls. 0 means no
	// limit.
	MaxDepth int
}

func NewEvaluator() *Evaluator {
	return &Evaluator{MaxDepth: DefaultMaxDepth}
}

var defaultEvaluator = NewEvaluator()

// Eval evaluates expr in the empty environment.
func Eval(expr *SExpr) (*SExpr, error) {
	return defaultEvaluator.Eval(expr, Env{})
}

// EvalIn evaluates expr in env.
func EvalIn(expr *SExpr, env Env) (*SExpr, error) {
	return defaultEvaluator.Eval(expr, env)
}

// EvalString parses and evaluates src in the empty environment.
func EvalString(src string) (*SExpr, error) {
	return defaultEvaluator.EvalString(src)
}

func (e *Evaluator) Eval(expr *SExpr, env Env) (*SExpr, error) {
	return e.EvalContext(context.Background(), expr, env)
}

// EvalContext evaluates expr in env until it finishes or ctx is done, in
// which case it fails with Interrupted.
func (e *Evaluator) EvalContext(ctx context.Context, expr *SExpr, env Env) (*SExpr, error) {
	m := &machine{ctx: ctx, maxDepth: e.MaxDepth}
	return m.eval(expr, env)
}

// EvalString parses src and evaluates it. Parse errors are returned as
// they are so callers can tell them apart from evaluation errors.
func (e *Evaluator) EvalString(src string) (*SExpr, error) {
	expr, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return e.Eval(expr, Env{})
}

// checkEvery is how many eval steps pass between context checks.
const checkEvery = 1024

// machine is the state of one evaluation.
type machine struct {
	ctx      context.Context
	maxDepth int
	depth    int
	steps    uint64
}

func (m *machine) eval(expr *SExpr, env Env) (*SExpr, error) {
	m.depth++
	defer func() { m.depth-- }()
	if m.maxDepth > 0 && m.depth > m.maxDepth {
		return nil, &EvalError{Kind: DepthExceeded, Expr: expr, Depth: m.maxDepth}
	}
	m.steps++
	if m.steps%checkEvery == 0 {
		if err := m.ctx.Err(); err != nil {
			return nil, &EvalError{Kind: Interrupted, Expr: expr, Cause: err}
		}
	}

	if expr.IsAtom() {
		return m.assoc(expr, env)
	}

	head := expr.Car()
	if head.IsAtom() {
		if p, ok := LookupPrimitive(head.Name); ok {
			return m.apply(p, expr, env)
		}
		fn, err := m.assoc(head, env)
		if err != nil {
			return nil, err
		}
		return m.eval(ConsAt(fn, expr.Cdr(), expr.origin), env)
	}

	if form := head.Car(); form.IsAtom() {
		switch form.Name {
		case formLambda:
			return m.lambda(expr, env)
		case formLabel:
			return m.label(expr, env)
		}
	}
	return nil, &EvalError{Kind: IllegalExpression, Expr: expr}
}

func (m *machine) assoc(atom *SExpr, env Env) (*SExpr, error) {
	if v, ok := env.Lookup(atom.Name); ok {
		return v, nil
	}
	return nil, &EvalError{Kind: AtomNotFound, Expr: atom}
}

// arg evaluates the n:th argument of a call form, counting from 0.
func (m *machine) arg(expr *SExpr, n int, env Env) (*SExpr, error) {
	x := expr.Cdr()
	for ; n > 0; n-- {
		x = x.Cdr()
	}
	return m.eval(x.Car(), env)
}

func (m *machine) apply(p Primitive, expr *SExpr, env Env) (*SExpr, error) {
	switch p {
	case PrimQuote:
		return expr.Cdr().Car(), nil
	case PrimCond:
		return m.cond(expr, env)
	}

	a, err := m.arg(expr, 0, env)
	if err != nil {
		return nil, err
	}
	switch p {
	case PrimAtom:
		if a.IsCons() {
			return F, nil
		}
		return T, nil
	case PrimCar:
		return a.Car(), nil
	case PrimCdr:
		return a.Cdr(), nil
	}

	b, err := m.arg(expr, 1, env)
	if err != nil {
		return nil, err
	}
	switch p {
	case PrimEq:
		if a.Equal(b) {
			return T, nil
		}
		return F, nil
	case PrimCons:
		return NewCons(a, b), nil
	}
	return nil, &EvalError{Kind: IllegalExpression, Expr: expr}
}

// cond evaluates the body of the first clause whose test yields exactly T.
func (m *machine) cond(expr *SExpr, env Env) (*SExpr, error) {
	for clauses := expr.Cdr(); !clauses.IsNil(); clauses = clauses.Cdr() {
		clause := clauses.Car()
		test, err := m.eval(clause.Car(), env)
		if err != nil {
			return nil, err
		}
		if test.Equal(T) {
			return m.eval(clause.Cdr().Car(), env)
		}
	}
	return nil, &EvalError{Kind: CondExhausted, Expr: expr}
}

// label evaluates ((label NAME VALUE) REST) with NAME bound to VALUE.
func (m *machine) label(expr *SExpr, env Env) (*SExpr, error) {
	def := expr.Car().Cdr()
	name, value := def.Car(), def.Cdr().Car()
	return m.eval(expr.Cdr().Car(), env.Bind(name, value))
}

// lambda evaluates ((lambda PARAMS BODY) ARGS...) by binding the evaluated
// arguments to PARAMS.
func (m *machine) lambda(expr *SExpr, env Env) (*SExpr, error) {
	fn := expr.Car().Cdr()
	params, body := fn.Car(), fn.Cdr().Car()
	args, err := m.evlis(expr.Cdr(), env)
	if err != nil {
		return nil, err
	}
	return m.eval(body, env.Extend(params.Zip(args)))
}

// evlis evaluates every element of list from left to right.
func (m *machine) evlis(list *SExpr, env Env) (*SExpr, error) {
	var vals []*SExpr
	for x := list; !x.IsNil(); x = x.Cdr() {
		v, err := m.eval(x.Car(), env)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return List(vals...), nil
}
