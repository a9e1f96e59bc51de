package plisp

// Env is an environment: an association list of (name . value) pairs. New
// bindings are prepended, so lookups find the innermost binding first.
// The zero value is the empty environment.
type Env struct {
	alist *SExpr
}

// NewEnv wraps an existing association list.
func NewEnv(alist *SExpr) Env {
	return Env{alist: alist}
}

// Alist returns the underlying association list.
func (e Env) Alist() *SExpr {
	if e.alist == nil {
		return Nil
	}
	return e.alist
}

// Bind returns e extended with one binding of name to value.
func (e Env) Bind(name, value *SExpr) Env {
	return Env{alist: NewCons(NewCons(name, value), e.Alist())}
}

// Extend returns e with every pair of frame prepended, keeping frame order.
// Only the frame's cells are copied; e's list is shared.
func (e Env) Extend(frame *SExpr) Env {
	return Env{alist: frame.Concat(e.Alist())}
}

// Lookup returns the value bound to name.
func (e Env) Lookup(name string) (*SExpr, bool) {
	for x := e.Alist(); x.IsCons(); x = x.Cdr() {
		pair := x.Car()
		if key := pair.Car(); key.IsAtom() && key.Name == name {
			return pair.Cdr(), true
		}
	}
	return nil, false
}

func (e Env) String() string {
	return e.Alist().String()
}
