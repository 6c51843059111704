package syntax

import "sync/atomic"

// Node is the common interface of types, expressions, statements,
// comprehension clauses, and spec-level declarations.
type Node interface {
	isNode()
}

// node carries the lazily computed structural hash. It is embedded in every
// IR struct; the cache is invisible to structural equality.
type node struct {
	cached atomic.Uint64
}

func (*node) isNode() {}

// typed is embedded in every expression. The checker fills ty in; rewriters
// propagate it onto rebuilt nodes.
type typed struct {
	node
	ty Type
}

func (t *typed) Type() Type      { return t.ty }
func (t *typed) setType(ty Type) { t.ty = ty }

// Exp is the interface for all expressions. Every non-lambda expression has
// a type after checking; lambdas stay untyped (their type is contextual).
type Exp interface {
	Node
	expNode()
	Type() Type
	setType(Type)
}

// Stm is the interface for all statements.
type Stm interface {
	Node
	stmNode()
}

// WithType sets the type of e and returns e, mirroring how expressions are
// built everywhere in this package.
func WithType[E Exp](e E, t Type) E {
	e.setType(t)
	return e
}
