// Package typecheck elaborates parsed specifications: it resolves named
// types, attaches a type to every expression, and accumulates type errors
// instead of aborting on the first one.
package typecheck

import (
	"fmt"

	"github.com/cozylang/cozy/internal/prettyprinter"
	"github.com/cozylang/cozy/internal/syntax"
	"github.com/cozylang/cozy/internal/syntaxtools"
)

// DefaultType is the sentinel attached where no type could be decided. It
// compares equal only to itself, by identity.
var DefaultType syntax.Type = &syntax.TNamed{ID: "<error>"}

// IsDefault reports whether t is the sentinel.
func IsDefault(t syntax.Type) bool { return t == DefaultType }

// IsNumeric reports whether t is Int or Long.
func IsNumeric(t syntax.Type) bool {
	switch t.(type) {
	case *syntax.TInt, *syntax.TLong:
		return true
	}
	return false
}

// Typecheck elaborates spec in place and returns the accumulated errors. An
// empty result means the spec is admissible for synthesis.
func Typecheck(spec *syntax.Spec) []string {
	tc := newChecker(nil)
	tc.spec(spec)
	return tc.errors
}

// TypecheckExp checks a standalone expression under the given environment.
func TypecheckExp(e syntax.Exp, env map[string]syntax.Type) []string {
	tc := newChecker(env)
	tc.exp(e)
	return tc.errors
}

// Retypecheck re-infers types for a rewritten expression, deriving the
// environment from its free variables when none is supplied. It reports
// whether the expression checks cleanly.
func Retypecheck(e syntax.Exp, env map[string]syntax.Type) bool {
	if env == nil {
		env = map[string]syntax.Type{}
		for _, v := range syntaxtools.FreeVars(e).Vars() {
			env[v.ID] = v.Type()
		}
	}
	for _, x := range syntaxtools.AllExps(e) {
		if ee, ok := x.(*syntax.EEnumEntry); ok && ee.Type() != nil {
			env[ee.Name] = ee.Type()
		}
	}
	return len(TypecheckExp(e, env)) == 0
}

type checker struct {
	tenv    map[string]syntax.Type
	env     map[string]syntax.Type
	oldEnvs []map[string]syntax.Type
	funcs   map[string]*syntax.ExternFunc
	queries map[string]*syntax.Query
	errors  []string
}

func newChecker(env map[string]syntax.Type) *checker {
	tc := &checker{
		tenv: map[string]syntax.Type{
			"Int":    syntax.Int,
			"Bound":  syntax.Int,
			"Long":   syntax.Long,
			"Bool":   syntax.Bool,
			"String": syntax.String,
		},
		env:     map[string]syntax.Type{},
		funcs:   map[string]*syntax.ExternFunc{},
		queries: map[string]*syntax.Query{},
	}
	for k, v := range env {
		tc.env[k] = v
	}
	return tc
}

func (tc *checker) pushScope() {
	tc.oldEnvs = append(tc.oldEnvs, tc.env)
	inner := make(map[string]syntax.Type, len(tc.env))
	for k, v := range tc.env {
		inner[k] = v
	}
	tc.env = inner
}

func (tc *checker) popScope() {
	tc.env = tc.oldEnvs[len(tc.oldEnvs)-1]
	tc.oldEnvs = tc.oldEnvs[:len(tc.oldEnvs)-1]
}

func (tc *checker) reportErr(source syntax.Node, format string, args ...any) {
	tc.errors = append(tc.errors, fmt.Sprintf("At %s: %s", prettyprinter.Print(source), fmt.Sprintf(format, args...)))
}

func (tc *checker) spec(s *syntax.Spec) {
	for i, nt := range s.Types {
		resolved := tc.typ(nt.Type)
		tc.tenv[nt.Name] = resolved
		s.Types[i].Type = resolved
	}
	for _, f := range s.ExternFuncs {
		for i, a := range f.Args {
			f.Args[i].Type = tc.typ(a.Type)
		}
		f.OutType = tc.typ(f.OutType)
		tc.funcs[f.Name] = f
	}
	for i, sv := range s.StateVars {
		resolved := tc.typ(sv.Type)
		tc.env[sv.Name] = resolved
		s.StateVars[i].Type = resolved
	}
	for _, a := range s.Assumptions {
		tc.exp(a)
		tc.ensureType(a, syntax.Bool)
	}
	for _, m := range s.Methods {
		tc.method(m)
	}
}

func (tc *checker) method(m syntax.Method) {
	switch m := m.(type) {
	case *syntax.Op:
		for i, a := range m.Args {
			m.Args[i].Type = tc.typ(a.Type)
		}
		tc.pushScope()
		defer tc.popScope()
		for _, a := range m.Args {
			tc.env[a.Name] = a.Type
		}
		for _, a := range m.Assumptions {
			tc.exp(a)
			tc.ensureType(a, syntax.Bool)
		}
		tc.stm(m.Body)
	case *syntax.Query:
		for i, a := range m.Args {
			m.Args[i].Type = tc.typ(a.Type)
		}
		tc.pushScope()
		for _, a := range m.Args {
			tc.env[a.Name] = a.Type
		}
		for _, a := range m.Assumptions {
			tc.exp(a)
			tc.ensureType(a, syntax.Bool)
		}
		tc.exp(m.Ret)
		tc.popScope()
		tc.queries[m.Name] = m
	}
}

func (tc *checker) typ(t syntax.Type) syntax.Type {
	switch t := t.(type) {
	case nil:
		return DefaultType
	case *syntax.TInt, *syntax.TLong, *syntax.TBool, *syntax.TString, *syntax.TNative:
		return t
	case *syntax.TEnum:
		for _, c := range t.Cases {
			tc.env[c] = t
		}
		return t
	case *syntax.TNamed:
		if resolved, ok := tc.tenv[t.ID]; ok {
			return resolved
		}
		tc.reportErr(t, "unknown type %s", t.ID)
		return t
	case *syntax.TApp:
		switch t.Ctor {
		case "Set":
			return &syntax.TSet{Elem: tc.typ(t.Arg)}
		case "Bag":
			return &syntax.TBag{Elem: tc.typ(t.Arg)}
		default:
			tc.reportErr(t, "unknown type %s", t.Ctor)
			return t
		}
	case *syntax.TRecord:
		fields := make([]syntax.Field, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = syntax.Field{Name: f.Name, Type: tc.typ(f.Type)}
		}
		return &syntax.TRecord{Fields: fields}
	case *syntax.TTuple:
		ts := make([]syntax.Type, len(t.Types))
		for i, tt := range t.Types {
			ts[i] = tc.typ(tt)
		}
		return &syntax.TTuple{Types: ts}
	case *syntax.THandle:
		return &syntax.THandle{StateVar: t.StateVar, ValueType: tc.typ(t.ValueType)}
	case *syntax.TBag:
		return &syntax.TBag{Elem: tc.typ(t.Elem)}
	case *syntax.TSet:
		return &syntax.TSet{Elem: tc.typ(t.Elem)}
	case *syntax.TMap:
		return &syntax.TMap{Key: tc.typ(t.Key), Val: tc.typ(t.Val)}
	case *syntax.TVector:
		return &syntax.TVector{Elem: tc.typ(t.Elem), N: t.N}
	}
	return t
}

// typesEquivalent compares types, treating bag element (and map key/value)
// equivalence recursively.
func (tc *checker) typesEquivalent(t1, t2 syntax.Type) bool {
	switch t1 := t1.(type) {
	case *syntax.TMap:
		if t2, ok := t2.(*syntax.TMap); ok {
			return tc.typesEquivalent(t1.Key, t2.Key) && tc.typesEquivalent(t1.Val, t2.Val)
		}
	case *syntax.TBag:
		if t2, ok := t2.(*syntax.TBag); ok {
			return tc.typesEquivalent(t1.Elem, t2.Elem)
		}
	case *syntax.TSet:
		if t2, ok := t2.(*syntax.TSet); ok {
			return tc.typesEquivalent(t1.Elem, t2.Elem)
		}
	}
	return syntax.Equal(t1, t2)
}

func (tc *checker) ensureType(e syntax.Exp, t syntax.Type) {
	if e.Type() == nil {
		tc.exp(e)
	}
	if !IsDefault(t) && !IsDefault(e.Type()) && !tc.typesEquivalent(e.Type(), t) {
		tc.reportErr(e, "expression has type %s instead of %s",
			prettyprinter.Type(e.Type()), prettyprinter.Type(t))
	}
}

func (tc *checker) checkAssignment(node syntax.Node, ltype, rtype syntax.Type) {
	if syntax.Equal(ltype, rtype) || IsDefault(ltype) || IsDefault(rtype) {
		return
	}
	if _, ok := ltype.(*syntax.TBag); ok {
		if _, ok := rtype.(*syntax.TBag); ok {
			return
		}
	}
	tc.reportErr(node, "cannot assign %s to a %s", prettyprinter.Type(rtype), prettyprinter.Type(ltype))
}

func (tc *checker) ensureNumeric(e syntax.Exp) {
	if IsDefault(e.Type()) {
		return
	}
	if !IsNumeric(e.Type()) {
		tc.reportErr(e, "expression has non-numeric type %s", prettyprinter.Type(e.Type()))
	}
}

func (tc *checker) numericLUB(t1, t2 syntax.Type) syntax.Type {
	if _, ok := t1.(*syntax.TLong); ok {
		return syntax.Long
	}
	if _, ok := t2.(*syntax.TLong); ok {
		return syntax.Long
	}
	return syntax.Int
}

func (tc *checker) lub(src syntax.Node, t1, t2 syntax.Type, explanation string) syntax.Type {
	if syntax.Equal(t1, t2) {
		return t1
	}
	if IsNumeric(t1) && IsNumeric(t2) {
		return tc.numericLUB(t1, t2)
	}
	if syntax.IsCollection(t1) && syntax.IsCollection(t2) {
		return &syntax.TBag{Elem: syntax.ElemType(t1)}
	}
	tc.reportErr(src, "cannot unify types %s and %s (%s)",
		prettyprinter.Type(t1), prettyprinter.Type(t2), explanation)
	return DefaultType
}

func (tc *checker) collectionElem(e syntax.Exp) syntax.Type {
	if IsDefault(e.Type()) {
		return DefaultType
	}
	if t := syntax.ElemType(e.Type()); t != nil {
		return t
	}
	tc.reportErr(e, "expression has non-collection type %s", prettyprinter.Type(e.Type()))
	return DefaultType
}

func (tc *checker) mapTypes(e syntax.Exp) (syntax.Type, syntax.Type) {
	if IsDefault(e.Type()) {
		return DefaultType, DefaultType
	}
	if m, ok := e.Type().(*syntax.TMap); ok {
		return m.Key, m.Val
	}
	tc.reportErr(e, "expression has non-map type %s", prettyprinter.Type(e.Type()))
	return DefaultType, DefaultType
}

func (tc *checker) handleValueType(e syntax.Exp) syntax.Type {
	if IsDefault(e.Type()) {
		return DefaultType
	}
	if h, ok := e.Type().(*syntax.THandle); ok {
		return h.ValueType
	}
	tc.reportErr(e, "expression has non-handle type %s", prettyprinter.Type(e.Type()))
	return DefaultType
}
