package syntaxtools

import (
	"fmt"

	"github.com/cozylang/cozy/internal/syntax"
)

// VarSet is an insertion-ordered set of variables keyed by name, with
// occurrence counts.
type VarSet struct {
	order  []*syntax.EVar
	counts map[string]int
}

func NewVarSet(vars ...*syntax.EVar) *VarSet {
	s := &VarSet{counts: map[string]int{}}
	for _, v := range vars {
		s.Add(v)
	}
	return s
}

func (s *VarSet) Add(v *syntax.EVar) {
	if s.counts[v.ID] == 0 {
		s.order = append(s.order, v)
	}
	s.counts[v.ID]++
}

func (s *VarSet) Has(name string) bool { return s.counts[name] > 0 }

func (s *VarSet) Count(name string) int { return s.counts[name] }

func (s *VarSet) Len() int { return len(s.order) }

// Vars returns the set's variables in first-occurrence order.
func (s *VarSet) Vars() []*syntax.EVar { return s.order }

// unbind is a work-stack marker that closes a binder's scope.
type unbind struct{ name string }

// bind is a work-stack marker that opens a binder's scope.
type bind struct{ name string }

// FreeVars returns the variables occurring free in n, in first-occurrence
// order, with occurrence counts. Binders are lambda arguments,
// comprehension pull clauses, method parameters, for-each variables,
// map-update value variables, and local declarations (for the remainder of
// their sequence). The traversal is a work-stack loop, not recursion, so
// deeply nested trees cannot exhaust the goroutine stack.
func FreeVars(n syntax.Node) *VarSet {
	res := NewVarSet()
	bound := map[string]int{}

	// Stack items are nodes or bind/unbind markers; pushed in reverse so
	// they pop in source order.
	stack := []any{n}
	push := func(items ...any) {
		for i := len(items) - 1; i >= 0; i-- {
			stack = append(stack, items[i])
		}
	}

	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch x := item.(type) {
		case bind:
			bound[x.name]++
		case unbind:
			bound[x.name]--

		case *syntax.EVar:
			if bound[x.ID] == 0 {
				res.Add(x)
			}
		case *syntax.ELambda:
			push(bind{x.Arg.ID}, x.Body, unbind{x.Arg.ID})
		case *syntax.EListComprehension:
			// Each pull's source is evaluated outside the pull's own scope;
			// later clauses and the head see the binding.
			var items []any
			var opened []string
			for _, c := range x.Clauses {
				switch c := c.(type) {
				case *syntax.CPull:
					items = append(items, c.E, bind{c.ID})
					opened = append(opened, c.ID)
				case *syntax.CCond:
					items = append(items, c.E)
				}
			}
			items = append(items, syntax.Node(x.E))
			for i := len(opened) - 1; i >= 0; i-- {
				items = append(items, unbind{opened[i]})
			}
			push(items...)
		case *syntax.SForEach:
			push(x.Iter, bind{x.Var.ID}, x.Body, unbind{x.Var.ID})
		case *syntax.SMapUpdate:
			push(x.Map, x.Key, bind{x.ValVar.ID}, x.Change, unbind{x.ValVar.ID})
		case *syntax.SSeq:
			if d, ok := x.S1.(*syntax.SDecl); ok {
				push(d.Val, bind{d.ID}, x.S2, unbind{d.ID})
			} else {
				push(x.S1, x.S2)
			}
		case *syntax.SDecl:
			push(x.Val)
		case *syntax.Query:
			var items []any
			for _, a := range x.Args {
				items = append(items, bind{a.Name})
			}
			for _, e := range x.Assumptions {
				items = append(items, e)
			}
			items = append(items, syntax.Node(x.Ret))
			for i := len(x.Args) - 1; i >= 0; i-- {
				items = append(items, unbind{x.Args[i].Name})
			}
			push(items...)
		case *syntax.Op:
			var items []any
			for _, a := range x.Args {
				items = append(items, bind{a.Name})
			}
			for _, e := range x.Assumptions {
				items = append(items, e)
			}
			items = append(items, syntax.Node(x.Body))
			for i := len(x.Args) - 1; i >= 0; i-- {
				items = append(items, unbind{x.Args[i].Name})
			}
			push(items...)

		case syntax.Node:
			_, _, kids := describeKids(x)
			items := make([]any, 0, len(kids))
			for _, k := range kids {
				if k != nil {
					items = append(items, k)
				}
			}
			push(items...)
		default:
			panic(fmt.Sprintf("syntaxtools: FreeVars: unhandled work item %T", item))
		}
	}
	return res
}

// describeKids exposes the syntax package's structural decomposition for
// traversal of node kinds with no binding structure.
func describeKids(n syntax.Node) (string, []string, []syntax.Node) {
	return syntax.Describe(n)
}

// FreeVarNames returns the free variable names of n as a set.
func FreeVarNames(n syntax.Node) map[string]bool {
	out := map[string]bool{}
	for _, v := range FreeVars(n).Vars() {
		out[v.ID] = true
	}
	return out
}

// FreeFuncs returns the called function names of e with their inferred
// function types, as an unordered map keyed by name.
func FreeFuncs(e syntax.Exp) map[string]*syntax.TFunc {
	res := map[string]*syntax.TFunc{}
	for _, x := range AllExps(e) {
		if c, ok := x.(*syntax.ECall); ok {
			argTypes := make([]syntax.Type, len(c.Args))
			for i, a := range c.Args {
				argTypes[i] = a.Type()
			}
			res[c.Func] = &syntax.TFunc{ArgTypes: argTypes, RetType: c.Type()}
		}
	}
	return res
}
