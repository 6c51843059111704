package incremental

import (
	"context"
	"testing"

	"github.com/cozylang/cozy/internal/solver"
	"github.com/cozylang/cozy/internal/syntax"
	"github.com/cozylang/cozy/internal/syntaxtools"
)

func intBag() *syntax.TBag { return &syntax.TBag{Elem: syntax.Int} }

func xsVar() *syntax.EVar { return syntax.WithType(&syntax.EVar{ID: "xs"}, intBag()) }
func xVar() *syntax.EVar  { return syntax.WithType(&syntax.EVar{ID: "x"}, syntax.Int) }

func tracked() []syntax.Arg {
	return []syntax.Arg{{Name: "xs", Type: intBag()}, {Name: "x", Type: syntax.Int}}
}

func TestDeltaFormAdd(t *testing.T) {
	op := &syntax.Op{
		Name: "insert",
		Args: []syntax.Arg{{Name: "x", Type: syntax.Int}},
		Body: &syntax.SCall{Target: xsVar(), Func: "add", Args: []syntax.Exp{xVar()}},
	}
	delta, err := DeltaForm(tracked(), op)
	if err != nil {
		t.Fatal(err)
	}
	want := syntax.WithType(&syntax.EBinOp{
		E1: xsVar(),
		Op: "+",
		E2: syntax.WithType(&syntax.ESingleton{E: xVar()}, intBag()),
	}, intBag())
	if !syntax.Equal(delta["xs"], want) {
		t.Errorf("add maps the target to target + [x]")
	}
}

func TestDeltaFormRemoveAll(t *testing.T) {
	ys := syntax.WithType(&syntax.EVar{ID: "ys"}, intBag())
	op := &syntax.Op{
		Name: "clear_some",
		Args: []syntax.Arg{{Name: "ys", Type: intBag()}},
		Body: &syntax.SCall{Target: xsVar(), Func: "remove_all", Args: []syntax.Exp{ys}},
	}
	delta, err := DeltaForm(tracked(), op)
	if err != nil {
		t.Fatal(err)
	}
	want := syntax.WithType(&syntax.EBinOp{E1: xsVar(), Op: "-", E2: ys}, intBag())
	if !syntax.Equal(delta["xs"], want) {
		t.Errorf("remove_all maps the target to target - ys")
	}
}

func TestDeltaFormSequenceComposes(t *testing.T) {
	// xs.add(x); xs.add(x)  =>  xs + [x] + [x]
	add := func() syntax.Stm {
		return &syntax.SCall{Target: xsVar(), Func: "add", Args: []syntax.Exp{xVar()}}
	}
	op := &syntax.Op{
		Name: "twice",
		Args: []syntax.Arg{{Name: "x", Type: syntax.Int}},
		Body: syntax.Seq(add(), add()),
	}
	delta, err := DeltaForm(tracked(), op)
	if err != nil {
		t.Fatal(err)
	}
	outer, ok := delta["xs"].(*syntax.EBinOp)
	if !ok || outer.Op != "+" {
		t.Fatalf("expected concat, got %T", delta["xs"])
	}
	inner, ok := outer.E1.(*syntax.EBinOp)
	if !ok || inner.Op != "+" {
		t.Fatalf("the first add must be substituted into the second")
	}
}

func TestDeltaFormConditional(t *testing.T) {
	cond := syntax.EEq(xVar(), syntax.Zero())
	op := &syntax.Op{
		Name: "maybe_insert",
		Args: []syntax.Arg{{Name: "x", Type: syntax.Int}},
		Body: &syntax.SIf{
			Cond: cond,
			Then: &syntax.SCall{Target: xsVar(), Func: "add", Args: []syntax.Exp{xVar()}},
			Else: &syntax.SNoOp{},
		},
	}
	delta, err := DeltaForm(tracked(), op)
	if err != nil {
		t.Fatal(err)
	}
	c, ok := delta["xs"].(*syntax.ECond)
	if !ok {
		t.Fatalf("conditional mutation gives a conditional delta, got %T", delta["xs"])
	}
	if !syntax.Equal(c.Cond, cond) {
		t.Errorf("delta condition mirrors the statement condition")
	}
	if !syntax.Equal(c.Else, xsVar()) {
		t.Errorf("the else-branch leaves the variable unchanged")
	}
}

func TestDeltaFormAssignAndLocals(t *testing.T) {
	n := syntax.WithType(&syntax.EVar{ID: "n"}, syntax.Int)
	op := &syntax.Op{
		Name: "set",
		Args: []syntax.Arg{{Name: "v", Type: syntax.Int}},
		Body: syntax.Seq(
			&syntax.SDecl{ID: "tmp", Val: syntax.WithType(&syntax.EVar{ID: "v"}, syntax.Int)},
			&syntax.SAssign{LHS: n, RHS: syntax.WithType(&syntax.EVar{ID: "tmp"}, syntax.Int)},
		),
	}
	delta, err := DeltaForm([]syntax.Arg{{Name: "n", Type: syntax.Int}, {Name: "v", Type: syntax.Int}}, op)
	if err != nil {
		t.Fatal(err)
	}
	if _, leaked := delta["tmp"]; leaked {
		t.Errorf("locals must not appear in the final delta")
	}
	if v, ok := delta["n"].(*syntax.EVar); !ok || v.ID != "v" {
		t.Errorf("the local must be substituted through, got %v", delta["n"])
	}
}

func TestDeltaFormHandleFieldAssign(t *testing.T) {
	ht := &syntax.THandle{StateVar: "hs", ValueType: syntax.Int}
	h := syntax.WithType(&syntax.EVar{ID: "h"}, ht)
	op := &syntax.Op{
		Name: "poke",
		Args: []syntax.Arg{{Name: "h", Type: ht}},
		Body: &syntax.SAssign{
			LHS: syntax.WithType(&syntax.EGetField{E: h, Field: "val"}, syntax.Int),
			RHS: syntax.Zero(),
		},
	}
	delta, err := DeltaForm([]syntax.Arg{{Name: "h", Type: ht}}, op)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := delta["h"].(*syntax.EWithAlteredValue); !ok {
		t.Errorf("field writes transport the handle to an altered-value form, got %T", delta["h"])
	}
}

func TestDeltaFormRejectsLoops(t *testing.T) {
	op := &syntax.Op{
		Name: "bad",
		Body: &syntax.SWhile{Cond: syntax.ETrue(), Body: &syntax.SNoOp{}},
	}
	if _, err := DeltaForm(tracked(), op); !ErrUnsupportedStm.Is(err) {
		t.Errorf("loops have no symbolic delta, got %v", err)
	}
}

func TestSketchUpdateNoOpWhenUnchanged(t *testing.T) {
	p := NewPlanner(solver.NewBounded())
	v := syntax.WithType(&syntax.EVar{ID: "c"}, intBag())
	stm, queries, err := p.SketchUpdate(context.Background(), v, xsVar(), xsVar(), tracked()[:1], nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := stm.(*syntax.SNoOp); !ok {
		t.Errorf("unchanged projection needs no update, got %T", stm)
	}
	if len(queries) != 0 {
		t.Errorf("no sub-queries for a no-op")
	}
}

func TestSketchUpdateScalar(t *testing.T) {
	p := NewPlanner(solver.NewBounded())
	c := syntax.WithType(&syntax.EVar{ID: "c"}, syntax.Int)
	proj := syntax.WithType(&syntax.EUnaryOp{Op: syntax.UOpLength, E: xsVar()}, syntax.Int)
	newProj := syntax.WithType(&syntax.EBinOp{E1: proj, Op: "+", E2: syntax.One()}, syntax.Int)

	stm, queries, err := p.SketchUpdate(context.Background(), c, proj, newProj, tracked()[:1], nil)
	if err != nil {
		t.Fatal(err)
	}
	assign, ok := stm.(*syntax.SAssign)
	if !ok {
		t.Fatalf("scalar updates assign, got %T", stm)
	}
	call, ok := assign.RHS.(*syntax.ECall)
	if !ok {
		t.Fatalf("the new value comes from an auxiliary query")
	}
	if len(queries) != 1 || queries[0].Name != call.Func {
		t.Fatalf("the query must be returned for registration")
	}
	if queries[0].Visibility != syntax.VisInternal {
		t.Errorf("discovered queries are Internal")
	}
	fv := syntaxtools.FreeVarNames(queries[0])
	if fv["c"] {
		t.Errorf("the query must not mention the updated slot")
	}
}

func TestSketchUpdateBag(t *testing.T) {
	p := NewPlanner(solver.NewBounded())
	c := syntax.WithType(&syntax.EVar{ID: "c"}, intBag())
	proj := xsVar()
	newProj := syntax.WithType(&syntax.EBinOp{
		E1: xsVar(),
		Op: "+",
		E2: syntax.WithType(&syntax.ESingleton{E: xVar()}, intBag()),
	}, intBag())

	stm, queries, err := p.SketchUpdate(context.Background(), c, proj, newProj, tracked()[:1], nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(queries) == 0 {
		t.Fatalf("bag updates discover added/removed queries")
	}
	for _, q := range queries {
		if q.Visibility != syntax.VisInternal {
			t.Errorf("discovered queries are Internal")
		}
		// Self-contained: free vars are state vars or op args.
		for name := range syntaxtools.FreeVarNames(q) {
			if name != "xs" {
				t.Errorf("unexpected free variable %s", name)
			}
		}
	}
	foundLoop := false
	for _, s := range flatten(stm) {
		if fe, ok := s.(*syntax.SForEach); ok {
			if _, ok := fe.Iter.(*syntax.ECall); !ok {
				t.Errorf("the loop must iterate a discovered query, got %T", fe.Iter)
			}
			if _, ok := fe.Body.(*syntax.SCall); ok {
				foundLoop = true
			}
		}
	}
	if !foundLoop {
		t.Errorf("bag updates loop over the discovered elements")
	}
}

func flatten(s syntax.Stm) []syntax.Stm {
	if seq, ok := s.(*syntax.SSeq); ok {
		return append(flatten(seq.S1), flatten(seq.S2)...)
	}
	return []syntax.Stm{s}
}
