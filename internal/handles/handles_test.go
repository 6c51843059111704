package handles

import (
	"testing"

	"github.com/cozylang/cozy/internal/syntax"
	"github.com/cozylang/cozy/internal/syntaxtools"
)

func TestReachableFromBagOfHandles(t *testing.T) {
	ht := &syntax.THandle{StateVar: "hs", ValueType: syntax.Int}
	spec := &syntax.Spec{
		Name:      "H",
		StateVars: []syntax.Arg{{Name: "hs", Type: &syntax.TBag{Elem: ht}}},
	}
	bags := ReachableAtMethod(spec, nil)
	if len(bags.Types) != 1 {
		t.Fatalf("one handle type reachable, got %d", len(bags.Types))
	}
	bag := bags.Bag(ht)
	if bag == nil {
		t.Fatal("no bag for the handle type")
	}
	if !syntaxtools.FreeVarNames(bag)["hs"] {
		t.Errorf("the bag must read the state variable")
	}
}

func TestReachableThroughMethodArgs(t *testing.T) {
	ht := &syntax.THandle{StateVar: "hs", ValueType: syntax.Int}
	spec := &syntax.Spec{Name: "H"}
	op := &syntax.Op{
		Name: "touch",
		Args: []syntax.Arg{{Name: "h", Type: ht}},
		Body: &syntax.SNoOp{},
	}
	bags := ReachableAtMethod(spec, op)
	if bags.Bag(ht) == nil {
		t.Errorf("argument handles are reachable")
	}
}

func TestNoHandlesNoBags(t *testing.T) {
	spec := &syntax.Spec{
		Name:      "Plain",
		StateVars: []syntax.Arg{{Name: "xs", Type: &syntax.TBag{Elem: syntax.Int}}},
	}
	bags := ReachableAtMethod(spec, nil)
	if len(bags.Types) != 0 {
		t.Errorf("no handle types expected, got %d", len(bags.Types))
	}
}

func TestImplicitAssumptionsShape(t *testing.T) {
	ht := &syntax.THandle{StateVar: "hs", ValueType: syntax.Int}
	spec := &syntax.Spec{
		Name:      "H",
		StateVars: []syntax.Arg{{Name: "hs", Type: &syntax.TBag{Elem: ht}}},
	}
	assumptions := ImplicitAssumptions(ReachableAtMethod(spec, nil))
	if len(assumptions) != 1 {
		t.Fatalf("one assumption per handle type, got %d", len(assumptions))
	}
	a := assumptions[0]
	if !syntax.Equal(a.Type(), syntax.Bool) {
		t.Errorf("assumptions are boolean")
	}
	// Shape: all (map ... (all (map ...))) with an implication inside.
	found := false
	for _, e := range syntaxtools.AllExps(a) {
		if bin, ok := e.(*syntax.EBinOp); ok && bin.Op == syntax.BOpOr {
			found = true
		}
	}
	if !found {
		t.Errorf("the aliasing implication is missing")
	}
}
