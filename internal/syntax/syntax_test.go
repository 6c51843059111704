package syntax

import (
	"testing"
)

func bag(t Type) *TBag { return &TBag{Elem: t} }

func TestEqualIgnoresAttachedTypes(t *testing.T) {
	a := &EVar{ID: "x"}
	b := WithType(&EVar{ID: "x"}, Int)
	if !Equal(a, b) {
		t.Errorf("vars with the same name should be structurally equal")
	}
	c := &EVar{ID: "y"}
	if Equal(a, c) {
		t.Errorf("vars with different names should not be equal")
	}
}

func TestHashConsistentWithEqual(t *testing.T) {
	mk := func() Exp {
		return &EBinOp{
			E1: &EVar{ID: "x"},
			Op: "+",
			E2: &ENum{Val: 1},
		}
	}
	e1, e2 := mk(), mk()
	if Hash(e1) != Hash(e2) {
		t.Errorf("equal structures must hash equal")
	}
	if !Equal(e1, e2) {
		t.Errorf("identically built structures must be equal")
	}
	e3 := &EBinOp{E1: &EVar{ID: "x"}, Op: "-", E2: &ENum{Val: 1}}
	if Equal(e1, e3) {
		t.Errorf("operators are structure")
	}
}

func TestRecordFieldOrderIsStructure(t *testing.T) {
	r1 := &EMakeRecord{Fields: []FieldExp{{Name: "x", Val: &ENum{Val: 0}}, {Name: "y", Val: ETrue()}}}
	r2 := &EMakeRecord{Fields: []FieldExp{{Name: "y", Val: ETrue()}, {Name: "x", Val: &ENum{Val: 0}}}}
	if Equal(r1, r2) {
		t.Errorf("field order matters in the IR")
	}
}

func TestSeqDropsNoOps(t *testing.T) {
	tests := []struct {
		name string
		in   []Stm
		want string
	}{
		{"empty", nil, "*syntax.SNoOp"},
		{"all noops", []Stm{&SNoOp{}, &SNoOp{}}, "*syntax.SNoOp"},
		{"single", []Stm{&SDecl{ID: "x", Val: One()}}, "*syntax.SDecl"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Seq(tt.in...)
			if name := typeName(got); name != tt.want {
				t.Errorf("Seq = %s, want %s", name, tt.want)
			}
		})
	}

	s := Seq(&SDecl{ID: "x", Val: One()}, &SNoOp{}, &SDecl{ID: "y", Val: One()})
	seq, ok := s.(*SSeq)
	if !ok {
		t.Fatalf("expected SSeq, got %T", s)
	}
	if _, ok := seq.S1.(*SDecl); !ok {
		t.Errorf("noop should be dropped from the middle")
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *SNoOp:
		return "*syntax.SNoOp"
	case *SDecl:
		return "*syntax.SDecl"
	case *SSeq:
		return "*syntax.SSeq"
	}
	return "?"
}

func TestEAllShortCircuits(t *testing.T) {
	if !IsTrue(EAll(nil)) {
		t.Errorf("empty conjunction is true")
	}
	if !IsFalse(EAll([]Exp{ETrue(), EFalse(), ETrue()})) {
		t.Errorf("conjunction with false is false")
	}
	x := WithType(&EVar{ID: "p"}, Bool)
	if !Equal(EAll([]Exp{ETrue(), x}), x) {
		t.Errorf("true conjuncts should be dropped")
	}
}

func TestBuildBalancedTreeShape(t *testing.T) {
	var es []Exp
	for i := 0; i < 8; i++ {
		es = append(es, WithType(&EVar{ID: "p"}, Bool))
	}
	e := BuildBalancedTree(Bool, BOpAnd, es)
	if depth(e) != 3 {
		t.Errorf("8 leaves should give depth 3, got %d", depth(e))
	}
}

func depth(e Exp) int {
	b, ok := e.(*EBinOp)
	if !ok {
		return 0
	}
	l, r := depth(b.E1), depth(b.E2)
	if l > r {
		return l + 1
	}
	return r + 1
}

func TestSizeCountsNodes(t *testing.T) {
	e := &EBinOp{E1: &EVar{ID: "x"}, Op: "+", E2: &ENum{Val: 1}}
	if got := Size(e); got != 3 {
		t.Errorf("Size = %d, want 3", got)
	}
}

func TestContainsSubtree(t *testing.T) {
	inner := &EVar{ID: "x"}
	e := &EUnaryOp{Op: UOpLength, E: WithType(&EVar{ID: "x"}, bag(Int))}
	if !ContainsSubtree(e, inner) {
		t.Errorf("subtree should be found regardless of attached types")
	}
	if ContainsSubtree(e, &EVar{ID: "q"}) {
		t.Errorf("absent subtree reported present")
	}
}
