package prettyprinter

import (
	"strings"
	"testing"

	"github.com/cozylang/cozy/internal/syntax"
)

func TestTypeRendering(t *testing.T) {
	tests := []struct {
		typ  syntax.Type
		want string
	}{
		{syntax.Int, "Int"},
		{syntax.Long, "Long"},
		{&syntax.TBag{Elem: syntax.Int}, "Bag<Int>"},
		{&syntax.TSet{Elem: syntax.String}, "Set<String>"},
		{&syntax.TMap{Key: syntax.Int, Val: syntax.Bool}, "Map<Int, Bool>"},
		{&syntax.THandle{StateVar: "users", ValueType: syntax.Int}, "users"},
		{&syntax.TEnum{Cases: []string{"A", "B"}}, "enum { A, B }"},
		{&syntax.TRecord{Fields: []syntax.Field{{Name: "x", Type: syntax.Int}}}, "{ x : Int }"},
		{&syntax.TTuple{Types: []syntax.Type{syntax.Int, syntax.Bool}}, "(Int, Bool)"},
	}
	for _, tt := range tests {
		if got := Type(tt.typ); got != tt.want {
			t.Errorf("Type() = %q, want %q", got, tt.want)
		}
	}
}

func TestExpRendering(t *testing.T) {
	x := syntax.WithType(&syntax.EVar{ID: "x"}, syntax.Int)
	xs := syntax.WithType(&syntax.EVar{ID: "xs"}, &syntax.TBag{Elem: syntax.Int})
	tests := []struct {
		e    syntax.Exp
		want string
	}{
		{syntax.EEq(x, syntax.Zero()), "(x == 0)"},
		{syntax.EIn(x, xs), "(x in xs)"},
		{&syntax.ESingleton{E: x}, "[x]"},
		{&syntax.EEmptyList{}, "[]"},
		{&syntax.ELambda{Arg: x, Body: x}, "(\\x -> x)"},
		{&syntax.EStateVar{E: xs}, "state(xs)"},
		{&syntax.EMapGet{Map: x, Key: x}, "x[x]"},
		{&syntax.ETuple{Es: []syntax.Exp{x, x}}, "(x, x)"},
		{&syntax.ELet{E: syntax.Zero(), F: &syntax.ELambda{Arg: x, Body: x}}, "let x = 0 in x"},
	}
	for _, tt := range tests {
		if got := Exp(tt.e); got != tt.want {
			t.Errorf("Exp() = %q, want %q", got, tt.want)
		}
	}
}

func TestMinShorthand(t *testing.T) {
	x := syntax.WithType(&syntax.EVar{ID: "x"}, syntax.Int)
	xs := syntax.WithType(&syntax.EVar{ID: "xs"}, &syntax.TBag{Elem: syntax.Int})
	identity := &syntax.EArgMin{E: xs, F: &syntax.ELambda{Arg: x, Body: x}}
	if got := Exp(identity); got != "min xs" {
		t.Errorf("identity selector prints as min, got %q", got)
	}
	selector := &syntax.EArgMin{E: xs, F: &syntax.ELambda{Arg: x, Body: syntax.EEq(x, syntax.Zero())}}
	if got := Exp(selector); !strings.HasPrefix(got, "argmin {") {
		t.Errorf("non-identity selector prints in full, got %q", got)
	}
}

func TestStmRendering(t *testing.T) {
	xs := syntax.WithType(&syntax.EVar{ID: "xs"}, &syntax.TBag{Elem: syntax.Int})
	x := syntax.WithType(&syntax.EVar{ID: "x"}, syntax.Int)
	s := &syntax.SForEach{
		Var:  x,
		Iter: xs,
		Body: &syntax.SCall{Target: xs, Func: "remove", Args: []syntax.Exp{x}},
	}
	got := Stm(s)
	if !strings.Contains(got, "for x in xs:") || !strings.Contains(got, "xs.remove(x)") {
		t.Errorf("unexpected rendering:\n%s", got)
	}
	if !strings.Contains(got, "\n  ") {
		t.Errorf("loop body must be indented:\n%s", got)
	}
}

func TestSpecRendering(t *testing.T) {
	spec := &syntax.Spec{
		Name:      "IntSet",
		StateVars: []syntax.Arg{{Name: "xs", Type: &syntax.TBag{Elem: syntax.Int}}},
		Methods: []syntax.Method{
			&syntax.Query{
				Name:       "size",
				Visibility: syntax.VisPublic,
				Ret:        &syntax.EUnaryOp{Op: syntax.UOpLength, E: &syntax.EVar{ID: "xs"}},
			},
		},
	}
	got := Print(spec)
	for _, want := range []string{"IntSet:", "state xs : Bag<Int>", "query size():", "(len xs)"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}
