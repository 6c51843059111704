// Package prettyprinter renders the IR back into the surface-like notation
// used in diagnostics and synthesis logs.
package prettyprinter

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/cozylang/cozy/internal/syntax"
)

type printer struct {
	buf    bytes.Buffer
	indent int
}

func (p *printer) write(s string)            { p.buf.WriteString(s) }
func (p *printer) writef(f string, a ...any) { fmt.Fprintf(&p.buf, f, a...) }

func (p *printer) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.buf.WriteString("  ")
	}
}

func (p *printer) writeln() { p.buf.WriteByte('\n') }

// Print renders any IR node.
func Print(n syntax.Node) string {
	var p printer
	p.node(n)
	return p.buf.String()
}

func (p *printer) node(n syntax.Node) {
	switch n := n.(type) {
	case syntax.Type:
		p.write(Type(n))
	case syntax.Exp:
		p.exp(n)
	case syntax.Stm:
		p.stm(n)
	case *syntax.Spec:
		p.spec(n)
	case *syntax.Query:
		p.query(n)
	case *syntax.Op:
		p.op(n)
	case *syntax.CPull:
		p.writef("%s <- ", n.ID)
		p.exp(n.E)
	case *syntax.CCond:
		p.exp(n.E)
	default:
		tag, _, _ := syntax.Describe(n)
		p.write(tag)
	}
}

// Type renders a type.
func Type(t syntax.Type) string {
	switch t := t.(type) {
	case nil:
		return "?"
	case *syntax.TInt:
		return "Int"
	case *syntax.TLong:
		return "Long"
	case *syntax.TBool:
		return "Bool"
	case *syntax.TString:
		return "String"
	case *syntax.TNative:
		return t.Name
	case *syntax.THandle:
		return t.StateVar
	case *syntax.TBag:
		return "Bag<" + Type(t.Elem) + ">"
	case *syntax.TSet:
		return "Set<" + Type(t.Elem) + ">"
	case *syntax.TMap:
		return "Map<" + Type(t.Key) + ", " + Type(t.Val) + ">"
	case *syntax.TNamed:
		return t.ID
	case *syntax.TRecord:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = f.Name + " : " + Type(f.Type)
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	case *syntax.TApp:
		return t.Ctor + "<" + Type(t.Arg) + ">"
	case *syntax.TEnum:
		return "enum { " + strings.Join(t.Cases, ", ") + " }"
	case *syntax.TTuple:
		parts := make([]string, len(t.Types))
		for i, tt := range t.Types {
			parts[i] = Type(tt)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case *syntax.TFunc:
		parts := make([]string, len(t.ArgTypes))
		for i, tt := range t.ArgTypes {
			parts[i] = Type(tt)
		}
		return "(" + strings.Join(parts, ", ") + ") -> " + Type(t.RetType)
	case *syntax.TRef:
		return "Ref<" + Type(t.Elem) + ">"
	case *syntax.TVector:
		return "Vector<" + Type(t.Elem) + ", " + strconv.Itoa(t.N) + ">"
	}
	return "?"
}

// Exp renders an expression on one line.
func Exp(e syntax.Exp) string {
	var p printer
	p.exp(e)
	return p.buf.String()
}

// Stm renders a statement block.
func Stm(s syntax.Stm) string {
	var p printer
	p.stm(s)
	return p.buf.String()
}

func (p *printer) exp(e syntax.Exp) {
	switch e := e.(type) {
	case nil:
		p.write("<nil>")
	case *syntax.EVar:
		p.write(e.ID)
	case *syntax.EBool:
		p.write(strconv.FormatBool(e.Val))
	case *syntax.ENum:
		p.write(strconv.FormatInt(e.Val, 10))
	case *syntax.EStr:
		p.write(strconv.Quote(e.Val))
	case *syntax.ENative:
		p.write("native(")
		p.exp(e.E)
		p.write(")")
	case *syntax.EEnumEntry:
		p.write(e.Name)
	case *syntax.ENull:
		p.write("NULL")
	case *syntax.ECond:
		p.write("(")
		p.exp(e.Cond)
		p.write(" ? ")
		p.exp(e.Then)
		p.write(" : ")
		p.exp(e.Else)
		p.write(")")
	case *syntax.EBinOp:
		p.write("(")
		p.exp(e.E1)
		p.write(" " + e.Op + " ")
		p.exp(e.E2)
		p.write(")")
	case *syntax.EUnaryOp:
		p.write("(" + e.Op + " ")
		p.exp(e.E)
		p.write(")")
	case *syntax.EArgMin:
		p.argMinMax("argmin", "min", e.E, e.F)
	case *syntax.EArgMax:
		p.argMinMax("argmax", "max", e.E, e.F)
	case *syntax.EHandle:
		p.write("handle(")
		p.exp(e.Addr)
		p.write(", ")
		p.exp(e.Value)
		p.write(")")
	case *syntax.EGetField:
		p.write("(")
		p.exp(e.E)
		p.write(")." + e.Field)
	case *syntax.EMakeRecord:
		p.write("{ ")
		for i, f := range e.Fields {
			if i > 0 {
				p.write(", ")
			}
			p.write(f.Name + " : ")
			p.exp(f.Val)
		}
		p.write(" }")
	case *syntax.EListComprehension:
		p.write("[")
		p.exp(e.E)
		p.write(" | ")
		for i, c := range e.Clauses {
			if i > 0 {
				p.write(", ")
			}
			p.node(c)
		}
		p.write("]")
	case *syntax.EEmptyList:
		p.write("[]")
	case *syntax.ESingleton:
		p.write("[")
		p.exp(e.E)
		p.write("]")
	case *syntax.ECall:
		p.write(e.Func + "(")
		p.expList(e.Args)
		p.write(")")
	case *syntax.ETuple:
		p.write("(")
		p.expList(e.Es)
		p.write(")")
	case *syntax.ETupleGet:
		p.write("(")
		p.exp(e.E)
		p.writef(").%d", e.N)
	case *syntax.ELet:
		p.writef("let %s = ", e.F.Arg.ID)
		p.exp(e.E)
		p.write(" in ")
		p.exp(e.F.Body)
	case *syntax.ELambda:
		p.writef("(\\%s -> ", e.Arg.ID)
		p.exp(e.Body)
		p.write(")")
	case *syntax.EStateVar:
		p.write("state(")
		p.exp(e.E)
		p.write(")")
	case *syntax.EEnumToInt:
		p.write("enum_to_int(")
		p.exp(e.E)
		p.write(")")
	case *syntax.EBoolToInt:
		p.write("bool_to_int(")
		p.exp(e.E)
		p.write(")")
	case *syntax.EStm:
		p.write("{stm} ")
		p.exp(e.E)
	case *syntax.EFilter:
		p.write("Filter {")
		p.exp(e.P)
		p.write("} (")
		p.exp(e.E)
		p.write(")")
	case *syntax.EMap:
		p.write("Map {")
		p.exp(e.F)
		p.write("} (")
		p.exp(e.E)
		p.write(")")
	case *syntax.EFlatMap:
		p.write("FlatMap(")
		p.exp(e.E)
		p.write(", ")
		p.exp(e.F)
		p.write(")")
	case *syntax.EWithAlteredValue:
		p.write("WithAlteredValue(")
		p.exp(e.Handle)
		p.write(", ")
		p.exp(e.NewValue)
		p.write(")")
	case *syntax.EMakeMap:
		p.write("MkMap(")
		p.exp(e.E)
		p.write(", ")
		p.exp(e.Key)
		p.write(", ")
		p.exp(e.Value)
		p.write(")")
	case *syntax.EMakeMap2:
		p.write("MkMap(")
		p.exp(e.E)
		p.write(", ")
		p.exp(e.Value)
		p.write(")")
	case *syntax.EMapGet:
		p.exp(e.Map)
		p.write("[")
		p.exp(e.Key)
		p.write("]")
	case *syntax.EMapKeys:
		p.write("keys(")
		p.exp(e.E)
		p.write(")")
	case *syntax.EVectorGet:
		p.exp(e.E)
		p.write("[")
		p.exp(e.I)
		p.write("]")
	default:
		tag, _, _ := syntax.Describe(e)
		p.write(tag)
	}
}

func (p *printer) argMinMax(full, short string, e syntax.Exp, f *syntax.ELambda) {
	if v, ok := f.Body.(*syntax.EVar); ok && v.ID == f.Arg.ID {
		p.write(short + " ")
		p.exp(e)
		return
	}
	p.write(full + " {")
	p.exp(f)
	p.write("} ")
	p.exp(e)
}

func (p *printer) expList(es []syntax.Exp) {
	for i, e := range es {
		if i > 0 {
			p.write(", ")
		}
		p.exp(e)
	}
}

func (p *printer) stm(s syntax.Stm) {
	switch s := s.(type) {
	case *syntax.SNoOp:
		p.writeIndent()
		p.write("pass")
	case *syntax.SSeq:
		p.stm(s.S1)
		p.writeln()
		p.stm(s.S2)
	case *syntax.SCall:
		p.writeIndent()
		p.exp(s.Target)
		p.write("." + s.Func + "(")
		p.expList(s.Args)
		p.write(")")
	case *syntax.SAssign:
		p.writeIndent()
		p.exp(s.LHS)
		p.write(" = ")
		p.exp(s.RHS)
	case *syntax.SDecl:
		p.writeIndent()
		p.writef("var %s : %s = ", s.ID, Type(s.Val.Type()))
		p.exp(s.Val)
	case *syntax.SForEach:
		p.writeIndent()
		p.writef("for %s in ", s.Var.ID)
		p.exp(s.Iter)
		p.write(":")
		p.writeln()
		p.indent++
		p.stm(s.Body)
		p.indent--
	case *syntax.SIf:
		p.writeIndent()
		p.write("if ")
		p.exp(s.Cond)
		p.write(":")
		p.writeln()
		p.indent++
		p.stm(s.Then)
		p.indent--
		if _, noop := s.Else.(*syntax.SNoOp); !noop {
			p.writeln()
			p.writeIndent()
			p.write("else:")
			p.writeln()
			p.indent++
			p.stm(s.Else)
			p.indent--
		}
	case *syntax.SWhile:
		p.writeIndent()
		p.write("while ")
		p.exp(s.Cond)
		p.write(":")
		p.writeln()
		p.indent++
		p.stm(s.Body)
		p.indent--
	case *syntax.SEscapableBlock:
		p.writeIndent()
		p.write(s.Label + ":")
		p.writeln()
		p.indent++
		p.stm(s.Body)
		p.indent--
	case *syntax.SEscapeBlock:
		p.writeIndent()
		p.write("break " + s.Label)
	case *syntax.SMapPut:
		p.writeIndent()
		p.exp(s.Map)
		p.write("[")
		p.exp(s.Key)
		p.write("] = ")
		p.exp(s.Value)
	case *syntax.SMapDel:
		p.writeIndent()
		p.write("del ")
		p.exp(s.Map)
		p.write("[")
		p.exp(s.Key)
		p.write("]")
	case *syntax.SMapUpdate:
		p.writeIndent()
		p.write("with ")
		p.exp(s.Map)
		p.write("[")
		p.exp(s.Key)
		p.writef("] as %s:", s.ValVar.ID)
		p.writeln()
		p.indent++
		p.stm(s.Change)
		p.indent--
	}
}

func (p *printer) query(q *syntax.Query) {
	p.writeIndent()
	p.writef("query %s(%s):", q.Name, formatArgs(q.Args))
	p.writeln()
	p.indent++
	for _, a := range q.Assumptions {
		p.writeIndent()
		p.write("assume ")
		p.exp(a)
		p.write(";")
		p.writeln()
	}
	p.writeIndent()
	p.exp(q.Ret)
	p.indent--
	p.writeln()
}

func (p *printer) op(o *syntax.Op) {
	p.writeIndent()
	p.writef("op %s(%s):", o.Name, formatArgs(o.Args))
	p.writeln()
	p.indent++
	for _, a := range o.Assumptions {
		p.writeIndent()
		p.write("assume ")
		p.exp(a)
		p.write(";")
		p.writeln()
	}
	p.stm(o.Body)
	p.indent--
	p.writeln()
}

func (p *printer) spec(s *syntax.Spec) {
	p.writef("%s:", s.Name)
	p.writeln()
	p.indent++
	for _, nt := range s.Types {
		p.writeIndent()
		p.writef("type %s = %s", nt.Name, Type(nt.Type))
		p.writeln()
	}
	for _, sv := range s.StateVars {
		p.writeIndent()
		p.writef("state %s : %s", sv.Name, Type(sv.Type))
		p.writeln()
	}
	for _, a := range s.Assumptions {
		p.writeIndent()
		p.write("assume ")
		p.exp(a)
		p.write(";")
		p.writeln()
	}
	for _, m := range s.Methods {
		p.node(m)
	}
	p.indent--
}

func formatArgs(args []syntax.Arg) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.Name + " : " + Type(a.Type)
	}
	return strings.Join(parts, ", ")
}
