package typecheck

import (
	"github.com/cozylang/cozy/internal/prettyprinter"
	"github.com/cozylang/cozy/internal/syntax"
)

func typeName(t syntax.Type) string {
	return prettyprinter.Type(t)
}

func (tc *checker) stm(s syntax.Stm) {
	switch s := s.(type) {
	case *syntax.SNoOp, *syntax.SEscapeBlock:

	case *syntax.SSeq:
		tc.stm(s.S1)
		tc.stm(s.S2)

	case *syntax.SCall:
		tc.exp(s.Target)
		for _, a := range s.Args {
			tc.exp(a)
		}
		switch s.Func {
		case "add", "remove":
			elem := tc.collectionElem(s.Target)
			if len(s.Args) != 1 {
				tc.reportErr(s, "%s takes exactly 1 argument", s.Func)
			}
			if len(s.Args) > 0 {
				tc.ensureType(s.Args[0], elem)
			}
		case "remove_all":
			tc.collectionElem(s.Target)
			if len(s.Args) != 1 {
				tc.reportErr(s, "remove_all takes exactly 1 argument")
			}
			if len(s.Args) > 0 {
				tc.ensureType(s.Args[0], s.Target.Type())
			}
		default:
			tc.reportErr(s, "unknown function %s", s.Func)
		}

	case *syntax.SAssign:
		tc.exp(s.LHS)
		tc.exp(s.RHS)
		tc.checkAssignment(s, s.LHS.Type(), s.RHS.Type())

	case *syntax.SDecl:
		tc.exp(s.Val)
		tc.env[s.ID] = s.Val.Type()

	case *syntax.SForEach:
		tc.pushScope()
		tc.exp(s.Iter)
		t := tc.collectionElem(s.Iter)
		tc.env[s.Var.ID] = t
		syntax.WithType(s.Var, t)
		tc.stm(s.Body)
		tc.popScope()

	case *syntax.SIf:
		tc.exp(s.Cond)
		tc.ensureType(s.Cond, syntax.Bool)
		tc.pushScope()
		tc.stm(s.Then)
		tc.popScope()
		tc.pushScope()
		tc.stm(s.Else)
		tc.popScope()

	case *syntax.SWhile:
		tc.exp(s.Cond)
		tc.ensureType(s.Cond, syntax.Bool)
		tc.pushScope()
		tc.stm(s.Body)
		tc.popScope()

	case *syntax.SEscapableBlock:
		tc.pushScope()
		tc.stm(s.Body)
		tc.popScope()

	case *syntax.SMapPut:
		tc.exp(s.Map)
		tc.exp(s.Key)
		tc.exp(s.Value)
		k, v := tc.mapTypes(s.Map)
		tc.ensureType(s.Key, k)
		tc.checkAssignment(s, v, s.Value.Type())

	case *syntax.SMapDel:
		tc.exp(s.Map)
		tc.exp(s.Key)
		k, _ := tc.mapTypes(s.Map)
		tc.ensureType(s.Key, k)

	case *syntax.SMapUpdate:
		tc.exp(s.Map)
		m, ok := s.Map.Type().(*syntax.TMap)
		if !ok {
			tc.reportErr(s, "%s is not a map", typeName(s.Map.Type()))
			return
		}
		tc.exp(s.Key)
		tc.ensureType(s.Key, m.Key)
		tc.pushScope()
		tc.env[s.ValVar.ID] = m.Val
		syntax.WithType(s.ValVar, m.Val)
		tc.stm(s.Change)
		tc.popScope()
	}
}
