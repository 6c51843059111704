package typecheck

import (
	"github.com/cozylang/cozy/internal/syntax"
)

func (tc *checker) exp(e syntax.Exp) {
	switch e := e.(type) {
	case *syntax.EVar:
		if t, ok := tc.env[e.ID]; ok {
			syntax.WithType(e, t)
		} else {
			tc.reportErr(e, "no var %s in scope", e.ID)
			syntax.WithType(e, DefaultType)
		}

	case *syntax.EBool:
		syntax.WithType(e, syntax.Bool)

	case *syntax.ENum:
		// Numeric literals cannot be inferred without context.
		if e.Type() == nil {
			tc.reportErr(e, "not sure what the type of numeric literal %d is", e.Val)
			syntax.WithType(e, DefaultType)
		}

	case *syntax.EStr:
		syntax.WithType(e, syntax.String)

	case *syntax.ENull:
		if e.Type() == nil {
			tc.reportErr(e, "not sure what type this NULL should have")
			syntax.WithType(e, DefaultType)
		}

	case *syntax.EEnumEntry:
		if t, ok := tc.env[e.Name]; ok {
			syntax.WithType(e, t)
		} else {
			tc.reportErr(e, "no enum entry %s in scope", e.Name)
			syntax.WithType(e, DefaultType)
		}

	case *syntax.ENative:
		tc.exp(e.E)
		tc.ensureType(e.E, syntax.Int)
		if e.Type() == nil {
			tc.reportErr(e, "not enough information to construct type for native expression")
			syntax.WithType(e, DefaultType)
		}

	case *syntax.ECond:
		tc.exp(e.Cond)
		tc.exp(e.Then)
		tc.exp(e.Else)
		tc.ensureType(e.Cond, syntax.Bool)
		syntax.WithType(e, tc.lub(e, e.Else.Type(), e.Then.Type(),
			"cases in ternary expression must have the same type"))

	case *syntax.EBinOp:
		tc.binOp(e)

	case *syntax.EUnaryOp:
		tc.unaryOp(e)

	case *syntax.EArgMin:
		tc.exp(e.E)
		syntax.WithType(e.F.Arg, tc.collectionElem(e.E))
		tc.lambda(e.F)
		syntax.WithType(e, e.F.Arg.Type())

	case *syntax.EArgMax:
		tc.exp(e.E)
		syntax.WithType(e.F.Arg, tc.collectionElem(e.E))
		tc.lambda(e.F)
		syntax.WithType(e, e.F.Arg.Type())

	case *syntax.EHandle:
		tc.exp(e.Addr)
		tc.ensureType(e.Addr, syntax.Int)
		tc.exp(e.Value)
		if e.Type() != nil {
			if h, ok := e.Type().(*syntax.THandle); ok {
				tc.ensureType(e.Value, h.ValueType)
			}
		} else {
			tc.reportErr(e, "not enough information to construct type for handle expression")
			syntax.WithType(e, DefaultType)
		}

	case *syntax.EGetField:
		tc.exp(e.E)
		tc.getField(e)

	case *syntax.EMakeRecord:
		fields := make([]syntax.Field, len(e.Fields))
		for i, f := range e.Fields {
			tc.exp(f.Val)
			fields[i] = syntax.Field{Name: f.Name, Type: f.Val.Type()}
		}
		syntax.WithType(e, &syntax.TRecord{Fields: fields})

	case *syntax.EListComprehension:
		tc.pushScope()
		for _, c := range e.Clauses {
			switch c := c.(type) {
			case *syntax.CPull:
				tc.exp(c.E)
				tc.env[c.ID] = tc.collectionElem(c.E)
			case *syntax.CCond:
				tc.exp(c.E)
				tc.ensureType(c.E, syntax.Bool)
			}
		}
		tc.exp(e.E)
		tc.popScope()
		syntax.WithType(e, &syntax.TBag{Elem: e.E.Type()})

	case *syntax.EEmptyList:
		if e.Type() == nil {
			tc.reportErr(e, "unable to infer type for empty collection")
			syntax.WithType(e, DefaultType)
		} else {
			tc.collectionElem(e)
		}

	case *syntax.ESingleton:
		tc.exp(e.E)
		syntax.WithType(e, &syntax.TBag{Elem: e.E.Type()})

	case *syntax.ECall:
		tc.call(e)

	case *syntax.ETuple:
		ts := make([]syntax.Type, len(e.Es))
		for i, ee := range e.Es {
			tc.exp(ee)
			ts[i] = ee.Type()
		}
		syntax.WithType(e, &syntax.TTuple{Types: ts})

	case *syntax.ETupleGet:
		tc.exp(e.E)
		if t, ok := e.E.Type().(*syntax.TTuple); ok {
			if e.N >= 0 && e.N < len(t.Types) {
				syntax.WithType(e, t.Types[e.N])
			} else {
				tc.reportErr(e, "cannot get element %d from tuple of size %d", e.N, len(t.Types))
				syntax.WithType(e, DefaultType)
			}
		} else {
			tc.reportErr(e, "cannot get element from non-tuple")
			syntax.WithType(e, DefaultType)
		}

	case *syntax.ELet:
		tc.exp(e.E)
		syntax.WithType(e.F.Arg, e.E.Type())
		tc.lambda(e.F)
		syntax.WithType(e, e.F.Body.Type())

	case *syntax.ELambda:
		tc.lambda(e)

	case *syntax.EStateVar:
		tc.exp(e.E)
		syntax.WithType(e, e.E.Type())

	case *syntax.EEnumToInt:
		tc.exp(e.E)
		if _, ok := e.E.Type().(*syntax.TEnum); !ok && !IsDefault(e.E.Type()) {
			tc.reportErr(e, "argument has non-enum type %s", typeName(e.E.Type()))
		}
		syntax.WithType(e, syntax.Int)

	case *syntax.EBoolToInt:
		tc.exp(e.E)
		tc.ensureType(e.E, syntax.Bool)
		syntax.WithType(e, syntax.Int)

	case *syntax.EStm:
		tc.stm(e.Stm)
		tc.exp(e.E)
		syntax.WithType(e, e.E.Type())

	case *syntax.EFilter:
		tc.exp(e.E)
		elem := tc.collectionElem(e.E)
		syntax.WithType(e.P.Arg, elem)
		tc.lambda(e.P)
		tc.ensureType(e.P.Body, syntax.Bool)
		if _, isSet := e.E.Type().(*syntax.TSet); isSet {
			syntax.WithType(e, &syntax.TSet{Elem: elem})
		} else {
			syntax.WithType(e, &syntax.TBag{Elem: elem})
		}

	case *syntax.EMap:
		tc.exp(e.E)
		syntax.WithType(e.F.Arg, tc.collectionElem(e.E))
		tc.lambda(e.F)
		syntax.WithType(e, &syntax.TBag{Elem: e.F.Body.Type()})

	case *syntax.EFlatMap:
		tc.exp(e.E)
		syntax.WithType(e.F.Arg, tc.collectionElem(e.E))
		tc.lambda(e.F)
		tc.collectionElem(e.F.Body)
		syntax.WithType(e, e.F.Body.Type())

	case *syntax.EWithAlteredValue:
		tc.exp(e.Handle)
		tc.exp(e.NewValue)
		t := tc.handleValueType(e.Handle)
		tc.checkAssignment(e, t, e.NewValue.Type())
		syntax.WithType(e, e.Handle.Type())

	case *syntax.EMakeMap:
		tc.exp(e.E)
		elem := tc.collectionElem(e.E)
		syntax.WithType(e.Key.Arg, elem)
		syntax.WithType(e.Value.Arg, e.E.Type())
		tc.lambda(e.Key)
		tc.lambda(e.Value)
		syntax.WithType(e, &syntax.TMap{Key: e.Key.Body.Type(), Val: e.Value.Body.Type()})

	case *syntax.EMakeMap2:
		tc.exp(e.E)
		elem := tc.collectionElem(e.E)
		syntax.WithType(e.Value.Arg, elem)
		tc.lambda(e.Value)
		syntax.WithType(e, &syntax.TMap{Key: elem, Val: e.Value.Body.Type()})

	case *syntax.EMapGet:
		tc.exp(e.Map)
		tc.exp(e.Key)
		m, ok := e.Map.Type().(*syntax.TMap)
		if !ok {
			tc.reportErr(e, "%s is not a map", typeName(e.Map.Type()))
			syntax.WithType(e, DefaultType)
			return
		}
		tc.ensureType(e.Key, m.Key)
		syntax.WithType(e, m.Val)

	case *syntax.EMapKeys:
		tc.exp(e.E)
		k, _ := tc.mapTypes(e.E)
		syntax.WithType(e, &syntax.TBag{Elem: k})

	case *syntax.EVectorGet:
		tc.exp(e.E)
		tc.exp(e.I)
		tc.ensureType(e.I, syntax.Int)
		if v, ok := e.E.Type().(*syntax.TVector); ok {
			syntax.WithType(e, v.Elem)
		} else {
			tc.reportErr(e, "cannot index non-vector %s", typeName(e.E.Type()))
			syntax.WithType(e, DefaultType)
		}
	}
}

func (tc *checker) lambda(l *syntax.ELambda) {
	tc.pushScope()
	tc.env[l.Arg.ID] = l.Arg.Type()
	tc.exp(l.Body)
	tc.popScope()
}

func (tc *checker) binOp(e *syntax.EBinOp) {
	tc.exp(e.E1)
	tc.exp(e.E2)
	switch e.Op {
	case "==", "===", "!=", "<", "<=", ">", ">=":
		// Mixed numeric comparisons are allowed; everything else must agree
		// with the left operand.
		if !(IsNumeric(e.E1.Type()) && IsNumeric(e.E2.Type())) {
			tc.ensureType(e.E2, e.E1.Type())
		}
		syntax.WithType(e, syntax.Bool)
	case syntax.BOpAnd, syntax.BOpOr, "=>":
		tc.ensureType(e.E1, syntax.Bool)
		tc.ensureType(e.E2, syntax.Bool)
		syntax.WithType(e, syntax.Bool)
	case syntax.BOpIn:
		t := tc.collectionElem(e.E2)
		tc.ensureType(e.E1, t)
		syntax.WithType(e, syntax.Bool)
	case "+", "-":
		if IsNumeric(e.E1.Type()) {
			tc.ensureNumeric(e.E1)
			tc.ensureNumeric(e.E2)
			syntax.WithType(e, tc.numericLUB(e.E1.Type(), e.E2.Type()))
		} else {
			t1 := tc.collectionElem(e.E1)
			t2 := tc.collectionElem(e.E2)
			if !syntax.Equal(t1, t2) && !IsDefault(t1) && !IsDefault(t2) {
				tc.reportErr(e, "cannot concat %s and %s", typeName(e.E1.Type()), typeName(e.E2.Type()))
			}
			syntax.WithType(e, &syntax.TBag{Elem: t1})
		}
	default:
		tc.reportErr(e, "unknown binary operator %s", e.Op)
		syntax.WithType(e, DefaultType)
	}
}

func (tc *checker) unaryOp(e *syntax.EUnaryOp) {
	tc.exp(e.E)
	switch e.Op {
	case syntax.UOpSum:
		tt := tc.collectionElem(e.E)
		if IsNumeric(tt) || IsDefault(tt) {
			syntax.WithType(e, tt)
		} else {
			tc.reportErr(e, "cannot sum %s", typeName(e.E.Type()))
			syntax.WithType(e, DefaultType)
		}
	case syntax.UOpAreUnique, syntax.UOpEmpty, syntax.UOpExists:
		tc.collectionElem(e.E)
		syntax.WithType(e, syntax.Bool)
	case syntax.UOpDistinct:
		tc.collectionElem(e.E)
		syntax.WithType(e, e.E.Type())
	case syntax.UOpThe:
		syntax.WithType(e, tc.collectionElem(e.E))
	case syntax.UOpAny, syntax.UOpAll:
		tc.ensureType(e.E, syntax.BoolBag)
		syntax.WithType(e, syntax.Bool)
	case syntax.UOpLength:
		tc.collectionElem(e.E)
		syntax.WithType(e, syntax.Int)
	case syntax.UOpNot:
		tc.ensureType(e.E, syntax.Bool)
		syntax.WithType(e, syntax.Bool)
	case syntax.UOpNegate:
		tc.ensureNumeric(e.E)
		syntax.WithType(e, e.E.Type())
	default:
		tc.reportErr(e, "unknown unary operator %s", e.Op)
		syntax.WithType(e, DefaultType)
	}
}

func (tc *checker) getField(e *syntax.EGetField) {
	if IsDefault(e.E.Type()) {
		syntax.WithType(e, DefaultType)
		return
	}
	switch t := e.E.Type().(type) {
	case *syntax.TRecord:
		for _, f := range t.Fields {
			if f.Name == e.Field {
				syntax.WithType(e, f.Type)
				return
			}
		}
		tc.reportErr(e, "no field %s on type %s", e.Field, typeName(t))
		syntax.WithType(e, DefaultType)
	case *syntax.THandle:
		if e.Field == "val" {
			syntax.WithType(e, t.ValueType)
		} else {
			tc.reportErr(e, "no field %s on type %s", e.Field, typeName(t))
			syntax.WithType(e, DefaultType)
		}
	default:
		tc.reportErr(e, "cannot get field %s from non-record %s", e.Field, typeName(t))
		syntax.WithType(e, DefaultType)
	}
}

func (tc *checker) call(e *syntax.ECall) {
	var argDecls []syntax.Arg
	var outType syntax.Type
	known := false
	if f, ok := tc.funcs[e.Func]; ok {
		argDecls, outType, known = f.Args, f.OutType, true
	} else if q, ok := tc.queries[e.Func]; ok {
		argDecls, outType, known = q.Args, q.OutType(), true
	} else {
		tc.reportErr(e, "unknown function %q", e.Func)
	}

	for _, a := range e.Args {
		tc.exp(a)
	}

	if !known {
		syntax.WithType(e, DefaultType)
		return
	}
	if len(argDecls) != len(e.Args) {
		tc.reportErr(e, "wrong number of arguments to %q", e.Func)
	}
	for i := 0; i < len(argDecls) && i < len(e.Args); i++ {
		tc.ensureType(e.Args[i], argDecls[i].Type)
	}
	syntax.WithType(e, outType)
}
