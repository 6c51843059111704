package syntax

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"sync/atomic"
)

// describe decomposes a node into its kind tag, scalar attributes, and child
// nodes. Hashing, equality, and size all derive from it, so the three can
// never disagree about what counts as structure. Attached types and the
// simplifier's no-simpl mark are not structure.
func describe(n Node) (tag string, scalars []string, kids []Node) {
	switch n := n.(type) {
	case *TInt:
		return "TInt", nil, nil
	case *TLong:
		return "TLong", nil, nil
	case *TBool:
		return "TBool", nil, nil
	case *TString:
		return "TString", nil, nil
	case *TNative:
		return "TNative", []string{n.Name}, nil
	case *THandle:
		return "THandle", []string{n.StateVar}, []Node{n.ValueType}
	case *TBag:
		return "TBag", nil, []Node{n.Elem}
	case *TSet:
		return "TSet", nil, []Node{n.Elem}
	case *TMap:
		return "TMap", nil, []Node{n.Key, n.Val}
	case *TNamed:
		return "TNamed", []string{n.ID}, nil
	case *TRecord:
		scalars = make([]string, len(n.Fields))
		kids = make([]Node, len(n.Fields))
		for i, f := range n.Fields {
			scalars[i] = f.Name
			kids[i] = f.Type
		}
		return "TRecord", scalars, kids
	case *TApp:
		return "TApp", []string{n.Ctor}, []Node{n.Arg}
	case *TEnum:
		return "TEnum", n.Cases, nil
	case *TTuple:
		return "TTuple", nil, typeNodes(n.Types)
	case *TFunc:
		return "TFunc", nil, append(typeNodes(n.ArgTypes), n.RetType)
	case *TRef:
		return "TRef", nil, []Node{n.Elem}
	case *TVector:
		return "TVector", []string{strconv.Itoa(n.N)}, []Node{n.Elem}

	case *EVar:
		return "EVar", []string{n.ID}, nil
	case *EBool:
		return "EBool", []string{strconv.FormatBool(n.Val)}, nil
	case *ENum:
		return "ENum", []string{strconv.FormatInt(n.Val, 10)}, nil
	case *EStr:
		return "EStr", []string{n.Val}, nil
	case *ENative:
		return "ENative", nil, []Node{n.E}
	case *EEnumEntry:
		return "EEnumEntry", []string{n.Name}, nil
	case *ENull:
		return "ENull", nil, nil
	case *ECond:
		return "ECond", nil, []Node{n.Cond, n.Then, n.Else}
	case *EBinOp:
		return "EBinOp", []string{n.Op}, []Node{n.E1, n.E2}
	case *EUnaryOp:
		return "EUnaryOp", []string{n.Op}, []Node{n.E}
	case *EArgMin:
		return "EArgMin", nil, []Node{n.E, n.F}
	case *EArgMax:
		return "EArgMax", nil, []Node{n.E, n.F}
	case *EHandle:
		return "EHandle", nil, []Node{n.Addr, n.Value}
	case *EGetField:
		return "EGetField", []string{n.Field}, []Node{n.E}
	case *EMakeRecord:
		scalars = make([]string, len(n.Fields))
		kids = make([]Node, len(n.Fields))
		for i, f := range n.Fields {
			scalars[i] = f.Name
			kids[i] = f.Val
		}
		return "EMakeRecord", scalars, kids
	case *EListComprehension:
		kids = append(kids, n.E)
		for _, c := range n.Clauses {
			kids = append(kids, c)
		}
		return "EListComprehension", nil, kids
	case *CPull:
		return "CPull", []string{n.ID}, []Node{n.E}
	case *CCond:
		return "CCond", nil, []Node{n.E}
	case *EEmptyList:
		return "EEmptyList", nil, nil
	case *ESingleton:
		return "ESingleton", nil, []Node{n.E}
	case *ECall:
		return "ECall", []string{n.Func}, expNodes(n.Args)
	case *ETuple:
		return "ETuple", nil, expNodes(n.Es)
	case *ETupleGet:
		return "ETupleGet", []string{strconv.Itoa(n.N)}, []Node{n.E}
	case *ELet:
		return "ELet", nil, []Node{n.E, n.F}
	case *ELambda:
		return "ELambda", nil, []Node{n.Arg, n.Body}
	case *EStateVar:
		return "EStateVar", nil, []Node{n.E}
	case *EEnumToInt:
		return "EEnumToInt", nil, []Node{n.E}
	case *EBoolToInt:
		return "EBoolToInt", nil, []Node{n.E}
	case *EStm:
		return "EStm", nil, []Node{n.Stm, n.E}
	case *EFilter:
		return "EFilter", nil, []Node{n.E, n.P}
	case *EMap:
		return "EMap", nil, []Node{n.E, n.F}
	case *EFlatMap:
		return "EFlatMap", nil, []Node{n.E, n.F}
	case *EWithAlteredValue:
		return "EWithAlteredValue", nil, []Node{n.Handle, n.NewValue}
	case *EMakeMap:
		return "EMakeMap", nil, []Node{n.E, n.Key, n.Value}
	case *EMakeMap2:
		return "EMakeMap2", nil, []Node{n.E, n.Value}
	case *EMapGet:
		return "EMapGet", nil, []Node{n.Map, n.Key}
	case *EMapKeys:
		return "EMapKeys", nil, []Node{n.E}
	case *EVectorGet:
		return "EVectorGet", nil, []Node{n.E, n.I}

	case *SNoOp:
		return "SNoOp", nil, nil
	case *SSeq:
		return "SSeq", nil, []Node{n.S1, n.S2}
	case *SCall:
		return "SCall", []string{n.Func}, append([]Node{n.Target}, expNodes(n.Args)...)
	case *SAssign:
		return "SAssign", nil, []Node{n.LHS, n.RHS}
	case *SDecl:
		return "SDecl", []string{n.ID}, []Node{n.Val}
	case *SForEach:
		return "SForEach", nil, []Node{n.Var, n.Iter, n.Body}
	case *SIf:
		return "SIf", nil, []Node{n.Cond, n.Then, n.Else}
	case *SWhile:
		return "SWhile", nil, []Node{n.Cond, n.Body}
	case *SEscapableBlock:
		return "SEscapableBlock", []string{n.Label}, []Node{n.Body}
	case *SEscapeBlock:
		return "SEscapeBlock", []string{n.Label}, nil
	case *SMapPut:
		return "SMapPut", nil, []Node{n.Map, n.Key, n.Value}
	case *SMapDel:
		return "SMapDel", nil, []Node{n.Map, n.Key}
	case *SMapUpdate:
		return "SMapUpdate", nil, []Node{n.Map, n.Key, n.ValVar, n.Change}

	case *ExternFunc:
		scalars = []string{n.Name, n.Body}
		for _, a := range n.Args {
			scalars = append(scalars, a.Name)
			kids = append(kids, a.Type)
		}
		return "ExternFunc", scalars, append(kids, n.OutType)
	case *Op:
		scalars = []string{n.Name}
		for _, a := range n.Args {
			scalars = append(scalars, a.Name)
			kids = append(kids, a.Type)
		}
		kids = append(kids, expNodes(n.Assumptions)...)
		kids = append(kids, n.Body)
		return "Op", scalars, kids
	case *Query:
		scalars = []string{n.Name, string(n.Visibility)}
		for _, a := range n.Args {
			scalars = append(scalars, a.Name)
			kids = append(kids, a.Type)
		}
		kids = append(kids, expNodes(n.Assumptions)...)
		kids = append(kids, n.Ret)
		return "Query", scalars, kids
	case *Spec:
		scalars = []string{n.Name}
		for _, nt := range n.Types {
			scalars = append(scalars, nt.Name)
			kids = append(kids, nt.Type)
		}
		for _, f := range n.ExternFuncs {
			kids = append(kids, f)
		}
		for _, sv := range n.StateVars {
			scalars = append(scalars, sv.Name)
			kids = append(kids, sv.Type)
		}
		kids = append(kids, expNodes(n.Assumptions)...)
		for _, m := range n.Methods {
			kids = append(kids, m)
		}
		return "Spec", scalars, kids
	}
	panic(fmt.Sprintf("syntax: describe: unhandled node %T", n))
}

// Describe exposes the structural decomposition (kind tag, scalar
// attributes, child nodes) for generic traversals in other packages.
func Describe(n Node) (tag string, scalars []string, kids []Node) {
	return describe(n)
}

func typeNodes(ts []Type) []Node {
	out := make([]Node, len(ts))
	for i, t := range ts {
		out[i] = t
	}
	return out
}

func expNodes(es []Exp) []Node {
	out := make([]Node, len(es))
	for i, e := range es {
		out[i] = e
	}
	return out
}

// hashCache gives race-free lazy hashing: zero means "not yet computed", and
// a computed zero is stored as 1.
type hashCache interface{ cacheCell() *atomic.Uint64 }

func (n *node) cacheCell() *atomic.Uint64 { return &n.cached }

// Hash returns the structural hash of n, cached on the node. Hashes ignore
// attached types, so equal structures always hash equal; the converse does
// not hold.
func Hash(n Node) uint64 {
	if n == nil {
		return 0
	}
	cell := n.(hashCache).cacheCell()
	if h := cell.Load(); h != 0 {
		return h
	}
	tag, scalars, kids := describe(n)
	h := fnv.New64a()
	h.Write([]byte(tag))
	for _, s := range scalars {
		h.Write([]byte{0})
		h.Write([]byte(s))
	}
	var buf [8]byte
	for _, k := range kids {
		kh := Hash(k)
		for i := 0; i < 8; i++ {
			buf[i] = byte(kh >> (8 * i))
		}
		h.Write(buf[:])
	}
	res := h.Sum64()
	if res == 0 {
		res = 1
	}
	cell.Store(res)
	return res
}

// Equal is structural equality. Variable names matter; attached types do not.
func Equal(a, b Node) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if Hash(a) != Hash(b) {
		return false
	}
	ta, sa, ka := describe(a)
	tb, sb, kb := describe(b)
	if ta != tb || len(sa) != len(sb) || len(ka) != len(kb) {
		return false
	}
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	for i := range ka {
		if !Equal(ka[i], kb[i]) {
			return false
		}
	}
	return true
}

// Size counts the nodes in the tree rooted at n.
func Size(n Node) int {
	res := 0
	stack := []Node{n}
	for len(stack) > 0 {
		x := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if x == nil {
			continue
		}
		res++
		_, _, kids := describe(x)
		stack = append(stack, kids...)
	}
	return res
}

// ContainsSubtree reports whether tree contains a subtree structurally equal
// to sub.
func ContainsSubtree(tree, sub Node) bool {
	if Equal(tree, sub) {
		return true
	}
	_, _, kids := describe(tree)
	for _, k := range kids {
		if k != nil && ContainsSubtree(k, sub) {
			return true
		}
	}
	return false
}
