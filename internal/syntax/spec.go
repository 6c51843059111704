package syntax

// Visibility controls who may call a query.
type Visibility string

const (
	VisPublic   Visibility = "public"   // usable by clients
	VisPrivate  Visibility = "private"  // helper used by other queries
	VisInternal Visibility = "internal" // helper used by op implementations
)

// Arg is a named, typed parameter (also used for state variables).
type Arg struct {
	Name string
	Type Type
}

// NamedType is a spec-level type alias.
type NamedType struct {
	Name string
	Type Type
}

// ExternFunc declares a foreign function usable in expressions. Its body is
// an opaque string consumed by code generators.
type ExternFunc struct {
	node
	Name    string
	Args    []Arg
	OutType Type
	Body    string
}

// Method is either an Op (mutator) or a Query (pure read).
type Method interface {
	Node
	methodNode()
	MethodName() string
	MethodArgs() []Arg
}

// Op mutates abstract state.
type Op struct {
	node
	Name        string
	Args        []Arg
	Assumptions []Exp
	Body        Stm
	Docstring   string
}

// Query reads abstract state and returns Ret.
type Query struct {
	node
	Name        string
	Visibility  Visibility
	Args        []Arg
	Assumptions []Exp
	Ret         Exp
	Docstring   string
}

func (*Op) methodNode()    {}
func (*Query) methodNode() {}

func (o *Op) MethodName() string { return o.Name }
func (o *Op) MethodArgs() []Arg  { return o.Args }

func (q *Query) MethodName() string { return q.Name }
func (q *Query) MethodArgs() []Arg  { return q.Args }

// OutType is the query's return type (the type of Ret after checking).
func (q *Query) OutType() Type {
	if q.Ret == nil {
		return nil
	}
	return q.Ret.Type()
}

// Spec is a complete data-structure specification. The checker resolves
// named types in place; afterwards the Spec is immutable.
type Spec struct {
	node
	Name        string
	Types       []NamedType
	ExternFuncs []*ExternFunc
	StateVars   []Arg
	Assumptions []Exp
	Methods     []Method
	Header      string
	Footer      string
	Docstring   string
}

// CopyQuery returns a shallow field-wise copy of q with its own slices and
// a fresh hash cache, safe for the caller to modify.
func CopyQuery(q *Query) *Query {
	return &Query{
		Name:        q.Name,
		Visibility:  q.Visibility,
		Args:        append([]Arg{}, q.Args...),
		Assumptions: append([]Exp{}, q.Assumptions...),
		Ret:         q.Ret,
		Docstring:   q.Docstring,
	}
}

// CopyOp is CopyQuery for ops.
func CopyOp(op *Op) *Op {
	return &Op{
		Name:        op.Name,
		Args:        append([]Arg{}, op.Args...),
		Assumptions: append([]Exp{}, op.Assumptions...),
		Body:        op.Body,
		Docstring:   op.Docstring,
	}
}

// CopySpec is CopyQuery for whole specs.
func CopySpec(s *Spec) *Spec {
	return &Spec{
		Name:        s.Name,
		Types:       append([]NamedType{}, s.Types...),
		ExternFuncs: append([]*ExternFunc{}, s.ExternFuncs...),
		StateVars:   append([]Arg{}, s.StateVars...),
		Assumptions: append([]Exp{}, s.Assumptions...),
		Methods:     append([]Method{}, s.Methods...),
		Header:      s.Header,
		Footer:      s.Footer,
		Docstring:   s.Docstring,
	}
}

// Ops returns the spec's mutators in declaration order.
func (s *Spec) Ops() []*Op {
	var ops []*Op
	for _, m := range s.Methods {
		if op, ok := m.(*Op); ok {
			ops = append(ops, op)
		}
	}
	return ops
}

// Queries returns the spec's queries in declaration order.
func (s *Spec) Queries() []*Query {
	var qs []*Query
	for _, m := range s.Methods {
		if q, ok := m.(*Query); ok {
			qs = append(qs, q)
		}
	}
	return qs
}
