package pipescript

// Position is a 1-based source location.
type Position struct {
	Line int
	Col  int
}

// Program is a parsed pipe script: a sequence of statements. Programs are
// immutable once parsed and safe to execute concurrently against different
// environments.
type Program struct {
	Stmts []Stmt
}

// Stmt is a single statement.
type Stmt interface {
	Pos() Position
	stmtNode()
}

// AssignStmt binds the value of a pipeline to a variable: name = pipeline.
type AssignStmt struct {
	Name     string
	Value    *Pipeline
	Position Position
}

// FnStmt defines a named function: fn name(a, b) { ... }.
type FnStmt struct {
	Name     string
	Params   []string
	Body     *Program
	Position Position
}

// ExprStmt is a bare pipeline whose value becomes the statement result.
type ExprStmt struct {
	Value *Pipeline
}

func (s *AssignStmt) Pos() Position { return s.Position }
func (s *FnStmt) Pos() Position     { return s.Position }
func (s *ExprStmt) Pos() Position   { return s.Value.Pos() }

func (*AssignStmt) stmtNode() {}
func (*FnStmt) stmtNode()     {}
func (*ExprStmt) stmtNode()   {}

// Pipeline is one or more stages joined by '|'. The value of each stage is
// passed as the first argument of the next.
type Pipeline struct {
	Stages []*Stage
}

func (p *Pipeline) Pos() Position {
	if len(p.Stages) == 0 {
		return Position{}
	}
	return p.Stages[0].Position
}

// Stage is either a command invocation (Cmd non-empty) or a plain expression.
type Stage struct {
	Cmd      string
	Args     []Expr
	Expr     Expr
	Position Position
}

// Expr is an expression node.
type Expr interface {
	Pos() Position
	exprNode()
}

// Lit is a literal string, number, bool, or null.
type Lit struct {
	Val      Value
	Position Position
}

// VarExpr references a variable, optionally descending into map fields:
// $req.method.
type VarExpr struct {
	Name     string
	Path     []string
	Position Position
}

// ListExpr is a list literal: [1, 2, "x"].
type ListExpr struct {
	Elems    []Expr
	Position Position
}

// MapExpr is a map literal: {id: $x, total: 3}.
type MapExpr struct {
	Keys     []string
	Vals     []Expr
	Position Position
}

// GroupExpr is a parenthesized pipeline used in argument position.
type GroupExpr struct {
	Pipe     *Pipeline
	Position Position
}

func (e *Lit) Pos() Position       { return e.Position }
func (e *VarExpr) Pos() Position   { return e.Position }
func (e *ListExpr) Pos() Position  { return e.Position }
func (e *MapExpr) Pos() Position   { return e.Position }
func (e *GroupExpr) Pos() Position { return e.Position }

func (*Lit) exprNode()       {}
func (*VarExpr) exprNode()   {}
func (*ListExpr) exprNode()  {}
func (*MapExpr) exprNode()   {}
func (*GroupExpr) exprNode() {}
