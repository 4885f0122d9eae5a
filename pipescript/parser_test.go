package pipescript

import (
	"errors"
	"strings"
	"testing"
)

func TestLexBasics(t *testing.T) {
	toks, err := lex(`greeting = upper "hi" | trim`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []TokenType{tokIdent, tokAssign, tokIdent, tokString, tokPipe, tokIdent, tokEOF}
	if len(toks) != len(want) {
		t.Fatalf("expected %d tokens, got %d", len(want), len(toks))
	}
	for i, w := range want {
		if toks[i].Type != w {
			t.Errorf("token %d: expected type %d, got %d (%q)", i, w, toks[i].Type, toks[i].Text)
		}
	}
}

func TestLexComments(t *testing.T) {
	toks, err := lex("# a comment\necho \"x\" # trailing\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, tok := range toks {
		if tok.Type == tokIdent && tok.Text == "comment" {
			t.Error("comment text leaked into token stream")
		}
	}
}

func TestLexStringEscapes(t *testing.T) {
	toks, err := lex(`"a\nb\t\"c\""`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toks[0].Text != "a\nb\t\"c\"" {
		t.Errorf("unexpected string value %q", toks[0].Text)
	}
}

func TestLexErrorPosition(t *testing.T) {
	_, err := lex("echo \"ok\"\n  echo @bad")
	var syn *SyntaxError
	if !errors.As(err, &syn) {
		t.Fatalf("expected *SyntaxError, got %v", err)
	}
	if syn.Line != 2 {
		t.Errorf("expected line 2, got %d", syn.Line)
	}
	if syn.Col != 8 {
		t.Errorf("expected col 8, got %d", syn.Col)
	}
}

func TestParsePipeline(t *testing.T) {
	prog, err := Parse(`"hello" | upper | replace "L" "_"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prog.Stmts) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(prog.Stmts))
	}

	stmt, ok := prog.Stmts[0].(*ExprStmt)
	if !ok {
		t.Fatalf("expected *ExprStmt, got %T", prog.Stmts[0])
	}
	if len(stmt.Value.Stages) != 3 {
		t.Fatalf("expected 3 stages, got %d", len(stmt.Value.Stages))
	}
	if stmt.Value.Stages[0].Cmd != "" {
		t.Error("first stage should be an expression")
	}
	if stmt.Value.Stages[1].Cmd != "upper" {
		t.Errorf("expected command 'upper', got %q", stmt.Value.Stages[1].Cmd)
	}
	if len(stmt.Value.Stages[2].Args) != 2 {
		t.Errorf("expected 2 args on replace, got %d", len(stmt.Value.Stages[2].Args))
	}
}

func TestParseAssignment(t *testing.T) {
	prog, err := Parse("x = echo \"a\"\ny = $x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prog.Stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(prog.Stmts))
	}
	assign, ok := prog.Stmts[0].(*AssignStmt)
	if !ok {
		t.Fatalf("expected *AssignStmt, got %T", prog.Stmts[0])
	}
	if assign.Name != "x" {
		t.Errorf("expected target 'x', got %q", assign.Name)
	}
}

func TestParseFunction(t *testing.T) {
	prog, err := Parse(`
fn shout(s) {
  upper $s
}
shout "hi"
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fnStmt, ok := prog.Stmts[0].(*FnStmt)
	if !ok {
		t.Fatalf("expected *FnStmt, got %T", prog.Stmts[0])
	}
	if fnStmt.Name != "shout" || len(fnStmt.Params) != 1 || fnStmt.Params[0] != "s" {
		t.Errorf("unexpected function signature: %+v", fnStmt)
	}
}

func TestParseMapAndList(t *testing.T) {
	prog, err := Parse(`echo {id: "a", nums: [1, 2, 3], ok: true}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stage := prog.Stmts[0].(*ExprStmt).Value.Stages[0]
	m, ok := stage.Args[0].(*MapExpr)
	if !ok {
		t.Fatalf("expected *MapExpr, got %T", stage.Args[0])
	}
	if len(m.Keys) != 3 {
		t.Errorf("expected 3 keys, got %d", len(m.Keys))
	}
}

func TestParseVarPath(t *testing.T) {
	prog, err := Parse(`echo $req.method`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stage := prog.Stmts[0].(*ExprStmt).Value.Stages[0]
	v, ok := stage.Args[0].(*VarExpr)
	if !ok {
		t.Fatalf("expected *VarExpr, got %T", stage.Args[0])
	}
	if v.Name != "req" || len(v.Path) != 1 || v.Path[0] != "method" {
		t.Errorf("unexpected var expr: %+v", v)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name    string
		src     string
		wantMsg string
		line    int
	}{
		{"unterminated string", "echo \"oops", "unterminated string", 1},
		{"missing fn body", "fn f()\n", "expected '{'", 2},
		{"bad map key", "echo {1: 2}", "expected map key", 1},
		{"dangling pipe", "echo \"x\" |", "unexpected", 1},
		{"unclosed group", "echo (upper \"x\"", "expected ')'", 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.src)
			if err == nil {
				t.Fatal("expected parse error")
			}
			var syn *SyntaxError
			if !errors.As(err, &syn) {
				t.Fatalf("expected *SyntaxError, got %T", err)
			}
			if !strings.Contains(syn.Msg, tc.wantMsg) {
				t.Errorf("expected message containing %q, got %q", tc.wantMsg, syn.Msg)
			}
			if syn.Line != tc.line {
				t.Errorf("expected line %d, got %d", tc.line, syn.Line)
			}
		})
	}
}
