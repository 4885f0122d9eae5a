package dispatch

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/voxfeld/scriptgate/engine"
	"github.com/voxfeld/scriptgate/pool"
)

type stubRunner struct {
	result   engine.Result
	checkErr error
	lastCode string
	runs     int
}

func (s *stubRunner) Run(ctx context.Context, lang engine.Language, wrappedCode string, opts ...engine.RunOption) engine.Result {
	s.lastCode = wrappedCode
	s.runs++
	return s.result
}

func (s *stubRunner) Check(ctx context.Context, lang engine.Language, code string) error {
	return s.checkErr
}

type stubDialect struct{ name string }

func (s *stubDialect) Name() string   { return s.name }
func (s *stubDialect) Module() []byte { return nil }
func (s *stubDialect) Prelude(imports, references []string) string {
	if len(imports) == 0 {
		return ""
	}
	return "import " + strings.Join(imports, ", ") + "\n"
}
func (s *stubDialect) WrapCode(code string) string      { return "WRAP:" + code }
func (s *stubDialect) WrapCheck(code string) string     { return code }
func (s *stubDialect) Args(wrappedCode string) []string { return []string{s.name, wrappedCode} }

func newPipeCompiler(t *testing.T) (*Compiler, *pool.Pool) {
	t.Helper()
	p, err := pool.New(pool.WithMaxSlots(2))
	if err != nil {
		t.Fatalf("pool.New() error = %v", err)
	}
	t.Cleanup(p.Shutdown)
	return NewCompiler(&stubRunner{}, p), p
}

func exchangeFor(method, target, body string) (*Exchange, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	var req = httptest.NewRequest(method, target, nil)
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return &Exchange{Request: req, Response: rec, Params: map[string]string{}}, rec
}

func TestCompileEmptySource(t *testing.T) {
	c, _ := newPipeCompiler(t)
	if _, err := c.Compile(context.Background(), Source{Lang: LangPipe, Code: "  \n\t"}); !errors.Is(err, ErrEmptySource) {
		t.Errorf("expected ErrEmptySource, got %v", err)
	}
}

func TestCompileUnsupportedLanguage(t *testing.T) {
	c, _ := newPipeCompiler(t)
	_, err := c.Compile(context.Background(), Source{Lang: "ruby", Code: "puts 1"})
	var ule *UnsupportedLanguageError
	if !errors.As(err, &ule) {
		t.Fatalf("expected UnsupportedLanguageError, got %v", err)
	}
	if ule.Lang != "ruby" {
		t.Errorf("error names %q, want ruby", ule.Lang)
	}
}

func TestCompilePipeSyntaxError(t *testing.T) {
	c, _ := newPipeCompiler(t)
	_, err := c.Compile(context.Background(), Source{Lang: LangPipe, Code: "x =\n| broken"})
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CompileError, got %v", err)
	}
	if len(ce.Diagnostics) != 1 || ce.Diagnostics[0].Line == 0 {
		t.Errorf("expected one positioned diagnostic, got %+v", ce.Diagnostics)
	}
}

func TestPipeHandler(t *testing.T) {
	c, _ := newPipeCompiler(t)
	u, err := c.Compile(context.Background(), Source{
		Lang: LangPipe,
		Code: "upper $req.query.name",
	})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	ex, rec := exchangeFor("GET", "/greet?name=world", "")
	if err := u.Handler()(context.Background(), ex); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if rec.Body.String() != "WORLD" {
		t.Errorf("body = %q, want WORLD", rec.Body.String())
	}
}

func TestPipeHandlerStatusAndHeader(t *testing.T) {
	c, _ := newPipeCompiler(t)
	u, err := c.Compile(context.Background(), Source{
		Lang: LangPipe,
		Code: "header \"X-Kind\" \"demo\"\nstatus 201\necho \"made\"",
	})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	ex, rec := exchangeFor("POST", "/things", "")
	if err := u.Handler()(context.Background(), ex); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if rec.Code != 201 {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if rec.Header().Get("X-Kind") != "demo" {
		t.Errorf("missing X-Kind header")
	}
	if rec.Body.String() != "made" {
		t.Errorf("body = %q, want made", rec.Body.String())
	}
}

func TestPipeHandlerArgsBinding(t *testing.T) {
	c, _ := newPipeCompiler(t)
	u, err := c.Compile(context.Background(), Source{
		Lang: LangPipe,
		Code: "concat \"item-\" $id",
		Args: []string{"id"},
	})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	ex, rec := exchangeFor("GET", "/items/7", "")
	ex.Params["id"] = "7"
	if err := u.Handler()(context.Background(), ex); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if rec.Body.String() != "item-7" {
		t.Errorf("body = %q, want item-7", rec.Body.String())
	}
}

func TestPipeHandlerScriptErrorReleasesSlot(t *testing.T) {
	c, p := newPipeCompiler(t)
	u, err := c.Compile(context.Background(), Source{Lang: LangPipe, Code: "no_such_command 1"})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	before := p.Stats()
	ex, _ := exchangeFor("GET", "/boom", "")
	herr := u.Handler()(context.Background(), ex)

	var se *ScriptError
	if !errors.As(herr, &se) {
		t.Fatalf("expected ScriptError, got %v", herr)
	}
	after := p.Stats()
	if after.Free != before.Free || after.Created != before.Created {
		t.Errorf("slot not returned: before %+v after %+v", before, after)
	}
}

func TestPipeRequestBindingsDoNotPersist(t *testing.T) {
	c, p := newPipeCompiler(t)
	u, err := c.Compile(context.Background(), Source{Lang: LangPipe, Code: "echo $req.method"})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	ex, _ := exchangeFor("GET", "/x", "")
	if err := u.Handler()(context.Background(), ex); err != nil {
		t.Fatalf("handler error = %v", err)
	}

	slot, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer p.Release(slot)
	if _, ok := slot.Env().Get("req"); ok {
		t.Error("request binding leaked into persistent slot state")
	}
}

func TestPipeRequestBodyTruncation(t *testing.T) {
	c, _ := newPipeCompiler(t)
	u, err := c.Compile(context.Background(), Source{Lang: LangPipe, Code: "echo $req.body_truncated"})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	ex, rec := exchangeFor("POST", "/ingest", "small payload")
	if err := u.Handler()(context.Background(), ex); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if rec.Body.String() != "false" {
		t.Errorf("small body: body_truncated = %q, want false", rec.Body.String())
	}

	big := strings.Repeat("x", maxScriptBody+10)
	ex2, rec2 := exchangeFor("POST", "/ingest", big)
	if err := u.Handler()(context.Background(), ex2); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if rec2.Body.String() != "true" {
		t.Errorf("oversized body: body_truncated = %q, want true", rec2.Body.String())
	}
}

func TestCompileDialectCheckFailure(t *testing.T) {
	runner := &stubRunner{checkErr: &engine.CheckError{Line: 2, Column: 5, Message: "invalid syntax"}}
	p, _ := pool.New()
	t.Cleanup(p.Shutdown)
	c := NewCompiler(runner, p, WithLanguage(LangPython, &stubDialect{name: "python"}))

	_, err := c.Compile(context.Background(), Source{Lang: LangPython, Code: "def broken("})
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CompileError, got %v", err)
	}
	d := ce.Diagnostics[0]
	if d.Line != 2 || d.Column != 5 || d.Message != "invalid syntax" {
		t.Errorf("unexpected diagnostic %+v", d)
	}
}

func TestDialectHandler(t *testing.T) {
	runner := &stubRunner{result: engine.Result{Output: "hello from python"}}
	p, _ := pool.New()
	t.Cleanup(p.Shutdown)
	c := NewCompiler(runner, p, WithLanguage(LangPython, &stubDialect{name: "python"}))

	u, err := c.Compile(context.Background(), Source{
		Lang:    LangPython,
		Code:    "print('hello from python')",
		Imports: []string{"json"},
	})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if u.Lang() != LangPython {
		t.Errorf("unit lang = %s", u.Lang())
	}

	ex, rec := exchangeFor("GET", "/hello", "")
	if err := u.Handler()(context.Background(), ex); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if rec.Body.String() != "hello from python" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if !strings.HasPrefix(runner.lastCode, "import json\nWRAP:") {
		t.Errorf("wrapped code = %q, want prelude then wrap", runner.lastCode)
	}
}

func TestDialectHandlerScriptError(t *testing.T) {
	runner := &stubRunner{result: engine.Result{Error: errors.New("Traceback: boom")}}
	p, _ := pool.New()
	t.Cleanup(p.Shutdown)
	c := NewCompiler(runner, p, WithLanguage(LangJavaScript, &stubDialect{name: "javascript"}))

	u, err := c.Compile(context.Background(), Source{Lang: LangJavaScript, Code: "throw 1"})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	ex, _ := exchangeFor("GET", "/boom", "")
	herr := u.Handler()(context.Background(), ex)
	var se *ScriptError
	if !errors.As(herr, &se) {
		t.Fatalf("expected ScriptError, got %v", herr)
	}
	if se.Lang != LangJavaScript {
		t.Errorf("error lang = %s", se.Lang)
	}
}

func TestUnitCacheByContentHash(t *testing.T) {
	c, _ := newPipeCompiler(t)
	src := Source{Lang: LangPipe, Code: "echo \"same\""}

	a, err := c.Compile(context.Background(), src)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	b, err := c.Compile(context.Background(), src)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if a != b {
		t.Error("identical sources should share a cached unit")
	}
}

func TestSourceHash(t *testing.T) {
	base := Source{Lang: LangPython, Code: "x = 1"}
	withImport := Source{Lang: LangPython, Code: "x = 1", Imports: []string{"os"}}
	otherLang := Source{Lang: LangJavaScript, Code: "x = 1"}

	if base.Hash() != (Source{Lang: LangPython, Code: "x = 1"}).Hash() {
		t.Error("equal sources must hash equal")
	}
	if base.Hash() == withImport.Hash() {
		t.Error("imports must affect the hash")
	}
	if base.Hash() == otherLang.Hash() {
		t.Error("language must affect the hash")
	}

	withArg := Source{Lang: LangPython, Code: "x = 1", Args: []string{"id"}}
	if base.Hash() == withArg.Hash() {
		t.Error("args must affect the hash")
	}

	asImport := Source{Lang: LangPython, Code: "x = 1", Imports: []string{"v"}}
	asRef := Source{Lang: LangPython, Code: "x = 1", References: []string{"v"}}
	if asImport.Hash() == asRef.Hash() {
		t.Error("the same value in different list fields must not hash equal")
	}
}

func TestUnitCacheDistinguishesArgs(t *testing.T) {
	c, _ := newPipeCompiler(t)

	bound, err := c.Compile(context.Background(), Source{
		Lang: LangPipe,
		Code: "echo $id",
		Args: []string{"id"},
	})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	unbound, err := c.Compile(context.Background(), Source{Lang: LangPipe, Code: "echo $id"})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if bound == unbound {
		t.Fatal("same code with different args must compile to different units")
	}

	ex, rec := exchangeFor("GET", "/items/42", "")
	ex.Params["id"] = "42"
	if err := bound.Handler()(context.Background(), ex); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if rec.Body.String() != "42" {
		t.Errorf("body = %q, want 42", rec.Body.String())
	}

	ex2, _ := exchangeFor("GET", "/items/42", "")
	ex2.Params["id"] = "42"
	herr := unbound.Handler()(context.Background(), ex2)
	var serr *ScriptError
	if !errors.As(herr, &serr) {
		t.Errorf("unit without the binding should fail at run time, got %v", herr)
	}
}
