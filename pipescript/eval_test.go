package pipescript

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testEnv() *Env {
	env := NewEnv()
	CoreBundle().Install(env)
	return env
}

func run(t *testing.T, src string, env *Env) Value {
	t.Helper()
	prog, err := Parse(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	v, err := Run(context.Background(), prog, env)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return v
}

func TestEvalPipeline(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want Value
	}{
		{"literal", `"hello"`, "hello"},
		{"command", `upper "hello"`, "HELLO"},
		{"pipe chain", `"  hi  " | trim | upper`, "HI"},
		{"piped becomes first arg", `"a-b-c" | split "-" | len`, float64(3)},
		{"number literal", `echo 42`, float64(42)},
		{"negative number", `echo -7`, float64(-7)},
		{"bool literal", `echo true`, true},
		{"null literal", `echo null`, nil},
		{"list", `["a", "b"] | join ","`, "a,b"},
		{"group", `concat "x" (upper "y")`, "xY"},
		{"replace", `replace "aaa" "a" "b"`, "bbb"},
		{"default fallback", `default "" "fallback"`, "fallback"},
		{"json roundtrip", `{a: 1} | json | parsejson | get "a"`, float64(1)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := run(t, tc.src, testEnv())
			if got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestEvalVariables(t *testing.T) {
	env := testEnv()
	got := run(t, "x = upper \"go\"\nconcat $x \"!\"", env)
	if got != "GO!" {
		t.Errorf("expected GO!, got %v", got)
	}
	if v, ok := env.Get("x"); !ok || v != "GO" {
		t.Errorf("expected x bound to GO, got %v", v)
	}
}

func TestEvalVarPath(t *testing.T) {
	env := testEnv()
	env.Set("req", map[string]Value{
		"method": "GET",
		"header": map[string]Value{"Accept": "text/plain"},
	})
	if got := run(t, `echo $req.method`, env); got != "GET" {
		t.Errorf("expected GET, got %v", got)
	}
	if got := run(t, `echo $req.header.Accept`, env); got != "text/plain" {
		t.Errorf("expected text/plain, got %v", got)
	}
}

func TestEvalFunction(t *testing.T) {
	env := testEnv()
	got := run(t, `
fn greet(name) {
  concat "hello, " $name
}
greet "world" | upper
`, env)
	if got != "HELLO, WORLD" {
		t.Errorf("expected HELLO, WORLD, got %v", got)
	}
}

func TestEvalFunctionWrongArity(t *testing.T) {
	env := testEnv()
	prog, err := Parse("fn pair(a, b) { echo $a }\npair \"only\"")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	_, err = Run(context.Background(), prog, env)
	var rt *RuntimeError
	if !errors.As(err, &rt) {
		t.Fatalf("expected *RuntimeError, got %v", err)
	}
}

func TestEvalUnknownCommand(t *testing.T) {
	prog, err := Parse(`frobnicate "x"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	_, err = Run(context.Background(), prog, testEnv())
	var rt *RuntimeError
	if !errors.As(err, &rt) {
		t.Fatalf("expected *RuntimeError, got %v", err)
	}
	if rt.Line != 1 || rt.Col != 1 {
		t.Errorf("expected position 1:1, got %d:%d", rt.Line, rt.Col)
	}
}

func TestEvalUndefinedVariable(t *testing.T) {
	prog, _ := Parse(`echo $missing`)
	_, err := Run(context.Background(), prog, testEnv())
	var rt *RuntimeError
	if !errors.As(err, &rt) {
		t.Fatalf("expected *RuntimeError, got %v", err)
	}
}

func TestEvalTypeConstructor(t *testing.T) {
	env := testEnv()
	env.DefineType("Order", &Type{
		Name: "Order",
		Fields: map[string]Kind{
			"id":    KindString,
			"total": KindNumber,
		},
	})

	got := run(t, `Order {id: "o-1", total: 9.5} | get "total"`, env)
	if got != 9.5 {
		t.Errorf("expected 9.5, got %v", got)
	}

	// Missing fields default to the kind's zero value.
	got = run(t, `Order {id: "o-2"} | get "total"`, env)
	if got != float64(0) {
		t.Errorf("expected 0, got %v", got)
	}

	// Wrong field kind fails.
	prog, _ := Parse(`Order {id: 12}`)
	if _, err := Run(context.Background(), prog, env); err == nil {
		t.Error("expected a kind mismatch error")
	}

	// Unknown field fails.
	prog, _ = Parse(`Order {nope: "x"}`)
	if _, err := Run(context.Background(), prog, env); err == nil {
		t.Error("expected an unknown field error")
	}
}

func TestChildFrameIsolation(t *testing.T) {
	parent := testEnv()
	parent.Set("base", "seed")

	child := parent.Child()
	run(t, `scoped = "request"`, child)

	if _, ok := child.Get("base"); !ok {
		t.Error("child should see parent bindings")
	}
	if _, ok := parent.Get("scoped"); ok {
		t.Error("child writes must not reach the parent")
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prog, _ := Parse(`echo "never"`)
	_, err := Run(ctx, prog, testEnv())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRunDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	prog, _ := Parse(`echo "never"`)
	_, err := Run(ctx, prog, testEnv())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestRender(t *testing.T) {
	cases := []struct {
		in   Value
		want string
	}{
		{nil, ""},
		{"plain", "plain"},
		{float64(2), "2"},
		{true, "true"},
		{[]Value{"a", float64(1)}, `["a",1]`},
	}
	for _, tc := range cases {
		if got := Render(tc.in); got != tc.want {
			t.Errorf("Render(%v): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}
