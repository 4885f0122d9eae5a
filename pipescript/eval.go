package pipescript

import (
	"context"
	"fmt"
)

// RuntimeError is a script-level failure raised during execution.
type RuntimeError struct {
	Line int
	Col  int
	Msg  string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Msg)
}

func runtimeErr(pos Position, format string, args ...any) error {
	return &RuntimeError{Line: pos.Line, Col: pos.Col, Msg: fmt.Sprintf(format, args...)}
}

// Run executes a program against env and returns the value of the last
// statement. Cancellation is checked between statements and pipeline stages.
func Run(ctx context.Context, prog *Program, env *Env) (Value, error) {
	var last Value
	for _, stmt := range prog.Stmts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := evalStmt(ctx, stmt, env)
		if err != nil {
			return nil, err
		}
		last = v
	}
	return last, nil
}

func evalStmt(ctx context.Context, stmt Stmt, env *Env) (Value, error) {
	switch s := stmt.(type) {
	case *AssignStmt:
		v, err := evalPipeline(ctx, s.Value, env)
		if err != nil {
			return nil, err
		}
		env.Set(s.Name, v)
		return v, nil
	case *FnStmt:
		env.SetFunc(s.Name, makeFunc(s, env))
		return nil, nil
	case *ExprStmt:
		return evalPipeline(ctx, s.Value, env)
	default:
		return nil, runtimeErr(stmt.Pos(), "unknown statement")
	}
}

// makeFunc closes over the defining environment. Parameters are bound in a
// child frame per call.
func makeFunc(def *FnStmt, defEnv *Env) Func {
	return func(ctx context.Context, args []Value) (Value, error) {
		if len(args) != len(def.Params) {
			return nil, fmt.Errorf("%s: want %d arguments, got %d", def.Name, len(def.Params), len(args))
		}
		frame := defEnv.Child()
		for i, param := range def.Params {
			frame.Set(param, args[i])
		}
		return Run(ctx, def.Body, frame)
	}
}

func evalPipeline(ctx context.Context, pipe *Pipeline, env *Env) (Value, error) {
	var piped Value
	for i, stage := range pipe.Stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := evalStage(ctx, stage, env, piped, i > 0)
		if err != nil {
			return nil, err
		}
		piped = v
	}
	return piped, nil
}

func evalStage(ctx context.Context, stage *Stage, env *Env, piped Value, hasPiped bool) (Value, error) {
	if stage.Cmd == "" {
		if hasPiped {
			return nil, runtimeErr(stage.Position, "expression cannot receive piped input")
		}
		return evalExpr(ctx, stage.Expr, env)
	}

	args := make([]Value, 0, len(stage.Args)+1)
	if hasPiped {
		args = append(args, piped)
	}
	for _, argExpr := range stage.Args {
		v, err := evalExpr(ctx, argExpr, env)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	if fn, ok := env.Func(stage.Cmd); ok {
		v, err := fn(ctx, args)
		if err != nil {
			return nil, runtimeErr(stage.Position, "%s: %v", stage.Cmd, err)
		}
		return v, nil
	}
	if t, ok := env.Type(stage.Cmd); ok {
		var arg Value
		if len(args) > 1 {
			return nil, runtimeErr(stage.Position, "%s: a type constructor takes one map argument", stage.Cmd)
		}
		if len(args) == 1 {
			arg = args[0]
		}
		v, err := t.New(arg)
		if err != nil {
			return nil, runtimeErr(stage.Position, "%v", err)
		}
		return v, nil
	}
	return nil, runtimeErr(stage.Position, "unknown command %q", stage.Cmd)
}

func evalExpr(ctx context.Context, expr Expr, env *Env) (Value, error) {
	switch e := expr.(type) {
	case *Lit:
		return e.Val, nil
	case *VarExpr:
		v, ok := env.Get(e.Name)
		if !ok {
			return nil, runtimeErr(e.Position, "undefined variable $%s", e.Name)
		}
		for _, field := range e.Path {
			m, ok := v.(map[string]Value)
			if !ok {
				return nil, runtimeErr(e.Position, "$%s: cannot access field %q of %s", e.Name, field, kindOf(v))
			}
			v = m[field]
		}
		return v, nil
	case *ListExpr:
		list := make([]Value, 0, len(e.Elems))
		for _, elem := range e.Elems {
			v, err := evalExpr(ctx, elem, env)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	case *MapExpr:
		m := make(map[string]Value, len(e.Keys))
		for i, key := range e.Keys {
			v, err := evalExpr(ctx, e.Vals[i], env)
			if err != nil {
				return nil, err
			}
			m[key] = v
		}
		return m, nil
	case *GroupExpr:
		return evalPipeline(ctx, e.Pipe, env)
	default:
		return nil, runtimeErr(expr.Pos(), "unknown expression")
	}
}
