package pipescript

import (
	"context"
	"fmt"
	"sort"
)

// Value is a pipe script runtime value: nil, bool, float64, string, []Value,
// or map[string]Value.
type Value = any

// Func is a callable installed in an environment's function table. The piped
// value, when present, arrives as the first argument.
type Func func(ctx context.Context, args []Value) (Value, error)

// Type is a named record schema resolvable by simple name. Calling the type
// name as a command constructs a validated record from a map argument.
type Type struct {
	Name   string
	Fields map[string]Kind
}

// Kind constrains a record field.
type Kind string

const (
	KindAny    Kind = "any"
	KindString Kind = "string"
	KindNumber Kind = "number"
	KindBool   Kind = "bool"
	KindList   Kind = "list"
	KindMap    Kind = "map"
)

// New constructs a record of this type from a map value, checking every
// declared field. Missing fields default to the kind's zero value.
func (t *Type) New(v Value) (Value, error) {
	src, ok := v.(map[string]Value)
	if v == nil {
		src = map[string]Value{}
	} else if !ok {
		return nil, fmt.Errorf("%s: expected a map, got %s", t.Name, kindOf(v))
	}

	rec := make(map[string]Value, len(t.Fields))
	for name, kind := range t.Fields {
		fv, present := src[name]
		if !present {
			rec[name] = zeroOf(kind)
			continue
		}
		if kind != KindAny && fv != nil && kindOf(fv) != kind {
			return nil, fmt.Errorf("%s.%s: expected %s, got %s", t.Name, name, kind, kindOf(fv))
		}
		rec[name] = fv
	}
	for name := range src {
		if _, declared := t.Fields[name]; !declared {
			return nil, fmt.Errorf("%s: unknown field %q", t.Name, name)
		}
	}
	return rec, nil
}

func kindOf(v Value) Kind {
	switch v.(type) {
	case string:
		return KindString
	case float64:
		return KindNumber
	case bool:
		return KindBool
	case []Value:
		return KindList
	case map[string]Value:
		return KindMap
	default:
		return KindAny
	}
}

func zeroOf(k Kind) Value {
	switch k {
	case KindString:
		return ""
	case KindNumber:
		return float64(0)
	case KindBool:
		return false
	case KindList:
		return []Value{}
	case KindMap:
		return map[string]Value{}
	default:
		return nil
	}
}

// Bundle is a prebuilt unit of functions and types installed into an
// environment in one step. Bundles are built once and shared; Install only
// copies references.
type Bundle struct {
	Name  string
	Funcs map[string]Func
	Types map[string]*Type
}

// Install copies the bundle's functions and types into env's local tables.
func (b *Bundle) Install(env *Env) {
	for name, fn := range b.Funcs {
		env.SetFunc(name, fn)
	}
	for name, t := range b.Types {
		env.DefineType(name, t)
	}
}

// Env is one interpreter state: a variable table, a function table, and a
// type registry. A child frame layers request-scoped bindings over a
// persistent parent without mutating it.
type Env struct {
	parent *Env
	vars   map[string]Value
	funcs  map[string]Func
	types  map[string]*Type
}

// NewEnv returns an empty root environment.
func NewEnv() *Env {
	return &Env{
		vars:  make(map[string]Value),
		funcs: make(map[string]Func),
		types: make(map[string]*Type),
	}
}

// Child returns a frame whose lookups fall through to e and whose writes
// stay local. Dropping the child discards everything bound in it.
func (e *Env) Child() *Env {
	c := NewEnv()
	c.parent = e
	return c
}

// Get resolves a variable, walking parent frames.
func (e *Env) Get(name string) (Value, bool) {
	for env := e; env != nil; env = env.parent {
		if v, ok := env.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Set binds a variable in this frame.
func (e *Env) Set(name string, v Value) {
	e.vars[name] = v
}

// Func resolves a function, walking parent frames.
func (e *Env) Func(name string) (Func, bool) {
	for env := e; env != nil; env = env.parent {
		if fn, ok := env.funcs[name]; ok {
			return fn, true
		}
	}
	return nil, false
}

// SetFunc installs a function in this frame.
func (e *Env) SetFunc(name string, fn Func) {
	e.funcs[name] = fn
}

// Type resolves a type by simple name, walking parent frames.
func (e *Env) Type(name string) (*Type, bool) {
	for env := e; env != nil; env = env.parent {
		if t, ok := env.types[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// DefineType installs a type in this frame.
func (e *Env) DefineType(name string, t *Type) {
	e.types[name] = t
}

// Names returns the variable names bound in this frame only, sorted. Used by
// the REPL and by tests.
func (e *Env) Names() []string {
	names := make([]string, 0, len(e.vars))
	for name := range e.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
