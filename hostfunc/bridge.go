package hostfunc

import (
	"context"
	"fmt"

	"github.com/voxfeld/scriptgate/pipescript"
)

// Bundle exposes every registered host function to pipe scripts as a
// function of the same name taking a single map argument:
//
//	kv_set {key: "greeting", value: "hi"}
//
// The bundle is built once and installed into every interpreter slot.
func (r *Registry) Bundle() *pipescript.Bundle {
	b := &pipescript.Bundle{
		Name:  "hostfunc",
		Funcs: make(map[string]pipescript.Func),
	}
	for _, name := range r.List() {
		b.Funcs[name] = bridge(r, name)
	}
	return b
}

func bridge(r *Registry, name string) pipescript.Func {
	return func(ctx context.Context, args []pipescript.Value) (pipescript.Value, error) {
		fn, ok := r.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown function: %s", name)
		}

		callArgs := map[string]any{}
		switch len(args) {
		case 0:
		case 1:
			m, ok := args[0].(map[string]pipescript.Value)
			if !ok {
				return nil, fmt.Errorf("want a map argument, got %T", args[0])
			}
			callArgs = m
		default:
			return nil, fmt.Errorf("want at most one map argument, got %d", len(args))
		}

		return fn(ctx, callArgs)
	}
}
