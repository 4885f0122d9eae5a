package pipescript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// CoreBundle returns the builtin function set installed into every
// interpreter slot.
func CoreBundle() *Bundle {
	return &Bundle{
		Name: "core",
		Funcs: map[string]Func{
			"echo":     builtinEcho,
			"upper":    stringFunc("upper", strings.ToUpper),
			"lower":    stringFunc("lower", strings.ToLower),
			"trim":     stringFunc("trim", strings.TrimSpace),
			"len":      builtinLen,
			"join":     builtinJoin,
			"split":    builtinSplit,
			"replace":  builtinReplace,
			"concat":   builtinConcat,
			"get":      builtinGet,
			"keys":     builtinKeys,
			"default":  builtinDefault,
			"contains": builtinContains,
			"first":    builtinFirst,
			"last":     builtinLast,
			"json":     builtinJSON,
			"parsejson": builtinParseJSON,
		},
	}
}

// Render formats a value for output: strings pass through, everything else
// is JSON-encoded.
func Render(v Value) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

func builtinEcho(ctx context.Context, args []Value) (Value, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = Render(a)
	}
	return strings.Join(parts, " "), nil
}

func stringFunc(name string, fn func(string) string) Func {
	return func(ctx context.Context, args []Value) (Value, error) {
		s, err := oneString(name, args)
		if err != nil {
			return nil, err
		}
		return fn(s), nil
	}
}

func oneString(name string, args []Value) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%s: want one argument, got %d", name, len(args))
	}
	s, ok := args[0].(string)
	if !ok {
		return "", fmt.Errorf("%s: want a string, got %s", name, kindOf(args[0]))
	}
	return s, nil
}

func builtinLen(ctx context.Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("len: want one argument, got %d", len(args))
	}
	switch t := args[0].(type) {
	case string:
		return float64(len(t)), nil
	case []Value:
		return float64(len(t)), nil
	case map[string]Value:
		return float64(len(t)), nil
	default:
		return nil, fmt.Errorf("len: cannot measure %s", kindOf(args[0]))
	}
}

func builtinJoin(ctx context.Context, args []Value) (Value, error) {
	if len(args) != 2 {
		return nil, errors.New("join: want a list and a separator")
	}
	list, ok := args[0].([]Value)
	if !ok {
		return nil, fmt.Errorf("join: want a list, got %s", kindOf(args[0]))
	}
	sep, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("join: separator must be a string")
	}
	parts := make([]string, len(list))
	for i, v := range list {
		parts[i] = Render(v)
	}
	return strings.Join(parts, sep), nil
}

func builtinSplit(ctx context.Context, args []Value) (Value, error) {
	if len(args) != 2 {
		return nil, errors.New("split: want a string and a separator")
	}
	s, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("split: want a string, got %s", kindOf(args[0]))
	}
	sep, ok := args[1].(string)
	if !ok {
		return nil, errors.New("split: separator must be a string")
	}
	parts := strings.Split(s, sep)
	out := make([]Value, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out, nil
}

func builtinReplace(ctx context.Context, args []Value) (Value, error) {
	if len(args) != 3 {
		return nil, errors.New("replace: want a string, old, and new")
	}
	s, ok1 := args[0].(string)
	old, ok2 := args[1].(string)
	repl, ok3 := args[2].(string)
	if !ok1 || !ok2 || !ok3 {
		return nil, errors.New("replace: all arguments must be strings")
	}
	return strings.ReplaceAll(s, old, repl), nil
}

func builtinConcat(ctx context.Context, args []Value) (Value, error) {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(Render(a))
	}
	return b.String(), nil
}

func builtinGet(ctx context.Context, args []Value) (Value, error) {
	if len(args) != 2 {
		return nil, errors.New("get: want a container and a key")
	}
	switch c := args[0].(type) {
	case map[string]Value:
		key, ok := args[1].(string)
		if !ok {
			return nil, errors.New("get: map key must be a string")
		}
		return c[key], nil
	case []Value:
		idx, ok := args[1].(float64)
		if !ok {
			return nil, errors.New("get: list index must be a number")
		}
		i := int(idx)
		if i < 0 || i >= len(c) {
			return nil, fmt.Errorf("get: index %s out of range", strconv.Itoa(i))
		}
		return c[i], nil
	default:
		return nil, fmt.Errorf("get: cannot index %s", kindOf(args[0]))
	}
}

func builtinKeys(ctx context.Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, errors.New("keys: want one map argument")
	}
	m, ok := args[0].(map[string]Value)
	if !ok {
		return nil, fmt.Errorf("keys: want a map, got %s", kindOf(args[0]))
	}
	out := make([]Value, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sortValues(out)
	return out, nil
}

func builtinDefault(ctx context.Context, args []Value) (Value, error) {
	if len(args) != 2 {
		return nil, errors.New("default: want a value and a fallback")
	}
	v := args[0]
	if v == nil || v == "" {
		return args[1], nil
	}
	return v, nil
}

func builtinContains(ctx context.Context, args []Value) (Value, error) {
	if len(args) != 2 {
		return nil, errors.New("contains: want a container and a value")
	}
	switch c := args[0].(type) {
	case string:
		sub, ok := args[1].(string)
		if !ok {
			return nil, errors.New("contains: want a string to search for")
		}
		return strings.Contains(c, sub), nil
	case []Value:
		for _, v := range c {
			if v == args[1] {
				return true, nil
			}
		}
		return false, nil
	case map[string]Value:
		key, ok := args[1].(string)
		if !ok {
			return nil, errors.New("contains: map key must be a string")
		}
		_, found := c[key]
		return found, nil
	default:
		return nil, fmt.Errorf("contains: cannot search %s", kindOf(args[0]))
	}
}

func builtinFirst(ctx context.Context, args []Value) (Value, error) {
	list, err := oneList("first", args)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func builtinLast(ctx context.Context, args []Value) (Value, error) {
	list, err := oneList("last", args)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[len(list)-1], nil
}

func oneList(name string, args []Value) ([]Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%s: want one list argument", name)
	}
	list, ok := args[0].([]Value)
	if !ok {
		return nil, fmt.Errorf("%s: want a list, got %s", name, kindOf(args[0]))
	}
	return list, nil
}

func builtinJSON(ctx context.Context, args []Value) (Value, error) {
	if len(args) != 1 {
		return nil, errors.New("json: want one argument")
	}
	data, err := json.Marshal(args[0])
	if err != nil {
		return nil, fmt.Errorf("json: %v", err)
	}
	return string(data), nil
}

func builtinParseJSON(ctx context.Context, args []Value) (Value, error) {
	s, err := oneString("parsejson", args)
	if err != nil {
		return nil, err
	}
	var v Value
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("parsejson: %v", err)
	}
	return v, nil
}

func sortValues(vs []Value) {
	for i := 1; i < len(vs); i++ {
		for j := i; j > 0; j-- {
			a, aok := vs[j-1].(string)
			b, bok := vs[j].(string)
			if aok && bok && a > b {
				vs[j-1], vs[j] = vs[j], vs[j-1]
			} else {
				break
			}
		}
	}
}
