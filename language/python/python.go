// Package python adapts a CPython (or RustPython) WASI build as a script
// dialect. The interpreter binary is not shipped with the module; it is
// loaded from a configured path at startup.
package python

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

//go:embed stdlib.py
var stdlib string

// Python implements the engine.Language interface.
type Python struct {
	module []byte
}

// New returns a Python adapter over the given interpreter WASM binary.
func New(module []byte) *Python {
	return &Python{module: module}
}

// Load reads the interpreter WASM binary from path.
func Load(path string) (*Python, error) {
	module, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load python interpreter: %w", err)
	}
	return New(module), nil
}

func (p *Python) Name() string {
	return "python"
}

func (p *Python) Module() []byte {
	return p.module
}

// Prelude renders import statements and module search paths ahead of the
// route code.
func (p *Python) Prelude(imports, references []string) string {
	if len(imports) == 0 && len(references) == 0 {
		return ""
	}
	var b strings.Builder
	if len(references) > 0 {
		b.WriteString("import sys\n")
		for _, ref := range references {
			fmt.Fprintf(&b, "sys.path.insert(0, %s)\n", pyString(ref))
		}
	}
	for _, imp := range imports {
		fmt.Fprintf(&b, "import %s\n", imp)
	}
	return b.String()
}

// WrapCode prepends the request/response shim to route code.
func (p *Python) WrapCode(code string) string {
	return stdlib + "\n" + code
}

// WrapCheck returns a program that compiles code without executing it and
// prints one JSON diagnostic line on a syntax error.
func (p *Python) WrapCheck(code string) string {
	return fmt.Sprintf(`import json as _json
try:
    compile(%s, "<route>", "exec")
except SyntaxError as _e:
    print(_json.dumps({"line": _e.lineno or 0, "column": _e.offset or 0, "message": _e.msg or "syntax error"}))
`, pyString(code))
}

func (p *Python) Args(wrappedCode string) []string {
	return []string{"python", "-c", wrappedCode}
}

// pyString renders s as a Python string literal. JSON string syntax is a
// subset of Python's.
func pyString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}
