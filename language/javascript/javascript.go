// Package javascript adapts the QuickJS WASI build as a script dialect.
package javascript

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	quickjswasi "github.com/paralin/go-quickjs-wasi"
)

//go:embed stdlib.js
var stdlib string

// JavaScript implements the engine.Language interface.
type JavaScript struct{}

// New returns a JavaScript adapter.
func New() *JavaScript {
	return &JavaScript{}
}

func (j *JavaScript) Name() string {
	return "javascript"
}

// Module returns the QuickJS WASM binary bundled with the quickjs-wasi
// package.
func (j *JavaScript) Module() []byte {
	return quickjswasi.QuickJSWASM
}

// Prelude renders script loads ahead of the route code. Imports and
// references both resolve through std.loadScript.
func (j *JavaScript) Prelude(imports, references []string) string {
	var b strings.Builder
	for _, ref := range references {
		fmt.Fprintf(&b, "std.loadScript(%s);\n", jsString(ref))
	}
	for _, imp := range imports {
		fmt.Fprintf(&b, "std.loadScript(%s);\n", jsString(imp))
	}
	return b.String()
}

// WrapCode prepends the request/response shim to route code.
func (j *JavaScript) WrapCode(code string) string {
	return stdlib + "\n" + code
}

// WrapCheck returns a program that parses code without executing it and
// prints one JSON diagnostic line on a syntax error.
func (j *JavaScript) WrapCheck(code string) string {
	return fmt.Sprintf(`try {
    new Function(%s);
} catch (e) {
    print(JSON.stringify({line: e.lineNumber || 0, column: 0, message: e.message || "syntax error"}));
}
`, jsString(code))
}

func (j *JavaScript) Args(wrappedCode string) []string {
	return []string{"qjs", "--std", "-e", wrappedCode}
}

func jsString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}
