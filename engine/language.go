// Package engine provides the WASM execution engine behind the compiled
// script dialects. Interpreter modules are JIT-compiled once per process and
// cached; route code runs in a fresh module instance per call.
package engine

// Language defines the interface for a WASM-based dialect runtime.
type Language interface {
	// Name returns a unique identifier for this dialect (e.g. "python").
	// Used as the cache key for the compiled interpreter module.
	Name() string

	// Module returns the WASM binary for the dialect interpreter.
	Module() []byte

	// Prelude renders extra import and reference declarations into source
	// lines prepended to route code.
	Prelude(imports, references []string) string

	// WrapCode prepends the dialect stdlib (request binding, host call
	// protocol) to route code.
	WrapCode(code string) string

	// WrapCheck returns a program that syntax-checks code without running
	// it, printing a single JSON diagnostic line on failure.
	WrapCheck(code string) string

	// Args returns the command-line arguments to pass to the WASM module.
	Args(wrappedCode string) []string
}
