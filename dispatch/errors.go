package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptySource is returned when a route script has no code.
var ErrEmptySource = errors.New("source code required")

// UnsupportedLanguageError names a language tag with no registered front-end.
type UnsupportedLanguageError struct {
	Lang Lang
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("unsupported language %q", e.Lang)
}

// Diagnostic is one compiler message with a source position.
type Diagnostic struct {
	Line    int
	Column  int
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s", d.Line, d.Column, d.Message)
}

// CompileError aggregates the diagnostics from a failed registration-time
// compile or parse.
type CompileError struct {
	Lang        Lang
	Diagnostics []Diagnostic
}

func (e *CompileError) Error() string {
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		msgs[i] = d.String()
	}
	return fmt.Sprintf("compile %s: %s", e.Lang, strings.Join(msgs, "; "))
}

// ScriptError wraps a failure raised by route code at request time. It is
// confined to the invocation that produced it.
type ScriptError struct {
	Lang Lang
	Err  error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("%s script: %v", e.Lang, e.Err)
}

func (e *ScriptError) Unwrap() error { return e.Err }
