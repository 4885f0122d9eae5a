package engine

import (
	"context"
	"fmt"
	"time"
)

// CheckError is a dialect syntax failure found at registration time.
type CheckError struct {
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

// Check syntax-checks route code in the given dialect without executing it.
// The dialect's checker program compiles the code inside the interpreter and
// prints one JSON diagnostic line when it is malformed. Returns nil when the
// code is well-formed; a *CheckError otherwise.
func (e *Engine) Check(ctx context.Context, lang Language, code string) error {
	res := e.Run(ctx, lang, lang.WrapCheck(code), WithTimeout(30*time.Second))

	if diag, ok := parseDiagnostic(res.Output); ok {
		return diag
	}
	if res.Error != nil {
		return &CheckError{Message: fmt.Sprintf("check failed: %v", res.Error)}
	}
	return nil
}
