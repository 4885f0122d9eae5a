package routes

import "fmt"

// ValidationError reports a malformed route spec. Always returned
// synchronously from Add, before anything is inserted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid route: %s: %s", e.Field, e.Reason)
}

// ConflictError reports a duplicate (pattern, verb) under strict
// registration.
type ConflictError struct {
	Pattern string
	Verb    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("route %s %s already registered", e.Verb, e.Pattern)
}

// DependencyError reports an auth scheme or policy name that the provider
// does not know. Fatal to Add.
type DependencyError struct {
	Kind string // "scheme" or "policy"
	Name string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("unresolved auth %s %q", e.Kind, e.Name)
}
