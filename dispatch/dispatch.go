// Package dispatch compiles route scripts into uniform request handlers.
// The three languages take different paths to get there: the WASM dialects
// are wrapped and syntax-checked once at registration, while pipe scripts are
// parsed once and interpreted in a pooled slot per request. After compilation
// every route is the same Handler type; nothing downstream branches on
// language again.
package dispatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
)

// Lang identifies a script language.
type Lang string

const (
	LangPython     Lang = "python"
	LangJavaScript Lang = "javascript"
	LangPipe       Lang = "pipe"
)

// Source is the raw material for one route handler.
type Source struct {
	Lang Lang
	Code string

	// Imports and References add extra declarations to the dialect
	// prelude. Ignored for pipe scripts.
	Imports    []string
	References []string

	// Args names route parameters bound as variables for pipe scripts.
	Args []string
}

// Hash returns a content hash covering everything that affects compilation.
// Two Sources with equal hashes produce interchangeable units.
func (s Source) Hash() string {
	h := sha256.New()
	field := func(v string) {
		var n [8]byte
		for i, b := 0, len(v); i < 8; i++ {
			n[i] = byte(b >> (8 * i))
		}
		h.Write(n[:])
		h.Write([]byte(v))
	}
	field(string(s.Lang))
	field(s.Code)
	// Each list gets a section tag so equal values cannot alias across
	// fields, and Args is part of the key: two sources with the same code
	// but different bindings compile to different handlers.
	field("imports")
	for _, v := range s.Imports {
		field(v)
	}
	field("references")
	for _, v := range s.References {
		field(v)
	}
	field("args")
	for _, v := range s.Args {
		field(v)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Exchange carries one request/response pair through a handler.
type Exchange struct {
	Request  *http.Request
	Response http.ResponseWriter

	// Params holds route pattern parameters, e.g. {"id": "42"}.
	Params map[string]string
}

// Handler is the uniform callable every compiled route reduces to.
type Handler func(ctx context.Context, ex *Exchange) error

// Unit is one compiled route script. Immutable once built.
type Unit struct {
	lang    Lang
	hash    string
	handler Handler
}

// Lang returns the source language of the unit.
func (u *Unit) Lang() Lang { return u.lang }

// Hash returns the content hash the unit was cached under.
func (u *Unit) Hash() string { return u.hash }

// Handler returns the request callable.
func (u *Unit) Handler() Handler { return u.handler }
