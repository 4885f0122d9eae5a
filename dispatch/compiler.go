package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	"github.com/voxfeld/scriptgate/engine"
	"github.com/voxfeld/scriptgate/hostfunc"
	"github.com/voxfeld/scriptgate/pipescript"
	"github.com/voxfeld/scriptgate/pool"
)

// RequestEnvVar carries the JSON-encoded request into dialect interpreters.
const RequestEnvVar = "SG_REQUEST"

// Runner executes wrapped dialect code. *engine.Engine satisfies it; tests
// substitute a stub.
type Runner interface {
	Run(ctx context.Context, lang engine.Language, wrappedCode string, opts ...engine.RunOption) engine.Result
	Check(ctx context.Context, lang engine.Language, code string) error
}

// Compiler turns Sources into Units. Dialect code is wrapped and checked
// here, once; pipe code is parsed here, once. Units are cached by content
// hash so identical scripts across routes share a compile.
type Compiler struct {
	runner    Runner
	pool      *pool.Pool
	registry  *hostfunc.Registry
	languages map[Lang]engine.Language
	timeout   time.Duration
	log       commonlog.Logger

	mu    sync.Mutex
	units map[string]*Unit
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithLanguage registers a dialect front-end under its tag.
func WithLanguage(tag Lang, impl engine.Language) CompilerOption {
	return func(c *Compiler) { c.languages[tag] = impl }
}

// WithRegistry sets the base host function registry cloned per dialect call.
func WithRegistry(r *hostfunc.Registry) CompilerOption {
	return func(c *Compiler) { c.registry = r }
}

// WithTimeout bounds each dialect execution.
func WithTimeout(d time.Duration) CompilerOption {
	return func(c *Compiler) { c.timeout = d }
}

// WithLogger overrides the compiler logger.
func WithLogger(log commonlog.Logger) CompilerOption {
	return func(c *Compiler) { c.log = log }
}

// NewCompiler creates a Compiler backed by the given runner and slot pool.
func NewCompiler(runner Runner, p *pool.Pool, opts ...CompilerOption) *Compiler {
	c := &Compiler{
		runner:    runner,
		pool:      p,
		registry:  hostfunc.NewRegistry(),
		languages: make(map[Lang]engine.Language),
		timeout:   30 * time.Second,
		log:       commonlog.GetLogger("scriptgate.dispatch"),
		units:     make(map[string]*Unit),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile validates and builds a Unit for the source. All language front-end
// failures surface here, never at request time.
func (c *Compiler) Compile(ctx context.Context, src Source) (*Unit, error) {
	if strings.TrimSpace(src.Code) == "" {
		return nil, ErrEmptySource
	}

	hash := src.Hash()
	c.mu.Lock()
	if u, ok := c.units[hash]; ok {
		c.mu.Unlock()
		return u, nil
	}
	c.mu.Unlock()

	var u *Unit
	var err error
	switch src.Lang {
	case LangPipe:
		u, err = c.compilePipe(src, hash)
	case LangPython, LangJavaScript:
		u, err = c.compileDialect(ctx, src, hash)
	default:
		return nil, &UnsupportedLanguageError{Lang: src.Lang}
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.units[hash] = u
	c.mu.Unlock()

	c.log.Debugf("compiled %s unit %s", src.Lang, hash[:12])
	return u, nil
}

func (c *Compiler) compilePipe(src Source, hash string) (*Unit, error) {
	prog, err := pipescript.Parse(src.Code)
	if err != nil {
		var syn *pipescript.SyntaxError
		if errors.As(err, &syn) {
			return nil, &CompileError{
				Lang:        LangPipe,
				Diagnostics: []Diagnostic{{Line: syn.Line, Column: syn.Col, Message: syn.Msg}},
			}
		}
		return nil, &CompileError{Lang: LangPipe, Diagnostics: []Diagnostic{{Message: err.Error()}}}
	}

	args := src.Args
	handler := func(ctx context.Context, ex *Exchange) error {
		reqVal, err := requestValue(ex)
		if err != nil {
			return err
		}
		return c.pool.With(ctx, func(slot *pool.Slot) error {
			// Request bindings live in a child frame so they cannot
			// outlive this acquire/release bracket.
			env := slot.Env().Child()
			env.Set("req", reqVal)
			for _, name := range args {
				env.Set(name, ex.Params[name])
			}

			status := 0
			env.SetFunc("status", func(ctx context.Context, args []pipescript.Value) (pipescript.Value, error) {
				if len(args) != 1 {
					return nil, fmt.Errorf("status: expected one numeric argument")
				}
				n, ok := args[0].(float64)
				if !ok {
					return nil, fmt.Errorf("status: expected one numeric argument")
				}
				status = int(n)
				return nil, nil
			})
			env.SetFunc("header", func(ctx context.Context, args []pipescript.Value) (pipescript.Value, error) {
				if len(args) != 2 {
					return nil, fmt.Errorf("header: expected name and value")
				}
				k, _ := args[0].(string)
				v, _ := args[1].(string)
				ex.Response.Header().Set(k, v)
				return nil, nil
			})

			out, err := pipescript.Run(ctx, prog, env)
			if err != nil {
				return &ScriptError{Lang: LangPipe, Err: err}
			}
			if status != 0 {
				ex.Response.WriteHeader(status)
			}
			_, werr := io.WriteString(ex.Response, pipescript.Render(out))
			return werr
		})
	}

	return &Unit{lang: LangPipe, hash: hash, handler: handler}, nil
}

func (c *Compiler) compileDialect(ctx context.Context, src Source, hash string) (*Unit, error) {
	impl, ok := c.languages[src.Lang]
	if !ok {
		return nil, &UnsupportedLanguageError{Lang: src.Lang}
	}

	if err := c.runner.Check(ctx, impl, src.Code); err != nil {
		var diag *engine.CheckError
		if errors.As(err, &diag) {
			return nil, &CompileError{
				Lang:        src.Lang,
				Diagnostics: []Diagnostic{{Line: diag.Line, Column: diag.Column, Message: diag.Message}},
			}
		}
		return nil, fmt.Errorf("check %s: %w", src.Lang, err)
	}

	// Wrapped exactly once here; per request only the environment changes.
	wrapped := impl.Prelude(src.Imports, src.References) + impl.WrapCode(src.Code)

	timeout := c.timeout
	handler := func(ctx context.Context, ex *Exchange) error {
		reqVal, err := requestValue(ex)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(reqVal)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}

		status := 0
		registry := c.registry.Clone()
		registry.Register("resp_status", func(ctx context.Context, args map[string]any) (any, error) {
			n, ok := args["code"].(float64)
			if !ok {
				return nil, fmt.Errorf("resp_status: numeric code required")
			}
			status = int(n)
			return nil, nil
		})
		registry.Register("resp_header", func(ctx context.Context, args map[string]any) (any, error) {
			name, _ := args["name"].(string)
			value, _ := args["value"].(string)
			if name == "" {
				return nil, fmt.Errorf("resp_header: name required")
			}
			ex.Response.Header().Set(name, value)
			return nil, nil
		})

		res := c.runner.Run(ctx, impl, wrapped,
			engine.WithRegistry(registry),
			engine.WithEnv(RequestEnvVar, string(payload)),
			engine.WithTimeout(timeout),
		)
		if res.Error != nil {
			return &ScriptError{Lang: src.Lang, Err: res.Error}
		}
		if status != 0 {
			ex.Response.WriteHeader(status)
		}
		_, werr := io.WriteString(ex.Response, res.Output)
		return werr
	}

	return &Unit{lang: src.Lang, hash: hash, handler: handler}, nil
}

// maxScriptBody bounds how much of a request body is handed to a script.
const maxScriptBody = 1 << 20

// requestValue flattens an Exchange into the map exposed to scripts. Bodies
// over maxScriptBody are cut off with body_truncated set so scripts never
// mistake a partial payload for the whole one.
func requestValue(ex *Exchange) (map[string]any, error) {
	r := ex.Request

	query := make(map[string]any)
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			query[k] = vs[0]
		}
	}
	headers := make(map[string]any)
	for k, vs := range r.Header {
		if len(vs) > 0 {
			headers[k] = vs[0]
		}
	}
	params := make(map[string]any)
	for k, v := range ex.Params {
		params[k] = v
	}

	var body string
	truncated := false
	if r.Body != nil && r.Body != http.NoBody {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxScriptBody+1))
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		if len(data) > maxScriptBody {
			data = data[:maxScriptBody]
			truncated = true
		}
		body = string(data)
	}

	return map[string]any{
		"method":         r.Method,
		"path":           r.URL.Path,
		"query":          query,
		"headers":        headers,
		"params":         params,
		"body":           body,
		"body_truncated": truncated,
	}, nil
}
