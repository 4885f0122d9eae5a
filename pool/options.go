package pool

import (
	"github.com/tliron/commonlog"

	"github.com/voxfeld/scriptgate/pipescript"
)

// Option configures pool construction.
type Option func(*config)

type config struct {
	minSlots int
	maxSlots int
	host     pipescript.Value
	vars     map[string]pipescript.Value
	funcs    map[string]pipescript.Func
	bundles  []*pipescript.Bundle
	startup  []*pipescript.Program
	logger   commonlog.Logger
}

func defaultConfig() config {
	return config{
		minSlots: 1,
		logger:   commonlog.GetLogger("scriptgate.pool"),
	}
}

// WithMinSlots sets how many slots are created eagerly at construction.
func WithMinSlots(n int) Option {
	return func(c *config) {
		c.minSlots = n
	}
}

// WithMaxSlots caps the number of live slots. Zero or negative means
// 2x available parallelism.
func WithMaxSlots(n int) Option {
	return func(c *config) {
		c.maxSlots = n
	}
}

// WithHost sets the value carried by every slot under the reserved host
// binding.
func WithHost(v pipescript.Value) Option {
	return func(c *config) {
		c.host = v
	}
}

// WithVars merges caller-supplied variables into every slot's initial
// variable table. The reserved host binding may not appear here.
func WithVars(vars map[string]pipescript.Value) Option {
	return func(c *config) {
		if c.vars == nil {
			c.vars = make(map[string]pipescript.Value, len(vars))
		}
		for name, v := range vars {
			c.vars[name] = v
		}
	}
}

// WithFuncs merges caller-supplied functions into every slot's function
// table.
func WithFuncs(funcs map[string]pipescript.Func) Option {
	return func(c *config) {
		if c.funcs == nil {
			c.funcs = make(map[string]pipescript.Func, len(funcs))
		}
		for name, fn := range funcs {
			c.funcs[name] = fn
		}
	}
}

// WithBundle installs a prebuilt type/function bundle into every slot at
// creation. Bundles are built once; slots only reference them.
func WithBundle(bundles ...*pipescript.Bundle) Option {
	return func(c *config) {
		c.bundles = append(c.bundles, bundles...)
	}
}

// WithStartupScript runs pre-parsed programs once per slot at creation.
func WithStartupScript(progs ...*pipescript.Program) Option {
	return func(c *config) {
		c.startup = append(c.startup, progs...)
	}
}

// WithLogger overrides the pool's logger.
func WithLogger(log commonlog.Logger) Option {
	return func(c *config) {
		c.logger = log
	}
}
