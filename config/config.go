// Package config loads the scriptgate.toml service configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/voxfeld/scriptgate/dispatch"
	"github.com/voxfeld/scriptgate/pipescript"
	"github.com/voxfeld/scriptgate/pool"
	"github.com/voxfeld/scriptgate/routes"
)

// validate is a package-level singleton; constructing a validator per call
// is expensive.
var validate = validator.New()

// Config is the root of a scriptgate.toml file.
type Config struct {
	Server  Server            `toml:"server"`
	Pool    PoolConfig        `toml:"pool"`
	Auth    Auth              `toml:"auth"`
	Vars    map[string]string `toml:"vars"`
	Startup []string          `toml:"startup_scripts"`
	Schemas []Schema          `toml:"schemas"`
	Routes  []Route           `toml:"routes"`

	// Dir is the directory containing the config file (set at load time).
	Dir string `toml:"-"`
}

// Server configures listeners and service-wide limits.
type Server struct {
	Listeners  []string `toml:"listeners" validate:"min=1,dive,required"`
	Verbosity  int      `toml:"verbosity" validate:"min=-1,max=2"`
	RateLimit  float64  `toml:"rate_limit" validate:"min=0"`
	RateBurst  int      `toml:"rate_burst" validate:"min=0"`
	PythonWASM string   `toml:"python_wasm"`

	// AllowHosts enables the outbound HTTP host function for the listed
	// hosts. Empty means scripts cannot reach the network.
	AllowHosts []string `toml:"allow_hosts"`
}

// PoolConfig sizes the interpreter slot pool.
type PoolConfig struct {
	MinSlots int `toml:"min_slots" validate:"min=0"`
	MaxSlots int `toml:"max_slots" validate:"min=0"`
}

// Auth names the schemes and policies routes may reference.
type Auth struct {
	Schemes  []string `toml:"schemes"`
	Policies []string `toml:"policies"`
}

// Schema declares one record type injected into every slot.
type Schema struct {
	Name   string            `toml:"name" validate:"required"`
	Fields map[string]string `toml:"fields" validate:"min=1"`
}

// Route declares one route registration.
type Route struct {
	Pattern    string   `toml:"pattern" validate:"required"`
	Verbs      []string `toml:"verbs"`
	Lang       string   `toml:"lang" validate:"required,oneof=python javascript pipe"`
	Source     string   `toml:"source"`
	SourceFile string   `toml:"source_file"`
	Imports    []string `toml:"imports"`
	References []string `toml:"references"`
	Args       []string `toml:"args"`

	AuthSchemes  []string `toml:"auth_schemes"`
	AuthPolicies []string `toml:"auth_policies"`
	Endpoints    []string `toml:"endpoints"`

	Summary         string `toml:"summary"`
	Description     string `toml:"description"`
	FailOnDuplicate bool   `toml:"fail_on_duplicate"`
}

// Load parses and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}

	// Defaults
	if len(c.Server.Listeners) == 0 {
		c.Server.Listeners = []string{":8080"}
	}
	if c.Server.RateBurst == 0 && c.Server.RateLimit > 0 {
		c.Server.RateBurst = int(c.Server.RateLimit)
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	for i, r := range c.Routes {
		if r.Source == "" && r.SourceFile == "" {
			return nil, fmt.Errorf("route %d (%s): source or source_file required", i, r.Pattern)
		}
		if r.Source != "" && r.SourceFile != "" {
			return nil, fmt.Errorf("route %d (%s): source and source_file are mutually exclusive", i, r.Pattern)
		}
	}

	return &c, nil
}

// Listeners parses the configured bind addresses.
func (c *Config) Listeners() ([]routes.Listener, error) {
	out := make([]routes.Listener, 0, len(c.Server.Listeners))
	for _, s := range c.Server.Listeners {
		l, err := routes.ParseListener(s)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// AuthProvider returns the static provider over the configured names.
func (c *Config) AuthProvider() *routes.StaticAuth {
	return &routes.StaticAuth{Schemes: c.Auth.Schemes, Policies: c.Auth.Policies}
}

// SchemaBundle builds the record types injected into every slot.
func (c *Config) SchemaBundle() (*pipescript.Bundle, error) {
	if len(c.Schemas) == 0 {
		return nil, nil
	}
	bundle := &pipescript.Bundle{
		Name:  "schemas",
		Types: make(map[string]*pipescript.Type),
	}
	for _, s := range c.Schemas {
		fields := make(map[string]pipescript.Kind, len(s.Fields))
		for name, kind := range s.Fields {
			k := pipescript.Kind(kind)
			switch k {
			case pipescript.KindAny, pipescript.KindString, pipescript.KindNumber,
				pipescript.KindBool, pipescript.KindList, pipescript.KindMap:
			default:
				return nil, fmt.Errorf("schema %s: unknown field kind %q", s.Name, kind)
			}
			fields[name] = k
		}
		bundle.Types[s.Name] = &pipescript.Type{Name: s.Name, Fields: fields}
	}
	return bundle, nil
}

// PoolOptions assembles slot pool options: sizing, global bindings, schema
// bundle, and parsed startup scripts.
func (c *Config) PoolOptions() ([]pool.Option, error) {
	var opts []pool.Option
	if c.Pool.MinSlots > 0 {
		opts = append(opts, pool.WithMinSlots(c.Pool.MinSlots))
	}
	if c.Pool.MaxSlots > 0 {
		opts = append(opts, pool.WithMaxSlots(c.Pool.MaxSlots))
	}

	if len(c.Vars) > 0 {
		vars := make(map[string]pipescript.Value, len(c.Vars))
		for k, v := range c.Vars {
			vars[k] = v
		}
		opts = append(opts, pool.WithVars(vars))
	}

	bundle, err := c.SchemaBundle()
	if err != nil {
		return nil, err
	}
	if bundle != nil {
		opts = append(opts, pool.WithBundle(bundle))
	}

	for _, name := range c.Startup {
		src, err := os.ReadFile(c.resolve(name))
		if err != nil {
			return nil, fmt.Errorf("startup script %s: %w", name, err)
		}
		prog, err := pipescript.Parse(string(src))
		if err != nil {
			return nil, fmt.Errorf("startup script %s: %w", name, err)
		}
		opts = append(opts, pool.WithStartupScript(prog))
	}

	return opts, nil
}

// RouteSpecs resolves the configured routes into registrable specs.
func (c *Config) RouteSpecs() ([]routes.Spec, error) {
	out := make([]routes.Spec, 0, len(c.Routes))
	for _, r := range c.Routes {
		code := r.Source
		if r.SourceFile != "" {
			data, err := os.ReadFile(c.resolve(r.SourceFile))
			if err != nil {
				return nil, fmt.Errorf("route %s: %w", r.Pattern, err)
			}
			code = string(data)
		}
		out = append(out, routes.Spec{
			Pattern: r.Pattern,
			Verbs:   r.Verbs,
			Source: dispatch.Source{
				Lang:       dispatch.Lang(r.Lang),
				Code:       code,
				Imports:    r.Imports,
				References: r.References,
				Args:       r.Args,
			},
			AuthSchemes:     r.AuthSchemes,
			AuthPolicies:    r.AuthPolicies,
			Endpoints:       r.Endpoints,
			Summary:         r.Summary,
			Description:     r.Description,
			FailOnDuplicate: r.FailOnDuplicate,
		})
	}
	return out, nil
}

// resolve interprets a path relative to the config file directory.
func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir, path)
}
