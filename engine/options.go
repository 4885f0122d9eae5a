package engine

import (
	"time"

	"github.com/voxfeld/scriptgate/hostfunc"
)

// EngineOption configures the Engine at creation time.
type EngineOption func(*engineConfig)

type engineConfig struct {
	diskCache        bool
	cacheDir         string
	precompile       []Language
	memoryLimitPages uint32 // 64KB pages; 0 = wazero default
}

func defaultEngineConfig() engineConfig {
	return engineConfig{}
}

// WithDiskCache enables a persistent compilation cache so the interpreter
// modules survive process restarts. Optionally provide a custom directory.
func WithDiskCache(dir ...string) EngineOption {
	return func(c *engineConfig) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithPrecompile compiles the given dialect interpreters at Engine creation
// time instead of on first use.
func WithPrecompile(langs ...Language) EngineOption {
	return func(c *engineConfig) {
		c.precompile = langs
	}
}

// WithMemoryLimit caps the memory available to WASM modules, in 64KB pages.
func WithMemoryLimit(pages uint32) EngineOption {
	return func(c *engineConfig) {
		c.memoryLimitPages = pages
	}
}

// RunOption configures one execution.
type RunOption func(*runConfig)

type runConfig struct {
	timeout  time.Duration
	env      map[string]string
	registry *hostfunc.Registry
}

func defaultRunConfig() runConfig {
	return runConfig{
		timeout: 30 * time.Second,
	}
}

// WithTimeout sets the maximum execution time.
func WithTimeout(d time.Duration) RunOption {
	return func(c *runConfig) {
		c.timeout = d
	}
}

// WithEnv sets an environment variable visible to the module for this run.
func WithEnv(key, value string) RunOption {
	return func(c *runConfig) {
		if c.env == nil {
			c.env = make(map[string]string)
		}
		c.env[key] = value
	}
}

// WithRegistry overrides the host function registry for this run. Used to
// bind request-scoped functions without mutating the shared base registry.
func WithRegistry(r *hostfunc.Registry) RunOption {
	return func(c *runConfig) {
		c.registry = r
	}
}
