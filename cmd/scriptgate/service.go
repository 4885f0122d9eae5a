package main

import (
	"context"
	"fmt"
	"os"

	"github.com/voxfeld/scriptgate/config"
	"github.com/voxfeld/scriptgate/dispatch"
	"github.com/voxfeld/scriptgate/engine"
	"github.com/voxfeld/scriptgate/hostfunc"
	"github.com/voxfeld/scriptgate/language/javascript"
	"github.com/voxfeld/scriptgate/language/python"
	"github.com/voxfeld/scriptgate/pool"
	"github.com/voxfeld/scriptgate/routes"
)

// service wires the whole stack from one config file: host functions,
// dialect engine, slot pool, compiler, and the route registry with every
// configured route already registered.
type service struct {
	cfg      *config.Config
	engine   *engine.Engine
	pool     *pool.Pool
	registry *routes.Registry
}

func buildService(configPath string, diskCache bool) (*service, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	base := hostfunc.NewRegistry()
	hostfunc.NewKVStore().RegisterInto(base)
	if len(cfg.Server.AllowHosts) > 0 {
		hostfunc.NewHTTP(hostfunc.HTTPConfig{AllowedHosts: cfg.Server.AllowHosts}).RegisterInto(base)
	}

	var engineOpts []engine.EngineOption
	if diskCache {
		engineOpts = append(engineOpts, engine.WithDiskCache())
	}
	eng, err := engine.New(base, engineOpts...)
	if err != nil {
		return nil, err
	}

	poolOpts, err := cfg.PoolOptions()
	if err != nil {
		eng.Close()
		return nil, err
	}
	poolOpts = append(poolOpts,
		pool.WithHost(map[string]any{"service": "scriptgate"}),
		pool.WithBundle(base.Bundle()),
	)
	p, err := pool.New(poolOpts...)
	if err != nil {
		eng.Close()
		return nil, err
	}

	compilerOpts := []dispatch.CompilerOption{
		dispatch.WithRegistry(base),
		dispatch.WithLanguage(dispatch.LangJavaScript, javascript.New()),
	}
	if cfg.Server.PythonWASM != "" {
		py, err := python.Load(cfg.Server.PythonWASM)
		if err != nil {
			p.Shutdown()
			eng.Close()
			return nil, err
		}
		compilerOpts = append(compilerOpts, dispatch.WithLanguage(dispatch.LangPython, py))
	}
	compiler := dispatch.NewCompiler(eng, p, compilerOpts...)

	listeners, err := cfg.Listeners()
	if err != nil {
		p.Shutdown()
		eng.Close()
		return nil, err
	}
	registry := routes.New(compiler,
		routes.WithAuth(cfg.AuthProvider()),
		routes.WithListeners(listeners...),
	)

	specs, err := cfg.RouteSpecs()
	if err != nil {
		p.Shutdown()
		eng.Close()
		return nil, err
	}
	for _, spec := range specs {
		if _, err := registry.Add(context.Background(), spec); err != nil {
			p.Shutdown()
			eng.Close()
			return nil, fmt.Errorf("route %s: %w", spec.Pattern, err)
		}
	}

	return &service{cfg: cfg, engine: eng, pool: p, registry: registry}, nil
}

// loadOptionalConfig returns nil without error when no config file exists,
// so commands like repl can run unconfigured.
func loadOptionalConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return config.Load(path)
}

func (s *service) close() {
	s.pool.Shutdown()
	s.engine.Close()
}
