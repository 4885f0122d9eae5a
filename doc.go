// Package scriptgate hosts HTTP routes whose handlers are scripts supplied
// at configuration time.
//
// # Overview
//
// Routes can be written in three languages: Python and JavaScript run inside
// WASM interpreters that are JIT-compiled once per process, and pipescript,
// an in-house pipeline language, runs in a bounded pool of persistent
// interpreter slots. Every route is validated and compiled when it is
// registered; a malformed script fails startup instead of a request.
//
// # Basic Usage
//
//	p, _ := pool.New(pool.WithMaxSlots(8))
//	defer p.Shutdown()
//
//	eng, _ := engine.New(hostfunc.NewRegistry())
//	defer eng.Close()
//
//	compiler := dispatch.NewCompiler(eng, p,
//	    dispatch.WithLanguage(dispatch.LangJavaScript, javascript.New()))
//
//	registry := routes.New(compiler)
//	registry.Add(ctx, routes.Spec{
//	    Pattern: "/hello",
//	    Source:  dispatch.Source{Lang: dispatch.LangPipe, Code: `upper $req.query.name`},
//	})
//
//	http.ListenAndServe(":8080", registry)
//
// See the [pool], [dispatch], [routes], [pipescript], and [engine] packages
// for detailed API documentation.
package scriptgate
