package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	"golang.org/x/time/rate"

	"github.com/voxfeld/scriptgate/routes"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the configured routes",
	Long: `Load the config, compile every route, and serve them over HTTP.

Any invalid route fails startup; nothing is served until the whole
configuration has been validated and compiled.

Built-in endpoints:
  GET /-/health    Pool statistics and route count
  GET /-/routes    Registered route listing`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	noCache, _ := cmd.Root().PersistentFlags().GetBool("no-cache")

	svc, err := buildService(configPath, !noCache)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer svc.close()

	commonlog.Configure(svc.cfg.Server.Verbosity, nil)
	log := commonlog.GetLogger("scriptgate.serve")

	mux := http.NewServeMux()
	mux.HandleFunc("/-/health", healthHandler(svc))
	mux.HandleFunc("/-/routes", routesHandler(svc.registry))
	mux.Handle("/", svc.registry)

	var handler http.Handler = mux
	if svc.cfg.Server.RateLimit > 0 {
		limiter := rate.NewLimiter(rate.Limit(svc.cfg.Server.RateLimit), svc.cfg.Server.RateBurst)
		handler = rateLimit(limiter, mux)
	}

	listeners, err := svc.cfg.Listeners()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	servers := make([]*http.Server, 0, len(listeners))
	errCh := make(chan error, len(listeners))
	for _, l := range listeners {
		srv := &http.Server{
			Addr:              l.String(),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		servers = append(servers, srv)
		go func(srv *http.Server) {
			log.Infof("listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}(srv)
	}
	log.Infof("serving %d routes", svc.registry.Len())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	case <-sig:
	}

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			log.Errorf("shutdown %s: %v", srv.Addr, err)
		}
	}
}

func rateLimit(limiter *rate.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func healthHandler(svc *service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := svc.pool.Stats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"routes": svc.registry.Len(),
			"pool": map[string]int{
				"created": stats.Created,
				"free":    stats.Free,
				"max":     stats.Max,
			},
		})
	}
}

func routesHandler(registry *routes.Registry) http.HandlerFunc {
	type routeInfo struct {
		Pattern     string   `json:"pattern"`
		Verbs       []string `json:"verbs"`
		Lang        string   `json:"lang"`
		Summary     string   `json:"summary,omitempty"`
		Description string   `json:"description,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		entries := registry.Entries()
		out := make([]routeInfo, 0, len(entries))
		for _, e := range entries {
			out = append(out, routeInfo{
				Pattern:     e.Pattern,
				Verbs:       e.Verbs,
				Lang:        string(e.Unit.Lang()),
				Summary:     e.Summary,
				Description: e.Description,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}
