package hostfunc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestRegistryClone(t *testing.T) {
	base := NewRegistry()
	base.Register("shared", func(ctx context.Context, args map[string]any) (any, error) {
		return "base", nil
	})

	clone := base.Clone()
	clone.Register("extra", func(ctx context.Context, args map[string]any) (any, error) {
		return "clone", nil
	})

	if _, ok := clone.Get("shared"); !ok {
		t.Error("clone missing inherited function")
	}
	if _, ok := base.Get("extra"); ok {
		t.Error("clone registration leaked into the base registry")
	}
}

func TestKVStoreRoundTrip(t *testing.T) {
	kv := NewKVStore()
	ctx := context.Background()

	if _, err := kv.Set(ctx, map[string]any{"key": "a", "value": "1"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := kv.Get(ctx, map[string]any{"key": "a"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "1" {
		t.Errorf("expected 1, got %v", got)
	}

	if _, err := kv.Delete(ctx, map[string]any{"key": "a"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ = kv.Get(ctx, map[string]any{"key": "a"})
	if got != nil {
		t.Errorf("expected nil after delete, got %v", got)
	}
}

func TestKVStoreLimits(t *testing.T) {
	kv := NewKVStore(WithMaxKeySize(4), WithMaxValueSize(4), WithMaxEntries(1))
	ctx := context.Background()

	if _, err := kv.Set(ctx, map[string]any{"key": "toolong", "value": "x"}); err == nil {
		t.Error("expected key size error")
	}
	if _, err := kv.Set(ctx, map[string]any{"key": "k", "value": "toolong"}); err == nil {
		t.Error("expected value size error")
	}
	if _, err := kv.Set(ctx, map[string]any{"key": "a", "value": "1"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := kv.Set(ctx, map[string]any{"key": "b", "value": "2"}); err == nil {
		t.Error("expected store full error")
	}
}

func TestHTTPAllowList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)

	allowed := NewHTTP(HTTPConfig{AllowedHosts: []string{u.Hostname()}})
	resp, err := allowed.Request(context.Background(), map[string]any{"url": srv.URL})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	m := resp.(map[string]any)
	if m["status"] != 200 || m["body"] != "pong" {
		t.Errorf("unexpected response: %v", m)
	}

	denied := NewHTTP(HTTPConfig{AllowedHosts: []string{"example.com"}})
	if _, err := denied.Request(context.Background(), map[string]any{"url": srv.URL}); err == nil {
		t.Error("expected host not allowed error")
	} else if !strings.Contains(err.Error(), "not allowed") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestHTTPDisabledWithoutAllowList(t *testing.T) {
	h := NewHTTP(HTTPConfig{})
	if _, err := h.Request(context.Background(), map[string]any{"url": "http://example.com"}); err == nil {
		t.Error("expected http not enabled error")
	}
}

func TestBridgeExposesRegistry(t *testing.T) {
	reg := NewRegistry()
	reg.Register("greet", func(ctx context.Context, args map[string]any) (any, error) {
		name, _ := args["name"].(string)
		return "hello " + name, nil
	})

	bundle := reg.Bundle()
	fn, ok := bundle.Funcs["greet"]
	if !ok {
		t.Fatal("bundle missing greet")
	}

	got, err := fn(context.Background(), []any{map[string]any{"name": "pool"}})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if got != "hello pool" {
		t.Errorf("expected 'hello pool', got %v", got)
	}

	if _, err := fn(context.Background(), []any{"not a map"}); err == nil {
		t.Error("expected a map argument error")
	}
}
