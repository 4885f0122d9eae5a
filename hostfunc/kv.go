package hostfunc

import (
	"context"
	"errors"
	"sync"
)

const (
	DefaultMaxKeySize   = 1024
	DefaultMaxValueSize = 64 * 1024
	DefaultMaxEntries   = 10000
)

// KVStore is an in-memory key-value store shared by all routes that enable
// the kv capability.
type KVStore struct {
	data map[string]string
	mu   sync.RWMutex

	maxKeySize   int
	maxValueSize int
	maxEntries   int
}

// KVOption configures store limits.
type KVOption func(*KVStore)

func WithMaxKeySize(n int) KVOption {
	return func(s *KVStore) { s.maxKeySize = n }
}

func WithMaxValueSize(n int) KVOption {
	return func(s *KVStore) { s.maxValueSize = n }
}

func WithMaxEntries(n int) KVOption {
	return func(s *KVStore) { s.maxEntries = n }
}

func NewKVStore(opts ...KVOption) *KVStore {
	s := &KVStore{
		data:         make(map[string]string),
		maxKeySize:   DefaultMaxKeySize,
		maxValueSize: DefaultMaxValueSize,
		maxEntries:   DefaultMaxEntries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterInto installs the store's operations into a registry under the
// kv_* names.
func (s *KVStore) RegisterInto(r *Registry) {
	r.Register("kv_get", s.Get)
	r.Register("kv_set", s.Set)
	r.Register("kv_delete", s.Delete)
}

func (s *KVStore) Get(ctx context.Context, args map[string]any) (any, error) {
	key, ok := args["key"].(string)
	if !ok {
		return nil, errors.New("key required")
	}

	s.mu.RLock()
	val, exists := s.data[key]
	s.mu.RUnlock()

	if !exists {
		return nil, nil
	}
	return val, nil
}

func (s *KVStore) Set(ctx context.Context, args map[string]any) (any, error) {
	key, ok := args["key"].(string)
	if !ok {
		return nil, errors.New("key required")
	}
	val, ok := args["value"].(string)
	if !ok {
		return nil, errors.New("value required")
	}

	if len(key) > s.maxKeySize {
		return nil, errors.New("key exceeds max size")
	}
	if len(val) > s.maxValueSize {
		return nil, errors.New("value exceeds max size")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; !exists && len(s.data) >= s.maxEntries {
		return nil, errors.New("store full")
	}
	s.data[key] = val
	return "ok", nil
}

func (s *KVStore) Delete(ctx context.Context, args map[string]any) (any, error) {
	key, ok := args["key"].(string)
	if !ok {
		return nil, errors.New("key required")
	}

	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()

	return "ok", nil
}
