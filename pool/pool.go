// Package pool manages a bounded set of isolated pipe script interpreter
// slots shared by all interpreted routes.
package pool

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/voxfeld/scriptgate/pipescript"
)

var (
	// ErrClosed is returned by Acquire after Shutdown.
	ErrClosed = errors.New("pool closed")
)

// HostBinding is the reserved variable name under which every slot carries a
// back-reference to the host. Caller-supplied bindings may never shadow it.
const HostBinding = "host"

// Slot is one isolated interpreter state. It is owned by the Pool and must
// only be touched between Acquire and Release.
type Slot struct {
	id  int
	env *pipescript.Env
}

// ID returns the slot's identifier, unique within its pool.
func (s *Slot) ID() int { return s.id }

// Env returns the slot's persistent environment. Callers that need
// request-scoped bindings should layer a child frame on top of it rather
// than writing into the persistent tables.
func (s *Slot) Env() *pipescript.Env { return s.env }

// Stats is a point-in-time snapshot of pool bookkeeping.
type Stats struct {
	Created int
	Free    int
	Max     int
}

// Pool owns up to MaxSlots interpreter slots. Acquire blocks until a slot is
// free or a new one can be created; Release returns a slot without resetting
// its state. Only the free list and counters are synchronized; slot tables
// are mutated exclusively by the caller holding the slot.
type Pool struct {
	cfg config
	log commonlog.Logger

	free chan *Slot
	done chan struct{}

	mu      sync.Mutex
	created int
	closed  bool
	nextID  int
}

// New builds a pool and eagerly creates the configured minimum number of
// slots. Any slot-creation failure fails construction; no partly initialized
// slot is ever handed out.
func New(opts ...Option) (*Pool, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.maxSlots <= 0 {
		cfg.maxSlots = 2 * runtime.GOMAXPROCS(0)
	}
	if cfg.maxSlots < 1 {
		cfg.maxSlots = 1
	}
	if cfg.minSlots < 0 {
		cfg.minSlots = 0
	}
	if cfg.maxSlots < cfg.minSlots {
		return nil, fmt.Errorf("max slots %d below min slots %d", cfg.maxSlots, cfg.minSlots)
	}
	if _, shadowed := cfg.vars[HostBinding]; shadowed {
		return nil, fmt.Errorf("binding %q is reserved", HostBinding)
	}
	if _, shadowed := cfg.funcs[HostBinding]; shadowed {
		return nil, fmt.Errorf("binding %q is reserved", HostBinding)
	}

	p := &Pool{
		cfg:  cfg,
		log:  cfg.logger,
		free: make(chan *Slot, cfg.maxSlots),
		done: make(chan struct{}),
	}

	for i := 0; i < cfg.minSlots; i++ {
		slot, err := p.newSlot()
		if err != nil {
			return nil, fmt.Errorf("create slot: %w", err)
		}
		p.created++
		p.free <- slot
	}

	return p, nil
}

// Acquire returns a free slot under exclusive ownership, creating one if the
// pool is below capacity. It blocks until a slot frees, the context is
// cancelled, or the pool shuts down.
func (p *Pool) Acquire(ctx context.Context) (*Slot, error) {
	select {
	case <-p.done:
		return nil, ErrClosed
	default:
	}

	select {
	case slot := <-p.free:
		return slot, nil
	default:
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	if p.created < p.cfg.maxSlots {
		p.created++
		p.mu.Unlock()
		slot, err := p.newSlot()
		if err != nil {
			p.mu.Lock()
			p.created--
			p.mu.Unlock()
			return nil, fmt.Errorf("create slot: %w", err)
		}
		return slot, nil
	}
	p.mu.Unlock()

	select {
	case slot := <-p.free:
		return slot, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire slot: %w", ctx.Err())
	case <-p.done:
		return nil, ErrClosed
	}
}

// Release returns a slot to the free list. It never blocks. Slot state is
// deliberately not reset; re-seeding a full interpreter per call would erase
// the point of pooling.
func (p *Pool) Release(slot *Slot) {
	if slot == nil {
		return
	}

	p.mu.Lock()
	if p.closed {
		p.created--
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	select {
	case p.free <- slot:
	default:
		// Free list full: the slot was released twice. Drop it rather
		// than corrupt the invariant.
		p.log.Errorf("slot %d released twice", slot.id)
	}
}

// With acquires a slot, runs fn, and releases the slot exactly once on every
// exit path, including a panic inside fn (recovered into an error).
func (p *Pool) With(ctx context.Context, fn func(*Slot) error) (err error) {
	slot, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("slot %d: handler panic: %v", slot.id, r)
		}
		p.Release(slot)
	}()
	return fn(slot)
}

// Shutdown disposes all free slots and fails pending and future Acquire
// calls with ErrClosed. It is idempotent. Slots currently held by callers
// are disposed when released.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()

	for {
		select {
		case slot := <-p.free:
			p.mu.Lock()
			p.created--
			p.mu.Unlock()
			p.log.Debugf("disposed slot %d", slot.id)
		default:
			return
		}
	}
}

// Stats reports current bookkeeping counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Created: p.created,
		Free:    len(p.free),
		Max:     p.cfg.maxSlots,
	}
}

// newSlot builds one slot from the shared initialization template: the host
// back-reference, caller bindings, bundles, and startup scripts, in that
// order. Startup scripts were parsed once at configuration time and are
// never re-parsed here.
func (p *Pool) newSlot() (*Slot, error) {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	p.mu.Unlock()

	env := pipescript.NewEnv()
	pipescript.CoreBundle().Install(env)
	for _, bundle := range p.cfg.bundles {
		bundle.Install(env)
	}
	env.Set(HostBinding, p.cfg.host)
	for name, v := range p.cfg.vars {
		env.Set(name, v)
	}
	for name, fn := range p.cfg.funcs {
		env.SetFunc(name, fn)
	}

	for i, prog := range p.cfg.startup {
		if _, err := pipescript.Run(context.Background(), prog, env); err != nil {
			return nil, fmt.Errorf("startup unit %d: %w", i, err)
		}
	}

	p.log.Debugf("created slot %d", id)
	return &Slot{id: id, env: env}, nil
}
