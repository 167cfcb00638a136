// Package query turns a rapidly changing text query into rate-limited remote
// lookups. Only the response of the latest query is ever applied.
package query

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/tartampluch/go-contacts/internal/config"
	"github.com/tartampluch/go-contacts/internal/gateway"
)

// ErrEngineClosed is returned by Set after Close.
var ErrEngineClosed = errors.New(config.ErrEngineClosed)

// LookupFunc performs one remote lookup.
type LookupFunc[T any] func(ctx context.Context, p Params) ([]T, error)

// State is what a consumer renders. Results is nil when no lookup applies
// (no query) and empty when the lookup matched nothing.
type State[T any] struct {
	Query   string
	Results []T
	Loading bool
	Err     error
}

// Options tune an Engine.
type Options[T any] struct {
	// Delay is the debounce interval.
	Delay time.Duration
	// MinLength is the trimmed query length below which nothing is sent.
	MinLength int
	// Immediate selects queries that skip the debounce and the other gates,
	// and are resolved by ImmediateLookup instead of the main lookup.
	Immediate       func(Params) bool
	ImmediateLookup LookupFunc[T]
	// Gate must accept a query for it to be sent; rejected queries yield
	// an empty result.
	Gate func(Params) bool
	// ResetToEmpty makes short queries produce [] instead of nil.
	ResetToEmpty bool
}

// Engine debounces queries, aborts superseded requests and discards stale
// responses by comparing request generations.
type Engine[T any] struct {
	lookup LookupFunc[T]
	opts   Options[T]
	log    *slog.Logger

	mu         sync.Mutex
	state      State[T]
	generation uint64
	timer      *time.Timer
	cancel     context.CancelFunc
	closed     bool
	idle       chan struct{}
	listeners  []func(State[T])
	delivering bool
	dirty      bool
}

// New creates an engine around lookup. name tags its log lines.
func New[T any](name string, lookup LookupFunc[T], opts Options[T]) *Engine[T] {
	if opts.MinLength <= 0 {
		opts.MinLength = config.MinQueryLength
	}
	idle := make(chan struct{})
	close(idle)
	return &Engine[T]{
		lookup: lookup,
		opts:   opts,
		log:    slog.With(config.LogKeyComponent, config.CompQuery, config.LogKeyEngine, name),
		idle:   idle,
	}
}

// Subscribe registers fn to receive the state after every change. Deliveries
// are serialized, and fn may call back into the engine: states produced
// meanwhile are coalesced and delivered once fn returns.
func (e *Engine[T]) Subscribe(fn func(State[T])) {
	e.mu.Lock()
	e.listeners = append(e.listeners, fn)
	e.mu.Unlock()
}

// State returns a copy of the current state.
func (e *Engine[T]) State() State[T] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Set replaces the query. Any pending timer and in-flight request of the
// previous query are cancelled.
func (e *Engine[T]) Set(p Params) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	e.generation++
	gen := e.generation
	e.abortLocked()
	e.state.Query = p.Query
	e.state.Err = nil

	switch {
	case e.opts.Immediate != nil && e.opts.Immediate(p):
		fn := e.opts.ImmediateLookup
		if fn == nil {
			fn = e.lookup
		}
		ctx := e.startLocked()
		e.mu.Unlock()
		e.notify()
		go e.run(ctx, gen, p, fn, true)

	case utf8.RuneCountInString(strings.TrimSpace(p.Query)) < e.opts.MinLength:
		if e.opts.ResetToEmpty {
			e.state.Results = []T{}
		} else {
			e.state.Results = nil
		}
		e.state.Loading = false
		e.setIdleLocked()
		e.mu.Unlock()
		e.notify()

	case e.opts.Gate != nil && !e.opts.Gate(p):
		e.log.Debug(config.MsgQueryGated, config.LogKeyGeneration, gen)
		e.state.Results = []T{}
		e.state.Loading = false
		e.setIdleLocked()
		e.mu.Unlock()
		e.notify()

	default:
		e.state.Loading = false
		e.setBusyLocked()
		e.timer = time.AfterFunc(e.opts.Delay, func() {
			e.mu.Lock()
			if gen != e.generation || e.closed {
				e.mu.Unlock()
				return
			}
			e.timer = nil
			ctx := e.startLocked()
			e.mu.Unlock()
			e.notify()
			e.run(ctx, gen, p, e.lookup, false)
		})
		e.mu.Unlock()
		e.notify()
	}
	return nil
}

// Close cancels the pending timer and the in-flight request. The engine
// ignores further queries.
func (e *Engine[T]) Close() {
	e.mu.Lock()
	e.closed = true
	e.generation++
	e.abortLocked()
	e.state.Loading = false
	e.setIdleLocked()
	e.mu.Unlock()
	e.notify()
}

// Idle returns a channel closed once no lookup is scheduled or in flight.
func (e *Engine[T]) Idle() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.idle
}

// Settle waits until e has no pending work and returns its state.
func Settle[T any](ctx context.Context, e *Engine[T]) (State[T], error) {
	for {
		select {
		case <-e.Idle():
			e.mu.Lock()
			done := e.isIdleLocked()
			st := e.snapshotLocked()
			e.mu.Unlock()
			if done {
				return st, nil
			}
		case <-ctx.Done():
			return e.State(), ctx.Err()
		}
	}
}

// startLocked marks the engine loading and returns the context of the new
// request.
func (e *Engine[T]) startLocked() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.state.Loading = true
	e.setBusyLocked()
	return ctx
}

func (e *Engine[T]) run(ctx context.Context, gen uint64, p Params, fn LookupFunc[T], immediate bool) {
	e.log.Debug(config.MsgQueryDispatch,
		config.LogKeyGeneration, gen,
		config.LogKeyImmediate, immediate)

	results, err := fn(ctx, p)

	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		e.log.Debug(config.MsgQueryStale, config.LogKeyGeneration, gen)
		return
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.state.Loading = false
	switch {
	case err == nil:
		if results == nil {
			results = []T{}
		}
		e.state.Results = results
	case gateway.IsCanceled(err):
		// Aborted lookups are not failures.
	default:
		e.state.Results = []T{}
		e.state.Err = err
	}
	e.setIdleLocked()
	e.mu.Unlock()
	e.notify()
}

func (e *Engine[T]) abortLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

func (e *Engine[T]) setBusyLocked() {
	select {
	case <-e.idle:
		e.idle = make(chan struct{})
	default:
	}
}

func (e *Engine[T]) setIdleLocked() {
	select {
	case <-e.idle:
	default:
		close(e.idle)
	}
}

func (e *Engine[T]) isIdleLocked() bool {
	select {
	case <-e.idle:
		return true
	default:
		return false
	}
}

func (e *Engine[T]) snapshotLocked() State[T] {
	st := e.state
	if st.Results != nil {
		st.Results = slices.Clone(st.Results)
	}
	return st
}

// notify delivers the latest state. Only one goroutine delivers at a time;
// others flag the state dirty and the deliverer loops until the last state a
// listener saw is the current one.
func (e *Engine[T]) notify() {
	e.mu.Lock()
	e.dirty = true
	if e.delivering {
		e.mu.Unlock()
		return
	}
	e.delivering = true
	for e.dirty {
		e.dirty = false
		st := e.snapshotLocked()
		listeners := slices.Clone(e.listeners)
		e.mu.Unlock()

		for _, fn := range listeners {
			fn(st)
		}
		e.mu.Lock()
	}
	e.delivering = false
	e.mu.Unlock()
}
