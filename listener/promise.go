package listener

import (
	"context"
	"fmt"
	"sync"

	"github.com/yaoapp/relay/listener/types"
)

// State is the settlement state of a Promise.
type State int

// Promise states. Resolved and Rejected are terminal.
const (
	Pending State = iota
	Resolved
	Rejected
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Rejected:
		return "rejected"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Promise is the eventual result of one AsyncFunction invocation.
// It settles at most once; later settle attempts are ignored.
type Promise struct {
	id   string
	pool *workerPool

	mu       sync.Mutex
	state    State
	result   types.Result
	done     chan struct{}
	handlers []thenHandler
}

type thenHandler struct {
	onResolve func(any)
	onReject  func(error)
}

func newPromise(id string, pool *workerPool) *Promise {
	return &Promise{
		id:   id,
		pool: pool,
		done: make(chan struct{}),
	}
}

// ID returns the correlation id of the invocation.
func (p *Promise) ID() string {
	return p.id
}

// State returns the current state.
func (p *Promise) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Done is closed once the promise settles.
func (p *Promise) Done() <-chan struct{} {
	return p.done
}

// Result returns the settled value and error without blocking.
// Returns ErrPending while the promise is pending.
func (p *Promise) Result() (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Pending {
		return nil, ErrPending
	}
	return p.result.Data, p.result.Err
}

// Await blocks until the promise settles or ctx is done.
// Cancelling ctx does not release the listener; use AsyncFunction.Call for that.
func (p *Promise) Await(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		return p.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Then registers callbacks run once after settlement, on the listener's worker pool.
// Either callback may be nil.
func (p *Promise) Then(onResolve func(any), onReject func(error)) {
	h := thenHandler{onResolve: onResolve, onReject: onReject}

	p.mu.Lock()
	if p.state == Pending {
		p.handlers = append(p.handlers, h)
		p.mu.Unlock()
		return
	}
	state, result := p.state, p.result
	p.mu.Unlock()

	p.schedule(h, state, result)
}

func (p *Promise) resolve(value any) bool {
	return p.settle(Resolved, types.Result{Data: value})
}

func (p *Promise) reject(err error) bool {
	return p.settle(Rejected, types.Result{Err: err})
}

func (p *Promise) settle(state State, result types.Result) bool {
	p.mu.Lock()
	if p.state != Pending {
		p.mu.Unlock()
		return false
	}
	p.state = state
	p.result = result
	handlers := p.handlers
	p.handlers = nil
	close(p.done)
	p.mu.Unlock()

	for _, h := range handlers {
		p.schedule(h, state, result)
	}
	return true
}

func (p *Promise) schedule(h thenHandler, state State, result types.Result) {
	switch {
	case state == Resolved && h.onResolve != nil:
		p.pool.run("resolve "+p.id, func() { h.onResolve(result.Data) })
	case state == Rejected && h.onReject != nil:
		p.pool.run("reject "+p.id, func() { h.onReject(result.Err) })
	}
}
