package listener

import (
	"context"
	"fmt"
	"sync"

	"github.com/yaoapp/relay/listener/types"
)

// AsyncFunction turns a Config into a reusable operation: each Invoke dispatches a
// start message and returns a Promise settled by the first matching message.
type AsyncFunction struct {
	l   *Listener
	cfg types.Config

	mu      sync.Mutex
	pending map[uint64]struct{} // listener ids registered by this function
}

// CreateAsyncFunction creates an AsyncFunction sharing l's registry and dispatch.
// Returns ErrNotInstalled if Middleware has not been installed yet.
func (l *Listener) CreateAsyncFunction(cfg types.Config) (*AsyncFunction, error) {
	if !l.Installed() {
		return nil, ErrNotInstalled
	}
	if cfg.Start.IsZero() {
		return nil, fmt.Errorf("%w: start is required", ErrInvalidConfig)
	}
	if cfg.SetPayload == nil {
		cfg.SetPayload = types.DefaultSetPayload
	}
	if cfg.GetPayload == nil {
		cfg.GetPayload = types.DefaultGetPayload
	}
	if cfg.GetError == nil {
		cfg.GetError = types.DefaultGetError
	}
	return &AsyncFunction{
		l:       l,
		cfg:     cfg,
		pending: make(map[uint64]struct{}),
	}, nil
}

// Invoke dispatches the start message for payload and returns its Promise.
// The listener is registered before the start message is dispatched, so a response
// dispatched synchronously by the store settles the promise.
func (f *AsyncFunction) Invoke(payload any) *Promise {
	p, _ := f.invoke(payload)
	return p
}

// Call invokes and waits for the result. When ctx is done first, the invocation's
// listener is released and ctx.Err() is returned.
func (f *AsyncFunction) Call(ctx context.Context, payload any) (any, error) {
	p, lid := f.invoke(payload)
	select {
	case <-p.Done():
		return p.Result()
	case <-ctx.Done():
		f.release(lid)
		select {
		case <-p.Done():
			return p.Result()
		default:
			return nil, ctx.Err()
		}
	}
}

func (f *AsyncFunction) invoke(payload any) (*Promise, uint64) {
	id := f.l.newID()
	p := newPromise(id, f.l.pool)

	lid := f.l.reg.reserve()
	f.track(lid)
	f.l.reg.add(lid, func(msg *types.Message) {
		f.handle(lid, p, msg)
	})

	msg := f.cfg.Start.Build(id, payload, f.cfg.SetPayload)
	if msg == nil {
		if f.release(lid) {
			p.reject(ErrInvalidStart)
		}
		return p, lid
	}

	f.l.dispatchFunc()(msg)
	return p, lid
}

// Unsubscribe removes every listener this function still has registered.
// Pending promises are left pending. Safe to call repeatedly.
func (f *AsyncFunction) Unsubscribe() {
	f.mu.Lock()
	ids := make([]uint64, 0, len(f.pending))
	for id := range f.pending {
		ids = append(ids, id)
	}
	f.pending = make(map[uint64]struct{})
	f.mu.Unlock()

	for _, id := range ids {
		f.l.reg.remove(id)
	}
}

// Pending returns the number of invocations still waiting for a match.
func (f *AsyncFunction) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// handle runs for every message while the invocation is pending.
func (f *AsyncFunction) handle(lid uint64, p *Promise, msg *types.Message) {
	if id := msg.MetaID(); id != "" && id != p.ID() {
		return
	}

	resolve, reject, err := f.match(p, msg)
	if err != nil {
		if f.release(lid) {
			p.reject(err)
		}
		return
	}

	switch {
	case resolve:
		if !f.release(lid) {
			return
		}
		value, err := f.extract(p, f.cfg.GetPayload, msg)
		if err != nil {
			p.reject(err)
			return
		}
		p.resolve(value)

	case reject:
		if !f.release(lid) {
			return
		}
		reason, err := f.extract(p, f.cfg.GetError, msg)
		if err != nil {
			p.reject(err)
			return
		}
		p.reject(&types.RejectedError{Type: msg.Type, Reason: reason})
	}
}

// match tests resolve first; a message that satisfies both resolves.
func (f *AsyncFunction) match(p *Promise, msg *types.Message) (resolve, reject bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = f.panicked(p, msg, r)
		}
	}()
	if f.cfg.Resolve.Match(msg) {
		return true, false, nil
	}
	return false, f.cfg.Reject.Match(msg), nil
}

func (f *AsyncFunction) extract(p *Promise, fn types.Extract, msg *types.Message) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = f.panicked(p, msg, r)
		}
	}()
	return fn(msg), nil
}

func (f *AsyncFunction) panicked(p *Promise, msg *types.Message, r any) error {
	f.l.log.Error("matching panic: id=%s type=%s err=%v", p.ID(), msg.Type, r)
	return fmt.Errorf("%w: %v", ErrCallbackPanic, r)
}

// release unregisters a listener. Only the first caller for lid gets true,
// which makes settlement exactly-once across goroutines.
func (f *AsyncFunction) release(lid uint64) bool {
	f.mu.Lock()
	delete(f.pending, lid)
	f.mu.Unlock()
	return f.l.reg.remove(lid)
}

func (f *AsyncFunction) track(lid uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[lid] = struct{}{}
}
