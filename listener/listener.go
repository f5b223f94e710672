package listener

import (
	"context"
	"errors"
	"sync"

	"github.com/yaoapp/relay/listener/types"
	"github.com/yaoapp/relay/logger"
)

// Sentinel errors.
var (
	ErrNotInstalled  = errors.New("listener: middleware is not installed")
	ErrInvalidConfig = errors.New("listener: invalid config")
	ErrInvalidStart  = errors.New("listener: start builder returned no message")
	ErrCallbackPanic = errors.New("listener: callback panicked")
	ErrPending       = errors.New("listener: promise is pending")
)

// Listener owns one registry of pending invocations and the dispatch function
// captured when its middleware is installed into a store.
type Listener struct {
	mu       sync.RWMutex
	dispatch types.Dispatch // captured store dispatch; nil until installed

	reg        *registry
	pool       *workerPool
	newID      func() string
	maxWorkers int
	log        *logger.Logger
}

// New creates a Listener. Install l.Middleware into exactly one store, then create
// async functions with CreateAsyncFunction.
func New(opts ...Option) *Listener {
	l := &Listener{
		newID:      NanoID,
		maxWorkers: types.DefaultMaxWorkers,
		log:        logger.New("listener"),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.reg = newRegistry(l.log)
	l.pool = newWorkerPool(l.maxWorkers, l.log)
	return l
}

// Middleware is the store integration hook: (storeAPI) -> (next) -> (message) -> result.
//
// Installing captures api.Dispatch for emitting start messages. Every message passing
// through is shown to all listeners registered at that moment, then forwarded to next
// unchanged, and next's result is returned unchanged.
func (l *Listener) Middleware(api types.StoreAPI) func(next types.Dispatch) types.Dispatch {
	l.mu.Lock()
	if l.dispatch != nil {
		l.log.Debug("middleware reinstalled, start messages now go to the latest store")
	}
	l.dispatch = api.Dispatch
	l.mu.Unlock()

	return func(next types.Dispatch) types.Dispatch {
		return func(msg *types.Message) any {
			if msg != nil {
				l.reg.notify(msg)
			}
			return next(msg)
		}
	}
}

// Installed reports whether Middleware has been installed into a store.
func (l *Listener) Installed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dispatch != nil
}

func (l *Listener) dispatchFunc() types.Dispatch {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.dispatch
}

// Len returns the number of registered listeners.
func (l *Listener) Len() int {
	return l.reg.len()
}

// Shutdown unregisters every listener and waits for running Then callbacks.
// Promises still pending stay pending. Then callbacks registered after Shutdown
// never run.
func (l *Listener) Shutdown(ctx context.Context) error {
	if n := l.reg.clear(); n > 0 {
		l.log.Debug("shutdown dropped %d pending listeners", n)
	}
	l.pool.close()
	return l.pool.wait(ctx)
}
