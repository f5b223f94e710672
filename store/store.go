// Package store is a minimal dispatch pipeline: a reducer over a single state value,
// wrapped by a middleware chain. It is the host the listener middleware plugs into.
package store

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/yaoapp/relay/listener/types"
	"github.com/yaoapp/relay/logger"
)

// Reducer returns the next state for msg. It must not dispatch.
type Reducer func(state any, msg *types.Message) any

// Store holds state and runs every dispatched message through its middleware chain.
type Store struct {
	mu      sync.Mutex // guards state and serializes the reducer
	state   any
	reducer Reducer

	dispatch types.Dispatch // head of the middleware chain

	subMu sync.RWMutex
	subID atomic.Uint64
	subs  map[uint64]func()
	log   *logger.Logger
}

// New creates a store, sends the reducer an init message, then composes middlewares.
// The first middleware is the outermost: it sees every message first.
func New(reducer Reducer, initial any, middlewares ...types.Middleware) *Store {
	s := &Store{
		state:   initial,
		reducer: reducer,
		subs:    make(map[uint64]func()),
		log:     logger.New("store"),
	}
	s.reduce(&types.Message{Type: types.InitType})

	dispatch := types.Dispatch(s.reduce)
	api := &storeAPI{s: s}
	for i := len(middlewares) - 1; i >= 0; i-- {
		dispatch = middlewares[i](api)(dispatch)
	}
	s.dispatch = dispatch
	return s
}

// storeAPI forwards to the store's current chain head, so a middleware that captured
// Dispatch during construction still goes through the whole chain.
type storeAPI struct {
	s *Store
}

func (a *storeAPI) Dispatch(msg *types.Message) any { return a.s.Dispatch(msg) }
func (a *storeAPI) GetState() any                   { return a.s.GetState() }

// Dispatch runs msg through the middleware chain and returns the chain's result.
func (s *Store) Dispatch(msg *types.Message) any {
	if msg == nil {
		return nil
	}
	if s.dispatch == nil {
		s.log.Warn("dispatch during middleware construction: type=%s (reducer only)", msg.Type)
		return s.reduce(msg)
	}
	return s.dispatch(msg)
}

// GetState returns the current state.
func (s *Store) GetState() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn to run after every reduced message.
// Returns a function that removes the subscription.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	id := s.subID.Add(1)
	s.subMu.Lock()
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// reduce is the innermost stage. Subscribers run after the lock is released.
func (s *Store) reduce(msg *types.Message) any {
	if msg == nil {
		return nil
	}

	s.mu.Lock()
	if s.reducer != nil {
		s.state = s.reducer(s.state, msg)
	}
	s.mu.Unlock()

	s.notify()
	return msg
}

func (s *Store) notify() {
	s.subMu.RLock()
	ids := make([]uint64, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	s.subMu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		s.subMu.RLock()
		fn, ok := s.subs[id]
		s.subMu.RUnlock()
		if ok {
			fn()
		}
	}
}
