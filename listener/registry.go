package listener

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/yaoapp/relay/listener/types"
	"github.com/yaoapp/relay/logger"
)

// entry holds one registered listener callback.
type entry struct {
	id       uint64
	callback func(*types.Message)
	active   atomic.Bool
}

// registry holds the live listeners of one Listener.
type registry struct {
	mu      sync.RWMutex
	nextID  atomic.Uint64
	entries map[uint64]*entry // id -> entry
	log     *logger.Logger
}

func newRegistry(log *logger.Logger) *registry {
	return &registry{
		entries: make(map[uint64]*entry),
		log:     log,
	}
}

// reserve allocates the next listener id.
func (r *registry) reserve() uint64 {
	return r.nextID.Add(1)
}

// add registers callback under an id obtained from reserve.
func (r *registry) add(id uint64, callback func(*types.Message)) {
	e := &entry{id: id, callback: callback}
	e.active.Store(true)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = e
}

// remove unregisters a listener by id. Only the call that actually removed the
// entry returns true; removing an absent id is a no-op.
func (r *registry) remove(id uint64) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	return e.active.CompareAndSwap(true, false)
}

// snapshot returns the live entries in registration order.
func (r *registry) snapshot() []*entry {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
	return entries
}

// notify hands msg to every listener registered when the pass starts.
// The lock is not held while callbacks run, so a callback may register, remove,
// or dispatch again. Entries removed mid-pass are skipped.
func (r *registry) notify(msg *types.Message) {
	for _, e := range r.snapshot() {
		if !e.active.Load() {
			continue
		}
		r.call(e, msg)
	}
}

func (r *registry) call(e *entry, msg *types.Message) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("listener panic: id=%d type=%s err=%v", e.id, msg.Type, rec)
		}
	}()
	e.callback(msg)
}

// clear removes all listeners and returns how many there were.
func (r *registry) clear() int {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[uint64]*entry)
	r.mu.Unlock()

	for _, e := range entries {
		e.active.Store(false)
	}
	return len(entries)
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
