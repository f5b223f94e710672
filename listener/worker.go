package listener

import (
	"context"
	"sync"

	"github.com/yaoapp/relay/logger"
)

// workerPool runs promise callbacks off the dispatching goroutine.
// Workers are fire-and-forget: each goroutine runs one task then exits.
// sem limits how many tasks run at the same time.
type workerPool struct {
	sem chan struct{}
	wg  sync.WaitGroup
	log *logger.Logger

	mu     sync.Mutex
	closed bool // set by close; run drops tasks afterwards
}

func newWorkerPool(maxWorkers int, log *logger.Logger) *workerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &workerPool{
		sem: make(chan struct{}, maxWorkers),
		log: log,
	}
}

// run schedules task and returns immediately. The slot is acquired inside the new
// goroutine so a settle performed during a dispatch never blocks on a full pool.
// After close, tasks are dropped.
func (wp *workerPool) run(name string, task func()) {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		wp.log.Debug("pool closed, dropped task: %s", name)
		return
	}
	wp.wg.Add(1)
	wp.mu.Unlock()

	go func() {
		defer wp.wg.Done()
		wp.sem <- struct{}{}
		defer func() { <-wp.sem }()
		defer wp.recoverPanic(name)
		task()
	}()
}

func (wp *workerPool) recoverPanic(name string) {
	if r := recover(); r != nil {
		wp.log.Error("callback panic: %s err=%v", name, r)
	}
}

// close stops accepting tasks. Tasks already scheduled still run.
func (wp *workerPool) close() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	wp.closed = true
}

// wait blocks until all scheduled tasks finish or ctx is done.
func (wp *workerPool) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
