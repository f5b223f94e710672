package listener_test

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/yaoapp/relay/listener"
	"github.com/yaoapp/relay/listener/types"
	"github.com/yaoapp/relay/store"
)

func stableGoroutineCount() int {
	for i := 0; i < 5; i++ {
		runtime.GC()
		runtime.Gosched()
		time.Sleep(10 * time.Millisecond)
	}
	return runtime.NumGoroutine()
}

// ---------------------------------------------------------------------------
// Test: settled invocations leave no listeners and no goroutines behind.
// ---------------------------------------------------------------------------

func TestLeak_SettledInvocations(t *testing.T) {
	l := listener.New()
	st := store.New(nil, nil, l.Middleware)
	defer func() { _ = l.Shutdown(context.Background()) }()

	fn, err := l.CreateAsyncFunction(basic)
	if err != nil {
		t.Fatalf("CreateAsyncFunction: %v", err)
	}

	before := stableGoroutineCount()

	const cycles = 1000
	for i := 0; i < cycles; i++ {
		p := fn.Invoke(i)
		tag := "RESOLVE"
		if i%2 == 1 {
			tag = "REJECT"
		}
		p.Then(func(any) {}, func(error) {})
		st.Dispatch(&types.Message{Type: tag, Payload: i, Meta: &types.Meta{ID: p.ID()}})
		if p.State() == listener.Pending {
			t.Fatalf("cycle %d: still pending", i)
		}
	}

	if n := l.Len(); n != 0 {
		t.Errorf("registry holds %d listeners after %d settled invocations", n, cycles)
	}
	if n := fn.Pending(); n != 0 {
		t.Errorf("function tracks %d pending invocations", n)
	}

	time.Sleep(100 * time.Millisecond)
	after := stableGoroutineCount()
	leaked := after - before
	t.Logf("goroutines: before=%d after=%d delta=%d (over %d cycles)", before, after, leaked, cycles)

	if leaked > 5 {
		t.Errorf("goroutine leak: %d goroutines accumulated over %d cycles", leaked, cycles)
	}
}

// ---------------------------------------------------------------------------
// Test: timed out calls release their listeners.
// ---------------------------------------------------------------------------

func TestLeak_CallTimeout(t *testing.T) {
	l := listener.New()
	store.New(nil, nil, l.Middleware)
	defer func() { _ = l.Shutdown(context.Background()) }()

	fn, err := l.CreateAsyncFunction(basic)
	if err != nil {
		t.Fatalf("CreateAsyncFunction: %v", err)
	}

	const cycles = 200
	for i := 0; i < cycles; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Microsecond)
		_, err := fn.Call(ctx, i)
		cancel()
		if err == nil {
			t.Fatalf("cycle %d: expected a timeout", i)
		}
	}

	if n := l.Len(); n != 0 {
		t.Errorf("registry holds %d listeners after %d timed out calls", n, cycles)
	}
}
