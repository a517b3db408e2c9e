package executor

import (
	"context"
	"sync"
)

type flight struct {
	done chan struct{}
	val  any
	err  error
}

// flights coalesces calls with equal request keys. One set lives for one
// wave, so nothing is shared across waves or requests.
type flights struct {
	mu    sync.RWMutex
	items map[uint64]*flight
}

func newFlights() *flights {
	return &flights{items: make(map[uint64]*flight)}
}

// do runs fn unless a call with the same key is already running or done,
// in which case it waits for that call's outcome.
func (f *flights) do(ctx context.Context, key uint64, fn func() (any, error)) (any, error) {
	f.mu.RLock()
	fl, ok := f.items[key]
	f.mu.RUnlock()
	if ok {
		return fl.wait(ctx)
	}

	f.mu.Lock()
	fl, ok = f.items[key]
	if ok {
		f.mu.Unlock()
		return fl.wait(ctx)
	}
	fl = &flight{done: make(chan struct{})}
	f.items[key] = fl
	f.mu.Unlock()

	fl.val, fl.err = fn()
	close(fl.done)
	return fl.val, fl.err
}

func (fl *flight) wait(ctx context.Context) (any, error) {
	select {
	case <-fl.done:
		return fl.val, fl.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
