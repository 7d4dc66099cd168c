package engine

import (
	"context"
	"sync"
)

// taskGroup runs at most one long-lived goroutine per key. Used for the
// per-transaction deposit listeners, which must survive across events
// but never be doubled by a restore.
type taskGroup struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func newTaskGroup() *taskGroup {
	return &taskGroup{cancels: make(map[string]context.CancelFunc)}
}

// Go starts fn under the key unless a task with the same key is already
// running. It reports whether a new task was started.
func (g *taskGroup) Go(ctx context.Context, key string, fn func(ctx context.Context)) bool {
	g.mu.Lock()
	if _, ok := g.cancels[key]; ok {
		g.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(ctx)
	g.cancels[key] = cancel
	g.wg.Add(1)
	g.mu.Unlock()

	go func() {
		defer g.wg.Done()
		defer g.Stop(key)
		fn(ctx)
	}()
	return true
}

// Stop cancels the task under the key, if any.
func (g *taskGroup) Stop(key string) {
	g.mu.Lock()
	cancel, ok := g.cancels[key]
	if ok {
		delete(g.cancels, key)
	}
	g.mu.Unlock()
	if ok {
		cancel()
	}
}

// StopAll cancels every task and waits for them to return.
func (g *taskGroup) StopAll() {
	g.mu.Lock()
	for key, cancel := range g.cancels {
		delete(g.cancels, key)
		cancel()
	}
	g.mu.Unlock()
	g.wg.Wait()
}
