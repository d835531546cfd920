package service

import (
	"context"
	"sync"
)

type commitHooksKey struct{}

// commitHooks holds work that must only happen once the surrounding
// transaction has committed, such as counting stock changes.
type commitHooks struct {
	mu  sync.Mutex
	fns []func()
}

// withCommitHooks attaches a collector to ctx. The returned hooks are nil when
// ctx already has one, so only the outermost transaction runs them.
func withCommitHooks(ctx context.Context) (context.Context, *commitHooks) {
	if _, ok := ctx.Value(commitHooksKey{}).(*commitHooks); ok {
		return ctx, nil
	}
	h := &commitHooks{}
	return context.WithValue(ctx, commitHooksKey{}, h), h
}

// afterCommit defers fn until the transaction in ctx commits, or runs it now
// when there is none.
func afterCommit(ctx context.Context, fn func()) {
	h, ok := ctx.Value(commitHooksKey{}).(*commitHooks)
	if !ok {
		fn()
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fns = append(h.fns, fn)
}

// run is called after a successful commit. A rolled back transaction simply
// drops its hooks.
func (h *commitHooks) run() {
	if h == nil {
		return
	}
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
