// Package concurrency provides the cancellation-aware primitives the rest
// of the core depends on: a hierarchical cancellation token, a bounded
// blocking queue, interruptible sleep, and scoped deferred cleanup.
//
// Context wraps the standard library's context.Context rather than
// replacing it: stdlib context already is Go's idiomatic expression of a
// hierarchical, one-way-propagating cancellation signal (parent cancels
// children, never the reverse), which is exactly what spec section 4.1.1
// asks for. What this type adds on top is the explicit with_cancel /
// with_timeout / cancel / cancelled / wait_done vocabulary the core is
// written against.
package concurrency

import (
	"context"
	"time"
)

// Context carries a single cancellation signal down a tree. A child is
// cancelled whenever its parent is cancelled; cancelling a child never
// affects its parent.
type Context struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Background returns a root context with no parent. It never cancels on
// its own; something must explicitly call Cancel on it or on a
// WithTimeout descendant.
func Background() *Context {
	ctx, cancel := context.WithCancel(context.Background())
	return &Context{ctx: ctx, cancel: cancel}
}

// WithCancel returns a child of parent. Cancelling parent cancels the
// child; cancelling the child has no effect on parent.
func WithCancel(parent *Context) *Context {
	ctx, cancel := context.WithCancel(parent.ctx)
	return &Context{ctx: ctx, cancel: cancel}
}

// WithTimeout returns a child of parent that additionally auto-cancels
// after d elapses.
func WithTimeout(parent *Context, d time.Duration) *Context {
	ctx, cancel := context.WithTimeout(parent.ctx, d)
	return &Context{ctx: ctx, cancel: cancel}
}

// Cancel requests cancellation. Idempotent; safe to call more than once
// and from any goroutine. Wakes any primitive in this package blocked on
// this context or a descendant.
func (c *Context) Cancel() {
	c.cancel()
}

// Cancelled reports whether cancellation has been observed. Never blocks.
func (c *Context) Cancelled() bool {
	select {
	case <-c.ctx.Done():
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the context is cancelled, for use in
// select statements alongside other channel operations.
func (c *Context) Done() <-chan struct{} {
	return c.ctx.Done()
}

// WaitDone blocks until the context is cancelled.
func (c *Context) WaitDone() {
	<-c.ctx.Done()
}

// Std exposes the underlying stdlib context for interop with libraries
// (e.g. errgroup) that take one directly.
func (c *Context) Std() context.Context {
	return c.ctx
}
