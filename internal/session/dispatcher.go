/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package session

import (
	"context"

	"github.com/dsmgr/dsm/pkg/concurrency"
	"github.com/go-logr/logr"
)

// dispatcherKey is a sentinel value stashed in the context that runs on a dispatcher's
// worker goroutine, so verifyAccess can distinguish that goroutine from any other without
// needing an OS-level thread identity.
type dispatcherKey struct{}

// dispatcher is a single-threaded serialization domain: every func posted via post runs on
// one worker goroutine, in FIFO order. All mutation of manager state happens here; foreign
// callers only ever read state, under a separate lock.
type dispatcher struct {
	queue *concurrency.UnboundedChan[func()]
	ctx   context.Context
	log   logr.Logger
}

func newDispatcher(lifetimeCtx context.Context, log logr.Logger) *dispatcher {
	d := &dispatcher{
		queue: concurrency.NewUnboundedChan[func()](lifetimeCtx),
		ctx:   context.WithValue(lifetimeCtx, dispatcherKey{}, true),
		log:   log,
	}
	go d.run(lifetimeCtx)
	return d
}

func (d *dispatcher) run(lifetimeCtx context.Context) {
	for {
		select {
		case <-lifetimeCtx.Done():
			return
		case f, ok := <-d.queue.Out:
			if !ok {
				return
			}
			d.invoke(f)
		}
	}
}

func (d *dispatcher) invoke(f func()) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error(nil, "dispatcher task panicked", "recovered", r)
		}
	}()
	f()
}

// post schedules f to run on the dispatcher's worker goroutine. It never blocks the caller
// beyond the (unbounded, buffered) enqueue.
func (d *dispatcher) post(f func()) {
	select {
	case d.queue.In <- f:
	case <-d.ctx.Done():
	}
}

// verifyAccess panics if called from outside the dispatcher's worker goroutine. Every method
// with a DbgThread-suffixed name in the original design calls this first.
func (d *dispatcher) verifyAccess(ctx context.Context) {
	if ctx.Value(dispatcherKey{}) == nil {
		panic("session: called from outside the dispatcher thread")
	}
}

// dbgThreadContext returns a context tagged as running on the dispatcher, for use inside
// tasks posted via post.
func (d *dispatcher) dbgThreadContext() context.Context {
	return d.ctx
}
